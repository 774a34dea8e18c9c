package handler

import (
	"net/http"
	"time"

	"roadquest/internal/bookings/service"
	apperrors "roadquest/pkg/errors"
	httputil "roadquest/pkg/http"
	"roadquest/pkg/logger"
	"roadquest/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// createBookingRequest takes dates as strings so both RFC3339 timestamps and
// plain YYYY-MM-DD dates are accepted.
type createBookingRequest struct {
	CarID      string  `json:"car_id"`
	Email      string  `json:"email"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Status     string  `json:"status"`
	TotalPrice float64 `json:"total_price"`
}

func (req createBookingRequest) toBooking() (*model.Booking, error) {
	booking := &model.Booking{
		CarID:      req.CarID,
		Email:      req.Email,
		Status:     req.Status,
		TotalPrice: req.TotalPrice,
	}

	var err error
	if req.StartDate != "" {
		if booking.StartDate, err = httputil.ParseTimestamp("start_date", req.StartDate); err != nil {
			return nil, err
		}
	}
	if req.EndDate != "" {
		if booking.EndDate, err = httputil.ParseTimestamp("end_date", req.EndDate); err != nil {
			return nil, err
		}
	}
	return booking, nil
}

type updateBookingRequest struct {
	Status     *string  `json:"status"`
	StartDate  *string  `json:"start_date"`
	EndDate    *string  `json:"end_date"`
	TotalPrice *float64 `json:"total_price"`
}

func (req updateBookingRequest) toUpdate() (*model.BookingUpdate, error) {
	update := &model.BookingUpdate{
		Status:     req.Status,
		TotalPrice: req.TotalPrice,
	}

	parse := func(field string, value *string) (*time.Time, error) {
		if value == nil {
			return nil, nil
		}
		t, err := httputil.ParseTimestamp(field, *value)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}

	var err error
	if update.StartDate, err = parse("start_date", req.StartDate); err != nil {
		return nil, err
	}
	if update.EndDate, err = parse("end_date", req.EndDate); err != nil {
		return nil, err
	}
	return update, nil
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := req.toBooking()
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.Create(r.Context(), booking); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// ListByEmail serves "my bookings".
func (h *BookingHandler) ListByEmail(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListByEmail", err)
		return
	}

	bookings, total, err := h.service.ListByEmail(r.Context(), r.URL.Query().Get("email"), limit, offset)
	if err != nil {
		h.writeError(w, "ListByEmail", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByEmail", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req updateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	update, err := req.toUpdate()
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	booking, err := h.service.Update(r.Context(), ps.ByName("id"), update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccessWithMessage(w, booking, "Booking updated successfully"); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccessWithMessage", "error", err)
	}
}

// Cancel backs DELETE: bookings are never removed, only moved to canceled.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccessWithMessage(w, booking, "Booking canceled successfully"); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccessWithMessage", "error", err)
	}
}

func (h *BookingHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	carID := query.Get("car_id")
	if carID == "" {
		h.writeError(w, "Search", apperrors.InvalidInput("The 'car_id' query parameter is required"))
		return
	}

	startTime, err := httputil.ParseOptionalTimestamp("start_time", query.Get("start_time"))
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	endTime, err := httputil.ParseOptionalTimestamp("end_time", query.Get("end_time"))
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	bookings, err := h.service.Search(r.Context(), carID, startTime, endTime)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "Search", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.ListByEmail)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Update)
	router.DELETE("/api/v1/bookings/id/:id", h.Cancel)
	router.GET("/api/v1/bookings/search", h.Search)
}
