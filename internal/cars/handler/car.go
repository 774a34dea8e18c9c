package handler

import (
	"net/http"

	"roadquest/internal/cars/repository"
	"roadquest/internal/cars/service"
	httputil "roadquest/pkg/http"
	"roadquest/pkg/logger"
	"roadquest/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CarHandler struct {
	service service.CarService
	log     *logger.Logger
}

func NewCarHandler(service service.CarService, log *logger.Logger) *CarHandler {
	return &CarHandler{
		service: service,
		log:     log,
	}
}

func (h *CarHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var car model.Car
	if err := httputil.DecodeJSON(r, &car); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.Create(r.Context(), &car); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, car); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

// List serves every listing view: all cars, an owner's cars (?email=) and
// the available fleet (?availability=available).
func (h *CarHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	filter := repository.Filter{
		OwnerEmail:   query.Get("email"),
		Availability: query.Get("availability"),
	}

	cars, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	if cars == nil {
		cars = []*model.Car{}
	}

	if err := httputil.WritePaginated(w, cars, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *CarHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	car, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// Update backs both PATCH and PUT. Absent fields are left untouched.
func (h *CarHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.CarUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	car, err := h.service.Update(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccessWithMessage(w, car, "Car updated successfully"); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccessWithMessage", "error", err)
	}
}

func (h *CarHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *CarHandler) BookingCount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	count, err := h.service.BookingCount(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "BookingCount", err)
		return
	}

	if err := httputil.WriteSuccess(w, count); err != nil {
		h.log.Error("failed to write success response", "handler", "BookingCount", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CarHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CarHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/cars", h.Create)
	router.GET("/api/v1/cars", h.List)
	router.GET("/api/v1/cars/id/:id", h.GetByID)
	router.PATCH("/api/v1/cars/id/:id", h.Update)
	router.PUT("/api/v1/cars/id/:id", h.Update)
	router.DELETE("/api/v1/cars/id/:id", h.Delete)
	router.GET("/api/v1/cars/id/:id/booking-count", h.BookingCount)
}
