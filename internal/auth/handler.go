package auth

import (
	"net/http"
	"time"

	apperrors "roadquest/pkg/errors"
	httputil "roadquest/pkg/http"
	"roadquest/pkg/logger"
	"roadquest/pkg/sanitizer"
	"roadquest/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

const CookieName = "token"

type tokenRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Handler struct {
	issuer       *Issuer
	validate     *validator.Validate
	cookieSecure bool
	log          *logger.Logger
}

func NewHandler(issuer *Issuer, cookieSecure bool, log *logger.Logger) *Handler {
	return &Handler{
		issuer:       issuer,
		validate:     validation.New(),
		cookieSecure: cookieSecure,
		log:          log,
	}
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req tokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "IssueToken", err)
		return
	}

	req.Email = sanitizer.SanitizeEmail(req.Email)
	if err := validation.Struct(h.validate, req); err != nil {
		h.writeError(w, "IssueToken", validation.ToAppError("Invalid token request", err))
		return
	}

	token, expiresAt, err := h.issuer.Issue(req.Email)
	if err != nil {
		h.log.Error("Failed to issue token", "error", err)
		h.writeError(w, "IssueToken", apperrors.Internal("Failed to issue token", err))
		return
	}

	http.SetCookie(w, h.cookie(token, expiresAt))
	if err := httputil.WriteSuccess(w, tokenResponse{Token: token, ExpiresAt: expiresAt}); err != nil {
		h.log.Error("failed to write success response", "handler", "IssueToken", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	cookie := h.cookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)

	if err := httputil.WriteSuccessWithMessage(w, nil, "Logged out"); err != nil {
		h.log.Error("failed to write success response", "handler", "Logout", "operation", "WriteSuccessWithMessage", "error", err)
	}
}

func (h *Handler) cookie(value string, expires time.Time) *http.Cookie {
	sameSite := http.SameSiteStrictMode
	if h.cookieSecure {
		// cross-site cookies need SameSite=None, which browsers only accept with Secure
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: sameSite,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/token", h.IssueToken)
	router.POST("/api/v1/auth/logout", h.Logout)
}
