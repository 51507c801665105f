package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "keygate/internal/errors"
	"keygate/internal/license"
	"keygate/internal/services"
)

// LicenseHandler handles license-related HTTP requests.
type LicenseHandler struct {
	service  services.LicenseService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With(slog.String("handler", "license")),
	}
}

// ValidateRequest is the client validation payload.
type ValidateRequest struct {
	Key  string `json:"key" validate:"required"`
	HWID string `json:"hwid" validate:"required"`
}

// CreateRequest is the admin create payload. Days accepts any JSON
// number and is coerced to an integer day count.
type CreateRequest struct {
	Key  string      `json:"key,omitempty"`
	Days json.Number `json:"days,omitempty"`
}

// DaysInt coerces the days field to an integer. Absent or unparseable
// values return 0 so the service applies its default.
func (req *CreateRequest) DaysInt() int {
	if req.Days == "" {
		return 0
	}
	if i, err := req.Days.Int64(); err == nil {
		return int(i)
	}
	if f, err := req.Days.Float64(); err == nil {
		return int(f)
	}
	return 0
}

// StatusResponse is the generic success envelope.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateResponse is returned by the create endpoint.
type CreateResponse struct {
	Status     string `json:"status"`
	Key        string `json:"key"`
	ExpireTime string `json:"expire_time"`
}

// ListResponse wraps the license inventory.
type ListResponse struct {
	Licenses []services.Record `json:"licenses"`
}

// Routes registers the license endpoints on r. Everything except
// /validate sits behind the supplied admin guard, including the license
// inventory.
func (h *LicenseHandler) Routes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Post("/validate", h.Validate)

	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Post("/create", h.Create)
		r.Post("/delete/{key}", h.Delete)
		r.Post("/reset-hwid/{key}", h.ResetHWID)
		r.Post("/toggle-status/{key}", h.ToggleStatus)
		r.Get("/licenses", h.List)
	})
}

// Validate handles POST /validate.
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ValidateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode validate request",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInvalidRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.ErrInvalidRequest)
		return
	}

	if err := h.service.Validate(ctx, req.Key, req.HWID); err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, StatusResponse{Status: "success", Message: "License valid"})
}

// Create handles POST /create.
func (h *LicenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Body is optional: create with no payload yields a generated key
	// with the default validity.
	var req CreateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WarnContext(ctx, "failed to decode create request",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.Create(ctx, req.Key, req.DaysInt())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, CreateResponse{
		Status:     "success",
		Key:        result.Key,
		ExpireTime: result.ExpireTime.UTC().Format(time.RFC3339),
	})
}

// Delete handles POST /delete/{key}.
func (h *LicenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.service.Delete(r.Context(), key); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, StatusResponse{Status: "success", Message: "License deleted"})
}

// ResetHWID handles POST /reset-hwid/{key}.
func (h *LicenseHandler) ResetHWID(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.service.ResetBinding(r.Context(), key); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, StatusResponse{Status: "success", Message: "HWID reset"})
}

// ToggleStatus handles POST /toggle-status/{key}.
func (h *LicenseHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	status, err := h.service.ToggleStatus(r.Context(), key)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, StatusResponse{Status: "success", Message: "License status set to " + status})
}

// List handles GET /licenses.
func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListAll(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, ListResponse{Licenses: records})
}

// renderError maps service errors onto the API error taxonomy. Domain
// rejections keep their reason codes; anything unrecognized is a store
// fault surfaced as 503.
func (h *LicenseHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var api *apierrors.APIError
	switch {
	case errors.Is(err, license.ErrInvalidRequest):
		api = apierrors.ErrInvalidRequest
	case errors.Is(err, license.ErrKeyNotFound):
		api = apierrors.ErrKeyNotFound
	case errors.Is(err, license.ErrLicenseInactive):
		api = apierrors.ErrLicenseInactive
	case errors.Is(err, license.ErrLicenseExpired):
		api = apierrors.ErrLicenseExpired
	case errors.Is(err, license.ErrHWIDMismatch):
		api = apierrors.ErrHWIDMismatch
	default:
		h.logger.ErrorContext(r.Context(), "store operation failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path))
		api = apierrors.ErrStoreUnavailable
	}
	render.Render(w, r, api)
}
