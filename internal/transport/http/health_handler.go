package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"keygate/internal/infrastructure"
	"keygate/internal/store"
)

// HealthHandler reports process liveness and store connectivity.
type HealthHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(st store.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  st,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /healthz. The store is pinged with a short
// deadline; an unreachable store degrades the response to 503 since the
// service cannot validate licenses without it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Store:     "ok",
		Version:   infrastructure.ServiceVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "store ping failed", slog.String("error", err.Error()))
		resp.Status = "degraded"
		resp.Store = "unreachable"
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, resp)
}
