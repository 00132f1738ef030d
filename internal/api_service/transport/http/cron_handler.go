package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	requestapp "github.com/veripoint/identity-gateway/internal/request_service/app"
)

// CronHandler exposes the sweep trigger for the external scheduler.
// Runs behind CronAuth.
type CronHandler struct {
	sweeper *requestapp.Sweeper
	logger  *slog.Logger
}

func NewCronHandler(sweeper *requestapp.Sweeper, logger *slog.Logger) *CronHandler {
	return &CronHandler{
		sweeper: sweeper,
		logger:  logger.With("handler", "cron"),
	}
}

func (h *CronHandler) RegisterRoutes(r chi.Router) {
	r.Get("/process-pending", h.handleProcessPending)
}

func (h *CronHandler) handleProcessPending(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Sweep failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{Status: true, Data: report})
}
