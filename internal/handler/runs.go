package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/middleware"
	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/internal/service"
	"github.com/yorozuya/autochat/pkg/logger"
)

// RunTrigger starts a scheduler run unless one is already in flight.
type RunTrigger interface {
	TryRun(ctx context.Context) (*model.RunSummary, error)
}

// RunHandler handles on-demand scheduler runs.
type RunHandler struct {
	runner RunTrigger
	log    *logger.Logger
}

// NewRunHandler creates a new run handler. A nil logger uses the global one.
func NewRunHandler(runner RunTrigger, log *logger.Logger) *RunHandler {
	if log == nil {
		log = logger.Global()
	}
	return &RunHandler{runner: runner, log: log}
}

// Trigger handles POST /api/v1/runs
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	// The run outlives a disconnected client.
	summary, err := h.runner.TryRun(context.WithoutCancel(r.Context()))
	if errors.Is(err, service.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	if err != nil {
		h.log.Error("run failed",
			zap.Error(err),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
