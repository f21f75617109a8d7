package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/middleware"
	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/pkg/logger"
)

const (
	defaultOutcomeLimit = 20
	maxOutcomeLimit     = 200
)

// OutcomeReader reads recently published conversation outcomes.
type OutcomeReader interface {
	RecentOutcomes(ctx context.Context, shopID int64, limit int) ([]model.OutcomeEvent, error)
}

// OutcomeHandler serves per-shop outcome history.
type OutcomeHandler struct {
	reader OutcomeReader
	log    *logger.Logger
}

// NewOutcomeHandler creates a new outcome handler. A nil reader means the event stream is disabled.
// A nil logger uses the global one.
func NewOutcomeHandler(reader OutcomeReader, log *logger.Logger) *OutcomeHandler {
	if log == nil {
		log = logger.Global()
	}
	return &OutcomeHandler{reader: reader, log: log}
}

// List handles GET /api/v1/shops/{shopID}/outcomes
func (h *OutcomeHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "outcome stream is not configured")
		return
	}

	shopID, err := middleware.ParseShopID(chi.URLParam(r, "shopID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := middleware.ParseLimit(r.URL.Query().Get("limit"), defaultOutcomeLimit, maxOutcomeLimit)

	events, err := h.reader.RecentOutcomes(r.Context(), shopID, limit)
	if err != nil {
		h.log.Error("failed to read outcomes",
			zap.Error(err),
			zap.Int64("shop_id", shopID),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "failed to read outcomes")
		return
	}
	if events == nil {
		events = []model.OutcomeEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shop_id":  shopID,
		"outcomes": events,
	})
}
