package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// CorpusStats exposes the sizes the stats endpoint reports.
type CorpusStats interface {
	Count(ctx context.Context) (int, error)
}

// IndexStats exposes the live index dimensions.
type IndexStats interface {
	Size() int
	Dim() int
}

// StatsHandler serves corpus statistics.
type StatsHandler struct {
	store  CorpusStats
	index  IndexStats
	logger *zap.Logger
}

func NewStatsHandler(st CorpusStats, ix IndexStats, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{store: st, index: ix, logger: logger}
}

type statsResponse struct {
	Photos       int `json:"photos"`
	IndexedCount int `json:"indexed_count"`
	VectorDim    int `json:"vector_dim"`
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Warn("stats failed", zap.Error(err))
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, statsResponse{
		Photos:       count,
		IndexedCount: h.index.Size(),
		VectorDim:    h.index.Dim(),
	})
}
