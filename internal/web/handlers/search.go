package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"picta/internal/search"
)

// Searcher answers free-text queries. Satisfied by *search.Engine.
type Searcher interface {
	Search(ctx context.Context, utterance string, k int) ([]search.Result, error)
}

// SearchHandler serves the natural-language search endpoint.
type SearchHandler struct {
	engine Searcher
	logger *zap.Logger
}

func NewSearchHandler(engine Searcher, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{engine: engine, logger: logger}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// Search handles POST /api/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "invalid_query", "query is required")
		return
	}

	results, err := h.engine.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		h.logger.Warn("search failed", zap.String("query", req.Query), zap.Error(err))
		respondDomainError(w, err)
		return
	}

	if results == nil {
		results = []search.Result{}
	}
	respondJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}
