package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"picta/internal/recommend"
	"picta/internal/store"
)

// PhotoReader reads photo rows. Satisfied by *store.Store.
type PhotoReader interface {
	GetInfo(ctx context.Context, id int64) (*store.Photo, error)
	Count(ctx context.Context) (int, error)
}

// Recommending serves per-photo neighbor sets. Satisfied by
// *recommend.Recommender.
type Recommending interface {
	Recommendations(ctx context.Context, id int64, k int) (*recommend.Recommendations, error)
}

// PhotosHandler serves photo metadata and recommendations.
type PhotosHandler struct {
	store       PhotoReader
	recommender Recommending
	logger      *zap.Logger
}

func NewPhotosHandler(st PhotoReader, rec Recommending, logger *zap.Logger) *PhotosHandler {
	return &PhotosHandler{store: st, recommender: rec, logger: logger}
}

func photoID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Get handles GET /api/photos/{id}.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := photoID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_query", "invalid photo id")
		return
	}

	p, err := h.store.GetInfo(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

const defaultRecommendK = 5

// Recommendations handles GET /api/photos/{id}/recommendations.
func (h *PhotosHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	id, ok := photoID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_query", "invalid photo id")
		return
	}

	k := defaultRecommendK
	if v, err := strconv.Atoi(r.URL.Query().Get("k")); err == nil && v > 0 {
		k = v
	}

	recs, err := h.recommender.Recommendations(r.Context(), id, k)
	if err != nil {
		h.logger.Warn("recommendations failed", zap.Int64("photo_id", id), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}
