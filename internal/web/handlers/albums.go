package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Clusterer groups the corpus into visual albums. Satisfied by
// *recommend.Recommender.
type Clusterer interface {
	Albums(n int) map[int][]int64
}

// AlbumsHandler serves K-means auto-albums.
type AlbumsHandler struct {
	recommender Clusterer
	logger      *zap.Logger
}

func NewAlbumsHandler(rec Clusterer, logger *zap.Logger) *AlbumsHandler {
	return &AlbumsHandler{recommender: rec, logger: logger}
}

const defaultAlbumCount = 10

type albumResponse struct {
	ClusterID int     `json:"cluster_id"`
	PhotoIDs  []int64 `json:"photo_ids"`
}

// List handles GET /api/albums.
func (h *AlbumsHandler) List(w http.ResponseWriter, r *http.Request) {
	n := defaultAlbumCount
	if v, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && v > 0 {
		n = v
	}

	clusters := h.recommender.Albums(n)

	albums := make([]albumResponse, 0, len(clusters))
	for i := 0; i < n; i++ {
		if members, ok := clusters[i]; ok {
			albums = append(albums, albumResponse{ClusterID: i, PhotoIDs: members})
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"albums": albums})
}
