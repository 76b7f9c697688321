// Package recommend serves neighbor-set queries for a reference photo
// and K-means auto-albums over the whole corpus.
package recommend

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"picta/internal/index"
	"picta/internal/store"
)

const (
	// DefaultRadiusKm bounds the "same place" lookup.
	DefaultRadiusKm = 1.0

	// kmPerDegreeLat converts a radius to a latitude span; longitude is
	// additionally scaled by cos(lat).
	kmPerDegreeLat = 111.0
)

// Item is one recommended photo. Similarity is set only for the
// visual neighbor set.
type Item struct {
	ID           int64    `json:"id"`
	SourceRef    string   `json:"source_ref"`
	TakenAt      *string  `json:"taken_at,omitempty"`
	LocationName *string  `json:"location_name,omitempty"`
	GPSLat       *float64 `json:"gps_lat,omitempty"`
	GPSLon       *float64 `json:"gps_lon,omitempty"`
	Similarity   float64  `json:"similarity,omitempty"`
}

// Recommendations bundles the three neighbor sets for one photo.
type Recommendations struct {
	SimilarVisual []Item `json:"similar_visual"`
	SameLocation  []Item `json:"same_location"`
	SameDay       []Item `json:"same_day"`
}

// VectorIndex is the slice of the ANN index the recommender uses.
type VectorIndex interface {
	Search(q []float32, k int) ([]index.Result, error)
	Vector(id int64) []float32
	All() ([]int64, [][]float32)
}

// Store is the subset of the embedding store the recommender reads.
type Store interface {
	Get(ctx context.Context, id int64) (*store.Photo, error)
	GetInfo(ctx context.Context, id int64) (*store.Photo, error)
	InBoundingBox(ctx context.Context, excludeID int64, latMin, latMax, lonMin, lonMax float64, limit int) ([]store.Photo, error)
	ByLocationSubstring(ctx context.Context, excludeID int64, name string, limit int) ([]store.Photo, error)
	ByTakenAtRange(ctx context.Context, excludeID int64, start, end string, limit int) ([]store.Photo, error)
}

// Recommender answers per-photo neighbor queries.
type Recommender struct {
	store  Store
	index  VectorIndex
	logger *zap.Logger
}

func New(st Store, idx VectorIndex, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{store: st, index: idx, logger: logger}
}

// FindSimilarVisual returns the k visually closest photos to the
// reference, never including the reference itself.
func (r *Recommender) FindSimilarVisual(ctx context.Context, id int64, k int) ([]Item, error) {
	vec := r.index.Vector(id)
	if vec == nil {
		// Not in the current snapshot; fall back to the stored row.
		p, err := r.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		vec = p.Embedding
	}
	if len(vec) == 0 {
		return nil, nil
	}

	hits, err := r.index.Search(vec, k+1)
	if err != nil {
		return nil, fmt.Errorf("similar visual for %d: %w", id, err)
	}

	items := make([]Item, 0, k)
	for _, h := range hits {
		if h.ID == id {
			continue
		}
		p, err := r.store.GetInfo(ctx, h.ID)
		if err != nil {
			r.logger.Warn("skipping unreadable neighbor", zap.Int64("photo_id", h.ID), zap.Error(err))
			continue
		}
		items = append(items, itemFrom(p, h.Score))
		if len(items) >= k {
			break
		}
	}
	return items, nil
}

// FindSameLocation returns photos taken near the reference: a GPS
// bounding box when coordinates exist, otherwise a substring match on
// the primary segment of the location name.
func (r *Recommender) FindSameLocation(ctx context.Context, id int64, k int, radiusKm float64) ([]Item, error) {
	p, err := r.store.GetInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	var photos []store.Photo
	switch {
	case p.GPSLat != nil && p.GPSLon != nil:
		latRange := radiusKm / kmPerDegreeLat
		lonRange := radiusKm / (kmPerDegreeLat * math.Abs(math.Cos(*p.GPSLat*math.Pi/180)))
		photos, err = r.store.InBoundingBox(ctx, id,
			*p.GPSLat-latRange, *p.GPSLat+latRange,
			*p.GPSLon-lonRange, *p.GPSLon+lonRange, k)

	case p.LocationName != nil && *p.LocationName != "":
		primary := strings.TrimSpace(strings.SplitN(*p.LocationName, ",", 2)[0])
		photos, err = r.store.ByLocationSubstring(ctx, id, primary, k)

	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return itemsFrom(photos), nil
}

// FindSameDay returns photos taken within d days of the reference,
// ordered ascending by taken_at.
func (r *Recommender) FindSameDay(ctx context.Context, id int64, k, d int) ([]Item, error) {
	p, err := r.store.GetInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.TakenAt == nil || len(*p.TakenAt) < 10 {
		return nil, nil
	}

	base, err := time.Parse("2006-01-02", (*p.TakenAt)[:10])
	if err != nil {
		return nil, nil
	}
	start := base.AddDate(0, 0, -d).Format("2006-01-02")
	end := base.AddDate(0, 0, d+1).Format("2006-01-02")

	photos, err := r.store.ByTakenAtRange(ctx, id, start, end, k)
	if err != nil {
		return nil, err
	}
	return itemsFrom(photos), nil
}

// Recommendations bundles the three neighbor sets. Each set degrades
// independently; an error in one aborts the call.
func (r *Recommender) Recommendations(ctx context.Context, id int64, k int) (*Recommendations, error) {
	visual, err := r.FindSimilarVisual(ctx, id, k)
	if err != nil {
		return nil, err
	}
	location, err := r.FindSameLocation(ctx, id, k, DefaultRadiusKm)
	if err != nil {
		return nil, err
	}
	day, err := r.FindSameDay(ctx, id, k, 0)
	if err != nil {
		return nil, err
	}
	return &Recommendations{SimilarVisual: visual, SameLocation: location, SameDay: day}, nil
}

// Albums clusters the indexed corpus into n visual groups. Returns an
// empty map when the corpus is smaller than n.
func (r *Recommender) Albums(n int) map[int][]int64 {
	ids, vecs := r.index.All()
	if n <= 0 || len(ids) < n {
		return map[int][]int64{}
	}

	labels := kmeansAssign(vecs, n)
	clusters := make(map[int][]int64, n)
	for i, label := range labels {
		clusters[label] = append(clusters[label], ids[i])
	}
	return clusters
}

func itemFrom(p *store.Photo, similarity float64) Item {
	return Item{
		ID:           p.ID,
		SourceRef:    p.SourceRef,
		TakenAt:      p.TakenAt,
		LocationName: p.LocationName,
		GPSLat:       p.GPSLat,
		GPSLon:       p.GPSLon,
		Similarity:   similarity,
	}
}

func itemsFrom(photos []store.Photo) []Item {
	items := make([]Item, 0, len(photos))
	for i := range photos {
		items = append(items, itemFrom(&photos[i], 0))
	}
	return items
}
