package search

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"picta/internal/queryparser"
	"picta/internal/store"
)

const earthRadiusKm = 6371.0

// haversineKm computes the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// metadataStore is the slice of the store the filter needs.
type metadataStore interface {
	IDsByTimeRange(ctx context.Context, start, end string) ([]int64, error)
	GPSPoints(ctx context.Context, ids []int64) ([]store.GPSPoint, error)
	IDsByLocationVariants(ctx context.Context, ids []int64, variants []string) ([]int64, error)
}

// Filter evaluates the structural predicates of a query plan.
type Filter struct {
	store  metadataStore
	logger *zap.Logger
}

func NewFilter(st metadataStore, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{store: st, logger: logger}
}

// Time returns the ids whose taken_at satisfies the range. With no
// bounds set this is the full corpus.
func (f *Filter) Time(ctx context.Context, tr queryparser.TimeRange) ([]int64, error) {
	return f.store.IDsByTimeRange(ctx, tr.Start, tr.End)
}

// Location narrows candidates to the hybrid union of two disjoint
// subsets: photos with GPS inside the radius, and photos without GPS
// whose location_name matches a name variant.
func (f *Filter) Location(ctx context.Context, candidates []int64, loc *queryparser.PlanLocation) ([]int64, error) {
	if len(candidates) == 0 || loc == nil {
		return nil, nil
	}

	var gpsHits []int64
	if loc.Coords != nil {
		points, err := f.store.GPSPoints(ctx, candidates)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if haversineKm(loc.Coords.Lat, loc.Coords.Lon, p.Lat, p.Lon) <= loc.Coords.RadiusKm {
				gpsHits = append(gpsHits, p.ID)
			}
		}
	}

	nameHits, err := f.store.IDsByLocationVariants(ctx, candidates, locationVariants(loc.Names))
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(gpsHits)+len(nameHits))
	var combined []int64
	for _, id := range gpsHits {
		if !seen[id] {
			seen[id] = true
			combined = append(combined, id)
		}
	}
	for _, id := range nameHits {
		if !seen[id] {
			seen[id] = true
			combined = append(combined, id)
		}
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i] < combined[j] })

	f.logger.Debug("location filter",
		zap.Int("gps", len(gpsHits)), zap.Int("name", len(nameHits)), zap.Int("combined", len(combined)))
	return combined, nil
}
