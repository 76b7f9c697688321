package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"picta/internal/geocode"
	"picta/internal/index"
	"picta/internal/queryparser"
	"picta/internal/store"
)

type fakePlanner struct {
	plan *queryparser.QueryPlan
	err  error
}

func (f *fakePlanner) Parse(ctx context.Context, utterance string) (*queryparser.QueryPlan, error) {
	return f.plan, f.err
}

type fakeEncoder struct {
	vec []float32
	err error
}

func (f *fakeEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeANN struct {
	hits []index.Result
}

func (f *fakeANN) Search(q []float32, k int) ([]index.Result, error) {
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "corpus.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

type photoSpec struct {
	ref      string
	takenAt  string
	lat, lon float64
	hasGPS   bool
	location string
}

func seedPhotos(t *testing.T, s *store.Store, specs []photoSpec) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(specs))
	for i, spec := range specs {
		p := store.PutParams{
			SourceRef: spec.ref,
			Embedding: unitVec(8, i%8),
		}
		if spec.takenAt != "" {
			p.TakenAt = strPtr(spec.takenAt)
		}
		if spec.hasGPS {
			p.GPSLat = f64Ptr(spec.lat)
			p.GPSLon = f64Ptr(spec.lon)
		}
		if spec.location != "" {
			p.LocationName = strPtr(spec.location)
		}
		id, err := s.Put(context.Background(), p)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestSearchLocationOnlyBranch(t *testing.T) {
	s := newTestStore(t)
	ids := seedPhotos(t, s, []photoSpec{
		{ref: "a", takenAt: "2024-05-01 10:00:00", location: "제주특별자치도 제주시"},
		{ref: "b", takenAt: "2024-05-03 10:00:00", location: "제주도 서귀포"},
		{ref: "c", takenAt: "2024-05-02 10:00:00", location: "서울특별시"},
	})

	planner := &fakePlanner{plan: &queryparser.QueryPlan{
		Location: &queryparser.PlanLocation{Names: []string{"제주", "Jeju"}},
		Keywords: []string{"여행", "사진"},
	}}

	e := NewEngine(s, &fakeANN{}, &fakeEncoder{}, planner, zap.NewNop())
	results, err := e.Search(context.Background(), "제주 여행 사진", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	// Newest first, all with similarity 1.0.
	require.Equal(t, ids[1], results[0].ID)
	require.Equal(t, ids[0], results[1].ID)
	for _, r := range results {
		require.Equal(t, 1.0, r.Similarity)
	}
}

func TestSearchSemanticBranchWithTimeFilter(t *testing.T) {
	s := newTestStore(t)
	ids := seedPhotos(t, s, []photoSpec{
		{ref: "summer-pasta", takenAt: "2024-07-10 12:00:00"},
		{ref: "winter-pasta", takenAt: "2024-12-25 12:00:00"},
		{ref: "summer-beach", takenAt: "2024-08-01 12:00:00"},
	})

	planner := &fakePlanner{plan: &queryparser.QueryPlan{
		TimeRange:  queryparser.TimeRange{Start: "2024-06-01", End: "2024-08-31"},
		SearchText: "pasta italian food",
		Keywords:   []string{"파스타"},
	}}
	ann := &fakeANN{hits: []index.Result{
		{ID: ids[1], Score: 0.45}, // outside the time range
		{ID: ids[0], Score: 0.31},
		{ID: ids[2], Score: 0.15},
	}}

	e := NewEngine(s, ann, &fakeEncoder{vec: unitVec(8, 0)}, planner, zap.NewNop())
	results, err := e.Search(context.Background(), "작년 여름 파스타", 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Equal(t, ids[0], results[0].ID)
	require.InDelta(t, 0.31, results[0].Similarity, 1e-9)
}

func TestSearchTopOneRescue(t *testing.T) {
	s := newTestStore(t)
	ids := seedPhotos(t, s, []photoSpec{
		{ref: "a", takenAt: "2024-07-10 12:00:00"},
		{ref: "b", takenAt: "2024-07-11 12:00:00"},
	})

	planner := &fakePlanner{plan: &queryparser.QueryPlan{SearchText: "red umbrella"}}
	ann := &fakeANN{hits: []index.Result{
		{ID: ids[0], Score: 0.22}, // below default tau 0.26, above rescue floor
		{ID: ids[1], Score: 0.10},
	}}

	e := NewEngine(s, ann, &fakeEncoder{vec: unitVec(8, 0)}, planner, zap.NewNop())
	results, err := e.Search(context.Background(), "red umbrella", 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Equal(t, ids[0], results[0].ID)
}

func TestSearchNoRescueBelowFloor(t *testing.T) {
	s := newTestStore(t)
	ids := seedPhotos(t, s, []photoSpec{{ref: "a", takenAt: "2024-07-10 12:00:00"}})

	planner := &fakePlanner{plan: &queryparser.QueryPlan{SearchText: "purple dragon"}}
	ann := &fakeANN{hits: []index.Result{{ID: ids[0], Score: 0.12}}}

	e := NewEngine(s, ann, &fakeEncoder{vec: unitVec(8, 0)}, planner, zap.NewNop())
	results, err := e.Search(context.Background(), "purple dragon", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchDateOnlyBranch(t *testing.T) {
	s := newTestStore(t)
	ids := seedPhotos(t, s, []photoSpec{
		{ref: "a", takenAt: "2024-07-10 12:00:00"},
		{ref: "b", takenAt: "2024-07-11 12:00:00"},
		{ref: "c", takenAt: "2024-12-01 12:00:00"},
	})

	planner := &fakePlanner{plan: &queryparser.QueryPlan{
		TimeRange: queryparser.TimeRange{Start: "2024-07-01", End: "2024-07-31"},
	}}

	e := NewEngine(s, &fakeANN{}, &fakeEncoder{}, planner, zap.NewNop())
	results, err := e.Search(context.Background(), "7월", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	require.Equal(t, ids[0], results[0].ID)
	require.Equal(t, ids[1], results[1].ID)
	for _, r := range results {
		require.Equal(t, 0.0, r.Similarity)
	}
}

func TestSearchPeopleFilter(t *testing.T) {
	s := newTestStore(t)
	ids := seedPhotos(t, s, []photoSpec{
		{ref: "with-mom", takenAt: "2024-07-10 12:00:00"},
		{ref: "alone", takenAt: "2024-07-11 12:00:00"},
	})
	require.NoError(t, s.PutFace(context.Background(), ids[0], store.Face{PersonName: "엄마", Confidence: 0.9}))

	planner := &fakePlanner{plan: &queryparser.QueryPlan{
		TimeRange: queryparser.TimeRange{Start: "2024-07-01", End: "2024-07-31"},
		People:    []string{"엄마"},
	}}

	e := NewEngine(s, &fakeANN{}, &fakeEncoder{}, planner, zap.NewNop())
	results, err := e.Search(context.Background(), "엄마랑 7월", 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Equal(t, ids[0], results[0].ID)
}

func TestSearchNameOnlyLocationFallback(t *testing.T) {
	// A geocoder failure leaves names without coordinates; the location
	// filter still matches by name variants.
	s := newTestStore(t)
	seedPhotos(t, s, []photoSpec{
		{ref: "gwangalli", takenAt: "2024-07-10 19:00:00", location: "부산 광안리해수욕장"},
		{ref: "elsewhere", takenAt: "2024-07-11 12:00:00", location: "강릉"},
	})

	// 노을 is a meaningful keyword, so this goes through the semantic
	// branch restricted to the name-matched candidate set.
	planner := &fakePlanner{plan: &queryparser.QueryPlan{
		Location:   &queryparser.PlanLocation{Names: []string{"광안리", "Gwangalli"}},
		Keywords:   []string{"광안리", "노을"},
		SearchText: "sunset over the beach",
	}}
	ann := &fakeANN{hits: []index.Result{{ID: 1, Score: 0.40}, {ID: 2, Score: 0.38}}}
	e := NewEngine(s, ann, &fakeEncoder{vec: unitVec(8, 0)}, planner, zap.NewNop())

	results, err := e.Search(context.Background(), "광안리 노을", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "gwangalli", results[0].SourceRef)
}

func TestSearchParserErrorPropagates(t *testing.T) {
	s := newTestStore(t)
	planner := &fakePlanner{err: queryparser.ErrInvalidQuery}

	e := NewEngine(s, &fakeANN{}, &fakeEncoder{}, planner, zap.NewNop())
	_, err := e.Search(context.Background(), "", 10)
	require.ErrorIs(t, err, queryparser.ErrInvalidQuery)
}

func TestSearchEncoderErrorPropagates(t *testing.T) {
	s := newTestStore(t)
	seedPhotos(t, s, []photoSpec{{ref: "a", takenAt: "2024-07-10 12:00:00"}})

	planner := &fakePlanner{plan: &queryparser.QueryPlan{SearchText: "anything"}}
	encErr := errors.New("model not loaded")

	e := NewEngine(s, &fakeANN{}, &fakeEncoder{err: encErr}, planner, zap.NewNop())
	_, err := e.Search(context.Background(), "anything", 10)
	require.ErrorIs(t, err, encErr)
}

func TestFilterLocationHybridUnion(t *testing.T) {
	s := newTestStore(t)
	ids := seedPhotos(t, s, []photoSpec{
		{ref: "gps-close", hasGPS: true, lat: 33.4996, lon: 126.5312},
		{ref: "gps-far", hasGPS: true, lat: 37.5665, lon: 126.9780},
		{ref: "name-match", location: "제주도 애월읍"},
		{ref: "no-signal"},
	})

	f := NewFilter(s, zap.NewNop())
	loc := &queryparser.PlanLocation{
		Names:  []string{"제주", "Jeju"},
		Coords: &geocode.Location{Lat: 33.4996, Lon: 126.5312, RadiusKm: 5},
	}

	got, err := f.Location(context.Background(), ids, loc)
	require.NoError(t, err)
	require.Equal(t, []int64{ids[0], ids[2]}, got)
}

func TestFilterLocationEmptyCandidates(t *testing.T) {
	s := newTestStore(t)
	f := NewFilter(s, zap.NewNop())

	got, err := f.Location(context.Background(), nil, &queryparser.PlanLocation{Names: []string{"제주"}})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestHaversineKm(t *testing.T) {
	// Seoul to Busan is roughly 325 km.
	d := haversineKm(37.5665, 126.9780, 35.1796, 129.0756)
	require.InDelta(t, 325, d, 15)

	require.InDelta(t, 0, haversineKm(33.5, 126.5, 33.5, 126.5), 1e-9)
}

func TestHaversineKmMetricProperties(t *testing.T) {
	type point struct{ lat, lon float64 }
	seoul := point{37.5665, 126.9780}
	busan := point{35.1796, 129.0756}
	jeju := point{33.4996, 126.5312}
	tokyo := point{35.6762, 139.6503}
	newYork := point{40.7128, -74.0060}
	sydney := point{-33.8688, 151.2093}
	dateline := point{0.1, 179.9}

	triples := []struct {
		name    string
		a, b, c point
	}{
		{"korean peninsula", seoul, busan, jeju},
		{"across hemispheres", newYork, tokyo, sydney},
		{"antimeridian", dateline, tokyo, busan},
	}

	for _, tc := range triples {
		t.Run(tc.name, func(t *testing.T) {
			ab := haversineKm(tc.a.lat, tc.a.lon, tc.b.lat, tc.b.lon)
			ba := haversineKm(tc.b.lat, tc.b.lon, tc.a.lat, tc.a.lon)
			require.InDelta(t, ab, ba, 1e-6, "distance must be symmetric")

			bc := haversineKm(tc.b.lat, tc.b.lon, tc.c.lat, tc.c.lon)
			ac := haversineKm(tc.a.lat, tc.a.lon, tc.c.lat, tc.c.lon)
			require.LessOrEqual(t, ac, ab+bc+1e-6, "triangle inequality")

			require.GreaterOrEqual(t, ab, 0.0)
		})
	}
}
