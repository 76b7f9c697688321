package index

import (
	"context"
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// sliceSource is an in-memory VectorSource for tests. A zero dim means
// the source does not know the corpus dimension.
type sliceSource struct {
	dim  int
	ids  []int64
	vecs [][]float32
}

func (s *sliceSource) Dim() int { return s.dim }

func (s *sliceSource) ScanEmbeddings(ctx context.Context, fn func(int64, []float32) error) error {
	for i, id := range s.ids {
		if err := fn(id, s.vecs[i]); err != nil {
			return err
		}
	}
	return nil
}

// axisVec returns a unit vector along the given axis.
func axisVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// mixVec returns a normalized blend of two axes.
func mixVec(dim, a, b int, wa, wb float32) []float32 {
	v := make([]float32, dim)
	v[a] = wa
	v[b] = wb
	Normalize(v)
	return v
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestRebuildSkipsInvalidRows(t *testing.T) {
	src := &sliceSource{
		ids: []int64{1, 2, 3, 4},
		vecs: [][]float32{
			axisVec(4, 0),
			{1, 0}, // wrong dimension
			{3, 4, 0, 0}, // norm 5, not unit
			axisVec(4, 1),
		},
	}

	ix := New(zap.NewNop())
	if err := ix.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if ix.Size() != 2 {
		t.Errorf("Size = %d, want 2", ix.Size())
	}
	if ix.Vector(3) != nil {
		t.Error("non-unit-norm vector should not be indexed")
	}
}

// A truncated blob on the lowest id must not become the dimension
// anchor: when the source knows the corpus dimension, only the bad row
// is skipped and every valid row is indexed.
func TestRebuildAnchorsDimToSource(t *testing.T) {
	src := &sliceSource{
		dim: 4,
		ids: []int64{1, 2, 3},
		vecs: [][]float32{
			{1, 0}, // truncated row, decodes cleanly but short
			axisVec(4, 0),
			axisVec(4, 2),
		},
	}

	ix := New(zap.NewNop())
	if err := ix.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if ix.Size() != 2 {
		t.Errorf("Size = %d, want 2", ix.Size())
	}
	if ix.Dim() != 4 {
		t.Errorf("Dim = %d, want 4", ix.Dim())
	}
	if ix.Vector(1) != nil {
		t.Error("truncated row should not be indexed")
	}
	if ix.Vector(2) == nil || ix.Vector(3) == nil {
		t.Error("valid rows should be indexed")
	}
}

func TestSearchOrderingAndScores(t *testing.T) {
	dim := 8
	src := &sliceSource{
		ids: []int64{10, 20, 30},
		vecs: [][]float32{
			axisVec(dim, 0),
			mixVec(dim, 0, 1, 1, 1), // cos 0.707 to axis 0
			axisVec(dim, 1),         // cos 0 to axis 0
		},
	}

	ix := New(zap.NewNop())
	if err := ix.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	results, err := ix.Search(axisVec(dim, 0), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	wantIDs := []int64{10, 20, 30}
	for i, r := range results {
		if r.ID != wantIDs[i] {
			t.Errorf("result[%d].ID = %d, want %d", i, r.ID, wantIDs[i])
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not monotonically non-increasing at %d", i)
		}
	}
	for _, r := range results {
		if r.Score < -1 || r.Score > 1 {
			t.Errorf("score %f out of [-1, 1]", r.Score)
		}
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	src := &sliceSource{ids: []int64{1}, vecs: [][]float32{axisVec(4, 0)}}
	ix := New(zap.NewNop())
	if err := ix.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if _, err := ix.Search(axisVec(8, 0), 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New(zap.NewNop())
	results, err := ix.Search(axisVec(4, 0), 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
}

// Searches against a stable vector set must not be disturbed by a
// concurrent rebuild over the same vectors.
func TestSearchDuringRebuild(t *testing.T) {
	dim := 16
	src := &sliceSource{}
	for i := range 32 {
		src.ids = append(src.ids, int64(i+1))
		src.vecs = append(src.vecs, mixVec(dim, i%dim, (i+1)%dim, 1, 0.25))
	}

	ix := New(zap.NewNop())
	if err := ix.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	q := src.vecs[0]
	baseline, err := ix.Search(q, 1)
	if err != nil || len(baseline) == 0 {
		t.Fatalf("baseline search failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 5 {
			_ = ix.Rebuild(context.Background(), src)
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			got, err := ix.Search(q, 1)
			if err != nil {
				t.Errorf("Search during rebuild: %v", err)
				return
			}
			if len(got) == 0 || got[0].ID != baseline[0].ID {
				t.Errorf("top-1 changed during rebuild: %v", got)
				return
			}
		}
	}()
	wg.Wait()
}
