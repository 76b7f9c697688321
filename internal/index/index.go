// Package index maintains the in-memory ANN index over all stored
// photo embeddings. Each rebuild produces an immutable snapshot that is
// published with a single pointer swap, so readers are never blocked
// and in-flight searches keep a consistent view.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/coder/hnsw"
	"go.uber.org/zap"
)

// MaxNeighbors (M) is the maximum number of neighbors per HNSW node.
// Higher values improve recall but increase memory and build time.
const MaxNeighbors = 16

// normTolerance bounds how far a stored vector's L2 norm may drift
// from 1 before the row is considered corrupt.
const normTolerance = 1e-3

// ErrDimensionMismatch indicates a query vector whose length differs
// from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorSource streams stored embeddings, typically backed by the store.
// Dim reports the corpus vector dimension, or 0 when unknown.
type VectorSource interface {
	Dim() int
	ScanEmbeddings(ctx context.Context, fn func(id int64, embedding []float32) error) error
}

// Result is one neighbor with its cosine similarity.
type Result struct {
	ID    int64
	Score float64
}

// snapshot is an immutable build of the index. Never mutated after
// publication.
type snapshot struct {
	graph   *hnsw.Graph[int64]
	vectors map[int64][]float32
	dim     int
}

// Index is the live ANN index. Search is safe for concurrent use;
// Rebuild is serialized against itself.
type Index struct {
	snap      atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
	logger    *zap.Logger
}

// New creates an empty index. Call Rebuild to populate it.
func New(logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{logger: logger}
}

// Rebuild scans the source, validates every row, builds a fresh graph
// and atomically swaps it in. The previous snapshot keeps serving
// reads until the swap. Rows with a wrong-length or non-unit-norm
// embedding are skipped with a warning. The dimension is anchored to
// the source's corpus dimension when it knows one, so a corrupt early
// row cannot cause every later row to be skipped.
func (ix *Index) Rebuild(ctx context.Context, src VectorSource) error {
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()

	g := hnsw.NewGraph[int64]()
	g.M = MaxNeighbors
	g.Ml = 1.0 / float64(MaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.CosineDistance

	vectors := make(map[int64][]float32)
	dim := src.Dim()
	skipped := 0

	err := src.ScanEmbeddings(ctx, func(id int64, emb []float32) error {
		if dim == 0 {
			dim = len(emb)
		}
		if len(emb) != dim {
			skipped++
			ix.logger.Warn("skipping embedding with wrong dimension",
				zap.Int64("photo_id", id), zap.Int("got", len(emb)), zap.Int("want", dim))
			return nil
		}
		if n := Norm(emb); math.Abs(n-1) > normTolerance {
			skipped++
			ix.logger.Warn("skipping embedding with non-unit norm",
				zap.Int64("photo_id", id), zap.Float64("norm", n))
			return nil
		}
		v := make([]float32, len(emb))
		copy(v, emb)
		Normalize(v) // defensive: exact unit norm for inner-product scores
		g.Add(hnsw.MakeNode(id, v))
		vectors[id] = v
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	next := &snapshot{vectors: vectors, dim: dim}
	if len(vectors) > 0 {
		next.graph = g
	}
	ix.snap.Store(next)

	ix.logger.Info("index rebuilt",
		zap.Int("vectors", len(vectors)), zap.Int("dim", dim), zap.Int("skipped", skipped))
	return nil
}

// Search returns up to k neighbors of q sorted by descending cosine
// similarity, ties broken by ascending id. q is assumed unit norm.
func (ix *Index) Search(q []float32, k int) ([]Result, error) {
	snap := ix.snap.Load()
	if snap == nil || snap.graph == nil {
		return nil, nil
	}
	if len(q) != snap.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), snap.dim)
	}

	neighbors := snap.graph.Search(q, k)

	results := make([]Result, 0, len(neighbors))
	for _, n := range neighbors {
		vec, ok := snap.vectors[n.Key]
		if !ok {
			continue
		}
		results = append(results, Result{ID: n.Key, Score: CosineSimilarity(q, vec)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// Vector returns the indexed vector for a photo id, or nil if the id
// is not in the current snapshot. The returned slice must not be
// modified.
func (ix *Index) Vector(id int64) []float32 {
	snap := ix.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.vectors[id]
}

// Size returns the number of indexed vectors.
func (ix *Index) Size() int {
	snap := ix.snap.Load()
	if snap == nil {
		return 0
	}
	return len(snap.vectors)
}

// Dim returns the dimension of the current snapshot, or 0 when empty.
func (ix *Index) Dim() int {
	snap := ix.snap.Load()
	if snap == nil {
		return 0
	}
	return snap.dim
}

// All returns the ids and vectors of the current snapshot, for
// clustering. The vectors are shared with the snapshot and must not be
// modified.
func (ix *Index) All() ([]int64, [][]float32) {
	snap := ix.snap.Load()
	if snap == nil {
		return nil, nil
	}
	ids := make([]int64, 0, len(snap.vectors))
	vecs := make([][]float32, 0, len(snap.vectors))
	for id := range snap.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		vecs = append(vecs, snap.vectors[id])
	}
	return ids, vecs
}
