package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"picta/internal/index"
	"picta/internal/store"
)

type sliceSource struct {
	items []Item
}

func (s *sliceSource) Name() string { return "test" }

func (s *sliceSource) Stream(ctx context.Context) (<-chan Item, error) {
	out := make(chan Item, len(s.items))
	for _, it := range s.items {
		out <- it
	}
	close(out)
	return out, nil
}

type stubEncoder struct {
	dim     int
	failRef map[string]bool
}

func (e *stubEncoder) EncodeImage(ctx context.Context, imageData []byte) ([]float32, error) {
	if e.failRef[string(imageData)] {
		return nil, errors.New("encoder rejected image")
	}
	v := make([]float32, e.dim)
	v[int(imageData[0])%e.dim] = 1
	return v, nil
}

func writeScratch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newBatchFixture(t *testing.T) (*store.Store, *index.Index) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "corpus.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, index.New(zap.NewNop())
}

func TestIndexBatch(t *testing.T) {
	s, ix := newBatchFixture(t)
	dir := t.TempDir()

	src := &sliceSource{items: []Item{
		{SourceRef: "a.jpg", Path: writeScratch(t, dir, "a.jpg", "a")},
		{SourceRef: "b.jpg", Path: writeScratch(t, dir, "b.jpg", "b")},
		{SourceRef: "c.jpg", Path: writeScratch(t, dir, "c.jpg", "c")},
	}}

	idx := New(s, &stubEncoder{dim: 8}, ix, 2, zap.NewNop())
	stats, err := idx.IndexBatch(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, 3, stats.Indexed)
	require.Equal(t, 0, stats.Skipped)
	require.NotEmpty(t, stats.BatchID)

	// Rebuild ran at end of batch.
	require.Equal(t, 3, ix.Size())

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestIndexBatchSkipsFailedItems(t *testing.T) {
	s, ix := newBatchFixture(t)
	dir := t.TempDir()

	src := &sliceSource{items: []Item{
		{SourceRef: "good.jpg", Path: writeScratch(t, dir, "good.jpg", "g")},
		{SourceRef: "bad.jpg", Path: writeScratch(t, dir, "bad.jpg", "x")},
		{SourceRef: "missing.jpg", Path: filepath.Join(dir, "does-not-exist.jpg")},
	}}

	enc := &stubEncoder{dim: 8, failRef: map[string]bool{"x": true}}
	idx := New(s, enc, ix, 2, zap.NewNop())
	stats, err := idx.IndexBatch(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, 1, stats.Indexed)
	require.Equal(t, 2, stats.Skipped)
	require.Equal(t, 1, ix.Size())
}

func TestIndexBatchRemovesScratchFiles(t *testing.T) {
	s, ix := newBatchFixture(t)
	dir := t.TempDir()

	scratch := writeScratch(t, dir, "scratch.jpg", "s")
	kept := writeScratch(t, dir, "kept.jpg", "k")

	src := &sliceSource{items: []Item{
		{SourceRef: "scratch.jpg", Path: scratch, DeleteAfter: true},
		{SourceRef: "kept.jpg", Path: kept},
	}}

	idx := New(s, &stubEncoder{dim: 8}, ix, 1, zap.NewNop())
	_, err := idx.IndexBatch(context.Background(), src)
	require.NoError(t, err)

	_, err = os.Stat(scratch)
	require.True(t, os.IsNotExist(err), "scratch file must be removed")
	_, err = os.Stat(kept)
	require.NoError(t, err)
}

func TestFilesystemSource(t *testing.T) {
	dir := t.TempDir()
	writeScratch(t, dir, "one.jpg", "1")
	writeScratch(t, dir, "two.PNG", "2")
	writeScratch(t, dir, "notes.txt", "skip me")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeScratch(t, filepath.Join(dir, "nested"), "three.jpeg", "3")

	src, err := NewFilesystemSource(dir)
	require.NoError(t, err)

	items, err := src.Stream(context.Background())
	require.NoError(t, err)

	refs := map[string]bool{}
	for item := range items {
		refs[item.SourceRef] = true
		require.NotNil(t, item.TakenAt)
	}

	require.Len(t, refs, 3)
	require.True(t, refs["one.jpg"])
	require.True(t, refs["two.PNG"])
	require.True(t, refs[filepath.Join("nested", "three.jpeg")])
}

func TestFilesystemSourceRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := writeScratch(t, dir, "plain.jpg", "x")

	_, err := NewFilesystemSource(file)
	require.Error(t, err)
}
