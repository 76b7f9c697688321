// Package indexer consumes source streams, embeds every image and
// writes it to the store, then triggers an index rebuild at the end of
// the batch.
package indexer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"picta/internal/index"
	"picta/internal/store"
)

const defaultWorkers = 4

// ImageEncoder embeds image bytes. Satisfied by *embed.Client.
type ImageEncoder interface {
	EncodeImage(ctx context.Context, imageData []byte) ([]float32, error)
}

// Rebuilder rebuilds the ANN index from the store. Satisfied by
// *index.Index.
type Rebuilder interface {
	Rebuild(ctx context.Context, src index.VectorSource) error
}

// Writer is the store surface the indexer needs.
type Writer interface {
	index.VectorSource
	Put(ctx context.Context, p store.PutParams) (int64, error)
}

// Stats summarizes one finished batch.
type Stats struct {
	BatchID string
	Indexed int
	Skipped int
}

// Indexer runs ingestion batches. One batch is active at a time.
type Indexer struct {
	store   Writer
	encoder ImageEncoder
	ann     Rebuilder
	workers int
	logger  *zap.Logger

	mu sync.Mutex // serializes batches
}

func New(st Writer, encoder ImageEncoder, ann Rebuilder, workers int, logger *zap.Logger) *Indexer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{store: st, encoder: encoder, ann: ann, workers: workers, logger: logger}
}

// IndexBatch drains the source, embedding images across a bounded
// worker pool. A failed item is logged and skipped; the batch keeps
// going. On success the ANN index is rebuilt from the store.
func (i *Indexer) IndexBatch(ctx context.Context, src Source) (*Stats, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	stats := &Stats{BatchID: uuid.NewString()}
	i.logger.Info("starting index batch",
		zap.String("batch_id", stats.BatchID),
		zap.String("source", src.Name()),
		zap.Int("workers", i.workers))

	items, err := src.Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening source %s: %w", src.Name(), err)
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Indexing photos (%d workers)", i.workers)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionSpinnerType(14),
	)

	semaphore := make(chan struct{}, i.workers)
	var wg sync.WaitGroup
	var statsMu sync.Mutex

	for item := range items {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(item Item) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := i.indexOne(ctx, item)

			statsMu.Lock()
			if err != nil {
				stats.Skipped++
			} else {
				stats.Indexed++
			}
			statsMu.Unlock()
			bar.Add(1)

			if err != nil {
				i.logger.Warn("skipping item",
					zap.String("source_ref", item.SourceRef), zap.Error(err))
			}
		}(item)
	}
	wg.Wait()
	fmt.Println()

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if err := i.ann.Rebuild(ctx, i.store); err != nil {
		return stats, fmt.Errorf("rebuilding index after batch %s: %w", stats.BatchID, err)
	}

	i.logger.Info("index batch finished",
		zap.String("batch_id", stats.BatchID),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (i *Indexer) indexOne(ctx context.Context, item Item) error {
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", item.Path, err)
	}

	emb, err := i.encoder.EncodeImage(ctx, data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", item.SourceRef, err)
	}

	_, err = i.store.Put(ctx, store.PutParams{
		SourceRef:    item.SourceRef,
		TakenAt:      item.TakenAt,
		GPSLat:       item.GPSLat,
		GPSLon:       item.GPSLon,
		LocationName: item.LocationName,
		Embedding:    emb,
		Metadata:     item.Metadata,
	})
	if err != nil {
		return fmt.Errorf("storing %s: %w", item.SourceRef, err)
	}

	if item.DeleteAfter {
		if err := os.Remove(item.Path); err != nil {
			i.logger.Warn("failed to remove scratch file",
				zap.String("path", item.Path), zap.Error(err))
		}
	}
	return nil
}
