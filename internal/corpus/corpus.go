// Package corpus wires one photo corpus together: the durable store,
// the in-memory ANN index and the services that read from them.
package corpus

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"picta/internal/config"
	"picta/internal/embed"
	"picta/internal/geocode"
	"picta/internal/index"
	"picta/internal/indexer"
	"picta/internal/queryparser"
	"picta/internal/recommend"
	"picta/internal/search"
	"picta/internal/store"
)

// Corpus is a handle on one logical photo corpus.
type Corpus struct {
	Store       *store.Store
	Index       *index.Index
	Embedder    *embed.Client
	Geocoder    *geocode.Geocoder
	Parser      *queryparser.Parser
	Engine      *search.Engine
	Recommender *recommend.Recommender
	Indexer     *indexer.Indexer

	logger *zap.Logger
}

// Open opens the corpus file and wires all services. The ANN index is
// rebuilt immediately when the config asks for it; otherwise the first
// caller that needs it triggers the build via EnsureIndex.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Corpus, error) {
	if cfg.Corpus.Path == "" {
		return nil, fmt.Errorf("corpus path not configured, set CORPUS_PATH")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(cfg.Corpus.Path, logger)
	if err != nil {
		return nil, err
	}

	ix := index.New(logger)
	embedder := embed.New(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dim)

	geocoder, err := geocode.New(cfg.Geocoder.URL, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	parser := queryparser.New(provider, geocoder, logger)

	c := &Corpus{
		Store:       st,
		Index:       ix,
		Embedder:    embedder,
		Geocoder:    geocoder,
		Parser:      parser,
		Engine:      search.NewEngine(st, ix, embedder, parser, logger),
		Recommender: recommend.New(st, ix, logger),
		Indexer:     indexer.New(st, embedder, ix, cfg.Indexer.Workers, logger),
		logger:      logger,
	}

	if cfg.Corpus.RebuildOnStart {
		if err := ix.Rebuild(ctx, st); err != nil {
			st.Close()
			return nil, err
		}
	}
	return c, nil
}

func newProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (queryparser.Provider, error) {
	switch {
	case cfg.OpenAI.Token != "":
		return queryparser.NewOpenAIProvider(cfg.OpenAI.Token), nil
	case cfg.Gemini.APIKey != "":
		return queryparser.NewGeminiProvider(ctx, cfg.Gemini.APIKey)
	default:
		logger.Info("no LLM credentials configured, using fallback query parser")
		return nil, nil
	}
}

// EnsureIndex builds the ANN index if it has not been built yet.
func (c *Corpus) EnsureIndex(ctx context.Context) error {
	if c.Index.Size() > 0 {
		return nil
	}
	return c.Index.Rebuild(ctx, c.Store)
}

// Close releases the corpus.
func (c *Corpus) Close() error {
	return c.Store.Close()
}
