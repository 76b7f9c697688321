// Package search orchestrates parser, metadata filter, ANN index and
// threshold policy into the hybrid retrieval pipeline.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"picta/internal/index"
	"picta/internal/queryparser"
	"picta/internal/store"
)

// annFanout is how many nearest neighbors the semantic branch pulls
// before restricting to the metadata candidate set.
const annFanout = 100

const defaultLimit = 10

// Planner lowers an utterance into a query plan.
type Planner interface {
	Parse(ctx context.Context, utterance string) (*queryparser.QueryPlan, error)
}

// TextEncoder embeds a search text. Satisfied by *embed.Client.
type TextEncoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

// ANN serves nearest-neighbor queries. Satisfied by *index.Index.
type ANN interface {
	Search(q []float32, k int) ([]index.Result, error)
}

// Store is the slice of the embedding store the engine reads and the
// history table it appends to.
type Store interface {
	metadataStore
	LatestFirst(ctx context.Context, ids []int64, limit int) ([]int64, error)
	PersonsFor(ctx context.Context, imageID int64) ([]string, error)
	GetInfo(ctx context.Context, id int64) (*store.Photo, error)
	SaveSearch(ctx context.Context, query, results string) error
}

// Engine answers free-text search queries.
type Engine struct {
	store   Store
	filter  *Filter
	ann     ANN
	encoder TextEncoder
	parser  Planner
	logger  *zap.Logger
}

func NewEngine(st Store, ann ANN, encoder TextEncoder, parser Planner, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   st,
		filter:  NewFilter(st, logger),
		ann:     ann,
		encoder: encoder,
		parser:  parser,
		logger:  logger,
	}
}

// scored is an id with its similarity, before enrichment.
type scored struct {
	id         int64
	similarity float64
}

// Search runs the full pipeline for an utterance and returns up to k
// enriched results.
func (e *Engine) Search(ctx context.Context, utterance string, k int) ([]Result, error) {
	if k <= 0 {
		k = defaultLimit
	}

	plan, err := e.parser.Parse(ctx, utterance)
	if err != nil {
		return nil, err
	}

	ranked, err := e.rank(ctx, plan, k)
	if err != nil {
		return nil, err
	}

	if len(plan.People) > 0 {
		ranked, err = e.filterByPeople(ctx, ranked, plan.People)
		if err != nil {
			return nil, err
		}
	}

	results, err := e.enrich(ctx, ranked)
	if err != nil {
		return nil, err
	}

	e.recordHistory(ctx, utterance, results)
	return results, nil
}

// rank implements the branch decision between metadata-only and hybrid
// semantic retrieval.
func (e *Engine) rank(ctx context.Context, plan *queryparser.QueryPlan, k int) ([]scored, error) {
	dateSet, err := e.filter.Time(ctx, plan.TimeRange)
	if err != nil {
		return nil, err
	}

	hasLocation := plan.HasLocation()
	var locSet []int64
	var locationNames []string
	if hasLocation {
		locationNames = plan.Location.Names
		locSet, err = e.filter.Location(ctx, dateSet, plan.Location)
		if err != nil {
			return nil, err
		}
	}

	meaningful := meaningfulKeywords(plan.Keywords, locationNames)
	hasKeywords := len(meaningful) > 0

	e.logger.Debug("query classified",
		zap.Bool("has_location", hasLocation),
		zap.Bool("has_keywords", hasKeywords),
		zap.Strings("meaningful_keywords", meaningful))

	switch {
	case hasLocation && !hasKeywords:
		// Location-only: newest photos at the place, no ANN call.
		ids, err := e.store.LatestFirst(ctx, locSet, k)
		if err != nil {
			return nil, err
		}
		ranked := make([]scored, 0, len(ids))
		for _, id := range ids {
			ranked = append(ranked, scored{id: id, similarity: 1.0})
		}
		return ranked, nil

	case plan.SearchText != "":
		candidates := dateSet
		if hasLocation {
			candidates = locSet
		}
		return e.semantic(ctx, plan.SearchText, candidates, k)

	default:
		// No semantic content: first k of the date set.
		if len(dateSet) > k {
			dateSet = dateSet[:k]
		}
		ranked := make([]scored, 0, len(dateSet))
		for _, id := range dateSet {
			ranked = append(ranked, scored{id: id})
		}
		return ranked, nil
	}
}

// semantic runs the ANN query restricted to the candidate set and
// applies the dynamic threshold with the top-1 rescue.
func (e *Engine) semantic(ctx context.Context, searchText string, candidates []int64, k int) ([]scored, error) {
	q, err := e.encoder.EncodeText(ctx, searchText)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	hits, err := e.ann.Search(q, annFanout)
	if err != nil {
		return nil, fmt.Errorf("ann search: %w", err)
	}

	allowed := make(map[int64]bool, len(candidates))
	for _, id := range candidates {
		allowed[id] = true
	}

	var matched []scored
	for _, h := range hits {
		if !allowed[h.ID] {
			continue
		}
		matched = append(matched, scored{id: h.ID, similarity: h.Score})
	}

	tau := ThresholdFor(searchText)
	var passed []scored
	for _, m := range matched {
		if m.similarity > tau {
			passed = append(passed, m)
		}
	}
	e.logger.Debug("threshold applied",
		zap.Float64("tau", tau), zap.Int("matched", len(matched)), zap.Int("passed", len(passed)))

	if len(passed) == 0 {
		if len(matched) > 0 && matched[0].similarity >= minTopScore {
			return matched[:1], nil
		}
		return nil, nil
	}
	if len(passed) > k {
		passed = passed[:k]
	}
	return passed, nil
}

func (e *Engine) filterByPeople(ctx context.Context, ranked []scored, people []string) ([]scored, error) {
	var kept []scored
	for _, r := range ranked {
		labeled, err := e.store.PersonsFor(ctx, r.id)
		if err != nil {
			return nil, err
		}
		if personsMatch(labeled, people) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (e *Engine) enrich(ctx context.Context, ranked []scored) ([]Result, error) {
	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		p, err := e.store.GetInfo(ctx, r.id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			ID:           p.ID,
			SourceRef:    p.SourceRef,
			TakenAt:      p.TakenAt,
			LocationName: p.LocationName,
			GPSLat:       p.GPSLat,
			GPSLon:       p.GPSLon,
			Similarity:   r.similarity,
			Metadata:     p.Metadata,
		})
	}
	return results, nil
}

// recordHistory appends the search to the history table. Failures are
// logged, never surfaced.
func (e *Engine) recordHistory(ctx context.Context, utterance string, results []Result) {
	blob, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := e.store.SaveSearch(ctx, utterance, string(blob)); err != nil {
		e.logger.Warn("failed to record search history", zap.Error(err))
	}
}
