package queryparser

import (
	"context"
	_ "embed"
	"fmt"
	"time"
)

//go:embed prompts/parse_query.txt
var parseQueryPrompt string

// rawPlan is the JSON shape the model is instructed to produce. It is
// validated into a QueryPlan before anything else sees it.
type rawPlan struct {
	Intent        string   `json:"intent"`
	TimeRange     rawRange `json:"time_range"`
	LocationNames []string `json:"location_names"`
	IndoorOutdoor string   `json:"indoor_outdoor"`
	Keywords      []string `json:"keywords"`
	People        []string `json:"people"`
	SearchText    string   `json:"search_text"`
}

type rawRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Provider is a model backend that turns an utterance into a rawPlan.
type Provider interface {
	Name() string
	ParseQuery(ctx context.Context, utterance string) (*rawPlan, error)
}

func buildParsePrompt(now time.Time) string {
	return fmt.Sprintf(parseQueryPrompt, now.Format("2006-01-02"))
}
