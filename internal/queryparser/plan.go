// Package queryparser lowers a free-text utterance into a structured
// query plan using an LLM, with a deterministic rule-based fallback.
package queryparser

import (
	"errors"

	"picta/internal/geocode"
)

// ErrInvalidQuery indicates an empty or unusable utterance.
var ErrInvalidQuery = errors.New("invalid query")

// TimeRange bounds taken_at. Either side may be empty. Values are
// "YYYY-MM-DD" dates compared as strings against stored timestamps.
type TimeRange struct {
	Start string
	End   string
}

// IsZero reports whether neither bound is set.
func (tr TimeRange) IsZero() bool {
	return tr.Start == "" && tr.End == ""
}

// PlanLocation holds the place names extracted from the utterance plus
// optional geocoded coordinates. Names carry both native and romanized
// forms.
type PlanLocation struct {
	Names  []string
	Coords *geocode.Location
}

// QueryPlan is the structured form of a search utterance.
type QueryPlan struct {
	TimeRange  TimeRange
	Location   *PlanLocation
	People     []string
	SearchText string
	Keywords   []string
}

// HasLocation reports whether the plan constrains by place.
func (p *QueryPlan) HasLocation() bool {
	return p.Location != nil && (len(p.Location.Names) > 0 || p.Location.Coords != nil)
}
