package queryparser

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"picta/internal/geocode"
)

// Resolver maps place names to coordinates. Satisfied by
// *geocode.Geocoder.
type Resolver interface {
	Resolve(ctx context.Context, name string) *geocode.Location
	IsMajorCity(name string) bool
}

// Parser turns utterances into query plans. A nil provider means
// fallback-only parsing.
type Parser struct {
	provider Provider
	geocoder Resolver
	logger   *zap.Logger
}

func New(provider Provider, geocoder Resolver, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{provider: provider, geocoder: geocoder, logger: logger}
}

// Parse lowers an utterance into a QueryPlan. Model failures degrade
// to the deterministic fallback; only an empty utterance is an error.
func (p *Parser) Parse(ctx context.Context, utterance string) (*QueryPlan, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrInvalidQuery
	}

	plan := p.modelPlan(ctx, utterance)
	if plan == nil {
		plan = fallbackPlan(utterance)
	}

	if plan.Location != nil {
		plan.SearchText = stripPlaceNames(plan.SearchText, plan.Location.Names)
	}
	if plan.SearchText == "" && len(plan.Keywords) > 0 {
		plan.SearchText = strings.Join(plan.Keywords, " ")
	}

	p.attachCoords(ctx, plan)
	return plan, nil
}

func (p *Parser) modelPlan(ctx context.Context, utterance string) *QueryPlan {
	if p.provider == nil {
		return nil
	}
	raw, err := p.provider.ParseQuery(ctx, utterance)
	if err != nil {
		p.logger.Warn("query parser model failed, using fallback",
			zap.String("provider", p.provider.Name()), zap.Error(err))
		return nil
	}
	return validatePlan(raw)
}

// validatePlan converts the model's raw JSON into a QueryPlan,
// dropping empty entries. Returns nil when the result carries no
// usable information, which triggers the fallback.
func validatePlan(raw *rawPlan) *QueryPlan {
	if raw == nil {
		return nil
	}

	plan := &QueryPlan{
		TimeRange:  TimeRange{Start: strings.TrimSpace(raw.TimeRange.Start), End: strings.TrimSpace(raw.TimeRange.End)},
		People:     cleanList(raw.People),
		SearchText: strings.TrimSpace(raw.SearchText),
		Keywords:   cleanList(raw.Keywords),
	}

	if names := cleanList(raw.LocationNames); len(names) > 0 {
		plan.Location = &PlanLocation{Names: names}
	}

	if plan.TimeRange.IsZero() && plan.Location == nil &&
		len(plan.People) == 0 && plan.SearchText == "" && len(plan.Keywords) == 0 {
		return nil
	}
	return plan
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripPlaceNames removes location names from the search text,
// case-insensitively. The search text must describe visual content
// only; a place name in it would bias the embedding toward text.
func stripPlaceNames(text string, names []string) string {
	for _, name := range names {
		if name != "" {
			text = removeFold(text, name)
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// removeFold deletes every occurrence of name from s under per-rune
// lowercase folding. All offsets are computed on s itself, so case
// pairs whose UTF-8 forms differ in byte length cannot misalign the
// cut.
func removeFold(s, name string) string {
	var b strings.Builder
	for len(s) > 0 {
		if n := foldPrefixLen(s, name); n > 0 {
			s = s[n:]
			continue
		}
		_, size := utf8.DecodeRuneInString(s)
		b.WriteString(s[:size])
		s = s[size:]
	}
	return b.String()
}

// foldPrefixLen returns the byte length of the prefix of s matching
// name rune-by-rune after unicode.ToLower, or 0 when there is none.
func foldPrefixLen(s, name string) int {
	n := 0
	for _, want := range name {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || unicode.ToLower(r) != unicode.ToLower(want) {
			return 0
		}
		n += size
	}
	return n
}

// attachCoords picks one location name to geocode and attaches the
// result. Preference: an English major-city alias, then any ASCII name
// longer than two characters, then the first name.
func (p *Parser) attachCoords(ctx context.Context, plan *QueryPlan) {
	if p.geocoder == nil || plan.Location == nil || len(plan.Location.Names) == 0 {
		return
	}
	name := p.pickGeocodeName(plan.Location.Names)
	plan.Location.Coords = p.geocoder.Resolve(ctx, name)
}

func (p *Parser) pickGeocodeName(names []string) string {
	for _, n := range names {
		if isASCII(n) && p.geocoder.IsMajorCity(n) {
			return n
		}
	}
	for _, n := range names {
		if isASCII(n) && len(n) > 2 {
			return n
		}
	}
	return names[0]
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
