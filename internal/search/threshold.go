package search

import "strings"

// Similarity cutoffs by query class. Food queries are more lenient,
// person queries stricter.
const (
	thresholdDefault  = 0.26
	thresholdFood     = 0.24
	thresholdPerson   = 0.28
	thresholdPlace    = 0.25
	thresholdActivity = 0.25

	// minTopScore rescues the single best hit when nothing clears the
	// class threshold but the match is still plausible.
	minTopScore = 0.20
)

var foodKeywords = []string{
	"food", "meal", "eat", "restaurant", "pasta", "pizza",
	"steak", "sushi", "coffee", "cake", "dessert", "lunch",
	"dinner", "breakfast", "burger", "hamburger", "ramen", "noodle",
}

var personKeywords = []string{
	"person", "people", "family", "friend", "portrait",
	"selfie", "group", "face", "man", "woman", "child",
}

var placeKeywords = []string{
	"beach", "mountain", "city", "park", "building",
	"street", "ocean", "lake", "forest", "bridge", "casino",
}

var activityKeywords = []string{
	"walking", "running", "swimming", "playing",
	"dancing", "singing", "cooking", "reading", "travel",
}

// ThresholdFor picks a similarity cutoff from the lexical content of
// the search text. First matching class wins.
func ThresholdFor(searchText string) float64 {
	lower := strings.ToLower(searchText)

	if containsAny(lower, foodKeywords) {
		return thresholdFood
	}
	if containsAny(lower, personKeywords) {
		return thresholdPerson
	}
	if containsAny(lower, placeKeywords) {
		return thresholdPlace
	}
	if containsAny(lower, activityKeywords) {
		return thresholdActivity
	}
	return thresholdDefault
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// genericKeywords are travel and scenery words that carry no semantic
// content worth an ANN query. A location query whose keywords are all
// generic is answered from metadata alone.
var genericKeywords = []string{
	"여행", "travel", "풍경", "landscape", "scenic", "관광", "tour",
	"trip", "vacation", "사진", "photo", "picture", "image",
	"nature", "자연", "view", "뷰", "경치", "island", "섬",
}

// meaningfulKeywords drops keywords that contain a location name or a
// generic travel word.
func meaningfulKeywords(keywords, locationNames []string) []string {
	var out []string
	for _, kw := range keywords {
		lower := strings.ToLower(kw)

		locationRelated := false
		for _, loc := range locationNames {
			if strings.Contains(lower, strings.ToLower(loc)) {
				locationRelated = true
				break
			}
		}
		if locationRelated || containsAny(lower, genericKeywords) {
			continue
		}
		out = append(out, kw)
	}
	return out
}
