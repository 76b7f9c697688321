package queryparser

import (
	"fmt"
	"strings"
	"time"
)

// fallbackPlan builds a deterministic plan when no model is available
// or the model output was unusable. The whole utterance becomes the
// search text, plus rule-based hints for a few common phrases.
func fallbackPlan(utterance string) *QueryPlan {
	return fallbackPlanAt(utterance, time.Now())
}

func fallbackPlanAt(utterance string, now time.Time) *QueryPlan {
	plan := &QueryPlan{SearchText: utterance}

	lastYear := now.Year() - 1
	switch {
	case strings.Contains(utterance, "작년 여름"):
		plan.TimeRange = TimeRange{
			Start: fmt.Sprintf("%d-06-01", lastYear),
			End:   fmt.Sprintf("%d-08-31", lastYear),
		}
	case strings.Contains(utterance, "작년"):
		plan.TimeRange = TimeRange{
			Start: fmt.Sprintf("%d-01-01", lastYear),
			End:   fmt.Sprintf("%d-12-31", lastYear),
		}
	}

	if strings.Contains(utterance, "파스타") {
		plan.SearchText = "pasta italian food"
	}
	if strings.Contains(utterance, "엄마") {
		plan.People = append(plan.People, "엄마")
	}

	return plan
}
