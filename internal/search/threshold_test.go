package search

import "testing"

func TestThresholdFor(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"food", "pasta italian food", thresholdFood},
		{"person", "family portrait at home", thresholdPerson},
		{"place", "sunset over the beach", thresholdPlace},
		{"activity", "people cooking together", thresholdPerson}, // person class checked first
		{"activity only", "swimming in the morning", thresholdActivity},
		{"default", "red umbrella", thresholdDefault},
		{"case insensitive", "STEAK Dinner", thresholdFood},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ThresholdFor(tc.text); got != tc.want {
				t.Errorf("ThresholdFor(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestMeaningfulKeywords(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		names    []string
		want     int
	}{
		{"all generic", []string{"여행", "사진"}, []string{"제주", "Jeju"}, 0},
		{"location embedded", []string{"제주 여행", "맛집"}, []string{"제주"}, 1},
		{"meaningful survives", []string{"파스타", "노을"}, nil, 2},
		{"generic english", []string{"travel", "trip", "vacation"}, nil, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := meaningfulKeywords(tc.keywords, tc.names)
			if len(got) != tc.want {
				t.Errorf("meaningfulKeywords = %v, want %d entries", got, tc.want)
			}
		})
	}
}
