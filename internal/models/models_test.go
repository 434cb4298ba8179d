package models

import (
	"testing"
)

func TestInterviewDedupKey(t *testing.T) {
	tests := []struct {
		name      string
		interview Interview
		expected  string
	}{
		{
			name:      "Drive file uses file name",
			interview: Interview{FileName: "Jane Doe - Interview (2024-05-01).txt", MeetingKey: "abc-defg-hij/2024-05-01"},
			expected:  "file:Jane Doe - Interview (2024-05-01).txt",
		},
		{
			name:      "Extension capture uses meeting key",
			interview: Interview{MeetingKey: "abc-defg-hij/2024-05-01"},
			expected:  "meet:abc-defg-hij/2024-05-01",
		},
		{
			name:      "No key",
			interview: Interview{},
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.interview.DedupKey(); got != tt.expected {
				t.Errorf("DedupKey() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRatingScoreOrdering(t *testing.T) {
	ordered := []Rating{RatingStrongNoHire, RatingNoHire, RatingHire, RatingStrongHire}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Score() <= ordered[i-1].Score() {
			t.Errorf("Expected %s to score higher than %s", ordered[i], ordered[i-1])
		}
	}

	if RatingNone.Score() != 0 {
		t.Errorf("Expected unrated score 0, got %d", RatingNone.Score())
	}
	if RatingNone.Label() != "Unrated" {
		t.Errorf("Expected label 'Unrated', got '%s'", RatingNone.Label())
	}
}

func TestRatingValid(t *testing.T) {
	if !RatingHire.Valid() || !RatingNone.Valid() {
		t.Error("Expected known ratings to be valid")
	}
	if Rating("maybe").Valid() {
		t.Error("Expected unknown rating to be invalid")
	}
}
