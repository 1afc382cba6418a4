package model

import (
	"strings"
	"testing"
)

func validBrief() CuratorBrief {
	return CuratorBrief{
		Title:            "Dreams and the Unconscious",
		Description:      "Surrealist explorations of the dream state.",
		Concepts:         []string{"surrealism", "dream imagery"},
		ReferenceArtists: []string{"Salvador Dalí"},
		TargetAudience:   "general",
		DurationWeeks:    12,
	}
}

func TestBriefValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CuratorBrief)
		wantErr string
	}{
		{"valid", func(b *CuratorBrief) {}, ""},
		{"minimal", func(b *CuratorBrief) {
			*b = CuratorBrief{Title: "Color Fields", Concepts: []string{"abstraction"}}
		}, ""},
		{"missing title", func(b *CuratorBrief) { b.Title = "" }, "title"},
		{"title too long", func(b *CuratorBrief) { b.Title = strings.Repeat("x", 201) }, "title"},
		{"no concepts", func(b *CuratorBrief) { b.Concepts = nil }, "concepts"},
		{"too many concepts", func(b *CuratorBrief) {
			b.Concepts = []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten", "eleven"}
		}, "concepts"},
		{"concept too short", func(b *CuratorBrief) { b.Concepts = []string{"ab"} }, "concepts"},
		{"unknown audience", func(b *CuratorBrief) { b.TargetAudience = "everyone" }, "targetaudience"},
		{"duration too short", func(b *CuratorBrief) { b.DurationWeeks = 1 }, "durationweeks"},
		{"year range inverted", func(b *CuratorBrief) {
			b.Filters.YearRangeFrom = 1950
			b.Filters.YearRangeTo = 1900
		}, "year_range_to"},
		{"year range equal", func(b *CuratorBrief) {
			b.Filters.YearRangeFrom = 1950
			b.Filters.YearRangeTo = 1950
		}, "year_range_to"},
		{"year out of bounds", func(b *CuratorBrief) { b.Filters.YearRangeFrom = 999 }, "yearrangefrom"},
		{"open-ended range ok", func(b *CuratorBrief) { b.Filters.YearRangeFrom = 1900 }, ""},
		{"too many movements", func(b *CuratorBrief) {
			b.Filters.ArtMovements = []string{"a1", "a2", "a3", "a4", "a5", "a6"}
		}, "artmovements"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBrief()
			tt.mutate(&b)

			err := b.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConceptQuery(t *testing.T) {
	b := CuratorBrief{Concepts: []string{"surrealism", "dream imagery"}}
	if got := b.ConceptQuery(); got != "surrealism dream imagery" {
		t.Errorf("ConceptQuery() = %q", got)
	}
}
