package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/tenran/internal/model"
)

func TestScoreArtistBounds(t *testing.T) {
	tests := []struct {
		name   string
		artist model.ArtistCandidate
	}{
		{"empty", model.ArtistCandidate{Name: "X"}},
		{"rich", model.ArtistCandidate{
			Name:      "Piet Mondrian",
			BirthYear: 1872,
			Biography: "dutch painter, pioneer of abstract art and de stijl, geometric compositions",
			Movements: []string{"De Stijl", "abstract art"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasoning := scoreArtist(tt.artist, []string{"abstract", "geometric"}, nil)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
			assert.NotEmpty(t, reasoning)
		})
	}
}

func TestScoreArtistReferenceBoost(t *testing.T) {
	artist := model.ArtistCandidate{Name: "Salvador Dalí"}

	base, _ := scoreArtist(artist, []string{"surrealism"}, nil)
	boosted, reasoning := scoreArtist(artist, []string{"surrealism"}, []string{"Salvador Dalí"})

	assert.Greater(t, boosted, base)
	assert.Contains(t, reasoning, "Curator reference artist")
}

func TestScoreArtistThemeMatchScaling(t *testing.T) {
	concepts := []string{"surrealism", "dreams", "psychoanalysis"}
	none := model.ArtistCandidate{Name: "A", Biography: "landscape painter"}
	all := model.ArtistCandidate{Name: "B", Biography: "surrealism artist exploring dreams and psychoanalysis"}

	low, _ := scoreArtist(none, concepts, nil)
	high, _ := scoreArtist(all, concepts, nil)
	assert.Greater(t, high, low)
}

func TestChronologicalFit(t *testing.T) {
	tests := []struct {
		birthYear int
		want      float64
	}{
		{0, 0.5},
		{1980, 1.0},
		{1925, 0.9},
		{1885, 0.7},
		{1860, 0.5},
		{1700, 0.3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chronologicalFit(tt.birthYear), "birth year %d", tt.birthYear)
	}
}

func TestScoreArtworkAttributionDominates(t *testing.T) {
	byArtist := model.ArtworkCandidate{Title: "Composition II", ArtistName: "Piet Mondrian"}
	byOther := model.ArtworkCandidate{Title: "Composition II", ArtistName: "Theo van Doesburg"}

	match, reasoning := scoreArtwork(byArtist, "Piet Mondrian", nil, 0, 0)
	miss, _ := scoreArtwork(byOther, "Piet Mondrian", nil, 0, 0)

	assert.Greater(t, match, miss)
	assert.Contains(t, reasoning, "By Piet Mondrian")
}

func TestScoreArtworkIIIFRaisesVisualQuality(t *testing.T) {
	plain := model.ArtworkCandidate{Title: "W", ArtistName: "A"}
	withIIIF := plain
	withIIIF.IIIFManifest = "https://example.org/iiif/manifest"

	low, _ := scoreArtwork(plain, "A", nil, 0, 0)
	high, reasoning := scoreArtwork(withIIIF, "A", nil, 0, 0)

	assert.Greater(t, high, low)
	assert.Contains(t, reasoning, "IIIF available")
}

func TestDateRelevance(t *testing.T) {
	tests := []struct {
		name           string
		year, from, to int
		want           float64
	}{
		{"missing date", 0, 1920, 1940, 0.4},
		{"no period, modern", 1930, 0, 0, 1.0},
		{"no period, pre-modern", 1700, 0, 0, 0.5},
		{"within period", 1930, 1920, 1940, 1.0},
		{"near period", 1945, 1920, 1940, 0.7},
		{"outside period", 1850, 1920, 1940, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dateRelevance(tt.year, tt.from, tt.to))
		})
	}
}

func TestCompleteness(t *testing.T) {
	empty := model.ArtworkCandidate{}
	assert.Equal(t, 0.0, completeness(empty))

	full := model.ArtworkCandidate{
		Title:           "The Milkmaid",
		ArtistName:      "Johannes Vermeer",
		DateCreated:     "1658",
		Medium:          "oil on canvas",
		InstitutionName: "Rijksmuseum",
		ThumbnailURL:    "https://example.org/t.jpg",
	}
	assert.Equal(t, 1.0, completeness(full))
}

func TestYearOfArtwork(t *testing.T) {
	assert.Equal(t, 1931, yearOfArtwork(model.ArtworkCandidate{DateCreated: "1931"}))
	assert.Equal(t, 1931, yearOfArtwork(model.ArtworkCandidate{DateCreated: "1931-01-01"}))
	assert.Equal(t, 0, yearOfArtwork(model.ArtworkCandidate{DateCreated: "circa 1931"}))
	assert.Equal(t, 0, yearOfArtwork(model.ArtworkCandidate{}))
}
