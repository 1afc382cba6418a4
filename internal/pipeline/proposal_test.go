package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tenran/internal/model"
)

func TestOverallQualityWeights(t *testing.T) {
	theme := model.RefinedTheme{Confidence: 1.0}
	artists := []model.ArtistCandidate{{RelevanceScore: 1.0}, {RelevanceScore: 1.0}}
	artworks := []model.EnrichedArtwork{
		{ArtworkCandidate: model.ArtworkCandidate{RelevanceScore: 1.0, CompletenessScore: 1.0}},
	}

	// Perfect inputs across all four components give 1.0.
	assert.InDelta(t, 1.0, overallQuality(theme, artists, artworks), 0.001)

	// Theme confidence alone carries 20%.
	assert.InDelta(t, 0.2, overallQuality(theme, nil, nil), 0.001)
}

func TestBuildProposal(t *testing.T) {
	state := model.NewSessionState(model.CuratorBrief{
		Title:    "Dreams & Reality",
		Concepts: []string{"surrealism"},
	}, model.SessionConfig{})
	state.ThemeResult = testTheme()
	state.SelectedArtists = artistFixtures(3)
	state.EnrichedArtworks = &model.EnrichmentResult{
		Artworks: []model.EnrichedArtwork{
			{ArtworkCandidate: model.ArtworkCandidate{
				Title:             "Work A",
				ArtistName:        "Artist 0",
				InstitutionName:   "Rijksmuseum",
				IIIFManifest:      "https://example.org/iiif/a",
				ThumbnailURL:      "https://example.org/a.jpg",
				RelevanceScore:    0.9,
				CompletenessScore: 0.8,
			}, Enriched: true},
			{ArtworkCandidate: model.ArtworkCandidate{
				Title:             "Work B",
				ArtistName:        "Artist 1",
				InstitutionName:   "Rijksmuseum",
				RelevanceScore:    0.7,
				CompletenessScore: 0.6,
			}},
			{ArtworkCandidate: model.ArtworkCandidate{
				Title:             "Work C",
				ArtistName:        "Artist 0",
				InstitutionName:   "Tate",
				RelevanceScore:    0.8,
				CompletenessScore: 0.7,
			}},
		},
		Attempted: 3,
		Failed:    2,
	}

	p := BuildProposal(state)

	assert.Equal(t, state.ID.String(), p.SessionID)
	assert.Equal(t, state.ThemeResult.ExhibitionTitle, p.ExhibitionTitle)
	assert.Equal(t, 3, p.ContentMetrics.TotalArtworks)
	assert.Equal(t, 2, p.ContentMetrics.ArtistsRepresented)
	assert.Equal(t, 1, p.ContentMetrics.WithIIIF)
	assert.Equal(t, 2, p.ContentMetrics.EnrichmentFailed)

	// Loans grouped by institution, sorted, plus standing requirements.
	require.GreaterOrEqual(t, len(p.LoanRequirements), 5)
	assert.Contains(t, p.LoanRequirements[0], "Rijksmuseum")
	assert.Contains(t, p.LoanRequirements[0], "2 artwork(s)")
	assert.Contains(t, p.LoanRequirements[1], "Tate")

	assert.Contains(t, p.FeasibilityNotes, "3 artists")
	assert.Contains(t, p.FeasibilityNotes, "1 of 3 enrichment attempts succeeded")

	assert.Greater(t, p.OverallQualityScore, 0.0)
	assert.LessOrEqual(t, p.OverallQualityScore, 1.0)
}
