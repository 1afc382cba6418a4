package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ashita-ai/tenran/internal/model"
)

// BuildProposal assembles the final exhibition proposal from a session
// that has finished enrichment. Pure function of the accumulated state.
func BuildProposal(state model.SessionState) model.ExhibitionProposal {
	theme := *state.ThemeResult
	artists := state.SelectedArtists
	enriched := state.EnrichedArtworks

	metrics := contentMetrics(theme, artists, enriched)
	now := time.Now().UTC()

	return model.ExhibitionProposal{
		SessionID:           state.ID.String(),
		ExhibitionTitle:     theme.ExhibitionTitle,
		Subtitle:            theme.Subtitle,
		CuratorialStatement: theme.CuratorialStatement,
		ScholarlyRationale:  theme.ScholarlyRationale,
		Theme:               theme,
		SelectedArtists:     artists,
		SelectedArtworks:    enriched.Artworks,
		TargetAudience:      theme.TargetAudience,
		ComplexityLevel:     theme.ComplexityLevel,
		EstimatedDuration:   theme.EstimatedDuration,
		OverallQualityScore: overallQuality(theme, artists, enriched.Artworks),
		ContentMetrics:      metrics,
		LoanRequirements:    loanRequirements(enriched.Artworks),
		FeasibilityNotes:    feasibilityNotes(artists, metrics),
		CreatedAt:           now,
		ProcessingSeconds:   now.Sub(state.CreatedAt).Seconds(),
	}
}

// overallQuality weighs theme confidence 20%, artist relevance 30%,
// artwork relevance 30% and metadata completeness 20%.
func overallQuality(theme model.RefinedTheme, artists []model.ArtistCandidate, artworks []model.EnrichedArtwork) float64 {
	var artistSum float64
	for _, a := range artists {
		artistSum += a.RelevanceScore
	}
	var artworkSum, completeSum float64
	for _, a := range artworks {
		artworkSum += a.RelevanceScore
		completeSum += a.CompletenessScore
	}

	score := theme.Confidence * 0.2
	if len(artists) > 0 {
		score += artistSum / float64(len(artists)) * 0.3
	}
	if len(artworks) > 0 {
		score += artworkSum / float64(len(artworks)) * 0.3
		score += completeSum / float64(len(artworks)) * 0.2
	}
	return math.Round(score*100) / 100
}

func contentMetrics(theme model.RefinedTheme, artists []model.ArtistCandidate, enriched *model.EnrichmentResult) model.ContentMetrics {
	artworks := enriched.Artworks
	m := model.ContentMetrics{
		TotalArtists:        len(artists),
		TotalArtworks:       len(artworks),
		EnrichmentAttempted: enriched.Attempted,
		EnrichmentFailed:    enriched.Failed,
	}

	represented := make(map[string]bool)
	var artworkSum, completeSum float64
	for _, a := range artworks {
		if a.ArtistName != "" {
			represented[a.ArtistName] = true
		}
		artworkSum += a.RelevanceScore
		completeSum += a.CompletenessScore
		if a.IIIFManifest != "" {
			m.WithIIIF++
		}
		if a.ThumbnailURL != "" {
			m.WithImages++
		}
	}
	m.ArtistsRepresented = len(represented)

	var artistSum float64
	for _, a := range artists {
		artistSum += a.RelevanceScore
	}
	if len(artists) > 0 {
		m.AvgArtistRelevance = artistSum / float64(len(artists))
	}
	if len(artworks) > 0 {
		m.AvgArtworkRelevance = artworkSum / float64(len(artworks))
		m.AvgCompleteness = completeSum / float64(len(artworks))
	}
	return m
}

const maxLoanRequirements = 10

// loanRequirements groups the selected works by holding institution and
// appends the standing handling requirements.
func loanRequirements(artworks []model.EnrichedArtwork) []string {
	byInstitution := make(map[string]int)
	for _, a := range artworks {
		if a.InstitutionName != "" {
			byInstitution[a.InstitutionName]++
		}
	}

	institutions := make([]string, 0, len(byInstitution))
	for inst := range byInstitution {
		institutions = append(institutions, inst)
	}
	sort.Strings(institutions)

	reqs := make([]string, 0, len(institutions)+3)
	for _, inst := range institutions {
		reqs = append(reqs, fmt.Sprintf("Contact %s for loan of %d artwork(s)", inst, byInstitution[inst]))
	}
	if len(artworks) > 0 {
		reqs = append(reqs,
			"Insurance coverage required for all loans",
			"Climate-controlled transport and handling",
			"Security requirements for high-value works",
		)
	}
	if len(reqs) > maxLoanRequirements {
		reqs = reqs[:maxLoanRequirements]
	}
	return reqs
}

func feasibilityNotes(artists []model.ArtistCandidate, m model.ContentMetrics) string {
	notes := fmt.Sprintf("Exhibition features %d artists spanning diverse backgrounds and periods.", len(artists))
	if m.AvgCompleteness > 0.7 {
		notes += " High-quality metadata available for most works, facilitating planning."
	}
	if m.WithIIIF > 0 {
		notes += fmt.Sprintf(" %d works have IIIF manifests available for digital displays.", m.WithIIIF)
	}
	if m.EnrichmentFailed > 0 {
		notes += fmt.Sprintf(" %d of %d enrichment attempts succeeded; some works may need manual metadata review.",
			m.EnrichmentAttempted-m.EnrichmentFailed, m.EnrichmentAttempted)
	}
	return notes
}
