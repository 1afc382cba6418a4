package model

import "time"

// ContentMetrics summarizes the assembled exhibition so a consumer can
// render degradation transparently (e.g. "87 of 100 enrichments
// succeeded").
type ContentMetrics struct {
	TotalArtists        int     `json:"total_artists"`
	TotalArtworks       int     `json:"total_artworks"`
	ArtistsRepresented  int     `json:"artists_represented"`
	AvgArtistRelevance  float64 `json:"avg_artist_relevance"`
	AvgArtworkRelevance float64 `json:"avg_artwork_relevance"`
	AvgCompleteness     float64 `json:"avg_completeness"`
	WithIIIF            int     `json:"with_iiif"`
	WithImages          int     `json:"with_images"`
	EnrichmentAttempted int     `json:"enrichment_attempted"`
	EnrichmentFailed    int     `json:"enrichment_failed"`
}

// ExhibitionProposal is the terminal output of a completed session.
type ExhibitionProposal struct {
	SessionID string `json:"session_id"`

	ExhibitionTitle     string `json:"exhibition_title"`
	Subtitle            string `json:"subtitle,omitempty"`
	CuratorialStatement string `json:"curatorial_statement"`
	ScholarlyRationale  string `json:"scholarly_rationale,omitempty"`

	Theme            RefinedTheme      `json:"theme"`
	SelectedArtists  []ArtistCandidate `json:"selected_artists"`
	SelectedArtworks []EnrichedArtwork `json:"selected_artworks"`

	TargetAudience    string `json:"target_audience"`
	ComplexityLevel   string `json:"complexity_level"`
	EstimatedDuration string `json:"estimated_duration"`

	OverallQualityScore float64        `json:"overall_quality_score"`
	ContentMetrics      ContentMetrics `json:"content_metrics"`

	LoanRequirements []string `json:"loan_requirements,omitempty"`
	FeasibilityNotes string   `json:"feasibility_notes,omitempty"`

	CreatedAt         time.Time `json:"created_at"`
	ProcessingSeconds float64   `json:"processing_time_seconds"`
}
