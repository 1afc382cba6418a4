package model

// ArtworkCandidate is one entry in the ordered candidate list produced
// by the artwork-discovery stage.
type ArtworkCandidate struct {
	URI        string `json:"uri"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name,omitempty"`

	DateCreated string `json:"date_created,omitempty"`
	Medium      string `json:"medium,omitempty"`

	InstitutionName string `json:"institution_name,omitempty"`
	Country         string `json:"country,omitempty"`

	IIIFManifest string `json:"iiif_manifest,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	Source string `json:"source"`

	RelevanceScore     float64 `json:"relevance_score"`
	RelevanceReasoning string  `json:"relevance_reasoning,omitempty"`
	CompletenessScore  float64 `json:"completeness_score"`
}

// ArtworkDiscoveryResult is the artwork-discovery stage payload with
// degradation counts, mirroring ArtistDiscoveryResult.
type ArtworkDiscoveryResult struct {
	Candidates []ArtworkCandidate `json:"candidates"`
	Attempted  int                `json:"attempted"`
	Failed     int                `json:"failed"`
}

// EnrichedArtwork is a selected artwork after the enrichment stage has
// attempted to fill metadata gaps. Enrichment failures are per-item:
// Enriched stays false and the candidate passes through unchanged.
type EnrichedArtwork struct {
	ArtworkCandidate

	Description     string `json:"description,omitempty"`
	SubjectSummary  string `json:"subject_summary,omitempty"`
	Enriched        bool   `json:"enriched"`
	EnrichmentNotes string `json:"enrichment_notes,omitempty"`
}

// EnrichmentResult is the enrichment stage payload. Failed counts
// items whose lookups failed; those items are still present, just not
// enriched.
type EnrichmentResult struct {
	Artworks  []EnrichedArtwork `json:"artworks"`
	Attempted int               `json:"attempted"`
	Failed    int               `json:"failed"`
}
