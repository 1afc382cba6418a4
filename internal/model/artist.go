package model

// ArtistCandidate is one entry in the ordered candidate list produced
// by the artist-discovery stage. Candidates are addressed by position
// in the published list, so ordering is part of the contract.
type ArtistCandidate struct {
	Name        string `json:"name"`
	BirthYear   int    `json:"birth_year,omitempty"`
	DeathYear   int    `json:"death_year,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	Biography   string `json:"biography,omitempty"`

	Movements []string `json:"movements,omitempty"`

	WikidataID   string `json:"wikidata_id,omitempty"`
	WikipediaURL string `json:"wikipedia_url,omitempty"`
	Source       string `json:"source"`

	RelevanceScore     float64 `json:"relevance_score"`
	RelevanceReasoning string  `json:"relevance_reasoning,omitempty"`
}

// ArtistDiscoveryResult is the artist-discovery stage payload: the
// ordered candidate list plus degradation counts. Attempted/Failed let
// a consumer see partial upstream failure instead of the pipeline
// silently hiding the gap.
type ArtistDiscoveryResult struct {
	Candidates []ArtistCandidate `json:"candidates"`
	Attempted  int               `json:"attempted"`
	Failed     int               `json:"failed"`
}
