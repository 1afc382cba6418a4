package model

import "time"

// ConceptValidation records how one brief concept fared during theme
// research: whether a matching article/topic was found and with what
// confidence.
type ConceptValidation struct {
	Concept    string  `json:"concept"`
	Valid      bool    `json:"valid"`
	SourceURL  string  `json:"source_url,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Confidence float64 `json:"confidence"`
}

// RefinedTheme is the output of the theme-refinement stage: the
// curator's raw brief turned into an exhibition framework. Immutable
// once the stage completes.
type RefinedTheme struct {
	ExhibitionTitle     string   `json:"exhibition_title"`
	Subtitle            string   `json:"subtitle,omitempty"`
	CentralArgument     string   `json:"central_argument"`
	CuratorialStatement string   `json:"curatorial_statement"`
	ScholarlyRationale  string   `json:"scholarly_rationale,omitempty"`
	PrimaryFocus        string   `json:"primary_focus"`
	SecondaryThemes     []string `json:"secondary_themes,omitempty"`

	ValidatedConcepts []ConceptValidation `json:"validated_concepts"`

	TargetAudience    string `json:"target_audience"`
	ComplexityLevel   string `json:"complexity_level"` // "accessible", "intermediate", "scholarly"
	EstimatedDuration string `json:"estimated_duration"`

	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConceptNames returns the validated concept strings, used by later
// stages to scope their queries.
func (t RefinedTheme) ConceptNames() []string {
	names := make([]string, 0, len(t.ValidatedConcepts))
	for _, c := range t.ValidatedConcepts {
		names = append(names, c.Concept)
	}
	return names
}
