package stage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tenran/internal/model"
)

// RefineTheme validates the brief's concepts against Wikipedia and
// assembles the exhibition framework. Concept lookups that fail mark
// the concept invalid rather than failing the stage; the stage only
// errors when no concept could be validated at all.
func (s *Set) RefineTheme(ctx context.Context, brief model.CuratorBrief, _ model.SessionConfig) (*model.RefinedTheme, error) {
	validations, err := s.validateConcepts(ctx, brief.Concepts)
	if err != nil {
		return nil, err
	}

	validCount := 0
	for _, v := range validations {
		if v.Valid {
			validCount++
		}
	}
	if validCount == 0 {
		return nil, fmt.Errorf("theme: none of %d concepts could be validated", len(brief.Concepts))
	}

	theme := &model.RefinedTheme{
		ExhibitionTitle:   brief.Title,
		Subtitle:          subtitleFor(brief),
		PrimaryFocus:      brief.Concepts[0],
		SecondaryThemes:   secondaryThemes(brief),
		ValidatedConcepts: validations,
		TargetAudience:    audienceOrDefault(brief.TargetAudience),
		ComplexityLevel:   complexityFor(brief.TargetAudience),
		EstimatedDuration: durationFor(brief.DurationWeeks),
		Confidence:        themeConfidence(validations),
		CreatedAt:         time.Now().UTC(),
	}

	theme.CentralArgument = centralArgument(brief, validations)
	theme.CuratorialStatement, theme.ScholarlyRationale = s.narrative(ctx, brief, theme)

	return theme, nil
}

// validateConcepts looks each concept up on Wikipedia with bounded
// concurrency. Order of the result matches the brief.
func (s *Set) validateConcepts(ctx context.Context, concepts []string) ([]model.ConceptValidation, error) {
	validations := make([]model.ConceptValidation, len(concepts))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(discoveryConcurrency)
	for i, concept := range concepts {
		g.Go(func() error {
			v := model.ConceptValidation{Concept: concept}
			pages, err := s.wikipedia.Search(gctx, concept, 3)
			switch {
			case err != nil:
				s.logger.Warn("concept lookup failed", "concept", concept, "error", err)
			case len(pages) > 0:
				v.Valid = true
				v.SourceURL = pages[0].URL
				v.Summary = pages[0].Snippet
				v.Confidence = conceptConfidence(concept, pages[0].Title, pages[0].WordCount)
			}
			mu.Lock()
			validations[i] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("theme: validate concepts: %w", err)
	}
	return validations, nil
}

// conceptConfidence weighs how well the top hit matches the concept:
// exact title matches on substantial articles score highest.
func conceptConfidence(concept, title string, wordCount int) float64 {
	c := 0.5
	if strings.EqualFold(concept, title) {
		c = 0.9
	} else if strings.Contains(strings.ToLower(title), strings.ToLower(concept)) {
		c = 0.7
	}
	if wordCount >= 3000 {
		c += 0.1
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// themeConfidence is the mean confidence across concepts, with invalid
// concepts contributing zero.
func themeConfidence(validations []model.ConceptValidation) float64 {
	if len(validations) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range validations {
		if v.Valid {
			sum += v.Confidence
		}
	}
	return sum / float64(len(validations))
}

func subtitleFor(brief model.CuratorBrief) string {
	if len(brief.Concepts) < 2 {
		return ""
	}
	return titleCase(brief.Concepts[0]) + " and " + titleCase(brief.Concepts[1])
}

func secondaryThemes(brief model.CuratorBrief) []string {
	if len(brief.Concepts) < 2 {
		return nil
	}
	return brief.Concepts[1:]
}

func centralArgument(brief model.CuratorBrief, validations []model.ConceptValidation) string {
	var valid []string
	for _, v := range validations {
		if v.Valid {
			valid = append(valid, v.Concept)
		}
	}
	return fmt.Sprintf("%s examines %s through the lens of %s, tracing how these currents shaped and contested one another.",
		brief.Title, joinNatural(valid), titleCase(brief.Concepts[0]))
}

// narrative produces the curatorial statement and scholarly rationale,
// via the LLM when configured and templates otherwise.
func (s *Set) narrative(ctx context.Context, brief model.CuratorBrief, theme *model.RefinedTheme) (statement, rationale string) {
	statement = fmt.Sprintf(
		"This exhibition brings together works exploring %s. Organized around %s, it invites a %s audience to trace the dialogue between these ideas across the modern period.",
		joinNatural(brief.Concepts), titleCase(theme.PrimaryFocus), theme.TargetAudience)
	rationale = fmt.Sprintf(
		"The selection foregrounds %s as an organizing principle, grounded in %d validated concept(s) with documented art-historical literature.",
		titleCase(theme.PrimaryFocus), len(theme.ValidatedConcepts))

	if s.llm == nil {
		return statement, rationale
	}

	prompt := fmt.Sprintf(
		"Write a two-paragraph curatorial statement for an exhibition titled %q about %s, aimed at a %s audience at %s complexity. Plain prose, no headings.",
		brief.Title, joinNatural(brief.Concepts), theme.TargetAudience, theme.ComplexityLevel)

	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.llmModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are an exhibition curator writing for museum wall text."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil || len(resp.Choices) == 0 {
		s.logger.Warn("llm statement generation failed, using template", "error", err)
		return statement, rationale
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), rationale
}

func audienceOrDefault(audience string) string {
	if audience == "" {
		return "general"
	}
	return audience
}

func complexityFor(audience string) string {
	switch audience {
	case "academic", "specialists":
		return "scholarly"
	case "youth", "family":
		return "accessible"
	default:
		return "intermediate"
	}
}

func durationFor(weeks int) string {
	if weeks <= 0 {
		weeks = 12
	}
	return fmt.Sprintf("%d weeks", weeks)
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
