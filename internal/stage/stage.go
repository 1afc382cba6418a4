// Package stage implements the four pipeline stages behind the
// pipeline.Stages contract: theme refinement, artist discovery,
// artwork discovery and enrichment.
//
// Stages fan out to the external clients with bounded concurrency and
// report partial upstream failure through the Attempted/Failed counts
// on their payloads. Only a failure that leaves a stage with nothing
// usable is returned as an error.
package stage

import (
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ashita-ai/tenran/internal/client"
)

const (
	// discoveryConcurrency bounds the per-stage fan-out to the
	// external APIs.
	discoveryConcurrency = 4

	// enrichConcurrency is lower: enrichment runs one lookup per
	// selected artwork and the summary endpoint rate-limits harder.
	enrichConcurrency = 3
)

// Deps are the external collaborators a stage set needs. LLM is
// optional: without it the theme stage falls back to its templates.
type Deps struct {
	Wikipedia *client.Wikipedia
	Wikidata  *client.Wikidata
	Europeana *client.Europeana
	LLM       *openai.Client
	LLMModel  string
	Logger    *slog.Logger
}

// Set implements pipeline.Stages over the external data sources.
type Set struct {
	wikipedia *client.Wikipedia
	wikidata  *client.Wikidata
	europeana *client.Europeana
	llm       *openai.Client
	llmModel  string
	logger    *slog.Logger
}

// New builds a stage set from its dependencies.
func New(d Deps) *Set {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := d.LLMModel
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Set{
		wikipedia: d.Wikipedia,
		wikidata:  d.Wikidata,
		europeana: d.Europeana,
		llm:       d.LLM,
		llmModel:  model,
		logger:    logger,
	}
}
