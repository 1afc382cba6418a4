// Package pipeline drives curator sessions through the four-stage
// discovery pipeline.
//
// The orchestrator owns all writes to a session (single-writer). Phase
// transitions land through the store's compare-and-swap, which is what
// makes a duplicate or late selection call safe. Pauses are represented
// in persisted state, not in a blocked goroutine: the drive loop simply
// returns at an awaiting phase, and a later selection call resumes it.
// A paused session therefore survives a process restart.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/ashita-ai/tenran/internal/model"
)

// Stages is the contract the orchestrator consumes. Each method is one
// opaque network-bound stage: it accepts the typed output of prior
// stages and returns its own payload or an error. A returned error is a
// hard failure of the stage itself; partial upstream failures are
// reported inside the payload's Attempted/Failed counts instead.
type Stages interface {
	// RefineTheme turns the raw brief into an exhibition framework.
	RefineTheme(ctx context.Context, brief model.CuratorBrief, cfg model.SessionConfig) (*model.RefinedTheme, error)

	// DiscoverArtists produces the ordered artist candidate list,
	// sorted by relevance descending.
	DiscoverArtists(ctx context.Context, brief model.CuratorBrief, theme model.RefinedTheme, cfg model.SessionConfig) (*model.ArtistDiscoveryResult, error)

	// DiscoverArtworks produces the ordered artwork candidate list for
	// the selected artists, sorted by relevance descending.
	DiscoverArtworks(ctx context.Context, brief model.CuratorBrief, theme model.RefinedTheme, artists []model.ArtistCandidate, cfg model.SessionConfig) (*model.ArtworkDiscoveryResult, error)

	// Enrich fills metadata gaps on the selected artworks. Per-item
	// failures pass the item through unenriched rather than failing.
	Enrich(ctx context.Context, artworks []model.ArtworkCandidate, cfg model.SessionConfig) (*model.EnrichmentResult, error)
}

// EventType discriminates progress events.
type EventType string

const (
	// EventProgress is a transient notification. It is never persisted
	// and is safe to drop when no listener is attached.
	EventProgress EventType = "progress"

	// EventStageComplete carries the full payload of a just-completed
	// stage. The same payload is always readable via Status, so a
	// client that missed the event reconstructs it from state.
	EventStageComplete EventType = "stage_complete"

	// EventCompleted signals terminal success.
	EventCompleted EventType = "completed"

	// EventError signals terminal failure.
	EventError EventType = "error"
)

// Event is one progress notification for a session.
type Event struct {
	Type    EventType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Percent int       `json:"percent"`
	Message string    `json:"message,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// Sink receives progress events. Delivery is best-effort and
// non-blocking: implementations must swallow transport failures, since
// persisted state, not notification, is the record of truth.
type Sink interface {
	Publish(ctx context.Context, sessionID uuid.UUID, ev Event)
}

// NopSink drops every event.
type NopSink struct{}

// Publish discards the event.
func (NopSink) Publish(context.Context, uuid.UUID, Event) {}

// Stage name constants, used in events and failure records.
const (
	StageThemeRefinement  = "theme_refinement"
	StageArtistDiscovery  = "artist_discovery"
	StageArtworkDiscovery = "artwork_discovery"
	StageEnrichment       = "enrichment"
	StageProposal         = "proposal_generation"
)
