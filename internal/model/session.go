// Package model defines the core domain types for Tenran.
//
// Types are strongly typed (UUIDs, time.Time, closed enums) and avoid
// interface{} wherever possible. SessionState is the single durable
// record per curator session; every stage payload hangs off it so a
// reconnecting client can reconstruct full history from one read.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is the discrete lifecycle state of a curator session.
type Phase string

const (
	PhaseCreated                  Phase = "created"
	PhaseThemeRefinement          Phase = "theme_refinement"
	PhaseArtistDiscovery          Phase = "artist_discovery"
	PhaseAwaitingArtistSelection  Phase = "awaiting_artist_selection"
	PhaseArtworkDiscovery         Phase = "artwork_discovery"
	PhaseAwaitingArtworkSelection Phase = "awaiting_artwork_selection"
	PhaseEnriching                Phase = "enriching"
	PhaseGeneratingProposal       Phase = "generating_proposal"
	PhaseComplete                 Phase = "complete"
	PhaseFailed                   Phase = "failed"
)

// phaseOrder is the fixed linear walk of a healthy session. PhaseFailed
// sits outside the chain and is reachable from any non-terminal phase.
var phaseOrder = []Phase{
	PhaseCreated,
	PhaseThemeRefinement,
	PhaseArtistDiscovery,
	PhaseAwaitingArtistSelection,
	PhaseArtworkDiscovery,
	PhaseAwaitingArtworkSelection,
	PhaseEnriching,
	PhaseGeneratingProposal,
	PhaseComplete,
}

// phaseProgress maps each phase to its fixed progress checkpoint.
// Progress is a pure function of phase; stage-internal progress
// messages are transient notifications, never persisted transitions.
var phaseProgress = map[Phase]int{
	PhaseCreated:                  0,
	PhaseThemeRefinement:          10,
	PhaseArtistDiscovery:          30,
	PhaseAwaitingArtistSelection:  55,
	PhaseArtworkDiscovery:         60,
	PhaseAwaitingArtworkSelection: 90,
	PhaseEnriching:                93,
	PhaseGeneratingProposal:       95,
	PhaseComplete:                 100,
}

// Valid reports whether p is a member of the closed phase set.
func (p Phase) Valid() bool {
	if p == PhaseFailed {
		return true
	}
	_, ok := phaseProgress[p]
	return ok
}

// Index returns p's position in the linear phase order, or -1 for
// PhaseFailed and unknown values.
func (p Phase) Index() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p in the linear order.
// The second return is false for terminal phases and PhaseFailed.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i >= len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[i+1], true
}

// Terminal reports whether a session in p can never advance again.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Pausable reports whether p is one of the two human-in-the-loop
// checkpoints where the drive loop returns and waits for a selection.
func (p Phase) Pausable() bool {
	return p == PhaseAwaitingArtistSelection || p == PhaseAwaitingArtworkSelection
}

// Progress returns the fixed progress percentage for p. PhaseFailed has
// no checkpoint of its own; callers keep the last recorded value.
func (p Phase) Progress() int {
	return phaseProgress[p]
}

// At reports whether p is at or past other in the linear order.
// Always false when either side is PhaseFailed.
func (p Phase) At(other Phase) bool {
	pi, oi := p.Index(), other.Index()
	return pi >= 0 && oi >= 0 && pi >= oi
}

// FailureRecord captures the cause of a terminal session failure.
type FailureRecord struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionState is the durable record for one curator session.
//
// Mutated exclusively by the pipeline orchestrator (single-writer);
// clients only supply selections through the HTTP API, which the
// orchestrator applies with a compare-and-swap on phase. Each payload
// field becomes immutable once its producing stage completes.
type SessionState struct {
	ID              uuid.UUID `json:"session_id"`
	Phase           Phase     `json:"phase"`
	ProgressPercent int       `json:"progress_percent"`

	Brief CuratorBrief `json:"brief"`

	// Config is persisted with the session so a paused session resumes
	// with the options it was submitted with, even across a restart.
	Config SessionConfig `json:"config"`

	ThemeResult       *RefinedTheme           `json:"theme_result,omitempty"`
	ArtistCandidates  *ArtistDiscoveryResult  `json:"artist_candidates,omitempty"`
	SelectedArtists   []ArtistCandidate       `json:"selected_artists,omitempty"`
	ArtworkCandidates *ArtworkDiscoveryResult `json:"artwork_candidates,omitempty"`
	SelectedArtworks  []ArtworkCandidate      `json:"selected_artworks,omitempty"`
	EnrichedArtworks  *EnrichmentResult       `json:"enriched_artworks,omitempty"`
	FinalProposal     *ExhibitionProposal     `json:"final_proposal,omitempty"`

	Error *FailureRecord `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState constructs a fresh session in PhaseCreated.
func NewSessionState(brief CuratorBrief, cfg SessionConfig) SessionState {
	now := time.Now().UTC()
	return SessionState{
		ID:              uuid.New(),
		Phase:           PhaseCreated,
		ProgressPercent: PhaseCreated.Progress(),
		Brief:           brief,
		Config:          cfg,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Advance moves the session to phase, updating the progress checkpoint
// and timestamp. It does not validate the transition; the orchestrator
// owns sequencing and the store's compare-and-swap owns races.
func (s *SessionState) Advance(phase Phase) {
	s.Phase = phase
	if pct, ok := phaseProgress[phase]; ok {
		s.ProgressPercent = pct
	}
	s.UpdatedAt = time.Now().UTC()
}

// Fail marks the session terminally failed, keeping the last progress value.
func (s *SessionState) Fail(stage, message string) {
	now := time.Now().UTC()
	s.Phase = PhaseFailed
	s.Error = &FailureRecord{Stage: stage, Message: message, OccurredAt: now}
	s.UpdatedAt = now
}

// CandidateSelection is an ordered list of indices into the most
// recently published candidate list. Indices address the list as
// published, not external ids: candidates do not carry a stable
// identifier across stages.
type CandidateSelection struct {
	Indices []int `json:"indices"`
}

// Validate checks the selection against a candidate list of length n.
// Empty selections are rejected: a zero-artist exhibition is not a
// meaningful state. Duplicates are rejected so a selection maps to a
// well-defined subset.
func (cs CandidateSelection) Validate(n int) error {
	if len(cs.Indices) == 0 {
		return &SelectionError{Reason: "selection must not be empty"}
	}
	seen := make(map[int]bool, len(cs.Indices))
	for _, idx := range cs.Indices {
		if idx < 0 || idx >= n {
			return &SelectionError{Reason: "index out of range", Index: &idx, ListLen: n}
		}
		if seen[idx] {
			return &SelectionError{Reason: "duplicate index", Index: &idx, ListLen: n}
		}
		seen[idx] = true
	}
	return nil
}

// SelectionError describes an invalid CandidateSelection.
type SelectionError struct {
	Reason  string
	Index   *int
	ListLen int
}

func (e *SelectionError) Error() string {
	if e.Index != nil {
		return fmt.Sprintf("invalid selection: %s (index %d against list of %d)", e.Reason, *e.Index, e.ListLen)
	}
	return "invalid selection: " + e.Reason
}
