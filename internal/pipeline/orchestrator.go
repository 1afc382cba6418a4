package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ashita-ai/tenran/internal/model"
	"github.com/ashita-ai/tenran/internal/store"
)

// Default session options, applied when the submitted config leaves
// them zero. Ported from the original pipeline defaults.
const (
	DefaultCandidateLimit      = 15
	DefaultMinArtistRelevance  = 0.5
	DefaultMinArtworkRelevance = 0.4
)

// Orchestrator drives sessions through their phases: run the stage
// mapped to the current phase, persist its output, publish a progress
// event, advance. At the two awaiting phases the loop returns; a
// selection call (or auto-select) resumes it.
type Orchestrator struct {
	store  store.Store
	stages Stages
	sink   Sink
	logger *slog.Logger

	// wg tracks in-flight drive loops so shutdown can drain them.
	wg sync.WaitGroup
}

// New creates an Orchestrator. sink may be nil, in which case events
// are dropped.
func New(st store.Store, stages Stages, sink Sink, logger *slog.Logger) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{store: st, stages: stages, sink: sink, logger: logger}
}

// Submit validates the brief, persists a fresh session and starts
// driving it in the background. Returns immediately with the id.
func (o *Orchestrator) Submit(ctx context.Context, brief model.CuratorBrief, cfg model.SessionConfig) (uuid.UUID, error) {
	if err := brief.Validate(); err != nil {
		return uuid.Nil, &PreconditionError{Op: "submit", Reason: err.Error()}
	}

	state := model.NewSessionState(brief, withDefaults(cfg))
	if err := o.store.Create(ctx, state); err != nil {
		return uuid.Nil, fmt.Errorf("pipeline: create session: %w", err)
	}

	o.logger.Info("session submitted",
		"session_id", state.ID,
		"title", brief.Title,
		"auto_select", state.Config.AutoSelect,
	)

	o.spawnDrive(state.ID)
	return state.ID, nil
}

// Status returns a snapshot of the session. Pure read.
func (o *Orchestrator) Status(ctx context.Context, id uuid.UUID) (model.SessionState, error) {
	return o.store.Get(ctx, id)
}

// Proposal returns the final proposal once the session is complete.
func (o *Orchestrator) Proposal(ctx context.Context, id uuid.UUID) (*model.ExhibitionProposal, error) {
	state, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Phase != model.PhaseComplete || state.FinalProposal == nil {
		return nil, &PreconditionError{Op: "proposal", Reason: fmt.Sprintf("session is %s, not complete", state.Phase)}
	}
	return state.FinalProposal, nil
}

// SelectArtists applies a curator's artist selection and resumes the
// pipeline. Valid only in PhaseAwaitingArtistSelection.
func (o *Orchestrator) SelectArtists(ctx context.Context, id uuid.UUID, sel model.CandidateSelection) (model.SessionState, error) {
	state, err := o.store.Get(ctx, id)
	if err != nil {
		return model.SessionState{}, err
	}
	if state.Phase != model.PhaseAwaitingArtistSelection {
		return model.SessionState{}, &PreconditionError{
			Op:     "select_artists",
			Reason: fmt.Sprintf("session is %s, expected %s", state.Phase, model.PhaseAwaitingArtistSelection),
		}
	}

	candidates := state.ArtistCandidates.Candidates
	if err := sel.Validate(len(candidates)); err != nil {
		return model.SessionState{}, &PreconditionError{Op: "select_artists", Reason: err.Error()}
	}

	selected := make([]model.ArtistCandidate, 0, len(sel.Indices))
	for _, idx := range sel.Indices {
		selected = append(selected, candidates[idx])
	}
	state.SelectedArtists = selected
	state.Advance(model.PhaseArtworkDiscovery)

	ok, err := o.store.CompareAndSwap(ctx, id, model.PhaseAwaitingArtistSelection, state)
	if err != nil {
		return model.SessionState{}, fmt.Errorf("pipeline: apply artist selection: %w", err)
	}
	if !ok {
		// A concurrent selection won the swap.
		return model.SessionState{}, &PreconditionError{Op: "select_artists", Reason: "selection already applied"}
	}

	o.logger.Info("artist selection applied", "session_id", id, "selected", len(selected))
	o.spawnDrive(id)
	return state, nil
}

// SelectArtworks applies a curator's artwork selection and resumes the
// pipeline. Valid only in PhaseAwaitingArtworkSelection.
func (o *Orchestrator) SelectArtworks(ctx context.Context, id uuid.UUID, sel model.CandidateSelection) (model.SessionState, error) {
	state, err := o.store.Get(ctx, id)
	if err != nil {
		return model.SessionState{}, err
	}
	if state.Phase != model.PhaseAwaitingArtworkSelection {
		return model.SessionState{}, &PreconditionError{
			Op:     "select_artworks",
			Reason: fmt.Sprintf("session is %s, expected %s", state.Phase, model.PhaseAwaitingArtworkSelection),
		}
	}

	candidates := state.ArtworkCandidates.Candidates
	if err := sel.Validate(len(candidates)); err != nil {
		return model.SessionState{}, &PreconditionError{Op: "select_artworks", Reason: err.Error()}
	}

	selected := make([]model.ArtworkCandidate, 0, len(sel.Indices))
	for _, idx := range sel.Indices {
		selected = append(selected, candidates[idx])
	}
	state.SelectedArtworks = selected
	state.Advance(model.PhaseEnriching)

	ok, err := o.store.CompareAndSwap(ctx, id, model.PhaseAwaitingArtworkSelection, state)
	if err != nil {
		return model.SessionState{}, fmt.Errorf("pipeline: apply artwork selection: %w", err)
	}
	if !ok {
		return model.SessionState{}, &PreconditionError{Op: "select_artworks", Reason: "selection already applied"}
	}

	o.logger.Info("artwork selection applied", "session_id", id, "selected", len(selected))
	o.spawnDrive(id)
	return state, nil
}

// Resume restarts the drive loop for a session that is mid-pipeline,
// typically after a process restart. Sessions parked at an awaiting
// phase (without auto-select) and terminal sessions are left alone.
func (o *Orchestrator) Resume(ctx context.Context, id uuid.UUID) error {
	state, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if state.Phase.Terminal() {
		return nil
	}
	if state.Phase.Pausable() && !state.Config.AutoSelect {
		return nil
	}
	o.spawnDrive(id)
	return nil
}

// Drain blocks until all in-flight drive loops have returned or ctx
// expires. Sessions parked at a pause point do not hold a loop open.
func (o *Orchestrator) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("drain timed out with drive loops still running")
	}
}

func (o *Orchestrator) spawnDrive(id uuid.UUID) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// Detached from the caller's request context: the pipeline
		// outlives the HTTP request that triggered it.
		o.drive(context.Background(), id)
	}()
}

// drive is the core loop: read phase, run the stage mapped to it,
// persist output strictly before publishing, advance. Stops at
// terminal phases and (unless auto-select) at the two pause points.
func (o *Orchestrator) drive(ctx context.Context, id uuid.UUID) {
	for {
		state, err := o.store.Get(ctx, id)
		if err != nil {
			o.logger.Error("drive: load session", "session_id", id, "error", err)
			return
		}
		if state.Phase.Terminal() {
			return
		}

		next, err := o.step(ctx, state)
		if err != nil {
			var fatal *FatalStageError
			if !errors.As(err, &fatal) {
				fatal = &FatalStageError{Stage: string(state.Phase), Err: err}
			}
			o.fail(ctx, state, fatal)
			return
		}
		if next == nil {
			// Parked at a pause point; a selection call resumes us.
			return
		}
		if !o.persistAndPublish(ctx, state.Phase, *next) {
			return
		}
		if next.Phase == model.PhaseComplete {
			o.sink.Publish(ctx, id, Event{
				Type:    EventCompleted,
				Percent: 100,
				Message: "exhibition proposal complete",
				Payload: map[string]string{"proposal_location": fmt.Sprintf("/v1/sessions/%s/proposal", id)},
			})
			return
		}
	}
}

// step executes the work for the session's current phase and returns
// the advanced state to persist. A nil state with nil error means the
// loop should park (awaiting selection).
func (o *Orchestrator) step(ctx context.Context, state model.SessionState) (*model.SessionState, error) {
	switch state.Phase {
	case model.PhaseCreated:
		state.Advance(model.PhaseThemeRefinement)
		return &state, nil

	case model.PhaseThemeRefinement:
		return o.runThemeRefinement(ctx, state)

	case model.PhaseArtistDiscovery:
		return o.runArtistDiscovery(ctx, state)

	case model.PhaseAwaitingArtistSelection:
		if !state.Config.AutoSelect {
			return nil, nil
		}
		return o.autoSelectArtists(state)

	case model.PhaseArtworkDiscovery:
		return o.runArtworkDiscovery(ctx, state)

	case model.PhaseAwaitingArtworkSelection:
		if !state.Config.AutoSelect {
			return nil, nil
		}
		return o.autoSelectArtworks(state)

	case model.PhaseEnriching:
		return o.runEnrichment(ctx, state)

	case model.PhaseGeneratingProposal:
		return o.runProposal(ctx, state)

	default:
		return nil, fmt.Errorf("pipeline: no stage for phase %s", state.Phase)
	}
}

func (o *Orchestrator) runThemeRefinement(ctx context.Context, state model.SessionState) (*model.SessionState, error) {
	o.progress(ctx, state, "refining exhibition theme")

	theme, err := o.stages.RefineTheme(ctx, state.Brief, state.Config)
	if err != nil {
		// Theme refinement is foundational: no fallback.
		return nil, &FatalStageError{Stage: StageThemeRefinement, Err: err}
	}

	state.ThemeResult = theme
	state.Advance(model.PhaseArtistDiscovery)
	o.logger.Info("theme refined",
		"session_id", state.ID,
		"title", theme.ExhibitionTitle,
		"confidence", theme.Confidence,
	)
	return &state, nil
}

func (o *Orchestrator) runArtistDiscovery(ctx context.Context, state model.SessionState) (*model.SessionState, error) {
	o.progress(ctx, state, "discovering relevant artists")

	result, err := o.stages.DiscoverArtists(ctx, state.Brief, *state.ThemeResult, state.Config)
	if err != nil {
		return nil, &FatalStageError{Stage: StageArtistDiscovery, Err: err}
	}
	if len(result.Candidates) == 0 {
		return nil, &FatalStageError{Stage: StageArtistDiscovery,
			Err: fmt.Errorf("no artists found: theme may be too specific or abstract")}
	}

	state.ArtistCandidates = result
	state.Advance(model.PhaseAwaitingArtistSelection)
	if result.Failed > 0 {
		o.logger.Warn("artist discovery degraded",
			"session_id", state.ID, "attempted", result.Attempted, "failed", result.Failed)
	}
	o.logger.Info("artists discovered", "session_id", state.ID, "candidates", len(result.Candidates))
	return &state, nil
}

func (o *Orchestrator) runArtworkDiscovery(ctx context.Context, state model.SessionState) (*model.SessionState, error) {
	o.progress(ctx, state, "discovering artworks for selected artists")

	result, err := o.stages.DiscoverArtworks(ctx, state.Brief, *state.ThemeResult, state.SelectedArtists, state.Config)
	if err != nil {
		return nil, &FatalStageError{Stage: StageArtworkDiscovery, Err: err}
	}
	if len(result.Candidates) == 0 {
		return nil, &FatalStageError{Stage: StageArtworkDiscovery,
			Err: fmt.Errorf("no artworks found for the selected artists")}
	}

	state.ArtworkCandidates = result
	state.Advance(model.PhaseAwaitingArtworkSelection)
	if result.Failed > 0 {
		o.logger.Warn("artwork discovery degraded",
			"session_id", state.ID, "attempted", result.Attempted, "failed", result.Failed)
	}
	o.logger.Info("artworks discovered", "session_id", state.ID, "candidates", len(result.Candidates))
	return &state, nil
}

func (o *Orchestrator) runEnrichment(ctx context.Context, state model.SessionState) (*model.SessionState, error) {
	o.progress(ctx, state, "enriching artwork metadata")

	result, err := o.stages.Enrich(ctx, state.SelectedArtworks, state.Config)
	if err != nil {
		// Enrichment failures never block completion: degrade to the
		// selected artworks unenriched. No data is fabricated.
		o.logger.Warn("enrichment stage failed, continuing unenriched",
			"session_id", state.ID, "error", err)
		result = passthroughEnrichment(state.SelectedArtworks)
	}

	state.EnrichedArtworks = result
	state.Advance(model.PhaseGeneratingProposal)
	if result.Failed > 0 {
		o.logger.Warn("enrichment degraded",
			"session_id", state.ID, "attempted", result.Attempted, "failed", result.Failed)
	}
	return &state, nil
}

func (o *Orchestrator) runProposal(ctx context.Context, state model.SessionState) (*model.SessionState, error) {
	o.progress(ctx, state, "generating exhibition proposal")

	proposal := BuildProposal(state)
	state.FinalProposal = &proposal
	state.Advance(model.PhaseComplete)
	o.logger.Info("session complete",
		"session_id", state.ID,
		"quality_score", proposal.OverallQualityScore,
		"artworks", len(proposal.SelectedArtworks),
	)
	return &state, nil
}

// autoSelectArtists synthesizes a top-N-by-relevance selection so the
// session never rests in the awaiting phase.
func (o *Orchestrator) autoSelectArtists(state model.SessionState) (*model.SessionState, error) {
	candidates := state.ArtistCandidates.Candidates
	picked := topNIndices(len(candidates), state.Config.CandidateLimit, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})
	selected := make([]model.ArtistCandidate, 0, len(picked))
	for _, idx := range picked {
		selected = append(selected, candidates[idx])
	}
	state.SelectedArtists = selected
	state.Advance(model.PhaseArtworkDiscovery)
	o.logger.Info("artists auto-selected", "session_id", state.ID, "selected", len(selected))
	return &state, nil
}

func (o *Orchestrator) autoSelectArtworks(state model.SessionState) (*model.SessionState, error) {
	candidates := state.ArtworkCandidates.Candidates
	picked := topNIndices(len(candidates), state.Config.CandidateLimit, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})
	selected := make([]model.ArtworkCandidate, 0, len(picked))
	for _, idx := range picked {
		selected = append(selected, candidates[idx])
	}
	state.SelectedArtworks = selected
	state.Advance(model.PhaseEnriching)
	o.logger.Info("artworks auto-selected", "session_id", state.ID, "selected", len(selected))
	return &state, nil
}

// persistAndPublish lands the advanced state via CAS on the phase the
// loop observed, then publishes the stage_complete event. Persist
// strictly precedes publish: a reconnecting client can always
// reconstruct from Status whatever any event carried.
func (o *Orchestrator) persistAndPublish(ctx context.Context, observed model.Phase, state model.SessionState) bool {
	ok, err := o.store.CompareAndSwap(ctx, state.ID, observed, state)
	if err != nil {
		o.logger.Error("drive: persist state", "session_id", state.ID, "error", err)
		return false
	}
	if !ok {
		// Single-writer discipline means this only happens if a second
		// drive loop was spawned for the same session. Stop this one.
		o.logger.Warn("drive: lost phase cas, stopping loop",
			"session_id", state.ID, "observed", observed, "target", state.Phase)
		return false
	}

	if payload, stage := stagePayload(observed, state); payload != nil {
		o.sink.Publish(ctx, state.ID, Event{
			Type:    EventStageComplete,
			Stage:   stage,
			Percent: state.ProgressPercent,
			Message: stage + " complete",
			Payload: payload,
		})
	}
	return true
}

// stagePayload maps the phase that just ran to the payload it produced.
func stagePayload(ran model.Phase, state model.SessionState) (any, string) {
	switch ran {
	case model.PhaseThemeRefinement:
		return state.ThemeResult, StageThemeRefinement
	case model.PhaseArtistDiscovery:
		return state.ArtistCandidates, StageArtistDiscovery
	case model.PhaseArtworkDiscovery:
		return state.ArtworkCandidates, StageArtworkDiscovery
	case model.PhaseEnriching:
		return state.EnrichedArtworks, StageEnrichment
	case model.PhaseGeneratingProposal:
		return state.FinalProposal, StageProposal
	default:
		return nil, ""
	}
}

func (o *Orchestrator) fail(ctx context.Context, state model.SessionState, ferr *FatalStageError) {
	observed := state.Phase
	state.Fail(ferr.Stage, ferr.Err.Error())

	ok, err := o.store.CompareAndSwap(ctx, state.ID, observed, state)
	if err != nil || !ok {
		o.logger.Error("drive: persist failure", "session_id", state.ID, "cas_ok", ok, "error", err)
		return
	}

	o.logger.Error("session failed",
		"session_id", state.ID, "stage", ferr.Stage, "error", ferr.Err)
	o.sink.Publish(ctx, state.ID, Event{
		Type:    EventError,
		Stage:   ferr.Stage,
		Percent: state.ProgressPercent,
		Message: ferr.Err.Error(),
	})
}

// progress publishes a transient notification for the phase about to run.
func (o *Orchestrator) progress(ctx context.Context, state model.SessionState, message string) {
	o.sink.Publish(ctx, state.ID, Event{
		Type:    EventProgress,
		Percent: state.ProgressPercent,
		Message: message,
	})
}

func withDefaults(cfg model.SessionConfig) model.SessionConfig {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	if cfg.MinArtistRelevance <= 0 {
		cfg.MinArtistRelevance = DefaultMinArtistRelevance
	}
	if cfg.MinArtworkRelevance <= 0 {
		cfg.MinArtworkRelevance = DefaultMinArtworkRelevance
	}
	return cfg
}

// topNIndices returns the indices of the top n entries under less,
// in descending rank order.
func topNIndices(total, n int, less func(i, j int) bool) []int {
	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(idx[a], idx[b]) })
	if n > 0 && n < len(idx) {
		idx = idx[:n]
	}
	return idx
}

func passthroughEnrichment(artworks []model.ArtworkCandidate) *model.EnrichmentResult {
	items := make([]model.EnrichedArtwork, 0, len(artworks))
	for _, a := range artworks {
		items = append(items, model.EnrichedArtwork{ArtworkCandidate: a, Enriched: false})
	}
	return &model.EnrichmentResult{Artworks: items, Attempted: len(artworks), Failed: len(artworks)}
}
