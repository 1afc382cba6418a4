package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tenran/internal/model"
	"github.com/ashita-ai/tenran/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testBrief() model.CuratorBrief {
	return model.CuratorBrief{
		Title:            "Dreams & Reality",
		Description:      "An exploration of the surrealist impulse.",
		Concepts:         []string{"surrealism"},
		ReferenceArtists: []string{"Salvador Dalí"},
		TargetAudience:   "general",
		DurationWeeks:    12,
	}
}

func testTheme() *model.RefinedTheme {
	return &model.RefinedTheme{
		ExhibitionTitle:     "Dreams and Reality: The Surrealist Impulse",
		CentralArgument:     "Surrealism reframed the everyday as uncanny.",
		CuratorialStatement: "This exhibition examines surrealism.",
		PrimaryFocus:        "surrealism",
		ValidatedConcepts: []model.ConceptValidation{
			{Concept: "surrealism", Valid: true, Confidence: 0.9},
		},
		TargetAudience:    "general",
		ComplexityLevel:   "accessible",
		EstimatedDuration: "12 weeks",
		Confidence:        0.85,
		CreatedAt:         time.Now().UTC(),
	}
}

func artistFixtures(n int) []model.ArtistCandidate {
	out := make([]model.ArtistCandidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.ArtistCandidate{
			Name:           fmt.Sprintf("Artist %d", i),
			Source:         "wikidata",
			RelevanceScore: 1.0 - float64(i)*0.05,
		})
	}
	return out
}

func artworkFixtures(n int) []model.ArtworkCandidate {
	out := make([]model.ArtworkCandidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.ArtworkCandidate{
			URI:               fmt.Sprintf("https://example.org/work/%d", i),
			Title:             fmt.Sprintf("Work %d", i),
			ArtistName:        fmt.Sprintf("Artist %d", i%3),
			InstitutionName:   "Museum of Testing",
			Source:            "europeana",
			RelevanceScore:    1.0 - float64(i)*0.05,
			CompletenessScore: 0.8,
		})
	}
	return out
}

// stubStages returns canned payloads, with per-stage error overrides.
type stubStages struct {
	themeErr    error
	artistsErr  error
	artworksErr error
	enrichErr   error

	artists  *model.ArtistDiscoveryResult
	artworks *model.ArtworkDiscoveryResult
}

func (s *stubStages) RefineTheme(_ context.Context, _ model.CuratorBrief, _ model.SessionConfig) (*model.RefinedTheme, error) {
	if s.themeErr != nil {
		return nil, s.themeErr
	}
	return testTheme(), nil
}

func (s *stubStages) DiscoverArtists(_ context.Context, _ model.CuratorBrief, _ model.RefinedTheme, cfg model.SessionConfig) (*model.ArtistDiscoveryResult, error) {
	if s.artistsErr != nil {
		return nil, s.artistsErr
	}
	if s.artists != nil {
		return s.artists, nil
	}
	c := artistFixtures(8)
	return &model.ArtistDiscoveryResult{Candidates: c, Attempted: len(c)}, nil
}

func (s *stubStages) DiscoverArtworks(_ context.Context, _ model.CuratorBrief, _ model.RefinedTheme, artists []model.ArtistCandidate, cfg model.SessionConfig) (*model.ArtworkDiscoveryResult, error) {
	if s.artworksErr != nil {
		return nil, s.artworksErr
	}
	if s.artworks != nil {
		return s.artworks, nil
	}
	c := artworkFixtures(10)
	return &model.ArtworkDiscoveryResult{Candidates: c, Attempted: len(c)}, nil
}

func (s *stubStages) Enrich(_ context.Context, artworks []model.ArtworkCandidate, _ model.SessionConfig) (*model.EnrichmentResult, error) {
	if s.enrichErr != nil {
		return nil, s.enrichErr
	}
	items := make([]model.EnrichedArtwork, 0, len(artworks))
	for _, a := range artworks {
		items = append(items, model.EnrichedArtwork{
			ArtworkCandidate: a,
			Description:      "Enriched description",
			Enriched:         true,
		})
	}
	return &model.EnrichmentResult{Artworks: items, Attempted: len(artworks)}, nil
}

// captureSink records every published event.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Publish(_ context.Context, _ uuid.UUID, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func newTestOrchestrator(stages Stages) (*Orchestrator, *store.Memory, *captureSink) {
	st := store.NewMemory()
	sink := &captureSink{}
	return New(st, stages, sink, testLogger()), st, sink
}

// waitForPhase polls Status until the session reaches want or the
// deadline expires.
func waitForPhase(t *testing.T, o *Orchestrator, id uuid.UUID, want model.Phase) model.SessionState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state, err := o.Status(context.Background(), id)
		require.NoError(t, err)
		if state.Phase == want {
			return state
		}
		if state.Phase == model.PhaseFailed && want != model.PhaseFailed {
			t.Fatalf("session failed while waiting for %s: %+v", want, state.Error)
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s", want)
	return model.SessionState{}
}

func TestAutoSelectEndToEnd(t *testing.T) {
	o, _, sink := newTestOrchestrator(&stubStages{})

	id, err := o.Submit(context.Background(), testBrief(), model.SessionConfig{
		AutoSelect:     true,
		CandidateLimit: 5,
	})
	require.NoError(t, err)

	state := waitForPhase(t, o, id, model.PhaseComplete)

	assert.LessOrEqual(t, len(state.SelectedArtists), 5)
	require.NotNil(t, state.FinalProposal)
	assert.Equal(t, 100, state.ProgressPercent)
	assert.Equal(t, id.String(), state.FinalProposal.SessionID)
	assert.NotEmpty(t, state.FinalProposal.LoanRequirements)

	// No external selection was required: a completed event was
	// published and no event ever reported an awaiting phase as stable.
	var sawCompleted bool
	for _, ev := range sink.all() {
		if ev.Type == EventCompleted {
			sawCompleted = true
		}
	}
	assert.True(t, sawCompleted, "expected a completed event")
}

func TestPhaseMonotonicity(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})

	id, err := o.Submit(context.Background(), testBrief(), model.SessionConfig{AutoSelect: true})
	require.NoError(t, err)

	last := -1
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state, err := o.Status(context.Background(), id)
		require.NoError(t, err)
		idx := state.Phase.Index()
		require.GreaterOrEqual(t, idx, last, "phase went backwards: %s", state.Phase)
		last = idx
		if state.Phase == model.PhaseComplete {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("session never completed")
}

func TestPauseAndSelectFlow(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)

	state := waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)
	require.NotNil(t, state.ArtistCandidates)
	assert.Nil(t, state.SelectedArtists)

	_, err = o.SelectArtists(ctx, id, model.CandidateSelection{Indices: []int{0, 2, 4}})
	require.NoError(t, err)

	state = waitForPhase(t, o, id, model.PhaseAwaitingArtworkSelection)
	assert.Len(t, state.SelectedArtists, 3)
	assert.Equal(t, "Artist 2", state.SelectedArtists[1].Name)
	require.NotNil(t, state.ArtworkCandidates)

	_, err = o.SelectArtworks(ctx, id, model.CandidateSelection{Indices: []int{1, 0}})
	require.NoError(t, err)

	state = waitForPhase(t, o, id, model.PhaseComplete)
	assert.Len(t, state.SelectedArtworks, 2)
	// Selection order is preserved: indices address the published list.
	assert.Equal(t, "Work 1", state.SelectedArtworks[0].Title)
	require.NotNil(t, state.FinalProposal)
}

func TestSelectionIndexValidation(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{
		artists: &model.ArtistDiscoveryResult{Candidates: artistFixtures(5), Attempted: 5},
	})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)
	waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)

	cases := []struct {
		name    string
		indices []int
	}{
		{"out of range", []int{0, 1, 7}},
		{"negative", []int{-1}},
		{"empty", nil},
		{"duplicate", []int{1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.SelectArtists(ctx, id, model.CandidateSelection{Indices: tc.indices})
			var pre *PreconditionError
			require.ErrorAs(t, err, &pre)

			// Phase must be untouched.
			state, err := o.Status(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, model.PhaseAwaitingArtistSelection, state.Phase)
		})
	}
}

func TestSelectionWrongPhase(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)
	waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)

	// Artwork selection while awaiting artist selection.
	_, err = o.SelectArtworks(ctx, id, model.CandidateSelection{Indices: []int{0}})
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
}

func TestSelectionRaceSingleWinner(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)
	waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)

	const racers = 8
	errs := make(chan error, racers)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < racers; i++ {
		go func() {
			start.Wait()
			_, err := o.SelectArtists(ctx, id, model.CandidateSelection{Indices: []int{0, 1}})
			errs <- err
		}()
	}
	start.Done()

	var won, rejected int
	for i := 0; i < racers; i++ {
		err := <-errs
		if err == nil {
			won++
			continue
		}
		var pre *PreconditionError
		require.ErrorAs(t, err, &pre)
		rejected++
	}
	assert.Equal(t, 1, won, "exactly one selection must be applied")
	assert.Equal(t, racers-1, rejected)

	state := waitForPhase(t, o, id, model.PhaseAwaitingArtworkSelection)
	assert.Len(t, state.SelectedArtists, 2)
}

func TestThemeFailureIsFatal(t *testing.T) {
	o, _, sink := newTestOrchestrator(&stubStages{
		themeErr: errors.New("llm unavailable"),
	})

	id, err := o.Submit(context.Background(), testBrief(), model.SessionConfig{AutoSelect: true})
	require.NoError(t, err)

	state := waitForPhase(t, o, id, model.PhaseFailed)
	require.NotNil(t, state.Error)
	assert.Equal(t, StageThemeRefinement, state.Error.Stage)
	assert.Contains(t, state.Error.Message, "llm unavailable")
	assert.Nil(t, state.ThemeResult)

	var sawError bool
	for _, ev := range sink.all() {
		if ev.Type == EventError {
			sawError = true
		}
	}
	assert.True(t, sawError, "expected an error event")
}

func TestEmptyArtistListIsFatal(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{
		artists: &model.ArtistDiscoveryResult{Attempted: 4, Failed: 4},
	})

	id, err := o.Submit(context.Background(), testBrief(), model.SessionConfig{AutoSelect: true})
	require.NoError(t, err)

	state := waitForPhase(t, o, id, model.PhaseFailed)
	require.NotNil(t, state.Error)
	assert.Equal(t, StageArtistDiscovery, state.Error.Stage)
}

func TestDegradedDiscoveryContinues(t *testing.T) {
	// 7 of 10 scoring calls succeeded; the stage reports the subset.
	o, _, _ := newTestOrchestrator(&stubStages{
		artworks: &model.ArtworkDiscoveryResult{
			Candidates: artworkFixtures(7),
			Attempted:  10,
			Failed:     3,
		},
	})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)
	waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)

	_, err = o.SelectArtists(ctx, id, model.CandidateSelection{Indices: []int{0}})
	require.NoError(t, err)

	state := waitForPhase(t, o, id, model.PhaseAwaitingArtworkSelection)
	require.NotNil(t, state.ArtworkCandidates)
	assert.Len(t, state.ArtworkCandidates.Candidates, 7)
	assert.Equal(t, 3, state.ArtworkCandidates.Failed)
}

func TestEnrichmentFailureDegradesToPassthrough(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{
		enrichErr: errors.New("search api down"),
	})

	id, err := o.Submit(context.Background(), testBrief(), model.SessionConfig{
		AutoSelect:     true,
		CandidateLimit: 4,
	})
	require.NoError(t, err)

	state := waitForPhase(t, o, id, model.PhaseComplete)
	require.NotNil(t, state.EnrichedArtworks)
	assert.Equal(t, len(state.SelectedArtworks), state.EnrichedArtworks.Failed)
	for _, a := range state.EnrichedArtworks.Artworks {
		assert.False(t, a.Enriched)
	}
	// The gap is visible to the consumer, not hidden.
	assert.Equal(t, state.EnrichedArtworks.Failed, state.FinalProposal.ContentMetrics.EnrichmentFailed)
}

func TestPayloadPresenceMatchesPhase(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)

	state := waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)
	assert.NotNil(t, state.ThemeResult)
	assert.NotNil(t, state.ArtistCandidates)
	assert.Nil(t, state.SelectedArtists)
	assert.Nil(t, state.ArtworkCandidates)
	assert.Nil(t, state.EnrichedArtworks)
	assert.Nil(t, state.FinalProposal)

	_, err = o.SelectArtists(ctx, id, model.CandidateSelection{Indices: []int{0, 1}})
	require.NoError(t, err)
	state = waitForPhase(t, o, id, model.PhaseAwaitingArtworkSelection)
	assert.NotNil(t, state.SelectedArtists)
	assert.NotNil(t, state.ArtworkCandidates)
	assert.Nil(t, state.SelectedArtworks)

	_, err = o.SelectArtworks(ctx, id, model.CandidateSelection{Indices: []int{0}})
	require.NoError(t, err)
	state = waitForPhase(t, o, id, model.PhaseComplete)
	assert.NotNil(t, state.SelectedArtworks)
	assert.NotNil(t, state.EnrichedArtworks)
	assert.NotNil(t, state.FinalProposal)
}

func TestReconnectionRecoversHistory(t *testing.T) {
	o, _, sink := newTestOrchestrator(&stubStages{})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)
	state := waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)

	// Find the artist_discovery stage_complete event and check Status
	// carries the identical payload: state is the record of truth.
	var evPayload *model.ArtistDiscoveryResult
	for _, ev := range sink.all() {
		if ev.Type == EventStageComplete && ev.Stage == StageArtistDiscovery {
			p, ok := ev.Payload.(*model.ArtistDiscoveryResult)
			require.True(t, ok)
			evPayload = p
		}
	}
	require.NotNil(t, evPayload, "expected an artist_discovery stage_complete event")
	assert.Equal(t, evPayload, state.ArtistCandidates)
}

func TestProposalBeforeComplete(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})
	ctx := context.Background()

	id, err := o.Submit(ctx, testBrief(), model.SessionConfig{})
	require.NoError(t, err)
	waitForPhase(t, o, id, model.PhaseAwaitingArtistSelection)

	_, err = o.Proposal(ctx, id)
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
}

func TestSubmitInvalidBrief(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})

	_, err := o.Submit(context.Background(), model.CuratorBrief{Title: "No concepts"}, model.SessionConfig{})
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
}

func TestResumeAfterRestart(t *testing.T) {
	// Simulate a crash mid-pipeline: state parked at artwork_discovery
	// with a selection already applied, and a new orchestrator process.
	st := store.NewMemory()
	state := model.NewSessionState(testBrief(), model.SessionConfig{CandidateLimit: 5})
	state.ThemeResult = testTheme()
	state.ArtistCandidates = &model.ArtistDiscoveryResult{Candidates: artistFixtures(5), Attempted: 5}
	state.SelectedArtists = artistFixtures(2)
	state.Advance(model.PhaseArtworkDiscovery)
	require.NoError(t, st.Create(context.Background(), state))

	o := New(st, &stubStages{}, nil, testLogger())
	require.NoError(t, o.Resume(context.Background(), state.ID))

	got := waitForPhase(t, o, state.ID, model.PhaseAwaitingArtworkSelection)
	require.NotNil(t, got.ArtworkCandidates)

	// A session parked at a pause point is left parked.
	require.NoError(t, o.Resume(context.Background(), state.ID))
	time.Sleep(10 * time.Millisecond)
	still, err := o.Status(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseAwaitingArtworkSelection, still.Phase)
}

func TestStatusUnknownSession(t *testing.T) {
	o, _, _ := newTestOrchestrator(&stubStages{})
	_, err := o.Status(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}
