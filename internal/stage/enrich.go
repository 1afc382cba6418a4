package stage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tenran/internal/model"
)

// Enrich fills description gaps on the selected artworks from
// Wikipedia page summaries. Failures are strictly per-item: a failed
// lookup passes the candidate through unenriched and bumps the Failed
// count. The stage itself only errors when the context is cancelled.
func (s *Set) Enrich(ctx context.Context, artworks []model.ArtworkCandidate, _ model.SessionConfig) (*model.EnrichmentResult, error) {
	enriched := make([]model.EnrichedArtwork, len(artworks))
	failures := make([]bool, len(artworks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, w := range artworks {
		g.Go(func() error {
			enriched[i], failures[i] = s.enrichOne(gctx, w)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	return &model.EnrichmentResult{
		Artworks:  enriched,
		Attempted: len(artworks),
		Failed:    failed,
	}, nil
}

// enrichOne attempts a summary lookup for one artwork. The second
// return reports whether the lookup failed (as opposed to finding
// nothing, which is not a failure).
func (s *Set) enrichOne(ctx context.Context, w model.ArtworkCandidate) (model.EnrichedArtwork, bool) {
	out := model.EnrichedArtwork{ArtworkCandidate: w}

	// An artwork's own article is the best source; fall back to the
	// artist article for context when the work has none.
	description, err := s.lookupSummary(ctx, w.Title)
	if err != nil {
		s.logger.Warn("enrichment lookup failed", "artwork", w.Title, "error", err)
		out.EnrichmentNotes = "summary lookup failed"
		return out, true
	}
	if description == "" && w.ArtistName != "" {
		artistSummary, err := s.lookupSummary(ctx, w.ArtistName)
		if err == nil && artistSummary != "" {
			out.SubjectSummary = artistSummary
			out.Enriched = true
			out.EnrichmentNotes = "enriched from artist article"
			return out, false
		}
	}
	if description == "" {
		out.EnrichmentNotes = "no article found"
		return out, false
	}

	out.Description = description
	out.Enriched = true
	return out, false
}

// lookupSummary searches for the title and fetches the top hit's lead
// extract. Empty results are returned as "", not an error.
func (s *Set) lookupSummary(ctx context.Context, title string) (string, error) {
	if title == "" {
		return "", nil
	}
	pages, err := s.wikipedia.Search(ctx, title, 1)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", nil
	}
	return s.wikipedia.Summary(ctx, pages[0].Title)
}
