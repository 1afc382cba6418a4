package stage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tenran/internal/client"
	"github.com/ashita-ai/tenran/internal/model"
)

// DiscoverArtists queries Wikidata for each theme concept and each
// curator-provided reference artist, merges and scores the hits, and
// returns the ordered candidate list. Individual query failures are
// degraded into the Failed count; the stage errors only when every
// query failed or no candidate survived the relevance floor.
func (s *Set) DiscoverArtists(ctx context.Context, brief model.CuratorBrief, theme model.RefinedTheme, cfg model.SessionConfig) (*model.ArtistDiscoveryResult, error) {
	queries := artistQueries(brief, theme)

	var (
		mu     sync.Mutex
		hits   []client.WikidataArtist
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(discoveryConcurrency)
	for _, q := range queries {
		g.Go(func() error {
			artists, err := s.wikidata.SearchArtists(gctx, q, 10)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("artist query failed", "query", q, "error", err)
				failed++
				return nil
			}
			hits = append(hits, artists...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("artists: discovery fan-out: %w", err)
	}
	if failed == len(queries) {
		return nil, fmt.Errorf("artists: all %d discovery queries failed", len(queries))
	}

	candidates := dedupeArtists(hits)
	concepts := theme.ConceptNames()
	for i := range candidates {
		candidates[i].RelevanceScore, candidates[i].RelevanceReasoning =
			scoreArtist(candidates[i], concepts, brief.ReferenceArtists)
	}

	candidates = filterArtists(candidates, cfg.MinArtistRelevance)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})
	if len(candidates) > cfg.CandidateLimit {
		candidates = candidates[:cfg.CandidateLimit]
	}

	return &model.ArtistDiscoveryResult{
		Candidates: candidates,
		Attempted:  len(queries),
		Failed:     failed,
	}, nil
}

// artistQueries is the query plan: every theme concept, every brief
// movement filter, and every reference artist by name.
func artistQueries(brief model.CuratorBrief, theme model.RefinedTheme) []string {
	seen := make(map[string]bool)
	var queries []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			return
		}
		seen[key] = true
		queries = append(queries, q)
	}
	for _, c := range theme.ConceptNames() {
		add(c)
	}
	for _, m := range brief.Filters.ArtMovements {
		add(m)
	}
	for _, ref := range brief.ReferenceArtists {
		add(ref)
	}
	return queries
}

// dedupeArtists merges hits on Wikidata QID, falling back to the
// lowercased name when a QID is missing.
func dedupeArtists(hits []client.WikidataArtist) []model.ArtistCandidate {
	seen := make(map[string]bool)
	candidates := make([]model.ArtistCandidate, 0, len(hits))
	for _, h := range hits {
		key := h.QID
		if key == "" {
			key = strings.ToLower(h.Name)
		}
		if h.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, model.ArtistCandidate{
			Name:       h.Name,
			BirthYear:  h.BirthYear,
			DeathYear:  h.DeathYear,
			Biography:  h.Description,
			Movements:  h.Movements,
			WikidataID: h.QID,
			Source:     "wikidata",
		})
	}
	return candidates
}

func filterArtists(candidates []model.ArtistCandidate, minScore float64) []model.ArtistCandidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if c.RelevanceScore >= minScore {
			kept = append(kept, c)
		}
	}
	return kept
}
