package stage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tenran/internal/model"
)

// perArtistRows caps how many records each source returns per artist,
// so a large selection cannot explode the fan-out.
const perArtistRows = 10

// DiscoverArtworks queries Europeana and Wikidata for works by each
// selected artist with bounded concurrency, scores the merged results
// against the theme, and returns the ordered candidate list. A failed
// per-artist lookup is degraded into the Failed count.
func (s *Set) DiscoverArtworks(ctx context.Context, brief model.CuratorBrief, theme model.RefinedTheme, artists []model.ArtistCandidate, cfg model.SessionConfig) (*model.ArtworkDiscoveryResult, error) {
	if len(artists) == 0 {
		return nil, fmt.Errorf("artworks: no selected artists to search for")
	}

	var (
		mu         sync.Mutex
		candidates []model.ArtworkCandidate
		attempted  int
		failed     int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(discoveryConcurrency)
	for _, artist := range artists {
		g.Go(func() error {
			works, nAttempted, nFailed := s.artworksForArtist(gctx, artist, theme)
			mu.Lock()
			candidates = append(candidates, works...)
			attempted += nAttempted
			failed += nFailed
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("artworks: discovery fan-out: %w", err)
	}
	if attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("artworks: all %d source lookups failed", attempted)
	}

	candidates = dedupeArtworks(candidates)
	concepts := theme.ConceptNames()
	from, to := brief.Filters.YearRangeFrom, brief.Filters.YearRangeTo
	for i := range candidates {
		candidates[i].CompletenessScore = completeness(candidates[i])
		candidates[i].RelevanceScore, candidates[i].RelevanceReasoning =
			scoreArtwork(candidates[i], candidates[i].ArtistName, concepts, from, to)
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.RelevanceScore >= cfg.MinArtworkRelevance {
			kept = append(kept, c)
		}
	}
	candidates = kept

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})
	if len(candidates) > cfg.CandidateLimit {
		candidates = candidates[:cfg.CandidateLimit]
	}

	return &model.ArtworkDiscoveryResult{
		Candidates: candidates,
		Attempted:  attempted,
		Failed:     failed,
	}, nil
}

// artworksForArtist runs the per-artist lookups against each enabled
// source and converts the hits to candidates.
func (s *Set) artworksForArtist(ctx context.Context, artist model.ArtistCandidate, theme model.RefinedTheme) (works []model.ArtworkCandidate, attempted, failed int) {
	if s.europeana != nil && s.europeana.Enabled() {
		attempted++
		query := fmt.Sprintf("who:(%s)", artist.Name)
		records, err := s.europeana.SearchArtworks(ctx, query, perArtistRows)
		if err != nil {
			s.logger.Warn("europeana lookup failed", "artist", artist.Name, "error", err)
			failed++
		} else {
			for _, r := range records {
				creator := r.Creator
				if creator == "" {
					creator = artist.Name
				}
				works = append(works, model.ArtworkCandidate{
					URI:             "europeana:" + r.ID,
					Title:           r.Title,
					ArtistName:      creator,
					DateCreated:     yearString(r.Year),
					InstitutionName: r.Provider,
					Country:         r.Country,
					IIIFManifest:    r.IIIFManifest(),
					ThumbnailURL:    r.ThumbnailURL,
					Source:          "europeana",
				})
			}
		}
	}

	attempted++
	hits, err := s.wikidata.ArtworksByCreator(ctx, artist.Name, perArtistRows)
	if err != nil {
		s.logger.Warn("wikidata artwork lookup failed", "artist", artist.Name, "error", err)
		failed++
		return works, attempted, failed
	}
	for _, h := range hits {
		works = append(works, model.ArtworkCandidate{
			URI:          "wikidata:" + h.QID,
			Title:        h.Title,
			ArtistName:   h.CreatorName,
			DateCreated:  yearString(h.Year),
			ThumbnailURL: h.ImageURL,
			Source:       "wikidata",
		})
	}
	return works, attempted, failed
}

// dedupeArtworks drops duplicate URIs and cross-source duplicates of
// the same title by the same artist, keeping the first (Europeana
// records come first and carry richer holding metadata).
func dedupeArtworks(candidates []model.ArtworkCandidate) []model.ArtworkCandidate {
	seen := make(map[string]bool)
	out := candidates[:0]
	for _, c := range candidates {
		titleKey := strings.ToLower(c.Title) + "|" + strings.ToLower(c.ArtistName)
		if c.Title == "" || seen[c.URI] || seen[titleKey] {
			continue
		}
		seen[c.URI] = true
		seen[titleKey] = true
		out = append(out, c)
	}
	return out
}

func yearString(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
