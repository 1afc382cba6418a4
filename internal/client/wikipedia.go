package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	wikipediaAPIBase     = "https://en.wikipedia.org/w/api.php"
	wikipediaSummaryBase = "https://en.wikipedia.org/api/rest_v1/page/summary/"
)

// Wikipedia searches articles and fetches page summaries via the
// MediaWiki action API and the REST summary endpoint.
type Wikipedia struct {
	hc      *http.Client
	cache   *cache.Cache
	apiBase string
	restURL string
}

// NewWikipedia creates a Wikipedia client. baseURL overrides the
// production endpoints for tests; pass "" for the real API.
func NewWikipedia(baseURL string, timeout time.Duration) *Wikipedia {
	apiBase, restURL := wikipediaAPIBase, wikipediaSummaryBase
	if baseURL != "" {
		apiBase = baseURL + "/w/api.php"
		restURL = baseURL + "/api/rest_v1/page/summary/"
	}
	return &Wikipedia{
		hc:      httpClient(timeout),
		cache:   newCache(),
		apiBase: apiBase,
		restURL: restURL,
	}
}

// WikipediaPage is one search hit.
type WikipediaPage struct {
	Title     string
	Snippet   string
	URL       string
	WordCount int
}

type wikipediaSearchResponse struct {
	Query struct {
		Search []struct {
			Title     string `json:"title"`
			Snippet   string `json:"snippet"`
			WordCount int    `json:"wordcount"`
		} `json:"search"`
	} `json:"query"`
}

// Search returns up to limit articles matching query.
func (w *Wikipedia) Search(ctx context.Context, query string, limit int) ([]WikipediaPage, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(limit)},
		"srprop":   {"snippet|size|wordcount"},
	}

	var resp wikipediaSearchResponse
	if err := getJSON(ctx, w.hc, w.cache, w.apiBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("wikipedia search %q: %w", query, err)
	}

	pages := make([]WikipediaPage, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		pages = append(pages, WikipediaPage{
			Title:     s.Title,
			Snippet:   stripSearchMarkup(s.Snippet),
			URL:       "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(s.Title, " ", "_")),
			WordCount: s.WordCount,
		})
	}
	return pages, nil
}

type wikipediaSummaryResponse struct {
	Extract string `json:"extract"`
}

// Summary returns the lead extract for a page title, or "" when the
// page has none.
func (w *Wikipedia) Summary(ctx context.Context, title string) (string, error) {
	var resp wikipediaSummaryResponse
	u := w.restURL + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	if err := getJSON(ctx, w.hc, w.cache, u, nil, &resp); err != nil {
		return "", fmt.Errorf("wikipedia summary %q: %w", title, err)
	}
	return resp.Extract, nil
}

// stripSearchMarkup removes the highlight spans the action API embeds
// in snippets.
func stripSearchMarkup(s string) string {
	s = strings.ReplaceAll(s, `<span class="searchmatch">`, "")
	return strings.ReplaceAll(s, "</span>", "")
}
