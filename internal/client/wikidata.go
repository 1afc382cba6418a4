package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const wikidataSPARQLBase = "https://query.wikidata.org/sparql"

// Wikidata runs SPARQL queries against the Wikidata query service for
// structured artist and artwork records.
type Wikidata struct {
	hc       *http.Client
	cache    *cache.Cache
	endpoint string
}

// NewWikidata creates a Wikidata client. endpoint overrides the query
// service URL for tests; pass "" for the real service.
func NewWikidata(endpoint string, timeout time.Duration) *Wikidata {
	if endpoint == "" {
		endpoint = wikidataSPARQLBase
	}
	return &Wikidata{hc: httpClient(timeout), cache: newCache(), endpoint: endpoint}
}

// WikidataArtist is one structured artist hit.
type WikidataArtist struct {
	QID         string
	Name        string
	Description string
	BirthYear   int
	DeathYear   int
	Movements   []string
}

// WikidataArtwork is one structured artwork hit.
type WikidataArtwork struct {
	QID         string
	Title       string
	CreatorName string
	ImageURL    string
	Year        int
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// SearchArtists finds artists whose label contains query, with birth
// and death dates and movement labels where Wikidata has them.
func (w *Wikidata) SearchArtists(ctx context.Context, query string, limit int) ([]WikidataArtist, error) {
	if limit <= 0 {
		limit = 10
	}
	sparql := fmt.Sprintf(`
SELECT DISTINCT ?item ?itemLabel ?description ?birth ?death ?movementLabel WHERE {
  ?item rdfs:label ?label .
  ?item wdt:P106/wdt:P279* wd:Q483501 .
  FILTER(CONTAINS(LCASE(?label), %q))
  OPTIONAL { ?item schema:description ?description FILTER(LANG(?description) = "en") }
  OPTIONAL { ?item wdt:P569 ?birth }
  OPTIONAL { ?item wdt:P570 ?death }
  OPTIONAL { ?item wdt:P135 ?movement }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en" }
}
LIMIT %d`, strings.ToLower(query), limit)

	resp, err := w.query(ctx, sparql)
	if err != nil {
		return nil, fmt.Errorf("wikidata artists %q: %w", query, err)
	}

	// One artist can bind multiple movement rows; merge on QID.
	byQID := make(map[string]*WikidataArtist)
	order := make([]string, 0, len(resp.Results.Bindings))
	for _, b := range resp.Results.Bindings {
		qid := lastSegment(b["item"].Value)
		if qid == "" {
			continue
		}
		a, ok := byQID[qid]
		if !ok {
			a = &WikidataArtist{
				QID:         qid,
				Name:        b["itemLabel"].Value,
				Description: b["description"].Value,
				BirthYear:   yearOf(b["birth"].Value),
				DeathYear:   yearOf(b["death"].Value),
			}
			byQID[qid] = a
			order = append(order, qid)
		}
		if mv := b["movementLabel"].Value; mv != "" && !contains(a.Movements, mv) {
			a.Movements = append(a.Movements, mv)
		}
	}

	artists := make([]WikidataArtist, 0, len(order))
	for _, qid := range order {
		artists = append(artists, *byQID[qid])
	}
	return artists, nil
}

// ArtworksByCreator finds works of art created by the named artist.
func (w *Wikidata) ArtworksByCreator(ctx context.Context, artistName string, limit int) ([]WikidataArtwork, error) {
	if limit <= 0 {
		limit = 10
	}
	sparql := fmt.Sprintf(`
SELECT DISTINCT ?item ?itemLabel ?creatorLabel ?image ?date WHERE {
  ?item wdt:P31/wdt:P279* wd:Q838948 .
  ?item wdt:P170 ?creator .
  ?creator rdfs:label ?creatorName .
  FILTER(LANG(?creatorName) = "en")
  FILTER(CONTAINS(LCASE(?creatorName), %q))
  OPTIONAL { ?item wdt:P18 ?image }
  OPTIONAL { ?item wdt:P571 ?date }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en" }
}
LIMIT %d`, strings.ToLower(artistName), limit)

	resp, err := w.query(ctx, sparql)
	if err != nil {
		return nil, fmt.Errorf("wikidata artworks for %q: %w", artistName, err)
	}

	works := make([]WikidataArtwork, 0, len(resp.Results.Bindings))
	for _, b := range resp.Results.Bindings {
		qid := lastSegment(b["item"].Value)
		if qid == "" {
			continue
		}
		works = append(works, WikidataArtwork{
			QID:         qid,
			Title:       b["itemLabel"].Value,
			CreatorName: b["creatorLabel"].Value,
			ImageURL:    b["image"].Value,
			Year:        yearOf(b["date"].Value),
		})
	}
	return works, nil
}

func (w *Wikidata) query(ctx context.Context, sparql string) (*sparqlResponse, error) {
	params := url.Values{"query": {sparql}, "format": {"json"}}
	var resp sparqlResponse
	if err := getJSON(ctx, w.hc, w.cache, w.endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func lastSegment(uri string) string {
	if uri == "" {
		return ""
	}
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// yearOf parses the leading year of a Wikidata datetime literal
// ("1904-05-11T00:00:00Z").
func yearOf(v string) int {
	if len(v) < 4 {
		return 0
	}
	y, err := strconv.Atoi(v[:4])
	if err != nil {
		return 0
	}
	return y
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
