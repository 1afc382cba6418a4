package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

const europeanaSearchBase = "https://api.europeana.eu/record/v2/search.json"

// Europeana searches the Europeana record API for digitized artworks
// held by European cultural institutions.
type Europeana struct {
	hc      *http.Client
	cache   *cache.Cache
	apiBase string
	apiKey  string
}

// NewEuropeana creates a Europeana client. baseURL overrides the
// production endpoint for tests; pass "" for the real API.
func NewEuropeana(baseURL, apiKey string, timeout time.Duration) *Europeana {
	if baseURL == "" {
		baseURL = europeanaSearchBase
	}
	return &Europeana{
		hc:      httpClient(timeout),
		cache:   newCache(),
		apiBase: baseURL,
		apiKey:  apiKey,
	}
}

// Enabled reports whether the client has an API key. Without one the
// record API rejects every request, so callers skip this source.
func (e *Europeana) Enabled() bool { return e.apiKey != "" }

// EuropeanaRecord is one artwork hit from the record API.
type EuropeanaRecord struct {
	ID           string
	Title        string
	Creator      string
	Provider     string
	Country      string
	Year         int
	ThumbnailURL string
}

// IIIFManifest returns the IIIF Presentation manifest URL for the
// record, derived from its Europeana identifier.
func (r EuropeanaRecord) IIIFManifest() string {
	if r.ID == "" {
		return ""
	}
	return "https://iiif.europeana.eu/presentation" + r.ID + "/manifest"
}

type europeanaSearchResponse struct {
	Success bool `json:"success"`
	Items   []struct {
		ID           string   `json:"id"`
		Title        []string `json:"title"`
		DCCreator    []string `json:"dcCreator"`
		DataProvider []string `json:"dataProvider"`
		Country      []string `json:"country"`
		Year         []string `json:"year"`
		EdmPreview   []string `json:"edmPreview"`
	} `json:"items"`
}

// SearchArtworks finds image records matching query, typically an
// artist name optionally combined with theme terms.
func (e *Europeana) SearchArtworks(ctx context.Context, query string, rows int) ([]EuropeanaRecord, error) {
	if rows <= 0 {
		rows = 10
	}
	params := url.Values{
		"wskey":   {e.apiKey},
		"query":   {query},
		"rows":    {strconv.Itoa(rows)},
		"qf":      {"TYPE:IMAGE"},
		"profile": {"rich"},
	}

	var resp europeanaSearchResponse
	if err := getJSON(ctx, e.hc, e.cache, e.apiBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("europeana search %q: %w", query, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("europeana search %q: api reported failure", query)
	}

	records := make([]EuropeanaRecord, 0, len(resp.Items))
	for _, it := range resp.Items {
		rec := EuropeanaRecord{
			ID:           it.ID,
			Title:        first(it.Title),
			Creator:      first(it.DCCreator),
			Provider:     first(it.DataProvider),
			Country:      first(it.Country),
			ThumbnailURL: first(it.EdmPreview),
		}
		if y := first(it.Year); y != "" {
			rec.Year, _ = strconv.Atoi(y)
		}
		records = append(records, rec)
	}
	return records, nil
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
