// Package client implements the external data-source clients the
// discovery stages call: Wikipedia, Wikidata (SPARQL) and Europeana.
//
// All clients share the same shape: context-aware GET helpers, a TTL
// response cache so repeated stage fan-outs don't hammer the upstream
// APIs, and typed result records. Failures are returned to the caller;
// the stages decide whether a failed lookup degrades or aborts.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

// UserAgent identifies this service to the upstream APIs, which ask
// for a contactable agent string.
const UserAgent = "tenran/1.0 (exhibition curation pipeline)"

const (
	defaultTimeout  = 30 * time.Second
	cacheTTL        = 15 * time.Minute
	cachePurgeEvery = 5 * time.Minute
)

// HTTPError reports a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("client: %s returned status %d", e.URL, e.StatusCode)
}

// httpClient is the shared transport configuration.
func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func newCache() *cache.Cache {
	return cache.New(cacheTTL, cachePurgeEvery)
}

// getJSON fetches url, decodes the JSON body into out, and caches the
// raw body under url so identical requests within the TTL are served
// locally.
func getJSON(ctx context.Context, hc *http.Client, c *cache.Cache, url string, headers map[string]string, out any) error {
	if raw, found := c.Get(url); found {
		return json.Unmarshal(raw.([]byte), out)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}

	c.Set(url, body, cache.DefaultExpiration)
	return json.Unmarshal(body, out)
}
