// Package taxonomy fetches the species reference list from the remote taxonomy API.
// It owns authentication, retry/backoff, and paging; consumers see a finite slice
// of species records
package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	perr "birddb/internal/platform/errors"
	"birddb/internal/platform/logger"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	baseURLDefault  = "https://api.ebird.org/v2"
	authHeader      = "X-eBirdApiToken"
	defaultTimeout  = 60 * time.Second
	defaultMaxRetry = 4
)

// SpeciesRecord is one taxonomy entry as served by the reference source
type SpeciesRecord struct {
	Code                 string   `json:"speciesCode"`
	CommonName           string   `json:"comName"`
	ScientificName       string   `json:"sciName"`
	Category             string   `json:"category"`
	TaxonOrder           float64  `json:"taxonOrder"`
	OrderName            string   `json:"order"`
	FamilyCode           string   `json:"familyCode"`
	FamilyCommonName     string   `json:"familyComName"`
	FamilyScientificName string   `json:"familySciName"`
	BandingCodes         []string `json:"bandingCodes"`
}

// Options configures the Client
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client is a retrying taxonomy API client
type Client struct {
	http *retryablehttp.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a Client with sane defaults. The API key is required;
// requests without one are rejected upstream
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = o.Timeout
	rc.RetryMax = o.MaxRetries
	rc.Logger = nil // we log ourselves below
	return &Client{http: rc, opts: o, log: *logger.Named("taxonomy")}
}

// Validate reports whether the client holds the credentials a fetch needs
func (c *Client) Validate() error {
	if c.opts.APIKey == "" {
		return perr.New(perr.ErrorCodeValidation, "taxonomy API key is not configured")
	}
	return nil
}

// Fetch returns the complete species reference list.
// Exhausted retries surface as an Unavailable error so the species stage aborts
func (c *Client) Fetch(ctx context.Context) ([]SpeciesRecord, error) {
	url := fmt.Sprintf("%s/ref/taxonomy/ebird?fmt=json", c.opts.BaseURL)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(authHeader, c.opts.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "taxonomy fetch failed after retries")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused by a later stage
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, perr.Newf(perr.ErrorCodeUnauthorized, "taxonomy source rejected API key (status %d)", resp.StatusCode)
		}
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "taxonomy source returned status %d", resp.StatusCode)
	}

	var out []SpeciesRecord
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode taxonomy response")
	}
	c.log.Info().
		Int("species", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("taxonomy: fetched reference list")
	return out, nil
}
