package overpass

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/resilience"
)

// DefaultURL is the public Overpass interpreter endpoint.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// maxResponseBytes bounds how much of a region payload is read.
const maxResponseBytes = 64 << 20

// Options configures the Overpass client.
type Options struct {
	URL              string
	UserAgent        string
	Timeout          time.Duration // per-request timeout, including body read
	QueryTimeoutSecs int           // server-side [timeout:N] setting
	Limiter          *rate.Limiter // outbound request limiter; nil = 1 req/s
	HTTPClient       *http.Client  // overrides the default client (tests)
}

// Client fetches pharmacies for a region from the Overpass API.
type Client struct {
	url          string
	userAgent    string
	queryTimeout int
	client       *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "pharmadir/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(1, 1)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		url:          opts.URL,
		userAgent:    opts.UserAgent,
		queryTimeout: opts.QueryTimeoutSecs,
		client:       client,
		limiter:      opts.Limiter,
	}
}

// Fetch runs the region-bounded pharmacy query and returns the normalized
// records. Every failure is returned as a *FetchError for region.
func (c *Client) Fetch(ctx context.Context, region string) ([]model.RawRecord, error) {
	log := zap.L().With(zap.String("component", "overpass"), zap.String("region", region))

	records, err := c.fetch(ctx, region)
	if err != nil {
		return nil, &FetchError{Region: region, Err: err}
	}

	log.Debug("fetched region", zap.Int("elements", len(records)))
	return records, nil
}

func (c *Client) fetch(ctx context.Context, region string) ([]model.RawRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limiter wait")
	}

	form := url.Values{"data": {BuildQuery(region, c.queryTimeout)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		statusErr := eris.Errorf("overpass: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return ParseResponse(io.LimitReader(resp.Body, maxResponseBytes))
}
