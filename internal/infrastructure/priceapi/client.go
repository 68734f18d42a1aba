package priceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/logger"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of an error response is kept for diagnostics
const maxErrorBody = 4096

// Client talks to the price aggregation service. It implements
// domain.PriceAPI and never retries: a fresh scrape is the only recovery.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	log         *logger.Logger
}

// NewClient creates a client for the service at baseURL. Each request is
// bounded by timeout; requestsPerSecond throttles bursts of navigations.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rate.NewLimiter(limit, 5), // burst of 5 requests
		log:         logger.ForClient(),
	}
}

// SubmitObservation posts one observation to POST /api/prices
func (c *Client) SubmitObservation(ctx context.Context, request domain.ObservationRequest) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/prices", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, readLimitedBody(resp.Body))
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return fmt.Errorf("%w: status %d, body: %s", domain.ErrServiceUnavailable, resp.StatusCode, readLimitedBody(resp.Body))
	}
}

// GetComparison reads GET /api/prices/:productTitle
func (c *Client) GetComparison(ctx context.Context, productTitle string) (*domain.DealComparison, error) {
	endpoint := fmt.Sprintf("%s/api/prices/%s", c.baseURL, url.PathEscape(productTitle))

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrProductNotFound
	case http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrServiceUnavailable, resp.StatusCode, readLimitedBody(resp.Body))
	}

	var comparison domain.DealComparison
	if err := json.NewDecoder(resp.Body).Decode(&comparison); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &comparison, nil
}

// do waits for the rate limiter and executes a request with JSON headers
func (c *Client) do(ctx context.Context, method, reqURL string, body io.Reader) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "DealSheet/1.0")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("url", reqURL).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Price service request")

	return resp, nil
}

func readLimitedBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(body))
}
