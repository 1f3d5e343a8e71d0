// Package client provides the core MDDB HTTP client: URL building with
// percent-encoding, JSON retrieval, binary file download, request pacing,
// and error classification.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for MDDB client operations.
var (
	mddbRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mddb_requests_total",
		Help: "Total MDDB requests by endpoint and status",
	}, []string{"endpoint", "status"})

	mddbRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mddb_request_duration_seconds",
		Help:    "MDDB request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	mddbErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mddb_errors_total",
		Help: "Total MDDB errors by class",
	}, []string{"class"})

	mddbDownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mddb_download_bytes_total",
		Help: "Total bytes downloaded from MDDB file endpoints",
	})
)

// Gate decides whether an outbound request may proceed. Implementations may
// throttle (sleep) before returning or reject the request outright.
type Gate interface {
	Allow(ctx context.Context) error
}

// Client is the MDDB HTTP client. It speaks the raw wire contract; typed
// access to projects and files lives in pkg/mddb.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root of one MDDB instance
	// (e.g. "https://mddb.example.org/api/rest/v1"). The base URL is
	// explicit configuration so the same client logic can target multiple
	// instances and be tested against a mock server.
	BaseURL string

	// UserAgent identifies the consumer in outbound requests.
	UserAgent string

	// Timeout is the per-request timeout enforced by the HTTP client.
	Timeout time.Duration

	// HTTPClient overrides the underlying HTTP client (mainly for tests).
	HTTPClient *http.Client

	// Gate, when set, is consulted before every outbound request.
	Gate Gate
}

// DefaultConfig returns a safe default configuration for one API instance.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a new MDDB client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	logger := log.With().Str("component", "mddb-client").Logger()

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// GetJSON performs a GET request for the query and returns the raw response
// body. It fails with *TransportError when the request cannot be completed
// or the server answers with a non-success status; the body is returned
// as-is and decoded by the caller.
func (c *Client) GetJSON(ctx context.Context, q Query) ([]byte, error) {
	resp, err := c.do(ctx, q, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	requestURL := q.URL(c.config.BaseURL)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		mddbErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		return nil, &TransportError{
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("read response body: %w", err),
		}
	}

	return body, nil
}

// DownloadFile performs a GET request for the query and streams the response
// body to dest, returning the number of bytes written. The artifact is never
// buffered whole in memory; trajectories can be large.
func (c *Client) DownloadFile(ctx context.Context, q Query, dest string) (int64, error) {
	resp, err := c.do(ctx, q, "*/*")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	requestURL := q.URL(c.config.BaseURL)

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		mddbErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		return 0, &TransportError{
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("write %s: %w", dest, err),
		}
	}

	mddbDownloadBytesTotal.Add(float64(written))

	c.logger.Info().
		Str("endpoint", q.Endpoint()).
		Str("dest", dest).
		Int64("bytes", written).
		Msg("File downloaded")

	return written, nil
}

// do executes a GET request with pacing, headers, and metrics.
// Responses with a non-2xx status are consumed and returned as errors.
func (c *Client) do(ctx context.Context, q Query, accept string) (*http.Response, error) {
	endpoint := q.Endpoint()
	requestURL := q.URL(c.config.BaseURL)

	if c.config.Gate != nil {
		if err := c.config.Gate.Allow(ctx); err != nil {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Err(err).
				Msg("Request blocked by gate")
			mddbRequestsTotal.WithLabelValues(endpoint, "gated").Inc()
			return nil, fmt.Errorf("request gate: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", accept)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", requestURL).
		Msg("Executing MDDB request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	mddbRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		mddbErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		mddbRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &TransportError{
			URL: requestURL,
			Err: err,
		}
	}

	mddbRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("MDDB request error")
		mddbErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		return nil, &TransportError{
			URL:        requestURL,
			StatusCode: resp.StatusCode,
		}
	}

	return resp, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
