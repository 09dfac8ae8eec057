// Package estimator talks to a remote trip estimator over HTTP JSON. Every
// failure degrades: quotes fall back to a local estimator, insights return
// an error the caller replaces with static tips.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 5 * time.Second
	defaultBackoff = 200 * time.Millisecond
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	QuoteURL    string
	InsightsURL string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	// Fallback answers Estimate when the remote call fails. Required.
	Fallback ports.QuoteProvider
	// Session overrides the HTTP client, mainly for tests.
	Session Doer
}

// Client implements ports.QuoteProvider and ports.InsightProvider.
type Client struct {
	quoteURL    string
	insightsURL string
	apiKey      string
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration
	session     Doer
	fallback    ports.QuoteProvider
	log         zerolog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	if opts.QuoteURL == "" {
		return nil, errors.New("estimator: quote url is empty")
	}
	if opts.Fallback == nil {
		return nil, errors.New("estimator: fallback provider is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	session := opts.Session
	if session == nil {
		session = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		quoteURL:    opts.QuoteURL,
		insightsURL: opts.InsightsURL,
		apiKey:      opts.APIKey,
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		backoff:     defaultBackoff,
		session:     session,
		fallback:    opts.Fallback,
		log:         logger.Component(log, "estimator"),
	}, nil
}

type estimateRequest struct {
	Pickup  string   `json:"pickup"`
	Dropoff string   `json:"dropoff"`
	Items   []string `json:"items"`
}

type estimateResponse struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	Reasoning   string  `json:"reasoning"`
}

// Estimate implements ports.QuoteProvider.
func (c *Client) Estimate(ctx context.Context, req domain.QuoteRequest) (domain.Estimate, error) {
	est, err := c.remoteEstimate(ctx, req)
	if err == nil {
		return est, nil
	}

	c.log.Warn().Err(err).Str("pickup", req.Pickup).Str("dropoff", req.Dropoff).
		Msg("remote estimate failed, using local estimator")
	return c.fallback.Estimate(ctx, req)
}

func (c *Client) remoteEstimate(ctx context.Context, req domain.QuoteRequest) (domain.Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp estimateResponse
	payload := estimateRequest{Pickup: req.Pickup, Dropoff: req.Dropoff, Items: req.Items}
	if err := c.postJSON(ctx, c.quoteURL, payload, &resp); err != nil {
		return domain.Estimate{}, err
	}

	est := domain.Estimate{
		DistanceKm:  resp.DistanceKm,
		DurationMin: resp.DurationMin,
		Reasoning:   strings.TrimSpace(resp.Reasoning),
		Source:      domain.SourceRemote,
	}
	if !est.Usable() {
		return domain.Estimate{}, fmt.Errorf("unusable estimate %.1f km / %.0f min", resp.DistanceKm, resp.DurationMin)
	}
	return est, nil
}

type insightsRequest struct {
	Deliveries []*domain.Delivery `json:"deliveries"`
}

type insightsResponse struct {
	Insights []domain.Insight `json:"insights"`
}

// InsightsEnabled reports whether an insights endpoint is configured.
func (c *Client) InsightsEnabled() bool {
	return c.insightsURL != ""
}

// Insights implements ports.InsightProvider. Entries with an unknown
// category or no title are dropped.
func (c *Client) Insights(ctx context.Context, deliveries []*domain.Delivery) ([]domain.Insight, error) {
	if !c.InsightsEnabled() {
		return nil, errors.New("estimator: insights url is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp insightsResponse
	if err := c.postJSON(ctx, c.insightsURL, insightsRequest{Deliveries: deliveries}, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Insight, 0, len(resp.Insights))
	for _, in := range resp.Insights {
		in.Title = strings.TrimSpace(in.Title)
		in.Category = strings.ToLower(strings.TrimSpace(in.Category))
		if in.Title == "" {
			continue
		}
		switch in.Category {
		case domain.InsightEfficiency, domain.InsightSafety, domain.InsightEarnings:
			out = append(out, in)
		}
	}
	return out, nil
}
