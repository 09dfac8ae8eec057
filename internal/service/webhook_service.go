package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"courier-dispatch/internal/core/domain"

	"github.com/rs/zerolog"
)

// webhookRetryIntervals is the wait before each retry after the first attempt.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Webhook request headers.
const (
	HeaderWebhookEvent     = "X-Dispatch-Event"
	HeaderWebhookSignature = "X-Dispatch-Signature"
)

// WebhookPayload is the JSON body POSTed to the configured URL.
type WebhookPayload struct {
	EventType string               `json:"event_type"`
	Data      domain.DeliveryEvent `json:"data"`
	Timestamp int64                `json:"timestamp"`
}

// SignWebhook returns the lowercase hex HMAC-SHA256 of body under secret, as
// sent in X-Dispatch-Signature.
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks a received signature in constant time.
func VerifyWebhook(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(SignWebhook(secret, body)), []byte(signature))
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier implements ports.EventPublisher by POSTing each delivery
// event to one URL, retrying on the fixed schedule. Deliveries run in the
// background; Publish returns at once.
type WebhookNotifier struct {
	url        string
	secret     string
	httpClient HTTPClient
	intervals  []time.Duration
	wg         sync.WaitGroup
	stop       context.Context
	abandon    context.CancelFunc
	log        zerolog.Logger
}

// NewWebhookNotifier creates a notifier. An empty url disables it.
func NewWebhookNotifier(url, secret string, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	stop, abandon := context.WithCancel(context.Background())
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		httpClient: httpClient,
		intervals:  webhookRetryIntervals,
		stop:       stop,
		abandon:    abandon,
		log:        log,
	}
}

// Enabled reports whether a target URL is configured.
func (n *WebhookNotifier) Enabled() bool {
	return n.url != ""
}

// Publish implements ports.EventPublisher.
func (n *WebhookNotifier) Publish(_ context.Context, ev domain.DeliveryEvent) {
	if !n.Enabled() || n.stop.Err() != nil {
		return
	}

	payload := WebhookPayload{
		EventType: string(ev.Type),
		Data:      ev,
		Timestamp: ev.OccurredAt.Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error().Err(err).Str("delivery_id", ev.DeliveryID).Msg("webhook: failed to marshal payload")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliverWithRetries(body, ev)
	}()
}

// Wait blocks until in-flight deliveries finish or give up. When ctx ends
// first, pending retries are abandoned and ctx.Err() is returned once every
// delivery goroutine has exited. No new events are accepted afterwards.
func (n *WebhookNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.abandon()
		return nil
	case <-ctx.Done():
		n.abandon()
		<-done
		return ctx.Err()
	}
}

func (n *WebhookNotifier) deliverWithRetries(body []byte, ev domain.DeliveryEvent) {
	for attempt := 0; attempt <= len(n.intervals); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(n.intervals[attempt-1])
			select {
			case <-n.stop.Done():
				timer.Stop()
				n.log.Warn().Str("delivery_id", ev.DeliveryID).Int("attempt", attempt).Msg("webhook: shutting down, retries abandoned")
				return
			case <-timer.C:
			}
		}

		req, err := http.NewRequestWithContext(n.stop, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			n.log.Error().Err(err).Str("delivery_id", ev.DeliveryID).Msg("webhook: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderWebhookEvent, string(ev.Type))
		if n.secret != "" {
			req.Header.Set(HeaderWebhookSignature, SignWebhook(n.secret, body))
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Str("delivery_id", ev.DeliveryID).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.log.Info().Str("delivery_id", ev.DeliveryID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered")
			return
		}

		n.log.Warn().Str("delivery_id", ev.DeliveryID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	n.log.Error().Str("delivery_id", ev.DeliveryID).Str("type", string(ev.Type)).Msg("webhook: all retry attempts exhausted")
}
