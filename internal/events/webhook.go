package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookPublisher POSTs each event as JSON to a fixed URL.
type WebhookPublisher struct {
	url        string
	secret     string
	maxRetries int
	client     *http.Client
	backoff    func(attempt int) time.Duration
}

// WebhookOptions configures NewWebhookPublisher.
type WebhookOptions struct {
	URL        string
	Secret     string // signs the body when set
	RetryCount int    // retries after the first attempt; 3 when zero
	Client     *http.Client
}

func NewWebhookPublisher(o WebhookOptions) *WebhookPublisher {
	if o.RetryCount == 0 {
		o.RetryCount = 3
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookPublisher{
		url:        o.URL,
		secret:     o.Secret,
		maxRetries: o.RetryCount,
		client:     o.Client,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 250 * time.Millisecond
		},
	}
}

// Publish delivers e, retrying non-2xx responses and transport errors until
// the retries or ctx run out.
func (p *WebhookPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.Payload()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("webhook %s: %w (last error: %v)", p.url, ctx.Err(), lastErr)
			}
		}

		lastErr = p.send(ctx, e, body)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook %s: failed after %d attempts: %w", p.url, p.maxRetries+1, lastErr)
}

func (p *WebhookPublisher) send(ctx context.Context, e Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LivenessIntake-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", e.Type)
	req.Header.Set("X-Webhook-Timestamp", e.ReceivedAt.UTC().Format(time.RFC3339))
	if p.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, p.secret))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

// Close releases idle connections.
func (p *WebhookPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Sign returns the X-Webhook-Signature value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
