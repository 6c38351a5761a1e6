// Package events publishes a notification for every accepted verification
// submission. Publishing is best effort: callers log failures and move on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TypeVerificationReceived is the event name for an accepted submission.
const TypeVerificationReceived = "verification.received"

// Event describes one stored submission.
type Event struct {
	Type          string          `json:"event"`
	DeviceID      json.RawMessage `json:"device_id"`
	IsCompromised bool            `json:"is_compromised"`
	Platform      string          `json:"platform"`
	VideoSavedAs  string          `json:"video_saved_as"`
	DataSavedAs   string          `json:"data_saved_as"`
	VideoSize     int64           `json:"video_size"`
	VideoSHA256   string          `json:"video_sha256"`
	ReceivedAt    time.Time       `json:"received_at"`

	// Key partitions the event; the file-safe device id.
	Key string `json:"-"`
}

// Payload encodes the event as JSON.
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to several publishers. Every publisher is tried;
// the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
