package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publishClient is the part of mqtt.Client used for publishing.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

var topicWildcards = strings.NewReplacer("+", "_", "#", "_")

// MQTTPublisher sends events to {topic}/{device_id} at QoS 1.
type MQTTPublisher struct {
	client publishClient
	topic  string
}

// MQTTOptions configures NewMQTTPublisher.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Topic     string
}

// NewMQTTPublisher connects to the broker, retrying with backoff until ctx ends.
func NewMQTTPublisher(ctx context.Context, o MQTTOptions) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetClientID(o.ClientID).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if err := connectWithBackoff(ctx, client, 500*time.Millisecond, 5*time.Second); err != nil {
		return nil, err
	}
	return &MQTTPublisher{client: client, topic: o.Topic}, nil
}

func connectWithBackoff(ctx context.Context, client mqtt.Client, start, max time.Duration) error {
	backoff := start
	for {
		token := client.Connect()
		if err := waitToken(ctx, token); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}

		select {
		case <-time.After(backoff):
			if backoff < max {
				backoff *= 2
			}
		case <-ctx.Done():
			return fmt.Errorf("mqtt connect: %w", ctx.Err())
		}
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := e.Payload()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	topic := p.topic
	if e.Key != "" {
		topic += "/" + topicWildcards.Replace(e.Key)
	}
	if err := waitToken(ctx, p.client.Publish(topic, 1, false, payload)); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

func waitToken(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
