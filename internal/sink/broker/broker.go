// Package broker publishes channel snapshots as compact JSON over Redis pub/sub.
//
// Payloads look like {"gx":0.12,"gy":-0.03,"gz":9.81,"t_device_ms":1520}:
// one key per channel that has a valid value plus the device clock in
// milliseconds since the publisher started. The latest payload is also cached
// under a key so late subscribers can read the current state.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// DeviceClockField is the payload key carrying the device clock.
const DeviceClockField = "t_device_ms"

// errReservedChannel is returned when a channel name collides with DeviceClockField.
var errReservedChannel = errors.New("channel name is reserved")

// Publisher sends snapshots to a Redis channel.
type Publisher struct {
	client    redis.Cmdable
	topic     string
	latestKey string
	latestTTL time.Duration
	epoch     time.Time
}

// Option configures the publisher.
type Option func(*Publisher)

// WithLatestTTL caches the last payload for ttl; zero disables caching.
func WithLatestTTL(ttl time.Duration) Option {
	return func(p *Publisher) {
		p.latestTTL = ttl
	}
}

// WithEpoch sets the instant the device clock counts from.
func WithEpoch(epoch time.Time) Option {
	return func(p *Publisher) {
		p.epoch = epoch
	}
}

// NewPublisher creates a publisher for topic.
func NewPublisher(client redis.Cmdable, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		client:    client,
		topic:     topic,
		latestKey: LatestKey(topic),
		epoch:     time.Now(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// LatestKey is the key the newest payload of topic is cached under.
func LatestKey(topic string) string {
	return "latest:" + topic
}

// Publish sends the snapshot and refreshes the cached payload in one round trip.
func (p *Publisher) Publish(ctx context.Context, snapshot telemetry.Snapshot) error {
	payload, err := Payload(snapshot, p.epoch)
	if err != nil {
		return err
	}

	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.topic, payload)

		if p.latestTTL > 0 {
			pipe.Set(ctx, p.latestKey, payload, p.latestTTL)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	return nil
}

// Payload renders the compact JSON document for a snapshot.
func Payload(snapshot telemetry.Snapshot, epoch time.Time) ([]byte, error) {
	doc := make(map[string]any, len(snapshot.Channels)+1)

	for _, ch := range snapshot.Channels {
		if ch.Name == DeviceClockField {
			return nil, fmt.Errorf("%w: %s", errReservedChannel, ch.Name)
		}

		if ch.HasValue {
			doc[ch.Name] = ch.Value
		}
	}

	doc[DeviceClockField] = snapshot.At.Sub(epoch).Milliseconds()

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return data, nil
}
