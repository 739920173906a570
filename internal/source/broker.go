package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// Broker subscribes to one topic per channel and assembles complete samples.
type Broker struct {
	pubsub    *redis.PubSub
	assembler *Assembler
	prefix    string
	now       func() time.Time
	done      chan struct{}
}

// NewBroker subscribes to prefix+channel for every channel.
func NewBroker(ctx context.Context, client *redis.Client, prefix string, channels []string) (*Broker, error) {
	topics := make([]string, 0, len(channels))
	for _, ch := range channels {
		topics = append(topics, prefix+ch)
	}

	pubsub := client.Subscribe(ctx, topics...)

	// Wait for the subscription confirmation so no update is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, fmt.Errorf("subscribe %v: %w", topics, err)
	}

	b := &Broker{
		pubsub:    pubsub,
		assembler: NewAssembler(channels),
		prefix:    prefix,
		now:       time.Now,
		done:      make(chan struct{}),
	}

	go b.consume()

	return b, nil
}

// consume feeds every broker message into the assembler.
func (b *Broker) consume() {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		b.handle(msg.Channel, msg.Payload)
	}
}

// handle decodes one property update.
func (b *Broker) handle(topic, payload string) bool {
	name := strings.TrimPrefix(topic, b.prefix)

	return b.assembler.Put(name, ParseValue(payload), b.now())
}

// Read returns the newest complete sample or ErrNoData.
func (b *Broker) Read(ctx context.Context, at time.Time) (telemetry.Sample, error) {
	if err := ctx.Err(); err != nil {
		return telemetry.Sample{}, err
	}

	sample, ok := b.assembler.Take(at)
	if !ok {
		return telemetry.Sample{}, ErrNoData
	}

	return sample, nil
}

// Close unsubscribes and waits for the consumer to exit.
func (b *Broker) Close() error {
	err := b.pubsub.Close()
	<-b.done

	return err
}

// ParseValue decodes a property payload; anything that is not a finite number is a fault.
func ParseValue(payload string) telemetry.Value {
	token := strings.TrimSpace(payload)

	number, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return telemetry.Faulted(fmt.Sprintf("unparsable value %q", token))
	}

	if !telemetry.IsFinite(number) {
		return telemetry.Faulted(fmt.Sprintf("value %q is not a number", token))
	}

	return telemetry.Reading(number)
}
