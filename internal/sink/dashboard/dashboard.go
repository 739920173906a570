// Package dashboard keeps the property set exposed to dashboard clients.
//
// Each channel is published as a (value, latch) pair. Update returns the pairs
// that changed since the previous update and pushes them to every subscriber.
package dashboard

import (
	"errors"
	"sync"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

var (
	// ErrLagged ends a subscription whose buffer overflowed.
	ErrLagged = errors.New("subscriber fell behind")
	// ErrClosed ends every subscription when the tracker is closed.
	ErrClosed = errors.New("tracker closed")
)

// DefaultBuffer is the number of pending deltas a subscriber may hold.
const DefaultBuffer = 64

// Tracker holds the last published state of every channel.
type Tracker struct {
	// mu protects every field below.
	mu sync.RWMutex
	// current is keyed by channel name.
	current map[string]telemetry.ChannelState
	// order keeps the first-seen order of channels.
	order []string
	// updatedAt is the time of the last snapshot that changed anything.
	updatedAt time.Time
	// subscribers receive every non-empty delta.
	subscribers map[*Subscription]struct{}
	// closed rejects new subscribers after Close.
	closed bool
}

// Subscription delivers property deltas until it is closed.
type Subscription struct {
	tracker *Tracker
	updates chan telemetry.Snapshot
	// err is set under tracker.mu before updates is closed.
	err error
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		current:     make(map[string]telemetry.ChannelState),
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Update stores the snapshot and returns the channels whose value or latch changed.
// Subscribers that cannot take the delta are dropped with ErrLagged.
func (t *Tracker) Update(snapshot telemetry.Snapshot) []telemetry.ChannelState {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changed []telemetry.ChannelState

	for _, state := range snapshot.Channels {
		previous, known := t.current[state.Name]
		if !known {
			t.order = append(t.order, state.Name)
		}

		if known && sameProperty(previous, state) {
			continue
		}

		t.current[state.Name] = state
		changed = append(changed, state)
	}

	if len(changed) == 0 {
		return nil
	}

	t.updatedAt = snapshot.At

	delta := telemetry.Snapshot{At: snapshot.At, Channels: changed}
	for sub := range t.subscribers {
		select {
		case sub.updates <- delta.Clone():
		default:
			t.dropLocked(sub, ErrLagged)
		}
	}

	return changed
}

// Properties returns the full property set in first-seen order.
func (t *Tracker) Properties() telemetry.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.propertiesLocked()
}

// Subscribe returns the current property set and a subscription for later deltas.
// No delta is lost or repeated between the two. buffer <= 0 means DefaultBuffer.
func (t *Tracker) Subscribe(buffer int) (telemetry.Snapshot, *Subscription) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &Subscription{
		tracker: t,
		updates: make(chan telemetry.Snapshot, buffer),
	}

	if t.closed {
		sub.err = ErrClosed
		close(sub.updates)
	} else {
		t.subscribers[sub] = struct{}{}
	}

	return t.propertiesLocked(), sub
}

// Close ends every subscription with ErrClosed and rejects new ones.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	for sub := range t.subscribers {
		t.dropLocked(sub, ErrClosed)
	}
}

// Updates yields deltas and is closed when the subscription ends.
func (s *Subscription) Updates() <-chan telemetry.Snapshot {
	return s.updates
}

// Err explains why Updates was closed, nil while it is open or after Close.
func (s *Subscription) Err() error {
	s.tracker.mu.RLock()
	defer s.tracker.mu.RUnlock()

	return s.err
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.tracker.mu.Lock()
	defer s.tracker.mu.Unlock()

	if _, ok := s.tracker.subscribers[s]; ok {
		delete(s.tracker.subscribers, s)
		close(s.updates)
	}
}

// dropLocked ends sub with err. t.mu must be held.
func (t *Tracker) dropLocked(sub *Subscription, err error) {
	delete(t.subscribers, sub)

	sub.err = err
	close(sub.updates)
}

// propertiesLocked builds the property set. t.mu must be held.
func (t *Tracker) propertiesLocked() telemetry.Snapshot {
	channels := make([]telemetry.ChannelState, 0, len(t.order))
	for _, name := range t.order {
		channels = append(channels, t.current[name])
	}

	return telemetry.Snapshot{
		At:       t.updatedAt,
		Channels: channels,
	}
}

// sameProperty compares the parts of a channel a dashboard displays.
func sameProperty(a, b telemetry.ChannelState) bool {
	return a.HasValue == b.HasValue &&
		a.Value == b.Value &&
		a.Latched == b.Latched
}
