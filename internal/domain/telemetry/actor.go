package telemetry

import "time"

// Actor identifies who acknowledged an alarm.
type Actor struct {
	// Hostname is the machine the acknowledgement came from.
	Hostname string
	// Username is the system user behind the acknowledgement.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "unknown"
	}

	return a.Username + "@" + a.Hostname
}

// Acknowledgement records who cleared which latch and when.
type Acknowledgement struct {
	// Channel is the acknowledged channel.
	Channel string
	// Actor is who acknowledged it.
	Actor *Actor
	// At is when the latch was cleared.
	At time.Time
}

// Clone returns a copy that does not share the actor.
func (a *Acknowledgement) Clone() *Acknowledgement {
	if a == nil {
		return nil
	}

	return &Acknowledgement{
		Channel: a.Channel,
		Actor:   a.Actor.Clone(),
		At:      a.At,
	}
}
