package message

import (
	"fmt"
	"sync"
	"time"
)

// Bus is the append-only message log shared by every actor in a run.
type Bus struct {
	mu       sync.RWMutex
	messages []Envelope
	now      func() time.Time
}

// BusOption customizes a Bus during construction.
type BusOption func(*Bus)

// WithClock overrides the clock used for envelope timestamps.
func WithClock(clock func() time.Time) BusOption {
	return func(b *Bus) {
		if clock != nil {
			b.now = clock
		}
	}
}

// NewBus returns an empty bus.
func NewBus(opts ...BusOption) *Bus {
	bus := &Bus{now: time.Now}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Seed appends envelopes decoded from an earlier run. Sequence numbers are
// reassigned so the log stays dense.
func (b *Bus) Seed(envelopes ...Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, env := range envelopes {
		env.Seq = len(b.messages) + 1
		b.messages = append(b.messages, env)
	}
}

// Publish appends a payload on behalf of an actor.
func (b *Bus) Publish(actor, phase string, payload Model) (Envelope, error) {
	if payload == nil {
		return Envelope{}, fmt.Errorf("message: %s published a nil payload", actor)
	}
	payload = deref(payload)
	kind := payload.MessageKind()
	if !Known(kind) {
		return Envelope{}, fmt.Errorf("message: %s published unknown kind %q", actor, string(kind))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	env := Envelope{
		Seq:       len(b.messages) + 1,
		Kind:      kind,
		Actor:     actor,
		Phase:     phase,
		CreatedAt: b.now().UTC(),
		Payload:   payload,
	}
	b.messages = append(b.messages, env)
	return env, nil
}

// Consume returns every envelope whose kind is in kinds, in publish order.
func (b *Bus) Consume(kinds ...Kind) []Envelope {
	if len(kinds) == 0 {
		return nil
	}
	want := make(map[Kind]struct{}, len(kinds))
	for _, kind := range kinds {
		want[kind] = struct{}{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Envelope
	for _, env := range b.messages {
		if _, ok := want[env.Kind]; ok {
			out = append(out, env)
		}
	}
	return out
}

// Messages returns a snapshot of the whole log.
func (b *Bus) Messages() []Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Envelope, len(b.messages))
	copy(out, b.messages)
	return out
}

// Count returns how many envelopes of the given kind were published.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, env := range b.messages {
		if env.Kind == kind {
			n++
		}
	}
	return n
}

// Payloads extracts the payloads of type T from envelopes.
func Payloads[T Model](envelopes []Envelope) []T {
	var out []T
	for _, env := range envelopes {
		if v, ok := env.Payload.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
