package websocket

import (
	"errors"
	"sync"

	"github.com/smf8/ferris-say/chat"
)

// deliveryBuffer bounds each connection's delivery channel. A slow reader
// backpressures senders targeting it instead of growing memory without bound.
const deliveryBuffer = 10

var (
	// ErrUserNotOnline reports that no connection is registered under the
	// target identity.
	ErrUserNotOnline = errors.New("user not online")

	// ErrDeliveryBackpressure reports that the target's delivery channel is
	// full. The message is dropped rather than blocking the sender's relay.
	ErrDeliveryBackpressure = errors.New("delivery channel full")
)

// Registry tracks the currently connected identities and their delivery
// channels. It is the only state shared between relay goroutines; admissions
// and removals take the write lock, lookups and delivery take the read lock.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]chan chat.ChatMessage
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]chan chat.ChatMessage),
	}
}

// TryAdmit registers identity and returns its delivery channel. The absence
// check and the insert happen under one write-lock acquisition, so two
// concurrent connections with the same identity cannot both be admitted.
// Returns false on collision.
func (r *Registry) TryAdmit(identity string) (chan chat.ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[identity]; exists {
		return nil, false
	}

	sink := make(chan chat.ChatMessage, deliveryBuffer)
	r.sinks[identity] = sink
	return sink, true
}

// Remove evicts identity and closes its delivery channel. Idempotent: a
// second call for the same connection is a no-op. Closing under the write
// lock guarantees Deliver can never send on a closed channel.
func (r *Registry) Remove(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sink, exists := r.sinks[identity]
	if !exists {
		return
	}
	delete(r.sinks, identity)
	close(sink)
}

// Lookup returns the delivery channel registered under identity.
func (r *Registry) Lookup(identity string) (chan chat.ChatMessage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, exists := r.sinks[identity]
	return sink, exists
}

// Snapshot copies the currently registered identities. The lock is released
// before the caller does anything with the result, so it is never held
// across a send. Iteration order is map order; no stable sort is promised.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sinks))
	for identity := range r.sinks {
		users = append(users, identity)
	}
	return users
}

// Count returns the number of registered identities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sinks)
}

// Deliver performs a non-blocking send of msg to the identity's delivery
// channel. The membership check and the send happen under the same read
// lock, so an eviction cannot close the channel mid-send. Returns
// ErrUserNotOnline when the identity is absent and ErrDeliveryBackpressure
// when its channel is full.
func (r *Registry) Deliver(to string, msg chat.ChatMessage) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, exists := r.sinks[to]
	if !exists {
		return ErrUserNotOnline
	}

	select {
	case sink <- msg:
		return nil
	default:
		return ErrDeliveryBackpressure
	}
}
