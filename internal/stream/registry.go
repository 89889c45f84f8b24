package stream

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/exbridge/exbridge/internal/schema"
)

// Registry tracks the channels a session must be subscribed to. It
// survives reconnects: after every successful open the adapter replays
// the registered set, in the order the caller first asked for it.
type Registry struct {
	mu      sync.Mutex
	order   []string
	entries map[string]schema.ChannelSubscription
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]schema.ChannelSubscription)}
}

// Add registers subscriptions, skipping ones already present. It returns
// only the newly added entries so the caller knows what to send on an
// already-open session.
func (r *Registry) Add(subs ...schema.ChannelSubscription) []schema.ChannelSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := make([]schema.ChannelSubscription, 0, len(subs))
	for _, sub := range subs {
		key := sub.Key()
		if _, exists := r.entries[key]; exists {
			continue
		}
		r.entries[key] = sub
		r.order = append(r.order, key)
		added = append(added, sub)
	}
	return added
}

// Remove drops subscriptions. It returns the entries that were actually
// registered.
func (r *Registry) Remove(subs ...schema.ChannelSubscription) []schema.ChannelSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]schema.ChannelSubscription, 0, len(subs))
	for _, sub := range subs {
		key := sub.Key()
		if _, exists := r.entries[key]; !exists {
			continue
		}
		delete(r.entries, key)
		removed = append(removed, sub)
		for i, k := range r.order {
			if k == key {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	return removed
}

// Snapshot returns every registered subscription in insertion order.
func (r *Registry) Snapshot() []schema.ChannelSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]schema.ChannelSubscription, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entries[key])
	}
	return out
}

// Replay sends every registered subscription in insertion order, pacing
// each send through the limiter. Venues budget control messages per
// second; replaying a large set unpaced gets the fresh connection killed.
func (r *Registry) Replay(ctx context.Context, limiter *rate.Limiter, send func(context.Context, schema.ChannelSubscription) error) error {
	for _, sub := range r.Snapshot() {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := send(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether an equivalent subscription is registered.
func (r *Registry) Contains(sub schema.ChannelSubscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[sub.Key()]
	return ok
}

// Len reports the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
