package exchange

import (
	"sync"

	"github.com/exbridge/exbridge/internal/schema"
)

// Handler converts one raw stream frame into canonical events.
type Handler func(data []byte) ([]schema.Event, error)

// Router extracts the routing key (venue channel or event-type token)
// from a raw frame. Returning ok=false drops the frame as unroutable.
type Router func(data []byte) (key string, ok bool)

// DispatchTable routes raw stream frames to per-channel handlers. The
// table is built once during adapter construction and read-only
// afterwards; Register after the stream starts is still safe.
type DispatchTable struct {
	route Router

	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

// NewDispatchTable constructs an empty table over the given router.
func NewDispatchTable(route Router) *DispatchTable {
	return &DispatchTable{
		route:    route,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a routing key, replacing any previous one.
func (t *DispatchTable) Register(key string, handler Handler) {
	t.mu.Lock()
	t.handlers[key] = handler
	t.mu.Unlock()
}

// SetFallback installs the handler for frames whose key has no binding.
func (t *DispatchTable) SetFallback(handler Handler) {
	t.mu.Lock()
	t.fallback = handler
	t.mu.Unlock()
}

// Dispatch routes one frame. handled is false for unroutable frames and
// unbound keys without a fallback; the caller counts those as dropped.
func (t *DispatchTable) Dispatch(data []byte) (events []schema.Event, handled bool, err error) {
	if t.route == nil {
		return nil, false, nil
	}
	key, ok := t.route(data)
	if !ok {
		return nil, false, nil
	}

	t.mu.RLock()
	handler, bound := t.handlers[key]
	if !bound {
		handler = t.fallback
	}
	t.mu.RUnlock()

	if handler == nil {
		return nil, false, nil
	}
	events, err = handler(data)
	return events, true, err
}
