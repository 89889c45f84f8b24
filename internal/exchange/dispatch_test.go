package exchange

import (
	"testing"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/internal/schema"
)

func routeByEventField(data []byte) (string, bool) {
	var frame struct {
		Event string `json:"e"`
	}
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		return "", false
	}
	return frame.Event, true
}

func TestDispatchRoutesToHandler(t *testing.T) {
	table := NewDispatchTable(routeByEventField)
	table.Register("trade", func(data []byte) ([]schema.Event, error) {
		return []schema.Event{{Exchange: "binance", Type: schema.EventTypePrice}}, nil
	})

	events, handled, err := table.Dispatch([]byte(`{"e":"trade","p":"100"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !handled {
		t.Fatalf("frame must be handled")
	}
	if len(events) != 1 || events[0].Type != schema.EventTypePrice {
		t.Fatalf("events = %v", events)
	}
}

func TestDispatchUnroutableFrameDropped(t *testing.T) {
	table := NewDispatchTable(routeByEventField)
	table.Register("trade", func([]byte) ([]schema.Event, error) { return nil, nil })

	if _, handled, _ := table.Dispatch([]byte(`not json`)); handled {
		t.Fatalf("unroutable frame must be dropped")
	}
	if _, handled, _ := table.Dispatch([]byte(`{"e":"unknown"}`)); handled {
		t.Fatalf("unbound key without fallback must be dropped")
	}
}

func TestDispatchFallback(t *testing.T) {
	table := NewDispatchTable(routeByEventField)
	table.SetFallback(func([]byte) ([]schema.Event, error) {
		return []schema.Event{{Type: schema.EventTypeOrder}}, nil
	})

	events, handled, err := table.Dispatch([]byte(`{"e":"executionReport"}`))
	if err != nil || !handled {
		t.Fatalf("fallback must handle, got handled=%v err=%v", handled, err)
	}
	if events[0].Type != schema.EventTypeOrder {
		t.Fatalf("events = %v", events)
	}
}
