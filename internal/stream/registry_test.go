package stream

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/exbridge/exbridge/internal/schema"
)

func TestRegistryDedupAndOrder(t *testing.T) {
	r := NewRegistry()

	price := schema.ChannelSubscription{Topic: schema.TopicPrice, Symbol: "BTCUSDT"}
	book := schema.ChannelSubscription{Topic: schema.TopicOrderbook, Symbol: "BTCUSDT", Depth: 20}
	kline := schema.ChannelSubscription{Topic: schema.TopicKline, Symbol: "ETHUSDT", Interval: "1m"}

	added := r.Add(price, book)
	if len(added) != 2 {
		t.Fatalf("added = %d, want 2", len(added))
	}
	if again := r.Add(price); len(again) != 0 {
		t.Fatalf("duplicate subscription must not be re-added")
	}
	r.Add(kline)

	snapshot := r.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("snapshot size = %d, want 3", len(snapshot))
	}
	if snapshot[0].Topic != schema.TopicPrice || snapshot[2].Topic != schema.TopicKline {
		t.Fatalf("snapshot must preserve insertion order, got %v", snapshot)
	}
}

func TestRegistryReplayOrderAndPacing(t *testing.T) {
	r := NewRegistry()
	r.Add(
		schema.ChannelSubscription{Topic: schema.TopicPrice, Symbol: "BTCUSDT"},
		schema.ChannelSubscription{Topic: schema.TopicOrderbook, Symbol: "BTCUSDT", Depth: 20},
		schema.ChannelSubscription{Topic: schema.TopicOrders},
	)

	var sent []schema.Topic
	limiter := rate.NewLimiter(rate.Inf, 1)
	err := r.Replay(context.Background(), limiter, func(_ context.Context, sub schema.ChannelSubscription) error {
		sent = append(sent, sub.Topic)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	want := []schema.Topic{schema.TopicPrice, schema.TopicOrderbook, schema.TopicOrders}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("replay order = %v, want %v", sent, want)
		}
	}
}

func TestRegistryReplayStopsOnCanceledContext(t *testing.T) {
	r := NewRegistry()
	r.Add(schema.ChannelSubscription{Topic: schema.TopicPrice, Symbol: "BTCUSDT"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow()
	if err := r.Replay(ctx, limiter, func(context.Context, schema.ChannelSubscription) error {
		t.Fatalf("send must not run after cancellation")
		return nil
	}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	price := schema.ChannelSubscription{Topic: schema.TopicPrice, Symbol: "BTCUSDT"}
	orders := schema.ChannelSubscription{Topic: schema.TopicOrders}

	r.Add(price, orders)
	removed := r.Remove(price)
	if len(removed) != 1 {
		t.Fatalf("removed = %d, want 1", len(removed))
	}
	if r.Contains(price) {
		t.Fatalf("removed subscription still present")
	}
	if !r.Contains(orders) {
		t.Fatalf("unrelated subscription dropped")
	}
	if removed = r.Remove(price); len(removed) != 0 {
		t.Fatalf("removing twice must be a no-op")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}
