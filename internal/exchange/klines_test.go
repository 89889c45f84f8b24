package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/schema"
)

func TestPageKlinesSplitsRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(25 * time.Hour)

	query := KlineQuery{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		From:     from.UnixMilli(),
		To:       to.UnixMilli(),
		Limit:    10,
	}

	var pages []schema.TimeRange
	_, err := PageKlines(context.Background(), "binance", query, func(_ context.Context, _ KlineQuery, page schema.TimeRange) ([]schema.Kline, error) {
		pages = append(pages, page)
		return []schema.Kline{{Symbol: "BTCUSDT", OpenTime: page.StartTime}}, nil
	})
	if err != nil {
		t.Fatalf("PageKlines() error = %v", err)
	}

	// 25 hourly candles at 10 per page: three pages.
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	if !pages[0].StartTime.Equal(from) {
		t.Fatalf("first page starts at %v", pages[0].StartTime)
	}
	if !pages[2].EndTime.Equal(to) {
		t.Fatalf("last page ends at %v, want %v", pages[2].EndTime, to)
	}
	for i := 1; i < len(pages); i++ {
		if !pages[i].StartTime.Equal(pages[i-1].EndTime) {
			t.Fatalf("pages not contiguous: %v", pages)
		}
	}
}

func TestPageKlinesUnboundedQuery(t *testing.T) {
	calls := 0
	_, err := PageKlines(context.Background(), "binance", KlineQuery{Symbol: "BTCUSDT", Interval: "5m"},
		func(context.Context, KlineQuery, schema.TimeRange) ([]schema.Kline, error) {
			calls++
			return nil, nil
		})
	if err != nil {
		t.Fatalf("PageKlines() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("unbounded query must fetch once, got %d", calls)
	}
}

func TestPageKlinesRejectsBadInterval(t *testing.T) {
	_, err := PageKlines(context.Background(), "binance", KlineQuery{Symbol: "BTCUSDT", Interval: "1x"},
		func(context.Context, KlineQuery, schema.TimeRange) ([]schema.Kline, error) {
			return nil, nil
		})
	if !errs.IsKind(err, errs.KindBadRequest) {
		t.Fatalf("expected bad_request for unknown interval, got %v", err)
	}
}

func TestOrderRequestNormalize(t *testing.T) {
	req := OrderRequest{Symbol: " btcusdt ", Side: schema.OrderSideBuy, Quantity: "1", Price: "100"}
	if err := req.Normalize("fake"); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if req.Symbol != "BTCUSDT" {
		t.Fatalf("symbol = %q", req.Symbol)
	}
	if req.Type != OrderTypeLimit {
		t.Fatalf("type = %q, want default LIMIT", req.Type)
	}
	if req.ClientOrderID == "" {
		t.Fatalf("client order id must be generated")
	}
	if req.Mode != schema.ModeSpot {
		t.Fatalf("mode = %q, want spot default", req.Mode)
	}

	bad := OrderRequest{Symbol: "BTCUSDT", Side: schema.OrderSideBuy, Quantity: "1"}
	if err := bad.Normalize("fake"); !errs.IsKind(err, errs.KindInvalidOrder) {
		t.Fatalf("limit order without price must be invalid, got %v", err)
	}
}

func TestConfirmOrderWaitsThenFetches(t *testing.T) {
	start := time.Now()
	order, err := ConfirmOrder(context.Background(), 20*time.Millisecond, func(context.Context) (schema.Order, error) {
		return schema.Order{OrderID: "1"}, nil
	})
	if err != nil {
		t.Fatalf("ConfirmOrder() error = %v", err)
	}
	if order.OrderID != "1" {
		t.Fatalf("order = %+v", order)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("confirmation fetched before the settle delay")
	}
}

func TestConfirmOrderHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConfirmOrder(ctx, time.Hour, func(context.Context) (schema.Order, error) {
		t.Fatalf("fetch must not run after cancellation")
		return schema.Order{}, nil
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
}
