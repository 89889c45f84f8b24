package fake

import (
	"context"
	"testing"
	"time"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/exchange"
	"github.com/exbridge/exbridge/internal/schema"
)

var _ exchange.Exchange = (*Adapter)(nil)

func newFunded(t *testing.T) *Adapter {
	t.Helper()
	return New(
		WithPrice("BTCUSDT", "100"),
		WithBalance("USDT", "1000"),
		WithBalance("BTC", "2"),
	)
}

func TestPlaceOrderFillsAndSettlesBalances(t *testing.T) {
	a := newFunded(t)
	defer a.Close()

	order, err := a.PlaceOrder(context.Background(), exchange.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     schema.OrderSideBuy,
		Type:     exchange.OrderTypeMarket,
		Quantity: "1",
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if order.Status != schema.OrderStatusExecuted {
		t.Fatalf("status = %s, want executed", order.Status)
	}
	if order.ExecutedPrice != "100" || order.ExecutedQuantity != "1" {
		t.Fatalf("execution = %s @ %s", order.ExecutedQuantity, order.ExecutedPrice)
	}
	if order.Fee != "0.1" || order.FeeCurrency != "USDT" {
		t.Fatalf("fee = %s %s, want 0.1 USDT", order.Fee, order.FeeCurrency)
	}

	balances, err := a.GetBalances(context.Background())
	if err != nil {
		t.Fatalf("GetBalances() error = %v", err)
	}
	byAsset := map[string]string{}
	for _, entry := range balances {
		byAsset[entry.Asset] = entry.Balance
	}
	// 1000 - 100 notional - 0.1 fee
	if byAsset["USDT"] != "899.9" {
		t.Fatalf("USDT = %s, want 899.9", byAsset["USDT"])
	}
	if byAsset["BTC"] != "3" {
		t.Fatalf("BTC = %s, want 3", byAsset["BTC"])
	}
}

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	a := New(WithPrice("BTCUSDT", "100"), WithBalance("USDT", "5"))
	defer a.Close()

	_, err := a.PlaceOrder(context.Background(), exchange.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     schema.OrderSideBuy,
		Type:     exchange.OrderTypeMarket,
		Quantity: "1",
	})
	if !errs.IsKind(err, errs.KindInsufficientFunds) {
		t.Fatalf("expected insufficient_funds, got %v", err)
	}
}

func TestOrderDetailAndCancel(t *testing.T) {
	a := newFunded(t)
	defer a.Close()

	order, err := a.PlaceOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: schema.OrderSideSell, Type: exchange.OrderTypeMarket, Quantity: "1",
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}

	detail, err := a.GetOrderDetail(context.Background(), "BTCUSDT", order.OrderID)
	if err != nil {
		t.Fatalf("GetOrderDetail() error = %v", err)
	}
	if detail.OrderID != order.OrderID || detail.Status != schema.OrderStatusExecuted {
		t.Fatalf("detail = %+v", detail)
	}

	if err := a.CancelOrder(context.Background(), "BTCUSDT", order.OrderID); !errs.IsKind(err, errs.KindOrderNotFillable) {
		t.Fatalf("cancel of executed order = %v, want order_not_fillable", err)
	}
	if err := a.CancelOrder(context.Background(), "BTCUSDT", "missing"); !errs.IsKind(err, errs.KindOrderNotFound) {
		t.Fatalf("cancel of unknown order = %v, want order_not_found", err)
	}
}

func TestSubscribeDeliversEvents(t *testing.T) {
	a := newFunded(t)
	defer a.Close()

	err := a.Subscribe(context.Background(),
		schema.ChannelSubscription{Topic: schema.TopicPrice, Symbol: "BTCUSDT"},
		schema.ChannelSubscription{Topic: schema.TopicOrders},
	)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	a.SetPrice("BTCUSDT", "101")
	if _, err := a.PlaceOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: schema.OrderSideBuy, Type: exchange.OrderTypeMarket, Quantity: "1",
	}); err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}

	var got []schema.EventType
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case event := <-a.Events():
			got = append(got, event.Type)
		case <-deadline:
			t.Fatalf("events = %v, want price then order", got)
		}
	}
	if got[0] != schema.EventTypePrice || got[1] != schema.EventTypeOrder {
		t.Fatalf("events = %v", got)
	}
}

func TestUnsubscribedTopicsStaySilent(t *testing.T) {
	a := newFunded(t)
	defer a.Close()

	a.SetPrice("BTCUSDT", "105")
	select {
	case event := <-a.Events():
		t.Fatalf("unexpected event %v without subscription", event.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestGetKlinesPaged(t *testing.T) {
	a := newFunded(t)
	defer a.Close()

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)
	klines, err := a.GetKlines(context.Background(), exchange.KlineQuery{
		Symbol:   "BTCUSDT",
		Interval: "30m",
		From:     from.UnixMilli(),
		To:       to.UnixMilli(),
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("GetKlines() error = %v", err)
	}
	if len(klines) != 4 {
		t.Fatalf("klines = %d, want 4", len(klines))
	}
	if !klines[0].OpenTime.Equal(from) || !klines[3].CloseTime.Equal(to) {
		t.Fatalf("kline range wrong: %v .. %v", klines[0].OpenTime, klines[3].CloseTime)
	}
}

func TestGetOrderbooks(t *testing.T) {
	a := newFunded(t)
	defer a.Close()

	books, err := a.GetOrderbooks(context.Background(), []string{"BTCUSDT"}, 5)
	if err != nil {
		t.Fatalf("GetOrderbooks() error = %v", err)
	}
	if len(books) != 1 || len(books[0].Bids) == 0 || len(books[0].Asks) == 0 {
		t.Fatalf("books = %+v", books)
	}
}

func TestCloseIdempotent(t *testing.T) {
	a := newFunded(t)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := a.PlaceOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: schema.OrderSideBuy, Type: exchange.OrderTypeMarket, Quantity: "1",
	}); !errs.IsKind(err, errs.KindExchangeNotAvailable) {
		t.Fatalf("order after close = %v", err)
	}
}
