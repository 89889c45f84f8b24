package fills

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/exbridge/exbridge/errs"
)

type stubTickers struct {
	prices map[string]string
	err    error
	calls  []string
}

func (s *stubTickers) TickerPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.calls = append(s.calls, symbol)
	if s.err != nil {
		return decimal.Zero, s.err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("no ticker for " + symbol)
	}
	return decimal.RequireFromString(price), nil
}

func TestNormalizeSingleFeeAssetPassesThrough(t *testing.T) {
	n := NewNormalizer("binance", nil)

	result, err := n.Normalize(context.Background(), "BTCUSDT", []Trade{
		{Price: "100", Quantity: "2", Commission: "0.001", CommissionAsset: "BNB"},
		{Price: "110", Quantity: "1", Commission: "0.002", CommissionAsset: "BNB"},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if result.FeeCurrency != "BNB" {
		t.Fatalf("single-asset fee currency must pass through, got %q", result.FeeCurrency)
	}
	if !result.Fee.Equal(decimal.RequireFromString("0.003")) {
		t.Fatalf("fee = %s, want 0.003", result.Fee)
	}
	if !result.ExecutedQuantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("executed quantity = %s, want 3", result.ExecutedQuantity)
	}
	// 100*2 + 110*1 = 310; 310/3
	if !result.ExecutedAmount.Equal(decimal.NewFromInt(310)) {
		t.Fatalf("executed amount = %s, want 310", result.ExecutedAmount)
	}
	want := decimal.NewFromInt(310).Div(decimal.NewFromInt(3))
	if !result.ExecutedPrice.Equal(want) {
		t.Fatalf("executed price = %s, want %s", result.ExecutedPrice, want)
	}
	// BNB is not BTCUSDT's base asset, so nothing is netted off.
	if !result.ReceivedQuantity.Equal(result.ExecutedQuantity) {
		t.Fatalf("received quantity must equal executed quantity")
	}
}

func TestNormalizeBaseAssetFeeNetsReceivedQuantity(t *testing.T) {
	n := NewNormalizer("binance", nil)

	result, err := n.Normalize(context.Background(), "BTCUSDT", []Trade{
		{Price: "100", Quantity: "2", Commission: "0.01", CommissionAsset: "BTC"},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if !result.ReceivedQuantity.Equal(decimal.RequireFromString("1.99")) {
		t.Fatalf("received quantity = %s, want 1.99", result.ReceivedQuantity)
	}
	if result.FeeCurrency != "BTC" {
		t.Fatalf("fee currency = %q, want BTC", result.FeeCurrency)
	}
}

func TestNormalizeMultiAssetFeesSettleToUSDT(t *testing.T) {
	tickers := &stubTickers{prices: map[string]string{"BNBUSDT": "500"}}
	n := NewNormalizer("binance", tickers)

	result, err := n.Normalize(context.Background(), "BTCUSDT", []Trade{
		// Base-asset fee with a USDT quote reuses the executed price.
		{Price: "100", Quantity: "2", Commission: "0.01", CommissionAsset: "BTC"},
		// Non-base, non-stablecoin fee requires a ticker lookup.
		{Price: "100", Quantity: "1", Commission: "0.004", CommissionAsset: "BNB"},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if result.FeeCurrency != "USDT" {
		t.Fatalf("fee currency = %q, want USDT", result.FeeCurrency)
	}
	// 0.01 BTC * 100 (executed price) + 0.004 BNB * 500 = 1 + 2 = 3
	if !result.Fee.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("fee = %s, want 3", result.Fee)
	}
	if len(tickers.calls) != 1 || tickers.calls[0] != "BNBUSDT" {
		t.Fatalf("ticker calls = %v, want single BNBUSDT lookup", tickers.calls)
	}
}

func TestNormalizeStablecoinFeesConvertAtParity(t *testing.T) {
	n := NewNormalizer("binance", nil)

	result, err := n.Normalize(context.Background(), "BTCUSDT", []Trade{
		{Price: "100", Quantity: "1", Commission: "0.5", CommissionAsset: "BUSD"},
		{Price: "100", Quantity: "1", Commission: "0.25", CommissionAsset: "USDC"},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !result.Fee.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("fee = %s, want 0.75", result.Fee)
	}
	if result.FeeCurrency != "USDT" {
		t.Fatalf("fee currency = %q, want USDT", result.FeeCurrency)
	}
}

func TestNormalizeTickerFailureSurfaces(t *testing.T) {
	tickers := &stubTickers{err: errors.New("upstream down")}
	n := NewNormalizer("binance", tickers)

	_, err := n.Normalize(context.Background(), "ETHBTC", []Trade{
		{Price: "0.05", Quantity: "2", Commission: "0.001", CommissionAsset: "ETH"},
		{Price: "0.05", Quantity: "1", Commission: "0.1", CommissionAsset: "XRP"},
	})
	if err == nil {
		t.Fatalf("ticker failure must propagate, not default the fee to zero")
	}
	if !errs.IsKind(err, errs.KindExchange) {
		t.Fatalf("expected exchange kind, got %v", err)
	}
}

func TestNormalizeNoFills(t *testing.T) {
	n := NewNormalizer("binance", nil)

	result, err := n.Normalize(context.Background(), "BTCUSDT", nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if result.ExecutedQuantity.Sign() != 0 || result.Fee.Sign() != 0 {
		t.Fatalf("empty fills must normalize to zero figures")
	}
}

func TestNormalizeInvalidDecimal(t *testing.T) {
	n := NewNormalizer("binance", nil)

	_, err := n.Normalize(context.Background(), "BTCUSDT", []Trade{
		{Price: "abc", Quantity: "1", Commission: "0", CommissionAsset: "BTC"},
	})
	if err == nil {
		t.Fatalf("expected error for malformed price")
	}
	if !errs.IsKind(err, errs.KindBadRequest) {
		t.Fatalf("expected bad_request kind, got %v", err)
	}
}

func TestReceivedQuantity(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		executed    string
		fee         string
		feeCurrency string
		want        string
	}{
		{name: "base asset fee nets off", symbol: "BTCUSDT", executed: "2", fee: "0.01", feeCurrency: "BTC", want: "1.99"},
		{name: "quote asset fee leaves quantity", symbol: "BTCUSDT", executed: "2", fee: "5", feeCurrency: "USDT", want: "2"},
		{name: "zero fee leaves quantity", symbol: "BTCUSDT", executed: "2", fee: "0", feeCurrency: "BTC", want: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReceivedQuantity(tt.symbol, tt.executed, tt.fee, tt.feeCurrency)
			if err != nil {
				t.Fatalf("ReceivedQuantity() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ReceivedQuantity() = %s, want %s", got, tt.want)
			}
		})
	}
}
