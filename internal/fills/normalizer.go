// Package fills normalizes raw order and trade payloads into the canonical
// executed price/quantity/fee model, independent of any exchange dialect.
package fills

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/schema"
)

// TickerSource supplies live prices for fee conversion. Implemented by the
// adapter's REST surface; the lookup is synchronous and its failure must
// surface as a normalization error, never as a silently zeroed fee.
type TickerSource interface {
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Trade is one raw fill line: decimal strings exactly as the exchange
// reported them.
type Trade struct {
	Price           string
	Quantity        string
	Commission      string
	CommissionAsset string
}

// Result carries the normalized execution figures for one order.
type Result struct {
	ExecutedAmount   decimal.Decimal
	ExecutedPrice    decimal.Decimal
	ExecutedQuantity decimal.Decimal
	ReceivedQuantity decimal.Decimal
	Fee              decimal.Decimal
	FeeCurrency      string
}

// Normalizer converts per-trade fee breakdowns into a single settlement
// figure. Stateless besides its configuration; safe for concurrent use.
type Normalizer struct {
	exchange   string
	tickers    TickerSource
	settlement string
}

// NewNormalizer constructs a normalizer converting multi-asset fees into the
// canonical settlement currency.
func NewNormalizer(exchange string, tickers TickerSource) *Normalizer {
	return &Normalizer{
		exchange:   exchange,
		tickers:    tickers,
		settlement: schema.SettlementCurrency,
	}
}

// Normalize computes the execution figures for an order filled by the given
// trades. With exactly one fee asset the fee passes through unchanged; with
// several, each is converted to the settlement currency and summed.
func (n *Normalizer) Normalize(ctx context.Context, symbol string, trades []Trade) (Result, error) {
	symbol = schema.NormalizeCurrencyCode(symbol)

	executedQuantity := decimal.Zero
	executedAmount := decimal.Zero
	fees := make([]schema.Fee, 0, 2)

	for _, trade := range trades {
		qty, err := parseDecimal(trade.Quantity)
		if err != nil {
			return Result{}, n.badPayload("trade quantity", err)
		}
		price, err := parseDecimal(trade.Price)
		if err != nil {
			return Result{}, n.badPayload("trade price", err)
		}
		commission, err := parseDecimal(trade.Commission)
		if err != nil {
			return Result{}, n.badPayload("trade commission", err)
		}

		executedQuantity = executedQuantity.Add(qty)
		executedAmount = executedAmount.Add(price.Mul(qty))
		fees = accumulateFee(fees, trade.CommissionAsset, commission)
	}

	if executedQuantity.Sign() == 0 {
		return Result{FeeCurrency: n.settlement}, nil
	}

	executedPrice := executedAmount.Div(executedQuantity)

	receivedQuantity := executedQuantity
	for _, fee := range fees {
		if schema.IsBaseAsset(fee.CommissionAsset, symbol) {
			receivedQuantity = receivedQuantity.Sub(fee.Commission)
		}
	}

	result := Result{
		ExecutedAmount:   executedAmount,
		ExecutedPrice:    executedPrice,
		ExecutedQuantity: executedQuantity,
		ReceivedQuantity: receivedQuantity,
	}

	switch len(fees) {
	case 0:
		result.FeeCurrency = n.settlement
	case 1:
		result.Fee = fees[0].Commission
		result.FeeCurrency = fees[0].CommissionAsset
	default:
		converted, err := n.settleFees(ctx, fees, executedPrice, symbol)
		if err != nil {
			return Result{}, err
		}
		result.Fee = converted
		result.FeeCurrency = n.settlement
	}

	return result, nil
}

// ReceivedQuantity nets a single fee off the executed quantity when the fee
// was charged in the order's base asset; otherwise the two are equal. Used
// for stream payloads that report one aggregate fee line.
func ReceivedQuantity(symbol, executedQuantity, fee, feeCurrency string) (string, error) {
	qty, err := parseDecimal(executedQuantity)
	if err != nil {
		return "", err
	}
	commission, err := parseDecimal(fee)
	if err != nil {
		return "", err
	}
	if commission.Sign() != 0 && schema.IsBaseAsset(feeCurrency, symbol) {
		return qty.Sub(commission).String(), nil
	}
	return qty.String(), nil
}

// settleFees converts every accumulated fee into the settlement currency:
// stablecoins at 1:1, base-asset fees against a settlement quote at the
// executed price, anything else at a live ticker price.
func (n *Normalizer) settleFees(ctx context.Context, fees []schema.Fee, executedPrice decimal.Decimal, symbol string) (decimal.Decimal, error) {
	total := decimal.Zero

	for _, fee := range fees {
		asset := fee.CommissionAsset

		if asset == n.settlement || schema.IsStableCoin(asset) {
			total = total.Add(fee.Commission)
			continue
		}

		if schema.IsBaseAsset(asset, symbol) && schema.QuoteAsset(symbol, asset) == n.settlement {
			total = total.Add(executedPrice.Mul(fee.Commission))
			continue
		}

		if n.tickers == nil {
			return decimal.Zero, errs.New(n.exchange, errs.KindExchange,
				errs.WithMessage("fee settlement requires a ticker source for "+asset))
		}
		price, err := n.tickers.TickerPrice(ctx, asset+n.settlement)
		if err != nil {
			return decimal.Zero, errs.New(n.exchange, errs.KindExchange,
				errs.WithMessage("fee settlement ticker lookup failed for "+asset),
				errs.WithCause(err))
		}
		total = total.Add(price.Mul(fee.Commission))
	}

	return total, nil
}

func accumulateFee(fees []schema.Fee, asset string, commission decimal.Decimal) []schema.Fee {
	asset = schema.NormalizeCurrencyCode(asset)
	if asset == "" || commission.Sign() == 0 {
		return fees
	}
	for i := range fees {
		if fees[i].CommissionAsset == asset {
			fees[i].Commission = fees[i].Commission.Add(commission)
			return fees
		}
	}
	return append(fees, schema.Fee{CommissionAsset: asset, Commission: commission})
}

func parseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func (n *Normalizer) badPayload(field string, err error) error {
	return errs.New(n.exchange, errs.KindBadRequest,
		errs.WithMessage("invalid "+field), errs.WithCause(err))
}
