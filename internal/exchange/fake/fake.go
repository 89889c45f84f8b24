// Package fake is an in-memory venue used to exercise the full Exchange
// surface in tests and as a reference for adapter authors. Orders fill
// immediately at the configured mark price; private subscriptions emit
// canonical order and balance events on the Events channel.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/exchange"
	"github.com/exbridge/exbridge/internal/fills"
	"github.com/exbridge/exbridge/internal/schema"
	"github.com/exbridge/exbridge/internal/stream"
)

const venue = "fake"

// feeRate is the taker commission charged on the quote leg.
var feeRate = decimal.RequireFromString("0.001")

// Adapter implements exchange.Exchange against in-memory state.
type Adapter struct {
	clock    func() time.Time
	registry *stream.Registry

	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	balances map[string]decimal.Decimal
	orders   map[string]schema.Order
	closed   bool

	events chan schema.Event

	translator fills.StatusTranslator
}

// Option configures the fake venue.
type Option func(*Adapter)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(a *Adapter) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithPrice seeds the mark price for a symbol.
func WithPrice(symbol, price string) Option {
	return func(a *Adapter) {
		a.prices[schema.NormalizeCurrencyCode(symbol)] = decimal.RequireFromString(price)
	}
}

// WithBalance seeds an asset balance.
func WithBalance(asset, amount string) Option {
	return func(a *Adapter) {
		a.balances[schema.NormalizeCurrencyCode(asset)] = decimal.RequireFromString(amount)
	}
}

// New constructs a fake venue.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		clock:    time.Now,
		registry: stream.NewRegistry(),
		prices:   make(map[string]decimal.Decimal),
		balances: make(map[string]decimal.Decimal),
		orders:   make(map[string]schema.Order),
		events:   make(chan schema.Event, 256),
		translator: fills.NewStatusTranslator(fills.StatusTable{
			"FILLED":   schema.OrderStatusExecuted,
			"CANCELED": schema.OrderStatusCanceled,
		}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements exchange.Exchange.
func (a *Adapter) Name() string { return venue }

// TickerPrice implements fills.TickerSource, so the fake can also serve
// as the normalizer's settlement price feed in tests.
func (a *Adapter) TickerPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	price, ok := a.prices[schema.NormalizeCurrencyCode(symbol)]
	if !ok {
		return decimal.Zero, errs.New(venue, errs.KindBadSymbol,
			errs.WithMessage("no ticker for "+symbol))
	}
	return price, nil
}

// PlaceOrder fills the order in full at the mark price and settles the
// balance book.
func (a *Adapter) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (schema.Order, error) {
	if err := req.Normalize(venue); err != nil {
		return schema.Order{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return schema.Order{}, errs.New(venue, errs.KindExchangeNotAvailable, errs.WithMessage("venue closed"))
	}

	price, ok := a.prices[req.Symbol]
	if !ok {
		return schema.Order{}, errs.New(venue, errs.KindBadSymbol,
			errs.WithMessage("unknown symbol "+req.Symbol))
	}
	if req.Type == exchange.OrderTypeLimit {
		parsed, err := decimal.NewFromString(req.Price)
		if err != nil {
			return schema.Order{}, errs.New(venue, errs.KindInvalidOrder,
				errs.WithMessage("invalid limit price"), errs.WithCause(err))
		}
		price = parsed
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || quantity.Sign() <= 0 {
		return schema.Order{}, errs.New(venue, errs.KindInvalidOrder,
			errs.WithMessage("invalid order quantity"))
	}

	base, quote := splitSymbol(req.Symbol)
	notional := price.Mul(quantity)
	fee := notional.Mul(feeRate)

	if req.Side == schema.OrderSideBuy {
		if a.balance(quote).LessThan(notional.Add(fee)) {
			return schema.Order{}, errs.New(venue, errs.KindInsufficientFunds,
				errs.WithMessage("insufficient "+quote+" balance"))
		}
		a.credit(quote, notional.Add(fee).Neg())
		a.credit(base, quantity)
	} else {
		if a.balance(base).LessThan(quantity) {
			return schema.Order{}, errs.New(venue, errs.KindInsufficientFunds,
				errs.WithMessage("insufficient "+base+" balance"))
		}
		a.credit(base, quantity.Neg())
		a.credit(quote, notional.Sub(fee))
	}

	now := a.clock().UTC()
	order := schema.Order{
		OrderID:          uuid.NewString(),
		ClientOrderID:    req.ClientOrderID,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Price:            price.String(),
		Quantity:         quantity.String(),
		ExecutedPrice:    price.String(),
		ExecutedQuantity: quantity.String(),
		ExecutedAmount:   notional.String(),
		ReceivedQuantity: quantity.String(),
		Fee:              fee.String(),
		FeeCurrency:      quote,
		Status:           a.translator.TranslateString("FILLED", quantity.String()),
		UpdatedAt:        now,
	}
	a.orders[order.OrderID] = order

	a.emitLocked(schema.Event{
		Exchange: venue, Symbol: order.Symbol, Type: schema.EventTypeOrder,
		Timestamp: now, Payload: order,
	}, schema.TopicOrders)
	a.emitBalancesLocked(now)

	return order, nil
}

// CancelOrder cancels a resting order. Orders here fill instantly, so any
// known order is already terminal and the venue reports it not fillable.
func (a *Adapter) CancelOrder(_ context.Context, _ string, orderID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	order, ok := a.orders[orderID]
	if !ok {
		return errs.New(venue, errs.KindOrderNotFound, errs.WithMessage("unknown order "+orderID))
	}
	if order.Status.Terminal() {
		return errs.New(venue, errs.KindOrderNotFillable,
			errs.WithMessage("order already "+string(order.Status)))
	}
	return nil
}

// GetOrderDetail implements exchange.Exchange.
func (a *Adapter) GetOrderDetail(_ context.Context, _ string, orderID string) (schema.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	order, ok := a.orders[orderID]
	if !ok {
		return schema.Order{}, errs.New(venue, errs.KindOrderNotFound,
			errs.WithMessage("unknown order "+orderID))
	}
	return order, nil
}

// GetBalances reports every non-zero asset balance, sorted by asset.
func (a *Adapter) GetBalances(context.Context) ([]schema.BalanceEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balanceEntriesLocked(), nil
}

// GetKlines synthesizes flat candles at the mark price across the query
// range, paged the way a real venue would serve them.
func (a *Adapter) GetKlines(ctx context.Context, query exchange.KlineQuery) ([]schema.Kline, error) {
	symbol := schema.NormalizeCurrencyCode(query.Symbol)
	a.mu.Lock()
	price, ok := a.prices[symbol]
	a.mu.Unlock()
	if !ok {
		return nil, errs.New(venue, errs.KindBadSymbol, errs.WithMessage("unknown symbol "+query.Symbol))
	}

	step := schema.ParseInterval(query.Interval)
	return exchange.PageKlines(ctx, venue, query, func(_ context.Context, q exchange.KlineQuery, page schema.TimeRange) ([]schema.Kline, error) {
		if page.StartTime.IsZero() {
			return nil, nil
		}
		var out []schema.Kline
		for start := page.StartTime; start.Before(page.EndTime); start = start.Add(step) {
			out = append(out, schema.Kline{
				Symbol:    symbol,
				Interval:  q.Interval,
				Open:      price.String(),
				High:      price.String(),
				Low:       price.String(),
				Close:     price.String(),
				Volume:    "0",
				OpenTime:  start,
				CloseTime: start.Add(step),
			})
		}
		return out, nil
	})
}

// GetPositions implements exchange.Exchange. The fake is spot-only.
func (a *Adapter) GetPositions(context.Context) ([]schema.PositionPayload, error) {
	return nil, nil
}

// GetOrderbooks synthesizes a one-level book around the mark price.
func (a *Adapter) GetOrderbooks(_ context.Context, symbols []string, _ int) ([]schema.OrderbookPayload, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock().UTC()
	out := make([]schema.OrderbookPayload, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = schema.NormalizeCurrencyCode(symbol)
		price, ok := a.prices[symbol]
		if !ok {
			return nil, errs.New(venue, errs.KindBadSymbol, errs.WithMessage("unknown symbol "+symbol))
		}
		spread := price.Mul(decimal.RequireFromString("0.0001"))
		out = append(out, schema.OrderbookPayload{
			Symbol:    symbol,
			Bids:      []schema.PriceLevel{{Price: price.Sub(spread).String(), Quantity: "1"}},
			Asks:      []schema.PriceLevel{{Price: price.Add(spread).String(), Quantity: "1"}},
			Mode:      schema.ModeSpot,
			UpdatedAt: now,
		})
	}
	return out, nil
}

// Subscribe registers channels; private topics immediately emit the
// current account state the way a real venue's snapshot frame would.
func (a *Adapter) Subscribe(_ context.Context, subs ...schema.ChannelSubscription) error {
	added := a.registry.Add(subs...)

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock().UTC()
	for _, sub := range added {
		if sub.Topic == schema.TopicBalance {
			a.emitBalancesLocked(now)
		}
	}
	return nil
}

// Unsubscribe implements exchange.Exchange.
func (a *Adapter) Unsubscribe(_ context.Context, subs ...schema.ChannelSubscription) error {
	a.registry.Remove(subs...)
	return nil
}

// Subscriptions exposes the registered set, for tests.
func (a *Adapter) Subscriptions() []schema.ChannelSubscription {
	return a.registry.Snapshot()
}

// Events implements exchange.Exchange.
func (a *Adapter) Events() <-chan schema.Event { return a.events }

// SetPrice moves the mark price and emits a price event to subscribers.
func (a *Adapter) SetPrice(symbol, price string) {
	symbol = schema.NormalizeCurrencyCode(symbol)
	parsed := decimal.RequireFromString(price)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[symbol] = parsed
	now := a.clock().UTC()
	a.emitLocked(schema.Event{
		Exchange: venue, Symbol: symbol, Type: schema.EventTypePrice,
		Timestamp: now,
		Payload:   schema.PricePayload{Symbol: symbol, Price: parsed.String(), Timestamp: now},
	}, schema.TopicPrice)
}

// Close implements exchange.Exchange. Idempotent.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	close(a.events)
	return nil
}

func (a *Adapter) balance(asset string) decimal.Decimal {
	return a.balances[asset]
}

func (a *Adapter) credit(asset string, delta decimal.Decimal) {
	a.balances[asset] = a.balances[asset].Add(delta)
}

func (a *Adapter) balanceEntriesLocked() []schema.BalanceEntry {
	assets := make([]string, 0, len(a.balances))
	for asset := range a.balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	out := make([]schema.BalanceEntry, 0, len(assets))
	for _, asset := range assets {
		amount := a.balances[asset]
		if amount.Sign() == 0 {
			continue
		}
		out = append(out, schema.BalanceEntry{
			Asset:            asset,
			Balance:          amount.String(),
			AvailableBalance: amount.String(),
		})
	}
	return out
}

func (a *Adapter) emitBalancesLocked(now time.Time) {
	a.emitLocked(schema.Event{
		Exchange: venue, Type: schema.EventTypeBalance, Timestamp: now,
		Payload: schema.BalancePayload{Balances: a.balanceEntriesLocked(), Timestamp: now},
	}, schema.TopicBalance)
}

// emitLocked delivers an event when the topic is subscribed. Delivery is
// non-blocking: a full consumer drops the event rather than stalling the
// venue.
func (a *Adapter) emitLocked(event schema.Event, topic schema.Topic) {
	if a.closed {
		return
	}
	if !a.subscribedLocked(topic, event.Symbol) {
		return
	}
	select {
	case a.events <- event:
	default:
	}
}

func (a *Adapter) subscribedLocked(topic schema.Topic, symbol string) bool {
	for _, sub := range a.registry.Snapshot() {
		if sub.Topic != topic {
			continue
		}
		if sub.Symbol == "" || sub.Symbol == symbol {
			return true
		}
	}
	return false
}

// splitSymbol resolves the base and quote legs of a concatenated symbol
// against the known quote currencies, settlement first.
func splitSymbol(symbol string) (base, quote string) {
	quotes := []string{schema.SettlementCurrency, "BUSD", "USDC", "BTC", "ETH"}
	for _, q := range quotes {
		if len(symbol) > len(q) && symbol[len(symbol)-len(q):] == q {
			return symbol[:len(symbol)-len(q)], q
		}
	}
	if len(symbol) > 3 {
		return symbol[:len(symbol)-3], symbol[len(symbol)-3:]
	}
	return symbol, ""
}
