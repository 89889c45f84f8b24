// Package book maintains depth-limited local order books from streams that
// deliver a full snapshot followed by incremental deltas.
package book

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/schema"
)

// Aggregator merges snapshot and delta messages per symbol. All quantity
// comparisons are decimal-precise: exchange payloads are decimal strings and
// float parsing misclassifies the zero-quantity removal boundary.
//
// Books never survive a reconnect; callers must Reset and wait for a fresh
// snapshot after any session gap.
type Aggregator struct {
	mu    sync.Mutex
	depth int
	mode  schema.MarketMode
	clock func() time.Time
	books map[string]*symbolBook
}

type symbolBook struct {
	bids      map[string]decimal.Decimal
	asks      map[string]decimal.Decimal
	updatedAt time.Time
}

// NewAggregator constructs an aggregator limited to depth price levels per
// side (<=0 keeps full depth).
func NewAggregator(depth int, mode schema.MarketMode) *Aggregator {
	return &Aggregator{
		depth: depth,
		mode:  mode,
		clock: time.Now,
		books: make(map[string]*symbolBook),
	}
}

// WithClock overrides the internal clock, primarily for testing.
func (a *Aggregator) WithClock(clock func() time.Time) *Aggregator {
	a.mu.Lock()
	defer a.mu.Unlock()
	if clock == nil {
		a.clock = time.Now
	} else {
		a.clock = clock
	}
	return a
}

// ApplySnapshot replaces the symbol's entire book with the payload's levels.
// This is the only way a symbol's book is created.
func (a *Aggregator) ApplySnapshot(symbol string, bids, asks []schema.PriceLevel) (schema.OrderbookPayload, error) {
	symbol = schema.NormalizeCurrencyCode(symbol)
	if symbol == "" {
		return schema.OrderbookPayload{}, errs.New("", errs.KindBadRequest, errs.WithMessage("orderbook snapshot requires a symbol"))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b := &symbolBook{
		bids: make(map[string]decimal.Decimal, len(bids)),
		asks: make(map[string]decimal.Decimal, len(asks)),
	}
	if err := replaceSide(b.bids, bids); err != nil {
		return schema.OrderbookPayload{}, err
	}
	if err := replaceSide(b.asks, asks); err != nil {
		return schema.OrderbookPayload{}, err
	}
	b.updatedAt = a.clock().UTC()
	a.books[symbol] = b

	return a.buildPayloadLocked(symbol, b), nil
}

// ApplyDelta merges incremental level updates into the symbol's book. A
// delta for a symbol with no prior snapshot is a protocol violation and is
// ignored (applied=false): the correct recovery is the next snapshot, not
// buffering.
func (a *Aggregator) ApplyDelta(symbol string, bids, asks []schema.PriceLevel) (schema.OrderbookPayload, bool, error) {
	symbol = schema.NormalizeCurrencyCode(symbol)

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.books[symbol]
	if !ok {
		return schema.OrderbookPayload{}, false, nil
	}

	if err := mergeSide(b.bids, bids); err != nil {
		return schema.OrderbookPayload{}, false, err
	}
	if err := mergeSide(b.asks, asks); err != nil {
		return schema.OrderbookPayload{}, false, err
	}
	b.updatedAt = a.clock().UTC()

	return a.buildPayloadLocked(symbol, b), true, nil
}

// Snapshot returns the current book for the symbol, if one exists.
func (a *Aggregator) Snapshot(symbol string) (schema.OrderbookPayload, bool) {
	symbol = schema.NormalizeCurrencyCode(symbol)

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.books[symbol]
	if !ok {
		return schema.OrderbookPayload{}, false
	}
	return a.buildPayloadLocked(symbol, b), true
}

// Reset discards every tracked book. Called on reconnect: deltas are never
// trusted across a session gap.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.books = make(map[string]*symbolBook)
}

func replaceSide(target map[string]decimal.Decimal, levels []schema.PriceLevel) error {
	for _, level := range levels {
		priceKey := strings.TrimSpace(level.Price)
		if priceKey == "" {
			continue
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(level.Quantity))
		if err != nil {
			return errs.New("", errs.KindBadRequest,
				errs.WithMessage("invalid orderbook quantity"), errs.WithCause(err))
		}
		if qty.Sign() <= 0 {
			continue
		}
		target[priceKey] = qty
	}
	return nil
}

func mergeSide(target map[string]decimal.Decimal, updates []schema.PriceLevel) error {
	for _, update := range updates {
		priceKey := strings.TrimSpace(update.Price)
		if priceKey == "" {
			continue
		}
		qtyStr := strings.TrimSpace(update.Quantity)
		if qtyStr == "" {
			delete(target, priceKey)
			continue
		}
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			return errs.New("", errs.KindBadRequest,
				errs.WithMessage("invalid orderbook quantity"), errs.WithCause(err))
		}
		if qty.Sign() <= 0 {
			delete(target, priceKey)
			continue
		}
		target[priceKey] = qty
	}
	return nil
}

// buildPayloadLocked renders the book into a payload holding fresh slices,
// so consumers cannot corrupt aggregator state by mutating the emitted value.
func (a *Aggregator) buildPayloadLocked(symbol string, b *symbolBook) schema.OrderbookPayload {
	return schema.OrderbookPayload{
		Symbol:    symbol,
		Bids:      buildSide(b.bids, true, a.depth),
		Asks:      buildSide(b.asks, false, a.depth),
		Mode:      a.mode,
		UpdatedAt: b.updatedAt,
	}
}

func buildSide(source map[string]decimal.Decimal, isBid bool, depth int) []schema.PriceLevel {
	if len(source) == 0 {
		return nil
	}
	type level struct {
		price decimal.Decimal
		qty   decimal.Decimal
		key   string
	}
	levels := make([]level, 0, len(source))
	for key, qty := range source {
		price, err := decimal.NewFromString(key)
		if err != nil {
			continue
		}
		if qty.Sign() <= 0 {
			continue
		}
		levels = append(levels, level{price: price, qty: qty, key: key})
	}
	sort.Slice(levels, func(i, j int) bool {
		cmp := levels[i].price.Cmp(levels[j].price)
		if cmp == 0 {
			return levels[i].key < levels[j].key
		}
		if isBid {
			return cmp > 0
		}
		return cmp < 0
	})

	limit := len(levels)
	if depth > 0 && limit > depth {
		limit = depth
	}
	out := make([]schema.PriceLevel, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, schema.PriceLevel{
			Price:    levels[i].price.String(),
			Quantity: levels[i].qty.String(),
		})
	}
	return out
}
