// Package schema defines the canonical event and order vocabulary shared by
// every exchange integration. Nothing in this package references a concrete
// exchange; adapters translate their native payloads into these types.
package schema

import "time"

// EventType enumerates canonical stream event categories.
type EventType string

const (
	// EventTypeOpen signals that a streaming session reached the Open state.
	EventTypeOpen EventType = "Open"
	// EventTypeClose signals that a streaming session was torn down.
	EventTypeClose EventType = "Close"
	// EventTypePrice identifies last-trade price updates.
	EventTypePrice EventType = "PriceUpdated"
	// EventTypeKline identifies candlestick updates.
	EventTypeKline EventType = "KlineUpdated"
	// EventTypeOrderbook identifies full order book updates.
	// Consumers always receive the entire current book, never deltas.
	EventTypeOrderbook EventType = "OrderbookUpdated"
	// EventTypeOrder identifies canonical order updates.
	EventTypeOrder EventType = "OrderUpdated"
	// EventTypeBalance identifies account balance updates.
	EventTypeBalance EventType = "BalanceUpdated"
)

// Event is the canonical envelope delivered to consumers. Payload holds one
// of the *Payload types in this package, by value, so consumers cannot
// corrupt producer-owned state.
type Event struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol,omitempty"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// MarketMode distinguishes the market a payload originates from.
type MarketMode string

const (
	// ModeSpot marks spot market payloads.
	ModeSpot MarketMode = "spot"
	// ModeFuture marks derivatives market payloads.
	ModeFuture MarketMode = "future"
)

// PricePayload carries a last-trade price tick.
type PricePayload struct {
	Symbol    string    `json:"symbol"`
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// KlinePayload carries one candlestick update.
type KlinePayload struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	Open        string    `json:"open"`
	High        string    `json:"high"`
	Low         string    `json:"low"`
	Close       string    `json:"close"`
	BaseVolume  string    `json:"base_volume,omitempty"`
	QuoteVolume string    `json:"quote_volume,omitempty"`
	OpenTime    time.Time `json:"open_time"`
	CloseTime   time.Time `json:"close_time"`
}

// PriceLevel describes an order book price level using decimal strings.
type PriceLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// OrderbookPayload conveys the full current state of one symbol's book.
type OrderbookPayload struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Mode      MarketMode   `json:"mode"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BalanceEntry reports total and spendable funds for one asset.
type BalanceEntry struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"available_balance"`
}

// BalancePayload carries one or more balance changes from the account stream.
type BalancePayload struct {
	Balances  []BalanceEntry `json:"balances"`
	Timestamp time.Time      `json:"timestamp"`
}

// PositionPayload reports one open derivatives position.
type PositionPayload struct {
	Symbol       string `json:"symbol"`
	BaseSymbol   string `json:"base_symbol"`
	Leverage     int    `json:"leverage"`
	MarginType   string `json:"margin_type"`
	PositionSide string `json:"position_side"`
	Quantity     string `json:"quantity"`
	EntryPrice   string `json:"entry_price"`
}
