package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates canonical order lifecycle states.
type OrderStatus string

const (
	// OrderStatusPending indicates an accepted order with no fills yet.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusExecuting indicates a partially filled order.
	OrderStatusExecuting OrderStatus = "executing"
	// OrderStatusExecuted indicates a completed order. Terminal.
	OrderStatusExecuted OrderStatus = "executed"
	// OrderStatusCanceled indicates an order removed without any fill. Terminal.
	OrderStatusCanceled OrderStatus = "canceled"
	// OrderStatusError indicates an unmapped or failed exchange state. Terminal.
	OrderStatusError OrderStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusExecuted, OrderStatusCanceled, OrderStatusError:
		return true
	default:
		return false
	}
}

// OrderSide captures the direction of an order.
type OrderSide string

const (
	// OrderSideBuy indicates buy orders.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell indicates sell orders.
	OrderSideSell OrderSide = "SELL"
)

// Order is the canonical normalized order. Immutable once returned: the
// normalizer builds a fresh value per raw payload.
type Order struct {
	OrderID          string      `json:"order_id"`
	ClientOrderID    string      `json:"client_order_id,omitempty"`
	Symbol           string      `json:"symbol"`
	Side             OrderSide   `json:"side"`
	Price            string      `json:"price"`
	Quantity         string      `json:"quantity"`
	ExecutedPrice    string      `json:"executed_price"`
	ExecutedQuantity string      `json:"executed_quantity"`
	ExecutedAmount   string      `json:"executed_amount,omitempty"`
	ReceivedQuantity string      `json:"received_quantity"`
	Fee              string      `json:"fee"`
	FeeCurrency      string      `json:"fee_currency"`
	Status           OrderStatus `json:"status"`
	UpdatedAt        time.Time   `json:"updated_at,omitempty"`
}

// Fee accumulates commission charged in a single asset. Multiple fees per
// fill are summed by asset before settlement conversion.
type Fee struct {
	CommissionAsset string
	Commission      decimal.Decimal
}

// Kline is one candlestick returned from a historical query.
type Kline struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	Open        string    `json:"open"`
	High        string    `json:"high"`
	Low         string    `json:"low"`
	Close       string    `json:"close"`
	Volume      string    `json:"volume"`
	OpenTime    time.Time `json:"open_time"`
	CloseTime   time.Time `json:"close_time"`
}
