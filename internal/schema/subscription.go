package schema

import (
	"strconv"
	"strings"
)

// Topic enumerates subscribable channel categories.
type Topic string

const (
	// TopicPrice subscribes to last-trade price ticks.
	TopicPrice Topic = "price"
	// TopicKline subscribes to candlestick updates for one interval.
	TopicKline Topic = "kline"
	// TopicOrderbook subscribes to depth updates truncated to one depth.
	TopicOrderbook Topic = "orderbook"
	// TopicOrders subscribes to private order updates.
	TopicOrders Topic = "orders"
	// TopicBalance subscribes to private balance updates.
	TopicBalance Topic = "balance"
)

// Private reports whether the topic requires an authenticated session.
func (t Topic) Private() bool {
	return t == TopicOrders || t == TopicBalance
}

// ChannelSubscription identifies one desired channel. Subscriptions are
// set-like: two values with the same Key describe the same channel.
type ChannelSubscription struct {
	Topic    Topic
	Symbol   string
	Interval string
	Depth    int
}

// Key returns the identity of the subscription within a registry.
func (s ChannelSubscription) Key() string {
	parts := []string{string(s.Topic), NormalizeCurrencyCode(s.Symbol)}
	if s.Interval != "" {
		parts = append(parts, strings.TrimSpace(s.Interval))
	}
	if s.Depth > 0 {
		parts = append(parts, strconv.Itoa(s.Depth))
	}
	return strings.Join(parts, "|")
}
