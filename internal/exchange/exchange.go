// Package exchange defines the two boundaries every venue integration
// implements: the upward call surface consumers program against, and the
// downward descriptors an adapter hands to the shared transport and
// session machinery.
package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/fills"
	"github.com/exbridge/exbridge/internal/rest"
	"github.com/exbridge/exbridge/internal/schema"
	"github.com/exbridge/exbridge/internal/sign"
	"github.com/exbridge/exbridge/internal/stream"
)

// OrderType enumerates supported order types.
type OrderType string

const (
	// OrderTypeLimit rests at the given price.
	OrderTypeLimit OrderType = "LIMIT"
	// OrderTypeMarket executes immediately against the book.
	OrderTypeMarket OrderType = "MARKET"
)

// OrderRequest describes one order placement.
type OrderRequest struct {
	Symbol        string
	Side          schema.OrderSide
	Type          OrderType
	Price         string
	Quantity      string
	ClientOrderID string
	Mode          schema.MarketMode
}

// Normalize validates the request and fills defaults. An empty client
// order ID gets a fresh UUID so fills can always be correlated.
func (r *OrderRequest) Normalize(exchange string) error {
	r.Symbol = schema.NormalizeCurrencyCode(r.Symbol)
	if r.Symbol == "" {
		return errs.New(exchange, errs.KindBadRequest, errs.WithMessage("order symbol required"))
	}
	if r.Side != schema.OrderSideBuy && r.Side != schema.OrderSideSell {
		return errs.New(exchange, errs.KindInvalidOrder, errs.WithMessage("order side must be BUY or SELL"))
	}
	if r.Type == "" {
		r.Type = OrderTypeLimit
	}
	if r.Type == OrderTypeLimit && strings.TrimSpace(r.Price) == "" {
		return errs.New(exchange, errs.KindInvalidOrder, errs.WithMessage("limit order requires a price"))
	}
	if strings.TrimSpace(r.Quantity) == "" {
		return errs.New(exchange, errs.KindInvalidOrder, errs.WithMessage("order quantity required"))
	}
	if r.Mode == "" {
		r.Mode = schema.ModeSpot
	}
	if strings.TrimSpace(r.ClientOrderID) == "" {
		r.ClientOrderID = uuid.NewString()
	}
	return nil
}

// KlineQuery bounds one historical candle request.
type KlineQuery struct {
	Symbol   string
	Interval string
	From     int64
	To       int64
	Limit    int
}

// Exchange is the upward surface: everything a consumer can ask of a
// connected venue. Implementations deliver stream updates through Events
// as canonical schema payloads.
type Exchange interface {
	Name() string

	PlaceOrder(ctx context.Context, req OrderRequest) (schema.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrderDetail(ctx context.Context, symbol, orderID string) (schema.Order, error)
	GetBalances(ctx context.Context) ([]schema.BalanceEntry, error)
	GetKlines(ctx context.Context, query KlineQuery) ([]schema.Kline, error)
	GetPositions(ctx context.Context) ([]schema.PositionPayload, error)
	GetOrderbooks(ctx context.Context, symbols []string, depth int) ([]schema.OrderbookPayload, error)

	Subscribe(ctx context.Context, subs ...schema.ChannelSubscription) error
	Unsubscribe(ctx context.Context, subs ...schema.ChannelSubscription) error
	Events() <-chan schema.Event

	Close() error
}

// Descriptor is the downward REST contract: everything the shared
// transport needs to talk to one venue.
type Descriptor struct {
	Name          string
	BaseURL       string
	RateLimit     float64
	Burst         int
	Auth          rest.Authenticator
	ErrorTable    *errs.Table
	ParseError    rest.ErrorParser
	CheckEnvelope rest.EnvelopeCheck
	StatusTable   fills.StatusTable
}

// NewTransport builds the venue's REST client from its descriptor.
func (d Descriptor) NewTransport(opts ...rest.Option) *rest.Client {
	base := []rest.Option{
		rest.WithRateLimit(d.RateLimit, d.Burst),
		rest.WithErrorTable(d.ErrorTable),
		rest.WithErrorParser(d.ParseError),
		rest.WithEnvelopeCheck(d.CheckEnvelope),
	}
	if d.Auth != nil {
		base = append(base, rest.WithAuthenticator(d.Auth))
	}
	return rest.NewClient(d.Name, d.BaseURL, append(base, opts...)...)
}

// SignerAuth bridges a sign.Signer into the transport: it signs
// method+path+query+body and hands the signature to the venue's Attach
// hook, which decides whether it lands in a query parameter or a header.
type SignerAuth struct {
	Signer sign.Signer
	Attach func(req *rest.Request, signature string, timestamp time.Time)
}

// Decorate implements rest.Authenticator.
func (a SignerAuth) Decorate(req *rest.Request, body []byte, timestamp time.Time) error {
	var query string
	if req.Query != nil {
		query = req.Query.Encode()
	}
	signature, err := a.Signer.Sign(req.Method, req.Path, query+string(body), timestamp)
	if err != nil {
		return err
	}
	if a.Attach != nil {
		a.Attach(req, signature, timestamp)
	}
	return nil
}

// StreamSpec is the downward streaming contract: the venue dialect handed
// to a stream.Session plus the dispatch table that turns raw frames into
// canonical events.
type StreamSpec struct {
	Session  stream.Spec
	Dispatch *DispatchTable
}
