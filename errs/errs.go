// Package errs provides the canonical error taxonomy shared by every
// exchange integration. Adapters map their native error tables into these
// kinds and never invent new top-level categories.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Kind identifies an exchange-agnostic error category.
type Kind string

const (
	// KindAuthentication indicates invalid or rejected credentials.
	KindAuthentication Kind = "authentication"
	// KindPermissionDenied indicates the credential lacks the required permission.
	KindPermissionDenied Kind = "permission_denied"
	// KindAccountSuspended indicates the account is disabled or frozen.
	KindAccountSuspended Kind = "account_suspended"
	// KindBadRequest indicates malformed or rejected request input.
	KindBadRequest Kind = "bad_request"
	// KindBadSymbol indicates an unknown or unsupported trading symbol.
	KindBadSymbol Kind = "bad_symbol"
	// KindInsufficientFunds indicates the balance cannot cover the request.
	KindInsufficientFunds Kind = "insufficient_funds"
	// KindInsufficientPositions indicates the position cannot cover the request.
	KindInsufficientPositions Kind = "insufficient_positions"
	// KindInvalidOrder indicates order parameters the exchange refuses.
	KindInvalidOrder Kind = "invalid_order"
	// KindOrderNotFound indicates the referenced order does not exist.
	KindOrderNotFound Kind = "order_not_found"
	// KindOrderNotFillable indicates the order cannot execute at the requested terms.
	KindOrderNotFillable Kind = "order_not_fillable"
	// KindInvalidNonce indicates a timestamp/nonce outside the exchange's accepted window.
	KindInvalidNonce Kind = "invalid_nonce"
	// KindRequestTimeout indicates the exchange did not answer in time.
	KindRequestTimeout Kind = "request_timeout"
	// KindRateLimitExceeded indicates the request exceeded rate limits.
	KindRateLimitExceeded Kind = "rate_limit_exceeded"
	// KindExchangeNotAvailable indicates the exchange is unreachable or erroring.
	KindExchangeNotAvailable Kind = "exchange_not_available"
	// KindOnMaintenance indicates a scheduled maintenance window.
	KindOnMaintenance Kind = "on_maintenance"
	// KindCancelPending indicates a cancel request is already in flight.
	KindCancelPending Kind = "cancel_pending"
	// KindInvalidAddress indicates a malformed or unregistered transfer address.
	KindInvalidAddress Kind = "invalid_address"
	// KindExchange is the catch-all for unclassified exchange failures.
	KindExchange Kind = "exchange_error"
)

// E captures structured error information with the raw exchange code and
// message preserved for diagnostics.
type E struct {
	Exchange string
	Kind     Kind
	HTTP     int
	RawCode  string
	RawMsg   string
	Message  string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the exchange and canonical kind.
func New(exchange string, kind Kind, opts ...Option) *E {
	e := &E{
		Exchange: strings.TrimSpace(exchange),
		Kind:     kind,
	}
	if e.Kind == "" {
		e.Kind = KindExchange
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawCode captures the raw exchange error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithRawMessage captures the raw exchange error message.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	exchange := strings.TrimSpace(e.Exchange)
	if exchange == "" {
		exchange = "unknown"
	}
	parts = append(parts, "exchange="+exchange)

	kind := strings.TrimSpace(string(e.Kind))
	if kind == "" {
		kind = string(KindExchange)
	}
	parts = append(parts, "kind="+kind)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// KindOf returns the canonical kind carried by err, or KindExchange when err
// is not an *E envelope. A nil err yields the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var envelope *E
	if errors.As(err, &envelope) {
		return envelope.Kind
	}
	return KindExchange
}

// IsKind reports whether err carries the given canonical kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// NotSupported returns a standardized error for unsupported capabilities.
func NotSupported(exchange, msg string) *E {
	return New(exchange, KindBadRequest, WithMessage(strings.TrimSpace(msg)))
}
