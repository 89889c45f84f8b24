package errs

import (
	"net/http"
	"strings"
)

// Table maps one exchange's raw error codes and messages to canonical kinds.
// Build it once at adapter startup; lookups are read-only afterwards.
type Table struct {
	exchange  string
	byCode    map[string]Kind
	byMessage map[string]Kind
}

// NewTable constructs a classification table for the named exchange. Either
// map may be nil when the exchange only reports codes or only messages.
func NewTable(exchange string, byCode, byMessage map[string]Kind) *Table {
	t := &Table{
		exchange:  strings.TrimSpace(exchange),
		byCode:    make(map[string]Kind, len(byCode)),
		byMessage: make(map[string]Kind, len(byMessage)),
	}
	for code, kind := range byCode {
		code = strings.TrimSpace(code)
		if code == "" || kind == "" {
			continue
		}
		t.byCode[code] = kind
	}
	for msg, kind := range byMessage {
		msg = strings.TrimSpace(msg)
		if msg == "" || kind == "" {
			continue
		}
		t.byMessage[msg] = kind
	}
	return t
}

// Exchange returns the exchange name the table classifies for.
func (t *Table) Exchange() string { return t.exchange }

// Classify resolves a raw (code, message) pair to a canonical error. Lookup
// is by exact code first, then exact message; unmatched input yields the
// generic KindExchange with the raw pair preserved. The result is never nil:
// callers always receive a typed error.
func (t *Table) Classify(code, message string, opts ...Option) *E {
	code = strings.TrimSpace(code)
	trimmedMsg := strings.TrimSpace(message)

	kind := KindExchange
	if t != nil {
		if mapped, ok := t.byCode[code]; ok && code != "" {
			kind = mapped
		} else if mapped, ok := t.byMessage[trimmedMsg]; ok && trimmedMsg != "" {
			kind = mapped
		}
	}

	msg := trimmedMsg
	if msg == "" {
		msg = code
	}

	combined := make([]Option, 0, len(opts)+3)
	combined = append(combined, WithMessage(msg), WithRawCode(code), WithRawMessage(message))
	combined = append(combined, opts...)
	return New(t.exchangeName(), kind, combined...)
}

func (t *Table) exchangeName() string {
	if t == nil {
		return ""
	}
	return t.exchange
}

// FromHTTPStatus maps a transport-level HTTP status to a canonical error.
// Used when the exchange response carries no decodable error envelope.
func FromHTTPStatus(exchange string, status int, body string) *E {
	kind := KindExchange
	switch {
	case status == http.StatusBadRequest:
		kind = KindBadRequest
	case status == http.StatusUnauthorized:
		kind = KindAuthentication
	case status == http.StatusForbidden:
		kind = KindPermissionDenied
	case status == http.StatusNotFound:
		kind = KindBadRequest
	case status == http.StatusRequestTimeout:
		kind = KindRequestTimeout
	case status == http.StatusTeapot || status == http.StatusTooManyRequests:
		kind = KindRateLimitExceeded
	case status >= http.StatusInternalServerError:
		kind = KindExchangeNotAvailable
	}
	return New(exchange, kind,
		WithHTTP(status),
		WithMessage(http.StatusText(status)),
		WithRawMessage(body),
	)
}
