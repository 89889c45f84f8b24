package errs

import (
	"net/http"
	"testing"
)

func binanceTable() *Table {
	return NewTable("binance",
		map[string]Kind{
			"-1003": KindRateLimitExceeded,
			"-1021": KindInvalidNonce,
			"-1022": KindAuthentication,
			"-2010": KindInvalidOrder,
			"-2011": KindOrderNotFound,
		},
		map[string]Kind{
			"Account has insufficient balance for requested action.": KindInsufficientFunds,
			"This symbol is not permitted for this account.":         KindPermissionDenied,
		},
	)
}

func TestClassifyExactCode(t *testing.T) {
	err := binanceTable().Classify("-1021", "your time is ahead of server")
	if err.Kind != KindInvalidNonce {
		t.Fatalf("Classify kind = %q, want %q", err.Kind, KindInvalidNonce)
	}
	if err.RawCode != "-1021" {
		t.Fatalf("raw code = %q, want -1021", err.RawCode)
	}
}

func TestClassifyFallsBackToMessage(t *testing.T) {
	// Some exchanges reuse one numeric code for many failures and only the
	// message disambiguates.
	err := binanceTable().Classify("999999", "Account has insufficient balance for requested action.")
	if err.Kind != KindInsufficientFunds {
		t.Fatalf("Classify kind = %q, want %q", err.Kind, KindInsufficientFunds)
	}
}

func TestClassifyUnmatchedYieldsGenericWithRawPreserved(t *testing.T) {
	err := binanceTable().Classify("999999", "mystery failure")
	if err.Kind != KindExchange {
		t.Fatalf("Classify kind = %q, want %q", err.Kind, KindExchange)
	}
	if err.RawCode != "999999" || err.RawMsg != "mystery failure" {
		t.Fatalf("raw pair not preserved: code=%q msg=%q", err.RawCode, err.RawMsg)
	}
	if err.Exchange != "binance" {
		t.Fatalf("exchange = %q, want binance", err.Exchange)
	}
}

func TestClassifyEmptyMessageUsesCode(t *testing.T) {
	err := binanceTable().Classify("-2011", "")
	if err.Message != "-2011" {
		t.Fatalf("message = %q, want code fallback", err.Message)
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusUnauthorized, KindAuthentication},
		{http.StatusForbidden, KindPermissionDenied},
		{http.StatusNotFound, KindBadRequest},
		{http.StatusTooManyRequests, KindRateLimitExceeded},
		{http.StatusTeapot, KindRateLimitExceeded},
		{http.StatusInternalServerError, KindExchangeNotAvailable},
		{http.StatusBadGateway, KindExchangeNotAvailable},
		{http.StatusFound, KindExchange},
	}

	for _, tt := range tests {
		err := FromHTTPStatus("gate", tt.status, "")
		if err.Kind != tt.want {
			t.Fatalf("status %d: kind = %q, want %q", tt.status, err.Kind, tt.want)
		}
		if err.HTTP != tt.status {
			t.Fatalf("status %d not recorded", tt.status)
		}
	}
}
