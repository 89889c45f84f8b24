// Package sign produces per-request authentication material from a
// credential set and a canonical request description. Signing is pure: the
// same inputs always yield the same signature (JWT nonces excepted), and no
// exchange identity is consulted here — the scheme and payload layout are
// configuration supplied by the adapter.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/schema"
)

// Scheme selects the signature algorithm and encoding.
type Scheme string

const (
	// SchemeHMACSHA256Hex emits a hex-encoded HMAC-SHA256 digest.
	SchemeHMACSHA256Hex Scheme = "hmac-sha256-hex"
	// SchemeHMACSHA256Base64 emits a base64-encoded HMAC-SHA256 digest.
	SchemeHMACSHA256Base64 Scheme = "hmac-sha256-base64"
	// SchemeHMACSHA512Hex emits a hex-encoded HMAC-SHA512 digest.
	SchemeHMACSHA512Hex Scheme = "hmac-sha512-hex"
	// SchemeJWTQueryHash emits a JWT whose claims embed a SHA512 hash of the
	// query string, signed HS256 with the API secret.
	SchemeJWTQueryHash Scheme = "jwt-query-hash"
)

// PayloadBuilder assembles the exact string an exchange expects to be
// signed from the canonical request description.
type PayloadBuilder func(method, path, query string, timestamp time.Time) string

// QueryPayload signs only the serialized query string. The timestamp is
// expected to already be a query parameter.
func QueryPayload(_, _, query string, _ time.Time) string {
	return query
}

// TimestampMethodPathPayload signs timestamp + method + path + query, the
// layout used by passphrase-carrying exchanges.
func TimestampMethodPathPayload(method, path, query string, timestamp time.Time) string {
	return strconv.FormatInt(timestamp.UnixMilli(), 10) + method + path + query
}

// ExpiresPathPayload signs method + path + expiry-timestamp, the layout used
// by exchanges that authenticate the stream URL rather than each request.
func ExpiresPathPayload(method, path, _ string, timestamp time.Time) string {
	return method + path + strconv.FormatInt(timestamp.UnixMilli(), 10)
}

// Signer signs canonical request descriptions with one configured scheme.
// The zero value is unusable; construct with New.
type Signer struct {
	scheme  Scheme
	cred    schema.Credential
	payload PayloadBuilder
	nonce   func() string
}

// New constructs a signer. A nil payload builder defaults to QueryPayload.
func New(scheme Scheme, cred schema.Credential, payload PayloadBuilder) Signer {
	if payload == nil {
		payload = QueryPayload
	}
	return Signer{scheme: scheme, cred: cred, payload: payload, nonce: newNonce}
}

// Scheme returns the configured scheme.
func (s Signer) Scheme() Scheme { return s.scheme }

// Sign produces the signature for the canonical request description.
func (s Signer) Sign(method, path, query string, timestamp time.Time) (string, error) {
	if s.cred.IsZero() {
		return "", errs.New("", errs.KindAuthentication, errs.WithMessage("signing requires credentials"))
	}

	payload := s.payload(method, path, query, timestamp)
	secret := []byte(s.cred.APISecret)

	switch s.scheme {
	case SchemeHMACSHA256Hex:
		return hex.EncodeToString(hmacDigest(sha256.New, secret, payload)), nil
	case SchemeHMACSHA256Base64:
		return base64.StdEncoding.EncodeToString(hmacDigest(sha256.New, secret, payload)), nil
	case SchemeHMACSHA512Hex:
		return hex.EncodeToString(hmacDigest(sha512.New, secret, payload)), nil
	case SchemeJWTQueryHash:
		return s.signJWT(query)
	default:
		return "", errs.New("", errs.KindBadRequest, errs.WithMessage("unknown signing scheme: "+string(s.scheme)))
	}
}

func (s Signer) signJWT(query string) (string, error) {
	claims := jwt.MapClaims{
		"access_key": s.cred.APIKey,
		"nonce":      s.nonce(),
	}
	if query != "" {
		sum := sha512.Sum512([]byte(query))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cred.APISecret))
	if err != nil {
		return "", errs.New("", errs.KindAuthentication,
			errs.WithMessage("jwt signing failed"), errs.WithCause(err))
	}
	return signed, nil
}

func hmacDigest(hasher func() hash.Hash, secret []byte, payload string) []byte {
	mac := hmac.New(hasher, secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func newNonce() string { return uuid.NewString() }
