// Package rest is the shared HTTP transport for exchange adapters: one
// client per venue carrying its base URL, rate limiter, authentication
// decorator, and error classification table.
package rest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/exbridge/exbridge/errs"
)

const maxErrorBody = 4 << 10

// Request describes one venue call before authentication is applied.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    any
	Signed  bool
}

// Authenticator decorates a request with venue credentials: signature
// query parameters, auth headers, or both. Called only for signed
// requests, after the body has been encoded.
type Authenticator interface {
	Decorate(req *Request, body []byte, timestamp time.Time) error
}

// ErrorParser extracts the venue's error code and message from a response
// body. Returning ok=false means the body carried no recognizable error
// envelope and the HTTP status decides the classification.
type ErrorParser func(body []byte) (code, message string, ok bool)

// EnvelopeCheck inspects a 2xx body for venues that report failures with a
// success HTTP status (OKX-style {"code":"1",...} envelopes). Returning
// ok=true marks the response as a venue error.
type EnvelopeCheck func(body []byte) (code, message string, ok bool)

// Client issues classified, rate-limited requests against one venue.
type Client struct {
	exchange   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	table      *errs.Table
	auth       Authenticator
	parseError ErrorParser
	checkBody  EnvelopeCheck
	clock      func() time.Time
	log        *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests. Zero or negative disables the
// limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithAuthenticator installs the venue's signing decorator.
func WithAuthenticator(auth Authenticator) Option {
	return func(c *Client) { c.auth = auth }
}

// WithErrorTable installs the venue's code and message classification
// table.
func WithErrorTable(table *errs.Table) Option {
	return func(c *Client) { c.table = table }
}

// WithErrorParser installs the venue's error envelope decoder.
func WithErrorParser(parser ErrorParser) Option {
	return func(c *Client) { c.parseError = parser }
}

// WithEnvelopeCheck installs the venue's success-body error detector.
func WithEnvelopeCheck(check EnvelopeCheck) Option {
	return func(c *Client) { c.checkBody = check }
}

// WithClock overrides the timestamp source. Tests only.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient constructs a transport for one venue.
func NewClient(exchange, baseURL string, opts ...Option) *Client {
	c := &Client{
		exchange:   exchange,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      time.Now,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange reports the venue this client talks to.
func (c *Client) Exchange() string { return c.exchange }

// Do executes the request and decodes the response body into out when out
// is non-nil. Non-2xx responses come back as classified *errs.E, never as
// raw transport errors.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errs.New(c.exchange, errs.KindRequestTimeout,
				errs.WithMessage("rate limiter wait aborted"), errs.WithCause(err))
		}
	}

	body, err := c.encodeBody(req.Body)
	if err != nil {
		return err
	}

	if req.Signed {
		if c.auth == nil {
			return errs.New(c.exchange, errs.KindAuthentication,
				errs.WithMessage("signed request without credentials"))
		}
		if err := c.auth.Decorate(&req, body, c.clock().UTC()); err != nil {
			return err
		}
	}

	httpReq, err := c.buildRequest(ctx, req, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errs.New(c.exchange, errs.KindExchangeNotAvailable,
			errs.WithMessage("request "+req.Method+" "+req.Path+" failed"),
			errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.classifyFailure(resp, req)
	}

	if out == nil && c.checkBody == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(c.exchange, errs.KindExchange,
			errs.WithMessage("read "+req.Method+" "+req.Path+" response"),
			errs.WithCause(err), errs.WithHTTP(resp.StatusCode))
	}
	if c.checkBody != nil {
		if code, message, failed := c.checkBody(raw); failed {
			if c.table != nil {
				return c.table.Classify(code, message, errs.WithHTTP(resp.StatusCode))
			}
			return errs.New(c.exchange, errs.KindExchange,
				errs.WithRawCode(code), errs.WithRawMessage(message),
				errs.WithHTTP(resp.StatusCode))
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.New(c.exchange, errs.KindExchange,
			errs.WithMessage("decode "+req.Method+" "+req.Path+" response"),
			errs.WithCause(err), errs.WithHTTP(resp.StatusCode))
	}
	return nil
}

func (c *Client) encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errs.New(c.exchange, errs.KindBadRequest,
			errs.WithMessage("encode request body"), errs.WithCause(err))
	}
	return encoded, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request, body []byte) (*http.Request, error) {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, reader)
	if err != nil {
		return nil, errs.New(c.exchange, errs.KindBadRequest,
			errs.WithMessage("create "+req.Method+" "+req.Path+" request"),
			errs.WithCause(err))
	}
	if len(body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

func (c *Client) classifyFailure(resp *http.Response, req Request) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(raw))

	c.log.WithFields(logrus.Fields{
		"exchange": c.exchange,
		"method":   req.Method,
		"path":     req.Path,
		"status":   resp.StatusCode,
	}).Warn("rest request failed")

	if c.parseError != nil && c.table != nil {
		if code, message, ok := c.parseError(raw); ok {
			return c.table.Classify(code, message, errs.WithHTTP(resp.StatusCode))
		}
	}
	return errs.FromHTTPStatus(c.exchange, resp.StatusCode, body)
}
