// Package client is the Go SDK for the molstruct REST API.
//
//	c, err := client.NewClient("https://molstruct.example.com", client.WithAPIKey(token))
//	mol, err := c.Molecules().Get(ctx, id)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/molstruct/pkg/errors"
)

const Version = "0.1.0"

// Logger receives request and retry traces.  Any printf-style logger fits.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type silent struct{}

func (silent) Debugf(string, ...interface{}) {}
func (silent) Infof(string, ...interface{})  {}
func (silent) Errorf(string, ...interface{}) {}

// Client talks to one molstruct deployment.  It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	apiKey       string
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	molecules     *MoleculesClient
	moleculesOnce sync.Once
}

// APIError is a non-2xx response.  Code, Message and Detail come from the
// server's error body; RequestID is the X-Request-ID the SDK sent.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "molstruct: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	if e.Detail != "" {
		sb.WriteString(": " + e.Detail)
	}
	fmt.Fprintf(&sb, " [request_id=%s]", e.RequestID)
	return sb.String()
}

func (e *APIError) IsNotFound() bool    { return e.StatusCode == http.StatusNotFound }
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsServerError() bool { return e.StatusCode/100 == 5 }

// NewClient validates baseURL (http or https) and applies opts.  By default
// requests time out after 30s and are retried three times.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.ErrInvalidConfig
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", errors.ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: base url scheme must be http or https", errors.ErrInvalidConfig)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    "molstruct-go-sdk/" + Version,
		logger:       silent{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Molecules returns the /api/v1/molecules sub-client.
func (c *Client) Molecules() *MoleculesClient {
	c.moleculesOnce.Do(func() { c.molecules = &MoleculesClient{client: c} })
	return c.molecules
}

// ─── transport ───────────────────────────────────────────────────────────────

// request is one logical call.  body is encoded once and replayed on retry.
type request struct {
	method      string
	path        string
	contentType string
	body        func() ([]byte, error)
}

func jsonBody(v interface{}) func() ([]byte, error) {
	if v == nil {
		return nil
	}
	return func() ([]byte, error) { return json.Marshal(v) }
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path}, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: jsonBody(in)}, out)
}

func (c *Client) put(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, body: jsonBody(in)}, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path}, nil)
}

// attempt is the result of one round trip.  wait >= 0 asks do to retry after
// that delay instead of the computed backoff.
type attempt struct {
	body  []byte
	err   error
	retry bool
	wait  time.Duration
}

func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	if !strings.HasPrefix(r.path, "/") {
		r.path = "/" + r.path
	}
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = r.body(); err != nil {
			return fmt.Errorf("molstruct: encode request body: %w", err)
		}
	}

	var res attempt
	for n := 0; ; n++ {
		res = c.roundTrip(ctx, r, payload)
		if !res.retry || n >= c.retryMax {
			break
		}
		wait := res.wait
		if wait < 0 {
			wait = c.calculateBackoff(n + 1)
		}
		c.logger.Debugf("molstruct: retry %d of %s %s in %v", n+1, r.method, r.path, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if res.err != nil {
		return res.err
	}
	if out != nil && len(res.body) > 0 {
		if err := json.Unmarshal(res.body, out); err != nil {
			return fmt.Errorf("molstruct: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, r request, payload []byte) attempt {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return attempt{err: fmt.Errorf("molstruct: build request: %w", err)}
	}
	requestID := uuid.NewString()
	c.setHeaders(req, requestID, payload != nil, r.contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt{err: ctxErr}
		}
		c.logger.Errorf("molstruct: %s %s: %v", r.method, r.path, err)
		return attempt{err: err, retry: true, wait: -1}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return attempt{err: fmt.Errorf("molstruct: read response: %w", err)}
	}
	c.logger.Debugf("molstruct: %s %s -> %d in %v", r.method, r.path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 400 {
		return attempt{body: data}
	}
	apiErr := decodeAPIError(resp.StatusCode, requestID, data)
	switch {
	case apiErr.IsServerError():
		return attempt{err: apiErr, retry: true, wait: -1}
	case apiErr.IsRateLimited():
		// Only an explicit Retry-After makes a 429 retryable.
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			c.logger.Infof("molstruct: rate limited, retrying after %ds", secs)
			return attempt{err: apiErr, retry: true, wait: time.Duration(secs) * time.Second}
		}
	}
	return attempt{err: apiErr}
}

func (c *Client) setHeaders(req *http.Request, requestID string, hasBody bool, contentType string) {
	h := req.Header
	h.Set("Accept", "application/json")
	h.Set("User-Agent", c.userAgent)
	h.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	if hasBody {
		if contentType == "" {
			contentType = "application/json"
		}
		h.Set("Content-Type", contentType)
	}
}

// decodeAPIError reads the server's error body.  A body that is not JSON
// becomes the message.
func decodeAPIError(status int, requestID string, body []byte) *APIError {
	e := &APIError{StatusCode: status, RequestID: requestID}
	if len(body) == 0 {
		return e
	}
	if err := json.Unmarshal(body, e); err != nil {
		e.Message = string(body)
	}
	e.StatusCode, e.RequestID = status, requestID
	return e
}

// calculateBackoff doubles from retryWaitMin per attempt, caps at
// retryWaitMax and adds up to 25% jitter.
func (c *Client) calculateBackoff(n int) time.Duration {
	d := c.retryWaitMax
	if n < 32 {
		d = min(c.retryWaitMin<<(n-1), c.retryWaitMax)
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return d
}

//Personal.AI order the ending
