// Package opensearch mirrors stored molecules into an OpenSearch index and
// answers molecule searches from it.
package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

// ErrUnavailable is returned when the cluster cannot be reached.
var ErrUnavailable = errors.New(errors.ErrCodeServiceUnavailable, "search backend unavailable")

// Config holds the search index settings.
type Config struct {
	Enabled               bool          `mapstructure:"enabled"`
	Addresses             []string      `mapstructure:"addresses"`
	Username              string        `mapstructure:"username"`
	Password              string        `mapstructure:"password"`
	Index                 string        `mapstructure:"index"`
	Shards                int           `mapstructure:"shards"`
	Replicas              int           `mapstructure:"replicas"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryBackoff          time.Duration `mapstructure:"retry_backoff"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	TLSInsecureSkipVerify bool          `mapstructure:"tls_insecure_skip_verify"`
	// Refresh is passed on writes: "", "true" or "wait_for".
	Refresh string `mapstructure:"refresh"`
}

// Validate checks the settings needed to connect.
func (c Config) Validate() error {
	if len(c.Addresses) == 0 {
		return invalid("addresses are required")
	}
	if strings.TrimSpace(c.Index) == "" {
		return invalid("index is required")
	}
	if c.MaxRetries < 0 {
		return invalid("max_retries must be >= 0")
	}
	if c.RequestTimeout <= 0 {
		return invalid("request_timeout must be > 0")
	}
	switch c.Refresh {
	case "", "true", "false", "wait_for":
	default:
		return invalid("refresh must be one of true, false, wait_for").WithDetail(c.Refresh)
	}
	return nil
}

func invalid(msg string) *errors.AppError {
	return errors.New(errors.ErrCodeValidation, msg)
}

// Client wraps the OpenSearch transport.
type Client struct {
	os        *opensearch.Client
	transport *http.Transport
	timeout   time.Duration
	logger    logging.Logger
}

// NewClient connects to the cluster and pings it once.
func NewClient(ctx context.Context, cfg Config, logger logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.TLSInsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	backoff := cfg.RetryBackoff
	osc, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		RetryBackoff:  func(int) time.Duration { return backoff },
		Transport:     transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid opensearch configuration")
	}

	c := &Client{os: osc, transport: transport, timeout: cfg.RequestTimeout, logger: logger}
	if err := c.Ping(ctx); err != nil {
		transport.CloseIdleConnections()
		return nil, err
	}
	logger.Info("opensearch connected", logging.Strings("addresses", cfg.Addresses))
	return c, nil
}

// Ping checks that the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, opensearchapi.PingRequest{})
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.IsError() {
		return ErrUnavailable.WithDetail(resp.Status())
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

type request interface {
	Do(ctx context.Context, transport opensearchapi.Transport) (*opensearchapi.Response, error)
}

// do runs req under the request timeout and maps transport failures.
func (c *Client) do(ctx context.Context, req request) (*opensearchapi.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := req.Do(ctx, c.os)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "opensearch request timed out")
		}
		return nil, ErrUnavailable.WithCause(err)
	}
	return resp, nil
}

// responseError turns a non-2xx response into an AppError carrying the
// cluster's error type and reason.
func responseError(resp *opensearchapi.Response, msg string) error {
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	code := errors.ErrCodeExternalService
	if resp.StatusCode == http.StatusServiceUnavailable {
		code = errors.ErrCodeServiceUnavailable
	}
	appErr := errors.New(code, msg)
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Reason != "" {
		return appErr.WithDetail(body.Error.Type + ": " + body.Error.Reason)
	}
	return appErr.WithDetail(resp.Status())
}

func errorType(resp *opensearchapi.Response) string {
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return body.Error.Type
}

func drain(resp *opensearchapi.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

//Personal.AI order the ending
