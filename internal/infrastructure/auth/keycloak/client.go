// Package keycloak verifies bearer tokens issued by a Keycloak realm and
// maps realm roles onto molecule permissions.
package keycloak

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, rawToken string) (*TokenClaims, error)
}

// TokenClaims is the subset of an access token the API uses.
type TokenClaims struct {
	Subject           string    `json:"sub"`
	PreferredUsername string    `json:"preferred_username"`
	Email             string    `json:"email"`
	Roles             []string  `json:"roles"`
	Scope             string    `json:"scope"`
	Issuer            string    `json:"iss"`
	Audience          []string  `json:"aud"`
	IssuedAt          time.Time `json:"iat"`
	ExpiresAt         time.Time `json:"exp"`
}

// Config selects the realm whose tokens are accepted.
type Config struct {
	Enabled               bool          `mapstructure:"enabled"`
	BaseURL               string        `mapstructure:"base_url"`
	Realm                 string        `mapstructure:"realm"`
	ClientID              string        `mapstructure:"client_id"`
	JWKSRefreshInterval   time.Duration `mapstructure:"jwks_refresh_interval"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	TLSInsecureSkipVerify bool          `mapstructure:"tls_insecure_skip_verify"`
}

// Issuer is the iss claim tokens of the realm carry.
func (c Config) Issuer() string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimRight(c.BaseURL, "/"), c.Realm)
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("base_url is required")
	case c.Realm == "":
		return fmt.Errorf("realm is required")
	case c.ClientID == "":
		return fmt.Errorf("client_id is required")
	}
	return nil
}

const (
	defaultJWKSRefresh    = 5 * time.Minute
	defaultRequestTimeout = 10 * time.Second
	defaultMinRefetch     = 10 * time.Second
)

// Verification failures.  All are ErrCodeUnauthorized except an unreachable
// key endpoint.
var (
	ErrTokenExpired          = errors.Unauthorized("token expired")
	ErrTokenInvalidSignature = errors.Unauthorized("invalid token signature")
	ErrTokenInvalidIssuer    = errors.Unauthorized("invalid token issuer")
	ErrTokenInvalidAudience  = errors.Unauthorized("invalid token audience")
	ErrTokenMalformed        = errors.Unauthorized("malformed token")
	ErrKeycloakUnavailable   = errors.New(errors.ErrCodeServiceUnavailable, "keycloak unavailable")
)

// ─────────────────────────────────────────────────────────────────────────────
// JWKS cache
// ─────────────────────────────────────────────────────────────────────────────

type jwksCache struct {
	client *http.Client
	url    string
	logger logging.Logger

	// minRefetch bounds fetches triggered by unknown kids.
	minRefetch time.Duration

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastRefresh time.Time
}

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (c *jwksCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch JWKS: %s", resp.Status)
	}

	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			c.logger.Warn("skipping JWKS key", logging.String("kid", k.Kid), logging.Err(err))
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	c.logger.Debug("JWKS refreshed", logging.Int("keys", len(keys)))
	return nil
}

func rsaKey(k jsonWebKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := 0
	for _, b := range e {
		exp = exp<<8 | int(b)
	}
	if exp == 0 {
		return nil, fmt.Errorf("zero exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, nil
}

// key returns the key for kid, refetching the set once when kid is unknown
// and the last fetch is old enough.
func (c *jwksCache) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	k, ok := c.keys[kid]
	stale := time.Since(c.lastRefresh) >= c.minRefetch
	c.mu.RUnlock()
	if ok {
		return k, nil
	}
	if !stale {
		return nil, ErrTokenInvalidSignature.WithDetail("unknown kid " + kid)
	}
	if err := c.refresh(ctx); err != nil {
		c.logger.Warn("JWKS refresh failed", logging.Err(err))
		return nil, ErrKeycloakUnavailable.WithCause(err)
	}
	c.mu.RLock()
	k, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrTokenInvalidSignature.WithDetail("unknown kid " + kid)
	}
	return k, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

// Client verifies tokens of one realm.
type Client struct {
	cfg        Config
	httpClient *http.Client
	jwks       *jwksCache
	logger     logging.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for JWKS and discovery.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient fetches the realm's signing keys and keeps them refreshed until
// Close.
func NewClient(cfg Config, logger logging.Logger, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid keycloak configuration")
	}
	if cfg.JWKSRefreshInterval <= 0 {
		cfg.JWKSRefreshInterval = defaultJWKSRefresh
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSInsecureSkipVerify}, //nolint:gosec // opt-in for dev realms
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.jwks = &jwksCache{
		client:     c.httpClient,
		url:        cfg.Issuer() + "/protocol/openid-connect/certs",
		logger:     logger,
		minRefetch: defaultMinRefetch,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if err := c.jwks.refresh(ctx); err != nil {
		return nil, ErrKeycloakUnavailable.WithCause(err)
	}
	go c.refreshLoop()
	return c, nil
}

func (c *Client) refreshLoop() {
	ticker := time.NewTicker(c.cfg.JWKSRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
			if err := c.jwks.refresh(ctx); err != nil {
				c.logger.Warn("JWKS refresh failed", logging.Err(err))
			}
			cancel()
		}
	}
}

// VerifyToken checks signature, expiry, issuer and audience.  The audience
// matches when aud contains the client ID or azp names it.
func (c *Client) VerifyToken(ctx context.Context, rawToken string) (*TokenClaims, error) {
	var keyErr error
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			keyErr = ErrTokenMalformed.WithDetail("missing kid")
			return nil, keyErr
		}
		k, err := c.jwks.key(ctx, kid)
		keyErr = err
		return k, err
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(c.cfg.Issuer()),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err, keyErr)
	}

	if !audienceMatches(claims, c.cfg.ClientID) {
		return nil, ErrTokenInvalidAudience
	}
	return toTokenClaims(claims, c.cfg.ClientID), nil
}

func classify(err, keyErr error) error {
	switch {
	case keyErr != nil:
		return keyErr
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrTokenInvalidIssuer
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenInvalidSignature
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	}
	return errors.Wrap(err, errors.ErrCodeUnauthorized, "token verification failed")
}

func audienceMatches(claims jwt.MapClaims, clientID string) bool {
	if aud, err := claims.GetAudience(); err == nil {
		for _, a := range aud {
			if a == clientID {
				return true
			}
		}
	}
	azp, _ := claims["azp"].(string)
	return azp == clientID
}

// toTokenClaims flattens realm roles and the roles of clientID.
func toTokenClaims(claims jwt.MapClaims, clientID string) *TokenClaims {
	tc := &TokenClaims{}
	tc.Subject, _ = claims.GetSubject()
	tc.Issuer, _ = claims.GetIssuer()
	tc.Audience, _ = claims.GetAudience()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tc.IssuedAt = iat.Time
	}
	tc.Email, _ = claims["email"].(string)
	tc.PreferredUsername, _ = claims["preferred_username"].(string)
	tc.Scope, _ = claims["scope"].(string)

	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		tc.Roles = append(tc.Roles, stringList(ra["roles"])...)
	}
	if res, ok := claims["resource_access"].(map[string]interface{}); ok {
		if ca, ok := res[clientID].(map[string]interface{}); ok {
			tc.Roles = append(tc.Roles, stringList(ca["roles"])...)
		}
	}
	return tc
}

func stringList(v interface{}) []string {
	raw, _ := v.([]interface{})
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Health fetches the realm's discovery document.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Issuer()+"/.well-known/openid-configuration", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrKeycloakUnavailable.WithCause(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrKeycloakUnavailable.WithDetail(resp.Status)
	}
	return nil
}

// Close stops the background key refresh.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

//Personal.AI order the ending
