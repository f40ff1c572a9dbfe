package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// Request errors raised before verification.
var (
	ErrMissingAuthHeader = errors.Unauthorized("missing authorization header")
	ErrInvalidAuthFormat = errors.Unauthorized("authorization header must use the Bearer scheme")
)

// AuthMiddleware rejects requests without a valid bearer token and stores
// the verified claims in the request context.
type AuthMiddleware struct {
	verifier     TokenVerifier
	logger       logging.Logger
	skipPaths    map[string]bool
	skipPrefixes []string
}

// MiddlewareOption customises an AuthMiddleware.
type MiddlewareOption func(*AuthMiddleware)

// WithSkipPaths exempts exact paths.
func WithSkipPaths(paths ...string) MiddlewareOption {
	return func(m *AuthMiddleware) {
		for _, p := range paths {
			m.skipPaths[p] = true
		}
	}
}

// WithSkipPrefixes exempts every path under the given prefixes.
func WithSkipPrefixes(prefixes ...string) MiddlewareOption {
	return func(m *AuthMiddleware) { m.skipPrefixes = append(m.skipPrefixes, prefixes...) }
}

// NewAuthMiddleware creates an AuthMiddleware backed by verifier.
func NewAuthMiddleware(verifier TokenVerifier, logger logging.Logger, opts ...MiddlewareOption) *AuthMiddleware {
	m := &AuthMiddleware{verifier: verifier, logger: logger, skipPaths: make(map[string]bool)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *AuthMiddleware) skip(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, p := range m.skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler wraps next.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || m.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err == nil {
			var claims *TokenClaims
			claims, err = m.verifier.VerifyToken(r.Context(), token)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}
		}

		m.logger.Warn("authentication failed",
			logging.String("path", r.URL.Path),
			logging.String("remote", r.RemoteAddr),
			logging.Err(err))
		writeAuthError(w, err)
	})
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidAuthFormat
	}
	return strings.TrimSpace(token), nil
}

// writeAuthError renders err in the API error envelope.  Codes other than
// 401, 403 and 503 collapse to 401.
func writeAuthError(w http.ResponseWriter, err error) {
	var ae *errors.AppError
	if !errors.As(err, &ae) {
		ae = errors.Unauthorized("token verification failed")
	}
	code := ae.Code
	switch code {
	case errors.ErrCodeUnauthorized, errors.ErrCodeForbidden, errors.ErrCodeServiceUnavailable:
	default:
		code = errors.ErrCodeUnauthorized
	}
	status := errors.HTTPStatusForCode(code)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(common.ErrorResponse{
		Code:    code.String(),
		Message: ae.Message,
		Detail:  ae.Detail,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Context helpers
// ─────────────────────────────────────────────────────────────────────────────

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*TokenClaims)
	return c, ok && c != nil
}

// SubjectFromContext returns the token subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return c.Subject, true
}

//Personal.AI order the ending
