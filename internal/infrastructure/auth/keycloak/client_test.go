package keycloak

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

const (
	testRealm  = "chem"
	testClient = "molstruct-api"
)

type mockKeycloak struct {
	server *httptest.Server

	mu   sync.Mutex
	keys map[string]*rsa.PrivateKey

	jwksHits atomic.Int32
	down     atomic.Bool
}

func newMockKeycloak(t *testing.T) *mockKeycloak {
	t.Helper()
	mk := &mockKeycloak{keys: map[string]*rsa.PrivateKey{}}
	mk.addKey(t, "k1")
	mk.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mk.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/protocol/openid-connect/certs"):
			mk.jwksHits.Add(1)
			mk.writeJWKS(w)
		case strings.HasSuffix(r.URL.Path, "/.well-known/openid-configuration"):
			_ = json.NewEncoder(w).Encode(map[string]string{"issuer": mk.issuer()})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(mk.server.Close)
	return mk
}

func (mk *mockKeycloak) issuer() string { return mk.server.URL + "/realms/" + testRealm }

func (mk *mockKeycloak) addKey(t *testing.T, kid string) {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	mk.mu.Lock()
	mk.keys[kid] = k
	mk.mu.Unlock()
}

func (mk *mockKeycloak) writeJWKS(w http.ResponseWriter) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	var keys []map[string]string
	for kid, k := range mk.keys {
		keys = append(keys, map[string]string{
			"kid": kid,
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"keys": keys})
}

func (mk *mockKeycloak) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	mk.mu.Lock()
	k := mk.keys[kid]
	mk.mu.Unlock()
	require.NotNil(t, k, "unknown kid %s", kid)
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(k)
	require.NoError(t, err)
	return s
}

func (mk *mockKeycloak) claims(roles ...string) jwt.MapClaims {
	rs := make([]interface{}, len(roles))
	for i, r := range roles {
		rs[i] = r
	}
	return jwt.MapClaims{
		"sub":                "user-123",
		"iss":                mk.issuer(),
		"aud":                []string{testClient},
		"exp":                time.Now().Add(time.Hour).Unix(),
		"iat":                time.Now().Unix(),
		"email":              "chemist@example.com",
		"preferred_username": "chemist",
		"realm_access":       map[string]interface{}{"roles": rs},
	}
}

func newTestClient(t *testing.T, mk *mockKeycloak) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:             mk.server.URL,
		Realm:               testRealm,
		ClientID:            testClient,
		JWKSRefreshInterval: time.Hour,
		RequestTimeout:      time.Second,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{Realm: "r", ClientID: "c"}, logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Contains(t, err.Error(), "invalid keycloak configuration")
}

func TestNewClient_KeycloakDown(t *testing.T) {
	mk := newMockKeycloak(t)
	mk.down.Store(true)
	_, err := NewClient(Config{BaseURL: mk.server.URL, Realm: testRealm, ClientID: testClient}, logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestVerifyToken_Valid(t *testing.T) {
	mk := newMockKeycloak(t)
	c := newTestClient(t, mk)

	claims := mk.claims("molstruct_editor")
	claims["resource_access"] = map[string]interface{}{
		testClient:  map[string]interface{}{"roles": []interface{}{"molstruct_admin"}},
		"other-app": map[string]interface{}{"roles": []interface{}{"ignored"}},
	}
	tc, err := c.VerifyToken(context.Background(), mk.sign(t, "k1", claims))
	require.NoError(t, err)

	assert.Equal(t, "user-123", tc.Subject)
	assert.Equal(t, "chemist", tc.PreferredUsername)
	assert.Equal(t, "chemist@example.com", tc.Email)
	assert.Equal(t, mk.issuer(), tc.Issuer)
	assert.Equal(t, []string{testClient}, tc.Audience)
	assert.ElementsMatch(t, []string{"molstruct_editor", "molstruct_admin"}, tc.Roles)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tc.ExpiresAt, 5*time.Second)
}

func TestVerifyToken_Rejections(t *testing.T) {
	mk := newMockKeycloak(t)
	c := newTestClient(t, mk)

	expired := mk.claims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := mk.claims()
	wrongIssuer["iss"] = "https://elsewhere/realms/" + testRealm

	wrongAudience := mk.claims()
	wrongAudience["aud"] = []string{"another-client"}

	noExp := mk.claims()
	delete(noExp, "exp")

	tests := []struct {
		name  string
		token string
		want  *errors.AppError
	}{
		{"expired", mk.sign(t, "k1", expired), ErrTokenExpired},
		{"wrong issuer", mk.sign(t, "k1", wrongIssuer), ErrTokenInvalidIssuer},
		{"wrong audience", mk.sign(t, "k1", wrongAudience), ErrTokenInvalidAudience},
		{"malformed", "not-a-jwt", ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.VerifyToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.want, err)
		})
	}

	t.Run("missing exp", func(t *testing.T) {
		_, err := c.VerifyToken(context.Background(), mk.sign(t, "k1", noExp))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
	})
}

func TestVerifyToken_AuthorizedPartyAccepted(t *testing.T) {
	mk := newMockKeycloak(t)
	c := newTestClient(t, mk)

	claims := mk.claims()
	claims["aud"] = []string{"account"}
	claims["azp"] = testClient
	_, err := c.VerifyToken(context.Background(), mk.sign(t, "k1", claims))
	assert.NoError(t, err)
}

func TestVerifyToken_BadSignature(t *testing.T) {
	mk := newMockKeycloak(t)
	c := newTestClient(t, mk)

	token := mk.sign(t, "k1", mk.claims())
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err := c.VerifyToken(context.Background(), parts[0]+"."+parts[1]+"."+string(sig))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
}

func TestVerifyToken_KeyRotation(t *testing.T) {
	mk := newMockKeycloak(t)
	c := newTestClient(t, mk)
	require.Equal(t, int32(1), mk.jwksHits.Load())

	mk.addKey(t, "k2")
	token := mk.sign(t, "k2", mk.claims())

	// The key set was fetched moments ago, so the unknown kid is refused
	// without another fetch.
	_, err := c.VerifyToken(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, ErrTokenInvalidSignature.Message, err.(*errors.AppError).Message)
	assert.Equal(t, int32(1), mk.jwksHits.Load())

	c.jwks.minRefetch = 0
	_, err = c.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int32(2), mk.jwksHits.Load())

	_, err = c.VerifyToken(context.Background(), mk.sign(t, "k1", mk.claims()))
	require.NoError(t, err)
	assert.Equal(t, int32(2), mk.jwksHits.Load())
}

func TestVerifyToken_MissingKid(t *testing.T) {
	mk := newMockKeycloak(t)
	c := newTestClient(t, mk)

	mk.mu.Lock()
	k := mk.keys["k1"]
	mk.mu.Unlock()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, mk.claims()).SignedString(k)
	require.NoError(t, err)

	_, err = c.VerifyToken(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, ErrTokenMalformed.Message, err.(*errors.AppError).Message)
}

func TestHealth(t *testing.T) {
	mk := newMockKeycloak(t)
	c := newTestClient(t, mk)

	assert.NoError(t, c.Health(context.Background()))
	mk.down.Store(true)
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestRSAKey_Exponent(t *testing.T) {
	k, err := rsaKey(jsonWebKey{N: base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x02}), E: "AQAB"})
	require.NoError(t, err)
	assert.Equal(t, 65537, k.E)
	assert.Equal(t, int64(258), k.N.Int64())

	_, err = rsaKey(jsonWebKey{N: "AQ", E: "AA"})
	assert.Error(t, err)
	_, err = rsaKey(jsonWebKey{N: "!!", E: "AQAB"})
	assert.Error(t, err)
}

//Personal.AI order the ending
