package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func serve(m *Middleware, req *http.Request) (*httptest.ResponseRecorder, User) {
	var seen User
	h := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = m.GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware_HS256Bearer(t *testing.T) {
	secret := []byte("s3cret")
	m := New(WithHMACSecret(secret), WithIssuer("steeze"), WithAdminRole("admin"))

	tok := sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
		"sub":  "ada",
		"iss":  "steeze",
		"role": "admin",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	rec, u := serve(m, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "ada", u.Username)
	require.Equal(t, "admin", u.Role.Name)
	require.Equal(t, "assert", u.AuthenticationSource.Provider)
}

func TestMiddleware_RejectsBadBearer(t *testing.T) {
	secret := []byte("s3cret")
	m := New(WithHMACSecret(secret), WithIssuer("steeze"))

	cases := map[string]string{
		"wrong key":    sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "ada", "iss": "steeze"}),
		"wrong issuer": sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "ada", "iss": "else"}),
		"expired":      sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "ada", "iss": "steeze", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no subject":   sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"iss": "steeze"}),
		"garbage":      "not.a.jwt",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec, _ := serve(m, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestMiddleware_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	m := New(WithRSAPublicKey(&key.PublicKey), WithAudience("api"))

	tok := sign(t, jwt.SigningMethodRS256, key, jwt.MapClaims{"uid": "grace", "aud": "api", "roles": []string{"", "ops"}})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "assert", Value: tok})

	rec, u := serve(m, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "grace", u.Username)
	require.Equal(t, "ops", u.Role.Name)

	// An HS256 token cannot pass for an RS256-only middleware.
	hs := sign(t, jwt.SigningMethodHS256, []byte("x"), jwt.MapClaims{"uid": "grace", "aud": "api"})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+hs)
	rec, _ = serve(m, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_AnonymousAndDevBypass(t *testing.T) {
	m := New(WithDevBypass(true), WithAdminRole("admin"))

	rec, u := serve(m, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, u.Username)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-User", "dev")
	req.Header.Set("X-Dev-Role", "admin")
	_, u = serve(m, req)
	require.Equal(t, "dev", u.Username)

	ctx := WithUser(req.Context(), u)
	require.True(t, m.IsAuthenticated(ctx))
	require.True(t, m.IsAdmin(ctx))
	require.True(t, m.IsRole(ctx, Role{Name: "anything"}))
	require.True(t, m.IsUser(ctx, "someone-else"))

	got, ok := UserFrom(ctx)
	require.True(t, ok)
	require.Equal(t, u, got)
}
