package auth

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Middleware authenticates requests from a bearer token (or the assertion
// cookie) signed with HS256 or RS256.
type Middleware struct {
	log       *zap.Logger
	adminRole string
	devBypass bool

	cookieName string
	hmacSecret []byte
	rsaKey     *rsa.PublicKey
	issuer     string
	audience   string
	leeway     time.Duration
}

type Option func(*Middleware)

func WithLogger(l *zap.Logger) Option {
	return func(m *Middleware) {
		if l != nil {
			m.log = l
		}
	}
}

// WithHMACSecret accepts HS256 tokens signed with secret.
func WithHMACSecret(secret []byte) Option { return func(m *Middleware) { m.hmacSecret = secret } }

// WithRSAPublicKey accepts RS256 tokens verifiable with key.
func WithRSAPublicKey(key *rsa.PublicKey) Option { return func(m *Middleware) { m.rsaKey = key } }

func WithIssuer(iss string) Option   { return func(m *Middleware) { m.issuer = iss } }
func WithAudience(aud string) Option { return func(m *Middleware) { m.audience = aud } }
func WithAdminRole(r string) Option  { return func(m *Middleware) { m.adminRole = r } }

func WithLeeway(d time.Duration) Option { return func(m *Middleware) { m.leeway = d } }

// WithDevBypass trusts X-Dev-User / X-Dev-Role headers. Never enable in prod.
func WithDevBypass(on bool) Option { return func(m *Middleware) { m.devBypass = on } }

func New(opts ...Option) *Middleware {
	m := &Middleware{
		log:        zap.NewNop(),
		cookieName: "assert",
		leeway:     60 * time.Second,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ProvideAuthentication wires the middleware from env:
//
//	AUTH_HS256_SECRET, AUTH_RS256_PUBLIC_KEY_FILE (PEM), ASSERTION_ISSUER,
//	ASSERTION_AUDIENCE, ASSERTION_COOKIE_NAME, ASSERTION_LEEWAY_SECONDS,
//	ADMIN_ROLE_NAME, AUTH_DEV_BYPASS
func ProvideAuthentication(log *zap.Logger) (*Middleware, error) {
	opts := []Option{
		WithLogger(log),
		WithIssuer(strings.TrimSpace(os.Getenv("ASSERTION_ISSUER"))),
		WithAudience(strings.TrimSpace(os.Getenv("ASSERTION_AUDIENCE"))),
		WithAdminRole(os.Getenv("ADMIN_ROLE_NAME")),
		WithDevBypass(os.Getenv("AUTH_DEV_BYPASS") == "true"),
	}
	if v := strings.TrimSpace(os.Getenv("ASSERTION_LEEWAY_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts = append(opts, WithLeeway(time.Duration(n)*time.Second))
		}
	}
	if s := os.Getenv("AUTH_HS256_SECRET"); s != "" {
		opts = append(opts, WithHMACSecret([]byte(s)))
	}
	if p := strings.TrimSpace(os.Getenv("AUTH_RS256_PUBLIC_KEY_FILE")); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read assertion key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(b)
		if err != nil {
			return nil, fmt.Errorf("parse assertion key %s: %w", p, err)
		}
		opts = append(opts, WithRSAPublicKey(key))
	}

	m := New(opts...)
	if c := strings.TrimSpace(os.Getenv("ASSERTION_COOKIE_NAME")); c != "" {
		m.cookieName = c
	}
	return m, nil
}

func (m *Middleware) enabled() bool { return len(m.hmacSecret) > 0 || m.rsaKey != nil }
