package auth

import (
	"errors"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

type assertionClaims struct {
	jwt.RegisteredClaims
	UID   string   `json:"uid"`
	Roles []string `json:"roles"`
	Role  string   `json:"role"`
}

func (m *Middleware) validateAssertion(raw string) (User, error) {
	if !m.enabled() {
		return User{}, errors.New("assertion key not configured")
	}

	var methods []string
	if len(m.hmacSecret) > 0 {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if m.rsaKey != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	)

	var claims assertionClaims
	tok, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() == jwt.SigningMethodRS256.Alg() {
			return m.rsaKey, nil
		}
		return m.hmacSecret, nil
	})
	if err != nil || !tok.Valid {
		return User{}, errors.New("invalid assertion")
	}

	if m.issuer != "" && claims.Issuer != m.issuer {
		return User{}, errors.New("bad issuer")
	}
	if m.audience != "" && !slices.Contains(claims.Audience, m.audience) {
		return User{}, errors.New("bad audience")
	}

	username := firstNonEmpty(claims.UID, claims.Subject)
	if username == "" {
		return User{}, errors.New("missing uid")
	}

	return User{
		Username:             username,
		AuthenticationSource: AuthenticationSource{Provider: "assert"},
		Role:                 Role{Name: firstNonEmpty(claims.Role, first(claims.Roles...))},
	}, nil
}
