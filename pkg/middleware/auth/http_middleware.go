package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

func (m *Middleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Dev bypass for local testing (NEVER enable in prod)
			if m.devBypass {
				if u, ok := devUserFromHeaders(r); ok {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
					return
				}
			}

			// 1) A bearer token must be valid when present.
			if raw, ok := bearer(r); ok {
				u, err := m.validateAssertion(raw)
				if err != nil {
					m.log.Debug("bearer rejected", zap.Error(err))
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
				return
			}

			// 2) The assertion cookie is best effort.
			if ac, _ := r.Cookie(m.cookieName); ac != nil && ac.Value != "" && m.enabled() {
				if u, err := m.validateAssertion(ac.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
					return
				}
			}

			// 3) Continue unauthenticated; route guards decide.
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}
