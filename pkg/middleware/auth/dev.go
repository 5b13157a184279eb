package auth

import "net/http"

// Dev-only user injection via headers when the bypass is on.
func devUserFromHeaders(r *http.Request) (User, bool) {
	user := r.Header.Get("X-Dev-User")
	if user == "" {
		return User{}, false
	}
	return User{
		Username:             user,
		AuthenticationSource: AuthenticationSource{Provider: firstNonEmpty(r.Header.Get("X-Dev-Provider"), "dev")},
		Role:                 Role{Name: r.Header.Get("X-Dev-Role")},
	}, true
}
