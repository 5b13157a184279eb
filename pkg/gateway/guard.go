package gateway

import (
	"net/http"
	"slices"

	"github.com/joeydtaylor/steeze-project/pkg/manifest"
	"github.com/joeydtaylor/steeze-project/pkg/middleware/auth"
)

func withGuard(next http.HandlerFunc, a *auth.Middleware, g manifest.Guard) http.HandlerFunc {
	guarded := g.RequireAuth || len(g.Users) > 0 || len(g.Roles) > 0
	return func(w http.ResponseWriter, r *http.Request) {
		if !guarded {
			next(w, r)
			return
		}
		// no auth middleware wired: guarded routes are closed
		if a == nil || !a.IsAuthenticated(r.Context()) {
			writeError(w, nil, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		u := a.GetUser(r.Context())
		if len(g.Users) > 0 && !slices.Contains(g.Users, u.Username) && !a.IsAdmin(r.Context()) {
			writeError(w, nil, http.StatusForbidden, errorBody{Error: "forbidden"})
			return
		}
		if len(g.Roles) > 0 && !slices.Contains(g.Roles, u.Role.Name) && !a.IsAdmin(r.Context()) {
			writeError(w, nil, http.StatusForbidden, errorBody{Error: "forbidden"})
			return
		}
		next(w, r)
	}
}
