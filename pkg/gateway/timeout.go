package gateway

import (
	"context"
	"net/http"

	"github.com/joeydtaylor/steeze-project/pkg/manifest"
)

// withPolicy bounds how long the route waits on its call. A zero timeout
// mounts next as is.
func withPolicy(next http.HandlerFunc, p manifest.Policy) http.HandlerFunc {
	d := p.Timeout()
	if d <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
