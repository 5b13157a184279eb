// pkg/gateway/gateway.go
package gateway

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-project/pkg/manifest"
	"github.com/joeydtaylor/steeze-project/pkg/method"
	"github.com/joeydtaylor/steeze-project/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-project/pkg/middleware/logger"
	hmetrics "github.com/joeydtaylor/steeze-project/pkg/middleware/metrics"
	httpx "github.com/joeydtaylor/steeze-project/pkg/transport/httpx"
	"go.uber.org/zap"
)

// Methods resolves a route's call target. Both *core.App and
// *method.Registry satisfy it.
type Methods interface {
	Method(name string) method.Builder
}

type BuildDeps struct {
	Methods Methods
	Auth    *auth.Middleware
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
	Logger  *zap.Logger
}

// BuildRouter mounts every manifest route onto d.Router behind the shared
// middleware chain.
func BuildRouter(cfg manifest.Config, d BuildDeps) http.Handler {
	r := d.Router
	if r == nil {
		r = httpx.NewChi()
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	if d.Auth != nil {
		r.Use(d.Auth.Middleware())
	}
	if d.LogMW != nil {
		r.Use(d.LogMW.Middleware(d.Auth))
	}
	r.Use(hmetrics.Collect(d.Auth))

	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, nil, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, nil, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	for _, rt := range cfg.Routes {
		h := withPolicy(callRoute(rt, d.Methods, log), rt.Policy)
		h = withGuard(h, d.Auth, rt.Guard)
		r.Handle(rt.Method, rt.Path, h)
		log.Debug("route mounted",
			zap.String("method", rt.Method),
			zap.String("path", rt.Path),
			zap.String("call", rt.Call),
		)
	}
	return r.Mux()
}
