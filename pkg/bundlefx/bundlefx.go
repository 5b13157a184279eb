// bundlefx/bundlefx.go
package bundlefx

import (
	"github.com/joeydtaylor/steeze-project/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-project/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-project/pkg/middleware/metrics"
	"go.uber.org/fx"
)

// Module provides the HTTP middleware stack: *auth.Middleware, the process
// *zap.Logger with the access-log middleware, the /metrics handler and the
// method observer.
var Module = fx.Options(
	fx.Provide(auth.ProvideAuthentication),
	logger.Module,
	metrics.Module,
)
