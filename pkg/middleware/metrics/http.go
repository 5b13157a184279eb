package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/joeydtaylor/steeze-project/pkg/method"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// NewPromHttpHandler returns the /metrics handler.
func NewPromHttpHandler() http.Handler { return promhttp.Handler() }

// ProvideMetrics is the Fx provider used by the server wiring.
func ProvideMetrics() http.Handler { return NewPromHttpHandler() }

// MethodObserver records method calls; plug it in with method.WithObserver.
type MethodObserver struct{}

var _ method.Observer = MethodObserver{}

func (MethodObserver) ObserveCall(name string, took time.Duration, err error) {
	methodCalls.WithLabelValues(name, Outcome(err)).Inc()
	methodCallSeconds.WithLabelValues(name).Observe(took.Seconds())
}

// Outcome is the method_calls_total outcome label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, method.ErrMissingParameter), errors.Is(err, method.ErrInvalidParameter):
		return "invalid"
	case errors.Is(err, method.ErrMissingHandler):
		return "unregistered"
	}
	return "error"
}

func ProvideMethodObserver() method.Observer { return MethodObserver{} }

var Module = fx.Options(
	fx.Provide(ProvideMetrics),
	fx.Provide(ProvideMethodObserver),
)
