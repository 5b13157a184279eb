package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-project/pkg/codec"
	"github.com/joeydtaylor/steeze-project/pkg/manifest"
	"github.com/joeydtaylor/steeze-project/pkg/method"
	"go.uber.org/zap"
)

// MaxBodyBytes caps request bodies decoded into call params.
var MaxBodyBytes int64 = 1 << 20

type errorBody struct {
	Error string `json:"error" yaml:"error"`
	Code  string `json:"code,omitempty" yaml:"code,omitempty"`
	Param string `json:"param,omitempty" yaml:"param,omitempty"`
}

func callRoute(rt manifest.Route, ms Methods, log *zap.Logger) http.HandlerFunc {
	c, ok := codec.Lookup(rt.Codec)
	if !ok {
		c = codec.JSONStrict
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if ms == nil {
			writeError(w, c, http.StatusServiceUnavailable, errorBody{Error: "no methods available"})
			return
		}
		params, err := readParams(w, r, c)
		if err != nil {
			writeError(w, c, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}

		ctx := r.Context()
		res, err := ms.Method(rt.Call).Call(ctx, params, nil).Await(ctx)
		if err != nil {
			status, body := classify(err)
			if status >= http.StatusInternalServerError {
				log.Warn("route call failed",
					zap.String("call", rt.Call),
					zap.String("requestId", chimd.GetReqID(ctx)),
					zap.Error(err),
				)
			}
			writeError(w, c, status, body)
			return
		}
		if res == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		out, err := c.Marshal(res)
		if err != nil {
			writeError(w, c, http.StatusInternalServerError, errorBody{Error: "encode: " + err.Error()})
			return
		}
		w.Header().Set("Content-Type", c.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}

// readParams decodes the body and overlays path and query values. An empty
// body with no path or query values yields nil params.
func readParams(w http.ResponseWriter, r *http.Request, c codec.Codec) (any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	var params any
	if len(body) > 0 {
		if err := c.Unmarshal(body, &params); err != nil {
			return nil, err
		}
	}

	extra := map[string]any{}
	for k, vs := range r.URL.Query() {
		if len(vs) == 1 {
			extra[k] = vs[0]
		} else {
			extra[k] = vs
		}
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		for i, k := range rc.URLParams.Keys {
			if k != "" && k != "*" {
				extra[k] = rc.URLParams.Values[i]
			}
		}
	}
	if len(extra) == 0 {
		return params, nil
	}

	switch p := params.(type) {
	case nil:
		return extra, nil
	case map[string]any:
		for k, v := range extra {
			p[k] = v
		}
		return p, nil
	}
	return nil, errors.New("path and query parameters need an object body")
}

func classify(err error) (int, errorBody) {
	var pe *method.ParamError
	var me *method.MissingHandlerError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest, errorBody{Error: pe.Error(), Code: pe.Code, Param: pe.Name}
	case errors.As(err, &me):
		return http.StatusNotImplemented, errorBody{Error: me.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "timeout"}
	case errors.Is(err, context.Canceled):
		return 499, errorBody{Error: "canceled"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func writeError(w http.ResponseWriter, c codec.Codec, status int, body errorBody) {
	if c == nil {
		c = codec.JSONStrict
	}
	out, err := c.Marshal(body)
	if err != nil {
		http.Error(w, body.Error, status)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(out)
}
