package manifest

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-project/pkg/codec"
)

// Route exposes one method over HTTP.
type Route struct {
	Path   string   `toml:"path"`
	Method string   `toml:"method"`
	Call   string   `toml:"call"` // method name in the App registry
	Guard  Guard    `toml:"guard"`
	Policy Policy   `toml:"policy"`
	Codec  string   `toml:"codec"`
	Tags   []string `toml:"tags"`
}

type Guard struct {
	Roles       []string `toml:"roles"`
	Users       []string `toml:"users"`
	RequireAuth bool     `toml:"require_auth"`
}

type Policy struct {
	// TimeoutMS bounds how long the request waits for the call; the call
	// itself keeps running.
	TimeoutMS int `toml:"timeout_ms"`
}

func (p Policy) Timeout() time.Duration { return time.Duration(p.TimeoutMS) * time.Millisecond }

// normalize path/method/codec
func (r *Route) normalize() error {
	if r.Path == "" {
		return errors.New("path is required")
	}
	if !strings.HasPrefix(r.Path, "/") {
		r.Path = "/" + r.Path
	}
	if r.Path != "/" {
		r.Path = path.Clean(r.Path)
	}
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = "POST"
	}
	r.Call = strings.TrimSpace(r.Call)
	r.Codec = strings.ToLower(strings.TrimSpace(r.Codec))
	return nil
}

func (r *Route) validate() error {
	if r.Call == "" {
		return errors.New("call is required")
	}
	if strings.Contains(r.Call, "*") {
		return fmt.Errorf("call %q: wildcard methods cannot be called", r.Call)
	}
	if _, ok := codec.Lookup(r.Codec); !ok {
		return fmt.Errorf("unknown codec %q", r.Codec)
	}
	if r.Policy.TimeoutMS < 0 {
		return errors.New("policy.timeout_ms must be >= 0")
	}
	return nil
}
