package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-project/pkg/bundlefx"
	"github.com/joeydtaylor/steeze-project/pkg/config"
	"github.com/joeydtaylor/steeze-project/pkg/core"
	"github.com/joeydtaylor/steeze-project/pkg/gateway"
	"github.com/joeydtaylor/steeze-project/pkg/manifest"
	"github.com/joeydtaylor/steeze-project/pkg/method"
	"github.com/joeydtaylor/steeze-project/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-project/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-project/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ---------- Options ----------

type Config struct {
	Service  string // env prefix for config overrides and log tags
	Config   string // optional app config file (toml, yaml or json)
	Manifest string // route manifest
	Tasks    string // optional unit file or directory queued before init
	Listen   string
	TLSCert  string
	TLSKey   string
	Watch    bool // reload Config on change
}

type Option func(*Config)

func WithService(s string) Option     { return func(c *Config) { c.Service = s } }
func WithConfigFile(p string) Option  { return func(c *Config) { c.Config = p } }
func WithManifest(p string) Option    { return func(c *Config) { c.Manifest = p } }
func WithTasks(p string) Option       { return func(c *Config) { c.Tasks = p } }
func WithListen(addr string) Option   { return func(c *Config) { c.Listen = addr } }
func WithWatch(on bool) Option        { return func(c *Config) { c.Watch = on } }
func WithTLS(cert, key string) Option { return func(c *Config) { c.TLSCert, c.TLSKey = cert, key } }

// DefaultConfig reads the APP_* and SERVER_* environment.
func DefaultConfig() Config {
	return Config{
		Service:  envOr("APP_SERVICE", "app"),
		Config:   os.Getenv("APP_CONFIG"),
		Manifest: envOr("APP_MANIFEST", "manifest.toml"),
		Tasks:    os.Getenv("APP_TASKS"),
		Listen:   envOr("SERVER_LISTEN_ADDRESS", ":4000"),
		TLSCert:  os.Getenv("SSL_SERVER_CERTIFICATE"),
		TLSKey:   os.Getenv("SSL_SERVER_KEY"),
	}
}

func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

// Module returns a complete Fx option set; add app-specific fx.Invoke(...)
// alongside to extend the App before it starts.
func Module(opts ...Option) fx.Option {
	cfg := NewConfig(opts...)
	return fx.Options(
		fx.Supply(cfg),
		bundlefx.Module,
		fx.Provide(httpx.NewChi),
		fx.Provide(NewApp),
		fx.Provide(fx.Annotate(provideRouter, fx.ResultTags(`name:"app"`))),
		fx.Provide(NewServer),
		fx.Invoke(registerHooks),
	)
}

// ---------- App ----------

// NewApp builds the App: config file loaded, builtin methods registered and
// task units queued. It is not inited.
func NewApp(cfg Config, zl *zap.Logger, obs method.Observer) (*core.App, error) {
	app := core.New(
		core.WithLogger(zl.With(zap.String("service", cfg.Service))),
		core.WithConfigOptions(config.WithEnvPrefix(strings.ToUpper(cfg.Service))),
		core.WithMethodOptions(method.WithObserver(obs)),
	)
	if cfg.Config != "" {
		if err := app.Config.Load(cfg.Config); err != nil {
			return nil, err
		}
	}
	if err := RegisterBuiltins(app); err != nil {
		return nil, err
	}
	if cfg.Tasks != "" {
		if err := app.Tasks().Load(cfg.Tasks); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// ---------- Router ----------

type routerDeps struct {
	fx.In

	Cfg     Config
	App     *core.App
	Auth    *auth.Middleware
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
	Log     *zap.Logger
}

func provideRouter(d routerDeps) (http.Handler, error) {
	man, err := manifest.Load(d.Cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("manifest load failed (%s): %w", d.Cfg.Manifest, err)
	}
	return gateway.BuildRouter(man, gateway.BuildDeps{
		Methods: d.App,
		Auth:    d.Auth,
		LogMW:   d.LogMW,
		Metrics: d.Metrics,
		Router:  d.Router,
		Logger:  d.Log,
	}), nil
}

// ---------- Server ----------

// Server is the HTTP listener the lifecycle starts once the App is inited.
type Server struct {
	cfg Config
	srv *http.Server
	ln  net.Listener
}

type serverDeps struct {
	fx.In
	Cfg     Config
	Handler http.Handler `name:"app"`
}

func NewServer(d serverDeps) *Server {
	return &Server{
		cfg: d.Cfg,
		srv: &http.Server{
			Addr:         d.Cfg.Listen,
			Handler:      d.Handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
		},
	}
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

func (s *Server) useTLS() bool { return fileExists(s.cfg.TLSCert) && fileExists(s.cfg.TLSKey) }

func (s *Server) start(log *zap.Logger) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	if s.useTLS() {
		log.Info("server starting (TLS)", zap.String("addr", s.Addr()), zap.String("cert", s.cfg.TLSCert))
		go func() {
			if err := s.srv.ServeTLS(ln, s.cfg.TLSCert, s.cfg.TLSKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server failed", zap.Error(err))
			}
		}()
		return nil
	}
	log.Info("server starting (PLAINTEXT)", zap.String("addr", s.Addr()))
	s.srv.TLSConfig = nil
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
		}
	}()
	return nil
}

// ---------- Lifecycle ----------

type hookDeps struct {
	fx.In
	Cfg    Config
	App    *core.App
	Server *Server
	Logger *zap.Logger
}

func registerHooks(lc fx.Lifecycle, d hookDeps) {
	watchCtx, stopWatch := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			fut, err := d.App.Init(ctx, nil)
			if err != nil {
				return err
			}
			if _, err := fut.Await(ctx); err != nil {
				return fmt.Errorf("app init: %w", err)
			}
			if d.Cfg.Watch && d.Cfg.Config != "" {
				if err := d.App.WatchConfig(watchCtx, d.Cfg.Config); err != nil {
					return err
				}
			}
			return d.Server.start(d.Logger)
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", d.Cfg.Service))
			stopWatch()
			return d.Server.srv.Shutdown(ctx)
		},
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
