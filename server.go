package studiosync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"pkt.systems/pslog"
	"pkt.systems/studiosync/core"
	"pkt.systems/studiosync/httpapi"
	"pkt.systems/studiosync/internal/authtoken"
	"pkt.systems/studiosync/internal/catalog"
	"pkt.systems/studiosync/internal/eventbus"
	"pkt.systems/studiosync/internal/permission"
	"pkt.systems/studiosync/internal/persist"
	"pkt.systems/studiosync/internal/realtime"
	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/internal/transport"
	"pkt.systems/studiosync/internal/typings"
	"pkt.systems/studiosync/schema"
)

// Server composes the HTTP API, the realtime push channel and the catalog refresher.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service        schema.ServiceConfig
	HTTP           httpapi.Config
	Persist        PersistConfig
	Realtime       RealtimeConfig
	Catalog        CatalogConfig
	Auth           AuthConfig
	PermissionMemo int
	Release        string
}

// PersistConfig selects the tab set persistence backend.
type PersistConfig struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
}

// RealtimeConfig configures the push channel client.
type RealtimeConfig struct {
	URL          string
	Token        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	ReadTimeout  time.Duration
}

// CatalogConfig configures the role/type catalog client.
type CatalogConfig struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	RefreshInterval time.Duration
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ServerDeps captures optional dependencies.
type ServerDeps struct {
	Logger    pslog.Logger
	EventSink core.EventSink
	Registry  *prometheus.Registry
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP     bool
	enableRealtime bool
	enableCatalog  bool
}

// WithHTTP enables the HTTP API server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithRealtime enables the push channel client.
func WithRealtime() ServerOption {
	return func(o *serverOptions) { o.enableRealtime = true }
}

// WithCatalog enables the catalog refresher.
func WithCatalog() ServerOption {
	return func(o *serverOptions) { o.enableCatalog = true }
}

// New constructs a composable studiosync server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableRealtime {
		return nil, errors.New("no services enabled")
	}
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	bus := eventbus.New(logger)
	var hub *httpapi.Hub
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HTTP.HubHistory, logger)
	}

	observers := []store.Observer{bus}
	sinks := []core.EventSink{bus}
	if hub != nil {
		observers = append(observers, hub)
		sinks = append(sinks, hub)
	}
	if deps.EventSink != nil {
		sinks = append(sinks, deps.EventSink)
	}
	stores := store.NewSet(storeFanout{observers: observers}, logger)

	perms, err := permission.New(stores, cfg.PermissionMemo)
	if err != nil {
		return nil, err
	}

	sqlitePath := cfg.Persist.SQLitePath
	if strings.TrimSpace(sqlitePath) == "" {
		sqlitePath = filepath.Join(cfg.Service.StateDir, "tabs.db")
	}
	backend, err := persist.Open(persist.Options{
		Kind:        cfg.Persist.Backend,
		Dir:         filepath.Join(cfg.Service.StateDir, "tabs"),
		SQLitePath:  sqlitePath,
		PostgresDSN: cfg.Persist.PostgresDSN,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	service, err := core.NewService(cfg.Service, core.ServiceDeps{
		Persist:     backend,
		EventSink:   eventFanout{sinks: sinks},
		Permissions: perms,
		Logger:      logger,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	var editor typings.Registry
	if hub != nil {
		editor = hub
	}
	dispatcher, err := realtime.New(realtime.Config{
		Stores:      stores,
		Typings:     typings.NewInjector(stores.Typings, editor),
		Tabs:        service,
		Permissions: perms,
		Metrics:     realtime.NewMetrics(registry),
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	srv := &compositeServer{
		cfg:        cfg,
		options:    options,
		stores:     stores,
		service:    service,
		dispatcher: dispatcher,
		backend:    backend,
	}

	if options.enableRealtime {
		client, err := transport.New(transport.Config{
			URL:          cfg.Realtime.URL,
			Token:        cfg.Realtime.Token,
			ReconnectMin: cfg.Realtime.ReconnectMin,
			ReconnectMax: cfg.Realtime.ReconnectMax,
			ReadTimeout:  cfg.Realtime.ReadTimeout,
		}, func(ctx context.Context, frame []byte) {
			dispatcher.DispatchFrame(ctx, frame)
		})
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		srv.transport = client
	}

	if options.enableCatalog {
		client, err := catalog.New(catalog.Config{
			BaseURL: cfg.Catalog.BaseURL,
			Token:   cfg.Catalog.Token,
			Timeout: cfg.Catalog.Timeout,
		})
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		srv.catalog = client
	}

	if options.enableHTTP {
		httpDeps := httpapi.Deps{
			Service:     service,
			Stores:      stores,
			Hub:         hub,
			Permissions: perms,
			Dispatcher:  dispatcher,
			Bus:         bus,
			Gatherer:    registry,
			Registerer:  registry,
			Release:     cfg.Release,
		}
		if strings.TrimSpace(cfg.Auth.JWTSecret) != "" {
			validator, err := authtoken.NewValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				_ = backend.Close()
				return nil, err
			}
			httpDeps.Tokens = validator
		}
		httpSrv, err := httpapi.NewServer(cfg.HTTP, httpDeps)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		srv.httpSrv = httpSrv
	}
	return srv, nil
}

type compositeServer struct {
	cfg        ServerConfig
	options    serverOptions
	stores     *store.Set
	service    core.Service
	dispatcher *realtime.Dispatcher
	backend    persist.Backend
	httpSrv    *httpapi.Server
	transport  *transport.Client
	catalog    *catalog.Client
	logger     pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	wg      sync.WaitGroup
	started bool
	closed  bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 3)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.httpSrv != nil,
		"realtime", s.transport != nil,
		"catalog", s.catalog != nil,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
		"persist", s.cfg.Persist.Backend,
		"release", s.cfg.Release,
	)
	if s.httpSrv != nil {
		s.goRun("http server", func(ctx context.Context) error {
			return httpapi.ListenAndServe(ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler())
		})
	}
	if s.transport != nil {
		s.goRun("transport", s.transport.Run)
	}
	if s.catalog != nil {
		s.goRun("catalog refresh", func(ctx context.Context) error {
			s.catalog.Refresh(ctx, s.stores.Utils, s.cfg.Catalog.RefreshInterval)
			return nil
		})
	}
	return nil
}

func (s *compositeServer) goRun(name string, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := run(s.ctx); err != nil {
			s.logger.Error(name+" failed", "err", err)
			s.errCh <- fmt.Errorf("%s: %w", name, err)
		}
	}()
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	closed := s.closed
	s.closed = true
	log := s.logger
	s.mu.Unlock()
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	if closed {
		return nil
	}
	if !started {
		return s.backend.Close()
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			log.Warn("server persist close failed", "err", err)
			return err
		}
	}
	log.Info("server stopped")
	return nil
}
