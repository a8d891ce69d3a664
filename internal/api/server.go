// Package api provides the HTTP controller of ipscannr. It exposes the scan
// session over REST, streams run events over a WebSocket and serves
// Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihandlers "github.com/anstrom/ipscannr/internal/api/handlers"
	"github.com/anstrom/ipscannr/internal/api/middleware"
	"github.com/anstrom/ipscannr/internal/cache"
	"github.com/anstrom/ipscannr/internal/config"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/metrics"
	"github.com/anstrom/ipscannr/internal/netif"
	"github.com/anstrom/ipscannr/internal/session"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	maxHeaderBytes         = 1 << 20
)

// Deps are the components the server exposes.
type Deps struct {
	Session *session.Session
	// Cache may be nil when caching is disabled.
	Cache *cache.Store
	// Metrics may be nil; /metrics is then not served.
	Metrics    *metrics.PrometheusMetrics
	Interfaces func() ([]netif.Adapter, error)
	Logger     *logging.Logger
	Version    string
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	hub        *apihandlers.Hub
	config     *config.Config
	logger     *logging.Logger

	// ctx bounds runs started over HTTP and is canceled by Stop.
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Session == nil {
		return nil, fmt.Errorf("api server requires a session")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("api")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.hub = apihandlers.NewHub(logger, deps.Session.Snapshot, s.checkOrigin())

	s.setupRoutes(deps)
	s.setupMiddleware(deps)

	s.httpServer = &http.Server{
		Addr:           cfg.GetAPIAddress(),
		Handler:        s.handler,
		ReadTimeout:    cfg.API.ReadTimeout,
		WriteTimeout:   cfg.API.WriteTimeout,
		IdleTimeout:    cfg.API.IdleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}
	return s, nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(deps Deps) {
	var cacheReader apihandlers.CacheReader
	if deps.Cache != nil {
		cacheReader = deps.Cache
	}

	scanH := apihandlers.NewScanHandler(s.ctx, deps.Session, s.hub, s.logger)
	hostH := apihandlers.NewHostHandler(deps.Session, s.logger)
	cacheH := apihandlers.NewCacheHandler(cacheReader, deps.Session, s.logger)
	ifaceH := apihandlers.NewInterfacesHandler(deps.Interfaces, s.logger)
	healthH := apihandlers.NewHealthHandler(deps.Version, deps.Session, s.hub)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(apihandlers.MethodNotAllowed)
	api.NotFoundHandler = http.HandlerFunc(apihandlers.NotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(apihandlers.MethodNotAllowed)
	s.router.NotFoundHandler = http.HandlerFunc(apihandlers.NotFound)

	api.HandleFunc("/health", healthH.Health).Methods(http.MethodGet)
	api.HandleFunc("/version", healthH.Version).Methods(http.MethodGet)

	api.HandleFunc("/scan", scanH.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan", scanH.StartScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/pause", scanH.PauseScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/resume", scanH.ResumeScan).Methods(http.MethodPost)

	api.HandleFunc("/hosts", hostH.ListHosts).Methods(http.MethodGet)
	api.HandleFunc("/hosts/selected/ports", hostH.ScanSelectedPorts).Methods(http.MethodPost)
	api.HandleFunc("/hosts/{ip}", hostH.GetHost).Methods(http.MethodGet)
	api.HandleFunc("/hosts/{ip}/select", hostH.SelectHost).Methods(http.MethodPost)
	api.HandleFunc("/hosts/{ip}/ports", hostH.ScanPorts).Methods(http.MethodPost)

	api.HandleFunc("/cache", cacheH.GetCache).Methods(http.MethodGet)
	api.HandleFunc("/cache/load", cacheH.LoadCache).Methods(http.MethodPost)

	api.HandleFunc("/interfaces", ifaceH.ListInterfaces).Methods(http.MethodGet)

	api.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)

	if s.config.Metrics.Enabled && deps.Metrics != nil {
		s.router.Handle(s.config.Metrics.Path, promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{
			ErrorLog: promErrorLogger{s.logger},
		})).Methods(http.MethodGet)
	}
}

// setupMiddleware configures middleware for the API server.
func (s *Server) setupMiddleware(deps Deps) {
	var recorder metrics.Recorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	s.router.Use(
		middleware.RequestID(),
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger),
		middleware.Metrics(recorder),
		middleware.SecurityHeaders(),
		middleware.ContentType(),
	)

	s.handler = s.router
	if s.config.API.EnableCORS {
		// Wrapping the router rather than using it as route middleware lets
		// preflight requests through routes restricted to GET or POST.
		s.handler = handlers.CORS(
			handlers.AllowedOrigins(s.config.API.CORSOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.ExposedHeaders([]string{"X-Request-ID"}),
		)(s.router)
	}
}

// checkOrigin returns the WebSocket origin policy. Without CORS only
// same-origin upgrades are accepted.
func (s *Server) checkOrigin() func(*http.Request) bool {
	if !s.config.API.EnableCORS {
		return nil
	}
	origins := s.config.API.CORSOrigins
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}

// Start listens and serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled or serving fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting API server",
		"address", ln.Addr().String(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Stop gracefully stops the API server, closes WebSocket clients and cancels
// runs started over HTTP.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping API server")

		timeout := s.config.API.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.cancel()
		s.hub.Shutdown()
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("API server shutdown error", "error", shutdownErr)
			err = fmt.Errorf("server shutdown failed: %w", shutdownErr)
			return
		}
		s.logger.Info("API server stopped successfully")
	})
	return err
}

// Handler returns the root handler, including CORS when enabled.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the WebSocket hub. It doubles as the event sink of scheduled
// rescans.
func (s *Server) Hub() *apihandlers.Hub {
	return s.hub
}

// GetAddress returns the configured listen address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// promErrorLogger adapts the logger to promhttp's error log.
type promErrorLogger struct {
	l *logging.Logger
}

func (p promErrorLogger) Println(v ...any) {
	p.l.Error("Metrics exposition failed", "error", fmt.Sprint(v...))
}
