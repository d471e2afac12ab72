package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livetree-dev/livetree/pkg/export"
	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/tree"
)

// Page is the state a server exposes.
type Page interface {
	// Registry returns the page registry.
	Registry() *registry.Registry

	// Root returns the page's main root.
	Root() *tree.Element

	// NewRoot creates a detached root owned by the page.
	NewRoot() (*tree.Element, error)

	// Snapshot returns the full page state.
	Snapshot() protocol.Snapshot

	// Codec returns the codec actions and snapshots are encoded with.
	Codec() *protocol.Codec

	// Title returns the document title.
	Title() string

	// CustomScript returns the combined registration script of custom kinds.
	CustomScript() string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics served on /metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server is the HTTP surface of a page.
type Server struct {
	config  *Config
	page    Page
	handler *Handler
	hub     *Hub
	metrics *Metrics
	logger  *slog.Logger

	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New creates a server for page. Messages go to handler and connections are
// registered with hub. A nil config uses DefaultConfig.
func New(page Page, handler *Handler, hub *Hub, config *Config, opts ...Option) *Server {
	config = config.withDefaults()
	s := &Server{
		config:  config,
		page:    page,
		handler: handler,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "server")
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.serveIndex)
	r.Get("/initial-state", s.serveInitialState)
	r.Get("/custom-elements.js", s.serveCustomScript)
	r.Get("/ws", s.HandleWebSocket)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	if s.config.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDir))))
	}
	r.Route("/api", s.apiRoutes)
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Config returns the server configuration with defaults applied.
func (s *Server) Config() *Config {
	return s.config
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	doc, err := export.Render(export.Document{
		Title:        s.page.Title(),
		ClientScript: s.config.ClientScript,
		CustomURL:    "/custom-elements.js",
	})
	if err != nil {
		s.logger.Error("index render failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(doc)
}

func (s *Server) serveInitialState(w http.ResponseWriter, r *http.Request) {
	snapshot := s.page.Snapshot()
	s.writeJSON(w, http.StatusOK, &snapshot)
}

func (s *Server) serveCustomScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(s.page.CustomScript()))
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		s.metrics.recordWSError("upgrade")
		return
	}

	c := newWSConn(conn, s.config, s.logger)
	id, err := s.hub.Open(c)
	if err != nil {
		s.logger.Warn("connection rejected", "error", err)
		conn.Close()
		return
	}
	defer s.hub.Release(id)
	go c.writeLoop(id, s.metrics)

	c.readLoop(id, func(msg *protocol.Message) {
		if err := s.handler.Handle(msg); err != nil && !errors.Is(err, ErrQueueFull) {
			s.logger.Warn("message not queued", "client", id, "error", err)
		}
	}, s.metrics)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler: s.router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	s.logger.Info("server listening", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for active ones to finish.
// WebSocket connections are closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := s.page.Codec().Marshal(v)
	if err != nil {
		s.logger.Error("response encode failed", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
