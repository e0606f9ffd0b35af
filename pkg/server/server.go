package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/villain/pkg/compiler"
	villainmw "github.com/vango-dev/villain/pkg/middleware"
	"github.com/vango-dev/villain/pkg/protocol"
	"github.com/vango-dev/villain/pkg/render"
	"github.com/vango-dev/villain/pkg/scheduler"
	"github.com/vango-dev/villain/pkg/vdom"
)

// Server serves a root component: the page renders it to HTML, and every
// WebSocket connection gets a session streaming its op batches.
type Server struct {
	reg      *compiler.Registry
	config   *Config
	sessions *SessionManager
	upgrader websocket.Upgrader
	router   chi.Router
	renderer *render.Renderer

	metrics      *Metrics
	schedMetrics *scheduler.Metrics

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a server mounting config.Root from reg. Definitions are
// looked up per page and per session, so recompiling a component into reg
// affects the sessions created afterwards.
func New(reg *compiler.Registry, config *Config) *Server {
	config = config.withDefaults()
	logger := config.Logger.With("component", "server")

	metrics := NewMetrics(config.Registry)
	schedMetrics := scheduler.NewMetrics(scheduler.WithRegistry(config.Registry))

	subprotocols := make([]string, len(protocol.Codecs))
	for i, c := range protocol.Codecs {
		subprotocols[i] = c.Name()
	}

	s := &Server{
		reg:    reg,
		config: config,
		sessions: NewSessionManager(reg, config.Session, config.MaxSessions,
			config.CleanupInterval, config.Logger, metrics, schedMetrics),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
			Subprotocols:    subprotocols,
		},
		renderer:     render.NewRenderer(render.RendererConfig{}),
		metrics:      metrics,
		schedMetrics: schedMetrics,
		logger:       logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(villainmw.OpenTelemetry(villainmw.WithRequestFilter(func(r *http.Request) bool {
		return r.URL.Path != s.config.MetricsPath
	})))
	r.Use(villainmw.Prometheus(villainmw.WithRegistry(s.config.Registry)))
	r.Get(s.config.SocketPath, s.handleSocket)
	r.Get(s.config.ClientPath, s.serveClient)
	r.Head(s.config.ClientPath, s.serveClient)
	if s.config.MetricsPath != "" {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/", s.servePage)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the effective configuration.
func (s *Server) Config() *Config {
	return s.config
}

func (s *Server) root() (*compiler.Definition, error) {
	return s.reg.Lookup(s.config.Root)
}

// servePage renders the root component with its initial state. The page
// is a preview: the session opened by the client mounts afresh.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	def, err := s.root()
	if err != nil {
		s.logger.Error("root component unavailable", "root", s.config.Root, "error", err)
		http.Error(w, "root component unavailable", http.StatusInternalServerError)
		return
	}

	sched := scheduler.New(s.reg, scheduler.SinkFunc(func([]vdom.Op) error { return nil }),
		scheduler.WithLogger(s.logger),
		scheduler.WithMetrics(s.schedMetrics),
		scheduler.WithMaxRendersPerTick(s.config.Session.MaxRendersPerTick),
	)
	if _, err := sched.Mount(r.Context(), def, s.config.Props); err != nil {
		s.logger.Error("page render failed", "root", def.Name, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	defer func() { _ = sched.Unmount() }()

	var buf bytes.Buffer
	err = s.renderer.RenderPage(&buf, render.PageData{
		Body:         sched.Snapshot(),
		Title:        s.config.Title,
		StyleSheets:  s.config.StyleSheets,
		ClientScript: s.config.ClientPath,
		SocketPath:   s.config.SocketPath,
	})
	if err != nil {
		s.logger.Error("page write failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if s.config.DevMode {
		w.Header().Set("Cache-Control", "no-store")
	}
	_, _ = w.Write(buf.Bytes())
}

// handleSocket upgrades the connection, performs the handshake and runs
// the read loop of the session until the connection ends.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.logger.Debug("upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.config.Session.MaxMessageSize)

	codec, ok := protocol.CodecFor(conn.Subprotocol())
	if !ok {
		codec = protocol.Binary
	}

	hello, err := s.readHello(conn)
	if err != nil {
		s.logger.Warn("handshake failed", "error", err)
		s.writeFrame(conn, codec, protocol.NewFatalError(protocol.ErrInvalidFrame, err.Error()))
		return
	}
	if !hello.Version.Compatible() {
		s.logger.Warn("protocol version mismatch", "client", hello.Version, "server", protocol.CurrentVersion)
		s.writeFrame(conn, codec, &protocol.Welcome{Status: protocol.HandshakeVersionMismatch})
		return
	}

	sess, err := s.connect(r.Context(), conn, codec, hello)
	if err != nil {
		return
	}

	s.metrics.connections.Inc()
	defer s.metrics.connections.Dec()

	stop := make(chan struct{})
	go sess.heartbeat(conn, codec, stop)
	err = sess.readLoop(conn, codec)
	close(stop)
	sess.detach(conn)

	if errors.Is(err, ErrClientClosed) {
		s.sessions.Close(sess.ID)
	}
}

// connect resumes the session named by hello or creates a new one, and
// attaches conn to it. Handshake failures are reported to the client.
func (s *Server) connect(ctx context.Context, conn *websocket.Conn, codec protocol.Codec, hello *protocol.Hello) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Session.HandshakeTimeout)
	defer cancel()

	if hello.Session != "" {
		if sess := s.sessions.Get(hello.Session); sess != nil {
			if err := sess.attach(ctx, conn, codec, true, hello.LastSeq); err != nil {
				s.logger.Warn("resume failed", "session_id", sess.ID, "error", err)
				return nil, err
			}
			return sess, nil
		}
		s.metrics.resumes.WithLabelValues("expired").Inc()
		s.logger.Info("unknown session, starting over", "session_id", hello.Session)
	}

	def, err := s.root()
	if err != nil {
		s.logger.Error("root component unavailable", "root", s.config.Root, "error", err)
		s.writeFrame(conn, codec, &protocol.Welcome{Status: protocol.HandshakeInternalError})
		return nil, err
	}
	sess, err := s.sessions.Create(def.Name)
	if err != nil {
		s.writeFrame(conn, codec, &protocol.Welcome{Status: protocol.HandshakeServerBusy})
		return nil, err
	}
	if err := sess.attach(ctx, conn, codec, false, 0); err != nil {
		s.logger.Warn("attach failed", "session_id", sess.ID, "error", err)
		s.sessions.Close(sess.ID)
		return nil, err
	}
	if err := sess.mount(ctx, def, s.config.Props); err != nil {
		s.logger.Error("mount failed", "session_id", sess.ID, "root", def.Name, "error", err)
		s.writeFrame(conn, codec, protocol.NewFatalError(protocol.ErrRenderFailed, err.Error()))
		s.sessions.Close(sess.ID)
		return nil, err
	}
	return sess, nil
}

// readHello reads the first frame, which must be a Hello.
func (s *Server) readHello(conn *websocket.Conn) (*protocol.Hello, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.config.Session.HandshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		return nil, err
	}
	if frame.Type != protocol.FrameHello {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidHandshake, frame.Type)
	}
	m, err := protocol.Decode(frame)
	if err != nil {
		return nil, err
	}
	return m.(*protocol.Hello), nil
}

// writeFrame writes a handshake reply on a connection without a session.
func (s *Server) writeFrame(conn *websocket.Conn, codec protocol.Codec, m protocol.Message) {
	f, err := protocol.Encode(codec, m)
	if err != nil {
		s.logger.Error("encode failed", "type", m.FrameType(), "error", err)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.Session.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		s.logger.Debug("handshake reply failed", "error", err)
		return
	}
	s.metrics.framesSent.WithLabelValues(f.Type.String()).Inc()
}

// ListenAndServe serves on config.Address until ctx is done, then shuts
// down gracefully.
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
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.sessions.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	// Close all sessions first
	s.sessions.Shutdown()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
