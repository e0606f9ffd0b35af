package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// ReadTimeout is the maximum time to wait for a message from the client.
	// Heartbeats keep a healthy connection below it.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HandshakeTimeout is the maximum time to wait for the client Hello.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// HeartbeatInterval is the time between heartbeat pings.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// ResumeWindow is how long a session survives without a connection.
	// A client reconnecting within the window continues its session.
	// Default: 2 minutes.
	ResumeWindow time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 64KB.
	MaxMessageSize int64

	// HistorySize is the number of op batches kept for replay on resume.
	// Default: 100.
	HistorySize int

	// MaxRendersPerTick bounds the renders of one scheduler tick.
	// 0 means no limit.
	MaxRendersPerTick int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ResumeWindow:      2 * time.Minute,
		MaxMessageSize:    64 * 1024,
		HistorySize:       100,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Config holds configuration for the HTTP/WebSocket server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Root names the component mounted for every page and session.
	Root string

	// Props are passed to the root component.
	Props map[string]any

	// Title is the document title of the page.
	Title string

	// StyleSheets are linked from the page head.
	StyleSheets []string

	// SocketPath is the WebSocket endpoint.
	// Default: "/_villain/ws".
	SocketPath string

	// ClientPath serves the browser client.
	// Default: "/_villain/client.js".
	ClientPath string

	// MetricsPath serves Prometheus metrics. Empty disables the endpoint.
	// Default: "/metrics".
	MetricsPath string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Session is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	Session *SessionConfig

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	MaxSessions int

	// CleanupInterval is the interval of the loop closing expired sessions.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// DevMode disables client caching.
	DevMode bool

	// Logger receives server and session logs. Default: slog.Default().
	Logger *slog.Logger

	// Registry collects the server and scheduler metrics and backs
	// MetricsPath. Default: a fresh registry.
	Registry *prometheus.Registry
}

// DefaultConfig returns a Config with sensible defaults.
// SECURITY: CheckOrigin enforces same-origin by default to prevent CSWSH.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		Root:              "App",
		SocketPath:        "/_villain/ws",
		ClientPath:        "/_villain/client.js",
		MetricsPath:       "/metrics",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		Session:           DefaultSessionConfig(),
		CleanupInterval:   30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.Root == "" {
		out.Root = d.Root
	}
	if out.SocketPath == "" {
		out.SocketPath = d.SocketPath
	}
	if out.ClientPath == "" {
		out.ClientPath = d.ClientPath
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.CleanupInterval == 0 {
		out.CleanupInterval = d.CleanupInterval
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Registry == nil {
		out.Registry = prometheus.NewRegistry()
	}

	sc := out.Session.Clone()
	if sc == nil {
		sc = d.Session
	}
	if sc.ReadTimeout == 0 {
		sc.ReadTimeout = d.Session.ReadTimeout
	}
	if sc.WriteTimeout == 0 {
		sc.WriteTimeout = d.Session.WriteTimeout
	}
	if sc.HandshakeTimeout == 0 {
		sc.HandshakeTimeout = d.Session.HandshakeTimeout
	}
	if sc.HeartbeatInterval == 0 {
		sc.HeartbeatInterval = d.Session.HeartbeatInterval
	}
	if sc.ResumeWindow == 0 {
		sc.ResumeWindow = d.Session.ResumeWindow
	}
	if sc.MaxMessageSize == 0 {
		sc.MaxMessageSize = d.Session.MaxMessageSize
	}
	if sc.HistorySize == 0 {
		sc.HistorySize = d.Session.HistorySize
	}
	out.Session = sc
	return &out
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
// This is the secure default for CheckOrigin.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (e.g., same-origin request or curl)
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}
