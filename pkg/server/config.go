package server

import (
	"net/http"
	"net/url"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Address is the address to listen on.
	// Default: ":8080".
	Address string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin validates the Origin header of WebSocket upgrades.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// ReadTimeout is how long a connection may stay silent before it is
	// dropped. Pongs count as traffic.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds every frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the interval between pings.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// MaxMessageSize is the maximum inbound message size in bytes.
	// Default: 64KB.
	MaxMessageSize int64

	// MaxQueue is the capacity of the handler's message queue. Messages
	// arriving while it is full are dropped.
	// Default: 256.
	MaxQueue int

	// SendQueue is the per-connection outbound queue. A connection that falls
	// this far behind is closed.
	// Default: 256.
	SendQueue int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ClientScript is the URL of the renderer bundle referenced by the index
	// document.
	// Default: "/static/livetree.js".
	ClientScript string

	// StaticDir, when set, is served under /static/.
	StaticDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    64 * 1024,
		MaxQueue:          256,
		SendQueue:         256,
		ShutdownTimeout:   30 * time.Second,
		ClientScript:      "/static/livetree.js",
	}
}

// withDefaults returns a copy of c with zero fields set to their defaults.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = d.HeartbeatInterval
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.MaxQueue <= 0 {
		out.MaxQueue = d.MaxQueue
	}
	if out.SendQueue <= 0 {
		out.SendQueue = d.SendQueue
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.ClientScript == "" {
		out.ClientScript = d.ClientScript
	}
	return &out
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the server address and returns the config for chaining.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// SameOriginCheck accepts WebSocket upgrades without an Origin header or
// whose Origin host matches the request host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}

// AnyOrigin accepts every WebSocket upgrade. Use it for local development
// with a renderer served from another port.
func AnyOrigin(*http.Request) bool { return true }
