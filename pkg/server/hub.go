package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
)

// Conn is one open renderer connection as seen by the hub.
type Conn interface {
	// Send queues payload for writing. It must not block.
	Send(payload []byte) error

	// Close closes the connection. It is safe to call more than once.
	Close() error
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithHubMetrics sets the metrics the hub records to.
func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

type registration struct {
	id    string
	conn  Conn
	reply chan error
}

type outbound struct {
	payload []byte
	target  string
	reply   chan error
}

// Hub owns the set of open connections. Every change to the set and every
// send runs on the hub goroutine, so a connection never sees actions out of
// the order they were sent in.
type Hub struct {
	codec   *protocol.Codec
	logger  *slog.Logger
	metrics *Metrics

	register   chan registration
	unregister chan string
	send       chan outbound
	done       chan struct{}
	stopped    chan struct{}

	closed  atomic.Bool
	count   atomic.Int64
	runOnce sync.Once
	conns   map[string]Conn
}

// NewHub creates a hub. It does not deliver anything until Run.
func NewHub(codec *protocol.Codec, opts ...HubOption) *Hub {
	h := &Hub{
		codec:      codec,
		register:   make(chan registration),
		unregister: make(chan string, 16),
		send:       make(chan outbound, 64),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		conns:      make(map[string]Conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default().With("component", "hub")
	}
	return h
}

// Run runs the hub loop until ctx is done or Close is called. Open
// connections are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	ran := false
	h.runOnce.Do(func() { ran = true })
	if !ran {
		return
	}
	defer close(h.stopped)

	for {
		select {
		case r := <-h.register:
			h.conns[r.id] = r.conn
			h.count.Store(int64(len(h.conns)))
			h.metrics.recordConnect()
			r.reply <- h.deliver(r.conn, r.id, h.welcome(r.id))
			h.logger.Debug("client connected", "client", r.id)

		case id := <-h.unregister:
			h.drop(id)

		case o := <-h.send:
			err := h.dispatch(o)
			if o.reply != nil {
				o.reply <- err
			}

		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.done:
			h.shutdown()
			return
		}
	}
}

// Close stops the hub loop and closes every connection.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	close(h.done)
	ran := false
	h.runOnce.Do(func() { ran = true })
	if ran {
		// Run was never called.
		close(h.stopped)
		return
	}
	<-h.stopped
}

// Open registers conn under a fresh client id and sends it a setClientId
// action.
func (h *Hub) Open(conn Conn) (string, error) {
	id := registry.NewID()
	reply := make(chan error, 1)
	select {
	case h.register <- registration{id: id, conn: conn, reply: reply}:
	case <-h.stopped:
		return "", ErrClosed
	}
	select {
	case err := <-reply:
		return id, err
	case <-h.stopped:
		return "", ErrClosed
	}
}

// Release removes the connection with id. Unknown ids are ignored.
func (h *Hub) Release(id string) {
	select {
	case h.unregister <- id:
	case <-h.stopped:
	}
}

// Send delivers payload to the connection named by target, or to every
// connection when target is empty. It returns ErrUnknownClient when the
// target is not connected.
func (h *Hub) Send(payload []byte, target string) error {
	select {
	case <-h.stopped:
		return ErrClosed
	default:
	}
	o := outbound{payload: payload, target: target}
	if target != "" {
		o.reply = make(chan error, 1)
	}
	select {
	case h.send <- o:
	case <-h.stopped:
		return ErrClosed
	}
	if o.reply == nil {
		return nil
	}
	select {
	case err := <-o.reply:
		return err
	case <-h.stopped:
		return ErrClosed
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	return int(h.count.Load())
}

func (h *Hub) welcome(id string) []byte {
	payload, err := h.codec.Marshal(protocol.NewSetClientID(id))
	if err != nil {
		// A fixed two-field action always encodes.
		panic(err)
	}
	return payload
}

func (h *Hub) dispatch(o outbound) error {
	h.metrics.recordAction(o.target != "", len(o.payload))
	if o.target != "" {
		conn, ok := h.conns[o.target]
		if !ok {
			return ErrUnknownClient
		}
		return h.deliver(conn, o.target, o.payload)
	}
	for id, conn := range h.conns {
		h.deliver(conn, id, o.payload)
	}
	return nil
}

// deliver queues payload on conn, dropping the connection when it cannot
// keep up.
func (h *Hub) deliver(conn Conn, id string, payload []byte) error {
	err := conn.Send(payload)
	if err == nil {
		return nil
	}
	h.logger.Warn("dropping slow client", "client", id, "error", err)
	h.metrics.recordWSError("send")
	h.drop(id)
	return err
}

func (h *Hub) drop(id string) {
	conn, ok := h.conns[id]
	if !ok {
		return
	}
	delete(h.conns, id)
	h.count.Store(int64(len(h.conns)))
	h.metrics.recordDisconnect()
	conn.Close()
	h.logger.Debug("client disconnected", "client", id)
}

func (h *Hub) shutdown() {
	for id := range h.conns {
		h.drop(id)
	}
}
