// Package page ties an element tree to the processes that keep renderers in
// sync with it.
//
// A Page owns the registry, the main root, the updater scheduler, the
// message handler, the connection hub and the HTTP server. Every mutation of
// the tree bumps the page version; every dispatched action is stamped with
// the version it was sent at. Encoding and the hand-off to the hub happen
// under the version lock, so clients see actions in version order.
//
//	p := page.New(page.WithTitle("Status"))
//	card, _ := p.New(`Card: [Text: starting]`, nil)
//	p.Schedule(card, updater.Func(poll))
//	p.Serve(ctx)
package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/server"
	"github.com/livetree-dev/livetree/pkg/tree"
	"github.com/livetree-dev/livetree/pkg/updater"
	"github.com/livetree-dev/livetree/pkg/variable"
)

var (
	// ErrClosed is returned by operations on a closed page.
	ErrClosed = errors.New("page: closed")

	// ErrBuiltinKind is returned when registering a kind under a built-in
	// name.
	ErrBuiltinKind = errors.New("page: built-in kind")

	// ErrOffline is returned by Serve on an offline page.
	ErrOffline = errors.New("page: offline")
)

const closeTimeout = 5 * time.Second

// Page is one live document.
type Page struct {
	title   string
	style   map[string]any
	offline bool
	logger  *slog.Logger

	codec     *protocol.Codec
	reg       *registry.Registry
	root      *tree.Element
	scheduler *updater.Scheduler
	metrics   *server.Metrics
	handler   *server.Handler
	hub       *server.Hub
	server    *server.Server

	mu      sync.Mutex
	version uint64
	started bool
	live    bool
	closed  bool
	cancel  context.CancelFunc
}

// New creates a page that is not yet started.
func New(opts ...Option) *Page {
	o := options{title: DefaultTitle}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	style := DefaultStyle()
	if o.width > 0 {
		style["width"] = o.width
	}
	maps.Copy(style, o.style)

	p := &Page{
		title:   o.title,
		style:   style,
		offline: o.offline,
		logger:  o.logger.With("component", "page"),
		codec:   protocol.NewCodec(o.serializers...),
		reg:     registry.New(),
	}

	var metricOpts []server.MetricsOption
	if o.registerer != nil {
		metricOpts = append(metricOpts, server.WithRegistry(o.registerer))
	}
	p.metrics = server.NewMetrics(metricOpts...)

	p.scheduler = updater.New(updater.WithLogger(o.logger.With("component", "updater")))

	handlerOpts := []server.HandlerOption{
		server.WithHandlerLogger(o.logger.With("component", "handler")),
		server.WithHandlerMetrics(p.metrics),
	}
	if o.serverConfig != nil && o.serverConfig.MaxQueue > 0 {
		handlerOpts = append(handlerOpts, server.WithQueueSize(o.serverConfig.MaxQueue))
	}
	if o.tracerName != "" {
		handlerOpts = append(handlerOpts, server.WithTracerName(o.tracerName))
	}
	p.handler = server.NewHandler(p.reg, p, handlerOpts...)
	p.hub = server.NewHub(p.codec,
		server.WithHubLogger(o.logger.With("component", "hub")),
		server.WithHubMetrics(p.metrics))
	p.server = server.New(p, p.handler, p.hub, o.serverConfig,
		server.WithLogger(o.logger.With("component", "server")),
		server.WithMetrics(p.metrics))

	root, err := tree.NewRoot(p, tree.RootID)
	if err != nil {
		// The registry is empty; the main root id cannot collide.
		panic(err)
	}
	p.root = root
	return p
}

// Registry returns the page registry.
func (p *Page) Registry() *registry.Registry { return p.reg }

// Root returns the page's main root.
func (p *Page) Root() *tree.Element { return p.root }

// Codec returns the codec actions are encoded with.
func (p *Page) Codec() *protocol.Codec { return p.codec }

// Title returns the document title.
func (p *Page) Title() string { return p.title }

// Metrics returns the page metrics.
func (p *Page) Metrics() *server.Metrics { return p.metrics }

// Handler returns the HTTP handler of the page server.
func (p *Page) Handler() http.Handler { return p.server.Handler() }

// MessageHandler returns the worker that applies inbound messages.
func (p *Page) MessageHandler() *server.Handler { return p.handler }

// Version returns the current page version.
func (p *Page) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// IncreaseVersion implements tree.Host.
func (p *Page) IncreaseVersion() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version++
}

// Dispatch implements tree.Host. Failures are logged; after Close the action
// is dropped.
func (p *Page) Dispatch(a protocol.Action) {
	if err := p.send(a, ""); err != nil {
		p.logger.Warn("dispatch failed", "type", a.ActionType(), "error", err)
	}
}

// DispatchTo sends a to the client with clientID.
func (p *Page) DispatchTo(a protocol.Action, clientID string) error {
	return p.send(a, clientID)
}

// send counts a against the page version and, once the page is live, hands
// it to the hub. Stamping, encoding and the hand-off share the version lock.
func (p *Page) send(a protocol.Action, target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.version++
	if !p.live {
		return nil
	}
	a.Stamp(p.version)
	payload, err := p.codec.Marshal(a)
	if err != nil {
		return fmt.Errorf("page: %w", err)
	}
	return p.hub.Send(payload, target)
}

// Schedule implements tree.Host.
func (p *Page) Schedule(e *tree.Element, u any) error {
	return p.scheduler.Schedule(e, u)
}

// New parses source and builds it under the main root.
func (p *Page) New(source any, inputs map[string]any) (*tree.Element, error) {
	return p.root.New(source, inputs)
}

// NewRoot creates a detached root owned by the page.
func (p *Page) NewRoot() (*tree.Element, error) {
	return tree.NewRoot(p, "")
}

// NewVariable creates a variable owned by the main root.
func (p *Page) NewVariable(value any, id string) (*variable.Variable, error) {
	return p.root.NewVariable(value, id)
}

// Element returns the element with id.
func (p *Page) Element(id string) (*tree.Element, bool) {
	return tree.LookupElement(p.reg, id)
}

// RegisterKind makes k available to the DSL and NewChild. A live page asks
// its renderers to reload the custom kind script.
func (p *Page) RegisterKind(k *tree.Kind) error {
	if tree.IsBuiltin(k.Name) {
		return fmt.Errorf("%w: %s", ErrBuiltinKind, k.Name)
	}
	if err := p.reg.Register(k); err != nil {
		return fmt.Errorf("page: register kind %s: %w", k.Name, err)
	}
	p.mu.Lock()
	live := p.live
	p.mu.Unlock()
	if live {
		p.Dispatch(protocol.NewRefresh())
	}
	return nil
}

// CustomScript returns the registration script of every custom kind with a
// renderer script, in kind name order.
func (p *Page) CustomScript() string {
	var b strings.Builder
	for _, name := range p.reg.IDs(registry.CategoryKind) {
		k, ok := tree.LookupKind(p.reg, name)
		if !ok || k.Script == "" {
			continue
		}
		quoted, _ := json.Marshal(name)
		fmt.Fprintf(&b, "((register) => {\n%s\n})((fn) => window.livetree.register(%s, fn));\n", k.Script, quoted)
	}
	if b.Len() > 0 {
		b.WriteString("window.livetree.reload();\n")
	}
	return b.String()
}

// Snapshot returns the full page state at the current version.
func (p *Page) Snapshot() protocol.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := protocol.Snapshot{
		Roots:     make(map[string]protocol.ElementView, p.reg.Len(registry.CategoryRoot)),
		Variables: make(map[string]protocol.VariableView, p.reg.Len(registry.CategoryVariable)),
		Version:   p.version,
		Style:     maps.Clone(p.style),
		Title:     p.title,
	}
	p.reg.Each(registry.CategoryRoot, func(ent registry.Entity) bool {
		r := ent.(*tree.Element)
		s.Roots[r.ID()] = r.View()
		return true
	})
	p.reg.Each(registry.CategoryVariable, func(ent registry.Entity) bool {
		v := ent.(*variable.Variable)
		s.Variables[v.ID()] = v.View()
		return true
	})
	return s
}

// Start launches the updaters. A page that is not offline also starts
// delivering actions and accepting messages. Starting twice is a no-op.
func (p *Page) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	if !p.offline {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.cancel = cancel
		go p.hub.Run(runCtx)
		p.handler.Start()
		p.live = true
	}
	p.mu.Unlock()

	p.scheduler.Start()
	p.logger.Info("page started", "title", p.title, "offline", p.offline)
	return nil
}

// Serve starts the page and serves it until ctx is done, then closes it.
func (p *Page) Serve(ctx context.Context) error {
	if p.offline {
		return ErrOffline
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	err := p.server.ListenAndServe(ctx)
	if cerr := p.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close stops the updaters, the handler and every connection. Dispatches
// after Close fail with ErrClosed.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.live = false
	cancel := p.cancel
	p.mu.Unlock()

	ctx, cancelWait := context.WithTimeout(context.Background(), closeTimeout)
	defer cancelWait()
	err := p.scheduler.Close(ctx)

	p.handler.Close()
	p.hub.Close()
	if cancel != nil {
		cancel()
	}
	p.logger.Info("page closed", "version", p.Version())
	if err != nil {
		return fmt.Errorf("page: close updaters: %w", err)
	}
	return nil
}
