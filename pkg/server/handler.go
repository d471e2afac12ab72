package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/tree"
	"github.com/livetree-dev/livetree/pkg/variable"
)

const defaultTracerName = "livetree"

// Dispatcher is the outbound path of a page.
type Dispatcher interface {
	// Dispatch stamps a and sends it to every client.
	Dispatch(a protocol.Action)

	// DispatchTo stamps a and sends it to one client.
	DispatchTo(a protocol.Action, clientID string) error
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHandlerMetrics sets the metrics the handler records to.
func WithHandlerMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithQueueSize sets the capacity of the message queue.
func WithQueueSize(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) HandlerOption {
	return func(h *Handler) {
		h.tracerName = name
	}
}

type job struct {
	ctx context.Context
	msg *protocol.Message

	// fn is set for jobs queued through Do.
	fn     func(ctx context.Context) error
	result chan error
}

// Handler applies inbound messages to the page on one worker goroutine.
// Messages are handled in arrival order and never concurrently with each
// other or with jobs queued through Do.
type Handler struct {
	reg *registry.Registry
	out Dispatcher

	logger     *slog.Logger
	metrics    *Metrics
	tracerName string
	tracer     trace.Tracer
	queueSize  int

	queue     chan job
	done      chan struct{}
	closed    atomic.Bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewHandler creates a handler for the entities in reg that reports through
// out. It does not process anything until Start.
func NewHandler(reg *registry.Registry, out Dispatcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		reg:        reg,
		out:        out,
		tracerName: defaultTracerName,
		queueSize:  DefaultConfig().MaxQueue,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default().With("component", "handler")
	}
	h.tracer = otel.Tracer(h.tracerName)
	h.queue = make(chan job, h.queueSize)
	return h
}

// Start launches the worker. Calling it again is a no-op.
func (h *Handler) Start() {
	h.startOnce.Do(func() {
		h.wg.Add(1)
		go h.run()
	})
}

// Close stops the worker. Queued messages are discarded and pending Do
// calls return ErrClosed.
func (h *Handler) Close() {
	if h.closed.Swap(true) {
		return
	}
	close(h.done)
	h.wg.Wait()
}

// Handle queues msg. It never blocks: when the queue is full the message is
// dropped with a warning and ErrQueueFull is returned.
func (h *Handler) Handle(msg *protocol.Message) error {
	if h.closed.Load() {
		return ErrClosed
	}
	select {
	case h.queue <- job{ctx: context.Background(), msg: msg}:
		return nil
	case <-h.done:
		return ErrClosed
	default:
		h.metrics.recordDropped()
		h.logger.Warn("message queue full, message dropped",
			"type", msg.Type,
			"client", msg.ClientID)
		return ErrQueueFull
	}
}

// Do runs fn on the worker and waits for it to return. A panic inside fn is
// returned as a *MessageError.
func (h *Handler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if h.closed.Load() {
		return ErrClosed
	}
	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case h.queue <- j:
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.result:
		return err
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) run() {
	defer h.wg.Done()
	for {
		select {
		case j := <-h.queue:
			h.process(j)
		case <-h.done:
			return
		}
	}
}

func (h *Handler) process(j job) {
	if j.fn != nil {
		j.result <- h.safeExecute("do", "", func() error { return j.fn(j.ctx) })
		return
	}

	msg := j.msg
	ctx, span := h.tracer.Start(j.ctx, "livetree.message."+msg.Type,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("livetree.message_type", msg.Type),
			attribute.String("livetree.client_id", msg.ClientID),
		),
	)
	defer span.End()

	start := time.Now()
	err := h.safeExecute(msg.Type, msg.ClientID, func() error {
		return h.handleMessage(ctx, msg)
	})
	h.metrics.recordMessage(msg.Type, time.Since(start), err)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.report(err.(*MessageError))
}

// safeExecute runs fn and converts an error or a panic into a *MessageError.
func (h *Handler) safeExecute(msgType, clientID string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &MessageError{
				Type:     msgType,
				ClientID: clientID,
				Panic:    r,
				Stack:    debug.Stack(),
			}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &MessageError{Type: msgType, ClientID: clientID, Err: ferr}
	}
	return nil
}

// report logs a failed message and sends its trace to the client that sent
// it.
func (h *Handler) report(me *MessageError) {
	attrs := []any{"type", me.Type, "client", me.ClientID, "error", me}
	if me.Stack != nil {
		attrs = append(attrs, "stack", string(me.Stack))
	}
	h.logger.Error("message failed", attrs...)

	if me.ClientID == "" {
		return
	}
	if err := h.out.DispatchTo(protocol.NewDisplayError(me.Trace()), me.ClientID); err != nil {
		h.logger.Warn("error report not delivered", "client", me.ClientID, "error", err)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *protocol.Message) error {
	switch msg.Type {
	case protocol.MessageCall:
		return h.handleCall(ctx, msg)
	case protocol.MessageUpdateVariable:
		return h.handleUpdateVariable(msg)
	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnknownMessageType, msg.Type)
	}
}

// handleCall invokes a registered function. Its keyword arguments are the
// injected elements, then the injected variable values, then the message
// kwargs, later sources overriding earlier ones.
func (h *Handler) handleCall(ctx context.Context, msg *protocol.Message) error {
	ent, ok := h.reg.Lookup(registry.CategoryFunction, msg.FunctionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, msg.FunctionID)
	}
	fn := ent.(*registry.Function)

	kwargs := make(map[string]any, len(fn.Inject.Elements)+len(fn.Inject.Variables)+len(msg.Kwargs))
	for _, id := range fn.Inject.Elements {
		e, ok := tree.LookupElement(h.reg, id)
		if !ok {
			return fmt.Errorf("%w: %s injected into %s", ErrElementNotFound, id, fn.ID)
		}
		kwargs[id] = e
	}
	for _, id := range fn.Inject.Variables {
		v, ok := h.lookupVariable(id)
		if !ok {
			return fmt.Errorf("%w: %s injected into %s", ErrVariableNotFound, id, fn.ID)
		}
		kwargs[id] = v.Value()
	}
	for k, v := range msg.Kwargs {
		kwargs[k] = v
	}
	return fn.Fn(ctx, kwargs)
}

// handleUpdateVariable stores the new value and broadcasts it so every other
// renderer converges.
func (h *Handler) handleUpdateVariable(msg *protocol.Message) error {
	v, ok := h.lookupVariable(msg.VariableID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrVariableNotFound, msg.VariableID)
	}
	v.Update(msg.Value)
	h.out.Dispatch(protocol.NewUpdateVariable(v.View()))
	return nil
}

func (h *Handler) lookupVariable(id string) (*variable.Variable, bool) {
	ent, ok := h.reg.Lookup(registry.CategoryVariable, id)
	if !ok {
		return nil, false
	}
	return ent.(*variable.Variable), true
}

// errorType classifies err for the error metric.
func errorType(err error) string {
	var me *MessageError
	if errors.As(err, &me) && me.Panic != nil {
		var ce *tree.ContractError
		if errors.As(err, &ce) {
			return "contract"
		}
		return "panic"
	}
	switch {
	case errors.Is(err, ErrFunctionNotFound), errors.Is(err, ErrVariableNotFound), errors.Is(err, ErrElementNotFound):
		return "not_found"
	case errors.Is(err, tree.ErrRemoved):
		return "removed"
	default:
		return "error"
	}
}
