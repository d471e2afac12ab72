package updater

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/livetree-dev/livetree/pkg/tree"
)

var (
	// ErrCancelled is the exit error of a unit stopped by Close.
	ErrCancelled = errors.New("updater: cancelled")

	// ErrClosed is returned by Schedule after Close.
	ErrClosed = errors.New("updater: scheduler closed")

	// ErrUnsupported is returned for a value that is not an updater.
	ErrUnsupported = errors.New("updater: unsupported updater")
)

// Func runs once on its own goroutine.
type Func func(e *tree.Element)

// Steps runs to completion on its own goroutine; yielded values are ignored.
type Steps func(e *tree.Element) iter.Seq[any]

// Task runs to completion on the cooperative scheduler.
type Task func(ctx context.Context, e *tree.Element) error

// TaskSteps is pulled one item at a time by the cooperative scheduler until
// it is exhausted or yields an error.
type TaskSteps func(ctx context.Context, e *tree.Element) iter.Seq2[any, error]

// PanicError is the exit error of a unit that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error returns the panic value.
func (e *PanicError) Error() string {
	return fmt.Sprintf("updater: panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used to report failing units.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithExitHook sets a function called once per unit when it ends, with nil
// on exhaustion, ErrCancelled on cancellation or the failure otherwise.
func WithExitHook(fn func(e *tree.Element, err error)) Option {
	return func(s *Scheduler) {
		s.onExit = fn
	}
}

type unit struct {
	element *tree.Element
	fn      Func
	steps   Steps
	task    Task
	tsteps  TaskSteps
}

func (u unit) cooperative() bool {
	return u.task != nil || u.tsteps != nil
}

// Scheduler launches updaters. Units scheduled before Start are queued.
type Scheduler struct {
	logger *slog.Logger
	onExit func(e *tree.Element, err error)

	mu      sync.Mutex
	started bool
	closed  bool
	pending []unit

	ctx    context.Context
	cancel context.CancelFunc
	coop   chan unit
	wg     sync.WaitGroup
}

// New creates a scheduler that is not yet started.
func New(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		coop:   make(chan unit, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "updater")
	}
	return s
}

// Schedule registers updater for e. Before Start it is queued; afterwards it
// is launched immediately.
func (s *Scheduler) Schedule(e *tree.Element, updater any) error {
	u, err := toUnit(e, updater)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.started {
		s.pending = append(s.pending, u)
		return nil
	}
	s.launchLocked(u)
	return nil
}

// Start launches every queued unit and the cooperative scheduler. Calling it
// again is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	// Queue before the loop runs so units scheduled together start together.
	for _, u := range s.pending {
		s.launchLocked(u)
	}
	s.pending = nil

	s.wg.Add(1)
	go s.loop()
}

// Started reports whether Start was called.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Close cancels every running unit and waits for goroutine units that
// observe the cancellation. Queued units never run. Units blocked inside user
// code are not interrupted; Close returns when ctx is done in that case.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.cancel()
	for _, u := range pending {
		s.exit(u.element, ErrCancelled)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) launchLocked(u unit) {
	if u.cooperative() {
		select {
		case s.coop <- u:
		default:
			// Burst larger than the buffer: hand off outside the lock.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				select {
				case s.coop <- u:
				case <-s.ctx.Done():
					s.exit(u.element, ErrCancelled)
				}
			}()
		}
		return
	}
	s.wg.Add(1)
	go s.runGoroutine(u)
}

func (s *Scheduler) runGoroutine(u unit) {
	defer s.wg.Done()
	err := s.protect(func() error {
		if u.fn != nil {
			u.fn(u.element)
			return nil
		}
		for range u.steps(u.element) {
			if s.ctx.Err() != nil {
				return ErrCancelled
			}
		}
		return nil
	})
	s.exit(u.element, err)
}

// protect runs fn and converts a panic into a PanicError.
func (s *Scheduler) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func (s *Scheduler) exit(e *tree.Element, err error) {
	if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		err = ErrCancelled
	}
	switch {
	case err == nil, errors.Is(err, ErrCancelled):
	case errors.Is(err, tree.ErrRemoved):
		s.logger.Debug("updater stopped on removed element", "element", e.ID())
	default:
		attrs := []any{"element", e.ID(), "error", err}
		var pe *PanicError
		if errors.As(err, &pe) {
			attrs = append(attrs, "stack", string(pe.Stack))
		}
		s.logger.Error("updater failed", attrs...)
	}
	if s.onExit != nil {
		s.onExit(e, err)
	}
}

func toUnit(e *tree.Element, updater any) (unit, error) {
	u := unit{element: e}
	switch fn := updater.(type) {
	case Func:
		u.fn = fn
	case func(*tree.Element):
		u.fn = fn
	case Steps:
		u.steps = fn
	case func(*tree.Element) iter.Seq[any]:
		u.steps = fn
	case Task:
		u.task = fn
	case func(context.Context, *tree.Element) error:
		u.task = fn
	case TaskSteps:
		u.tsteps = fn
	case func(context.Context, *tree.Element) iter.Seq2[any, error]:
		u.tsteps = fn
	default:
		return unit{}, fmt.Errorf("%w: %T", ErrUnsupported, updater)
	}
	if e == nil {
		return unit{}, fmt.Errorf("%w: nil element", ErrUnsupported)
	}
	return u, nil
}
