package updater

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/tree"
)

type nopHost struct {
	reg *registry.Registry
}

func (h nopHost) Registry() *registry.Registry { return h.reg }

func (nopHost) IncreaseVersion() {}

func (nopHost) Dispatch(protocol.Action) {}

func (nopHost) Schedule(*tree.Element, any) error { return nil }

func newText(t *testing.T) tree.Text {
	t.Helper()
	root, err := tree.NewRoot(nopHost{reg: registry.New()}, tree.RootID)
	if err != nil {
		t.Fatal(err)
	}
	text, err := root.NewText("", nil)
	if err != nil {
		t.Fatal(err)
	}
	return text
}

type exitRecorder struct {
	ch chan error
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{ch: make(chan error, 16)}
}

func (r *exitRecorder) hook(_ *tree.Element, err error) {
	r.ch <- err
}

func (r *exitRecorder) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unit exit")
		return nil
	}
}

// trace is a goroutine-safe event log.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, s)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

func closeScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestSchedule_QueuedUntilStart(t *testing.T) {
	exits := newExitRecorder()
	s := New(WithExitHook(exits.hook))
	defer closeScheduler(t, s)
	text := newText(t)

	ran := make(chan struct{})
	if err := s.Schedule(text.Element, func(e *tree.Element) { close(ran) }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
		t.Fatal("unit ran before Start")
	case <-time.After(20 * time.Millisecond):
	}

	s.Start()
	if err := exits.wait(t); err != nil {
		t.Errorf("exit = %v, want nil", err)
	}

	// After Start units launch immediately.
	if err := s.Schedule(text.Element, Func(func(e *tree.Element) {})); err != nil {
		t.Fatal(err)
	}
	if err := exits.wait(t); err != nil {
		t.Errorf("exit = %v, want nil", err)
	}
}

func TestSteps_RunToCompletion(t *testing.T) {
	exits := newExitRecorder()
	s := New(WithExitHook(exits.hook))
	defer closeScheduler(t, s)
	s.Start()
	text := newText(t)

	steps := Steps(func(e *tree.Element) iter.Seq[any] {
		return func(yield func(any) bool) {
			for _, v := range []string{"a", "b", "c"} {
				tree.Text{Element: e}.Set(v)
				if !yield(v) {
					return
				}
			}
		}
	})
	if err := s.Schedule(text.Element, steps); err != nil {
		t.Fatal(err)
	}
	if err := exits.wait(t); err != nil {
		t.Fatalf("exit = %v, want nil", err)
	}
	if got := text.Value(); got != "c" {
		t.Errorf("text = %q, want c", got)
	}
}

func counter(tr *trace, name string, n int, delay time.Duration) TaskSteps {
	return func(ctx context.Context, e *tree.Element) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for i := 1; i <= n; i++ {
				tr.add(name + string(rune('0'+i)))
				var v any
				if i == 1 && delay > 0 {
					v = delay
				}
				if !yield(v, nil) {
					return
				}
			}
		}
	}
}

func TestTaskSteps_RoundRobin(t *testing.T) {
	exits := newExitRecorder()
	s := New(WithExitHook(exits.hook))
	defer closeScheduler(t, s)
	text := newText(t)
	tr := &trace{}

	for _, name := range []string{"a", "b"} {
		if err := s.Schedule(text.Element, counter(tr, name, 3, 0)); err != nil {
			t.Fatal(err)
		}
	}
	s.Start()
	exits.wait(t)
	exits.wait(t)

	want := []string{"a1", "b1", "a2", "b2", "a3", "b3"}
	if diff := cmp.Diff(want, tr.get()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskSteps_DelayParksUnit(t *testing.T) {
	exits := newExitRecorder()
	s := New(WithExitHook(exits.hook))
	defer closeScheduler(t, s)
	text := newText(t)
	tr := &trace{}

	s.Schedule(text.Element, counter(tr, "a", 2, 50*time.Millisecond))
	s.Schedule(text.Element, counter(tr, "b", 3, 0))
	s.Start()
	exits.wait(t)
	exits.wait(t)

	want := []string{"a1", "b1", "b2", "b3", "a2"}
	if diff := cmp.Diff(want, tr.get()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTask_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		updater any
		want    error
	}{
		{
			name:    "task error",
			updater: Task(func(context.Context, *tree.Element) error { return boom }),
			want:    boom,
		},
		{
			name: "steps yield error",
			updater: TaskSteps(func(context.Context, *tree.Element) iter.Seq2[any, error] {
				return func(yield func(any, error) bool) {
					if yield(nil, nil) {
						yield(nil, boom)
					}
				}
			}),
			want: boom,
		},
		{
			name:    "removed element",
			updater: func(e *tree.Element) { e.UpdateData(map[string]any{"x": 1}) },
			want:    tree.ErrRemoved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exits := newExitRecorder()
			s := New(WithExitHook(exits.hook))
			defer closeScheduler(t, s)
			text := newText(t)
			if tt.want == tree.ErrRemoved {
				text.Remove()
			}
			s.Start()
			if err := s.Schedule(text.Element, tt.updater); err != nil {
				t.Fatal(err)
			}
			if err := exits.wait(t); !errors.Is(err, tt.want) {
				t.Errorf("exit = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFunc_PanicTerminatesUnitOnly(t *testing.T) {
	exits := newExitRecorder()
	s := New(WithExitHook(exits.hook))
	defer closeScheduler(t, s)
	s.Start()
	text := newText(t)

	s.Schedule(text.Element, func(*tree.Element) { panic("bad") })
	var pe *PanicError
	if err := exits.wait(t); !errors.As(err, &pe) || pe.Value != "bad" {
		t.Fatalf("exit = %v, want PanicError(bad)", err)
	}

	s.Schedule(text.Element, func(*tree.Element) {})
	if err := exits.wait(t); err != nil {
		t.Errorf("exit after panic = %v, want nil", err)
	}
}

func TestClose_CancelsUnits(t *testing.T) {
	exits := newExitRecorder()
	s := New(WithExitHook(exits.hook))
	text := newText(t)

	forever := TaskSteps(func(ctx context.Context, e *tree.Element) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for yield(10*time.Millisecond, nil) {
			}
		}
	})
	spinning := Steps(func(e *tree.Element) iter.Seq[any] {
		return func(yield func(any) bool) {
			for yield(nil) {
				time.Sleep(time.Millisecond)
			}
		}
	})

	s.Schedule(text.Element, forever)
	s.Schedule(text.Element, spinning)
	s.Start()
	s.Schedule(text.Element, Task(func(ctx context.Context, e *tree.Element) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	time.Sleep(30 * time.Millisecond)

	closeScheduler(t, s)
	for i := 0; i < 3; i++ {
		if err := exits.wait(t); !errors.Is(err, ErrCancelled) {
			t.Errorf("exit = %v, want ErrCancelled", err)
		}
	}

	if err := s.Schedule(text.Element, func(*tree.Element) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Schedule() after Close = %v, want ErrClosed", err)
	}
}

func TestClose_QueuedUnitsNeverRun(t *testing.T) {
	exits := newExitRecorder()
	s := New(WithExitHook(exits.hook))
	text := newText(t)

	s.Schedule(text.Element, func(*tree.Element) { t.Error("queued unit ran") })
	closeScheduler(t, s)
	if err := exits.wait(t); !errors.Is(err, ErrCancelled) {
		t.Errorf("exit = %v, want ErrCancelled", err)
	}
	s.Start()
	if s.Started() {
		t.Error("Start() after Close started the scheduler")
	}
}

func TestSchedule_Unsupported(t *testing.T) {
	s := New()
	text := newText(t)
	if err := s.Schedule(text.Element, "not a function"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Schedule() error = %v, want ErrUnsupported", err)
	}
}
