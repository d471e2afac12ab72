package tree

import (
	"errors"
	"sync"
	"testing"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
)

// recordingHost is a Host that keeps every dispatched action.
type recordingHost struct {
	reg *registry.Registry

	mu          sync.Mutex
	version     uint64
	actions     []protocol.Action
	scheduled   []any
	scheduleErr error
}

func newRecordingHost() *recordingHost {
	return &recordingHost{reg: registry.New()}
}

func (h *recordingHost) Registry() *registry.Registry { return h.reg }

func (h *recordingHost) IncreaseVersion() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.version++
}

func (h *recordingHost) Dispatch(a protocol.Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.version++
	a.Stamp(h.version)
	h.actions = append(h.actions, a)
}

func (h *recordingHost) Schedule(e *Element, updater any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scheduleErr != nil {
		return h.scheduleErr
	}
	h.scheduled = append(h.scheduled, updater)
	return nil
}

func (h *recordingHost) Version() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// take returns the recorded actions and forgets them.
func (h *recordingHost) take() []protocol.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.actions
	h.actions = nil
	return out
}

func actionTypes(actions []protocol.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.ActionType()
	}
	return out
}

func newTestRoot(t *testing.T) (*recordingHost, *Element) {
	t.Helper()
	h := newRecordingHost()
	root, err := NewRoot(h, RootID)
	if err != nil {
		t.Fatalf("NewRoot() error: %v", err)
	}
	return h, root
}

func mustChild(t *testing.T, parent *Element, kind string, args Args) *Element {
	t.Helper()
	c, err := parent.NewChild(kind, args)
	if err != nil {
		t.Fatalf("NewChild(%s) error: %v", kind, err)
	}
	return c
}

// expectContractPanic runs fn and checks it panics with a ContractError
// wrapping want.
func expectContractPanic(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", r)
		}
		var ce *ContractError
		if !errors.As(err, &ce) {
			t.Fatalf("panic value %T, want *ContractError", r)
		}
		if !errors.Is(err, want) {
			t.Fatalf("panic %v, want %v", err, want)
		}
	}()
	fn()
}
