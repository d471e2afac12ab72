package server

import (
	"sync"
	"testing"
	"time"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/tree"
	"github.com/livetree-dev/livetree/pkg/variable"
)

type sent struct {
	action protocol.Action
	target string
}

// fakePage is a page without a hub: dispatched actions are recorded.
type fakePage struct {
	reg   *registry.Registry
	root  *tree.Element
	codec *protocol.Codec

	mu      sync.Mutex
	version uint64
	sent    []sent
}

func newFakePage(t *testing.T) *fakePage {
	t.Helper()
	p := &fakePage{reg: registry.New(), codec: protocol.NewCodec()}
	root, err := tree.NewRoot(p, tree.RootID)
	if err != nil {
		t.Fatal(err)
	}
	p.root = root
	return p
}

func (p *fakePage) Registry() *registry.Registry { return p.reg }

func (p *fakePage) IncreaseVersion() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version++
}

func (p *fakePage) Dispatch(a protocol.Action) {
	p.DispatchTo(a, "")
}

func (p *fakePage) DispatchTo(a protocol.Action, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version++
	a.Stamp(p.version)
	p.sent = append(p.sent, sent{action: a, target: clientID})
	return nil
}

func (p *fakePage) Schedule(*tree.Element, any) error { return nil }

func (p *fakePage) Root() *tree.Element { return p.root }

func (p *fakePage) NewRoot() (*tree.Element, error) { return tree.NewRoot(p, "") }

func (p *fakePage) Snapshot() protocol.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.Snapshot{
		Roots:     map[string]protocol.ElementView{p.root.ID(): p.root.View()},
		Variables: map[string]protocol.VariableView{},
		Version:   p.version,
		Title:     "fake",
	}
}

func (p *fakePage) Codec() *protocol.Codec { return p.codec }

func (p *fakePage) Title() string { return "fake" }

func (p *fakePage) CustomScript() string { return "// custom" }

// take returns the recorded actions and forgets them.
func (p *fakePage) take() []sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.sent
	p.sent = nil
	return out
}

func (p *fakePage) variable(t *testing.T, value any) *variable.Variable {
	t.Helper()
	v, err := p.root.NewVariable(value, "")
	if err != nil {
		t.Fatal(err)
	}
	p.take()
	return v
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
