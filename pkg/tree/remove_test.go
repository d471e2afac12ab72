package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
)

func TestRemove_Entries(t *testing.T) {
	h, root := newTestRoot(t)
	card := mustChild(t, root, KindCard, Args{"id": "card"})
	mustChild(t, card, KindText, Args{"id": "body"})
	title, err := card.NewProp("title")
	if err != nil {
		t.Fatal(err)
	}
	mustChild(t, title, KindText, Args{"id": "heading"})
	h.take()
	before := h.Version()

	got := card.Remove()

	want := []protocol.RemovalEntry{
		{ID: "card", RootID: RootID, Type: protocol.EntryElement},
		{ID: "body", RootID: RootID, Type: protocol.EntryElement},
		{ID: "heading", RootID: title.ID(), Type: protocol.EntryElement},
		{ID: title.ID(), Type: protocol.EntryRoot},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Remove() entries mismatch (-want +got):\n%s", diff)
	}

	actions := h.take()
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if diff := cmp.Diff(want, actions[0].(*protocol.RemoveElementsAction).Entries); diff != "" {
		t.Errorf("removeElements mismatch (-want +got):\n%s", diff)
	}
	if h.Version() != before+2 {
		t.Errorf("version = %d, want %d", h.Version(), before+2)
	}

	for _, id := range []string{"card", "body", "heading"} {
		if _, ok := h.reg.Lookup(registry.CategoryElement, id); ok {
			t.Errorf("%s still registered", id)
		}
	}
	if _, ok := h.reg.Lookup(registry.CategoryRoot, title.ID()); ok {
		t.Errorf("prop root still registered")
	}
}

func TestRemove_InputVariableAndFunction(t *testing.T) {
	h, root := newTestRoot(t)
	in, err := root.NewInput(Args{"id": "name", "on_enter": func() {}})
	if err != nil {
		t.Fatal(err)
	}
	if in.Variable() == nil {
		t.Fatal("Input has no variable")
	}
	if _, ok := h.reg.Lookup(registry.CategoryFunction, "name"); !ok {
		t.Fatal("on_enter function not registered")
	}

	got := in.Remove()

	want := []protocol.RemovalEntry{
		{ID: "name", RootID: RootID, Type: protocol.EntryElement},
		{ID: "name", Type: protocol.EntryVariable},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Remove() entries mismatch (-want +got):\n%s", diff)
	}
	if _, ok := h.reg.Lookup(registry.CategoryFunction, "name"); ok {
		t.Error("function still registered")
	}
	if _, ok := h.reg.Lookup(registry.CategoryVariable, "name"); ok {
		t.Error("variable still registered")
	}
}

func TestRemove_Idempotent(t *testing.T) {
	h, root := newTestRoot(t)
	card := mustChild(t, root, KindCard, nil)
	card.Remove()
	h.take()
	version := h.Version()

	if got := card.Remove(); got != nil {
		t.Errorf("second Remove() = %v, want nil", got)
	}
	if got := root.RemoveChild(card); got != nil {
		t.Errorf("RemoveChild(removed) = %v, want nil", got)
	}
	if len(h.take()) != 0 || h.Version() != version {
		t.Error("removing twice had side effects")
	}
}

func TestRemove_RootPanics(t *testing.T) {
	_, root := newTestRoot(t)
	expectContractPanic(t, ErrNoParent, func() { root.Remove() })
}

func TestRemove_NotAChildPanics(t *testing.T) {
	_, root := newTestRoot(t)
	a := mustChild(t, root, KindCard, nil)
	b := mustChild(t, a, KindCard, nil)
	expectContractPanic(t, ErrNoParent, func() { root.RemoveChild(b) })
}

func TestRemove_SilentSubtree(t *testing.T) {
	h, root := newTestRoot(t)
	var inner *Element
	box := &Kind{
		Name: "Box",
		Init: func(e *Element, args Args) error {
			c, err := e.NewChild(KindDivider, nil)
			if err != nil {
				return err
			}
			inner = c
			// Removing during init is absorbed: the renderer never saw it.
			c.Remove()
			return nil
		},
	}
	if err := h.reg.Register(box); err != nil {
		t.Fatal(err)
	}
	b := mustChild(t, root, "Box", nil)

	if diff := cmp.Diff([]string{protocol.TypeNewElement}, actionTypes(h.take())); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	if !inner.Removed() || len(b.Children()) != 0 {
		t.Error("inner child not removed")
	}
}
