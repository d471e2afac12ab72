package tree

import (
	"fmt"
	"slices"

	"github.com/livetree-dev/livetree/pkg/protocol"
)

// Remove removes e from its parent and returns one entry per destroyed
// element, root and variable. Removing an already removed element returns
// nil. Roots cannot be removed.
func (e *Element) Remove() []protocol.RemovalEntry {
	if e.Removed() {
		return nil
	}
	if e.isRoot {
		contractPanic(e.id, "remove", ErrNoParent)
	}
	parent := e.Parent()
	if parent == nil {
		if e.Removed() {
			return nil
		}
		contractPanic(e.id, "remove", ErrNoParent)
	}
	return parent.RemoveChild(e)
}

// Discard unregisters a detached page root that was never announced,
// together with anything left in it. It does not emit.
func (e *Element) Discard() {
	if !e.isRoot || e.ownerID != "" || e.id == RootID {
		contractPanic(e.id, "discard", ErrNoParent)
	}
	e.destroy()
}

// RemoveChild removes child from e. See Remove.
func (e *Element) RemoveChild(child *Element) []protocol.RemovalEntry {
	if !e.detach(child) {
		if child.Removed() {
			return nil
		}
		contractPanic(child.id, "remove", fmt.Errorf("%w: not a child of %s", ErrNoParent, e.id))
	}
	emit := child.emitting()
	entries := child.destroy()
	if len(entries) == 0 {
		return nil
	}
	e.host.IncreaseVersion()
	if emit {
		e.dispatch(protocol.NewRemoveElements(entries))
	}
	return entries
}

// detach drops child from the children slice. Indices of the remaining
// children are left untouched.
func (e *Element) detach(child *Element) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := slices.Index(e.children, child)
	if i < 0 {
		return false
	}
	e.children = slices.Delete(e.children, i, i+1)
	return true
}

// destroy marks e and everything it owns removed, unregisters them and
// returns their removal entries in depth-first order: the element itself,
// its children, its prop roots and its variables. A root's own entry comes
// after its content.
func (e *Element) destroy() []protocol.RemovalEntry {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil
	}
	e.removed = true
	children := e.children
	roots := e.ownedRoots
	vars := e.variables
	fns := e.functions
	e.children, e.ownedRoots, e.variables, e.functions = nil, nil, nil, nil
	e.pendingVars = nil
	e.mu.Unlock()

	reg := e.registry()
	var entries []protocol.RemovalEntry
	if !e.isRoot {
		entries = append(entries, protocol.RemovalEntry{ID: e.id, RootID: e.rootID, Type: protocol.EntryElement})
	}
	for _, c := range children {
		entries = append(entries, c.destroy()...)
	}
	for _, r := range roots {
		entries = append(entries, r.destroy()...)
	}
	for _, v := range vars {
		reg.Unregister(v)
		entries = append(entries, protocol.RemovalEntry{ID: v.ID(), Type: protocol.EntryVariable})
	}
	for _, f := range fns {
		reg.Unregister(f)
	}
	reg.Unregister(e)
	if e.isRoot {
		entries = append(entries, protocol.RemovalEntry{ID: e.id, Type: protocol.EntryRoot})
	}
	return entries
}
