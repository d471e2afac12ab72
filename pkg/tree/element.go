package tree

import (
	"container/list"
	"maps"
	"sync"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/variable"
)

// RootID is the id of the page's main root.
const RootID = "root"

// RootKind is the kind name reported for roots.
const RootKind = "Root"

var rootKind = &Kind{Name: RootKind}

// Host is the page an element tree belongs to.
type Host interface {
	// Registry returns the page registry.
	Registry() *registry.Registry

	// IncreaseVersion bumps the page version.
	IncreaseVersion()

	// Dispatch stamps and sends an action to every client.
	Dispatch(a protocol.Action)

	// Schedule runs updater against e in the background.
	Schedule(e *Element, updater any) error
}

// Element is a node of the tree. Roots are elements without a parent.
type Element struct {
	id       string
	kind     *Kind
	host     Host
	rootID   string
	parentID string
	ownerID  string
	isRoot   bool

	mu           sync.RWMutex
	index        int
	nextIndex    int
	children     []*Element
	data         map[string]any
	props        map[string]any
	propChildren map[string]string
	ownedRoots   []*Element
	variables    []*variable.Variable
	pendingVars  []*variable.Variable
	functions    []*registry.Function
	initComplete bool
	removed      bool
	silent       bool
	state        any
	refs         map[string]*Element
}

func newElement(host Host, id string, k *Kind, rootID, parentID string) *Element {
	return &Element{
		id:           id,
		kind:         k,
		host:         host,
		rootID:       rootID,
		parentID:     parentID,
		data:         map[string]any{},
		props:        map[string]any{"key": id},
		propChildren: map[string]string{},
	}
}

func newRootElement(host Host, id, ownerID string) *Element {
	e := newElement(host, id, rootKind, id, "")
	e.isRoot = true
	e.ownerID = ownerID
	e.initComplete = true
	return e
}

// NewRoot creates and registers a detached root owned by the page.
func NewRoot(host Host, id string) (*Element, error) {
	if id == "" {
		id = registry.NewID()
	}
	r := newRootElement(host, id, "")
	if err := host.Registry().Register(r); err != nil {
		return nil, wrapRegisterErr(err)
	}
	return r, nil
}

// ID returns the element id.
func (e *Element) ID() string { return e.id }

// Kind returns the kind name.
func (e *Element) Kind() string { return e.kind.Name }

// KindDef returns the kind definition.
func (e *Element) KindDef() *Kind { return e.kind }

// RootID returns the id of the root the element belongs to. A root returns
// its own id.
func (e *Element) RootID() string { return e.rootID }

// ParentID returns the parent id, empty for roots.
func (e *Element) ParentID() string { return e.parentID }

// OwnerID returns the id of the element owning a prop root, empty for
// elements and page-owned roots.
func (e *Element) OwnerID() string { return e.ownerID }

// IsRoot reports whether e is a root.
func (e *Element) IsRoot() bool { return e.isRoot }

// Host returns the page the element belongs to.
func (e *Element) Host() Host { return e.host }

// RootRef implements protocol.RootReferencer: an element embedded in data or
// props is sent as a reference to its root.
func (e *Element) RootRef() string { return e.rootID }

// EntityID implements registry.Entity.
func (e *Element) EntityID() string { return e.id }

// EntityCategory implements registry.Entity.
func (e *Element) EntityCategory() registry.Category {
	if e.isRoot {
		return registry.CategoryRoot
	}
	return registry.CategoryElement
}

// Index returns the 1-based position assigned at creation, 0 for roots.
func (e *Element) Index() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index
}

// Removed reports whether the element has been removed.
func (e *Element) Removed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.removed
}

// InitComplete reports whether the kind initializer has finished.
func (e *Element) InitComplete() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initComplete
}

// Parent resolves the parent through the registry.
func (e *Element) Parent() *Element {
	if e.parentID == "" {
		return nil
	}
	return lookupNode(e.registry(), e.parentID)
}

// Owner resolves the element owning a prop root.
func (e *Element) Owner() *Element {
	if e.ownerID == "" {
		return nil
	}
	return lookupElement(e.registry(), e.ownerID)
}

// Children returns a copy of the children in display order.
func (e *Element) Children() []*Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Element(nil), e.children...)
}

// Data returns a copy of the stored data.
func (e *Element) Data() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneMap(e.data)
}

// Props returns a copy of the stored props.
func (e *Element) Props() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneMap(e.props)
}

// PropChildren returns a copy of the prop name to root id mapping.
func (e *Element) PropChildren() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.propChildren)
}

// PropRoot returns the root created for prop name.
func (e *Element) PropRoot(name string) *Element {
	e.mu.RLock()
	id, ok := e.propChildren[name]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	return lookupRoot(e.registry(), id)
}

// Variables returns the variables owned by the element.
func (e *Element) Variables() []*variable.Variable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*variable.Variable(nil), e.variables...)
}

// Ref returns the element a DSL document exposed under field name.
func (e *Element) Ref(name string) *Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.refs[name]
}

// Refs returns a copy of the DSL ref table.
func (e *Element) Refs() map[string]*Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.refs)
}

// View returns a snapshot of the element and its subtree.
func (e *Element) View() protocol.ElementView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := protocol.ElementView{
		ID:           e.id,
		RootID:       e.rootID,
		ParentID:     e.parentID,
		Index:        e.index,
		Kind:         e.kind.Name,
		Data:         cloneMap(e.data),
		Props:        cloneMap(e.props),
		PropChildren: maps.Clone(e.propChildren),
		Children:     make([]protocol.ElementView, 0, len(e.children)),
	}
	for _, c := range e.children {
		v.Children = append(v.Children, c.View())
	}
	return v
}

func (e *Element) registry() *registry.Registry {
	return e.host.Registry()
}

func (e *Element) emittingLocked() bool {
	return e.initComplete && !e.silent && !e.removed
}

func (e *Element) emitting() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.emittingLocked()
}

func (e *Element) dispatch(a protocol.Action) {
	e.host.Dispatch(a)
}

// unsilence re-enables emission for e and everything it owns.
func (e *Element) unsilence() {
	e.mu.Lock()
	e.silent = false
	children := append([]*Element(nil), e.children...)
	roots := append([]*Element(nil), e.ownedRoots...)
	e.mu.Unlock()
	for _, c := range children {
		c.unsilence()
	}
	for _, r := range roots {
		r.unsilence()
	}
}

// announceVariables emits the variables created in e's subtree while it was
// not emitting. They go out before the elements that use them.
func (e *Element) announceVariables() {
	for _, v := range e.takePendingVariables(nil) {
		e.dispatch(protocol.NewNewVariable(v.View()))
	}
}

func (e *Element) takePendingVariables(out []*variable.Variable) []*variable.Variable {
	e.mu.Lock()
	out = append(out, e.pendingVars...)
	e.pendingVars = nil
	children := append([]*Element(nil), e.children...)
	roots := append([]*Element(nil), e.ownedRoots...)
	e.mu.Unlock()
	for _, c := range children {
		out = c.takePendingVariables(out)
	}
	for _, r := range roots {
		out = r.takePendingVariables(out)
	}
	return out
}

// collectRoots adds a view of every root owned inside e's subtree.
func (e *Element) collectRoots(out map[string][]protocol.ElementView) {
	e.mu.RLock()
	children := append([]*Element(nil), e.children...)
	roots := append([]*Element(nil), e.ownedRoots...)
	e.mu.RUnlock()
	for _, r := range roots {
		out[r.id] = []protocol.ElementView{r.View()}
		r.collectRoots(out)
	}
	for _, c := range children {
		c.collectRoots(out)
	}
}

// announce emits the action creating e on the renderer. An element that
// built children or roots during initialization is sent as a whole subtree.
func (e *Element) announce() {
	e.announceVariables()
	e.mu.RLock()
	nested := len(e.children) > 0 || len(e.ownedRoots) > 0
	e.mu.RUnlock()
	if !nested {
		e.dispatch(protocol.NewNewElement(e.View()))
		return
	}
	e.unsilence()
	roots := map[string][]protocol.ElementView{e.rootID: {e.View()}}
	e.collectRoots(roots)
	e.dispatch(protocol.NewProcessRoots(roots))
}

func lookupElement(reg *registry.Registry, id string) *Element {
	if ent, ok := reg.Lookup(registry.CategoryElement, id); ok {
		if el, ok := ent.(*Element); ok {
			return el
		}
	}
	return nil
}

func lookupRoot(reg *registry.Registry, id string) *Element {
	if ent, ok := reg.Lookup(registry.CategoryRoot, id); ok {
		if el, ok := ent.(*Element); ok {
			return el
		}
	}
	return nil
}

// lookupNode resolves an id that may name an element or a root.
func lookupNode(reg *registry.Registry, id string) *Element {
	if el := lookupElement(reg, id); el != nil {
		return el
	}
	return lookupRoot(reg, id)
}

// LookupElement returns the registered element with id.
func LookupElement(reg *registry.Registry, id string) (*Element, bool) {
	el := lookupElement(reg, id)
	return el, el != nil
}

// LookupRoot returns the registered root with id.
func LookupRoot(reg *registry.Registry, id string) (*Element, bool) {
	r := lookupRoot(reg, id)
	return r, r != nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the containers of a payload so a snapshot stays valid
// while the element keeps changing. Leaves are shared.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case *list.List:
		out := list.New()
		for el := t.Front(); el != nil; el = el.Next() {
			out.PushBack(cloneValue(el.Value))
		}
		return out
	}
	return v
}
