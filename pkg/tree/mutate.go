package tree

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/livetree-dev/livetree/pkg/dsl"
	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/variable"
)

// Arguments every kind accepts in NewChild.
const (
	ArgID      = dsl.KeyID
	ArgCols    = dsl.KeyCols
	ArgUpdater = dsl.KeyUpdater
	ArgProps   = "props"
	ArgStyle   = "style"
)

type childOptions struct {
	// silent suppresses the newElement action; the caller announces the
	// subtree itself.
	silent bool

	// prepare runs after the child is registered and before its initializer.
	prepare func(child *Element, args Args) error
}

// NewChild creates a child of kind under e and announces it.
//
// Besides the kind's declared parameters, args may carry "id" (must not be
// taken), "props", "style", "cols" (consumed by a Grid parent) and "updater"
// (scheduled once the child exists).
func (e *Element) NewChild(kind string, args Args) (*Element, error) {
	return e.newChild(kind, args, childOptions{})
}

func (e *Element) newChild(kindName string, args Args, opts childOptions) (*Element, error) {
	k, ok := LookupKind(e.registry(), kindName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kindName)
	}

	e.mu.RLock()
	removed := e.removed
	parentSilent := !e.initComplete || e.silent
	e.mu.RUnlock()
	if removed {
		return nil, fmt.Errorf("%w: %s", ErrRemoved, e.id)
	}
	if e.kind.NoChildren {
		return nil, fmt.Errorf("%w: %s %s", ErrChildrenNotAllowed, e.kind.Name, e.id)
	}

	args = maps.Clone(args)
	if args == nil {
		args = Args{}
	}
	id, err := takeID(args)
	if err != nil {
		return nil, err
	}
	props, _ := args.take(ArgProps)
	style, hasStyle := args.take(ArgStyle)
	cols, hasCols := args.take(ArgCols)
	updater, _ := args.take(ArgUpdater)

	reg := e.registry()
	if id == "" {
		id = registry.NewID()
	} else if _, taken := reg.Lookup(registry.CategoryElement, id); taken {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	e.host.IncreaseVersion()

	child := newElement(e.host, id, k, e.rootID, e.id)
	child.silent = opts.silent || parentSilent
	if m, ok := props.(map[string]any); ok {
		for key, v := range m {
			child.props[key] = cloneValue(v)
		}
	}
	child.props["key"] = id
	if hasStyle && style != nil {
		child.props[ArgStyle] = cloneValue(style)
	}
	if err := reg.Register(child); err != nil {
		return nil, wrapRegisterErr(err)
	}

	if opts.prepare != nil {
		if err := opts.prepare(child, args); err != nil {
			child.destroy()
			return nil, err
		}
	}
	if err := k.init(child, args); err != nil {
		child.destroy()
		return nil, fmt.Errorf("tree: init %s: %w", k.Name, err)
	}

	child.mu.Lock()
	child.initComplete = true
	child.mu.Unlock()

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		child.destroy()
		return nil, fmt.Errorf("%w: %s", ErrRemoved, e.id)
	}
	e.nextIndex++
	child.mu.Lock()
	child.index = e.nextIndex
	child.mu.Unlock()
	e.children = append(e.children, child)
	e.mu.Unlock()

	if e.kind.OnChild != nil {
		special := Args{}
		if hasCols {
			special[ArgCols] = cols
		}
		e.kind.OnChild(e, special)
	}

	if !child.silent {
		child.announce()
	}

	if updater != nil {
		if err := e.host.Schedule(child, updater); err != nil {
			child.Remove()
			return nil, err
		}
	}
	return child, nil
}

func takeID(args Args) (string, error) {
	v, ok := args.take(ArgID)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: id must be a string, got %T", ErrInvalidArgs, v)
	}
	return s, nil
}

func wrapRegisterErr(err error) error {
	if errors.Is(err, registry.ErrDuplicateID) {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}
	return err
}

// lockLive takes the write lock, panicking if e was removed.
func (e *Element) lockLive(op string) {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		contractPanic(e.id, op, ErrRemoved)
	}
}

// UpdateData merges partial into the element data.
func (e *Element) UpdateData(partial map[string]any) {
	e.lockLive("update data")
	for k, v := range partial {
		e.data[k] = cloneValue(v)
	}
	emit := e.emittingLocked()
	e.mu.Unlock()
	if emit {
		e.dispatch(protocol.NewUpdatePath(e.id, e.rootID, []string{"data"}, protocol.VerbSet, cloneMap(partial)))
	}
}

// UpdateProps merges partial into the element props. Without override,
// keys already present are left alone.
func (e *Element) UpdateProps(partial map[string]any, override bool) {
	e.lockLive("update props")
	final := make(map[string]any, len(partial))
	for k, v := range partial {
		if _, exists := e.props[k]; exists && !override {
			continue
		}
		final[k] = cloneValue(v)
	}
	maps.Copy(e.props, final)
	emit := e.emittingLocked()
	e.mu.Unlock()
	if emit {
		e.dispatch(protocol.NewUpdatePath(e.id, e.rootID, []string{"props"}, protocol.VerbSet, cloneMap(final)))
	}
}

// UpdateProp sets the prop at path, creating intermediate maps.
func (e *Element) UpdateProp(path []string, value any) {
	if len(path) == 0 {
		return
	}
	e.lockLive("update prop")
	setPath(e.props, path, cloneValue(value))
	emit := e.emittingLocked()
	e.mu.Unlock()
	if emit {
		full := append([]string{"props"}, path...)
		e.dispatch(protocol.NewUpdatePath(e.id, e.rootID, full, protocol.VerbSet, cloneValue(value)))
	}
}

// UpdateElement emits an updatePath action without touching local state.
// Kinds use it after changing their state themselves.
func (e *Element) UpdateElement(path []string, verb protocol.Verb, data any) {
	e.mu.RLock()
	removed := e.removed
	emit := e.emittingLocked()
	e.mu.RUnlock()
	if removed {
		contractPanic(e.id, "update element", ErrRemoved)
	}
	if emit {
		e.dispatch(protocol.NewUpdatePath(e.id, e.rootID, path, verb, data))
	}
}

func setPath(m map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// NewProp creates a root supplying renderer content for prop name.
func (e *Element) NewProp(name string) (*Element, error) {
	root, err := e.newOwnedRoot()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		root.destroy()
		return nil, fmt.Errorf("%w: %s", ErrRemoved, e.id)
	}
	_, literal := e.props[name]
	_, existing := e.propChildren[name]
	if literal || existing {
		e.mu.Unlock()
		root.destroy()
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateProp, e.id, name)
	}
	e.propChildren[name] = root.id
	e.ownedRoots = append(e.ownedRoots, root)
	emit := e.emittingLocked()
	e.mu.Unlock()

	e.host.IncreaseVersion()
	if emit {
		e.dispatch(protocol.NewNewPropChild(root.id, name, e.rootID, e.id))
	}
	return root, nil
}

// newOwnedRoot creates a root owned by e. It is not recorded anywhere on e.
func (e *Element) newOwnedRoot() (*Element, error) {
	root := newRootElement(e.host, registry.NewID(), e.id)
	root.silent = !e.emitting()
	if err := e.registry().Register(root); err != nil {
		return nil, wrapRegisterErr(err)
	}
	return root, nil
}

// newArgRoot creates a root owned by e holding an element-valued argument.
func (e *Element) newArgRoot() (*Element, error) {
	root, err := e.newOwnedRoot()
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.ownedRoots = append(e.ownedRoots, root)
	e.mu.Unlock()
	return root, nil
}

// NewVariable registers a variable owned by e and announces it. An empty id
// gets a generated one. A variable created while e is not emitting is
// announced together with e.
func (e *Element) NewVariable(value any, id string) (*variable.Variable, error) {
	if e.Removed() {
		return nil, fmt.Errorf("%w: %s", ErrRemoved, e.id)
	}
	e.host.IncreaseVersion()
	if id == "" {
		id = registry.NewID()
	}
	v := variable.New(id, value)
	if err := e.registry().Register(v); err != nil {
		return nil, wrapRegisterErr(err)
	}
	e.mu.Lock()
	e.variables = append(e.variables, v)
	emit := e.emittingLocked()
	if !emit {
		e.pendingVars = append(e.pendingVars, v)
	}
	e.mu.Unlock()
	if emit {
		e.dispatch(protocol.NewNewVariable(v.View()))
	}
	return v, nil
}

// RegisterFunction registers fn for remote invocation. It is unregistered
// when e is removed.
func (e *Element) RegisterFunction(fn *registry.Function) error {
	if err := e.registry().Register(fn); err != nil {
		return wrapRegisterErr(err)
	}
	e.mu.Lock()
	e.functions = append(e.functions, fn)
	e.mu.Unlock()
	return nil
}

// Call invokes a kind method by name.
func (e *Element) Call(method string, args Args) error {
	m, ok := e.kind.Methods[method]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, e.kind.Name, method)
	}
	if e.Removed() {
		return fmt.Errorf("%w: %s", ErrRemoved, e.id)
	}
	if args == nil {
		args = Args{}
	}
	return m(e, args)
}

// Methods returns the names of the methods Call accepts.
func (e *Element) Methods() []string {
	return slices.Sorted(maps.Keys(e.kind.Methods))
}
