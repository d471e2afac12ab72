package tree

import (
	"fmt"
	"sync"

	"github.com/livetree-dev/livetree/pkg/dsl"
	"github.com/livetree-dev/livetree/pkg/registry"
)

// Method is a kind-specific operation callable by name.
type Method func(e *Element, args Args) error

// Kind describes an element kind: its declared constructor parameters,
// whether it accepts children, and how it initializes and reacts.
type Kind struct {
	Name string

	// Params are the declared constructor parameters, primary first. Any
	// other configuration key is a prop.
	Params []string

	// NoChildren marks a leaf kind.
	NoChildren bool

	// Raw kinds turn a DSL short-hand string into an Inline child.
	Raw bool

	// Init initializes a freshly created element from its arguments. When
	// nil, the arguments are stored as data.
	Init func(e *Element, args Args) error

	// OnChild runs on the parent once a child is initialized and before it is
	// announced. It receives the child's special arguments (currently "cols").
	OnChild func(parent *Element, args Args)

	// Methods are callable through Element.Call.
	Methods map[string]Method

	// Script is the renderer registration script of a custom kind.
	Script string
}

// EntityID implements registry.Entity.
func (k *Kind) EntityID() string { return k.Name }

// EntityCategory implements registry.Entity.
func (k *Kind) EntityCategory() registry.Category { return registry.CategoryKind }

func (k *Kind) info() dsl.KindInfo {
	return dsl.KindInfo{Params: k.Params, Raw: k.Raw}
}

func (k *Kind) hasParam(name string) bool {
	for _, p := range k.Params {
		if p == name {
			return true
		}
	}
	return false
}

func (k *Kind) init(e *Element, args Args) error {
	for _, key := range args.keys() {
		if !k.hasParam(key) {
			return fmt.Errorf("%w: %s does not take %q", ErrInvalidArgs, k.Name, key)
		}
	}
	if k.Init == nil {
		if len(args) > 0 {
			e.UpdateData(map[string]any(args))
		}
		return nil
	}
	return k.Init(e, args)
}

var (
	builtinMu    sync.RWMutex
	builtinKinds = map[string]*Kind{}
)

func builtin(k *Kind) *Kind {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinKinds[k.Name] = k
	return k
}

// Builtin returns the built-in kind named name.
func Builtin(name string) (*Kind, bool) {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	k, ok := builtinKinds[name]
	return k, ok
}

// IsBuiltin reports whether name is a built-in kind.
func IsBuiltin(name string) bool {
	_, ok := Builtin(name)
	return ok
}

// LookupKind resolves a kind name against the built-in catalog, then the
// custom kinds registered in reg.
func LookupKind(reg *registry.Registry, name string) (*Kind, bool) {
	if k, ok := Builtin(name); ok {
		return k, true
	}
	if reg == nil {
		return nil, false
	}
	e, ok := reg.Lookup(registry.CategoryKind, name)
	if !ok {
		return nil, false
	}
	k, ok := e.(*Kind)
	return k, ok
}

// Resolver adapts a registry to dsl.KindResolver.
func Resolver(reg *registry.Registry) dsl.KindResolver {
	return resolver{reg: reg}
}

type resolver struct {
	reg *registry.Registry
}

func (r resolver) ResolveKind(name string) (dsl.KindInfo, bool) {
	k, ok := LookupKind(r.reg, name)
	if !ok {
		return dsl.KindInfo{}, false
	}
	return k.info(), true
}
