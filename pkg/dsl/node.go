package dsl

// Special configuration keys that are always routed to constructor arguments,
// whatever parameters the kind declares.
const (
	KeyID      = "id"
	KeyCols    = "cols"
	KeyUpdater = "updater"
)

// Kind names the parser itself produces.
const (
	RawKind    = "Raw"
	InlineKind = "Inline"
	TagArg     = "tag"
	TextArg    = "text"
)

const (
	inputMarker   = "$"
	elementMarker = "_"
	defaultOption = "default"
	containerTag  = "div"
)

// Node is one element configuration.
type Node struct {
	// Kind is the resolved kind name.
	Kind string

	// Args are scalar constructor arguments.
	Args map[string]any

	// ElementArgs are element-valued constructor arguments. Each one is
	// materialized in its own root before the element is constructed.
	ElementArgs map[string]*Node

	// Props are configuration entries the kind does not declare.
	Props map[string]any

	// PropChildren are element-valued props, each rendered from its own root.
	PropChildren map[string]*Node

	// Children are nested elements in display order.
	Children []*Node

	// Field, when set, exposes the constructed element under this name.
	Field string
}

func newNode(kind string) *Node {
	return &Node{
		Kind:         kind,
		Args:         map[string]any{},
		ElementArgs:  map[string]*Node{},
		Props:        map[string]any{},
		PropChildren: map[string]*Node{},
	}
}

// Walk calls fn for n and every node below it, depth first. Element-valued
// arguments and prop children are visited before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range sortedNodes(n.ElementArgs) {
		c.Walk(fn)
	}
	for _, c := range sortedNodes(n.PropChildren) {
		c.Walk(fn)
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Fields returns the field names declared anywhere in the tree.
func (n *Node) Fields() []string {
	var out []string
	n.Walk(func(c *Node) {
		if c.Field != "" {
			out = append(out, c.Field)
		}
	})
	return out
}

// KindInfo is what the parser needs to know about a kind.
type KindInfo struct {
	// Params are the declared constructor parameters. The first one receives
	// a short-hand string value.
	Params []string

	// Raw kinds turn a short-hand string into an Inline child.
	Raw bool
}

// HasParam reports whether name is a declared parameter.
func (k KindInfo) HasParam(name string) bool {
	for _, p := range k.Params {
		if p == name {
			return true
		}
	}
	return false
}

// KindResolver resolves kind names to their declared parameters.
type KindResolver interface {
	ResolveKind(name string) (KindInfo, bool)
}

// KindMap is a static KindResolver.
type KindMap map[string]KindInfo

// ResolveKind implements KindResolver.
func (m KindMap) ResolveKind(name string) (KindInfo, bool) {
	k, ok := m[name]
	return k, ok
}

// Context carries the inputs and kind catalog for one parse.
type Context struct {
	Inputs map[string]any
	Kinds  KindResolver
}
