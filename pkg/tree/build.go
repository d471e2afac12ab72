package tree

import (
	"maps"
	"slices"

	"github.com/livetree-dev/livetree/pkg/dsl"
	"github.com/livetree-dev/livetree/pkg/protocol"
)

// New parses a DSL document and builds it under e. Inputs substitute
// {$: name} references.
func (e *Element) New(source any, inputs map[string]any) (*Element, error) {
	n, err := dsl.Parse(source, dsl.Context{Inputs: inputs, Kinds: Resolver(e.registry())})
	if err != nil {
		return nil, err
	}
	return Build(e, n)
}

// Build creates the element tree described by n under parent.
//
// Every element-valued argument and prop child gets its own root. Nothing is
// announced while building; once the whole tree exists a single
// processRoots action carries the result and every new root, preceded by the
// variables created on the way. Fields declared
// in the document are available through Ref on the returned element.
//
// If any step fails, everything built so far is removed without being
// announced.
func Build(parent *Element, n *dsl.Node) (*Element, error) {
	b := &builder{refs: map[string]*Element{}}
	result, err := b.build(parent, n)
	if err != nil {
		if result != nil && parent.detach(result) {
			result.destroy()
		}
		return nil, err
	}

	result.mu.Lock()
	result.refs = b.refs
	result.mu.Unlock()

	if parent.emitting() {
		result.unsilence()
		result.announceVariables()
		roots := map[string][]protocol.ElementView{result.rootID: {result.View()}}
		result.collectRoots(roots)
		parent.dispatch(protocol.NewProcessRoots(roots))
	}
	return result, nil
}

type builder struct {
	refs map[string]*Element
}

func (b *builder) build(parent *Element, n *dsl.Node) (*Element, error) {
	args := Args{}
	maps.Copy(args, n.Args)
	if len(n.Props) > 0 {
		props := maps.Clone(n.Props)
		if extra, ok := args[ArgProps].(map[string]any); ok {
			maps.Copy(props, extra)
		}
		args[ArgProps] = props
	}

	opts := childOptions{silent: true}
	if len(n.ElementArgs) > 0 {
		opts.prepare = func(child *Element, args Args) error {
			for _, key := range slices.Sorted(maps.Keys(n.ElementArgs)) {
				root, err := child.newArgRoot()
				if err != nil {
					return err
				}
				if _, err := b.build(root, n.ElementArgs[key]); err != nil {
					return err
				}
				args[key] = root
			}
			return nil
		}
	}

	child, err := parent.newChild(n.Kind, args, opts)
	if err != nil {
		return nil, err
	}
	if n.Field != "" {
		b.refs[n.Field] = child
	}

	for _, name := range slices.Sorted(maps.Keys(n.PropChildren)) {
		root, err := child.NewProp(name)
		if err != nil {
			return child, err
		}
		if _, err := b.build(root, n.PropChildren[name]); err != nil {
			return child, err
		}
	}
	for _, c := range n.Children {
		if _, err := b.build(child, c); err != nil {
			return child, err
		}
	}
	return child, nil
}
