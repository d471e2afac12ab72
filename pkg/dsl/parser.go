package dsl

import (
	"fmt"
	"slices"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	lterrors "github.com/livetree-dev/livetree/internal/errors"
)

// Parse compiles source into a Node tree. Source is a YAML string, a
// sequence or a single-key mapping.
func Parse(source any, ctx Context) (*Node, error) {
	doc, err := prepare(source)
	if err != nil {
		return nil, err
	}
	p := &parser{ctx: ctx}
	doc, err = p.substitute(doc)
	if err != nil {
		return nil, err
	}
	return p.parseElement(normalizeElement(doc))
}

type parser struct {
	ctx  Context
	path []string
}

func (p *parser) fail(code string, format string, args ...any) *lterrors.Error {
	return lterrors.New(code).WithDetailf(format, args...).WithPath(p.path)
}

func prepare(source any) (any, error) {
	s, ok := source.(string)
	if !ok {
		return canonical(source), nil
	}
	var doc any
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, lterrors.New("E105").Wrap(err).WithDetail(err.Error())
	}
	return canonical(doc), nil
}

// canonical rewrites YAML mappings with non-string keys into
// map[string]any so the rest of the parser deals with one map type.
func canonical(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = canonical(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = canonical(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = canonical(item)
		}
		return out
	}
	return v
}

// normalizeElement turns a bare string into {s: nil} and a sequence into a
// div wrapping it.
func normalizeElement(v any) any {
	switch t := v.(type) {
	case string:
		return map[string]any{t: nil}
	case []any:
		return map[string]any{containerTag: t}
	}
	return v
}

func singleEntry(v any) (string, any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, false
	}
	for k, item := range m {
		return k, item, true
	}
	return "", nil, false
}

// isMarker reports whether v is {key: value} with a non-empty value.
func isMarker(v any, key string) (any, bool) {
	k, item, ok := singleEntry(v)
	if !ok || k != key || isEmpty(item) {
		return nil, false
	}
	return item, true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case bool:
		return !t
	}
	return false
}

func (p *parser) substitute(v any) (any, error) {
	if ref, ok := isMarker(v, inputMarker); ok {
		return p.resolveInput(ref)
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			r, err := p.substitute(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			r, err := p.substitute(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

func (p *parser) resolveInput(ref any) (any, error) {
	ref, err := p.substitute(ref)
	if err != nil {
		return nil, err
	}
	if s, ok := ref.(string); ok {
		ref = []any{s}
	}
	items, ok := ref.([]any)
	if !ok || len(items) == 0 {
		return nil, p.fail("E102", "input reference must be a name or [name, options...], got %v", ref)
	}
	name, ok := items[0].(string)
	if !ok {
		return nil, p.fail("E102", "input name must be a string, got %v", items[0])
	}

	var (
		def    any
		hasDef bool
	)
	for _, entry := range items[1:] {
		key, value, ok := singleEntry(entry)
		if !ok {
			return nil, p.fail("E102", "input option must be a single-key mapping, got %v", entry)
		}
		if key != defaultOption {
			return nil, p.fail("E106", "%q", key)
		}
		def, hasDef = value, true
	}

	if value, ok := p.ctx.Inputs[name]; ok {
		return value, nil
	}
	if hasDef {
		return def, nil
	}
	return nil, p.fail("E104", "%q", name).
		WithSuggestion("pass it in the inputs or declare {$: [" + name + ", {default: ...}]}")
}

func (p *parser) resolveKind(name string) (string, KindInfo, map[string]any, error) {
	if name == "" {
		return "", KindInfo{}, nil, p.fail("E102", "empty element kind")
	}
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsLower(r) {
		info, ok := p.lookup(RawKind)
		if !ok {
			info = KindInfo{Params: []string{TagArg}, Raw: true}
		}
		return RawKind, info, map[string]any{TagArg: name}, nil
	}
	info, ok := p.lookup(name)
	if !ok {
		return "", KindInfo{}, nil, p.fail("E101", "%q", name)
	}
	return name, info, nil, nil
}

func (p *parser) lookup(name string) (KindInfo, bool) {
	if p.ctx.Kinds == nil {
		return KindInfo{}, false
	}
	return p.ctx.Kinds.ResolveKind(name)
}

func (p *parser) isKind(name string) bool {
	_, ok := p.lookup(name)
	return ok
}

func (p *parser) parseElement(doc any) (*Node, error) {
	key, value, ok := singleEntry(doc)
	if !ok {
		return nil, p.fail("E102", "expected a single-key mapping naming a kind, got %v", doc)
	}

	p.path = append(p.path, key)
	defer func() { p.path = p.path[:len(p.path)-1] }()

	kind, info, extra, err := p.resolveKind(key)
	if err != nil {
		return nil, err
	}
	n := newNode(kind)
	for k, v := range extra {
		n.Args[k] = v
	}

	var items []any
	switch t := value.(type) {
	case nil:
	case string:
		if info.Raw {
			items = []any{map[string]any{InlineKind: t}}
			break
		}
		if len(info.Params) == 0 {
			return nil, p.fail("E102", "%s takes no arguments, got %q", kind, t)
		}
		n.Args[info.Params[0]] = t
	case []any:
		items = t
	default:
		return nil, p.fail("E102", "value should be a string or a list, got %v", value)
	}

	if len(items) > 0 {
		if block, ok := items[0].([]any); ok {
			if err := p.parseConfig(n, info, block); err != nil {
				return nil, err
			}
			items = items[1:]
		}
	}

	for _, item := range items {
		if s, ok := item.(string); ok && !p.isKind(s) {
			item = map[string]any{InlineKind: s}
		} else {
			item = normalizeElement(item)
		}
		child, err := p.parseElement(item)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func (p *parser) parseConfig(n *Node, info KindInfo, block []any) error {
	if len(block) == 0 {
		return nil
	}
	if field, ok := block[0].(string); ok {
		n.Field = field
		block = block[1:]
	}
	for _, item := range block {
		key, value, ok := singleEntry(item)
		if !ok {
			return p.fail("E103", "configuration entry must be a single-key mapping, got %v", item)
		}

		var child *Node
		if inner, ok := isMarker(value, elementMarker); ok {
			p.path = append(p.path, key)
			c, err := p.parseElement(normalizeElement(inner))
			p.path = p.path[:len(p.path)-1]
			if err != nil {
				return err
			}
			child = c
		}

		switch {
		case isSpecialKey(key) || info.HasParam(key):
			if child != nil {
				n.ElementArgs[key] = child
			} else {
				n.Args[key] = value
			}
		case child != nil:
			n.PropChildren[key] = child
		default:
			n.Props[key] = value
		}
	}
	return nil
}

func isSpecialKey(key string) bool {
	return key == KeyID || key == KeyCols || key == KeyUpdater
}

func sortedNodes(m map[string]*Node) []*Node {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]*Node, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
