package dsl

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	lterrors "github.com/livetree-dev/livetree/internal/errors"
)

var testKinds = KindMap{
	"Raw":     {Params: []string{"tag"}, Raw: true},
	"Inline":  {Params: []string{"text"}},
	"Text":    {Params: []string{"text"}},
	"Card":    {Params: []string{"text"}},
	"Grid":    {Params: []string{"columns"}},
	"Panel":   {Params: []string{"header", "active"}},
	"Table":   {Params: []string{"headers", "page_size"}},
	"Divider": {},
}

func parse(t *testing.T, source any, inputs map[string]any) *Node {
	t.Helper()
	n, err := Parse(source, Context{Inputs: inputs, Kinds: testKinds})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return n
}

func node(kind string, fn func(n *Node)) *Node {
	n := newNode(kind)
	if fn != nil {
		fn(n)
	}
	return n
}

var nodeCmp = cmpopts.EquateEmpty()

func TestParse_ShortHand(t *testing.T) {
	tests := []struct {
		name   string
		source any
		want   *Node
	}{
		{
			name:   "bare kind",
			source: "Divider",
			want:   node("Divider", nil),
		},
		{
			name:   "primary argument",
			source: "Text: hello",
			want: node("Text", func(n *Node) {
				n.Args["text"] = "hello"
			}),
		},
		{
			name:   "raw tag with inline content",
			source: "h1: Title",
			want: node("Raw", func(n *Node) {
				n.Args["tag"] = "h1"
				n.Children = []*Node{node("Inline", func(c *Node) { c.Args["text"] = "Title" })}
			}),
		},
		{
			name:   "sequence wraps in div",
			source: []any{"Divider", "just text"},
			want: node("Raw", func(n *Node) {
				n.Args["tag"] = "div"
				n.Children = []*Node{
					node("Divider", nil),
					node("Inline", func(c *Node) { c.Args["text"] = "just text" }),
				}
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parse(t, tt.source, nil)
			if diff := cmp.Diff(tt.want, got, nodeCmp); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_ConfigurationRouting(t *testing.T) {
	source := `
Grid:
  - - layout
    - columns: 2
    - id: g1
    - gutter: 10
    - header: {_: {Text: inside}}
  - Card: [[{cols: 2}], Text: one]
  - Panel:
      - - header: {_: {Text: title}}
`
	got := parse(t, source, nil)

	want := node("Grid", func(n *Node) {
		n.Field = "layout"
		n.Args["columns"] = 2
		n.Args["id"] = "g1"
		n.Props["gutter"] = 10
		n.PropChildren["header"] = node("Text", func(c *Node) { c.Args["text"] = "inside" })
		n.Children = []*Node{
			node("Card", func(c *Node) {
				c.Args["cols"] = 2
				c.Children = []*Node{node("Text", func(t *Node) { t.Args["text"] = "one" })}
			}),
			node("Panel", func(c *Node) {
				c.ElementArgs["header"] = node("Text", func(t *Node) { t.Args["text"] = "title" })
			}),
		}
	})
	if diff := cmp.Diff(want, got, nodeCmp); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"layout"}, got.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Inputs(t *testing.T) {
	source := map[string]any{
		"Table": []any{
			[]any{
				map[string]any{"headers": map[string]any{"$": "headers"}},
				map[string]any{"page_size": map[string]any{"$": []any{"size", map[string]any{"default": 5}}}},
			},
		},
	}

	t.Run("provided", func(t *testing.T) {
		got := parse(t, source, map[string]any{"headers": []any{"a", "b"}, "size": 20})
		want := node("Table", func(n *Node) {
			n.Args["headers"] = []any{"a", "b"}
			n.Args["page_size"] = 20
		})
		if diff := cmp.Diff(want, got, nodeCmp); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("default", func(t *testing.T) {
		got := parse(t, source, map[string]any{"headers": []any{"a"}})
		if got.Args["page_size"] != 5 {
			t.Errorf("page_size = %v, want 5", got.Args["page_size"])
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Parse(source, Context{Kinds: testKinds})
		if !errors.Is(err, lterrors.New("E104")) {
			t.Fatalf("Parse() error = %v, want E104", err)
		}
	})

	t.Run("unknown option", func(t *testing.T) {
		bad := map[string]any{"Text": map[string]any{"$": []any{"x", map[string]any{"fallback": 1}}}}
		_, err := Parse(bad, Context{Kinds: testKinds})
		if !errors.Is(err, lterrors.New("E106")) {
			t.Fatalf("Parse() error = %v, want E106", err)
		}
	})

	t.Run("input does not mutate source", func(t *testing.T) {
		parse(t, source, map[string]any{"headers": []any{"a"}})
		cfg := source["Table"].([]any)[0].([]any)[0].(map[string]any)
		if _, ok := cfg["headers"].(map[string]any)["$"]; !ok {
			t.Errorf("source was modified: %v", cfg)
		}
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source any
		code   string
		path   string
	}{
		{"unknown kind", "Nope", "E101", "Nope"},
		{"nested unknown kind", "Card: [Text: a, Nope: b]", "E101", "Card > Nope"},
		{"scalar value", map[string]any{"Card": 3}, "E102", "Card"},
		{"multi-key mapping", map[string]any{"Card": nil, "Text": nil}, "E102", ""},
		{"bad config entry", "Card: [[{a: 1, b: 2}]]", "E103", "Card"},
		{"argument to parameterless kind", "Divider: x", "E102", "Divider"},
		{"invalid yaml", "Card: [", "E105", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.source, Context{Kinds: testKinds})
			var e *lterrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("Parse() error = %v, want *errors.Error", err)
			}
			if e.Code != tt.code {
				t.Errorf("Code = %s, want %s (%v)", e.Code, tt.code, err)
			}
			if e.PathString() != tt.path {
				t.Errorf("Path = %q, want %q", e.PathString(), tt.path)
			}
		})
	}
}

func TestParse_KnownKindStringChild(t *testing.T) {
	got := parse(t, "Card: [Divider, Divider is not a kind]", nil)
	if len(got.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(got.Children))
	}
	if got.Children[0].Kind != "Divider" {
		t.Errorf("Children[0].Kind = %s, want Divider", got.Children[0].Kind)
	}
	if got.Children[1].Kind != "Inline" {
		t.Errorf("Children[1].Kind = %s, want Inline", got.Children[1].Kind)
	}
}
