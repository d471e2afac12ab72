package tree

import (
	"context"
	"fmt"

	"github.com/livetree-dev/livetree/pkg/dsl"
	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
)

// Built-in kind names.
const (
	KindRaw      = dsl.RawKind
	KindInline   = dsl.InlineKind
	KindText     = "Text"
	KindCard     = "Card"
	KindDivider  = "Divider"
	KindGrid     = "Grid"
	KindTabs     = "Tabs"
	KindTab      = "Tab"
	KindCollapse = "Collapse"
	KindPanel    = "Panel"
	KindTable    = "Table"
	KindButton   = "Button"
	KindInput    = "Input"
	KindIcon     = "Icon"
	KindMarkdown = "Markdown"
	KindChart    = "Chart"
)

func init() {
	textMethods := map[string]Method{
		"set": func(e *Element, args Args) error {
			Text{e}.Set(args.String("text", ""))
			return nil
		},
	}
	initText := func(e *Element, args Args) error {
		e.UpdateData(map[string]any{"text": args.String("text", "")})
		return nil
	}

	builtin(&Kind{
		Name:   KindRaw,
		Params: []string{dsl.TagArg},
		Raw:    true,
		Init: func(e *Element, args Args) error {
			tag := args.String(dsl.TagArg, "")
			if tag == "" {
				return fmt.Errorf("%w: Raw requires a tag", ErrInvalidArgs)
			}
			e.UpdateData(map[string]any{"tag": tag})
			return nil
		},
	})
	builtin(&Kind{
		Name:       KindInline,
		Params:     []string{dsl.TextArg},
		NoChildren: true,
		Init:       initText,
	})
	builtin(&Kind{
		Name:    KindText,
		Params:  []string{"text"},
		Init:    initText,
		Methods: textMethods,
	})
	builtin(&Kind{
		Name:    KindCard,
		Params:  []string{"text"},
		Init:    initText,
		Methods: textMethods,
	})
	builtin(&Kind{
		Name:       KindDivider,
		NoChildren: true,
	})
	builtin(&Kind{
		Name:    KindGrid,
		Params:  []string{"columns"},
		Init:    initGrid,
		OnChild: gridOnChild,
	})
	builtin(&Kind{
		Name: KindTabs,
		Init: func(e *Element, args Args) error {
			e.UpdateProps(map[string]any{"size": "small", "animated": false}, false)
			return nil
		},
	})
	builtin(&Kind{
		Name:   KindTab,
		Params: []string{"name"},
		Init: func(e *Element, args Args) error {
			e.UpdateProps(map[string]any{"tab": args.String("name", "")}, false)
			return nil
		},
	})
	builtin(&Kind{
		Name: KindCollapse,
	})
	builtin(&Kind{
		Name:   KindPanel,
		Params: []string{"header", "active"},
		Init: func(e *Element, args Args) error {
			if args.Has("header") {
				e.UpdateProps(map[string]any{"header": args["header"]}, false)
			}
			e.UpdateData(map[string]any{"active": args.Bool("active", false)})
			return nil
		},
	})
	builtin(&Kind{
		Name:       KindTable,
		Params:     []string{"headers", "page_size"},
		NoChildren: true,
		Init:       initTable,
		Methods:    tableMethods,
	})
	builtin(&Kind{
		Name:       KindButton,
		Params:     []string{"function", "text"},
		NoChildren: true,
		Init:       initButton,
	})
	builtin(&Kind{
		Name:       KindInput,
		Params:     []string{"placeholder", "on_enter"},
		NoChildren: true,
		Init:       initInput,
	})
	builtin(&Kind{
		Name:       KindIcon,
		Params:     []string{"type", "theme", "spin", "two_tone_color"},
		NoChildren: true,
		Init: func(e *Element, args Args) error {
			props := map[string]any{
				"type":  args.String("type", ""),
				"theme": args.String("theme", "outlined"),
				"spin":  args.Bool("spin", false),
			}
			if c := args.String("two_tone_color", ""); c != "" {
				props["twoToneColor"] = c
			}
			e.UpdateProps(props, false)
			return nil
		},
	})
	builtin(&Kind{
		Name:       KindMarkdown,
		Params:     []string{"text"},
		NoChildren: true,
		Init:       initText,
		Methods:    textMethods,
	})
	builtin(&Kind{
		Name:       KindChart,
		Params:     []string{"data", "options", "transform", "moving_window"},
		NoChildren: true,
		Init:       initChart,
		Methods:    chartMethods,
	})
}

func initGrid(e *Element, args Args) error {
	columns := args.Int("columns", 0)
	if columns <= 0 {
		return fmt.Errorf("%w: Grid columns must be positive, got %v", ErrInvalidArgs, args["columns"])
	}
	e.UpdateData(map[string]any{"columns": columns, "childColumns": []any{}})
	e.UpdateProps(map[string]any{"gutter": 5}, false)
	return nil
}

// gridOnChild records how many columns the next child spans.
func gridOnChild(g *Element, args Args) {
	cols := args.Int(ArgCols, 1)
	g.lockLive("add grid child")
	childColumns, _ := g.data["childColumns"].([]any)
	g.data["childColumns"] = append(childColumns, cols)
	g.mu.Unlock()
	g.UpdateElement([]string{"data", "childColumns"}, protocol.VerbAppend, cols)
}

// toFunction converts the callable shapes accepted by Button and Input.
func toFunction(id string, v any) (*registry.Function, error) {
	switch fn := v.(type) {
	case *registry.Function:
		out := *fn
		out.ID = id
		return &out, nil
	case func(context.Context, map[string]any) error:
		return &registry.Function{ID: id, Fn: fn}, nil
	case func(context.Context) error:
		return &registry.Function{ID: id, Fn: func(ctx context.Context, _ map[string]any) error {
			return fn(ctx)
		}}, nil
	case func(map[string]any):
		return &registry.Function{ID: id, Fn: func(_ context.Context, kwargs map[string]any) error {
			fn(kwargs)
			return nil
		}}, nil
	case func():
		return &registry.Function{ID: id, Fn: func(context.Context, map[string]any) error {
			fn()
			return nil
		}}, nil
	}
	return nil, fmt.Errorf("%w: unsupported function %T", ErrInvalidArgs, v)
}

func initButton(e *Element, args Args) error {
	fn, err := toFunction(e.id, args["function"])
	if err != nil {
		return err
	}
	if err := e.RegisterFunction(fn); err != nil {
		return err
	}
	text := args.String("text", "")
	if text == "" {
		text = fn.Name
	}
	if text == "" {
		text = e.id
	}
	e.UpdateData(map[string]any{"text": text})
	return nil
}

func initInput(e *Element, args Args) error {
	if _, err := e.NewVariable("", e.id); err != nil {
		return err
	}
	if p := args.String("placeholder", ""); p != "" {
		e.UpdateProps(map[string]any{"placeholder": p}, false)
	}
	if onEnter := args["on_enter"]; onEnter != nil {
		fn, err := toFunction(e.id, onEnter)
		if err != nil {
			return err
		}
		if err := e.RegisterFunction(fn); err != nil {
			return err
		}
		e.UpdateData(map[string]any{"enter": true})
	}
	return nil
}
