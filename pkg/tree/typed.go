package tree

import (
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/variable"
)

// Text is a Text, Card, Markdown or Inline element.
type Text struct {
	*Element
}

// Set replaces the text.
func (t Text) Set(text string) {
	t.UpdateData(map[string]any{"text": text})
}

// Value returns the current text.
func (t Text) Value() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, _ := t.data["text"].(string)
	return s
}

// Grid is a Grid element.
type Grid struct {
	*Element
}

// Columns returns the grid width.
func (g Grid) Columns() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, _ := toInt(g.data["columns"])
	return n
}

// ChildColumns returns how many columns each child spans, in creation order.
func (g Grid) ChildColumns() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cols, _ := g.data["childColumns"].([]any)
	out := make([]int, 0, len(cols))
	for _, c := range cols {
		n, _ := toInt(c)
		out = append(out, n)
	}
	return out
}

// Input is an Input element.
type Input struct {
	*Element
}

// Variable returns the variable holding the input value.
func (in Input) Variable() *variable.Variable {
	for _, v := range in.Variables() {
		if v.ID() == in.id {
			return v
		}
	}
	return nil
}

// Value returns the current input value.
func (in Input) Value() any {
	if v := in.Variable(); v != nil {
		return v.Value()
	}
	return nil
}

// Button is a Button element.
type Button struct {
	*Element
}

// Function returns the function the button invokes.
func (b Button) Function() *registry.Function {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.functions) == 0 {
		return nil
	}
	return b.functions[0]
}

func withArgs(args Args, kv ...any) Args {
	out := Args{}
	for k, v := range args {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

// NewText adds a Text child.
func (e *Element) NewText(text string, args Args) (Text, error) {
	c, err := e.NewChild(KindText, withArgs(args, "text", text))
	return Text{c}, err
}

// NewCard adds a Card child.
func (e *Element) NewCard(text string, args Args) (Text, error) {
	c, err := e.NewChild(KindCard, withArgs(args, "text", text))
	return Text{c}, err
}

// NewMarkdown adds a Markdown child.
func (e *Element) NewMarkdown(text string, args Args) (Text, error) {
	c, err := e.NewChild(KindMarkdown, withArgs(args, "text", text))
	return Text{c}, err
}

// NewInline adds an Inline child.
func (e *Element) NewInline(text string, args Args) (Text, error) {
	c, err := e.NewChild(KindInline, withArgs(args, "text", text))
	return Text{c}, err
}

// NewRaw adds a Raw child rendering the html tag.
func (e *Element) NewRaw(tag string, args Args) (*Element, error) {
	return e.NewChild(KindRaw, withArgs(args, "tag", tag))
}

// NewDivider adds a Divider child.
func (e *Element) NewDivider(args Args) (*Element, error) {
	return e.NewChild(KindDivider, args)
}

// NewGrid adds a Grid child with the given number of columns.
func (e *Element) NewGrid(columns int, args Args) (Grid, error) {
	c, err := e.NewChild(KindGrid, withArgs(args, "columns", columns))
	return Grid{c}, err
}

// NewTabs adds a Tabs child.
func (e *Element) NewTabs(args Args) (*Element, error) {
	return e.NewChild(KindTabs, args)
}

// NewTab adds a Tab child.
func (e *Element) NewTab(name string, args Args) (*Element, error) {
	return e.NewChild(KindTab, withArgs(args, "name", name))
}

// NewCollapse adds a Collapse child.
func (e *Element) NewCollapse(args Args) (*Element, error) {
	return e.NewChild(KindCollapse, args)
}

// NewPanel adds a Panel child. header may be a string or a root holding
// renderer content.
func (e *Element) NewPanel(header any, args Args) (*Element, error) {
	return e.NewChild(KindPanel, withArgs(args, "header", header))
}

// NewTable adds a Table child.
func (e *Element) NewTable(headers any, args Args) (Table, error) {
	c, err := e.NewChild(KindTable, withArgs(args, "headers", headers))
	return Table{c}, err
}

// NewButton adds a Button child invoking fn.
func (e *Element) NewButton(fn any, args Args) (Button, error) {
	c, err := e.NewChild(KindButton, withArgs(args, "function", fn))
	return Button{c}, err
}

// NewInput adds an Input child.
func (e *Element) NewInput(args Args) (Input, error) {
	c, err := e.NewChild(KindInput, args)
	return Input{c}, err
}

// NewIcon adds an Icon child.
func (e *Element) NewIcon(iconType string, args Args) (*Element, error) {
	return e.NewChild(KindIcon, withArgs(args, "type", iconType))
}

// NewChart adds a Chart child.
func (e *Element) NewChart(data []any, args Args) (Chart, error) {
	c, err := e.NewChild(KindChart, withArgs(args, "data", data))
	return Chart{c}, err
}
