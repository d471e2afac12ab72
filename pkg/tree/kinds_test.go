package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
)

func updates(t *testing.T, actions []protocol.Action) []protocol.UpdateData {
	t.Helper()
	out := make([]protocol.UpdateData, 0, len(actions))
	for _, a := range actions {
		up, ok := a.(*protocol.UpdatePathAction)
		if !ok {
			t.Fatalf("action = %T, want *UpdatePathAction", a)
		}
		out = append(out, up.UpdateData)
	}
	return out
}

func TestTable_Rows(t *testing.T) {
	h, root := newTestRoot(t)
	table, err := root.NewTable([]any{"a", "b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	h.take()

	if err := table.Append([]any{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := table.Prepend(map[string]any{"b": 4, "a": 3}); err != nil {
		t.Fatal(err)
	}
	if err := table.Append("oops"); err == nil {
		t.Error("Append(string) succeeded, want error")
	}

	want := []protocol.UpdateData{
		{Path: []string{"data", "rows"}, Action: protocol.VerbAppend, Data: map[string]any{"data": []any{1, 2}, "id": 1}},
		{Path: []string{"data", "rows"}, Action: protocol.VerbPrepend, Data: map[string]any{"data": []any{3, 4}, "id": 2}},
	}
	if diff := cmp.Diff(want, updates(t, h.take())); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	wantRows := []map[string]any{
		{"data": []any{3, 4}, "id": 2},
		{"data": []any{1, 2}, "id": 1},
	}
	if diff := cmp.Diff(wantRows, table.Rows()); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}

	table.Clear()
	if len(table.Rows()) != 0 {
		t.Errorf("Rows() after Clear = %v", table.Rows())
	}
	if err := table.Call("extend", Args{"rows": []any{[]any{5, 6}, []any{7, 8}}}); err != nil {
		t.Fatal(err)
	}
	if n := len(table.Rows()); n != 2 {
		t.Errorf("len(Rows()) = %d, want 2", n)
	}
}

func TestTable_InitProps(t *testing.T) {
	tests := []struct {
		name    string
		args    Args
		headers []any
		paging  any
	}{
		{"list headers", Args{"headers": []string{"x", "y"}}, []any{"x", "y"}, false},
		{"mapping headers", Args{"headers": map[string]any{"b": 1, "a": 2}}, []any{"a", "b"}, false},
		{"paged", Args{"headers": []any{"x"}, "page_size": 10}, []any{"x"}, map[string]any{"pageSize": 10, "position": "top"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, root := newTestRoot(t)
			table := Table{mustChild(t, root, KindTable, tt.args)}
			if diff := cmp.Diff(tt.headers, table.Headers()); diff != "" {
				t.Errorf("Headers() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.paging, table.Props()["pagination"]); diff != "" {
				t.Errorf("pagination mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGrid_ChildColumns(t *testing.T) {
	h, root := newTestRoot(t)
	grid, err := root.NewGrid(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	h.take()

	mustChild(t, grid.Element, KindText, Args{"cols": 2})
	mustChild(t, grid.Element, KindText, nil)

	if diff := cmp.Diff([]int{2, 1}, grid.ChildColumns()); diff != "" {
		t.Errorf("ChildColumns() mismatch (-want +got):\n%s", diff)
	}
	got := h.take()
	if diff := cmp.Diff([]string{
		protocol.TypeUpdatePath, protocol.TypeNewElement,
		protocol.TypeUpdatePath, protocol.TypeNewElement,
	}, actionTypes(got)); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	first := got[0].(*protocol.UpdatePathAction).UpdateData
	if first.Action != protocol.VerbAppend || first.Data != 2 {
		t.Errorf("first update = %+v, want append 2", first)
	}
}

func TestGrid_FailedChildKeepsColumns(t *testing.T) {
	h, root := newTestRoot(t)
	grid, err := root.NewGrid(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	mustChild(t, grid.Element, KindText, Args{"cols": 2})
	h.take()

	if _, err := grid.NewChild(KindGrid, Args{"cols": 1, "columns": 0}); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("NewChild() error = %v, want ErrInvalidArgs", err)
	}
	if diff := cmp.Diff([]int{2}, grid.ChildColumns()); diff != "" {
		t.Errorf("ChildColumns() mismatch (-want +got):\n%s", diff)
	}
	if got := h.take(); len(got) != 0 {
		t.Errorf("failed child emitted %v", actionTypes(got))
	}
	if n := len(grid.Children()); n != 1 {
		t.Errorf("children = %d, want 1", n)
	}
}

func TestButton_Function(t *testing.T) {
	h, root := newTestRoot(t)
	called := false
	btn, err := root.NewButton(&registry.Function{
		Name: "Refresh",
		Fn: func(context.Context, map[string]any) error {
			called = true
			return nil
		},
	}, Args{"id": "refresh"})
	if err != nil {
		t.Fatal(err)
	}
	if got := btn.Data()["text"]; got != "Refresh" {
		t.Errorf("text = %v, want Refresh", got)
	}
	ent, ok := h.reg.Lookup(registry.CategoryFunction, "refresh")
	if !ok {
		t.Fatal("function not registered under the button id")
	}
	if err := ent.(*registry.Function).Fn(context.Background(), nil); err != nil || !called {
		t.Errorf("Fn() = %v, called = %v", err, called)
	}
	if btn.Function() == nil {
		t.Error("Function() = nil")
	}

	if _, err := root.NewButton(42, nil); err == nil {
		t.Error("NewButton(42) succeeded, want error")
	}
}

func TestIcon_Props(t *testing.T) {
	_, root := newTestRoot(t)
	icon, err := root.NewIcon("star", Args{"two_tone_color": "#eb2f96"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"key":          icon.ID(),
		"type":         "star",
		"theme":        "outlined",
		"spin":         false,
		"twoToneColor": "#eb2f96",
	}
	if diff := cmp.Diff(want, icon.Props()); diff != "" {
		t.Errorf("Props() mismatch (-want +got):\n%s", diff)
	}
}

func TestRaw_RequiresTag(t *testing.T) {
	_, root := newTestRoot(t)
	if _, err := root.NewRaw("", nil); err == nil {
		t.Error("NewRaw(\"\") succeeded, want error")
	}
	raw, err := root.NewRaw("h1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.NewInline("Title", nil); err != nil {
		t.Errorf("NewInline() error: %v", err)
	}
}
