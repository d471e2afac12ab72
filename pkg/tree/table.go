package tree

import (
	"container/list"
	"fmt"
	"maps"
	"slices"

	"github.com/livetree-dev/livetree/pkg/protocol"
)

// Table is a Table element. Rows are kept in insertion order in a queue so
// prepend is as cheap as append; each row is {data, id} where id is one
// more than the row count at the time it was added.
type Table struct {
	*Element
}

var tableMethods = map[string]Method{
	"append": func(e *Element, args Args) error {
		return Table{e}.Append(args["row"])
	},
	"prepend": func(e *Element, args Args) error {
		return Table{e}.Prepend(args["row"])
	},
	"extend": func(e *Element, args Args) error {
		return Table{e}.Extend(args.Slice("rows"))
	},
	"clear": func(e *Element, args Args) error {
		Table{e}.Clear()
		return nil
	},
	"set": func(e *Element, args Args) error {
		return Table{e}.Set(args.Slice("rows"))
	},
}

func initTable(e *Element, args Args) error {
	headers, err := tableHeaders(args["headers"])
	if err != nil {
		return err
	}
	e.UpdateData(map[string]any{"headers": headers, "rows": list.New()})

	var pagination any = false
	if size := args.Int("page_size", 0); size > 0 {
		pagination = map[string]any{"pageSize": size, "position": "top"}
	}
	e.UpdateProps(map[string]any{"size": "small", "pagination": pagination}, false)
	return nil
}

// tableHeaders accepts a list of names or a mapping whose keys are the
// names (in sorted order).
func tableHeaders(v any) ([]any, error) {
	if m, ok := v.(map[string]any); ok {
		out := make([]any, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			out = append(out, k)
		}
		return out, nil
	}
	if s := toSlice(v); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: Table headers must be a list, got %T", ErrInvalidArgs, v)
}

// Headers returns the column names.
func (t Table) Headers() []any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, _ := t.data["headers"].([]any)
	return append([]any(nil), h...)
}

// Rows returns a copy of the rows in display order.
func (t Table) Rows() []map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows, _ := t.data["rows"].(*list.List)
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, 0, rows.Len())
	for el := rows.Front(); el != nil; el = el.Next() {
		out = append(out, cloneMap(el.Value.(map[string]any)))
	}
	return out
}

// Append adds row at the end. A mapping row is ordered by the headers.
func (t Table) Append(row any) error {
	return t.addRow(row, protocol.VerbAppend)
}

// Prepend adds row at the top.
func (t Table) Prepend(row any) error {
	return t.addRow(row, protocol.VerbPrepend)
}

// Extend appends every row in order.
func (t Table) Extend(rows []any) error {
	for _, row := range rows {
		if err := t.Append(row); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every row.
func (t Table) Clear() {
	t.lockLive("clear table")
	t.data["rows"] = list.New()
	t.mu.Unlock()
	t.UpdateElement([]string{"data", "rows"}, protocol.VerbSet, []any{})
}

// Set replaces every row.
func (t Table) Set(rows []any) error {
	t.lockLive("set table")
	headers, _ := t.data["headers"].([]any)
	q := list.New()
	sent := make([]any, 0, len(rows))
	for i, row := range rows {
		r, err := rowValues(headers, row)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		rowData := map[string]any{"data": r, "id": i + 1}
		q.PushBack(rowData)
		sent = append(sent, cloneMap(rowData))
	}
	t.data["rows"] = q
	t.mu.Unlock()
	t.UpdateElement([]string{"data", "rows"}, protocol.VerbSet, sent)
	return nil
}

func (t Table) addRow(row any, verb protocol.Verb) error {
	t.lockLive("add table row")
	headers, _ := t.data["headers"].([]any)
	r, err := rowValues(headers, row)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	rows, _ := t.data["rows"].(*list.List)
	if rows == nil {
		rows = list.New()
		t.data["rows"] = rows
	}
	rowData := map[string]any{"data": r, "id": rows.Len() + 1}
	if verb == protocol.VerbPrepend {
		rows.PushFront(rowData)
	} else {
		rows.PushBack(rowData)
	}
	t.mu.Unlock()
	t.UpdateElement([]string{"data", "rows"}, verb, cloneMap(rowData))
	return nil
}

func rowValues(headers []any, row any) ([]any, error) {
	if m, ok := row.(map[string]any); ok {
		out := make([]any, len(headers))
		for i, h := range headers {
			out[i] = m[fmt.Sprint(h)]
		}
		return out, nil
	}
	if s := toSlice(row); s != nil {
		return append([]any(nil), s...), nil
	}
	return nil, fmt.Errorf("%w: table row must be a list or a mapping, got %T", ErrInvalidArgs, row)
}
