package protocol

// ElementView is a full snapshot of one element and its subtree.
type ElementView struct {
	ID           string            `json:"id"`
	RootID       string            `json:"rootId"`
	ParentID     string            `json:"parentId,omitempty"`
	Index        int               `json:"index"`
	Kind         string            `json:"kind"`
	Data         map[string]any    `json:"data"`
	Props        map[string]any    `json:"props"`
	PropChildren map[string]string `json:"propChildren"`
	Children     []ElementView     `json:"children"`
}

func (v *ElementView) normalize(n func(any) any) {
	v.Data = normalizeMap(n, v.Data)
	v.Props = normalizeMap(n, v.Props)
	for i := range v.Children {
		v.Children[i].normalize(n)
	}
}

// VariableView is the wire form of a variable.
type VariableView struct {
	ID      string `json:"id"`
	Value   any    `json:"value"`
	Version uint64 `json:"version"`
}

// Snapshot is the full state of a page, served for initial load and after
// a reconnect.
type Snapshot struct {
	Roots     map[string]ElementView  `json:"roots"`
	Variables map[string]VariableView `json:"variables"`
	Version   uint64                  `json:"version"`
	Style     map[string]any          `json:"style"`
	Title     string                  `json:"title"`
}

func (s *Snapshot) normalize(n func(any) any) {
	for id, root := range s.Roots {
		root.normalize(n)
		s.Roots[id] = root
	}
	for id, v := range s.Variables {
		v.Value = n(v.Value)
		s.Variables[id] = v
	}
	s.Style = normalizeMap(n, s.Style)
}
