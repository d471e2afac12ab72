package protocol

// Action types.
const (
	TypeNewElement     = "newElement"
	TypeUpdatePath     = "updatePath"
	TypeRemoveElements = "removeElements"
	TypeNewVariable    = "newVariable"
	TypeNewPropChild   = "newPropChild"
	TypeProcessRoots   = "processRoots"
	TypeUpdateVariable = "updateVariable"
	TypeSetClientID    = "setClientId"
	TypeDisplayError   = "displayError"
	TypeRefresh        = "refresh"
)

// Action is one outbound state change for the renderer.
type Action interface {
	// ActionType returns the envelope type discriminator.
	ActionType() string

	// Stamp records the page version the action was dispatched at.
	Stamp(version uint64)

	// StampedVersion returns the version recorded by Stamp.
	StampedVersion() uint64

	normalize(n func(any) any)
}

// Header is the common envelope of every action.
type Header struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
}

// ActionType returns the envelope type discriminator.
func (h *Header) ActionType() string { return h.Type }

// Stamp records the page version the action was dispatched at.
func (h *Header) Stamp(version uint64) { h.Version = version }

// StampedVersion returns the version recorded by Stamp.
func (h *Header) StampedVersion() uint64 { return h.Version }

// Verb names the operation an updatePath action applies at its path.
type Verb string

const (
	VerbSet          Verb = "set"
	VerbAppend       Verb = "append"
	VerbPrepend      Verb = "prepend"
	VerbExtend       Verb = "extend"
	VerbAddChartData Verb = "addChartData"
)

// NewElementAction announces a single element created under an existing parent.
type NewElementAction struct {
	Header
	ID           string            `json:"id"`
	RootID       string            `json:"rootId"`
	Index        int               `json:"index"`
	Kind         string            `json:"kind"`
	Data         map[string]any    `json:"data"`
	ParentID     string            `json:"parentId"`
	Props        map[string]any    `json:"props"`
	PropChildren map[string]string `json:"propChildren"`
}

// NewNewElement builds a newElement action from an element view. Children
// are not carried; a freshly created element has none.
func NewNewElement(v ElementView) *NewElementAction {
	return &NewElementAction{
		Header:       Header{Type: TypeNewElement},
		ID:           v.ID,
		RootID:       v.RootID,
		Index:        v.Index,
		Kind:         v.Kind,
		Data:         v.Data,
		ParentID:     v.ParentID,
		Props:        v.Props,
		PropChildren: v.PropChildren,
	}
}

func (a *NewElementAction) normalize(n func(any) any) {
	a.Data = normalizeMap(n, a.Data)
	a.Props = normalizeMap(n, a.Props)
}

// UpdateData describes the mutation carried by an updatePath action.
type UpdateData struct {
	Path   []string `json:"path"`
	Action Verb     `json:"action"`
	Data   any      `json:"data"`
}

// UpdatePathAction applies Verb at Path inside an element's stored state.
type UpdatePathAction struct {
	Header
	ID         string     `json:"id"`
	RootID     string     `json:"rootId"`
	UpdateData UpdateData `json:"updateData"`
}

// NewUpdatePath builds an updatePath action.
func NewUpdatePath(id, rootID string, path []string, verb Verb, data any) *UpdatePathAction {
	return &UpdatePathAction{
		Header: Header{Type: TypeUpdatePath},
		ID:     id,
		RootID: rootID,
		UpdateData: UpdateData{
			Path:   path,
			Action: verb,
			Data:   data,
		},
	}
}

func (a *UpdatePathAction) normalize(n func(any) any) {
	a.UpdateData.Data = n(a.UpdateData.Data)
}

// EntryType tells the renderer what kind of handle a removal entry drops.
type EntryType string

const (
	EntryElement  EntryType = "element"
	EntryRoot     EntryType = "root"
	EntryVariable EntryType = "variable"
)

// RemovalEntry is one destroyed element, root or variable.
type RemovalEntry struct {
	ID     string    `json:"id"`
	RootID string    `json:"rootId,omitempty"`
	Type   EntryType `json:"type"`
}

// RemoveElementsAction carries every entry produced by one removal.
type RemoveElementsAction struct {
	Header
	Entries []RemovalEntry `json:"entries"`
}

// NewRemoveElements builds a removeElements action.
func NewRemoveElements(entries []RemovalEntry) *RemoveElementsAction {
	return &RemoveElementsAction{
		Header:  Header{Type: TypeRemoveElements},
		Entries: entries,
	}
}

func (a *RemoveElementsAction) normalize(func(any) any) {}

// NewVariableAction announces a registered variable.
type NewVariableAction struct {
	Header
	ID              string `json:"id"`
	Value           any    `json:"value"`
	VariableVersion uint64 `json:"variableVersion"`
}

// NewNewVariable builds a newVariable action.
func NewNewVariable(v VariableView) *NewVariableAction {
	return &NewVariableAction{
		Header:          Header{Type: TypeNewVariable},
		ID:              v.ID,
		Value:           v.Value,
		VariableVersion: v.Version,
	}
}

func (a *NewVariableAction) normalize(n func(any) any) {
	a.Value = n(a.Value)
}

// UpdateVariableAction carries a variable's new value and version.
type UpdateVariableAction struct {
	Header
	ID              string `json:"id"`
	Value           any    `json:"value"`
	VariableVersion uint64 `json:"variableVersion"`
}

// NewUpdateVariable builds an updateVariable action.
func NewUpdateVariable(v VariableView) *UpdateVariableAction {
	return &UpdateVariableAction{
		Header:          Header{Type: TypeUpdateVariable},
		ID:              v.ID,
		Value:           v.Value,
		VariableVersion: v.Version,
	}
}

func (a *UpdateVariableAction) normalize(n func(any) any) {
	a.Value = n(a.Value)
}

// NewPropChildAction tells the renderer that element ElementID (living in
// root ElementRootID) renders prop Prop from root ID.
type NewPropChildAction struct {
	Header
	ID            string `json:"id"`
	Prop          string `json:"prop"`
	ElementRootID string `json:"elementRootId"`
	ElementID     string `json:"elementId"`
}

// NewNewPropChild builds a newPropChild action.
func NewNewPropChild(rootID, prop, elementRootID, elementID string) *NewPropChildAction {
	return &NewPropChildAction{
		Header:        Header{Type: TypeNewPropChild},
		ID:            rootID,
		Prop:          prop,
		ElementRootID: elementRootID,
		ElementID:     elementID,
	}
}

func (a *NewPropChildAction) normalize(func(any) any) {}

// ProcessRootsAction carries whole subtrees keyed by the root they belong to.
type ProcessRootsAction struct {
	Header
	Roots map[string][]ElementView `json:"roots"`
}

// NewProcessRoots builds a processRoots action.
func NewProcessRoots(roots map[string][]ElementView) *ProcessRootsAction {
	return &ProcessRootsAction{
		Header: Header{Type: TypeProcessRoots},
		Roots:  roots,
	}
}

func (a *ProcessRootsAction) normalize(n func(any) any) {
	for id, views := range a.Roots {
		for i := range views {
			views[i].normalize(n)
		}
		a.Roots[id] = views
	}
}

// SetClientIDAction is the first action sent on every connection.
type SetClientIDAction struct {
	Header
	ClientID string `json:"clientId"`
}

// NewSetClientID builds a setClientId action.
func NewSetClientID(clientID string) *SetClientIDAction {
	return &SetClientIDAction{
		Header:   Header{Type: TypeSetClientID},
		ClientID: clientID,
	}
}

func (a *SetClientIDAction) normalize(func(any) any) {}

// DisplayErrorAction reports a failed callback to the client that caused it.
type DisplayErrorAction struct {
	Header
	Error string `json:"error"`
}

// NewDisplayError builds a displayError action.
func NewDisplayError(trace string) *DisplayErrorAction {
	return &DisplayErrorAction{
		Header: Header{Type: TypeDisplayError},
		Error:  trace,
	}
}

func (a *DisplayErrorAction) normalize(func(any) any) {}

// RefreshAction asks the renderer to reload custom kind registrations.
type RefreshAction struct {
	Header
}

// NewRefresh builds a refresh action.
func NewRefresh() *RefreshAction {
	return &RefreshAction{Header: Header{Type: TypeRefresh}}
}

func (a *RefreshAction) normalize(func(any) any) {}
