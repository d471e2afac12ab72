package registry

import "context"

// Inject names the variables and elements whose current values are passed to
// a function by id when it is called remotely.
type Inject struct {
	Variables []string
	Elements  []string
}

// Function is a callable registered for remote invocation.
type Function struct {
	ID     string
	Fn     func(ctx context.Context, kwargs map[string]any) error
	Inject Inject

	// Name is a human readable name, used as a default label.
	Name string
}

// EntityID implements Entity.
func (f *Function) EntityID() string { return f.ID }

// EntityCategory implements Entity.
func (f *Function) EntityCategory() Category { return CategoryFunction }
