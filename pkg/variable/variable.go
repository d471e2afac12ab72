// Package variable provides named, versioned values shared between the
// server and connected renderers.
package variable

import (
	"sync"

	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
)

// Variable is a named value with a version counter. The version starts at 0
// and is incremented by exactly one on every Update.
type Variable struct {
	id string

	mu      sync.RWMutex
	value   any
	version uint64
}

// New creates a variable. It is not registered anywhere.
func New(id string, value any) *Variable {
	return &Variable{id: id, value: value}
}

// ID returns the variable id.
func (v *Variable) ID() string { return v.id }

// EntityID implements registry.Entity.
func (v *Variable) EntityID() string { return v.id }

// EntityCategory implements registry.Entity.
func (v *Variable) EntityCategory() registry.Category { return registry.CategoryVariable }

// Update stores value and returns the new version.
func (v *Variable) Update(value any) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	v.version++
	return v.version
}

// Value returns the current value.
func (v *Variable) Value() any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Version returns the current version.
func (v *Variable) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// View returns a consistent wire view of the variable.
func (v *Variable) View() protocol.VariableView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return protocol.VariableView{ID: v.id, Value: v.value, Version: v.version}
}
