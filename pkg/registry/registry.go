package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Category tags the table an entity lives in.
type Category uint8

const (
	CategoryElement Category = iota
	CategoryRoot
	CategoryVariable
	CategoryFunction
	CategoryKind

	numCategories
)

var categoryNames = [numCategories]string{
	CategoryElement:  "element",
	CategoryRoot:     "root",
	CategoryVariable: "variable",
	CategoryFunction: "function",
	CategoryKind:     "kind",
}

// String returns the category name.
func (c Category) String() string {
	if c < numCategories {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Entity is anything that can be registered.
type Entity interface {
	EntityID() string
	EntityCategory() Category
}

var (
	// ErrDuplicateID is returned when an id is already taken within a category.
	ErrDuplicateID = errors.New("registry: duplicate id")

	// ErrInvalidCategory is returned for an entity with an unknown category tag.
	ErrInvalidCategory = errors.New("registry: invalid category")

	// ErrEmptyID is returned when registering an entity without an id.
	ErrEmptyID = errors.New("registry: empty id")
)

// Registry is a set of disjoint id tables, one per category.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables [numCategories]map[string]Entity
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.tables {
		r.tables[i] = make(map[string]Entity)
	}
	return r
}

// Register adds e to the table of its category.
func (r *Registry) Register(e Entity) error {
	cat := e.EntityCategory()
	if cat >= numCategories {
		return fmt.Errorf("%w: %d", ErrInvalidCategory, cat)
	}
	id := e.EntityID()
	if id == "" {
		return fmt.Errorf("%w: %s", ErrEmptyID, cat)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[cat][id]; ok {
		return fmt.Errorf("%w: %s %q", ErrDuplicateID, cat, id)
	}
	r.tables[cat][id] = e
	return nil
}

// Unregister removes e. Removing an entity that is not registered, or whose
// id is now held by a different entity, is a no-op.
func (r *Registry) Unregister(e Entity) {
	cat := e.EntityCategory()
	if cat >= numCategories {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tables[cat][e.EntityID()]; ok && cur == e {
		delete(r.tables[cat], e.EntityID())
	}
}

// Lookup returns the entity registered under id in cat.
func (r *Registry) Lookup(cat Category, id string) (Entity, bool) {
	if cat >= numCategories {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[cat][id]
	return e, ok
}

// IDs returns the sorted ids registered in cat.
func (r *Registry) IDs(cat Category) []string {
	if cat >= numCategories {
		return nil
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.tables[cat]))
	for id := range r.tables[cat] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Len returns the number of entities in cat.
func (r *Registry) Len(cat Category) int {
	if cat >= numCategories {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables[cat])
}

// Each calls fn for every entity in cat in id order. fn runs without the
// registry lock held, so it may register or unregister entities.
func (r *Registry) Each(cat Category, fn func(Entity) bool) {
	for _, id := range r.IDs(cat) {
		e, ok := r.Lookup(cat, id)
		if !ok {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// NewID returns a fresh, lexically sortable id.
func NewID() string {
	return ulid.Make().String()
}
