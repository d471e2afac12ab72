package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeEntity struct {
	id  string
	cat Category
}

func (f *fakeEntity) EntityID() string         { return f.id }
func (f *fakeEntity) EntityCategory() Category { return f.cat }

func TestRegister_SameIDAcrossCategories(t *testing.T) {
	r := New()
	el := &fakeEntity{id: "b1", cat: CategoryElement}
	fn := &Function{ID: "b1", Fn: func(context.Context, map[string]any) error { return nil }}

	if err := r.Register(el); err != nil {
		t.Fatalf("Register(element) error: %v", err)
	}
	if err := r.Register(fn); err != nil {
		t.Fatalf("Register(function) error: %v", err)
	}

	got, ok := r.Lookup(CategoryFunction, "b1")
	if !ok || got != fn {
		t.Errorf("Lookup(function, b1) = %v, %v; want the function", got, ok)
	}
	got, ok = r.Lookup(CategoryElement, "b1")
	if !ok || got != el {
		t.Errorf("Lookup(element, b1) = %v, %v; want the element", got, ok)
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name string
		e    Entity
		want error
	}{
		{"duplicate", &fakeEntity{id: "x", cat: CategoryElement}, ErrDuplicateID},
		{"empty id", &fakeEntity{cat: CategoryElement}, ErrEmptyID},
		{"bad category", &fakeEntity{id: "y", cat: Category(99)}, ErrInvalidCategory},
	}

	r := New()
	if err := r.Register(&fakeEntity{id: "x", cat: CategoryElement}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.e); !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	a := &fakeEntity{id: "a", cat: CategoryVariable}
	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}

	// A different entity with the same id does not evict the registered one.
	r.Unregister(&fakeEntity{id: "a", cat: CategoryVariable})
	if r.Len(CategoryVariable) != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len(CategoryVariable))
	}

	r.Unregister(a)
	r.Unregister(a)
	if _, ok := r.Lookup(CategoryVariable, "a"); ok {
		t.Error("entity still registered after Unregister")
	}
}

func TestIDsAndEach(t *testing.T) {
	r := New()
	for _, id := range []string{"c", "a", "b"} {
		if err := r.Register(&fakeEntity{id: id, cat: CategoryRoot}); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, r.IDs(CategoryRoot)); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}

	var seen []string
	r.Each(CategoryRoot, func(e Entity) bool {
		seen = append(seen, e.EntityID())
		if e.EntityID() == "a" {
			r.Unregister(e)
		}
		return e.EntityID() != "b"
	})
	if diff := cmp.Diff([]string{"a", "b"}, seen); diff != "" {
		t.Errorf("Each() visited mismatch (-want +got):\n%s", diff)
	}
	if r.Len(CategoryRoot) != 2 {
		t.Errorf("Len() = %d, want 2", r.Len(CategoryRoot))
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestCategoryString(t *testing.T) {
	if got := CategoryKind.String(); got != "kind" {
		t.Errorf("String() = %q, want kind", got)
	}
	if got := Category(42).String(); got != "category(42)" {
		t.Errorf("String() = %q, want category(42)", got)
	}
}
