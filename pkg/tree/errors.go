package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoved is returned (or carried by a ContractError panic) when an
	// operation targets a removed element.
	ErrRemoved = errors.New("tree: element removed")

	// ErrChildrenNotAllowed is returned when adding a child to a leaf kind.
	ErrChildrenNotAllowed = errors.New("tree: children not allowed")

	// ErrDuplicateID is returned when a caller supplied id is already used.
	ErrDuplicateID = errors.New("tree: duplicate id")

	// ErrDuplicateProp is returned when a prop name is already a literal prop
	// or a prop root.
	ErrDuplicateProp = errors.New("tree: duplicate prop")

	// ErrUnknownKind is returned for a kind name that is neither built in nor
	// registered.
	ErrUnknownKind = errors.New("tree: unknown kind")

	// ErrUnknownMethod is returned by Call for a method the kind does not define.
	ErrUnknownMethod = errors.New("tree: unknown method")

	// ErrInvalidArgs is returned when a kind receives arguments it does not
	// declare or of the wrong type.
	ErrInvalidArgs = errors.New("tree: invalid arguments")

	// ErrNoParent is carried by a ContractError when removing an element that
	// has no parent.
	ErrNoParent = errors.New("tree: element has no parent")
)

// ContractError is the panic value raised when a caller breaks the element
// contract, such as mutating a removed element.
type ContractError struct {
	ID  string
	Op  string
	Err error
}

// Error returns the error message with element context.
func (e *ContractError) Error() string {
	return fmt.Sprintf("tree: %s %s: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ContractError) Unwrap() error {
	return e.Err
}

func contractPanic(id, op string, err error) {
	panic(&ContractError{ID: id, Op: op, Err: err})
}
