// Package registry holds the id tables shared by a page: elements, roots,
// variables, remotely callable functions and custom element kinds.
//
// Each entity declares its own category through the Entity interface, so
// placement never depends on the concrete type. Ids are unique within a
// category only: an element and the function registered by that element may
// share an id.
package registry
