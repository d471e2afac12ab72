// Package tree implements the server-side element tree mirrored to the
// renderer.
//
// Every element belongs to exactly one root. The page owns the main root
// (id "root"); prop roots are created to hold renderer content passed into
// another element's prop or constructor argument and are owned by that
// element. Parent and root links are ids resolved through the page registry;
// the children slice is the only ownership edge.
//
// Structural mutations bump the page version through the Host and produce
// protocol actions. Mutations made while an element is still being
// initialized are absorbed silently: the action announcing the element
// carries its final state.
//
// An element is mutated by one goroutine at a time. Reads (views, snapshots)
// may run concurrently with that writer.
package tree
