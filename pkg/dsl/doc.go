// Package dsl compiles the nested layout language into a tree of Nodes.
//
// A document is a string, a sequence or a single-key mapping:
//
//	Doc    := string | [Doc...] | {Kind: Value}
//	Value  := nil | string | [ConfigBlock?, Child...]
//	Config := [(field | {key: scalar | {_: Doc}})...]
//
// String sources are decoded as YAML first. A sequence is sugar for a div
// wrapping every item. Keys starting with a lowercase letter name a raw HTML
// tag. A mapping {$: name} or {$: [name, {default: v}]} anywhere in the
// document is replaced by the named input before the structure is parsed.
//
// Parsing is pure: nothing is registered or created until the resulting
// Node tree is built into an element tree.
package dsl
