// Package errors provides structured, coded error messages for livetree.
//
// Errors are organized into categories:
//   - dsl: layout documents that cannot be compiled (unknown kind, bad shape, missing input)
//   - config: configuration files that cannot be loaded or validated
//   - runtime: lookups and requests against a running page
//   - cli: command line usage errors
//
// Each error has a unique code (e.g., "E101") that maps to a short message
// and a documentation URL. DSL errors also carry the path of the failing node.
//
// # Usage
//
//	err := errors.New("E101").
//	    WithDetailf("no such element: %s", name).
//	    WithPath([]string{"Tabs", "Tab[1]"}).
//	    WithSuggestion("Register custom kinds with page.RegisterKind before parsing")
//
//	fmt.Println(err.Format())
package errors
