// Package protocol defines the JSON wire protocol between a livetree page and
// its browser renderer.
//
// # Outbound actions
//
// Every state change on the server becomes one action object:
//
//	{"type": "updatePath", "version": 42, "id": "...", "rootId": "root", "updateData": {...}}
//
// The envelope always carries the action type and the page version at the
// time of dispatch. The version is a single, page-wide, strictly increasing
// counter; a renderer that sees a gap can fetch a fresh snapshot from the
// initial-state endpoint. The server never replays missed actions.
//
// Action types:
//
//   - newElement: a single element was created under an existing parent
//   - updatePath: a sub-path of an element's data or props changed
//   - removeElements: elements, roots and variables to drop, depth first
//   - newVariable / updateVariable: variable lifecycle
//   - newPropChild: an element gained a prop root
//   - processRoots: a batch of whole subtrees built from one DSL document
//   - setClientId: first action on every connection
//   - displayError: a callback failed for the client that triggered it
//   - refresh: custom element kinds changed; the renderer reloads them
//
// # Inbound messages
//
// The renderer sends two kinds of messages:
//
//	{"type": "call", "functionId": "...", "kwargs": {...}, "clientId": "..."}
//	{"type": "updateVariable", "variableId": "...", "value": ..., "clientId": "..."}
//
// # Encoding
//
// Payloads (element data and props) are free-form. Before marshalling, the
// Codec walks them and applies serializers: element handles become root
// references ({"_root": id}) and queue values become arrays. Pages may add
// their own serializers for custom kinds.
package protocol
