// Package server moves messages and actions between a page and its
// renderers.
//
// Three pieces cooperate:
//
//   - Handler is the single worker that applies inbound messages (function
//     calls and variable updates) to the page, one at a time. The REST façade
//     runs its mutations on the same worker through Do.
//   - Hub owns the set of open connections on its own goroutine and fans
//     encoded actions out to all of them or to one target.
//   - Server is the HTTP surface: the index document, the initial-state
//     snapshot, the custom kind script, the WebSocket endpoint, Prometheus
//     metrics and the /api REST façade.
//
// The page itself stays outside this package; the server sees it through the
// Page and Dispatcher interfaces.
//
// # Connection Lifecycle
//
// A WebSocket connection is registered with the hub on upgrade and receives
// a fresh client id in a setClientId action. Inbound frames are decoded,
// stamped with the connection's client id when they carry none, and queued on
// the handler. A failing message is reported back to the client that sent it
// as a displayError action.
//
// Delivery is best effort. A connection whose send queue is full is closed;
// the renderer reconnects and reloads /initial-state.
package server
