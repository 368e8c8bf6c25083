// Package transport carries JSON-RPC requests to the workflow backend and
// delivers its push notifications.
//
// Three variants implement Transport:
//
//   - Desktop wraps an in-process host bridge. A missing bridge is a fatal
//     initialization error.
//   - Socket speaks JSON-RPC over a websocket and reconnects with backoff,
//     reporting StatusReconnecting while the link is down.
//   - NATS sends requests on a request subject and subscribes to a push
//     subject, relying on the client's own reconnect handling.
//
// Pushes are placed on a Queue in arrival order. The queue exists from
// construction, so pushes that arrive before the caller starts draining it
// (for example while the initial workflow load is in flight) are kept.
package transport
