// Package dispatch decodes push envelopes and routes them to registered handlers.
//
// Routing rules:
//   - A simple envelope is delivered to the handler registered under its
//     eventType, with the payload passed through unchanged.
//   - A composite envelope names several sub-events joined by ":". It is
//     delivered to the CompositeEvent handler only if that handler and every
//     named sub-handler are registered. Otherwise no handler runs at all.
//   - Handler failures and panics are logged and swallowed. The push channel
//     keeps running.
//
// The Registry is an explicit object created once per process and shared by
// reference with every feature module that registers handlers.
package dispatch
