// Package client wires one editing session together.
//
// A Session owns a transport, the dispatcher reading its pushes, the patch
// synchronizer holding the workflow and the interaction engine issuing
// commands. Pushes are processed by a single loop (Run) in arrival order;
// the synchronizer is the only writer of the workflow document and every
// other component reads the immutable View it publishes.
//
// Resyncs are requested from two places: the consistency check, when a
// snapshot id arrives while the view is flagged inconsistent, and the
// transport status watcher, after a reconnect. Both only set a flag and
// wake the loop; the loop performs the round trip itself so a reload is
// never interleaved with a patch batch.
package client
