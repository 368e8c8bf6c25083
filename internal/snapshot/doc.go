// Package snapshot owns the client-side copy of the workflow document.
//
// The Synchronizer is the only writer. Readers obtain an immutable *View
// that is replaced, never mutated, after each applied batch, so a renderer
// never observes a partially patched workflow.
//
// Backend patch paths are relative to the workflow root; the Synchronizer
// mounts the workflow under a single segment of its document (default
// "activeWorkflow") and rebases every path under it before applying.
package snapshot
