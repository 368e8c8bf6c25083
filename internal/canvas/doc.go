// Package canvas turns pointer input into workflow operations.
//
// It has four independent algorithms and one state machine that drives them:
//
//   - Viewport: screen <-> canvas coordinate conversion, zoom and pan
//   - rectangle selection with incremental show/hide/clear previews
//   - node and annotation move with grid snapping
//   - connector snapping to the nearest compatible port
//
// The Engine holds at most one DragSession. Each pointer callback is a
// transition Idle -> Dragging -> {Committing, Aborting} -> Idle. Events from
// a pointer other than the one that started the session, and events after
// an abort, are ignored.
//
// The Engine reads the workflow through a Source and never mutates it;
// backend changes are requested through a CommandSink and become visible
// only when the confirming patch arrives.
//
// Thread-safety: an Engine must be driven from a single goroutine.
package canvas
