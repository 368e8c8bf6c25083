// Package harness runs scripted editing scenarios against a client session.
//
// A scenario supplies the workflow the scripted backend serves, then a list
// of steps: backend pushes, pointer gestures and session operations. The
// session talks to the backend through a desktop transport over an
// in-memory host bridge, so every request and push takes the same path it
// takes in production.
//
// # Scenario Format
//
//	name: move_snaps_to_grid
//	description: "Dragging a node commits one snapped translate"
//	workflow:
//	  nodes:
//	    n1: {id: n1, kind: node, position: {x: 0, y: 0}}
//	steps:
//	  - pointer_down: {pointer: 1, x: 10, y: 10, target: node, id: n1}
//	  - pointer_move: {pointer: 1, x: 23, y: 12}
//	  - pointer_up: {pointer: 1, x: 23, y: 12}
//	assertions:
//	  - type: trace_contains
//	    event: command
//	    name: translate
//	    detail: {translation: {x: 15, y: 0}}
//
// # Trace
//
// The run records one trace event per observable effect, numbered by a
// deterministic clock:
//
//   - request: a call the session made to the backend
//   - command: the command object of an executeWorkflowCommand request
//   - push: an envelope handed to the dispatcher, accepted or rejected
//   - batch: a patch batch applied by the synchronizer
//   - preview: one group of incremental selection previews
//   - error: a step that failed, such as a gesture whose command was rejected
//
// # Assertion Types
//
//   - trace_contains: an event of the given type and name whose detail
//     contains the expected fields
//   - trace_order: event names appear in the given order
//   - trace_count: number of events of a type (and optionally name)
//   - final_state: the value at a JSON pointer into the final workflow
//   - selection: the final local selection
//   - view: the final snapshot id and inconsistent flag
//
// Traces are compared against golden files with RunWithGolden.
package harness
