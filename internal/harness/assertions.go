package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.Type, event.Name, event.Detail)
		}
	}
	return buf.String()
}

// selects reports whether event is picked by the assertion's event type and
// name filters. Empty filters match anything.
func selects(event TraceEvent, a Assertion) bool {
	if a.Event != "" && event.Type != a.Event {
		return false
	}
	return a.Name == "" || event.Name == a.Name
}

// assertTraceContains checks that some event matches the filters and carries
// the expected detail (subset match).
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if selects(event, a) && matchDetail(event.Detail, a.Detail) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %q with detail %v", a.Event, a.Name, a.Detail),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the named events appear in order. Events need
// not be consecutive, and a name may repeat.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for i, name := range a.Names {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if (a.Event == "" || event.Type == a.Event) && event.Name == name {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Names),
				Actual:   fmt.Sprintf("%q (position %d) not found after %v", name, i, a.Names[:i]),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of matching events.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if selects(event, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events named %q", a.Count, a.Event, a.Name),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the value at a JSON pointer in the final workflow.
func assertFinalState(result *Result, a Assertion) error {
	actual, found, err := lookupPointer(result.Workflow, a.Path)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	if a.Absent {
		if found {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("nothing at %s", a.Path),
				Actual:   fmt.Sprintf("%v", actual),
			}
		}
		return nil
	}
	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", a.Path, a.Expect),
			Actual:   "path not found",
		}
	}
	if !valuesEqual(actual, a.Expect) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", a.Path, a.Expect),
			Actual:   fmt.Sprintf("%s = %v", a.Path, actual),
		}
	}
	return nil
}

// assertSelection checks the final selection exactly, order-insensitive.
func assertSelection(result *Result, a Assertion) error {
	if !sameIDs(result.Selection.Nodes, a.Nodes) || !sameIDs(result.Selection.Annotations, a.Annotations) {
		return &AssertionError{
			Type:     AssertSelection,
			Expected: fmt.Sprintf("nodes %v annotations %v", a.Nodes, a.Annotations),
			Actual:   fmt.Sprintf("nodes %v annotations %v", result.Selection.Nodes, result.Selection.Annotations),
		}
	}
	return nil
}

// assertView checks the snapshot id and consistency flag of the final view.
func assertView(result *Result, a Assertion) error {
	if a.SnapshotID != "" && result.SnapshotID != a.SnapshotID {
		return &AssertionError{
			Type:     AssertView,
			Expected: fmt.Sprintf("snapshot id %q", a.SnapshotID),
			Actual:   fmt.Sprintf("snapshot id %q", result.SnapshotID),
		}
	}
	if a.Inconsistent != nil && result.Inconsistent != *a.Inconsistent {
		return &AssertionError{
			Type:     AssertView,
			Expected: fmt.Sprintf("inconsistent = %t", *a.Inconsistent),
			Actual:   fmt.Sprintf("inconsistent = %t", result.Inconsistent),
		}
	}
	return nil
}

func sameIDs(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	a := slices.Clone(actual)
	e := slices.Clone(expected)
	slices.Sort(a)
	slices.Sort(e)
	return slices.Equal(a, e)
}

// lookupPointer resolves an RFC 6901 JSON pointer against a decoded JSON
// document. An unresolvable path reports found=false; only a malformed
// pointer is an error.
func lookupPointer(doc any, pointer string) (value any, found bool, err error) {
	if pointer == "" {
		return doc, doc != nil, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false, fmt.Errorf("path %q must start with /", pointer)
	}

	cur := doc
	for _, tok := range strings.Split(pointer[1:], "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[tok]
			if !ok {
				return nil, false, nil
			}
			cur = v
		case []any:
			i, convErr := strconv.Atoi(tok)
			if convErr != nil || i < 0 || i >= len(node) {
				return nil, false, nil
			}
			cur = node[i]
		default:
			return nil, false, nil
		}
	}
	return cur, true, nil
}

// matchDetail checks if actual detail contains all expected keys (subset
// match). Extra keys in actual are ignored.
func matchDetail(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	actualMap, ok := normalize(actual).(map[string]any)
	if !ok {
		return false
	}
	for key, expectedVal := range expected {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values after normalizing both to their JSON
// form, so an int from YAML equals a float64 decoded from JSON.
func valuesEqual(actual, expected any) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

// normalize round-trips v through JSON. Values that cannot be encoded are
// returned unchanged.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertSelection:
			err = assertSelection(result, assertion)
		case AssertView:
			err = assertView(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
