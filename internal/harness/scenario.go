package harness

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted editing session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project and WorkflowID address the workflow. They default to "p1" and
	// "root".
	Project    string `yaml:"project,omitempty"`
	WorkflowID string `yaml:"workflow_id,omitempty"`

	// Workflow is served by the scripted backend for every getWorkflow
	// call. Reload, if set, is served for calls after the first.
	Workflow map[string]any `yaml:"workflow"`
	Reload   map[string]any `yaml:"reload,omitempty"`

	// SnapshotID is served with Workflow, ReloadSnapshotID with Reload.
	SnapshotID       string `yaml:"snapshot_id,omitempty"`
	ReloadSnapshotID string `yaml:"reload_snapshot_id,omitempty"`

	// RejectCommands makes the backend answer every command with an error.
	RejectCommands bool `yaml:"reject_commands,omitempty"`

	// Canvas overrides interaction geometry.
	Canvas *CanvasSettings `yaml:"canvas,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// CanvasSettings overrides the engine's defaults. Zero fields keep them.
type CanvasSettings struct {
	GridX              float64 `yaml:"grid_x,omitempty"`
	GridY              float64 `yaml:"grid_y,omitempty"`
	NodeSize           float64 `yaml:"node_size,omitempty"`
	PortHoverTolerance float64 `yaml:"port_hover_tolerance,omitempty"`
}

// Step is one scripted action. Exactly one field is set.
type Step struct {
	Push        map[string]any `yaml:"push,omitempty"`
	PushRaw     *string        `yaml:"push_raw,omitempty"`
	PointerDown *PointerStep   `yaml:"pointer_down,omitempty"`
	PointerMove *PointerStep   `yaml:"pointer_move,omitempty"`
	PointerUp   *PointerStep   `yaml:"pointer_up,omitempty"`
	Cancel      bool           `yaml:"cancel,omitempty"`
	Zoom        *ZoomStep      `yaml:"zoom,omitempty"`
	Pan         *PanStep       `yaml:"pan,omitempty"`
	Select      *SelectStep    `yaml:"select,omitempty"`
	Switch      *SwitchStep    `yaml:"switch,omitempty"`
	Resync      bool           `yaml:"resync,omitempty"`
}

// PointerStep is a pointer event in screen coordinates.
type PointerStep struct {
	Pointer int     `yaml:"pointer"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	// Target is node, annotation, port or canvas (the default).
	Target string `yaml:"target,omitempty"`
	ID     string `yaml:"id,omitempty"`
	// Side and Port address a port target.
	Side   string `yaml:"side,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	NoSnap bool   `yaml:"no_snap,omitempty"`
	Toggle bool   `yaml:"toggle,omitempty"`
}

// ZoomStep zooms by Factor around the screen pivot (X, Y).
type ZoomStep struct {
	Factor float64 `yaml:"factor"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
}

// PanStep pans the viewport by a screen delta.
type PanStep struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// SelectStep replaces the local selection.
type SelectStep struct {
	Nodes       []string `yaml:"nodes,omitempty"`
	Annotations []string `yaml:"annotations,omitempty"`
}

// SwitchStep switches to another workflow.
type SwitchStep struct {
	Project  string `yaml:"project"`
	Workflow string `yaml:"workflow"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Event and Name select trace events (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`
	Name  string `yaml:"name,omitempty"`

	// Detail is matched as a subset of the event detail (trace_contains).
	Detail map[string]any `yaml:"detail,omitempty"`

	// Names is the expected order of event names (trace_order).
	Names []string `yaml:"names,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Path is a JSON pointer into the final workflow (final_state).
	// Expect is the value there; Absent asserts nothing is there.
	Path   string `yaml:"path,omitempty"`
	Expect any    `yaml:"expect,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`

	// Nodes and Annotations are the expected selection (selection).
	Nodes       []string `yaml:"nodes,omitempty"`
	Annotations []string `yaml:"annotations,omitempty"`

	// SnapshotID and Inconsistent describe the expected view (view).
	SnapshotID   string `yaml:"snapshot_id,omitempty"`
	Inconsistent *bool  `yaml:"inconsistent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertSelection     = "selection"
	AssertView          = "view"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields and missing required fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every .yaml and .yml scenario under dir, sorted by path.
// A path naming a single file loads just that file.
func LoadDir(dir string) ([]*Scenario, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	if !info.IsDir() {
		s, err := LoadScenario(dir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		return []*Scenario{s}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", p, s.Name, prev)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Workflow == nil {
		return fmt.Errorf("workflow is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	count := func(ok bool) {
		if ok {
			set++
		}
	}
	count(step.Push != nil)
	count(step.PushRaw != nil)
	count(step.PointerDown != nil)
	count(step.PointerMove != nil)
	count(step.PointerUp != nil)
	count(step.Cancel)
	count(step.Zoom != nil)
	count(step.Pan != nil)
	count(step.Select != nil)
	count(step.Switch != nil)
	count(step.Resync)

	switch {
	case set == 0:
		return fmt.Errorf("no action")
	case set > 1:
		return fmt.Errorf("%d actions in one step", set)
	}
	if step.PointerDown != nil {
		switch step.PointerDown.Target {
		case "", "canvas", "node", "annotation":
		case "port":
			if step.PointerDown.Side != "in" && step.PointerDown.Side != "out" {
				return fmt.Errorf("port target needs side in or out, got %q", step.PointerDown.Side)
			}
		default:
			return fmt.Errorf("unknown pointer target %q", step.PointerDown.Target)
		}
	}
	if step.Zoom != nil && step.Zoom.Factor <= 0 {
		return fmt.Errorf("zoom factor must be positive")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
		if a.Expect == nil && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertSelection:
	case AssertView:
		if a.SnapshotID == "" && a.Inconsistent == nil {
			return fmt.Errorf("assertions[%d]: snapshot_id or inconsistent is required for view", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
