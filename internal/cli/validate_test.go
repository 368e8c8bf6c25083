package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
transport:
  kind: socket
  url: ws://localhost:8080/rpc
project: proj-1
workflow: root
journal: journal.db
canvas:
  grid: {x: 10, y: 10}
`

func TestValidate_ValidYAML(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "client.yaml", validConfig)

	out, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid")
	assert.Contains(t, out, "Transport: socket (ws://localhost:8080/rpc)")
	assert.Contains(t, out, `Workflow: proj-1/root mounted at "activeWorkflow"`)
	assert.Contains(t, out, "Journal: journal.db")
	assert.NotContains(t, out, "Grid:")
}

func TestValidate_VerboseShowsGeometry(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "client.yaml", validConfig)

	out, _, err := execute(t, "-v", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Grid: 10x10")
	assert.Contains(t, out, "Reconnect:")
}

func TestValidate_ValidCUE(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "client.cue", `
transport: {
	kind: "nats"
	url:  "nats://localhost:4222"
}
project:  "proj-1"
workflow: "root"
`)

	out, _, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	summary := data["summary"].(map[string]any)
	assert.Equal(t, "nats", summary["transport"])
	assert.Equal(t, "activeWorkflow", summary["mount"])
}

func TestValidate_MissingFields(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "client.yaml", "transport: {kind: socket, url: ws://x}\n")

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "MISSING_PARAMETER project: is required")
	assert.Contains(t, out, "MISSING_PARAMETER workflow: is required")
}

func TestValidate_MissingFieldsJSON(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "client.yaml", "transport: {kind: socket, url: ws://x}\n")

	out, _, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["valid"])
	assert.Len(t, data["problems"], 2)
}

func TestValidate_UnknownField(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "client.yaml", validConfig+"projekt: typo\n")

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "PARSE_ERROR")
}

func TestValidate_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"not found", dir + "/missing.yaml"},
		{"unsupported extension", writeTestFile(t, dir, "client.toml", "project = 'x'\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "validate", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestValidate_RequiresArgument(t *testing.T) {
	_, _, err := execute(t, "validate")
	assert.Error(t, err)
}
