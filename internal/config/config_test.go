package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowcanvas/internal/canvas"
	"github.com/roach88/flowcanvas/internal/transport"
)

const validYAML = `
transport:
  kind: socket
  url: ws://localhost:8080/rpc
  reconnect:
    initial: 100ms
    max: 5s
project: proj-1
workflow: root
journal: journal.db
canvas:
  grid: {x: 10, y: 10}
  zoom: {min: 0.5, max: 3}
`

const validCUE = `
transport: {
	kind: "nats"
	url:  "nats://localhost:4222"
	push_subject: "wf.push"
}
project:  "proj-1"
workflow: "root"
canvas: node_size: 48
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "client.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, KindSocket, cfg.Transport.Kind)
	assert.Equal(t, "ws://localhost:8080/rpc", cfg.Transport.URL)
	assert.Equal(t, "proj-1", cfg.Project)
	assert.Equal(t, "root", cfg.Workflow)
	assert.Equal(t, "activeWorkflow", cfg.Mount, "default mount")
	assert.Equal(t, "journal.db", cfg.Journal)
	assert.Equal(t, GridConfig{X: 10, Y: 10}, cfg.Canvas.Grid)
	assert.Equal(t, float64(canvas.DefaultNodeSize), cfg.Canvas.NodeSize)

	b, err := cfg.Backoff()
	require.NoError(t, err)
	assert.Equal(t, transport.Backoff{Initial: 100 * time.Millisecond, Max: 5 * time.Second}, b)
}

func TestLoad_CUE(t *testing.T) {
	cfg, err := Load(writeFile(t, "client.cue", validCUE))
	require.NoError(t, err)

	assert.Equal(t, KindNATS, cfg.Transport.Kind)
	assert.Equal(t, "wf.push", cfg.Transport.PushSubject)
	assert.Equal(t, transport.DefaultRequestSubject, cfg.Transport.RequestSubject)
	assert.Equal(t, 48.0, cfg.Canvas.NodeSize)
	assert.Equal(t, GridConfig{X: canvas.DefaultGridSize, Y: canvas.DefaultGridSize}, cfg.Canvas.Grid)
}

func TestLoad_CUESchemaViolation(t *testing.T) {
	_, err := Load(writeFile(t, "bad.cue", `
transport: kind: "carrier-pigeon"
project: "p"
workflow: "w"
`))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeSchemaError, ce.Code)
}

func TestLoad_CUEUnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "bad.cue", `
transport: {kind: "desktop", colour: "red"}
project: "p"
workflow: "w"
`))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoad_CUESyntaxError(t *testing.T) {
	_, err := Load(writeFile(t, "bad.cue", `transport: {`))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeParse, ce.Code)
}

func TestLoad_YAMLUnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "transport:\n  kind: desktop\n  colour: red\nproject: p\nworkflow: w\n"))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeParse, ce.Code)
}

func TestLoad_MissingParameters(t *testing.T) {
	_, err := Load(writeFile(t, "client.yaml", "transport:\n  kind: socket\n"))
	require.Error(t, err)
	assert.True(t, IsMissing(err))
	assert.Contains(t, err.Error(), "transport.url")
	assert.Contains(t, err.Error(), "project")
	assert.Contains(t, err.Error(), "workflow")
}

func TestLoad_EmptyFileIsMissingEverything(t *testing.T) {
	_, err := Load(writeFile(t, "client.yaml", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport.kind")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "client.toml", "x = 1"))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeFormat, ce.Code)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeNotFound, ce.Code)
}

func TestValidate_Ranges(t *testing.T) {
	cfg := Default()
	cfg.Transport.Kind = KindDesktop
	cfg.Project, cfg.Workflow = "p", "w"
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Canvas.Zoom = ZoomConfig{Min: 2, Max: 1}
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Transport.Reconnect.Initial = "soon"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Transport.Kind = "smoke-signal"
	assert.Error(t, bad.Validate())
	assert.False(t, IsMissing(bad.Validate()))
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.Canvas.Grid = GridConfig{X: 8, Y: 4}
	ec := cfg.EngineConfig()

	assert.Equal(t, canvas.Grid{X: 8, Y: 4}, ec.Grid)
	assert.Equal(t, float64(canvas.DefaultNodeSize), ec.NodeSize)
	require.NotNil(t, ec.Layout)
	require.NotNil(t, ec.Compatible)

	vp := canvas.NewViewport(cfg.ViewportOptions()...)
	vp.ZoomAround(1000, canvas.Point{})
	assert.Equal(t, canvas.DefaultMaxZoom, vp.Transform().Zoom)
}
