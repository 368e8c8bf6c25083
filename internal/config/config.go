package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/flowcanvas/internal/canvas"
	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/transport"
)

// Transport kinds.
const (
	KindSocket  = "socket"
	KindNATS    = "nats"
	KindDesktop = "desktop"
)

// Config is the client configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport" json:"transport"`
	Project   string          `yaml:"project" json:"project"`
	Workflow  string          `yaml:"workflow" json:"workflow"`
	Mount     string          `yaml:"mount" json:"mount"`
	// Journal is the SQLite journal path. Empty disables journaling.
	Journal string       `yaml:"journal" json:"journal"`
	Canvas  CanvasConfig `yaml:"canvas" json:"canvas"`
}

// TransportConfig selects and parameterizes the transport.
type TransportConfig struct {
	Kind           string          `yaml:"kind" json:"kind"`
	URL            string          `yaml:"url" json:"url"`
	RequestSubject string          `yaml:"request_subject" json:"request_subject"`
	PushSubject    string          `yaml:"push_subject" json:"push_subject"`
	Reconnect      ReconnectConfig `yaml:"reconnect" json:"reconnect"`
}

// ReconnectConfig holds reconnect delays as Go duration strings.
type ReconnectConfig struct {
	Initial string `yaml:"initial" json:"initial"`
	Max     string `yaml:"max" json:"max"`
}

// CanvasConfig holds interaction geometry.
type CanvasConfig struct {
	Grid               GridConfig `yaml:"grid" json:"grid"`
	NodeSize           float64    `yaml:"node_size" json:"node_size"`
	PortHoverTolerance float64    `yaml:"port_hover_tolerance" json:"port_hover_tolerance"`
	PortSpacing        float64    `yaml:"port_spacing" json:"port_spacing"`
	Zoom               ZoomConfig `yaml:"zoom" json:"zoom"`
}

// GridConfig is the snapping cell size.
type GridConfig struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// ZoomConfig bounds the zoom factor.
type ZoomConfig struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Default returns a Config with every optional field at its default.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mount == "" {
		c.Mount = snapshot.DefaultMount
	}
	if c.Transport.RequestSubject == "" {
		c.Transport.RequestSubject = transport.DefaultRequestSubject
	}
	if c.Transport.PushSubject == "" {
		c.Transport.PushSubject = transport.DefaultPushSubject
	}
	if c.Transport.Reconnect.Initial == "" {
		c.Transport.Reconnect.Initial = transport.DefaultInitialDelay.String()
	}
	if c.Transport.Reconnect.Max == "" {
		c.Transport.Reconnect.Max = transport.DefaultMaxDelay.String()
	}
	cv := &c.Canvas
	if cv.Grid == (GridConfig{}) {
		cv.Grid = GridConfig{X: canvas.DefaultGridSize, Y: canvas.DefaultGridSize}
	}
	if cv.NodeSize == 0 {
		cv.NodeSize = canvas.DefaultNodeSize
	}
	if cv.PortHoverTolerance == 0 {
		cv.PortHoverTolerance = canvas.DefaultPortHoverTolerance
	}
	if cv.PortSpacing == 0 {
		cv.PortSpacing = canvas.DefaultPortSpacing
	}
	if cv.Zoom.Min == 0 {
		cv.Zoom.Min = canvas.DefaultMinZoom
	}
	if cv.Zoom.Max == 0 {
		cv.Zoom.Max = canvas.DefaultMaxZoom
	}
}

// Validate checks required parameters and value ranges. All problems are
// joined into one error.
func (c Config) Validate() error {
	var errs []error
	missing := func(field string) {
		errs = append(errs, &ConfigError{Code: ErrCodeMissing, Field: field, Message: "is required"})
	}
	invalid := func(field, msg string) {
		errs = append(errs, &ConfigError{Code: ErrCodeInvalid, Field: field, Message: msg})
	}

	switch c.Transport.Kind {
	case KindSocket, KindNATS:
		if c.Transport.URL == "" {
			missing("transport.url")
		}
	case KindDesktop:
	case "":
		missing("transport.kind")
	default:
		invalid("transport.kind", fmt.Sprintf("unknown transport %q", c.Transport.Kind))
	}
	if c.Project == "" {
		missing("project")
	}
	if c.Workflow == "" {
		missing("workflow")
	}

	if _, err := c.Backoff(); err != nil {
		invalid("transport.reconnect", err.Error())
	}

	cv := c.Canvas
	if cv.Grid.X < 0 || cv.Grid.Y < 0 {
		invalid("canvas.grid", "cell size must not be negative")
	}
	if cv.NodeSize <= 0 {
		invalid("canvas.node_size", "must be positive")
	}
	if cv.PortHoverTolerance < 0 {
		invalid("canvas.port_hover_tolerance", "must not be negative")
	}
	if cv.Zoom.Min <= 0 || cv.Zoom.Max < cv.Zoom.Min {
		invalid("canvas.zoom", fmt.Sprintf("need 0 < min <= max, got [%v, %v]", cv.Zoom.Min, cv.Zoom.Max))
	}

	return errors.Join(errs...)
}

// Backoff parses the reconnect delays.
func (c Config) Backoff() (transport.Backoff, error) {
	initial, err := time.ParseDuration(c.Transport.Reconnect.Initial)
	if err != nil {
		return transport.Backoff{}, fmt.Errorf("initial: %w", err)
	}
	max, err := time.ParseDuration(c.Transport.Reconnect.Max)
	if err != nil {
		return transport.Backoff{}, fmt.Errorf("max: %w", err)
	}
	if initial <= 0 || max < initial {
		return transport.Backoff{}, fmt.Errorf("need 0 < initial <= max, got %s, %s", initial, max)
	}
	return transport.Backoff{Initial: initial, Max: max}, nil
}

// EngineConfig returns the interaction geometry.
func (c Config) EngineConfig() canvas.Config {
	cv := c.Canvas
	return canvas.Config{
		Grid:               canvas.Grid{X: cv.Grid.X, Y: cv.Grid.Y},
		NodeSize:           cv.NodeSize,
		PortHoverTolerance: cv.PortHoverTolerance,
		Layout:             canvas.EvenPortLayout(cv.NodeSize, cv.PortSpacing),
		Compatible:         canvas.DefaultCompatibility,
	}
}

// ViewportOptions returns the viewport zoom limits.
func (c Config) ViewportOptions() []canvas.ViewportOption {
	return []canvas.ViewportOption{canvas.WithZoomLimits(c.Canvas.Zoom.Min, c.Canvas.Zoom.Max)}
}
