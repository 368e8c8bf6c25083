package client

import (
	"fmt"
	"log/slog"

	"github.com/roach88/flowcanvas/internal/canvas"
	"github.com/roach88/flowcanvas/internal/config"
	"github.com/roach88/flowcanvas/internal/transport"
)

// NewTransport builds the transport selected by cfg. host is used only by
// the desktop transport and may be nil otherwise.
func NewTransport(cfg config.Config, host transport.HostBridge, logger *slog.Logger) (transport.Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	backoff, err := cfg.Backoff()
	if err != nil {
		return nil, &transport.InitError{Code: transport.ErrCodeMissingParameter, Message: "reconnect delays", Err: err}
	}

	tc := cfg.Transport
	switch tc.Kind {
	case config.KindSocket:
		return transport.NewSocket(tc.URL,
			transport.WithBackoff(backoff),
			transport.WithSocketLogger(logger),
		)
	case config.KindNATS:
		return transport.NewNATS(tc.URL,
			transport.WithSubjects(tc.RequestSubject, tc.PushSubject),
			transport.WithNATSBackoff(backoff),
			transport.WithNATSLogger(logger),
		)
	case config.KindDesktop:
		return transport.NewDesktop(host, transport.WithDesktopLogger(logger)), nil
	default:
		return nil, &transport.InitError{
			Code:    transport.ErrCodeUnknownKind,
			Message: fmt.Sprintf("transport kind %q", tc.Kind),
		}
	}
}

// FromConfig builds the transport and a session for cfg. Options given
// here are applied after the ones derived from cfg.
func FromConfig(cfg config.Config, host transport.HostBridge, opts ...Option) (*Session, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	t, err := NewTransport(cfg, host, o.logger)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithMount(cfg.Mount),
		WithEngineOptions(canvas.WithConfig(cfg.EngineConfig())),
		WithViewportOptions(cfg.ViewportOptions()...),
	}
	s, err := New(t, cfg.Project, cfg.Workflow, append(base, opts...)...)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return s, nil
}
