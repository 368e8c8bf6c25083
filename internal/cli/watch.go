package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/flowcanvas/internal/client"
	"github.com/roach88/flowcanvas/internal/config"
	"github.com/roach88/flowcanvas/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Config   string
	Database string        // overrides the config's journal path
	For      time.Duration // 0 = until interrupted
}

// WatchResult describes the session when watching stopped.
type WatchResult struct {
	SessionID    string `json:"session_id"`
	Project      string `json:"project"`
	Workflow     string `json:"workflow"`
	SnapshotID   string `json:"snapshot_id"`
	Version      int64  `json:"version"`
	Nodes        int    `json:"nodes"`
	Connections  int    `json:"connections"`
	Inconsistent bool   `json:"inconsistent"`
	Digest       string `json:"digest"`
	Journal      string `json:"journal,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load a workflow and follow the backend's patch stream",
		Long: `Connect to the backend named in the configuration, load the workflow and
apply every pushed patch until interrupted. With a journal configured, every
envelope, snapshot and batch is recorded for later replay.

Logs go to stderr; the final state is printed on exit.

Examples:
  flowcanvas watch --config client.yaml
  flowcanvas watch --config client.cue --db ./journal.db
  flowcanvas watch --config client.yaml --for 30s --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to client config (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides config)")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (0 = until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		_ = out.Error(CodeConfig, err.Error(), configProblems(err))
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	if cfg.Transport.Kind == config.KindDesktop {
		return NewExitError(ExitCommandError, "the desktop transport needs an embedding host; use socket or nats")
	}
	if opts.Database != "" {
		cfg.Journal = opts.Database
	}

	sessionID := client.UUIDv7Generator{}.Generate()
	logger = logger.With("session", sessionID)
	sessionOpts := []client.Option{client.WithLogger(logger)}

	if cfg.Journal != "" {
		st, err := store.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		sessionOpts = append(sessionOpts, client.WithJournal(st.Journal(sessionID, logger)))
		logger.Info("journal ready", "path", cfg.Journal)
	}

	session, err := client.FromConfig(cfg, nil, sessionOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.For > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.For)
		defer cancel()
	}

	logger.Info("watching", "transport", cfg.Transport.Kind, "project", cfg.Project, "workflow", cfg.Workflow)
	err = session.Watch(ctx)
	started := session.View().Version > 0
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil && started {
		err = nil
	}
	if err != nil {
		_ = out.Error(CodeTransport, err.Error(), nil)
		return WrapExitError(ExitFailure, "watch failed", err)
	}
	logger.Info("stopped")

	result, err := newWatchResult(session, sessionID, cfg.Journal)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to summarize session", err)
	}
	if opts.Format == "json" {
		return out.Success(result)
	}
	outputWatchText(cmd, result)
	return nil
}

func newWatchResult(s *client.Session, sessionID, journal string) (WatchResult, error) {
	v := s.View()
	project, workflow := s.Target()
	digest, err := v.Digest()
	if err != nil {
		return WatchResult{}, err
	}
	res := WatchResult{
		SessionID:    sessionID,
		Project:      project,
		Workflow:     workflow,
		SnapshotID:   v.SnapshotID,
		Version:      v.Version,
		Inconsistent: v.Inconsistent,
		Digest:       digest,
		Journal:      journal,
	}
	if v.Workflow != nil {
		res.Nodes = len(v.Workflow.Nodes)
		res.Connections = len(v.Workflow.Connections)
	}
	return res, nil
}

func outputWatchText(cmd *cobra.Command, r WatchResult) {
	w := cmd.OutOrStdout()
	mark := "✓"
	if r.Inconsistent {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s/%s at snapshot %q, version %d\n", mark, r.Project, r.Workflow, r.SnapshotID, r.Version)
	fmt.Fprintf(w, "  Nodes: %d, connections: %d\n", r.Nodes, r.Connections)
	fmt.Fprintf(w, "  Digest: %s\n", r.Digest)
	if r.Inconsistent {
		fmt.Fprintln(w, "  Warning: snapshot possibly inconsistent")
	}
	if r.Journal != "" {
		fmt.Fprintf(w, "  Journal: %s (session %s)\n", r.Journal, r.SessionID)
	}
}
