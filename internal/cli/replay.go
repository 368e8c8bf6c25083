package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flowcanvas/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - defaults to the newest session
	Document  bool   // include the rebuilt document
}

// ReplayBatch is one batch whose replay did not reproduce the expected digest.
type ReplayBatch struct {
	Seq      int64  `json:"seq"`
	Whole    string `json:"whole"`
	Stepwise string `json:"stepwise"`
	Recorded string `json:"recorded,omitempty"`
}

// ReplayResult holds the replay outcome for one session.
type ReplayResult struct {
	SessionID   string          `json:"session_id"`
	BaseSeq     int64           `json:"base_seq"`
	BaseReason  string          `json:"base_reason"`
	SnapshotID  string          `json:"snapshot_id"`
	Batches     int             `json:"batches"`
	Anomalies   int             `json:"anomalies"`
	Version     int64           `json:"version"`
	Digest      string          `json:"digest"`
	Associative bool            `json:"associative"`
	MatchesLog  bool            `json:"matches_journal"`
	Diverged    []ReplayBatch   `json:"diverged,omitempty"`
	Drifted     []ReplayBatch   `json:"drifted,omitempty"`
	Document    json.RawMessage `json:"document,omitempty"`
}

// OK reports whether the replay reproduced the journal.
func (r ReplayResult) OK() bool {
	return r.Associative && r.MatchesLog
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a journaled session and verify its digests",
		Long: `Rebuild a session's workflow document from its newest journaled snapshot
and the patch batches recorded after it.

Every batch is applied twice, once whole and once operation by operation,
and both digests are compared with each other and with the digest recorded
when the batch was first applied.

Exit codes:
  0 - Replay reproduced the journal
  1 - A batch diverged or drifted from its recorded digest
  2 - Command error (database not found, unknown session, etc.)

Examples:
  flowcanvas replay --db ./journal.db
  flowcanvas replay --db ./journal.db --session 0192f7e4-...
  flowcanvas replay --db ./journal.db --format json --document`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay this session instead of the newest")
	cmd.Flags().BoolVar(&opts.Document, "document", false, "include the rebuilt document in the output")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := st.Replay(ctx, opts.SessionID)
	if errors.Is(err, store.ErrNoSnapshot) {
		if opts.SessionID != "" {
			_ = out.Error(CodeNoSnapshot, fmt.Sprintf("no snapshot journaled for session %s", opts.SessionID), nil)
			return WrapExitError(ExitCommandError, "replay", err)
		}
		if opts.Format == "json" {
			return out.Success(map[string]any{"sessions": 0})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in journal.")
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := newReplayResult(report, opts.Document)
	out.VerboseLog("replayed %d batch(es) on snapshot %d", result.Batches, result.BaseSeq)

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

func newReplayResult(r store.ReplayReport, withDocument bool) ReplayResult {
	res := ReplayResult{
		SessionID:   r.SessionID,
		BaseSeq:     r.Base.Seq,
		BaseReason:  string(r.Base.Reason),
		SnapshotID:  r.Base.SnapshotID,
		Batches:     r.Batches,
		Anomalies:   r.Anomalies,
		Version:     r.Version,
		Digest:      r.Digest,
		Associative: r.Associative(),
		MatchesLog:  r.MatchesJournal(),
		Diverged:    replayBatches(r.Diverged),
		Drifted:     replayBatches(r.Drifted),
	}
	if withDocument {
		res.Document = r.Document
	}
	return res
}

func replayBatches(checks []store.BatchCheck) []ReplayBatch {
	if len(checks) == 0 {
		return nil
	}
	out := make([]ReplayBatch, len(checks))
	for i, c := range checks {
		out[i] = ReplayBatch{Seq: c.Seq, Whole: c.Whole, Stepwise: c.Stepwise, Recorded: c.Recorded}
	}
	return out
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.OK() {
		response.Status = "error"
		response.Error = &CLIError{Code: CodeReplay, Message: replayFailure(result)}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if !result.OK() {
		return NewExitError(ExitFailure, replayFailure(result))
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s\n", result.SessionID)
	fmt.Fprintf(w, "  Base: snapshot %d (%s, id %q)\n", result.BaseSeq, result.BaseReason, result.SnapshotID)
	fmt.Fprintf(w, "  Batches: %d, anomalies: %d, version: %d\n", result.Batches, result.Anomalies, result.Version)
	fmt.Fprintf(w, "  Digest: %s\n", result.Digest)

	for _, b := range result.Diverged {
		fmt.Fprintf(w, "  ✗ batch %d diverged: whole %s, stepwise %s\n", b.Seq, b.Whole, b.Stepwise)
	}
	for _, b := range result.Drifted {
		fmt.Fprintf(w, "  ✗ batch %d drifted: replayed %s, recorded %s\n", b.Seq, b.Whole, b.Recorded)
	}
	if verbose && len(result.Document) > 0 {
		fmt.Fprintf(w, "  Document: %s\n", result.Document)
	}
	fmt.Fprintln(w)

	if result.OK() {
		fmt.Fprintln(w, "✓ Replay matches journal")
		return nil
	}
	fmt.Fprintf(w, "✗ %s\n", replayFailure(result))
	return NewExitError(ExitFailure, replayFailure(result))
}

func replayFailure(r ReplayResult) string {
	switch {
	case !r.Associative && !r.MatchesLog:
		return "replay diverged and drifted from journal"
	case !r.Associative:
		return "replay diverged between whole and stepwise application"
	default:
		return "replay drifted from journal"
	}
}
