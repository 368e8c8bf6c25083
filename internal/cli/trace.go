package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/flowcanvas/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string
	EventType string
	AfterSeq  int64
	Limit     int
	Raw       bool
}

// TraceEvent is one journaled envelope in the timeline.
type TraceEvent struct {
	Seq        int64  `json:"seq"`
	SessionID  string `json:"session_id"`
	EventType  string `json:"event_type"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Rejected   bool   `json:"rejected"`
	Error      string `json:"error,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the listed envelopes and the
// journal as a whole.
type TraceStats struct {
	Listed    int            `json:"listed"`
	Rejected  int            `json:"rejected"`
	ByType    map[string]int `json:"by_type"`
	Envelopes int            `json:"journal_envelopes"`
	Snapshots int            `json:"journal_snapshots"`
	Batches   int            `json:"journal_batches"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled push envelopes",
		Long: `List the push envelopes a client received, in arrival order.

Rejected envelopes are marked with the reason the dispatcher gave.

Examples:
  flowcanvas trace --db ./journal.db
  flowcanvas trace --db ./journal.db --event WorkflowChangedEvent --limit 20
  flowcanvas trace --db ./journal.db --session 0192f7e4-... --raw --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "only envelopes of this session")
	cmd.Flags().StringVar(&opts.EventType, "event", "", "only envelopes of this event type")
	cmd.Flags().Int64Var(&opts.AfterSeq, "after", 0, "only envelopes after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of envelopes (0 = all)")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "include the raw message")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ReadEnvelopes(ctx, store.EnvelopeFilter{
		SessionID: opts.SessionID,
		EventType: opts.EventType,
		AfterSeq:  opts.AfterSeq,
		Limit:     opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read envelopes", err)
	}

	result := buildTrace(records, opts.Raw)
	result.Stats.Envelopes, result.Stats.Snapshots, result.Stats.Batches, err = st.Counts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count journal", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(cmd, result, opts.Verbose)
	return nil
}

// buildTrace converts journal records into the timeline.
func buildTrace(records []store.EnvelopeRecord, withRaw bool) TraceResult {
	result := TraceResult{
		Timeline: make([]TraceEvent, 0, len(records)),
		Stats:    TraceStats{ByType: map[string]int{}},
	}
	for _, rec := range records {
		ev := TraceEvent{
			Seq:        rec.Seq,
			SessionID:  rec.SessionID,
			EventType:  rec.EventType,
			SnapshotID: rec.SnapshotID,
			Rejected:   rec.Rejected,
			Error:      rec.Error,
		}
		if withRaw {
			ev.Raw = rec.Raw
		}
		result.Timeline = append(result.Timeline, ev)
		result.Stats.ByType[eventLabel(rec.EventType)]++
		if rec.Rejected {
			result.Stats.Rejected++
		}
	}
	result.Stats.Listed = len(records)
	return result
}

func eventLabel(eventType string) string {
	if eventType == "" {
		return "(unknown)"
	}
	return eventType
}

// outputTraceText outputs the trace as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No envelopes found.")
	} else {
		fmt.Fprintf(w, "Timeline: %d envelope(s)\n", result.Stats.Listed)
		for _, ev := range result.Timeline {
			mark := "✓"
			if ev.Rejected {
				mark = "✗"
			}
			fmt.Fprintf(w, "  [%d] %s %s", ev.Seq, mark, eventLabel(ev.EventType))
			if ev.SnapshotID != "" {
				fmt.Fprintf(w, " snapshot=%s", ev.SnapshotID)
			}
			if verbose {
				fmt.Fprintf(w, " session=%s", ev.SessionID)
			}
			fmt.Fprintln(w)
			if ev.Error != "" {
				fmt.Fprintf(w, "      %s\n", ev.Error)
			}
			if ev.Raw != "" {
				fmt.Fprintf(w, "      %s\n", ev.Raw)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stats:")
	types := make([]string, 0, len(result.Stats.ByType))
	for t := range result.Stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, result.Stats.ByType[t])
	}
	fmt.Fprintf(w, "  Rejected: %d\n", result.Stats.Rejected)
	fmt.Fprintf(w, "  Journal: %d envelope(s), %d snapshot(s), %d batch(es)\n",
		result.Stats.Envelopes, result.Stats.Snapshots, result.Stats.Batches)
}
