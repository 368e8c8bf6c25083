package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/wire"
)

// PatchOptions holds flags for the patch command.
type PatchOptions struct {
	*RootOptions
	Mount      string
	SnapshotID string
	Output     string
}

// PatchAnomaly is one operation the synchronizer skipped.
type PatchAnomaly struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// PatchResult holds the outcome of applying a patch file.
type PatchResult struct {
	Ops          int             `json:"ops"`
	Applied      int             `json:"applied"`
	Anomalies    []PatchAnomaly  `json:"anomalies"`
	Version      int64           `json:"version"`
	Inconsistent bool            `json:"inconsistent"`
	Digest       string          `json:"digest"`
	Workflow     json.RawMessage `json:"workflow,omitempty"`
}

// NewPatchCommand creates the patch command.
func NewPatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patch <workflow.json> <ops.json>",
		Short: "Apply a patch batch to a workflow file",
		Long: `Load a workflow document, apply a batch of JSON Patch operations the way a
live client would, and print the resulting workflow in canonical JSON.

<ops.json> holds either an array of operations or a {"ops": [...]} patch.
Paths are relative to the workflow; "/nodes/n1" is applied at
"/<mount>/nodes/n1" of the synchronized document.

Exit codes:
  0 - Every operation applied
  1 - One or more operations were skipped as anomalies
  2 - Command error (unreadable or malformed input)

Examples:
  flowcanvas patch workflow.json ops.json
  flowcanvas patch workflow.json ops.json --mount sub -o out.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mount, "mount", snapshot.DefaultMount, "document segment the workflow is mounted under")
	cmd.Flags().StringVar(&opts.SnapshotID, "snapshot-id", "", "snapshot id to load the workflow with")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the patched workflow to this file")

	return cmd
}

func runPatch(opts *PatchOptions, workflowPath, opsPath string, cmd *cobra.Command) error {
	workflow, err := os.ReadFile(workflowPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read workflow", err)
	}
	opsData, err := os.ReadFile(opsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read operations", err)
	}
	ops, err := decodeOps(opsData)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid operations in %s", opsPath), err)
	}

	sync := snapshot.New(
		snapshot.WithMount(opts.Mount),
		snapshot.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())),
	)
	if _, err := sync.Load(json.RawMessage(workflow), opts.SnapshotID); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid workflow in %s", workflowPath), err)
	}

	batch := sync.ApplyPatch(ops)
	result, err := newPatchResult(sync.View(), batch)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to render workflow", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, result.Workflow, 0644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !batch.OK() {
			response.Status = "error"
			response.Error = &CLIError{Code: CodeAnomalies, Message: fmt.Sprintf("%d operation(s) skipped", len(result.Anomalies))}
		}
		if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
			return err
		}
	} else {
		outputPatchText(cmd, result, opts.Output == "")
	}

	if !batch.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d operation(s) skipped", len(result.Anomalies)))
	}
	return nil
}

// decodeOps accepts a bare operation array or a {"ops": [...]} patch.
func decodeOps(data []byte) ([]wire.PatchOperation, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var ops []wire.PatchOperation
		if err := json.Unmarshal(trimmed, &ops); err != nil {
			return nil, err
		}
		return ops, nil
	}
	var p wire.Patch
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, err
	}
	if p.Ops == nil {
		return nil, fmt.Errorf(`expected an operation array or {"ops": [...]}`)
	}
	return p.Ops, nil
}

func newPatchResult(v *snapshot.View, batch snapshot.BatchResult) (PatchResult, error) {
	res := PatchResult{
		Ops:          len(batch.Ops),
		Applied:      batch.Applied,
		Anomalies:    []PatchAnomaly{},
		Version:      v.Version,
		Inconsistent: v.Inconsistent,
	}
	for _, a := range batch.Anomalies {
		res.Anomalies = append(res.Anomalies, PatchAnomaly{
			Index: a.Index,
			Op:    string(a.Op.Op),
			Path:  a.Path,
			Error: a.Err.Error(),
		})
	}

	var err error
	if res.Digest, err = v.Digest(); err != nil {
		return res, err
	}
	raw, err := v.WorkflowJSON()
	if err != nil {
		return res, err
	}
	if res.Workflow, err = wire.MarshalCanonical(raw); err != nil {
		return res, err
	}
	return res, nil
}

// outputPatchText prints the batch summary and, unless it went to a file,
// the patched workflow.
func outputPatchText(cmd *cobra.Command, result PatchResult, printWorkflow bool) {
	w := cmd.OutOrStdout()

	mark := "✓"
	if len(result.Anomalies) > 0 {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Applied %d/%d operation(s), version %d\n", mark, result.Applied, result.Ops, result.Version)
	for _, a := range result.Anomalies {
		fmt.Fprintf(w, "  op %d (%s %s): %s\n", a.Index, a.Op, a.Path, a.Error)
	}
	fmt.Fprintf(w, "Digest: %s\n", result.Digest)
	if printWorkflow {
		fmt.Fprintf(w, "%s\n", result.Workflow)
	}
}
