package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/store"
	"github.com/roach88/flowcanvas/internal/wire"
)

const testWorkflow = `{"info":{"containerId":"root"},"nodes":{"n1":{"id":"n1","kind":"node","position":{"x":0,"y":0}}},"connections":{},"workflowAnnotations":{}}`

const movePush = `{"eventType":"WorkflowChangedEvent","payload":{"patch":{"ops":[{"op":"replace","path":"/nodes/n1/position","value":{"x":10,"y":5}}]},"snapshotId":"2"}}`

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeResponse parses a JSON CLI response.
func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordJournal journals one session the way a live client would: a load,
// one accepted push with its batch, and one rejected push.
func recordJournal(t *testing.T, path, sessionID string) {
	t.Helper()
	ctx := t.Context()

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	j := st.Journal(sessionID, quietLogger())
	sync := snapshot.New(
		snapshot.WithLogger(quietLogger()),
		snapshot.WithBatchObserver(func(v *snapshot.View, r snapshot.BatchResult) {
			require.NoError(t, j.Batch(ctx, v, r))
		}),
	)
	v, err := sync.Load(json.RawMessage(testWorkflow), "1")
	require.NoError(t, err)
	require.NoError(t, j.Snapshot(ctx, "p1", "root", store.ReasonLoad, v))

	require.NoError(t, j.Envelope(ctx, movePush, "WorkflowChangedEvent", "2", nil))
	sync.ApplyPatch([]wire.PatchOperation{{
		Op:    wire.OpReplace,
		Path:  "/nodes/n1/position",
		Value: json.RawMessage(`{"x":10,"y":5}`),
	}})

	require.NoError(t, j.Envelope(ctx, "not json", "", "", errors.New("malformed envelope")))
}
