package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/wire"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testWorkflow = `{
	"info": {"containerId": "root"},
	"nodes": {"n1": {"id": "n1", "kind": "node", "position": {"x": 0, "y": 0}}},
	"connections": {},
	"workflowAnnotations": {}
}`

func op(t *testing.T, kind wire.PatchOp, path string, value any) wire.PatchOperation {
	t.Helper()
	o := wire.PatchOperation{Op: kind, Path: path}
	if value != nil {
		raw, err := json.Marshal(value)
		require.NoError(t, err)
		o.Value = raw
	}
	return o
}

// recordSession drives a synchronizer through a load and the given batches
// and journals everything.
func recordSession(t *testing.T, s *Store, sessionID string, batches ...[]wire.PatchOperation) *snapshot.Synchronizer {
	t.Helper()
	ctx := t.Context()
	j := s.Journal(sessionID, quietLogger())
	sync := snapshot.New(
		snapshot.WithLogger(quietLogger()),
		snapshot.WithBatchObserver(func(v *snapshot.View, r snapshot.BatchResult) {
			require.NoError(t, j.Batch(ctx, v, r))
		}),
	)
	v, err := sync.Load(json.RawMessage(testWorkflow), "1")
	require.NoError(t, err)
	require.NoError(t, j.Snapshot(ctx, "p1", "w1", ReasonLoad, v))

	for _, b := range batches {
		sync.ApplyPatch(b)
	}
	return sync
}
