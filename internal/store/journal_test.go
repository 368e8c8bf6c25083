package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/wire"
)

func TestAppendAndReadEnvelopes(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	j := s.Journal("sess-1", quietLogger())

	require.NoError(t, j.Envelope(ctx, `{"eventType":"A"}`, "A", "", nil))
	require.NoError(t, j.Envelope(ctx, `not json`, "", "", errors.New("MALFORMED_ENVELOPE: invalid JSON")))
	require.NoError(t, j.Envelope(ctx, `{"eventType":"B","snapshotId":"7"}`, "B", "7", nil))
	require.NoError(t, s.Journal("sess-2", nil).Envelope(ctx, `{"eventType":"A"}`, "A", "", nil))

	all, err := s.ReadEnvelopes(ctx, EnvelopeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, rec := range all {
		assert.Equal(t, int64(i+1), rec.Seq, "ordered by seq")
	}

	rejected := all[1]
	assert.True(t, rejected.Rejected)
	assert.Contains(t, rejected.Error, "MALFORMED_ENVELOPE")
	assert.Equal(t, "not json", rejected.Raw)

	bySession, err := s.ReadEnvelopes(ctx, EnvelopeFilter{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Len(t, bySession, 3)

	byType, err := s.ReadEnvelopes(ctx, EnvelopeFilter{EventType: "A"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	limited, err := s.ReadEnvelopes(ctx, EnvelopeFilter{AfterSeq: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(2), limited[0].Seq)
	assert.Equal(t, "7", limited[1].SnapshotID)
}

func TestReadEnvelopes_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	recs, err := s.ReadEnvelopes(t.Context(), EnvelopeFilter{SessionID: "none"})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestJournalSnapshotAndBatches(t *testing.T) {
	s := createTestStore(t)
	sync := recordSession(t, s, "sess-1",
		[]wire.PatchOperation{op(t, wire.OpReplace, "/nodes/n1/position", map[string]int{"x": 10, "y": 20})},
		[]wire.PatchOperation{},
		[]wire.PatchOperation{
			op(t, wire.OpRemove, "/nodes/missing", nil),
			op(t, wire.OpAdd, "/nodes/n2", map[string]any{"id": "n2", "kind": "node", "position": map[string]int{"x": 1, "y": 1}}),
		},
	)
	ctx := t.Context()

	snap, err := s.LatestSnapshot(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonLoad, snap.Reason)
	assert.Equal(t, "p1", snap.ProjectID)
	assert.Equal(t, "w1", snap.WorkflowID)
	assert.Equal(t, "1", snap.SnapshotID)
	assert.Equal(t, "activeWorkflow", snap.Mount)
	assert.NotEmpty(t, snap.Digest)

	batches, err := s.ReadBatches(ctx, "sess-1", snap.Seq)
	require.NoError(t, err)
	require.Len(t, batches, 2, "empty batches are not journaled")

	assert.Equal(t, 1, batches[0].Applied)
	assert.False(t, batches[0].Inconsistent)

	assert.Equal(t, 1, batches[1].Applied)
	assert.Equal(t, 1, batches[1].Anomalies)
	assert.True(t, batches[1].Inconsistent)
	require.Len(t, batches[1].Ops, 2)
	assert.Equal(t, wire.OpRemove, batches[1].Ops[0].Op)

	finalDigest, err := sync.View().Digest()
	require.NoError(t, err)
	assert.Equal(t, finalDigest, batches[1].Digest)

	env, snaps, bats, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, env)
	assert.Equal(t, 1, snaps)
	assert.Equal(t, 2, bats)
}

func TestLatestSnapshot_None(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LatestSnapshot(t.Context(), "")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestAppendSnapshot_StoresCanonicalJSON(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, err := s.AppendSnapshot(ctx, SnapshotRecord{
		SessionID: "s",
		Mount:     "activeWorkflow",
		Reason:    ReasonResync,
		Workflow:  json.RawMessage(`{ "b": 1, "a": 2.0 }`),
		Digest:    "d",
	})
	require.NoError(t, err)

	snap, err := s.LatestSnapshot(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(snap.Workflow))
	assert.Equal(t, ReasonResync, snap.Reason)
}

func TestAppendBatch_ComputesOpsDigest(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	ops := []wire.PatchOperation{op(t, wire.OpRemove, "/nodes/a", nil)}

	_, err := s.AppendBatch(ctx, BatchRecord{SessionID: "s", Ops: ops, Digest: "d"})
	require.NoError(t, err)

	batches, err := s.ReadBatches(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	want, err := wire.BatchDigest(ops)
	require.NoError(t, err)
	assert.Equal(t, want, batches[0].OpsDigest)
}

func TestJournal_EncodeFailuresAreLogged(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	var logs bytes.Buffer
	j := s.Journal("sess-1", slog.New(slog.NewTextHandler(&logs, nil)))

	broken := &snapshot.View{Version: 2, Mount: "activeWorkflow", Document: []byte("not json")}

	err := j.Snapshot(ctx, "p1", "w1", ReasonLoad, broken)
	require.Error(t, err)
	assert.Contains(t, logs.String(), "journal snapshot failed")

	logs.Reset()
	err = j.Batch(ctx, broken, snapshot.BatchResult{Ops: []wire.PatchOperation{{Op: wire.OpRemove, Path: "/nodes/n1"}}})
	require.Error(t, err)
	assert.Contains(t, logs.String(), "journal batch failed")

	_, snapshots, batches, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, snapshots)
	assert.Zero(t, batches)
}
