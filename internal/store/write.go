package store

import (
	"context"
	"fmt"

	"github.com/roach88/flowcanvas/internal/wire"
)

// AppendEnvelope journals a push message. A zero Seq is assigned from the
// clock. Returns the seq used.
func (s *Store) AppendEnvelope(ctx context.Context, rec EnvelopeRecord) (int64, error) {
	if rec.Seq == 0 {
		rec.Seq = s.clock.Next()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO envelopes
		(seq, session_id, event_type, snapshot_id, raw, rejected, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.SessionID,
		rec.EventType,
		rec.SnapshotID,
		rec.Raw,
		boolToInt(rec.Rejected),
		rec.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("append envelope: %w", err)
	}
	return rec.Seq, nil
}

// AppendSnapshot journals a wholesale load. The workflow is stored in
// canonical JSON.
func (s *Store) AppendSnapshot(ctx context.Context, rec SnapshotRecord) (int64, error) {
	canonical, err := wire.MarshalCanonical(rec.Workflow)
	if err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}
	if rec.Seq == 0 {
		rec.Seq = s.clock.Next()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots
		(seq, session_id, project_id, workflow_id, snapshot_id, mount, reason, document, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.SessionID,
		rec.ProjectID,
		rec.WorkflowID,
		rec.SnapshotID,
		rec.Mount,
		string(rec.Reason),
		string(canonical),
		rec.Digest,
	)
	if err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}
	return rec.Seq, nil
}

// AppendBatch journals an applied patch batch. OpsDigest is computed when
// empty.
func (s *Store) AppendBatch(ctx context.Context, rec BatchRecord) (int64, error) {
	ops := rec.Ops
	if ops == nil {
		ops = []wire.PatchOperation{}
	}
	opsJSON, err := wire.MarshalCanonical(ops)
	if err != nil {
		return 0, fmt.Errorf("append batch: %w", err)
	}
	if rec.OpsDigest == "" {
		if rec.OpsDigest, err = wire.BatchDigest(ops); err != nil {
			return 0, fmt.Errorf("append batch: %w", err)
		}
	}
	if rec.Seq == 0 {
		rec.Seq = s.clock.Next()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches
		(seq, session_id, snapshot_id, version, ops, ops_digest, applied, anomalies, inconsistent, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.SessionID,
		rec.SnapshotID,
		rec.Version,
		string(opsJSON),
		rec.OpsDigest,
		rec.Applied,
		rec.Anomalies,
		boolToInt(rec.Inconsistent),
		rec.Digest,
	)
	if err != nil {
		return 0, fmt.Errorf("append batch: %w", err)
	}
	return rec.Seq, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
