package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoSnapshot is returned when a session has no journaled snapshot.
var ErrNoSnapshot = errors.New("no snapshot journaled")

// EnvelopeFilter narrows ReadEnvelopes. Zero fields match everything.
type EnvelopeFilter struct {
	SessionID string
	EventType string
	AfterSeq  int64
	Limit     int
}

// ReadEnvelopes returns journaled envelopes ordered by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEnvelopes(ctx context.Context, f EnvelopeFilter) ([]EnvelopeRecord, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "seq > ?")
	args = append(args, f.AfterSeq)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}
	query := `
		SELECT seq, session_id, event_type, snapshot_id, raw, rejected, error
		FROM envelopes
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query envelopes: %w", err)
	}
	defer rows.Close()

	records := []EnvelopeRecord{}
	for rows.Next() {
		var (
			rec      EnvelopeRecord
			rejected int
		)
		if err := rows.Scan(&rec.Seq, &rec.SessionID, &rec.EventType, &rec.SnapshotID, &rec.Raw, &rejected, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan envelope: %w", err)
		}
		rec.Rejected = rejected != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate envelopes: %w", err)
	}
	return records, nil
}

// LatestSnapshot returns the newest snapshot of a session. An empty
// sessionID selects the newest snapshot of any session.
func (s *Store) LatestSnapshot(ctx context.Context, sessionID string) (SnapshotRecord, error) {
	query := `
		SELECT seq, session_id, project_id, workflow_id, snapshot_id, mount, reason, document, digest
		FROM snapshots`
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY seq DESC LIMIT 1"

	var (
		rec    SnapshotRecord
		reason string
		doc    string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.Seq, &rec.SessionID, &rec.ProjectID, &rec.WorkflowID, &rec.SnapshotID,
		&rec.Mount, &reason, &doc, &rec.Digest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, ErrNoSnapshot
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("query snapshot: %w", err)
	}
	rec.Reason = SnapshotReason(reason)
	rec.Workflow = json.RawMessage(doc)
	return rec, nil
}

// ReadBatches returns a session's batches with seq greater than afterSeq,
// ordered by seq.
func (s *Store) ReadBatches(ctx context.Context, sessionID string, afterSeq int64) ([]BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session_id, snapshot_id, version, ops, ops_digest, applied, anomalies, inconsistent, digest
		FROM batches
		WHERE session_id = ? AND seq > ?
		ORDER BY seq ASC
	`, sessionID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	records := []BatchRecord{}
	for rows.Next() {
		var (
			rec          BatchRecord
			ops          string
			inconsistent int
		)
		if err := rows.Scan(&rec.Seq, &rec.SessionID, &rec.SnapshotID, &rec.Version, &ops,
			&rec.OpsDigest, &rec.Applied, &rec.Anomalies, &inconsistent, &rec.Digest); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if err := json.Unmarshal([]byte(ops), &rec.Ops); err != nil {
			return nil, fmt.Errorf("decode batch %d ops: %w", rec.Seq, err)
		}
		rec.Inconsistent = inconsistent != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return records, nil
}

// Counts returns the number of journaled envelopes, snapshots and batches.
func (s *Store) Counts(ctx context.Context) (envelopes, snapshots, batches int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM envelopes),
			(SELECT COUNT(*) FROM snapshots),
			(SELECT COUNT(*) FROM batches)
	`).Scan(&envelopes, &snapshots, &batches)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count records: %w", err)
	}
	return envelopes, snapshots, batches, nil
}
