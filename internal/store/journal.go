package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/flowcanvas/internal/snapshot"
)

// Journal records one client session into a Store.
//
// Write failures are logged and returned; callers on the push path log and
// continue, since journaling is diagnostic.
type Journal struct {
	store     *Store
	sessionID string
	logger    *slog.Logger
}

// Journal returns a journal writing records tagged with sessionID.
func (s *Store) Journal(sessionID string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: s, sessionID: sessionID, logger: logger}
}

// SessionID returns the session tag.
func (j *Journal) SessionID() string { return j.sessionID }

// Envelope records a push message and whether the dispatcher accepted it.
func (j *Journal) Envelope(ctx context.Context, raw, eventType, snapshotID string, rejectErr error) error {
	rec := EnvelopeRecord{
		SessionID:  j.sessionID,
		EventType:  eventType,
		SnapshotID: snapshotID,
		Raw:        raw,
	}
	if rejectErr != nil {
		rec.Rejected = true
		rec.Error = rejectErr.Error()
	}
	if _, err := j.store.AppendEnvelope(ctx, rec); err != nil {
		j.logger.Error("journal envelope failed", "event_type", eventType, "error", err)
		return err
	}
	return nil
}

// Snapshot records a wholesale load that produced v.
func (j *Journal) Snapshot(ctx context.Context, projectID, workflowID string, reason SnapshotReason, v *snapshot.View) error {
	workflow, err := v.WorkflowJSON()
	if err != nil {
		j.logger.Error("journal snapshot failed: encode workflow", "reason", string(reason), "error", err)
		return fmt.Errorf("journal snapshot: %w", err)
	}
	digest, err := v.Digest()
	if err != nil {
		j.logger.Error("journal snapshot failed: digest", "reason", string(reason), "error", err)
		return fmt.Errorf("journal snapshot: %w", err)
	}
	_, err = j.store.AppendSnapshot(ctx, SnapshotRecord{
		SessionID:  j.sessionID,
		ProjectID:  projectID,
		WorkflowID: workflowID,
		SnapshotID: v.SnapshotID,
		Mount:      v.Mount,
		Reason:     reason,
		Workflow:   workflow,
		Digest:     digest,
	})
	if err != nil {
		j.logger.Error("journal snapshot failed", "reason", string(reason), "error", err)
	}
	return err
}

// Batch records a batch applied by the synchronizer. It has the signature of
// a snapshot batch observer apart from the context.
func (j *Journal) Batch(ctx context.Context, v *snapshot.View, r snapshot.BatchResult) error {
	if len(r.Ops) == 0 {
		return nil
	}
	digest, err := v.Digest()
	if err != nil {
		j.logger.Error("journal batch failed: digest", "version", v.Version, "error", err)
		return fmt.Errorf("journal batch: %w", err)
	}
	_, err = j.store.AppendBatch(ctx, BatchRecord{
		SessionID:    j.sessionID,
		SnapshotID:   v.SnapshotID,
		Version:      v.Version,
		Ops:          r.Ops,
		Applied:      r.Applied,
		Anomalies:    len(r.Anomalies),
		Inconsistent: v.Inconsistent,
		Digest:       digest,
	})
	if err != nil {
		j.logger.Error("journal batch failed", "version", v.Version, "error", err)
	}
	return err
}
