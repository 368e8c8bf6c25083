package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/wire"
)

// BatchCheck compares digests for one replayed batch.
type BatchCheck struct {
	Seq int64
	// Whole is the digest after applying the batch in one call.
	Whole string
	// Stepwise is the digest after applying it one operation per call.
	Stepwise string
	// Recorded is the digest journaled when the batch was first applied.
	Recorded string
}

// ReplayReport is the outcome of rebuilding a session's document.
type ReplayReport struct {
	SessionID string
	Base      SnapshotRecord
	Batches   int
	Anomalies int
	Version   int64
	// Document is the rebuilt document and Digest its digest.
	Document []byte
	Digest   string
	// Diverged lists batches whose whole and stepwise results differ.
	Diverged []BatchCheck
	// Drifted lists batches whose replayed result differs from the record.
	Drifted []BatchCheck
}

// Associative reports whether every batch gave the same document whether
// applied as one call or operation by operation.
func (r ReplayReport) Associative() bool {
	return len(r.Diverged) == 0
}

// MatchesJournal reports whether every replayed digest equals the
// journaled one.
func (r ReplayReport) MatchesJournal() bool {
	return len(r.Drifted) == 0
}

// Replay rebuilds a session's final document from its newest snapshot and
// the batches journaled after it. An empty sessionID replays the session of
// the newest snapshot.
//
// Each batch is applied twice, once as a single call and once operation by
// operation on a second synchronizer, and the digests are compared after
// every batch.
func (s *Store) Replay(ctx context.Context, sessionID string) (ReplayReport, error) {
	base, err := s.LatestSnapshot(ctx, sessionID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}
	report := ReplayReport{SessionID: base.SessionID, Base: base}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	whole := snapshot.New(snapshot.WithMount(base.Mount), snapshot.WithLogger(quiet))
	stepwise := snapshot.New(snapshot.WithMount(base.Mount), snapshot.WithLogger(quiet))
	if _, err := whole.Load(base.Workflow, base.SnapshotID); err != nil {
		return report, fmt.Errorf("replay: load base snapshot %d: %w", base.Seq, err)
	}
	if _, err := stepwise.Load(base.Workflow, base.SnapshotID); err != nil {
		return report, fmt.Errorf("replay: load base snapshot %d: %w", base.Seq, err)
	}

	batches, err := s.ReadBatches(ctx, base.SessionID, base.Seq)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := whole.ApplyPatch(b.Ops)
		report.Anomalies += len(result.Anomalies)
		for _, op := range b.Ops {
			stepwise.ApplyPatch([]wire.PatchOperation{op})
		}

		check := BatchCheck{Seq: b.Seq, Recorded: b.Digest}
		if check.Whole, err = whole.View().Digest(); err != nil {
			return report, fmt.Errorf("replay: batch %d: %w", b.Seq, err)
		}
		if check.Stepwise, err = stepwise.View().Digest(); err != nil {
			return report, fmt.Errorf("replay: batch %d: %w", b.Seq, err)
		}
		if check.Whole != check.Stepwise {
			report.Diverged = append(report.Diverged, check)
		}
		if b.Digest != "" && check.Whole != b.Digest {
			report.Drifted = append(report.Drifted, check)
		}
		report.Batches++
	}

	final := whole.View()
	report.Version = final.Version
	report.Document = final.Document
	if report.Digest, err = final.Digest(); err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	return report, nil
}
