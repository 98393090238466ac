package store

import (
	"context"
	"time"

	"regdash/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordReader returns report records submitted in [start, end).
	RecordReader interface {
		FetchRecords(ctx context.Context, start, end core.Date) ([]core.ReportRecord, error)
	}

	// SampleReader returns weekly samples whose period starts in [start, end).
	SampleReader interface {
		FetchSamples(ctx context.Context, start, end core.Date) ([]core.PeriodSample, error)
	}

	// SnapshotReader performs the single consistent read an assembly needs.
	SnapshotReader interface {
		ReadSnapshot(ctx context.Context, q SnapshotQuery) (Snapshot, error)
	}

	// Reader is implemented by every backend.
	Reader interface {
		RecordReader
		SampleReader
		SnapshotReader
		Ping(ctx context.Context) error
	}

	// Writer applies register changes coming from the ingest worker. The
	// dashboard itself never writes.
	Writer interface {
		// SaveReport inserts a new report. Re-saving an identical report is a no-op.
		SaveReport(ctx context.Context, r core.ReportRecord) error
		// UpdateStatus moves a report forward in its lifecycle; backward moves
		// fail with a *core.TransitionError.
		UpdateStatus(ctx context.Context, id string, to core.Status, at core.Date) error
		// SaveSample inserts or replaces the sample for its week.
		SaveSample(ctx context.Context, s core.PeriodSample) error
	}

	// SnapshotQuery covers the current window, the prior window used for
	// deltas, and every record still open, including ones submitted after
	// the window.
	SnapshotQuery struct {
		Window core.Window
		Prior  core.Window
	}

	// Snapshot is point-in-time data for one SnapshotQuery. Consumers must
	// treat it as read-only.
	Snapshot struct {
		// Records holds records submitted in [Prior.Start, Window.End), records
		// submitted earlier that were open at Prior.Start or later, and every
		// record open now whenever it was submitted.
		Records []core.ReportRecord
		// Samples holds weekly samples starting inside Window, ordered by
		// PeriodStart.
		Samples []core.PeriodSample
		ReadAt  time.Time
	}
)

// Key identifies a query for caching and request coalescing.
func (q SnapshotQuery) Key() string {
	return q.Prior.Start.String() + "/" + q.Window.Start.String() + "/" + q.Window.End.String()
}

// InSnapshot reports whether r belongs in the snapshot for q. Backends that
// filter in memory share this predicate.
func (q SnapshotQuery) InSnapshot(r core.ReportRecord) bool {
	if r.IsOpen() {
		return true
	}
	if !r.SubmittedDate.Before(q.Window.End.Time) {
		return false
	}
	if !r.SubmittedDate.Before(q.Prior.Start.Time) {
		return true
	}
	return r.OpenAt(q.Prior.Start)
}
