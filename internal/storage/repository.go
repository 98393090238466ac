package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"regdash/internal/core"
	"regdash/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the report register backed by SQLite. It serves
// dashboard reads and ingest writes.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

// FetchRecords implements store.RecordReader
func (r *SQLiteRepository) FetchRecords(ctx context.Context, start, end core.Date) ([]core.ReportRecord, error) {
	rows, err := r.queries.ListReportsSubmittedBetween(ctx, start.String(), end.String())
	if err != nil {
		return nil, unavailable("list reports", err)
	}
	return toRecords(rows)
}

// FetchSamples implements store.SampleReader
func (r *SQLiteRepository) FetchSamples(ctx context.Context, start, end core.Date) ([]core.PeriodSample, error) {
	rows, err := r.queries.ListSamplesBetween(ctx, start.String(), end.String())
	if err != nil {
		return nil, unavailable("list samples", err)
	}
	return toSamples(rows)
}

// ReadSnapshot reads records and samples inside one transaction so both see
// the same state of the register.
func (r *SQLiteRepository) ReadSnapshot(ctx context.Context, q store.SnapshotQuery) (store.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Snapshot{}, unavailable("begin snapshot", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	reportRows, err := qtx.ListSnapshotReports(ctx, q.Window.End.String(), q.Prior.Start.String())
	if err != nil {
		return store.Snapshot{}, unavailable("snapshot reports", err)
	}
	sampleRows, err := qtx.ListSamplesBetween(ctx, q.Window.Start.String(), q.Window.End.String())
	if err != nil {
		return store.Snapshot{}, unavailable("snapshot samples", err)
	}

	records, err := toRecords(reportRows)
	if err != nil {
		return store.Snapshot{}, err
	}
	samples, err := toSamples(sampleRows)
	if err != nil {
		return store.Snapshot{}, err
	}

	slog.DebugContext(ctx, "Snapshot read from SQLite",
		"window", q.Window.String(),
		"records", len(records),
		"samples", len(samples))

	return store.Snapshot{Records: records, Samples: samples, ReadAt: time.Now()}, nil
}

// SaveReport implements store.Writer
func (r *SQLiteRepository) SaveReport(ctx context.Context, rec core.ReportRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	existing, err := r.queries.GetReport(ctx, rec.ID)
	switch {
	case err == nil:
		stored, convErr := toRecord(existing)
		if convErr == nil && stored.Equal(rec) {
			return nil
		}
		return fmt.Errorf("%w: report %s already registered", core.ErrInvalidRecord, rec.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return unavailable("get report", err)
	}

	if err := r.queries.InsertReport(ctx, InsertReportParams{
		ID:            rec.ID,
		ReportType:    rec.Type,
		Regulator:     rec.Regulator,
		SubmittedDate: rec.SubmittedDate.String(),
		Status:        string(rec.Status),
		ResolvedDate:  nullDate(rec.ResolvedDate),
	}); err != nil {
		return unavailable("insert report", err)
	}

	slog.InfoContext(ctx, "Report saved to SQLite",
		"report_id", rec.ID,
		"report_type", rec.Type,
		"status", rec.Status)
	return nil
}

// UpdateStatus implements store.Writer. The status change and its audit
// event are written in one transaction.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, to core.Status, at core.Date) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin status update", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	row, err := qtx.GetReport(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return unavailable("get report", err)
	}
	current, err := toRecord(row)
	if err != nil {
		return err
	}

	next, err := current.Transition(to, at)
	if err != nil {
		return err
	}

	n, err := qtx.UpdateReportStatus(ctx, UpdateReportStatusParams{
		Status:       string(next.Status),
		ResolvedDate: nullDate(next.ResolvedDate),
		ID:           id,
		FromStatus:   string(current.Status),
	})
	if err != nil {
		return unavailable("update status", err)
	}
	if n == 0 {
		return &core.TransitionError{ID: id, From: current.Status, To: to}
	}

	if err := qtx.InsertStatusEvent(ctx, InsertStatusEventParams{
		ReportID:   id,
		FromStatus: string(current.Status),
		ToStatus:   string(next.Status),
		Effective:  at.String(),
	}); err != nil {
		return unavailable("insert status event", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit status update", err)
	}

	slog.InfoContext(ctx, "Report status updated",
		"report_id", id,
		"from", current.Status,
		"to", next.Status)
	return nil
}

// SaveSample implements store.Writer
func (r *SQLiteRepository) SaveSample(ctx context.Context, s core.PeriodSample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := r.queries.UpsertSample(ctx, ComplianceSample{
		WeekStart:       core.WeekStart(s.PeriodStart).String(),
		Label:           s.Label,
		SubmittedCount:  int64(s.SubmittedCount),
		PendingCount:    int64(s.PendingCount),
		RejectedCount:   int64(s.RejectedCount),
		ComplianceScore: s.ComplianceScore,
	}); err != nil {
		return unavailable("upsert sample", err)
	}
	return nil
}

// StatusHistoryLen returns how many status changes were recorded for a report.
func (r *SQLiteRepository) StatusHistoryLen(ctx context.Context, id string) (int, error) {
	n, err := r.queries.CountStatusEvents(ctx, id)
	if err != nil {
		return 0, unavailable("count status events", err)
	}
	return int(n), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStoreUnavailable, op, err)
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func toRecord(row Report) (core.ReportRecord, error) {
	submitted, err := core.ParseDate(row.SubmittedDate)
	if err != nil {
		return core.ReportRecord{}, fmt.Errorf("report %s: %w", row.ID, err)
	}
	status, err := core.ParseStatus(row.Status)
	if err != nil {
		return core.ReportRecord{}, fmt.Errorf("report %s: %w", row.ID, err)
	}
	rec := core.ReportRecord{
		ID:            row.ID,
		Type:          row.ReportType,
		Regulator:     row.Regulator,
		SubmittedDate: submitted,
		Status:        status,
	}
	if row.ResolvedDate.Valid {
		if rec.ResolvedDate, err = core.ParseDate(row.ResolvedDate.String); err != nil {
			return core.ReportRecord{}, fmt.Errorf("report %s: %w", row.ID, err)
		}
	}
	return rec, nil
}

func toRecords(rows []Report) ([]core.ReportRecord, error) {
	out := make([]core.ReportRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toSamples(rows []ComplianceSample) ([]core.PeriodSample, error) {
	out := make([]core.PeriodSample, 0, len(rows))
	for _, row := range rows {
		start, err := core.ParseDate(row.WeekStart)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", row.WeekStart, err)
		}
		out = append(out, core.PeriodSample{
			Label:           row.Label,
			PeriodStart:     start,
			SubmittedCount:  int(row.SubmittedCount),
			PendingCount:    int(row.PendingCount),
			RejectedCount:   int(row.RejectedCount),
			ComplianceScore: row.ComplianceScore,
		})
	}
	return out, nil
}
