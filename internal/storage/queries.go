package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Report struct {
	ID            string
	ReportType    string
	Regulator     string
	SubmittedDate string
	Status        string
	ResolvedDate  sql.NullString
}

type ComplianceSample struct {
	WeekStart       string
	Label           string
	SubmittedCount  int64
	PendingCount    int64
	RejectedCount   int64
	ComplianceScore float64
}

const reportColumns = `id, report_type, regulator, submitted_date, status, resolved_date`

const insertReport = `INSERT INTO reports (` + reportColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

type InsertReportParams struct {
	ID            string
	ReportType    string
	Regulator     string
	SubmittedDate string
	Status        string
	ResolvedDate  sql.NullString
}

func (q *Queries) InsertReport(ctx context.Context, arg InsertReportParams) error {
	_, err := q.db.ExecContext(ctx, insertReport,
		arg.ID, arg.ReportType, arg.Regulator, arg.SubmittedDate, arg.Status, arg.ResolvedDate)
	return err
}

const getReport = `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`

func (q *Queries) GetReport(ctx context.Context, id string) (Report, error) {
	row := q.db.QueryRowContext(ctx, getReport, id)
	var r Report
	err := row.Scan(&r.ID, &r.ReportType, &r.Regulator, &r.SubmittedDate, &r.Status, &r.ResolvedDate)
	return r, err
}

const listReportsSubmittedBetween = `SELECT ` + reportColumns + ` FROM reports
WHERE submitted_date >= ? AND submitted_date < ?
ORDER BY submitted_date, id`

func (q *Queries) ListReportsSubmittedBetween(ctx context.Context, start, end string) ([]Report, error) {
	return q.listReports(ctx, listReportsSubmittedBetween, start, end)
}

// Every open record, plus records submitted before end that were submitted
// or resolved on or after since.
const listSnapshotReports = `SELECT ` + reportColumns + ` FROM reports
WHERE status NOT IN ('Approved', 'Rejected')
   OR (submitted_date < ?1
       AND (submitted_date >= ?2 OR resolved_date >= ?2))
ORDER BY submitted_date, id`

func (q *Queries) ListSnapshotReports(ctx context.Context, end, since string) ([]Report, error) {
	return q.listReports(ctx, listSnapshotReports, end, since)
}

func (q *Queries) listReports(ctx context.Context, query string, args ...interface{}) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.ReportType, &r.Regulator, &r.SubmittedDate, &r.Status, &r.ResolvedDate); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateReportStatus = `UPDATE reports
SET status = ?, resolved_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = ?`

type UpdateReportStatusParams struct {
	Status       string
	ResolvedDate sql.NullString
	ID           string
	FromStatus   string
}

// UpdateReportStatus only applies when the stored status still equals
// FromStatus and reports the number of rows changed.
func (q *Queries) UpdateReportStatus(ctx context.Context, arg UpdateReportStatusParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateReportStatus, arg.Status, arg.ResolvedDate, arg.ID, arg.FromStatus)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertStatusEvent = `INSERT INTO status_events (report_id, from_status, to_status, effective) VALUES (?, ?, ?, ?)`

type InsertStatusEventParams struct {
	ReportID   string
	FromStatus string
	ToStatus   string
	Effective  string
}

func (q *Queries) InsertStatusEvent(ctx context.Context, arg InsertStatusEventParams) error {
	_, err := q.db.ExecContext(ctx, insertStatusEvent, arg.ReportID, arg.FromStatus, arg.ToStatus, arg.Effective)
	return err
}

const countStatusEvents = `SELECT COUNT(*) FROM status_events WHERE report_id = ?`

func (q *Queries) CountStatusEvents(ctx context.Context, reportID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countStatusEvents, reportID).Scan(&n)
	return n, err
}

const upsertSample = `INSERT INTO compliance_samples
    (week_start, label, submitted_count, pending_count, rejected_count, compliance_score)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(week_start) DO UPDATE SET
    label = excluded.label,
    submitted_count = excluded.submitted_count,
    pending_count = excluded.pending_count,
    rejected_count = excluded.rejected_count,
    compliance_score = excluded.compliance_score,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertSample(ctx context.Context, arg ComplianceSample) error {
	_, err := q.db.ExecContext(ctx, upsertSample,
		arg.WeekStart, arg.Label, arg.SubmittedCount, arg.PendingCount, arg.RejectedCount, arg.ComplianceScore)
	return err
}

const listSamplesBetween = `SELECT week_start, label, submitted_count, pending_count, rejected_count, compliance_score
FROM compliance_samples
WHERE week_start >= ? AND week_start < ?
ORDER BY week_start`

func (q *Queries) ListSamplesBetween(ctx context.Context, start, end string) ([]ComplianceSample, error) {
	rows, err := q.db.QueryContext(ctx, listSamplesBetween, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ComplianceSample
	for rows.Next() {
		var s ComplianceSample
		if err := rows.Scan(&s.WeekStart, &s.Label, &s.SubmittedCount, &s.PendingCount, &s.RejectedCount, &s.ComplianceScore); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
