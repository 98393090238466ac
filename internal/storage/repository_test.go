package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"regdash/internal/core"
	"regdash/internal/store"
)

var (
	_ store.Reader = (*SQLiteRepository)(nil)
	_ store.Writer = (*SQLiteRepository)(nil)
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "regdash.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedRepo(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	ctx := context.Background()
	d := core.NewDate
	records := []core.ReportRecord{
		{ID: "REP-1", Type: "AML/CTF", Regulator: "FinCEN", SubmittedDate: d(2023, 11, 2), Status: core.StatusInReview},
		{ID: "REP-2", Type: "Basel III", Regulator: "ECB", SubmittedDate: d(2024, 1, 5), Status: core.StatusApproved, ResolvedDate: d(2024, 1, 9)},
		{ID: "REP-3", Type: "FINRA", Regulator: "SEC", SubmittedDate: d(2024, 2, 10), Status: core.StatusPending},
		{ID: "REP-4", Type: "MiFID II", Regulator: "ESMA", SubmittedDate: d(2024, 2, 10), Status: core.StatusSubmitted},
		{ID: "REP-5", Type: "MiFID II", Regulator: "ESMA", SubmittedDate: d(2023, 10, 1), Status: core.StatusApproved, ResolvedDate: d(2023, 10, 4)},
		{ID: "REP-6", Type: "FINRA", Regulator: "SEC", SubmittedDate: d(2023, 12, 1), Status: core.StatusRejected, ResolvedDate: d(2024, 1, 3)},
	}
	for _, r := range records {
		if err := repo.SaveReport(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}
	samples := []core.PeriodSample{
		{Label: "W5", PeriodStart: d(2024, 1, 29), SubmittedCount: 3, ComplianceScore: 94},
		{Label: "W6", PeriodStart: d(2024, 2, 5), SubmittedCount: 5, PendingCount: 1, ComplianceScore: 96.5},
		{Label: "W7", PeriodStart: d(2024, 2, 14), SubmittedCount: 2, RejectedCount: 1, ComplianceScore: 91},
	}
	for _, s := range samples {
		if err := repo.SaveSample(ctx, s); err != nil {
			t.Fatalf("save sample %s: %v", s.Label, err)
		}
	}
}

func TestRepositoryFetch(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)
	ctx := context.Background()

	recs, err := repo.FetchRecords(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 1))
	if err != nil {
		t.Fatalf("fetch records: %v", err)
	}
	want := []string{"REP-2", "REP-3", "REP-4"}
	if len(recs) != len(want) {
		t.Fatalf("got %d records", len(recs))
	}
	for i, id := range want {
		if recs[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, recs[i].ID, id)
		}
	}
	if recs[0].ResolvedDate.String() != "2024-01-09" || !recs[1].ResolvedDate.IsZero() {
		t.Fatalf("resolution dates not round-tripped: %+v", recs[:2])
	}

	samples, err := repo.FetchSamples(ctx, core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 1))
	if err != nil {
		t.Fatalf("fetch samples: %v", err)
	}
	// W7 was recorded mid-week and is stored under its Monday
	if len(samples) != 2 || samples[1].PeriodStart.String() != "2024-02-12" || samples[0].ComplianceScore != 96.5 {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}

func TestRepositoryReadSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)

	q := store.SnapshotQuery{
		Window: core.Window{Start: core.NewDate(2024, 2, 1), End: core.NewDate(2024, 3, 1)},
		Prior:  core.Window{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 2, 1)},
	}
	snap, err := repo.ReadSnapshot(context.Background(), q)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	var ids []string
	for _, r := range snap.Records {
		if !q.InSnapshot(r) {
			t.Fatalf("record %s outside snapshot scope", r.ID)
		}
		ids = append(ids, r.ID)
	}
	want := []string{"REP-1", "REP-6", "REP-2", "REP-3", "REP-4"}
	if len(ids) != len(want) {
		t.Fatalf("got %v want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v want %v", ids, want)
		}
	}
	if len(snap.Samples) != 2 {
		t.Fatalf("expected two February samples, got %+v", snap.Samples)
	}
}

func TestRepositoryUpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)
	ctx := context.Background()

	if err := repo.UpdateStatus(ctx, "REP-3", core.StatusInReview, core.NewDate(2024, 2, 12)); err != nil {
		t.Fatalf("to in review: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "REP-3", core.StatusApproved, core.NewDate(2024, 2, 20)); err != nil {
		t.Fatalf("to approved: %v", err)
	}

	err := repo.UpdateStatus(ctx, "REP-3", core.StatusPending, core.NewDate(2024, 2, 21))
	var te *core.TransitionError
	if !errors.As(err, &te) || te.From != core.StatusApproved {
		t.Fatalf("expected transition error, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "REP-404", core.StatusApproved, core.NewDate(2024, 2, 21)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	recs, _ := repo.FetchRecords(ctx, core.NewDate(2024, 2, 10), core.NewDate(2024, 2, 11))
	var got core.ReportRecord
	for _, r := range recs {
		if r.ID == "REP-3" {
			got = r
		}
	}
	if got.Status != core.StatusApproved || got.ResolvedDate.String() != "2024-02-20" {
		t.Fatalf("unexpected record after updates: %+v", got)
	}

	n, err := repo.StatusHistoryLen(ctx, "REP-3")
	if err != nil || n != 2 {
		t.Fatalf("history: n=%d err=%v", n, err)
	}
}

func TestRepositorySaveReportConflicts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	r := core.ReportRecord{ID: "REP-1", Type: "FINRA", Regulator: "SEC", SubmittedDate: core.NewDate(2024, 2, 1), Status: core.StatusSubmitted}

	if err := repo.SaveReport(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveReport(ctx, r); err != nil {
		t.Fatalf("redelivered save should be a no-op: %v", err)
	}
	r.Regulator = "FINRA"
	if err := repo.SaveReport(ctx, r); !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := repo.SaveReport(ctx, core.ReportRecord{ID: "bad"}); !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRepositoryClosedIsUnavailable(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()

	_, err := repo.FetchRecords(context.Background(), core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1))
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := repo.Ping(context.Background()); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}

func TestRepositoryReadSnapshotKeepsLaterOpenRecords(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)
	ctx := context.Background()
	d := core.NewDate
	for _, r := range []core.ReportRecord{
		{ID: "REP-7", Type: "FINRA", Regulator: "SEC", SubmittedDate: d(2024, 4, 2), Status: core.StatusPending},
		{ID: "REP-8", Type: "FINRA", Regulator: "SEC", SubmittedDate: d(2024, 4, 3), Status: core.StatusApproved, ResolvedDate: d(2024, 4, 8)},
	} {
		if err := repo.SaveReport(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	q := store.SnapshotQuery{
		Window: core.Window{Start: core.NewDate(2024, 2, 1), End: core.NewDate(2024, 3, 1)},
		Prior:  core.Window{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 2, 1)},
	}
	snap, err := repo.ReadSnapshot(ctx, q)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	ids := map[string]bool{}
	for _, r := range snap.Records {
		if !q.InSnapshot(r) {
			t.Fatalf("record %s outside snapshot scope", r.ID)
		}
		ids[r.ID] = true
	}
	if !ids["REP-7"] {
		t.Fatalf("open record submitted after the window is missing: %v", ids)
	}
	if ids["REP-8"] {
		t.Fatalf("resolved record submitted after the window included: %v", ids)
	}
	if len(ids) != 6 {
		t.Fatalf("expected the five in-scope records plus REP-7, got %v", ids)
	}
}
