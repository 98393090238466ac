package worker

import (
	"context"
	"errors"
	"testing"

	"regdash/internal/amqp"
	"regdash/internal/core"
	"regdash/internal/store"
	"regdash/internal/store/memory"
)

type countingObserver struct {
	outcomes map[string]int
}

func (o *countingObserver) ObserveEvent(eventType, outcome string) {
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[eventType+"/"+outcome]++
}

// flakyWriter fails every write with a transient error.
type flakyWriter struct{ store.Writer }

func (flakyWriter) SaveReport(context.Context, core.ReportRecord) error {
	return core.ErrStoreUnavailable
}

func newMemoryStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.New(nil, nil)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	return s
}

func TestIngestLifecycle(t *testing.T) {
	s := newMemoryStore(t)
	obs := &countingObserver{}
	w := NewIngestWorker(s, WithObserver(obs))
	ctx := context.Background()

	rec := core.ReportRecord{
		ID: "REP-100", Type: "Basel III", Regulator: "ECB",
		SubmittedDate: core.NewDate(2024, 2, 1), Status: core.StatusSubmitted,
	}
	events := []*amqp.ReportEvent{
		amqp.NewReportSubmitted(rec),
		amqp.NewStatusChanged("REP-100", core.StatusInReview, core.NewDate(2024, 2, 3)),
		amqp.NewStatusChanged("REP-100", core.StatusApproved, core.NewDate(2024, 2, 6)),
		amqp.NewSampleRecorded(core.PeriodSample{Label: "W6", PeriodStart: core.NewDate(2024, 2, 5), SubmittedCount: 1, ComplianceScore: 97}),
	}
	for _, ev := range events {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("%s: %v", ev.Type, err)
		}
	}

	recs, err := s.FetchRecords(ctx, core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 1))
	if err != nil || len(recs) != 1 {
		t.Fatalf("fetch: %v %+v", err, recs)
	}
	if recs[0].Status != core.StatusApproved || recs[0].ResolvedDate.String() != "2024-02-06" {
		t.Fatalf("unexpected record: %+v", recs[0])
	}
	samples, _ := s.FetchSamples(ctx, core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 1))
	if len(samples) != 1 || samples[0].ComplianceScore != 97 {
		t.Fatalf("unexpected samples: %+v", samples)
	}
	if obs.outcomes["report.status_changed/applied"] != 2 {
		t.Fatalf("unexpected outcomes: %v", obs.outcomes)
	}
}

func TestIngestDiscardsPermanentFailures(t *testing.T) {
	s := newMemoryStore(t)
	w := NewIngestWorker(s)
	ctx := context.Background()

	rec := core.ReportRecord{
		ID: "REP-1", Type: "FINRA", Regulator: "SEC",
		SubmittedDate: core.NewDate(2024, 2, 1), Status: core.StatusApproved, ResolvedDate: core.NewDate(2024, 2, 2),
	}
	if err := w.HandleEvent(ctx, amqp.NewReportSubmitted(rec)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	tests := []struct {
		name string
		ev   *amqp.ReportEvent
		is   error
	}{
		{"backwards transition", amqp.NewStatusChanged("REP-1", core.StatusPending, core.NewDate(2024, 2, 3)), core.ErrInvalidTransition},
		{"unknown report", amqp.NewStatusChanged("REP-404", core.StatusApproved, core.NewDate(2024, 2, 3)), core.ErrNotFound},
		{"invalid record", amqp.NewReportSubmitted(core.ReportRecord{ID: "REP-2"}), core.ErrInvalidRecord},
		{"conflicting resubmission", amqp.NewReportSubmitted(core.ReportRecord{
			ID: "REP-1", Type: "FINRA", Regulator: "FCA",
			SubmittedDate: core.NewDate(2024, 2, 1), Status: core.StatusSubmitted,
		}), core.ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.HandleEvent(ctx, tt.ev)
			if !errors.Is(err, amqp.ErrDiscard) || !errors.Is(err, tt.is) {
				t.Fatalf("expected discard wrapping %v, got %v", tt.is, err)
			}
		})
	}

	// A redelivered submission is a no-op.
	if err := w.HandleEvent(ctx, amqp.NewReportSubmitted(rec)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
}

func TestIngestRetriesTransientFailures(t *testing.T) {
	obs := &countingObserver{}
	w := NewIngestWorker(flakyWriter{}, WithObserver(obs))
	rec := core.ReportRecord{
		ID: "REP-1", Type: "FINRA", Regulator: "SEC",
		SubmittedDate: core.NewDate(2024, 2, 1), Status: core.StatusSubmitted,
	}

	err := w.HandleEvent(context.Background(), amqp.NewReportSubmitted(rec))
	if err == nil || errors.Is(err, amqp.ErrDiscard) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("cause lost: %v", err)
	}
	if obs.outcomes["report.submitted/retry"] != 1 {
		t.Fatalf("unexpected outcomes: %v", obs.outcomes)
	}
}
