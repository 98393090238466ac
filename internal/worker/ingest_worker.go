package worker

import (
	"context"
	"errors"
	"fmt"

	"regdash/internal/amqp"
	"regdash/internal/core"
	"regdash/internal/log"
	"regdash/internal/store"
)

// Event outcomes reported to the observer.
const (
	OutcomeApplied   = "applied"
	OutcomeDiscarded = "discarded"
	OutcomeRetry     = "retry"
)

// EventObserver receives one call per handled event.
type EventObserver interface {
	ObserveEvent(eventType, outcome string)
}

// IngestWorker applies report lifecycle events to the register. It is the
// only writer; the dashboard only reads.
type IngestWorker struct {
	writer   store.Writer
	logger   *log.StructuredLogger
	observer EventObserver
}

type Option func(*IngestWorker)

func WithObserver(o EventObserver) Option {
	return func(w *IngestWorker) { w.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(w *IngestWorker) { w.logger = log.NewStructuredLogger(l) }
}

func NewIngestWorker(writer store.Writer, opts ...Option) *IngestWorker {
	w := &IngestWorker{
		writer: writer,
		logger: log.NewStructuredLogger(log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleEvent applies ev. Errors that redelivery cannot fix are wrapped in
// amqp.ErrDiscard; anything else is left for the broker to retry.
func (w *IngestWorker) HandleEvent(ctx context.Context, ev *amqp.ReportEvent) error {
	reportID, status, err := w.apply(ctx, ev)
	if err != nil {
		if permanent(err) {
			w.observe(ev.Type, OutcomeDiscarded)
			return fmt.Errorf("%w: %s %s: %w", amqp.ErrDiscard, ev.Type, ev.MessageID, err)
		}
		w.observe(ev.Type, OutcomeRetry)
		return fmt.Errorf("%s %s: %w", ev.Type, ev.MessageID, err)
	}

	w.observe(ev.Type, OutcomeApplied)
	w.logger.LogEventApplied(ctx, string(ev.Type), ev.MessageID, reportID, status)
	return nil
}

func (w *IngestWorker) apply(ctx context.Context, ev *amqp.ReportEvent) (string, string, error) {
	if err := ev.Validate(); err != nil {
		return "", "", err
	}
	switch ev.Type {
	case amqp.EventReportSubmitted:
		return ev.Report.ID, string(ev.Report.Status), w.writer.SaveReport(ctx, *ev.Report)
	case amqp.EventReportStatusChanged:
		return ev.ReportID, string(ev.Status), w.writer.UpdateStatus(ctx, ev.ReportID, ev.Status, ev.At)
	case amqp.EventSampleRecorded:
		return "", "", w.writer.SaveSample(ctx, *ev.Sample)
	}
	return "", "", fmt.Errorf("%w: unknown event type %q", core.ErrInvalidRecord, ev.Type)
}

// permanent reports whether err will recur on every redelivery. A status
// change for an unknown report is dropped rather than retried forever.
func permanent(err error) bool {
	return errors.Is(err, core.ErrInvalidRecord) ||
		errors.Is(err, core.ErrInvalidTransition) ||
		errors.Is(err, core.ErrNotFound)
}

func (w *IngestWorker) observe(t amqp.EventType, outcome string) {
	if w.observer != nil {
		w.observer.ObserveEvent(string(t), outcome)
	}
}
