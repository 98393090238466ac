package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"regdash/internal/core"
)

// EventType names a report lifecycle event. It doubles as the AMQP message
// type header.
type EventType string

const (
	EventReportSubmitted     EventType = "report.submitted"
	EventReportStatusChanged EventType = "report.status_changed"
	EventSampleRecorded      EventType = "sample.recorded"
)

// ReportEvent is the envelope for everything the ingest worker applies to
// the register. Exactly one payload is set, according to Type.
type ReportEvent struct {
	MessageID string    `json:"messageId"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// report.submitted
	Report *core.ReportRecord `json:"report,omitempty"`

	// report.status_changed
	ReportID string      `json:"reportId,omitempty"`
	Status   core.Status `json:"status,omitempty"`
	At       core.Date   `json:"at"`

	// sample.recorded
	Sample *core.PeriodSample `json:"sample,omitempty"`
}

func newEvent(t EventType) *ReportEvent {
	return &ReportEvent{
		MessageID: uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

func NewReportSubmitted(r core.ReportRecord) *ReportEvent {
	ev := newEvent(EventReportSubmitted)
	ev.Report = &r
	return ev
}

func NewStatusChanged(id string, to core.Status, at core.Date) *ReportEvent {
	ev := newEvent(EventReportStatusChanged)
	ev.ReportID = id
	ev.Status = to
	ev.At = at
	return ev
}

func NewSampleRecorded(s core.PeriodSample) *ReportEvent {
	ev := newEvent(EventSampleRecorded)
	ev.Sample = &s
	return ev
}

// Validate checks that the payload matches the event type. Payload contents
// are validated by the store that applies them.
func (e *ReportEvent) Validate() error {
	if e.MessageID == "" {
		return fmt.Errorf("%w: event without message id", core.ErrInvalidRecord)
	}
	switch e.Type {
	case EventReportSubmitted:
		if e.Report == nil {
			return fmt.Errorf("%w: %s without report", core.ErrInvalidRecord, e.Type)
		}
	case EventReportStatusChanged:
		if e.ReportID == "" || !e.Status.Valid() || e.At.IsZero() {
			return fmt.Errorf("%w: %s needs reportId, status and at", core.ErrInvalidRecord, e.Type)
		}
	case EventSampleRecorded:
		if e.Sample == nil {
			return fmt.Errorf("%w: %s without sample", core.ErrInvalidRecord, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", core.ErrInvalidRecord, e.Type)
	}
	return nil
}

func (e *ReportEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ReportEventFromJSON(data []byte) (*ReportEvent, error) {
	var ev ReportEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
