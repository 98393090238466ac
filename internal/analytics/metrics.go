package analytics

import (
	"fmt"
	"math"

	"regdash/internal/core"
)

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

const (
	UnitCount   Unit = "count"
	UnitPercent Unit = "percent"
	UnitDays    Unit = "days"
)

type (
	Direction string
	Unit      string

	// MetricSnapshot pairs a metric with its value over the prior window.
	// Nil values are undefined, never zero.
	MetricSnapshot struct {
		Value      *float64  `json:"value"`
		PriorValue *float64  `json:"priorValue"`
		Delta      *float64  `json:"delta"`
		Direction  Direction `json:"direction,omitempty"`
		Unit       Unit      `json:"unit"`
	}

	Metrics struct {
		TotalSubmitted    MetricSnapshot `json:"totalSubmitted"`
		ComplianceRate    MetricSnapshot `json:"complianceRate"`
		PendingReviews    MetricSnapshot `json:"pendingReviews"`
		AvgProcessingDays MetricSnapshot `json:"avgProcessingDays"`
	}
)

// AggregateMetrics computes the headline metrics for window cur and the same
// metrics over prior. records is a snapshot covering both windows and every
// record still open.
//
// Pending reviews is a live count of open records in the snapshot; its prior
// value is the number of records that were open when cur started.
func AggregateMetrics(records []core.ReportRecord, cur, prior core.Window) (Metrics, error) {
	inCur := inWindow(records, cur)
	if len(inCur) == 0 {
		return Metrics{}, fmt.Errorf("%w: no records submitted in %s", core.ErrInsufficientData, cur)
	}
	inPrior := inWindow(records, prior)

	var live, openAtStart int
	for _, r := range records {
		if Classify(r.Status).Awaiting() {
			live++
		}
		if r.OpenAt(cur.Start) {
			openAtStart++
		}
	}

	return Metrics{
		TotalSubmitted:    newSnapshot(UnitCount, count(inCur), count(inPrior)),
		ComplianceRate:    newSnapshot(UnitPercent, complianceRate(inCur), complianceRate(inPrior)),
		PendingReviews:    newSnapshot(UnitCount, ptr(float64(live)), ptr(float64(openAtStart))),
		AvgProcessingDays: newSnapshot(UnitDays, avgProcessingDays(inCur), avgProcessingDays(inPrior)),
	}, nil
}

func newSnapshot(unit Unit, value, prior *float64) MetricSnapshot {
	m := MetricSnapshot{Value: value, PriorValue: prior, Unit: unit}
	if value == nil || prior == nil {
		return m
	}
	d := round1(*value - *prior)
	m.Delta = &d
	switch {
	case d > 0:
		m.Direction = DirectionUp
	case d < 0:
		m.Direction = DirectionDown
	default:
		m.Direction = DirectionNeutral
	}
	return m
}

func count(records []core.ReportRecord) *float64 {
	return ptr(float64(len(records)))
}

// complianceRate is Approved / (Approved + Rejected) as a percentage.
func complianceRate(records []core.ReportRecord) *float64 {
	var approved, rejected int
	for _, r := range records {
		switch Classify(r.Status).Severity {
		case SeveritySuccess:
			approved++
		case SeverityFailure:
			rejected++
		}
	}
	if approved+rejected == 0 {
		return nil
	}
	return ptr(round1(float64(approved) / float64(approved+rejected) * 100))
}

func avgProcessingDays(records []core.ReportRecord) *float64 {
	var total float64
	var n int
	for _, r := range records {
		if !r.Status.IsTerminal() || r.ResolvedDate.IsZero() {
			continue
		}
		total += r.SubmittedDate.DaysUntil(r.ResolvedDate)
		n++
	}
	if n == 0 {
		return nil
	}
	return ptr(round1(total / float64(n)))
}

// inWindow returns the records submitted inside w, in input order.
func inWindow(records []core.ReportRecord, w core.Window) []core.ReportRecord {
	var out []core.ReportRecord
	for _, r := range records {
		if w.Contains(r.SubmittedDate) {
			out = append(out, r)
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ptr(v float64) *float64 {
	return &v
}
