package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Report lifecycle statuses as they appear in the register.
const (
	StatusPending   Status = "Pending"
	StatusSubmitted Status = "Submitted"
	StatusInReview  Status = "In Review"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
)

type (
	Status string

	Date struct {
		time.Time
	}

	// ReportRecord is a single regulatory filing. ResolvedDate is zero until
	// the record reaches a terminal status.
	ReportRecord struct {
		ID            string `json:"id"`
		Type          string `json:"type"`
		Regulator     string `json:"regulator"`
		SubmittedDate Date   `json:"submittedDate"`
		Status        Status `json:"status"`
		ResolvedDate  Date   `json:"resolvedDate"`
	}

	// PeriodSample is a pre-aggregated weekly observation. PeriodStart is the
	// Monday of the ISO week the sample covers.
	PeriodSample struct {
		Label           string  `json:"label"`
		PeriodStart     Date    `json:"periodStart"`
		SubmittedCount  int     `json:"submittedCount"`
		PendingCount    int     `json:"pendingCount"`
		RejectedCount   int     `json:"rejectedCount"`
		ComplianceScore float64 `json:"complianceScore"`
	}
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusPending, StatusSubmitted, StatusInReview, StatusApproved, StatusRejected}

// allowed holds the forward-only lifecycle edges.
var allowed = map[Status][]Status{
	StatusPending:   {StatusSubmitted, StatusInReview},
	StatusSubmitted: {StatusInReview},
	StatusInReview:  {StatusApproved, StatusRejected},
}

// ParseStatus accepts the display form ("In Review") as well as snake and
// lower case variants coming from spreadsheets and event producers.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for _, st := range Statuses {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	if norm == "inreview" {
		return StatusInReview, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, s)
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) float64 {
	return other.Sub(d.Time).Hours() / 24
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsOpen reports whether the record still awaits a decision.
func (r ReportRecord) IsOpen() bool {
	return !r.Status.IsTerminal()
}

// OpenAt reports whether the record was awaiting a decision at the start of day d.
func (r ReportRecord) OpenAt(d Date) bool {
	if !r.SubmittedDate.Before(d.Time) {
		return false
	}
	if r.IsOpen() {
		return true
	}
	return !r.ResolvedDate.IsZero() && !r.ResolvedDate.Before(d.Time)
}

func (r ReportRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("%w: %s: empty report type", ErrInvalidRecord, r.ID)
	}
	if err := r.SubmittedDate.Validate(); err != nil {
		return fmt.Errorf("%w: %s: submitted %v", ErrInvalidRecord, r.ID, err)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: %s: unknown status %q", ErrInvalidRecord, r.ID, r.Status)
	}
	if r.Status.IsTerminal() && r.ResolvedDate.IsZero() {
		return fmt.Errorf("%w: %s: %s without resolution date", ErrInvalidRecord, r.ID, r.Status)
	}
	if !r.ResolvedDate.IsZero() && r.ResolvedDate.Before(r.SubmittedDate.Time) {
		return fmt.Errorf("%w: %s: resolved before submission", ErrInvalidRecord, r.ID)
	}
	return nil
}

func (s PeriodSample) Validate() error {
	if err := s.PeriodStart.Validate(); err != nil {
		return fmt.Errorf("%w: sample %q: %v", ErrInvalidRecord, s.Label, err)
	}
	if s.SubmittedCount < 0 || s.PendingCount < 0 || s.RejectedCount < 0 {
		return fmt.Errorf("%w: sample %q: negative count", ErrInvalidRecord, s.Label)
	}
	if math.IsNaN(s.ComplianceScore) || s.ComplianceScore < 0 || s.ComplianceScore > 100 {
		return fmt.Errorf("%w: sample %q: compliance score %.1f out of range", ErrInvalidRecord, s.Label, s.ComplianceScore)
	}
	return nil
}

// Transition returns r moved to status to on day at. Terminal statuses
// record at as the resolution date.
func (r ReportRecord) Transition(to Status, at Date) (ReportRecord, error) {
	if !CanTransition(r.Status, to) {
		return r, &TransitionError{ID: r.ID, From: r.Status, To: to}
	}
	if at.Before(r.SubmittedDate.Time) {
		return r, fmt.Errorf("%w: %s: status change dated before submission", ErrInvalidRecord, r.ID)
	}
	r.Status = to
	if to.IsTerminal() {
		r.ResolvedDate = at
	}
	return r, nil
}

// Equal compares records field by field, dates by instant.
func (r ReportRecord) Equal(o ReportRecord) bool {
	return r.ID == o.ID && r.Type == o.Type && r.Regulator == o.Regulator &&
		r.Status == o.Status &&
		r.SubmittedDate.Equal(o.SubmittedDate.Time) &&
		r.ResolvedDate.Equal(o.ResolvedDate.Time)
}
