package analytics

import "regdash/internal/core"

// Severity is the semantic weight a status carries on the dashboard.
type Severity string

const (
	SeveritySuccess       Severity = "success"
	SeverityFailure       Severity = "failure"
	SeverityAttention     Severity = "attention"
	SeverityInformational Severity = "informational"
)

// Classification is the display category of a report status.
type Classification struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
	Known    bool     `json:"-"`
}

var classifications = map[core.Status]Classification{
	core.StatusApproved:  {Label: "Approved", Severity: SeveritySuccess, Known: true},
	core.StatusRejected:  {Label: "Rejected", Severity: SeverityFailure, Known: true},
	core.StatusInReview:  {Label: "In Review", Severity: SeverityAttention, Known: true},
	core.StatusPending:   {Label: "Pending", Severity: SeverityInformational, Known: true},
	core.StatusSubmitted: {Label: "Submitted", Severity: SeverityInformational, Known: true},
}

// Classify maps a status to its display category. Statuses outside the
// lifecycle fall back to informational with Known unset.
func Classify(s core.Status) Classification {
	if c, ok := classifications[s]; ok {
		return c
	}
	label := string(s)
	if label == "" {
		label = "Unknown"
	}
	return Classification{Label: label, Severity: SeverityInformational}
}

// Awaiting reports whether records of this classification still need a decision.
func (c Classification) Awaiting() bool {
	return c.Severity == SeverityInformational || c.Severity == SeverityAttention
}
