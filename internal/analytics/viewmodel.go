package analytics

import (
	"sort"
	"time"

	"regdash/internal/core"
)

// ViewModel is everything the dashboard renders for one period. It is
// built fresh per request and not modified afterwards.
type ViewModel struct {
	Period           core.Period       `json:"period"`
	Window           core.Window       `json:"window"`
	PriorWindow      core.Window       `json:"priorWindow"`
	AsOf             core.Date         `json:"asOf"`
	Empty            bool              `json:"empty"`
	Metrics          Metrics           `json:"metrics"`
	MonthlyTrend     []MonthlyPoint    `json:"monthlyTrend"`
	TypeDistribution []TypeShare       `json:"typeDistribution"`
	ComplianceTrend  []CompliancePoint `json:"complianceTrend"`
	Recent           []RecentReport    `json:"recent"`
}

// RecentReport is a table row: the record plus its status badge.
type RecentReport struct {
	core.ReportRecord
	Badge Classification `json:"badge"`
}

// EmptyViewModel is the zero state shown when a period has no records.
// Metrics are undefined and the monthly trend is zero-filled.
func EmptyViewModel(period core.Period, asOf time.Time) (ViewModel, error) {
	w, prior, err := windows(period, asOf)
	if err != nil {
		return ViewModel{}, err
	}
	return ViewModel{
		Period:      period,
		Window:      w,
		PriorWindow: prior,
		AsOf:        core.DateOf(asOf),
		Empty:       true,
		Metrics: Metrics{
			TotalSubmitted:    MetricSnapshot{Unit: UnitCount},
			ComplianceRate:    MetricSnapshot{Unit: UnitPercent},
			PendingReviews:    MetricSnapshot{Unit: UnitCount},
			AvgProcessingDays: MetricSnapshot{Unit: UnitDays},
		},
		MonthlyTrend:     MonthlyTrend(nil, w),
		TypeDistribution: []TypeShare{},
		ComplianceTrend:  []CompliancePoint{},
		Recent:           []RecentReport{},
	}, nil
}

// RecentReports returns the n most recently submitted records in w, newest
// first with ties broken by ID descending. The input is not reordered.
func RecentReports(records []core.ReportRecord, w core.Window, n int) []RecentReport {
	scoped := inWindow(records, w)
	sort.SliceStable(scoped, func(i, j int) bool {
		a, b := scoped[i], scoped[j]
		if !a.SubmittedDate.Equal(b.SubmittedDate.Time) {
			return a.SubmittedDate.After(b.SubmittedDate.Time)
		}
		return a.ID > b.ID
	})
	if n < len(scoped) {
		scoped = scoped[:n]
	}
	out := make([]RecentReport, len(scoped))
	for i, r := range scoped {
		out[i] = RecentReport{ReportRecord: r, Badge: Classify(r.Status)}
	}
	return out
}

func windows(period core.Period, asOf time.Time) (core.Window, core.Window, error) {
	w, err := period.Window(asOf)
	if err != nil {
		return core.Window{}, core.Window{}, err
	}
	prior, err := period.Prior(w)
	if err != nil {
		return core.Window{}, core.Window{}, err
	}
	return w, prior, nil
}
