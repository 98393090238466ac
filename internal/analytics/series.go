package analytics

import (
	"fmt"
	"math"
	"sort"

	"regdash/internal/core"
)

type (
	MonthlyPoint struct {
		Month     string `json:"month"`
		Year      int    `json:"year"`
		Submitted int    `json:"submitted"`
		Pending   int    `json:"pending"`
		Rejected  int    `json:"rejected"`
	}

	TypeShare struct {
		Type    string `json:"type"`
		Count   int    `json:"count"`
		Percent int    `json:"percent"`
	}

	CompliancePoint struct {
		Week        string    `json:"week"`
		PeriodStart core.Date `json:"periodStart"`
		Score       float64   `json:"score"`
	}
)

// MonthlyTrend groups records submitted in w by calendar month. Every month
// the window touches gets a point, oldest first, even when it has no records.
func MonthlyTrend(records []core.ReportRecord, w core.Window) []MonthlyPoint {
	months := w.Months()
	points := make([]MonthlyPoint, len(months))
	index := make(map[int]int, len(months))
	for i, m := range months {
		points[i] = MonthlyPoint{Month: m.Month().String()[:3], Year: m.Year()}
		index[monthKey(m)] = i
	}

	for _, r := range records {
		if !w.Contains(r.SubmittedDate) {
			continue
		}
		i, ok := index[monthKey(r.SubmittedDate)]
		if !ok {
			continue
		}
		points[i].Submitted++
		c := Classify(r.Status)
		switch {
		case c.Severity == SeverityFailure:
			points[i].Rejected++
		case c.Awaiting():
			points[i].Pending++
		}
	}
	return points
}

func monthKey(d core.Date) int {
	return d.Year()*12 + int(d.Month()) - 1
}

// TypeDistribution returns each report type's share of records, ordered by
// count descending then type name. Percentages are rounded to integers and
// the rounding residual goes to the largest category so they sum to 100.
func TypeDistribution(records []core.ReportRecord) []TypeShare {
	if len(records) == 0 {
		return []TypeShare{}
	}

	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Type]++
	}

	shares := make([]TypeShare, 0, len(counts))
	for typ, n := range counts {
		shares = append(shares, TypeShare{Type: typ, Count: n})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Type < shares[j].Type
	})

	total := float64(len(records))
	sum := 0
	for i := range shares {
		shares[i].Percent = int(math.Round(float64(shares[i].Count) / total * 100))
		sum += shares[i].Percent
	}

	residual := 100 - sum
	if shares[0].Percent+residual >= 0 {
		shares[0].Percent += residual
		return shares
	}
	// Many tiny categories can round up past 100 by more than the largest
	// share holds; take the excess one point at a time from the largest down.
	for i := 0; residual < 0; i = (i + 1) % len(shares) {
		if shares[i].Percent > 0 {
			shares[i].Percent--
			residual++
		}
	}
	return shares
}

// ComplianceTrend returns one point per ISO week starting inside w, scores
// copied unchanged from the sample for that week. A week without a sample
// fails with core.ErrIncompleteTrendData.
func ComplianceTrend(samples []core.PeriodSample, w core.Window) ([]CompliancePoint, error) {
	byWeek := make(map[string]core.PeriodSample, len(samples))
	for _, s := range samples {
		key := core.WeekStart(s.PeriodStart).String()
		if _, dup := byWeek[key]; dup {
			continue
		}
		byWeek[key] = s
	}

	weeks := w.Weeks()
	points := make([]CompliancePoint, 0, len(weeks))
	for _, monday := range weeks {
		s, ok := byWeek[monday.String()]
		if !ok {
			return nil, fmt.Errorf("%w: no sample for week of %s", core.ErrIncompleteTrendData, monday)
		}
		label := s.Label
		if label == "" {
			label = core.WeekLabel(monday)
		}
		points = append(points, CompliancePoint{Week: label, PeriodStart: monday, Score: s.ComplianceScore})
	}
	return points, nil
}
