package http

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"regdash/internal/analytics"
	"regdash/internal/core"
)

// typeColors is the chart palette for the report types the register knows.
var typeColors = map[string]string{
	"AML/CTF":   "#2563eb",
	"Basel III": "#7c3aed",
	"FINRA":     "#0891b2",
	"MiFID II":  "#059669",
}

// fallbackColors is cycled through for types missing from typeColors.
var fallbackColors = []string{"#db2777", "#ea580c", "#65a30d", "#4f46e5", "#0d9488", "#9333ea"}

// Series colours for the monthly trend bars.
const (
	ColorSubmitted = "#2563eb"
	ColorPending   = "#f59e0b"
	ColorRejected  = "#ef4444"
)

// TypeColor returns a stable colour for a report type.
func TypeColor(reportType string) string {
	if c, ok := typeColors[reportType]; ok {
		return c
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(reportType))
	return fallbackColors[h.Sum32()%uint32(len(fallbackColors))]
}

// BadgeClass returns the CSS class of a status badge.
func BadgeClass(c analytics.Classification) string {
	switch c.Severity {
	case analytics.SeveritySuccess:
		return "badge badge--success"
	case analytics.SeverityFailure:
		return "badge badge--failure"
	case analytics.SeverityAttention:
		return "badge badge--attention"
	default:
		return "badge badge--info"
	}
}

// lowerIsBetter lists the metrics where a falling value is good news.
var lowerIsBetter = map[string]bool{
	"pending":    true,
	"processing": true,
}

// TrendClass colours a metric's direction by whether the move is good.
func TrendClass(metric string, d analytics.Direction) string {
	switch d {
	case analytics.DirectionUp, analytics.DirectionDown:
		good := (d == analytics.DirectionUp) != lowerIsBetter[metric]
		if good {
			return "trend trend--" + string(d) + " trend--good"
		}
		return "trend trend--" + string(d) + " trend--bad"
	default:
		return "trend trend--neutral"
	}
}

// FormatValue renders a metric value with its unit. Undefined values
// render as an em dash placeholder.
func FormatValue(m analytics.MetricSnapshot) string {
	if m.Value == nil {
		return "—"
	}
	return formatNumber(*m.Value, m.Unit)
}

// FormatDelta renders the change against the prior window, e.g.
// "+12 from last month".
func FormatDelta(m analytics.MetricSnapshot, period core.Period) string {
	if m.Delta == nil {
		return "no comparison available"
	}
	sign := "+"
	if *m.Delta < 0 {
		sign = "-"
	}
	return sign + formatNumber(math.Abs(*m.Delta), m.Unit) + " from last " + string(period)
}

func formatNumber(v float64, unit analytics.Unit) string {
	switch unit {
	case analytics.UnitPercent:
		return strconv.FormatFloat(v, 'f', 1, 64) + "%"
	case analytics.UnitDays:
		return strconv.FormatFloat(v, 'f', 1, 64) + " days"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// PeriodLabel is the selector text for a period.
func PeriodLabel(p core.Period) string {
	switch p {
	case core.PeriodWeek:
		return "This Week"
	case core.PeriodQuarter:
		return "This Quarter"
	default:
		return "This Month"
	}
}

// Chart geometry for the server-rendered SVG charts.
const (
	chartWidth  = 560
	chartHeight = 220
	chartPad    = 28
)

type (
	metricCard struct {
		Title      string
		Value      string
		Change     string
		TrendClass string
	}

	bar struct {
		X, Y, Width, Height float64
		Color               string
		Title               string
	}

	monthGroup struct {
		Label  string
		LabelX float64
		Bars   []bar
	}

	slice struct {
		Type    string
		Count   int
		Percent int
		Color   string
		// Dash is the stroke-dasharray that draws this slice on a donut
		// whose circumference is 100.
		Dash   string
		Offset string
	}

	linePoint struct {
		X, Y  float64
		Label string
		Score string
	}

	recentRow struct {
		ID, Type, Regulator, Date string
		Status, BadgeClass        string
	}

	periodOption struct {
		Value, Label string
		Selected     bool
	}

	// dashboardPage is the template model for the HTML dashboard.
	dashboardPage struct {
		Period     core.Period
		Periods    []periodOption
		AsOf       string
		Window     string
		Empty      bool
		Error      string
		Cards      []metricCard
		Months     []monthGroup
		Slices     []slice
		Line       []linePoint
		Polyline   string
		LineMin    string
		LineMax    string
		Recent     []recentRow
		ExportJSON string
		ExportCSV  string
		Legend     []slice
	}
)

func newPeriodOptions(selected core.Period) []periodOption {
	out := make([]periodOption, len(core.Periods))
	for i, p := range core.Periods {
		out[i] = periodOption{Value: string(p), Label: PeriodLabel(p), Selected: p == selected}
	}
	return out
}

// newDashboardPage projects a view model onto the template model.
func newDashboardPage(vm analytics.ViewModel) dashboardPage {
	m := vm.Metrics
	page := dashboardPage{
		Period:  vm.Period,
		Periods: newPeriodOptions(vm.Period),
		AsOf:    vm.AsOf.String(),
		Window:  vm.Window.String(),
		Empty:   vm.Empty,
		Cards: []metricCard{
			card("Total Reports Submitted", "submitted", m.TotalSubmitted, vm.Period),
			card("Compliance Rate", "compliance", m.ComplianceRate, vm.Period),
			card("Pending Reviews", "pending", m.PendingReviews, vm.Period),
			card("Avg. Processing Time", "processing", m.AvgProcessingDays, vm.Period),
		},
		Months: monthBars(vm.MonthlyTrend),
		Slices: donut(vm.TypeDistribution),
		Recent: recentRows(vm.Recent),
	}
	page.Line, page.Polyline, page.LineMin, page.LineMax = complianceLine(vm.ComplianceTrend)

	q := "period=" + string(vm.Period) + "&asOf=" + vm.AsOf.String()
	page.ExportJSON = "/api/dashboard/export?format=json&" + q
	page.ExportCSV = "/api/dashboard/export?format=csv&" + q
	page.Legend = []slice{
		{Type: "Submitted", Color: ColorSubmitted},
		{Type: "Pending", Color: ColorPending},
		{Type: "Rejected", Color: ColorRejected},
	}
	return page
}

func card(title, metric string, s analytics.MetricSnapshot, period core.Period) metricCard {
	return metricCard{
		Title:      title,
		Value:      FormatValue(s),
		Change:     FormatDelta(s, period),
		TrendClass: TrendClass(metric, s.Direction),
	}
}

// monthBars lays out grouped bars, three per month, scaled to the
// largest count.
func monthBars(points []analytics.MonthlyPoint) []monthGroup {
	if len(points) == 0 {
		return nil
	}
	peak := 1
	for _, p := range points {
		peak = max(peak, p.Submitted, p.Pending, p.Rejected)
	}

	plotW := float64(chartWidth - 2*chartPad)
	plotH := float64(chartHeight - 2*chartPad)
	groupW := plotW / float64(len(points))
	barW := groupW / 4

	out := make([]monthGroup, len(points))
	for i, p := range points {
		x0 := float64(chartPad) + float64(i)*groupW + barW/2
		g := monthGroup{Label: p.Month, LabelX: round2(x0 + 1.5*barW)}
		for j, s := range []struct {
			n     int
			color string
			name  string
		}{
			{p.Submitted, ColorSubmitted, "submitted"},
			{p.Pending, ColorPending, "pending"},
			{p.Rejected, ColorRejected, "rejected"},
		} {
			h := plotH * float64(s.n) / float64(peak)
			g.Bars = append(g.Bars, bar{
				X:      round2(x0 + float64(j)*barW),
				Y:      round2(float64(chartPad) + plotH - h),
				Width:  round2(barW - 2),
				Height: round2(h),
				Color:  s.color,
				Title:  fmt.Sprintf("%s %d: %d %s", p.Month, p.Year, s.n, s.name),
			})
		}
		out[i] = g
	}
	return out
}

// donut converts the type distribution into dash segments. Percentages
// already sum to 100 so the segments close the ring.
func donut(shares []analytics.TypeShare) []slice {
	out := make([]slice, len(shares))
	offset := 0
	for i, s := range shares {
		out[i] = slice{
			Type:    s.Type,
			Count:   s.Count,
			Percent: s.Percent,
			Color:   TypeColor(s.Type),
			Dash:    strconv.Itoa(s.Percent) + " " + strconv.Itoa(100-s.Percent),
			// SVG dashes run clockwise from 3 o'clock; 25 rotates the
			// start to 12 o'clock.
			Offset: strconv.Itoa(25 - offset),
		}
		offset += s.Percent
	}
	return out
}

// complianceLine scales weekly scores onto the chart. The y axis spans
// the observed range padded to whole points so small moves stay visible.
func complianceLine(points []analytics.CompliancePoint) ([]linePoint, string, string, string) {
	if len(points) == 0 {
		return nil, "", "", ""
	}
	lo, hi := points[0].Score, points[0].Score
	for _, p := range points {
		lo = math.Min(lo, p.Score)
		hi = math.Max(hi, p.Score)
	}
	lo = math.Max(0, math.Floor(lo)-1)
	hi = math.Min(100, math.Ceil(hi)+1)
	if hi <= lo {
		hi = lo + 1
	}

	plotW := float64(chartWidth - 2*chartPad)
	plotH := float64(chartHeight - 2*chartPad)
	step := 0.0
	if len(points) > 1 {
		step = plotW / float64(len(points)-1)
	}

	out := make([]linePoint, len(points))
	coords := make([]string, len(points))
	for i, p := range points {
		x := float64(chartPad) + float64(i)*step
		if len(points) == 1 {
			x = float64(chartWidth) / 2
		}
		y := float64(chartPad) + plotH*(hi-p.Score)/(hi-lo)
		out[i] = linePoint{X: round2(x), Y: round2(y), Label: p.Week, Score: strconv.FormatFloat(p.Score, 'f', 1, 64)}
		coords[i] = strconv.FormatFloat(round2(x), 'f', -1, 64) + "," + strconv.FormatFloat(round2(y), 'f', -1, 64)
	}
	return out, strings.Join(coords, " "), strconv.FormatFloat(lo, 'f', 0, 64), strconv.FormatFloat(hi, 'f', 0, 64)
}

func recentRows(recent []analytics.RecentReport) []recentRow {
	out := make([]recentRow, len(recent))
	for i, r := range recent {
		out[i] = recentRow{
			ID:         r.ID,
			Type:       r.Type,
			Regulator:  r.Regulator,
			Date:       r.SubmittedDate.String(),
			Status:     r.Badge.Label,
			BadgeClass: BadgeClass(r.Badge),
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
