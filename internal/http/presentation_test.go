package http

import (
	"strings"
	"testing"

	"regdash/internal/analytics"
	"regdash/internal/core"
)

func f(v float64) *float64 { return &v }

func TestTypeColor(t *testing.T) {
	if got := TypeColor("AML/CTF"); got != "#2563eb" {
		t.Fatalf("AML/CTF colour = %s", got)
	}
	a, b := TypeColor("Liquidity Coverage"), TypeColor("Liquidity Coverage")
	if a != b || !strings.HasPrefix(a, "#") {
		t.Fatalf("fallback colour must be stable, got %s and %s", a, b)
	}
}

func TestBadgeClass(t *testing.T) {
	for _, s := range core.Statuses {
		if got := BadgeClass(analytics.Classify(s)); !strings.HasPrefix(got, "badge badge--") {
			t.Errorf("%s -> %q", s, got)
		}
	}
	if got := BadgeClass(analytics.Classify("Escalated")); got != "badge badge--info" {
		t.Errorf("unknown status -> %q", got)
	}
}

func TestTrendClass(t *testing.T) {
	tests := []struct {
		metric string
		dir    analytics.Direction
		want   string
	}{
		{"submitted", analytics.DirectionUp, "trend trend--up trend--good"},
		{"compliance", analytics.DirectionDown, "trend trend--down trend--bad"},
		{"pending", analytics.DirectionDown, "trend trend--down trend--good"},
		{"processing", analytics.DirectionUp, "trend trend--up trend--bad"},
		{"pending", analytics.DirectionNeutral, "trend trend--neutral"},
		{"pending", "", "trend trend--neutral"},
	}
	for _, tt := range tests {
		if got := TrendClass(tt.metric, tt.dir); got != tt.want {
			t.Errorf("TrendClass(%s, %q) = %q, want %q", tt.metric, tt.dir, got, tt.want)
		}
	}
}

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		name      string
		snap      analytics.MetricSnapshot
		wantValue string
		wantDelta string
	}{
		{"count", analytics.MetricSnapshot{Value: f(324), Delta: f(12), Unit: analytics.UnitCount}, "324", "+12 from last month"},
		{"percent", analytics.MetricSnapshot{Value: f(97.8), Delta: f(-2.1), Unit: analytics.UnitPercent}, "97.8%", "-2.1% from last month"},
		{"days", analytics.MetricSnapshot{Value: f(2.4), Delta: f(0), Unit: analytics.UnitDays}, "2.4 days", "+0.0 days from last month"},
		{"undefined", analytics.MetricSnapshot{Unit: analytics.UnitDays}, "—", "no comparison available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.snap); got != tt.wantValue {
				t.Errorf("FormatValue = %q, want %q", got, tt.wantValue)
			}
			if got := FormatDelta(tt.snap, core.PeriodMonth); got != tt.wantDelta {
				t.Errorf("FormatDelta = %q, want %q", got, tt.wantDelta)
			}
		})
	}
}

func TestDonutClosesRing(t *testing.T) {
	slices := donut([]analytics.TypeShare{
		{Type: "AML/CTF", Count: 7, Percent: 35},
		{Type: "Basel III", Count: 6, Percent: 28},
		{Type: "FINRA", Count: 4, Percent: 22},
		{Type: "MiFID II", Count: 3, Percent: 15},
	})
	want := []string{"25", "-10", "-38", "-60"}
	for i, s := range slices {
		if s.Offset != want[i] {
			t.Errorf("slice %d offset = %s, want %s", i, s.Offset, want[i])
		}
	}
	if slices[0].Dash != "35 65" {
		t.Errorf("dash = %q", slices[0].Dash)
	}
}

func TestChartGeometry(t *testing.T) {
	groups := monthBars([]analytics.MonthlyPoint{
		{Month: "Jan", Year: 2024, Submitted: 10, Pending: 5},
		{Month: "Feb", Year: 2024},
	})
	if len(groups) != 2 || len(groups[0].Bars) != 3 {
		t.Fatalf("groups = %+v", groups)
	}
	tallest := groups[0].Bars[0]
	if tallest.Height != chartHeight-2*chartPad || tallest.Y != chartPad {
		t.Errorf("peak bar should fill the plot, got %+v", tallest)
	}
	if groups[1].Bars[0].Height != 0 {
		t.Errorf("empty month should have zero-height bars")
	}

	points, poly, lo, hi := complianceLine([]analytics.CompliancePoint{
		{Week: "W1", Score: 94.5},
		{Week: "W2", Score: 96},
	})
	if len(points) != 2 || poly == "" || lo != "93" || hi != "97" {
		t.Fatalf("line = %+v %q %s..%s", points, poly, lo, hi)
	}
	if points[1].Y >= points[0].Y {
		t.Errorf("higher score should plot higher")
	}

	if pts, _, _, _ := complianceLine(nil); pts != nil {
		t.Errorf("no samples should give no points")
	}
}

func TestNewDashboardPageEmpty(t *testing.T) {
	vm, err := analytics.EmptyViewModel(core.PeriodWeek, testNow)
	if err != nil {
		t.Fatalf("EmptyViewModel: %v", err)
	}
	page := newDashboardPage(vm)
	if !page.Empty || len(page.Cards) != 4 || page.Cards[0].Value != "—" {
		t.Fatalf("page = %+v", page)
	}
	if !strings.Contains(page.ExportCSV, "format=csv") || !strings.Contains(page.ExportCSV, "period=week") {
		t.Fatalf("export link = %q", page.ExportCSV)
	}
}
