package http

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"regdash/internal/analytics"
)

// Export serializes vm in the requested format.
func Export(vm analytics.ViewModel, format ExportFormat) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		if err := WriteCSV(&buf, vm); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv; charset=utf-8", nil
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(vm); err != nil {
			return nil, "", fmt.Errorf("encode export: %w", err)
		}
		return buf.Bytes(), "application/json; charset=utf-8", nil
	}
	return nil, "", fmt.Errorf("%w: unsupported export format %q", errBadParam, string(format))
}

// WriteCSV writes vm in long form, one value per row:
//
//	section,item,field,value
//	metric,complianceRate,value,97.8
//	monthly,2024-Jan,submitted,45
//
// Undefined metric values are written as empty cells.
func WriteCSV(w io.Writer, vm analytics.ViewModel) error {
	cw := csv.NewWriter(w)
	row := func(section, item, field, value string) {
		_ = cw.Write([]string{section, item, field, value})
	}

	row("section", "item", "field", "value")
	row("meta", "period", "value", string(vm.Period))
	row("meta", "window", "start", vm.Window.Start.String())
	row("meta", "window", "end", vm.Window.End.String())
	row("meta", "asOf", "value", vm.AsOf.String())
	row("meta", "empty", "value", strconv.FormatBool(vm.Empty))

	for _, m := range []struct {
		name string
		snap analytics.MetricSnapshot
	}{
		{"totalSubmitted", vm.Metrics.TotalSubmitted},
		{"complianceRate", vm.Metrics.ComplianceRate},
		{"pendingReviews", vm.Metrics.PendingReviews},
		{"avgProcessingDays", vm.Metrics.AvgProcessingDays},
	} {
		row("metric", m.name, "value", optional(m.snap.Value))
		row("metric", m.name, "priorValue", optional(m.snap.PriorValue))
		row("metric", m.name, "delta", optional(m.snap.Delta))
		row("metric", m.name, "direction", string(m.snap.Direction))
	}

	for _, p := range vm.MonthlyTrend {
		item := fmt.Sprintf("%d-%s", p.Year, p.Month)
		row("monthly", item, "submitted", strconv.Itoa(p.Submitted))
		row("monthly", item, "pending", strconv.Itoa(p.Pending))
		row("monthly", item, "rejected", strconv.Itoa(p.Rejected))
	}

	for _, t := range vm.TypeDistribution {
		row("type", t.Type, "count", strconv.Itoa(t.Count))
		row("type", t.Type, "percent", strconv.Itoa(t.Percent))
	}

	for _, c := range vm.ComplianceTrend {
		row("compliance", c.PeriodStart.String(), "score", strconv.FormatFloat(c.Score, 'f', -1, 64))
	}

	for _, r := range vm.Recent {
		row("recent", r.ID, "type", r.Type)
		row("recent", r.ID, "regulator", r.Regulator)
		row("recent", r.ID, "submittedDate", r.SubmittedDate.String())
		row("recent", r.ID, "status", string(r.Status))
		row("recent", r.ID, "resolvedDate", r.ResolvedDate.String())
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv export: %w", err)
	}
	return nil
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
