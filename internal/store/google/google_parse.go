package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"regdash/internal/core"
)

// Dates typed into a sheet come back in whichever format the cell uses.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "2006/01/02"}

// Sheets serial dates count days from 1899-12-30.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var (
	reportHeaders = []string{"ID", "Type", "Regulator", "Submitted", "Status", "Resolved"}
	sampleHeaders = []string{"Week Start", "Label", "Submitted", "Pending", "Rejected", "Compliance Score"}
)

// parseReports converts the report register tab into records. The first
// row holds headers; blank rows are skipped and any malformed row fails the
// whole read so callers never see a partial register.
func parseReports(values [][]interface{}) ([]core.ReportRecord, error) {
	if len(values) == 0 {
		return nil, nil
	}
	cols, err := columns(toStrings(values[0]), reportHeaders)
	if err != nil {
		return nil, fmt.Errorf("reports tab: %w", err)
	}

	var out []core.ReportRecord
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		rec, err := parseReportRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("reports tab row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseReportRow(row []string, cols map[string]int) (core.ReportRecord, error) {
	submitted, err := parseDate(safeGet(row, cols["Submitted"]))
	if err != nil {
		return core.ReportRecord{}, err
	}
	status, err := core.ParseStatus(safeGet(row, cols["Status"]))
	if err != nil {
		return core.ReportRecord{}, err
	}
	rec := core.ReportRecord{
		ID:            strings.TrimSpace(safeGet(row, cols["ID"])),
		Type:          strings.TrimSpace(safeGet(row, cols["Type"])),
		Regulator:     strings.TrimSpace(safeGet(row, cols["Regulator"])),
		SubmittedDate: submitted,
		Status:        status,
	}
	if raw := strings.TrimSpace(safeGet(row, cols["Resolved"])); raw != "" {
		if rec.ResolvedDate, err = parseDate(raw); err != nil {
			return core.ReportRecord{}, err
		}
	}
	if err := rec.Validate(); err != nil {
		return core.ReportRecord{}, err
	}
	return rec, nil
}

// parseSamples converts the weekly compliance tab into samples.
func parseSamples(values [][]interface{}) ([]core.PeriodSample, error) {
	if len(values) == 0 {
		return nil, nil
	}
	cols, err := columns(toStrings(values[0]), sampleHeaders)
	if err != nil {
		return nil, fmt.Errorf("samples tab: %w", err)
	}

	var out []core.PeriodSample
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		start, err := parseDate(safeGet(row, cols["Week Start"]))
		if err != nil {
			return nil, fmt.Errorf("samples tab row %d: %w", i+1, err)
		}
		s := core.PeriodSample{
			Label:       strings.TrimSpace(safeGet(row, cols["Label"])),
			PeriodStart: core.WeekStart(start),
		}
		counts := []struct {
			col string
			dst *int
		}{
			{"Submitted", &s.SubmittedCount},
			{"Pending", &s.PendingCount},
			{"Rejected", &s.RejectedCount},
		}
		for _, c := range counts {
			if *c.dst, err = parseCount(safeGet(row, cols[c.col])); err != nil {
				return nil, fmt.Errorf("samples tab row %d %s: %w", i+1, c.col, err)
			}
		}
		if s.ComplianceScore, err = parsePercent(safeGet(row, cols["Compliance Score"])); err != nil {
			return nil, fmt.Errorf("samples tab row %d: %w", i+1, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("samples tab row %d: %w", i+1, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// columns maps each wanted header to its index, matching case-insensitively.
func columns(headers, want []string) (map[string]int, error) {
	cols := make(map[string]int, len(want))
	var missing []string
	for _, w := range want {
		idx := indexOf(headers, w)
		if idx == -1 {
			missing = append(missing, w)
			continue
		}
		cols[w] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}
	return cols, nil
}

func parseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		return core.DateOf(serialEpoch.AddDate(0, 0, int(serial))), nil
	}
	return core.Date{}, fmt.Errorf("unrecognised date %q", s)
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return int(f), nil
}

// parsePercent accepts "96.5", "96.5%" and "96,5%".
func parsePercent(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid compliance score %q", s)
	}
	return f, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
