package google

import (
	"errors"
	"strings"
	"testing"

	"regdash/internal/core"
)

func TestParseReports(t *testing.T) {
	values := [][]interface{}{
		{"ID", "Type", "Regulator", "Submitted", "Status", "Resolved", "Notes"},
		{"REP-001", "AML/CTF", "FinCEN", "2024-02-01", "Approved", "2024-02-05", "ok"},
		{},
		{"REP-002", "Basel III", "ECB", "05/02/2024", "in_review", ""},
		{"REP-003", "FINRA", "SEC", 45338.0, "Pending"},
	}
	got, err := parseReports(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records", len(got))
	}
	if got[0].ResolvedDate.String() != "2024-02-05" || got[0].Status != core.StatusApproved {
		t.Fatalf("row 1: %+v", got[0])
	}
	if got[1].SubmittedDate.String() != "2024-02-05" || got[1].Status != core.StatusInReview {
		t.Fatalf("row 2: %+v", got[1])
	}
	// serial 45338 is 2024-02-15
	if got[2].SubmittedDate.String() != "2024-02-15" || !got[2].ResolvedDate.IsZero() {
		t.Fatalf("row 3: %+v", got[2])
	}
}

func TestParseReportsErrors(t *testing.T) {
	cases := []struct {
		name   string
		values [][]interface{}
		want   string
	}{
		{
			name:   "missing header",
			values: [][]interface{}{{"ID", "Type", "Submitted", "Status"}},
			want:   "missing Regulator,Resolved",
		},
		{
			name: "bad date",
			values: [][]interface{}{
				{"ID", "Type", "Regulator", "Submitted", "Status", "Resolved"},
				{"REP-1", "FINRA", "SEC", "yesterday", "Pending"},
			},
			want: "row 2",
		},
		{
			name: "terminal without resolution",
			values: [][]interface{}{
				{"ID", "Type", "Regulator", "Submitted", "Status", "Resolved"},
				{"REP-1", "FINRA", "SEC", "2024-02-01", "Rejected", ""},
			},
			want: "without resolution date",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseReports(tc.values)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	_, err := parseReports([][]interface{}{
		{"ID", "Type", "Regulator", "Submitted", "Status", "Resolved"},
		{"REP-1", "FINRA", "SEC", "2024-02-01", "Withdrawn"},
	})
	if !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for unknown status, got %v", err)
	}
}

func TestParseSamples(t *testing.T) {
	values := [][]interface{}{
		{"Week Start", "Label", "Submitted", "Pending", "Rejected", "Compliance Score"},
		{"2024-02-07", "W6", 12.0, "3", "", "96.5%"},
		{"2024-02-12", "", "8", "1", "1", "94,2"},
	}
	got, err := parseSamples(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d samples", len(got))
	}
	if got[0].PeriodStart.String() != "2024-02-05" || got[0].SubmittedCount != 12 || got[0].RejectedCount != 0 || got[0].ComplianceScore != 96.5 {
		t.Fatalf("row 1: %+v", got[0])
	}
	if got[1].ComplianceScore != 94.2 || got[1].Label != "" {
		t.Fatalf("row 2: %+v", got[1])
	}

	_, err = parseSamples([][]interface{}{
		{"Week Start", "Label", "Submitted", "Pending", "Rejected", "Compliance Score"},
		{"2024-02-12", "W7", "1.5", "0", "0", "90"},
	})
	if err == nil {
		t.Fatalf("expected error for fractional count")
	}
	_, err = parseSamples([][]interface{}{
		{"Week Start", "Label", "Submitted", "Pending", "Rejected", "Compliance Score"},
		{"2024-02-12", "W7", "1", "0", "0", "120"},
	})
	if !errors.Is(err, core.ErrInvalidRecord) {
		t.Fatalf("expected out of range score error, got %v", err)
	}
}

func TestParseSamplesRejectsNonFiniteScores(t *testing.T) {
	for _, score := range []string{"NaN", "nan%", "Inf", "-inf"} {
		t.Run(score, func(t *testing.T) {
			_, err := parseSamples([][]interface{}{
				{"Week Start", "Label", "Submitted", "Pending", "Rejected", "Compliance Score"},
				{"2024-02-12", "W7", "1", "0", "0", score},
			})
			if err == nil {
				t.Fatalf("expected error for score %q", score)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if recs, err := parseReports(nil); err != nil || len(recs) != 0 {
		t.Fatalf("got %v %v", recs, err)
	}
	if samples, err := parseSamples(nil); err != nil || len(samples) != 0 {
		t.Fatalf("got %v %v", samples, err)
	}
}
