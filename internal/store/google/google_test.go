package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"regdash/internal/core"
	"regdash/internal/store"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return NewWithService(svc, Options{SpreadsheetID: "sheet-1"})
}

func batchResponse(reports, samples [][]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "values:batchGet") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"spreadsheetId": "sheet-1",
			"valueRanges": []map[string]interface{}{
				{"range": "Reports!A1:F10", "values": reports},
				{"range": "Compliance!A1:F10", "values": samples},
			},
		})
	}
}

var (
	sheetReports = [][]interface{}{
		{"ID", "Type", "Regulator", "Submitted", "Status", "Resolved"},
		{"REP-1", "AML/CTF", "FinCEN", "2023-11-02", "In Review", ""},
		{"REP-2", "Basel III", "ECB", "2024-01-05", "Approved", "2024-01-09"},
		{"REP-3", "FINRA", "SEC", "2024-02-10", "Pending", ""},
		{"REP-4", "MiFID II", "ESMA", "2023-10-01", "Approved", "2023-10-04"},
	}
	sheetSamples = [][]interface{}{
		{"Week Start", "Label", "Submitted", "Pending", "Rejected", "Compliance Score"},
		{"2024-01-29", "W5", "3", "0", "0", "94"},
		{"2024-02-05", "W6", "5", "1", "0", "96.5"},
		{"2024-02-12", "W7", "2", "0", "1", "91"},
	}
)

func TestClientReadSnapshot(t *testing.T) {
	c := newTestClient(t, batchResponse(sheetReports, sheetSamples))
	q := store.SnapshotQuery{
		Window: core.Window{Start: core.NewDate(2024, 2, 1), End: core.NewDate(2024, 3, 1)},
		Prior:  core.Window{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 2, 1)},
	}

	snap, err := c.ReadSnapshot(context.Background(), q)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := []string{"REP-1", "REP-2", "REP-3"}
	if len(snap.Records) != len(want) {
		t.Fatalf("got %+v", snap.Records)
	}
	for i, id := range want {
		if snap.Records[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, snap.Records[i].ID, id)
		}
	}
	if len(snap.Samples) != 2 || snap.Samples[0].Label != "W6" {
		t.Fatalf("unexpected samples: %+v", snap.Samples)
	}
	if snap.ReadAt.IsZero() {
		t.Fatalf("ReadAt not set")
	}
}

func TestClientFetch(t *testing.T) {
	c := newTestClient(t, batchResponse(sheetReports, sheetSamples))
	ctx := context.Background()

	recs, err := c.FetchRecords(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 10))
	if err != nil {
		t.Fatalf("fetch records: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "REP-2" {
		t.Fatalf("end bound must be exclusive: %+v", recs)
	}

	samples, err := c.FetchSamples(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatalf("fetch samples: %v", err)
	}
	if len(samples) != 1 || samples[0].Label != "W5" {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}

func TestClientErrorsAreUnavailable(t *testing.T) {
	cases := []struct {
		name string
		h    http.HandlerFunc
	}{
		{
			name: "server error",
			h: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
			},
		},
		{
			name: "malformed register",
			h: batchResponse([][]interface{}{
				{"ID", "Type", "Regulator", "Submitted", "Status", "Resolved"},
				{"REP-1", "FINRA", "SEC", "not a date", "Pending"},
			}, sheetSamples),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.h)
			_, err := c.ReadSnapshot(context.Background(), store.SnapshotQuery{})
			if !errors.Is(err, core.ErrStoreUnavailable) {
				t.Fatalf("expected ErrStoreUnavailable, got %v", err)
			}
		})
	}
}

func TestClientPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "spreadsheets/sheet-1") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	var nilSvc Client
	if err := nilSvc.Ping(context.Background()); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for missing spreadsheet id")
	}
}
