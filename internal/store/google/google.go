package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"regdash/internal/core"
	"regdash/internal/store"
)

const (
	DefaultReportsSheet = "Reports"
	DefaultSamplesSheet = "Compliance"
)

// Client reads the report register and weekly compliance samples from a
// spreadsheet. It is read-only.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportsSheet  string
	samplesSheet  string
}

// Ensure interface conformance
var _ store.Reader = (*Client)(nil)

// Options configures a Client. Credentials come from CredentialsJSON,
// CredentialsFile or GOOGLE_APPLICATION_CREDENTIALS, in that order.
type Options struct {
	SpreadsheetID   string
	ReportsSheet    string
	SamplesSheet    string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts), nil
}

// NewWithService builds a Client around an existing service.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	reports := strings.TrimSpace(opts.ReportsSheet)
	if reports == "" {
		reports = DefaultReportsSheet
	}
	samples := strings.TrimSpace(opts.SamplesSheet)
	if samples == "" {
		samples = DefaultSamplesSheet
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		reportsSheet:  reports,
		samplesSheet:  samples,
	}
}

// newSheetsService initializes a read-only Sheets service using service
// account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsFile := strings.TrimSpace(opts.CredentialsFile)
	if opts.CredentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case opts.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read credentials file", "path", credentialsFile, "size", len(b))
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// readAll fetches both tabs in a single batch request.
func (c *Client) readAll(ctx context.Context) ([]core.ReportRecord, []core.PeriodSample, error) {
	if c.svc == nil {
		return nil, nil, fmt.Errorf("%w: sheets service not initialized", core.ErrStoreUnavailable)
	}
	reportsRange := fmt.Sprintf("%s!A:F", c.reportsSheet)
	samplesRange := fmt.Sprintf("%s!A:F", c.samplesSheet)

	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(reportsRange, samplesRange).
		Context(ctx).
		Do()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: batch get: %w", core.ErrStoreUnavailable, err)
	}
	if len(resp.ValueRanges) != 2 {
		return nil, nil, fmt.Errorf("%w: batch get returned %d ranges", core.ErrStoreUnavailable, len(resp.ValueRanges))
	}

	records, err := parseReports(resp.ValueRanges[0].Values)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	samples, err := parseSamples(resp.ValueRanges[1].Values)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return records, samples, nil
}

func (c *Client) FetchRecords(ctx context.Context, start, end core.Date) ([]core.ReportRecord, error) {
	records, _, err := c.readAll(ctx)
	if err != nil {
		return nil, err
	}
	w := core.Window{Start: start, End: end}
	return filterRecords(records, func(r core.ReportRecord) bool { return w.Contains(r.SubmittedDate) }), nil
}

func (c *Client) FetchSamples(ctx context.Context, start, end core.Date) ([]core.PeriodSample, error) {
	_, samples, err := c.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterSamples(samples, core.Window{Start: start, End: end}), nil
}

// ReadSnapshot serves both tabs from one batch request.
func (c *Client) ReadSnapshot(ctx context.Context, q store.SnapshotQuery) (store.Snapshot, error) {
	records, samples, err := c.readAll(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	snap := store.Snapshot{
		Records: filterRecords(records, q.InSnapshot),
		Samples: filterSamples(samples, q.Window),
		ReadAt:  time.Now(),
	}
	slog.DebugContext(ctx, "Snapshot read from sheets",
		"spreadsheet", c.spreadsheetID,
		"records", len(snap.Records),
		"samples", len(snap.Samples))
	return snap, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.svc == nil {
		return fmt.Errorf("%w: sheets service not initialized", core.ErrStoreUnavailable)
	}
	if _, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

func filterRecords(in []core.ReportRecord, keep func(core.ReportRecord) bool) []core.ReportRecord {
	out := make([]core.ReportRecord, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedDate.Equal(out[j].SubmittedDate.Time) {
			return out[i].SubmittedDate.Before(out[j].SubmittedDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func filterSamples(in []core.PeriodSample, w core.Window) []core.PeriodSample {
	out := make([]core.PeriodSample, 0, len(in))
	for _, s := range in {
		if w.Contains(s.PeriodStart) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart.Time)
	})
	return out
}
