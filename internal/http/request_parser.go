// Package http serves the regulatory reporting dashboard: the HTML page,
// its JSON API and exports.
//
// This file parses and validates dashboard query parameters.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"regdash/internal/analytics"
	"regdash/internal/core"
)

// DefaultPeriod is used when the request does not name one.
const DefaultPeriod = core.PeriodMonth

// ExportFormat selects the export serialization.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// errBadParam marks request parameters that are malformed rather than
// semantically invalid.
var errBadParam = errors.New("bad request parameter")

// ParseDashboardParams reads period, limit and asOf from the query. A
// missing period falls back to DefaultPeriod and a missing asOf to now.
// Limits are left for the assembler to clamp.
func ParseDashboardParams(query url.Values, now time.Time) (analytics.Params, error) {
	params := analytics.Params{Period: DefaultPeriod, AsOf: now}

	if v := strings.TrimSpace(query.Get("period")); v != "" {
		p, err := core.ParsePeriod(v)
		if err != nil {
			return analytics.Params{}, err
		}
		params.Period = p
	}

	asOf, err := ParseAsOf(query, now)
	if err != nil {
		return analytics.Params{}, err
	}
	params.AsOf = asOf

	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return analytics.Params{}, fmt.Errorf("%w: limit %q is not a number", errBadParam, v)
		}
		params.RecentLimit = n
	}
	return params, nil
}

// ParseAsOf reads the asOf date (YYYY-MM-DD). Dates after now are rejected
// since the dashboard only reports on what has already happened.
func ParseAsOf(query url.Values, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(query.Get("asOf"))
	if v == "" {
		return now, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: asOf must be YYYY-MM-DD", errBadParam)
	}
	if d.After(core.DateOf(now).Time) {
		return time.Time{}, fmt.Errorf("%w: asOf %s is in the future", errBadParam, d)
	}
	return d.Time, nil
}

// ParseExportFormat reads the format parameter, defaulting to JSON.
func ParseExportFormat(query url.Values) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(query.Get("format")))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", errBadParam, string(f))
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET allows GET and HEAD.
func RequireGET(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}
