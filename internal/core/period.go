package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
)

// Periods lists the selectable reporting periods.
var Periods = []Period{PeriodWeek, PeriodMonth, PeriodQuarter}

type (
	Period string

	// Window is a half-open range of calendar days [Start, End).
	Window struct {
		Start Date `json:"start"`
		End   Date `json:"end"`
	}
)

// ParsePeriod maps a request parameter to a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

func (p Period) Valid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodQuarter:
		return true
	}
	return false
}

// Window returns the calendar-aligned window of kind p that contains asOf:
// the ISO week starting Monday, the calendar month or the calendar quarter.
func (p Period) Window(asOf time.Time) (Window, error) {
	d := DateOf(asOf)
	switch p {
	case PeriodWeek:
		start := WeekStart(d)
		return Window{Start: start, End: addDays(start, 7)}, nil
	case PeriodMonth:
		start := NewDate(d.Year(), int(d.Month()), 1)
		return Window{Start: start, End: addMonths(start, 1)}, nil
	case PeriodQuarter:
		first := (int(d.Month())-1)/3*3 + 1
		start := NewDate(d.Year(), first, 1)
		return Window{Start: start, End: addMonths(start, 3)}, nil
	}
	return Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
}

// Prior returns the window of the same kind immediately preceding w.
func (p Period) Prior(w Window) (Window, error) {
	switch p {
	case PeriodWeek:
		return Window{Start: addDays(w.Start, -7), End: w.Start}, nil
	case PeriodMonth:
		return Window{Start: addMonths(w.Start, -1), End: w.Start}, nil
	case PeriodQuarter:
		return Window{Start: addMonths(w.Start, -3), End: w.Start}, nil
	}
	return Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start.Time) && d.Before(w.End.Time)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start, w.End)
}

// Weeks returns the Mondays of every ISO week starting inside the window.
func (w Window) Weeks() []Date {
	var weeks []Date
	first := WeekStart(w.Start)
	if first.Before(w.Start.Time) {
		first = addDays(first, 7)
	}
	for d := first; d.Before(w.End.Time); d = addDays(d, 7) {
		weeks = append(weeks, d)
	}
	return weeks
}

// Months returns the first day of every calendar month the window touches.
func (w Window) Months() []Date {
	var months []Date
	last := addDays(w.End, -1)
	for d := NewDate(w.Start.Year(), int(w.Start.Month()), 1); !d.After(last.Time); d = addMonths(d, 1) {
		months = append(months, d)
	}
	return months
}

// WeekStart returns the Monday of the ISO week containing d.
func WeekStart(d Date) Date {
	offset := (int(d.Weekday()) + 6) % 7
	return addDays(d, -offset)
}

// WeekLabel formats the ISO week number of d as "W<n>".
func WeekLabel(d Date) string {
	_, week := d.ISOWeek()
	return fmt.Sprintf("W%d", week)
}

func addDays(d Date, n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

func addMonths(d Date, n int) Date {
	return Date{Time: d.AddDate(0, n, 0)}
}
