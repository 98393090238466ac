package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"regdash/internal/core"
	"regdash/internal/store"
)

const (
	DefaultRecentLimit = 5
	MaxRecentLimit     = 50
)

// Assembly stages, reported in AssemblyError.
const (
	StagePeriod          = "period"
	StageSnapshot        = "snapshot"
	StageMetrics         = "metrics"
	StageComplianceTrend = "compliance_trend"
)

// AssemblyError wraps the first failure of an assembly.
type AssemblyError struct {
	Period core.Period
	Stage  string
	Err    error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble %s dashboard: %s: %v", e.Period, e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Params selects what to assemble. AsOf anchors the period windows; it is
// passed in so identical params over identical data give identical output.
type Params struct {
	Period      core.Period
	AsOf        time.Time
	RecentLimit int
}

// Observer receives the outcome of every assembly.
type Observer interface {
	ObserveAssembly(period core.Period, elapsed time.Duration, err error)
}

// Assembler builds dashboard view models from one snapshot read each.
type Assembler struct {
	reader        store.SnapshotReader
	defaultRecent int
	maxRecent     int
	observer      Observer
}

type Option func(*Assembler)

// WithRecentLimits sets the default and maximum size of the recent table.
func WithRecentLimits(def, maximum int) Option {
	return func(a *Assembler) {
		if def > 0 {
			a.defaultRecent = def
		}
		if maximum > 0 {
			a.maxRecent = maximum
		}
	}
}

func WithObserver(o Observer) Option {
	return func(a *Assembler) { a.observer = o }
}

func NewAssembler(reader store.SnapshotReader, opts ...Option) *Assembler {
	a := &Assembler{
		reader:        reader,
		defaultRecent: DefaultRecentLimit,
		maxRecent:     MaxRecentLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.defaultRecent > a.maxRecent {
		a.defaultRecent = a.maxRecent
	}
	return a
}

// Assemble validates the period, reads one snapshot and derives the view
// model from it. No partial view model is ever returned.
func (a *Assembler) Assemble(ctx context.Context, p Params) (vm ViewModel, err error) {
	started := time.Now()
	defer func() {
		if a.observer != nil {
			a.observer.ObserveAssembly(p.Period, time.Since(started), err)
		}
	}()

	fail := func(stage string, err error) (ViewModel, error) {
		return ViewModel{}, &AssemblyError{Period: p.Period, Stage: stage, Err: err}
	}

	if !p.Period.Valid() {
		return fail(StagePeriod, fmt.Errorf("%w: %q", core.ErrInvalidPeriod, string(p.Period)))
	}
	w, prior, err := windows(p.Period, p.AsOf)
	if err != nil {
		return fail(StagePeriod, err)
	}

	snap, err := a.reader.ReadSnapshot(ctx, store.SnapshotQuery{Window: w, Prior: prior})
	if err != nil {
		return fail(StageSnapshot, err)
	}

	// From here on the computation runs to completion without checking ctx.
	metrics, err := AggregateMetrics(snap.Records, w, prior)
	if err != nil {
		return fail(StageMetrics, err)
	}

	asOf := core.DateOf(p.AsOf)
	trendWindow := w
	if next := (core.Date{Time: asOf.AddDate(0, 0, 1)}); next.Before(w.End.Time) {
		trendWindow.End = next
	}
	trend, err := ComplianceTrend(snap.Samples, trendWindow)
	if err != nil {
		return fail(StageComplianceTrend, err)
	}

	inScope := inWindow(snap.Records, w)
	return ViewModel{
		Period:           p.Period,
		Window:           w,
		PriorWindow:      prior,
		AsOf:             asOf,
		Metrics:          metrics,
		MonthlyTrend:     MonthlyTrend(inScope, w),
		TypeDistribution: TypeDistribution(inScope),
		ComplianceTrend:  trend,
		Recent:           RecentReports(inScope, w, a.recentLimit(p.RecentLimit)),
	}, nil
}

// AssembleOrEmpty substitutes the zero state when the period has no records.
func (a *Assembler) AssembleOrEmpty(ctx context.Context, p Params) (ViewModel, error) {
	vm, err := a.Assemble(ctx, p)
	if errors.Is(err, core.ErrInsufficientData) {
		slog.DebugContext(ctx, "No records in period, using empty view model",
			"period", p.Period, "error", err)
		return EmptyViewModel(p.Period, p.AsOf)
	}
	return vm, err
}

// AssembleAll assembles every period concurrently. Results follow the order
// of core.Periods.
func (a *Assembler) AssembleAll(ctx context.Context, asOf time.Time, recentLimit int) ([]ViewModel, error) {
	out := make([]ViewModel, len(core.Periods))
	g, gctx := errgroup.WithContext(ctx)
	for i, period := range core.Periods {
		g.Go(func() error {
			vm, err := a.AssembleOrEmpty(gctx, Params{Period: period, AsOf: asOf, RecentLimit: recentLimit})
			if err != nil {
				return err
			}
			out[i] = vm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Assembler) recentLimit(n int) int {
	switch {
	case n <= 0:
		return a.defaultRecent
	case n > a.maxRecent:
		return a.maxRecent
	}
	return n
}
