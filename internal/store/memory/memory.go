package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"regdash/internal/core"
	"regdash/internal/store"
)

const (
	ReportsFile = "seed_reports.json"
	SamplesFile = "seed_samples.json"
)

// Store keeps the register in memory. It backs local development and tests.
type Store struct {
	mu      sync.RWMutex
	reports map[string]core.ReportRecord
	samples map[string]core.PeriodSample
}

func New(records []core.ReportRecord, samples []core.PeriodSample) (*Store, error) {
	s := &Store{
		reports: make(map[string]core.ReportRecord, len(records)),
		samples: make(map[string]core.PeriodSample, len(samples)),
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.reports[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", core.ErrInvalidRecord, r.ID)
		}
		s.reports[r.ID] = r
	}
	for _, smp := range samples {
		if err := smp.Validate(); err != nil {
			return nil, err
		}
		s.samples[core.WeekStart(smp.PeriodStart).String()] = smp
	}
	return s, nil
}

// NewFromFiles seeds the store from JSON files in base. Missing files leave
// the store empty; malformed ones are an error.
func NewFromFiles(base string) (*Store, error) {
	var records []core.ReportRecord
	if err := readJSON(filepath.Join(base, ReportsFile), &records); err != nil {
		return nil, err
	}
	var samples []core.PeriodSample
	if err := readJSON(filepath.Join(base, SamplesFile), &samples); err != nil {
		return nil, err
	}
	return New(records, samples)
}

func (s *Store) FetchRecords(_ context.Context, start, end core.Date) ([]core.ReportRecord, error) {
	w := core.Window{Start: start, End: end}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(w.Contains), nil
}

func (s *Store) FetchSamples(_ context.Context, start, end core.Date) ([]core.PeriodSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samplesIn(core.Window{Start: start, End: end}), nil
}

// ReadSnapshot holds the read lock across both collections so the snapshot
// is consistent.
func (s *Store) ReadSnapshot(_ context.Context, q store.SnapshotQuery) (store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Snapshot{
		Records: s.collectRecords(q.InSnapshot),
		Samples: s.samplesIn(q.Window),
		ReadAt:  time.Now(),
	}, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) SaveReport(_ context.Context, r core.ReportRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.reports[r.ID]; ok {
		if existing.Equal(r) {
			return nil
		}
		return fmt.Errorf("%w: report %s already registered", core.ErrInvalidRecord, r.ID)
	}
	s.reports[r.ID] = r
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, to core.Status, at core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	next, err := r.Transition(to, at)
	if err != nil {
		return err
	}
	s.reports[id] = next
	return nil
}

func (s *Store) SaveSample(_ context.Context, smp core.PeriodSample) error {
	if err := smp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[core.WeekStart(smp.PeriodStart).String()] = smp
	return nil
}

func (s *Store) collect(inWindow func(core.Date) bool) []core.ReportRecord {
	return s.collectRecords(func(r core.ReportRecord) bool { return inWindow(r.SubmittedDate) })
}

// collectRecords returns matching records ordered by submission date then ID.
func (s *Store) collectRecords(keep func(core.ReportRecord) bool) []core.ReportRecord {
	out := make([]core.ReportRecord, 0)
	for _, r := range s.reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedDate.Equal(out[j].SubmittedDate.Time) {
			return out[i].SubmittedDate.Before(out[j].SubmittedDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) samplesIn(w core.Window) []core.PeriodSample {
	out := make([]core.PeriodSample, 0)
	for _, smp := range s.samples {
		if w.Contains(smp.PeriodStart) {
			out = append(out, smp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart.Time)
	})
	return out
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
