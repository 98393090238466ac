package core

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData    = errors.New("insufficient data for period")
	ErrIncompleteTrendData = errors.New("incomplete trend data")
	ErrStoreUnavailable    = errors.New("record store unavailable")
	ErrInvalidPeriod       = errors.New("invalid period")
	ErrInvalidRecord       = errors.New("invalid record")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotFound            = errors.New("record not found")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("report %s: %s -> %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
