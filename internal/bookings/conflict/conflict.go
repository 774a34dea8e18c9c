// Package conflict decides whether a proposed booking interval collides with
// the active bookings already held on the same car.
//
// Intervals are half-open: [Start, End) includes its start instant and
// excludes its end instant, so a booking ending at noon and another starting
// at noon do not conflict.
//
// Check is pure. It performs no I/O, keeps no state and is safe for concurrent
// use. Fetching candidates and serializing the surrounding read-check-write
// sequence are the caller's job.
package conflict

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"roadquest/pkg/model"
)

var (
	ErrEmptyResource     = errors.New("resource id is required")
	ErrMalformedInterval = errors.New("end must be after start")
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether both bounds are set and End is strictly after Start.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

// Overlaps reports whether i and o share at least one instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Candidate is the interval a caller wants to commit.
type Candidate struct {
	ResourceID string
	Interval
	// ExcludeID is the booking being amended, if any. It never blocks itself.
	ExcludeID string
}

// Reservation is an existing booking as seen by the validator.
type Reservation struct {
	ID         string
	ResourceID string
	Interval
	Status string
}

type Result struct {
	Conflict      bool
	BlockingID    string
	BlockingStart time.Time
	BlockingEnd   time.Time
}

var NoConflict = Result{}

// Validate checks the candidate is well formed. The returned error wraps
// ErrEmptyResource or ErrMalformedInterval.
func (c Candidate) Validate() error {
	if c.ResourceID == "" {
		return ErrEmptyResource
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrMalformedInterval)
	}
	if !c.End.After(c.Start) {
		return fmt.Errorf("%w: start=%s end=%s", ErrMalformedInterval,
			c.Start.UTC().Format(time.RFC3339), c.End.UTC().Format(time.RFC3339))
	}
	return nil
}

// Check returns the reservation blocking candidate, or NoConflict.
//
// Reservations for another resource, the excluded id, and inactive
// reservations are ignored even if the caller passed them in. When several
// reservations overlap, the earliest-starting one is reported; ties go to the
// earlier end and then to the smaller id, so the result does not depend on the
// order of existing.
//
// An error is returned only for a malformed candidate. A conflict is a result,
// not an error.
func Check(candidate Candidate, existing []Reservation) (Result, error) {
	if err := candidate.Validate(); err != nil {
		return NoConflict, err
	}

	var blocking []Reservation
	for _, r := range existing {
		if r.ResourceID != candidate.ResourceID {
			continue
		}
		if candidate.ExcludeID != "" && r.ID == candidate.ExcludeID {
			continue
		}
		if !model.IsActive(r.Status) {
			continue
		}
		if candidate.Overlaps(r.Interval) {
			blocking = append(blocking, r)
		}
	}

	if len(blocking) == 0 {
		return NoConflict, nil
	}

	sort.Slice(blocking, func(i, j int) bool {
		a, b := blocking[i], blocking[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	})

	first := blocking[0]
	return Result{
		Conflict:      true,
		BlockingID:    first.ID,
		BlockingStart: first.Start,
		BlockingEnd:   first.End,
	}, nil
}
