// Package schedule computes fire times for the timestamp ticker.
//
// The spec calls for a fixed wall-clock period between timestamp records
// ("10s" by default). Source exists as a seam so the ticker never depends on
// a concrete period type directly — Parse is the only constructor today, but
// a caller can satisfy Source however it likes (a fixed period, a jittered
// one, one driven by an external clock in a test).
package schedule

import (
	"fmt"
	"time"
)

// Source returns the next fire time strictly after from.
type Source interface {
	Next(from time.Time) time.Time
}

// Parse interprets expr as a time.ParseDuration string and returns a Source
// that fires every expr after the previous fire.
func Parse(expr string) (Source, error) {
	d, err := time.ParseDuration(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: %q is not a valid duration: %w", expr, err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("schedule: duration must be positive, got %s", d)
	}
	return fixedPeriod{d}, nil
}

// fixedPeriod fires every d after the previous fire time.
type fixedPeriod struct{ d time.Duration }

func (f fixedPeriod) Next(from time.Time) time.Time { return from.Add(f.d) }
