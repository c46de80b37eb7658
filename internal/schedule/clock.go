package schedule

import "time"

// Clock supplies the current instant. Queries read it exactly once.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant; used by tests and by
// callers that want to evaluate a schedule "as of" some moment.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
