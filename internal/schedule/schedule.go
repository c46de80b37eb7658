// Package schedule turns a webinar time template into the concrete list of
// upcoming sessions that are still open for registration.
//
// A Schedule is configured once (mode, zone, registration leway), loaded
// with a Template, and then queried. Loading replaces the canonical
// schedule wholesale; queries never mutate it. A Schedule is not safe for
// concurrent reload and query; callers that reload in the background swap
// whole Schedules under their own lock (see internal/refresh).
package schedule

import (
	"errors"
	"slices"
	"time"

	"webinarsched/internal/datefmt"
	"webinarsched/internal/model"
)

// Options configure a Schedule. Empty strings select the defaults.
type Options struct {
	Mode       Mode
	Timezone   string
	OptinLeway string
	Clock      Clock
}

type Schedule struct {
	mode  Mode
	loc   *time.Location
	leway Leway
	clock Clock

	days Canonical
}

// New builds a Schedule. It is always usable: a non-nil error only reports
// settings (as *ConfigError) that were replaced by their defaults.
func New(opts Options) (*Schedule, error) {
	s := &Schedule{
		mode:  opts.Mode,
		clock: opts.Clock,
	}
	if s.mode == nil {
		s.mode = Standard{}
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}

	loc, locErr := ResolveLocation(opts.Timezone)
	leway, lewayErr := ResolveLeway(opts.OptinLeway)
	s.loc = loc
	s.leway = leway

	return s, errors.Join(locErr, lewayErr)
}

// SetSchedule resolves tpl and installs the result. On error the previously
// loaded schedule is left in place.
func (s *Schedule) SetSchedule(tpl Template) error {
	c, err := Resolve(s.mode, tpl, s.env())
	if err != nil {
		return err
	}
	s.days = c
	return nil
}

func (s *Schedule) Mode() Mode               { return s.mode }
func (s *Schedule) Timezone() *time.Location { return s.loc }
func (s *Schedule) OptinLeway() Leway        { return s.leway }

// Canonical returns a copy of the loaded schedule.
func (s *Schedule) Canonical() Canonical {
	return s.days.Clone()
}

func (s *Schedule) IsOver() bool {
	return IsOver(s.days, s.env())
}

func (s *Schedule) NextDates(q Query) []model.DateGroup {
	return NextDates(s.days, s.env(), q)
}

// Occurrences lists every open occurrence in order.
func (s *Schedule) Occurrences() []model.Occurrence {
	return slices.Collect(OpenOccurrences(s.days, s.env()))
}

// UntilNext returns how long until the next open occurrence starts. It is
// zero while that occurrence has started but is still inside its leway.
// ok is false when the schedule is over.
func (s *Schedule) UntilNext() (d time.Duration, ok bool) {
	env := s.env()
	for occ := range OpenOccurrences(s.days, env) {
		return max(occ.Start.Sub(env.now()), 0), true
	}
	return 0, false
}

// CurrentTimeInZone renders now in the schedule zone with a PHP date()
// pattern, "Y-m-d H:i:s" when pattern is empty.
func (s *Schedule) CurrentTimeInZone(pattern string) string {
	if pattern == "" {
		pattern = "Y-m-d H:i:s"
	}
	return datefmt.Format(s.clock.Now().In(s.loc), pattern)
}

// Freeze returns a view of s whose clock is stopped at the current instant,
// so several queries on it agree with each other. The loaded schedule is
// shared, not copied.
func (s *Schedule) Freeze() *Schedule {
	frozen := *s
	frozen.clock = FixedClock{T: s.clock.Now()}
	return &frozen
}

func (s *Schedule) env() Env {
	return Env{Location: s.loc, Leway: s.leway, Now: s.clock.Now()}
}
