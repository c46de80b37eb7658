package model

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Tie sets the search direction of NearestWeekday and whether the
// reference date itself may be returned.
type Tie int

const (
	// OnOrAfter returns the reference date when it matches ("this Friday").
	OnOrAfter Tie = iota
	// StrictlyAfter skips the reference date ("next Friday").
	StrictlyAfter
	// StrictlyBefore searches backwards ("last Friday").
	StrictlyBefore
)

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// NearestWeekday returns the closest date to ref that falls on wd in the
// direction given by tie. The result is never more than 7 days away.
func NearestWeekday(ref DateKey, wd time.Weekday, tie Tie) (DateKey, error) {
	start := ref.Midnight(time.UTC)
	dtstart := start
	if tie == StrictlyBefore {
		dtstart = start.AddDate(0, 0, -7)
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Byweekday: []rrule.Weekday{rruleWeekdays[wd]},
	})
	if err != nil {
		return DateKey{}, err
	}

	var t time.Time
	switch tie {
	case StrictlyBefore:
		t = r.Before(start, false)
	default:
		t = r.After(start, tie == OnOrAfter)
	}
	return DateKeyOf(t), nil
}
