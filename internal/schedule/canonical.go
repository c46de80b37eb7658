package schedule

import (
	"slices"

	"webinarsched/internal/model"
)

// Day is one canonical row: a concrete date and its times in template order.
type Day struct {
	Date  model.DateKey
	Times []model.TimeOfDay
}

// Canonical is a resolved schedule. It is produced once per load and only
// read afterwards.
type Canonical []Day

// Sorted returns a copy ordered by date. The sort is stable, so repeated
// dates keep their relative order.
func (c Canonical) Sorted() Canonical {
	out := slices.Clone(c)
	slices.SortStableFunc(out, func(a, b Day) int { return a.Date.Compare(b.Date) })
	return out
}

// Clone deep-copies the schedule.
func (c Canonical) Clone() Canonical {
	if c == nil {
		return nil
	}
	out := make(Canonical, len(c))
	for i, d := range c {
		out[i] = Day{Date: d.Date, Times: slices.Clone(d.Times)}
	}
	return out
}

// Len counts occurrences, not days.
func (c Canonical) Len() int {
	n := 0
	for _, d := range c {
		n += len(d.Times)
	}
	return n
}

// merge appends times to an existing row for date or adds a new row.
func (c Canonical) merge(date model.DateKey, times []model.TimeOfDay) Canonical {
	for i := range c {
		if c[i].Date == date {
			c[i].Times = append(c[i].Times, times...)
			return c
		}
	}
	return append(c, Day{Date: date, Times: slices.Clone(times)})
}
