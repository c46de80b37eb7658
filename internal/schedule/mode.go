package schedule

import (
	"fmt"
	"strings"
	"time"

	"webinarsched/internal/model"
)

// Env is the evaluation context shared by resolution and queries.
type Env struct {
	Location *time.Location
	Leway    Leway
	// Now is read once per operation by the caller.
	Now time.Time
}

func (e Env) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e Env) now() time.Time {
	return e.Now.In(e.location())
}

// Mode turns a raw template into a canonical schedule. The set of modes is
// closed: Standard, Rolling and Evergreen.
type Mode interface {
	Name() string
	resolve(tpl Template, env Env) (Canonical, error)
}

// Standard takes template keys as canonical YYYY-MM-DD dates and keeps the
// template unchanged.
type Standard struct{}

// Rolling accepts any date-like key ("2024-05-03 10:00", "May 3rd",
// "next friday") and re-keys it by its date in the schedule zone.
// Keys that land on the same date merge their times in template order.
type Rolling struct{}

// Evergreen keys are weekday indexes (0 = Sunday). Each is anchored to the
// nearest date that still has a joinable occurrence.
type Evergreen struct{}

func (Standard) Name() string  { return "standard" }
func (Rolling) Name() string   { return "rolling" }
func (Evergreen) Name() string { return "evergreen" }

// ParseMode maps a config value to a Mode. The empty string means Standard.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return Standard{}, nil
	case "rolling":
		return Rolling{}, nil
	case "evergreen":
		return Evergreen{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Resolve produces the canonical schedule for tpl. On error nothing is
// returned; there is no partial result.
func Resolve(mode Mode, tpl Template, env Env) (Canonical, error) {
	if mode == nil {
		mode = Standard{}
	}
	return mode.resolve(tpl, env)
}

func (Standard) resolve(tpl Template, _ Env) (Canonical, error) {
	out := make(Canonical, 0, len(tpl))
	for _, e := range tpl {
		date, err := model.ParseDateKey(e.Key)
		if err != nil {
			return nil, &ParseError{Field: "date", Value: e.Key, Err: err}
		}
		times, err := parseTimes(e.Times)
		if err != nil {
			return nil, err
		}
		out = append(out, Day{Date: date, Times: times})
	}
	return out, nil
}

func (Rolling) resolve(tpl Template, env Env) (Canonical, error) {
	now := env.now()
	out := make(Canonical, 0, len(tpl))
	for _, e := range tpl {
		date, err := parseDateLike(e.Key, env.location(), now)
		if err != nil {
			return nil, &ParseError{Field: "date", Value: e.Key, Err: err}
		}
		times, err := parseTimes(e.Times)
		if err != nil {
			return nil, err
		}
		out = out.merge(date, times)
	}
	return out, nil
}

func (Evergreen) resolve(tpl Template, env Env) (Canonical, error) {
	now := env.now()
	today := model.DateKeyOf(now)

	out := make(Canonical, 0, len(tpl))
	for _, e := range tpl {
		idx, err := model.ParseWeekdayIndex(e.Key)
		if err != nil {
			return nil, &ParseError{Field: "weekday", Value: e.Key, Err: err}
		}
		times, err := parseTimes(e.Times)
		if err != nil {
			return nil, err
		}
		date, err := anchorWeekday(idx.Weekday(), times, today, now, env)
		if err != nil {
			return nil, err
		}
		out = out.merge(date, times)
	}
	return out.Sorted(), nil
}

// anchorWeekday picks the date an evergreen weekday is shown on.
//
// On its own weekday the row stays on today while the last listed time plus
// the leway is still ahead, otherwise it moves a week out. Every other
// weekday rolls forward to its next date; that covers weekdays already
// passed this week and, because Sunday opens the week, every weekday when
// today is Sunday.
func anchorWeekday(wd time.Weekday, times []model.TimeOfDay, today model.DateKey, now time.Time, env Env) (model.DateKey, error) {
	if now.Weekday() == wd {
		if len(times) > 0 {
			cutoff := env.Leway.AddTo(today.At(times[len(times)-1], env.location()))
			if cutoff.After(now) {
				return today, nil
			}
		}
		return model.NearestWeekday(today, wd, model.StrictlyAfter)
	}
	return model.NearestWeekday(today, wd, model.OnOrAfter)
}

func parseTimes(raw []string) ([]model.TimeOfDay, error) {
	out := make([]model.TimeOfDay, 0, len(raw))
	for _, s := range raw {
		t, err := model.ParseTimeOfDay(s)
		if err != nil {
			return nil, &ParseError{Field: "time", Value: s, Err: err}
		}
		out = append(out, t)
	}
	return out, nil
}
