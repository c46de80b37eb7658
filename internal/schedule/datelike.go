package schedule

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"webinarsched/internal/model"
)

var errNotADate = errors.New("not a recognizable date")

var natural = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// parseDateLike reads a rolling template key as a date. Relative weekday
// phrases are resolved first so "next friday" has exact semantics, then
// absolute formats, then general natural language relative to now.
func parseDateLike(s string, loc *time.Location, now time.Time) (model.DateKey, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return model.DateKey{}, errNotADate
	}

	if k, ok, err := parseRelativeDay(v, now); ok || err != nil {
		return k, err
	}
	if t, err := dateparse.ParseIn(v, loc); err == nil {
		// Keys carrying their own offset keep their own calendar date.
		return model.DateKeyOf(t), nil
	}
	// when matches substrings; only a match covering the whole key counts.
	if r, err := natural.Parse(v, now); err == nil && r != nil &&
		r.Index == 0 && len(strings.TrimSpace(r.Text)) == len(v) {
		return model.DateKeyOf(r.Time.In(loc)), nil
	}
	return model.DateKey{}, errNotADate
}

// calendarUnits maps unit words to their singular form.
var calendarUnits = map[string]string{
	"day": "day", "days": "day",
	"week": "week", "weeks": "week",
	"month": "month", "months": "month",
	"year": "year", "years": "year",
}

// relativeSteps maps the words that can precede a weekday or unit.
var relativeSteps = map[string]int{"this": 0, "next": 1, "last": -1}

// parseRelativeDay handles the relative forms PHP's DateTime accepts for
// rolling keys:
//
//	today, tomorrow, yesterday
//	[this|next|last] <weekday>
//	[+|-]N <unit>, N <unit> ago
//	this|next|last <unit>
//
// where unit is day, week, month or year (plural allowed). A bare or "this"
// weekday is today or the next such day; "next" never returns today; "last"
// is strictly before. Month and year steps overflow like time.AddDate.
func parseRelativeDay(s string, now time.Time) (model.DateKey, bool, error) {
	today := model.DateKeyOf(now)
	fields := strings.Fields(strings.ToLower(s))

	switch len(fields) {
	case 1:
		switch fields[0] {
		case "today":
			return today, true, nil
		case "tomorrow":
			return today.AddDays(1), true, nil
		case "yesterday":
			return today.AddDays(-1), true, nil
		}
		if wd, ok := weekdayNames[fields[0]]; ok {
			k, err := model.NearestWeekday(today, wd, model.OnOrAfter)
			return k, true, err
		}
	case 2:
		if unit, ok := calendarUnits[fields[1]]; ok {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				return shiftDate(today, unit, n), true, nil
			}
			if n, ok := relativeSteps[fields[0]]; ok {
				return shiftDate(today, unit, n), true, nil
			}
			return model.DateKey{}, false, nil
		}
		wd, ok := weekdayNames[fields[1]]
		if !ok {
			return model.DateKey{}, false, nil
		}
		var tie model.Tie
		switch fields[0] {
		case "this":
			tie = model.OnOrAfter
		case "next":
			tie = model.StrictlyAfter
		case "last":
			tie = model.StrictlyBefore
		default:
			return model.DateKey{}, false, nil
		}
		k, err := model.NearestWeekday(today, wd, tie)
		return k, true, err
	case 3:
		unit, ok := calendarUnits[fields[1]]
		if !ok || fields[2] != "ago" {
			return model.DateKey{}, false, nil
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return model.DateKey{}, false, nil
		}
		return shiftDate(today, unit, -n), true, nil
	}
	return model.DateKey{}, false, nil
}

func shiftDate(d model.DateKey, unit string, n int) model.DateKey {
	switch unit {
	case "day":
		return d.AddDays(n)
	case "week":
		return d.AddDays(7 * n)
	case "month":
		return model.DateKeyOf(d.Midnight(time.UTC).AddDate(0, n, 0))
	default:
		return model.DateKeyOf(d.Midnight(time.UTC).AddDate(n, 0, 0))
	}
}
