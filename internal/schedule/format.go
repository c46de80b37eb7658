package schedule

import (
	"time"

	"webinarsched/internal/datefmt"
	"webinarsched/internal/model"
)

const (
	DefaultLimit         = 2
	DefaultDateFormat    = "l, F jS"
	DefaultTimeFormat    = "g:ia "
	DefaultRawTimeFormat = "H:i"

	// DefaultZoneLabel is appended to every display time. It is a fixed
	// display string and is not derived from the schedule's zone.
	DefaultZoneLabel = "Eastern"
)

// Query controls NextDates. Patterns use PHP date() notation (see datefmt).
type Query struct {
	// Limit caps the number of distinct dates returned.
	Limit         int
	DateFormat    string
	TimeFormat    string
	RawTimeFormat string
	ZoneLabel     string
}

func DefaultQuery() Query {
	return Query{
		Limit:         DefaultLimit,
		DateFormat:    DefaultDateFormat,
		TimeFormat:    DefaultTimeFormat,
		RawTimeFormat: DefaultRawTimeFormat,
		ZoneLabel:     DefaultZoneLabel,
	}
}

// NextDates groups the open occurrences by date, at most q.Limit groups.
// A group that has been started is always completed. The result is never
// nil so it encodes as an empty JSON array.
func NextDates(c Canonical, env Env, q Query) []model.DateGroup {
	groups := make([]model.DateGroup, 0, max(q.Limit, 0))
	if q.Limit <= 0 {
		return groups
	}

	for occ := range OpenOccurrences(c, env) {
		n := len(groups)
		if n == 0 || groups[n-1].Date != occ.Date {
			if n >= q.Limit {
				break
			}
			day := occ.Date.Midnight(env.location())
			groups = append(groups, model.DateGroup{
				Date: occ.Date,
				Text: datefmt.Format(day, q.DateFormat),
				Day:  datefmt.Format(day, "l"),
			})
			n++
		}
		g := &groups[n-1]
		shown := listedTime(occ)
		g.TimeValue = append(g.TimeValue, datefmt.Format(shown, q.RawTimeFormat))
		g.TimeText = append(g.TimeText, datefmt.Format(shown, q.TimeFormat)+q.ZoneLabel)
	}
	return groups
}

// listedTime is the template's own wall-clock time on the occurrence date,
// in the zone in effect at the start. It differs from occ.Start only for a
// time inside a spring-forward gap, which is still shown as written.
func listedTime(occ model.Occurrence) time.Time {
	if model.TimeOfDayOf(occ.Start) == occ.Time {
		return occ.Start
	}
	name, offset := occ.Start.Zone()
	return time.Date(occ.Date.Year, occ.Date.Month, occ.Date.Day,
		occ.Time.Hour, occ.Time.Minute, occ.Time.Second, 0, time.FixedZone(name, offset))
}
