package ics

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "webinarsched/internal/log"
	"webinarsched/internal/model"
	"webinarsched/internal/schedule"
)

const (
	defaultImportHorizon   = 90 * 24 * time.Hour
	defaultMaxPerEvent     = 500
	icsUTCLayout           = "20060102T150405Z"
	icsLocalLayout         = "20060102T150405"
	icsDateLayout          = "20060102"
	propertyRecurrenceID   = "RECURRENCE-ID"
	parameterTimezoneID    = "TZID"
	parameterValueDataType = "VALUE"
)

// ImportOptions control how a calendar is turned into a template.
type ImportOptions struct {
	// Location is the zone template dates and times are written in.
	Location *time.Location
	// From and Horizon bound the sessions taken from the calendar,
	// inclusive. Horizon defaults to 90 days.
	From    time.Time
	Horizon time.Duration
	// MaxPerEvent caps how many instances one recurring event contributes.
	MaxPerEvent int
}

// vevent is the part of a VEVENT the importer needs.
type vevent struct {
	uid        string
	start      time.Time
	allDay     bool
	rrule      string
	exDates    []time.Time
	recurrence *time.Time
}

// Import reads an iCalendar document and returns a standard-mode template
// holding every timed session in the window, keyed YYYY-MM-DD with HH:MM
// times in opts.Location. All-day events are skipped. Recurring events are
// expanded with their EXDATEs and RECURRENCE-ID overrides applied.
func Import(r io.Reader, opts ImportOptions) (schedule.Template, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Horizon <= 0 {
		opts.Horizon = defaultImportHorizon
	}
	if opts.MaxPerEvent <= 0 {
		opts.MaxPerEvent = defaultMaxPerEvent
	}
	rangeStart := opts.From
	rangeEnd := opts.From.Add(opts.Horizon)

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics: %w", err)
	}

	base := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	var order []string
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(comp)
		if err != nil {
			appLog.Warn("ics vevent skipped", "err", err)
			continue
		}
		if ev.allDay {
			continue
		}
		if ev.recurrence != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
			continue
		}
		if _, seen := base[ev.uid]; !seen {
			order = append(order, ev.uid)
		}
		base[ev.uid] = append(base[ev.uid], ev)
	}

	var starts []time.Time
	for _, uid := range order {
		for _, ev := range base[uid] {
			for _, s := range expand(ev, rangeStart, rangeEnd, opts.MaxPerEvent) {
				if o, ok := findOverride(overrides[uid], s); ok {
					s = o.start
				}
				if s.Before(rangeStart) || s.After(rangeEnd) {
					continue
				}
				starts = append(starts, s)
			}
		}
	}

	return toTemplate(starts, opts.Location), nil
}

func expand(ev vevent, from, to time.Time, limit int) []time.Time {
	if ev.rrule == "" {
		return []time.Time{ev.start}
	}

	r, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		appLog.Warn("ics rrule skipped", "uid", ev.uid, "rrule", ev.rrule, "err", err)
		return nil
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	out := set.Between(from.In(ev.start.Location()), to.In(ev.start.Location()), true)
	if len(out) > limit {
		appLog.Warn("ics recurrence truncated", "uid", ev.uid, "cap", limit)
		out = out[:limit]
	}
	return out
}

func findOverride(overrides []vevent, start time.Time) (vevent, bool) {
	for _, o := range overrides {
		if o.recurrence.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

func toTemplate(starts []time.Time, loc *time.Location) schedule.Template {
	byDate := make(map[model.DateKey][]model.TimeOfDay)
	for _, s := range starts {
		local := s.In(loc)
		d := model.DateKeyOf(local)
		tod := model.TimeOfDayOf(local)
		if !slices.Contains(byDate[d], tod) {
			byDate[d] = append(byDate[d], tod)
		}
	}

	dates := make([]model.DateKey, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, model.DateKey.Compare)

	tpl := make(schedule.Template, 0, len(dates))
	for _, d := range dates {
		times := byDate[d]
		slices.SortFunc(times, model.TimeOfDay.Compare)
		raw := make([]string, len(times))
		for i, t := range times {
			raw[i] = t.String()
		}
		tpl = append(tpl, schedule.Entry{Key: d.String(), Times: raw})
	}
	return tpl
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.uid = uidProp.Value

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("%s: missing DTSTART", out.uid)
	}
	if vs := dtStart.ICalParameters[parameterValueDataType]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.allDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.allDay = true
	}
	if out.allDay {
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("%s: DTSTART: %w", out.uid, err)
	}
	out.start = start

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rrule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propertyLocation(p.ICalParameters, start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty(propertyRecurrenceID)); p != nil {
		loc := propertyLocation(p.ICalParameters, start.Location())
		t, err := parseICSTime(p.Value, loc)
		if err != nil {
			return out, fmt.Errorf("%s: RECURRENCE-ID: %w", out.uid, err)
		}
		out.recurrence = &t
	}

	return out, nil
}

// propertyLocation resolves a TZID parameter, falling back to def.
func propertyLocation(params map[string][]string, def *time.Location) *time.Location {
	if tz := params[parameterTimezoneID]; len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	return def
}

// parseICSTime parses the UTC, floating and date-only value forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse(icsUTCLayout, v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation(icsLocalLayout, v, loc)
	default:
		return time.ParseInLocation(icsDateLayout, v, loc)
	}
}
