package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"webinarsched/internal/model"
)

const (
	productID            = "-//webinarsched//schedule feed//EN"
	defaultSessionLength = time.Hour
)

// FeedOptions control the exported calendar.
type FeedOptions struct {
	// Title is used for the calendar name and every event summary.
	Title string
	// SessionLength is DTEND - DTSTART for every event.
	SessionLength time.Duration
	// Limit caps the number of distinct dates exported; <= 0 exports none.
	Limit int
	// Stamp is written as DTSTAMP.
	Stamp time.Time
	// RegisterURL, if set, is attached to every event.
	RegisterURL string
}

// Feed renders open occurrences as an iCalendar document.
//
// occs must be in start order, as returned by Schedule.Occurrences. Event
// UIDs are derived from the title and start instant, so calendar clients
// see the same session as the same event across refreshes.
func Feed(occs []model.Occurrence, opts FeedOptions) string {
	if opts.SessionLength <= 0 {
		opts.SessionLength = defaultSessionLength
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Title != "" {
		cal.SetXWRCalName(opts.Title)
	}

	dates := 0
	var last model.DateKey
	for _, occ := range occs {
		if dates == 0 || occ.Date != last {
			if dates >= opts.Limit {
				break
			}
			dates++
			last = occ.Date
		}

		ev := cal.AddEvent(EventUID(opts.Title, occ.Start))
		ev.SetDtStampTime(opts.Stamp)
		ev.SetStartAt(occ.Start)
		ev.SetEndAt(occ.Start.Add(opts.SessionLength))
		ev.SetSummary(opts.Title)
		if opts.RegisterURL != "" {
			ev.SetURL(opts.RegisterURL)
		}
	}

	return cal.Serialize()
}

// EventUID is the stable UID for a session of title starting at start.
func EventUID(title string, start time.Time) string {
	name := strings.Join([]string{"webinarsched", title, start.UTC().Format(time.RFC3339)}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + "@webinarsched"
}
