package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateKey is a calendar date with no time or zone attached. It is the key
// of a canonical schedule and is totally ordered.
type DateKey struct {
	Year  int
	Month time.Month
	Day   int
}

const dateKeyLayout = "2006-01-02"

// NewDateKey normalizes out-of-range values the same way time.Date does
// (e.g. April 31 becomes May 1).
func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKeyOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateKeyOf returns the date of t in t's own location.
func DateKeyOf(t time.Time) DateKey {
	y, m, d := t.Date()
	return DateKey{Year: y, Month: m, Day: d}
}

// ParseDateKey parses a strict YYYY-MM-DD value.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(dateKeyLayout, strings.TrimSpace(s))
	if err != nil {
		return DateKey{}, err
	}
	return DateKeyOf(t), nil
}

func (d DateKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Midnight returns 00:00 of the date in loc.
func (d DateKey) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combines the date with a wall-clock time in loc. A time that falls in
// a spring-forward gap rolls forward by the gap, so 02:30 on a 1-hour gap
// day is 03:30 in the new offset.
func (d DateKey) At(t TimeOfDay, loc *time.Location) time.Time {
	at := time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, t.Second, 0, loc)
	got := DateKeyOf(at).Midnight(time.UTC).Add(TimeOfDayOf(at).sinceMidnight())
	want := d.Midnight(time.UTC).Add(t.sinceMidnight())
	if diff := want.Sub(got); diff > 0 {
		at = at.Add(diff)
	}
	return at
}

func (d DateKey) Weekday() time.Weekday {
	return d.Midnight(time.UTC).Weekday()
}

func (d DateKey) AddDays(n int) DateKey {
	return DateKeyOf(d.Midnight(time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1.
func (d DateKey) Compare(other DateKey) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d DateKey) Before(other DateKey) bool { return d.Compare(other) < 0 }

func (d DateKey) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DateKey) UnmarshalText(b []byte) error {
	k, err := ParseDateKey(string(b))
	if err != nil {
		return err
	}
	*d = k
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Accepted spellings, most common first.
var timeOfDayLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04pm",
	"3:04:05pm",
	"3:04 pm",
	"3pm",
	"3 pm",
	"1504",
}

var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// ParseTimeOfDay accepts 24-hour ("14:00", "14:00:30") and 12-hour
// ("2:00pm", "2pm", "2:00 PM") spellings.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	for _, layout := range timeOfDayLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// TimeOfDayOf returns the wall-clock time of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t TimeOfDay) sinceMidnight() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

// Compare orders times of day within a single day.
func (t TimeOfDay) Compare(other TimeOfDay) int {
	if c := cmpInt(t.Hour, other.Hour); c != 0 {
		return c
	}
	if c := cmpInt(t.Minute, other.Minute); c != 0 {
		return c
	}
	return cmpInt(t.Second, other.Second)
}

// WeekdayIndex is a raw evergreen template key: 0 = Sunday ... 6 = Saturday.
type WeekdayIndex int

func ParseWeekdayIndex(s string) (WeekdayIndex, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 6 {
		return 0, fmt.Errorf("weekday index %d out of range 0-6", n)
	}
	return WeekdayIndex(n), nil
}

func (w WeekdayIndex) Weekday() time.Weekday { return time.Weekday(w) }

// Occurrence is a single (date, time) pair of a schedule evaluated in the
// schedule's zone. It is derived on every query and never stored.
type Occurrence struct {
	Date DateKey
	Time TimeOfDay

	// Start is the wall-clock start in the schedule zone.
	Start time.Time
	// Closes is Start plus the registration grace window; the occurrence
	// is open while now < Closes.
	Closes time.Time
}

// DateGroup is one display row: a date and every open time on it.
// TimeValue and TimeText are parallel.
type DateGroup struct {
	Date      DateKey  `json:"date"`
	Text      string   `json:"text"`
	Day       string   `json:"day"`
	TimeValue []string `json:"timeValue"`
	TimeText  []string `json:"timeText"`
}
