package schedule

import (
	"errors"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

const (
	DefaultTimezone   = "America/New_York"
	DefaultOptinLeway = "PT0H05M"
)

// Leway is the registration grace window: an occurrence stays open until
// its start plus the leway. Calendar parts (years, months, days) are added
// with AddDate so a "P1D" leway spans a DST change correctly.
type Leway struct {
	years, months, days int
	clock               time.Duration
	text                string
}

// LewayOf builds a leway from a plain duration.
func LewayOf(d time.Duration) Leway {
	return Leway{clock: d, text: "PT" + strings.ToUpper(d.String())}
}

// ParseLeway parses an ISO-8601 duration such as "PT0H05M" or "P1DT2H".
// Fractional years and months are truncated.
func ParseLeway(s string) (Leway, error) {
	v := strings.TrimSpace(s)
	d, err := duration.Parse(v)
	if err != nil {
		return Leway{}, err
	}
	if d.Negative {
		return Leway{}, errors.New("negative duration")
	}

	days := d.Weeks*7 + d.Days
	l := Leway{
		years:  int(d.Years),
		months: int(d.Months),
		days:   int(days),
		text:   v,
	}
	l.clock = time.Duration((days-float64(l.days))*24*float64(time.Hour)) +
		time.Duration(d.Hours*float64(time.Hour)) +
		time.Duration(d.Minutes*float64(time.Minute)) +
		time.Duration(d.Seconds*float64(time.Second))
	return l, nil
}

// DefaultLeway is PT0H05M.
func DefaultLeway() Leway {
	return Leway{clock: 5 * time.Minute, text: DefaultOptinLeway}
}

// AddTo returns t shifted forward by the leway.
func (l Leway) AddTo(t time.Time) time.Time {
	if l.years != 0 || l.months != 0 || l.days != 0 {
		t = t.AddDate(l.years, l.months, l.days)
	}
	return t.Add(l.clock)
}

func (l Leway) String() string {
	if l.text == "" {
		return "PT0S"
	}
	return l.text
}

// ResolveLeway parses s, falling back to DefaultLeway. An empty s is not an
// error; an unparsable or negative one is reported as *ConfigError.
func ResolveLeway(s string) (Leway, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultLeway(), nil
	}
	l, err := ParseLeway(s)
	if err != nil {
		return DefaultLeway(), &ConfigError{Field: "optin_leway", Value: s, Fallback: DefaultOptinLeway, Err: err}
	}
	return l, nil
}

// ResolveLocation loads an IANA zone, falling back to DefaultTimezone (and
// to UTC if even that is unavailable).
func ResolveLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return defaultLocation()
	}
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		def, _ := defaultLocation()
		return def, &ConfigError{Field: "timezone", Value: name, Fallback: def.String(), Err: err}
	}
	return loc, nil
}

func defaultLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC, &ConfigError{Field: "timezone", Value: DefaultTimezone, Fallback: "UTC", Err: err}
	}
	return loc, nil
}
