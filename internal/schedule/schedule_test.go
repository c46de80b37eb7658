package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webinarsched/internal/model"
)

var ny = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func at(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, ny)
}

func day(y int, m time.Month, d int) model.DateKey { return model.NewDateKey(y, m, d) }

func hm(h, m int) model.TimeOfDay { return model.TimeOfDay{Hour: h, Minute: m} }

func newSchedule(t *testing.T, mode Mode, now time.Time) *Schedule {
	t.Helper()
	s, err := New(Options{Mode: mode, Timezone: "America/New_York", Clock: FixedClock{T: now}})
	require.NoError(t, err)
	return s
}

// Sunday 08:00/09:00 and Wednesday 14:00.
var weeklyTemplate = Template{
	{Key: "0", Times: []string{"08:00", "09:00"}},
	{Key: "3", Times: []string{"14:00"}},
}

func TestEvergreen_WednesdayBeforeCutoffAnchorsToday(t *testing.T) {
	// 2024-05-01 is a Wednesday.
	s := newSchedule(t, Evergreen{}, at(2024, time.May, 1, 13, 59, 0))
	require.NoError(t, s.SetSchedule(weeklyTemplate))

	assert.Equal(t, Canonical{
		{Date: day(2024, time.May, 1), Times: []model.TimeOfDay{hm(14, 0)}},
		{Date: day(2024, time.May, 5), Times: []model.TimeOfDay{hm(8, 0), hm(9, 0)}},
	}, s.Canonical())
	assert.False(t, s.IsOver())
}

func TestEvergreen_WednesdayAfterCutoffMovesAWeek(t *testing.T) {
	s := newSchedule(t, Evergreen{}, at(2024, time.May, 1, 14, 6, 0))
	require.NoError(t, s.SetSchedule(weeklyTemplate))

	assert.Equal(t, Canonical{
		{Date: day(2024, time.May, 5), Times: []model.TimeOfDay{hm(8, 0), hm(9, 0)}},
		{Date: day(2024, time.May, 8), Times: []model.TimeOfDay{hm(14, 0)}},
	}, s.Canonical())
}

func TestEvergreen_CutoffBoundary(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want model.DateKey
	}{
		{"one second before cutoff", at(2024, time.May, 1, 14, 4, 59), day(2024, time.May, 1)},
		{"exactly at cutoff", at(2024, time.May, 1, 14, 5, 0), day(2024, time.May, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Resolve(Evergreen{}, Template{{Key: "3", Times: []string{"14:00"}}}, Env{
				Location: ny,
				Leway:    DefaultLeway(),
				Now:      tt.now,
			})
			require.NoError(t, err)
			require.Len(t, c, 1)
			assert.Equal(t, tt.want, c[0].Date)
		})
	}
}

func TestEvergreen_CutoffUsesLastListedTime(t *testing.T) {
	// Stored order is kept: the cutoff comes from the final entry, 09:00,
	// not from the latest time of day.
	tpl := Template{{Key: "3", Times: []string{"16:00", "09:00"}}}
	c, err := Resolve(Evergreen{}, tpl, Env{
		Location: ny,
		Leway:    DefaultLeway(),
		Now:      at(2024, time.May, 1, 10, 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 8), c[0].Date)
}

func TestEvergreen_SundayNeverCountsAsPassed(t *testing.T) {
	// 2024-05-05 is a Sunday; Sunday's own slots are already closed.
	tpl := Template{
		{Key: "6", Times: []string{"10:00"}},
		{Key: "0", Times: []string{"08:00", "09:00"}},
		{Key: "3", Times: []string{"14:00"}},
		{Key: "1", Times: []string{"12:00"}},
	}
	s := newSchedule(t, Evergreen{}, at(2024, time.May, 5, 10, 0, 0))
	require.NoError(t, s.SetSchedule(tpl))

	c := s.Canonical()
	got := make([]model.DateKey, 0, len(c))
	for _, d := range c {
		got = append(got, d.Date)
	}
	assert.Equal(t, []model.DateKey{
		day(2024, time.May, 6),
		day(2024, time.May, 8),
		day(2024, time.May, 11),
		day(2024, time.May, 12),
	}, got)
}

func TestEvergreen_PassedWeekdayRollsToNextWeek(t *testing.T) {
	// Saturday 2024-05-04: Friday has passed, Sunday is tomorrow.
	tpl := Template{
		{Key: "5", Times: []string{"10:00"}},
		{Key: "0", Times: []string{"10:00"}},
	}
	c, err := Resolve(Evergreen{}, tpl, Env{Location: ny, Leway: DefaultLeway(), Now: at(2024, time.May, 4, 9, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 5), c[0].Date)
	assert.Equal(t, day(2024, time.May, 10), c[1].Date)
}

func TestEvergreen_EmptyTimesOnTodayRollForward(t *testing.T) {
	c, err := Resolve(Evergreen{}, Template{{Key: "3"}}, Env{Location: ny, Leway: DefaultLeway(), Now: at(2024, time.May, 1, 0, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 8), c[0].Date)
}

func TestRolling_NormalizesAndMergesKeys(t *testing.T) {
	// Wednesday: "next friday" is the coming Friday, the same date as the
	// first key, so the two rows merge in template order.
	s := newSchedule(t, Rolling{}, at(2024, time.May, 1, 12, 0, 0))
	require.NoError(t, s.SetSchedule(Template{
		{Key: "2024-05-03 10:00", Times: []string{"10:00"}},
		{Key: "next friday", Times: []string{"14:00"}},
		{Key: "May 10, 2024", Times: []string{"09:00"}},
	}))

	assert.Equal(t, Canonical{
		{Date: day(2024, time.May, 3), Times: []model.TimeOfDay{hm(10, 0), hm(14, 0)}},
		{Date: day(2024, time.May, 10), Times: []model.TimeOfDay{hm(9, 0)}},
	}, s.Canonical())
}

func TestRolling_KeepsInsertionOrder(t *testing.T) {
	c, err := Resolve(Rolling{}, Template{
		{Key: "2024-05-10", Times: []string{"09:00"}},
		{Key: "tomorrow", Times: []string{"09:00"}},
	}, Env{Location: ny, Leway: DefaultLeway(), Now: at(2024, time.May, 1, 12, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 10), c[0].Date)
	assert.Equal(t, day(2024, time.May, 2), c[1].Date)
}

func TestParseRelativeDay(t *testing.T) {
	now := at(2024, time.May, 1, 12, 0, 0) // Wednesday
	tests := []struct {
		in   string
		want model.DateKey
	}{
		{"today", day(2024, time.May, 1)},
		{"Tomorrow", day(2024, time.May, 2)},
		{"yesterday", day(2024, time.April, 30)},
		{"wednesday", day(2024, time.May, 1)},
		{"this wednesday", day(2024, time.May, 1)},
		{"next wednesday", day(2024, time.May, 8)},
		{"last wednesday", day(2024, time.April, 24)},
		{"next Sunday", day(2024, time.May, 5)},
		{"this mon", day(2024, time.May, 6)},
		{"+1 week", day(2024, time.May, 8)},
		{"-2 days", day(2024, time.April, 29)},
		{"3 days", day(2024, time.May, 4)},
		{"+1 month", day(2024, time.June, 1)},
		{"next month", day(2024, time.June, 1)},
		{"last year", day(2023, time.May, 1)},
		{"next week", day(2024, time.May, 8)},
		{"this week", day(2024, time.May, 1)},
		{"2 weeks ago", day(2024, time.April, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok, err := parseRelativeDay(tt.in, now)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, in := range []string{"2024-05-03", "soon week", "1 fortnight", "2 days later"} {
		_, ok, err := parseRelativeDay(in, now)
		assert.NoError(t, err, in)
		assert.False(t, ok, in)
	}
}

func TestParseRelativeDay_MonthOverflow(t *testing.T) {
	got, ok, err := parseRelativeDay("next month", at(2024, time.January, 31, 12, 0, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(2024, time.March, 2), got)
}

func TestRolling_RelativeUnitKeys(t *testing.T) {
	tpl := Template{
		{Key: "+1 week", Times: []string{"10:00"}},
		{Key: "next month", Times: []string{"11:00"}},
	}
	c, err := Resolve(Rolling{}, tpl, Env{Location: ny, Now: at(2024, time.May, 1, 12, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, Canonical{
		{Date: day(2024, time.May, 8), Times: []model.TimeOfDay{hm(10, 0)}},
		{Date: day(2024, time.June, 1), Times: []model.TimeOfDay{hm(11, 0)}},
	}, c)
}

func TestStandard_PassesThroughUnchanged(t *testing.T) {
	tpl := Template{
		{Key: "2024-05-06", Times: []string{"09:00"}},
		{Key: "2024-05-03", Times: []string{"14:30", "07:00"}},
	}
	c, err := Resolve(Standard{}, tpl, Env{Location: ny})
	require.NoError(t, err)
	assert.Equal(t, Canonical{
		{Date: day(2024, time.May, 6), Times: []model.TimeOfDay{hm(9, 0)}},
		{Date: day(2024, time.May, 3), Times: []model.TimeOfDay{hm(14, 30), hm(7, 0)}},
	}, c)
}

func TestNextDates_StandardFormatting(t *testing.T) {
	s := newSchedule(t, Standard{}, at(2024, time.May, 3, 6, 0, 0))
	require.NoError(t, s.SetSchedule(Template{
		{Key: "2024-05-03", Times: []string{"07:00", "14:30"}},
		{Key: "2024-05-04", Times: []string{"10:00"}},
		{Key: "2024-05-06", Times: []string{"09:00"}},
	}))

	got := s.NextDates(DefaultQuery())
	assert.Equal(t, []model.DateGroup{
		{
			Date:      day(2024, time.May, 3),
			Text:      "Friday, May 3rd",
			Day:       "Friday",
			TimeValue: []string{"07:00", "14:30"},
			TimeText:  []string{"7:00am Eastern", "2:30pm Eastern"},
		},
		{
			Date:      day(2024, time.May, 4),
			Text:      "Saturday, May 4th",
			Day:       "Saturday",
			TimeValue: []string{"10:00"},
			TimeText:  []string{"10:00am Eastern"},
		},
	}, got)
}

func TestNextDates_CustomPatternsAndLabel(t *testing.T) {
	s := newSchedule(t, Standard{}, at(2024, time.May, 3, 6, 0, 0))
	require.NoError(t, s.SetSchedule(Template{{Key: "2024-05-03", Times: []string{"19:15"}}}))

	got := s.NextDates(Query{Limit: 5, DateFormat: "Y/m/d", TimeFormat: "H:i", RawTimeFormat: "Hi", ZoneLabel: " ET"})
	require.Len(t, got, 1)
	assert.Equal(t, "2024/05/03", got[0].Text)
	assert.Equal(t, []string{"1915"}, got[0].TimeValue)
	assert.Equal(t, []string{"19:15 ET"}, got[0].TimeText)
}

func TestNextDates_SkipsClosedTimesWithinADay(t *testing.T) {
	s := newSchedule(t, Standard{}, at(2024, time.May, 3, 8, 0, 0))
	require.NoError(t, s.SetSchedule(Template{
		{Key: "2024-05-03", Times: []string{"07:00", "07:56", "09:00"}},
	}))

	got := s.NextDates(DefaultQuery())
	require.Len(t, got, 1)
	// 07:56 + 5m leway is still open at 08:00.
	assert.Equal(t, []string{"07:56", "09:00"}, got[0].TimeValue)
}

func TestNextDates_LimitCountsDates(t *testing.T) {
	s := newSchedule(t, Standard{}, at(2024, time.May, 1, 0, 0, 0))
	require.NoError(t, s.SetSchedule(Template{
		{Key: "2024-05-03", Times: []string{"07:00", "08:00", "09:00"}},
		{Key: "2024-05-04", Times: []string{"10:00"}},
		{Key: "2024-05-05", Times: []string{"11:00"}},
	}))

	got := s.NextDates(Query{Limit: 1, RawTimeFormat: "H:i"})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"07:00", "08:00", "09:00"}, got[0].TimeValue)

	assert.Empty(t, s.NextDates(Query{Limit: 0}))
	assert.Len(t, s.NextDates(Query{Limit: 10}), 3)
}

func TestNextDates_OrdersStandardKeysByDate(t *testing.T) {
	s := newSchedule(t, Standard{}, at(2024, time.May, 1, 0, 0, 0))
	require.NoError(t, s.SetSchedule(Template{
		{Key: "2024-05-06", Times: []string{"09:00"}},
		{Key: "2024-05-03", Times: []string{"14:30", "07:00"}},
	}))

	got := s.NextDates(Query{Limit: 5, RawTimeFormat: "H:i"})
	require.Len(t, got, 2)
	assert.Equal(t, day(2024, time.May, 3), got[0].Date)
	assert.Equal(t, []string{"14:30", "07:00"}, got[0].TimeValue)
	assert.Equal(t, day(2024, time.May, 6), got[1].Date)
}

func TestNextDates_SpringForwardGapShowsListedTime(t *testing.T) {
	s := newSchedule(t, Standard{}, at(2024, time.March, 10, 1, 0, 0))
	require.NoError(t, s.SetSchedule(Template{{Key: "2024-03-10", Times: []string{"02:30"}}}))

	occs := s.Occurrences()
	require.Len(t, occs, 1)
	assert.Equal(t, "2024-03-10T07:30:00Z", occs[0].Start.UTC().Format(time.RFC3339))
	assert.Equal(t, "2024-03-10T07:35:00Z", occs[0].Closes.UTC().Format(time.RFC3339))

	got := s.NextDates(DefaultQuery())
	require.Len(t, got, 1)
	assert.Equal(t, []string{"02:30"}, got[0].TimeValue)
	assert.Equal(t, []string{"2:30am Eastern"}, got[0].TimeText)

	// Still open one minute before the rolled-forward close.
	late := newSchedule(t, Standard{}, time.Date(2024, time.March, 10, 7, 34, 0, 0, time.UTC))
	require.NoError(t, late.SetSchedule(Template{{Key: "2024-03-10", Times: []string{"02:30"}}}))
	assert.False(t, late.IsOver())
}

// steppingClock advances by step on every read.
type steppingClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func TestFreeze_QueriesShareOneInstant(t *testing.T) {
	clock := &steppingClock{t: at(2024, time.May, 3, 10, 4, 59), step: time.Second}
	s, err := New(Options{Mode: Standard{}, Timezone: "America/New_York", Clock: clock})
	require.NoError(t, err)
	require.NoError(t, s.SetSchedule(Template{{Key: "2024-05-03", Times: []string{"10:00"}}}))

	// SetSchedule read the clock once; the next read is 10:05:00.
	frozen := s.Freeze()
	for range 3 {
		assert.Len(t, frozen.NextDates(DefaultQuery()), 0)
		assert.True(t, frozen.IsOver())
	}

	clock.t = at(2024, time.May, 3, 10, 4, 59)
	frozen = s.Freeze()
	for range 3 {
		assert.Len(t, frozen.NextDates(DefaultQuery()), 1)
		assert.False(t, frozen.IsOver())
	}
	assert.True(t, s.IsOver(), "the live schedule keeps reading the clock")
}

func TestIsOver(t *testing.T) {
	tpl := Template{{Key: "2024-05-03", Times: []string{"10:00"}}}

	open := newSchedule(t, Standard{}, at(2024, time.May, 3, 10, 4, 59))
	require.NoError(t, open.SetSchedule(tpl))
	assert.False(t, open.IsOver())

	closed := newSchedule(t, Standard{}, at(2024, time.May, 3, 10, 5, 0))
	require.NoError(t, closed.SetSchedule(tpl))
	assert.True(t, closed.IsOver())
	assert.Empty(t, closed.NextDates(DefaultQuery()))

	empty := newSchedule(t, Standard{}, at(2024, time.May, 3, 10, 0, 0))
	assert.True(t, empty.IsOver())
}

func TestOpenOccurrencesIsRestartable(t *testing.T) {
	c, err := Resolve(Standard{}, Template{
		{Key: "2024-05-03", Times: []string{"07:00", "08:00"}},
		{Key: "2024-05-04", Times: []string{"09:00"}},
	}, Env{})
	require.NoError(t, err)

	env := Env{Location: ny, Leway: DefaultLeway(), Now: at(2024, time.May, 1, 0, 0, 0)}
	seq := OpenOccurrences(c, env)

	for occ := range seq {
		assert.Equal(t, hm(7, 0), occ.Time)
		break
	}
	var all []model.TimeOfDay
	for occ := range seq {
		all = append(all, occ.Time)
	}
	assert.Equal(t, []model.TimeOfDay{hm(7, 0), hm(8, 0), hm(9, 0)}, all)
}

func TestSetSchedule_ParseErrorsKeepPreviousSchedule(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		tpl   Template
		field string
	}{
		{"standard bad date", Standard{}, Template{{Key: "May 3rd", Times: []string{"10:00"}}}, "date"},
		{"rolling bad date", Rolling{}, Template{{Key: "florp", Times: []string{"10:00"}}}, "date"},
		{"rolling date buried in text", Rolling{}, Template{{Key: "garbage friday text", Times: []string{"10:00"}}}, "date"},
		{"evergreen bad weekday", Evergreen{}, Template{{Key: "7", Times: []string{"10:00"}}}, "weekday"},
		{"bad time", Standard{}, Template{{Key: "2024-05-03", Times: []string{"25:99"}}}, "time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSchedule(t, tt.mode, at(2024, time.May, 1, 12, 0, 0))
			s.days = Canonical{{Date: day(2024, time.May, 9), Times: []model.TimeOfDay{hm(9, 0)}}}

			err := s.SetSchedule(tt.tpl)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.field, pe.Field)

			assert.Equal(t, day(2024, time.May, 9), s.Canonical()[0].Date)
		})
	}
}

func TestNew_FallsBackOnBadSettings(t *testing.T) {
	s, err := New(Options{Timezone: "Mars/Olympus_Mons", OptinLeway: "five minutes"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))

	assert.Equal(t, DefaultTimezone, s.Timezone().String())
	assert.Equal(t, DefaultOptinLeway, s.OptinLeway().String())
	assert.Equal(t, "standard", s.Mode().Name())
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimezone, s.Timezone().String())
	assert.Equal(t, DefaultOptinLeway, s.OptinLeway().String())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]string{"": "standard", "Rolling": "rolling", " evergreen ": "evergreen"} {
		m, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, m.Name())
	}
	_, err := ParseMode("weekly")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestLeway(t *testing.T) {
	l, err := ParseLeway("PT0H05M")
	require.NoError(t, err)
	base := at(2024, time.May, 1, 14, 0, 0)
	assert.Equal(t, base.Add(5*time.Minute), l.AddTo(base))

	// P1D keeps the wall clock across the spring-forward change.
	day1, err := ParseLeway("P1D")
	require.NoError(t, err)
	got := day1.AddTo(at(2024, time.March, 9, 12, 0, 0))
	assert.Equal(t, at(2024, time.March, 10, 12, 0, 0), got)
	assert.Equal(t, 23*time.Hour, got.Sub(at(2024, time.March, 9, 12, 0, 0)))

	_, err = ResolveLeway("")
	assert.NoError(t, err)
	fallback, err := ResolveLeway("soon")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, DefaultLeway(), fallback)
}

func TestCurrentTimeInZone(t *testing.T) {
	s, err := New(Options{Clock: FixedClock{T: time.Date(2024, time.May, 1, 17, 59, 0, 0, time.UTC)}})
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01 13:59:00", s.CurrentTimeInZone(""))
	assert.Equal(t, "1:59pm", s.CurrentTimeInZone("g:ia"))
}

func TestUntilNext(t *testing.T) {
	tpl := Template{{Key: "2024-05-01", Times: []string{"14:00"}}}

	tests := []struct {
		name   string
		now    time.Time
		want   time.Duration
		wantOK bool
	}{
		{"before start", at(2024, time.May, 1, 13, 59, 0), time.Minute, true},
		{"inside leway", at(2024, time.May, 1, 14, 3, 0), 0, true},
		{"over", at(2024, time.May, 1, 14, 6, 0), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSchedule(t, Standard{}, tt.now)
			require.NoError(t, s.SetSchedule(tpl))
			d, ok := s.UntilNext()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, d)
		})
	}
}
