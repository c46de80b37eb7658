// Package datefmt renders times with PHP date() style patterns, the
// notation schedule display formats are written in ("l, F jS", "g:ia").
//
// Supported characters:
//
//	day:     d D j l N S w z
//	week:    W
//	month:   F m M n t
//	year:    L o Y y
//	time:    a A g G h H i s u v
//	zone:    e T P O Z
//	full:    c r U
//
// A backslash emits the next character literally; any other character is
// copied as-is.
package datefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func Format(t time.Time, pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) * 2)

	escaped := false
	for _, c := range pattern {
		if escaped {
			b.WriteRune(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if !writeToken(&b, t, c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func writeToken(b *strings.Builder, t time.Time, c rune) bool {
	switch c {
	case 'd':
		b.WriteString(pad2(t.Day()))
	case 'D':
		b.WriteString(t.Weekday().String()[:3])
	case 'j':
		b.WriteString(strconv.Itoa(t.Day()))
	case 'l':
		b.WriteString(t.Weekday().String())
	case 'N':
		b.WriteString(strconv.Itoa(isoWeekday(t)))
	case 'S':
		b.WriteString(ordinalSuffix(t.Day()))
	case 'w':
		b.WriteString(strconv.Itoa(int(t.Weekday())))
	case 'z':
		b.WriteString(strconv.Itoa(t.YearDay() - 1))
	case 'W':
		_, w := t.ISOWeek()
		b.WriteString(pad2(w))
	case 'F':
		b.WriteString(t.Month().String())
	case 'm':
		b.WriteString(pad2(int(t.Month())))
	case 'M':
		b.WriteString(t.Month().String()[:3])
	case 'n':
		b.WriteString(strconv.Itoa(int(t.Month())))
	case 't':
		b.WriteString(strconv.Itoa(daysIn(t.Year(), t.Month())))
	case 'L':
		if daysIn(t.Year(), time.February) == 29 {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}
	case 'o':
		y, _ := t.ISOWeek()
		b.WriteString(strconv.Itoa(y))
	case 'Y':
		b.WriteString(strconv.Itoa(t.Year()))
	case 'y':
		b.WriteString(pad2(t.Year() % 100))
	case 'a':
		b.WriteString(t.Format("pm"))
	case 'A':
		b.WriteString(t.Format("PM"))
	case 'g':
		b.WriteString(t.Format("3"))
	case 'G':
		b.WriteString(strconv.Itoa(t.Hour()))
	case 'h':
		b.WriteString(t.Format("03"))
	case 'H':
		b.WriteString(pad2(t.Hour()))
	case 'i':
		b.WriteString(pad2(t.Minute()))
	case 's':
		b.WriteString(pad2(t.Second()))
	case 'u':
		b.WriteString(fmt.Sprintf("%06d", t.Nanosecond()/int(time.Microsecond)))
	case 'v':
		b.WriteString(fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond)))
	case 'e':
		b.WriteString(t.Location().String())
	case 'T':
		b.WriteString(t.Format("MST"))
	case 'P':
		b.WriteString(t.Format("-07:00"))
	case 'O':
		b.WriteString(t.Format("-0700"))
	case 'Z':
		_, off := t.Zone()
		b.WriteString(strconv.Itoa(off))
	case 'c':
		b.WriteString(t.Format("2006-01-02T15:04:05-07:00"))
	case 'r':
		b.WriteString(t.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	case 'U':
		b.WriteString(strconv.FormatInt(t.Unix(), 10))
	default:
		return false
	}
	return true
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func isoWeekday(t time.Time) int {
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int(t.Weekday())
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
