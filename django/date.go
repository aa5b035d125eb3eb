package django

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// Default named formats.
const (
	DefaultDateFormat      = "N j, Y"
	DefaultDateTimeFormat  = "N j, Y, P"
	DefaultTimeFormat      = "P"
	DefaultShortDateFormat = "m/d/Y"
)

// apMonths holds the Associated Press abbreviations of month names.
var apMonths = [...]string{
	"Jan.", "Feb.", "March", "April", "May", "June",
	"July", "Aug.", "Sept.", "Oct.", "Nov.", "Dec.",
}

// FormatDate formats t with a Django date format string. Month and day
// names are translated to locale. A backslash escapes the next character.
func FormatDate(t time.Time, format string, locale monday.Locale) string {
	if locale == "" {
		locale = monday.LocaleEnUS
	}
	name := func(layout string) string {
		return monday.Format(t, layout, locale)
	}

	var b strings.Builder
	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteRune(runes[i])
			}
		case 'a':
			if t.Hour() < 12 {
				b.WriteString("a.m.")
			} else {
				b.WriteString("p.m.")
			}
		case 'A':
			if t.Hour() < 12 {
				b.WriteString("AM")
			} else {
				b.WriteString("PM")
			}
		case 'b':
			b.WriteString(strings.ToLower(name("Jan")))
		case 'c':
			b.WriteString(t.Format("2006-01-02T15:04:05.999999-07:00"))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'D':
			b.WriteString(name("Mon"))
		case 'e':
			zone, _ := t.Zone()
			b.WriteString(zone)
		case 'E', 'F':
			b.WriteString(name("January"))
		case 'f':
			b.WriteString(hourMinutes(t))
		case 'g':
			b.WriteString(strconv.Itoa(hour12(t)))
		case 'G':
			b.WriteString(strconv.Itoa(t.Hour()))
		case 'h':
			fmt.Fprintf(&b, "%02d", hour12(t))
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'i':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'I':
			if t.IsDST() {
				b.WriteString("1")
			} else {
				b.WriteString("0")
			}
		case 'j':
			b.WriteString(strconv.Itoa(t.Day()))
		case 'l':
			b.WriteString(name("Monday"))
		case 'L':
			if leap(t.Year()) {
				b.WriteString("True")
			} else {
				b.WriteString("False")
			}
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'M':
			b.WriteString(name("Jan"))
		case 'n':
			b.WriteString(strconv.Itoa(int(t.Month())))
		case 'N':
			if locale == monday.LocaleEnUS || locale == monday.LocaleEnGB {
				b.WriteString(apMonths[t.Month()-1])
			} else {
				b.WriteString(name("Jan"))
			}
		case 'o':
			year, _ := t.ISOWeek()
			b.WriteString(strconv.Itoa(year))
		case 'O':
			b.WriteString(t.Format("-0700"))
		case 'P':
			b.WriteString(proper(t))
		case 'r':
			b.WriteString(t.Format(time.RFC1123Z))
		case 's':
			fmt.Fprintf(&b, "%02d", t.Second())
		case 'S':
			b.WriteString(ordinalSuffix(t.Day()))
		case 't':
			fmt.Fprintf(&b, "%02d", daysIn(t))
		case 'T':
			b.WriteString(t.Format("MST"))
		case 'u':
			fmt.Fprintf(&b, "%06d", t.Nanosecond()/1000)
		case 'U':
			b.WriteString(strconv.FormatInt(t.Unix(), 10))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'W':
			_, week := t.ISOWeek()
			b.WriteString(strconv.Itoa(week))
		case 'y':
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'z':
			b.WriteString(strconv.Itoa(t.YearDay()))
		case 'Z':
			_, offset := t.Zone()
			b.WriteString(strconv.Itoa(offset))
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

// hourMinutes formats 12-hour time with minutes left off when zero.
func hourMinutes(t time.Time) string {
	if t.Minute() == 0 {
		return strconv.Itoa(hour12(t))
	}
	return fmt.Sprintf("%d:%02d", hour12(t), t.Minute())
}

// proper formats time like "1 a.m.", "1:30 p.m.", "midnight" and "noon".
func proper(t time.Time) string {
	switch {
	case t.Hour() == 0 && t.Minute() == 0:
		return "midnight"
	case t.Hour() == 12 && t.Minute() == 0:
		return "noon"
	}
	suffix := "a.m."
	if t.Hour() >= 12 {
		suffix = "p.m."
	}
	return hourMinutes(t) + " " + suffix
}

func leap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
