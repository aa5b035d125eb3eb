package ssi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// Strftime formats t with a C strftime format. Day and month names are
// translated to locale; unknown conversions are copied unchanged.
func Strftime(t time.Time, format string, locale monday.Locale) string {
	if locale == "" {
		locale = monday.LocaleEnUS
	}
	var b strings.Builder
	strftime(&b, t, format, locale)
	return b.String()
}

func strftime(b *strings.Builder, t time.Time, format string, locale monday.Locale) {
	name := func(layout string) string {
		return monday.Format(t, layout, locale)
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 'a':
			b.WriteString(name("Mon"))
		case 'A':
			b.WriteString(name("Monday"))
		case 'b', 'h':
			b.WriteString(name("Jan"))
		case 'B':
			b.WriteString(name("January"))
		case 'c':
			strftime(b, t, "%a %b %e %H:%M:%S %Y", locale)
		case 'C':
			fmt.Fprintf(b, "%02d", t.Year()/100)
		case 'd':
			fmt.Fprintf(b, "%02d", t.Day())
		case 'D':
			strftime(b, t, "%m/%d/%y", locale)
		case 'e':
			fmt.Fprintf(b, "%2d", t.Day())
		case 'F':
			strftime(b, t, "%Y-%m-%d", locale)
		case 'H':
			fmt.Fprintf(b, "%02d", t.Hour())
		case 'I':
			fmt.Fprintf(b, "%02d", hour12(t))
		case 'j':
			fmt.Fprintf(b, "%03d", t.YearDay())
		case 'k':
			fmt.Fprintf(b, "%2d", t.Hour())
		case 'l':
			fmt.Fprintf(b, "%2d", hour12(t))
		case 'm':
			fmt.Fprintf(b, "%02d", int(t.Month()))
		case 'M':
			fmt.Fprintf(b, "%02d", t.Minute())
		case 'n':
			b.WriteByte('\n')
		case 'p':
			if t.Hour() < 12 {
				b.WriteString("AM")
			} else {
				b.WriteString("PM")
			}
		case 'r':
			strftime(b, t, "%I:%M:%S %p", locale)
		case 'R':
			strftime(b, t, "%H:%M", locale)
		case 's':
			b.WriteString(strconv.FormatInt(t.Unix(), 10))
		case 'S':
			fmt.Fprintf(b, "%02d", t.Second())
		case 't':
			b.WriteByte('\t')
		case 'T', 'X':
			strftime(b, t, "%H:%M:%S", locale)
		case 'u':
			wd := int(t.Weekday())
			if wd == 0 {
				wd = 7
			}
			b.WriteString(strconv.Itoa(wd))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'x':
			strftime(b, t, "%m/%d/%y", locale)
		case 'y':
			fmt.Fprintf(b, "%02d", t.Year()%100)
		case 'Y':
			b.WriteString(strconv.Itoa(t.Year()))
		case 'z':
			b.WriteString(t.Format("-0700"))
		case 'Z':
			b.WriteString(t.Format("MST"))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
}

func hour12(t time.Time) int {
	if h := t.Hour() % 12; h != 0 {
		return h
	}
	return 12
}
