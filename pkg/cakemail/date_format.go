package cakemail

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// defaultDateFormat is used for date merge fields that carry no format.
const defaultDateFormat = "yyyy-MM-dd HH:mm:ss"

// strftimeDirective detects strftime style patterns such as "%Y-%m-%d".
var strftimeDirective = regexp.MustCompile(`%[-_0^#]?[a-zA-Z]`)

// formatDate renders t with a .NET style date format. An empty format uses the
// culture's general pattern. Formats containing strftime directives are handed
// to timefmt instead.
func formatDate(t time.Time, format string, c *culture) string {
	if format == "" {
		format = "G"
	}
	if isStrftimeFormat(format) {
		return c.translateEnglishNames(timefmt.Format(t, format))
	}
	if len(format) == 1 {
		if pattern, ok := standardDatePattern(format[0], c); ok {
			if format[0] == 'r' || format[0] == 'R' {
				return formatCustomDate(t.UTC(), pattern, invariantCulture())
			}
			if format[0] == 'u' {
				t = t.UTC()
			}
			return formatCustomDate(t, pattern, c)
		}
	}
	return formatCustomDate(t, format, c)
}

// isStrftimeFormat reports whether the pattern is meant for strftime. A lone
// "%d" style pattern is the .NET single-specifier escape and stays custom.
func isStrftimeFormat(format string) bool {
	if len(format) == 2 && format[0] == '%' && strings.IndexByte("dfFghHKmMstyz", format[1]) >= 0 {
		return false
	}
	return strftimeDirective.MatchString(format)
}

func standardDatePattern(spec byte, c *culture) (string, bool) {
	p := c.patterns
	switch spec {
	case 'd':
		return p.shortDate, true
	case 'D':
		return p.longDate, true
	case 'f':
		return p.longDate + " " + p.shortTime, true
	case 'F':
		return p.longDate + " " + p.longTime, true
	case 'g':
		return p.shortDate + " " + p.shortTime, true
	case 'G':
		return p.shortDate + " " + p.longTime, true
	case 'm', 'M':
		return p.monthDay, true
	case 'o', 'O':
		return "yyyy'-'MM'-'dd'T'HH':'mm':'ss'.'fffffffK", true
	case 'r', 'R':
		return "ddd, dd MMM yyyy HH':'mm':'ss 'GMT'", true
	case 's':
		return "yyyy'-'MM'-'dd'T'HH':'mm':'ss", true
	case 't':
		return p.shortTime, true
	case 'T':
		return p.longTime, true
	case 'u':
		return "yyyy'-'MM'-'dd HH':'mm':'ss'Z'", true
	case 'y', 'Y':
		return p.yearMonth, true
	}
	return "", false
}

// formatCustomDate walks a custom .NET date pattern and renders each specifier.
func formatCustomDate(t time.Time, pattern string, c *culture) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		ch := runes[i]
		switch ch {
		case '\'', '"':
			end := i + 1
			for end < len(runes) && runes[end] != ch {
				end++
			}
			b.WriteString(string(runes[i+1 : min(end, len(runes))]))
			i = end + 1
			continue
		case '\\':
			if i+1 < len(runes) {
				b.WriteRune(runes[i+1])
			}
			i += 2
			continue
		case '%':
			// "%d" forces a single specifier to be read as custom.
			i++
			continue
		case '/':
			b.WriteString(c.patterns.dateSep)
			i++
			continue
		}

		n := repeatCount(runes, i)
		switch ch {
		case 'd':
			switch {
			case n == 1:
				b.WriteString(strconv.Itoa(t.Day()))
			case n == 2:
				fmt.Fprintf(&b, "%02d", t.Day())
			case n == 3:
				b.WriteString(c.names.weekdaysShort[t.Weekday()])
			default:
				b.WriteString(c.names.weekdays[t.Weekday()])
			}
		case 'M':
			switch {
			case n == 1:
				b.WriteString(strconv.Itoa(int(t.Month())))
			case n == 2:
				fmt.Fprintf(&b, "%02d", int(t.Month()))
			case n == 3:
				b.WriteString(c.names.monthsShort[t.Month()-1])
			default:
				b.WriteString(c.names.months[t.Month()-1])
			}
		case 'y':
			switch {
			case n == 1:
				b.WriteString(strconv.Itoa(t.Year() % 100))
			case n == 2:
				fmt.Fprintf(&b, "%02d", t.Year()%100)
			default:
				fmt.Fprintf(&b, "%0*d", n, t.Year())
			}
		case 'h':
			hour := t.Hour() % 12
			if hour == 0 {
				hour = 12
			}
			writePadded(&b, hour, n)
		case 'H':
			writePadded(&b, t.Hour(), n)
		case 'm':
			writePadded(&b, t.Minute(), n)
		case 's':
			writePadded(&b, t.Second(), n)
		case 'f', 'F':
			digits := min(n, 7)
			frac := fmt.Sprintf("%09d", t.Nanosecond())[:digits]
			if ch == 'F' {
				frac = strings.TrimRight(frac, "0")
			}
			b.WriteString(frac)
		case 't':
			designator := "AM"
			if t.Hour() >= 12 {
				designator = "PM"
			}
			if n == 1 {
				designator = designator[:1]
			}
			b.WriteString(designator)
		case 'z':
			_, offset := t.Zone()
			sign := '+'
			if offset < 0 {
				sign = '-'
				offset = -offset
			}
			hours, minutes := offset/3600, (offset%3600)/60
			switch {
			case n == 1:
				fmt.Fprintf(&b, "%c%d", sign, hours)
			case n == 2:
				fmt.Fprintf(&b, "%c%02d", sign, hours)
			default:
				fmt.Fprintf(&b, "%c%02d:%02d", sign, hours, minutes)
			}
		case 'K':
			if t.Location() == time.UTC {
				b.WriteString("Z")
			} else {
				b.WriteString(t.Format("-07:00"))
			}
			n = 1
		case 'g':
			b.WriteString("A.D.")
		default:
			b.WriteRune(ch)
			n = 1
		}
		i += n
	}
	return b.String()
}

func repeatCount(runes []rune, i int) int {
	n := 1
	for i+n < len(runes) && runes[i+n] == runes[i] {
		n++
	}
	return n
}

func writePadded(b *strings.Builder, v, n int) {
	if n >= 2 {
		fmt.Fprintf(b, "%02d", v)
		return
	}
	b.WriteString(strconv.Itoa(v))
}
