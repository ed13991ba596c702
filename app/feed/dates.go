package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/language"
)

const isoLayout = "2006-01-02T15:04:05-07:00"

// ParseDate accepts any of the date representations commonly found in feeds.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", value, err)
	}
	return t, nil
}

// FormatDate renders t in timezone using day.js style format tokens
// (YYYY, MM, DD, HH, mm, ss, Do, dddd, ...). Month and weekday names follow locale.
// Text inside [brackets] is kept verbatim.
// An empty format yields an ISO 8601 timestamp with offset.
func FormatDate(t time.Time, format, timezone, locale string) (string, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		loc = l
	}
	names := englishNames
	if locale != "" {
		tag, err := language.Parse(locale)
		if err != nil {
			return "", fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		names = namesForLocale(tag)
	}

	t = t.In(loc)
	if format == "" {
		return t.Format(isoLayout), nil
	}

	return formatTokens(t, format, names), nil
}

var dateTokens = []string{
	"YYYY", "MMMM", "dddd", "SSS", "MMM", "ddd", "Do", "YY", "MM", "DD", "dd", "HH", "hh", "kk", "mm", "ss", "ZZ",
	"M", "D", "d", "H", "h", "k", "m", "s", "Z", "A", "a", "X", "x", "Q", "z",
}

func formatTokens(t time.Time, format string, names *dateNames) string {
	var b strings.Builder

	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i:], ']')
			if end > 0 {
				b.WriteString(format[i+1 : i+end])
				i += end + 1
				continue
			}
		}

		matched := false
		for _, token := range dateTokens {
			if strings.HasPrefix(format[i:], token) {
				b.WriteString(renderToken(t, token, names))
				i += len(token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}

	return b.String()
}

func renderToken(t time.Time, token string, names *dateNames) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}

	switch token {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return names.months[t.Month()-1]
	case "MMM":
		return names.monthsShort[t.Month()-1]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "Do":
		return names.ordinal(t.Day())
	case "dddd":
		return names.days[t.Weekday()]
	case "ddd":
		return names.daysShort[t.Weekday()]
	case "dd":
		return names.daysMin[t.Weekday()]
	case "d":
		return strconv.Itoa(int(t.Weekday()))
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12)
	case "h":
		return strconv.Itoa(hour12)
	case "kk":
		return fmt.Sprintf("%02d", t.Hour()+1)
	case "k":
		return strconv.Itoa(t.Hour() + 1)
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	case "Z":
		return t.Format("-07:00")
	case "ZZ":
		return t.Format("-0700")
	case "A":
		return t.Format("PM")
	case "a":
		return t.Format("pm")
	case "X":
		return strconv.FormatInt(t.Unix(), 10)
	case "x":
		return strconv.FormatInt(t.UnixMilli(), 10)
	case "Q":
		return strconv.Itoa((int(t.Month())-1)/3 + 1)
	case "z":
		return t.Format("MST")
	}
	return token
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
