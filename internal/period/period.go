package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Range is a resolved week span. Resolved is false when the phrase matched no
// known shape; Start and End then both hold January 1st of the fallback year.
// Lang is the language of the phrase it came from ("pt" or "en").
type Range struct {
	Start    time.Time
	End      time.Time
	Resolved bool
	Lang     string
}

func (r Range) StartISO() string { return r.Start.Format(DateLayout) }
func (r Range) EndISO() string   { return r.End.Format(DateLayout) }

// Label is the display period of r in its own language.
func (r Range) Label() string { return FormatIn(r.Start, r.End, r.Lang) }

func Unresolved(fallbackYear int) Range {
	d := time.Date(fallbackYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: d, End: d}
}

const (
	ordinal = `(?:\.?\s*[º°])?`
	sepPT   = `(?:\s*[-–—]\s*|\s+a\s+)`
	sepEN   = `\s*[-–—]\s*`
	wordPT  = `([\p{L}.]+)`
)

type shape struct {
	name  string
	lang  string
	re    *regexp.Regexp
	build func(m []string, fallbackYear int) (Range, bool)
}

// Order matters: cross-month shapes are tried before their same-month subsets.
var shapes = []shape{
	{
		name: "pt-cross",
		lang: "pt",
		re: regexp.MustCompile(`(?i)\b(\d{1,2})` + ordinal + `\s*de\s*` + wordPT + `(?:\s*de\s*(\d{4}))?` + sepPT +
			`(\d{1,2})` + ordinal + `\s*de\s*` + wordPT + `(?:\s*de\s*(\d{4}))?`),
		build: func(m []string, fb int) (Range, bool) {
			return buildCross(m[1], m[2], m[3], m[4], m[5], m[6], fb)
		},
	},
	{
		name: "pt-same",
		lang: "pt",
		re: regexp.MustCompile(`(?i)\b(\d{1,2})` + ordinal + sepPT + `(\d{1,2})` + ordinal +
			`\s*de\s*` + wordPT + `(?:\s*de\s*(\d{4}))?`),
		build: func(m []string, fb int) (Range, bool) {
			return buildSame(m[1], m[2], m[3], m[4], fb)
		},
	},
	{
		name: "en-cross",
		lang: "en",
		re: regexp.MustCompile(`(?i)\b([A-Za-z]+)\.?\s+(\d{1,2})(?:,?\s*(\d{4}))?` + sepEN +
			`([A-Za-z]+)\.?\s+(\d{1,2})(?:,?\s*(\d{4}))?`),
		build: func(m []string, fb int) (Range, bool) {
			return buildCross(m[2], m[1], m[3], m[5], m[4], m[6], fb)
		},
	},
	{
		name: "en-same",
		lang: "en",
		re:   regexp.MustCompile(`(?i)\b([A-Za-z]+)\.?\s+(\d{1,2})` + sepEN + `(\d{1,2})(?:,?\s*(\d{4}))?`),
		build: func(m []string, fb int) (Range, bool) {
			return buildSame(m[2], m[3], m[1], m[4], fb)
		},
	},
}

// Resolve turns a date-range phrase into a concrete span. fallbackYear is used
// when the phrase carries no year.
func Resolve(phrase string, fallbackYear int) Range {
	for _, s := range shapes {
		for _, m := range s.re.FindAllStringSubmatch(phrase, -1) {
			if r, ok := s.build(m, fallbackYear); ok {
				r.Lang = s.lang
				return r
			}
		}
	}
	return Unresolved(fallbackYear)
}

func buildCross(d1, m1, year1, d2, m2, year2 string, fb int) (Range, bool) {
	mon1, ok1 := LookupMonth(m1)
	mon2, ok2 := LookupMonth(m2)
	if !ok1 || !ok2 {
		return Range{}, false
	}
	rolls := mon2 < mon1
	y1, y2 := fb, fb
	switch {
	case year2 != "":
		y2, _ = strconv.Atoi(year2)
		y1 = y2
		if year1 != "" {
			y1, _ = strconv.Atoi(year1)
		} else if rolls {
			y1 = y2 - 1
		}
	case year1 != "":
		y1, _ = strconv.Atoi(year1)
		y2 = y1
		if rolls {
			y2 = y1 + 1
		}
	case rolls:
		y2 = fb + 1
	}
	return build(y1, mon1, d1, y2, mon2, d2)
}

func buildSame(d1, d2, month, year string, fb int) (Range, bool) {
	mon, ok := LookupMonth(month)
	if !ok {
		return Range{}, false
	}
	y := fb
	if year != "" {
		y, _ = strconv.Atoi(year)
	}
	day1, _ := strconv.Atoi(d1)
	day2, _ := strconv.Atoi(d2)
	y1, mon1 := y, mon
	if day2 < day1 {
		// "30-5 de abril" started in the previous month.
		mon1--
		if mon1 < time.January {
			mon1 = time.December
			y1--
		}
	}
	return build(y1, mon1, d1, y, mon, d2)
}

func build(y1 int, m1 time.Month, d1 string, y2 int, m2 time.Month, d2 string) (Range, bool) {
	start, ok := date(y1, m1, d1)
	if !ok {
		return Range{}, false
	}
	end, ok := date(y2, m2, d2)
	if !ok || end.Before(start) {
		return Range{}, false
	}
	return Range{Start: start, End: end, Resolved: true}, true
}

func date(y int, m time.Month, d string) (time.Time, bool) {
	day, err := strconv.Atoi(d)
	if err != nil {
		return time.Time{}, false
	}
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != m {
		return time.Time{}, false
	}
	return t, true
}

// Format synthesizes a Portuguese display label for a span.
func Format(start, end time.Time) string {
	return FormatIn(start, end, "pt")
}

// FormatIn synthesizes the display label of a span in lang; anything but "en"
// gives Portuguese.
func FormatIn(start, end time.Time, lang string) string {
	if lang == "en" {
		m1, m2 := titleMonth(start.Month()), titleMonth(end.Month())
		switch {
		case start.Year() == end.Year() && start.Month() == end.Month():
			return fmt.Sprintf("%s %d-%d, %d", m2, start.Day(), end.Day(), end.Year())
		case start.Year() == end.Year():
			return fmt.Sprintf("%s %d–%s %d, %d", m1, start.Day(), m2, end.Day(), end.Year())
		default:
			return fmt.Sprintf("%s %d, %d–%s %d, %d", m1, start.Day(), start.Year(), m2, end.Day(), end.Year())
		}
	}
	switch {
	case start.Year() == end.Year() && start.Month() == end.Month():
		return fmt.Sprintf("%d-%d de %s de %d", start.Day(), end.Day(), MonthName(end.Month(), "pt"), end.Year())
	case start.Year() == end.Year():
		return fmt.Sprintf("%d de %s–%d de %s de %d", start.Day(), MonthName(start.Month(), "pt"), end.Day(), MonthName(end.Month(), "pt"), end.Year())
	default:
		return fmt.Sprintf("%d de %s de %d–%d de %s de %d", start.Day(), MonthName(start.Month(), "pt"), start.Year(), end.Day(), MonthName(end.Month(), "pt"), end.Year())
	}
}

func titleMonth(m time.Month) string {
	name := MonthName(m, "en")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func ParseISO(value string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MeetingDate returns the first date inside [start, end] falling on weekday.
func MeetingDate(start, end time.Time, weekday time.Weekday) (time.Time, bool) {
	if end.Before(start) {
		return time.Time{}, false
	}
	for d, i := start, 0; !d.After(end) && i < 14; d, i = d.AddDate(0, 0, 1), i+1 {
		if d.Weekday() == weekday {
			return d, true
		}
	}
	return time.Time{}, false
}

// NextWeekday returns the first date on or after from falling on weekday.
func NextWeekday(from time.Time, weekday time.Weekday) time.Time {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	delta := (int(weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, delta)
}

// IssueStart maps any month to the odd month that opens its two-month issue.
func IssueStart(year int, month time.Month) (int, time.Month) {
	if month%2 == 0 {
		month--
	}
	return year, month
}

// WindowKey identifies the two-month issue containing (year, month), e.g. "2026-01".
func WindowKey(year int, month time.Month) string {
	y, m := IssueStart(year, month)
	return fmt.Sprintf("%04d-%02d", y, int(m))
}

func ParseWindowKey(key string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(key))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid window key %q: %w", key, err)
	}
	y, m := IssueStart(t.Year(), t.Month())
	return y, m, nil
}

// IssueMonths returns the two months covered by the issue containing month.
func IssueMonths(month time.Month) (time.Month, time.Month) {
	_, first := IssueStart(0, month)
	return first, first + 1
}
