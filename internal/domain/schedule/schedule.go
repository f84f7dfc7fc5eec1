// Package schedule parses the opening_hours micro-syntax used on map data
// into a weekly timetable that can answer "is it open at t".
//
// Supported: 24/7, weekday lists and ranges (wrapping Sa-Mo included),
// comma-separated time ranges, ranges past midnight, off/closed, rules
// separated by ';' or '||' where later rules override the days they name.
// Holiday selectors (PH, SH) are recognised and ignored. Anything else
// (months, weeks, nth weekdays, sunrise...) is a parse error.
package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goose-osm/goose/internal/domain"
)

const minutesPerDay = 24 * 60

// Interval is an opening range in minutes since midnight. End may exceed a
// day when the range runs past midnight into the next day.
type Interval struct {
	Start int
	End   int
}

// Schedule is a parsed weekly timetable, Monday first.
type Schedule struct {
	raw  string
	days [7][]Interval
}

var dayCodes = [7]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// "Mo-Fr 08:00-12:00, Sa 09:00-12:00" is a frequent spelling of two rules.
var ruleListRe = regexp.MustCompile(`(\d)\s*,\s*(Mo|Tu|We|Th|Fr|Sa|Su|PH|SH)\b`)

// Parse reads an opening_hours value. Errors wrap domain.ErrScheduleParseFailed.
func Parse(raw string) (*Schedule, error) {
	src := strings.TrimSpace(raw)
	if src == "" {
		return nil, parseError(raw, fmt.Errorf("empty value"))
	}
	src = ruleListRe.ReplaceAllString(src, "$1; $2")
	src = strings.ReplaceAll(src, "||", ";")

	s := &Schedule{raw: raw}
	rules := 0
	for _, rule := range strings.Split(src, ";") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if err := s.apply(rule); err != nil {
			return nil, parseError(raw, err)
		}
		rules++
	}
	if rules == 0 {
		return nil, parseError(raw, fmt.Errorf("no rule"))
	}
	return s, nil
}

func parseError(raw string, err error) error {
	return fmt.Errorf("%w: %q: %v", domain.ErrScheduleParseFailed, raw, err)
}

func (s *Schedule) apply(rule string) error {
	if rule == "24/7" {
		for d := range s.days {
			s.days[d] = []Interval{{Start: 0, End: minutesPerDay}}
		}
		return nil
	}

	fields := strings.Fields(rule)
	days := [7]bool{true, true, true, true, true, true, true}
	rest := fields
	if isDaySelector(fields[0]) {
		sel, i := fields[0], 1
		for strings.HasSuffix(sel, ",") && i < len(fields) {
			sel += fields[i]
			i++
		}
		parsed, holidaysOnly, err := parseDays(sel)
		if err != nil {
			return err
		}
		if holidaysOnly {
			return nil
		}
		days, rest = parsed, fields[i:]
	}

	intervals, err := parseTimes(strings.Join(rest, ""))
	if err != nil {
		return err
	}
	for d, on := range days {
		if on {
			s.days[d] = append([]Interval(nil), intervals...)
		}
	}
	return nil
}

func dayIndex(code string) int {
	for i, c := range dayCodes {
		if c == code {
			return i
		}
	}
	return -1
}

func isHoliday(code string) bool { return code == "PH" || code == "SH" }

func isDaySelector(field string) bool {
	if len(field) < 2 {
		return false
	}
	code := field[:2]
	return dayIndex(code) >= 0 || isHoliday(code)
}

// parseDays reads "Mo-Fr,Su". holidaysOnly is true when the selector names
// nothing but holidays.
func parseDays(sel string) (days [7]bool, holidaysOnly bool, err error) {
	holidaysOnly = true
	for _, item := range strings.Split(sel, ",") {
		if isHoliday(item) {
			continue
		}
		from, to, isRange := strings.Cut(item, "-")
		start := dayIndex(from)
		if start < 0 {
			return days, false, fmt.Errorf("unknown day %q", item)
		}
		end := start
		if isRange {
			if end = dayIndex(to); end < 0 {
				return days, false, fmt.Errorf("unknown day %q", item)
			}
		}
		for d := start; ; d = (d + 1) % 7 {
			days[d] = true
			if d == end {
				break
			}
		}
		holidaysOnly = false
	}
	return days, holidaysOnly, nil
}

func parseTimes(spec string) ([]Interval, error) {
	switch strings.ToLower(spec) {
	case "", "open":
		return []Interval{{Start: 0, End: minutesPerDay}}, nil
	case "off", "closed":
		return nil, nil
	}

	var out []Interval
	for _, part := range strings.Split(spec, ",") {
		a, b, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("time range %q has no '-'", part)
		}
		start, err := parseClock(a)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(b)
		if err != nil {
			return nil, err
		}
		if start >= minutesPerDay {
			return nil, fmt.Errorf("time range %q starts after midnight", part)
		}
		if end <= start {
			end += minutesPerDay
		}
		if end > 2*minutesPerDay {
			return nil, fmt.Errorf("time range %q is longer than a day", part)
		}
		out = append(out, Interval{Start: start, End: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func parseClock(v string) (int, error) {
	h, m, ok := strings.Cut(v, ":")
	if !ok {
		return 0, fmt.Errorf("time %q is not HH:MM", v)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || len(h) == 0 || len(h) > 2 || hours < 0 || hours > 48 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return hours*60 + minutes, nil
}

// IsOpenAt reports whether the place is open at t, read in t's own location.
// Callers convert the instant to the place's timezone first.
func (s *Schedule) IsOpenAt(t time.Time) bool {
	d := (int(t.Weekday()) + 6) % 7
	m := t.Hour()*60 + t.Minute()
	for _, iv := range s.days[d] {
		if m >= iv.Start && m < iv.End {
			return true
		}
	}
	prev := (d + 6) % 7
	for _, iv := range s.days[prev] {
		if iv.End > minutesPerDay && m+minutesPerDay < iv.End {
			return true
		}
	}
	return false
}

// Day returns the opening ranges of a weekday.
func (s *Schedule) Day(wd time.Weekday) []Interval {
	return append([]Interval(nil), s.days[(int(wd)+6)%7]...)
}

// WeekSummary renders one line per day, Monday first:
// "Monday: 08:00 - 12:00, 14:00 - 18:00" or "Sunday: closed".
func (s *Schedule) WeekSummary() []string {
	out := make([]string, 0, 7)
	for d, intervals := range s.days {
		if len(intervals) == 0 {
			out = append(out, dayNames[d]+": closed")
			continue
		}
		ranges := make([]string, len(intervals))
		for i, iv := range intervals {
			ranges[i] = formatClock(iv.Start) + " - " + formatClock(iv.End)
		}
		out = append(out, dayNames[d]+": "+strings.Join(ranges, ", "))
	}
	return out
}

// String returns the source value.
func (s *Schedule) String() string { return s.raw }

func formatClock(m int) string {
	if m > minutesPerDay {
		m -= minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
