// Package when parses the time expressions accepted on the command line.
package when

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateRegex     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(\d{1,2}):(\d{2}))?$`)
	relativeRegex = regexp.MustCompile(`^(?:in\s+)?(\d+)\s*(m|min|mins|minute|minutes|h|hour|hours|d|day|days|w|week|weeks)$`)
)

var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse resolves input relative to now. Supported forms:
//   - now, today, tomorrow
//   - dd/mm/yyyy, optionally followed by HH:MM
//   - yyyy-mm-dd, optionally followed by HH:MM[:SS], or RFC 3339
//   - "N minutes|hours|days|weeks", optionally prefixed by "in"
//   - Go durations such as 90m or 1h30m
//
// Dates without a time of day resolve to 23:59:59 local time.
func Parse(input string, now time.Time) (time.Time, error) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	switch in {
	case "now":
		return now, nil
	case "today":
		return endOfDay(now, 0), nil
	case "tomorrow":
		return endOfDay(now, 1), nil
	}

	if t, ok, err := parseDateFormat(in, now.Location()); ok {
		return t, err
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(input), now.Location()); err == nil {
			if layout == "2006-01-02" {
				t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
			}
			return t, nil
		}
	}
	if m := relativeRegex.FindStringSubmatch(in); m != nil {
		return parseRelative(m[1], m[2], now)
	}
	if d, err := time.ParseDuration(strings.TrimPrefix(in, "in ")); err == nil {
		return now.Add(d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time %q. Use: dd/mm/yyyy [HH:MM], yyyy-mm-dd [HH:MM], X minutes/hours/days/weeks, a duration like 90m, or now/today/tomorrow", input)
}

// ParseOffset parses a non-negative lead time such as "15m", "2 hours" or "1 day".
func ParseOffset(input string) (time.Duration, error) {
	in := strings.ToLower(strings.TrimSpace(input))
	if m := relativeRegex.FindStringSubmatch(in); m != nil {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * unit(m[2]), nil
	}
	d, err := time.ParseDuration(in)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: use a duration like 15m or \"2 hours\"", input)
	}
	if d < 0 {
		return 0, fmt.Errorf("offset must not be negative: %s", input)
	}
	return d, nil
}

func parseDateFormat(in string, loc *time.Location) (time.Time, bool, error) {
	m := dateRegex.FindStringSubmatch(in)
	if m == nil {
		return time.Time{}, false, nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	hour, minute, sec := 23, 59, 59
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		sec = 0
		if hour > 23 || minute > 59 {
			return time.Time{}, true, fmt.Errorf("invalid time of day %s:%s", m[4], m[5])
		}
	}
	if month < 1 || month > 12 {
		return time.Time{}, true, fmt.Errorf("month must be between 1 and 12")
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	// time.Date normalises overflow, so a changed day means the date did not exist.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, true, fmt.Errorf("invalid date %s", m[0])
	}
	return t, true, nil
}

func parseRelative(amount, u string, now time.Time) (time.Time, error) {
	n, err := strconv.Atoi(amount)
	if err != nil || n < 1 {
		return time.Time{}, fmt.Errorf("invalid amount %q", amount)
	}
	switch unit(u) {
	case 24 * time.Hour:
		if n > 365 {
			return time.Time{}, fmt.Errorf("days must be between 1 and 365")
		}
		return endOfDay(now, n), nil
	case 7 * 24 * time.Hour:
		if n > 52 {
			return time.Time{}, fmt.Errorf("weeks must be between 1 and 52")
		}
		return endOfDay(now, 7*n), nil
	default:
		return now.Add(time.Duration(n) * unit(u)), nil
	}
}

func unit(u string) time.Duration {
	switch u {
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute
	case "h", "hour", "hours":
		return time.Hour
	case "d", "day", "days":
		return 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

func endOfDay(now time.Time, addDays int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+addDays, 23, 59, 59, 0, now.Location())
}

// ReminderTime resolves when a reminder for a task due at due should fire.
// at is an absolute or relative time, before a lead time subtracted from due;
// with neither, advance is used as the lead time.
func ReminderTime(at, before string, due, now time.Time, advance time.Duration) (time.Time, error) {
	switch {
	case at != "" && before != "":
		return time.Time{}, fmt.Errorf("use either an absolute reminder time or a lead time, not both")
	case at != "":
		return Parse(at, now)
	case before != "":
		d, err := ParseOffset(before)
		if err != nil {
			return time.Time{}, err
		}
		return due.Add(-d), nil
	default:
		return due.Add(-advance), nil
	}
}

// FormatDue renders a due date relative to now for listings.
func FormatDue(due, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	local := due.In(now.Location())
	dueDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, now.Location())
	daysDiff := int(dueDay.Sub(today).Hours() / 24)

	dateStr := local.Format("02/01/2006 15:04")
	switch {
	case due.Before(now):
		return fmt.Sprintf("⚠️ OVERDUE (%s)", dateStr)
	case daysDiff == 0:
		return fmt.Sprintf("🔥 Due today (%s)", local.Format("15:04"))
	case daysDiff == 1:
		return fmt.Sprintf("📅 Due tomorrow (%s)", local.Format("15:04"))
	case daysDiff <= 7:
		return fmt.Sprintf("📅 Due %s (in %d days)", dateStr, daysDiff)
	default:
		return fmt.Sprintf("📅 Due %s", dateStr)
	}
}
