package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekdays lists the template keys in time.Weekday order (Sunday = 0).
var Weekdays = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func WeekdayName(d time.Weekday) string {
	return Weekdays[d]
}

func ParseWeekday(name string) (time.Weekday, bool) {
	for i, n := range Weekdays {
		if n == name {
			return time.Weekday(i), true
		}
	}

	return 0, false
}

// MaxSessionMinutes caps a session at one day.
const MaxSessionMinutes = 24 * 60

// WeeklyTemplate maps a lowercase weekday name to "HH:MM" local start times.
type WeeklyTemplate map[string][]string

// ParseClock parses a "HH:MM" wall clock string into hour and minute.
func ParseClock(s string) (int, int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("time %q is not in HH:MM format", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, 0, fmt.Errorf("time %q has a non-numeric hour", s)
	}

	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, 0, fmt.Errorf("time %q has non-numeric minutes", s)
	}

	if h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("time %q: hour out of range", s)
	}
	if m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("time %q: minute out of range", s)
	}

	return h, m, nil
}

const minutesPerWeek = 7 * 24 * 60

// Validate checks weekday keys and start times, and rejects templates whose
// sessions of the given length would overlap. Starts are compared on one weekly
// timeline, so a late session running past midnight clashes with an early start
// on the next day, Saturday into Sunday included.
func (t WeeklyTemplate) Validate(durationMinutes int) error {
	if durationMinutes <= 0 {
		return fmt.Errorf("sessionDurationMinutes must be a positive number")
	}
	if durationMinutes > MaxSessionMinutes {
		return fmt.Errorf("sessionDurationMinutes must be at most %d", MaxSessionMinutes)
	}

	var starts []int
	for day, times := range t {
		wd, ok := ParseWeekday(day)
		if !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}

		for _, s := range times {
			h, m, err := ParseClock(s)
			if err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
			starts = append(starts, int(wd)*24*60+h*60+m)
		}
	}

	if len(starts) < 2 {
		return nil
	}

	sort.Ints(starts)
	for i := 1; i < len(starts); i++ {
		if starts[i]-starts[i-1] < durationMinutes {
			return overlapError(starts[i-1], starts[i])
		}
	}

	last, first := starts[len(starts)-1], starts[0]
	if first+minutesPerWeek-last < durationMinutes {
		return overlapError(last, first)
	}

	return nil
}

func overlapError(a, b int) error {
	return fmt.Errorf("sessions starting %s and %s overlap", weekClock(a), weekClock(b))
}

// weekClock renders a minute of the week as "monday 09:00".
func weekClock(minute int) string {
	day, rest := minute/(24*60), minute%(24*60)
	return fmt.Sprintf("%s %02d:%02d", Weekdays[day], rest/60, rest%60)
}

func (t WeeklyTemplate) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}

	// string, not []byte: lib/pq sends []byte parameters as bytea
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func (t *WeeklyTemplate) Scan(src any) error {
	var b []byte

	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("models.WeeklyTemplate.Scan: unsupported type %T", src)
	}

	return json.Unmarshal(b, t)
}
