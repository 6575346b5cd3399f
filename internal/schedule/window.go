// Package schedule turns a weekly template into concrete session intervals and
// filters them against intervals that are already spoken for.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"coach-service/internal/models"
)

// DefaultHorizonDays is the generation window: eight weeks.
const DefaultHorizonDays = 56

// Interval is a half-open [Start, End) span stored in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Expansion is the result of expanding a template over a horizon.
// Errors holds one entry per template time string that could not be parsed.
type Expansion struct {
	Intervals []Interval
	Errors    []error
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Expand produces candidate sessions for every day in
// [horizonStart, horizonStart+horizonDays) using horizonStart's location for
// wall clock times. Candidates that do not start strictly after now are dropped.
func Expand(tpl models.WeeklyTemplate, durationMinutes int, horizonStart time.Time, horizonDays int, now time.Time) Expansion {
	var exp Expansion

	if durationMinutes <= 0 || horizonDays <= 0 {
		return exp
	}

	loc := horizonStart.Location()
	duration := time.Duration(durationMinutes) * time.Minute
	day0 := StartOfDay(horizonStart, loc)

	// parse each weekday's list once, not once per matching date
	parsed := make(map[string][][2]int, len(tpl))
	for day, times := range tpl {
		for _, s := range times {
			h, m, err := models.ParseClock(s)
			if err != nil {
				exp.Errors = append(exp.Errors, fmt.Errorf("%s: %w", day, err))
				continue
			}
			parsed[day] = append(parsed[day], [2]int{h, m})
		}
	}

	for offset := 0; offset < horizonDays; offset++ {
		date := day0.AddDate(0, 0, offset)
		clocks, ok := parsed[models.WeekdayName(date.Weekday())]
		if !ok {
			continue
		}

		for _, c := range clocks {
			start := time.Date(date.Year(), date.Month(), date.Day(), c[0], c[1], 0, 0, loc).UTC()
			if !start.After(now) {
				continue
			}

			exp.Intervals = append(exp.Intervals, Interval{
				Start: start,
				End:   start.Add(duration),
			})
		}
	}

	sort.SliceStable(exp.Intervals, func(i, j int) bool {
		return exp.Intervals[i].Start.Before(exp.Intervals[j].Start)
	})

	return exp
}
