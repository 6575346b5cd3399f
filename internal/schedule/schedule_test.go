package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach-service/internal/models"
)

// 2024-01-01 is a Monday.
func monday(h, m int) time.Time {
	return time.Date(2024, time.January, 1, h, m, 0, 0, time.UTC)
}

func TestExpand_SingleCandidate(t *testing.T) {
	tpl := models.WeeklyTemplate{"monday": {"09:00"}}

	exp := Expand(tpl, 60, monday(0, 0), 1, monday(8, 0))

	require.Empty(t, exp.Errors)
	require.Len(t, exp.Intervals, 1)
	assert.Equal(t, monday(9, 0), exp.Intervals[0].Start)
	assert.Equal(t, monday(10, 0), exp.Intervals[0].End)
}

func TestExpand_PastStartExcluded(t *testing.T) {
	tpl := models.WeeklyTemplate{"monday": {"09:00"}}

	exp := Expand(tpl, 60, monday(0, 0), 1, monday(9, 30))
	assert.Empty(t, exp.Intervals)

	// start equal to now is not strictly after it
	exp = Expand(tpl, 60, monday(0, 0), 1, monday(9, 0))
	assert.Empty(t, exp.Intervals)
}

func TestExpand_HorizonAndOrdering(t *testing.T) {
	tpl := models.WeeklyTemplate{
		"monday":    {"14:00", "09:00"},
		"wednesday": {"10:30"},
	}

	exp := Expand(tpl, 45, monday(0, 0), 14, monday(0, 0))

	require.Empty(t, exp.Errors)
	require.Len(t, exp.Intervals, 6)
	for i := 1; i < len(exp.Intervals); i++ {
		assert.True(t, exp.Intervals[i-1].Start.Before(exp.Intervals[i].Start))
	}
	for _, iv := range exp.Intervals {
		assert.Equal(t, 45*time.Minute, iv.End.Sub(iv.Start))
		assert.Equal(t, time.UTC, iv.Start.Location())
	}
	assert.Equal(t, monday(9, 0), exp.Intervals[0].Start)
	assert.Equal(t, time.Date(2024, time.January, 3, 10, 30, 0, 0, time.UTC), exp.Intervals[2].Start)
	assert.Equal(t, time.Date(2024, time.January, 10, 10, 30, 0, 0, time.UTC), exp.Intervals[5].Start)
}

func TestExpand_LocalZoneConvertedToUTC(t *testing.T) {
	loc := time.FixedZone("CST", 8*60*60)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, loc)
	tpl := models.WeeklyTemplate{"monday": {"09:00"}}

	exp := Expand(tpl, 60, start, 1, start.Add(-time.Hour))

	require.Len(t, exp.Intervals, 1)
	assert.Equal(t, monday(1, 0), exp.Intervals[0].Start)
}

func TestExpand_MalformedTimesSkipped(t *testing.T) {
	tpl := models.WeeklyTemplate{"monday": {"9am", "10:00", "25:00"}}

	exp := Expand(tpl, 60, monday(0, 0), 1, monday(0, 0))

	assert.Len(t, exp.Errors, 2)
	require.Len(t, exp.Intervals, 1)
	assert.Equal(t, monday(10, 0), exp.Intervals[0].Start)
}

func TestExpand_InvalidArguments(t *testing.T) {
	tpl := models.WeeklyTemplate{"monday": {"09:00"}}

	assert.Empty(t, Expand(tpl, 0, monday(0, 0), 7, monday(0, 0)).Intervals)
	assert.Empty(t, Expand(tpl, 60, monday(0, 0), 0, monday(0, 0)).Intervals)
	assert.Empty(t, Expand(nil, 60, monday(0, 0), 7, monday(0, 0)).Intervals)
}

func TestFilter_RejectsBookedOverlap(t *testing.T) {
	booked := []Interval{{Start: monday(9, 0), End: monday(10, 0)}}
	candidates := []Interval{
		{Start: monday(9, 0), End: monday(10, 0)},
		{Start: monday(9, 30), End: monday(10, 30)},
		{Start: monday(10, 0), End: monday(11, 0)},
		{Start: monday(8, 0), End: monday(9, 0)},
	}

	accepted, skipped := Filter(candidates, booked)

	assert.Equal(t, 2, skipped)
	assert.Equal(t, []Interval{
		{Start: monday(10, 0), End: monday(11, 0)},
		{Start: monday(8, 0), End: monday(9, 0)},
	}, accepted)
}

func TestFilter_NoAcceptedOverlapsBooked(t *testing.T) {
	tpl := models.WeeklyTemplate{}
	for _, d := range models.Weekdays {
		tpl[d] = []string{"08:00", "09:00", "10:00", "11:00"}
	}
	exp := Expand(tpl, 60, monday(0, 0), 7, monday(0, 0))

	booked := []Interval{
		{Start: monday(9, 15), End: monday(10, 15)},
		{Start: monday(24+11, 0), End: monday(24+12, 0)},
	}

	accepted, skipped := Filter(exp.Intervals, booked)

	assert.Equal(t, len(exp.Intervals), len(accepted)+skipped)
	assert.Equal(t, 3, skipped)
	for _, a := range accepted {
		for _, b := range booked {
			assert.False(t, a.Overlaps(b), "%v overlaps %v", a, b)
		}
	}
}

func TestFilter_EmptyInputs(t *testing.T) {
	accepted, skipped := Filter(nil, nil)
	assert.Empty(t, accepted)
	assert.Zero(t, skipped)
}
