package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyTemplate_Validate(t *testing.T) {
	tests := []struct {
		name     string
		tpl      WeeklyTemplate
		duration int
		wantErr  string
	}{
		{"empty", WeeklyTemplate{}, 60, ""},
		{"back to back", WeeklyTemplate{"monday": {"09:00", "10:00"}}, 60, ""},
		{"same day overlap", WeeklyTemplate{"monday": {"10:00", "09:30"}}, 60, "monday 09:30 and monday 10:00"},
		{"duplicate start", WeeklyTemplate{"friday": {"15:00", "15:00"}}, 30, "friday 15:00 and friday 15:00"},
		{"past midnight", WeeklyTemplate{"monday": {"23:30"}, "tuesday": {"00:00"}}, 60, "monday 23:30 and tuesday 00:00"},
		{"ends at midnight", WeeklyTemplate{"monday": {"23:00"}, "tuesday": {"00:00"}}, 60, ""},
		{"saturday into sunday", WeeklyTemplate{"saturday": {"23:30"}, "sunday": {"00:15"}}, 60, "saturday 23:30 and sunday 00:15"},
		{"full day sessions", WeeklyTemplate{"sunday": {"00:00"}, "monday": {"00:00"}}, MaxSessionMinutes, ""},
		{"unknown weekday", WeeklyTemplate{"funday": {"09:00"}}, 60, "unknown weekday"},
		{"bad clock", WeeklyTemplate{"monday": {"24:00"}}, 60, "hour out of range"},
		{"zero duration", WeeklyTemplate{"monday": {"09:00"}}, 0, "positive"},
		{"too long", WeeklyTemplate{"monday": {"09:00"}}, MaxSessionMinutes + 1, "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tpl.Validate(tt.duration)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
