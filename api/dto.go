package api

import (
	"encoding/json"
	"time"
)

type CoachConfigRequest struct {
	WeeklyTemplate         map[string][]string `json:"weeklyTemplate" validate:"required"`
	SessionDurationMinutes int                 `json:"sessionDurationMinutes" validate:"required,gt=0,lte=1440"`
}

type CoachConfig struct {
	CoachID                string              `json:"coachId"`
	WeeklyTemplate         map[string][]string `json:"weeklyTemplate"`
	SessionDurationMinutes int                 `json:"sessionDurationMinutes"`
	UpdatedAt              *time.Time          `json:"updatedAt,omitempty"`
}

type RegenerationResult struct {
	RunID        string   `json:"runId"`
	Generated    int64    `json:"generated"`
	Skipped      int      `json:"skipped"`
	Deleted      int64    `json:"deleted"`
	InvalidTimes []string `json:"invalidTimes,omitempty"`
}

type CoachConfigUpdateResponse struct {
	Config       CoachConfig        `json:"config"`
	Regeneration RegenerationResult `json:"regeneration"`
}

type Slot struct {
	SlotID    int64     `json:"slotId"`
	CoachID   string    `json:"coachId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status"`
	BookingID *int64    `json:"bookingId,omitempty"`
	UserID    *string   `json:"userId,omitempty"`
}

// BookingRequest accepts slotId as a JSON number or a numeric string.
type BookingRequest struct {
	SlotID json.Number `json:"slotId"`
}

type Booking struct {
	BookingID int64     `json:"bookingId"`
	UserID    string    `json:"userId"`
	CoachID   string    `json:"coachId"`
	SlotID    *int64    `json:"slotId,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type CancelResult struct {
	Booking          Booking `json:"booking"`
	AlreadyCancelled bool    `json:"alreadyCancelled"`
}
