package dto

import "github.com/campus-ops/institute-api/internal/models"

// GenerateWeekRequest asks the allocator to fill one calendar week.
// WeekStart defaults to the Monday of the current week when omitted.
type GenerateWeekRequest struct {
	WeekStart string `json:"weekStart" validate:"omitempty,datetime=2006-01-02"`
}

// GenerateWeekResult summarises a bulk generation run. Skipped counts
// leave conflicts only; candidates rejected by calendar, cap or duplicate
// checks are dropped without incrementing any counter.
type GenerateWeekResult struct {
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`
	Created   int    `json:"created"`
	Skipped   int    `json:"skipped"`
}

// CreateSessionRequest is the manual single-session creation payload.
type CreateSessionRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Title     string `json:"title" validate:"omitempty,max=120"`
	StartTime string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Location  string `json:"location" validate:"omitempty,max=100"`
}

// HourViolation flags a teacher exceeding the daily hour cap on a date.
type HourViolation struct {
	TeacherID string `json:"teacher_id"`
	Date      string `json:"date"`
	Hours     int    `json:"hours"`
}

// WeekHourViolation flags a teacher exceeding the weekly hour cap.
type WeekHourViolation struct {
	TeacherID string `json:"teacher_id"`
	Hours     int    `json:"hours"`
}

// TimetableWeek is the week view with hour-cap violation flags.
type TimetableWeek struct {
	WeekStart      string               `json:"week_start"`
	WeekEnd        string               `json:"week_end"`
	Items          []models.WeekSession `json:"items"`
	DayViolations  []HourViolation      `json:"day_violations"`
	WeekViolations []WeekHourViolation  `json:"week_violations"`
	MaxDayHours    int                  `json:"max_day_hours"`
	MaxWeekHours   int                  `json:"max_week_hours"`
	DefaultHours   int                  `json:"default_hours"`
}
