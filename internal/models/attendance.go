package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance represents one student's attendance for a course session.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Remarks   *string          `db:"remarks" json:"remarks,omitempty"`
	MarkedAt  time.Time        `db:"marked_at" json:"marked_at"`
	MarkedBy  *string          `db:"marked_by" json:"marked_by,omitempty"`
}

// AttendanceSummary aggregates attendance counts for a course.
type AttendanceSummary struct {
	CourseID string `db:"course_id" json:"course_id"`
	Total    int    `db:"total" json:"total"`
	Present  int    `db:"present" json:"present"`
	Absent   int    `db:"absent" json:"absent"`
	Late     int    `db:"late" json:"late"`
	Excused  int    `db:"excused" json:"excused"`
}
