package models

import "time"

// TeacherLeave is an inclusive leave interval for a teacher. Intervals may
// overlap; any interval covering a date blocks scheduling on that date.
type TeacherLeave struct {
	ID         string    `db:"id" json:"id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	Approved   bool      `db:"approved" json:"approved"`
	ApprovedBy *string   `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
