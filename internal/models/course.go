package models

import "time"

// Course represents a taught course owned by exactly one teacher.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Code            string    `db:"code" json:"code"`
	Name            string    `db:"name" json:"name"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	Department      *string   `db:"department" json:"department,omitempty"`
	Credits         int       `db:"credits" json:"credits"`
	MaxSessionsWeek *int      `db:"max_sessions_week" json:"max_sessions_week,omitempty"`
	Room            *string   `db:"room" json:"room,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	Search    string
	TeacherID string
	Page      int
	PageSize  int
}
