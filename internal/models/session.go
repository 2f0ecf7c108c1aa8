package models

import "time"

// TitleLecture is the default label for ordinary generated sessions.
const TitleLecture = "Lecture"

// CourseSession is a single scheduled occurrence of a course on a calendar
// date. The (course_id, session_date) pair is unique; the scheduler relies on
// that constraint before any other check.
type CourseSession struct {
	ID          string     `db:"id" json:"id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	SessionDate time.Time  `db:"session_date" json:"session_date"`
	Title       string     `db:"title" json:"title"`
	StartTime   *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime     *time.Time `db:"end_time" json:"end_time,omitempty"`
	Location    *string    `db:"location" json:"location,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	CourseID  string
	TeacherID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// WeekSession joins a session with its course and owning teacher for the
// timetable week view.
type WeekSession struct {
	CourseSession
	CourseName  string `db:"course_name" json:"course_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}
