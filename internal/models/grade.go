package models

import "time"

// Grade represents a student's recorded score for a course.
type Grade struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Component string    `db:"component" json:"component"`
	Score     float64   `db:"score" json:"score"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GradeSummary aggregates grade statistics for a course.
type GradeSummary struct {
	CourseID     string  `db:"course_id" json:"course_id"`
	GradedCount  int     `db:"graded_count" json:"graded_count"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	MinScore     float64 `db:"min_score" json:"min_score"`
	MaxScore     float64 `db:"max_score" json:"max_score"`
}
