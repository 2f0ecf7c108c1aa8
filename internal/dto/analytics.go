package dto

// AttendanceStats aggregates attendance for a course.
type AttendanceStats struct {
	Total       int     `json:"total"`
	Present     int     `json:"present"`
	Absent      int     `json:"absent"`
	Late        int     `json:"late"`
	Excused     int     `json:"excused"`
	PresentRate float64 `json:"present_rate"`
}

// GradeStats aggregates recorded scores for a course.
type GradeStats struct {
	GradedCount  int     `json:"graded_count"`
	AverageScore float64 `json:"average_score"`
	MinScore     float64 `json:"min_score"`
	MaxScore     float64 `json:"max_score"`
}

// CourseAnalytics bundles the reporting aggregates for one course.
type CourseAnalytics struct {
	CourseID   string          `json:"course_id"`
	Attendance AttendanceStats `json:"attendance"`
	Grades     GradeStats      `json:"grades"`
}
