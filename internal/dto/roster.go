package dto

// CreateTeacherRequest registers a new teacher.
type CreateTeacherRequest struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"fullName" validate:"required,max=120"`
	Department string `json:"department" validate:"omitempty,max=100"`
	Phone      string `json:"phone" validate:"omitempty,max=30"`
}

// CreateCourseRequest registers a new course for an existing teacher.
// MaxSessionsWeek overrides the policy-level weekly cap when set.
type CreateCourseRequest struct {
	Code            string `json:"code" validate:"required,max=20"`
	Name            string `json:"name" validate:"required,max=150"`
	TeacherID       string `json:"teacherId" validate:"required"`
	Department      string `json:"department" validate:"omitempty,max=100"`
	Credits         int    `json:"credits" validate:"required,min=1,max=12"`
	MaxSessionsWeek *int   `json:"maxSessionsWeek" validate:"omitempty,min=1,max=20"`
	Room            string `json:"room" validate:"omitempty,max=50"`
}
