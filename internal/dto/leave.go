package dto

// CreateLeaveRequest registers a leave interval for a teacher. Dates are
// inclusive on both ends.
type CreateLeaveRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"omitempty,max=200"`
}

// ApproveLeaveRequest marks a pending leave approved.
type ApproveLeaveRequest struct {
	Approved bool `json:"approved"`
}
