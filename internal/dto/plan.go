package dto

// Plan status labels for the required-vs-actual comparison.
const (
	PlanStatusBehind  = "behind"
	PlanStatusOnTrack = "on_track"
	PlanStatusAhead   = "ahead"
)

// PlanSummary compares a course's required session load against what is
// actually scheduled.
type PlanSummary struct {
	CourseID         string `json:"course_id"`
	Credits          int    `json:"credits"`
	HoursPerCredit   int    `json:"hours_per_credit"`
	DefaultHours     int    `json:"default_hours"`
	RequiredHours    int    `json:"required_hours"`
	RequiredSessions int    `json:"required_sessions"`
	ActualHours      int    `json:"actual_hours"`
	ActualSessions   int    `json:"actual_sessions"`
	Remaining        int    `json:"remaining"`
	Status           string `json:"status"`
}

// PlanPlacement is one proposed forward-fill date.
type PlanPlacement struct {
	Date  string `json:"date"`
	Title string `json:"title"`
}

// PlanSuggestion lists proposed dates without committing them. A shorter
// list than Remaining means the safety horizon was exhausted; that is a
// valid partial result.
type PlanSuggestion struct {
	Summary    PlanSummary     `json:"summary"`
	Placements []PlanPlacement `json:"placements"`
}

// ApplyPlanResult reports committed forward-fill placements.
type ApplyPlanResult struct {
	Created   int `json:"created"`
	Remaining int `json:"remaining"`
}
