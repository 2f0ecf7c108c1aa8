package dto

// Workload fairness labels.
const (
	WorkloadStatusUnder = "under"
	WorkloadStatusFair  = "fair"
	WorkloadStatusOver  = "over"
)

// WorkloadEntry is one teacher's summed load for a week.
type WorkloadEntry struct {
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	Hours       int    `json:"hours"`
	Sessions    int    `json:"sessions"`
	Status      string `json:"status"`
}

// WorkloadReport is the weekly fairness report. Entries are sorted with
// under-target teachers first, then by descending hours.
type WorkloadReport struct {
	WeekStart string          `json:"week_start"`
	WeekEnd   string          `json:"week_end"`
	Target    int             `json:"target"`
	Tolerance int             `json:"tolerance"`
	Items     []WorkloadEntry `json:"items"`
}
