package models

const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

const (
	MaxTaskNameLen    = 50
	MaxDescriptionLen = 1000
	MaxNotesLen       = 1000
	MaxUsernameLen    = 10
)

// Task is a node in a user's task forest.
// ParentID is zero for root tasks (projects).
type Task struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ParentID    int64  `json:"parent_id"`
	UserID      int64  `json:"user_id"`
	IsDone      bool   `json:"is_done"`
	IsExpanded  bool   `json:"is_expanded"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	AssignedTo  string `json:"assigned_to"`
	Links       string `json:"links"`
	Notes       string `json:"notes"`
	Priority    string `json:"priority"`
}