package persistence

import "time"

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one documenter invocation over an architecture model.
type Run struct {
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ID             string     `json:"id"`
	ArchitectureID string     `json:"architecture_id"`
	Status         string     `json:"status"`
}

// Refinement records the outcome of one diagram pass through the refinement loop.
type Refinement struct {
	CreatedAt      time.Time `json:"created_at"`
	ID             string    `json:"id"`
	RunID          string    `json:"run_id,omitempty"`
	ArchitectureID string    `json:"architecture_id"`
	DiagramType    string    `json:"diagram_type"`
	View           string    `json:"view,omitempty"`
	FinalState     string    `json:"final_state"`
	Feedback       string    `json:"feedback,omitempty"`
	Rules          []string  `json:"rules"`
	RulesAdded     []string  `json:"rules_added"`
	FeedbackTokens int       `json:"feedback_tokens"`
	Refined        bool      `json:"refined"`
	Partial        bool      `json:"partial"`
	ImageAvailable bool      `json:"image_available"`
}

// ListFilter narrows ListRefinements results. Zero values match everything.
type ListFilter struct {
	RunID       string
	DiagramType string
	Limit       int
}
