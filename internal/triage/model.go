package triage

import "time"

// Status tracks where a ticket is in its triage lifecycle.
type Status string

const (
	// StatusPending means read, not yet sent to a model
	StatusPending Status = "pending"

	// StatusInProgress means the model call is running
	StatusInProgress Status = "in_progress"

	// StatusComplete means the model returned a report
	StatusComplete Status = "complete"

	// StatusFailed means the model call failed or returned nothing, or the
	// triaged copy could not be written
	StatusFailed Status = "failed"
)

// Final reports whether the ticket went through a complete triage attempt.
func (s Status) Final() bool {
	return s == StatusComplete || s == StatusFailed
}

// Result is the outcome of triaging one ticket.
type Result struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Ticket      string    `json:"ticket"`
	Fingerprint string    `json:"fingerprint"`
	Status      Status    `json:"status"`
	Backend     string    `json:"backend"`
	Model       string    `json:"model,omitempty"`
	Report      Report    `json:"report"`
	Error       string    `json:"error,omitempty"`
	OutputPath  string    `json:"output_path,omitempty"`
	Moved       bool      `json:"moved,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Duration    float64   `json:"duration_seconds,omitempty"`
	TokensIn    int       `json:"tokens_in,omitempty"`
	TokensOut   int       `json:"tokens_out,omitempty"`
}

// Written reports whether a triaged copy was produced for the ticket.
func (r *Result) Written() bool {
	return r.OutputPath != ""
}

// Summary describes a finished directory run.
type Summary struct {
	RunID     string    `json:"run_id"`
	Backend   string    `json:"backend"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
	Duration  float64   `json:"duration_seconds"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Results   []*Result `json:"results"`
}
