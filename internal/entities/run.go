package entities

import "time"

// Run outcomes
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Run is one execution of a scraping job
type Run struct {
	ID         string
	Job        string
	Outcome    string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
