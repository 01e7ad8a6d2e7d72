package domain

import "time"

// Deployment statuses.
const (
	DeploymentStatusSuccess = "success"
	DeploymentStatusFailed  = "failed"
)

// Deployment is the immutable record of one publish attempt.
type Deployment struct {
	ID        string
	ProjectID string
	Status    string
	Logs      string
	Size      int64
	Duration  time.Duration
	CreatedAt time.Time
}
