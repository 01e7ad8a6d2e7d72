package domain

import (
	"encoding/json"
	"time"
)

// Chat holds the onboarding conversation attached to a project.
type Chat struct {
	ID        string
	ProjectID string
	UserID    string
	Context   json.RawMessage
	CreatedAt time.Time
}
