package domain

import (
	"encoding/json"
	"time"
)

// User mirrors an identity-provider account enriched with platform quotas.
type User struct {
	ID                     string
	EmailAddress           string
	Metadata               json.RawMessage
	ProjectCredits         int
	TokenBalance           int
	DeploymentsPerMonth    int
	DeploymentLimitResetAt time.Time
	CreatedAt              time.Time
}
