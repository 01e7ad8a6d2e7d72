package domain

import "time"

// Project status values. A project starts undeployed and flips to deployed
// on its first successful deployment.
const (
	ProjectStatusNew      = 0
	ProjectStatusDeployed = 1
)

// Project describes a deployable static application.
type Project struct {
	ID           string
	ChatID       string
	UserID       string
	Name         string
	AppName      string
	Framework    string
	Description  string
	Status       int
	Size         int64
	Manifest     AssetManifest
	EntryFileURL string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProjectOverview is the joined project+chat row returned by GET /project.
type ProjectOverview struct {
	ProjectID   string `json:"project_id"`
	ChatID      string `json:"chat_id"`
	Name        string `json:"project_name"`
	Framework   string `json:"project_framework"`
	Description string `json:"project_description"`
	Status      int    `json:"project_status"`
	ChatContext string `json:"chat_context"`
}

// ProjectDeploymentUpdate carries the project mutations produced by one
// successful deployment.
type ProjectDeploymentUpdate struct {
	ProjectID    string
	UserID       string
	Name         string
	Description  string
	Framework    string
	AppName      string
	Size         int64
	Manifest     AssetManifest
	EntryFileURL string
}
