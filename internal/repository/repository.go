package repository

import (
	"context"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
)

// UserRepository persists platform users and their quotas.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ProjectRepository persists projects, their chats, and deployment results.
type ProjectRepository interface {
	// CreateProjectWithChat inserts the project and chat rows and writes the
	// caller's remaining project credits as one batch. Partial success is
	// reported as ErrPersistence.
	CreateProjectWithChat(ctx context.Context, project *domain.Project, chat *domain.Chat, remainingCredits int) error
	GetProjectByID(ctx context.Context, projectID, userID string) (*domain.Project, error)
	GetProjectOverview(ctx context.Context, projectID, userID string) (*domain.ProjectOverview, error)
	GetEntryURLByAppName(ctx context.Context, appName string) (string, error)
	// SaveDeploymentResult applies the project mutations of a successful
	// deployment and inserts its deployment record in one transaction.
	SaveDeploymentResult(ctx context.Context, update domain.ProjectDeploymentUpdate, record *domain.Deployment) error
}

// ChatRepository stores onboarding chat context.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	UpdateChatContext(ctx context.Context, chatID string, context []byte) error
}

// DeploymentRepository stores deployment history.
type DeploymentRepository interface {
	CreateDeployment(ctx context.Context, deployment *domain.Deployment) error
	ListDeploymentsByProject(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error)
}
