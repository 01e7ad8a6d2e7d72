package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

var (
	// ErrInsufficientCredits indicates the user has no project credits left.
	ErrInsufficientCredits = errors.New("project: insufficient project credits")

	// ErrUserNotOnboarded indicates the user row does not exist yet.
	ErrUserNotOnboarded = errors.New("project: user not found, complete onboarding first")

	errMissingProjectID = errors.New("project: project id required")
	errMissingAppName   = errors.New("project: app name required")
)

// Service orchestrates project lifecycle: creation with its paired chat,
// detail lookup, and app-name resolution for serving.
type Service struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New returns a project service.
func New(users repository.UserRepository, projects repository.ProjectRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, projects: projects, logger: logger, cfg: cfg}
}

// CreateResult is returned after a project and its chat are registered.
type CreateResult struct {
	ProjectID   string `json:"project_id"`
	ChatID      string `json:"chat_id"`
	ProjectType string `json:"project_type"`
}

// Create registers a new project and its chat in one atomic write, spending
// one project credit.
func (s Service) Create(ctx context.Context, userID string) (*CreateResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotOnboarded
		}
		return nil, err
	}
	if user.ProjectCredits < 1 {
		return nil, ErrInsufficientCredits
	}

	now := time.Now().UTC()
	proj := &domain.Project{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.ProjectStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	chat := &domain.Chat{
		ID:        uuid.NewString(),
		ProjectID: proj.ID,
		UserID:    userID,
		CreatedAt: now,
	}
	proj.ChatID = chat.ID

	if err := s.projects.CreateProjectWithChat(ctx, proj, chat, user.ProjectCredits-1); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", proj.ID, "chat_id", chat.ID, "user_id", userID)

	return &CreateResult{ProjectID: proj.ID, ChatID: chat.ID, ProjectType: "private"}, nil
}

// Get returns the joined project overview for the owning user.
func (s Service) Get(ctx context.Context, projectID, userID string) (*domain.ProjectOverview, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errMissingProjectID
	}
	return s.projects.GetProjectOverview(ctx, projectID, userID)
}

// ResolveApp maps a public app name to the deployed entry document URL.
func (s Service) ResolveApp(ctx context.Context, appName string) (string, error) {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return "", errMissingAppName
	}
	return s.projects.GetEntryURLByAppName(ctx, appName)
}
