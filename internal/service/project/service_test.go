package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

type stubUserRepository struct {
	users map[string]domain.User
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error { return nil }

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

type stubProjectRepository struct {
	created          *domain.Project
	createdChat      *domain.Chat
	remainingCredits int
	entryURLs        map[string]string
	overviews        map[string]domain.ProjectOverview
}

func (s *stubProjectRepository) CreateProjectWithChat(ctx context.Context, project *domain.Project, chat *domain.Chat, remainingCredits int) error {
	s.created = project
	s.createdChat = chat
	s.remainingCredits = remainingCredits
	return nil
}

func (s *stubProjectRepository) GetProjectByID(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	return nil, repository.ErrNotFound
}

func (s *stubProjectRepository) GetProjectOverview(ctx context.Context, projectID, userID string) (*domain.ProjectOverview, error) {
	if overview, ok := s.overviews[projectID+"/"+userID]; ok {
		return &overview, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubProjectRepository) GetEntryURLByAppName(ctx context.Context, appName string) (string, error) {
	if url, ok := s.entryURLs[appName]; ok {
		return url, nil
	}
	return "", repository.ErrNotFound
}

func (s *stubProjectRepository) SaveDeploymentResult(ctx context.Context, update domain.ProjectDeploymentUpdate, record *domain.Deployment) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateSpendsOneCredit(t *testing.T) {
	users := &stubUserRepository{users: map[string]domain.User{
		"user-1": {ID: "user-1", ProjectCredits: 5},
	}}
	projects := &stubProjectRepository{}
	svc := New(users, projects, discardLogger(), config.APIConfig{})

	result, err := svc.Create(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if result.ProjectID == "" || result.ChatID == "" {
		t.Fatalf("expected generated ids, got %+v", result)
	}
	if result.ProjectType != "private" {
		t.Fatalf("unexpected project type %q", result.ProjectType)
	}
	if projects.remainingCredits != 4 {
		t.Fatalf("expected 4 remaining credits, got %d", projects.remainingCredits)
	}
	if projects.created == nil || projects.createdChat == nil {
		t.Fatal("expected project and chat rows to be written")
	}
	if projects.created.ChatID != projects.createdChat.ID {
		t.Fatalf("project chat id %q does not match chat id %q", projects.created.ChatID, projects.createdChat.ID)
	}
	if projects.createdChat.ProjectID != projects.created.ID {
		t.Fatalf("chat project id %q does not match project id %q", projects.createdChat.ProjectID, projects.created.ID)
	}
}

func TestCreateRejectsZeroCredits(t *testing.T) {
	users := &stubUserRepository{users: map[string]domain.User{
		"user-1": {ID: "user-1", ProjectCredits: 0},
	}}
	svc := New(users, &stubProjectRepository{}, discardLogger(), config.APIConfig{})

	if _, err := svc.Create(context.Background(), "user-1"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestCreateRequiresOnboarding(t *testing.T) {
	svc := New(&stubUserRepository{}, &stubProjectRepository{}, discardLogger(), config.APIConfig{})

	if _, err := svc.Create(context.Background(), "ghost"); !errors.Is(err, ErrUserNotOnboarded) {
		t.Fatalf("expected ErrUserNotOnboarded, got %v", err)
	}
}

func TestResolveApp(t *testing.T) {
	projects := &stubProjectRepository{entryURLs: map[string]string{
		"demo-app-1a2b": "https://cdn.example.com/index.html",
	}}
	svc := New(&stubUserRepository{}, projects, discardLogger(), config.APIConfig{})

	url, err := svc.ResolveApp(context.Background(), "demo-app-1a2b")
	if err != nil {
		t.Fatalf("ResolveApp returned error: %v", err)
	}
	if url != "https://cdn.example.com/index.html" {
		t.Fatalf("unexpected entry URL %q", url)
	}

	if _, err := svc.ResolveApp(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
