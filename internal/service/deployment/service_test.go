package deployment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
	"github.com/Mayuresh-22/NimbusWave/internal/service/logs"
	"github.com/Mayuresh-22/NimbusWave/internal/service/rewrite"
	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

type stubUserRepo struct {
	users map[string]domain.User
}

func (s *stubUserRepo) CreateUser(ctx context.Context, user *domain.User) error { return nil }

func (s *stubUserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

type stubProjectRepo struct {
	projects map[string]domain.Project
	saved    *domain.ProjectDeploymentUpdate
	savedRec *domain.Deployment
}

func (s *stubProjectRepo) CreateProjectWithChat(ctx context.Context, project *domain.Project, chat *domain.Chat, remainingCredits int) error {
	return nil
}

func (s *stubProjectRepo) GetProjectByID(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	if project, ok := s.projects[projectID]; ok && project.UserID == userID {
		return &project, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubProjectRepo) GetProjectOverview(ctx context.Context, projectID, userID string) (*domain.ProjectOverview, error) {
	return nil, repository.ErrNotFound
}

func (s *stubProjectRepo) GetEntryURLByAppName(ctx context.Context, appName string) (string, error) {
	return "", repository.ErrNotFound
}

func (s *stubProjectRepo) SaveDeploymentResult(ctx context.Context, update domain.ProjectDeploymentUpdate, record *domain.Deployment) error {
	s.saved = &update
	s.savedRec = record
	return nil
}

type stubDeploymentRepo struct {
	created []domain.Deployment
}

func (s *stubDeploymentRepo) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	s.created = append(s.created, *deployment)
	return nil
}

func (s *stubDeploymentRepo) ListDeploymentsByProject(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error) {
	return append([]domain.Deployment(nil), s.created...), nil
}

func newTestService(users *stubUserRepo, projects *stubProjectRepo, deployments *stubDeploymentRepo, uploader Uploader) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(users, projects, deployments, uploader, rewrite.DefaultRegistry(), nil, logs.Service{}, log, config.APIConfig{
		AppBaseURL:           "https://nimbuswave.dev",
		MaxUploadConcurrency: 2,
		MaxArchiveBytes:      1 << 20,
	})
}

func activeUser() domain.User {
	return domain.User{
		ID:                     "user-1",
		DeploymentsPerMonth:    5,
		DeploymentLimitResetAt: time.Now().UTC().AddDate(0, 1, 0),
	}
}

func validInput(t *testing.T) Input {
	raw := buildZip(t, map[string]string{
		"dist/index.html": `<html><link href="/style.css"></html>`,
		"dist/style.css":  "body{}",
	})
	return Input{
		UserID:    "user-1",
		ProjectID: "proj-1",
		Meta:      Meta{Name: "Demo", Description: "demo site", Framework: rewrite.FrameworkViteReact},
		Archive:   raw, ContentType: "application/zip",
	}
}

func TestDeploySuccessPersistsResult(t *testing.T) {
	users := &stubUserRepo{users: map[string]domain.User{"user-1": activeUser()}}
	projects := &stubProjectRepo{projects: map[string]domain.Project{
		"proj-1": {ID: "proj-1", UserID: "user-1"},
	}}
	deployments := &stubDeploymentRepo{}
	svc := newTestService(users, projects, deployments, &stubUploader{})

	input := validInput(t)
	result, err := svc.Deploy(context.Background(), input)
	if err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}

	if projects.saved == nil || projects.savedRec == nil {
		t.Fatal("deployment result not persisted")
	}
	if projects.saved.AppName == "" || !strings.Contains(projects.saved.AppName, "-app-") {
		t.Fatalf("app name not assigned: %q", projects.saved.AppName)
	}
	if projects.savedRec.Status != domain.DeploymentStatusSuccess {
		t.Fatalf("record status %q", projects.savedRec.Status)
	}
	if result.ProjectURL != "https://nimbuswave.dev/app/"+projects.saved.AppName {
		t.Fatalf("unexpected project URL %q", result.ProjectURL)
	}
	if result.ProjectSize != int64(len(input.Archive)) {
		t.Fatalf("project size %d, want %d", result.ProjectSize, len(input.Archive))
	}
	if result.DeploymentURL == "" || result.Logs == "" {
		t.Fatalf("incomplete result: %+v", result)
	}
}

func TestDeployKeepsExistingAppName(t *testing.T) {
	users := &stubUserRepo{users: map[string]domain.User{"user-1": activeUser()}}
	projects := &stubProjectRepo{projects: map[string]domain.Project{
		"proj-1": {ID: "proj-1", UserID: "user-1", AppName: "demo-app-1a2b"},
	}}
	svc := newTestService(users, projects, &stubDeploymentRepo{}, &stubUploader{})

	result, err := svc.Deploy(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}
	if projects.saved.AppName != "demo-app-1a2b" {
		t.Fatalf("app name changed on redeploy: %q", projects.saved.AppName)
	}
	if result.ProjectURL != "https://nimbuswave.dev/app/demo-app-1a2b" {
		t.Fatalf("unexpected project URL %q", result.ProjectURL)
	}
}

func TestDeployEnforcesMonthlyQuota(t *testing.T) {
	user := activeUser()
	user.DeploymentsPerMonth = 0
	users := &stubUserRepo{users: map[string]domain.User{"user-1": user}}
	svc := newTestService(users, &stubProjectRepo{}, &stubDeploymentRepo{}, &stubUploader{})

	if _, err := svc.Deploy(context.Background(), validInput(t)); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestDeployAllowsAfterQuotaReset(t *testing.T) {
	user := activeUser()
	user.DeploymentsPerMonth = 0
	user.DeploymentLimitResetAt = time.Now().UTC().Add(-time.Hour)
	users := &stubUserRepo{users: map[string]domain.User{"user-1": user}}
	projects := &stubProjectRepo{projects: map[string]domain.Project{
		"proj-1": {ID: "proj-1", UserID: "user-1"},
	}}
	svc := newTestService(users, projects, &stubDeploymentRepo{}, &stubUploader{})

	if _, err := svc.Deploy(context.Background(), validInput(t)); err != nil {
		t.Fatalf("Deploy after reset returned error: %v", err)
	}
}

func TestDeployRejectsUnknownProject(t *testing.T) {
	users := &stubUserRepo{users: map[string]domain.User{"user-1": activeUser()}}
	svc := newTestService(users, &stubProjectRepo{}, &stubDeploymentRepo{}, &stubUploader{})

	if _, err := svc.Deploy(context.Background(), validInput(t)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeployRejectsUnknownFramework(t *testing.T) {
	users := &stubUserRepo{users: map[string]domain.User{"user-1": activeUser()}}
	projects := &stubProjectRepo{projects: map[string]domain.Project{
		"proj-1": {ID: "proj-1", UserID: "user-1"},
	}}
	svc := newTestService(users, projects, &stubDeploymentRepo{}, &stubUploader{})

	input := validInput(t)
	input.Meta.Framework = "nextjs"
	if _, err := svc.Deploy(context.Background(), input); !errors.Is(err, ErrUnknownFramework) {
		t.Fatalf("expected ErrUnknownFramework, got %v", err)
	}
}

func TestDeployRecordsFailedDeployment(t *testing.T) {
	users := &stubUserRepo{users: map[string]domain.User{"user-1": activeUser()}}
	projects := &stubProjectRepo{projects: map[string]domain.Project{
		"proj-1": {ID: "proj-1", UserID: "user-1"},
	}}
	deployments := &stubDeploymentRepo{}
	svc := newTestService(users, projects, deployments, &stubUploader{})

	input := validInput(t)
	input.Archive = buildZip(t, map[string]string{"dist/app.js": "console.log(1)"})

	_, err := svc.Deploy(context.Background(), input)
	if !errors.Is(err, ErrMissingEntryDocument) {
		t.Fatalf("expected ErrMissingEntryDocument, got %v", err)
	}
	var pipelineErr *PipelineError
	if !errors.As(err, &pipelineErr) {
		t.Fatalf("expected *PipelineError, got %T", err)
	}
	if len(deployments.created) != 1 {
		t.Fatalf("expected 1 failure record, got %d", len(deployments.created))
	}
	record := deployments.created[0]
	if record.Status != domain.DeploymentStatusFailed {
		t.Fatalf("record status %q", record.Status)
	}
	if record.Logs == "" {
		t.Fatal("failure record has no log text")
	}
	if projects.saved != nil {
		t.Fatal("project row must not be updated on failure")
	}
}

func TestAcquireLeaseInProcessFallback(t *testing.T) {
	svc := newTestService(&stubUserRepo{}, &stubProjectRepo{}, &stubDeploymentRepo{}, &stubUploader{})

	release, err := svc.acquireLease(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := svc.acquireLease(context.Background(), "proj-1"); !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress while held, got %v", err)
	}
	if _, err := svc.acquireLease(context.Background(), "proj-2"); err != nil {
		t.Fatalf("different project must not block: %v", err)
	}
	release()
	release2, err := svc.acquireLease(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}
