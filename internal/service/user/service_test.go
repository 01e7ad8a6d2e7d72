package user

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
)

type stubUserRepository struct {
	users   map[string]domain.User
	created *domain.User
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	s.created = user
	return nil
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOnboardSeedsAllowances(t *testing.T) {
	repo := &stubUserRepository{}
	svc := New(repo, discardLogger())

	account, err := svc.Onboard(context.Background(), "user-1", "dev@example.com", json.RawMessage(`{"name":"Dev"}`))
	if err != nil {
		t.Fatalf("Onboard returned error: %v", err)
	}
	if repo.created == nil {
		t.Fatal("user row not created")
	}
	if account.ProjectCredits != defaultProjectCredits {
		t.Fatalf("project credits %d, want %d", account.ProjectCredits, defaultProjectCredits)
	}
	if account.TokenBalance != defaultTokenBalance {
		t.Fatalf("token balance %d, want %d", account.TokenBalance, defaultTokenBalance)
	}
	if account.DeploymentsPerMonth != defaultDeploymentsPerMonth {
		t.Fatalf("deployments per month %d, want %d", account.DeploymentsPerMonth, defaultDeploymentsPerMonth)
	}
	if account.DeploymentLimitResetAt.Day() != 1 {
		t.Fatalf("quota reset should fall on the first of the month, got %v", account.DeploymentLimitResetAt)
	}
	if account.EmailAddress != "dev@example.com" {
		t.Fatalf("email %q", account.EmailAddress)
	}
}

func TestOnboardIsIdempotent(t *testing.T) {
	repo := &stubUserRepository{users: map[string]domain.User{
		"user-1": {ID: "user-1"},
	}}
	svc := New(repo, discardLogger())

	if _, err := svc.Onboard(context.Background(), "user-1", "dev@example.com", nil); !errors.Is(err, ErrAlreadyOnboarded) {
		t.Fatalf("expected ErrAlreadyOnboarded, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("existing user must not be recreated")
	}
}

func TestOnboardDefaultsMetadata(t *testing.T) {
	repo := &stubUserRepository{}
	svc := New(repo, discardLogger())

	account, err := svc.Onboard(context.Background(), "user-1", "dev@example.com", nil)
	if err != nil {
		t.Fatalf("Onboard returned error: %v", err)
	}
	if string(account.Metadata) != "{}" {
		t.Fatalf("metadata not defaulted: %q", account.Metadata)
	}
}
