package user

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
)

// ErrAlreadyOnboarded indicates the user row already exists.
var ErrAlreadyOnboarded = errors.New("user: user already exists")

// Starting allowances granted to every new account.
const (
	defaultProjectCredits      = 10
	defaultTokenBalance        = 102400
	defaultDeploymentsPerMonth = 30
)

// Service handles account onboarding.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// New returns a user service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	return Service{users: users, logger: logger}
}

// Onboard creates the account row for an authenticated identity, seeding its
// credit and deployment allowances. The monthly deployment quota resets on
// the first of the next month.
func (s Service) Onboard(ctx context.Context, userID, email string, metadata json.RawMessage) (*domain.User, error) {
	existing, err := s.users.GetUserByID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyOnboarded
	}

	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	account := &domain.User{
		ID:                     userID,
		EmailAddress:           email,
		Metadata:               metadata,
		ProjectCredits:         defaultProjectCredits,
		TokenBalance:           defaultTokenBalance,
		DeploymentsPerMonth:    defaultDeploymentsPerMonth,
		DeploymentLimitResetAt: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0),
		CreatedAt:              now,
	}
	if err := s.users.CreateUser(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("user onboarded", "user_id", userID)
	return account, nil
}
