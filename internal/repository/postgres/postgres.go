package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository       = (*Repository)(nil)
	_ repository.ProjectRepository    = (*Repository)(nil)
	_ repository.ChatRepository       = (*Repository)(nil)
	_ repository.DeploymentRepository = (*Repository)(nil)
)

// CreateUser inserts a user with starting quotas.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email_address, metadata, project_credits, token_balance, deployments_pm, deployment_limit_reset_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	metadata := user.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	_, err := r.pool.Exec(ctx, query, user.ID, user.EmailAddress, metadata, user.ProjectCredits, user.TokenBalance, user.DeploymentsPerMonth, user.DeploymentLimitResetAt, user.CreatedAt)
	return err
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email_address, metadata, project_credits, token_balance, deployments_pm, deployment_limit_reset_at, created_at
		FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.EmailAddress, &u.Metadata, &u.ProjectCredits, &u.TokenBalance, &u.DeploymentsPerMonth, &u.DeploymentLimitResetAt, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateProjectWithChat inserts project and chat rows and updates the owner's
// credit balance as one batch, checking every result for exactly one affected
// row. This mirrors the all-or-nothing expectation the API has of project
// creation.
func (r *Repository) CreateProjectWithChat(ctx context.Context, project *domain.Project, chat *domain.Chat, remainingCredits int) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO projects (project_id, chat_id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		project.ID, chat.ID, project.UserID, project.CreatedAt)
	batch.Queue(`INSERT INTO chats (chat_id, project_id, user_id, created_at) VALUES ($1, $2, $3, $4)`,
		chat.ID, project.ID, chat.UserID, chat.CreatedAt)
	batch.Queue(`UPDATE users SET project_credits = $1 WHERE id = $2`,
		remainingCredits, project.UserID)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("project creation batch statement %d: %w", i, err)
		}
		if tag.RowsAffected() != 1 {
			return repository.ErrPersistence
		}
	}
	return nil
}

// GetProjectByID loads a full project row scoped to its owner.
func (r *Repository) GetProjectByID(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	const query = `SELECT project_id, chat_id, user_id, COALESCE(project_name, ''), COALESCE(project_app_name, ''),
		COALESCE(project_framework, ''), COALESCE(project_description, ''), project_status, project_size,
		COALESCE(asset_manifest, '{}'::jsonb), COALESCE(entry_file_path, ''), created_at, updated_at
		FROM projects WHERE project_id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, projectID, userID)

	var p domain.Project
	var manifest []byte
	if err := row.Scan(&p.ID, &p.ChatID, &p.UserID, &p.Name, &p.AppName, &p.Framework, &p.Description,
		&p.Status, &p.Size, &manifest, &p.EntryFileURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(manifest, &p.Manifest); err != nil {
		return nil, fmt.Errorf("decode asset manifest for project %s: %w", p.ID, err)
	}
	if p.Manifest == nil {
		p.Manifest = make(domain.AssetManifest)
	}
	return &p, nil
}

// GetProjectOverview returns the joined project+chat row used by GET /project.
func (r *Repository) GetProjectOverview(ctx context.Context, projectID, userID string) (*domain.ProjectOverview, error) {
	const query = `SELECT p.project_id, c.chat_id, COALESCE(p.project_name, ''), COALESCE(p.project_framework, ''),
		COALESCE(p.project_description, ''), p.project_status, COALESCE(c.chat_context::text, '[]')
		FROM projects p JOIN chats c ON p.chat_id = c.chat_id
		WHERE p.project_id = $1 AND p.user_id = $2 AND c.user_id = $2`
	row := r.pool.QueryRow(ctx, query, projectID, userID)
	var o domain.ProjectOverview
	if err := row.Scan(&o.ProjectID, &o.ChatID, &o.Name, &o.Framework, &o.Description, &o.Status, &o.ChatContext); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// GetEntryURLByAppName resolves a published app's entry document URL.
func (r *Repository) GetEntryURLByAppName(ctx context.Context, appName string) (string, error) {
	const query = `SELECT COALESCE(entry_file_path, '') FROM projects WHERE project_app_name = $1`
	row := r.pool.QueryRow(ctx, query, appName)
	var url string
	if err := row.Scan(&url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	if url == "" {
		return "", repository.ErrNotFound
	}
	return url, nil
}

// SaveDeploymentResult updates the project row with the deployment outcome,
// inserts the deployment record, and consumes one unit of the owner's monthly
// deployment quota, all in one transaction. A row-count mismatch anywhere is
// reported as ErrPersistence.
func (r *Repository) SaveDeploymentResult(ctx context.Context, update domain.ProjectDeploymentUpdate, record *domain.Deployment) error {
	manifest, err := json.Marshal(update.Manifest)
	if err != nil {
		return fmt.Errorf("encode asset manifest: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const projectQuery = `UPDATE projects SET project_name = $1, project_description = $2, project_framework = $3,
		project_app_name = $4, project_status = $5, project_size = $6, asset_manifest = $7, entry_file_path = $8, updated_at = $9
		WHERE project_id = $10 AND user_id = $11`
	tag, err := tx.Exec(ctx, projectQuery, update.Name, update.Description, update.Framework, update.AppName,
		domain.ProjectStatusDeployed, update.Size, manifest, update.EntryFileURL, time.Now().UTC(), update.ProjectID, update.UserID)
	if err != nil {
		return fmt.Errorf("update project %s: %w", update.ProjectID, err)
	}
	if tag.RowsAffected() != 1 {
		return repository.ErrPersistence
	}

	if err := insertDeployment(ctx, tx, record); err != nil {
		return err
	}

	const quotaQuery = `UPDATE users SET deployments_pm = deployments_pm - 1 WHERE id = $1 AND deployments_pm > 0`
	if _, err := tx.Exec(ctx, quotaQuery, update.UserID); err != nil {
		return fmt.Errorf("consume deployment quota: %w", err)
	}

	return tx.Commit(ctx)
}

// CreateDeployment inserts a standalone deployment record. Used for failed
// attempts, which carry logs but no project mutation.
func (r *Repository) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return insertDeployment(ctx, r.pool, deployment)
}

// execer is satisfied by both pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// insertDeployment writes one deployment row via pool or transaction.
func insertDeployment(ctx context.Context, db execer, deployment *domain.Deployment) error {
	const query = `INSERT INTO deployments (deployment_id, project_id, status, logs, project_size, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := db.Exec(ctx, query, deployment.ID, deployment.ProjectID, deployment.Status, deployment.Logs,
		deployment.Size, deployment.Duration.Milliseconds(), deployment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert deployment %s: %w", deployment.ID, err)
	}
	return nil
}

// ListDeploymentsByProject returns recent deployments, newest first.
func (r *Repository) ListDeploymentsByProject(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT deployment_id, project_id, status, logs, project_size, duration_ms, created_at
		FROM deployments WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deployments := make([]domain.Deployment, 0)
	for rows.Next() {
		var d domain.Deployment
		var durationMS int64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Status, &d.Logs, &d.Size, &durationMS, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Duration = time.Duration(durationMS) * time.Millisecond
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// GetChat loads a chat row with its context blob.
func (r *Repository) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	const query = `SELECT chat_id, project_id, user_id, COALESCE(chat_context, '[]'::jsonb), created_at FROM chats WHERE chat_id = $1`
	row := r.pool.QueryRow(ctx, query, chatID)
	var c domain.Chat
	if err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Context, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateChatContext replaces a chat's stored conversation context.
func (r *Repository) UpdateChatContext(ctx context.Context, chatID string, context []byte) error {
	const query = `UPDATE chats SET chat_context = $1 WHERE chat_id = $2`
	tag, err := r.pool.Exec(ctx, query, context, chatID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return repository.ErrNotFound
	}
	return nil
}
