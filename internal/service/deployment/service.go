package deployment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/bsm/redislock"
	"github.com/google/uuid"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
	"github.com/Mayuresh-22/NimbusWave/internal/service/logs"
	"github.com/Mayuresh-22/NimbusWave/internal/service/rewrite"
	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

// Service runs the deployment pipeline for a project and persists the
// outcome. It holds a per-project lease for the duration of a run so two
// deployments of the same project never interleave manifest writes.
type Service struct {
	users       repository.UserRepository
	projects    repository.ProjectRepository
	deployments repository.DeploymentRepository
	uploader    Uploader
	frameworks  rewrite.Registry
	locker      *redislock.Client
	logStream   logs.Service
	logger      *slog.Logger
	cfg         config.APIConfig

	// inflight is the lease fallback when redis is not configured. It only
	// guards a single process.
	inflight sync.Map
}

// New returns a deployment service. locker may be nil.
func New(users repository.UserRepository, projects repository.ProjectRepository, deployments repository.DeploymentRepository, uploader Uploader, frameworks rewrite.Registry, locker *redislock.Client, logStream logs.Service, logger *slog.Logger, cfg config.APIConfig) *Service {
	return &Service{
		users:       users,
		projects:    projects,
		deployments: deployments,
		uploader:    uploader,
		frameworks:  frameworks,
		locker:      locker,
		logStream:   logStream,
		logger:      logger,
		cfg:         cfg,
	}
}

// Input is one deployment request.
type Input struct {
	UserID      string
	ProjectID   string
	Meta        Meta
	Archive     []byte
	ContentType string
}

// Result is the deployment summary returned to the caller.
type Result struct {
	DeploymentID  string `json:"deployment_id"`
	DeploymentURL string `json:"deployment_url"`
	ProjectURL    string `json:"project_url"`
	ProjectSize   int64  `json:"project_size"`
	TimeTaken     string `json:"time_taken"`
	Logs          string `json:"deployment_logs"`
}

// Deploy runs the full pipeline: lease, unzip, process files, process the
// entry document, finalize, persist. Stage errors surface as *PipelineError
// carrying the accumulated log; partial uploads are not rolled back.
func (s *Service) Deploy(ctx context.Context, input Input) (*Result, error) {
	user, err := s.users.GetUserByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if user.DeploymentsPerMonth < 1 && time.Now().UTC().Before(user.DeploymentLimitResetAt) {
		return nil, ErrQuotaExhausted
	}

	project, err := s.projects.GetProjectByID(ctx, input.ProjectID, input.UserID)
	if err != nil {
		return nil, err
	}

	strategy, ok := s.frameworks.Lookup(input.Meta.Framework)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFramework, input.Meta.Framework)
	}

	release, err := s.acquireLease(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	defer release()

	pipeline := NewPipeline(input.ProjectID, input.Archive, input.ContentType, input.Meta, project.Manifest, strategy, s.uploader, s.cfg.MaxUploadConcurrency, func(line string) {
		s.logStream.Broadcast(input.ProjectID, line)
	})

	if err := s.runStages(ctx, pipeline); err != nil {
		s.recordFailure(ctx, input.ProjectID, pipeline, err)
		return nil, err
	}

	summary, err := pipeline.Finalize()
	if err != nil {
		s.recordFailure(ctx, input.ProjectID, pipeline, err)
		return nil, err
	}

	// app name is assigned exactly once per project and stays stable across
	// redeployments
	appName := project.AppName
	if appName == "" {
		appName = summary.DeploymentName
	}

	update := domain.ProjectDeploymentUpdate{
		ProjectID:    project.ID,
		UserID:       input.UserID,
		Name:         input.Meta.Name,
		Description:  input.Meta.Description,
		Framework:    input.Meta.Framework,
		AppName:      appName,
		Size:         summary.Size,
		Manifest:     summary.Manifest,
		EntryFileURL: summary.EntryURL,
	}
	record := &domain.Deployment{
		ID:        summary.DeploymentID,
		ProjectID: project.ID,
		Status:    domain.DeploymentStatusSuccess,
		Logs:      summary.Logs,
		Size:      summary.Size,
		Duration:  summary.Duration,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.projects.SaveDeploymentResult(ctx, update, record); err != nil {
		s.logger.Error("failed to persist deployment result", "project_id", project.ID, "deployment_id", record.ID, "error", err)
		getMetrics().observe(domain.DeploymentStatusFailed, summary.UploadsIssued, summary.DedupHits)
		return nil, err
	}

	getMetrics().observe(domain.DeploymentStatusSuccess, summary.UploadsIssued, summary.DedupHits)
	s.logger.Info("deployment succeeded", "project_id", project.ID, "deployment_id", summary.DeploymentID,
		"app_name", appName, "uploads", summary.UploadsIssued, "dedup_hits", summary.DedupHits, "size", summary.Size)

	return &Result{
		DeploymentID:  summary.DeploymentID,
		DeploymentURL: summary.EntryURL,
		ProjectURL:    s.cfg.AppBaseURL + "/app/" + appName,
		ProjectSize:   summary.Size,
		TimeTaken:     summary.Duration.Round(time.Millisecond).String(),
		Logs:          summary.Logs,
	}, nil
}

// runStages executes the sequential stage chain. There is no retry and no
// cancellation path once started.
func (s *Service) runStages(ctx context.Context, pipeline *Pipeline) error {
	if err := pipeline.Unzip(ctx); err != nil {
		return err
	}
	if err := pipeline.ProcessFiles(ctx); err != nil {
		return err
	}
	return pipeline.ProcessIndexHTML(ctx)
}

// recordFailure writes a failed deployment record carrying the log text.
// Best effort: persistence problems here are logged, not surfaced.
func (s *Service) recordFailure(ctx context.Context, projectID string, pipeline *Pipeline, cause error) {
	getMetrics().observe(domain.DeploymentStatusFailed, pipeline.uploadsIssued, pipeline.dedupHits)
	record := &domain.Deployment{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    domain.DeploymentStatusFailed,
		Logs:      pipeline.Logs(),
		Size:      int64(len(pipeline.raw)),
		Duration:  time.Since(pipeline.startedAt),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deployments.CreateDeployment(ctx, record); err != nil {
		s.logger.Warn("failed to record failed deployment", "project_id", projectID, "error", err)
	}
	s.logger.Error("deployment failed", "project_id", projectID, "deployment_id", record.ID, "error", cause)
}

// acquireLease takes the per-project deployment lease: a redis lock when
// configured, otherwise an in-process guard.
func (s *Service) acquireLease(ctx context.Context, projectID string) (func(), error) {
	if s.locker != nil {
		ttl := s.cfg.DeployLockTTL
		if ttl <= 0 {
			ttl = 2 * time.Minute
		}
		lock, err := s.locker.Obtain(ctx, "nimbuswave:deploy:"+projectID, ttl, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, ErrInProgress
			}
			return nil, fmt.Errorf("acquire deployment lease: %w", err)
		}
		return func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				s.logger.Warn("failed to release deployment lease", "project_id", projectID, "error", err)
			}
		}, nil
	}

	if _, loaded := s.inflight.LoadOrStore(projectID, struct{}{}); loaded {
		return nil, ErrInProgress
	}
	return func() { s.inflight.Delete(projectID) }, nil
}

// ListByProject returns recent deployment records, newest first.
func (s *Service) ListByProject(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error) {
	return s.deployments.ListDeploymentsByProject(ctx, projectID, limit)
}
