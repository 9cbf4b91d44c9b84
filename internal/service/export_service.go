package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/internal/repository"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
	"github.com/noah-isme/crime-report-api/pkg/export"
	"github.com/noah-isme/crime-report-api/pkg/jobs"
	"github.com/noah-isme/crime-report-api/pkg/storage"
)

// ExportJobKind tags queue jobs produced by the export service.
const ExportJobKind = "report_export"

const exportCleanupBatch = 100

type exportJobStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	RequeueProcessing(ctx context.Context) (int64, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
	ClearResult(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportServiceConfig governs result retention and cleanup.
type ExportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload is an opened export artifact ready to stream.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService orchestrates export job lifecycle management.
type ExportService struct {
	tx        txProvider
	jobs      exportJobStore
	queue     jobDispatcher
	storage   fileStorage
	signer    *storage.SignedURLSigner
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportServiceConfig
}

// NewExportService constructs the export service.
func NewExportService(tx txProvider, store exportJobStore, queue jobDispatcher, files fileStorage, signer *storage.SignedURLSigner, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		tx:        tx,
		jobs:      store,
		queue:     queue,
		storage:   files,
		signer:    signer,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob persists a QUEUED job with its audit row, then hands it to the worker queue.
func (s *ExportService) CreateJob(ctx context.Context, principal *models.Principal, req dto.CreateExportRequest, meta models.ClientMeta) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	job := &models.ExportJob{
		Format:    req.Format,
		Filters:   models.ExportFilters{Status: req.Status, Priority: req.Priority},
		Status:    models.ExportStatusQueued,
		CreatedBy: principal.UserID,
		CreatedAt: time.Now().UTC(),
	}

	err := withTx(ctx, s.tx, func(tx *txScope) error {
		if err := s.jobs.Create(ctx, tx, job); err != nil {
			return appErrors.Internal(err, "failed to create export job")
		}
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditExportRequested,
			ResourceType: models.ResourceExportJob,
			ResourceID:   job.ID,
			Details:      map[string]interface{}{"format": job.Format, "filters": job.Filters},
			Meta:         meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: ExportJobKind}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		if updateErr := s.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		s.metrics.ExportFinished(string(failed))
		return nil, appErrors.Internal(err, "failed to enqueue export job")
	}
	resp := dto.NewExportJobResponse(job)
	return &resp, nil
}

// GetStatus returns job metadata to its creator or a SUPER_ADMIN.
func (s *ExportService) GetStatus(ctx context.Context, principal *models.Principal, id string) (*dto.ExportJobResponse, error) {
	if !validID(id) {
		return nil, exportNotFound()
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, exportNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	if job.CreatedBy != principal.UserID && principal.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this export")
	}
	resp := dto.NewExportJobResponse(job)
	return &resp, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, exportNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	if job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	return &ExportDownload{
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: export.Format(job.Format).ContentType(),
		ExpiresAt:   expiresAt,
	}, nil
}

// RecoverPendingJobs resets interrupted jobs and replays queued ones after a restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	// Workers live in this process, so PROCESSING rows at startup were orphaned by a crash.
	reset, err := s.jobs.RequeueProcessing(ctx)
	if err != nil {
		s.logger.Warn("failed to reset interrupted export jobs", zap.Error(err))
	} else if reset > 0 {
		s.logger.Info("reset interrupted export jobs", zap.Int64("count", reset))
	}

	pending, err := s.jobs.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: ExportJobKind}); err != nil {
			s.logger.Warn("failed to requeue pending export job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered queued export jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	for {
		batch, err := s.jobs.ListFinishedBefore(ctx, cutoff, exportCleanupBatch)
		if err != nil {
			s.logger.Warn("export cleanup list failed", zap.Error(err))
			return
		}
		cleared := 0
		for _, job := range batch {
			if job.ResultPath == nil {
				continue
			}
			if err := s.storage.Delete(*job.ResultPath); err != nil {
				s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			if err := s.jobs.ClearResult(ctx, job.ID); err != nil {
				s.logger.Warn("export cleanup clear failed", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			cleared++
		}
		if len(batch) < exportCleanupBatch || cleared == 0 {
			break
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export filesystem cleanup failed", zap.Error(err))
	}
}

func exportNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "export job not found")
}
