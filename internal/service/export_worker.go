package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/internal/repository"
	"github.com/noah-isme/crime-report-api/pkg/export"
	"github.com/noah-isme/crime-report-api/pkg/jobs"
	"github.com/noah-isme/crime-report-api/pkg/storage"
)

var exportHeaders = []string{"ID", "Title", "Status", "Priority", "Reporter ID", "Created At", "Updated At"}

type exportReportSource interface {
	ListForExport(ctx context.Context, filters models.ExportFilters) ([]models.CrimeReport, error)
}

// ExportWorkerConfig tunes artifact naming.
type ExportWorkerConfig struct {
	APIPrefix string
}

// ExportWorker bridges queue jobs to rendered, stored export files.
type ExportWorker struct {
	jobs    exportJobStore
	reports exportReportSource
	storage fileStorage
	signer  *storage.SignedURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportWorkerConfig
	now     func() time.Time
}

// NewExportWorker constructs a worker.
func NewExportWorker(store exportJobStore, reports exportReportSource, files fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, logger *zap.Logger, cfg ExportWorkerConfig) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{
		jobs:    store,
		reports: reports,
		storage: files,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes a queue job. A returned error lets the queue retry it.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}

	relPath, url, rows, err := w.generate(ctx, record)
	if err != nil {
		msg := err.Error()
		queued := models.ExportStatusQueued
		reset := 0
		if updateErr := w.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &queued,
			Progress:     &reset,
			ErrorMessage: &msg,
		}); updateErr != nil {
			w.logger.Warn("failed to mark export job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}

	finished := models.ExportStatusFinished
	progress = 100
	now := w.now()
	clear := ""
	if err := w.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		Progress:     &progress,
		RowCount:     &rows,
		ResultPath:   &relPath,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.ExportFinished(string(finished))
	w.logger.Info("export job finished", zap.String("job_id", job.ID), zap.Int("rows", rows))
	return nil
}

// MarkExhausted records a job as FAILED once the queue gives up retrying.
func (w *ExportWorker) MarkExhausted(ctx context.Context, job jobs.Job, cause error) {
	failed := models.ExportStatusFailed
	progress := 100
	now := w.now()
	msg := cause.Error()
	if err := w.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	w.metrics.ExportFinished(string(failed))
}

func (w *ExportWorker) generate(ctx context.Context, job *models.ExportJob) (relPath, url string, rows int, err error) {
	reports, err := w.reports.ListForExport(ctx, job.Filters)
	if err != nil {
		return "", "", 0, fmt.Errorf("load reports: %w", err)
	}
	dataset := export.Dataset{
		Title:   "Crime Reports",
		Headers: exportHeaders,
		Rows:    make([][]string, 0, len(reports)),
	}
	for _, r := range reports {
		dataset.Rows = append(dataset.Rows, []string{
			r.ID,
			r.Title,
			string(r.Status),
			string(r.Priority),
			r.UserID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	payload, err := export.Render(export.Format(job.Format), dataset)
	if err != nil {
		return "", "", 0, err
	}
	relPath, err = w.storage.Save(w.filename(job), payload)
	if err != nil {
		return "", "", 0, err
	}
	token, _, err := w.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", "", 0, err
	}
	prefix := strings.TrimRight(w.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return relPath, fmt.Sprintf("%s/exports/download/%s", prefix, token), len(reports), nil
}

func (w *ExportWorker) filename(job *models.ExportJob) string {
	parts := []string{"crime_reports"}
	if job.Filters.Status != nil {
		parts = append(parts, strings.ToLower(string(*job.Filters.Status)))
	}
	if job.Filters.Priority != nil {
		parts = append(parts, strings.ToLower(string(*job.Filters.Priority)))
	}
	parts = append(parts, w.now().Format("20060102_150405"), job.ID[:min(8, len(job.ID))])
	return fmt.Sprintf("%s.%s", strings.Join(parts, "_"), job.Format)
}
