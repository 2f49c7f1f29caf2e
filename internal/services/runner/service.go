// Package runner orchestrates backup and restore runs over the configured
// jobs.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/nestbackup/nestbackup/internal/config"
	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/nestbackup/nestbackup/internal/services/database"
	"github.com/nestbackup/nestbackup/internal/services/smtp"
	syncjob "github.com/nestbackup/nestbackup/internal/services/sync"
	"github.com/rs/zerolog"
)

// Service defines the interface for the orchestrator.
type Service interface {
	// Backup runs every job in configuration order, the smtp job deferred to
	// the end. Per-job failures are collected into the report, not returned;
	// the error covers only failures of the run itself (report delivery).
	Backup(ctx context.Context, cfg *config.Config) (*models.Report, error)

	// Restore reverses the selected jobs (all non-smtp jobs when sections is
	// empty) and aborts on the first failure.
	Restore(ctx context.Context, cfg *config.Config, sections []string, snapshot string) error
}

// Impl implements the orchestrator Service.
type Impl struct {
	syncSvc syncjob.Service
	dbSvc   database.Service
	smtpSvc smtp.Service
	logger  zerolog.Logger
}

// New creates a new orchestrator.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		syncSvc: syncjob.New(logger),
		dbSvc:   database.New(logger),
		smtpSvc: smtp.New(logger),
		logger:  logger,
	}
}

// NewWithServices creates an orchestrator with custom services (for testing).
func NewWithServices(logger zerolog.Logger, syncSvc syncjob.Service, dbSvc database.Service, smtpSvc smtp.Service) *Impl {
	return &Impl{syncSvc: syncSvc, dbSvc: dbSvc, smtpSvc: smtpSvc, logger: logger}
}

// Backup executes the run. One job's failure does not abort later jobs:
// backups are independent and a failed dump must not skip the media sync.
func (s *Impl) Backup(ctx context.Context, cfg *config.Config) (*models.Report, error) {
	jobs, notify := splitNotify(cfg.Jobs)

	hostname := ""
	if len(cfg.Jobs) > 0 {
		hostname = cfg.Jobs[0].Hostname
	}
	report := models.NewReport(hostname, time.Now())

	s.logger.Info().Int("jobs", len(jobs)).Msg("starting backup run")

	for _, spec := range jobs {
		result := s.runJob(ctx, spec)
		report.Add(result)

		if result.Success {
			s.logger.Info().Str("section", spec.Name).Msg("job succeeded")
		} else {
			s.logger.Error().Str("section", spec.Name).Err(result.Err).Msg("job failed")
		}
	}

	// The report job runs last regardless of its position in the file, so it
	// can cover everything else. A notify failure has no further channel to
	// report through; it only surfaces via the exit status.
	if notify != nil {
		if err := s.smtpSvc.Send(ctx, *notify, report); err != nil {
			s.logger.Error().Err(err).Msg("report delivery failed")
			return report, err
		}
	}

	return report, nil
}

func (s *Impl) runJob(ctx context.Context, spec models.JobSpec) *models.JobResult {
	switch spec.Kind {
	case models.JobSync:
		return s.syncSvc.Backup(ctx, spec)
	case models.JobDatabase:
		return s.dbSvc.Backup(ctx, spec)
	default:
		// Unknown kinds are rejected at config load time.
		result := models.NewJobResult(spec)
		return result.Seal(fmt.Errorf("job kind %q cannot run", spec.Kind))
	}
}

// Restore reverses each selected job. Unlike backup it aborts on the first
// failure: silently continuing past a partial restore is worse than stopping.
func (s *Impl) Restore(ctx context.Context, cfg *config.Config, sections []string, snapshot string) error {
	selected, err := selectJobs(cfg.Jobs, sections)
	if err != nil {
		return err
	}

	for _, spec := range selected {
		s.logger.Info().Str("section", spec.Name).Msg("restoring")

		var err error
		switch spec.Kind {
		case models.JobSync:
			err = s.syncSvc.Restore(ctx, spec)
		case models.JobDatabase:
			err = s.dbSvc.Restore(ctx, spec, snapshot)
		case models.JobSMTP:
			continue // nothing to restore
		}
		if err != nil {
			return fmt.Errorf("restoring section %q: %w", spec.Name, err)
		}
	}
	return nil
}

// splitNotify separates the smtp job (run last) from the ordered backup jobs.
func splitNotify(jobs []models.JobSpec) ([]models.JobSpec, *models.JobSpec) {
	var ordered []models.JobSpec
	var notify *models.JobSpec
	for i, spec := range jobs {
		if spec.Kind == models.JobSMTP {
			notify = &jobs[i]
			continue
		}
		ordered = append(ordered, spec)
	}
	return ordered, notify
}

// selectJobs filters the configured jobs down to the named sections, keeping
// configuration order. An unknown section name is fatal.
func selectJobs(jobs []models.JobSpec, sections []string) ([]models.JobSpec, error) {
	if len(sections) == 0 {
		return jobs, nil
	}

	byName := make(map[string]bool, len(sections))
	for _, name := range sections {
		byName[name] = true
	}

	var selected []models.JobSpec
	for _, spec := range jobs {
		if byName[spec.Name] {
			selected = append(selected, spec)
			delete(byName, spec.Name)
		}
	}

	for name := range byName {
		return nil, fmt.Errorf("unknown section %q", name)
	}
	return selected, nil
}
