// Package sync implements the sync job: mirror a local directory to object
// storage and back.
package sync

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/nestbackup/nestbackup/internal/naming"
	"github.com/nestbackup/nestbackup/internal/services/s3"
	"github.com/rs/zerolog"
)

// Service defines the interface for the sync job.
type Service interface {
	Backup(ctx context.Context, spec models.JobSpec) *models.JobResult
	Restore(ctx context.Context, spec models.JobSpec) error
}

// Impl implements the sync Service.
type Impl struct {
	s3Svc  s3.Service
	logger zerolog.Logger
}

// New creates a new sync service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{s3Svc: s3.New(logger), logger: logger}
}

// NewWithS3 creates a sync service with a custom s3 service (for testing).
func NewWithS3(logger zerolog.Logger, s3Svc s3.Service) *Impl {
	return &Impl{s3Svc: s3Svc, logger: logger}
}

// opLine matches per-file operation lines in aws s3 sync output, e.g.
// "upload: /var/www/a to s3://...".
var opLine = regexp.MustCompile(`^(\w+):`)

func (s *Impl) bucketURL(spec models.JobSpec) string {
	key := naming.RemoteKey(spec.Hostname, spec.Name, spec.Sync.RemotePath)
	return naming.BucketURL(spec.Bucket, key)
}

// Backup mirrors the local path to the remote key. Sync jobs have no
// snapshots: the remote always reflects current local state.
func (s *Impl) Backup(ctx context.Context, spec models.JobSpec) *models.JobResult {
	result := models.NewJobResult(spec)
	dest := s.bucketURL(spec)

	s.logger.Info().
		Str("section", spec.Name).
		Str("local_path", spec.Sync.LocalPath).
		Str("dest", dest).
		Msg("starting sync job")

	cmdResult, err := s.s3Svc.Sync(ctx, spec.Creds, spec.Sync.LocalPath, dest, spec.Sync.ExtraArgs)
	result.AddCommand(cmdResult)
	if err != nil {
		return result.Seal(fmt.Errorf("sync to %s: %w", dest, err))
	}

	for _, line := range summarizeOps(cmdResult.Output) {
		result.AddLine(line)
	}
	return result.Seal(nil)
}

// Restore mirrors the remote key back to the local path, creating the target
// directory if it is missing.
func (s *Impl) Restore(ctx context.Context, spec models.JobSpec) error {
	source := s.bucketURL(spec)

	s.logger.Info().
		Str("section", spec.Name).
		Str("source", source).
		Str("local_path", spec.Sync.LocalPath).
		Msg("restoring sync job")

	if err := os.MkdirAll(spec.Sync.LocalPath, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", spec.Sync.LocalPath, err)
	}

	if _, err := s.s3Svc.Sync(ctx, spec.Creds, source, spec.Sync.LocalPath, spec.Sync.ExtraArgs); err != nil {
		return fmt.Errorf("sync from %s: %w", source, err)
	}
	return nil
}

// summarizeOps aggregates the per-file lines of a sync run into counts per
// operation, e.g. ["delete: 1", "upload: 3"].
func summarizeOps(output string) []string {
	counts := map[string]int{}
	for _, line := range strings.Split(output, "\n") {
		if m := opLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			counts[m[1]]++
		}
	}

	if len(counts) == 0 {
		return []string{"no files out of sync"}
	}

	ops := make([]string, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		lines = append(lines, fmt.Sprintf("%s: %d", op, counts[op]))
	}
	return lines
}
