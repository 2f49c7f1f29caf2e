// Package database implements the database job: dump-and-compress to object
// storage with snapshot retention, and the symmetric restore.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/nestbackup/nestbackup/internal/naming"
	"github.com/nestbackup/nestbackup/internal/retention"
	"github.com/nestbackup/nestbackup/internal/services/command"
	"github.com/nestbackup/nestbackup/internal/services/s3"
	"github.com/rs/zerolog"
)

// ErrBackupNotFound is returned by Restore when no snapshot exists for the
// section.
var ErrBackupNotFound = errors.New("backup not found")

// Service defines the interface for the database job.
type Service interface {
	Backup(ctx context.Context, spec models.JobSpec) *models.JobResult
	// Restore loads the given snapshot, or the most recent one when snapshot
	// is empty. The snapshot may be a timestamp token or a full dump basename.
	Restore(ctx context.Context, spec models.JobSpec, snapshot string) error
}

// Impl implements the database Service.
type Impl struct {
	runner  command.Service
	s3Svc   s3.Service
	logger  zerolog.Logger
	tempDir string
	now     func() time.Time
}

// New creates a new database service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		runner:  command.New(logger),
		s3Svc:   s3.New(logger),
		logger:  logger,
		tempDir: os.TempDir(),
		now:     time.Now,
	}
}

// NewWithServices creates a database service with custom collaborators (for
// testing).
func NewWithServices(logger zerolog.Logger, runner command.Service, s3Svc s3.Service, tempDir string, now func() time.Time) *Impl {
	return &Impl{runner: runner, s3Svc: s3Svc, logger: logger, tempDir: tempDir, now: now}
}

// dumpSpec builds the engine-specific dump command. Passwords go through the
// environment (PGPASSWORD / MYSQL_PWD), never argv.
func dumpSpec(db *models.DatabaseSettings) command.Spec {
	switch db.Engine {
	case models.EngineMySQL:
		args := []string{"--no-tablespaces"}
		args = append(args, mysqlArgs(db)...)
		args = append(args, db.Database)
		return command.Spec{Name: "mysqldump", Args: args, Env: mysqlEnv(db)}
	default:
		args := append(postgresArgs(db), "--dbname", db.Database)
		return command.Spec{Name: "pg_dump", Args: args, Env: postgresEnv(db)}
	}
}

// loadSpec builds the engine-specific load command; the dump streams in via
// stdin.
func loadSpec(db *models.DatabaseSettings) command.Spec {
	switch db.Engine {
	case models.EngineMySQL:
		args := append(mysqlArgs(db), db.Database)
		return command.Spec{Name: "mysql", Args: args, Env: mysqlEnv(db)}
	default:
		args := append([]string{"--quiet"}, postgresArgs(db)...)
		args = append(args, "--dbname", db.Database)
		return command.Spec{Name: "psql", Args: args, Env: postgresEnv(db)}
	}
}

func postgresArgs(db *models.DatabaseSettings) []string {
	var args []string
	if db.Host != "" {
		args = append(args, "--host", db.Host)
	}
	if db.Port != "" {
		args = append(args, "--port", db.Port)
	}
	if db.Username != "" {
		args = append(args, "--username", db.Username)
	}
	return args
}

func postgresEnv(db *models.DatabaseSettings) []string {
	if db.Password == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + db.Password}
}

func mysqlArgs(db *models.DatabaseSettings) []string {
	var args []string
	if db.Host != "" {
		args = append(args, "--host", db.Host)
	}
	if db.Port != "" {
		args = append(args, "--port", db.Port)
	}
	if db.Username != "" {
		args = append(args, "--user", db.Username)
	}
	return args
}

func mysqlEnv(db *models.DatabaseSettings) []string {
	if db.Password == "" {
		return nil
	}
	return []string{"MYSQL_PWD=" + db.Password}
}

// Backup dumps the database through a gzip filter into a temporary file,
// uploads it under a timestamped key, then prunes old snapshots when a
// retention count is set. The temporary file is removed on every exit path.
func (s *Impl) Backup(ctx context.Context, spec models.JobSpec) *models.JobResult {
	result := models.NewJobResult(spec)
	db := spec.Database

	objectName := naming.DumpObjectName(db.Database, s.now())
	dumpPath := filepath.Join(s.tempDir, objectName)

	s.logger.Info().
		Str("section", spec.Name).
		Str("engine", string(db.Engine)).
		Str("database", db.Database).
		Str("dump", dumpPath).
		Msg("starting database job")

	cmdResult, err := s.dumpCompressed(ctx, db, dumpPath)
	defer func() { _ = os.Remove(dumpPath) }()
	result.AddCommand(cmdResult)
	if err != nil {
		// A failed dump never reaches the upload step: no partial backup is
		// ever stored under a final key.
		return result.Seal(fmt.Errorf("dump of %s: %w", db.Database, err))
	}

	dest := naming.BucketURL(spec.Bucket, naming.RemoteKey(spec.Hostname, spec.Name, objectName))
	cmdResult, err = s.s3Svc.Upload(ctx, spec.Creds, dumpPath, dest)
	result.AddCommand(cmdResult)
	if err != nil {
		return result.Seal(fmt.Errorf("upload to %s: %w", dest, err))
	}
	result.AddLine("upload: " + dest)

	if db.Retention > 0 {
		s.prune(ctx, spec, result)
	}
	return result.Seal(nil)
}

// dumpCompressed runs the dump command with stdout streaming through gzip
// into path. The partial file is removed when the dump fails.
func (s *Impl) dumpCompressed(ctx context.Context, db *models.DatabaseSettings, path string) (*models.CommandResult, error) {
	file, err := os.Create(path) //nolint:gosec // path is built from config and a timestamp
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	gzw := gzip.NewWriter(file)
	dump := dumpSpec(db)
	dump.Stdout = gzw

	cmdResult, runErr := s.runner.Run(ctx, dump)

	closeErr := gzw.Close()
	if err := file.Close(); closeErr == nil {
		closeErr = err
	}

	if runErr != nil {
		_ = os.Remove(path)
		return cmdResult, runErr
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return cmdResult, fmt.Errorf("writing %s: %w", path, closeErr)
	}
	return cmdResult, nil
}

// prune deletes snapshots beyond the retention count. A failed deletion is
// surfaced as a warning, not a job failure: the new snapshot is already
// stored safely.
func (s *Impl) prune(ctx context.Context, spec models.JobSpec, result *models.JobResult) {
	prefix := naming.RemoteKey(spec.Hostname, spec.Name) + "/"

	keys, cmdResult, err := s.s3Svc.List(ctx, spec.Creds, spec.Bucket, prefix)
	result.AddCommand(cmdResult)
	if err != nil {
		s.logger.Warn().Err(err).Str("section", spec.Name).Msg("listing snapshots failed, skipping prune")
		result.AddLine("warning: prune skipped: " + err.Error())
		return
	}

	snapshots := s.parseSnapshots(keys)
	for _, key := range retention.Prune(snapshots, spec.Database.Retention) {
		target := naming.BucketURL(spec.Bucket, key)
		cmdResult, err := s.s3Svc.Remove(ctx, spec.Creds, target)
		result.AddCommand(cmdResult)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("snapshot deletion failed")
			result.AddLine("warning: failed to delete " + target)
			continue
		}
		result.AddLine("delete: " + target)
	}
}

// parseSnapshots filters a listing down to valid snapshot keys. Keys that do
// not follow the naming convention are not snapshots and are skipped.
func (s *Impl) parseSnapshots(keys []string) []retention.Snapshot {
	snapshots := make([]retention.Snapshot, 0, len(keys))
	for _, key := range keys {
		_, ts, err := naming.ParseDumpObjectKey(key)
		if err != nil {
			s.logger.Debug().Str("key", key).Msg("skipping non-snapshot key")
			continue
		}
		snapshots = append(snapshots, retention.Snapshot{Key: key, Time: ts})
	}
	return snapshots
}

// Restore downloads a snapshot, decompresses it and feeds it to the
// engine-specific load command. With an empty snapshot identifier the most
// recent snapshot is used; ErrBackupNotFound is returned when none exists.
func (s *Impl) Restore(ctx context.Context, spec models.JobSpec, snapshot string) error {
	key, err := s.resolveSnapshot(ctx, spec, snapshot)
	if err != nil {
		return err
	}

	dumpPath := filepath.Join(s.tempDir, filepath.Base(key))
	defer func() { _ = os.Remove(dumpPath) }()

	source := naming.BucketURL(spec.Bucket, key)
	s.logger.Info().
		Str("section", spec.Name).
		Str("source", source).
		Str("database", spec.Database.Database).
		Msg("restoring database job")

	if _, err := s.s3Svc.Download(ctx, spec.Creds, source, dumpPath); err != nil {
		return fmt.Errorf("download of %s: %w", source, err)
	}

	return s.loadCompressed(ctx, spec.Database, dumpPath)
}

// resolveSnapshot picks the remote key to restore.
func (s *Impl) resolveSnapshot(ctx context.Context, spec models.JobSpec, snapshot string) (string, error) {
	prefix := naming.RemoteKey(spec.Hostname, spec.Name) + "/"
	keys, _, err := s.s3Svc.List(ctx, spec.Creds, spec.Bucket, prefix)
	if err != nil {
		return "", fmt.Errorf("listing snapshots: %w", err)
	}

	snapshots := s.parseSnapshots(keys)
	if len(snapshots) == 0 {
		return "", ErrBackupNotFound
	}

	if snapshot == "" {
		latest := snapshots[0]
		for _, cand := range snapshots[1:] {
			if cand.Time.After(latest.Time) {
				latest = cand
			}
		}
		return latest.Key, nil
	}

	for _, cand := range snapshots {
		if filepath.Base(cand.Key) == snapshot || naming.SnapshotSuffix(cand.Time) == snapshot {
			return cand.Key, nil
		}
	}
	return "", fmt.Errorf("snapshot %q: %w", snapshot, ErrBackupNotFound)
}

// loadCompressed streams the gunzipped dump into the load command's stdin.
func (s *Impl) loadCompressed(ctx context.Context, db *models.DatabaseSettings, path string) error {
	file, err := os.Open(path) //nolint:gosec // path is under our temp dir
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("decompressing %s: %w", path, err)
	}
	defer func() { _ = gzr.Close() }()

	load := loadSpec(db)
	load.Stdin = gzr
	if _, err := s.runner.Run(ctx, load); err != nil {
		return fmt.Errorf("load into %s: %w", db.Database, err)
	}
	return nil
}
