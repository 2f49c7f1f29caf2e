// Package s3 drives the aws CLI for object storage operations. Going through
// the CLI rather than an in-process SDK keeps every remote action visible in
// the command log.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/nestbackup/nestbackup/internal/services/command"
	"github.com/rs/zerolog"
)

// Service defines the interface for object storage operations. Every method
// returns the CommandResult of the underlying aws invocation so jobs can
// record it, alongside any failure.
type Service interface {
	Sync(ctx context.Context, creds models.Credentials, source, dest string, extraArgs []string) (*models.CommandResult, error)
	Upload(ctx context.Context, creds models.Credentials, localPath, bucketURL string) (*models.CommandResult, error)
	Download(ctx context.Context, creds models.Credentials, bucketURL, localPath string) (*models.CommandResult, error)
	Remove(ctx context.Context, creds models.Credentials, bucketURL string) (*models.CommandResult, error)
	List(ctx context.Context, creds models.Credentials, bucket, prefix string) ([]string, *models.CommandResult, error)
}

// Impl implements the s3 Service on top of the command runner.
type Impl struct {
	runner command.Service
	logger zerolog.Logger
}

// New creates a new s3 service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{runner: command.New(logger), logger: logger}
}

// NewWithRunner creates an s3 service with a custom command runner (for testing).
func NewWithRunner(logger zerolog.Logger, runner command.Service) *Impl {
	return &Impl{runner: runner, logger: logger}
}

// env builds the credential environment for an aws invocation. Credentials
// never appear on the command line.
func env(creds models.Credentials) []string {
	return []string{
		"AWS_ACCESS_KEY_ID=" + creds.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + creds.SecretAccessKey,
	}
}

// baseArgs returns the leading aws arguments shared by all subcommands.
func baseArgs(creds models.Credentials) []string {
	if creds.EndpointURL != "" {
		return []string{"--endpoint-url", creds.EndpointURL}
	}
	return nil
}

// Sync mirrors source to dest with deletion of extraneous files.
func (s *Impl) Sync(ctx context.Context, creds models.Credentials, source, dest string, extraArgs []string) (*models.CommandResult, error) {
	args := append(baseArgs(creds), "s3", "sync", "--delete")
	args = append(args, extraArgs...)
	args = append(args, source, dest)

	return s.runner.Run(ctx, command.Spec{Name: "aws", Args: args, Env: env(creds)})
}

// Upload copies a local file to a bucket URL.
func (s *Impl) Upload(ctx context.Context, creds models.Credentials, localPath, bucketURL string) (*models.CommandResult, error) {
	args := append(baseArgs(creds), "s3", "cp", localPath, bucketURL)
	return s.runner.Run(ctx, command.Spec{Name: "aws", Args: args, Env: env(creds)})
}

// Download copies an object to a local file.
func (s *Impl) Download(ctx context.Context, creds models.Credentials, bucketURL, localPath string) (*models.CommandResult, error) {
	args := append(baseArgs(creds), "s3", "cp", bucketURL, localPath)
	return s.runner.Run(ctx, command.Spec{Name: "aws", Args: args, Env: env(creds)})
}

// Remove deletes one object.
func (s *Impl) Remove(ctx context.Context, creds models.Credentials, bucketURL string) (*models.CommandResult, error) {
	args := append(baseArgs(creds), "s3", "rm", bucketURL)
	return s.runner.Run(ctx, command.Spec{Name: "aws", Args: args, Env: env(creds)})
}

// List returns the keys under a prefix, oldest first by last-modified time.
func (s *Impl) List(ctx context.Context, creds models.Credentials, bucket, prefix string) ([]string, *models.CommandResult, error) {
	args := append(baseArgs(creds),
		"s3api", "list-objects-v2",
		"--bucket", bucket,
		"--prefix", prefix,
		"--query", "sort_by(Contents, &LastModified)[].Key",
		"--output", "json",
	)

	// The listing streams into a buffer so a long listing is never clipped
	// by the runner's output truncation.
	var listing bytes.Buffer
	result, err := s.runner.Run(ctx, command.Spec{Name: "aws", Args: args, Env: env(creds), Stdout: &listing})
	if err != nil {
		return nil, result, err
	}

	keys, err := parseKeyList(listing.Bytes())
	if err != nil {
		return nil, result, fmt.Errorf("parsing object listing: %w", err)
	}

	s.logger.Debug().Int("count", len(keys)).Str("prefix", prefix).Msg("objects listed")
	return keys, result, nil
}

// parseKeyList decodes the s3api --query output. An empty prefix yields the
// JSON literal null, which decodes to an empty list.
func parseKeyList(output []byte) ([]string, error) {
	output = bytes.TrimSpace(output)
	if len(output) == 0 {
		return nil, nil
	}

	var keys []string
	if err := json.Unmarshal(output, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}
