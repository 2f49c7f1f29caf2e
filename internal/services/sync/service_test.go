package sync

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records sync calls and plays back canned output.
type fakeS3 struct {
	syncOutput string
	syncErr    error

	syncCalls [][2]string // source, dest
}

func (f *fakeS3) Sync(_ context.Context, _ models.Credentials, source, dest string, _ []string) (*models.CommandResult, error) {
	f.syncCalls = append(f.syncCalls, [2]string{source, dest})
	return &models.CommandResult{
		Argv:   []string{"aws", "s3", "sync", "--delete", source, dest},
		Output: f.syncOutput,
	}, f.syncErr
}

func (f *fakeS3) Upload(context.Context, models.Credentials, string, string) (*models.CommandResult, error) {
	panic("not used")
}

func (f *fakeS3) Download(context.Context, models.Credentials, string, string) (*models.CommandResult, error) {
	panic("not used")
}

func (f *fakeS3) Remove(context.Context, models.Credentials, string) (*models.CommandResult, error) {
	panic("not used")
}

func (f *fakeS3) List(context.Context, models.Credentials, string, string) ([]string, *models.CommandResult, error) {
	panic("not used")
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func mediaSpec() models.JobSpec {
	return models.JobSpec{
		Name:     "media",
		Kind:     models.JobSync,
		Hostname: "host1",
		Bucket:   "backup",
		Sync:     &models.SyncSettings{LocalPath: "/var/www", RemotePath: "www"},
	}
}

func TestBackupSyncsToRemoteKey(t *testing.T) {
	s3Svc := &fakeS3{}
	svc := NewWithS3(testLogger(), s3Svc)

	result := svc.Backup(context.Background(), mediaSpec())

	assert.True(t, result.Success)
	require.Len(t, s3Svc.syncCalls, 1)
	assert.Equal(t, "/var/www", s3Svc.syncCalls[0][0])
	assert.Equal(t, "s3://backup/host1/media/www", s3Svc.syncCalls[0][1])
	require.Len(t, result.Commands, 1)
}

func TestBackupAggregatesOperations(t *testing.T) {
	s3Svc := &fakeS3{syncOutput: "upload: a to s3://b/a\nupload: c to s3://b/c\ndelete: s3://b/old\n"}
	svc := NewWithS3(testLogger(), s3Svc)

	result := svc.Backup(context.Background(), mediaSpec())

	assert.Equal(t, []string{"delete: 1", "upload: 2"}, result.Lines)
}

func TestBackupNothingToDo(t *testing.T) {
	s3Svc := &fakeS3{syncOutput: ""}
	svc := NewWithS3(testLogger(), s3Svc)

	result := svc.Backup(context.Background(), mediaSpec())

	assert.Equal(t, []string{"no files out of sync"}, result.Lines)
}

func TestBackupFailureSealsResult(t *testing.T) {
	s3Svc := &fakeS3{syncErr: errors.New("exit 1")}
	svc := NewWithS3(testLogger(), s3Svc)

	result := svc.Backup(context.Background(), mediaSpec())

	assert.False(t, result.Success)
	assert.Error(t, result.Err)
	// The failed command is still recorded for the report.
	assert.Len(t, result.Commands, 1)
}

func TestRestoreReversesDirection(t *testing.T) {
	s3Svc := &fakeS3{}
	svc := NewWithS3(testLogger(), s3Svc)

	spec := mediaSpec()
	spec.Sync.LocalPath = filepath.Join(t.TempDir(), "restored", "www")

	require.NoError(t, svc.Restore(context.Background(), spec))

	require.Len(t, s3Svc.syncCalls, 1)
	assert.Equal(t, "s3://backup/host1/media/www", s3Svc.syncCalls[0][0])
	assert.Equal(t, spec.Sync.LocalPath, s3Svc.syncCalls[0][1])

	// The target directory was created.
	assert.DirExists(t, spec.Sync.LocalPath)
}
