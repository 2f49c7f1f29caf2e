package naming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteKey(t *testing.T) {
	assert.Equal(t, "host1/media/www", RemoteKey("host1", "media", "www"))
	assert.Equal(t, "host1/db", RemoteKey("host1", "db"))
}

func TestRemoteKeyDropsEmptySegments(t *testing.T) {
	assert.Equal(t, "host1/media", RemoteKey("host1", "media", ""))
	assert.NotContains(t, RemoteKey("host1", "media", "", "x"), "//")
}

func TestBucketURL(t *testing.T) {
	assert.Equal(t, "s3://backup/host1/media/www", BucketURL("backup", "host1/media/www"))
}

func TestSnapshotSuffixRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 31, 12, 0, 5, 0, time.UTC)
	suffix := SnapshotSuffix(ts)

	parsed, err := ParseSnapshotSuffix(suffix)
	require.NoError(t, err)
	assert.Equal(t, ts, parsed)
}

func TestSnapshotSuffixSortsChronologically(t *testing.T) {
	earlier := SnapshotSuffix(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC))
	later := SnapshotSuffix(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestParseSnapshotSuffixRejectsGarbage(t *testing.T) {
	_, err := ParseSnapshotSuffix("not-a-timestamp")
	require.Error(t, err)

	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestDumpObjectNameRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)
	key := RemoteKey("host1", "db", DumpObjectName("app", ts))
	assert.Equal(t, "host1/db/app-20240315T083000.sql.gz", key)

	dbname, parsed, err := ParseDumpObjectKey(key)
	require.NoError(t, err)
	assert.Equal(t, "app", dbname)
	assert.Equal(t, ts, parsed)
}

func TestDumpObjectNameWithDashesInDatabase(t *testing.T) {
	ts := time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)

	dbname, parsed, err := ParseDumpObjectKey(DumpObjectName("my-app-db", ts))
	require.NoError(t, err)
	assert.Equal(t, "my-app-db", dbname)
	assert.Equal(t, ts, parsed)
}

func TestParseDumpObjectKeyRejectsNonSnapshots(t *testing.T) {
	for _, key := range []string{
		"host1/db/app.sql.gz",
		"host1/db/app-20240315T083000.sql",
		"host1/db/readme.txt",
		"host1/db/-20240315T083000.sql.gz",
		"host1/db/app-2024-03-15.sql.gz",
	} {
		_, _, err := ParseDumpObjectKey(key)
		require.Error(t, err, "key %q", key)

		var formatErr *FormatError
		assert.ErrorAs(t, err, &formatErr)
	}
}
