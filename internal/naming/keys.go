// Package naming maps jobs to remote object keys and back. The key layout is
// the persisted contract the restore path depends on, so it must stay stable.
package naming

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// SuffixLayout is the snapshot timestamp token. It is chosen so that
// lexicographic order of suffixes equals chronological order, which lets
// retention and "latest" lookups work on plain string sorts.
const SuffixLayout = "20060102T150405"

// DumpExtension is the suffix of compressed database dumps.
const DumpExtension = ".sql.gz"

// FormatError reports a remote key that does not follow the snapshot naming
// convention. Such keys are skipped during retention and restore listings.
type FormatError struct {
	Key string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("not a valid snapshot key: %q", e.Key)
}

// RemoteKey joins the hostname, section name and optional trailing segments
// into a remote object key. Empty segments are dropped so the key never
// contains "//".
func RemoteKey(hostname, section string, extra ...string) string {
	segments := []string{hostname, section}
	for _, s := range extra {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return path.Join(segments...)
}

// BucketURL renders an s3:// URL for a key in the given bucket.
func BucketURL(bucket string, key string) string {
	return "s3://" + path.Join(bucket, key)
}

// SnapshotSuffix renders the timestamp token for a new snapshot.
func SnapshotSuffix(now time.Time) string {
	return now.UTC().Format(SuffixLayout)
}

// ParseSnapshotSuffix is the inverse of SnapshotSuffix.
func ParseSnapshotSuffix(suffix string) (time.Time, error) {
	ts, err := time.Parse(SuffixLayout, suffix)
	if err != nil {
		return time.Time{}, &FormatError{Key: suffix}
	}
	return ts.UTC(), nil
}

// DumpObjectName renders the object basename for a database dump, e.g.
// "app-20240131T120000.sql.gz".
func DumpObjectName(dbname string, now time.Time) string {
	return dbname + "-" + SnapshotSuffix(now) + DumpExtension
}

// ParseDumpObjectKey extracts the database name and snapshot time from a
// remote dump key. Keys that do not follow the DumpObjectName convention
// fail with a FormatError.
func ParseDumpObjectKey(key string) (dbname string, ts time.Time, err error) {
	base := path.Base(key)
	name, ok := strings.CutSuffix(base, DumpExtension)
	if !ok {
		return "", time.Time{}, &FormatError{Key: key}
	}
	i := strings.LastIndex(name, "-")
	if i <= 0 || i == len(name)-1 {
		return "", time.Time{}, &FormatError{Key: key}
	}
	ts, err = ParseSnapshotSuffix(name[i+1:])
	if err != nil {
		return "", time.Time{}, &FormatError{Key: key}
	}
	return name[:i], ts, nil
}
