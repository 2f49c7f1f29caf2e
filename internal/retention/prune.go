// Package retention decides which remote snapshots to delete after a
// successful backup.
package retention

import (
	"sort"
	"time"
)

// Snapshot is one existing remote snapshot for a job.
type Snapshot struct {
	Key  string
	Time time.Time
}

// Prune returns the keys to delete, keeping the `keep` most recent snapshots.
// keep <= 0 keeps everything, so a misconfigured retention of zero never
// wipes out existing backups. Snapshots with equal timestamps keep their
// listing order, which makes the deletion set deterministic.
func Prune(existing []Snapshot, keep int) []string {
	if keep <= 0 || len(existing) <= keep {
		return nil
	}

	sorted := make([]Snapshot, len(existing))
	copy(sorted, existing)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.After(sorted[j].Time)
	})

	doomed := make([]string, 0, len(sorted)-keep)
	for _, s := range sorted[keep:] {
		doomed = append(doomed, s.Key)
	}
	return doomed
}
