package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func snap(key string, offset int) Snapshot {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Snapshot{Key: key, Time: base.Add(time.Duration(offset) * time.Hour)}
}

func TestPruneKeepsMostRecent(t *testing.T) {
	existing := []Snapshot{
		snap("old", 0),
		snap("mid", 1),
		snap("new", 2),
	}

	assert.Equal(t, []string{"old"}, Prune(existing, 2))
}

func TestPruneIgnoresListingOrder(t *testing.T) {
	existing := []Snapshot{
		snap("new", 2),
		snap("old", 0),
		snap("mid", 1),
	}

	assert.Equal(t, []string{"mid", "old"}, Prune(existing, 1))
}

func TestPruneDeletesExactlyTheExcess(t *testing.T) {
	var existing []Snapshot
	for i := 0; i < 10; i++ {
		existing = append(existing, snap(string(rune('a'+i)), i))
	}

	for keep := 1; keep <= 12; keep++ {
		want := len(existing) - keep
		if want < 0 {
			want = 0
		}
		assert.Len(t, Prune(existing, keep), want, "keep=%d", keep)
	}
}

func TestPruneZeroOrNegativeKeepsEverything(t *testing.T) {
	existing := []Snapshot{snap("a", 0), snap("b", 1)}

	assert.Empty(t, Prune(existing, 0))
	assert.Empty(t, Prune(existing, -1))
}

func TestPruneEqualTimestampsPreserveListingOrder(t *testing.T) {
	existing := []Snapshot{
		snap("first", 0),
		snap("second", 0),
		snap("third", 0),
	}

	assert.Equal(t, []string{"second", "third"}, Prune(existing, 1))
}

func TestPruneEmpty(t *testing.T) {
	assert.Empty(t, Prune(nil, 3))
}
