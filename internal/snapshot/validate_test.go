package snapshot_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
	"github.com/spec-kit/bug-snapshot-service/internal/snapshot"
)

func cleanBug(id int64) *domain.BugRecord {
	bug := newBug(id, map[string]any{"severity": "normal"})
	bug.History = []domain.HistoryEntry{
		entry(filed.Add(time.Hour), domain.Change{FieldName: "severity", Added: "normal", Removed: "major"}),
	}
	return bug
}

func corruptBug(id int64) *domain.BugRecord {
	bug := cleanBug(id)
	bug.Fields["severity"] = "blocker"
	return bug
}

func TestFindInconsistentCleanCorpus(t *testing.T) {
	corpus := []*domain.BugRecord{cleanBug(1), cleanBug(2), cleanBug(3)}

	engine := snapshot.NewEngine(nil, nil)
	failures := engine.FindInconsistent(slices.Values(corpus))
	assert.Empty(t, failures)
}

func TestFindInconsistentReportsOnlyBadRecords(t *testing.T) {
	corpus := []*domain.BugRecord{cleanBug(1), corruptBug(2), cleanBug(3)}

	engine := snapshot.NewEngine(nil, nil)
	failures := engine.FindInconsistent(slices.Values(corpus))

	require.Len(t, failures, 1)
	assert.Equal(t, int64(2), failures[0].Bug.ID)
	var inconsistency *snapshot.InconsistencyError
	assert.ErrorAs(t, failures[0].Err, &inconsistency)
}

func TestFindInconsistentLeavesRecordsUntouched(t *testing.T) {
	bad := corruptBug(4)

	engine := snapshot.NewEngine(nil, nil)
	failures := engine.FindInconsistent(slices.Values([]*domain.BugRecord{bad}))

	require.Len(t, failures, 1)
	// The sweep replays a clone; the reported record keeps its live state.
	assert.Equal(t, "blocker", failures[0].Bug.Fields["severity"])
	assert.Len(t, bad.History, 1)
}

func TestFindInconsistentSurvivesMalformedRecord(t *testing.T) {
	missingCreation := &domain.BugRecord{ID: 5, Fields: map[string]any{"product": "Firefox"}}
	corpus := []*domain.BugRecord{missingCreation, cleanBug(6)}

	engine := snapshot.NewEngine(nil, nil)
	failures := engine.FindInconsistent(slices.Values(corpus))

	require.Len(t, failures, 1)
	assert.Equal(t, int64(5), failures[0].Bug.ID)
	assert.ErrorContains(t, failures[0].Err, "creation_time")
}
