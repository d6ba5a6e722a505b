package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

func TestChangeMatchIsZero(t *testing.T) {
	assert.True(t, ChangeMatch{}.IsZero())
	assert.False(t, ChangeMatch{FieldName: "severity"}.IsZero())
	assert.False(t, ChangeMatch{Added: "fixed"}.IsZero())
	assert.False(t, ChangeMatch{Removed: "major"}.IsZero())
}

func TestChangeMatchPredicate(t *testing.T) {
	change := domain.Change{FieldName: "severity", Added: "normal", Removed: "major"}

	assert.Nil(t, ChangeMatch{}.Predicate())

	tests := []struct {
		name  string
		match ChangeMatch
		want  bool
	}{
		{name: "field only", match: ChangeMatch{FieldName: "severity"}, want: true},
		{name: "field and added", match: ChangeMatch{FieldName: "severity", Added: "normal"}, want: true},
		{name: "all three", match: ChangeMatch{FieldName: "severity", Added: "normal", Removed: "major"}, want: true},
		{name: "wrong field", match: ChangeMatch{FieldName: "status"}, want: false},
		{name: "wrong added", match: ChangeMatch{FieldName: "severity", Added: "critical"}, want: false},
		{name: "wrong removed", match: ChangeMatch{Removed: "minor"}, want: false},
		{name: "added only", match: ChangeMatch{Added: "normal"}, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.match.Predicate()(change))
		})
	}
}

func TestSnapshotCacheKey(t *testing.T) {
	assert.Equal(t, "snapshot:42:creation", snapshotCacheKey(42, ChangeMatch{}))
	assert.Equal(t, "snapshot:42:severity|normal|major",
		snapshotCacheKey(42, ChangeMatch{FieldName: "severity", Added: "normal", Removed: "major"}))

	// Keys for the same bug share a prefix so purge can invalidate by scan.
	assert.Contains(t, snapshotCacheKey(42, ChangeMatch{FieldName: "status"}), "snapshot:42:")
}
