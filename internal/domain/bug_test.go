package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

const wireRecord = `{
	"id": 1234567,
	"product": "Firefox",
	"severity": "normal",
	"creator": "reporter@mozilla.example",
	"creation_time": "2019-03-01T12:00:00Z",
	"keywords": ["regression", "topcrash"],
	"blocks": [111, 222],
	"is_confirmed": true,
	"flags": [{"name": "qe-verify", "status": "+"}],
	"comments": [
		{"id": 10, "count": 0, "text": "description", "creator": "reporter@mozilla.example", "creation_time": "2019-03-01T12:00:00Z"}
	],
	"attachments": [
		{"id": 20, "creation_time": "2019-03-02T09:00:00Z", "file_name": "patch.diff", "is_patch": 1,
		 "flags": [{"name": "qe-verify", "status": "?", "requestee": "qa@mozilla.example"}]}
	],
	"history": [
		{"when": "2019-03-03T08:00:00Z", "who": "editor@mozilla.example",
		 "changes": [{"field_name": "severity", "added": "normal", "removed": "major"}]}
	]
}`

func TestBugRecordUnmarshal(t *testing.T) {
	var bug domain.BugRecord
	require.NoError(t, json.Unmarshal([]byte(wireRecord), &bug))

	assert.Equal(t, int64(1234567), bug.ID)
	assert.Equal(t, "Firefox", bug.Product())
	assert.Equal(t, "reporter@mozilla.example", bug.Creator())

	created, err := bug.CreationTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 3, 1, 12, 0, 0, 0, time.UTC), created)

	// Loose fields stay in the bag with their decoded JSON types.
	assert.Equal(t, []any{"regression", "topcrash"}, bug.Fields["keywords"])
	assert.Equal(t, []any{float64(111), float64(222)}, bug.Fields["blocks"])
	assert.Equal(t, true, bug.Fields["is_confirmed"])

	// Structural keys are lifted out of the bag.
	assert.NotContains(t, bug.Fields, "id")
	assert.NotContains(t, bug.Fields, "history")

	require.Len(t, bug.Flags, 1)
	assert.Equal(t, domain.FlagGranted, bug.Flags[0].Status)
	require.Len(t, bug.Comments, 1)
	assert.Equal(t, 0, bug.Comments[0].Count)
	require.Len(t, bug.Attachments, 1)
	assert.Equal(t, "qa@mozilla.example", bug.Attachments[0].Flags[0].Requestee)
	require.Len(t, bug.History, 1)
	require.Len(t, bug.History[0].Changes, 1)
	assert.Equal(t, "severity", bug.History[0].Changes[0].FieldName)
}

func TestBugRecordRoundTrip(t *testing.T) {
	var bug domain.BugRecord
	require.NoError(t, json.Unmarshal([]byte(wireRecord), &bug))

	encoded, err := json.Marshal(&bug)
	require.NoError(t, err)

	var again domain.BugRecord
	require.NoError(t, json.Unmarshal(encoded, &again))

	assert.Equal(t, bug.ID, again.ID)
	assert.Equal(t, bug.Fields, again.Fields)
	assert.Equal(t, bug.Flags, again.Flags)
	assert.Equal(t, bug.Comments, again.Comments)
	assert.Equal(t, bug.Attachments, again.Attachments)
	assert.Equal(t, bug.History, again.History)
}

func TestBugRecordMarshalEmptyCollections(t *testing.T) {
	bug := domain.BugRecord{ID: 1, Fields: map[string]any{"product": "Firefox"}}

	encoded, err := json.Marshal(&bug)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(encoded, &flat))
	assert.Equal(t, []any{}, flat["flags"])
	assert.Equal(t, []any{}, flat["comments"])
	assert.Equal(t, []any{}, flat["attachments"])
	assert.Equal(t, []any{}, flat["history"])
}

func TestBugRecordClone(t *testing.T) {
	var bug domain.BugRecord
	require.NoError(t, json.Unmarshal([]byte(wireRecord), &bug))

	clone := bug.Clone()
	clone.Fields["severity"] = "critical"
	clone.Fields["keywords"].([]any)[0] = "changed"
	clone.Flags[0].Status = domain.FlagDenied
	clone.Comments[0].Text = "edited"
	clone.Attachments[0].Flags[0].Requestee = "other@mozilla.example"
	clone.History[0].Changes[0].Added = "edited"

	assert.Equal(t, "normal", bug.Fields["severity"])
	assert.Equal(t, "regression", bug.Fields["keywords"].([]any)[0])
	assert.Equal(t, domain.FlagGranted, bug.Flags[0].Status)
	assert.Equal(t, "description", bug.Comments[0].Text)
	assert.Equal(t, "qa@mozilla.example", bug.Attachments[0].Flags[0].Requestee)
	assert.Equal(t, "normal", bug.History[0].Changes[0].Added)
}

func TestCreationTimeErrors(t *testing.T) {
	bug := domain.BugRecord{ID: 2, Fields: map[string]any{}}
	_, err := bug.CreationTime()
	require.Error(t, err)

	bug.Fields["creation_time"] = "yesterday"
	_, err = bug.CreationTime()
	require.Error(t, err)
}
