package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-snapshot-service/internal/snapshot"
)

func TestExpectedMissingField(t *testing.T) {
	allow := snapshot.DefaultAllowlist()

	assert.True(t, allow.ExpectedMissingField("Firefox", "cf_status_firefox64"))
	assert.True(t, allow.ExpectedMissingField("Firefox", "cf_tracking_thunderbird"))
	assert.True(t, allow.ExpectedMissingField("Firefox", "cf_blocking_basecamp"))
	assert.True(t, allow.ExpectedMissingField("NSS", "cf_has_str"))

	assert.False(t, allow.ExpectedMissingField("Firefox", "cf_has_str"))
	assert.False(t, allow.ExpectedMissingField("Firefox", "priority"))
}

func TestExpectedScalarMismatch(t *testing.T) {
	allow := snapshot.DefaultAllowlist()

	// Account renames are never tracked in history.
	assert.True(t, allow.ExpectedScalarMismatch(1, "assigned_to",
		"new@mozilla.example", "old@mozilla.example"))

	// Trailing whitespace stripping is not recorded as a change.
	assert.True(t, allow.ExpectedScalarMismatch(1, "whiteboard", "[fixed] ", "[fixed]"))

	// Per-bug table entries, with and without an expected-value narrow.
	assert.True(t, allow.ExpectedScalarMismatch(1337747, "priority", "P1", "P3"))
	assert.True(t, allow.ExpectedScalarMismatch(1382577, "cf_status_firefox57", "verified", "fixed"))
	assert.False(t, allow.ExpectedScalarMismatch(1382577, "cf_status_firefox57", "verified", "affected"))

	assert.False(t, allow.ExpectedScalarMismatch(1, "priority", "P1", "P3"))
	assert.False(t, allow.ExpectedScalarMismatch(1, "whiteboard", "[fixed]", "[open]"))
}

func TestExpectedListMiss(t *testing.T) {
	allow := snapshot.DefaultAllowlist()

	assert.True(t, allow.ExpectedListMiss(1, "someone@mozilla.example"))
	assert.True(t, allow.ExpectedListMiss(1, "checkin-needed"))
	assert.True(t, allow.ExpectedListMiss(949409, "intermittent-failure"))

	assert.False(t, allow.ExpectedListMiss(1, "intermittent-failure"))
	assert.False(t, allow.ExpectedListMiss(1, "regression"))
	assert.False(t, allow.ExpectedListMiss(1, int64(42)))
}

func TestFlagExceptions(t *testing.T) {
	allow := snapshot.DefaultAllowlist()

	assert.True(t, allow.TolerateDuplicateFlag(1052536))
	assert.False(t, allow.TolerateDuplicateFlag(1))

	assert.True(t, allow.SkipAttachmentFlags(1421395))
	assert.False(t, allow.SkipAttachmentFlags(1))

	assert.True(t, allow.RetiredFlagToken("approval-comm-beta+"))
	assert.False(t, allow.RetiredFlagToken("approval-mozilla-beta+"))

	assert.True(t, allow.SkipFlagReadd(1049813))
	assert.False(t, allow.SkipFlagReadd(1))
}

func TestLoadAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	payload := `{
		"missing_field_prefixes": ["cf_test_"],
		"scalar_mismatches": [{"field": "priority", "bug_id": 99}],
		"retired_list_tokens": ["old-keyword"],
		"duplicate_flag_targets": [77]
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	allow, err := snapshot.LoadAllowlist(path)
	require.NoError(t, err)

	assert.True(t, allow.ExpectedMissingField("Firefox", "cf_test_field"))
	assert.True(t, allow.ExpectedScalarMismatch(99, "priority", "P1", "P2"))
	assert.True(t, allow.ExpectedListMiss(1, "old-keyword"))
	assert.True(t, allow.TolerateDuplicateFlag(77))

	// The compiled-in defaults are not merged in.
	assert.False(t, allow.ExpectedMissingField("Firefox", "cf_status_firefox64"))
}

func TestLoadAllowlistErrors(t *testing.T) {
	_, err := snapshot.LoadAllowlist(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = snapshot.LoadAllowlist(path)
	require.Error(t, err)
}
