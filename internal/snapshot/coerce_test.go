package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

func TestRegistryCoerce(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name    string
		field   string
		raw     string
		want    any
		wantErr bool
	}{
		{name: "int field", field: "blocks", raw: "1234567", want: int64(1234567)},
		{name: "int field garbage", field: "depends_on", raw: "12a", wantErr: true},
		{name: "bool true", field: "is_confirmed", raw: "1", want: true},
		{name: "bool false", field: "is_confirmed", raw: "0", want: false},
		{name: "bool empty is false", field: "is_cc_accessible", raw: "", want: false},
		{name: "bool garbage", field: "is_confirmed", raw: "true", wantErr: true},
		{name: "rank zero is unranked", field: "cf_rank", raw: "0", want: nil},
		{name: "rank empty is unranked", field: "cf_rank", raw: "", want: nil},
		{name: "rank kept verbatim", field: "cf_rank", raw: "15", want: "15"},
		{name: "due date empty", field: "cf_due_date", raw: "", want: nil},
		{name: "keyword rename", field: "keywords", raw: "mlk", want: "memory-leak"},
		{name: "keyword passthrough", field: "keywords", raw: "regression", want: "regression"},
		{name: "group rename", field: "groups", raw: "release-core-security", want: "core-security-release"},
		{name: "op_sys rename", field: "op_sys", raw: "Mac OS X", want: "macOS"},
		{name: "platform rename", field: "platform", raw: "PowerPC", want: "Other"},
		{name: "product rename", field: "product", raw: "Boot2Gecko", want: "Firefox OS"},
		{name: "milestone rename", field: "target_milestone", raw: "Future", want: "---"},
		{name: "unknown field passthrough", field: "whiteboard", raw: "[triaged]", want: "[triaged]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := registry.Coerce(tc.field, tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegistryKind(t *testing.T) {
	registry := NewRegistry()

	assert.Equal(t, KindList, registry.Kind("keywords", nil))
	assert.Equal(t, KindList, registry.Kind("blocks", nil))
	assert.Equal(t, KindScalar, registry.Kind("alias", []any{"x"}))

	// Unknown fields take the shape the record currently holds.
	assert.Equal(t, KindList, registry.Kind("cf_custom", []any{"a"}))
	assert.Equal(t, KindScalar, registry.Kind("cf_custom", "a"))
}

func TestParseFlagChange(t *testing.T) {
	tests := []struct {
		token   string
		want    domain.Flag
		wantErr bool
	}{
		{token: "review+", want: domain.Flag{Name: "review", Status: domain.FlagGranted}},
		{token: "qe-verify-", want: domain.Flag{Name: "qe-verify", Status: domain.FlagDenied}},
		{
			token: "needinfo?(who@example.com)",
			want:  domain.Flag{Name: "needinfo", Status: domain.FlagRequested, Requestee: "who@example.com"},
		},
		{token: "review", wantErr: true},
		{token: "needinfo?(broken", wantErr: true},
		{token: "x", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			got, err := parseFlagChange(tc.token)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsQuestionFlag(t *testing.T) {
	assert.True(t, isQuestionFlag("needinfo?(who@example.com)"))
	assert.True(t, isQuestionFlag("review?"))
	assert.True(t, isQuestionFlag("approval-mozilla-beta?"))
	assert.False(t, isQuestionFlag("qe-verify+"))
	assert.False(t, isQuestionFlag("in-testsuite+"))
}

func TestEqualValues(t *testing.T) {
	assert.True(t, equalValues(int64(5), float64(5)))
	assert.True(t, equalValues(float64(5), int64(5)))
	assert.True(t, equalValues("a", "a"))
	assert.True(t, equalValues(nil, nil))
	assert.False(t, equalValues(nil, "a"))
	assert.False(t, equalValues(int64(5), "5"))
	assert.False(t, equalValues(float64(5.5), int64(5)))
}
