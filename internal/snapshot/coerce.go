package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

// FieldKind tags how a field's value is shaped in the working record.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindScalar
	KindList
)

// Coercer converts the tracker's string encoding of a field value into
// the typed value the working record holds.
type Coercer func(raw string) (any, error)

// Registry maps field names to coercers and to their scalar/list kind.
// History encodes every value as a string; the live record holds ints,
// bools and canonical names, so both sides of an undo go through here.
type Registry struct {
	coercers map[string]Coercer
	kinds    map[string]FieldKind
}

// NewRegistry builds the registry with the tracker's field table.
func NewRegistry() *Registry {
	coercers := map[string]Coercer{
		"blocks":                coerceInt,
		"depends_on":            coerceInt,
		"regressed_by":          coerceInt,
		"regressions":           coerceInt,
		"is_confirmed":          coerceBoolStr,
		"is_cc_accessible":      coerceBoolStr,
		"is_creator_accessible": coerceBoolStr,
		"cf_rank":               coerceRank,
		"cf_due_date":           coerceDueDate,
		"keywords":              renameCoercer(keywordRenames),
		"groups":                renameCoercer(groupRenames),
		"op_sys":                renameCoercer(opSysRenames),
		"platform":              renameCoercer(platformRenames),
		"product":               renameCoercer(productRenames),
		"target_milestone":      renameCoercer(milestoneRenames),
	}

	kinds := map[string]FieldKind{
		"blocks":           KindList,
		"depends_on":       KindList,
		"regressed_by":     KindList,
		"regressions":      KindList,
		"keywords":         KindList,
		"groups":           KindList,
		"cc":               KindList,
		"see_also":         KindList,
		"duplicates":       KindList,
		"alias":            KindScalar,
		"product":          KindScalar,
		"op_sys":           KindScalar,
		"platform":         KindScalar,
		"target_milestone": KindScalar,
	}

	return &Registry{coercers: coercers, kinds: kinds}
}

// Coerce converts raw through the field's coercer; fields without one
// keep the raw string.
func (r *Registry) Coerce(field, raw string) (any, error) {
	if coerce, ok := r.coercers[field]; ok {
		return coerce(raw)
	}
	return raw, nil
}

// Kind resolves whether a field is list- or scalar-shaped. The table
// wins; fields the table does not know fall back to the shape the
// working record currently holds.
func (r *Registry) Kind(field string, current any) FieldKind {
	if kind, ok := r.kinds[field]; ok {
		return kind
	}
	if _, ok := current.([]any); ok {
		return KindList
	}
	return KindScalar
}

func coerceInt(raw string) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", raw)
	}
	return n, nil
}

func coerceBoolStr(raw string) (any, error) {
	switch raw {
	case "", "0":
		return false, nil
	case "1":
		return true, nil
	}
	return nil, fmt.Errorf("not a boolean encoding: %q", raw)
}

// coerceRank treats the empty string and "0" as unranked.
func coerceRank(raw string) (any, error) {
	if raw == "" || raw == "0" {
		return nil, nil
	}
	return raw, nil
}

func coerceDueDate(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	return raw, nil
}

func renameCoercer(renames map[string]string) Coercer {
	return func(raw string) (any, error) {
		if canonical, ok := renames[raw]; ok {
			return canonical, nil
		}
		return raw, nil
	}
}

// Historical renames the tracker performed. History entries carry the
// names current at the time of the change; the live record carries the
// canonical ones.
var keywordRenames = map[string]string{
	"mlk":                                "memory-leak",
	"topmlk":                             "top-memory-leak",
	"pp":                                 "platform-parity",
	"footprint":                          "memory-footprint",
	"ateam-marionette-firefox-puppeteer": "pi-marionette-firefox-puppeteer",
	"ateam-marionette-big":               "pi-marionette-big",
	"csec-dos":                           "csectype-dos",
	"csec-oom":                           "csectype-oom",
}

var groupRenames = map[string]string{
	"release-core-security":  "core-security-release",
	"core-security-relnotes": "core-security-release",
	"dbo-members":            "dbo-team",
	"websites-security":      "websites-security-team",
}

var opSysRenames = map[string]string{
	"Windows 8 Metro": "Windows 8.1",
	"Mac OS X":        "macOS",
	"Windows Vista":   "Windows",
}

var platformRenames = map[string]string{
	"DEC":     "Other",
	"HP":      "Other",
	"SGI":     "Other",
	"Sun":     "Other",
	"PowerPC": "Other",
}

var productRenames = map[string]string{
	"Boot2Gecko":                "Firefox OS",
	"Mozilla Developer Network": "developer.mozilla.org",
	"Mozilla Services":          "Cloud Services",
	"Add-on SDK":                "Add-on SDK Graveyard",
}

var milestoneRenames = map[string]string{
	"2.1S5":  "2.1 S5 (21nov)",
	"2.2":    "2.2 S1 (5dec)",
	"Future": "---",
}

// questionFlagPrefixes are request kinds that can be outstanding several
// times at once with no way to tell instances apart in history, so their
// removal is skipped instead of matched.
var questionFlagPrefixes = []string{
	"needinfo",
	"review",
	"feedback",
	"ui-review",
	"sec-approval",
	"sec-review",
	"data-review",
	"approval-mozilla-",
}

func isQuestionFlag(token string) bool {
	for _, prefix := range questionFlagPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// parseFlagChange splits a history flag token such as "review+" or
// "needinfo?(who@example.com)" into its parts.
func parseFlagChange(token string) (domain.Flag, error) {
	requestee := ""
	nameAndStatus := token
	if open := strings.Index(token, "("); open >= 0 {
		if !strings.HasSuffix(token, ")") {
			return domain.Flag{}, fmt.Errorf("malformed flag token: %q", token)
		}
		nameAndStatus = token[:open]
		requestee = token[open+1 : len(token)-1]
	}
	if len(nameAndStatus) < 2 {
		return domain.Flag{}, fmt.Errorf("malformed flag token: %q", token)
	}
	status := domain.FlagStatus(nameAndStatus[len(nameAndStatus)-1:])
	switch status {
	case domain.FlagRequested, domain.FlagGranted, domain.FlagDenied:
	default:
		return domain.Flag{}, fmt.Errorf("unexpected flag status in %q", token)
	}
	return domain.Flag{
		Name:      nameAndStatus[:len(nameAndStatus)-1],
		Status:    status,
		Requestee: requestee,
	}, nil
}

// isEmail mirrors the loose address test the history data needs: account
// identifiers are the only values that carry an @.
func isEmail(val any) bool {
	s, ok := val.(string)
	return ok && strings.Contains(s, "@")
}

// equalValues compares a coerced history value with a working-record
// value, bridging JSON's float64 numbers and the registry's int64s.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := asInt64(a); ok {
		if nb, ok := asInt64(b); ok {
			return na == nb
		}
		return false
	}
	return a == b
}

func asInt64(val any) (int64, bool) {
	switch n := val.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
