package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ScalarException tolerates a current-vs-expected mismatch for one
// field on one bug. NewValue narrows the entry to a specific expected
// value; empty matches any.
type ScalarException struct {
	Field    string `json:"field"`
	BugID    int64  `json:"bug_id"`
	NewValue string `json:"new_value,omitempty"`
}

// ListException tolerates one list token being absent during undo on
// one bug.
type ListException struct {
	BugID int64  `json:"bug_id"`
	Value string `json:"value"`
}

// Allowlist is the table of historically-known inconsistencies the
// replay engine tolerates instead of failing. It is configuration, not
// logic: the engine queries it and never mutates it. Entries carry no
// root-cause knowledge beyond "observed in the production corpus".
type Allowlist struct {
	// Field-presence: fields tolerated absent from the record.
	MissingFieldPrefixes []string            `json:"missing_field_prefixes"`
	RetiredFields        []string            `json:"retired_fields"`
	MissingFieldProducts map[string][]string `json:"missing_field_products"`

	// Scalar-change: tolerated current-vs-expected mismatches.
	ScalarMismatches []ScalarException `json:"scalar_mismatches"`

	// List-change: tokens tolerated missing during undo.
	RetiredListTokens []string        `json:"retired_list_tokens"`
	ListExceptions    []ListException `json:"list_exceptions"`

	// Flag-change exceptions.
	DuplicateFlagTargets    []int64  `json:"duplicate_flag_targets"`
	SkipAttachmentFlagBugs  []int64  `json:"skip_attachment_flag_bugs"`
	RetiredFlagPrefixes     []string `json:"retired_flag_prefixes"`
	InconsistentFlagAddBugs []int64  `json:"inconsistent_flag_add_bugs"`
}

// DefaultAllowlist returns the compiled-in exception table observed on
// the production corpus.
func DefaultAllowlist() *Allowlist {
	retiredStrFields := []string{"cf_has_regression_range", "cf_has_str"}
	return &Allowlist{
		MissingFieldPrefixes: []string{"cf_status_", "cf_tracking_"},
		RetiredFields: []string{
			"cf_feature_b2g",
			"cf_blocking_basecamp",
			"cf_colo_site",
		},
		// Products migrated off the custom STR/regression-range fields;
		// their bugs no longer carry them at all.
		MissingFieldProducts: map[string][]string{
			"DevTools":             retiredStrFields,
			"DevTools Graveyard":   retiredStrFields,
			"NSS":                  retiredStrFields,
			"Tech Evangelism":      retiredStrFields,
			"Firefox Build System": retiredStrFields,
			"WebExtensions":        retiredStrFields,
			"Firefox Graveyard":    retiredStrFields,
		},
		ScalarMismatches: []ScalarException{
			{Field: "cf_blocking_20", BugID: 538189},
			{Field: "cf_status_firefox57", BugID: 1382577, NewValue: "fixed"},
			{Field: "priority", BugID: 1337747},
			{Field: "url", BugID: 740365},
			{Field: "whiteboard", BugID: 768438},
			{Field: "target_milestone", BugID: 1113742},
			{Field: "remaining_time", BugID: 1212093},
			{Field: "cf_tracking_firefox60", BugID: 1440656},
		},
		RetiredListTokens: []string{
			"checkin-needed",
			"#relman/triage/defer-to-group",
			"sec-incident",
		},
		ListExceptions: []ListException{
			{BugID: 1243051, Value: "ateam-marionette-server"},
			{BugID: 949409, Value: "intermittent-failure"},
			{BugID: 1257155, Value: "dom-triaged"},
		},
		DuplicateFlagTargets:    []int64{1052536, 1201115, 1213517},
		SkipAttachmentFlagBugs:  []int64{1421395},
		RetiredFlagPrefixes:     []string{"approval-comm-beta", "approval-comm-aurora"},
		InconsistentFlagAddBugs: []int64{1049813, 1303182},
	}
}

// LoadAllowlist reads a JSON exception table from disk, for deployments
// that maintain the table outside the binary.
func LoadAllowlist(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	var list Allowlist
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	return &list, nil
}

// ExpectedMissingField reports whether field being absent from the bug
// is a known condition rather than corrupt history.
func (a *Allowlist) ExpectedMissingField(bugProduct, field string) bool {
	for _, prefix := range a.MissingFieldPrefixes {
		if strings.HasPrefix(field, prefix) {
			return true
		}
	}
	for _, retired := range a.RetiredFields {
		if field == retired {
			return true
		}
	}
	for _, allowed := range a.MissingFieldProducts[bugProduct] {
		if field == allowed {
			return true
		}
	}
	return false
}

// ExpectedScalarMismatch reports whether the current value differing
// from the value a change claims it should hold is tolerated. Email
// values are always tolerated (accounts rename and history does not
// track it), as are free-text values differing only by trailing
// whitespace.
func (a *Allowlist) ExpectedScalarMismatch(bugID int64, field string, current, expected any) bool {
	if isEmail(current) || isEmail(expected) {
		return true
	}
	if cur, ok := current.(string); ok {
		if exp, ok := expected.(string); ok {
			if strings.TrimRight(cur, " \t") == strings.TrimRight(exp, " \t") {
				return true
			}
		}
	}
	expectedStr := fmt.Sprint(expected)
	for _, exc := range a.ScalarMismatches {
		if exc.Field != field || exc.BugID != bugID {
			continue
		}
		if exc.NewValue == "" || exc.NewValue == expectedStr {
			return true
		}
	}
	return false
}

// ExpectedListMiss reports whether a list token being absent when an
// undo wants to remove it is tolerated.
func (a *Allowlist) ExpectedListMiss(bugID int64, value any) bool {
	if isEmail(value) {
		return true
	}
	token, ok := value.(string)
	if !ok {
		return false
	}
	for _, retired := range a.RetiredListTokens {
		if token == retired {
			return true
		}
	}
	for _, exc := range a.ListExceptions {
		if exc.BugID == bugID && exc.Value == token {
			return true
		}
	}
	return false
}

// TolerateDuplicateFlag reports whether targetID (a bug or attachment)
// may legitimately hold several identical flags.
func (a *Allowlist) TolerateDuplicateFlag(targetID int64) bool {
	return containsID(a.DuplicateFlagTargets, targetID)
}

// SkipAttachmentFlags reports whether attachment flag history for the
// bug is known-broken and must be ignored wholesale.
func (a *Allowlist) SkipAttachmentFlags(bugID int64) bool {
	return containsID(a.SkipAttachmentFlagBugs, bugID)
}

// RetiredFlagToken reports whether the flag kind no longer exists and
// its removal should not be matched.
func (a *Allowlist) RetiredFlagToken(token string) bool {
	for _, prefix := range a.RetiredFlagPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// SkipFlagReadd reports whether re-adding removed flags is suppressed
// for the bug because its recorded flag history is inconsistent.
func (a *Allowlist) SkipFlagReadd(bugID int64) bool {
	return containsID(a.InconsistentFlagAddBugs, bugID)
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
