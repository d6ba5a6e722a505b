package snapshot

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

// boundarySlack tolerates clock skew between history timestamps and
// comment/attachment creation times.
const boundarySlack = 3 * time.Second

// Predicate selects the change that marks the rollback boundary.
type Predicate func(domain.Change) bool

// Severity tags a diagnostic emitted during a lenient rollback.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one inconsistency observed and tolerated while rolling
// a record back.
type Diagnostic struct {
	BugID    int64    `json:"bug_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// InconsistencyError aborts a strict-mode rollback.
type InconsistencyError struct {
	BugID   int64
	Message string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("bug %d: %s", e.BugID, e.Message)
}

// skipFields is history the tracker recorded unreliably; undoing these
// changes corrupts more state than it restores, so they are ignored.
var skipFields = map[string]struct{}{
	"component":           {},
	"qa_contact":          {},
	"cf_fx_iteration":     {},
	"cf_crash_signature":  {},
	"cf_backlog":          {},
	"bug_mentor":          {},
	"cf_user_story":       {},
	"cf_rank":             {},
	"alias":               {},
	"restrict_comments":   {},
	"longdescs.isprivate": {},
	"version":             {},
}

// Engine reconstructs a bug's state at an earlier point by undoing its
// recorded history newest-first.
type Engine struct {
	registry *Registry
	allow    *Allowlist
	logger   *zap.Logger
}

// NewEngine builds an engine with the given exception table. A nil
// allowlist uses the compiled-in defaults; a nil logger is silenced.
func NewEngine(allow *Allowlist, logger *zap.Logger) *Engine {
	if allow == nil {
		allow = DefaultAllowlist()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: NewRegistry(), allow: allow, logger: logger}
}

// target marks where the reverse walk stops and which timestamp the
// post-processing trims to.
type target struct {
	marked      bool
	entryIndex  int
	changeIndex int
	boundary    time.Time
}

// selectTarget locates the rollback boundary before replay begins. A nil
// predicate targets creation time and the walk consumes all history. A
// predicate that never matches means the rollback is a no-op.
func selectTarget(bug *domain.BugRecord, when Predicate) (target, bool, error) {
	if when == nil {
		created, err := bug.CreationTime()
		if err != nil {
			return target{}, false, err
		}
		return target{boundary: created}, true, nil
	}
	for i, entry := range bug.History {
		for j, change := range entry.Changes {
			if when(change) {
				return target{marked: true, entryIndex: i, changeIndex: j, boundary: entry.When}, true, nil
			}
		}
	}
	return target{}, false, nil
}

// Rollback mutates bug in place to its state at the selected boundary
// and returns it. In strict mode the first detected inconsistency aborts
// with an InconsistencyError; in lenient mode inconsistencies are
// collected as diagnostics and the engine proceeds with the pre-change
// value. The caller owns the record; pass a Clone to keep the original.
func (e *Engine) Rollback(bug *domain.BugRecord, when Predicate, strict bool) (*domain.BugRecord, []Diagnostic, error) {
	tgt, ok, err := selectTarget(bug, when)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return bug, nil, nil
	}

	r := &run{engine: e, bug: bug, strict: strict, newestProduct: bug.Product()}

walk:
	for i := len(bug.History) - 1; i >= 0; i-- {
		entry := &bug.History[i]
		for j := range entry.Changes {
			if err := r.undoChange(&entry.Changes[j]); err != nil {
				return nil, r.diags, err
			}
			if tgt.marked && i == tgt.entryIndex && j == tgt.changeIndex {
				break walk
			}
		}
	}

	r.trimToBoundary(tgt.boundary)
	r.ensureFirstComment(tgt.boundary)
	return bug, r.diags, nil
}

// run is the mutable state of one rollback call.
type run struct {
	engine        *Engine
	bug           *domain.BugRecord
	strict        bool
	newestProduct string
	diags         []Diagnostic
}

// problem is the single escalation primitive: strict mode returns an
// error that aborts the call, lenient mode records a diagnostic and
// lets the caller continue.
func (r *run) problem(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if r.strict {
		return &InconsistencyError{BugID: r.bug.ID, Message: msg}
	}
	r.diags = append(r.diags, Diagnostic{BugID: r.bug.ID, Severity: SeverityWarning, Message: msg})
	r.engine.logger.Warn("rollback inconsistency",
		zap.Int64("bug_id", r.bug.ID),
		zap.String("message", msg))
	return nil
}

// note records a log-only observation that never escalates.
func (r *run) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.diags = append(r.diags, Diagnostic{BugID: r.bug.ID, Severity: SeverityInfo, Message: msg})
	r.engine.logger.Info("rollback note",
		zap.Int64("bug_id", r.bug.ID),
		zap.String("message", msg))
}

func (r *run) undoChange(change *domain.Change) error {
	field := change.FieldName

	if _, skip := skipFields[field]; skip {
		return nil
	}
	if change.AttachmentID != 0 && strings.HasPrefix(field, "attachments") {
		return nil
	}

	switch field {
	case "flagtypes.name":
		return r.undoFlagChange(change)
	case "comment_tag":
		// Comment tagging is not modeled.
		return nil
	case "comment_revision":
		return r.undoCommentRevision(change)
	}

	current, present := r.bug.Fields[field]

	if change.Added != "---" && !present {
		if !r.engine.allow.ExpectedMissingField(r.newestProduct, field) {
			if err := r.problem("field %s is not in bug", field); err != nil {
				return err
			}
		}
	}

	if list, ok := current.([]any); present && ok && r.engine.registry.Kind(field, current) == KindList {
		return r.undoListChange(change, field, list)
	}
	return r.undoScalarChange(change, field, current, present)
}

func (r *run) undoListChange(change *domain.Change, field string, list []any) error {
	added := change.Added
	// Trailing separator artifact the tracker produced on see_also.
	if field == "see_also" {
		added = strings.TrimSuffix(added, ", ")
	}

	if added != "" {
		for _, token := range strings.Split(added, ", ") {
			value, err := r.engine.registry.Coerce(field, token)
			if err != nil {
				if perr := r.problem("field %s: %v", field, err); perr != nil {
					return perr
				}
				continue
			}
			if isEmail(value) {
				// Account addresses change over time and renames are
				// not tracked; removal cannot be matched reliably.
				continue
			}
			idx := indexOfValue(list, value)
			if idx < 0 {
				if r.engine.allow.ExpectedListMiss(r.bug.ID, value) {
					continue
				}
				if err := r.problem("%v is not in field %s %v", value, field, list); err != nil {
					return err
				}
				continue
			}
			list = append(list[:idx], list[idx+1:]...)
		}
	}

	if change.Removed != "" {
		for _, token := range strings.Split(change.Removed, ", ") {
			value, err := r.engine.registry.Coerce(field, token)
			if err != nil {
				if perr := r.problem("field %s: %v", field, err); perr != nil {
					return perr
				}
				value = token
			}
			list = append(list, value)
		}
	}

	r.bug.Fields[field] = list
	return nil
}

func (r *run) undoScalarChange(change *domain.Change, field string, current any, present bool) error {
	oldValue, err := r.engine.registry.Coerce(field, change.Removed)
	if err != nil {
		if perr := r.problem("field %s: %v", field, err); perr != nil {
			return perr
		}
		oldValue = change.Removed
	}
	newValue, err := r.engine.registry.Coerce(field, change.Added)
	if err != nil {
		if perr := r.problem("field %s: %v", field, err); perr != nil {
			return perr
		}
		newValue = change.Added
	}

	if present && !equalValues(current, newValue) {
		if !r.engine.allow.ExpectedScalarMismatch(r.bug.ID, field, current, newValue) {
			if err := r.problem("current value for field %s: %v differs from previous value: %v", field, current, newValue); err != nil {
				return err
			}
		}
	}

	r.bug.Fields[field] = oldValue
	return nil
}

func (r *run) undoFlagChange(change *domain.Change) error {
	flags := &r.bug.Flags
	targetID := r.bug.ID
	if change.AttachmentID != 0 {
		if r.engine.allow.SkipAttachmentFlags(r.bug.ID) {
			return nil
		}
		found := false
		for i := range r.bug.Attachments {
			if r.bug.Attachments[i].ID == change.AttachmentID {
				flags = &r.bug.Attachments[i].Flags
				targetID = change.AttachmentID
				found = true
				break
			}
		}
		if !found {
			// Attachment hidden from the record; the change applies to
			// the bug's own flags.
			flags = &r.bug.Flags
			targetID = r.bug.ID
		}
	}

	// Added side: flags present after the change, removed now.
	if change.Added != "" {
		for _, token := range strings.Split(change.Added, ", ") {
			if r.engine.allow.RetiredFlagToken(token) {
				continue
			}
			if isQuestionFlag(token) {
				// Several identical requests can be outstanding at once
				// and history cannot tell the instances apart.
				continue
			}
			flag, err := parseFlagChange(token)
			if err != nil {
				if perr := r.problem("%v", err); perr != nil {
					return perr
				}
				continue
			}
			matches := matchFlags(*flags, flag)
			if len(matches) == 0 {
				if !r.engine.allow.TolerateDuplicateFlag(targetID) {
					if err := r.problem("flag %s not found on %d", token, targetID); err != nil {
						return err
					}
				}
				continue
			}
			if len(matches) > 1 && !r.engine.allow.TolerateDuplicateFlag(targetID) {
				if err := r.problem("flag %s found %d times on %d", token, len(matches), targetID); err != nil {
					return err
				}
			}
			idx := matches[len(matches)-1]
			*flags = append((*flags)[:idx], (*flags)[idx+1:]...)
		}
	}

	// Removed side: flags absent before the change, restored now.
	if change.Removed != "" {
		if r.engine.allow.SkipFlagReadd(r.bug.ID) {
			return nil
		}
		for _, token := range strings.Split(change.Removed, ", ") {
			flag, err := parseFlagChange(token)
			if err != nil {
				if perr := r.problem("%v", err); perr != nil {
					return perr
				}
				continue
			}
			*flags = append(*flags, flag)
		}
	}

	return nil
}

func (r *run) undoCommentRevision(change *domain.Change) error {
	for i := range r.bug.Comments {
		comment := &r.bug.Comments[i]
		if comment.ID != change.CommentID {
			continue
		}
		if change.CommentCount != nil && comment.Count != *change.CommentCount {
			r.note("comment %d count %d does not match change count %d",
				comment.ID, comment.Count, *change.CommentCount)
		}
		comment.Text = change.Removed
		return nil
	}
	return r.problem("comment %d not found for revision undo", change.CommentID)
}

// trimToBoundary drops comments and attachments created after the
// boundary, with slack for clock skew.
func (r *run) trimToBoundary(boundary time.Time) {
	cutoff := boundary.Add(boundarySlack)

	comments := r.bug.Comments[:0]
	for _, comment := range r.bug.Comments {
		if !comment.CreationTime.After(cutoff) {
			comments = append(comments, comment)
		}
	}
	r.bug.Comments = comments

	attachments := r.bug.Attachments[:0]
	for _, attachment := range r.bug.Attachments {
		if !attachment.CreationTime.After(cutoff) {
			attachments = append(attachments, attachment)
		}
	}
	r.bug.Attachments = attachments
}

// ensureFirstComment restores the invariant that every record starts
// with a count-0 description comment. Records fetched with the first
// comment hidden (or trimmed to before any surviving comment) get a
// synthetic placeholder.
func (r *run) ensureFirstComment(boundary time.Time) {
	creation := boundary
	if parsed, err := r.bug.CreationTime(); err == nil {
		creation = parsed
	}

	if len(r.bug.Comments) == 0 {
		r.bug.Comments = []domain.Comment{{
			Count:        0,
			Text:         "",
			Creator:      r.bug.Creator(),
			CreationTime: creation,
		}}
		return
	}
	if r.bug.Comments[0].Count != 0 {
		r.bug.Comments = append([]domain.Comment{{
			Count:        0,
			Text:         "",
			Creator:      r.bug.Creator(),
			CreationTime: creation,
		}}, r.bug.Comments...)
	}
}

func matchFlags(flags []domain.Flag, want domain.Flag) []int {
	var matches []int
	for i, flag := range flags {
		if flag.Name == want.Name && flag.Status == want.Status &&
			(want.Requestee == "" || flag.Requestee == want.Requestee) {
			matches = append(matches, i)
		}
	}
	return matches
}

func indexOfValue(list []any, value any) int {
	for i, item := range list {
		if equalValues(item, value) {
			return i
		}
	}
	return -1
}
