package snapshot

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

// Failure pairs a record with the error that made its strict rollback
// fail.
type Failure struct {
	Bug *domain.BugRecord
	Err error
}

// FindInconsistent runs a strict full-history rollback over every record
// and collects the ones whose history cannot be replayed cleanly. One
// malformed record never aborts the sweep: any error or panic is
// captured with the record and the sweep moves on. Callers purge the
// returned records and re-fetch them from the corpus provider.
func (e *Engine) FindInconsistent(bugs iter.Seq[*domain.BugRecord]) []Failure {
	var failures []Failure
	for bug := range bugs {
		if err := e.strictCheck(bug); err != nil {
			e.logger.Error("inconsistent record",
				zap.Int64("bug_id", bug.ID),
				zap.Error(err))
			failures = append(failures, Failure{Bug: bug, Err: err})
		}
	}
	return failures
}

// strictCheck replays a working copy so the caller's record stays
// pristine for the failure report.
func (e *Engine) strictCheck(bug *domain.BugRecord) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("bug %d: panic during rollback: %v", bug.ID, rec)
		}
	}()
	_, _, err = e.Rollback(bug.Clone(), nil, true)
	return err
}
