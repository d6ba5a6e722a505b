package dto

import (
	"time"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
	"github.com/spec-kit/bug-snapshot-service/internal/service"
)

// TokenRequest exchanges a client API key for a bearer token.
type TokenRequest struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SnapshotRequest selects a rollback boundary for a record.
type SnapshotRequest struct {
	Match  service.ChangeMatch `json:"match"`
	Strict bool                `json:"strict"`
}

// DiagnosticPayload is one tolerated inconsistency in a lenient replay.
type DiagnosticPayload struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SnapshotResponse carries a rolled-back record.
type SnapshotResponse struct {
	Bug         *domain.BugRecord   `json:"bug"`
	Diagnostics []DiagnosticPayload `json:"diagnostics"`
	FromCache   bool                `json:"from_cache"`
}

// NewSnapshotResponse maps a service result.
func NewSnapshotResponse(result *service.SnapshotResult) SnapshotResponse {
	diags := make([]DiagnosticPayload, 0, len(result.Diagnostics))
	for _, diag := range result.Diagnostics {
		diags = append(diags, DiagnosticPayload{
			Severity: string(diag.Severity),
			Message:  diag.Message,
		})
	}
	return SnapshotResponse{
		Bug:         result.Bug,
		Diagnostics: diags,
		FromCache:   result.FromCache,
	}
}

// ValidationFailure is one record that failed strict replay.
type ValidationFailure struct {
	BugID int64  `json:"bug_id"`
	Error string `json:"error"`
}

// ValidationResponse summarizes a corpus sweep.
type ValidationResponse struct {
	Checked  int                 `json:"checked"`
	Failed   int                 `json:"failed"`
	Purged   bool                `json:"purged"`
	Failures []ValidationFailure `json:"failures"`
}

// NewValidationResponse maps a validation report.
func NewValidationResponse(report *service.ValidationReport, purged bool) ValidationResponse {
	failures := make([]ValidationFailure, 0, len(report.Failures))
	for _, failure := range report.Failures {
		failures = append(failures, ValidationFailure{
			BugID: failure.Bug.ID,
			Error: failure.Err.Error(),
		})
	}
	return ValidationResponse{
		Checked:  report.Checked,
		Failed:   len(failures),
		Purged:   purged,
		Failures: failures,
	}
}

// IngestRequest uploads records into the corpus store.
type IngestRequest struct {
	Bugs []*domain.BugRecord `json:"bugs"`
}

// IngestResponse reports how many records were stored.
type IngestResponse struct {
	Stored int `json:"stored"`
}
