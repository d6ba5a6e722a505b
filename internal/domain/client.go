package domain

// ClientRole scopes what an API client may do.
type ClientRole string

const (
	// ClientRolePipeline reads records and snapshots.
	ClientRolePipeline ClientRole = "PIPELINE"
	// ClientRoleAdmin additionally validates and purges the corpus.
	ClientRoleAdmin ClientRole = "ADMIN"
)

// APIClient is an authenticated machine caller (a feature-extraction
// pipeline or a maintenance operator).
type APIClient struct {
	ID   string
	Role ClientRole
}
