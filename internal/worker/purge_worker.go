package worker

import (
	"github.com/spec-kit/bug-snapshot-service/internal/service"
)

// StartPurgeWorker registers the corpus-maintenance handlers that purge
// records found inconsistent during validation.
func StartPurgeWorker(snapshotService *service.SnapshotService) {
	if snapshotService == nil {
		return
	}
	snapshotService.RegisterHandlers()
}
