package impls

import (
	"context"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

// RouteArchiver persists the full audit trail of a terminal routing attempt.
// Archiving is best effort; a failure is logged by the orchestrator, never
// surfaced into the routing result.
type RouteArchiver interface {
	Archive(ctx context.Context, jobID string, entries []domain.RouteLogEntry) error
}
