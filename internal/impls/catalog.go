package impls

import (
	"context"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

// ListFilters are hints forwarded to the marketplace when fetching the
// provider snapshot. The authoritative filtering still happens broker-side.
type ListFilters struct {
	Region string
	GPU    bool
}

// Catalog is the marketplace console the broker routes through. Providers
// returned by ListProviders are immutable snapshots for one matching round.
type Catalog interface {
	ListProviders(ctx context.Context, hints ListFilters) ([]domain.Provider, error)
	CreateDeploymentRequest(ctx context.Context, req domain.JobRequirements) (domain.JobHandle, domain.Manifest, error)
	ListBids(ctx context.Context, handle domain.JobHandle) ([]domain.Bid, error)
	AcceptBid(ctx context.Context, handle domain.JobHandle, bidID string, manifest domain.Manifest) (*domain.Lease, error)
	CloseDeployment(ctx context.Context, handle domain.JobHandle) error
}
