package errors

// NoMatchingProvidersError means filtering produced an empty candidate set.
// The engine never retries it; the caller should relax constraints.
type NoMatchingProvidersError struct{}

func (e NoMatchingProvidersError) Error() string {
	return "no matching providers"
}

// NoBidsReceivedError means the bid-collection window elapsed with zero bids.
type NoBidsReceivedError struct{}

func (e NoBidsReceivedError) Error() string {
	return "no bids received"
}

// BidAcceptanceFailedError wraps a remote acceptance failure. Acceptance is
// never retried automatically: a retry risks double-charging or a conflicting
// lease, so the cause is surfaced to the caller instead.
type BidAcceptanceFailedError struct {
	Err error
}

func (e BidAcceptanceFailedError) Error() string {
	return "bid acceptance failed: " + e.Err.Error()
}

func (e BidAcceptanceFailedError) Unwrap() error {
	return e.Err
}

// CatalogUnavailableError means the marketplace could not be reached during
// filtering or bid collection. Fatal for the routing attempt.
type CatalogUnavailableError struct {
	Err error
}

func (e CatalogUnavailableError) Error() string {
	return "catalog unavailable: " + e.Err.Error()
}

func (e CatalogUnavailableError) Unwrap() error {
	return e.Err
}

// RoutingInProgressError is returned when a second routing attempt is started
// for a job id that already has one in flight.
type RoutingInProgressError struct {
	JobID string
}

func (e RoutingInProgressError) Error() string {
	return "routing already in progress for job " + e.JobID
}
