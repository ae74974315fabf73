package domain

import "time"

// Phase is one state of a routing attempt.
type Phase string

const (
	PhaseSubmitted            Phase = "submitted"
	PhaseFiltering            Phase = "filtering"
	PhaseRanking              Phase = "ranking"
	PhaseBidCollection        Phase = "bid_collection"
	PhaseBidsReady            Phase = "bids_ready"
	PhaseAwaitingManualAccept Phase = "awaiting_manual_accept"
	PhaseAcceptingBid         Phase = "accepting_bid"
	PhaseActive               Phase = "active"
	PhaseClosed               Phase = "closed"
	PhaseFailed               Phase = "failed"
	PhaseCancelled            Phase = "cancelled"
)

// Terminal reports whether the phase ends a routing attempt. Active is
// terminal for the engine; closing the lease later is a separate call.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseAwaitingManualAccept, PhaseActive, PhaseClosed, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// JobHandle identifies an open deployment request on the marketplace.
type JobHandle struct {
	JobID        string `json:"job_id"`
	DeploymentID string `json:"deployment_id"`
}

// Manifest is the compiled deployment manifest the marketplace hands back
// when a request is created. The broker treats it as opaque and returns it
// verbatim when accepting a bid.
type Manifest struct {
	Raw []byte `json:"raw"`
}

// Bid is a price offer from a provider against an open deployment request.
type Bid struct {
	ID           string    `json:"id"`
	ProviderID   string    `json:"provider_id"`
	PricePerHour float64   `json:"price_per_hour"`
	CreatedAt    time.Time `json:"created_at"`
}

// Lease is the binding contract created by accepting a bid.
type Lease struct {
	ID           string  `json:"id"`
	ProviderID   string  `json:"provider_id"`
	Status       string  `json:"status"`
	PricePerHour float64 `json:"price_per_hour"`
}

// RouteLogEntry is one line of a routing attempt's audit trail. The ordered
// sequence of entries is the only observability mechanism of the state
// machine, complete enough to replay every decision without re-querying the
// marketplace.
type RouteLogEntry struct {
	Time    time.Time      `json:"time"`
	JobID   string         `json:"job_id"`
	Phase   Phase          `json:"phase"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// RouteResult is what a routing attempt hands back to the caller. Reason is
// always human-readable; a terminal state with no explanation is a defect.
type RouteResult struct {
	JobID      string           `json:"job_id"`
	FinalState Phase            `json:"final_state"`
	Reason     string           `json:"reason"`
	Handle     *JobHandle       `json:"handle,omitempty"`
	Manifest   *Manifest        `json:"manifest,omitempty"`
	Candidates []RankedProvider `json:"candidates,omitempty"`
	Bids       []Bid            `json:"bids,omitempty"`
	Accepted   *Bid             `json:"accepted,omitempty"`
	Lease      *Lease           `json:"lease,omitempty"`
	Err        error            `json:"-"`
}
