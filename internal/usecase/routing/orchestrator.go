package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/magicaleks/qudata-broker/internal/domain"
	dberrors "github.com/magicaleks/qudata-broker/internal/domain/errors"
	"github.com/magicaleks/qudata-broker/internal/impls"
	"github.com/magicaleks/qudata-broker/internal/usecase/matching"
)

const (
	DefaultBidTimeout   = 60 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Options are the orchestrator-wide defaults; RouteRequest can override the
// bid window and weights per call. A nil Weights means the stock defaults.
type Options struct {
	BidTimeout   time.Duration
	PollInterval time.Duration
	Weights      *domain.ScoreWeights
}

// Orchestrator drives one job from "requirements submitted" to a terminal
// outcome. It is stateless between calls except for the in-flight run guard:
// at most one routing attempt per job id at a time.
type Orchestrator struct {
	catalog impls.Catalog
	matcher *matching.Engine
	logger  impls.Logger
	archive impls.RouteArchiver
	opts    Options

	mu     sync.Mutex
	active map[string]struct{}
}

// NewOrchestrator wires the orchestrator. archive may be nil.
func NewOrchestrator(catalog impls.Catalog, matcher *matching.Engine, logger impls.Logger, archive impls.RouteArchiver, opts Options) *Orchestrator {
	if opts.BidTimeout <= 0 {
		opts.BidTimeout = DefaultBidTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Orchestrator{
		catalog: catalog,
		matcher: matcher,
		logger:  logger,
		archive: archive,
		opts:    opts,
		active:  make(map[string]struct{}),
	}
}

// RouteRequest is one routing attempt. OnLog, when set, is invoked
// synchronously once per RouteLog entry, in transition order.
type RouteRequest struct {
	JobID        string
	Requirements domain.JobRequirements
	AutoAccept   bool
	BidTimeout   time.Duration
	Weights      *domain.ScoreWeights
	OnLog        func(domain.RouteLogEntry)
}

// run is the mutable state of one attempt, owned exclusively by the
// goroutine executing RouteJob.
type run struct {
	jobID   string
	req     RouteRequest
	entries []domain.RouteLogEntry
}

func (r *run) emit(phase domain.Phase, msg string, fields map[string]any) {
	entry := domain.RouteLogEntry{
		Time:    time.Now(),
		JobID:   r.jobID,
		Phase:   phase,
		Message: msg,
		Fields:  fields,
	}
	r.entries = append(r.entries, entry)
	if r.req.OnLog != nil {
		r.req.OnLog(entry)
	}
}

// RouteJob executes the full state machine for one job. All failures come
// back as typed outcomes on the result, never as panics, and every terminal
// result carries a human-readable reason drawn from the route log.
func (o *Orchestrator) RouteJob(ctx context.Context, req RouteRequest) domain.RouteResult {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if req.BidTimeout <= 0 {
		req.BidTimeout = o.opts.BidTimeout
	}

	if !o.acquire(req.JobID) {
		err := dberrors.RoutingInProgressError{JobID: req.JobID}
		return domain.RouteResult{
			JobID:      req.JobID,
			FinalState: domain.PhaseFailed,
			Reason:     err.Error(),
			Err:        err,
		}
	}
	defer o.release(req.JobID)

	r := &run{jobID: req.JobID, req: req}
	result := o.route(ctx, r)
	result.JobID = req.JobID

	o.logger.Info("job %s routing finished: %s (%s)", req.JobID, result.FinalState, result.Reason)
	o.archiveRun(r)
	return result
}

func (o *Orchestrator) route(ctx context.Context, r *run) domain.RouteResult {
	req := r.req
	r.emit(domain.PhaseSubmitted, "requirements submitted", map[string]any{
		"auto_accept": req.AutoAccept,
		"bid_timeout": req.BidTimeout.String(),
	})

	hints := impls.ListFilters{GPU: req.Requirements.WantsGPU()}
	if req.Requirements.Region != nil {
		hints.Region = *req.Requirements.Region
	}
	providers, err := o.catalog.ListProviders(ctx, hints)
	if err != nil {
		if ctx.Err() != nil {
			return o.cancelled(r, ctx.Err(), nil, nil)
		}
		return o.fail(r, dberrors.CatalogUnavailableError{Err: err}, nil)
	}

	filtered := o.matcher.Filter(req.Requirements, providers)
	r.emit(domain.PhaseFiltering, fmt.Sprintf("filtered %d of %d providers", len(filtered), len(providers)), map[string]any{
		"candidates_before": len(providers),
		"candidates_after":  len(filtered),
	})
	if len(filtered) == 0 {
		return o.fail(r, dberrors.NoMatchingProvidersError{}, nil)
	}

	weights := req.Weights
	if weights == nil {
		weights = o.opts.Weights
	}
	ranked := o.matcher.Rank(req.Requirements, filtered, weights)
	r.emit(domain.PhaseRanking, fmt.Sprintf("ranked %d candidates", len(ranked)), map[string]any{
		"candidates":   len(ranked),
		"top_provider": ranked[0].Provider.ID,
		"top_score":    ranked[0].Score.Total,
	})

	handle, manifest, err := o.catalog.CreateDeploymentRequest(ctx, req.Requirements)
	if err != nil {
		if ctx.Err() != nil {
			return o.cancelled(r, ctx.Err(), nil, ranked)
		}
		return o.fail(r, dberrors.CatalogUnavailableError{Err: err}, ranked)
	}
	handle.JobID = r.jobID

	r.emit(domain.PhaseBidCollection, fmt.Sprintf("collecting bids for up to %s", req.BidTimeout), map[string]any{
		"deployment_id": handle.DeploymentID,
		"window":        req.BidTimeout.String(),
	})

	bids, err := o.collectBids(ctx, handle, req.BidTimeout, req.AutoAccept)
	if err != nil {
		if ctx.Err() != nil {
			return o.cancelled(r, ctx.Err(), &handle, ranked)
		}
		return o.fail(r, dberrors.CatalogUnavailableError{Err: err}, ranked)
	}
	if len(bids) == 0 {
		return o.fail(r, dberrors.NoBidsReceivedError{}, ranked)
	}

	r.emit(domain.PhaseBidsReady, fmt.Sprintf("%d bids received", len(bids)), map[string]any{
		"bid_count": len(bids),
	})

	if !req.AutoAccept {
		r.emit(domain.PhaseAwaitingManualAccept, "auto-accept disabled, returning bids to caller", nil)
		return domain.RouteResult{
			FinalState: domain.PhaseAwaitingManualAccept,
			Reason:     "awaiting manual accept",
			Handle:     &handle,
			Manifest:   &manifest,
			Candidates: ranked,
			Bids:       bids,
		}
	}

	best := lowestBid(bids)
	r.emit(domain.PhaseAcceptingBid, fmt.Sprintf("accepting bid %s from %s at %.4f/h", best.ID, best.ProviderID, best.PricePerHour), map[string]any{
		"bid_id":      best.ID,
		"provider_id": best.ProviderID,
		"price":       best.PricePerHour,
	})

	lease, err := o.catalog.AcceptBid(ctx, handle, best.ID, manifest)
	if err != nil {
		if ctx.Err() != nil {
			return o.cancelled(r, ctx.Err(), &handle, ranked)
		}
		result := o.fail(r, dberrors.BidAcceptanceFailedError{Err: err}, ranked)
		result.Handle = &handle
		result.Bids = bids
		return result
	}

	r.emit(domain.PhaseActive, fmt.Sprintf("lease %s active on %s", lease.ID, lease.ProviderID), map[string]any{
		"lease_id":    lease.ID,
		"provider_id": lease.ProviderID,
		"price":       lease.PricePerHour,
	})
	return domain.RouteResult{
		FinalState: domain.PhaseActive,
		Reason:     "lease active",
		Handle:     &handle,
		Manifest:   &manifest,
		Candidates: ranked,
		Bids:       bids,
		Accepted:   &best,
		Lease:      lease,
	}
}

// collectBids polls the catalog until the window elapses, the caller cancels,
// or (with auto-accept on) the first bid arrives. Cancellation is checked on
// every tick, not only at entry.
func (o *Orchestrator) collectBids(ctx context.Context, handle domain.JobHandle, window time.Duration, autoAccept bool) ([]domain.Bid, error) {
	poll := o.opts.PollInterval
	if poll > window {
		poll = window
	}

	deadline := time.Now().Add(window)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var bids []domain.Bid
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			got, err := o.catalog.ListBids(ctx, handle)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, err
			}
			bids = got
			if autoAccept && len(bids) > 0 {
				return bids, nil
			}
			if !time.Now().Before(deadline) {
				return bids, nil
			}
		}
	}
}

// AcceptBid is the manual-accept continuation used after a routing attempt
// ends in AwaitingManualAccept. Acceptance is never retried.
func (o *Orchestrator) AcceptBid(ctx context.Context, handle domain.JobHandle, bid domain.Bid, manifest domain.Manifest) (*domain.Lease, error) {
	lease, err := o.catalog.AcceptBid(ctx, handle, bid.ID, manifest)
	if err != nil {
		o.logger.Error("job %s: accept bid %s failed: %v", handle.JobID, bid.ID, err)
		return nil, dberrors.BidAcceptanceFailedError{Err: err}
	}
	o.logger.Info("job %s: lease %s active on %s", handle.JobID, lease.ID, lease.ProviderID)
	return lease, nil
}

// CloseJob closes an active deployment through the catalog.
func (o *Orchestrator) CloseJob(ctx context.Context, handle domain.JobHandle) error {
	if err := o.catalog.CloseDeployment(ctx, handle); err != nil {
		return fmt.Errorf("close deployment %s: %w", handle.DeploymentID, err)
	}
	o.logger.Info("job %s: deployment %s closed", handle.JobID, handle.DeploymentID)
	return nil
}

// cancelled is the single exit for caller cancellation, no matter which call
// the cancel landed in. It never fabricates a Failed or Active entry.
func (o *Orchestrator) cancelled(r *run, cause error, handle *domain.JobHandle, ranked []domain.RankedProvider) domain.RouteResult {
	r.emit(domain.PhaseCancelled, "routing cancelled by caller", nil)
	return domain.RouteResult{
		FinalState: domain.PhaseCancelled,
		Reason:     "routing cancelled by caller",
		Handle:     handle,
		Candidates: ranked,
		Err:        cause,
	}
}

func (o *Orchestrator) fail(r *run, cause error, ranked []domain.RankedProvider) domain.RouteResult {
	r.emit(domain.PhaseFailed, cause.Error(), nil)
	return domain.RouteResult{
		FinalState: domain.PhaseFailed,
		Reason:     cause.Error(),
		Candidates: ranked,
		Err:        cause,
	}
}

func (o *Orchestrator) archiveRun(r *run) {
	if o.archive == nil {
		return
	}
	// Detached context: archiving must still happen for cancelled runs.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.archive.Archive(ctx, r.jobID, r.entries); err != nil {
		o.logger.Warn("job %s: route log archive failed: %v", r.jobID, err)
	}
}

func lowestBid(bids []domain.Bid) domain.Bid {
	best := bids[0]
	for _, b := range bids[1:] {
		if b.PricePerHour < best.PricePerHour ||
			(b.PricePerHour == best.PricePerHour && b.ID < best.ID) {
			best = b
		}
	}
	return best
}

func (o *Orchestrator) acquire(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[jobID]; busy {
		return false
	}
	o.active[jobID] = struct{}{}
	return true
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, jobID)
}
