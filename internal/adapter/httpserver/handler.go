package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magicaleks/qudata-broker/internal/domain"
	"github.com/magicaleks/qudata-broker/internal/impls"
	"github.com/magicaleks/qudata-broker/internal/usecase/matching"
	"github.com/magicaleks/qudata-broker/internal/usecase/routing"
)

type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type rankRequest struct {
	Requirements domain.JobRequirements `json:"requirements"`
	Providers    []domain.Provider      `json:"providers,omitempty"`
	Weights      *domain.ScoreWeights   `json:"weights,omitempty"`
}

type routeRequest struct {
	JobID             string                 `json:"job_id"`
	Requirements      domain.JobRequirements `json:"requirements"`
	AutoAccept        bool                   `json:"auto_accept"`
	BidTimeoutSeconds int                    `json:"bid_timeout_seconds"`
	Weights           *domain.ScoreWeights   `json:"weights,omitempty"`
}

type acceptRequest struct {
	BidID string `json:"bid_id"`
}

// trackedJob is what the adapter retains after a routing attempt so manual
// accept and close can be addressed by job id. The engine itself keeps
// nothing between calls.
type trackedJob struct {
	Handle   domain.JobHandle
	Manifest domain.Manifest
	Bids     []domain.Bid
	Phase    domain.Phase
}

type API struct {
	matcher *matching.Engine
	router  *routing.Orchestrator
	catalog impls.Catalog
	logger  impls.Logger

	mu   sync.Mutex
	jobs map[string]*trackedJob
}

func NewAPI(matcher *matching.Engine, router *routing.Orchestrator, catalog impls.Catalog, logger impls.Logger) *API {
	return &API{
		matcher: matcher,
		router:  router,
		catalog: catalog,
		logger:  logger,
		jobs:    make(map[string]*trackedJob),
	}
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/ping", a.ping)
	router.POST("/v1/rank", a.rank)
	router.POST("/v1/jobs", a.routeJob)
	router.POST("/v1/jobs/:id/accept", a.acceptBid)
	router.DELETE("/v1/jobs/:id", a.closeJob)
}

func (a *API) ping(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) rank(c *gin.Context) {
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.Warn("rank: invalid payload: %v", err)
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
		return
	}

	providers := req.Providers
	if len(providers) == 0 {
		hints := impls.ListFilters{GPU: req.Requirements.WantsGPU()}
		if req.Requirements.Region != nil {
			hints.Region = *req.Requirements.Region
		}
		fetched, err := a.catalog.ListProviders(c.Request.Context(), hints)
		if err != nil {
			a.logger.Error("rank: list providers failed: %v", err)
			c.JSON(http.StatusBadGateway, response{Ok: false, Error: err.Error()})
			return
		}
		providers = fetched
	}

	filtered := a.matcher.Filter(req.Requirements, providers)
	ranked := a.matcher.Rank(req.Requirements, filtered, req.Weights)
	c.JSON(http.StatusOK, response{Ok: true, Data: ranked})
}

func (a *API) routeJob(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.Warn("route job: invalid payload: %v", err)
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
		return
	}

	result := a.router.RouteJob(c.Request.Context(), routing.RouteRequest{
		JobID:        req.JobID,
		Requirements: req.Requirements,
		AutoAccept:   req.AutoAccept,
		BidTimeout:   time.Duration(req.BidTimeoutSeconds) * time.Second,
		Weights:      req.Weights,
	})

	a.track(result)
	c.JSON(http.StatusOK, response{Ok: true, Data: result})
}

func (a *API) acceptBid(c *gin.Context) {
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.Warn("accept bid: invalid payload: %v", err)
		c.JSON(http.StatusBadRequest, response{Ok: false, Error: err.Error()})
		return
	}

	jobID := c.Param("id")
	a.mu.Lock()
	job, found := a.jobs[jobID]
	a.mu.Unlock()
	if !found || job.Phase != domain.PhaseAwaitingManualAccept {
		c.JSON(http.StatusNotFound, response{Ok: false, Error: "no job awaiting accept"})
		return
	}

	var bid *domain.Bid
	for i := range job.Bids {
		if job.Bids[i].ID == req.BidID {
			bid = &job.Bids[i]
			break
		}
	}
	if bid == nil {
		c.JSON(http.StatusNotFound, response{Ok: false, Error: "unknown bid id"})
		return
	}

	lease, err := a.router.AcceptBid(c.Request.Context(), job.Handle, *bid, job.Manifest)
	if err != nil {
		a.logger.Error("accept bid failed for job %s: %v", jobID, err)
		c.JSON(http.StatusBadGateway, response{Ok: false, Error: err.Error()})
		return
	}

	a.mu.Lock()
	job.Phase = domain.PhaseActive
	a.mu.Unlock()
	c.JSON(http.StatusOK, response{Ok: true, Data: lease})
}

func (a *API) closeJob(c *gin.Context) {
	jobID := c.Param("id")
	a.mu.Lock()
	job, found := a.jobs[jobID]
	a.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, response{Ok: false, Error: "unknown job id"})
		return
	}

	if err := a.router.CloseJob(c.Request.Context(), job.Handle); err != nil {
		a.logger.Error("close job %s failed: %v", jobID, err)
		c.JSON(http.StatusBadGateway, response{Ok: false, Error: err.Error()})
		return
	}

	a.mu.Lock()
	delete(a.jobs, jobID)
	a.mu.Unlock()
	c.JSON(http.StatusOK, response{Ok: true})
}

func (a *API) track(result domain.RouteResult) {
	if result.Handle == nil {
		return
	}
	switch result.FinalState {
	case domain.PhaseAwaitingManualAccept, domain.PhaseActive:
	default:
		return
	}

	job := &trackedJob{
		Handle: *result.Handle,
		Bids:   result.Bids,
		Phase:  result.FinalState,
	}
	if result.Manifest != nil {
		job.Manifest = *result.Manifest
	}

	a.mu.Lock()
	a.jobs[result.JobID] = job
	a.mu.Unlock()
}
