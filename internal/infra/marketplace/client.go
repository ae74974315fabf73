package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/magicaleks/qudata-broker/internal/domain"
	"github.com/magicaleks/qudata-broker/internal/impls"
)

const (
	apiKeyHeader    = "X-API-Key"
	applicationJSON = "application/json"
)

// Client talks to the marketplace console API. It is the production
// implementation of impls.Catalog; tests use an in-memory fake instead.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

func NewClient(baseURL, apiKey string, logger impls.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	if logger != nil {
		rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				logger.Warn("marketplace retry #%d: %s %s", attempt, req.Method, req.URL.Path)
			}
		}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    rc,
	}
}

func (c *Client) ListProviders(ctx context.Context, hints impls.ListFilters) ([]domain.Provider, error) {
	query := url.Values{}
	if hints.Region != "" {
		query.Set("region", hints.Region)
	}
	if hints.GPU {
		query.Set("gpu", "true")
	}
	path := "/providers"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data := decodeResponse[[]domain.Provider](resp.Body)
	if !data.Ok || data.Data == nil {
		return nil, errors.New("empty providers response")
	}
	return *data.Data, nil
}

type createDeploymentResponse struct {
	DeploymentID string `json:"deployment_id"`
	Manifest     []byte `json:"manifest"`
}

func (c *Client) CreateDeploymentRequest(ctx context.Context, req domain.JobRequirements) (domain.JobHandle, domain.Manifest, error) {
	resp, err := c.do(ctx, http.MethodPost, "/deployments", req)
	if err != nil {
		return domain.JobHandle{}, domain.Manifest{}, err
	}
	defer resp.Body.Close()

	data := decodeResponse[createDeploymentResponse](resp.Body)
	if !data.Ok || data.Data == nil {
		return domain.JobHandle{}, domain.Manifest{}, errors.New("empty deployment response")
	}
	handle := domain.JobHandle{DeploymentID: data.Data.DeploymentID}
	return handle, domain.Manifest{Raw: data.Data.Manifest}, nil
}

func (c *Client) ListBids(ctx context.Context, handle domain.JobHandle) ([]domain.Bid, error) {
	resp, err := c.do(ctx, http.MethodGet, "/deployments/"+handle.DeploymentID+"/bids", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data := decodeResponse[[]domain.Bid](resp.Body)
	if !data.Ok || data.Data == nil {
		return nil, errors.New("empty bids response")
	}
	return *data.Data, nil
}

type acceptBidRequest struct {
	BidID    string `json:"bid_id"`
	Manifest []byte `json:"manifest"`
}

func (c *Client) AcceptBid(ctx context.Context, handle domain.JobHandle, bidID string, manifest domain.Manifest) (*domain.Lease, error) {
	if len(manifest.Raw) == 0 {
		return nil, errors.New("deployment manifest missing")
	}

	body := acceptBidRequest{BidID: bidID, Manifest: manifest.Raw}
	resp, err := c.do(ctx, http.MethodPost, "/deployments/"+handle.DeploymentID+"/accept", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data := decodeResponse[domain.Lease](resp.Body)
	if !data.Ok || data.Data == nil {
		return nil, errors.New("empty lease response")
	}
	return data.Data, nil
}

func (c *Client) CloseDeployment(ctx context.Context, handle domain.JobHandle) error {
	resp, err := c.do(ctx, http.MethodDelete, "/deployments/"+handle.DeploymentID, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type apiResponse[T any] struct {
	Ok    bool   `json:"ok"`
	Data  *T     `json:"data"`
	Error string `json:"error,omitempty"`
}

func decodeResponse[T any](body io.Reader) apiResponse[T] {
	var resp apiResponse[T]
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return apiResponse[T]{Ok: false}
	}
	return resp
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", applicationJSON)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, fmt.Errorf("marketplace returned %d for %s %s", resp.StatusCode, method, path)
	}
	return resp, nil
}
