package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/magicaleks/qudata-broker/internal/domain"
	"github.com/magicaleks/qudata-broker/internal/impls"
)

func envelope(data any) []byte {
	out, _ := json.Marshal(map[string]any{"ok": true, "data": data})
	return out
}

func TestListProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/providers" {
			t.Errorf("path = %s, want /providers", r.URL.Path)
		}
		if r.URL.Query().Get("gpu") != "true" {
			t.Errorf("gpu hint not forwarded: %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-API-Key") != "ak-test" {
			t.Errorf("missing api key header")
		}
		w.Write(envelope([]domain.Provider{{ID: "p1", Name: "host-1", PricePerHour: 2.5}}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ak-test", nil)
	providers, err := c.ListProviders(context.Background(), impls.ListFilters{GPU: true})
	if err != nil {
		t.Fatalf("ListProviders() error = %v", err)
	}
	if len(providers) != 1 || providers[0].ID != "p1" {
		t.Errorf("providers = %+v, want single p1", providers)
	}
}

func TestListBids(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deployments/dep-1/bids" {
			t.Errorf("path = %s, want /deployments/dep-1/bids", r.URL.Path)
		}
		w.Write(envelope([]domain.Bid{{ID: "bid-a", ProviderID: "p1", PricePerHour: 1.5}}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	bids, err := c.ListBids(context.Background(), domain.JobHandle{DeploymentID: "dep-1"})
	if err != nil {
		t.Fatalf("ListBids() error = %v", err)
	}
	if len(bids) != 1 || bids[0].ID != "bid-a" {
		t.Errorf("bids = %+v, want single bid-a", bids)
	}
}

func TestAcceptBidRequiresManifest(t *testing.T) {
	c := NewClient("http://unused", "", nil)
	_, err := c.AcceptBid(context.Background(), domain.JobHandle{DeploymentID: "dep-1"}, "bid-a", domain.Manifest{})
	if err == nil {
		t.Fatal("AcceptBid() with empty manifest must fail before any network call")
	}
}

func TestAcceptBid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/deployments/dep-1/accept" {
			t.Errorf("%s %s, want POST /deployments/dep-1/accept", r.Method, r.URL.Path)
		}
		var body acceptBidRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode accept body: %v", err)
		}
		if body.BidID != "bid-a" {
			t.Errorf("bid id = %s, want bid-a", body.BidID)
		}
		w.Write(envelope(domain.Lease{ID: "lease-1", ProviderID: "p1", Status: "active", PricePerHour: 1.5}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	lease, err := c.AcceptBid(context.Background(), domain.JobHandle{DeploymentID: "dep-1"}, "bid-a", domain.Manifest{Raw: []byte(`{}`)})
	if err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}
	if lease.ID != "lease-1" || lease.Status != "active" {
		t.Errorf("lease = %+v, want lease-1 active", lease)
	}
}

func TestMalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if _, err := c.ListProviders(context.Background(), impls.ListFilters{}); err == nil {
		t.Error("ListProviders() with garbage body must fail")
	}
}
