package routing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexmv/kansas/internal/health"
)

func poolWithHealthyAddress(addr string) *health.BackendPool {
	return health.NewBackendPool([]string{addr}, health.HealthConfig{}, http.DefaultClient)
}

func TestResolveCreateQueueSuccess(t *testing.T) {
	r := NewResolver(NewMap(), 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/internal", nil)
	req.Header.Set("x-tornado-shard", "1500")

	route, berr := r.Resolve(req, poolWithHealthyAddress("127.0.0.1:1500"))
	if berr != nil {
		t.Fatalf("unexpected error: %v", berr)
	}
	if route.Port != 1500 || route.Address != "127.0.0.1:1500" {
		t.Errorf("unexpected route: %+v", route)
	}
}

func TestResolveCreateQueueMissingHeader(t *testing.T) {
	r := NewResolver(NewMap(), 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/internal", nil)

	_, berr := r.Resolve(req, NewEmptyPool())
	if berr == nil || berr.Kind != KindBadRequest || berr.Message != "No x-tornado-shard header" {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

func TestResolveCreateQueueNonASCIIHeader(t *testing.T) {
	r := NewResolver(NewMap(), 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/internal", nil)
	req.Header.Set("x-tornado-shard", "15é0")

	_, berr := r.Resolve(req, NewEmptyPool())
	if berr == nil || berr.Kind != KindBadRequest || berr.Message != "Cannot convert header to string" {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

func TestResolveCreateQueueNonIntegerHeader(t *testing.T) {
	r := NewResolver(NewMap(), 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/internal", nil)
	req.Header.Set("x-tornado-shard", "not-a-port")

	_, berr := r.Resolve(req, NewEmptyPool())
	if berr == nil || berr.Kind != KindBadRequest || berr.Message != "Failed to parse port as int" {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

func TestResolveExistingQueueViaDeleteBody(t *testing.T) {
	m := NewMap()
	m.Insert("1500:1", 1500)
	r := NewResolver(m, 1<<20)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/events", strings.NewReader("queue_id=1500:1"))
	route, berr := r.Resolve(req, poolWithHealthyAddress("127.0.0.1:1500"))
	if berr != nil {
		t.Fatalf("unexpected error: %v", berr)
	}
	if route.Address != "127.0.0.1:1500" {
		t.Errorf("unexpected route: %+v", route)
	}
}

func TestResolveExistingQueueViaGetQuery(t *testing.T) {
	m := NewMap()
	m.Insert("1500:1", 1500)
	r := NewResolver(m, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?queue_id=1500:1", nil)
	route, berr := r.Resolve(req, poolWithHealthyAddress("127.0.0.1:1500"))
	if berr != nil {
		t.Fatalf("unexpected error: %v", berr)
	}
	if route.Address != "127.0.0.1:1500" {
		t.Errorf("unexpected route: %+v", route)
	}
}

func TestResolveExistingQueueFirstMatchWins(t *testing.T) {
	m := NewMap()
	m.Insert("first", 1500)
	m.Insert("second", 1501)
	r := NewResolver(m, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?queue_id=first&queue_id=second", nil)
	route, berr := r.Resolve(req, poolWithHealthyAddress("127.0.0.1:1500"))
	if berr != nil {
		t.Fatalf("unexpected error: %v", berr)
	}
	if route.Address != "127.0.0.1:1500" {
		t.Errorf("expected first queue_id to win, got %+v", route)
	}
}

func TestResolveExistingQueueUnknownMethod(t *testing.T) {
	r := NewResolver(NewMap(), 1<<20)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/events", nil)

	_, berr := r.Resolve(req, NewEmptyPool())
	if berr == nil || berr.Kind != KindBadRequest || berr.Message != "Unknown method PUT" {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

func TestResolveExistingQueueNoQueryString(t *testing.T) {
	r := NewResolver(NewMap(), 1<<20)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)

	_, berr := r.Resolve(req, NewEmptyPool())
	if berr == nil || berr.Kind != KindBadRequest || berr.Message != "No query string" {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

func TestResolveExistingQueueUnknownQueue(t *testing.T) {
	r := NewResolver(NewMap(), 1<<20)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?queue_id=ghost", nil)

	_, berr := r.Resolve(req, NewEmptyPool())
	if berr == nil || berr.Kind != KindUnknownQueue || berr.QueueID != "ghost" {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

func TestResolveExistingQueueUnknownHost(t *testing.T) {
	m := NewMap()
	m.Insert("1500:1", 1500)
	r := NewResolver(m, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?queue_id=1500:1", nil)
	_, berr := r.Resolve(req, NewEmptyPool())
	if berr == nil || berr.Kind != KindUnknownHost {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

func TestResolveExistingQueueUnhealthyHost(t *testing.T) {
	m := NewMap()
	m.Insert("1500:1", 1500)
	r := NewResolver(m, 1<<20)

	pool := poolWithHealthyAddress("127.0.0.1:1500")
	cell, _ := pool.Cell("127.0.0.1:1500")
	cell.Store(health.Unresponsive(502))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?queue_id=1500:1", nil)
	_, berr := r.Resolve(req, pool)
	if berr == nil || berr.Kind != KindUnhealthyHost {
		t.Fatalf("unexpected error: %+v", berr)
	}
}

// NewEmptyPool builds a BackendPool with no addresses, for tests exercising
// failures that occur before any host lookup.
func NewEmptyPool() *health.BackendPool {
	return health.NewBackendPool(nil, health.HealthConfig{}, http.DefaultClient)
}
