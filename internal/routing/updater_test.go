package routing

import (
	"net/http"
	"testing"
)

func respWithQueueID(status int, queueID string) *http.Response {
	resp := &http.Response{StatusCode: status, Header: make(http.Header)}
	if queueID != "" {
		resp.Header.Set("x-tornado-queue-id", queueID)
	}
	return resp
}

func TestObserveInsertsOnSuccessfulNonDelete(t *testing.T) {
	m := NewMap()
	route := &Route{Port: 1500, Address: "127.0.0.1:1500"}

	m.Observe(nil, http.MethodGet, route, respWithQueueID(200, "1500:1"))

	port, ok := m.Lookup("1500:1")
	if !ok || port != 1500 {
		t.Fatalf("expected insert, got %d, %v", port, ok)
	}
}

func TestObserveRemovesOnSuccessfulDelete(t *testing.T) {
	m := NewMap()
	m.Insert("1500:1", 1500)
	route := &Route{Port: 1500, Address: "127.0.0.1:1500"}

	m.Observe(nil, http.MethodDelete, route, respWithQueueID(200, "1500:1"))

	if _, ok := m.Lookup("1500:1"); ok {
		t.Fatalf("expected removal after confirmed delete")
	}
}

func TestObserveIgnoresDeleteForUnknownQueue(t *testing.T) {
	m := NewMap()
	route := &Route{Port: 1500, Address: "127.0.0.1:1500"}

	m.Observe(nil, http.MethodDelete, route, respWithQueueID(200, "ghost"))

	if m.Len() != 0 {
		t.Fatalf("expected no entries created by a delete confirmation")
	}
}

func TestObserveIgnoresNon2xx(t *testing.T) {
	m := NewMap()
	route := &Route{Port: 1500, Address: "127.0.0.1:1500"}

	m.Observe(nil, http.MethodGet, route, respWithQueueID(404, "1500:1"))

	if _, ok := m.Lookup("1500:1"); ok {
		t.Fatalf("expected no insert on non-2xx response")
	}
}

func TestObserveIgnoresMissingHeader(t *testing.T) {
	m := NewMap()
	route := &Route{Port: 1500, Address: "127.0.0.1:1500"}

	m.Observe(nil, http.MethodGet, route, respWithQueueID(200, ""))

	if m.Len() != 0 {
		t.Fatalf("expected no insert without x-tornado-queue-id")
	}
}
