// Package routing implements the routing resolver and the routing map
// updater: turning an incoming request into a shard to forward to, and
// mutating the queue-id to shard-port map from observed backend responses.
package routing

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"unicode"

	"github.com/alexmv/kansas/internal/bodypeek"
	"github.com/alexmv/kansas/internal/health"
)

// createQueuePath is the exact path (not a prefix) that short-circuits
// routing-map lookup entirely: the client is minting a new queue and
// declares its shard directly.
const createQueuePath = "/api/v1/events/internal"

// Route is the resolver's successful result: the shard port and the
// "127.0.0.1:port" address to forward to.
type Route struct {
	Port    uint16
	Address string
}

// Resolver turns requests into routes. It holds the routing map
// it consults for existing-queue lookups; the map itself is independently
// concurrency-safe, so a Resolver can be shared across every request
// goroutine without its own locking.
type Resolver struct {
	Map          *Map
	MaxPeekBytes int64
}

// NewResolver builds a Resolver bound to the given routing map.
func NewResolver(m *Map, maxPeekBytes int64) *Resolver {
	return &Resolver{Map: m, MaxPeekBytes: maxPeekBytes}
}

// Resolve turns a request into a route. pool is the backend pool from the
// current snapshot. On success it returns a Route; on failure a
// *BadBackendError (always; Resolve never returns any other error type).
func (r *Resolver) Resolve(req *http.Request, pool *health.BackendPool) (*Route, *BadBackendError) {
	if req.URL.Path == createQueuePath {
		return r.resolveCreateQueue(req)
	}
	return r.resolveExistingQueue(req, pool)
}

func (r *Resolver) resolveCreateQueue(req *http.Request) (*Route, *BadBackendError) {
	raw := req.Header.Get("x-tornado-shard")
	if raw == "" {
		return nil, badRequest("No x-tornado-shard header")
	}
	if !isASCII(raw) {
		return nil, badRequest("Cannot convert header to string")
	}
	port, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return nil, badRequest("Failed to parse port as int")
	}
	return &Route{Port: uint16(port), Address: addressFor(uint16(port))}, nil
}

func (r *Resolver) resolveExistingQueue(req *http.Request, pool *health.BackendPool) (*Route, *BadBackendError) {
	queueID, berr := r.extractQueueID(req)
	if berr != nil {
		return nil, berr
	}

	port, ok := r.Map.Lookup(queueID)
	if !ok {
		return nil, unknownQueue(queueID)
	}

	address := addressFor(port)
	cell, ok := pool.Cell(address)
	if !ok {
		return nil, unknownHost(address)
	}
	if !cell.Load().IsHealthy() {
		return nil, unhealthyHost(address)
	}

	return &Route{Port: port, Address: address}, nil
}

// extractQueueID locates the raw form/query
// bytes for the request, then finding the first queue_id= pair within them.
func (r *Resolver) extractQueueID(req *http.Request) (string, *BadBackendError) {
	var raw string

	switch req.Method {
	case http.MethodDelete:
		peek, err := bodypeek.Do(req, r.MaxPeekBytes)
		if errors.Is(err, bodypeek.ErrBodyTooLarge) {
			return "", badRequest("Request body exceeds maximum peek size")
		}
		if err != nil {
			return "", badRequest("Failed to read request body")
		}
		raw = string(peek.Bytes())
	case http.MethodGet:
		if req.URL.RawQuery == "" {
			return "", badRequest("No query string")
		}
		raw = req.URL.RawQuery
	default:
		return "", badRequest(fmt.Sprintf("Unknown method %s", req.Method))
	}

	values, err := url.ParseQuery(raw)
	if err != nil || len(values["queue_id"]) == 0 {
		return "", unknownQueue("(missing)")
	}
	// url.ParseQuery preserves encounter order within a single key's slice,
	// so values["queue_id"][0] is the first queue_id= pair in raw, matching
	// the "first match only" tie-break.
	return values["queue_id"][0], nil
}

func addressFor(port uint16) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
