// Package service implements the request service: the top-level HTTP
// handler that glues the body-peek, resolver, forwarder, and routing-map
// updater together, classifies routing errors into HTTP responses, and
// emits metrics for every request.
package service

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/alexmv/kansas/internal/forwarder"
	"github.com/alexmv/kansas/internal/health"
	"github.com/alexmv/kansas/internal/logging"
	"github.com/alexmv/kansas/internal/metrics"
	"github.com/alexmv/kansas/internal/routing"
)

// Service is Kansas's top-level http.Handler.
type Service struct {
	Snapshot  *health.Snapshot
	Resolver  *routing.Resolver
	Map       *routing.Map
	Forwarder *forwarder.Forwarder
	Metrics   *metrics.Metrics
	Log       *logging.Logger
}

// New builds a Service.
func New(snapshot *health.Snapshot, resolver *routing.Resolver, routeMap *routing.Map, fwd *forwarder.Forwarder, m *metrics.Metrics, log *logging.Logger) *Service {
	return &Service{
		Snapshot:  snapshot,
		Resolver:  resolver,
		Map:       routeMap,
		Forwarder: fwd,
		Metrics:   m,
		Log:       log,
	}
}

// ServeHTTP is the top-level HTTP entry point.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/metrics":
		metrics.Handler().ServeHTTP(w, r)
		return
	case "/health":
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK!"))
		return
	}

	s.Metrics.Requests.WithLabelValues(r.Method).Inc()
	release := s.Metrics.Guard()
	defer release()

	start := time.Now()
	status := s.handleRoutedRequest(w, r)
	s.Metrics.Observe(r.Method, status, start)
}

// handleRoutedRequest runs C4 → C6 → C5 and writes the client response,
// returning the status code it wrote for metrics purposes.
func (s *Service) handleRoutedRequest(w http.ResponseWriter, r *http.Request) int {
	rc := s.Snapshot.Load()

	route, berr := s.Resolver.Resolve(r, rc.Backend)
	if berr != nil {
		return s.writeError(w, berr)
	}

	cell, ok := rc.Backend.Cell(route.Address)
	if !ok {
		// An address named by a create-queue request but absent from the
		// configured pool is not rejected at create time: the request is
		// forwarded with a detached health cell, and the address surfaces
		// as an ordinary UnknownHost once a later request is routed to it
		// through the routing map.
		cell = health.NewCell()
	}

	clientIP := forwarder.ClientIP(r.RemoteAddr)
	resp := s.Forwarder.Forward(r, rc.Backend.Client, route.Address, cell, clientIP)
	defer resp.Body.Close()

	s.Map.Observe(s.Log, r.Method, route, resp)

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	writeBody(w, resp)
	return resp.StatusCode
}

func writeBody(w http.ResponseWriter, resp *http.Response) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// errorResponse is the distinguished JSON payload for UnknownQueue.
type errorResponse struct {
	Result  string `json:"result"`
	Msg     string `json:"msg"`
	QueueID string `json:"queue_id"`
	Code    string `json:"code"`
}

func (s *Service) writeError(w http.ResponseWriter, berr *routing.BadBackendError) int {
	if berr.Kind == routing.KindUnknownQueue {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{
			Result:  "error",
			Msg:     berr.Message,
			QueueID: berr.QueueID,
			Code:    "BAD_EVENT_QUEUE_ID",
		})
		return http.StatusBadRequest
	}

	if s.Log != nil {
		s.Log.Error("routing error", map[string]interface{}{
			"kind":    berr.Kind,
			"message": berr.Message,
		})
	}
	w.WriteHeader(http.StatusBadGateway)
	return http.StatusBadGateway
}
