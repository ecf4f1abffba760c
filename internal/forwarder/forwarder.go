// Package forwarder implements C6: rewriting a request onto the chosen
// backend, issuing it on the shared client, and updating that backend's
// health cell from the outcome.
package forwarder

import (
	"net"
	"net/http"

	"github.com/alexmv/kansas/internal/health"
	"github.com/alexmv/kansas/internal/logging"
)

// Forwarder issues rewritten requests against backends.
type Forwarder struct {
	Log *logging.Logger
}

// New builds a Forwarder.
func New(log *logging.Logger) *Forwarder {
	return &Forwarder{Log: log}
}

// Forward rewrites req onto address, issues it on client, and updates cell with
// the non-strict health-update policy regardless of outcome. On transport
// error it returns a synthesized 502 response with an empty body; on
// success it returns the upstream response verbatim (the caller is
// responsible for closing its body once done).
func (f *Forwarder) Forward(req *http.Request, client *http.Client, address string, cell *health.Cell, clientIP string) *http.Response {
	outbound := req.Clone(req.Context())
	outbound.RequestURI = ""
	outbound.URL.Scheme = "http"
	outbound.URL.Host = address
	outbound.Host = address

	appendForwardedFor(outbound, clientIP)

	resp, err := client.Do(outbound)

	var result health.Result
	if err != nil {
		result = health.Result{Err: err}
	} else {
		result = health.Result{Status: resp.StatusCode}
	}
	health.Update(f.Log, address, result, cell, false)

	if err != nil {
		if f.Log != nil {
			f.Log.Error("forwarding request failed", map[string]interface{}{
				"address": address,
				"error":   err.Error(),
			})
		}
		return badGateway()
	}

	return resp
}

// appendForwardedFor implements the x-forwarded-for rule: append if
// present, set if absent, normalizing a v4-mapped IPv6 client address to
// its dotted IPv4 form first.
func appendForwardedFor(req *http.Request, clientIP string) {
	clientIP = normalizeIP(clientIP)
	if existing := req.Header.Get("x-forwarded-for"); existing != "" {
		req.Header.Set("x-forwarded-for", existing+", "+clientIP)
	} else {
		req.Header.Set("x-forwarded-for", clientIP)
	}
}

func normalizeIP(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return addr
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}

func badGateway() *http.Response {
	return &http.Response{
		StatusCode: http.StatusBadGateway,
		Status:     "502 Bad Gateway",
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       http.NoBody,
	}
}

// ClientIP extracts the peer IP from a connection's remote address,
// dropping the port. Used by the request service to obtain the address
// Forward appends to x-forwarded-for.
func ClientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
