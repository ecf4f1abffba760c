// Package health holds the pool snapshot and the health-probe loop that
// gates every routing decision Kansas makes.
package health

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Healthiness is the tagged value a health cell holds: either Healthy, or
// Unresponsive with an optional status code captured from the last
// unfavorable response.
type Healthiness struct {
	healthy bool
	status  int // 0 means "no status captured" (transport error)
}

// Healthy is the single healthy value.
var Healthy = Healthiness{healthy: true}

// Unresponsive builds an unhealthy value. Pass 0 for a transport error with
// no captured status.
func Unresponsive(status int) Healthiness {
	return Healthiness{healthy: false, status: status}
}

// IsHealthy reports whether this value is the Healthy state.
func (h Healthiness) IsHealthy() bool { return h.healthy }

// Status returns the captured status code and whether one was captured.
func (h Healthiness) Status() (int, bool) { return h.status, h.status != 0 }

// Equal compares by value, so the health-update policy can detect a no-op
// transition and skip logging and storing a value that hasn't changed.
func (h Healthiness) Equal(other Healthiness) bool {
	return h.healthy == other.healthy && h.status == other.status
}

func (h Healthiness) String() string {
	if h.healthy {
		return "Healthy"
	}
	if h.status == 0 {
		return "Unresponsive(none)"
	}
	return fmt.Sprintf("Unresponsive(%d)", h.status)
}

// Cell is an atomically-replaceable Healthiness value. It is never mutated
// in place; every update is a full replacement so readers never observe a
// torn value.
type Cell struct {
	v atomic.Value // holds Healthiness
}

// NewCell creates a cell initialized to Healthy, matching the original
// implementation's "assume healthy until the first probe" stance.
func NewCell() *Cell {
	c := &Cell{}
	c.v.Store(Healthy)
	return c
}

// Load returns the current value.
func (c *Cell) Load() Healthiness {
	return c.v.Load().(Healthiness)
}

// Store replaces the value unconditionally.
func (c *Cell) Store(h Healthiness) {
	c.v.Store(h)
}

// HealthConfig mirrors config.HealthConfig without importing the config
// package, keeping this package usable standalone.
type HealthConfig struct {
	Timeout  time.Duration
	Interval time.Duration
	Path     string
}

// BackendPool is the immutable-for-its-lifetime view of the backend set: the
// address-to-health-cell map, the health probe configuration, and the
// shared HTTP client used both to forward requests and to hold the
// connection pool operators configure via pool_idle_timeout /
// pool_max_idle_per_host.
type BackendPool struct {
	Addresses    map[string]*Cell
	HealthConfig HealthConfig
	Client       *http.Client
}

// NewBackendPool builds a BackendPool from a set of addresses and a shared
// client, giving every address a fresh Healthy cell.
func NewBackendPool(addresses []string, healthConfig HealthConfig, client *http.Client) *BackendPool {
	cells := make(map[string]*Cell, len(addresses))
	for _, addr := range addresses {
		cells[addr] = NewCell()
	}
	return &BackendPool{
		Addresses:    cells,
		HealthConfig: healthConfig,
		Client:       client,
	}
}

// Cell looks up the health cell for an address. The bool is false if the
// address is not part of this pool.
func (p *BackendPool) Cell(address string) (*Cell, bool) {
	c, ok := p.Addresses[address]
	return c, ok
}

// RuntimeConfig is the full snapshot: listen address plus backend pool. It
// is held behind an atomic pointer so the request path and the health
// monitor always observe a complete, untorn snapshot.
type RuntimeConfig struct {
	ListenAddress string
	Backend       *BackendPool
}

// Snapshot is the atomically-swappable holder for a *RuntimeConfig.
type Snapshot struct {
	p atomic.Pointer[RuntimeConfig]
}

// NewSnapshot creates a Snapshot initialized to rc.
func NewSnapshot(rc *RuntimeConfig) *Snapshot {
	s := &Snapshot{}
	s.p.Store(rc)
	return s
}

// Load returns the current RuntimeConfig. Safe to call concurrently with
// Store from any number of goroutines.
func (s *Snapshot) Load() *RuntimeConfig {
	return s.p.Load()
}

// Store atomically replaces the RuntimeConfig, e.g. on a SIGHUP reload.
func (s *Snapshot) Store(rc *RuntimeConfig) {
	s.p.Store(rc)
}
