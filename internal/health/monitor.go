package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/alexmv/kansas/internal/logging"
)

// Monitor is the single long-running health-probe loop. On each tick
// it probes every backend in the current snapshot concurrently and applies
// the strict health-update policy to each result.
type Monitor struct {
	snapshot *Snapshot
	log      *logging.Logger

	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewMonitor creates a Monitor bound to a snapshot holder. The monitor
// always reads the *current* snapshot on each tick, so a reload that swaps
// in a new backend set takes effect on the monitor's very next tick.
func NewMonitor(snapshot *Snapshot, log *logging.Logger) *Monitor {
	return &Monitor{
		snapshot: snapshot,
		log:      log,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Run blocks, probing on every tick of the current snapshot's
// health_config.interval, until Stop is called or ctx is done. An initial
// probe round runs immediately rather than waiting for the first tick.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.stopped)

	m.probeAll(ctx)

	interval := m.snapshot.Load().Backend.HealthConfig.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probeAll(ctx)
			// A reload may have changed the interval; re-arm the ticker if so.
			if next := m.snapshot.Load().Backend.HealthConfig.Interval; next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals Run to return and blocks until it has.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
	<-m.stopped
}

func (m *Monitor) probeAll(ctx context.Context) {
	rc := m.snapshot.Load()
	pool := rc.Backend

	var wg sync.WaitGroup
	for address, cell := range pool.Addresses {
		wg.Add(1)
		go func(address string, cell *Cell) {
			defer wg.Done()
			result := probe(ctx, address, pool.HealthConfig)
			Update(m.log, address, result, cell, true)
		}(address, cell)
	}
	wg.Wait()
}

func probe(ctx context.Context, address string, cfg HealthConfig) Result {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+address+cfg.Path, nil)
	if err != nil {
		return Result{Err: err}
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	return Result{Status: resp.StatusCode}
}
