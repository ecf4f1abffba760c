package health

import "github.com/alexmv/kansas/internal/logging"

// Result is the outcome of one HTTP round-trip against a backend: either a
// transport error, or a response with a status code.
type Result struct {
	Err    error
	Status int
}

// Update applies the health-update policy to cell given result. strict
// selects whether 4xx responses are allowed to demote health: the probe
// loop calls this with strict=true, the forwarder calls it with
// strict=false so that ordinary client errors on the request path never
// cascade into a routing change.
//
// Returns true if the cell's value changed.
func Update(log *logging.Logger, address string, result Result, cell *Cell, strict bool) bool {
	current := cell.Load()

	var candidate Healthiness
	switch {
	case result.Err != nil:
		candidate = Unresponsive(0)
	case result.Status >= 200 && result.Status < 300:
		candidate = Healthy
	case result.Status >= 400 && result.Status < 500 && !strict:
		return false
	default:
		candidate = Unresponsive(result.Status)
	}

	if candidate.Equal(current) {
		return false
	}

	cell.Store(candidate)
	if log != nil {
		log.Info("Backend health change for "+address+": "+candidate.String(), map[string]interface{}{
			"address": address,
			"state":   candidate.String(),
		})
	}
	return true
}
