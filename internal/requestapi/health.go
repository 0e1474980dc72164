package requestapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/version"
)

const probeTimeout = 2 * time.Second

type probe struct {
	name  string
	check func(context.Context) error
}

// AddProbe registers a named dependency check for the detailed health
// endpoint. Call before RegisterRoutes; probes run on every health request
// with a short per-probe timeout.
func (a *API) AddProbe(name string, check func(context.Context) error) {
	a.probes = append(a.probes, probe{name: name, check: check})
}

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
}

// handleHealth reports per-dependency connectivity. Unlike the ops liveness
// and readiness endpoints this probes the actual backends, so it is meant for
// diagnosis, not load balancer polling.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]string, len(a.probes))
	allOK := true

	for _, p := range a.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.check(ctx)
		cancel()
		if err != nil {
			services[p.name] = "error"
			allOK = false
			a.logger.Warn(r.Context(), "health probe failed", "probe", p.name, "error", err.Error())
		} else {
			services[p.name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    status,
		Version:   version.Get().Version,
		Services:  services,
		Timestamp: a.now().UTC(),
	})
}
