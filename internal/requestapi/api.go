// Package requestapi exposes the HTTP surface for submitting access-to-
// information requests and querying their processing status.
package requestapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/laredonunes/sigilo-laredo/internal/job"
	"github.com/laredonunes/sigilo-laredo/internal/pipeline"
	"github.com/laredonunes/sigilo-laredo/internal/record"
)

// Submitter enqueues a job for asynchronous processing.
type Submitter interface {
	Submit(in pipeline.Input) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	sink   job.StatusSink
	store  record.Store
	pool   Submitter
	probes []probe
	now    func() time.Time
}

// New creates a new API handler.
func New(logger log.Logger, sink job.StatusSink, store record.Store, pool Submitter) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if sink == nil {
		panic(xerrors.New("status sink is required"))
	}
	if pool == nil {
		panic(xerrors.New("submitter is required"))
	}
	return &API{
		logger: logger,
		sink:   sink,
		store:  store,
		pool:   pool,
		now:    time.Now,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/requests", a.handleSubmit)
		r.Get("/requests/{id}", a.handleStatus)
		r.Get("/requests/{id}/record", a.handleRecord)
		r.Get("/health", a.handleHealth)
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sigilo.job.id", id))

	j, err := a.sink.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		a.logger.Error(r.Context(), err, "failed to get job status", "job_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("sigilo.job.status", string(j.Status)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(j)
}
