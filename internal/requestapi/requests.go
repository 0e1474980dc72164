package requestapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/job"
	"github.com/laredonunes/sigilo-laredo/internal/pipeline"
	"github.com/laredonunes/sigilo-laredo/internal/record"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

const (
	minTextLen = 10
	maxTextLen = 10000
)

type submitRequest struct {
	Text        string `json:"texto"`
	Protocol    string `json:"protocolo,omitempty"`
	RequesterID string `json:"usuario_id,omitempty"`
}

type submitResponse struct {
	JobID     string     `json:"origem_id"`
	Status    job.Status `json:"status"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	if n := utf8.RuneCountInString(req.Text); n < minTextLen || n > maxTextLen {
		http.Error(w, fmt.Sprintf(`{"error":"texto must be between %d and %d characters"}`, minTextLen, maxTextLen),
			http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	now := a.now().UTC()

	// The original text is never logged, only its hash.
	a.logger.Info(r.Context(), "request submitted",
		"job_id", id,
		"protocol", req.Protocol,
		"text_hash", detect.HashText(req.Text),
	)

	a.publishQueued(r, id, now)

	err := a.pool.Submit(pipeline.Input{
		JobID:       id,
		Text:        req.Text,
		Protocol:    req.Protocol,
		RequesterID: req.RequesterID,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			http.Error(w, `{"error":"queue full, try again later"}`, http.StatusServiceUnavailable)
			return
		}
		a.logger.Error(r.Context(), err, "failed to enqueue job", "job_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	protocol := req.Protocol
	if protocol == "" {
		protocol = "sem protocolo"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(submitResponse{
		JobID:     id,
		Status:    job.StatusQueued,
		Message:   fmt.Sprintf("Pedido %s em processamento", protocol),
		CreatedAt: now,
	})
}

// publishQueued writes the initial status so a client can poll immediately
// after the 202. Best-effort, like every other status write.
func (a *API) publishQueued(r *http.Request, id string, now time.Time) {
	err := a.sink.Publish(r.Context(), &job.Job{
		ID:        id,
		Status:    job.StatusQueued,
		Step:      "queued",
		Progress:  0,
		UpdatedAt: now,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to publish queued status", "job_id", id)
	}
}

type entityResponse struct {
	Kind       detect.Kind   `json:"tipo"`
	ValueHash  string        `json:"valor_hash"`
	Confidence float64       `json:"confianca"`
	Start      int           `json:"inicio"`
	End        int           `json:"fim"`
	Method     detect.Method `json:"metodo"`
}

type recordResponse struct {
	JobID          string              `json:"origem_id"`
	Protocol       string              `json:"protocolo,omitempty"`
	AnonymizedText string              `json:"texto_anonimizado"`
	TotalEntities  int                 `json:"total_entidades"`
	EntityCounts   map[detect.Kind]int `json:"entidades_por_tipo"`
	RiskLevel      detect.RiskLevel    `json:"nivel_risco"`
	ElapsedMS      int64               `json:"tempo_processamento_ms"`
	Audit          json.RawMessage     `json:"auditoria,omitempty"`
	Summary        *summary.Summary    `json:"resumo_llm,omitempty"`
	Entities       []entityResponse    `json:"entidades"`
}

func (a *API) handleRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, entities, err := a.store.GetByJobID(r.Context(), id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		a.logger.Error(r.Context(), err, "failed to get processed request", "job_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	resp := recordResponse{
		JobID:          req.JobID,
		Protocol:       req.Protocol,
		AnonymizedText: req.AnonymizedText,
		TotalEntities:  req.TotalEntities,
		EntityCounts:   req.EntityCounts,
		RiskLevel:      req.RiskLevel,
		ElapsedMS:      req.ElapsedMS,
		Audit:          req.Audit,
		Summary:        req.Summary,
		Entities:       make([]entityResponse, 0, len(entities)),
	}
	for _, e := range entities {
		resp.Entities = append(resp.Entities, entityResponse{
			Kind:       e.Kind,
			ValueHash:  e.ValueHash,
			Confidence: e.Confidence,
			Start:      e.Start,
			End:        e.End,
			Method:     e.Method,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
