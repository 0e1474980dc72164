package pipeline

import (
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

// Input is the submission handed to stage 1. JobID is generated by the caller.
type Input struct {
	JobID       string `json:"job_id"`
	Text        string `json:"text"`
	Protocol    string `json:"protocol,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`
}

// payload is the shared context passed from stage 1 into both stage-2 branches.
// Field names are a stable contract with the stage task schema.
type payload struct {
	Input
	Detection *detect.Result `json:"detection_result"`
	StartTime time.Time      `json:"start_time"`
}

// AuditRecord is the consolidated output built by stage 3 and published as
// the finished job's result. It contains only anonymized text and hashes.
type AuditRecord struct {
	JobID          string           `json:"origem_id"`
	Protocol       string           `json:"protocolo,omitempty"`
	AnonymizedText string           `json:"texto_anonimizado"`
	Summary        *summary.Summary `json:"resumo_inteligente"`
	Stats          Stats            `json:"estatisticas"`
	Processing     Processing       `json:"processamento"`
	Audit          Audit            `json:"auditoria"`
}

// Stats aggregates entity statistics for the audit record.
type Stats struct {
	TotalEntities int                 `json:"total_entidades"`
	ByKind        map[detect.Kind]int `json:"por_tipo"`
	RiskLevel     detect.RiskLevel    `json:"nivel_risco"`
}

// Processing records elapsed wall time for the whole workflow.
type Processing struct {
	ElapsedMS int64     `json:"tempo_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit is the traceability block stored alongside the processed request.
type Audit struct {
	RequesterID string     `json:"usuario_id,omitempty"`
	StartedAt   time.Time  `json:"timestamp_inicio"`
	FinishedAt  time.Time  `json:"timestamp_fim"`
	Steps       []StepMark `json:"etapas"`
	Compliance  Compliance `json:"conformidade"`
}

// StepMark records the completion of one workflow step.
type StepMark struct {
	Step   string `json:"step"`
	Status string `json:"status"`
}

// Compliance is the fixed conformity flag block on every audit record.
type Compliance struct {
	LGPD    bool `json:"lgpd"`
	LocalAI bool `json:"ia_local"`
}

// completedSteps returns the fixed step list recorded on successful
// consolidation.
func completedSteps() []StepMark {
	return []StepMark{
		{Step: "deteccao", Status: "completed"},
		{Step: "resumo_llm", Status: "completed"},
		{Step: "banco", Status: "completed"},
		{Step: "dicionario", Status: "completed"},
	}
}
