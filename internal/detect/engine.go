// Package detect implements the layered PII detection and anonymization
// engine: an optional NLP recognizer, the lexical pattern library, and
// contextual trigger-phrase heuristics, in strict precedence order.
package detect

import (
	"context"
	"fmt"
	"sort"

	"github.com/linnemanlabs/go-core/log"
)

// FailSafeText replaces the anonymized output whenever detection fails
// internally. The original text is never returned and never logged.
const FailSafeText = "[ERRO: Texto não processado por segurança - contém dados sensíveis protegidos]"

// Recognizer is the optional NLP detection capability. Implementations return
// entity spans over the given text; the engine treats errors as a skipped
// layer, never as a failed detection.
type Recognizer interface {
	Analyze(ctx context.Context, text string) ([]Entity, error)
}

// Engine runs the three detection layers and produces anonymized text plus a
// non-overlapping entity set with a risk classification. An Engine is built
// once per process and reused across tasks; it is safe for sequential reuse.
type Engine struct {
	recognizer Recognizer // nil when no NLP capability is configured
	logger     log.Logger
}

// NewEngine creates a detection engine. recognizer may be nil.
func NewEngine(recognizer Recognizer, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		recognizer: recognizer,
		logger:     logger,
	}
}

// Detect analyzes text and returns the detection result. It never returns an
// error: on an internal failure the result carries FailSafeText, an empty
// entity set, and the failure is logged with only a hash of the input.
func (e *Engine) Detect(ctx context.Context, text string) *Result {
	entities, err := e.collect(ctx, text)

	res := &Result{}
	if err != nil {
		// Hard security invariant: the unprocessed text must not leak.
		e.logger.Error(ctx, err, "detection failure, returning fail-safe text",
			"text_sha256", HashText(text),
		)
		res.AnonymizedText = FailSafeText
		res.Entities = nil
	} else {
		res.AnonymizedText = Anonymize(text, entities)
		res.Entities = entities
	}

	res.EntityCounts = make(map[Kind]int, len(res.Entities))
	for _, ent := range res.Entities {
		res.EntityCounts[ent.Kind]++
	}
	res.RiskLevel = ClassifyRisk(res.Entities)

	e.logger.Info(ctx, "detection complete",
		"text_len", len(text),
		"entities", len(res.Entities),
		"risk_level", res.RiskLevel,
	)
	return res
}

// collect runs the layers in precedence order. A panic in any layer is
// converted to an error so Detect can take the fail-safe path.
func (e *Engine) collect(ctx context.Context, text string) (entities []Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			entities = nil
			err = fmt.Errorf("detection panic: %v", r)
		}
	}()

	var accepted []Entity

	if e.recognizer != nil {
		nlp, aerr := e.recognizer.Analyze(ctx, text)
		if aerr != nil {
			// NLP is best-effort: log and continue with the lexical layers.
			e.logger.Warn(ctx, "nlp recognizer unavailable, continuing without it",
				"error", aerr.Error(),
			)
		} else {
			for _, ent := range nlp {
				if ent.Start < 0 || ent.End > len(text) || ent.Start >= ent.End {
					continue
				}
				ent.Method = MethodNLP
				ent.Value = text[ent.Start:ent.End]
				if overlapsAny(ent, accepted) {
					continue
				}
				accepted = append(accepted, ent)
			}
		}
	}

	accepted = append(accepted, patternLayer(text, accepted)...)
	accepted = append(accepted, nameLayer(text, accepted)...)
	accepted = append(accepted, addressLayer(text, accepted)...)
	accepted = append(accepted, phoneLayer(text, accepted)...)

	return accepted, nil
}

// Anonymize splices a <KIND> placeholder over every entity span. Spans are
// processed in descending start order so earlier replacements never shift the
// offsets of spans still to be processed. The entity set must be
// non-overlapping, which the layer resolution guarantees.
func Anonymize(text string, entities []Entity) string {
	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	out := text
	for _, ent := range sorted {
		out = out[:ent.Start] + "<" + string(ent.Kind) + ">" + out[ent.End:]
	}
	return out
}
