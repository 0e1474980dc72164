// Package summary defines the text summarization capability used to classify
// anonymized requests, plus the deterministic fallback used when the backend
// fails. Backends live in subpackages; callers depend only on Summarizer.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
)

// ErrUnreachable marks a connectivity failure: the backend could not be
// reached at all. The pipeline retries these; every other failure is replaced
// by the fallback summary without retrying.
var ErrUnreachable = errors.New("summarizer unreachable")

// Summarizer turns anonymized request text into a structured classification.
// Implementations must bound each call with their own hard timeout.
type Summarizer interface {
	Summarize(ctx context.Context, anonymizedText string, entityCounts map[detect.Kind]int) (*Summary, error)
}

// Summary is the structured classification of one request. JSON field names
// are the stored wire contract and match the original service's records.
type Summary struct {
	Category        string   `json:"categoria"`
	Subcategory     string   `json:"subcategoria"`
	Priority        string   `json:"prioridade"`
	MainSubject     string   `json:"assunto_principal"`
	Keywords        []string `json:"palavras_chave"`
	LegalReview     bool     `json:"requer_analise_juridica"`
	SuggestedDue    string   `json:"prazo_sugerido"`
	SuggestedAgency string   `json:"orgao_competente_sugerido,omitempty"`
	Note            string   `json:"observacao,omitempty"`
}

// Fallback returns the fixed summary substituted when classification is
// unavailable. It carries no request-derived content.
func Fallback() *Summary {
	return &Summary{
		Category:     "Outro",
		Subcategory:  "Não classificado",
		Priority:     "Media",
		MainSubject:  "Pedido de acesso à informação",
		Keywords:     []string{},
		LegalReview:  false,
		SuggestedDue: "Normal",
		Note:         "Classificação automática indisponível",
	}
}

// Parse extracts the summary JSON from raw model output. Models wrap JSON in
// markdown fences or commentary, so the outermost brace pair is taken. A
// summary missing any required field is rejected; the caller substitutes the
// fallback.
func Parse(raw string) (*Summary, error) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var s Summary
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}

	if s.Category == "" || s.Priority == "" || s.MainSubject == "" {
		return nil, fmt.Errorf("incomplete summary: categoria/prioridade/assunto_principal required")
	}
	return &s, nil
}

// BuildPrompt renders the classification prompt for the anonymized text. The
// prompt forbids the model from inventing or reintroducing personal data.
func BuildPrompt(anonymizedText string, entityCounts map[detect.Kind]int) string {
	counts, _ := json.Marshal(entityCounts)

	return fmt.Sprintf(`Analise este pedido de Acesso à Informação e gere um resumo estruturado.

IMPORTANTE:
- NÃO invente informações
- NÃO reintroduza dados pessoais
- Use apenas informações presentes no texto
- Retorne APENAS JSON válido, sem texto adicional

TEXTO DO PEDIDO:
%s

DADOS SENSÍVEIS DETECTADOS E PROTEGIDOS:
%s

Retorne JSON com:
{
  "categoria": "string (ex: Saúde, Educação, Obras, Contrato, RH, Finanças, Outro)",
  "subcategoria": "string (mais específico)",
  "prioridade": "Alta|Media|Baixa",
  "assunto_principal": "string (1 frase curta)",
  "palavras_chave": ["string", "string", "string"],
  "requer_analise_juridica": true|false,
  "prazo_sugerido": "Normal|Urgente",
  "orgao_competente_sugerido": "string ou null"
}

Retorne APENAS o JSON, sem markdown ou explicações:`, anonymizedText, string(counts))
}
