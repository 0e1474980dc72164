package detect

import (
	"crypto/sha256"
	"encoding/hex"
)

// Kind classifies the kind of sensitive data found. Pattern and contextual
// kinds use the Brazilian identifier names; NLP-provided kinds that have no
// local equivalent pass through verbatim.
type Kind string

const (
	KindCartaoCredito Kind = "CARTAO_CREDITO"
	KindCPF           Kind = "CPF"
	KindCNPJ          Kind = "CNPJ"
	KindEmail         Kind = "EMAIL"
	KindTelefone      Kind = "TELEFONE"
	KindRG            Kind = "RG"
	KindCEP           Kind = "CEP"
	KindDataNasc      Kind = "DATA_NASCIMENTO"
	KindPISPasep      Kind = "PIS_PASEP"
	KindTituloEleitor Kind = "TITULO_ELEITOR"
	KindPlacaVeiculo  Kind = "PLACA_VEICULO"
	KindPessoa        Kind = "PESSOA"
	KindEndereco      Kind = "ENDERECO"
)

// Method identifies which detection layer produced an entity.
type Method string

const (
	MethodNLP        Method = "nlp"
	MethodPattern    Method = "pattern"
	MethodContextual Method = "contextual"
)

// Entity is a single detected PII occurrence. Start and End are byte offsets
// into the analyzed text, 0 <= Start < End <= len(text).
type Entity struct {
	Kind       Kind    `json:"type"`
	Value      string  `json:"value"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
}

// RiskLevel is the coarse sensitivity classification of a detection result.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Result is the immutable outcome of one detection run.
type Result struct {
	AnonymizedText string       `json:"anonymized_text"`
	Entities       []Entity     `json:"entities"`
	EntityCounts   map[Kind]int `json:"entity_types"`
	RiskLevel      RiskLevel    `json:"risk_level"`
}

// Risk kind sets. NLP recognizer kinds (e.g. CREDIT_CARD) are included where
// they correspond to a local high-risk document class.
var (
	highRiskKinds = map[Kind]bool{
		KindCPF:           true,
		KindCartaoCredito: true,
		"CREDIT_CARD":     true,
		"CNH":             true,
		KindRG:            true,
		KindPISPasep:      true,
	}
	mediumRiskKinds = map[Kind]bool{
		KindCNPJ:     true,
		KindPessoa:   true,
		KindEndereco: true,
		KindDataNasc: true,
	}
	lowRiskKinds = map[Kind]bool{
		KindEmail:         true,
		KindTelefone:      true,
		KindCEP:           true,
		KindPlacaVeiculo:  true,
		KindTituloEleitor: true,
	}
)

// massLeakThreshold forces risk to high whenever more entities than this are
// present, regardless of their kinds.
const massLeakThreshold = 5

// ClassifyRisk derives the risk level for a final accepted entity set.
func ClassifyRisk(entities []Entity) RiskLevel {
	if len(entities) > massLeakThreshold {
		return RiskHigh
	}
	if len(entities) == 0 {
		return RiskLow
	}

	var hasHigh, hasMedium, allLow bool
	allLow = true
	for _, e := range entities {
		switch {
		case highRiskKinds[e.Kind]:
			hasHigh = true
			allLow = false
		case mediumRiskKinds[e.Kind]:
			hasMedium = true
			allLow = false
		case !lowRiskKinds[e.Kind]:
			allLow = false
		}
	}

	switch {
	case hasHigh:
		return RiskHigh
	case hasMedium || len(entities) > 2:
		return RiskMedium
	case len(entities) <= 2 && allLow:
		return RiskLow
	default:
		return RiskMedium
	}
}

// HashText returns the hex-encoded SHA-256 of s. It is the only form in which
// original request text or entity values may appear in logs or storage.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
