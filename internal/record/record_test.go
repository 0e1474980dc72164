package record

import (
	"strings"
	"testing"
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
)

func TestNewDetection(t *testing.T) {
	t.Parallel()

	res := &detect.Result{
		AnonymizedText: "Meu CPF é <CPF>",
		Entities: []detect.Entity{{
			Kind:       detect.KindCPF,
			Value:      "123.456.789-00",
			Start:      10,
			End:        24,
			Confidence: 0.95,
			Method:     detect.MethodPattern,
		}},
		EntityCounts: map[detect.Kind]int{detect.KindCPF: 1},
		RiskLevel:    detect.RiskHigh,
	}

	now := time.Now().UTC()
	req, entities := NewDetection("j-1", "LAI-2026/001", "user-9", "Meu CPF é 123.456.789-00", res, now)

	if req.TextHash != detect.HashText("Meu CPF é 123.456.789-00") {
		t.Errorf("TextHash = %q, want hash of original text", req.TextHash)
	}
	if req.TotalEntities != 1 {
		t.Errorf("TotalEntities = %d, want 1", req.TotalEntities)
	}
	if req.RiskLevel != detect.RiskHigh {
		t.Errorf("RiskLevel = %q, want high", req.RiskLevel)
	}
	if len(entities) != 1 {
		t.Fatalf("len(entities) = %d, want 1", len(entities))
	}
	if entities[0].ValueHash != detect.HashText("123.456.789-00") {
		t.Errorf("ValueHash = %q, want hash of value", entities[0].ValueHash)
	}
	if entities[0].Method != detect.MethodPattern {
		t.Errorf("Method = %q, want pattern", entities[0].Method)
	}
}

func TestNewDetection_NoCleartextValues(t *testing.T) {
	t.Parallel()

	const cpf = "987.654.321-00"
	res := &detect.Result{
		AnonymizedText: "CPF <CPF> informado",
		Entities: []detect.Entity{{
			Kind: detect.KindCPF, Value: cpf, Start: 4, End: 18,
			Confidence: 0.95, Method: detect.MethodPattern,
		}},
		EntityCounts: map[detect.Kind]int{detect.KindCPF: 1},
		RiskLevel:    detect.RiskHigh,
	}

	req, entities := NewDetection("j-2", "", "", "CPF "+cpf+" informado", res, time.Now())

	if strings.Contains(req.TextHash, cpf) || strings.Contains(req.AnonymizedText, cpf) {
		t.Error("cleartext CPF present on request row")
	}
	for _, e := range entities {
		if strings.Contains(e.ValueHash, cpf) {
			t.Error("cleartext CPF present on entity row")
		}
	}
}
