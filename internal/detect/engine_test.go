package detect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"
)

// mockRecognizer returns preconfigured spans or fails.
type mockRecognizer struct {
	entities []Entity
	err      error
	panics   bool
}

func (m *mockRecognizer) Analyze(_ context.Context, _ string) ([]Entity, error) {
	if m.panics {
		panic("recognizer blew up")
	}
	return m.entities, m.err
}

func TestDetect_CPFScenario(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), "Meu CPF é 123.456.789-00 conforme solicitado")

	if res.AnonymizedText != "Meu CPF é <CPF> conforme solicitado" {
		t.Errorf("anonymized = %q, want %q", res.AnonymizedText, "Meu CPF é <CPF> conforme solicitado")
	}
	if res.EntityCounts[KindCPF] != 1 {
		t.Errorf("CPF count = %d, want 1", res.EntityCounts[KindCPF])
	}
	if len(res.Entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(res.Entities))
	}
	if res.Entities[0].Method != MethodPattern {
		t.Errorf("method = %q, want %q", res.Entities[0].Method, MethodPattern)
	}
	if res.RiskLevel != RiskHigh {
		t.Errorf("risk = %q, want %q", res.RiskLevel, RiskHigh)
	}
}

func TestDetect_PhoneScenario(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), "Ligue para (21) 98765-4321")

	if res.AnonymizedText != "Ligue para <TELEFONE>" {
		t.Errorf("anonymized = %q, want %q", res.AnonymizedText, "Ligue para <TELEFONE>")
	}
	if res.EntityCounts[KindTelefone] != 1 {
		t.Errorf("TELEFONE count = %d, want 1", res.EntityCounts[KindTelefone])
	}
	if res.RiskLevel != RiskLow {
		t.Errorf("risk = %q, want %q", res.RiskLevel, RiskLow)
	}
}

func TestDetect_ThreeEmails(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), "Contatos: ana@exemplo.com, beto@exemplo.org e caio@exemplo.net")

	if res.EntityCounts[KindEmail] != 3 {
		t.Errorf("EMAIL count = %d, want 3", res.EntityCounts[KindEmail])
	}
	if len(res.Entities) != 3 {
		t.Errorf("entities = %d, want 3", len(res.Entities))
	}
	if res.RiskLevel != RiskMedium {
		t.Errorf("risk = %q, want %q", res.RiskLevel, RiskMedium)
	}
}

func TestDetect_PlainText(t *testing.T) {
	t.Parallel()

	const text = "Solicito cópia do relatório anual de atividades da secretaria"

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), text)

	if res.AnonymizedText != text {
		t.Errorf("anonymized = %q, want input verbatim", res.AnonymizedText)
	}
	if len(res.Entities) != 0 {
		t.Errorf("entities = %d, want 0", len(res.Entities))
	}
	if len(res.EntityCounts) != 0 {
		t.Errorf("entity counts = %v, want empty", res.EntityCounts)
	}
	if res.RiskLevel != RiskLow {
		t.Errorf("risk = %q, want %q", res.RiskLevel, RiskLow)
	}
}

func TestDetect_ContextualName(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), "Meu nome é João Silva e peço acesso ao processo")

	if res.EntityCounts[KindPessoa] != 1 {
		t.Fatalf("PESSOA count = %d, want 1 (entities: %v)", res.EntityCounts[KindPessoa], res.Entities)
	}
	ent := res.Entities[0]
	if ent.Value != "João Silva" {
		t.Errorf("value = %q, want %q", ent.Value, "João Silva")
	}
	if ent.Method != MethodContextual {
		t.Errorf("method = %q, want %q", ent.Method, MethodContextual)
	}
	if !strings.Contains(res.AnonymizedText, "<PESSOA>") {
		t.Errorf("anonymized = %q, want <PESSOA> placeholder", res.AnonymizedText)
	}
	if res.RiskLevel != RiskMedium {
		t.Errorf("risk = %q, want %q", res.RiskLevel, RiskMedium)
	}
}

func TestDetect_ContextualNameTooShort(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), "Meu nome é Jo")

	if res.EntityCounts[KindPessoa] != 0 {
		t.Errorf("PESSOA count = %d, want 0 for a 2-char capture", res.EntityCounts[KindPessoa])
	}
}

func TestDetect_ContextualPhone(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), "WhatsApp: 999998888, aguardo retorno")

	if res.EntityCounts[KindTelefone] != 1 {
		t.Fatalf("TELEFONE count = %d, want 1 (entities: %v)", res.EntityCounts[KindTelefone], res.Entities)
	}
	if res.Entities[0].Method != MethodContextual {
		t.Errorf("method = %q, want %q (bare 9-digit runs need the keyword heuristic)", res.Entities[0].Method, MethodContextual)
	}
}

func TestDetect_ContextualAddress(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), "Resido na Rua das Flores, nº 42 desde 2019")

	if res.EntityCounts[KindEndereco] != 1 {
		t.Fatalf("ENDERECO count = %d, want 1 (entities: %v)", res.EntityCounts[KindEndereco], res.Entities)
	}
	if res.RiskLevel != RiskMedium {
		t.Errorf("risk = %q, want %q", res.RiskLevel, RiskMedium)
	}
}

func TestDetect_NoOverlaps(t *testing.T) {
	t.Parallel()

	const text = "Sou Maria Souza, CPF 123.456.789-00, cartão 1234 5678 9012 3456, " +
		"email maria@exemplo.com, telefone: 61999998888, CEP 70000-000, nascida em 01/01/1990"

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), text)

	for i, a := range res.Entities {
		for j, b := range res.Entities {
			if i == j {
				continue
			}
			if a.Start < b.End && b.Start < a.End {
				t.Errorf("overlapping spans: %v and %v", a, b)
			}
		}
	}
	if len(res.Entities) <= massLeakThreshold {
		t.Fatalf("entities = %d, want > %d for this input", len(res.Entities), massLeakThreshold)
	}
	if res.RiskLevel != RiskHigh {
		t.Errorf("risk = %q, want %q (mass-leak override)", res.RiskLevel, RiskHigh)
	}
}

func TestDetect_SpanOffsetsValid(t *testing.T) {
	t.Parallel()

	const text = "Requerente: Ana Lima, RG 12.345.678-9, placa ABC-1234, título 1234 5678 9012"

	e := NewEngine(nil, log.Nop())
	res := e.Detect(context.Background(), text)

	for _, ent := range res.Entities {
		if ent.Start < 0 || ent.End > len(text) || ent.Start >= ent.End {
			t.Errorf("invalid span: %+v", ent)
		}
		if text[ent.Start:ent.End] != ent.Value {
			t.Errorf("value %q does not match span text %q", ent.Value, text[ent.Start:ent.End])
		}
	}
}

func TestDetect_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Meu CPF é 123.456.789-00 conforme solicitado",
		"Ligue para (21) 98765-4321",
		"Sou Pedro Alves, email pedro@exemplo.com, CEP 70000-000",
		"CNPJ 12.345.678/0001-99 da empresa contratada",
	}

	e := NewEngine(nil, log.Nop())
	for _, text := range inputs {
		res := e.Detect(context.Background(), text)
		if got := Anonymize(text, res.Entities); got != res.AnonymizedText {
			t.Errorf("Anonymize(%q) = %q, want %q", text, got, res.AnonymizedText)
		}
	}
}

func TestDetect_IdempotentOnOwnOutput(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, log.Nop())
	first := e.Detect(context.Background(), "Meu nome é João Silva, CPF 123.456.789-00, tel (61) 99999-8888")

	second := e.Detect(context.Background(), first.AnonymizedText)
	for kind := range first.EntityCounts {
		if second.EntityCounts[kind] != 0 {
			t.Errorf("re-detection found %d new %s entities in anonymized text %q",
				second.EntityCounts[kind], kind, first.AnonymizedText)
		}
	}
}

func TestDetect_NLPLayerTakesPrecedence(t *testing.T) {
	t.Parallel()

	const text = "contato: fulano@exemplo.com"
	start := strings.Index(text, "fulano@exemplo.com")
	rec := &mockRecognizer{entities: []Entity{{
		Kind:       "EMAIL_ADDRESS",
		Start:      start,
		End:        start + len("fulano@exemplo.com"),
		Confidence: 0.99,
	}}}

	e := NewEngine(rec, log.Nop())
	res := e.Detect(context.Background(), text)

	if len(res.Entities) != 1 {
		t.Fatalf("entities = %d, want 1 (pattern layer must yield to nlp span)", len(res.Entities))
	}
	if res.Entities[0].Method != MethodNLP {
		t.Errorf("method = %q, want %q", res.Entities[0].Method, MethodNLP)
	}
	if res.AnonymizedText != "contato: <EMAIL_ADDRESS>" {
		t.Errorf("anonymized = %q, want %q", res.AnonymizedText, "contato: <EMAIL_ADDRESS>")
	}
}

func TestDetect_RecognizerErrorSkipsLayer(t *testing.T) {
	t.Parallel()

	rec := &mockRecognizer{err: errors.New("model not loaded")}
	e := NewEngine(rec, log.Nop())
	res := e.Detect(context.Background(), "Meu CPF é 123.456.789-00")

	if res.EntityCounts[KindCPF] != 1 {
		t.Errorf("CPF count = %d, want 1 (pattern layer must still run)", res.EntityCounts[KindCPF])
	}
	if res.AnonymizedText == FailSafeText {
		t.Error("recognizer error must not trigger the fail-safe path")
	}
}

func TestDetect_FailSafeOnPanic(t *testing.T) {
	t.Parallel()

	rec := &mockRecognizer{panics: true}
	e := NewEngine(rec, log.Nop())
	res := e.Detect(context.Background(), "Meu CPF é 123.456.789-00")

	if res.AnonymizedText != FailSafeText {
		t.Errorf("anonymized = %q, want fail-safe marker", res.AnonymizedText)
	}
	if len(res.Entities) != 0 {
		t.Errorf("entities = %d, want 0 on fail-safe", len(res.Entities))
	}
}

func TestDetect_RecognizerSpanOutOfBounds(t *testing.T) {
	t.Parallel()

	rec := &mockRecognizer{entities: []Entity{
		{Kind: "PERSON", Start: 5, End: 500},
		{Kind: "PERSON", Start: -1, End: 3},
		{Kind: "PERSON", Start: 4, End: 4},
	}}
	e := NewEngine(rec, log.Nop())
	res := e.Detect(context.Background(), "texto curto sem dados")

	if len(res.Entities) != 0 {
		t.Errorf("entities = %d, want 0 (invalid spans must be dropped)", len(res.Entities))
	}
}

func TestClassifyRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		entities []Entity
		want     RiskLevel
	}{
		{"empty", nil, RiskLow},
		{"single email", []Entity{{Kind: KindEmail}}, RiskLow},
		{"two low-risk", []Entity{{Kind: KindEmail}, {Kind: KindTelefone}}, RiskLow},
		{"three low-risk", []Entity{{Kind: KindEmail}, {Kind: KindEmail}, {Kind: KindEmail}}, RiskMedium},
		{"single cpf", []Entity{{Kind: KindCPF}}, RiskHigh},
		{"cpf among low-risk", []Entity{{Kind: KindEmail}, {Kind: KindCPF}}, RiskHigh},
		{"single person", []Entity{{Kind: KindPessoa}}, RiskMedium},
		{"cnpj", []Entity{{Kind: KindCNPJ}}, RiskMedium},
		{"nlp credit card", []Entity{{Kind: "CREDIT_CARD"}}, RiskHigh},
		{"unknown nlp kind", []Entity{{Kind: "NRP"}}, RiskMedium},
		{
			"mass leak forces high",
			[]Entity{{Kind: KindEmail}, {Kind: KindEmail}, {Kind: KindEmail}, {Kind: KindEmail}, {Kind: KindEmail}, {Kind: KindEmail}},
			RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ClassifyRisk(tt.entities); got != tt.want {
				t.Errorf("ClassifyRisk() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyRisk_MonotonicWithHighRiskKind(t *testing.T) {
	t.Parallel()

	entities := []Entity{{Kind: KindCPF}}
	for range 8 {
		if got := ClassifyRisk(entities); got != RiskHigh {
			t.Fatalf("ClassifyRisk(%d entities with CPF) = %q, want %q", len(entities), got, RiskHigh)
		}
		entities = append(entities, Entity{Kind: KindEmail})
	}
}

func TestHashText(t *testing.T) {
	t.Parallel()

	h := HashText("dado sensível")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h == "dado sensível" {
		t.Error("hash must not equal the input")
	}
	if HashText("dado sensível") != h {
		t.Error("hash must be deterministic")
	}
}
