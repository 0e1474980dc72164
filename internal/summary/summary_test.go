package summary

import (
	"strings"
	"testing"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
)

func TestParse_CleanJSON(t *testing.T) {
	t.Parallel()

	raw := `{
		"categoria": "Saúde",
		"subcategoria": "Medicamentos",
		"prioridade": "Alta",
		"assunto_principal": "Solicitação de medicamento de alto custo",
		"palavras_chave": ["medicamento", "alto custo"],
		"requer_analise_juridica": true,
		"prazo_sugerido": "Urgente"
	}`

	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s.Category != "Saúde" {
		t.Errorf("Category = %q, want %q", s.Category, "Saúde")
	}
	if s.Priority != "Alta" {
		t.Errorf("Priority = %q, want %q", s.Priority, "Alta")
	}
	if !s.LegalReview {
		t.Error("LegalReview = false, want true")
	}
	if len(s.Keywords) != 2 {
		t.Errorf("len(Keywords) = %d, want 2", len(s.Keywords))
	}
}

func TestParse_MarkdownFencedJSON(t *testing.T) {
	t.Parallel()

	raw := "Aqui está a classificação:\n```json\n" +
		`{"categoria":"Obras","subcategoria":"Pavimentação","prioridade":"Media","assunto_principal":"Obra na via pública","palavras_chave":["obra"],"requer_analise_juridica":false,"prazo_sugerido":"Normal"}` +
		"\n```\nEspero ter ajudado."

	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s.Category != "Obras" {
		t.Errorf("Category = %q, want %q", s.Category, "Obras")
	}
}

func TestParse_NoJSON(t *testing.T) {
	t.Parallel()

	if _, err := Parse("não consegui classificar este pedido"); err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
}

func TestParse_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	raw := `{"categoria":"Saúde","palavras_chave":["x"]}`
	if _, err := Parse(raw); err == nil {
		t.Fatal("Parse() error = nil, want error for missing required fields")
	}
}

func TestFallback(t *testing.T) {
	t.Parallel()

	s := Fallback()
	if s.Category != "Outro" {
		t.Errorf("Category = %q, want %q", s.Category, "Outro")
	}
	if s.Priority != "Media" {
		t.Errorf("Priority = %q, want %q", s.Priority, "Media")
	}
	if s.MainSubject != "Pedido de acesso à informação" {
		t.Errorf("MainSubject = %q, want %q", s.MainSubject, "Pedido de acesso à informação")
	}
	if s.Keywords == nil || len(s.Keywords) != 0 {
		t.Errorf("Keywords = %v, want empty non-nil slice", s.Keywords)
	}
	if s.Note == "" {
		t.Error("Note is empty, want fallback marker")
	}
}

func TestFallback_Independent(t *testing.T) {
	t.Parallel()

	a := Fallback()
	a.Category = "mutated"
	if b := Fallback(); b.Category != "Outro" {
		t.Errorf("Fallback() shares state across calls: Category = %q", b.Category)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt("Solicito contrato <CPF>", map[detect.Kind]int{detect.KindCPF: 1})
	if !strings.Contains(p, "Solicito contrato <CPF>") {
		t.Error("prompt does not contain anonymized text")
	}
	if !strings.Contains(p, `"CPF":1`) {
		t.Error("prompt does not contain entity counts")
	}
	if !strings.Contains(p, "NÃO reintroduza dados pessoais") {
		t.Error("prompt does not forbid reintroducing personal data")
	}
}
