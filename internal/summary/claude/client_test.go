package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

func messageResponse(text string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-sonnet-4-5",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
	}
}

func TestSummarize_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v1/messages")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageResponse(
			`{"categoria":"RH","subcategoria":"Folha de pagamento","prioridade":"Baixa","assunto_principal":"Consulta de remuneração","palavras_chave":["remuneração"],"requer_analise_juridica":false,"prazo_sugerido":"Normal"}`,
		))
	}))
	defer srv.Close()

	c := New("test-key", "claude-sonnet-4-5", 5*time.Second,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	s, err := c.Summarize(context.Background(), "Pedido sobre <PESSOA>", map[detect.Kind]int{detect.KindPessoa: 1})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.Category != "RH" {
		t.Errorf("Category = %q, want %q", s.Category, "RH")
	}
	if s.SuggestedDue != "Normal" {
		t.Errorf("SuggestedDue = %q, want %q", s.SuggestedDue, "Normal")
	}
}

func TestSummarize_FencedOutput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageResponse(
			"```json\n{\"categoria\":\"Obras\",\"subcategoria\":\"Vias\",\"prioridade\":\"Media\",\"assunto_principal\":\"Obra pública\",\"palavras_chave\":[],\"requer_analise_juridica\":false,\"prazo_sugerido\":\"Normal\"}\n```",
		))
	}))
	defer srv.Close()

	c := New("test-key", "claude-sonnet-4-5", 5*time.Second,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	s, err := c.Summarize(context.Background(), "texto", nil)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.Category != "Obras" {
		t.Errorf("Category = %q, want %q", s.Category, "Obras")
	}
}

func TestSummarize_APIErrorIsNotConnectivity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "bad request"},
		})
	}))
	defer srv.Close()

	c := New("test-key", "claude-sonnet-4-5", 5*time.Second,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := c.Summarize(context.Background(), "texto", nil)
	if err == nil {
		t.Fatal("Summarize() error = nil, want error")
	}
	if errors.Is(err, summary.ErrUnreachable) {
		t.Errorf("api error classified as connectivity failure: %v", err)
	}
}

func TestSummarize_UnreachableServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New("test-key", "claude-sonnet-4-5", 5*time.Second,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := c.Summarize(context.Background(), "texto", nil)
	if !errors.Is(err, summary.ErrUnreachable) {
		t.Fatalf("Summarize() error = %v, want ErrUnreachable", err)
	}
}
