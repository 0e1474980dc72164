package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/record"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

func sampleDetection(jobID string) (*record.ProcessedRequest, []record.DetectedEntity) {
	res := &detect.Result{
		AnonymizedText: "Contato: <EMAIL>",
		Entities: []detect.Entity{{
			Kind: detect.KindEmail, Value: "ana@example.com", Start: 9, End: 24,
			Confidence: 0.95, Method: detect.MethodPattern,
		}},
		EntityCounts: map[detect.Kind]int{detect.KindEmail: 1},
		RiskLevel:    detect.RiskLow,
	}
	return record.NewDetection(jobID, "", "", "Contato: ana@example.com", res, time.Now())
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	req, entities := sampleDetection("j-1")
	if err := s.SaveDetection(context.Background(), req, entities); err != nil {
		t.Fatalf("SaveDetection() error = %v", err)
	}

	got, gotEntities, err := s.GetByJobID(context.Background(), "j-1")
	if err != nil {
		t.Fatalf("GetByJobID() error = %v", err)
	}
	if got.AnonymizedText != "Contato: <EMAIL>" {
		t.Errorf("AnonymizedText = %q", got.AnonymizedText)
	}
	if len(gotEntities) != 1 || gotEntities[0].Kind != detect.KindEmail {
		t.Errorf("entities = %+v", gotEntities)
	}
}

func TestCompleteRequest(t *testing.T) {
	t.Parallel()

	s := New()
	req, entities := sampleDetection("j-2")
	s.SaveDetection(context.Background(), req, entities)

	err := s.CompleteRequest(context.Background(), "j-2", record.Completion{
		ElapsedMS: 42,
		Audit:     []byte(`{"conformidade":{"lgpd":true}}`),
		Summary:   summary.Fallback(),
	})
	if err != nil {
		t.Fatalf("CompleteRequest() error = %v", err)
	}

	got, _, _ := s.GetByJobID(context.Background(), "j-2")
	if got.ElapsedMS != 42 {
		t.Errorf("ElapsedMS = %d, want 42", got.ElapsedMS)
	}
	if got.Summary == nil || got.Summary.Category != "Outro" {
		t.Errorf("Summary = %+v, want fallback", got.Summary)
	}
}

func TestCompleteRequest_Unknown(t *testing.T) {
	t.Parallel()

	s := New()
	err := s.CompleteRequest(context.Background(), "missing", record.Completion{})
	if !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("CompleteRequest() error = %v, want ErrNotFound", err)
	}
}

func TestGetByJobID_Unknown(t *testing.T) {
	t.Parallel()

	s := New()
	if _, _, err := s.GetByJobID(context.Background(), "missing"); !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("GetByJobID() error = %v, want ErrNotFound", err)
	}
}

func TestGetByJobID_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	req, entities := sampleDetection("j-3")
	s.SaveDetection(context.Background(), req, entities)

	a, aEntities, _ := s.GetByJobID(context.Background(), "j-3")
	a.RiskLevel = detect.RiskHigh
	if len(aEntities) > 0 {
		aEntities[0].Kind = detect.KindCPF
	}

	b, bEntities, _ := s.GetByJobID(context.Background(), "j-3")
	if b.RiskLevel != detect.RiskLow {
		t.Errorf("stored request mutated: RiskLevel = %q", b.RiskLevel)
	}
	if bEntities[0].Kind != detect.KindEmail {
		t.Errorf("stored entities mutated: Kind = %q", bEntities[0].Kind)
	}
}
