// Package pgstore provides a PostgreSQL implementation of record.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/record"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

var tracer = otel.Tracer("github.com/laredonunes/sigilo-laredo/internal/record/pgstore")

//go:embed schema.sql
var schema string

// Store persists processed requests in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool remains owned by
// the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// SaveDetection writes the request row and its entity rows in one transaction.
func (s *Store) SaveDetection(ctx context.Context, req *record.ProcessedRequest, entities []record.DetectedEntity) error {
	ctx, span := tracer.Start(ctx, "pgstore.SaveDetection", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	countsJSON, err := json.Marshal(req.EntityCounts)
	if err != nil {
		return fmt.Errorf("marshal entity counts: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	_, err = tx.Exec(ctx,
		`INSERT INTO pedidos_processados (
			origem_id, protocolo, usuario_id, texto_original_hash, texto_anonimizado,
			total_entidades, entidades_por_tipo, nivel_risco, created_at, processed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		req.JobID, nullable(req.Protocol), nullable(req.RequesterID), req.TextHash,
		req.AnonymizedText, req.TotalEntities, countsJSON, string(req.RiskLevel),
		req.CreatedAt, req.ProcessedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert request: %w", err)
	}

	for i := range entities {
		e := &entities[i]
		_, err = tx.Exec(ctx,
			`INSERT INTO entidades_detectadas (
				pedido_origem_id, tipo, valor_hash, confianca,
				posicao_inicio, posicao_fim, metodo_deteccao, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			e.JobID, string(e.Kind), e.ValueHash, e.Confidence,
			e.Start, e.End, string(e.Method), e.CreatedAt,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("insert entity %s: %w", e.Kind, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CompleteRequest writes the consolidation fields onto the existing row.
func (s *Store) CompleteRequest(ctx context.Context, jobID string, c record.Completion) error {
	ctx, span := tracer.Start(ctx, "pgstore.CompleteRequest", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	summaryJSON, err := json.Marshal(c.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pedidos_processados
		 SET tempo_processamento_ms = $2, auditoria = $3, resumo_llm = $4
		 WHERE origem_id = $1`,
		jobID, c.ElapsedMS, c.Audit, summaryJSON,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

// GetByJobID retrieves the request row and its entities.
func (s *Store) GetByJobID(ctx context.Context, jobID string) (*record.ProcessedRequest, []record.DetectedEntity, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByJobID", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	req, err := s.scanRequestRow(s.pool.QueryRow(ctx,
		`SELECT origem_id, protocolo, usuario_id, texto_original_hash, texto_anonimizado,
			total_entidades, entidades_por_tipo, nivel_risco, created_at, processed_at,
			tempo_processamento_ms, auditoria, resumo_llm
		 FROM pedidos_processados WHERE origem_id = $1`, jobID))
	if err != nil {
		if !errors.Is(err, record.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, nil, err
	}

	entities, err := s.loadEntities(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return req, entities, nil
}

func (s *Store) loadEntities(ctx context.Context, jobID string) ([]record.DetectedEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tipo, valor_hash, confianca, posicao_inicio, posicao_fim, metodo_deteccao, created_at
		 FROM entidades_detectadas WHERE pedido_origem_id = $1 ORDER BY posicao_inicio`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []record.DetectedEntity
	for rows.Next() {
		var (
			e      record.DetectedEntity
			kind   string
			method string
		)
		if err := rows.Scan(&kind, &e.ValueHash, &e.Confidence, &e.Start, &e.End, &method, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.JobID = jobID
		e.Kind = detect.Kind(kind)
		e.Method = detect.Method(method)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}

func (s *Store) scanRequestRow(row pgx.Row) (*record.ProcessedRequest, error) {
	var (
		r           record.ProcessedRequest
		protocol    *string
		requesterID *string
		risk        string
		countsJSON  []byte
		processedAt *time.Time
		elapsed     *int64
		summaryJSON []byte
	)

	err := row.Scan(
		&r.JobID, &protocol, &requesterID, &r.TextHash, &r.AnonymizedText,
		&r.TotalEntities, &countsJSON, &risk, &r.CreatedAt, &processedAt,
		&elapsed, &r.Audit, &summaryJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	if protocol != nil {
		r.Protocol = *protocol
	}
	if requesterID != nil {
		r.RequesterID = *requesterID
	}
	r.RiskLevel = detect.RiskLevel(risk)
	if processedAt != nil {
		r.ProcessedAt = *processedAt
	}
	if elapsed != nil {
		r.ElapsedMS = *elapsed
	}

	if err := json.Unmarshal(countsJSON, &r.EntityCounts); err != nil {
		return nil, fmt.Errorf("unmarshal entity counts: %w", err)
	}
	if len(summaryJSON) > 0 {
		var sum summary.Summary
		if err := json.Unmarshal(summaryJSON, &sum); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		r.Summary = &sum
	}
	return &r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
