package leads

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL. It does not own the pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresStore constructs a Postgres-backed Store in schema (default "supreme").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("leads: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "supreme"
	}
	if !pgIdentRE.MatchString(schema) {
		return nil, errors.New("leads: invalid schema identifier")
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "leads"}.Sanitize()
}

// EnsureSchema creates the leads table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + s.table() + ` (
			id           uuid PRIMARY KEY,
			name         text,
			phone        text,
			email        text,
			message      text,
			property_ref text,
			source       text NOT NULL,
			created_at   timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{"leads_created_at_idx"}.Sanitize() + ` ON ` + s.table() + ` (created_at DESC)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("leads: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, l Lead) (Lead, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Lead{}, fmt.Errorf("leads: new id: %w", err)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (id, name, phone, email, message, property_ref, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, nullIfEmpty(l.Name), nullIfEmpty(l.Phone), nullIfEmpty(l.Email),
		nullIfEmpty(l.Message), nullIfEmpty(l.PropertyRef), l.Source, l.CreatedAt,
	)
	if err != nil {
		return Lead{}, fmt.Errorf("leads: insert: %w", err)
	}
	l.ID = id.String()
	return l, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, coalesce(name, ''), coalesce(phone, ''), coalesce(email, ''),
		        coalesce(message, ''), coalesce(property_ref, ''), source, created_at
		   FROM `+s.table()+`
		  ORDER BY created_at DESC
		  LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("leads: recent: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.Message, &l.PropertyRef, &l.Source, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
