package chat

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

// PostgresStore is a MessageStore backed by PostgreSQL.
//
// PostgresStore does NOT own the pgx pool; Close is a no-op and the caller closes the pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "supreme").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed MessageStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "supreme"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// EnsureSchema creates the messages table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := pgx.Identifier{s.schema}.Sanitize()
	messages := pgIdent(s.schema, "messages")
	idx := pgx.Identifier{"messages_created_at_idx"}.Sanitize()

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + schema,
		`CREATE TABLE IF NOT EXISTS ` + messages + ` (
			id         uuid PRIMARY KEY,
			user_id    text NOT NULL,
			user_name  varchar(50) NOT NULL,
			message    varchar(1000) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx + ` ON ` + messages + ` (created_at DESC, id DESC)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("chat: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, in NewMessage) (Message, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Message{}, fmt.Errorf("chat: new id: %w", err)
	}

	var m Message
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+pgIdent(s.schema, "messages")+` (id, user_id, user_name, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id::text, user_id, user_name, message, created_at`,
		id, in.UserID, in.UserName, in.Message, now,
	).Scan(&m.ID, &m.UserID, &m.UserName, &m.Message, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("chat: insert message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Message, error) {
	limit = clampLimit(limit)
	messages := pgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, user_name, message, created_at FROM (
		     SELECT id::text AS id, user_id, user_name, message, created_at
		       FROM `+messages+`
		      ORDER BY created_at DESC, id DESC
		      LIMIT $1
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("chat: recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.UserName, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (Message, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Message{}, OpError{Op: "chat.Delete", Kind: ErrNotFound}
	}

	var m Message
	err = s.pool.QueryRow(ctx,
		`DELETE FROM `+pgIdent(s.schema, "messages")+`
		  WHERE id = $1
		 RETURNING id::text, user_id, user_name, message, created_at`,
		uid,
	).Scan(&m.ID, &m.UserID, &m.UserName, &m.Message, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, OpError{Op: "chat.Delete", Kind: ErrNotFound}
	}
	if err != nil {
		return Message{}, fmt.Errorf("chat: delete message: %w", err)
	}
	return m, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
