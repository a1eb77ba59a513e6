package replylog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGStore keeps one row per slot in Postgres. The table is created by the
// reply_log migration.
type PGStore struct {
	db    rowQuerier
	table string
}

func NewPGStore(pool *pgxpool.Pool, table string) (*PGStore, error) {
	if pool == nil {
		panic("replylog: pgx pool cannot be nil")
	}
	return newPGStore(pool, table)
}

func newPGStore(db rowQuerier, table string) (*PGStore, error) {
	if table == "" {
		table = "reply_log"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("replylog: invalid table name %q", table)
	}
	return &PGStore{db: db, table: table}, nil
}

func (s *PGStore) Write(ctx context.Context, key string, entry Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (slot, kind, answer, prompt, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slot) DO UPDATE
		SET kind = EXCLUDED.kind,
		    answer = EXCLUDED.answer,
		    prompt = EXCLUDED.prompt,
		    updated_at = EXCLUDED.updated_at
	`, s.table)
	if _, err := s.db.Exec(ctx, query, key, entry.Kind, entry.Answer, entry.Prompt, time.Now().UTC()); err != nil {
		return fmt.Errorf("replylog: persist reply: %w", err)
	}
	return nil
}

func (s *PGStore) Read(ctx context.Context, key string) (Entry, error) {
	query := fmt.Sprintf(`SELECT kind, answer, prompt FROM %s WHERE slot = $1`, s.table)
	var entry Entry
	if err := s.db.QueryRow(ctx, query, key).Scan(&entry.Kind, &entry.Answer, &entry.Prompt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEmpty
		}
		return Entry{}, fmt.Errorf("replylog: load reply: %w", err)
	}
	if entry.Kind == "" || entry.Answer == "" {
		return Entry{}, ErrEmpty
	}
	return entry, nil
}

func (s *PGStore) Clear(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE slot = $1`, s.table)
	if _, err := s.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("replylog: clear reply: %w", err)
	}
	return nil
}
