package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"brieflybot/internal/ports"
)

const dedupeTable = "dedupe_entries"

// PostgresStore persists dedupe cache entries in a single Postgres table so
// deduplication survives process restarts.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.DedupeStore = (*PostgresStore)(nil)

// OpenPostgres connects with the given DSN and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	s := NewPostgresStore(db)
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wires an existing sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		content_hash  TEXT PRIMARY KEY,
		first_seen_at TIMESTAMPTZ NOT NULL
	)`, dedupeTable)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure dedupe schema: %w", err)
	}
	return nil
}

// Load returns every persisted entry.
func (s *PostgresStore) Load(ctx context.Context) (map[string]time.Time, error) {
	query, args, err := s.sb.
		Select("content_hash", "first_seen_at").
		From(dedupeTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load dedupe entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]time.Time)
	for rows.Next() {
		var hash string
		var firstSeen time.Time
		if err := rows.Scan(&hash, &firstSeen); err != nil {
			return nil, fmt.Errorf("scan dedupe entry: %w", err)
		}
		entries[hash] = firstSeen
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return entries, nil
}

// Persist replaces the stored snapshot with the given entries inside one
// transaction; the in-memory cache stays authoritative between runs.
func (s *PostgresStore) Persist(ctx context.Context, entries map[string]time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist tx: %w", err)
	}
	defer tx.Rollback()

	deleteQuery, _, err := s.sb.Delete(dedupeTable).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery); err != nil {
		return fmt.Errorf("clear dedupe entries: %w", err)
	}

	if len(entries) > 0 {
		insert := s.sb.Insert(dedupeTable).Columns("content_hash", "first_seen_at")
		for hash, firstSeen := range entries {
			insert = insert.Values(hash, firstSeen)
		}

		insertQuery, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, args...); err != nil {
			return fmt.Errorf("insert dedupe entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist tx: %w", err)
	}
	return nil
}
