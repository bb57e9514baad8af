package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

// PostgresSink persists documents into a Postgres table keyed by link.
type PostgresSink struct {
	db      *sql.DB
	table   string
	builder sq.StatementBuilderType
}

var _ ports.DocumentSink = (*PostgresSink)(nil)

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresSink(db, table), nil
}

// NewPostgresSink wires a sql.DB implementation.
func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	if table == "" {
		table = "documents"
	}
	return &PostgresSink{
		db:      db,
		table:   pq.QuoteIdentifier(table),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the documents table when it is missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	query := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
              link         TEXT PRIMARY KEY,
              title        TEXT NOT NULL,
              feed         TEXT NOT NULL,
              published_at TIMESTAMP NOT NULL,
              summary      TEXT,
              abstract     TEXT NOT NULL,
              body         TEXT NOT NULL,
              layout       TEXT NOT NULL,
              loaded_at    TIMESTAMP NOT NULL
          )`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// Save inserts the document; an already stored link is left untouched.
func (s *PostgresSink) Save(ctx context.Context, doc domain.Document) error {
	if s.db == nil {
		return nil
	}

	query, args, err := s.insertQuery(doc)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresSink) insertQuery(doc domain.Document) (string, []interface{}, error) {
	var summary sql.NullString
	if doc.Summary != "" {
		summary = sql.NullString{String: doc.Summary, Valid: true}
	}

	return s.builder.
		Insert(s.table).
		Columns("link", "title", "feed", "published_at", "summary", "abstract", "body", "layout", "loaded_at").
		Values(doc.Link, doc.Title, doc.Feed, doc.PublishedAt, summary, doc.Abstract, doc.Text, doc.Layout, doc.LoadedAt).
		Suffix("ON CONFLICT (link) DO NOTHING").
		ToSql()
}
