package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/postgres"
)

// Document lifecycle states stored in the status column.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
)

// Schema creates the documents table. Names are unique across the corpus;
// meta holds the document variables as a flat JSON object.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	id              UUID PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	text            TEXT NOT NULL,
	meta            JSONB NOT NULL DEFAULT '{}'::jsonb,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	idempotency_key TEXT UNIQUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	indexed_at      TIMESTAMPTZ
)`

// Repository stores corpus documents in PostgreSQL.
type Repository struct {
	db *postgres.Client
}

func NewRepository(db *postgres.Client) *Repository {
	return &Repository{db: db}
}

type documentRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Text           string         `db:"text"`
	Meta           []byte         `db:"meta"`
	Status         string         `db:"status"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	CreatedAt      time.Time      `db:"created_at"`
	IndexedAt      sql.NullTime   `db:"indexed_at"`
}

func (r documentRow) document() (Document, error) {
	var meta map[string]string
	if len(r.Meta) > 0 {
		if err := json.Unmarshal(r.Meta, &meta); err != nil {
			return Document{}, fmt.Errorf("decoding meta of %s: %w", r.Name, err)
		}
	}
	d := NewDocument(r.Name, r.Text, meta)
	d.ID = r.ID
	d.CreatedAt = r.CreatedAt
	return d, nil
}

// EnsureSchema creates the documents table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Save inserts d with status PENDING and returns it with its assigned ID and
// creation time. A name or idempotency key already in use yields
// ErrDocumentExists.
func (r *Repository) Save(ctx context.Context, d Document, idempotencyKey string) (Document, error) {
	meta, err := json.Marshal(d.meta)
	if err != nil {
		return Document{}, fmt.Errorf("encoding meta: %w", err)
	}
	if d.meta == nil {
		meta = []byte("{}")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	err = r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO documents (id, name, text, meta, status, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
			RETURNING created_at`,
			d.ID, d.Name, d.Text, meta, StatusPending, nullableString(idempotencyKey),
		).Scan(&d.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Newf(apperrors.ErrDocumentExists, 409, "document %q already exists", d.Name)
		}
		return err
	})
	if err != nil {
		return Document{}, fmt.Errorf("inserting document: %w", err)
	}
	return d, nil
}

// FindByIdempotencyKey returns the document stored under key, or ok=false.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (doc Document, status string, ok bool, err error) {
	var row documentRow
	err = r.db.DB.GetContext(ctx, &row,
		`SELECT id, name, text, meta, status, idempotency_key, created_at, indexed_at
		FROM documents WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, "", false, nil
	}
	if err != nil {
		return Document{}, "", false, fmt.Errorf("querying by idempotency key: %w", err)
	}
	doc, err = row.document()
	if err != nil {
		return Document{}, "", false, err
	}
	return doc, row.Status, true, nil
}

// Get loads one document by ID.
func (r *Repository) Get(ctx context.Context, id string) (Document, error) {
	var row documentRow
	err := r.db.DB.GetContext(ctx, &row,
		`SELECT id, name, text, meta, status, idempotency_key, created_at, indexed_at
		FROM documents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document %s not found", id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("querying document: %w", err)
	}
	return row.document()
}

// MarkIndexed records that the document reached the in-memory corpus. An
// unknown id is ErrDocumentNotFound.
func (r *Repository) MarkIndexed(ctx context.Context, id string) error {
	res, err := r.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1, indexed_at = now() WHERE id = $2`, StatusIndexed, id)
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document %s not found", id)
	}
	return nil
}

// List returns documents in insertion order. limit <= 0 means no limit.
func (r *Repository) List(ctx context.Context, limit int) ([]Document, error) {
	query := `SELECT id, name, text, meta, status, idempotency_key, created_at, indexed_at
		FROM documents ORDER BY created_at, name`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	var rows []documentRow
	if err := r.db.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		d, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.DB.GetContext(ctx, &n, `SELECT count(*) FROM documents`); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
