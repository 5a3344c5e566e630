package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Outcome is the preprocessing result recorded for one document.
type Outcome struct {
	DocumentID string
	Lang       string
	Status     string
	Terms      []string
	Error      string
}

// StatusStore records preprocessing outcomes in the documents table. Rows
// are upserted so documents unknown to the table are registered on first
// sight.
type StatusStore struct {
	db Execer
}

func NewStatusStore(db Execer) *StatusStore {
	return &StatusStore{db: db}
}

const upsertStatus = `INSERT INTO documents (id, lang, status, term_count, terms, error, preprocessed_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (id) DO UPDATE SET
	lang = EXCLUDED.lang,
	status = EXCLUDED.status,
	term_count = EXCLUDED.term_count,
	terms = EXCLUDED.terms,
	error = EXCLUDED.error,
	preprocessed_at = EXCLUDED.preprocessed_at`

// Record upserts o with the current time as preprocessed_at.
func (s *StatusStore) Record(ctx context.Context, o Outcome) error {
	var errText sql.NullString
	if o.Error != "" {
		errText = sql.NullString{String: o.Error, Valid: true}
	}
	terms := o.Terms
	if terms == nil {
		terms = []string{}
	}
	_, err := s.db.ExecContext(ctx, upsertStatus,
		o.DocumentID, o.Lang, o.Status, len(o.Terms), pq.Array(terms), errText,
	)
	if err != nil {
		return fmt.Errorf("recording status %s for document %s: %w", o.Status, o.DocumentID, err)
	}
	return nil
}
