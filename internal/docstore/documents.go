package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fitpro/fitsync/internal/domain"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readDoc(ctx context.Context, q queryer, path string) (*domain.Document, error) {
	var (
		raw string
		rev int64
	)
	err := q.QueryRowContext(ctx, `SELECT fields, revision FROM documents WHERE path = ?`, path).Scan(&raw, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	return &domain.Document{Path: path, Fields: fields, Revision: domain.Revision(rev)}, nil
}

// revisionOf returns 0 for a document that does not exist.
func revisionOf(ctx context.Context, q queryer, path string) (domain.Revision, error) {
	var rev int64
	err := q.QueryRowContext(ctx, `SELECT revision FROM documents WHERE path = ?`, path).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read revision %s: %w", path, err)
	}
	return domain.Revision(rev), nil
}

func upsertDoc(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.Path, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (path, fields, revision)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fields = excluded.fields,
			revision = excluded.revision
	`, doc.Path, string(data), int64(doc.Revision))
	if err != nil {
		return fmt.Errorf("write document %s: %w", doc.Path, err)
	}
	return nil
}
