package docstore

import (
	"context"
	"errors"

	"github.com/fitpro/fitsync/internal/domain"
)

var errReadAfterWrite = errors.New("transaction reads must come before writes")

// txn records the revision of every document it reads and buffers writes
// until commit. The first misuse or failure sticks and fails the commit.
type txn struct {
	ctx    context.Context
	store  *Store
	reads  map[string]domain.Revision
	writes []pendingWrite
	err    error
}

func (t *txn) Get(path string) (*domain.Document, error) {
	if t.err != nil {
		return nil, t.err
	}
	if len(t.writes) > 0 {
		t.err = errReadAfterWrite
		return nil, t.err
	}
	if err := t.store.check(path); err != nil {
		t.err = err
		return nil, err
	}

	doc, err := readDoc(t.ctx, t.store.db, path)
	var rev domain.Revision
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		rev = 0
	case err != nil:
		t.err = t.store.wrapDBError(err)
		return nil, t.err
	default:
		rev = doc.Revision
	}

	if prev, seen := t.reads[path]; seen && prev != rev {
		t.err = domain.ErrAborted
		return nil, t.err
	}
	t.reads[path] = rev

	if doc == nil {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (t *txn) Set(path string, fields map[string]any) {
	if t.err != nil {
		return
	}
	if err := t.store.check(path); err != nil {
		t.err = err
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	t.writes = append(t.writes, pendingWrite{path: path, set: fields})
}

func (t *txn) Update(path string, update domain.Update) {
	if t.err != nil {
		return
	}
	if err := t.store.check(path); err != nil {
		t.err = err
		return
	}
	t.writes = append(t.writes, pendingWrite{path: path, update: update})
}
