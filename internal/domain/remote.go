package domain

import "context"

// Revision is the remote store's logical commit sequence. Every commit gets a
// strictly greater revision than the previous one.
type Revision int64

// Document is a point-in-time read of one remote document.
// Fields hold JSON-shaped values: map[string]any, []any, string, float64, bool, nil.
type Document struct {
	Path     string
	Fields   map[string]any
	Revision Revision
}

// FieldOp is a field-level atomic operation applied server-side.
type FieldOp interface {
	fieldOp()
}

// ArrayUnion appends each value not already present in the array field.
type ArrayUnion struct{ Values []any }

// ArrayRemove removes every element equal to one of the values.
type ArrayRemove struct{ Values []any }

// DeleteField removes the field.
type DeleteField struct{}

// SetValue overwrites the field, creating intermediate maps as needed.
type SetValue struct{ Value any }

func (ArrayUnion) fieldOp()  {}
func (ArrayRemove) fieldOp() {}
func (DeleteField) fieldOp() {}
func (SetValue) fieldOp()    {}

// Update maps dot-separated field paths ("progress.c1.w1.e1") to operations.
type Update map[string]FieldOp

// SnapshotFunc receives every pushed document state.
type SnapshotFunc func(doc *Document)

// ErrorFunc receives a subscription failure. The subscription is dead afterwards.
type ErrorFunc func(err error)

// Unsubscribe cancels a subscription. When it returns no further callbacks fire.
// It must not be called from inside a subscription callback.
type Unsubscribe func()

// RemoteStore is the remote document store contract: the durable system of record.
type RemoteStore interface {
	// Read returns ErrDocumentNotFound when the document does not exist
	Read(ctx context.Context, path string) (*Document, error)

	// Write replaces the whole document
	Write(ctx context.Context, path string, fields map[string]any) (Revision, error)

	// AtomicUpdate applies field operations to an existing document in one commit
	AtomicUpdate(ctx context.Context, path string, update Update) (Revision, error)

	// Subscribe pushes the current state, then one snapshot per remote change
	Subscribe(ctx context.Context, path string, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)

	// RunTransaction runs fn once; commit fails with ErrAborted if any document
	// read inside fn changed before commit. The caller owns the retry policy.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) (Revision, error)
}

// Txn is the handle passed to a RunTransaction callback.
// Reads must come before writes; writes are buffered until commit.
type Txn interface {
	Get(path string) (*Document, error)
	Set(path string, fields map[string]any)
	Update(path string, update Update)
}
