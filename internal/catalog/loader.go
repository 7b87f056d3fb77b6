package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fitpro/fitsync/internal/domain"
)

// StorageKey is the local storage key of the persisted catalog copy.
const StorageKey = "catalog"

// Source produces a fresh catalog.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// FileSource adapts LoadFile to Source.
type FileSource string

// Load reads the file.
func (f FileSource) Load(context.Context) (*Catalog, error) {
	return LoadFile(string(f))
}

// Loader loads the catalog from its source and keeps a copy in local storage
// so the client can start without connectivity.
type Loader struct {
	source  Source
	storage domain.LocalStorage
	logger  *slog.Logger
}

// NewLoader creates a loader. Either source or storage may be nil.
func NewLoader(source Source, storage domain.LocalStorage, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, storage: storage, logger: logger}
}

// Load returns the catalog from the source, falling back to the persisted copy.
// stale reports whether the persisted copy was used.
func (l *Loader) Load(ctx context.Context) (cat *Catalog, stale bool, err error) {
	var srcErr error
	if l.source != nil {
		cat, srcErr = l.source.Load(ctx)
		if srcErr == nil {
			l.save(cat)
			return cat, false, nil
		}
		l.logger.Warn("catalog source failed, trying local copy", "error", srcErr)
	}

	cat, ok := l.restore()
	if ok {
		return cat, true, nil
	}
	if srcErr != nil {
		return nil, false, fmt.Errorf("load catalog: %w", srcErr)
	}
	return nil, false, errors.New("load catalog: no source configured and nothing persisted")
}

func (l *Loader) save(cat *Catalog) {
	if l.storage == nil {
		return
	}
	data, err := cat.MarshalJSON()
	if err != nil {
		l.logger.Error("failed to encode catalog", "error", err)
		return
	}
	if err := l.storage.Set(StorageKey, string(data)); err != nil {
		l.logger.Warn("failed to persist catalog", "error", err)
	}
}

func (l *Loader) restore() (*Catalog, bool) {
	if l.storage == nil {
		return nil, false
	}
	raw, ok := l.storage.Get(StorageKey)
	if !ok {
		return nil, false
	}
	cat, err := Decode([]byte(raw))
	if err != nil {
		l.logger.Warn("discarding undecodable persisted catalog", "error", err)
		return nil, false
	}
	return cat, true
}
