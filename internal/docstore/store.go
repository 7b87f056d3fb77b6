package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fitpro/fitsync/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

const defaultPollInterval = time.Second

// Options configures a Store.
type Options struct {
	// UserID restricts access to users/{UserID}. Empty means unrestricted.
	UserID string

	// PollInterval controls how often subscriptions look for commits made by
	// other processes. Zero uses the default; negative disables polling.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Store is a remote document store on a single SQLite database.
type Store struct {
	db     *sql.DB
	opts   Options
	logger *slog.Logger

	available atomic.Bool

	// commitMu orders commits with their notifications so subscribers see
	// in-process commits in revision order
	commitMu sync.Mutex

	subsMu sync.Mutex
	subs   map[string]map[*subscription]struct{} // path -> subscriptions

	pollOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
}

var _ domain.RemoteStore = (*Store)(nil)

// Open creates or opens the database at path.
func Open(path string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:     db,
		opts:   opts,
		logger: opts.Logger,
		subs:   make(map[string]map[*subscription]struct{}),
		stop:   make(chan struct{}),
	}
	s.available.Store(true)
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close cancels every subscription and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	s.wg.Wait()

	s.subsMu.Lock()
	var all []*subscription
	for _, set := range s.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	s.subs = make(map[string]map[*subscription]struct{})
	s.subsMu.Unlock()

	for _, sub := range all {
		sub.cancel()
	}
	return s.db.Close()
}

// SetAvailable emulates losing or regaining connectivity to the store.
// Going unavailable fails every active subscription with domain.ErrUnavailable.
func (s *Store) SetAvailable(available bool) {
	prev := s.available.Swap(available)
	if prev == available {
		return
	}
	s.logger.Info("remote availability changed", "available", available)
	if !available {
		s.failAll(domain.ErrUnavailable)
	}
}

// Ping checks that the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.check(""); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// check gates every call on availability and the access rule.
func (s *Store) check(path string) error {
	if s.closed.Load() || !s.available.Load() {
		return domain.ErrUnavailable
	}
	if path == "" || s.opts.UserID == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(path, "users/"); ok {
		owner, _, _ := strings.Cut(rest, "/")
		if owner != s.opts.UserID {
			return domain.ErrPermissionDenied
		}
	}
	return nil
}

// Read returns the document at path.
func (s *Store) Read(ctx context.Context, path string) (*domain.Document, error) {
	if err := s.check(path); err != nil {
		return nil, err
	}
	doc, err := readDoc(ctx, s.db, path)
	if err != nil {
		return nil, s.wrapDBError(err)
	}
	return doc, nil
}

// Write replaces the whole document at path.
func (s *Store) Write(ctx context.Context, path string, fields map[string]any) (domain.Revision, error) {
	if err := s.check(path); err != nil {
		return 0, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return s.commit(ctx, nil, []pendingWrite{{path: path, set: fields}})
}

// AtomicUpdate applies field operations to an existing document in one commit.
func (s *Store) AtomicUpdate(ctx context.Context, path string, update domain.Update) (domain.Revision, error) {
	if err := s.check(path); err != nil {
		return 0, err
	}
	return s.commit(ctx, nil, []pendingWrite{{path: path, update: update}})
}

// RunTransaction runs fn once and commits its buffered writes if none of the
// documents it read changed in the meantime.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Txn) error) (domain.Revision, error) {
	if err := s.check(""); err != nil {
		return 0, err
	}
	t := &txn{ctx: ctx, store: s, reads: make(map[string]domain.Revision)}
	if err := fn(ctx, t); err != nil {
		return 0, err
	}
	if t.err != nil {
		return 0, t.err
	}
	if len(t.writes) == 0 {
		return 0, nil
	}
	return s.commit(ctx, t.reads, t.writes)
}

// pendingWrite is either a full replace (set) or a field-level update.
type pendingWrite struct {
	path   string
	set    map[string]any
	update domain.Update
}

// commit applies writes in one SQLite transaction after verifying that every
// document in reads is still at the recorded revision.
func (s *Store) commit(ctx context.Context, reads map[string]domain.Revision, writes []pendingWrite) (domain.Revision, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.wrapDBError(err)
	}
	defer tx.Rollback()

	for path, rev := range reads {
		current, err := revisionOf(ctx, tx, path)
		if err != nil {
			return 0, s.wrapDBError(err)
		}
		if current != rev {
			s.logger.Debug("transaction aborted", "path", path, "read", rev, "current", current)
			return 0, domain.ErrAborted
		}
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `UPDATE commit_seq SET seq = seq + 1 WHERE id = 1 RETURNING seq`).Scan(&seq); err != nil {
		return 0, s.wrapDBError(err)
	}
	rev := domain.Revision(seq)

	staged := make(map[string]*domain.Document)
	var order []string
	for _, w := range writes {
		doc, ok := staged[w.path]
		if !ok {
			if w.set == nil {
				doc, err = readDoc(ctx, tx, w.path)
				if err != nil {
					if errors.Is(err, domain.ErrDocumentNotFound) {
						return 0, err
					}
					return 0, s.wrapDBError(err)
				}
			} else {
				doc = &domain.Document{Path: w.path}
			}
			order = append(order, w.path)
		}

		if w.set != nil {
			fields, err := normalizeFields(w.set)
			if err != nil {
				return 0, err
			}
			doc.Fields = fields
		} else {
			if err := applyUpdate(doc.Fields, w.update); err != nil {
				return 0, err
			}
		}
		doc.Revision = rev
		staged[w.path] = doc
	}

	for _, path := range order {
		if err := upsertDoc(ctx, tx, staged[path]); err != nil {
			return 0, s.wrapDBError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, s.wrapDBError(err)
	}

	for _, path := range order {
		s.notify(staged[path])
	}
	s.logger.Debug("committed", "revision", rev, "documents", len(order))
	return rev, nil
}

// wrapDBError maps driver failures to connectivity-class errors: from the
// client's point of view an unusable backend is an unreachable one.
func (s *Store) wrapDBError(err error) error {
	if errors.Is(err, domain.ErrDocumentNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
