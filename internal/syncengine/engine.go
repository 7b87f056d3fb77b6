// Package syncengine reconciles a user's enrollment and exercise progress
// between the remote document store, the local snapshot cache and the
// reactive store the UI reads.
//
// The remote store is the system of record. The cache is overwritten after
// every successful remote read or push and only read when the remote store is
// unreachable. The reactive store is written exclusively by the engine.
package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fitpro/fitsync/internal/domain"
	"github.com/fitpro/fitsync/internal/reactive"
)

const defaultMaxAttempts = 3

// Options configures an Engine.
type Options struct {
	Logger *slog.Logger

	// Locks is shared by engines that may mutate the same user concurrently.
	// Nil gives the engine its own table.
	Locks *UserLocks

	// MaxAttempts bounds transaction retries on concurrent modification.
	MaxAttempts int

	// OnOffline runs after every transition into Offline, outside the engine
	// lock. A connectivity monitor uses it to learn that the remote was lost
	// so its next online report counts as a transition.
	OnOffline func()

	Now func() time.Time
}

// Engine is the progress sync engine for one signed-in user at a time.
type Engine struct {
	remote  domain.RemoteStore
	cache   domain.SnapshotCache
	catalog domain.Catalog
	writer  *reactive.Writer
	locks   *UserLocks
	logger  *slog.Logger

	maxAttempts int
	now         func() time.Time
	onOffline   func()

	// mu guards the fields below and every reactive write. Never held across
	// remote calls.
	mu       sync.Mutex
	state    domain.SyncState
	userID   string
	unsub    domain.Unsubscribe
	gen      uint64 // bumped whenever the current subscription is abandoned
	disposed bool

	cacheMu   sync.Mutex
	cachedRev map[string]domain.Revision
}

// New creates an engine in the Unauthenticated state.
func New(remote domain.RemoteStore, cache domain.SnapshotCache, catalog domain.Catalog, writer *reactive.Writer, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Locks == nil {
		opts.Locks = NewUserLocks()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		remote:      remote,
		cache:       cache,
		catalog:     catalog,
		writer:      writer,
		locks:       opts.Locks,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		onOffline:   opts.OnOffline,
		state:       domain.StateUnauthenticated,
		cachedRev:   make(map[string]domain.Revision),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() domain.SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// UserID returns the signed-in user, empty when unauthenticated.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// SignIn starts synchronizing userID. A connectivity failure is not an error:
// the engine goes Offline and serves the cached snapshot (or flags that
// nothing is cached). A permission failure returns ErrAccessDenied and leaves
// the engine Unauthenticated.
func (e *Engine) SignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return &domain.OpError{Op: "sign-in", Err: domain.ErrNotSignedIn}
	}

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return &domain.OpError{Op: "sign-in", UserID: userID, Err: domain.ErrDisposed}
	}
	if e.userID == userID && e.state != domain.StateUnauthenticated {
		e.mu.Unlock()
		return nil
	}
	prev := e.unsub
	e.unsub = nil
	e.gen++
	gen := e.gen
	e.userID = userID
	e.state = domain.StateInitializing
	e.writer.Reset(userID, domain.StateInitializing)
	e.mu.Unlock()

	if prev != nil {
		prev()
	}

	e.logger.Info("signing in", "userID", userID)

	err := e.connect(ctx, gen, userID)
	if errors.Is(err, domain.ErrOffline) {
		return nil
	}
	return err
}

// SignOut stops synchronizing and clears the reactive store.
func (e *Engine) SignOut() error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return &domain.OpError{Op: "sign-out", Err: domain.ErrDisposed}
	}
	userID := e.userID
	unsub := e.unsub
	e.unsub = nil
	e.gen++
	e.userID = ""
	e.state = domain.StateUnauthenticated
	e.writer.Reset("", domain.StateUnauthenticated)
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if userID != "" {
		e.logger.Info("signed out", "userID", userID)
	}
	return nil
}

// SetOnline feeds a connectivity transition into the engine. Going online
// from Offline re-reads the user document and re-subscribes; going offline
// cancels the subscription and keeps the current values.
func (e *Engine) SetOnline(ctx context.Context, online bool) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return &domain.OpError{Op: "connectivity", Err: domain.ErrDisposed}
	}
	userID, state, gen := e.userID, e.state, e.gen
	if userID == "" {
		e.mu.Unlock()
		return nil
	}

	if !online {
		e.mu.Unlock()
		if state == domain.StateOffline {
			return nil
		}
		e.goOffline(gen, userID, false, true)
		return nil
	}

	if state != domain.StateOffline {
		e.mu.Unlock()
		return nil
	}
	e.gen++
	gen = e.gen
	e.mu.Unlock()

	e.logger.Info("connectivity restored, reconnecting", "userID", userID)
	return e.connect(ctx, gen, userID)
}

// Refresh re-reads the user document and replaces the reactive state with it.
// While Offline it reconnects instead, so a successful refresh leaves the
// engine Live again.
func (e *Engine) Refresh(ctx context.Context) error {
	userID, err := e.session("refresh")
	if err != nil {
		return err
	}

	e.mu.Lock()
	offline := e.userID == userID && e.state == domain.StateOffline
	var gen uint64
	if offline {
		e.gen++
		gen = e.gen
	}
	e.mu.Unlock()
	if offline {
		e.logger.Info("refresh while offline, reconnecting", "userID", userID)
		return e.connect(ctx, gen, userID)
	}

	snap, err := e.fetch(ctx, userID)
	if err != nil {
		return e.fail(ctx, "refresh", userID, "", err)
	}
	e.publishSnapshot(userID, snap)
	return nil
}

// Dispose tears the engine down. Every later call returns ErrDisposed and the
// reactive store is never written again.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	e.state = domain.StateDisposed
	e.gen++
	unsub := e.unsub
	e.unsub = nil
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	e.logger.Debug("sync engine disposed")
}

// session returns the signed-in user or the error an operation should fail with.
func (e *Engine) session(op string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return "", &domain.OpError{Op: op, UserID: e.userID, Err: domain.ErrDisposed}
	}
	if e.userID == "" {
		return "", &domain.OpError{Op: op, Err: domain.ErrNotSignedIn}
	}
	return e.userID, nil
}

// connect reads the user document, publishes it and subscribes. It is the
// Initializing → Live (or Offline → Live) transition.
func (e *Engine) connect(ctx context.Context, gen uint64, userID string) error {
	snap, err := e.fetch(ctx, userID)
	if err != nil {
		return e.connectFailed(gen, userID, err)
	}

	if !e.publish(gen, func(w *reactive.Writer) {
		w.ApplySnapshot(snap, false)
	}) {
		return e.abandoned("sign-in", userID)
	}
	e.persist(userID, snap)

	unsub, err := e.remote.Subscribe(ctx, userPath(userID), e.onSnapshot(gen, userID), e.onError(gen, userID))
	if err != nil {
		return e.connectFailed(gen, userID, err)
	}

	e.mu.Lock()
	if e.disposed || e.gen != gen {
		e.mu.Unlock()
		unsub()
		return e.abandoned("sign-in", userID)
	}
	e.unsub = unsub
	e.state = domain.StateLive
	e.writer.SetState(domain.StateLive)
	e.mu.Unlock()

	e.logger.Info("live", "userID", userID, "revision", snap.Revision)
	return nil
}

func (e *Engine) abandoned(op, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return &domain.OpError{Op: op, UserID: userID, Err: domain.ErrDisposed}
	}
	// superseded by a later sign-in, sign-out or connectivity change
	return nil
}

func (e *Engine) connectFailed(gen uint64, userID string, err error) error {
	switch {
	case domain.IsConnectivity(err):
		e.logger.Warn("remote unreachable, serving cached data", "userID", userID, "error", err)
		e.goOffline(gen, userID, true, false)
		return &domain.OpError{Op: "sign-in", UserID: userID, Err: errors.Join(domain.ErrOffline, err)}

	case errors.Is(err, domain.ErrPermissionDenied):
		e.logger.Warn("access denied", "userID", userID, "error", err)
		e.mu.Lock()
		if !e.disposed && e.gen == gen {
			e.gen++
			e.userID = ""
			e.state = domain.StateUnauthenticated
			e.writer.Reset("", domain.StateUnauthenticated)
			e.writer.SetError(domain.ErrAccessDenied)
		}
		e.mu.Unlock()
		return &domain.OpError{Op: "sign-in", UserID: userID, Err: domain.ErrAccessDenied}

	default:
		e.logger.Error("sign-in failed", "userID", userID, "error", err)
		e.goOffline(gen, userID, true, false)
		e.publish(gen, func(w *reactive.Writer) { w.SetError(err) })
		return &domain.OpError{Op: "sign-in", UserID: userID, Err: err}
	}
}

// fetch reads users/{uid}, creating the empty document on first sign-in.
func (e *Engine) fetch(ctx context.Context, userID string) (domain.Snapshot, error) {
	path := userPath(userID)

	doc, err := e.remote.Read(ctx, path)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		if err := e.initDocument(ctx, path); err != nil {
			return domain.Snapshot{}, err
		}
		doc, err = e.remote.Read(ctx, path)
	}
	if err != nil {
		return domain.Snapshot{}, err
	}
	return decodeSnapshot(userID, doc, e.now())
}

// initDocument writes the empty user document unless another client got there first.
func (e *Engine) initDocument(ctx context.Context, path string) error {
	_, err := e.transact(ctx, func(ctx context.Context, tx domain.Txn) error {
		_, err := tx.Get(path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			return err
		}
		tx.Set(path, emptyDocumentFields())
		return nil
	})
	if err == nil {
		e.logger.Info("initialized user document", "path", path)
	}
	return err
}

// goOffline moves the engine to Offline if gen is still current. hydrate fills
// the reactive store from the cache; cancel tears down the live subscription
// (never set from inside a subscription callback).
func (e *Engine) goOffline(gen uint64, userID string, hydrate, cancel bool) {
	var (
		cached   domain.Snapshot
		isCached bool
	)
	if hydrate {
		cached, isCached = e.cache.Read(userID)
	}

	e.mu.Lock()
	if e.disposed || e.gen != gen || e.userID != userID {
		e.mu.Unlock()
		return
	}
	e.gen++
	unsub := e.unsub
	e.unsub = nil
	e.state = domain.StateOffline
	e.writer.SetState(domain.StateOffline)
	if hydrate {
		if isCached {
			e.writer.ApplySnapshot(cached, true)
		} else {
			e.writer.MarkNoCachedData()
		}
	}
	e.mu.Unlock()

	if cancel && unsub != nil {
		unsub()
	}
	e.logger.Info("offline", "userID", userID, "hydrated", hydrate && isCached)
	if e.onOffline != nil {
		e.onOffline()
	}
}

func (e *Engine) onSnapshot(gen uint64, userID string) domain.SnapshotFunc {
	return func(doc *domain.Document) {
		snap, err := decodeSnapshot(userID, doc, e.now())
		if err != nil {
			e.logger.Error("ignoring undecodable push", "userID", userID, "revision", doc.Revision, "error", err)
			return
		}
		var applied bool
		if !e.publish(gen, func(w *reactive.Writer) {
			_, applied = w.ApplySnapshot(snap, false)
		}) || !applied {
			return
		}
		e.persist(userID, snap)
	}
}

func (e *Engine) onError(gen uint64, userID string) domain.ErrorFunc {
	return func(err error) {
		e.logger.Warn("subscription failed", "userID", userID, "error", err)
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			e.goOffline(gen, userID, false, false)
			e.publishUser(userID, func(w *reactive.Writer) { w.SetError(domain.ErrAccessDenied) })
		case domain.IsConnectivity(err):
			e.goOffline(gen, userID, false, false)
		default:
			e.goOffline(gen, userID, false, false)
			e.publishUser(userID, func(w *reactive.Writer) { w.SetError(err) })
		}
	}
}

// publish runs fn against the reactive store if gen is still current.
func (e *Engine) publish(gen uint64, fn func(w *reactive.Writer)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || e.gen != gen {
		return false
	}
	fn(e.writer)
	return true
}

// publishUser runs fn against the reactive store if userID is still signed in.
func (e *Engine) publishUser(userID string, fn func(w *reactive.Writer)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || e.userID != userID {
		return false
	}
	fn(e.writer)
	return true
}

// publishSnapshot replaces the reactive state with a fresh remote read.
func (e *Engine) publishSnapshot(userID string, snap domain.Snapshot) {
	var applied bool
	e.publishUser(userID, func(w *reactive.Writer) {
		_, applied = w.ApplySnapshot(snap, false)
	})
	if applied {
		e.persist(userID, snap)
	}
}

// persist writes snap to the cache unless a newer revision is already cached.
func (e *Engine) persist(userID string, snap domain.Snapshot) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if snap.Revision < e.cachedRev[userID] {
		return
	}
	e.cachedRev[userID] = snap.Revision
	e.cache.Write(userID, snap)
}
