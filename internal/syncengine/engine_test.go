package syncengine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitpro/fitsync/internal/adapter"
	"github.com/fitpro/fitsync/internal/catalog"
	"github.com/fitpro/fitsync/internal/connectivity"
	"github.com/fitpro/fitsync/internal/docstore"
	"github.com/fitpro/fitsync/internal/domain"
	"github.com/fitpro/fitsync/internal/progress"
	"github.com/fitpro/fitsync/internal/reactive"
	"github.com/fitpro/fitsync/internal/store"
)

// faultyRemote wraps a real remote store with injectable failures.
type faultyRemote struct {
	domain.RemoteStore

	mu          sync.Mutex
	abortTxns   int // the next n transactions fail with ErrAborted
	txnAttempts int
	holdPushes  bool
	failUpdates int // the next n atomic updates fail with ErrUnavailable

	// when set, the next transaction closes entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *faultyRemote) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Txn) error) (domain.Revision, error) {
	f.mu.Lock()
	f.txnAttempts++
	if f.abortTxns > 0 {
		f.abortTxns--
		f.mu.Unlock()
		return 0, domain.ErrAborted
	}
	entered, release := f.entered, f.release
	f.entered, f.release = nil, nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		<-release
	}
	return f.RemoteStore.RunTransaction(ctx, fn)
}

func (f *faultyRemote) AtomicUpdate(ctx context.Context, path string, update domain.Update) (domain.Revision, error) {
	f.mu.Lock()
	if f.failUpdates > 0 {
		f.failUpdates--
		f.mu.Unlock()
		return 0, domain.ErrUnavailable
	}
	f.mu.Unlock()
	return f.RemoteStore.AtomicUpdate(ctx, path, update)
}

func (f *faultyRemote) Subscribe(ctx context.Context, path string, onSnapshot domain.SnapshotFunc, onError domain.ErrorFunc) (domain.Unsubscribe, error) {
	return f.RemoteStore.Subscribe(ctx, path, func(doc *domain.Document) {
		f.mu.Lock()
		hold := f.holdPushes
		f.mu.Unlock()
		if !hold {
			onSnapshot(doc)
		}
	}, onError)
}

func (f *faultyRemote) set(fn func(f *faultyRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]domain.Course{
			{ID: "c", Name: "Бодифлекс", WorkoutIDs: []string{"w1", "w2"}},
			{ID: "yoga", Name: "Йога", WorkoutIDs: []string{"w3"}},
		},
		[]domain.Workout{
			{ID: "w1", Name: "Day 1", Exercises: []domain.Exercise{{ID: "e1", Name: "Squat", TargetReps: 10}}},
			{ID: "w2", Name: "Day 2", Exercises: []domain.Exercise{{ID: "e2", Name: "Lunge", TargetReps: 10}}},
			{ID: "w3", Name: "Morning", Exercises: []domain.Exercise{
				{ID: "e3", Name: "Bend", TargetReps: 10},
				{ID: "e4", Name: "Twist", TargetReps: 5},
			}},
		},
	)
}

type harness struct {
	db      *docstore.Store
	remote  *faultyRemote
	storage *store.LocalStore
	cache   *store.SnapshotCache
	catalog *catalog.Catalog
	view    *reactive.Store
	engine  *Engine
}

func newHarness(t *testing.T, opts docstore.Options) *harness {
	t.Helper()
	opts.PollInterval = -1
	opts.Logger = adapter.NullLogger()
	db, err := docstore.Open(filepath.Join(t.TempDir(), "remote.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storage, err := store.Open("", "")
	require.NoError(t, err)

	h := &harness{
		db:      db,
		remote:  &faultyRemote{RemoteStore: db},
		storage: storage,
		cache:   store.NewSnapshotCache(storage, adapter.NullLogger()),
		catalog: testCatalog(),
	}
	h.engine, h.view = h.newEngine(t)
	return h
}

// newEngine creates another engine sharing the harness' remote and cache.
func (h *harness) newEngine(t *testing.T) (*Engine, *reactive.Store) {
	t.Helper()
	view, writer := reactive.New()
	e := New(h.remote, h.cache, h.catalog, writer, Options{
		Logger: adapter.NullLogger(),
		Now:    func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(e.Dispose)
	return e, view
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.SignIn(context.Background(), "u1"))
	require.Equal(t, domain.StateLive, h.engine.State())
}

func (h *harness) remoteSnapshot(t *testing.T) domain.Snapshot {
	t.Helper()
	doc, err := h.db.Read(context.Background(), "users/u1")
	require.NoError(t, err)
	snap, err := decodeSnapshot("u1", doc, time.Time{})
	require.NoError(t, err)
	return snap
}

func TestSignInCreatesDocumentAndGoesLive(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)

	snap := h.remoteSnapshot(t)
	assert.Empty(t, snap.Courses)
	assert.Empty(t, snap.Progress)

	v := h.view.Current()
	assert.Equal(t, "u1", v.UserID)
	assert.Equal(t, domain.StateLive, v.State)
	assert.False(t, v.Offline)
	assert.False(t, v.Stale)

	cached, ok := h.cache.Read("u1")
	require.True(t, ok)
	assert.Equal(t, snap.Revision, cached.Revision)
}

func TestSignInLoadsExistingDocument(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	_, err := h.db.Write(context.Background(), "users/u1", map[string]any{
		"courses":  []any{map[string]any{"id": "yoga", "name": "Йога", "enrolledAt": "2024-04-01T00:00:00Z"}},
		"progress": map[string]any{"yoga": map[string]any{"w3": map[string]any{"e3": 4}}},
	})
	require.NoError(t, err)

	h.signIn(t)

	v := h.view.Current()
	require.Len(t, v.Courses, 1)
	assert.Equal(t, "yoga", v.Courses[0].CourseID)
	assert.Equal(t, 4, v.Progress.Reps("yoga", "w3", "e3"))
}

func TestSignInRequiresUser(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	assert.ErrorIs(t, h.engine.SignIn(context.Background(), ""), domain.ErrNotSignedIn)
}

func TestOfflineFallbackFromCache(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "yoga"))
	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 6)
	require.NoError(t, err)

	h.db.SetAvailable(false)

	second, view := h.newEngine(t)
	err = second.SignIn(ctx, "u1")
	require.NoError(t, err, "connectivity failures must not escape sign-in")

	v := view.Current()
	assert.Equal(t, domain.StateOffline, second.State())
	assert.True(t, v.Offline)
	assert.True(t, v.Stale)
	assert.False(t, v.NoCachedData)
	assert.True(t, v.Enrolled("yoga"))
	assert.Equal(t, 6, v.Progress.Reps("yoga", "w3", "e3"))
}

func TestOfflineWithoutCache(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.db.SetAvailable(false)

	require.NoError(t, h.engine.SignIn(context.Background(), "u1"))

	v := h.view.Current()
	assert.Equal(t, domain.StateOffline, v.State)
	assert.True(t, v.NoCachedData)
	assert.Empty(t, v.Courses)
}

func TestSignInPermissionDenied(t *testing.T) {
	h := newHarness(t, docstore.Options{UserID: "someone-else"})

	err := h.engine.SignIn(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Equal(t, domain.StateUnauthenticated, h.engine.State())
	assert.ErrorIs(t, h.view.Current().Err, domain.ErrAccessDenied)
}

func TestReconnectAfterConnectivityReturns(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	ctx := context.Background()
	h.db.SetAvailable(false)
	require.NoError(t, h.engine.SignIn(ctx, "u1"))
	require.Equal(t, domain.StateOffline, h.engine.State())

	h.db.SetAvailable(true)
	require.NoError(t, h.engine.SetOnline(ctx, true))

	assert.Equal(t, domain.StateLive, h.engine.State())
	v := h.view.Current()
	assert.False(t, v.Offline)
	assert.False(t, v.NoCachedData)
}

func TestSetOnlineFalseKeepsValues(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "yoga"))

	require.NoError(t, h.engine.SetOnline(ctx, false))

	v := h.view.Current()
	assert.Equal(t, domain.StateOffline, v.State)
	assert.True(t, v.Offline)
	assert.True(t, v.Enrolled("yoga"))
}

func TestSubscriptionFailureGoesOffline(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)

	h.db.SetAvailable(false)

	assert.Eventually(t, func() bool {
		return h.engine.State() == domain.StateOffline
	}, time.Second, 5*time.Millisecond)
	assert.True(t, h.view.Current().Offline)
}

func TestEnrollIsNoopWhenAlreadyEnrolled(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()

	require.NoError(t, h.engine.Enroll(ctx, "yoga"))
	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 7)
	require.NoError(t, err)

	err = h.engine.Enroll(ctx, "yoga")
	assert.ErrorIs(t, err, domain.ErrAlreadyEnrolled)
	assert.True(t, domain.IsNotice(err))

	snap := h.remoteSnapshot(t)
	assert.Len(t, snap.Courses, 1)
	assert.Equal(t, 7, snap.Progress.Reps("yoga", "w3", "e3"))

	doc, err := h.db.Read(ctx, "users/u1")
	require.NoError(t, err)
	assert.Len(t, doc.Fields["courses"], 1)
}

func TestEnrollUnknownCourse(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)

	assert.ErrorIs(t, h.engine.Enroll(context.Background(), "pilates"), domain.ErrNotFound)
}

func TestUnenrollRemovesEntryAndProgress(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()

	require.NoError(t, h.engine.Enroll(ctx, "yoga"))
	require.NoError(t, h.engine.Enroll(ctx, "c"))
	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 3)
	require.NoError(t, err)

	require.NoError(t, h.engine.Unenroll(ctx, "yoga"))

	snap := h.remoteSnapshot(t)
	_, enrolled := snap.Enrolled("yoga")
	assert.False(t, enrolled)
	assert.NotContains(t, snap.Progress, "yoga")
	_, enrolled = snap.Enrolled("c")
	assert.True(t, enrolled)

	v := h.view.Current()
	assert.False(t, v.Enrolled("yoga"))
	assert.NotContains(t, v.Progress, "yoga")

	err = h.engine.Unenroll(ctx, "yoga")
	assert.ErrorIs(t, err, domain.ErrNotEnrolled)
}

func TestRecordProgressClamps(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "yoga"))

	got, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
	assert.Equal(t, 0, h.remoteSnapshot(t).Progress.Reps("yoga", "w3", "e3"))

	got, err = h.engine.RecordProgress(ctx, "yoga", "w3", "e4", 5+100)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Equal(t, 5, h.remoteSnapshot(t).Progress.Reps("yoga", "w3", "e4"))
}

func TestRecordProgressIsIdempotent(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "yoga"))

	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 8)
	require.NoError(t, err)
	once := h.remoteSnapshot(t)

	_, err = h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 8)
	require.NoError(t, err)
	twice := h.remoteSnapshot(t)

	assert.Equal(t, once.Courses, twice.Courses)
	assert.Equal(t, once.Progress, twice.Progress)
}

func TestRecordProgressValidation(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()

	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 1)
	assert.ErrorIs(t, err, domain.ErrNotEnrolled)

	require.NoError(t, h.engine.Enroll(ctx, "yoga"))

	tests := []struct {
		name                        string
		course, workout, exerciseID string
	}{
		{"unknown course", "pilates", "w3", "e3"},
		{"workout of another course", "yoga", "w1", "e1"},
		{"unknown workout", "yoga", "w9", "e3"},
		{"unknown exercise", "yoga", "w3", "e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.RecordProgress(ctx, tt.course, tt.workout, tt.exerciseID, 1)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestOptimisticUpdateVisibleBeforePush(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "yoga"))

	h.remote.set(func(f *faultyRemote) { f.holdPushes = true })

	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 9)
	require.NoError(t, err)

	v := h.view.Current()
	assert.Equal(t, 9, v.Progress.Reps("yoga", "w3", "e3"))

	cached, ok := h.cache.Read("u1")
	require.True(t, ok)
	assert.Equal(t, 9, cached.Progress.Reps("yoga", "w3", "e3"))
	assert.Equal(t, v.Revision, cached.Revision)
}

func TestTransactionConflictRetries(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)

	h.remote.set(func(f *faultyRemote) { f.abortTxns = 2; f.txnAttempts = 0 })
	require.NoError(t, h.engine.Enroll(context.Background(), "yoga"))

	h.remote.mu.Lock()
	assert.Equal(t, 3, h.remote.txnAttempts)
	h.remote.mu.Unlock()
	assert.True(t, h.view.Current().Enrolled("yoga"))
}

func TestTransactionConflictExhaustsRetries(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)

	h.remote.set(func(f *faultyRemote) { f.abortTxns = 3; f.txnAttempts = 0 })
	err := h.engine.Enroll(context.Background(), "yoga")
	assert.ErrorIs(t, err, domain.ErrConflict)

	h.remote.mu.Lock()
	assert.Equal(t, 3, h.remote.txnAttempts)
	h.remote.mu.Unlock()

	// nothing was applied optimistically
	assert.False(t, h.view.Current().Enrolled("yoga"))
	assert.Equal(t, domain.StateLive, h.engine.State())
}

func TestMutationWhileUnreachable(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "yoga"))

	h.db.SetAvailable(false)
	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 4)
	assert.ErrorIs(t, err, domain.ErrOffline)
	assert.True(t, domain.IsRetryable(err))

	assert.Eventually(t, func() bool {
		return h.engine.State() == domain.StateOffline
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.view.Current().Progress.Reps("yoga", "w3", "e3"), "failed mutation must not be applied")

	h.db.SetAvailable(true)
	require.NoError(t, h.engine.SetOnline(ctx, true))
	assert.Equal(t, domain.StateLive, h.engine.State())

	_, err = h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 4)
	require.NoError(t, err)
}

func TestRecordWaitsForUnenrollInFlight(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "c"))
	_, err := h.engine.RecordProgress(ctx, "c", "w1", "e1", 3)
	require.NoError(t, err)

	entered, release := make(chan struct{}), make(chan struct{})
	h.remote.set(func(f *faultyRemote) { f.entered, f.release = entered, release })

	unenrolled := make(chan error, 1)
	go func() { unenrolled <- h.engine.Unenroll(ctx, "c") }()
	<-entered

	recorded := make(chan error, 1)
	go func() {
		_, err := h.engine.RecordProgress(ctx, "c", "w1", "e1", 7)
		recorded <- err
	}()

	select {
	case err := <-recorded:
		t.Fatalf("record finished while unenroll was in flight: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	require.NoError(t, <-unenrolled)
	assert.ErrorIs(t, <-recorded, domain.ErrNotEnrolled)

	snap := h.remoteSnapshot(t)
	_, enrolled := snap.Enrolled("c")
	assert.False(t, enrolled)
	assert.NotContains(t, snap.Progress, "c")

	v := h.view.Current()
	assert.False(t, v.Enrolled("c"))
	assert.NotContains(t, v.Progress, "c")
}

func TestMonitorReconnectsAfterMutationFailure(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	ctx := context.Background()

	monitor := connectivity.NewMonitor(adapter.NullLogger())
	view, writer := reactive.New()
	engine := New(h.remote, h.cache, h.catalog, writer, Options{
		Logger:    adapter.NullLogger(),
		OnOffline: monitor.MarkOffline,
	})
	t.Cleanup(engine.Dispose)
	stop := monitor.Listen(func(online bool) {
		assert.NoError(t, engine.SetOnline(ctx, online))
	})
	defer stop()

	prober, err := connectivity.NewProber(h.db, monitor, "@every 1h", time.Second, adapter.NullLogger())
	require.NoError(t, err)

	require.NoError(t, engine.SignIn(ctx, "u1"))
	require.NoError(t, engine.Enroll(ctx, "yoga"))
	prober.Probe()
	require.Equal(t, domain.StateLive, engine.State())

	h.remote.set(func(f *faultyRemote) { f.failUpdates = 1 })
	_, err = engine.RecordProgress(ctx, "yoga", "w3", "e3", 4)
	require.ErrorIs(t, err, domain.ErrOffline)
	require.Equal(t, domain.StateOffline, engine.State())
	assert.False(t, monitor.Online())

	for i := 0; i < 3; i++ {
		prober.Probe()
	}
	assert.Equal(t, domain.StateLive, engine.State())
	assert.True(t, monitor.Online())
	assert.False(t, view.Current().Offline)

	_, err = engine.RecordProgress(ctx, "yoga", "w3", "e3", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Current().Progress.Reps("yoga", "w3", "e3"))
}

func TestRefreshWhileOfflineReconnects(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.SetOnline(ctx, false))

	h.db.SetAvailable(false)
	err := h.engine.Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrOffline)
	assert.Equal(t, domain.StateOffline, h.engine.State())

	h.db.SetAvailable(true)
	_, err = h.db.AtomicUpdate(ctx, "users/u1", domain.Update{
		"courses": domain.ArrayUnion{Values: []any{map[string]any{"id": "yoga", "name": "Йога", "enrolledAt": "2024-04-01T00:00:00Z"}}},
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.Refresh(ctx))
	assert.Equal(t, domain.StateLive, h.engine.State())
	v := h.view.Current()
	assert.False(t, v.Offline)
	assert.True(t, v.Enrolled("yoga"))
}

func TestPushFromAnotherDevice(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)

	other, _ := h.newEngine(t)
	require.NoError(t, other.SignIn(context.Background(), "u1"))
	require.NoError(t, other.Enroll(context.Background(), "c"))

	assert.Eventually(t, func() bool {
		return h.view.Current().Enrolled("c")
	}, time.Second, 5*time.Millisecond)
}

func TestSignOutClearsState(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	require.NoError(t, h.engine.Enroll(context.Background(), "yoga"))

	require.NoError(t, h.engine.SignOut())

	v := h.view.Current()
	assert.Equal(t, domain.StateUnauthenticated, v.State)
	assert.Empty(t, v.UserID)
	assert.Empty(t, v.Courses)

	assert.ErrorIs(t, h.engine.Enroll(context.Background(), "yoga"), domain.ErrNotSignedIn)
}

func TestDispose(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()

	var mu sync.Mutex
	writes := 0
	cancel := h.view.Watch(func(reactive.View) {
		mu.Lock()
		writes++
		mu.Unlock()
	})
	defer cancel()

	h.engine.Dispose()
	h.engine.Dispose()

	mu.Lock()
	before := writes
	mu.Unlock()

	assert.Equal(t, domain.StateDisposed, h.engine.State())
	assert.ErrorIs(t, h.engine.Enroll(ctx, "yoga"), domain.ErrDisposed)
	_, err := h.engine.RecordProgress(ctx, "yoga", "w3", "e3", 1)
	assert.ErrorIs(t, err, domain.ErrDisposed)
	assert.ErrorIs(t, h.engine.SetOnline(ctx, false), domain.ErrDisposed)
	assert.ErrorIs(t, h.engine.SignIn(ctx, "u1"), domain.ErrDisposed)
	assert.ErrorIs(t, h.engine.Refresh(ctx), domain.ErrDisposed)

	// a commit from elsewhere must not reach the disposed engine's store
	_, err = h.db.AtomicUpdate(ctx, "users/u1", domain.Update{"courses": domain.ArrayUnion{Values: []any{"x"}}})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, before, writes)
	mu.Unlock()
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	h.remote.set(func(f *faultyRemote) { f.holdPushes = true })

	_, err := h.db.AtomicUpdate(context.Background(), "users/u1", domain.Update{
		"courses": domain.ArrayUnion{Values: []any{map[string]any{"id": "c", "name": "Бодифлекс", "enrolledAt": "2024-04-01T00:00:00Z"}}},
	})
	require.NoError(t, err)
	assert.False(t, h.view.Current().Enrolled("c"))

	require.NoError(t, h.engine.Refresh(context.Background()))
	assert.True(t, h.view.Current().Enrolled("c"))
}

func TestConcurrentRecordsSameUser(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Enroll(ctx, "yoga"))
	require.NoError(t, h.engine.Enroll(ctx, "c"))

	calls := []struct{ course, workout, exercise string }{
		{"yoga", "w3", "e3"},
		{"yoga", "w3", "e4"},
		{"c", "w1", "e1"},
		{"c", "w2", "e2"},
	}

	var wg sync.WaitGroup
	for _, c := range calls {
		wg.Go(func() {
			_, err := h.engine.RecordProgress(ctx, c.course, c.workout, c.exercise, 3)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	snap := h.remoteSnapshot(t)
	v := h.view.Current()
	for _, c := range calls {
		assert.Equal(t, 3, snap.Progress.Reps(c.course, c.workout, c.exercise))
		assert.Equal(t, 3, v.Progress.Reps(c.course, c.workout, c.exercise))
	}
}

func TestEndToEndScenario(t *testing.T) {
	h := newHarness(t, docstore.Options{})
	h.signIn(t)
	ctx := context.Background()

	course, _ := h.catalog.Course("c")
	coursePercent := func() int {
		return progress.CoursePercent(course, h.catalog, h.view.Current().Progress["c"])
	}
	workoutPercent := func(id string) int {
		w, _ := h.catalog.Workout(id)
		return progress.WorkoutPercent(w, h.view.Current().Progress["c"][id])
	}

	require.NoError(t, h.engine.Enroll(ctx, "c"))
	assert.Equal(t, 0, coursePercent())

	_, err := h.engine.RecordProgress(ctx, "c", "w1", "e1", 7)
	require.NoError(t, err)
	assert.Equal(t, 70, workoutPercent("w1"))
	assert.Equal(t, 0, coursePercent())

	_, err = h.engine.RecordProgress(ctx, "c", "w1", "e1", 10)
	require.NoError(t, err)
	assert.Equal(t, 100, workoutPercent("w1"))
	assert.Equal(t, 50, coursePercent())

	_, err = h.engine.RecordProgress(ctx, "c", "w2", "e2", 10)
	require.NoError(t, err)
	assert.Equal(t, 100, coursePercent())

	require.NoError(t, h.engine.Unenroll(ctx, "c"))

	snap := h.remoteSnapshot(t)
	_, enrolled := snap.Enrolled("c")
	assert.False(t, enrolled)
	assert.NotContains(t, snap.Progress, "c")

	v := h.view.Current()
	assert.False(t, v.Enrolled("c"))
	assert.NotContains(t, v.Progress, "c")
}

func TestUserLocks(t *testing.T) {
	locks := NewUserLocks()

	unlockA := locks.Lock("a")
	// another user never waits
	unlockB := locks.Lock("b")
	unlockB()

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := locks.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("same-user lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	unlockA()
	<-acquired
	<-released

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
