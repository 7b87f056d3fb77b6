package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fitpro/fitsync/internal/adapter"
	"github.com/fitpro/fitsync/internal/catalog"
	"github.com/fitpro/fitsync/internal/connectivity"
	"github.com/fitpro/fitsync/internal/docstore"
	"github.com/fitpro/fitsync/internal/reactive"
	"github.com/fitpro/fitsync/internal/store"
	"github.com/fitpro/fitsync/internal/syncengine"
)

// forcedOfflineKey marks that the user asked to work offline. It survives
// restarts so "fitsync offline" affects later commands.
const forcedOfflineKey = "connectivity.forced_offline"

// App holds the wired collaborators for one CLI invocation.
type App struct {
	Config *adapter.Config
	Logger *slog.Logger

	Local   *store.LocalStore
	Cache   *store.SnapshotCache
	Remote  *docstore.Store
	Catalog *catalog.Catalog
	Store   *reactive.Store
	Engine  *syncengine.Engine
	Monitor *connectivity.Monitor

	// CatalogStale is set when the catalog came from the local copy.
	CatalogStale bool

	stopListening func()
}

// NewApp opens local storage and the remote store, loads the catalog and
// builds the sync engine. It does not sign in.
func NewApp(ctx context.Context, cfg *adapter.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	local, err := store.Open(cfg.Cache.Dir, cfg.Remote.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}

	if dir := filepath.Dir(cfg.Remote.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			local.Close()
			return nil, fmt.Errorf("failed to create remote store directory: %w", err)
		}
	}
	remote, err := docstore.Open(cfg.Remote.Path, docstore.Options{
		UserID:       cfg.User.ID,
		PollInterval: cfg.Remote.PollInterval,
		Logger:       adapter.Component(logger, "docstore"),
	})
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	cat, stale, err := catalog.NewLoader(catalogSource(cfg, logger), local, logger).Load(ctx)
	if err != nil {
		remote.Close()
		local.Close()
		return nil, err
	}

	cache := store.NewSnapshotCache(local, logger)
	reactiveStore, writer := reactive.New()
	monitor := connectivity.NewMonitor(adapter.Component(logger, "connectivity"))
	engine := syncengine.New(remote, cache, cat, writer, syncengine.Options{
		Logger:    adapter.Component(logger, "syncengine"),
		OnOffline: monitor.MarkOffline,
	})

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Local:        local,
		Cache:        cache,
		Remote:       remote,
		Catalog:      cat,
		Store:        reactiveStore,
		Engine:       engine,
		Monitor:      monitor,
		CatalogStale: stale,
	}

	a.stopListening = a.Monitor.Listen(func(online bool) {
		if err := a.Engine.SetOnline(context.Background(), online); err != nil {
			a.Logger.Warn("connectivity transition failed", "online", online, "error", err)
		}
	})

	if a.ForcedOffline() {
		logger.Info("working offline by request")
		remote.SetAvailable(false)
		a.Monitor.Report(false)
	}
	return a, nil
}

func catalogSource(cfg *adapter.Config, logger *slog.Logger) catalog.Source {
	switch {
	case cfg.Catalog.URL != "":
		return catalog.NewHTTPSource(cfg.Catalog.URL, cfg.Catalog.Timeout, logger)
	case cfg.Catalog.File != "":
		return catalog.FileSource(cfg.Catalog.File)
	default:
		return nil
	}
}

// SignIn signs the configured user in.
func (a *App) SignIn(ctx context.Context) error {
	return a.Engine.SignIn(ctx, a.Config.User.ID)
}

// ForcedOffline reports whether the user asked to work offline.
func (a *App) ForcedOffline() bool {
	v, ok := a.Local.Get(forcedOfflineKey)
	return ok && v == "true"
}

// SetForcedOffline switches between working offline and online. The choice
// is persisted and fed to the engine as a connectivity transition.
func (a *App) SetForcedOffline(offline bool) error {
	if offline {
		if err := a.Local.Set(forcedOfflineKey, "true"); err != nil {
			return fmt.Errorf("failed to save connectivity setting: %w", err)
		}
	} else if err := a.Local.Remove(forcedOfflineKey); err != nil {
		return fmt.Errorf("failed to save connectivity setting: %w", err)
	}

	a.Remote.SetAvailable(!offline)
	a.Monitor.Report(!offline)
	return nil
}

// StartProber probes the remote store on the configured schedule until the
// returned stop function is called.
func (a *App) StartProber() (stop func(), err error) {
	prober, err := connectivity.NewProber(a.Remote, a.Monitor, a.Config.Connectivity.Schedule, a.Config.Connectivity.Timeout, a.Logger)
	if err != nil {
		return nil, err
	}
	prober.Start()
	return prober.Stop, nil
}

// Close disposes the engine and closes both stores.
func (a *App) Close() error {
	a.stopListening()
	a.Engine.Dispose()
	remoteErr := a.Remote.Close()
	if err := a.Local.Close(); err != nil {
		return err
	}
	return remoteErr
}
