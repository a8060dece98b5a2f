// Package app wires a layout registry to its store, flusher, tracing and
// event bridge according to the configuration, and owns their teardown.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zjrosen/dockyard/internal/cachemanager"
	"github.com/zjrosen/dockyard/internal/config"
	"github.com/zjrosen/dockyard/internal/events"
	"github.com/zjrosen/dockyard/internal/infrastructure/filestore"
	"github.com/zjrosen/dockyard/internal/infrastructure/s3store"
	"github.com/zjrosen/dockyard/internal/infrastructure/sqlite"
	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/idgen"
	"github.com/zjrosen/dockyard/internal/layouts/persist"
	"github.com/zjrosen/dockyard/internal/layouts/registry"
	"github.com/zjrosen/dockyard/internal/log"
	"github.com/zjrosen/dockyard/internal/pubsub"
	"github.com/zjrosen/dockyard/internal/tracing"
)

// DefaultLayoutName names the layout OpenOrCreate makes when asked for a
// key that does not exist.
const DefaultLayoutName = "default"

// Options overrides parts of the wiring. The zero value builds everything
// from the config.
type Options struct {
	// ConfigDir anchors the default store path.
	ConfigDir string

	// Store replaces the configured backend.
	Store domain.Store

	// Publisher replaces the NATS publisher; forwarding starts even when
	// events.url is empty.
	Publisher events.Publisher

	Clock func() time.Time
	IDs   idgen.Generator
}

// Session is one running registry with everything attached to it.
type Session struct {
	Config   config.Config
	Registry *registry.Registry
	Broker   *pubsub.Broker[domain.LayoutEvent]

	store     domain.Store
	flusher   *persist.Flusher
	tracer    *tracing.Provider
	publisher events.Publisher
	forwarder *events.Forwarder

	closeOnce sync.Once
	closeErr  error
}

// Open builds a session and restores the registry from the store.
// A store that cannot be read is logged and the registry starts empty; a
// store that cannot be opened at all is an error.
func Open(ctx context.Context, cfg config.Config, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("starting tracing: %w", err)
	}

	store := opts.Store
	if store == nil {
		store, err = openStore(ctx, cfg.Store, opts.ConfigDir)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
	}
	if tp.Enabled() {
		store = persist.NewTracedStore(store, tp.Tracer())
	}

	s := &Session{
		Config: cfg,
		Broker: pubsub.NewBroker[domain.LayoutEvent](),
		store:  store,
		tracer: tp,
	}

	regOpts := []registry.Option{
		registry.WithBroker(s.Broker),
		registry.WithChangeHook(func() { s.flusher.Schedule() }),
		registry.WithCaseSensitiveSearch(cfg.Search.CaseSensitive),
		registry.WithLocale(cfg.Search.LocaleTag()),
		registry.WithClock(opts.Clock),
		registry.WithIDGenerator(opts.IDs),
	}
	if cfg.Cache.TTL > 0 {
		views := cachemanager.NewInMemoryCacheManager[string, []domain.Layout](
			"layout-views", cfg.Cache.TTL, cachemanager.DefaultCleanupInterval,
		)
		regOpts = append(regOpts, registry.WithViewCache(views, cfg.Cache.TTL))
	}
	s.Registry = registry.New(regOpts...)
	s.Registry.Restore(persist.Load(ctx, store))
	s.flusher = persist.NewFlusher(store, s.Registry.State, cfg.Store.FlushDebounce)

	s.publisher = opts.Publisher
	if s.publisher == nil && cfg.Events.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.URL)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.publisher = pub
	}
	if s.publisher != nil {
		s.forwarder = events.NewForwarder(s.Broker, s.publisher)
		s.forwarder.Start(context.Background())
	}

	log.Info(log.CatStore, "session opened", "backend", storeName(store), "layouts", s.Registry.Len())
	return s, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, dir string) (domain.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sqlite.NewDB(cfg.StorePath(dir))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return db.LayoutStore(), nil
	case config.BackendS3:
		store, err := s3store.New(ctx, s3store.Options{
			Bucket:   cfg.S3.Bucket,
			Key:      cfg.S3.Key,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("opening s3 store: %w", err)
		}
		return store, nil
	default:
		return filestore.New(cfg.StorePath(dir)), nil
	}
}

func storeName(store domain.Store) string {
	if named, ok := store.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "unknown"
}

// Sync saves the registry now. Short-lived callers use it before Close,
// which never saves.
func (s *Session) Sync(ctx context.Context) error {
	return s.flusher.Flush(ctx)
}

// Saves returns the number of successful saves so far.
func (s *Session) Saves() int64 {
	return s.flusher.Saves()
}

// OpenOrCreate opens the layout stored under key. If there is none, a
// local layout named "default" is created and opened instead. It returns
// the opened layout and whether it was created.
func (s *Session) OpenOrCreate(key string) (domain.Layout, bool) {
	if _, ok := s.Registry.Get(key); ok {
		s.Registry.MarkOpened(key)
		l, _ := s.Registry.Get(key)
		return l, false
	}

	created := s.Registry.Add(DefaultLayoutName, domain.KindLocal)
	s.Registry.MarkOpened(created)
	l, _ := s.Registry.Get(created)
	log.Info(log.CatRegistry, "created default layout", "requested", key, "key", created)
	return l, true
}

// Close stops the flusher without saving, then shuts down the event
// bridge, broker, tracing and store. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.flusher != nil {
			s.flusher.Stop()
		}
		if s.forwarder != nil {
			s.forwarder.Stop()
		}
		if s.publisher != nil {
			errs = append(errs, s.publisher.Close())
		}
		s.Broker.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, s.tracer.Shutdown(ctx))
		errs = append(errs, s.store.Close())
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
