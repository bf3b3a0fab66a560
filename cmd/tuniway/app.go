package main

import (
	"fmt"
	"net/http"

	"github.com/tuniway/tuniway-web/backend"
	"github.com/tuniway/tuniway-web/handoff"
	"github.com/tuniway/tuniway-web/internal/config"
	"github.com/tuniway/tuniway-web/internal/logging"
	"github.com/tuniway/tuniway-web/metrics"
	"github.com/tuniway/tuniway-web/session"
	"github.com/tuniway/tuniway-web/store"
	"github.com/tuniway/tuniway-web/transport"
)

// app wires the session components once per command.
type app struct {
	config   config.Config
	store    store.Store
	metrics  *metrics.Metrics
	injector *transport.Injector
	backend  *backend.Client
	manager  *session.Manager
	handoff  *handoff.Handler
	closers  []func() error
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.GetEnv())

	s, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		config:  cfg,
		store:   s,
		metrics: metrics.New(),
		closers: []func() error{closeStore},
	}
	a.injector = transport.NewInjector(s, nil, transport.WithMetrics(a.metrics))
	a.backend = backend.New(cfg.GetBackendURL(), &http.Client{
		Transport: a.injector,
		Timeout:   cfg.GetBackendTimeout(),
	})
	a.manager = session.New(s, a.backend, session.WithMetrics(a.metrics))
	a.handoff = handoff.New(a.manager, a.backend,
		handoff.WithBackendOrigin(handoff.BackendOrigin(cfg.GetBackendURL())),
		handoff.WithMetrics(a.metrics),
	)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			warn("close: %s", err)
		}
	}
}

func openStore(cfg config.StoreConfig) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.GetStoreKind() {
	case config.StoreMemory:
		return store.NewMemoryStore(), noop, nil
	case config.StoreFile:
		s, err := store.NewFileStore(cfg.GetStorePath())
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.StoreRedis:
		s, err := store.DialRedisStore(cfg.GetRedisAddr(), store.WithRedisPrefix(cfg.GetRedisPrefix()))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.GetStoreKind())
	}
}
