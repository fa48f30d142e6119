// Package app assembles the client: config, logger, durable store, transport,
// offline queue, submission pipeline, and the session manager.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/config"
	"github.com/prepdeck/prepdeck/internal/logger"
	"github.com/prepdeck/prepdeck/internal/session"
	"github.com/prepdeck/prepdeck/internal/store"
	"github.com/prepdeck/prepdeck/internal/submit"
	"github.com/prepdeck/prepdeck/internal/transport"
)

// App holds the wired components for the CLI.
type App struct {
	Cfg      *config.Config
	Log      zerolog.Logger
	Store    *store.Store
	Client   transport.Client
	Queue    *submit.Queue
	Pipeline *submit.Pipeline
	Manager  *session.Manager
}

// New loads configuration and wires every component. dbPath overrides the
// configured database location when non-empty (CLI --db flag).
func New(ctx context.Context, dbPath string) (*App, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		dbPath = p
	} else if err := store.EnsureDir(dbPath); err != nil {
		return nil, fmt.Errorf("create DB directory: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := transport.NewHTTP(cfg.APIBaseURL, cfg.HTTPTimeout, log)

	queue, err := submit.OpenQueue(ctx, st, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open offline queue: %w", err)
	}
	pipeline := submit.NewPipeline(client, queue, log)

	mgr := session.NewManager(session.Options{
		KV:       st,
		Client:   client,
		Pipeline: pipeline,
		Logger:   log,
	})

	return &App{
		Cfg:      cfg,
		Log:      log,
		Store:    st,
		Client:   client,
		Queue:    queue,
		Pipeline: pipeline,
		Manager:  mgr,
	}, nil
}

// Close releases the durable store.
func (a *App) Close() error {
	return a.Store.Close()
}
