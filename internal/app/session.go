package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"filecat/internal/client"
	"filecat/internal/config"
	"filecat/internal/filecat"
	"filecat/internal/store"
	"filecat/internal/tui"
)

// Session is a client-side connection to a running filecat server: the REST
// client, the response cache and the state store that the TUI renders.
type Session struct {
	client *client.Client
	store  *store.Store
}

// NewSession builds a Session from the client section of cfg. Logs go to the
// log file only, since the TUI owns the terminal.
func NewSession(cfg *config.Config) (*Session, func(), error) {
	opID := NewOperation("tui", time.Now()).ID
	logger, logFile, err := newFileLogger(cfg.LogDir, opID, parseLevel(cfg.LogLevel))
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	cleanup := func() { logFile.Close() }

	c, err := client.New(cfg.Client.ServerURL,
		client.WithToken(cfg.Client.Token),
		client.WithTimeout(cfg.Client.Timeout.Duration),
		client.WithLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating client: %w", err)
	}

	cache, err := store.NewCache(cfg.Client.CacheSize, filecat.RealClock{})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating cache: %w", err)
	}

	effects := store.NewEffects(c, cache, cfg.Client.CacheTTL.Duration, logger)
	st := store.New(store.InitialState(), cache, effects, logger)
	return &Session{client: c, store: st}, cleanup, nil
}

// Store returns the session's state store.
func (s *Session) Store() *store.Store {
	return s.store
}

// RunTUI runs the store loop, the push subscription and the TUI together.
// Quitting the TUI ends the session.
func (s *Session) RunTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.store.Run(gctx) })
	g.Go(func() error { return s.store.RunPush(gctx, s.client) })
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, s.store)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
