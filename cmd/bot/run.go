package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"colony.ai/internal/colony"
	"colony.ai/internal/config"
	"colony.ai/internal/env"
	"colony.ai/internal/logging"
	"colony.ai/internal/persistence/journal"
	"colony.ai/internal/persistence/targetdb"
	"colony.ai/internal/sim/world"
	"colony.ai/internal/tracing"
	"colony.ai/internal/transport/ws"
)

type runOptions struct {
	out     io.Writer
	restore bool
}

// run wires the colony to its host and drives cycles until the context ends,
// max_ticks is reached, or a remote world closes the session.
func run(ctx context.Context, cfg config.Config, opts runOptions) (*colony.Bot, error) {
	base := logging.New(cfg.Log, opts.out)
	notifyLevel, _ := logging.ParseLevel(cfg.Log.NotifyLevel)
	hook := logging.NewNotifyHook(notifyLevel, cfg.Log.NotifyPerMinute, base)
	logger := base.Hook(hook)

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	defer func() { _ = shutdown(context.Background()) }()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	var (
		e      env.Env
		w      *world.World
		client *ws.Client
	)
	switch cfg.Host.Mode {
	case "remote":
		client = ws.NewClient(ws.DialConfig{URL: cfg.Host.URL, Player: cfg.Host.Player}, logger)
		closers = append(closers, client)
		if err := connect(ctx, client, logger); err != nil {
			return nil, err
		}
		e = client
	default:
		w, err = localWorld(cfg.Host.WorldConfig, logger)
		if err != nil {
			return nil, err
		}
		e = w
	}
	hook.SetClock(e.Time)

	sinks, err := logging.BuildSinks(cfg.Log, e, base)
	if err != nil {
		return nil, err
	}
	for _, s := range sinks {
		hook.Add(s)
		if c, ok := s.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	var botOpts []colony.Option
	if dir := cfg.Persistence.JournalDir; dir != "" {
		cycles := journal.NewCycleLogger(dir)
		notes := journal.NewNoteLogger(dir)
		closers = append(closers, cycles, notes)
		hook.Add(notes)
		botOpts = append(botOpts, colony.WithSinks(cycles))
	}
	var db *targetdb.Store
	if path := cfg.Persistence.DBPath; path != "" {
		db, err = targetdb.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open target db: %w", err)
		}
		closers = append(closers, db)
		botOpts = append(botOpts,
			colony.WithSinks(db),
			colony.WithCheckpointer(db, cfg.Persistence.CheckpointEveryCycles),
		)
	}

	ccfg, err := colony.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	bot := colony.NewBot(e, ccfg, logger, botOpts...)
	if opts.restore {
		if err := bot.Restore(); err != nil {
			logger.Warn().Err(err).Msg("couldn't restore targets, starting empty")
		}
	}

	logger.Info().Str("mode", cfg.Host.Mode).Str("run", bot.RunID()).Msg("colony started")
	if client != nil {
		err = runRemote(ctx, client, bot, cfg.Host.MaxTicks, logger)
	} else {
		err = runLocal(ctx, w, bot, cfg.Host, logger)
	}

	if db != nil && bot.Cycles() > 0 {
		if err := db.SaveTargets(bot.RunID(), bot.LastReport().Tick, bot.Targets().Records()); err != nil {
			logger.Warn().Err(err).Msg("couldn't write final checkpoint")
		}
	}
	logger.Info().
		Uint64("cycles", bot.Cycles()).
		Int("goals", bot.Targets().Len()).
		Uint64("notified", hook.Sent()).
		Uint64("throttled", hook.Dropped()).
		Msg("colony stopped")
	return bot, err
}

func localWorld(path string, log zerolog.Logger) (*world.World, error) {
	wcfg := world.DefaultConfig()
	if path != "" {
		var err error
		wcfg, err = world.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}
	return world.New(wcfg, log)
}

func runLocal(ctx context.Context, w *world.World, bot *colony.Bot, h config.HostConfig, log zerolog.Logger) error {
	var tick <-chan time.Time
	if h.TickRateHz > 0 {
		t := time.NewTicker(time.Second / time.Duration(h.TickRateHz))
		defer t.Stop()
		tick = t.C
	}
	for n := uint64(0); h.MaxTicks == 0 || n < h.MaxTicks; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		w.BeginCycle()
		if !bot.GuardedLoop() {
			log.Warn().Uint64("tick", w.Time()).Msg("cycle did not complete")
		}
		w.Step()
	}
	return nil
}

func runRemote(ctx context.Context, c *ws.Client, bot *colony.Bot, maxTicks uint64, log zerolog.Logger) error {
	var served uint64
	for maxTicks == 0 || served < maxTicks {
		if _, err := c.Await(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, ws.ErrClosed):
				log.Info().Msg("world ended the session")
				return nil
			}
			log.Warn().Err(err).Msg("connection lost, reconnecting")
			if err := connect(ctx, c, log); err != nil {
				return err
			}
			continue
		}
		if !bot.GuardedLoop() {
			log.Warn().Uint64("tick", c.Time()).Msg("cycle did not complete")
		}
		if err := c.Done(); err != nil {
			log.Warn().Err(err).Msg("couldn't end cycle")
		}
		served++
	}
	return nil
}

// connect retries until the client is connected or ctx ends. The client's
// breaker keeps a dead world from being hammered.
func connect(ctx context.Context, c *ws.Client, log zerolog.Logger) error {
	backoff := 250 * time.Millisecond
	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		log.Debug().Err(err).Dur("backoff", backoff).Msg("connect failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}
