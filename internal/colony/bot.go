package colony

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"colony.ai/internal/env"
)

// Checkpointer persists the target store so a restarted process can pick up
// where the last one left off.
type Checkpointer interface {
	SaveTargets(runID string, tick uint64, recs []TargetRecord) error
	LoadTargets() ([]TargetRecord, error)
}

// Bot owns the long-lived state of a colony process: the target store and the
// orchestrator that works on it.
type Bot struct {
	env     env.Env
	cfg     Config
	targets *TargetStore
	orch    *Orchestrator
	sinks   []CycleSink
	log     zerolog.Logger

	ckpt      Checkpointer
	ckptEvery uint64

	running bool
	cycles  uint64
	last    *Report
}

type Option func(*Bot)

func WithSinks(s ...CycleSink) Option {
	return func(b *Bot) { b.sinks = append(b.sinks, s...) }
}

// WithCheckpointer saves the store every n completed cycles.
func WithCheckpointer(c Checkpointer, every uint64) Option {
	return func(b *Bot) {
		b.ckpt = c
		b.ckptEvery = every
	}
}

func NewBot(e env.Env, cfg Config, log zerolog.Logger, opts ...Option) *Bot {
	if cfg.RunID == "" {
		cfg.RunID = ulid.Make().String()
	}
	b := &Bot{
		env:     e,
		cfg:     cfg,
		targets: NewTargetStore(),
		log:     log.With().Str("run", cfg.RunID).Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.orch = NewOrchestrator(cfg, b.targets, b.log, b.sinks...)
	return b
}

func (b *Bot) RunID() string               { return b.cfg.RunID }
func (b *Bot) Targets() *TargetStore       { return b.targets }
func (b *Bot) Cycles() uint64              { return b.cycles }
func (b *Bot) LastReport() *Report         { return b.last }
func (b *Bot) Orchestrator() *Orchestrator { return b.orch }

// Restore loads the last checkpoint into the store.
func (b *Bot) Restore() error {
	if b.ckpt == nil {
		return nil
	}
	recs, err := b.ckpt.LoadTargets()
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	skipped := b.targets.Restore(recs)
	b.log.Info().Int("goals", b.targets.Len()).Int("skipped", skipped).Msg("restored targets")
	return nil
}

// Loop runs one cycle. The host calls it exactly once per environment cycle.
//
// If the previous call never returned normally (a panic, or the host killed
// the cycle), this call does not run the colony: it discards the possibly
// half-updated store, reloads the checkpoint and leaves the work to the next
// cycle.
func (b *Bot) Loop() { b.cycle() }

// cycle reports whether the colony ran; false means this call only reset.
func (b *Bot) cycle() bool {
	if b.running {
		b.log.Error().Stringer("phase", b.orch.Phase()).Msg("previous cycle aborted, resetting")
		b.reset()
		return false
	}
	b.running = true
	r := b.orch.RunCycle(context.Background(), b.env)
	b.last = r
	b.cycles++
	if b.ckpt != nil && b.ckptEvery > 0 && b.cycles%b.ckptEvery == 0 {
		if err := b.ckpt.SaveTargets(b.cfg.RunID, r.Tick, b.targets.Records()); err != nil {
			b.log.Warn().Err(err).Msg("couldn't checkpoint targets")
		}
	}
	b.running = false
	return true
}

// GuardedLoop is Loop for hosts that must survive a panicking cycle. It
// reports whether the colony ran a full cycle; a panicking cycle and the
// reset that follows it both report false.
func (b *Bot) GuardedLoop() (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error().
				Str("panic", fmt.Sprint(rec)).
				Str("stack", string(debug.Stack())).
				Stringer("phase", b.orch.Phase()).
				Msg("cycle panicked")
			ok = false
		}
	}()
	return b.cycle()
}

func (b *Bot) reset() {
	b.targets.Restore(nil)
	if err := b.Restore(); err != nil {
		b.log.Warn().Err(err).Msg("reset without checkpoint")
	}
	b.orch.phase = PhaseIdle
	b.running = false
}
