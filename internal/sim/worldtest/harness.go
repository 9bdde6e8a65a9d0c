package worldtest

import (
	"testing"

	"github.com/rs/zerolog"

	"colony.ai/internal/colony"
	"colony.ai/internal/env"
	world "colony.ai/internal/sim/world"
)

// Harness drives a reference world with a colony bot, one cycle per Step:
// BeginCycle, the bot's guarded loop, then the world tick.
//
// It only uses exported APIs so tests can live outside both packages.
type Harness struct {
	T   *testing.T
	W   *world.World
	Bot *colony.Bot

	Reports []*colony.Report
}

func NewHarness(t *testing.T, cfg world.WorldConfig, botCfg colony.Config, opts ...colony.Option) *Harness {
	t.Helper()

	w, err := world.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, botCfg, opts...)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed
// world, for tests that seed creeps before the first cycle.
func NewHarnessWithWorld(t *testing.T, w *world.World, botCfg colony.Config, opts ...colony.Option) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	if botCfg.RunID == "" {
		botCfg.RunID = "test"
	}
	return &Harness{
		T:   t,
		W:   w,
		Bot: colony.NewBot(w, botCfg, zerolog.Nop(), opts...),
	}
}

// Step runs one cycle and returns its report, or nil if the cycle was
// skipped or aborted.
func (h *Harness) Step() *colony.Report {
	h.T.Helper()
	before := h.Bot.Cycles()
	h.W.BeginCycle()
	h.Bot.GuardedLoop()
	h.W.Step()
	if h.Bot.Cycles() == before {
		return nil
	}
	r := h.Bot.LastReport()
	h.Reports = append(h.Reports, r)
	return r
}

func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
	}
}

// StepUntil steps until cond holds, failing after max cycles.
func (h *Harness) StepUntil(max int, what string, cond func() bool) {
	h.T.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return
		}
		h.Step()
	}
	if !cond() {
		h.T.Fatalf("%s: not reached after %d cycles (tick %d)", what, max, h.W.Time())
	}
}

func (h *Harness) AddCreep(name string, pos env.Position, body []env.Part, energy int) env.ObjectID {
	h.T.Helper()
	id, err := h.W.AddCreep(name, pos, body, energy)
	if err != nil {
		h.T.Fatalf("AddCreep %s: %v", name, err)
	}
	return id
}

func (h *Harness) Creep(name string) world.CreepInfo {
	h.T.Helper()
	c, ok := h.W.Creep(name)
	if !ok {
		h.T.Fatalf("creep %s not found at tick %d", name, h.W.Time())
	}
	return c
}

// Goal returns the stored goal kind and target of a creep, or "" if idle.
func (h *Harness) Goal(name string) (colony.GoalKind, env.ObjectID) {
	g, ok := h.Bot.Targets().Peek(name)
	if !ok {
		return "", ""
	}
	return g.Kind(), g.Target()
}
