package worldtest

import (
	"testing"

	"github.com/rs/zerolog"

	world "colony.ai/internal/sim/world"
)

func TestProduction_SpawnsWhenAffordable(t *testing.T) {
	h := NewHarness(t, world.DefaultConfig(), botConfig(false))

	r := h.Step()
	if got := r.Spawned(); len(got) != 1 || got[0] != "1-0" {
		t.Fatalf("tick 1 should spawn 1-0: %+v", r.Spawns)
	}
	if !h.Creep("1-0").Spawning {
		t.Fatalf("new creep should be spawning")
	}

	// 50 energy left, refilling 1 per tick: nothing affordable for a while.
	for i := 0; i < 20; i++ {
		if r := h.Step(); len(r.Spawns) != 0 {
			t.Fatalf("tick %d: unaffordable spawn attempted: %+v", r.Tick, r.Spawns)
		}
	}
}

func TestProduction_NameCollisionAcrossSpawns(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.Rooms[0].Spawns = append(cfg.Rooms[0].Spawns, world.SpawnSpec{Name: "Spawn2", Point: world.Point{X: 30, Y: 20}})
	w, err := world.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	// occupy the first name this tick would use
	if _, err := w.AddCreep("1-0", pos(5, 5), workerBody, 0); err != nil {
		t.Fatalf("AddCreep: %v", err)
	}
	h := NewHarnessWithWorld(t, w, botConfig(false))

	r := h.Step()
	got := r.Spawned()
	if len(got) != 2 || got[0] != "1-1" || got[1] != "1-2" {
		t.Fatalf("spawned names: got %v want [1-1 1-2]", got)
	}
	if r.Spawns[0].Attempts != 2 {
		t.Fatalf("first spawn should retry once: %+v", r.Spawns[0])
	}
}

func TestProduction_SpawningCreepIsSkippedThenWorks(t *testing.T) {
	h := NewHarness(t, world.DefaultConfig(), botConfig(false))
	h.Step()

	h.StepUntil(20, "creep ready", func() bool { return !h.Creep("1-0").Spawning })
	r := h.Step()
	if r.Agents != 1 || len(r.Assigned) != 1 {
		t.Fatalf("ready creep should get a goal: agents=%d assigned=%+v", r.Agents, r.Assigned)
	}
}
