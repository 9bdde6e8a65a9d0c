package worldtest

import (
	"testing"

	"colony.ai/internal/colony"
)

func TestGather_MoveThenExtract_Deferred(t *testing.T) {
	h := NewHarness(t, quietWorld(), botConfig(false))
	// source src-W1N1-0 sits at (10,12)
	h.AddCreep("g", pos(13, 12), workerBody, 0)

	r := h.Step()
	if len(r.Assigned) != 1 || r.Assigned[0].Kind != colony.KindGather {
		t.Fatalf("cycle 1 should assign gather: %+v", r.Assigned)
	}
	if len(r.Commands) != 0 {
		t.Fatalf("cycle 1 should issue no command: %+v", r.Commands)
	}

	r = h.Step()
	if r.Commands[colony.CommandMove] != 1 {
		t.Fatalf("cycle 2 should move: %+v", r.Commands)
	}
	h.Step()
	if got := h.Creep("g").Pos; got != pos(11, 12) {
		t.Fatalf("after two moves: got %v", got)
	}

	r = h.Step()
	if r.Commands[colony.CommandHarvest] != 1 {
		t.Fatalf("adjacent creep should harvest: %+v", r.Commands)
	}
	if got := h.Creep("g").Energy; got != 2 {
		t.Fatalf("energy after one harvest: got %d want 2", got)
	}
	if kind, target := h.Goal("g"); kind != colony.KindGather || target != "src-W1N1-0" {
		t.Fatalf("goal should persist: %s %s", kind, target)
	}
}

func TestGather_MoveThenExtract_ExecuteOnAssign(t *testing.T) {
	h := NewHarness(t, quietWorld(), botConfig(true))
	h.AddCreep("g", pos(13, 12), workerBody, 0)

	r := h.Step()
	if len(r.Assigned) != 1 || r.Commands[colony.CommandMove] != 1 {
		t.Fatalf("cycle 1 should assign and move: assigned=%+v commands=%+v", r.Assigned, r.Commands)
	}
	h.Step()
	r = h.Step()
	if r.Commands[colony.CommandHarvest] != 1 {
		t.Fatalf("cycle 3 should harvest: %+v", r.Commands)
	}
}

func TestGather_FullCreepSwitchesToService(t *testing.T) {
	h := NewHarness(t, quietWorld(), botConfig(true))
	h.AddCreep("g", pos(11, 12), workerBody, 0)

	h.StepUntil(30, "creep full", func() bool { return h.Creep("g").Energy == 50 })
	r := h.Step()
	if len(r.Dropped) != 1 || r.Dropped[0].Reason != colony.ReasonFull {
		t.Fatalf("full creep should drop gather: %+v", r.Dropped)
	}
	r = h.Step()
	if len(r.Assigned) != 1 || r.Assigned[0].Kind != colony.KindServiceObjective {
		t.Fatalf("full creep should be assigned service: %+v", r.Assigned)
	}
	if r.Commands[colony.CommandMove] != 1 {
		t.Fatalf("controller is far away, expected a move: %+v", r.Commands)
	}
}
