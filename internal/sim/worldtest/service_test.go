package worldtest

import (
	"testing"

	"colony.ai/internal/colony"
)

func TestService_ObjectiveDestroyed(t *testing.T) {
	h := NewHarness(t, quietWorld(), botConfig(false))
	h.AddCreep("s", pos(10, 10), workerBody, 50)

	h.Step()
	if kind, _ := h.Goal("s"); kind != colony.KindServiceObjective {
		t.Fatalf("loaded creep should be assigned service, got %q", kind)
	}
	if !h.W.DestroyController("W1N1") {
		t.Fatalf("no controller to destroy")
	}
	before := h.Creep("s").Pos

	r := h.Step()
	if len(r.Dropped) != 1 || r.Dropped[0].Reason != colony.ReasonUnresolved {
		t.Fatalf("goal should be dropped as unresolved: %+v", r.Dropped)
	}
	if len(r.Commands) != 0 {
		t.Fatalf("no command expected: %+v", r.Commands)
	}
	if kind, _ := h.Goal("s"); kind != "" {
		t.Fatalf("creep should be idle, got %q", kind)
	}
	if got := h.Creep("s").Pos; got != before {
		t.Fatalf("creep moved: %v -> %v", before, got)
	}

	r = h.Step()
	if r.Idle != 1 {
		t.Fatalf("creep with energy and no objective stays idle: %+v", r)
	}
}

func TestService_UpgradesUntilEmpty(t *testing.T) {
	h := NewHarness(t, quietWorld(), botConfig(true))
	// controller at (25,25), service range 3
	h.AddCreep("s", pos(22, 22), workerBody, 3)

	h.StepN(3)
	_, progress, _ := h.W.ControllerLevel("W1N1")
	if progress != 3 {
		t.Fatalf("controller progress: got %d want 3", progress)
	}
	r := h.Step()
	if len(r.Dropped) != 1 || r.Dropped[0].Reason != colony.ReasonEmpty {
		t.Fatalf("empty creep should drop service: %+v", r.Dropped)
	}
}
