package worldtest

import (
	"slices"
	"testing"
)

func TestMaintenance_CleansDeadCreepState(t *testing.T) {
	h := NewHarness(t, quietWorld(), botConfig(false))
	h.AddCreep("alive", pos(12, 12), workerBody, 0)
	h.AddCreep("doomed", pos(12, 13), workerBody, 0)

	h.Step()
	if _, target := h.Goal("doomed"); target == "" {
		t.Fatalf("doomed creep should hold a goal")
	}
	h.W.Kill("doomed")

	// tick 2: not a maintenance tick, state lingers
	r := h.Step()
	if r.Cleanup != nil {
		t.Fatalf("unexpected cleanup at tick %d", r.Tick)
	}
	if !slices.Contains(h.W.MemoryNames(), "doomed") {
		t.Fatalf("memory should linger until maintenance")
	}
	if _, target := h.Goal("doomed"); target == "" {
		t.Fatalf("goal should linger until maintenance")
	}

	// tick 3: 3 % 32 == 3
	r = h.Step()
	if r.Cleanup == nil {
		t.Fatalf("expected cleanup at tick %d", r.Tick)
	}
	if !slices.Equal(r.Cleanup.Memory, []string{"doomed"}) || !slices.Equal(r.Cleanup.Targets, []string{"doomed"}) {
		t.Fatalf("cleanup report: %+v", r.Cleanup)
	}
	if got := h.W.MemoryNames(); !slices.Equal(got, []string{"alive"}) {
		t.Fatalf("memory after cleanup: %v", got)
	}
}
