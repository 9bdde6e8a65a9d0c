package world

import (
	"fmt"

	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

// CreepInfo is a read-only view of a creep for tools and tests.
type CreepInfo struct {
	ID          env.ObjectID
	Name        string
	Pos         env.Position
	Energy      int
	Capacity    int
	Spawning    bool
	TicksToLive int
}

func (w *World) Creep(name string) (CreepInfo, bool) {
	c, ok := w.creeps[name]
	if !ok {
		return CreepInfo{}, false
	}
	info := CreepInfo{ID: c.id, Name: c.name, Pos: c.pos, Energy: c.energy, Capacity: c.capacity, Spawning: c.spawning}
	if c.diesAt > w.tick {
		info.TicksToLive = int(c.diesAt - w.tick)
	}
	return info, true
}

// AddCreep places a ready creep. It gets a memory record like a spawned one.
func (w *World) AddCreep(name string, pos env.Position, body []env.Part, energy int) (env.ObjectID, error) {
	if _, ok := w.creeps[name]; ok {
		return "", protocol.Reject("add_creep", protocol.ErrNameExists, name)
	}
	if _, ok := w.rooms[pos.Room]; !ok {
		return "", fmt.Errorf("unknown room %q", pos.Room)
	}
	c := w.newCreep(name, pos, body)
	c.energy = min(max(energy, 0), c.capacity)
	c.diesAt = w.tick + uint64(w.tun.CreepLifetime)
	return c.id, nil
}

// Kill removes a creep at once. Its memory record stays.
func (w *World) Kill(name string) bool {
	c, ok := w.creeps[name]
	if ok {
		w.removeCreep(c)
	}
	return ok
}

// DestroyController removes a room's controller.
func (w *World) DestroyController(roomName string) bool {
	r, ok := w.rooms[roomName]
	if !ok || r.controller == nil {
		return false
	}
	delete(w.ctrls, r.controller.id)
	r.controller = nil
	return true
}

func (w *World) Notes() []Note { return append([]Note(nil), w.notes...) }

func (w *World) ControllerLevel(roomName string) (level, progress int, ok bool) {
	r, ok := w.rooms[roomName]
	if !ok || r.controller == nil {
		return 0, 0, false
	}
	return r.controller.level, r.controller.progress, true
}

func (w *World) SourceEnergy(id env.ObjectID) (int, bool) {
	s, ok := w.sources[id]
	if !ok {
		return 0, false
	}
	return s.energy, true
}

func (w *World) SetSpawnEnergy(name string, energy int) bool {
	for _, s := range w.spawnList {
		if s.name == name {
			s.energy = min(max(energy, 0), s.capacity)
			return true
		}
	}
	return false
}

// Memory returns a copy of the creep's memory record.
func (w *World) Memory(name string) (map[string]any, bool) {
	m, ok := w.memory[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, true
}
