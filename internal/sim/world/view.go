package world

import (
	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

func posView(p env.Position) protocol.PosView {
	return protocol.PosView{Room: p.Room, X: p.X, Y: p.Y}
}

// CycleView is what a remote player observes at the start of the current tick.
func (w *World) CycleView(cpuLimitMs int) protocol.CycleMsg {
	msg := protocol.CycleMsg{
		Type:            protocol.TypeCycle,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick,
		CPULimitMs:      cpuLimitMs,
		Rooms:           []protocol.RoomView{},
		Creeps:          []protocol.CreepView{},
		Spawns:          []protocol.SpawnView{},
		Memory:          w.MemoryNames(),
	}
	for _, name := range w.roomOrder {
		r := w.rooms[name]
		rv := protocol.RoomView{Name: r.name, EnergyAvailable: w.roomEnergy(r), Sources: []protocol.SourceView{}}
		if c := r.controller; c != nil {
			rv.Controller = &protocol.ControllerView{ID: string(c.id), Pos: posView(c.pos), Level: c.level}
		}
		for _, s := range r.sources {
			rv.Sources = append(rv.Sources, protocol.SourceView{
				ID:             string(s.id),
				Pos:            posView(s.pos),
				Energy:         s.energy,
				EnergyCapacity: s.capacity,
			})
		}
		msg.Rooms = append(msg.Rooms, rv)
	}
	for _, name := range w.creepNames() {
		c := w.creeps[name]
		msg.Creeps = append(msg.Creeps, protocol.CreepView{
			ID:       string(c.id),
			Name:     c.name,
			Pos:      posView(c.pos),
			Spawning: c.spawning,
			Energy:   c.energy,
			Capacity: c.capacity,
		})
	}
	for _, s := range w.spawnList {
		msg.Spawns = append(msg.Spawns, protocol.SpawnView{ID: string(s.id), Name: s.name, Pos: posView(s.pos), Energy: s.energy})
	}
	return msg
}
