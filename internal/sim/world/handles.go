package world

import (
	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

// stamp is embedded in every handle. Values are captured at fetch time, like
// an observation; commands re-check the live entity.
type stamp struct {
	w    *World
	tick uint64
}

func (s stamp) stale() bool { return s.w.tick != s.tick }

type creepHandle struct {
	stamp
	c        *creep
	id       env.ObjectID
	name     string
	pos      env.Position
	store    env.Store
	spawning bool
}

func (w *World) creepHandle(c *creep) *creepHandle {
	return &creepHandle{
		stamp:    stamp{w: w, tick: w.tick},
		c:        c,
		id:       c.id,
		name:     c.name,
		pos:      c.pos,
		store:    env.Store{Energy: c.energy, Capacity: c.capacity},
		spawning: c.spawning,
	}
}

func (h *creepHandle) ID() env.ObjectID  { return h.id }
func (h *creepHandle) Pos() env.Position { return h.pos }
func (h *creepHandle) Name() string      { return h.name }
func (h *creepHandle) Spawning() bool    { return h.spawning }
func (h *creepHandle) Store() env.Store  { return h.store }

func (h *creepHandle) Room() (env.Room, bool) {
	r, ok := h.w.rooms[h.pos.Room]
	if !ok {
		return nil, false
	}
	return h.w.roomHandle(r), true
}

func (h *creepHandle) live(op string) (*creep, error) {
	if h.stale() {
		return nil, protocol.Reject(op, protocol.ErrStale, "handle from tick "+u64(h.tick))
	}
	if h.w.creepByID[h.id] != h.c {
		return nil, protocol.Reject(op, protocol.ErrNotFound, string(h.id))
	}
	return h.c, nil
}

func (h *creepHandle) MoveTo(target env.Position) error {
	c, err := h.live("move")
	if err != nil {
		return err
	}
	return h.w.moveCreep(c, target)
}

func (h *creepHandle) Harvest(s env.Source) error {
	c, err := h.live("harvest")
	if err != nil {
		return err
	}
	src, err := h.w.sourceOf("harvest", s)
	if err != nil {
		return err
	}
	return h.w.harvest(c, src)
}

func (h *creepHandle) Service(o env.Objective) error {
	c, err := h.live("service")
	if err != nil {
		return err
	}
	ctl, err := h.w.controllerOf("service", o)
	if err != nil {
		return err
	}
	return h.w.service(c, ctl)
}

type sourceHandle struct {
	stamp
	s        *source
	pos      env.Position
	energy   int
	capacity int
}

func (w *World) sourceHandle(s *source) *sourceHandle {
	return &sourceHandle{stamp: stamp{w: w, tick: w.tick}, s: s, pos: s.pos, energy: s.energy, capacity: s.capacity}
}

func (h *sourceHandle) ID() env.ObjectID    { return h.s.id }
func (h *sourceHandle) Pos() env.Position   { return h.pos }
func (h *sourceHandle) Energy() int         { return h.energy }
func (h *sourceHandle) EnergyCapacity() int { return h.capacity }

type controllerHandle struct {
	stamp
	c     *controller
	pos   env.Position
	level int
}

func (w *World) controllerHandle(c *controller) *controllerHandle {
	return &controllerHandle{stamp: stamp{w: w, tick: w.tick}, c: c, pos: c.pos, level: c.level}
}

func (h *controllerHandle) ID() env.ObjectID                 { return h.c.id }
func (h *controllerHandle) Pos() env.Position                { return h.pos }
func (h *controllerHandle) StructureType() env.StructureType { return env.StructureController }
func (h *controllerHandle) Level() int                       { return h.level }

type spawnHandle struct {
	stamp
	s      *spawn
	pos    env.Position
	energy int
}

func (w *World) spawnHandle(s *spawn) *spawnHandle {
	return &spawnHandle{stamp: stamp{w: w, tick: w.tick}, s: s, pos: s.pos, energy: s.energy}
}

func (h *spawnHandle) ID() env.ObjectID                 { return h.s.id }
func (h *spawnHandle) Pos() env.Position                { return h.pos }
func (h *spawnHandle) StructureType() env.StructureType { return env.StructureSpawn }
func (h *spawnHandle) Name() string                     { return h.s.name }
func (h *spawnHandle) EnergyAvailable() int             { return h.energy }

func (h *spawnHandle) Spawn(body []env.Part, name string) error {
	if h.stale() {
		return protocol.Reject("spawn", protocol.ErrStale, "handle from tick "+u64(h.tick))
	}
	return h.w.spawnCreep(h.s, body, name)
}

type roomHandle struct {
	stamp
	r       *room
	energy  int
	structs []env.Structure
	sources []env.Source
}

func (w *World) roomHandle(r *room) *roomHandle {
	h := &roomHandle{stamp: stamp{w: w, tick: w.tick}, r: r, energy: w.roomEnergy(r)}
	if r.controller != nil {
		h.structs = append(h.structs, w.controllerHandle(r.controller))
	}
	for _, s := range r.spawns {
		h.structs = append(h.structs, w.spawnHandle(s))
	}
	for _, s := range r.sources {
		if s.energy > 0 {
			h.sources = append(h.sources, w.sourceHandle(s))
		}
	}
	return h
}

func (h *roomHandle) Name() string                { return h.r.name }
func (h *roomHandle) EnergyAvailable() int        { return h.energy }
func (h *roomHandle) Structures() []env.Structure { return h.structs }
func (h *roomHandle) ActiveSources() []env.Source { return h.sources }

// sourceOf maps a target handle back to the world entity.
func (w *World) sourceOf(op string, s env.Source) (*source, error) {
	if s == nil {
		return nil, protocol.Reject(op, protocol.ErrInvalidTarget, "nil source")
	}
	if h, ok := s.(*sourceHandle); ok && h.w == w {
		if h.stale() {
			return nil, protocol.Reject(op, protocol.ErrStale, "source handle from tick "+u64(h.tick))
		}
		return h.s, nil
	}
	src, ok := w.sources[s.ID()]
	if !ok {
		return nil, protocol.Reject(op, protocol.ErrInvalidTarget, string(s.ID()))
	}
	return src, nil
}

func (w *World) controllerOf(op string, o env.Objective) (*controller, error) {
	if o == nil {
		return nil, protocol.Reject(op, protocol.ErrInvalidTarget, "nil objective")
	}
	if h, ok := o.(*controllerHandle); ok && h.w == w {
		if h.stale() {
			return nil, protocol.Reject(op, protocol.ErrStale, "objective handle from tick "+u64(h.tick))
		}
		return h.c, nil
	}
	c, ok := w.ctrls[o.ID()]
	if !ok {
		return nil, protocol.Reject(op, protocol.ErrInvalidTarget, string(o.ID()))
	}
	return c, nil
}
