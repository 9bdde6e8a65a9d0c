package ws

import (
	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

// cycleView is the decoded CYCLE message. Its handles carry the tick they
// were built for.
type cycleView struct {
	tick       uint64
	objects    map[env.ObjectID]env.Object
	rooms      map[string]*remoteRoom
	agents     []env.Agent
	facilities []env.Facility
	memory     map[string]struct{}
}

func emptyView() *cycleView {
	return &cycleView{
		objects: map[env.ObjectID]env.Object{},
		rooms:   map[string]*remoteRoom{},
		memory:  map[string]struct{}{},
	}
}

func toPos(p protocol.PosView) env.Position {
	return env.Position{Room: p.Room, X: p.X, Y: p.Y}
}

func toPosView(p env.Position) *protocol.PosView {
	return &protocol.PosView{Room: p.Room, X: p.X, Y: p.Y}
}

func (c *Client) buildView(m protocol.CycleMsg) *cycleView {
	v := emptyView()
	v.tick = m.Tick
	st := stamp{c: c, tick: m.Tick}

	for _, rv := range m.Rooms {
		r := &remoteRoom{name: rv.Name, energy: rv.EnergyAvailable}
		if cv := rv.Controller; cv != nil {
			ctl := &remoteController{
				remoteObj: remoteObj{stamp: st, id: env.ObjectID(cv.ID), pos: toPos(cv.Pos)},
				level:     cv.Level,
			}
			r.structs = append(r.structs, ctl)
			v.objects[ctl.id] = ctl
		}
		for _, sv := range rv.Sources {
			s := &remoteSource{
				remoteObj: remoteObj{stamp: st, id: env.ObjectID(sv.ID), pos: toPos(sv.Pos)},
				energy:    sv.Energy,
				capacity:  sv.EnergyCapacity,
			}
			r.sources = append(r.sources, s)
			v.objects[s.id] = s
		}
		v.rooms[r.name] = r
	}
	for _, sv := range m.Spawns {
		s := &remoteSpawn{
			remoteObj: remoteObj{stamp: st, id: env.ObjectID(sv.ID), pos: toPos(sv.Pos)},
			name:      sv.Name,
			energy:    sv.Energy,
		}
		if r, ok := v.rooms[s.pos.Room]; ok {
			r.structs = append(r.structs, s)
		}
		v.objects[s.id] = s
		v.facilities = append(v.facilities, s)
	}
	for _, cv := range m.Creeps {
		a := &remoteCreep{
			remoteObj: remoteObj{stamp: st, id: env.ObjectID(cv.ID), pos: toPos(cv.Pos)},
			name:      cv.Name,
			spawning:  cv.Spawning,
			store:     env.Store{Energy: cv.Energy, Capacity: cv.Capacity},
			room:      v.rooms[cv.Pos.Room],
		}
		v.objects[a.id] = a
		v.agents = append(v.agents, a)
	}
	for _, n := range m.Memory {
		v.memory[n] = struct{}{}
	}
	return v
}

type stamp struct {
	c    *Client
	tick uint64
}

type remoteObj struct {
	stamp
	id  env.ObjectID
	pos env.Position
}

func (o *remoteObj) ID() env.ObjectID  { return o.id }
func (o *remoteObj) Pos() env.Position { return o.pos }

type remoteRoom struct {
	name    string
	energy  int
	structs []env.Structure
	sources []env.Source
}

func (r *remoteRoom) Name() string                { return r.name }
func (r *remoteRoom) EnergyAvailable() int        { return r.energy }
func (r *remoteRoom) Structures() []env.Structure { return r.structs }

func (r *remoteRoom) ActiveSources() []env.Source {
	var out []env.Source
	for _, s := range r.sources {
		if s.Energy() > 0 {
			out = append(out, s)
		}
	}
	return out
}

type remoteController struct {
	remoteObj
	level int
}

func (o *remoteController) StructureType() env.StructureType { return env.StructureController }
func (o *remoteController) Level() int                       { return o.level }

type remoteSource struct {
	remoteObj
	energy   int
	capacity int
}

func (s *remoteSource) Energy() int         { return s.energy }
func (s *remoteSource) EnergyCapacity() int { return s.capacity }

type remoteSpawn struct {
	remoteObj
	name   string
	energy int
}

func (s *remoteSpawn) StructureType() env.StructureType { return env.StructureSpawn }
func (s *remoteSpawn) Name() string                     { return s.name }
func (s *remoteSpawn) EnergyAvailable() int             { return s.energy }

func (s *remoteSpawn) Spawn(body []env.Part, name string) error {
	raw := make([]string, len(body))
	for i, p := range body {
		raw[i] = string(p)
	}
	return s.c.call("spawn", protocol.CmdMsg{Op: protocol.OpSpawn, Actor: string(s.id), Body: raw, Name: name}, s.tick)
}

type remoteCreep struct {
	remoteObj
	name     string
	spawning bool
	store    env.Store
	room     *remoteRoom
}

func (a *remoteCreep) Name() string     { return a.name }
func (a *remoteCreep) Spawning() bool   { return a.spawning }
func (a *remoteCreep) Store() env.Store { return a.store }

func (a *remoteCreep) Room() (env.Room, bool) {
	if a.room == nil {
		return nil, false
	}
	return a.room, true
}

func (a *remoteCreep) MoveTo(target env.Position) error {
	return a.c.call("move", protocol.CmdMsg{Op: protocol.OpMoveTo, Actor: string(a.id), Pos: toPosView(target)}, a.tick)
}

func (a *remoteCreep) Harvest(s env.Source) error {
	return a.c.call("harvest", protocol.CmdMsg{Op: protocol.OpHarvest, Actor: string(a.id), Target: string(s.ID())}, a.tick)
}

func (a *remoteCreep) Service(o env.Objective) error {
	return a.c.call("service", protocol.CmdMsg{Op: protocol.OpService, Actor: string(a.id), Target: string(o.ID())}, a.tick)
}
