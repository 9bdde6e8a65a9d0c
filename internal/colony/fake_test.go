package colony

import (
	"sort"

	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

// fakeEnv is a scripted environment. Commands take effect only in what the
// agents record; positions and stores change only when a test says so.
type fakeEnv struct {
	tick    uint64
	cpu     float64
	rooms   map[string]*fakeRoom
	agents  []*fakeAgent
	facs    []*fakeFacility
	objects map[env.ObjectID]env.Object
	memory  map[string]bool
	names   map[string]bool
	notes   []string

	panicAgents bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		tick:    1,
		rooms:   map[string]*fakeRoom{},
		objects: map[env.ObjectID]env.Object{},
		memory:  map[string]bool{},
		names:   map[string]bool{},
	}
}

func (e *fakeEnv) Lookup(id env.ObjectID) (env.Object, bool) {
	o, ok := e.objects[id]
	return o, ok
}

func (e *fakeEnv) Notify(msg string) { e.notes = append(e.notes, msg) }
func (e *fakeEnv) Time() uint64      { return e.tick }
func (e *fakeEnv) CPUUsed() float64  { return e.cpu }

func (e *fakeEnv) Agents() []env.Agent {
	if e.panicAgents {
		panic("agents unavailable")
	}
	out := make([]env.Agent, 0, len(e.agents))
	for _, a := range e.agents {
		out = append(out, a)
	}
	return out
}

func (e *fakeEnv) Facilities() []env.Facility {
	out := make([]env.Facility, 0, len(e.facs))
	for _, f := range e.facs {
		out = append(out, f)
	}
	return out
}

func (e *fakeEnv) MemoryNames() []string {
	out := make([]string, 0, len(e.memory))
	for n := range e.memory {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (e *fakeEnv) DeleteMemory(name string) { delete(e.memory, name) }

func (e *fakeEnv) room(name string) *fakeRoom {
	r, ok := e.rooms[name]
	if !ok {
		r = &fakeRoom{name: name}
		e.rooms[name] = r
	}
	return r
}

func (e *fakeEnv) addController(id string, pos env.Position) *fakeObjective {
	o := &fakeObjective{fakeObj: fakeObj{id: env.ObjectID(id), pos: pos}, level: 1}
	e.room(pos.Room).structures = append(e.room(pos.Room).structures, o)
	e.objects[o.id] = o
	return o
}

func (e *fakeEnv) addSource(id string, pos env.Position, energy int) *fakeSource {
	s := &fakeSource{fakeObj: fakeObj{id: env.ObjectID(id), pos: pos}, energy: energy, capacity: 3000}
	e.room(pos.Room).sources = append(e.room(pos.Room).sources, s)
	e.objects[s.id] = s
	return s
}

func (e *fakeEnv) addAgent(name string, pos env.Position, energy, capacity int) *fakeAgent {
	a := &fakeAgent{
		fakeObj: fakeObj{id: env.ObjectID("creep-" + name), pos: pos},
		name:    name,
		store:   env.Store{Energy: energy, Capacity: capacity},
		env:     e,
	}
	e.agents = append(e.agents, a)
	e.memory[name] = true
	e.names[name] = true
	return a
}

func (e *fakeEnv) addFacility(name string, pos env.Position, energy int) *fakeFacility {
	f := &fakeFacility{fakeObj: fakeObj{id: env.ObjectID("spawn-" + name), pos: pos}, name: name, energy: energy, env: e}
	e.facs = append(e.facs, f)
	return f
}

func (e *fakeEnv) destroy(id string) {
	delete(e.objects, env.ObjectID(id))
	for _, r := range e.rooms {
		structs := r.structures[:0]
		for _, s := range r.structures {
			if string(s.ID()) != id {
				structs = append(structs, s)
			}
		}
		r.structures = structs
		srcs := r.sources[:0]
		for _, s := range r.sources {
			if string(s.ID()) != id {
				srcs = append(srcs, s)
			}
		}
		r.sources = srcs
	}
}

func (e *fakeEnv) kill(name string) {
	out := e.agents[:0]
	for _, a := range e.agents {
		if a.name != name {
			out = append(out, a)
		}
	}
	e.agents = out
}

// accepted counts accepted commands across all agents.
func (e *fakeEnv) accepted() map[string][]string {
	out := map[string][]string{}
	for _, a := range e.agents {
		if len(a.accepted) > 0 {
			out[a.name] = append([]string(nil), a.accepted...)
		}
	}
	return out
}

func (e *fakeEnv) nextCycle() {
	e.tick++
	for _, a := range e.agents {
		a.accepted = nil
		a.attempts = nil
	}
	for _, f := range e.facs {
		f.calls = nil
	}
}

type fakeObj struct {
	id  env.ObjectID
	pos env.Position
}

func (o *fakeObj) ID() env.ObjectID  { return o.id }
func (o *fakeObj) Pos() env.Position { return o.pos }

type fakeRoom struct {
	name       string
	energy     int
	structures []env.Structure
	sources    []env.Source
}

func (r *fakeRoom) Name() string                { return r.name }
func (r *fakeRoom) EnergyAvailable() int        { return r.energy }
func (r *fakeRoom) Structures() []env.Structure { return r.structures }

func (r *fakeRoom) ActiveSources() []env.Source {
	var out []env.Source
	for _, s := range r.sources {
		if s.Energy() > 0 {
			out = append(out, s)
		}
	}
	return out
}

type fakeObjective struct {
	fakeObj
	level int
}

func (o *fakeObjective) StructureType() env.StructureType { return env.StructureController }
func (o *fakeObjective) Level() int                       { return o.level }

type fakeSource struct {
	fakeObj
	energy   int
	capacity int
}

func (s *fakeSource) Energy() int         { return s.energy }
func (s *fakeSource) EnergyCapacity() int { return s.capacity }

type fakeAgent struct {
	fakeObj
	name     string
	spawning bool
	store    env.Store
	noRoom   bool
	env      *fakeEnv

	moveErr    error
	harvestErr error
	serviceErr error

	attempts []string
	accepted []string
}

func (a *fakeAgent) Name() string     { return a.name }
func (a *fakeAgent) Spawning() bool   { return a.spawning }
func (a *fakeAgent) Store() env.Store { return a.store }

func (a *fakeAgent) Room() (env.Room, bool) {
	if a.noRoom {
		return nil, false
	}
	r, ok := a.env.rooms[a.pos.Room]
	if !ok {
		return nil, false
	}
	return r, true
}

func (a *fakeAgent) issue(cmd string, err error) error {
	a.attempts = append(a.attempts, cmd)
	if err == nil {
		a.accepted = append(a.accepted, cmd)
	}
	return err
}

func (a *fakeAgent) MoveTo(target env.Position) error {
	return a.issue("move", a.moveErr)
}

func (a *fakeAgent) Harvest(s env.Source) error {
	if a.harvestErr != nil {
		return a.issue("harvest", a.harvestErr)
	}
	if !a.pos.IsNearTo(s.Pos()) {
		return a.issue("harvest", protocol.Reject("harvest", protocol.ErrNotInRange, ""))
	}
	if s.Energy() <= 0 {
		return a.issue("harvest", protocol.Reject("harvest", protocol.ErrNotEnoughEnergy, ""))
	}
	return a.issue("harvest", nil)
}

func (a *fakeAgent) Service(o env.Objective) error {
	if a.serviceErr != nil {
		return a.issue("service", a.serviceErr)
	}
	if !a.pos.InRangeTo(o.Pos(), 3) {
		return a.issue("service", protocol.Reject("service", protocol.ErrNotInRange, ""))
	}
	return a.issue("service", nil)
}

type fakeFacility struct {
	fakeObj
	name   string
	energy int
	env    *fakeEnv
	err    error

	calls   []string
	spawned []string
}

func (f *fakeFacility) StructureType() env.StructureType { return env.StructureSpawn }
func (f *fakeFacility) Name() string                     { return f.name }
func (f *fakeFacility) EnergyAvailable() int             { return f.energy }

func (f *fakeFacility) Spawn(body []env.Part, name string) error {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return f.err
	}
	if f.env.names[name] {
		return protocol.Reject("spawn", protocol.ErrNameExists, name)
	}
	cost := env.BodyCost(body)
	if f.energy < cost {
		return protocol.Reject("spawn", protocol.ErrNotEnoughEnergy, "")
	}
	f.energy -= cost
	f.env.names[name] = true
	f.spawned = append(f.spawned, name)
	return nil
}

func at(x, y int) env.Position { return env.Position{Room: "W1N1", X: x, Y: y} }
