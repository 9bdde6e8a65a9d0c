package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"colony.ai/internal/env"
	"colony.ai/internal/sim/tuning"
)

// World is a deterministic single-player reference environment.
//
// It is not safe for concurrent use: the host that drives the cycle owns it.
// Handles it returns are stamped with the tick they were fetched in; using
// one in a later tick fails with E_STALE.
type World struct {
	cfg  WorldConfig
	tun  tuning.Tuning
	log  zerolog.Logger
	tick uint64

	rooms     map[string]*room
	roomOrder []string
	sources   map[env.ObjectID]*source
	ctrls     map[env.ObjectID]*controller
	spawns    map[env.ObjectID]*spawn
	spawnList []*spawn
	creeps    map[string]*creep
	creepByID map[env.ObjectID]*creep
	memory    map[string]map[string]any
	notes     []Note

	nextCreepID uint64
	cycleStart  time.Time
	now         func() time.Time
}

// Note is a message delivered through Notify.
type Note struct {
	Tick uint64 `json:"tick"`
	Text string `json:"text"`
}

type room struct {
	name          string
	width, height int
	controller    *controller
	sources       []*source
	spawns        []*spawn
}

type source struct {
	id       env.ObjectID
	pos      env.Position
	energy   int
	capacity int
	// regenAt is the tick the source refills; zero while no timer runs.
	regenAt uint64
}

type controller struct {
	id       env.ObjectID
	pos      env.Position
	level    int
	progress int
}

type spawn struct {
	id       env.ObjectID
	name     string
	pos      env.Position
	energy   int
	capacity int
	busy     *creep
}

type creep struct {
	id        env.ObjectID
	name      string
	pos       env.Position
	body      []env.Part
	energy    int
	capacity  int
	spawning  bool
	readyAt   uint64
	diesAt    uint64
	actedTick uint64
}

func New(cfg WorldConfig, log zerolog.Logger) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		cfg:       cfg,
		tun:       cfg.Tuning,
		log:       log.With().Str("world", cfg.ID).Logger(),
		tick:      1,
		rooms:     map[string]*room{},
		sources:   map[env.ObjectID]*source{},
		ctrls:     map[env.ObjectID]*controller{},
		spawns:    map[env.ObjectID]*spawn{},
		creeps:    map[string]*creep{},
		creepByID: map[env.ObjectID]*creep{},
		memory:    map[string]map[string]any{},
		now:       time.Now,
	}
	for _, rs := range cfg.Rooms {
		r := &room{name: rs.Name, width: rs.Width, height: rs.Height}
		if rs.Controller != nil {
			c := &controller{
				id:    env.ObjectID("ctl-" + rs.Name),
				pos:   env.Position{Room: rs.Name, X: rs.Controller.X, Y: rs.Controller.Y},
				level: 1,
			}
			r.controller = c
			w.ctrls[c.id] = c
		}
		for i, ss := range rs.Sources {
			s := &source{
				id:       env.ObjectID(fmt.Sprintf("src-%s-%d", rs.Name, i)),
				pos:      env.Position{Room: rs.Name, X: ss.X, Y: ss.Y},
				energy:   w.tun.SourceCapacity,
				capacity: w.tun.SourceCapacity,
			}
			if ss.Energy > 0 && ss.Energy < s.capacity {
				s.energy = ss.Energy
			}
			r.sources = append(r.sources, s)
			w.sources[s.id] = s
		}
		for _, sp := range rs.Spawns {
			s := &spawn{
				id:       env.ObjectID("spawn-" + sp.Name),
				name:     sp.Name,
				pos:      env.Position{Room: rs.Name, X: sp.X, Y: sp.Y},
				energy:   w.tun.SpawnCapacity,
				capacity: w.tun.SpawnCapacity,
			}
			if sp.Energy > 0 && sp.Energy < s.capacity {
				s.energy = sp.Energy
			}
			r.spawns = append(r.spawns, s)
			w.spawns[s.id] = s
			w.spawnList = append(w.spawnList, s)
		}
		w.rooms[r.name] = r
		w.roomOrder = append(w.roomOrder, r.name)
	}
	return w, nil
}

func (w *World) ID() string            { return w.cfg.ID }
func (w *World) Tuning() tuning.Tuning { return w.tun }

// SetClock replaces the wall clock used for CPU accounting.
func (w *World) SetClock(now func() time.Time) { w.now = now }

// BeginCycle starts CPU accounting for the current tick.
func (w *World) BeginCycle() { w.cycleStart = w.now() }

// Step ends the current tick: spawns finish, stores refill, sources
// regenerate and old creeps die. Memory records are left alone.
func (w *World) Step() uint64 {
	now := w.tick
	for _, s := range w.spawnList {
		if s.busy != nil && now >= s.busy.readyAt {
			s.busy.spawning = false
			s.busy.diesAt = now + uint64(w.tun.CreepLifetime)
			w.log.Debug().Str("creep", s.busy.name).Str("spawn", s.name).Msg("creep ready")
			s.busy = nil
		}
		s.energy = min(s.capacity, s.energy+w.tun.SpawnRefillPerTick)
	}
	for _, s := range w.sources {
		if s.regenAt != 0 && now >= s.regenAt {
			s.energy = s.capacity
			s.regenAt = 0
		}
	}
	for _, name := range w.creepNames() {
		c := w.creeps[name]
		if !c.spawning && c.diesAt != 0 && now >= c.diesAt {
			w.log.Debug().Str("creep", name).Msg("creep died")
			w.removeCreep(c)
		}
	}
	w.tick++
	return w.tick
}

func (w *World) removeCreep(c *creep) {
	delete(w.creeps, c.name)
	delete(w.creepByID, c.id)
	for _, s := range w.spawnList {
		if s.busy == c {
			s.busy = nil
		}
	}
}

func (w *World) creepNames() []string {
	out := make([]string, 0, len(w.creeps))
	for name := range w.creeps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (w *World) newCreep(name string, pos env.Position, body []env.Part) *creep {
	w.nextCreepID++
	c := &creep{
		id:       env.ObjectID(fmt.Sprintf("creep-%d", w.nextCreepID)),
		name:     name,
		pos:      pos,
		body:     append([]env.Part(nil), body...),
		capacity: env.CountParts(body, env.PartCarry) * w.tun.CarryPerPart,
	}
	w.creeps[name] = c
	w.creepByID[c.id] = c
	w.memory[name] = map[string]any{"born": w.tick}
	return c
}

func (w *World) roomEnergy(r *room) int {
	total := 0
	for _, s := range r.spawns {
		total += s.energy
	}
	return total
}

// env.Env

func (w *World) Time() uint64 { return w.tick }

func (w *World) CPUUsed() float64 {
	if w.cycleStart.IsZero() {
		return 0
	}
	return float64(w.now().Sub(w.cycleStart)) / float64(time.Millisecond)
}

func (w *World) Notify(msg string) {
	w.notes = append(w.notes, Note{Tick: w.tick, Text: msg})
	w.log.Info().Uint64("tick", w.tick).Str("text", msg).Msg("notification")
}

func (w *World) Lookup(id env.ObjectID) (env.Object, bool) {
	if c, ok := w.creepByID[id]; ok {
		return w.creepHandle(c), true
	}
	if s, ok := w.sources[id]; ok {
		return w.sourceHandle(s), true
	}
	if c, ok := w.ctrls[id]; ok {
		return w.controllerHandle(c), true
	}
	if s, ok := w.spawns[id]; ok {
		return w.spawnHandle(s), true
	}
	return nil, false
}

func (w *World) Agents() []env.Agent {
	names := w.creepNames()
	out := make([]env.Agent, 0, len(names))
	for _, name := range names {
		out = append(out, w.creepHandle(w.creeps[name]))
	}
	return out
}

func (w *World) Facilities() []env.Facility {
	out := make([]env.Facility, 0, len(w.spawnList))
	for _, s := range w.spawnList {
		out = append(out, w.spawnHandle(s))
	}
	return out
}

func (w *World) MemoryNames() []string {
	out := make([]string, 0, len(w.memory))
	for name := range w.memory {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (w *World) DeleteMemory(name string) { delete(w.memory, name) }
