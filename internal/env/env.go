// Package env describes the environment the colony core runs against.
//
// Every handle returned by an Env is only valid for the cycle it was fetched in.
// Anything that must outlive a cycle is stored as a Ref and resolved again.
package env

// ObjectID is the environment's opaque identifier for an entity.
type ObjectID string

// Object is anything with an identity and a position.
type Object interface {
	ID() ObjectID
	Pos() Position
}

// Notifier delivers a message out of band (mail, chat, ...).
type Notifier interface {
	Notify(msg string)
}

// Resolver looks up a live handle by id for the current cycle.
type Resolver interface {
	Lookup(id ObjectID) (Object, bool)
}

// Env is the view of the environment for one cycle.
type Env interface {
	Resolver
	Notifier

	// Time is the monotonically increasing cycle counter.
	Time() uint64
	// CPUUsed is an advisory reading of compute consumed so far this cycle, in ms.
	CPUUsed() float64

	// Agents and Facilities are listed in environment order, stable within a cycle.
	Agents() []Agent
	Facilities() []Facility

	// MemoryNames lists the environment-side per-agent memory records.
	MemoryNames() []string
	DeleteMemory(name string)
}

// Store is an agent's energy inventory.
type Store struct {
	Energy   int `json:"energy"`
	Capacity int `json:"capacity"`
}

func (s Store) Used() int { return s.Energy }

func (s Store) Free() int {
	if s.Energy >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Energy
}

// Agent is a mobile worker the core commands.
type Agent interface {
	Object
	// Name is the agent's stable identity.
	Name() string
	Spawning() bool
	Store() Store
	Room() (Room, bool)

	MoveTo(target Position) error
	Harvest(s Source) error
	Service(o Objective) error
}

// Room is the area an agent or structure lives in.
type Room interface {
	Name() string
	EnergyAvailable() int
	Structures() []Structure
	ActiveSources() []Source
}

type StructureType string

const (
	StructureController StructureType = "controller"
	StructureSpawn      StructureType = "spawn"
)

type Structure interface {
	Object
	StructureType() StructureType
}

// Objective accepts energy deliveries from agents.
type Objective interface {
	Structure
	Level() int
}

// Source is a depletable, regenerating energy deposit.
type Source interface {
	Object
	Energy() int
	EnergyCapacity() int
}

// Facility produces new agents.
type Facility interface {
	Structure
	Name() string
	// EnergyAvailable is the energy the facility can spend this cycle.
	EnergyAvailable() int
	Spawn(body []Part, name string) error
}
