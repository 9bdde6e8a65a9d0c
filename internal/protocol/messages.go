package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Player          string `json:"player"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`
}

// CYCLE (server -> client): everything the player can see this tick.
type CycleMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	CPULimitMs      int    `json:"cpu_limit_ms,omitempty"`

	Rooms  []RoomView  `json:"rooms"`
	Creeps []CreepView `json:"creeps"`
	Spawns []SpawnView `json:"spawns"`
	Memory []string    `json:"memory,omitempty"`
}

type PosView struct {
	Room string `json:"room"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type RoomView struct {
	Name            string          `json:"name"`
	EnergyAvailable int             `json:"energy_available"`
	Controller      *ControllerView `json:"controller,omitempty"`
	Sources         []SourceView    `json:"sources"`
}

type ControllerView struct {
	ID    string  `json:"id"`
	Pos   PosView `json:"pos"`
	Level int     `json:"level"`
}

type SourceView struct {
	ID             string  `json:"id"`
	Pos            PosView `json:"pos"`
	Energy         int     `json:"energy"`
	EnergyCapacity int     `json:"energy_capacity"`
}

type CreepView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Pos      PosView `json:"pos"`
	Spawning bool    `json:"spawning,omitempty"`
	Energy   int     `json:"energy"`
	Capacity int     `json:"capacity"`
}

type SpawnView struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Pos    PosView `json:"pos"`
	Energy int     `json:"energy"`
}

// Command ops.
const (
	OpMoveTo       = "MOVE_TO"
	OpHarvest      = "HARVEST"
	OpService      = "SERVICE"
	OpSpawn        = "SPAWN"
	OpNotify       = "NOTIFY"
	OpDeleteMemory = "DELETE_MEMORY"
)

// CMD (client -> server): one synchronous command; answered by RESULT.
type CmdMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tick            uint64   `json:"tick"`
	Seq             uint64   `json:"seq"`
	Op              string   `json:"op"`
	Actor           string   `json:"actor,omitempty"`
	Target          string   `json:"target,omitempty"`
	Pos             *PosView `json:"pos,omitempty"`
	Body            []string `json:"body,omitempty"`
	Name            string   `json:"name,omitempty"`
	Text            string   `json:"text,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

// DONE (client -> server): the player finished its cycle.
type DoneMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	CPUUsedMs       float64 `json:"cpu_used_ms"`
}
