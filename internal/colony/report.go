package colony

// Assignment records a goal chosen for an idle agent.
type Assignment struct {
	Agent  string   `json:"agent"`
	Kind   GoalKind `json:"kind"`
	Target string   `json:"target"`
}

// Drop records a goal removed from the store.
type Drop struct {
	Agent  string   `json:"agent"`
	Kind   GoalKind `json:"kind"`
	Target string   `json:"target"`
	Reason string   `json:"reason"`
	Code   string   `json:"code,omitempty"`
}

// Report summarizes one cycle. It is what the journal and the cycle index store.
type Report struct {
	RunID    string  `json:"run_id,omitempty"`
	Tick     uint64  `json:"tick"`
	CPUStart float64 `json:"cpu_start_ms"`
	CPUUsed  float64 `json:"cpu_used_ms"`

	Spawns   []SpawnRecord `json:"spawns,omitempty"`
	Agents   int           `json:"agents"`
	Spawning int           `json:"spawning"`
	Idle     int           `json:"idle"`

	Assigned []Assignment    `json:"assigned,omitempty"`
	Dropped  []Drop          `json:"dropped,omitempty"`
	Commands map[Command]int `json:"commands,omitempty"`
	Goals    int             `json:"goals"`
	Cleanup  *CleanupReport  `json:"cleanup,omitempty"`
}

func (r *Report) countCommand(c Command) {
	if c == CommandNone {
		return
	}
	if r.Commands == nil {
		r.Commands = map[Command]int{}
	}
	r.Commands[c]++
}

// Spawned lists the names created this cycle.
func (r *Report) Spawned() []string {
	var out []string
	for _, s := range r.Spawns {
		if s.Name != "" {
			out = append(out, s.Name)
		}
	}
	return out
}

// CycleSink receives the report at the end of every cycle.
type CycleSink interface {
	WriteCycle(r *Report) error
}
