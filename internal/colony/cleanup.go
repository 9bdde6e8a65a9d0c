package colony

import (
	"github.com/rs/zerolog"

	"colony.ai/internal/env"
)

// CleanupReport lists what a maintenance pass removed.
type CleanupReport struct {
	Targets []string `json:"targets,omitempty"`
	Memory  []string `json:"memory,omitempty"`
}

// Cleanup drops store entries and environment memory records of agents that
// no longer exist. Neither is pruned anywhere else.
func Cleanup(e env.Env, targets *TargetStore, log zerolog.Logger) CleanupReport {
	live := map[string]bool{}
	for _, a := range e.Agents() {
		live[a.Name()] = true
	}

	rep := CleanupReport{Targets: targets.Prune(live)}
	for _, name := range rep.Targets {
		log.Debug().Str("agent", name).Msg("dropping goal of dead agent")
	}
	for _, name := range e.MemoryNames() {
		if live[name] {
			continue
		}
		log.Debug().Str("agent", name).Msg("cleaning up memory of dead agent")
		e.DeleteMemory(name)
		rep.Memory = append(rep.Memory, name)
	}
	return rep
}
