package colony

import (
	"github.com/rs/zerolog"

	"colony.ai/internal/env"
)

// Policy picks a goal for an idle agent. It only reads the environment.
type Policy struct {
	log zerolog.Logger
}

func NewPolicy(log zerolog.Logger) *Policy {
	return &Policy{log: log}
}

// Assign returns the goal for agent a, or false when nothing in its room is
// worth doing. An agent carrying energy looks for an objective to service;
// an empty one looks for an active source. The first match in the room's
// listing order wins.
func (p *Policy) Assign(a env.Agent) (Goal, bool) {
	room, ok := a.Room()
	if !ok || room == nil {
		p.log.Warn().Str("agent", a.Name()).Msg("agent has no room")
		return nil, false
	}

	if a.Store().Used() > 0 {
		for _, s := range room.Structures() {
			switch s.StructureType() {
			case env.StructureController:
				if o, ok := s.(env.Objective); ok {
					return &ServiceObjective{Ref: env.RefOf(o)}, true
				}
			}
		}
		return nil, false
	}

	for _, src := range room.ActiveSources() {
		if src.Energy() <= 0 {
			continue
		}
		return &Gather{Ref: env.RefOf(src)}, true
	}
	return nil, false
}
