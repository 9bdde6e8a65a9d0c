package worldtest

import (
	"colony.ai/internal/colony"
	"colony.ai/internal/env"
	world "colony.ai/internal/sim/world"
)

var workerBody = []env.Part{env.PartMove, env.PartMove, env.PartCarry, env.PartWork}

func pos(x, y int) env.Position { return env.Position{Room: "W1N1", X: x, Y: y} }

// quietWorld is the default layout with an empty spawn so the bot does not
// produce creeps on its own.
func quietWorld() world.WorldConfig {
	cfg := world.DefaultConfig()
	cfg.Rooms[0].Spawns = nil
	return cfg
}

func botConfig(executeOnAssign bool) colony.Config {
	cfg := colony.DefaultConfig()
	cfg.ExecuteOnAssign = executeOnAssign
	return cfg
}
