package world

import (
	"strconv"

	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// act marks c as having used its one command this tick.
func (w *World) act(op string, c *creep) error {
	if c.spawning {
		return protocol.Reject(op, protocol.ErrBusy, "still spawning")
	}
	if c.actedTick == w.tick {
		return protocol.Reject(op, protocol.ErrBusy, "already acted this tick")
	}
	return nil
}

func (w *World) moveCreep(c *creep, target env.Position) error {
	if err := w.act("move", c); err != nil {
		return err
	}
	if env.CountParts(c.body, env.PartMove) == 0 {
		return protocol.Reject("move", protocol.ErrNoBodypart, "no move parts")
	}
	r, ok := w.rooms[target.Room]
	if !ok || target.Room != c.pos.Room {
		return protocol.Reject("move", protocol.ErrInvalidTarget, "target "+target.String()+" not in this room")
	}
	next := c.pos.StepToward(target)
	next.X = min(max(next.X, 0), r.width-1)
	next.Y = min(max(next.Y, 0), r.height-1)
	c.pos = next
	c.actedTick = w.tick
	return nil
}

func (w *World) harvest(c *creep, s *source) error {
	if err := w.act("harvest", c); err != nil {
		return err
	}
	work := env.CountParts(c.body, env.PartWork)
	switch {
	case work == 0:
		return protocol.Reject("harvest", protocol.ErrNoBodypart, "no work parts")
	case !c.pos.InRangeTo(s.pos, w.tun.HarvestRange):
		return protocol.Reject("harvest", protocol.ErrNotInRange, string(s.id))
	case s.energy <= 0:
		return protocol.Reject("harvest", protocol.ErrNotEnoughEnergy, "source depleted")
	case c.energy >= c.capacity:
		return protocol.Reject("harvest", protocol.ErrFull, "")
	}
	n := min(work*w.tun.HarvestPerWork, s.energy, c.capacity-c.energy)
	s.energy -= n
	c.energy += n
	if s.regenAt == 0 {
		s.regenAt = w.tick + uint64(w.tun.SourceRegenTicks)
	}
	c.actedTick = w.tick
	return nil
}

func (w *World) service(c *creep, ctl *controller) error {
	if err := w.act("service", c); err != nil {
		return err
	}
	work := env.CountParts(c.body, env.PartWork)
	switch {
	case work == 0:
		return protocol.Reject("service", protocol.ErrNoBodypart, "no work parts")
	case c.energy <= 0:
		return protocol.Reject("service", protocol.ErrNotEnoughEnergy, "")
	case !c.pos.InRangeTo(ctl.pos, w.tun.ServiceRange):
		return protocol.Reject("service", protocol.ErrNotInRange, string(ctl.id))
	}
	n := min(work*w.tun.ServicePerWork, c.energy)
	c.energy -= n
	ctl.progress += n
	for ctl.level-1 < len(w.tun.ControllerLevelPoints) && ctl.progress >= w.tun.ControllerLevelPoints[ctl.level-1] {
		ctl.progress -= w.tun.ControllerLevelPoints[ctl.level-1]
		ctl.level++
		w.log.Info().Str("controller", string(ctl.id)).Int("level", ctl.level).Msg("controller upgraded")
	}
	c.actedTick = w.tick
	return nil
}

func (w *World) spawnCreep(s *spawn, body []env.Part, name string) error {
	switch {
	case s.busy != nil:
		return protocol.Reject("spawn", protocol.ErrBusy, s.name+" is spawning "+s.busy.name)
	case name == "":
		return protocol.Reject("spawn", protocol.ErrInvalidArgs, "empty name")
	case len(body) == 0 || len(body) > w.tun.MaxBodyParts:
		return protocol.Reject("spawn", protocol.ErrInvalidArgs, "bad body size")
	}
	for _, p := range body {
		if !p.Valid() {
			return protocol.Reject("spawn", protocol.ErrInvalidArgs, "unknown part "+string(p))
		}
	}
	if _, taken := w.creeps[name]; taken {
		return protocol.Reject("spawn", protocol.ErrNameExists, name)
	}
	cost := env.BodyCost(body)
	if s.energy < cost {
		return protocol.Reject("spawn", protocol.ErrNotEnoughEnergy, strconv.Itoa(s.energy)+" < "+strconv.Itoa(cost))
	}
	s.energy -= cost
	c := w.newCreep(name, s.pos, body)
	c.spawning = true
	c.readyAt = w.tick + uint64(len(body)*w.tun.SpawnTicksPerPart)
	s.busy = c
	w.log.Debug().Str("spawn", s.name).Str("creep", name).Int("cost", cost).Msg("spawning")
	return nil
}

// Apply executes a wire command against the current tick. Ids are resolved
// fresh; a command stamped with another tick is stale.
func (w *World) Apply(cmd protocol.CmdMsg) error {
	if cmd.Tick != w.tick {
		return protocol.Reject(cmd.Op, protocol.ErrStale, "command for tick "+u64(cmd.Tick))
	}
	switch cmd.Op {
	case protocol.OpNotify:
		w.Notify(cmd.Text)
		return nil
	case protocol.OpDeleteMemory:
		w.DeleteMemory(cmd.Name)
		return nil
	case protocol.OpSpawn:
		s, ok := w.spawns[env.ObjectID(cmd.Actor)]
		if !ok {
			return protocol.Reject(cmd.Op, protocol.ErrNotFound, cmd.Actor)
		}
		body, err := env.ParseBody(cmd.Body)
		if err != nil {
			return protocol.Reject(cmd.Op, protocol.ErrInvalidArgs, err.Error())
		}
		return w.spawnCreep(s, body, cmd.Name)
	}

	c, ok := w.creepByID[env.ObjectID(cmd.Actor)]
	if !ok {
		return protocol.Reject(cmd.Op, protocol.ErrNotFound, cmd.Actor)
	}
	switch cmd.Op {
	case protocol.OpMoveTo:
		if cmd.Pos == nil {
			return protocol.Reject(cmd.Op, protocol.ErrInvalidArgs, "missing pos")
		}
		return w.moveCreep(c, env.Position{Room: cmd.Pos.Room, X: cmd.Pos.X, Y: cmd.Pos.Y})
	case protocol.OpHarvest:
		s, ok := w.sources[env.ObjectID(cmd.Target)]
		if !ok {
			return protocol.Reject(cmd.Op, protocol.ErrInvalidTarget, cmd.Target)
		}
		return w.harvest(c, s)
	case protocol.OpService:
		ctl, ok := w.ctrls[env.ObjectID(cmd.Target)]
		if !ok {
			return protocol.Reject(cmd.Op, protocol.ErrInvalidTarget, cmd.Target)
		}
		return w.service(c, ctl)
	default:
		return protocol.Reject(cmd.Op, protocol.ErrProtoBadRequest, "unknown op")
	}
}
