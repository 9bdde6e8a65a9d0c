package colony

import (
	"github.com/rs/zerolog"

	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

type Outcome int

const (
	// Continue keeps the goal for the next cycle.
	Continue Outcome = iota
	// Complete drops the goal because it is done. Neither built-in goal
	// completes; they are dropped as Invalid once their precondition fails.
	Complete
	// Invalid drops the goal because it can no longer be pursued.
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Complete:
		return "complete"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Command is the environment-mutating command an execution step issued.
type Command string

const (
	CommandNone    Command = ""
	CommandMove    Command = "move"
	CommandHarvest Command = "harvest"
	CommandService Command = "service"
)

// Step is the result of driving one agent for one cycle.
type Step struct {
	Outcome Outcome
	// Command is the accepted command, if any. A rejected attempt does not count.
	Command Command
	// Reason says why a goal was dropped.
	Reason string
	Err    error
}

const (
	ReasonUnresolved = "unresolved"
	ReasonEmpty      = "empty"
	ReasonFull       = "full"
	ReasonRejected   = "rejected"
	ReasonUnknown    = "unknown_goal"
)

func invalid(reason string, err error) Step {
	return Step{Outcome: Invalid, Reason: reason, Err: err}
}

// Engine drives an agent one step toward its goal.
type Engine struct {
	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// Execute issues at most one command for a and reports whether g is still
// worth keeping. Anything unexpected invalidates the goal.
func (e *Engine) Execute(res env.Resolver, a env.Agent, g Goal) Step {
	switch g := g.(type) {
	case *ServiceObjective:
		return e.service(res, a, g)
	case *Gather:
		return e.gather(res, a, g)
	default:
		return invalid(ReasonUnknown, nil)
	}
}

func (e *Engine) service(res env.Resolver, a env.Agent, g *ServiceObjective) Step {
	if a.Store().Used() <= 0 {
		return invalid(ReasonEmpty, nil)
	}
	o, ok := g.Ref.Resolve(res)
	if !ok {
		return invalid(ReasonUnresolved, nil)
	}
	err := a.Service(o)
	switch {
	case err == nil:
		return Step{Outcome: Continue, Command: CommandService}
	case protocol.IsCode(err, protocol.ErrNotInRange):
		return e.moveToward(a, o)
	default:
		e.log.Warn().Str("agent", a.Name()).Str("target", string(o.ID())).Err(err).Msg("couldn't service")
		return invalid(ReasonRejected, err)
	}
}

func (e *Engine) gather(res env.Resolver, a env.Agent, g *Gather) Step {
	if a.Store().Free() <= 0 {
		return invalid(ReasonFull, nil)
	}
	src, ok := g.Ref.Resolve(res)
	if !ok {
		return invalid(ReasonUnresolved, nil)
	}
	if !a.Pos().IsNearTo(src.Pos()) {
		return e.moveToward(a, src)
	}
	if err := a.Harvest(src); err != nil {
		e.log.Warn().Str("agent", a.Name()).Str("target", string(src.ID())).Err(err).Msg("couldn't harvest")
		return invalid(ReasonRejected, err)
	}
	return Step{Outcome: Continue, Command: CommandHarvest}
}

func (e *Engine) moveToward(a env.Agent, target env.Object) Step {
	if err := a.MoveTo(target.Pos()); err != nil {
		e.log.Warn().Str("agent", a.Name()).Stringer("to", target.Pos()).Err(err).Msg("couldn't move")
		return invalid(ReasonRejected, err)
	}
	return Step{Outcome: Continue, Command: CommandMove}
}
