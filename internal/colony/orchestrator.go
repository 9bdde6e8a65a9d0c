package colony

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"colony.ai/internal/config"
	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
	"colony.ai/internal/tracing"
)

// Phase is where the orchestrator is within a cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseProduction
	PhaseAgents
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseProduction:
		return "production"
	case PhaseAgents:
		return "agents"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config holds the knobs of the decision engine.
type Config struct {
	// RunID tags reports so journals from different processes can be told apart.
	RunID string

	Body            []env.Part
	MaxNameAttempts int
	// ExecuteOnAssign runs a freshly assigned goal in the cycle it was
	// assigned instead of waiting for the next one.
	ExecuteOnAssign bool

	// Cleanup runs when Time() % CleanupEvery == CleanupOffset. Zero disables it.
	CleanupEvery  uint64
	CleanupOffset uint64

	// CPULimitMs is advisory; exceeding it only logs a warning.
	CPULimitMs float64
}

func DefaultConfig() Config {
	return Config{
		Body:            []env.Part{env.PartMove, env.PartMove, env.PartCarry, env.PartWork},
		MaxNameAttempts: 32,
		CleanupEvery:    32,
		CleanupOffset:   3,
	}
}

// ConfigFrom maps the file configuration onto the engine's knobs.
func ConfigFrom(c config.Config) (Config, error) {
	body, err := env.ParseBody(c.Production.Body)
	if err != nil {
		return Config{}, fmt.Errorf("production.body: %w", err)
	}
	return Config{
		Body:            body,
		MaxNameAttempts: c.Production.MaxNameAttempts,
		ExecuteOnAssign: c.Agents.ExecuteOnAssign,
		CleanupEvery:    c.Maintenance.CleanupEveryCycles,
		CleanupOffset:   c.Maintenance.CleanupOffset,
		CPULimitMs:      c.Host.CPULimitMs,
	}, nil
}

func (c *Config) applyDefaults() {
	if c.Body == nil {
		c.Body = DefaultConfig().Body
	}
	if c.MaxNameAttempts <= 0 {
		c.MaxNameAttempts = 32
	}
	if c.CleanupEvery > 0 && c.CleanupOffset >= c.CleanupEvery {
		c.CleanupOffset %= c.CleanupEvery
	}
}

// Orchestrator runs one full decision pass per cycle. Apart from the target
// store it is handed, it keeps nothing from one cycle to the next.
type Orchestrator struct {
	cfg      Config
	targets  *TargetStore
	policy   *Policy
	engine   *Engine
	producer *Producer
	sinks    []CycleSink
	log      zerolog.Logger

	phase Phase
}

func NewOrchestrator(cfg Config, targets *TargetStore, log zerolog.Logger, sinks ...CycleSink) *Orchestrator {
	cfg.applyDefaults()
	if targets == nil {
		targets = NewTargetStore()
	}
	return &Orchestrator{
		cfg:      cfg,
		targets:  targets,
		policy:   NewPolicy(log),
		engine:   NewEngine(log),
		producer: NewProducer(cfg.Body, cfg.MaxNameAttempts, log),
		sinks:    sinks,
		log:      log,
	}
}

func (o *Orchestrator) Targets() *TargetStore { return o.targets }

// Phase reports the phase of the cycle in progress, PhaseIdle between cycles.
func (o *Orchestrator) Phase() Phase { return o.phase }

func (o *Orchestrator) enter(p Phase) {
	o.phase = p
	o.log.Debug().Stringer("phase", p).Msg("entering phase")
}

// RunCycle runs production, then every agent, then maintenance.
func (o *Orchestrator) RunCycle(ctx context.Context, e env.Env) *Report {
	ctx, span := tracing.StartSpan(ctx, "colony.cycle")
	defer span.End()

	r := &Report{RunID: o.cfg.RunID, Tick: e.Time(), CPUStart: e.CPUUsed()}
	span.SetAttributes(tracing.Tick(r.Tick))
	o.log.Debug().Float64("cpu", r.CPUStart).Msg("loop starting")

	o.enter(PhaseProduction)
	_, pspan := tracing.StartSpan(ctx, "colony.production")
	r.Spawns = o.producer.Run(e)
	pspan.SetAttributes(tracing.IntAttr("colony.spawns", len(r.Spawned())))
	pspan.End()

	o.enter(PhaseAgents)
	_, aspan := tracing.StartSpan(ctx, "colony.agents")
	for _, a := range e.Agents() {
		if a.Spawning() {
			r.Spawning++
			continue
		}
		r.Agents++
		o.runAgent(e, a, r)
	}
	aspan.SetAttributes(tracing.IntAttr("colony.agents", r.Agents))
	aspan.End()

	if o.cfg.CleanupEvery > 0 && r.Tick%o.cfg.CleanupEvery == o.cfg.CleanupOffset {
		o.log.Info().Msg("running memory cleanup")
		rep := Cleanup(e, o.targets, o.log)
		r.Cleanup = &rep
	}

	o.enter(PhaseDone)
	r.Goals = o.targets.Len()
	r.CPUUsed = e.CPUUsed()
	o.log.Info().Float64("cpu", r.CPUUsed).Int("agents", r.Agents).Int("goals", r.Goals).Msg("done")
	if o.cfg.CPULimitMs > 0 && r.CPUUsed > o.cfg.CPULimitMs {
		o.log.Warn().Float64("cpu", r.CPUUsed).Float64("limit", o.cfg.CPULimitMs).Msg("cycle over cpu limit")
	}

	for _, s := range o.sinks {
		if err := s.WriteCycle(r); err != nil {
			o.log.Debug().Err(err).Msg("cycle sink")
		}
	}
	o.phase = PhaseIdle
	return r
}

func (o *Orchestrator) runAgent(e env.Env, a env.Agent, r *Report) {
	name := a.Name()
	o.log.Debug().Str("agent", name).Msg("running agent")

	g, ok := o.targets.Take(name)
	if !ok {
		g, ok = o.policy.Assign(a)
		if !ok {
			r.Idle++
			return
		}
		r.Assigned = append(r.Assigned, Assignment{Agent: name, Kind: g.Kind(), Target: string(g.Target())})
		if !o.cfg.ExecuteOnAssign {
			o.targets.Insert(name, g)
			return
		}
	}

	step := o.engine.Execute(e, a, g)
	r.countCommand(step.Command)
	if step.Outcome == Continue {
		o.targets.Insert(name, g)
		return
	}
	reason := step.Reason
	if step.Outcome == Complete && reason == "" {
		reason = "complete"
	}
	r.Dropped = append(r.Dropped, Drop{
		Agent:  name,
		Kind:   g.Kind(),
		Target: string(g.Target()),
		Reason: reason,
		Code:   protocol.CodeOf(step.Err),
	})
}
