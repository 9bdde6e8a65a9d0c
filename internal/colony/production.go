package colony

import (
	"fmt"

	"github.com/rs/zerolog"

	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

// SpawnRecord describes one facility's creation attempt in a cycle.
type SpawnRecord struct {
	Facility string `json:"facility"`
	Name     string `json:"name,omitempty"`
	Attempts int    `json:"attempts"`
	Code     string `json:"code,omitempty"`
}

// Producer decides, per facility, whether to spend energy on a new agent.
type Producer struct {
	body        []env.Part
	cost        int
	maxAttempts int
	log         zerolog.Logger
}

func NewProducer(body []env.Part, maxAttempts int, log zerolog.Logger) *Producer {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Producer{
		body:        append([]env.Part(nil), body...),
		cost:        env.BodyCost(body),
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func (p *Producer) Cost() int { return p.cost }

// Run asks every facility that can afford the body for one new agent. Names
// are "<time>-<seq>" where seq counts up through the cycle; a name collision
// bumps seq and retries.
func (p *Producer) Run(e env.Env) []SpawnRecord {
	if len(p.body) == 0 {
		return nil
	}
	var out []SpawnRecord
	seq := 0
	now := e.Time()
	for _, f := range e.Facilities() {
		p.log.Debug().Str("facility", f.Name()).Msg("running facility")
		if f.EnergyAvailable() < p.cost {
			continue
		}

		rec := SpawnRecord{Facility: f.Name()}
		var err error
		for rec.Attempts < p.maxAttempts {
			name := fmt.Sprintf("%d-%d", now, seq)
			rec.Attempts++
			err = f.Spawn(p.body, name)
			if protocol.IsCode(err, protocol.ErrNameExists) {
				seq++
				continue
			}
			if err == nil {
				rec.Name = name
				seq++
			}
			break
		}
		if err != nil {
			rec.Code = protocol.CodeOf(err)
			p.log.Warn().Str("facility", f.Name()).Int("attempts", rec.Attempts).Err(err).Msg("couldn't spawn")
		}
		out = append(out, rec)
	}
	return out
}
