package env

import (
	"fmt"
	"strings"
)

// Part is one body part of an agent.
type Part string

const (
	PartMove         Part = "move"
	PartWork         Part = "work"
	PartCarry        Part = "carry"
	PartAttack       Part = "attack"
	PartRangedAttack Part = "ranged_attack"
	PartHeal         Part = "heal"
	PartClaim        Part = "claim"
	PartTough        Part = "tough"
)

var partCosts = map[Part]int{
	PartMove:         50,
	PartWork:         100,
	PartCarry:        50,
	PartAttack:       80,
	PartRangedAttack: 150,
	PartHeal:         250,
	PartClaim:        600,
	PartTough:        10,
}

func (p Part) Cost() int { return partCosts[p] }

func (p Part) Valid() bool {
	_, ok := partCosts[p]
	return ok
}

// BodyCost sums the part costs of a body.
func BodyCost(body []Part) int {
	total := 0
	for _, p := range body {
		total += p.Cost()
	}
	return total
}

func CountParts(body []Part, p Part) int {
	n := 0
	for _, b := range body {
		if b == p {
			n++
		}
	}
	return n
}

// ParseBody turns config strings into parts.
func ParseBody(raw []string) ([]Part, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	out := make([]Part, 0, len(raw))
	for i, s := range raw {
		p := Part(strings.ToLower(strings.TrimSpace(s)))
		if !p.Valid() {
			return nil, fmt.Errorf("body[%d]: unknown part %q", i, s)
		}
		out = append(out, p)
	}
	return out, nil
}
