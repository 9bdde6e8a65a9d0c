package colony

import (
	"sort"

	"colony.ai/internal/env"
)

// TargetStore maps agent names to their current goal. It is the only state
// that survives from one cycle to the next. It is owned by a single actor
// and is not safe for concurrent use.
type TargetStore struct {
	goals map[string]Goal
}

func NewTargetStore() *TargetStore {
	return &TargetStore{goals: map[string]Goal{}}
}

// Take removes and returns the agent's goal. The caller owns it until it is
// inserted again or dropped.
func (s *TargetStore) Take(agent string) (Goal, bool) {
	g, ok := s.goals[agent]
	if ok {
		delete(s.goals, agent)
	}
	return g, ok
}

// Insert installs or replaces the agent's goal.
func (s *TargetStore) Insert(agent string, g Goal) {
	if g == nil {
		return
	}
	s.goals[agent] = g
}

// Peek returns the goal without taking it. Used by diagnostics and tests.
func (s *TargetStore) Peek(agent string) (Goal, bool) {
	g, ok := s.goals[agent]
	return g, ok
}

func (s *TargetStore) Len() int { return len(s.goals) }

// Agents lists the stored agent names, sorted.
func (s *TargetStore) Agents() []string {
	out := make([]string, 0, len(s.goals))
	for name := range s.goals {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Prune drops entries whose agent is not in live and returns the removed names.
func (s *TargetStore) Prune(live map[string]bool) []string {
	var removed []string
	for name := range s.goals {
		if !live[name] {
			delete(s.goals, name)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}

// TargetRecord is the persisted form of one store entry.
type TargetRecord struct {
	Agent  string   `json:"agent"`
	Kind   GoalKind `json:"kind"`
	Target string   `json:"target"`
}

// Records exports the store in agent order.
func (s *TargetStore) Records() []TargetRecord {
	out := make([]TargetRecord, 0, len(s.goals))
	for _, name := range s.Agents() {
		g := s.goals[name]
		out = append(out, TargetRecord{Agent: name, Kind: g.Kind(), Target: string(g.Target())})
	}
	return out
}

// Restore replaces the store content with recs. Records that cannot be
// decoded are skipped and counted.
func (s *TargetStore) Restore(recs []TargetRecord) (skipped int) {
	goals := make(map[string]Goal, len(recs))
	for _, r := range recs {
		if r.Agent == "" {
			skipped++
			continue
		}
		g, err := NewGoal(r.Kind, env.ObjectID(r.Target))
		if err != nil {
			skipped++
			continue
		}
		goals[r.Agent] = g
	}
	s.goals = goals
	return skipped
}
