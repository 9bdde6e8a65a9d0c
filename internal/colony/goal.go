package colony

import (
	"fmt"

	"colony.ai/internal/env"
)

type GoalKind string

const (
	KindServiceObjective GoalKind = "service_objective"
	KindGather           GoalKind = "gather"
)

// Goal is what an agent is working toward. The set of goals is closed: add a
// variant here and a case in Policy.Assign and Engine.Execute.
//
// Goals are immutable once chosen. Changing an agent's goal means removing it
// from the store and inserting a new one.
type Goal interface {
	Kind() GoalKind
	Target() env.ObjectID
	isGoal()
}

// ServiceObjective delivers carried energy to an objective.
type ServiceObjective struct {
	Ref env.Ref[env.Objective]
}

// Gather extracts energy from a source.
type Gather struct {
	Ref env.Ref[env.Source]
}

func (*ServiceObjective) Kind() GoalKind         { return KindServiceObjective }
func (g *ServiceObjective) Target() env.ObjectID { return g.Ref.ID }
func (*ServiceObjective) isGoal()                {}

func (*Gather) Kind() GoalKind         { return KindGather }
func (g *Gather) Target() env.ObjectID { return g.Ref.ID }
func (*Gather) isGoal()                {}

func (g *ServiceObjective) String() string { return fmt.Sprintf("service(%s)", g.Ref) }
func (g *Gather) String() string           { return fmt.Sprintf("gather(%s)", g.Ref) }

// NewGoal rebuilds a goal from its persisted form.
func NewGoal(kind GoalKind, target env.ObjectID) (Goal, error) {
	if target == "" {
		return nil, fmt.Errorf("goal %s: empty target", kind)
	}
	switch kind {
	case KindServiceObjective:
		return &ServiceObjective{Ref: env.Ref[env.Objective]{ID: target}}, nil
	case KindGather:
		return &Gather{Ref: env.Ref[env.Source]{ID: target}}, nil
	default:
		return nil, fmt.Errorf("unknown goal kind %q", kind)
	}
}
