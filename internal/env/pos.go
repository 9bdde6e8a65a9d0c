package env

import "fmt"

// Position is a tile inside a named room.
type Position struct {
	Room string `json:"room" yaml:"room"`
	X    int    `json:"x" yaml:"x"`
	Y    int    `json:"y" yaml:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("[%s %d,%d]", p.Room, p.X, p.Y)
}

// RangeTo is the chebyshev distance, or -1 across rooms.
func (p Position) RangeTo(o Position) int {
	if p.Room != o.Room {
		return -1
	}
	return max(abs(p.X-o.X), abs(p.Y-o.Y))
}

func (p Position) InRangeTo(o Position, r int) bool {
	d := p.RangeTo(o)
	return d >= 0 && d <= r
}

func (p Position) IsNearTo(o Position) bool { return p.InRangeTo(o, 1) }

// StepToward returns the tile one step closer to o. Positions in other rooms
// are returned unchanged.
func (p Position) StepToward(o Position) Position {
	if p.Room != o.Room {
		return p
	}
	p.X += sign(o.X - p.X)
	p.Y += sign(o.Y - p.Y)
	return p
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
