package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"colony.ai/internal/sim/tuning"
)

// WorldConfig is the static layout of a reference world.
type WorldConfig struct {
	ID     string        `yaml:"id"`
	Rooms  []RoomSpec    `yaml:"rooms"`
	Tuning tuning.Tuning `yaml:"tuning"`
}

type RoomSpec struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`

	Controller *Point       `yaml:"controller"`
	Sources    []SourceSpec `yaml:"sources"`
	Spawns     []SpawnSpec  `yaml:"spawns"`
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type SourceSpec struct {
	Point `yaml:",inline"`
	// Energy is the starting amount; zero means full.
	Energy int `yaml:"energy"`
}

type SpawnSpec struct {
	Name  string `yaml:"name"`
	Point `yaml:",inline"`
	// Energy is the starting amount; zero means full.
	Energy int `yaml:"energy"`
}

// DefaultConfig is a single room with a controller, two sources and a spawn.
func DefaultConfig() WorldConfig {
	return WorldConfig{
		ID: "sim",
		Rooms: []RoomSpec{{
			Name:       "W1N1",
			Controller: &Point{X: 25, Y: 25},
			Sources: []SourceSpec{
				{Point: Point{X: 10, Y: 12}},
				{Point: Point{X: 40, Y: 35}},
			},
			Spawns: []SpawnSpec{{Name: "Spawn1", Point: Point{X: 20, Y: 20}}},
		}},
		Tuning: tuning.Defaults(),
	}
}

func LoadConfig(path string) (WorldConfig, error) {
	var c WorldConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("world.yaml: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("world.yaml: %w", err)
	}
	return c, nil
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "sim"
	}
	for i := range c.Rooms {
		r := &c.Rooms[i]
		if r.Width <= 0 {
			r.Width = 50
		}
		if r.Height <= 0 {
			r.Height = 50
		}
	}
	c.Tuning.Normalize()
}

func (c WorldConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms")
	}
	rooms := map[string]bool{}
	spawns := map[string]bool{}
	for _, r := range c.Rooms {
		if r.Name == "" {
			return fmt.Errorf("room without name")
		}
		if rooms[r.Name] {
			return fmt.Errorf("duplicate room %q", r.Name)
		}
		rooms[r.Name] = true
		in := func(p Point) bool { return p.X >= 0 && p.Y >= 0 && p.X < r.Width && p.Y < r.Height }
		if r.Controller != nil && !in(*r.Controller) {
			return fmt.Errorf("room %s: controller out of bounds", r.Name)
		}
		for i, s := range r.Sources {
			if !in(s.Point) {
				return fmt.Errorf("room %s: source %d out of bounds", r.Name, i)
			}
		}
		for _, s := range r.Spawns {
			if s.Name == "" {
				return fmt.Errorf("room %s: spawn without name", r.Name)
			}
			if spawns[s.Name] {
				return fmt.Errorf("duplicate spawn %q", s.Name)
			}
			spawns[s.Name] = true
			if !in(s.Point) {
				return fmt.Errorf("spawn %s out of bounds", s.Name)
			}
		}
	}
	return nil
}
