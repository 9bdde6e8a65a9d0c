package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the reference world's balance numbers.
type Tuning struct {
	SourceCapacity   int `yaml:"source_capacity"`
	SourceRegenTicks int `yaml:"source_regen_ticks"`
	HarvestPerWork   int `yaml:"harvest_per_work"`
	ServicePerWork   int `yaml:"service_per_work"`

	SpawnCapacity      int `yaml:"spawn_capacity"`
	SpawnRefillPerTick int `yaml:"spawn_refill_per_tick"`
	SpawnTicksPerPart  int `yaml:"spawn_ticks_per_part"`
	MaxBodyParts       int `yaml:"max_body_parts"`

	CarryPerPart  int `yaml:"carry_per_part"`
	CreepLifetime int `yaml:"creep_lifetime"`
	HarvestRange  int `yaml:"harvest_range"`
	ServiceRange  int `yaml:"service_range"`

	// ControllerLevelPoints[i] is the progress needed to leave level i+1.
	ControllerLevelPoints []int `yaml:"controller_level_points"`
}

func Defaults() Tuning {
	return Tuning{
		SourceCapacity:        3000,
		SourceRegenTicks:      300,
		HarvestPerWork:        2,
		ServicePerWork:        1,
		SpawnCapacity:         300,
		SpawnRefillPerTick:    1,
		SpawnTicksPerPart:     3,
		MaxBodyParts:          50,
		CarryPerPart:          50,
		CreepLifetime:         1500,
		HarvestRange:          1,
		ServiceRange:          3,
		ControllerLevelPoints: []int{200, 45000, 135000, 405000, 1215000, 3645000, 10935000},
	}
}

// Normalize fills zero values from Defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.SourceCapacity, d.SourceCapacity)
	fill(&t.SourceRegenTicks, d.SourceRegenTicks)
	fill(&t.HarvestPerWork, d.HarvestPerWork)
	fill(&t.ServicePerWork, d.ServicePerWork)
	fill(&t.SpawnCapacity, d.SpawnCapacity)
	fill(&t.SpawnRefillPerTick, d.SpawnRefillPerTick)
	fill(&t.SpawnTicksPerPart, d.SpawnTicksPerPart)
	fill(&t.MaxBodyParts, d.MaxBodyParts)
	fill(&t.CarryPerPart, d.CarryPerPart)
	fill(&t.CreepLifetime, d.CreepLifetime)
	fill(&t.HarvestRange, d.HarvestRange)
	fill(&t.ServiceRange, d.ServiceRange)
	if len(t.ControllerLevelPoints) == 0 {
		t.ControllerLevelPoints = d.ControllerLevelPoints
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	return t, nil
}
