package celestial

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// registryFile формат YAML-описания тиров.
//
//	tiers:
//	  - level: 0
//	    name: bright
//	    showup_chance: 1.0
//	    constellations: [discidia, armara]
//	    condition: {type: always}
type registryFile struct {
	Tiers []tierSpec `yaml:"tiers"`
}

type tierSpec struct {
	Level          int           `yaml:"level"`
	Name           string        `yaml:"name"`
	ShowupChance   float64       `yaml:"showup_chance"`
	Constellations []string      `yaml:"constellations"`
	Condition      conditionSpec `yaml:"condition"`
}

type conditionSpec struct {
	Type   string          `yaml:"type"`
	Phases []MoonPhase     `yaml:"phases"`
	Of     []conditionSpec `yaml:"of"`
}

// LoadRegistry читает реестр тиров из YAML файла.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry разбирает YAML-описание тиров.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tiers: %w", err)
	}

	tiers := make([]Tier, 0, len(file.Tiers))
	for _, ts := range file.Tiers {
		cond, err := ts.Condition.build()
		if err != nil {
			return nil, fmt.Errorf("tier %d (%s): %w", ts.Level, ts.Name, err)
		}
		cs := make([]Constellation, 0, len(ts.Constellations))
		for _, name := range ts.Constellations {
			cs = append(cs, Constellation(name))
		}
		tiers = append(tiers, Tier{
			Level:          ts.Level,
			Name:           ts.Name,
			Constellations: cs,
			ShowupChance:   ts.ShowupChance,
			Condition:      cond,
		})
	}
	return NewRegistry(tiers...)
}

func (cs conditionSpec) build() (Condition, error) {
	switch strings.ToLower(cs.Type) {
	case "", "always":
		return Always(), nil
	case "phases":
		return OnPhases(cs.Phases...), nil
	case "solar_eclipse":
		return OnSolarEclipseDay(), nil
	case "lunar_eclipse":
		return OnLunarEclipseDay(), nil
	case "any", "all":
		children := make([]Condition, 0, len(cs.Of))
		for _, child := range cs.Of {
			c, err := child.build()
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		if strings.ToLower(cs.Type) == "any" {
			return AnyOf(children...), nil
		}
		return AllOf(children...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCondition, cs.Type)
	}
}
