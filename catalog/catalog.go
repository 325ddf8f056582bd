// Package catalog holds static unit and ability data the decision layer
// needs but the snapshot does not carry: weapon reach, movement speed,
// transport sizes and the worker-defense weighting table.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nstehr/vimy/vimy-terran/model"
)

//go:embed units.yaml
var defaultYAML []byte

// Traits describes one unit type.
type Traits struct {
	Worker            bool    `yaml:"worker"`
	Melee             bool    `yaml:"melee"`
	Light             bool    `yaml:"light"`
	Flying            bool    `yaml:"flying"`
	Structure         bool    `yaml:"structure"`
	AttacksGround     bool    `yaml:"attacks_ground"`
	AttacksAir        bool    `yaml:"attacks_air"`
	Range             float64 `yaml:"range"`
	Speed             float64 `yaml:"speed"`
	CargoSize         int     `yaml:"cargo_size"`
	CargoCapacity     int     `yaml:"cargo_capacity"`
	DefendersRequired int     `yaml:"defenders_required"`
}

type file struct {
	Units     map[string]Traits `yaml:"units"`
	Abilities map[string]int    `yaml:"abilities"`
}

type Catalog struct {
	units     map[model.UnitType]Traits
	cooldowns map[model.Ability]int
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded units.yaml: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("units.yaml: %w", err)
	}
	c := &Catalog{
		units:     make(map[model.UnitType]Traits, len(f.Units)),
		cooldowns: make(map[model.Ability]int, len(f.Abilities)),
	}
	for name, t := range f.Units {
		c.units[model.UnitType(name)] = t
	}
	for name, loops := range f.Abilities {
		if loops < 0 {
			return nil, fmt.Errorf("units.yaml: ability %s has negative cooldown %d", name, loops)
		}
		c.cooldowns[model.Ability(name)] = loops
	}
	return c, nil
}

// Traits returns the traits of t. Unknown types report false and the zero
// Traits, which treat the unit as harmless.
func (c *Catalog) Traits(t model.UnitType) (Traits, bool) {
	tr, ok := c.units[t]
	return tr, ok
}

func (c *Catalog) IsWorker(t model.UnitType) bool { return c.units[t].Worker }
func (c *Catalog) IsMelee(t model.UnitType) bool  { return c.units[t].Melee }
func (c *Catalog) IsLight(t model.UnitType) bool  { return c.units[t].Light }
func (c *Catalog) Range(t model.UnitType) float64 { return c.units[t].Range }
func (c *Catalog) Speed(t model.UnitType) float64 { return c.units[t].Speed }
func (c *Catalog) CargoSize(t model.UnitType) int { return c.units[t].CargoSize }

// CanAttackGround reports whether u can currently damage ground units.
// Structures still under construction cannot.
func (c *Catalog) CanAttackGround(u model.Unit) bool {
	if u.IsStructure && u.BuildProgress > 0 && u.BuildProgress < 1 {
		return false
	}
	return c.units[u.Type].AttacksGround
}

// CanAttackAir reports whether u can currently damage air units.
func (c *Catalog) CanAttackAir(u model.Unit) bool {
	if u.IsStructure && u.BuildProgress > 0 && u.BuildProgress < 1 {
		return false
	}
	return c.units[u.Type].AttacksAir
}

// NonCombat reports unit types that never join the army by default.
func (c *Catalog) NonCombat(t model.UnitType) bool {
	return c.units[t].Worker
}

// Cooldown returns the cooldown of a in game loops.
func (c *Catalog) Cooldown(a model.Ability) int { return c.cooldowns[a] }

// DefendersRequired returns the worker-defense weighting table: how many
// workers it takes to answer one enemy of each listed type.
func (c *Catalog) DefendersRequired() map[model.UnitType]int {
	out := make(map[model.UnitType]int)
	for t, tr := range c.units {
		if tr.DefendersRequired > 0 {
			out[t] = tr.DefendersRequired
		}
	}
	return out
}
