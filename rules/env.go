package rules

import (
	"strings"

	"github.com/nstehr/vimy/vimy-terran/model"
)

// Env wraps game state and exposes fields and helper methods callable from
// expr expressions, e.g. `Opening == "OneOneOne" && !ThreatAtHome`.
type Env struct {
	Tick         int
	Seconds      float64
	Opening      string
	EnemyRace    string
	ThreatAtHome bool

	State  *model.GameState
	Memory map[string]any
}

// NewEnv builds the expression environment for one tick.
func NewEnv(gs *model.GameState, threatAtHome bool, memory map[string]any) Env {
	return Env{
		Tick:         gs.Tick,
		Seconds:      gs.Seconds(),
		Opening:      gs.Opening,
		EnemyRace:    string(gs.EnemyRace),
		ThreatAtHome: threatAtHome,
		State:        gs,
		Memory:       memory,
	}
}

// HasUnit and the other type lookups match type names ignoring case, so
// expressions may write "widowmine" or "WidowMine".
func (e Env) HasUnit(t string) bool { return e.UnitCount(t) > 0 }

// UnitCount counts own units and structures of type t, including those
// still under construction.
func (e Env) UnitCount(t string) int {
	if e.State == nil {
		return 0
	}
	return countNamed(e.State.Units, t)
}

func (e Env) EnemyCount(t string) int {
	if e.State == nil {
		return 0
	}
	return countNamed(e.State.Enemies, t)
}

func (e Env) HasEnemy(t string) bool { return e.EnemyCount(t) > 0 }

func countNamed(units []model.Unit, t string) int {
	n := 0
	for _, u := range units {
		if strings.EqualFold(string(u.Type), t) {
			n++
		}
	}
	return n
}

func (e Env) EnemiesVisible() int {
	if e.State == nil {
		return 0
	}
	return len(e.State.Enemies)
}

func (e Env) Minerals() int {
	if e.State == nil {
		return 0
	}
	return e.State.Player.Minerals
}

// DepotsRaised counts finished supply depots that are not lowered.
func (e Env) DepotsRaised() int {
	return len(e.RaisedDepots())
}

func (e Env) RaisedDepots() []model.Unit {
	if e.State == nil {
		return nil
	}
	var out []model.Unit
	for _, u := range e.State.Units {
		if u.Type == model.SupplyDepot && u.BuildProgress >= 1 {
			out = append(out, u)
		}
	}
	return out
}

// OrbitalsWithEnergy counts orbital commands holding at least energy.
func (e Env) OrbitalsWithEnergy(energy float64) int {
	return len(e.Orbitals(energy))
}

func (e Env) Orbitals(energy float64) []model.Unit {
	if e.State == nil {
		return nil
	}
	var out []model.Unit
	for _, u := range e.State.Units {
		if u.Type == model.OrbitalCommand && u.Energy >= energy {
			out = append(out, u)
		}
	}
	return out
}

// Since returns the ticks elapsed since the tick stored under key in
// Memory, or a large number when nothing is stored.
func (e Env) Since(key string) int {
	if last, ok := e.Memory[key].(int); ok {
		return e.Tick - last
	}
	return 1 << 30
}

// IsEnemyRace compares case-insensitively.
func (e Env) IsEnemyRace(r string) bool {
	return strings.EqualFold(e.EnemyRace, r)
}
