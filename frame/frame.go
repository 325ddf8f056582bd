// Package frame carries everything a coordinator stage may read or write
// during one tick.
package frame

import (
	"context"
	"log/slog"

	"github.com/nstehr/vimy/vimy-terran/abilities"
	"github.com/nstehr/vimy/vimy-terran/catalog"
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/maneuver"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/rules"
	"github.com/nstehr/vimy/vimy-terran/spatial"
	"github.com/nstehr/vimy/vimy-terran/world"
)

const (
	// HomeThreatRadius is how close to an own townhall an enemy ground unit
	// must be to count as a threat at home.
	HomeThreatRadius = 18
	// BaseThreatRadius bounds the enemies considered near each own base.
	BaseThreatRadius = 18
	// RallyOffset is how far past the natural, toward the map center, the
	// army gathers.
	RallyOffset = 5
)

type Frame struct {
	Ctx       context.Context
	State     *model.GameState
	Roles     *roles.Registry
	World     world.Query
	Pather    spatial.Pather
	Abilities *abilities.Tracker
	Catalog   *catalog.Catalog
	Orders    command.Sink
	Maneuvers *maneuver.Executor
	Log       *slog.Logger

	homeThreats  []model.Unit
	baseEnemies  map[uint64][]model.Unit
	threatsReady bool
}

// Deps are the per-game collaborators a frame is built from.
type Deps struct {
	Roles     *roles.Registry
	Abilities *abilities.Tracker
	Catalog   *catalog.Catalog
	Pather    spatial.Pather
	Log       *slog.Logger
	// OnFired is told about every maneuver behavior that fires.
	OnFired func(maneuver.Kind)
}

// New builds the frame for one tick. Orders receive every command the
// tick's coordinators issue.
func New(ctx context.Context, gs *model.GameState, d Deps, orders command.Sink) *Frame {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Frame{
		Ctx:       ctx,
		State:     gs,
		Roles:     d.Roles,
		World:     world.NewIndex(gs),
		Pather:    d.Pather,
		Abilities: d.Abilities,
		Catalog:   d.Catalog,
		Orders:    orders,
		Maneuvers: maneuver.NewExecutor(gs.Tick, d.Pather, orders, log, d.OnFired),
		Log:       log,
	}
}

func (f *Frame) Tick() int { return f.State.Tick }

// mainBase is the townhall closest to the start location.
func (f *Frame) mainBase() (model.Unit, bool) {
	return model.Closest(f.State.Townhalls(), f.State.StartLocation)
}

func (f *Frame) computeThreats() {
	if f.threatsReady {
		return
	}
	f.threatsReady = true

	threatening := func(units []model.Unit) []model.Unit {
		var out []model.Unit
		for _, u := range units {
			if f.Catalog.CanAttackGround(u) || f.Catalog.IsWorker(u.Type) {
				out = append(out, u)
			}
		}
		return out
	}

	if main, ok := f.mainBase(); ok {
		f.homeThreats = threatening(f.World.Near(main.Pos, HomeThreatRadius, world.EnemyGround))
	}
	f.baseEnemies = make(map[uint64][]model.Unit)
	for th, near := range f.World.InRange(f.State.Townhalls(), BaseThreatRadius, world.EnemyGround) {
		if near = threatening(near); len(near) > 0 {
			f.baseEnemies[th] = near
		}
	}
}

// HomeThreats returns enemy ground units threatening the main base.
func (f *Frame) HomeThreats() []model.Unit {
	f.computeThreats()
	return f.homeThreats
}

// ThreatAtHome reports whether any enemy ground unit threatens the main
// base.
func (f *Frame) ThreatAtHome() bool { return len(f.HomeThreats()) > 0 }

// EnemiesNearBases maps each own townhall with nearby enemy ground units
// to those units.
func (f *Frame) EnemiesNearBases() map[uint64][]model.Unit {
	f.computeThreats()
	return f.baseEnemies
}

// Rally is where the army gathers and where units retreat to heal.
func (f *Frame) Rally() model.Point {
	base := f.State.OwnNatural
	if base.IsZero() {
		base = f.State.StartLocation
	}
	return base.Towards(f.State.MapCenter, RallyOffset)
}

// Env returns the expression environment for this tick.
func (f *Frame) Env() rules.Env {
	return rules.NewEnv(f.State, f.ThreatAtHome(), nil)
}

// Submit hands m to the tick's executor.
func (f *Frame) Submit(m *maneuver.Maneuver) maneuver.Result {
	return f.Maneuvers.Submit(m)
}
