// Package army controls the main Attacking and Defending forces: gather at
// the rally until the push composition exists, then attack-move on the
// enemy with siege tank and transport handling.
package army

import (
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/maneuver"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/spatial"
	"github.com/nstehr/vimy/vimy-terran/world"
)

type Config struct {
	// RallyTolerance is how close to the rally a unit must be to count as
	// arrived.
	RallyTolerance float64
	// EngageRadius bounds the enemies a ground unit reacts to.
	EngageRadius float64
	// SiegeSupply is the nearby enemy supply at which tanks siege.
	SiegeSupply float64
	// DefenseOffset moves the defensive position from the natural toward
	// the top of the main ramp.
	DefenseOffset float64
	// SightRange is how close an own unit must be to a target to see it.
	SightRange float64
}

func DefaultConfig() Config {
	return Config{
		RallyTolerance: 5,
		EngageRadius:   15,
		SiegeSupply:    4,
		DefenseOffset:  3,
		SightRange:     7,
	}
}

type Coordinator struct {
	cfg Config

	pushing   bool
	target    model.Point
	expansion int
}

func New(cfg Config) *Coordinator { return &Coordinator{cfg: cfg} }

func (c *Coordinator) Name() string { return "army" }

// Pushing reports whether the army has left the rally for good.
func (c *Coordinator) Pushing() bool { return c.pushing }

// Assign has nothing to recruit: units reach Attacking and Defending
// through their initial role or another coordinator's release.
func (c *Coordinator) Assign(*frame.Frame) error { return nil }

// Reconcile starts the push once a siege tank and a medivac are attacking.
func (c *Coordinator) Reconcile(f *frame.Frame) error {
	if c.pushing {
		return nil
	}
	attackers := f.Roles.UnitsWithRole(roles.Attacking)
	tanks := model.OfType(attackers, model.SiegeTank, model.SiegeTankSieged)
	medivacs := model.OfType(attackers, model.Medivac)
	if len(tanks) > 0 && len(medivacs) > 0 {
		c.pushing = true
		f.Log.Info("army push started", "attackers", len(attackers), "tick", f.Tick())
	}
	return nil
}

func (c *Coordinator) Execute(f *frame.Frame) error {
	c.defend(f)
	attackers := f.Roles.UnitsWithRole(roles.Attacking)
	if len(attackers) == 0 {
		return nil
	}
	if !c.pushing {
		c.gather(f, attackers)
		return nil
	}
	c.push(f, attackers)
	return nil
}

// DefensePoint is where Defending units hold.
func (c *Coordinator) DefensePoint(gs *model.GameState) model.Point {
	return gs.OwnNatural.Towards(gs.MainRampTop, c.cfg.DefenseOffset)
}

// defend sieges Defending tanks on the defensive point and sends the other
// non-worker defenders at threats in the main, else to the point.
func (c *Coordinator) defend(f *frame.Frame) {
	point := c.DefensePoint(f.State)
	home := f.HomeThreats()
	for _, u := range f.Roles.UnitsWithRole(roles.Defending) {
		switch {
		case f.Catalog.IsWorker(u.Type) || u.Type == model.SiegeTankSieged:
			// Worker defense owns SCVs; sieged tanks hold.
		case u.Type == model.SiegeTank:
			if u.Pos.Dist(point) < 1 {
				f.Orders.Issue(command.Use(u.Tag, model.AbilitySiegeMode))
			} else {
				f.Orders.Issue(command.Move(u.Tag, point))
			}
		case len(home) > 0:
			if e, ok := model.Closest(home, u.Pos); ok {
				f.Orders.Issue(command.AttackUnit(u.Tag, e.Tag))
			}
		case u.Pos.Dist(point) > c.cfg.RallyTolerance:
			f.Orders.Issue(command.Attack(u.Tag, point))
		}
	}
}

// gather holds the army at the rally, answering threats in the main and
// burrowing widow mines on arrival.
func (c *Coordinator) gather(f *frame.Frame, attackers []model.Unit) {
	rally := f.Rally()
	home := f.HomeThreats()
	for _, u := range attackers {
		if e, ok := model.Closest(home, u.Pos); ok {
			f.Orders.Issue(command.AttackUnit(u.Tag, e.Tag))
			continue
		}
		if u.Pos.Dist(rally) > c.cfg.RallyTolerance {
			f.Orders.Issue(command.Attack(u.Tag, rally))
			continue
		}
		if u.Type == model.WidowMine {
			f.Orders.Issue(command.Use(u.Tag, model.AbilityBurrowDown))
		}
	}
}

// AttackTarget picks the enemy structure closest to the own start, or
// cycles the expansions once the current target is in sight.
func (c *Coordinator) AttackTarget(f *frame.Frame) model.Point {
	gs := f.State
	var structures []model.Unit
	for _, e := range gs.Enemies {
		if e.IsStructure {
			structures = append(structures, e)
		}
	}
	if s, ok := model.Closest(structures, gs.StartLocation); ok {
		return s.Pos
	}
	if c.target.IsZero() {
		c.target = gs.EnemyStart
	}
	if len(gs.Expansions) > 0 && c.sees(gs, c.target) {
		c.target = gs.Expansions[c.expansion%len(gs.Expansions)]
		c.expansion++
	}
	return c.target
}

func (c *Coordinator) sees(gs *model.GameState, p model.Point) bool {
	for _, u := range gs.Units {
		if u.Pos.Dist(p) <= c.cfg.SightRange {
			return true
		}
	}
	return false
}

func (c *Coordinator) push(f *frame.Frame, attackers []model.Unit) {
	target := c.AttackTarget(f)
	var ground, flying []model.Unit
	for _, u := range attackers {
		if u.IsFlying {
			flying = append(flying, u)
		} else {
			ground = append(ground, u)
		}
	}

	near := f.World.InRange(ground, c.cfg.EngageRadius, world.EnemyGround)
	for _, u := range ground {
		enemies := near[u.Tag]
		switch {
		case u.Type == model.SiegeTank && len(enemies) > 1 && supply(enemies) >= c.cfg.SiegeSupply:
			f.Orders.Issue(command.Use(u.Tag, model.AbilitySiegeMode))
		case u.Type == model.SiegeTankSieged:
			if len(enemies) == 0 {
				f.Orders.Issue(command.Use(u.Tag, model.AbilityUnsiege))
			}
		case u.Type == model.WidowMineBurrowed || u.IsBurrowed:
			f.Orders.Issue(command.Use(u.Tag, model.AbilityBurrowUp))
		default:
			f.Orders.Issue(command.Attack(u.Tag, target))
		}
	}

	for _, u := range flying {
		if u.HasCargo() && f.Pather.IsPathable(u.Pos, spatial.Ground) {
			f.Submit(maneuver.New(u).Add(maneuver.Drop{Unit: u, Target: u.Pos}))
			continue
		}
		if escort, ok := model.Closest(ground, target); ok {
			f.Orders.Issue(command.Move(u.Tag, escort.Pos))
		}
	}
}

func supply(units []model.Unit) float64 {
	var total float64
	for _, u := range units {
		total += u.Supply
	}
	return total
}
