// Package scout sends one SCV to check for proxies and early expansions
// against Terran and Protoss opponents.
package scout

import (
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/world"
)

type Config struct {
	// StartSeconds is the game time after which the scout leaves.
	StartSeconds float64
	// GraceSeconds after dispatch during which the scout is never released.
	GraceSeconds  float64
	ReleaseHealth float64
	// MaxDistance from the own natural before the scout is recalled.
	MaxDistance  float64
	WorkerRadius float64
}

func DefaultConfig() Config {
	return Config{
		StartSeconds:  44,
		GraceSeconds:  2,
		ReleaseHealth: 0.2,
		MaxDistance:   90,
		WorkerRadius:  15,
	}
}

const (
	behindMinerals   = 4
	naturalRadius    = 10
	naturalOutskirts = 15
	terranChecks     = 4
)

type Coordinator struct {
	cfg Config

	dispatched   bool
	dispatchedAt float64
	queued       bool
	points       []model.Point
}

func New(cfg Config) *Coordinator { return &Coordinator{cfg: cfg} }

func (c *Coordinator) Name() string { return "scout" }

// Points returns the positions the scout will check, in order.
func (c *Coordinator) Points() []model.Point { return c.points }

// Assign dispatches the gathering SCV closest to the natural once the
// start time passes. It happens at most once per game.
func (c *Coordinator) Assign(f *frame.Frame) error {
	gs := f.State
	if c.dispatched || gs.Seconds() <= c.cfg.StartSeconds {
		return nil
	}
	if gs.EnemyRace != model.Terran && gs.EnemyRace != model.Protoss {
		return nil
	}
	var healthy []model.Unit
	for _, w := range f.Roles.UnitsWithRole(roles.Gathering, model.SCV) {
		if w.HealthFraction() > c.cfg.ReleaseHealth {
			healthy = append(healthy, w)
		}
	}
	w, ok := model.Closest(healthy, gs.OwnNatural)
	if !ok {
		return nil
	}
	f.Roles.Assign(w.Tag, roles.Scouting)
	c.dispatched = true
	c.dispatchedAt = gs.Seconds()
	c.points = checkpoints(gs)
	f.Log.Info("scout dispatched", "scv", w.Tag, "points", len(c.points), "enemy_race", gs.EnemyRace)
	return nil
}

// checkpoints lists the positions to check against the opponent's race:
// cannon-rush spots around the natural against Protoss, the first
// expansions against Terran.
func checkpoints(gs *model.GameState) []model.Point {
	nat := gs.OwnNatural
	switch gs.EnemyRace {
	case model.Protoss:
		var out []model.Point
		var minerals []model.Unit
		for _, m := range gs.Minerals {
			if m.Pos.Dist(nat) < naturalRadius {
				minerals = append(minerals, m)
			}
		}
		if len(minerals) > 0 {
			out = append(out, model.UnitsCentroid(minerals).Towards(nat, -behindMinerals))
		}
		var geyser model.Unit
		found := false
		for _, g := range gs.Geysers {
			if g.Pos.Dist(nat) >= naturalRadius {
				continue
			}
			if !found || g.Pos.Dist(gs.MainRampBottom) > geyser.Pos.Dist(gs.MainRampBottom) {
				geyser, found = g, true
			}
		}
		if found {
			out = append(out, geyser.Pos.Towards(nat, -behindMinerals))
		}
		return append(out, nat.Towards(gs.MapCenter, naturalOutskirts))
	case model.Terran:
		return append([]model.Point(nil), gs.Expansions[:min(terranChecks, len(gs.Expansions))]...)
	}
	return nil
}

func (c *Coordinator) enemyWorkers(f *frame.Frame, scouts []model.Unit) map[uint64][]model.Unit {
	out := make(map[uint64][]model.Unit, len(scouts))
	for tag, near := range f.World.InRange(scouts, c.cfg.WorkerRadius, world.EnemyGround) {
		for _, e := range near {
			if f.Catalog.IsWorker(e.Type) {
				out[tag] = append(out[tag], e)
			}
		}
	}
	return out
}

// Reconcile sends the scout home when it is hurt, out of orders or too far
// away, unless it is busy with enemy workers.
func (c *Coordinator) Reconcile(f *frame.Frame) error {
	if !c.dispatched || f.State.Seconds() < c.dispatchedAt+c.cfg.GraceSeconds {
		return nil
	}
	scouts := f.Roles.UnitsWithRole(roles.Scouting, model.SCV)
	workers := c.enemyWorkers(f, scouts)
	for _, s := range scouts {
		if len(workers[s.Tag]) > 0 {
			continue
		}
		if s.HealthFraction() < c.cfg.ReleaseHealth || s.OrderCount == 0 || s.Pos.Dist(f.State.OwnNatural) > c.cfg.MaxDistance {
			f.Roles.Assign(s.Tag, roles.Gathering)
			f.Log.Info("scout released", "scv", s.Tag)
		}
	}
	return nil
}

// Execute chases enemy workers near the scout and otherwise queues the
// scouting route once.
func (c *Coordinator) Execute(f *frame.Frame) error {
	scouts := f.Roles.UnitsWithRole(roles.Scouting, model.SCV)
	workers := c.enemyWorkers(f, scouts)
	for _, s := range scouts {
		if w, ok := model.Closest(workers[s.Tag], s.Pos); ok {
			f.Orders.Issue(command.AttackUnit(s.Tag, w.Tag))
			continue
		}
		if c.queued {
			continue
		}
		f.Orders.Issue(command.Move(s.Tag, f.State.OwnNatural))
		for _, p := range c.points {
			f.Orders.Issue(command.Move(s.Tag, p).Queued())
		}
		c.queued = true
	}
	return nil
}
