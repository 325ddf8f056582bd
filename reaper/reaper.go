// Package reaper harasses the enemy main with reapers: grenades on flanks,
// kiting against melee, worker hunting, and a health-gated retreat with
// hysteresis so units do not flap between fighting and healing.
package reaper

import (
	"fmt"
	"slices"

	"github.com/nstehr/vimy/vimy-terran/catalog"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/maneuver"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/rules"
	"github.com/nstehr/vimy/vimy-terran/spatial"
	"github.com/nstehr/vimy/vimy-terran/world"
)

type Config struct {
	// A healing reaper rejoins the harass once its health fraction reaches
	// AttackThreshold; a harassing one retreats at RetreatThreshold.
	AttackThreshold  float64
	RetreatThreshold float64
	ThreatRadius     float64
	// GrenadeDelay is the loops between throwing and detonation.
	GrenadeDelay     int
	GrenadePathNodes int
	GrenadeRange     float64
	// Defend retargets reapers to the top of the main ramp while it holds.
	Defend string
}

func DefaultConfig() Config {
	return Config{
		AttackThreshold:  0.9,
		RetreatThreshold: 0.45,
		ThreatRadius:     15,
		GrenadeDelay:     34,
		GrenadePathNodes: 30,
		GrenadeRange:     5,
		Defend:           `EnemyRace == "Zerg" && ThreatAtHome`,
	}
}

// isolationRadius is how far a light unit must be from other enemies to be
// picked off alone.
const isolationRadius = 5

type Coordinator struct {
	cfg    Config
	defend *rules.Condition

	healing map[uint64]struct{}
	targets map[uint64]model.Point
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.RetreatThreshold >= cfg.AttackThreshold {
		return nil, fmt.Errorf("reaper retreat threshold %.2f must be below attack threshold %.2f", cfg.RetreatThreshold, cfg.AttackThreshold)
	}
	defend, err := rules.CompileCondition(cfg.Defend)
	if err != nil {
		return nil, fmt.Errorf("reaper defend condition: %w", err)
	}
	return &Coordinator{
		cfg:     cfg,
		defend:  defend,
		healing: make(map[uint64]struct{}),
		targets: make(map[uint64]model.Point),
	}, nil
}

func (c *Coordinator) Name() string { return "reaper" }

// Healing reports whether tag is in the healing set.
func (c *Coordinator) Healing(tag uint64) bool {
	_, ok := c.healing[tag]
	return ok
}

// Target returns the point tag is harassing.
func (c *Coordinator) Target(tag uint64) (model.Point, bool) {
	p, ok := c.targets[tag]
	return p, ok
}

// Assign puts every reaper on harass duty, updates the healing set and
// picks each reaper's target.
func (c *Coordinator) Assign(f *frame.Frame) error {
	reapers := model.OfType(f.State.Army(), model.Reaper)
	if len(reapers) == 0 {
		return nil
	}
	f.Roles.BatchAssign(model.Tags(reapers), roles.Harassing)

	target := f.State.EnemyStart
	defend, err := c.defend.Eval(f.Env())
	if err != nil {
		return err
	}
	if defend && !f.State.MainRampTop.IsZero() {
		target = f.State.MainRampTop
	}

	clear(c.targets)
	for _, r := range reapers {
		c.updateHealing(r)
		if !target.IsZero() {
			c.targets[r.Tag] = target
		}
	}
	return nil
}

// updateHealing applies the hysteresis band. Both boundaries are
// inclusive.
func (c *Coordinator) updateHealing(r model.Unit) {
	hp := r.HealthFraction()
	if _, ok := c.healing[r.Tag]; ok {
		if hp >= c.cfg.AttackThreshold {
			delete(c.healing, r.Tag)
		}
		return
	}
	if hp <= c.cfg.RetreatThreshold {
		c.healing[r.Tag] = struct{}{}
	}
}

// Reconcile forgets reapers that died.
func (c *Coordinator) Reconcile(f *frame.Frame) error {
	for tag := range c.healing {
		if !f.Roles.Alive(tag) {
			delete(c.healing, tag)
		}
	}
	for tag := range c.targets {
		if !f.Roles.Alive(tag) {
			delete(c.targets, tag)
		}
	}
	return nil
}

func (c *Coordinator) Execute(f *frame.Frame) error {
	reapers := f.Roles.UnitsWithRole(roles.Harassing, model.Reaper)
	if len(reapers) == 0 {
		return nil
	}
	near := f.World.InRange(reapers, c.cfg.ThreatRadius, world.EnemyAny)
	for _, r := range reapers {
		var threats, prey []model.Unit
		for _, e := range near[r.Tag] {
			if f.Catalog.CanAttackGround(e) {
				threats = append(threats, e)
			}
			if !e.IsStructure {
				prey = append(prey, e)
			}
		}
		f.Submit(c.maneuver(f, r, threats, prey, near[r.Tag]))
	}
	return nil
}

func (c *Coordinator) maneuver(f *frame.Frame, r model.Unit, threats, prey, nearby []model.Unit) *maneuver.Maneuver {
	m := maneuver.New(r)
	if inEffect(f.State, r.Pos) {
		m.Add(maneuver.KeepSafe{Unit: r, Grid: spatial.ClimberAvoidance})
	}

	target, hasTarget := c.targets[r.Tag]
	if c.Healing(r.Tag) || !hasTarget {
		m.Add(maneuver.KeepSafe{Unit: r, Grid: spatial.Climber})
		if len(threats) > 0 {
			m.Add(maneuver.PathTo{Unit: r, Grid: spatial.Climber, Target: f.Rally(), SuccessAt: 3})
		}
		return m
	}

	if len(threats) > 0 {
		c.addGrenade(f, m, r, threats, target)
	}

	if len(threats) == 0 {
		m.Add(maneuver.KeepSafe{Unit: r, Grid: spatial.Climber})
		if s, ok := undefendedStructure(nearby, r.Pos); ok {
			m.Add(maneuver.AttackTarget{Unit: r, TargetTag: s.Tag})
		}
		m.Add(maneuver.PathTo{Unit: r, Grid: spatial.Climber, Target: target, SuccessAt: 3, AttackMove: true})
		return m.Add(maneuver.AttackTarget{Unit: r, Point: target})
	}

	c.addEngagement(f, m, r, threats, prey)
	return m.Add(maneuver.AttackTarget{Unit: r, Point: target})
}

// addGrenade throws at the nearest visible threat when it is turned away,
// and otherwise ahead of it along the reaper's path to target.
func (c *Coordinator) addGrenade(f *frame.Frame, m *maneuver.Maneuver, r model.Unit, threats []model.Unit, target model.Point) {
	if !r.HasAbility(model.AbilityKD8Charge) {
		return
	}
	closest, ok := model.Closest(threats, r.Pos)
	if !ok || !closest.IsVisible {
		return
	}

	at := closest.Pos
	if closest.IsFacing(r.Pos) {
		path := f.Pather.Path(r.Pos, target, spatial.Climber)
		if len(path) == 0 {
			return
		}
		path = path[:min(len(path), c.cfg.GrenadePathNodes)]
		at = predict(closest, r, path, f.Catalog.Speed(closest.Type), c.cfg.GrenadeDelay)
	}
	m.Add(maneuver.UseAbility{Unit: r, Ability: model.AbilityKD8Charge, Point: &at, Range: c.cfg.GrenadeRange})
}

// predict estimates where chaser will be after delay loops if it follows
// the reaper down path.
func predict(chaser, r model.Unit, path []model.Point, speed float64, delay int) model.Point {
	remaining := speed * float64(delay) / model.LoopsPerSecond
	route := append([]model.Point{chaser.Pos, r.Pos}, path...)
	for i := 1; i < len(route); i++ {
		leg := route[i-1].Dist(route[i])
		if remaining <= leg {
			return route[i-1].Towards(route[i], remaining)
		}
		remaining -= leg
	}
	return route[len(route)-1]
}

func (c *Coordinator) addEngagement(f *frame.Frame, m *maneuver.Maneuver, r model.Unit, threats, prey []model.Unit) {
	cat := f.Catalog
	weaponRange := cat.Range(r.Type)

	pool := prey
	switch {
	case allMatch(threats, func(u model.Unit) bool { return cat.IsWorker(u.Type) }):
		pool = threats
	case allMatch(threats, func(u model.Unit) bool { return cat.IsLight(u.Type) }):
		pool = threats
	}
	var inRange []model.Unit
	for _, e := range pool {
		if r.Pos.Dist(e.Pos) <= weaponRange+r.Radius+e.Radius {
			inRange = append(inRange, e)
		}
	}

	if victim, ok := model.Closest(inRange, r.Pos); ok {
		melee := allMatch(threats, func(u model.Unit) bool { return cat.IsMelee(u.Type) })
		facing := allMatch(threats, func(u model.Unit) bool { return u.IsFacing(r.Pos) })
		mixed := !melee && slices.ContainsFunc(threats, func(u model.Unit) bool { return cat.IsMelee(u.Type) })
		obstructed := len(f.Pather.Path(r.Pos, victim.Pos, spatial.Climber)) == 0
		if (melee && facing) || mixed || obstructed {
			m.Add(maneuver.StutterBack{Unit: r, Target: victim, Grid: spatial.Climber, Range: weaponRange})
		} else {
			m.Add(maneuver.StutterForward{Unit: r, Target: victim, Range: weaponRange})
		}
		return
	}

	if p, ok := priorityTarget(cat, r, prey); ok {
		if spot, ok := f.Pather.SafeSpot(p.Pos, weaponRange, spatial.Climber); ok {
			m.Add(maneuver.PathTo{Unit: r, Grid: spatial.Climber, Target: spot, SuccessAt: 1})
		}
		m.Add(maneuver.AttackTarget{Unit: r, TargetTag: p.Tag})
	}
}

// priorityTarget picks the closest worker, else the closest light unit
// with no other enemy near it.
func priorityTarget(cat *catalog.Catalog, r model.Unit, prey []model.Unit) (model.Unit, bool) {
	var workers, isolated []model.Unit
	for _, e := range prey {
		switch {
		case cat.IsWorker(e.Type):
			workers = append(workers, e)
		case cat.IsLight(e.Type) && alone(e, prey):
			isolated = append(isolated, e)
		}
	}
	if w, ok := model.Closest(workers, r.Pos); ok {
		return w, true
	}
	return model.Closest(isolated, r.Pos)
}

func alone(u model.Unit, others []model.Unit) bool {
	for _, o := range others {
		if o.Tag != u.Tag && o.Pos.Dist(u.Pos) <= isolationRadius {
			return false
		}
	}
	return true
}

// undefendedStructure returns the closest enemy structure in reach when
// nothing nearby can shoot back.
func undefendedStructure(nearby []model.Unit, p model.Point) (model.Unit, bool) {
	var structures []model.Unit
	for _, u := range nearby {
		if u.IsStructure {
			structures = append(structures, u)
		}
	}
	return model.Closest(structures, p)
}

func inEffect(gs *model.GameState, p model.Point) bool {
	for _, e := range gs.Effects {
		if !e.Enemy {
			continue
		}
		for _, at := range e.Positions {
			if at.Dist(p) <= e.Radius+1 {
				return true
			}
		}
	}
	return false
}

func allMatch(units []model.Unit, pred func(model.Unit) bool) bool {
	if len(units) == 0 {
		return false
	}
	for _, u := range units {
		if !pred(u) {
			return false
		}
	}
	return true
}
