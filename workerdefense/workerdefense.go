// Package workerdefense pulls SCVs off the minerals to fight early
// harassment at home and sends them back once it is over.
package workerdefense

import (
	"sort"

	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/maneuver"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/spatial"
	"github.com/nstehr/vimy/vimy-terran/world"
)

// Mining is the resource-assignment side a recruited worker is detached
// from.
type Mining interface {
	RemoveWorker(tag uint64)
}

type Config struct {
	// MaxDefenders caps the required defender count.
	MaxDefenders int
	// MinHealth is the health fraction at or below which a worker neither
	// joins nor stays in the defense.
	MinHealth float64
	// NoiseThreshold is how many weighted enemies must be exceeded before
	// anyone is pulled.
	NoiseThreshold int
	// KiteRadius bounds the enemies a defender fights directly.
	KiteRadius float64
}

func DefaultConfig() Config {
	return Config{
		MaxDefenders:   16,
		MinHealth:      0.24,
		NoiseThreshold: 0,
		KiteRadius:     15,
	}
}

type Coordinator struct {
	cfg     Config
	mining  Mining
	weights map[model.UnitType]int
}

// New builds the coordinator. weights maps enemy types to how many workers
// one of them takes to answer.
func New(cfg Config, mining Mining, weights map[model.UnitType]int) *Coordinator {
	if cfg.MaxDefenders < 1 {
		cfg.MaxDefenders = 1
	}
	return &Coordinator{cfg: cfg, mining: mining, weights: weights}
}

func (c *Coordinator) Name() string { return "workerdefense" }

// Required returns how many defenders the enemies near the bases call for,
// capped at MaxDefenders, and how many of those enemies count.
func (c *Coordinator) Required(near map[uint64][]model.Unit) (required, counted int) {
	for _, enemies := range near {
		for _, e := range enemies {
			w, ok := c.weights[e.Type]
			if !ok {
				continue
			}
			required += w
			counted++
		}
	}
	return min(required, c.cfg.MaxDefenders), counted
}

// Assign recruits healthy gathering SCVs, closest to the enemies first,
// until the shortfall is covered.
func (c *Coordinator) Assign(f *frame.Frame) error {
	near := f.EnemiesNearBases()
	if len(near) == 0 {
		return nil
	}
	required, counted := c.Required(near)
	defenders := f.Roles.UnitsWithRole(roles.Defending, model.SCV)
	shortfall := required - len(defenders)
	if shortfall <= 0 || counted <= c.cfg.NoiseThreshold {
		return nil
	}

	var candidates []model.Unit
	for _, w := range f.Roles.UnitsWithRole(roles.Gathering, model.SCV) {
		if w.HealthFraction() > c.cfg.MinHealth {
			candidates = append(candidates, w)
		}
	}
	var enemies []model.Unit
	for _, es := range near {
		enemies = append(enemies, es...)
	}
	center := model.UnitsCentroid(enemies)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Pos.DistSq(center) < candidates[j].Pos.DistSq(center)
	})

	recruits := candidates[:min(shortfall, len(candidates))]
	for _, w := range recruits {
		c.mining.RemoveWorker(w.Tag)
	}
	if n := f.Roles.BatchAssign(model.Tags(recruits), roles.Defending); n > 0 {
		f.Log.Info("workers pulled to defend", "recruited", n, "required", required, "enemies", counted)
	}
	return nil
}

// Reconcile sends defenders back to gathering once the bases are clear or
// they are too hurt to keep fighting.
func (c *Coordinator) Reconcile(f *frame.Frame) error {
	clearBases := len(f.EnemiesNearBases()) == 0
	var release []uint64
	for _, w := range f.Roles.UnitsWithRole(roles.Defending, model.SCV) {
		if w.HealthFraction() <= c.cfg.MinHealth || clearBases {
			release = append(release, w.Tag)
		}
	}
	if n := f.Roles.BatchAssign(release, roles.Gathering); n > 0 {
		f.Log.Info("defenders released", "released", n, "bases_clear", clearBases)
	}
	return nil
}

// Execute kites defenders against nearby ground enemies, otherwise sends
// them at the main-base threats, otherwise back to mining.
func (c *Coordinator) Execute(f *frame.Frame) error {
	defenders := f.Roles.UnitsWithRole(roles.Defending, model.SCV)
	if len(defenders) == 0 {
		return nil
	}
	near := f.World.InRange(defenders, c.cfg.KiteRadius, world.EnemyGround)
	home := f.HomeThreats()
	for _, w := range defenders {
		if target, ok := model.Closest(near[w.Tag], w.Pos); ok {
			f.Submit(maneuver.New(w).Add(maneuver.StutterBack{
				Unit:   w,
				Target: target,
				Grid:   spatial.Ground,
				Range:  f.Catalog.Range(w.Type),
			}))
			continue
		}
		if len(home) > 0 {
			f.Orders.Issue(command.Attack(w.Tag, model.UnitsCentroid(home)))
			continue
		}
		if m, ok := model.Closest(f.State.Minerals, w.Pos); ok {
			f.Orders.Issue(command.Gather(w.Tag, m.Tag))
		}
	}
	return nil
}
