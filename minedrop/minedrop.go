// Package minedrop ferries widow mines into the enemy main with a medivac,
// drops them when their weapons are about to come off cooldown and picks
// them back up once they have fired.
package minedrop

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/maneuver"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/rules"
	"github.com/nstehr/vimy/vimy-terran/spatial"
)

type Config struct {
	// Trigger must hold for a drop to form.
	Trigger string
	// MinCargo is how many mines a drop needs.
	MinCargo int
	// ReadyLookahead is subtracted from each carried mine's ready tick to
	// cover travel and unload time.
	ReadyLookahead int
	// TargetOffset moves the drop target away from the map center, behind
	// the enemy mineral line.
	TargetOffset float64
	// HoldingOffset moves the holding point away from the enemy natural.
	HoldingOffset      float64
	DropSuccess        float64
	HoldSuccess        float64
	MinTransportHealth float64
	// Fallback is the role released units receive.
	Fallback      roles.Role
	MaxFormations int
}

func DefaultConfig() Config {
	return Config{
		Trigger:            `Opening == "OneOneOne" && !ThreatAtHome`,
		MinCargo:           2,
		ReadyLookahead:     90,
		TargetOffset:       4,
		HoldingOffset:      15,
		DropSuccess:        1.5,
		HoldSuccess:        3.0,
		MinTransportHealth: 0.25,
		Fallback:           roles.Defending,
		MaxFormations:      1,
	}
}

type Coordinator struct {
	cfg     Config
	trigger *rules.Condition

	arena      map[Handle]Tracker
	next       Handle
	formations int
	// Transports released this tick that still carry cargo.
	ejecting []uint64
}

func New(cfg Config) (*Coordinator, error) {
	trigger, err := rules.CompileCondition(cfg.Trigger)
	if err != nil {
		return nil, fmt.Errorf("minedrop trigger: %w", err)
	}
	if cfg.MinCargo < 1 {
		cfg.MinCargo = 1
	}
	return &Coordinator{
		cfg:     cfg,
		trigger: trigger,
		arena:   make(map[Handle]Tracker),
	}, nil
}

func (c *Coordinator) Name() string { return "minedrop" }

// Trackers returns the live trackers ordered by handle.
func (c *Coordinator) Trackers() []Tracker {
	out := make([]Tracker, 0, len(c.arena))
	for _, h := range c.handles() {
		out = append(out, c.arena[h])
	}
	return out
}

func (c *Coordinator) handles() []Handle {
	return slices.Sorted(maps.Keys(c.arena))
}

// DropTarget is the point behind the enemy mineral line a drop aims for.
func (c *Coordinator) DropTarget(gs *model.GameState) model.Point {
	return gs.EnemyStart.Towards(gs.MapCenter, -c.cfg.TargetOffset)
}

// Assign forms a drop when the trigger holds, no enemy ground unit
// threatens the main and an Attacking medivac plus enough Attacking widow
// mines exist.
func (c *Coordinator) Assign(f *frame.Frame) error {
	if c.cfg.MaxFormations > 0 && c.formations >= c.cfg.MaxFormations {
		return nil
	}
	if f.ThreatAtHome() {
		return nil
	}
	ok, err := c.trigger.Eval(f.Env())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	transports := f.Roles.UnitsWithRole(roles.Attacking, model.Medivac)
	mines := f.Roles.UnitsWithRole(roles.Attacking, model.WidowMine, model.WidowMineBurrowed)
	if len(transports) == 0 || len(mines) < c.cfg.MinCargo {
		return nil
	}

	transport := transports[0]
	cargo := model.Tags(mines)
	f.Roles.Assign(transport.Tag, roles.DropShip)
	f.Roles.BatchAssign(cargo, roles.DropUnitsToLoad)

	t := newTracker(c.next, transport.Tag, cargo, c.DropTarget(f.State))
	c.arena[t.Handle] = t
	c.next++
	c.formations++
	f.Log.Info("mine drop formed", "handle", t.Handle, "transport", transport.Tag, "cargo", len(t.Cargo), "target", t.Target)
	return nil
}

// Reconcile dissolves trackers whose transport died, emptied out or is too
// damaged to continue. Every tracker is checked each tick.
func (c *Coordinator) Reconcile(f *frame.Frame) error {
	c.ejecting = c.ejecting[:0]
	for _, h := range c.handles() {
		transport, ok := f.State.OwnUnit(c.arena[h].Transport)
		t, outcome := reconcile(c.arena[h], transport, ok, f.Roles.Alive, c.cfg.MinTransportHealth)

		switch outcome {
		case Keep:
			c.arena[h] = t
			continue
		case TransportLost:
			f.Roles.BatchAssign(t.Cargo, c.cfg.Fallback)
		case CargoExhausted:
			f.Roles.Assign(t.Transport, c.cfg.Fallback)
		case ForcedEject:
			f.Roles.Assign(t.Transport, c.cfg.Fallback)
			f.Roles.BatchAssign(t.Cargo, roles.Attacking)
			if transport.HasCargo() {
				c.ejecting = append(c.ejecting, t.Transport)
			}
		}
		delete(c.arena, h)
		f.Log.Info("mine drop dissolved", "handle", h, "transport", t.Transport, "outcome", outcome, "cargo", len(t.Cargo))
	}
	return nil
}

func (c *Coordinator) Execute(f *frame.Frame) error {
	for _, tag := range c.ejecting {
		if u, ok := f.State.OwnUnit(tag); ok {
			f.Orders.Issue(command.UnloadAt(u.Tag, u.Pos))
		}
	}
	c.ejecting = c.ejecting[:0]

	if len(c.arena) == 0 {
		return nil
	}
	members := f.Roles.RolesGrouped(roles.DropUnitsToLoad, roles.DropUnitsAttacking)
	for _, h := range c.handles() {
		c.execute(f, c.arena[h], members)
	}
	return nil
}

func isMine(u model.Unit) bool {
	return u.Type == model.WidowMine || u.Type == model.WidowMineBurrowed
}

func burrowed(u model.Unit) bool {
	return u.IsBurrowed || u.Type == model.WidowMineBurrowed
}

func (c *Coordinator) execute(f *frame.Frame, t Tracker, members map[roles.Role][]model.Unit) {
	var toLoad, dug, dropped []model.Unit
	for _, u := range members[roles.DropUnitsToLoad] {
		switch {
		case !t.Has(u.Tag) || !isMine(u):
		case burrowed(u):
			dug = append(dug, u)
		default:
			toLoad = append(toLoad, u)
		}
	}
	for _, u := range members[roles.DropUnitsAttacking] {
		if t.Has(u.Tag) && isMine(u) {
			dropped = append(dropped, u)
		}
	}

	// Cargo recruited while burrowed has to come up before it can board.
	for _, mine := range dug {
		f.Orders.Issue(command.Use(mine.Tag, model.AbilityBurrowUp))
	}

	transport, ok := f.State.OwnUnit(t.Transport)
	if ok {
		c.steerTransport(f, t, transport, toLoad)
	}
	for _, mine := range toLoad {
		if ok {
			f.Orders.Issue(command.Move(mine.Tag, transport.Pos))
			continue
		}
		f.Submit(maneuver.New(mine).Add(maneuver.KeepSafe{Unit: mine, Grid: spatial.Ground}))
	}
	for _, mine := range dropped {
		c.cycle(f, mine)
	}
}

func (c *Coordinator) steerTransport(f *frame.Frame, t Tracker, transport model.Unit, toLoad []model.Unit) {
	if transport.IsMoving && transport.HasAbility(model.AbilityAfterburners) {
		f.Orders.Issue(command.Use(transport.Tag, model.AbilityAfterburners))
		return
	}

	m := maneuver.New(transport).Add(maneuver.PickUp{
		Unit:    transport,
		Grid:    spatial.Air,
		Targets: toLoad,
		Sizes:   f.Catalog.CargoSize,
	})
	ready := func(tag uint64) (int, bool) { return f.Abilities.ReadyAt(tag, model.AbilityMineAttack) }
	if canDrop(transport, f.Tick(), c.cfg.ReadyLookahead, ready) {
		m.Add(maneuver.PathTo{Unit: transport, Grid: spatial.Air, Target: t.Target, SuccessAt: c.cfg.DropSuccess}).
			Add(maneuver.Drop{Unit: transport, Target: transport.Pos})
	} else {
		holding := t.Target.Towards(f.State.EnemyNatural, -c.cfg.HoldingOffset)
		m.Add(maneuver.KeepSafe{Unit: transport, Grid: spatial.Air}).
			Add(maneuver.PathTo{Unit: transport, Grid: spatial.Air, Target: holding, SuccessAt: c.cfg.HoldSuccess})
	}

	res := f.Submit(m)
	if res.Fired && res.Kind == maneuver.KindDrop {
		n := f.Roles.BatchAssign(transport.Passengers, roles.DropUnitsAttacking)
		f.Log.Info("mines dropped", "handle", t.Handle, "transport", transport.Tag, "mines", n, "tick", f.Tick())
	}
}

// cycle burrows a dropped mine while its attack is ready and digs it back
// up for re-pickup once it has fired.
func (c *Coordinator) cycle(f *frame.Frame, mine model.Unit) {
	now := f.Tick()
	down := burrowed(mine)

	available := true
	if at, ok := f.Abilities.ReadyAt(mine.Tag, model.AbilityMineAttack); ok {
		available = now >= at
	}
	if down && !mine.HasAbility(model.AbilityMineAttack) {
		available = false
	}

	switch {
	case available && !down:
		f.Orders.Issue(command.Use(mine.Tag, model.AbilityBurrowDown))
	case !available && down:
		f.Orders.Issue(command.Use(mine.Tag, model.AbilityBurrowUp))
		f.Roles.Assign(mine.Tag, roles.DropUnitsToLoad)
		f.Abilities.Started(mine.Tag, model.AbilityMineAttack, now)
		f.Log.Debug("mine unburrowed for pickup", slog.Uint64("mine", mine.Tag), slog.Int("tick", now))
	}
}
