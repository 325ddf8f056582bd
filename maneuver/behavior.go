// Package maneuver composes per-unit decisions. A Maneuver is an ordered
// list of behaviors built fresh for one unit each tick; the Executor runs
// them in order and stops at the first one that issues a command.
package maneuver

import (
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/spatial"
)

// Kind names a behavior variant.
type Kind int

const (
	KindKeepSafe Kind = iota
	KindPathTo
	KindPickUp
	KindDrop
	KindStutterBack
	KindStutterForward
	KindUseAbility
	KindAttackTarget
)

var kindNames = [...]string{
	KindKeepSafe:       "keep_safe",
	KindPathTo:         "path_to",
	KindPickUp:         "pick_up",
	KindDrop:           "drop",
	KindStutterBack:    "stutter_back",
	KindStutterForward: "stutter_forward",
	KindUseAbility:     "use_ability",
	KindAttackTarget:   "attack_target",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Env is what a behavior may read and where it issues its command.
type Env struct {
	Tick   int
	Pather spatial.Pather
	Orders command.Sink
}

// Behavior is one candidate action. The set is closed: only this package
// defines behaviors. execute checks the precondition and, if it holds,
// issues exactly one command and reports true.
type Behavior interface {
	Kind() Kind
	execute(env Env) bool
}

const (
	defaultSafeRadius  = 10
	defaultLookahead   = 3
	defaultLoadRange   = 4
	defaultStutterStep = 3
)

// KeepSafe moves the unit to the nearest safe point when it stands in
// danger on Grid. It does nothing when the unit is already safe or no safe
// point exists within Radius.
type KeepSafe struct {
	Unit   model.Unit
	Grid   spatial.Grid
	Radius float64
}

func (KeepSafe) Kind() Kind { return KindKeepSafe }

func (b KeepSafe) execute(env Env) bool {
	if env.Pather.IsSafe(b.Unit.Pos, b.Grid) {
		return false
	}
	r := b.Radius
	if r <= 0 {
		r = defaultSafeRadius
	}
	spot, ok := env.Pather.SafeSpot(b.Unit.Pos, r, b.Grid)
	if !ok {
		return false
	}
	env.Orders.Issue(command.Move(b.Unit.Tag, spot))
	return true
}

// PathTo walks the unit along a Grid path toward Target until it is within
// SuccessAt of it.
type PathTo struct {
	Unit      model.Unit
	Grid      spatial.Grid
	Target    model.Point
	SuccessAt float64
	// Lookahead picks how far down the path the next waypoint is.
	Lookahead int
	// AttackMove issues attack-moves instead of plain moves.
	AttackMove bool
}

func (PathTo) Kind() Kind { return KindPathTo }

func (b PathTo) execute(env Env) bool {
	if b.Unit.Pos.Dist(b.Target) < b.SuccessAt {
		return false
	}
	next, ok := nextWaypoint(env.Pather, b.Unit.Pos, b.Target, b.Grid, b.Lookahead)
	if !ok {
		return false
	}
	if b.AttackMove {
		env.Orders.Issue(command.Attack(b.Unit.Tag, next))
	} else {
		env.Orders.Issue(command.Move(b.Unit.Tag, next))
	}
	return true
}

func nextWaypoint(p spatial.Pather, from, to model.Point, g spatial.Grid, lookahead int) (model.Point, bool) {
	path := p.Path(from, to, g)
	if len(path) == 0 {
		return model.Point{}, false
	}
	if lookahead <= 0 {
		lookahead = defaultLookahead
	}
	return path[min(lookahead, len(path))-1], true
}

// PickUp sends a transport to load the closest of Targets that still fits.
// The transport loads when within range and otherwise paths toward the
// cargo. Cargo sizes come from Sizes; unknown types count as one slot.
type PickUp struct {
	Unit    model.Unit
	Grid    spatial.Grid
	Targets []model.Unit
	Sizes   func(model.UnitType) int
}

func (PickUp) Kind() Kind { return KindPickUp }

func (b PickUp) execute(env Env) bool {
	free := b.Unit.CargoMax - b.Unit.CargoUsed
	var fits []model.Unit
	for _, t := range b.Targets {
		size := 1
		if b.Sizes != nil {
			if s := b.Sizes(t.Type); s > 0 {
				size = s
			}
		}
		if b.Unit.CargoMax == 0 || size <= free {
			fits = append(fits, t)
		}
	}
	target, ok := model.Closest(fits, b.Unit.Pos)
	if !ok {
		return false
	}
	if b.Unit.Pos.Dist(target.Pos) <= defaultLoadRange {
		env.Orders.Issue(command.Load(b.Unit.Tag, target.Tag))
		return true
	}
	next, ok := nextWaypoint(env.Pather, b.Unit.Pos, target.Pos, b.Grid, 0)
	if !ok {
		next = target.Pos
	}
	env.Orders.Issue(command.Move(b.Unit.Tag, next))
	return true
}

// Drop unloads all cargo at Target. It needs the transport to carry
// something.
type Drop struct {
	Unit   model.Unit
	Target model.Point
}

func (Drop) Kind() Kind { return KindDrop }

func (b Drop) execute(env Env) bool {
	if !b.Unit.HasCargo() {
		return false
	}
	env.Orders.Issue(command.UnloadAt(b.Unit.Tag, b.Target))
	return true
}

// StutterBack attacks Target when the weapon is ready and in range, and
// otherwise steps away from it toward safety.
type StutterBack struct {
	Unit   model.Unit
	Target model.Unit
	Grid   spatial.Grid
	Range  float64
}

func (StutterBack) Kind() Kind { return KindStutterBack }

func (b StutterBack) execute(env Env) bool {
	if b.Unit.WeaponReady() && inRange(b.Unit, b.Target, b.Range) {
		env.Orders.Issue(command.AttackUnit(b.Unit.Tag, b.Target.Tag))
		return true
	}
	away := b.Unit.Pos.Towards(b.Target.Pos, -defaultStutterStep)
	if !env.Pather.IsSafe(away, b.Grid) {
		if spot, ok := env.Pather.SafeSpot(b.Unit.Pos, defaultSafeRadius, b.Grid); ok {
			away = spot
		}
	}
	env.Orders.Issue(command.Move(b.Unit.Tag, away))
	return true
}

// StutterForward attacks Target when the weapon is ready and in range, and
// otherwise closes the distance.
type StutterForward struct {
	Unit   model.Unit
	Target model.Unit
	Range  float64
}

func (StutterForward) Kind() Kind { return KindStutterForward }

func (b StutterForward) execute(env Env) bool {
	if b.Unit.WeaponReady() && inRange(b.Unit, b.Target, b.Range) {
		env.Orders.Issue(command.AttackUnit(b.Unit.Tag, b.Target.Tag))
		return true
	}
	env.Orders.Issue(command.Move(b.Unit.Tag, b.Target.Pos))
	return true
}

func inRange(u, target model.Unit, weaponRange float64) bool {
	return u.Pos.Dist(target.Pos) <= weaponRange+u.Radius+target.Radius
}

// UseAbility casts Ability when the unit has it available. With a point or
// unit target the cast also needs the target within Range (0 means any
// distance).
type UseAbility struct {
	Unit      model.Unit
	Ability   model.Ability
	Point     *model.Point
	TargetTag uint64
	TargetPos model.Point
	Range     float64
}

func (UseAbility) Kind() Kind { return KindUseAbility }

func (b UseAbility) execute(env Env) bool {
	if !b.Unit.HasAbility(b.Ability) {
		return false
	}
	switch {
	case b.Point != nil:
		if b.Range > 0 && b.Unit.Pos.Dist(*b.Point) > b.Range+b.Unit.Radius {
			return false
		}
		env.Orders.Issue(command.UseAt(b.Unit.Tag, b.Ability, *b.Point))
	case b.TargetTag != 0:
		if b.Range > 0 && b.Unit.Pos.Dist(b.TargetPos) > b.Range+b.Unit.Radius {
			return false
		}
		env.Orders.Issue(command.UseOn(b.Unit.Tag, b.Ability, b.TargetTag))
	default:
		env.Orders.Issue(command.Use(b.Unit.Tag, b.Ability))
	}
	return true
}

// AttackTarget attacks a specific unit when TargetTag is set, and
// otherwise attack-moves to Point.
type AttackTarget struct {
	Unit      model.Unit
	TargetTag uint64
	Point     model.Point
}

func (AttackTarget) Kind() Kind { return KindAttackTarget }

func (b AttackTarget) execute(env Env) bool {
	if b.TargetTag != 0 {
		env.Orders.Issue(command.AttackUnit(b.Unit.Tag, b.TargetTag))
	} else {
		env.Orders.Issue(command.Attack(b.Unit.Tag, b.Point))
	}
	return true
}
