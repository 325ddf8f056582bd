package army

import (
	"context"
	"testing"

	"github.com/nstehr/vimy/vimy-terran/abilities"
	"github.com/nstehr/vimy/vimy-terran/catalog"
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/spatial"
)

type harness struct {
	reg *roles.Registry
	buf *command.Buffer
}

func newHarness() *harness { return &harness{reg: roles.NewRegistry()} }

// frame observes gs and gives every unit the role in assign, Attacking
// by default.
func (h *harness) frame(gs *model.GameState, assign map[uint64]roles.Role) *frame.Frame {
	h.reg.Observe(gs.Army())
	for _, u := range gs.Army() {
		role, ok := assign[u.Tag]
		if !ok {
			role = roles.Attacking
		}
		h.reg.Assign(u.Tag, role)
	}
	h.buf = &command.Buffer{}
	cat := catalog.Default()
	return frame.New(context.Background(), gs, frame.Deps{
		Roles:     h.reg,
		Abilities: abilities.NewTracker(cat),
		Catalog:   cat,
		Pather:    spatial.NewMap(nil),
	}, h.buf)
}

func (h *harness) run(t *testing.T, c *Coordinator, f *frame.Frame) map[uint64]command.Command {
	t.Helper()
	if err := c.Reconcile(f); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := c.Execute(f); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := make(map[uint64]command.Command)
	for _, cmd := range h.buf.Drain() {
		if _, dup := out[cmd.Unit]; dup {
			t.Fatalf("unit %d commanded twice", cmd.Unit)
		}
		out[cmd.Unit] = cmd
	}
	return out
}

func state(units ...model.Unit) *model.GameState {
	return &model.GameState{
		StartLocation: model.Point{X: 20, Y: 20},
		OwnNatural:    model.Point{X: 40, Y: 20},
		MapCenter:     model.Point{X: 40, Y: 80},
		MainRampTop:   model.Point{X: 30, Y: 20},
		EnemyStart:    model.Point{X: 120, Y: 120},
		Expansions:    []model.Point{{X: 100, Y: 120}, {X: 120, Y: 100}},
		Units: append([]model.Unit{
			{Tag: 1, Type: model.CommandCenter, IsStructure: true, Pos: model.Point{X: 20, Y: 20}},
		}, units...),
	}
}

func unit(tag uint64, t model.UnitType, x, y float64) model.Unit {
	return model.Unit{Tag: tag, Type: t, Pos: model.Point{X: x, Y: y}, Health: 100, HealthMax: 100}
}

func TestGatherAtRally(t *testing.T) {
	h := newHarness()
	c := New(DefaultConfig())
	gs := state(
		unit(10, model.Marine, 80, 80),
		unit(11, model.WidowMine, 40, 26),
		unit(12, model.Marine, 40, 25),
	)
	cmds := h.run(t, c, h.frame(gs, nil))

	rally := model.Point{X: 40, Y: 25}
	if cmd := cmds[10]; cmd.Ability != model.AbilityAttack || cmd.Point != rally {
		t.Errorf("far marine = %v, want attack-move to rally", cmd)
	}
	if cmd := cmds[11]; cmd.Ability != model.AbilityBurrowDown {
		t.Errorf("mine at rally = %v, want burrow", cmd)
	}
	if _, ok := cmds[12]; ok {
		t.Errorf("marine at rally commanded: %v", cmds[12])
	}
	if c.Pushing() {
		t.Error("pushing without a tank and medivac")
	}

	gs.Enemies = []model.Unit{{Tag: 900, Type: model.Zergling, Pos: model.Point{X: 22, Y: 20}}}
	cmds = h.run(t, c, h.frame(gs, nil))
	for _, tag := range []uint64{10, 11, 12} {
		if cmd := cmds[tag]; cmd.Ability != model.AbilityAttack || cmd.TargetTag != 900 {
			t.Errorf("unit %d = %v, want attack on the zergling in the main", tag, cmd)
		}
	}
}

func TestPush(t *testing.T) {
	h := newHarness()
	c := New(DefaultConfig())
	tank := unit(10, model.SiegeTank, 90, 90)
	sieged := unit(11, model.SiegeTankSieged, 60, 60)
	marine := unit(12, model.Marine, 91, 91)
	loaded := unit(13, model.Medivac, 70, 70)
	loaded.IsFlying, loaded.CargoUsed, loaded.Passengers = true, 1, []uint64{99}
	empty := unit(14, model.Medivac, 50, 50)
	empty.IsFlying = true
	gs := state(tank, sieged, marine, loaded, empty)
	gs.Enemies = []model.Unit{
		{Tag: 900, Type: model.Zealot, Pos: model.Point{X: 95, Y: 90}, Supply: 2},
		{Tag: 901, Type: model.Zealot, Pos: model.Point{X: 96, Y: 90}, Supply: 2},
		{Tag: 950, Type: "Pylon", IsStructure: true, Pos: model.Point{X: 110, Y: 110}},
		{Tag: 951, Type: "Nexus", IsStructure: true, Pos: model.Point{X: 120, Y: 120}},
	}

	cmds := h.run(t, c, h.frame(gs, nil))
	if !c.Pushing() {
		t.Fatal("push did not start")
	}
	if cmd := cmds[10]; cmd.Ability != model.AbilitySiegeMode {
		t.Errorf("tank = %v, want siege", cmd)
	}
	if cmd := cmds[11]; cmd.Ability != model.AbilityUnsiege {
		t.Errorf("sieged tank alone = %v, want unsiege", cmd)
	}
	if cmd := cmds[12]; cmd.Ability != model.AbilityAttack || cmd.Point != (model.Point{X: 110, Y: 110}) {
		t.Errorf("marine = %v, want attack-move on the closest structure", cmd)
	}
	if cmd := cmds[13]; cmd.Ability != model.AbilityUnloadAllAt || cmd.Point != loaded.Pos {
		t.Errorf("loaded medivac = %v, want unload in place", cmd)
	}
	if cmd := cmds[14]; cmd.Ability != model.AbilityMove || cmd.Point != marine.Pos {
		t.Errorf("empty medivac = %v, want follow the lead ground unit", cmd)
	}

	// The push never reverts, even when the tank dies.
	cmds = h.run(t, c, h.frame(state(marine), nil))
	if !c.Pushing() || cmds[12].Ability != model.AbilityAttack {
		t.Errorf("push reverted: %v", cmds)
	}
}

func TestAttackTargetCyclesExpansions(t *testing.T) {
	h := newHarness()
	c := New(DefaultConfig())

	gs := state(unit(10, model.Marine, 50, 50))
	if got := c.AttackTarget(h.frame(gs, nil)); got != gs.EnemyStart {
		t.Fatalf("target = %v, want enemy start", got)
	}
	gs = state(unit(10, model.Marine, 118, 118))
	if got := c.AttackTarget(h.frame(gs, nil)); got != gs.Expansions[0] {
		t.Fatalf("target = %v, want first expansion once the start is seen clear", got)
	}
	gs = state(unit(10, model.Marine, 100, 118))
	if got := c.AttackTarget(h.frame(gs, nil)); got != gs.Expansions[1] {
		t.Fatalf("target = %v, want second expansion", got)
	}
}

func TestDefenders(t *testing.T) {
	h := newHarness()
	c := New(DefaultConfig())
	point := model.Point{X: 37, Y: 20}
	gs := state(
		unit(10, model.SiegeTank, 60, 20),
		unit(11, model.SiegeTank, 37.5, 20),
		unit(12, model.Marine, 80, 20),
		unit(13, model.SCV, 80, 20),
	)
	defending := map[uint64]roles.Role{10: roles.Defending, 11: roles.Defending, 12: roles.Defending, 13: roles.Defending}
	cmds := h.run(t, c, h.frame(gs, defending))

	if got := c.DefensePoint(gs); got != point {
		t.Fatalf("DefensePoint = %v, want %v", got, point)
	}
	if cmd := cmds[10]; cmd.Ability != model.AbilityMove || cmd.Point != point {
		t.Errorf("far tank = %v, want move to the defense point", cmd)
	}
	if cmd := cmds[11]; cmd.Ability != model.AbilitySiegeMode {
		t.Errorf("tank on point = %v, want siege", cmd)
	}
	if cmd := cmds[12]; cmd.Ability != model.AbilityAttack || cmd.Point != point {
		t.Errorf("marine = %v, want attack-move to the defense point", cmd)
	}
	if cmd, ok := cmds[13]; ok {
		t.Errorf("SCV commanded by the army: %v", cmd)
	}
}
