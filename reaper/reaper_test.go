package reaper

import (
	"context"
	"math"
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
	reg    *roles.Registry
	cat    *catalog.Catalog
	pather spatial.Pather
	buf    *command.Buffer
}

func newHarness() *harness {
	return &harness{reg: roles.NewRegistry(), cat: catalog.Default(), pather: spatial.NewMap(nil)}
}

func (h *harness) tick(gs *model.GameState) *frame.Frame {
	h.reg.Observe(gs.Army())
	h.buf = &command.Buffer{}
	return frame.New(context.Background(), gs, frame.Deps{
		Roles:     h.reg,
		Abilities: abilities.NewTracker(h.cat),
		Catalog:   h.cat,
		Pather:    h.pather,
	}, h.buf)
}

func newCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// run drives one full tick and returns the commands issued.
func run(t *testing.T, h *harness, c *Coordinator, gs *model.GameState) []command.Command {
	t.Helper()
	f := h.tick(gs)
	for _, stage := range []func(*frame.Frame) error{c.Assign, c.Reconcile, c.Execute} {
		if err := stage(f); err != nil {
			t.Fatalf("stage: %v", err)
		}
	}
	return h.buf.Drain()
}

func reaper(health float64, pos model.Point) model.Unit {
	return model.Unit{Tag: 7, Type: model.Reaper, Health: health, HealthMax: 60, Pos: pos}
}

func state(units []model.Unit, enemies ...model.Unit) *model.GameState {
	return &model.GameState{
		Tick:          2000,
		EnemyRace:     model.Protoss,
		StartLocation: model.Point{X: 10, Y: 10},
		OwnNatural:    model.Point{X: 30, Y: 10},
		MapCenter:     model.Point{X: 30, Y: 50},
		EnemyStart:    model.Point{X: 100, Y: 100},
		MainRampTop:   model.Point{X: 15, Y: 15},
		Units: append([]model.Unit{
			{Tag: 1, Type: model.CommandCenter, IsStructure: true, Pos: model.Point{X: 10, Y: 10}},
		}, units...),
		Enemies: enemies,
	}
}

func TestNewRejectsInvertedThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetreatThreshold = cfg.AttackThreshold
	if _, err := New(cfg); err == nil {
		t.Fatal("New accepted retreat threshold equal to attack threshold")
	}
}

func TestHysteresisBand(t *testing.T) {
	steps := []struct {
		health  float64
		healing bool
	}{
		{60, false},
		{27.6, false}, // 0.46: above retreat
		{27, true},    // 0.45: enters on the boundary
		{36, true},
		{53.4, true}, // 0.89: still inside the band
		{30, true},
		{54, false}, // 0.90: leaves on the boundary
		{36, false},
		{27, true},
	}
	h := newHarness()
	c := newCoordinator(t)
	for i, s := range steps {
		gs := state([]model.Unit{reaper(s.health, model.Point{X: 20, Y: 20})})
		run(t, h, c, gs)
		if got := c.Healing(7); got != s.healing {
			t.Fatalf("step %d: health %.1f healing = %v, want %v", i, s.health, got, s.healing)
		}
	}
	if r, _ := h.reg.RoleOf(7); r != roles.Harassing {
		t.Errorf("role = %v, want harassing", r)
	}
}

func TestTargetSelection(t *testing.T) {
	tests := []struct {
		name string
		race model.Race
		home bool
		want model.Point
	}{
		{"enemy main", model.Zerg, false, model.Point{X: 100, Y: 100}},
		{"protoss at home still harasses", model.Protoss, true, model.Point{X: 100, Y: 100}},
		{"zerg at home defends the ramp", model.Zerg, true, model.Point{X: 15, Y: 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			c := newCoordinator(t)
			gs := state([]model.Unit{reaper(60, model.Point{X: 50, Y: 50})})
			gs.EnemyRace = tt.race
			if tt.home {
				gs.Enemies = []model.Unit{{Tag: 900, Type: model.Zergling, Pos: model.Point{X: 12, Y: 10}}}
			}
			run(t, h, c, gs)
			if got, ok := c.Target(7); !ok || got != tt.want {
				t.Errorf("target = %v (%v), want %v", got, ok, tt.want)
			}
		})
	}
}

func TestDeadReaperForgotten(t *testing.T) {
	h := newHarness()
	c := newCoordinator(t)
	run(t, h, c, state([]model.Unit{reaper(10, model.Point{X: 20, Y: 20})}))
	if !c.Healing(7) {
		t.Fatal("low reaper not healing")
	}
	run(t, h, c, state(nil))
	if c.Healing(7) {
		t.Error("dead reaper still in healing set")
	}
	if _, ok := c.Target(7); ok {
		t.Error("dead reaper still has a target")
	}
}

func only(t *testing.T, cmds []command.Command) command.Command {
	t.Helper()
	if len(cmds) != 1 {
		t.Fatalf("commands = %v, want exactly one", cmds)
	}
	return cmds[0]
}

func TestHealingReaperRunsHome(t *testing.T) {
	h := newHarness()
	c := newCoordinator(t)
	gs := state([]model.Unit{reaper(20, model.Point{X: 60, Y: 60})},
		model.Unit{Tag: 900, Type: model.Zealot, Pos: model.Point{X: 62, Y: 60}, IsVisible: true})
	cmd := only(t, run(t, h, c, gs))
	if cmd.Ability != model.AbilityMove || cmd.Point != (model.Point{X: 30, Y: 15}) {
		t.Errorf("command = %v, want move to rally", cmd)
	}

	// Without threats a healing reaper stays put.
	gs.Enemies = nil
	if cmds := run(t, h, c, gs); len(cmds) != 0 {
		t.Errorf("commands = %v, want none", cmds)
	}
}

func TestNoThreatsHeadsForTarget(t *testing.T) {
	h := newHarness()
	c := newCoordinator(t)
	cmd := only(t, run(t, h, c, state([]model.Unit{reaper(60, model.Point{X: 50, Y: 50})})))
	if cmd.Ability != model.AbilityAttack || cmd.Point != (model.Point{X: 100, Y: 100}) {
		t.Errorf("command = %v, want attack-move to enemy main", cmd)
	}
}

func TestUndefendedStructure(t *testing.T) {
	h := newHarness()
	c := newCoordinator(t)
	gs := state([]model.Unit{reaper(60, model.Point{X: 50, Y: 50})},
		model.Unit{Tag: 900, Type: "Pylon", IsStructure: true, Pos: model.Point{X: 55, Y: 50}})
	cmd := only(t, run(t, h, c, gs))
	if cmd.Ability != model.AbilityAttack || cmd.TargetTag != 900 {
		t.Errorf("command = %v, want attack on the pylon", cmd)
	}
}

func TestFlankGrenade(t *testing.T) {
	h := newHarness()
	c := newCoordinator(t)
	r := reaper(60, model.Point{X: 50, Y: 50})
	r.Abilities = []model.Ability{model.AbilityKD8Charge}
	// Facing away from the reaper.
	marine := model.Unit{Tag: 900, Type: model.Marine, Pos: model.Point{X: 54, Y: 50}, Facing: 0, IsVisible: true}
	cmd := only(t, run(t, h, c, state([]model.Unit{r}, marine)))
	if cmd.Ability != model.AbilityKD8Charge || cmd.Point != marine.Pos {
		t.Errorf("command = %v, want grenade on the marine", cmd)
	}
}

func TestPredictiveGrenade(t *testing.T) {
	h := newHarness()
	c := newCoordinator(t)
	r := reaper(60, model.Point{X: 50, Y: 50})
	r.Abilities = []model.Ability{model.AbilityKD8Charge}
	zealot := model.Unit{Tag: 900, Type: model.Zealot, Pos: model.Point{X: 54, Y: 50}, Facing: math.Pi, IsVisible: true}
	cmd := only(t, run(t, h, c, state([]model.Unit{r}, zealot)))
	if cmd.Ability != model.AbilityKD8Charge {
		t.Fatalf("command = %v, want grenade", cmd)
	}
	travel := h.cat.Speed(model.Zealot) * 34 / model.LoopsPerSecond
	want := r.Pos.Towards(model.Point{X: 100, Y: 100}, travel-4)
	if cmd.Point.Dist(want) > 1e-9 {
		t.Errorf("grenade at %v, want %v", cmd.Point, want)
	}
}

func TestGrenadeNeedsVisibleThreat(t *testing.T) {
	h := newHarness()
	c := newCoordinator(t)
	r := reaper(60, model.Point{X: 50, Y: 50})
	r.Abilities = []model.Ability{model.AbilityKD8Charge}
	r.WeaponCooldown = 5
	marine := model.Unit{Tag: 900, Type: model.Marine, Pos: model.Point{X: 54, Y: 50}}
	cmd := only(t, run(t, h, c, state([]model.Unit{r}, marine)))
	if cmd.Ability == model.AbilityKD8Charge {
		t.Errorf("grenade thrown at a hidden unit")
	}
}

func TestEngagement(t *testing.T) {
	at := model.Point{X: 50, Y: 50}
	tests := []struct {
		name     string
		cooldown float64
		enemies  []model.Unit
		check    func(t *testing.T, cmd command.Command)
	}{
		{
			name:     "kites facing melee",
			cooldown: 5,
			enemies:  []model.Unit{{Tag: 900, Type: model.Zealot, Pos: model.Point{X: 53, Y: 50}, Facing: math.Pi}},
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityMove || cmd.Point.X >= at.X {
					t.Errorf("command = %v, want step away", cmd)
				}
			},
		},
		{
			name:    "shoots facing melee when ready",
			enemies: []model.Unit{{Tag: 900, Type: model.Zealot, Pos: model.Point{X: 53, Y: 50}, Facing: math.Pi}},
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityAttack || cmd.TargetTag != 900 {
					t.Errorf("command = %v, want attack zealot", cmd)
				}
			},
		},
		{
			name:     "advances on ranged",
			cooldown: 5,
			enemies:  []model.Unit{{Tag: 900, Type: model.Marine, Pos: model.Point{X: 54, Y: 50}, Facing: math.Pi}},
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityMove || cmd.Point != (model.Point{X: 54, Y: 50}) {
					t.Errorf("command = %v, want move onto the marine", cmd)
				}
			},
		},
		{
			name:     "kites a mixed group",
			cooldown: 5,
			enemies: []model.Unit{
				{Tag: 900, Type: model.Marine, Pos: model.Point{X: 54, Y: 50}},
				{Tag: 901, Type: model.Zealot, Pos: model.Point{X: 54, Y: 52}},
			},
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityMove || cmd.Point.X >= at.X {
					t.Errorf("command = %v, want step away", cmd)
				}
			},
		},
		{
			name:    "hunts a worker out of range",
			enemies: []model.Unit{{Tag: 900, Type: model.Probe, Pos: model.Point{X: 60, Y: 50}}},
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityMove || cmd.Point != (model.Point{X: 60, Y: 50}) {
					t.Errorf("command = %v, want move toward the probe", cmd)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			c := newCoordinator(t)
			r := reaper(60, at)
			r.WeaponCooldown = tt.cooldown
			tt.check(t, only(t, run(t, h, c, state([]model.Unit{r}, tt.enemies...))))
		})
	}
}

func TestAvoidsEffectsFirst(t *testing.T) {
	tank := model.Unit{Tag: 900, Type: model.SiegeTankSieged, Pos: model.Point{X: 36.5, Y: 30.5}, IsVisible: true}
	tests := []struct {
		name    string
		health  float64
		enemies []model.Unit
	}{
		{"healing reaper", 20, nil},
		{"healthy reaper", 60, nil},
		{"healthy reaper under tank fire", 60, []model.Unit{tank}},
		{"healing reaper under tank fire", 20, []model.Unit{tank}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terrain := &model.TerrainGrid{Cols: 64, Rows: 64, Grid: make([]model.TerrainType, 64*64)}
			m := spatial.NewMap(terrain)
			h := newHarness()
			h.pather = m
			c := newCoordinator(t)

			r := reaper(tt.health, model.Point{X: 30.5, Y: 30.5})
			gs := state([]model.Unit{r}, tt.enemies...)
			gs.Effects = []model.Effect{{Kind: "PsiStorm", Positions: []model.Point{{X: 30.5, Y: 30.5}}, Radius: 1.5, Enemy: true}}
			m.Update(gs, h.cat)

			cmd := only(t, run(t, h, c, gs))
			if cmd.Ability != model.AbilityMove || cmd.Point.Dist(r.Pos) <= 2.5 {
				t.Errorf("command = %v, want move out of the storm", cmd)
			}
			if !m.IsSafe(cmd.Point, spatial.ClimberAvoidance) {
				t.Errorf("moved to %v, still inside the storm", cmd.Point)
			}
		})
	}
}
