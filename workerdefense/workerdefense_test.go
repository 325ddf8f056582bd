package workerdefense

import (
	"context"
	"slices"
	"testing"

	"github.com/nstehr/vimy/vimy-terran/abilities"
	"github.com/nstehr/vimy/vimy-terran/catalog"
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/spatial"
)

type spyMining struct{ removed []uint64 }

func (s *spyMining) RemoveWorker(tag uint64) { s.removed = append(s.removed, tag) }

type harness struct {
	reg    *roles.Registry
	mining *spyMining
	cat    *catalog.Catalog
	buf    *command.Buffer
}

func newHarness() *harness {
	return &harness{reg: roles.NewRegistry(), mining: &spyMining{}, cat: catalog.Default()}
}

func (h *harness) frame(gs *model.GameState) *frame.Frame {
	h.reg.Observe(gs.Army())
	h.buf = &command.Buffer{}
	return frame.New(context.Background(), gs, frame.Deps{
		Roles:     h.reg,
		Abilities: abilities.NewTracker(h.cat),
		Catalog:   h.cat,
		Pather:    spatial.NewMap(nil),
	}, h.buf)
}

func (h *harness) coordinator(mutate func(*Config)) *Coordinator {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, h.mining, h.cat.DefendersRequired())
}

func (h *harness) tagsWith(role roles.Role) []uint64 {
	tags := model.Tags(h.reg.UnitsWithRole(role))
	slices.Sort(tags)
	return tags
}

func worker(tag uint64, x, health float64) model.Unit {
	return model.Unit{Tag: tag, Type: model.SCV, Pos: model.Point{X: x, Y: 20}, Health: health, HealthMax: 45}
}

func zealot(tag uint64, x float64) model.Unit {
	return model.Unit{Tag: tag, Type: model.Zealot, Pos: model.Point{X: x, Y: 20}, Health: 150, HealthMax: 150}
}

func state(workers []model.Unit, enemies ...model.Unit) *model.GameState {
	return &model.GameState{
		StartLocation: model.Point{X: 20, Y: 20},
		Units: append([]model.Unit{
			{Tag: 1, Type: model.CommandCenter, IsStructure: true, Pos: model.Point{X: 20, Y: 20}},
		}, workers...),
		Enemies:  enemies,
		Minerals: []model.Unit{{Tag: 100, Pos: model.Point{X: 13, Y: 20}}},
	}
}

func gatherers(n int, health float64) []model.Unit {
	var out []model.Unit
	for i := range n {
		out = append(out, worker(uint64(10+i), 20+float64(i), health))
	}
	return out
}

func TestOneZealotPullsFourOfFive(t *testing.T) {
	h := newHarness()
	c := h.coordinator(nil)
	ws := gatherers(5, 45)
	f := h.frame(state(ws, zealot(900, 30)))
	h.reg.BatchAssign(model.Tags(ws), roles.Gathering)

	if err := c.Assign(f); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	defenders := h.tagsWith(roles.Defending)
	if len(defenders) != 4 {
		t.Fatalf("defenders = %v, want 4", defenders)
	}
	if slices.Contains(defenders, 10) {
		t.Error("worker farthest from the zealot was pulled")
	}
	slices.Sort(h.mining.removed)
	if !slices.Equal(h.mining.removed, defenders) {
		t.Errorf("detached from mining = %v, want %v", h.mining.removed, defenders)
	}
	if g := h.tagsWith(roles.Gathering); len(g) != 1 || g[0] != 10 {
		t.Errorf("gatherers = %v, want [10]", g)
	}
}

func TestRecruitment(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		workers   int
		health    float64
		defending int
		enemies   []model.Unit
		want      int
	}{
		{"noise threshold holds", func(c *Config) { c.NoiseThreshold = 2 }, 5, 45, 0, []model.Unit{zealot(900, 30)}, 0},
		{"over threshold", func(c *Config) { c.NoiseThreshold = 2 }, 10, 45, 0, []model.Unit{zealot(900, 30), zealot(901, 31), zealot(902, 32)}, 10},
		{"capped", nil, 20, 45, 0, []model.Unit{zealot(900, 30), zealot(901, 31), zealot(902, 32), zealot(903, 33), zealot(904, 34)}, 16},
		{"committed defenders count", nil, 6, 45, 3, []model.Unit{zealot(900, 30)}, 4},
		{"hurt workers stay home", nil, 5, 10, 0, []model.Unit{zealot(900, 30)}, 0},
		{"unweighted enemy ignored", nil, 5, 45, 0, []model.Unit{{Tag: 900, Type: model.Marine, Pos: model.Point{X: 30, Y: 20}}}, 0},
		{"nothing near", nil, 5, 45, 0, []model.Unit{zealot(900, 80)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			c := h.coordinator(tt.mutate)
			ws := gatherers(tt.workers, tt.health)
			f := h.frame(state(ws, tt.enemies...))
			h.reg.BatchAssign(model.Tags(ws), roles.Gathering)
			h.reg.BatchAssign(model.Tags(ws[:tt.defending]), roles.Defending)

			if err := c.Assign(f); err != nil {
				t.Fatalf("Assign: %v", err)
			}
			if got := len(h.tagsWith(roles.Defending)); got != tt.want {
				t.Errorf("defenders = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRelease(t *testing.T) {
	h := newHarness()
	c := h.coordinator(nil)
	hurt := worker(11, 25, 12)
	hurt.HealthMax = 50
	ws := []model.Unit{worker(10, 25, 45), hurt, worker(12, 25, 11)}
	gs := state(ws, zealot(900, 30))
	f := h.frame(gs)
	h.reg.BatchAssign(model.Tags(ws), roles.Defending)

	if err := c.Reconcile(f); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if d := h.tagsWith(roles.Defending); !slices.Equal(d, []uint64{10, 12}) {
		t.Errorf("defenders = %v, want [10 12] (0.24 released)", d)
	}

	gs.Enemies = nil
	f = h.frame(gs)
	if err := c.Reconcile(f); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if d := h.tagsWith(roles.Defending); len(d) != 0 {
		t.Errorf("defenders = %v after the threat left, want none", d)
	}
	if g := h.tagsWith(roles.Gathering); len(g) != 3 {
		t.Errorf("gatherers = %v, want all three", g)
	}
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name    string
		worker  model.Unit
		enemies []model.Unit
		check   func(t *testing.T, cmd command.Command)
	}{
		{
			name:    "fights a nearby enemy",
			worker:  model.Unit{Tag: 10, Type: model.SCV, Pos: model.Point{X: 30, Y: 20}, Radius: 0.375, Health: 45, HealthMax: 45},
			enemies: []model.Unit{{Tag: 900, Type: model.Zealot, Pos: model.Point{X: 30.5, Y: 20}, Radius: 0.5}},
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityAttack || cmd.TargetTag != 900 {
					t.Errorf("command = %v, want attack on the zealot", cmd)
				}
			},
		},
		{
			name:    "moves on main threats",
			worker:  model.Unit{Tag: 10, Type: model.SCV, Pos: model.Point{X: 20, Y: 60}, Health: 45, HealthMax: 45},
			enemies: []model.Unit{zealot(900, 35)},
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityAttack || cmd.Point != (model.Point{X: 35, Y: 20}) {
					t.Errorf("command = %v, want attack-move to the threat", cmd)
				}
			},
		},
		{
			name:   "goes back to mining",
			worker: worker(10, 30, 45),
			check: func(t *testing.T, cmd command.Command) {
				if cmd.Ability != model.AbilityGather || cmd.TargetTag != 100 {
					t.Errorf("command = %v, want gather", cmd)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			c := h.coordinator(nil)
			f := h.frame(state([]model.Unit{tt.worker}, tt.enemies...))
			h.reg.Assign(tt.worker.Tag, roles.Defending)
			if err := c.Execute(f); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			cmds := h.buf.Drain()
			if len(cmds) != 1 {
				t.Fatalf("commands = %v, want one", cmds)
			}
			tt.check(t, cmds[0])
		})
	}
}
