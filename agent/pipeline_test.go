package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/nstehr/vimy/vimy-terran/catalog"
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/spatial"
)

type recorder struct {
	name  string
	calls *[]string
	fail  string
	// onReconcile runs during Reconcile, after the call is recorded.
	onReconcile func(*frame.Frame)
}

func (r recorder) Name() string { return r.name }

func (r recorder) record(stage string) error {
	*r.calls = append(*r.calls, r.name+"."+stage)
	if r.fail == stage {
		return errors.New("boom")
	}
	return nil
}

func (r recorder) Assign(*frame.Frame) error { return r.record("assign") }

func (r recorder) Reconcile(f *frame.Frame) error {
	err := r.record("reconcile")
	if r.onReconcile != nil {
		r.onReconcile(f)
	}
	return err
}

func (r recorder) Execute(*frame.Frame) error { return r.record("execute") }

func testFrame(reg *roles.Registry, gs *model.GameState) *frame.Frame {
	reg.Observe(gs.Army())
	return frame.New(context.Background(), gs, frame.Deps{
		Roles:   reg,
		Catalog: catalog.Default(),
		Pather:  spatial.NewMap(nil),
	}, &command.Buffer{})
}

func TestPipelineStageOrder(t *testing.T) {
	var calls []string
	p := NewPipeline(nil,
		recorder{name: "a", calls: &calls, fail: "assign"},
		recorder{name: "b", calls: &calls},
	)
	gs := &model.GameState{}
	if err := p.Run(testFrame(roles.NewRegistry(), gs)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"a.assign", "b.assign", "a.reconcile", "b.reconcile", "a.execute", "b.execute"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}
	if names := p.Names(); len(names) != 2 || names[0] != "a" {
		t.Errorf("Names() = %v", names)
	}
}

func TestPipelineChecksBeforeExecute(t *testing.T) {
	var calls []string
	gs := &model.GameState{Units: []model.Unit{{Tag: 5, Type: model.Marine}}}
	reg := roles.NewRegistry()
	f := testFrame(reg, gs)

	p := NewPipeline(nil, recorder{name: "a", calls: &calls})
	err := p.Run(f)
	if !errors.Is(err, roles.ErrInvariant) {
		t.Fatalf("Run() = %v, want ErrInvariant", err)
	}
	var inv *roles.InvariantError
	if !errors.As(err, &inv) || len(inv.Unassigned) != 1 || inv.Unassigned[0] != 5 {
		t.Errorf("invariant error = %+v", inv)
	}
	if calls[len(calls)-1] != "a.execute" {
		t.Errorf("execute should still run after a failed check: %v", calls)
	}

	// A reconciler that assigns the unit satisfies the check.
	calls = nil
	p = NewPipeline(nil, recorder{name: "fix", calls: &calls, onReconcile: func(f *frame.Frame) {
		f.Roles.Assign(5, roles.Attacking)
	}})
	if err := p.Run(testFrame(roles.NewRegistry(), gs)); err != nil {
		t.Errorf("Run() = %v after reconciliation", err)
	}
}
