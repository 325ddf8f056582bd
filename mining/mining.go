// Package mining pairs gathering workers with mineral patches near own
// townhalls and keeps idle gatherers busy.
package mining

import (
	"maps"
	"slices"

	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/roles"
)

const (
	// WorkersPerPatch is the saturation target for one mineral field.
	WorkersPerPatch = 2
	// PatchRadius bounds which mineral fields belong to a townhall.
	PatchRadius = 10
)

type Coordinator struct {
	patchOf map[uint64]uint64   // worker -> mineral field
	onPatch map[uint64][]uint64 // mineral field -> workers
}

func New() *Coordinator {
	return &Coordinator{
		patchOf: make(map[uint64]uint64),
		onPatch: make(map[uint64][]uint64),
	}
}

func (c *Coordinator) Name() string { return "mining" }

// PatchOf returns the mineral field a worker is paired with.
func (c *Coordinator) PatchOf(worker uint64) (uint64, bool) {
	p, ok := c.patchOf[worker]
	return p, ok
}

// RemoveWorker detaches a worker from its mineral field. Unknown workers
// are ignored.
func (c *Coordinator) RemoveWorker(worker uint64) {
	patch, ok := c.patchOf[worker]
	if !ok {
		return
	}
	delete(c.patchOf, worker)
	rest := slices.DeleteFunc(c.onPatch[patch], func(t uint64) bool { return t == worker })
	if len(rest) == 0 {
		delete(c.onPatch, patch)
		return
	}
	c.onPatch[patch] = rest
}

// patches returns the mineral fields within PatchRadius of a finished own
// townhall. A missing build progress counts as finished.
func patches(gs *model.GameState) []model.Unit {
	var out []model.Unit
	for _, m := range gs.Minerals {
		for _, th := range gs.Townhalls() {
			if !underConstruction(th) && th.Pos.Dist(m.Pos) <= PatchRadius {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func underConstruction(u model.Unit) bool {
	return u.BuildProgress > 0 && u.BuildProgress < 1
}

// Assign pairs unpaired gathering SCVs with the closest undersaturated
// mineral field.
func (c *Coordinator) Assign(f *frame.Frame) error {
	fields := patches(f.State)
	if len(fields) == 0 {
		return nil
	}
	for _, w := range f.Roles.UnitsWithRole(roles.Gathering, model.SCV) {
		if _, ok := c.patchOf[w.Tag]; ok {
			continue
		}
		var open []model.Unit
		for _, m := range fields {
			if len(c.onPatch[m.Tag]) < WorkersPerPatch {
				open = append(open, m)
			}
		}
		m, ok := model.Closest(open, w.Pos)
		if !ok {
			break
		}
		c.patchOf[w.Tag] = m.Tag
		c.onPatch[m.Tag] = append(c.onPatch[m.Tag], w.Tag)
	}
	return nil
}

// Reconcile drops pairings for dead workers, workers that left the
// Gathering role and mined-out fields.
func (c *Coordinator) Reconcile(f *frame.Frame) error {
	minerals := make(map[uint64]struct{}, len(f.State.Minerals))
	for _, m := range f.State.Minerals {
		minerals[m.Tag] = struct{}{}
	}
	for _, w := range slices.Sorted(maps.Keys(c.patchOf)) {
		role, ok := f.Roles.RoleOf(w)
		_, field := minerals[c.patchOf[w]]
		if !ok || role != roles.Gathering || !field {
			c.RemoveWorker(w)
		}
	}
	return nil
}

// Execute sends idle gatherers back to work: to their own field when
// paired, otherwise to the closest field on the map.
func (c *Coordinator) Execute(f *frame.Frame) error {
	for _, w := range f.Roles.UnitsWithRole(roles.Gathering, model.SCV, model.MULE) {
		if !w.Idle {
			continue
		}
		if patch, ok := c.patchOf[w.Tag]; ok {
			f.Orders.Issue(command.Gather(w.Tag, patch))
			continue
		}
		if m, ok := model.Closest(f.State.Minerals, w.Pos); ok {
			f.Orders.Issue(command.Gather(w.Tag, m.Tag))
		}
	}
	return nil
}
