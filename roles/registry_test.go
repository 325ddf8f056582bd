package roles

import (
	"errors"
	"testing"

	"github.com/nstehr/vimy/vimy-terran/model"
)

func units(specs ...model.Unit) []model.Unit { return specs }

func TestAssignOverwritesAndIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Observe(units(model.Unit{Tag: 1, Type: model.Marine}))

	if !r.Assign(1, Attacking) {
		t.Fatal("Assign on live unit returned false")
	}
	r.Assign(1, Attacking)
	r.Assign(1, Defending)

	role, ok := r.RoleOf(1)
	if !ok || role != Defending {
		t.Errorf("RoleOf(1) = %v, %v; want defending", role, ok)
	}

	changes := r.DrainChanges()
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes (repeat assign is silent), got %d: %+v", len(changes), changes)
	}
	if changes[1].From != Attacking || changes[1].To != Defending {
		t.Errorf("second change = %+v", changes[1])
	}
	if len(r.DrainChanges()) != 0 {
		t.Error("DrainChanges should clear the log")
	}
}

func TestAssignUnknownUnitIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Observe(units(model.Unit{Tag: 1}))

	if r.Assign(99, Attacking) {
		t.Error("Assign on unknown unit should report false")
	}
	if _, ok := r.RoleOf(99); ok {
		t.Error("unknown unit gained a role")
	}
	if r.Assign(1, None) {
		t.Error("assigning None should be rejected")
	}
}

func TestUnitsWithRoleFiltersLivenessAndType(t *testing.T) {
	r := NewRegistry()
	r.Observe(units(
		model.Unit{Tag: 1, Type: model.Reaper},
		model.Unit{Tag: 2, Type: model.Marine},
		model.Unit{Tag: 3, Type: model.Reaper},
	))
	r.BatchAssign([]uint64{1, 2, 3}, Harassing)

	got := r.UnitsWithRole(Harassing, model.Reaper)
	if len(got) != 2 || got[0].Tag != 1 || got[1].Tag != 3 {
		t.Fatalf("UnitsWithRole(harassing, reaper) = %v", model.Tags(got))
	}

	// Unit 3 dies.
	removed := r.Observe(units(
		model.Unit{Tag: 1, Type: model.Reaper},
		model.Unit{Tag: 2, Type: model.Marine},
	))
	if len(removed) != 1 || removed[0] != 3 {
		t.Errorf("Observe removed %v, want [3]", removed)
	}
	got = r.UnitsWithRole(Harassing)
	if len(got) != 2 || got[0].Tag != 1 || got[1].Tag != 2 {
		t.Errorf("after death UnitsWithRole = %v, want [1 2]", model.Tags(got))
	}
	if _, ok := r.RoleOf(3); ok {
		t.Error("dead unit still holds a role")
	}
}

func TestEmptyRoleQuery(t *testing.T) {
	r := NewRegistry()
	if got := r.UnitsWithRole(Scouting); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	grouped := r.RolesGrouped(DropShip, DropUnitsToLoad)
	if len(grouped) != 2 || len(grouped[DropShip]) != 0 {
		t.Errorf("RolesGrouped on empty registry = %v", grouped)
	}
}

func TestCarriedUnitsKeepRoleButAreNotCommandable(t *testing.T) {
	r := NewRegistry()
	r.Observe(units(
		model.Unit{Tag: 10, Type: model.Medivac},
		model.Unit{Tag: 11, Type: model.WidowMine},
	))
	r.Assign(10, DropShip)
	r.Assign(11, DropUnitsToLoad)

	// The mine boards the medivac.
	removed := r.Observe(units(model.Unit{Tag: 10, Type: model.Medivac, Passengers: []uint64{11}}))
	if len(removed) != 0 {
		t.Fatalf("carried unit lost its role: removed %v", removed)
	}
	if role, _ := r.RoleOf(11); role != DropUnitsToLoad {
		t.Errorf("carried role = %v", role)
	}
	if got := r.UnitsWithRole(DropUnitsToLoad); len(got) != 0 {
		t.Errorf("carried unit returned as commandable: %v", model.Tags(got))
	}
	if got := r.Counts()[DropUnitsToLoad]; got != 1 {
		t.Errorf("carried unit not counted: %d", got)
	}
	if !r.Assign(11, DropUnitsAttacking) {
		t.Error("carried unit should accept a new role")
	}
	if err := r.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestRolesGroupedSinglePass(t *testing.T) {
	r := NewRegistry()
	r.Observe(units(
		model.Unit{Tag: 1}, model.Unit{Tag: 2}, model.Unit{Tag: 3}, model.Unit{Tag: 4},
	))
	r.Assign(1, DropShip)
	r.Assign(2, DropUnitsToLoad)
	r.Assign(3, DropUnitsToLoad)
	r.Assign(4, Attacking)

	got := r.RolesGrouped(DropShip, DropUnitsToLoad, DropUnitsAttacking)
	if len(got[DropShip]) != 1 || len(got[DropUnitsToLoad]) != 2 || len(got[DropUnitsAttacking]) != 0 {
		t.Errorf("RolesGrouped = %v", got)
	}
	if _, ok := got[Attacking]; ok {
		t.Error("unrequested role present in grouping")
	}
}

func TestCheckReportsUnassigned(t *testing.T) {
	r := NewRegistry()
	r.Observe(units(model.Unit{Tag: 1}, model.Unit{Tag: 2}))
	r.Assign(1, Gathering)

	err := r.Check()
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("Check = %v, want ErrInvariant", err)
	}
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("Check error is %T", err)
	}
	if len(inv.Unassigned) != 1 || inv.Unassigned[0] != 2 {
		t.Errorf("Unassigned = %v, want [2]", inv.Unassigned)
	}

	if got := r.Unassigned(); len(got) != 1 || got[0].Tag != 2 {
		t.Errorf("Unassigned() = %v", model.Tags(got))
	}
	r.Assign(2, Attacking)
	if err := r.Check(); err != nil {
		t.Errorf("Check after assigning everyone: %v", err)
	}
	if c := r.Counts(); c[Gathering] != 1 || c[Attacking] != 1 {
		t.Errorf("Counts = %v", c)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		err  bool
	}{
		{"defending", Defending, false},
		{"Attacking", Attacking, false},
		{"drop_units_to_load", DropUnitsToLoad, false},
		{"DropShip", DropShip, false},
		{"commander", None, true},
	}
	for _, tc := range tests {
		got, err := ParseRole(tc.in)
		if (err != nil) != tc.err || got != tc.want {
			t.Errorf("ParseRole(%q) = %v, %v", tc.in, got, err)
		}
	}
	if Role(42).String() != "role(42)" {
		t.Errorf("out of range String = %q", Role(42).String())
	}
}
