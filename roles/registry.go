// Package roles maps every live controllable unit to exactly one tactical
// role. The registry is created once per game and shared by every
// coordinator; it is the only place roles are stored.
package roles

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/nstehr/vimy/vimy-terran/model"
)

// ErrInvariant is wrapped by every consistency failure reported by Check.
var ErrInvariant = errors.New("role registry invariant violated")

// InvariantError lists identities that break the one-role-per-live-unit
// rule.
type InvariantError struct {
	Unassigned []uint64 // live and commandable, but holding no role
	Stale      []uint64 // holding a role, but no longer alive
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: %d unassigned %v, %d stale %v",
		ErrInvariant, len(e.Unassigned), e.Unassigned, len(e.Stale), e.Stale)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Change records one role transition for the journal.
type Change struct {
	Tag  uint64
	From Role
	To   Role
}

// Registry owns the unit → role map. All methods are safe for concurrent
// use, although the tick pipeline drives it from a single goroutine.
type Registry struct {
	mu sync.RWMutex

	roles map[uint64]Role

	// Liveness for the current tick. Carried units are alive but cannot be
	// commanded, so they never appear in role-filtered results.
	onField map[uint64]model.Unit
	order   []uint64
	carried map[uint64]struct{}

	changes []Change
}

func NewRegistry() *Registry {
	return &Registry{
		roles:   make(map[uint64]Role),
		onField: make(map[uint64]model.Unit),
		carried: make(map[uint64]struct{}),
	}
}

// Observe installs the tick's liveness set and removes the roles of units
// that ceased to exist. It returns the tags whose roles were removed.
func (r *Registry) Observe(units []model.Unit) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.onField)
	clear(r.carried)
	r.order = r.order[:0]
	for _, u := range units {
		r.onField[u.Tag] = u
		r.order = append(r.order, u.Tag)
		for _, p := range u.Passengers {
			r.carried[p] = struct{}{}
		}
	}

	var removed []uint64
	for tag, role := range r.roles {
		if !r.aliveLocked(tag) {
			delete(r.roles, tag)
			r.changes = append(r.changes, Change{Tag: tag, From: role, To: None})
			removed = append(removed, tag)
		}
	}
	slices.Sort(removed)
	return removed
}

func (r *Registry) aliveLocked(tag uint64) bool {
	if _, ok := r.onField[tag]; ok {
		return true
	}
	_, ok := r.carried[tag]
	return ok
}

// Alive reports whether tag is on the field or inside a transport.
func (r *Registry) Alive(tag uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aliveLocked(tag)
}

// Assign gives tag the role, overwriting any prior one. Assigning a unit
// that is not alive is a no-op and reports false.
func (r *Registry) Assign(tag uint64, role Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assignLocked(tag, role)
}

func (r *Registry) assignLocked(tag uint64, role Role) bool {
	if role == None || !r.aliveLocked(tag) {
		return false
	}
	prev, had := r.roles[tag]
	if had && prev == role {
		return true
	}
	r.roles[tag] = role
	r.changes = append(r.changes, Change{Tag: tag, From: prev, To: role})
	return true
}

// BatchAssign assigns role to every tag under a single lock so no reader
// observes a partially applied batch. It returns how many were assigned.
func (r *Registry) BatchAssign(tags []uint64, role Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tag := range tags {
		if r.assignLocked(tag, role) {
			n++
		}
	}
	return n
}

// RoleOf returns the role held by tag.
func (r *Registry) RoleOf(tag uint64) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[tag]
	return role, ok
}

// UnitsWithRole returns the on-field units holding role, optionally
// restricted to the given types, in snapshot order.
func (r *Registry) UnitsWithRole(role Role, types ...model.UnitType) []model.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Unit
	for _, tag := range r.order {
		if r.roles[tag] != role {
			continue
		}
		u := r.onField[tag]
		if len(types) > 0 && !slices.Contains(types, u.Type) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// RolesGrouped returns the on-field units for each requested role in one
// pass over the liveness set. Every requested role has an entry, possibly
// empty.
func (r *Registry) RolesGrouped(roles ...Role) map[Role][]model.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Role][]model.Unit, len(roles))
	for _, role := range roles {
		out[role] = nil
	}
	for _, tag := range r.order {
		role, ok := r.roles[tag]
		if !ok {
			continue
		}
		if _, wanted := out[role]; wanted {
			out[role] = append(out[role], r.onField[tag])
		}
	}
	return out
}

// Unassigned returns on-field units that hold no role, in snapshot order.
func (r *Registry) Unassigned() []model.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Unit
	for _, tag := range r.order {
		if _, ok := r.roles[tag]; !ok {
			out = append(out, r.onField[tag])
		}
	}
	return out
}

// Counts returns how many live units hold each role.
func (r *Registry) Counts() map[Role]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Role]int)
	for tag, role := range r.roles {
		if r.aliveLocked(tag) {
			out[role]++
		}
	}
	return out
}

// DrainChanges returns and clears the transitions recorded since the last
// drain.
func (r *Registry) DrainChanges() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.changes
	r.changes = nil
	return out
}

// Check verifies that every on-field unit holds a role and that no role
// entry outlives its unit. Carried units are exempt from the first rule
// because they were assigned before boarding.
func (r *Registry) Check() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var e InvariantError
	for _, tag := range r.order {
		if _, ok := r.roles[tag]; !ok {
			e.Unassigned = append(e.Unassigned, tag)
		}
	}
	for tag := range r.roles {
		if !r.aliveLocked(tag) {
			e.Stale = append(e.Stale, tag)
		}
	}
	if len(e.Unassigned) == 0 && len(e.Stale) == 0 {
		return nil
	}
	slices.Sort(e.Stale)
	return &e
}
