// Package world answers proximity questions about a snapshot: who is near
// a set of points, which unit is closest, where a group is centered.
package world

import "github.com/nstehr/vimy/vimy-terran/model"

// Relation filters the units a query considers.
type Relation int

const (
	Enemy          Relation = iota // enemy units, not structures
	EnemyGround                    // enemy units that are not flying
	EnemyAir                       // enemy flying units
	EnemyStructure                 // enemy structures
	EnemyAny                       // enemy units and structures
	Own                            // own units, not structures
	OwnGround
	OwnAir
)

// Query is the world-query collaborator consumed by coordinators.
type Query interface {
	// InRange returns, for each unit in from, the units matching rel within
	// radius of it. Units with no neighbours map to an empty slice.
	InRange(from []model.Unit, radius float64, rel Relation) map[uint64][]model.Unit
	// Near returns the units matching rel within radius of p.
	Near(p model.Point, radius float64, rel Relation) []model.Unit
	Closest(units []model.Unit, p model.Point) (model.Unit, bool)
	Centroid(units []model.Unit) model.Point
}

// Index implements Query over one snapshot with linear scans; a snapshot
// holds at most a few hundred units.
type Index struct {
	gs *model.GameState
}

func NewIndex(gs *model.GameState) *Index { return &Index{gs: gs} }

func (x *Index) candidates(rel Relation) []model.Unit {
	switch rel {
	case Own, OwnGround, OwnAir:
		return x.gs.Units
	}
	return x.gs.Enemies
}

func matches(u model.Unit, rel Relation) bool {
	switch rel {
	case Enemy, Own:
		return !u.IsStructure
	case EnemyGround, OwnGround:
		return !u.IsStructure && !u.IsFlying
	case EnemyAir, OwnAir:
		return !u.IsStructure && u.IsFlying
	case EnemyStructure:
		return u.IsStructure
	case EnemyAny:
		return true
	}
	return false
}

func (x *Index) Near(p model.Point, radius float64, rel Relation) []model.Unit {
	r2 := radius * radius
	var out []model.Unit
	for _, u := range x.candidates(rel) {
		if matches(u, rel) && u.Pos.DistSq(p) <= r2 {
			out = append(out, u)
		}
	}
	return out
}

func (x *Index) InRange(from []model.Unit, radius float64, rel Relation) map[uint64][]model.Unit {
	out := make(map[uint64][]model.Unit, len(from))
	for _, f := range from {
		near := x.Near(f.Pos, radius, rel)
		// A unit is never its own neighbour.
		filtered := near[:0]
		for _, u := range near {
			if u.Tag != f.Tag {
				filtered = append(filtered, u)
			}
		}
		out[f.Tag] = filtered
	}
	return out
}

func (x *Index) Closest(units []model.Unit, p model.Point) (model.Unit, bool) {
	return model.Closest(units, p)
}

func (x *Index) Centroid(units []model.Unit) model.Point {
	return model.UnitsCentroid(units)
}
