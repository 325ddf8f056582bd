// Package spatial is the pathing collaborator: per-movement-class cost
// grids, path search, and safety queries. Cost 1 is a safe pathable cell,
// higher costs are inside enemy reach or an area-denial effect, and 0
// marks a cell the movement class cannot enter.
package spatial

import "github.com/nstehr/vimy/vimy-terran/model"

// Grid selects a movement class and its cost layer.
type Grid int

const (
	Ground          Grid = iota // walking units, enemy ground and effect influence
	Air                         // flying units, enemy anti-air and effect influence
	Climber                     // cliff-jumping units, ground influence
	GroundAvoidance             // walking units, effect influence only
	AirAvoidance                // flying units, effect influence only
	ClimberAvoidance            // cliff-jumping units, effect influence only
	gridCount
)

var gridNames = [...]string{"ground", "air", "climber", "ground_avoidance", "air_avoidance", "climber_avoidance"}

func (g Grid) String() string {
	if g < 0 || g >= gridCount {
		return "grid(?)"
	}
	return gridNames[g]
}

// Pather is what coordinators and behaviors consume.
type Pather interface {
	// Path returns waypoints from from (exclusive) to to (inclusive), or
	// nil when to is unreachable on g.
	Path(from, to model.Point, g Grid) []model.Point
	// SafeSpot returns the safe point on g closest to near within radius.
	SafeSpot(near model.Point, radius float64, g Grid) (model.Point, bool)
	// IsSafe reports whether p is pathable and outside every danger zone.
	IsSafe(p model.Point, g Grid) bool
	// IsPathable reports whether p can be entered on g at any cost.
	IsPathable(p model.Point, g Grid) bool
}

// Threats resolves weapon reach for enemy influence. *catalog.Catalog
// satisfies it.
type Threats interface {
	Range(t model.UnitType) float64
	CanAttackGround(u model.Unit) bool
	CanAttackAir(u model.Unit) bool
}
