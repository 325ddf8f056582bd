package spatial

import (
	"math"

	"github.com/nstehr/vimy/vimy-terran/model"
)

const (
	safeCost      = 1
	unitInfluence = 10
	// Effects dominate unit influence so avoidance wins over every other
	// consideration.
	effectInfluence = 50
	// Cells beyond weapon range that still count as threatened.
	influenceMargin = 3
)

// Map holds the cost layers for one game. Base layers come from the
// terrain; Update re-derives the per-tick influence.
type Map struct {
	cols, rows int
	base       [gridCount][]float32
	cost       [gridCount][]float32
}

// NewMap builds base layers from terrain. A nil or empty terrain yields an
// open map where every point is safe and paths are straight lines.
func NewMap(terrain *model.TerrainGrid) *Map {
	m := &Map{}
	if terrain == nil || terrain.Cols <= 0 || terrain.Rows <= 0 || len(terrain.Grid) < terrain.Cols*terrain.Rows {
		return m
	}
	m.cols, m.rows = terrain.Cols, terrain.Rows
	n := m.cols * m.rows
	for g := Grid(0); g < gridCount; g++ {
		m.base[g] = make([]float32, n)
		m.cost[g] = make([]float32, n)
	}
	for i, t := range terrain.Grid[:n] {
		var walk, climb float32
		switch t {
		case model.Pathable:
			walk, climb = safeCost, safeCost
		case model.Cliff:
			climb = safeCost
		}
		m.base[Ground][i] = walk
		m.base[GroundAvoidance][i] = walk
		m.base[Climber][i] = climb
		m.base[ClimberAvoidance][i] = climb
		m.base[Air][i] = safeCost
		m.base[AirAvoidance][i] = safeCost
	}
	for g := Grid(0); g < gridCount; g++ {
		copy(m.cost[g], m.base[g])
	}
	return m
}

func (m *Map) open() bool { return m.cols == 0 }

// Update resets the cost layers and adds this tick's enemy and effect
// influence.
func (m *Map) Update(gs *model.GameState, threats Threats) {
	if m.open() {
		return
	}
	for g := Grid(0); g < gridCount; g++ {
		copy(m.cost[g], m.base[g])
	}
	for _, e := range gs.Enemies {
		reach := threats.Range(e.Type) + e.Radius + influenceMargin
		if threats.CanAttackGround(e) {
			m.addCircle(e.Pos, reach, unitInfluence, Ground, Climber)
		}
		if threats.CanAttackAir(e) {
			m.addCircle(e.Pos, reach, unitInfluence, Air)
		}
	}
	for _, eff := range gs.Effects {
		if !eff.Enemy {
			continue
		}
		for _, p := range eff.Positions {
			m.addCircle(p, eff.Radius+1, effectInfluence, Ground, Air, Climber, GroundAvoidance, AirAvoidance, ClimberAvoidance)
		}
	}
}

// addCircle raises the cost of pathable cells within r of center on each
// listed layer.
func (m *Map) addCircle(center model.Point, r float64, weight float32, layers ...Grid) {
	minC, minR := int(math.Floor(center.X-r)), int(math.Floor(center.Y-r))
	maxC, maxR := int(math.Ceil(center.X+r)), int(math.Ceil(center.Y+r))
	r2 := r * r
	for row := max(minR, 0); row <= min(maxR, m.rows-1); row++ {
		for col := max(minC, 0); col <= min(maxC, m.cols-1); col++ {
			c := model.Point{X: float64(col) + 0.5, Y: float64(row) + 0.5}
			if c.DistSq(center) > r2 {
				continue
			}
			i := row*m.cols + col
			for _, g := range layers {
				if g < 0 || g >= gridCount {
					continue
				}
				if m.cost[g][i] > 0 {
					m.cost[g][i] += weight
				}
			}
		}
	}
}

// Cost returns the cost of the cell containing p on g; 0 when unpathable
// or off the map.
func (m *Map) Cost(p model.Point, g Grid) float32 {
	if m.open() {
		return safeCost
	}
	col, row := p.Cell()
	if col < 0 || col >= m.cols || row < 0 || row >= m.rows {
		return 0
	}
	return m.cost[g][row*m.cols+col]
}

func (m *Map) IsSafe(p model.Point, g Grid) bool {
	return m.Cost(p, g) == safeCost
}

// IsPathable reports whether p can be entered on g at any cost.
func (m *Map) IsPathable(p model.Point, g Grid) bool {
	return m.Cost(p, g) > 0
}

func (m *Map) SafeSpot(near model.Point, radius float64, g Grid) (model.Point, bool) {
	if m.open() {
		return near, true
	}
	if m.IsSafe(near, g) {
		return near, true
	}
	r2 := radius * radius
	minC, minR := int(math.Floor(near.X-radius)), int(math.Floor(near.Y-radius))
	maxC, maxR := int(math.Ceil(near.X+radius)), int(math.Ceil(near.Y+radius))
	best, bestD, found := model.Point{}, math.MaxFloat64, false
	for row := max(minR, 0); row <= min(maxR, m.rows-1); row++ {
		for col := max(minC, 0); col <= min(maxC, m.cols-1); col++ {
			if m.cost[g][row*m.cols+col] != safeCost {
				continue
			}
			c := model.Point{X: float64(col) + 0.5, Y: float64(row) + 0.5}
			d := c.DistSq(near)
			if d <= r2 && d < bestD {
				best, bestD, found = c, d, true
			}
		}
	}
	return best, found
}
