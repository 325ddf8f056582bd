package model

// TerrainType classifies one map cell for ground movement.
type TerrainType byte

const (
	Pathable TerrainType = 0 // walkable ground
	Blocked  TerrainType = 1 // unpathable for every ground unit
	Cliff    TerrainType = 2 // cliff edge, only cliff-jumping units cross it
)

// TerrainGrid is the map's pathing grid at one cell per game unit.
type TerrainGrid struct {
	Cols int           // map width in cells
	Rows int           // map height in cells
	Grid []TerrainType // row-major: Grid[row*Cols + col]
}

// At returns the terrain type at grid coordinates (col, row).
// Returns Blocked for out-of-bounds coordinates.
func (g *TerrainGrid) At(col, row int) TerrainType {
	if g == nil || col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return Blocked
	}
	return g.Grid[row*g.Cols+col]
}

// AtPos returns the terrain type of the cell containing p.
func (g *TerrainGrid) AtPos(p Point) TerrainType {
	col, row := p.Cell()
	return g.At(col, row)
}

// InBounds reports whether (col, row) lies on the map.
func (g *TerrainGrid) InBounds(col, row int) bool {
	return g != nil && col >= 0 && col < g.Cols && row >= 0 && row < g.Rows
}

// CellCenter returns the map position of the center of cell (col, row).
func (g *TerrainGrid) CellCenter(col, row int) Point {
	return Point{X: float64(col) + 0.5, Y: float64(row) + 0.5}
}

// Count returns how many cells have terrain type t.
func (g *TerrainGrid) Count(t TerrainType) int {
	n := 0
	for _, c := range g.Grid {
		if c == t {
			n++
		}
	}
	return n
}
