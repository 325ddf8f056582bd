package spatial

import (
	"container/heap"
	"math"

	"github.com/nstehr/vimy/vimy-terran/model"
)

// maxExpansions bounds one search so a hopeless query cannot stall a tick.
const maxExpansions = 60000

var neighbours = [8][3]float64{
	{1, 0, 1}, {-1, 0, 1}, {0, 1, 1}, {0, -1, 1},
	{1, 1, math.Sqrt2}, {1, -1, math.Sqrt2}, {-1, 1, math.Sqrt2}, {-1, -1, math.Sqrt2},
}

type node struct {
	idx int
	f   float64
}

type openSet []node

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].f < o[j].f }
func (o openSet) Swap(i, j int)      { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)        { *o = append(*o, x.(node)) }
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

// Path runs A* over the 8-neighbourhood of g weighted by cell cost. The
// start cell is always enterable so a unit standing on an edge can leave
// it.
func (m *Map) Path(from, to model.Point, g Grid) []model.Point {
	if m.open() {
		return []model.Point{to}
	}
	sc, sr := from.Cell()
	gc, gr := to.Cell()
	if !m.inBounds(sc, sr) || !m.inBounds(gc, gr) {
		return nil
	}
	cost := m.cost[g]
	start, goal := sr*m.cols+sc, gr*m.cols+gc
	if cost[goal] == 0 {
		return nil
	}
	if start == goal {
		return []model.Point{to}
	}

	gScore := map[int]float64{start: 0}
	came := map[int]int{}
	closed := map[int]bool{}
	open := &openSet{{idx: start, f: heuristic(sc, sr, gc, gr)}}

	for expanded := 0; open.Len() > 0 && expanded < maxExpansions; expanded++ {
		cur := heap.Pop(open).(node)
		if cur.idx == goal {
			return m.reconstruct(came, start, goal, to)
		}
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true
		cc, cr := cur.idx%m.cols, cur.idx/m.cols
		for _, d := range neighbours {
			nc, nr := cc+int(d[0]), cr+int(d[1])
			if !m.inBounds(nc, nr) {
				continue
			}
			ni := nr*m.cols + nc
			if cost[ni] == 0 || closed[ni] {
				continue
			}
			// No corner cutting through blocked cells.
			if d[0] != 0 && d[1] != 0 && (cost[cr*m.cols+nc] == 0 || cost[nr*m.cols+cc] == 0) {
				continue
			}
			tentative := gScore[cur.idx] + d[2]*float64(cost[ni])
			if old, seen := gScore[ni]; seen && tentative >= old {
				continue
			}
			gScore[ni] = tentative
			came[ni] = cur.idx
			heap.Push(open, node{idx: ni, f: tentative + heuristic(nc, nr, gc, gr)})
		}
	}
	return nil
}

func (m *Map) inBounds(col, row int) bool {
	return col >= 0 && col < m.cols && row >= 0 && row < m.rows
}

func heuristic(c, r, gc, gr int) float64 {
	return math.Hypot(float64(gc-c), float64(gr-r))
}

func (m *Map) reconstruct(came map[int]int, start, goal int, to model.Point) []model.Point {
	var rev []model.Point
	for cur := goal; cur != start; cur = came[cur] {
		rev = append(rev, model.Point{X: float64(cur%m.cols) + 0.5, Y: float64(cur/m.cols) + 0.5})
	}
	path := make([]model.Point, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = p
	}
	path[len(path)-1] = to
	return path
}
