package model

// LoopsPerSecond is the number of game loops in one second of game time
// at "faster" speed.
const LoopsPerSecond = 22.4

type GameState struct {
	Tick           int      `json:"tick"`
	Player         Player   `json:"player"`
	EnemyRace      Race     `json:"enemyRace"`
	Opening        string   `json:"opening"`
	MapCenter      Point    `json:"mapCenter"`
	StartLocation  Point    `json:"startLocation"`
	EnemyStart     Point    `json:"enemyStart"`
	OwnNatural     Point    `json:"ownNatural"`
	EnemyNatural   Point    `json:"enemyNatural"`
	MainRampTop    Point    `json:"mainRampTop"`
	MainRampBottom Point    `json:"mainRampBottom"`
	Expansions     []Point  `json:"expansions"`
	Units          []Unit   `json:"units"`
	Enemies        []Unit   `json:"enemies"`
	Minerals       []Unit   `json:"minerals"`
	Geysers        []Unit   `json:"geysers"`
	Effects        []Effect `json:"effects"`
}

// Seconds converts the tick to game seconds.
func (gs *GameState) Seconds() float64 { return float64(gs.Tick) / LoopsPerSecond }

// Army returns own units that are not structures.
func (gs *GameState) Army() []Unit {
	out := make([]Unit, 0, len(gs.Units))
	for _, u := range gs.Units {
		if !u.IsStructure {
			out = append(out, u)
		}
	}
	return out
}

// Structures returns own completed and in-progress structures.
func (gs *GameState) Structures() []Unit {
	var out []Unit
	for _, u := range gs.Units {
		if u.IsStructure {
			out = append(out, u)
		}
	}
	return out
}

// Townhalls returns own command centers in any of their forms.
func (gs *GameState) Townhalls() []Unit {
	var out []Unit
	for _, u := range gs.Units {
		if u.Type.IsTownhall() {
			out = append(out, u)
		}
	}
	return out
}

// OwnUnit looks up an own unit by tag.
func (gs *GameState) OwnUnit(tag uint64) (Unit, bool) {
	for _, u := range gs.Units {
		if u.Tag == tag {
			return u, true
		}
	}
	return Unit{}, false
}

// SupplyNear sums own unit supply within radius of p.
func (gs *GameState) SupplyNear(p Point, radius float64) float64 {
	var total float64
	r2 := radius * radius
	for _, u := range gs.Units {
		if !u.IsStructure && u.Pos.DistSq(p) <= r2 {
			total += u.Supply
		}
	}
	return total
}

type Race string

const (
	Terran  Race = "Terran"
	Zerg    Race = "Zerg"
	Protoss Race = "Protoss"
	Random  Race = "Random"
)

type Player struct {
	Name       string  `json:"name"`
	Race       Race    `json:"race"`
	Minerals   int     `json:"minerals"`
	Vespene    int     `json:"vespene"`
	SupplyCap  float64 `json:"supplyCap"`
	SupplyUsed float64 `json:"supplyUsed"`
}

// Effect is an area-denial effect on the map (storm, bile, nuke dot).
type Effect struct {
	Kind      string  `json:"kind"`
	Positions []Point `json:"positions"`
	Radius    float64 `json:"radius"`
	Enemy     bool    `json:"enemy"`
}
