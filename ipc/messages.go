package ipc

import (
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/model"
)

// These constants must stay in sync with the game bridge.
const (
	TypeHello     = "hello"
	TypeAck       = "ack"
	TypeGameState = "game_state"
	TypeGameEnd   = "game_end"
	TypeCommands  = "commands"
	TypeError     = "error"
)

type HelloMessage struct {
	Player    string       `json:"player"`
	Race      model.Race   `json:"race"`
	EnemyRace model.Race   `json:"enemyRace"`
	Map       string       `json:"map"`
	Opening   string       `json:"opening,omitempty"`
	Terrain   *TerrainData `json:"terrain,omitempty"`
}

// TerrainData carries the pathing grid, row-major, one cell per map
// square. Optional; without it the agent paths in straight lines.
type TerrainData struct {
	Cols int   `json:"cols"`
	Rows int   `json:"rows"`
	Grid []int `json:"grid"`
}

// Grid2D converts the wire terrain into the model grid. Unknown cell values
// are treated as blocked.
func (t *TerrainData) Grid2D() *model.TerrainGrid {
	if t == nil {
		return nil
	}
	g := &model.TerrainGrid{Cols: t.Cols, Rows: t.Rows, Grid: make([]model.TerrainType, len(t.Grid))}
	for i, v := range t.Grid {
		switch tt := model.TerrainType(v); tt {
		case model.Pathable, model.Blocked, model.Cliff:
			g.Grid[i] = tt
		default:
			g.Grid[i] = model.Blocked
		}
	}
	return g
}

type GameEndMessage struct {
	Result string `json:"result"`
	Tick   int    `json:"tick"`
}

type AckMessage struct {
	Status string `json:"status"`
}

// CommandsMessage is the reply to a game_state: every order the agent
// issued for that tick.
type CommandsMessage struct {
	Tick     int               `json:"tick"`
	Commands []command.Command `json:"commands"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
