// Package agent runs the per-tick decision pipeline for one game session
// and answers the bridge's messages.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nstehr/vimy/vimy-terran/abilities"
	"github.com/nstehr/vimy/vimy-terran/army"
	"github.com/nstehr/vimy/vimy-terran/catalog"
	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/ipc"
	"github.com/nstehr/vimy/vimy-terran/journal"
	"github.com/nstehr/vimy/vimy-terran/maneuver"
	"github.com/nstehr/vimy/vimy-terran/minedrop"
	"github.com/nstehr/vimy/vimy-terran/mining"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/reaper"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/rules"
	"github.com/nstehr/vimy/vimy-terran/scout"
	"github.com/nstehr/vimy/vimy-terran/spatial"
	"github.com/nstehr/vimy/vimy-terran/telemetry"
	"github.com/nstehr/vimy/vimy-terran/workerdefense"
)

// Settings are the tunables of every coordinator.
type Settings struct {
	MineDrop      minedrop.Config
	Reaper        reaper.Config
	WorkerDefense workerdefense.Config
	Scout         scout.Config
	Army          army.Config
	ScoutEnabled  bool
	// Macro enables the depot and MULE rules.
	Macro bool
}

func DefaultSettings() Settings {
	return Settings{
		MineDrop:      minedrop.DefaultConfig(),
		Reaper:        reaper.DefaultConfig(),
		WorkerDefense: workerdefense.DefaultConfig(),
		Scout:         scout.DefaultConfig(),
		Army:          army.DefaultConfig(),
		ScoutEnabled:  true,
		Macro:         true,
	}
}

// Deps are shared across sessions; the agent owns none of them.
type Deps struct {
	Catalog  *catalog.Catalog
	Journal  journal.Sink
	Metrics  *telemetry.Metrics
	Settings Settings
	Log      *slog.Logger
}

// game is the state that lives exactly as long as one game.
type game struct {
	session   string
	registry  *roles.Registry
	abilities *abilities.Tracker
	pather    *spatial.Map
	engine    *rules.Engine
	pipeline  *Pipeline
	prev      *stateSnapshot
	lastTick  int
}

// Agent owns the decision-making for a single player session.
type Agent struct {
	ctx  context.Context
	deps Deps
	log  *slog.Logger

	Player    string
	Race      model.Race
	EnemyRace model.Race

	game *game
}

// New checks that the settings build a working pipeline; the game itself
// starts with the hello.
func New(ctx context.Context, d Deps) (*Agent, error) {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Settings == (Settings{}) {
		d.Settings = DefaultSettings()
	}
	a := &Agent{ctx: ctx, deps: d, log: d.Log}
	if _, err := a.newGame(nil); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) newGame(terrain *model.TerrainGrid) (*game, error) {
	s := a.deps.Settings
	cat := a.deps.Catalog

	md, err := minedrop.New(s.MineDrop)
	if err != nil {
		return nil, fmt.Errorf("mine drop: %w", err)
	}
	rp, err := reaper.New(s.Reaper)
	if err != nil {
		return nil, fmt.Errorf("reaper: %w", err)
	}
	engine, err := rules.NewEngine(rules.DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("macro rules: %w", err)
	}

	mine := mining.New()
	coordinators := []Coordinator{
		workerdefense.New(s.WorkerDefense, mine, cat.DefendersRequired()),
		mine,
	}
	if s.ScoutEnabled {
		coordinators = append(coordinators, scout.New(s.Scout))
	}
	coordinators = append(coordinators, rp, md, army.New(s.Army))

	return &game{
		session:   uuid.NewString(),
		registry:  roles.NewRegistry(),
		abilities: abilities.NewTracker(cat),
		pather:    spatial.NewMap(terrain),
		engine:    engine,
		pipeline:  NewPipeline(a.deps.Metrics, coordinators...),
	}, nil
}

// Session is the current game's identity, empty before the hello.
func (a *Agent) Session() string {
	if a.game == nil {
		return ""
	}
	return a.game.session
}

// Registry exposes the current game's role registry.
func (a *Agent) Registry() *roles.Registry {
	if a.game == nil {
		return nil
	}
	return a.game.registry
}

// HandleHello starts a new game so the bridge knows the agent is ready.
func (a *Agent) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := json.Unmarshal(env.Data, &hello); err != nil {
		return nil, fmt.Errorf("unmarshal hello: %w", err)
	}

	g, err := a.newGame(hello.Terrain.Grid2D())
	if err != nil {
		return nil, err
	}
	a.game = g
	a.Player = hello.Player
	a.Race = hello.Race
	a.EnemyRace = hello.EnemyRace
	a.log = a.deps.Log.With("session", g.session)

	a.log.Info("player identified",
		"player", a.Player,
		"race", a.Race,
		"enemy_race", a.EnemyRace,
		"map", hello.Map,
		"opening", hello.Opening,
		"terrain", hello.Terrain != nil,
		"coordinators", g.pipeline.Names(),
	)

	if err := a.deps.Journal.StartSession(journal.Session{
		ID:        g.session,
		Player:    hello.Player,
		Race:      string(hello.Race),
		EnemyRace: string(hello.EnemyRace),
		Map:       hello.Map,
		Opening:   hello.Opening,
		StartedAt: time.Now(),
	}); err != nil {
		a.log.Warn("journal session start failed", "error", err)
	}

	ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok"})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

var errNoGame = errors.New("no game in progress: hello not received")

// HandleGameState runs one tick and replies with the commands it issued.
func (a *Agent) HandleGameState(env ipc.Envelope) (*ipc.Envelope, error) {
	if a.game == nil {
		return nil, errNoGame
	}
	var gs model.GameState
	if err := json.Unmarshal(env.Data, &gs); err != nil {
		return nil, fmt.Errorf("unmarshal GameState: %w", err)
	}

	cmds, err := a.tick(&gs)
	if err != nil {
		return nil, err
	}
	out, err := ipc.NewEnvelope(ipc.TypeCommands, ipc.CommandsMessage{Tick: gs.Tick, Commands: cmds})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Agent) tick(gs *model.GameState) ([]command.Command, error) {
	g := a.game
	start := time.Now()
	ctx := a.ctx
	metrics := a.deps.Metrics

	if gs.Tick < g.lastTick {
		a.log.Warn("tick went backwards", "tick", gs.Tick, "last", g.lastTick)
	}
	g.lastTick = gs.Tick

	// Observe first: roles of vanished units are gone before anyone reads them.
	g.registry.Observe(gs.Army())
	g.pather.Update(gs, a.deps.Catalog)

	buf := &command.Buffer{}
	orders := command.Tee(buf, command.SinkFunc(func(c command.Command) {
		metrics.CommandIssued(ctx, string(c.Ability))
		a.log.Debug("command", "cmd", c.String())
	}))
	f := frame.New(ctx, gs, frame.Deps{
		Roles:     g.registry,
		Abilities: g.abilities,
		Catalog:   a.deps.Catalog,
		Pather:    g.pather,
		Log:       a.log,
		OnFired:   func(k maneuver.Kind) { metrics.ManeuverFired(ctx, k.String()) },
	}, orders)

	events, snap := detectEvents(gs, f.EnemiesNearBases(), g.prev)
	g.prev = &snap
	a.applyEvents(gs, events)

	var violation string
	if err := g.pipeline.Run(f); err != nil {
		violation = err.Error()
	}

	var fired []string
	if a.deps.Settings.Macro {
		fired = g.engine.Evaluate(f.Env(), orders)
	}

	cmds := buf.Drain()
	if cmds == nil {
		cmds = []command.Command{}
	}
	changes := g.registry.DrainChanges()
	for _, c := range changes {
		metrics.RoleChanged(ctx, c.To.String())
	}
	elapsed := time.Since(start)
	metrics.TickDuration(ctx, elapsed)

	rec := journal.Tick{
		Session:     g.session,
		Tick:        gs.Tick,
		DurationMS:  float64(elapsed) / float64(time.Millisecond),
		Commands:    cmds,
		RoleChanges: make([]journal.RoleChange, len(changes)),
		Rules:       fired,
		Roles:       make(map[string]int),
		Violation:   violation,
	}
	for i, c := range changes {
		rec.RoleChanges[i] = journal.RoleChange{Tag: c.Tag, From: c.From.String(), To: c.To.String()}
	}
	for r, n := range g.registry.Counts() {
		rec.Roles[r.String()] = n
	}
	for _, e := range events {
		if e.Kind == EventFirstContact || e.Kind == EventBaseUnderAttack {
			rec.Events = append(rec.Events, journal.Event{Kind: string(e.Kind), Detail: e.Detail})
		}
	}
	if err := a.deps.Journal.RecordTick(rec); err != nil {
		a.log.Warn("journal tick failed", "tick", gs.Tick, "error", err)
	}

	a.log.Debug("tick decided",
		"tick", gs.Tick,
		"commands", len(cmds),
		"role_changes", len(changes),
		"rules", fired,
		"elapsed", elapsed,
	)
	return cmds, nil
}

// applyEvents gives new units their initial role and keeps the ability
// tracker in step with births and deaths.
func (a *Agent) applyEvents(gs *model.GameState, events []Event) {
	g := a.game
	for _, e := range events {
		switch e.Kind {
		case EventUnitCreated:
			u, ok := gs.OwnUnit(e.Tag)
			if !ok || u.IsStructure {
				continue
			}
			role := a.initialRole(u.Type)
			g.registry.Assign(u.Tag, role)
			if u.Type == model.WidowMine || u.Type == model.WidowMineBurrowed {
				if !g.abilities.Tracked(u.Tag) {
					g.abilities.Record(u.Tag, model.AbilityMineAttack, gs.Tick)
				}
			}
			a.log.Debug("unit created", "tag", u.Tag, "type", u.Type, "role", role)
		case EventUnitDestroyed:
			g.abilities.Forget(e.Tag)
			a.log.Debug("unit destroyed", "tag", e.Tag, "type", e.Type)
		case EventFirstContact:
			a.log.Info("first enemy contact", "tick", e.Tick, "enemies", e.Detail)
		case EventBaseUnderAttack:
			a.log.Info("base under attack", "townhall", e.Tag, "enemies", e.Detail)
		}
	}

	// A unit can surface without a creation event, e.g. one first seen
	// when its transport unloads.
	for _, u := range g.registry.Unassigned() {
		role := a.initialRole(u.Type)
		g.registry.Assign(u.Tag, role)
		a.log.Warn("unit had no role", "tag", u.Tag, "type", u.Type, "role", role)
	}
}

func (a *Agent) initialRole(t model.UnitType) roles.Role {
	if a.deps.Catalog.NonCombat(t) {
		return roles.Gathering
	}
	return roles.Attacking
}

// HandleGameEnd closes the session in the journal.
func (a *Agent) HandleGameEnd(env ipc.Envelope) (*ipc.Envelope, error) {
	var end ipc.GameEndMessage
	if err := json.Unmarshal(env.Data, &end); err != nil {
		return nil, fmt.Errorf("unmarshal game_end: %w", err)
	}
	if a.game == nil {
		return nil, errNoGame
	}

	a.log.Info("game ended", "result", end.Result, "tick", end.Tick)
	if err := a.deps.Journal.EndSession(journal.End{
		Session: a.game.session,
		Result:  end.Result,
		Tick:    end.Tick,
		EndedAt: time.Now(),
	}); err != nil {
		a.log.Warn("journal session end failed", "error", err)
	}
	a.game = nil

	ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok"})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// Handlers maps message types to this agent's handlers.
func (a *Agent) Handlers() map[string]ipc.Handler {
	return map[string]ipc.Handler{
		ipc.TypeHello:     a.HandleHello,
		ipc.TypeGameState: a.HandleGameState,
		ipc.TypeGameEnd:   a.HandleGameEnd,
	}
}
