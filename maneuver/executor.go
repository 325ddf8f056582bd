package maneuver

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/model"
	"github.com/nstehr/vimy/vimy-terran/spatial"
)

// Maneuver is the ordered candidate list for one unit for one tick.
type Maneuver struct {
	Unit      model.Unit
	behaviors []Behavior
}

func New(u model.Unit) *Maneuver { return &Maneuver{Unit: u} }

// Add appends b. Earlier behaviors take priority.
func (m *Maneuver) Add(b Behavior) *Maneuver {
	m.behaviors = append(m.behaviors, b)
	return m
}

func (m *Maneuver) Len() int { return len(m.behaviors) }

// Result says which behavior, if any, fired.
type Result struct {
	Fired bool
	Kind  Kind
	Index int
}

// Executor evaluates maneuvers against the tick's pather and command sink.
type Executor struct {
	env     Env
	log     *slog.Logger
	onFired func(Kind)
}

// NewExecutor binds an executor to one tick. onFired, if non-nil, is told
// about every behavior that fires.
func NewExecutor(tick int, pather spatial.Pather, orders command.Sink, log *slog.Logger, onFired func(Kind)) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		env:     Env{Tick: tick, Pather: pather, Orders: orders},
		log:     log,
		onFired: onFired,
	}
}

// Submit runs m's behaviors in order and stops at the first that issues a
// command. A maneuver where nothing fires issues nothing.
func (e *Executor) Submit(m *Maneuver) Result {
	for i, b := range m.behaviors {
		if !b.execute(e.env) {
			continue
		}
		e.log.Debug("maneuver fired", "unit", m.Unit.Tag, "type", m.Unit.Type, "behavior", b.Kind(), "index", i)
		if e.onFired != nil {
			e.onFired(b.Kind())
		}
		return Result{Fired: true, Kind: b.Kind(), Index: i}
	}
	return Result{Index: -1}
}
