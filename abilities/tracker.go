// Package abilities tracks when unit abilities come off cooldown. The
// snapshot only says whether an ability is castable right now; the tracker
// remembers the tick it will next be ready so callers can plan ahead.
package abilities

import "github.com/nstehr/vimy/vimy-terran/model"

// Cooldowns resolves an ability's cooldown in game loops.
type Cooldowns interface {
	Cooldown(a model.Ability) int
}

type Tracker struct {
	cooldowns Cooldowns
	ready     map[uint64]map[model.Ability]int
}

func NewTracker(cooldowns Cooldowns) *Tracker {
	return &Tracker{
		cooldowns: cooldowns,
		ready:     make(map[uint64]map[model.Ability]int),
	}
}

// Record notes that ability a on unit tag becomes ready at tick readyAt.
func (t *Tracker) Record(tag uint64, a model.Ability, readyAt int) {
	m, ok := t.ready[tag]
	if !ok {
		m = make(map[model.Ability]int)
		t.ready[tag] = m
	}
	m[a] = readyAt
}

// Started notes that a was used at tick now; it becomes ready again after
// its cooldown.
func (t *Tracker) Started(tag uint64, a model.Ability, now int) {
	t.Record(tag, a, now+t.cooldowns.Cooldown(a))
}

// ReadyAt returns the tick at which a becomes ready on tag.
func (t *Tracker) ReadyAt(tag uint64, a model.Ability) (int, bool) {
	m, ok := t.ready[tag]
	if !ok {
		return 0, false
	}
	at, ok := m[a]
	return at, ok
}

// Tracked reports whether tag has any recorded ability.
func (t *Tracker) Tracked(tag uint64) bool {
	_, ok := t.ready[tag]
	return ok
}

// Forget drops every entry for tag, typically on death.
func (t *Tracker) Forget(tag uint64) { delete(t.ready, tag) }
