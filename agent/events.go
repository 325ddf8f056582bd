package agent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nstehr/vimy/vimy-terran/model"
)

// EventKind identifies something that changed between two consecutive
// snapshots.
type EventKind string

const (
	EventUnitCreated     EventKind = "unit_created"
	EventUnitDestroyed   EventKind = "unit_destroyed"
	EventFirstContact    EventKind = "first_contact"
	EventBaseUnderAttack EventKind = "base_under_attack"
)

// Event is a significant change detected by diffing consecutive game
// states. Unit events carry the tag; the rest describe the situation.
type Event struct {
	Kind   EventKind
	Tick   int
	Tag    uint64
	Type   model.UnitType
	Detail string
}

// stateSnapshot captures the diffable fields from a game state tick.
// The agent stores one and compares against the next tick.
type stateSnapshot struct {
	own         map[uint64]model.UnitType // tag → type for own units and structures
	enemiesSeen bool
	attacked    map[uint64]bool // townhalls with enemies near them
}

// takeSnapshot records the current state for next tick's comparison.
// Carried units stay in the own set so boarding a medivac is not a death.
func takeSnapshot(gs *model.GameState, baseEnemies map[uint64][]model.Unit, prev *stateSnapshot) stateSnapshot {
	s := stateSnapshot{
		own:         make(map[uint64]model.UnitType, len(gs.Units)),
		enemiesSeen: len(gs.Enemies) > 0,
		attacked:    make(map[uint64]bool, len(baseEnemies)),
	}
	for _, u := range gs.Units {
		s.own[u.Tag] = u.Type
		for _, p := range u.Passengers {
			if _, ok := s.own[p]; !ok {
				var t model.UnitType
				if prev != nil {
					t = prev.own[p]
				}
				s.own[p] = t
			}
		}
	}
	for th := range baseEnemies {
		s.attacked[th] = true
	}
	return s
}

// detectEvents compares gs against the previous snapshot. With no previous
// snapshot every own unit counts as created, so the first tick hands out
// initial roles. Events come out in a stable order: created and destroyed
// by tag, then contact, then bases by tag. The returned snapshot is the
// baseline for the next tick.
func detectEvents(gs *model.GameState, baseEnemies map[uint64][]model.Unit, prev *stateSnapshot) ([]Event, stateSnapshot) {
	cur := takeSnapshot(gs, baseEnemies, prev)
	var before stateSnapshot
	if prev != nil {
		before = *prev
	}

	var events []Event
	for _, u := range gs.Units {
		if _, ok := before.own[u.Tag]; !ok {
			events = append(events, Event{Kind: EventUnitCreated, Tick: gs.Tick, Tag: u.Tag, Type: u.Type})
		}
	}

	var lost []uint64
	for tag := range before.own {
		if _, ok := cur.own[tag]; !ok {
			lost = append(lost, tag)
		}
	}
	slices.Sort(lost)
	for _, tag := range lost {
		events = append(events, Event{Kind: EventUnitDestroyed, Tick: gs.Tick, Tag: tag, Type: before.own[tag]})
	}

	if cur.enemiesSeen && !before.enemiesSeen && prev != nil {
		events = append(events, Event{Kind: EventFirstContact, Tick: gs.Tick, Detail: enemySummary(gs.Enemies)})
	}

	var bases []uint64
	for th := range baseEnemies {
		if !before.attacked[th] {
			bases = append(bases, th)
		}
	}
	slices.Sort(bases)
	for _, th := range bases {
		events = append(events, Event{
			Kind:   EventBaseUnderAttack,
			Tick:   gs.Tick,
			Tag:    th,
			Detail: enemySummary(baseEnemies[th]),
		})
	}
	return events, cur
}

// enemySummary renders a unit list as "2x Zergling, 1x Queen", largest
// group first.
func enemySummary(units []model.Unit) string {
	counts := make(map[model.UnitType]int)
	for _, u := range units {
		counts[u.Type]++
	}
	types := make([]model.UnitType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b model.UnitType) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(string(a), string(b))
	})
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%dx %s", counts[t], t)
	}
	return strings.Join(parts, ", ")
}
