package minedrop

import (
	"slices"

	"github.com/nstehr/vimy/vimy-terran/model"
)

// Handle identifies a tracker in the coordinator's arena. Handles are never
// reused within a game.
type Handle int

// Tracker pairs one transport with the cargo it ferries. Trackers are
// values: transitions return a new Tracker instead of mutating in place.
type Tracker struct {
	Handle    Handle
	Transport uint64
	Cargo     []uint64 // sorted
	Target    model.Point
}

func newTracker(h Handle, transport uint64, cargo []uint64, target model.Point) Tracker {
	c := slices.Clone(cargo)
	slices.Sort(c)
	return Tracker{Handle: h, Transport: transport, Cargo: slices.Compact(c), Target: target}
}

func (t Tracker) Has(tag uint64) bool {
	_, ok := slices.BinarySearch(t.Cargo, tag)
	return ok
}

// withLiveCargo returns t with dead cargo removed.
func (t Tracker) withLiveCargo(alive func(uint64) bool) Tracker {
	live := make([]uint64, 0, len(t.Cargo))
	for _, tag := range t.Cargo {
		if alive(tag) {
			live = append(live, tag)
		}
	}
	t.Cargo = live
	return t
}

// Outcome is the result of reconciling a tracker against the current tick.
type Outcome int

const (
	Keep Outcome = iota
	TransportLost          // transport died; cargo goes to the fallback role
	CargoExhausted         // transport empty and no live cargo left; transport goes to the fallback role
	ForcedEject            // transport too damaged; it is released and cargo fights on
)

func (o Outcome) String() string {
	switch o {
	case Keep:
		return "keep"
	case TransportLost:
		return "transport_lost"
	case CargoExhausted:
		return "cargo_exhausted"
	case ForcedEject:
		return "forced_eject"
	}
	return "unknown"
}

// reconcile decides a tracker's fate. transport is the transport's current
// snapshot, ok false when it no longer exists.
func reconcile(t Tracker, transport model.Unit, ok bool, alive func(uint64) bool, minHealth float64) (Tracker, Outcome) {
	t = t.withLiveCargo(alive)
	switch {
	case !ok:
		return t, TransportLost
	case transport.HealthFraction() < minHealth:
		return t, ForcedEject
	case transport.HasCargo():
		return t, Keep
	case len(t.Cargo) == 0:
		return t, CargoExhausted
	}
	return t, Keep
}

// Readiness looks up the tick at which a unit's weapon is ready.
type Readiness func(tag uint64) (int, bool)

// canDrop reports whether every carried unit's weapon will be ready within
// lookahead ticks of now. A transport with no cargo is never ready. Units
// with no readiness entry do not hold the drop back.
func canDrop(transport model.Unit, now, lookahead int, ready Readiness) bool {
	if !transport.HasCargo() {
		return false
	}
	for _, tag := range transport.Passengers {
		at, ok := ready(tag)
		if !ok {
			continue
		}
		if now < at-lookahead {
			return false
		}
	}
	return true
}
