package agent

import (
	"testing"

	"github.com/nstehr/vimy/vimy-terran/model"
)

// baseGameState returns a minimal game state for testing.
func baseGameState(tick int) *model.GameState {
	return &model.GameState{
		Tick:          tick,
		StartLocation: model.Point{X: 30, Y: 30},
		Units: []model.Unit{
			{Tag: 1, Type: model.CommandCenter, Pos: model.Point{X: 30, Y: 30}, IsStructure: true},
			{Tag: 10, Type: model.SCV, Pos: model.Point{X: 33, Y: 30}},
			{Tag: 11, Type: model.Marine, Pos: model.Point{X: 40, Y: 40}},
			{Tag: 12, Type: model.Medivac, Pos: model.Point{X: 42, Y: 40}, IsFlying: true},
		},
	}
}

func kinds(events []Event) map[EventKind]int {
	out := make(map[EventKind]int)
	for _, e := range events {
		out[e.Kind]++
	}
	return out
}

func TestDetectEvents_NilPrevCreatesEverything(t *testing.T) {
	gs := baseGameState(1)
	events, _ := detectEvents(gs, nil, nil)
	got := kinds(events)
	if got[EventUnitCreated] != 4 || len(got) != 1 {
		t.Errorf("events = %+v, want 4 created only", events)
	}
}

func TestDetectEvents_NoEvents(t *testing.T) {
	gs := baseGameState(100)
	_, prev := detectEvents(gs, nil, nil)

	gs.Tick = 101
	events, _ := detectEvents(gs, nil, &prev)
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d: %+v", len(events), events)
	}
}

func TestDetectEvents_CreatedAndDestroyed(t *testing.T) {
	gs := baseGameState(100)
	_, prev := detectEvents(gs, nil, nil)

	gs.Tick = 101
	gs.Units = append(gs.Units[:2:2], model.Unit{Tag: 13, Type: model.WidowMine}, gs.Units[3])
	events, _ := detectEvents(gs, nil, &prev)
	if len(events) != 2 {
		t.Fatalf("events = %+v, want one created and one destroyed", events)
	}
	if events[0].Kind != EventUnitCreated || events[0].Tag != 13 || events[0].Type != model.WidowMine {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Kind != EventUnitDestroyed || events[1].Tag != 11 || events[1].Type != model.Marine {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestDetectEvents_BoardingIsNotDeath(t *testing.T) {
	gs := baseGameState(100)
	_, prev := detectEvents(gs, nil, nil)

	// The marine boards the medivac.
	gs.Tick = 101
	gs.Units = []model.Unit{gs.Units[0], gs.Units[1], gs.Units[3]}
	gs.Units[2].Passengers = []uint64{11}
	events, snap := detectEvents(gs, nil, &prev)
	if len(events) != 0 {
		t.Fatalf("boarding produced events: %+v", events)
	}

	// It dies inside; its type survives from before boarding.
	gs.Tick = 102
	gs.Units[2].Passengers = nil
	events, _ = detectEvents(gs, nil, &snap)
	if len(events) != 1 || events[0].Kind != EventUnitDestroyed || events[0].Type != model.Marine {
		t.Errorf("events = %+v, want the marine destroyed", events)
	}
}

func TestDetectEvents_FirstContactOnce(t *testing.T) {
	gs := baseGameState(100)
	_, prev := detectEvents(gs, nil, nil)

	gs.Tick = 101
	gs.Enemies = []model.Unit{
		{Tag: 90, Type: model.Zergling},
		{Tag: 91, Type: model.Zergling},
		{Tag: 92, Type: "Queen"},
	}
	events, snap := detectEvents(gs, nil, &prev)
	if len(events) != 1 || events[0].Kind != EventFirstContact {
		t.Fatalf("events = %+v, want first contact", events)
	}
	if events[0].Detail != "2x Zergling, 1x Queen" {
		t.Errorf("detail = %q", events[0].Detail)
	}

	gs.Tick = 102
	if events, _ := detectEvents(gs, nil, &snap); len(events) != 0 {
		t.Errorf("contact repeated: %+v", events)
	}
}

func TestDetectEvents_BaseUnderAttack(t *testing.T) {
	gs := baseGameState(100)
	_, prev := detectEvents(gs, nil, nil)

	near := map[uint64][]model.Unit{1: {{Tag: 90, Type: model.Zealot}}}
	gs.Enemies = near[1]
	gs.Tick = 101
	events, snap := detectEvents(gs, near, &prev)
	got := kinds(events)
	if got[EventBaseUnderAttack] != 1 {
		t.Fatalf("events = %+v, want base under attack", events)
	}

	gs.Tick = 102
	events, snap = detectEvents(gs, near, &snap)
	if kinds(events)[EventBaseUnderAttack] != 0 {
		t.Errorf("attack reported twice: %+v", events)
	}

	// Cleared, then attacked again.
	gs.Tick = 103
	_, snap = detectEvents(gs, nil, &snap)
	gs.Tick = 104
	events, _ = detectEvents(gs, near, &snap)
	if kinds(events)[EventBaseUnderAttack] != 1 {
		t.Errorf("second attack not reported: %+v", events)
	}
}
