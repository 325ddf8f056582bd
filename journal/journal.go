// Package journal records what the agent decided, per session and per tick,
// for offline review. Writers never block the tick pipeline for long.
package journal

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nstehr/vimy/vimy-terran/command"
)

type Session struct {
	ID        string    `json:"id"`
	Player    string    `json:"player"`
	Race      string    `json:"race"`
	EnemyRace string    `json:"enemyRace"`
	Map       string    `json:"map"`
	Opening   string    `json:"opening,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

type RoleChange struct {
	Tag  uint64 `json:"tag"`
	From string `json:"from"`
	To   string `json:"to"`
}

type Event struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Tick is everything decided during one game_state.
type Tick struct {
	Session     string            `json:"session"`
	Tick        int               `json:"tick"`
	DurationMS  float64           `json:"durationMs"`
	Commands    []command.Command `json:"commands"`
	RoleChanges []RoleChange      `json:"roleChanges,omitempty"`
	Events      []Event           `json:"events,omitempty"`
	Rules       []string          `json:"rules,omitempty"`
	Roles       map[string]int    `json:"roles,omitempty"`
	Violation   string            `json:"violation,omitempty"`
}

type End struct {
	Session string    `json:"session"`
	Result  string    `json:"result"`
	Tick    int       `json:"tick"`
	EndedAt time.Time `json:"endedAt"`
}

type Sink interface {
	StartSession(s Session) error
	RecordTick(t Tick) error
	EndSession(e End) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) StartSession(Session) error { return nil }
func (Nop) RecordTick(Tick) error      { return nil }
func (Nop) EndSession(End) error       { return nil }
func (Nop) Close() error               { return nil }

// Multi fans every record out to each sink and joins their errors.
type Multi []Sink

func (m Multi) StartSession(s Session) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.StartSession(s))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordTick(t Tick) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.RecordTick(t))
	}
	return errors.Join(errs...)
}

func (m Multi) EndSession(e End) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.EndSession(e))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}

// Open builds the configured sinks under dir. With neither enabled it
// returns Nop.
func Open(dir string, useSQLite, useJSONL bool, queue int) (Sink, error) {
	var sinks Multi
	if useSQLite {
		db, err := OpenSQLite(filepath.Join(dir, "journal.db"), queue)
		if err != nil {
			return nil, fmt.Errorf("open journal db: %w", err)
		}
		sinks = append(sinks, db)
	}
	if useJSONL {
		sinks = append(sinks, NewJSONL(filepath.Join(dir, "sessions")))
	}
	switch len(sinks) {
	case 0:
		return Nop{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}
