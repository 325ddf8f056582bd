// Package command is the command-emission interface: coordinators and
// behaviors issue fire-and-forget unit orders into a Sink, and the agent
// ships the tick's orders to the bridge in one batch.
package command

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-terran/model"
)

// TargetKind says which target field of a Command is meaningful.
type TargetKind string

const (
	TargetNone  TargetKind = "none"
	TargetPoint TargetKind = "point"
	TargetUnit  TargetKind = "unit"
)

// Command is one order for one unit.
type Command struct {
	Unit      uint64        `json:"unit"`
	Ability   model.Ability `json:"ability"`
	Kind      TargetKind    `json:"kind"`
	Point     model.Point   `json:"point,omitempty"`
	TargetTag uint64        `json:"targetTag,omitempty"`
	Queue     bool          `json:"queue,omitempty"`
}

func (c Command) String() string {
	switch c.Kind {
	case TargetPoint:
		return fmt.Sprintf("%d %s (%.1f, %.1f)", c.Unit, c.Ability, c.Point.X, c.Point.Y)
	case TargetUnit:
		return fmt.Sprintf("%d %s -> %d", c.Unit, c.Ability, c.TargetTag)
	}
	return fmt.Sprintf("%d %s", c.Unit, c.Ability)
}

func Move(unit uint64, p model.Point) Command {
	return UseAt(unit, model.AbilityMove, p)
}

// Attack is an attack-move toward p.
func Attack(unit uint64, p model.Point) Command {
	return UseAt(unit, model.AbilityAttack, p)
}

func AttackUnit(unit, target uint64) Command {
	return UseOn(unit, model.AbilityAttack, target)
}

func Use(unit uint64, a model.Ability) Command {
	return Command{Unit: unit, Ability: a, Kind: TargetNone}
}

func UseAt(unit uint64, a model.Ability, p model.Point) Command {
	return Command{Unit: unit, Ability: a, Kind: TargetPoint, Point: p}
}

func UseOn(unit uint64, a model.Ability, target uint64) Command {
	return Command{Unit: unit, Ability: a, Kind: TargetUnit, TargetTag: target}
}

// Load orders a transport to pick up cargo.
func Load(transport, cargo uint64) Command {
	return UseOn(transport, model.AbilityLoad, cargo)
}

// UnloadAt orders a transport to drop all cargo at p.
func UnloadAt(transport uint64, p model.Point) Command {
	return UseAt(transport, model.AbilityUnloadAllAt, p)
}

func Gather(worker, mineral uint64) Command {
	return UseOn(worker, model.AbilityGather, mineral)
}

// Queued returns c marked to run after the unit's current orders.
func (c Command) Queued() Command {
	c.Queue = true
	return c
}

// Sink accepts commands. Issuing never blocks and never fails; the game
// decides whether the order is legal.
type Sink interface {
	Issue(c Command)
}

// Buffer collects a tick's commands in issue order.
type Buffer struct {
	cmds []Command
}

func (b *Buffer) Issue(c Command) { b.cmds = append(b.cmds, c) }

func (b *Buffer) Len() int { return len(b.cmds) }

// Drain returns the buffered commands and resets the buffer.
func (b *Buffer) Drain() []Command {
	out := b.cmds
	b.cmds = nil
	return out
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Command)

func (f SinkFunc) Issue(c Command) { f(c) }

// Tee issues every command to each sink in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(c Command) {
		for _, s := range sinks {
			s.Issue(c)
		}
	})
}
