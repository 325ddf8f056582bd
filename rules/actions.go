package rules

import (
	"fmt"
	"log/slog"

	"github.com/nstehr/vimy/vimy-terran/command"
	"github.com/nstehr/vimy/vimy-terran/model"
)

const (
	// Depots are re-lowered on this cadence so a depot raised by the
	// bridge's build runner does not stay up.
	lowerDepotsEvery = 16
	muleEnergy       = 50.0
	muleMineralRange = 10
)

// DefaultRules returns the macro housekeeping rules run after the
// coordinators each tick.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			Name:         "call-down-mule",
			Priority:     20,
			Category:     "orbital",
			Exclusive:    true,
			ConditionSrc: fmt.Sprintf("OrbitalsWithEnergy(%.1f) > 0", muleEnergy),
			Action:       ActionCalldownMULE,
		},
		{
			Name:         "lower-supply-depots",
			Priority:     10,
			Category:     "depot",
			Exclusive:    true,
			ConditionSrc: fmt.Sprintf(`DepotsRaised() > 0 && Since("lowerDepots") >= %d`, lowerDepotsEvery),
			Action:       ActionLowerDepots,
		},
	}
}

func ActionLowerDepots(env Env, orders command.Sink) error {
	depots := env.RaisedDepots()
	for _, d := range depots {
		orders.Issue(command.Use(d.Tag, model.AbilityLowerDepot))
	}
	env.Memory["lowerDepots"] = env.Tick
	slog.Debug("lowering supply depots", "count", len(depots))
	return nil
}

// ActionCalldownMULE drops a MULE from every orbital with enough energy
// onto the richest mineral field near it.
func ActionCalldownMULE(env Env, orders command.Sink) error {
	for _, oc := range env.Orbitals(muleEnergy) {
		var best *model.Unit
		for i := range env.State.Minerals {
			mf := &env.State.Minerals[i]
			if mf.Pos.Dist(oc.Pos) >= muleMineralRange {
				continue
			}
			if best == nil || mf.MineralContents > best.MineralContents {
				best = mf
			}
		}
		if best == nil {
			continue
		}
		slog.Debug("calling down mule", "orbital", oc.Tag, "mineral", best.Tag, "contents", best.MineralContents)
		orders.Issue(command.UseOn(oc.Tag, model.AbilityCalldownMULE, best.Tag))
	}
	return nil
}
