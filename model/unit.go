package model

import "math"

// Unit is one own or enemy unit, structure or resource in a snapshot.
type Unit struct {
	Tag             uint64    `json:"tag"`
	Type            UnitType  `json:"type"`
	Pos             Point     `json:"pos"`
	Facing          float64   `json:"facing"`
	Radius          float64   `json:"radius"`
	Health          float64   `json:"health"`
	HealthMax       float64   `json:"healthMax"`
	Energy          float64   `json:"energy"`
	Supply          float64   `json:"supply"`
	BuildProgress   float64   `json:"buildProgress"`
	WeaponCooldown  float64   `json:"weaponCooldown"`
	IsFlying        bool      `json:"isFlying"`
	IsStructure     bool      `json:"isStructure"`
	IsBurrowed      bool      `json:"isBurrowed"`
	IsVisible       bool      `json:"isVisible"`
	IsMoving        bool      `json:"isMoving"`
	Idle            bool      `json:"idle"`
	OrderCount      int       `json:"orderCount"`
	CargoUsed       int       `json:"cargoUsed"`
	CargoMax        int       `json:"cargoMax"`
	Passengers      []uint64  `json:"passengers"`
	Abilities       []Ability `json:"abilities"`
	MineralContents int       `json:"mineralContents"`
}

// HealthFraction is current health over maximum health; zero when the
// maximum is unknown.
func (u Unit) HealthFraction() float64 {
	if u.HealthMax <= 0 {
		return 0
	}
	return u.Health / u.HealthMax
}

func (u Unit) HasCargo() bool { return u.CargoUsed > 0 || len(u.Passengers) > 0 }

func (u Unit) HasAbility(a Ability) bool {
	for _, have := range u.Abilities {
		if have == a {
			return true
		}
	}
	return false
}

// WeaponReady reports whether the unit can fire this loop.
func (u Unit) WeaponReady() bool { return u.WeaponCooldown <= 0 }

// facingTolerance is the angular error, in radians, within which a unit
// counts as facing a point.
const facingTolerance = 0.3

// IsFacing reports whether the unit is oriented toward p.
func (u Unit) IsFacing(p Point) bool {
	if u.Pos == p {
		return true
	}
	want := math.Atan2(p.Y-u.Pos.Y, p.X-u.Pos.X)
	diff := math.Mod(math.Abs(want-u.Facing), 2*math.Pi)
	if diff > math.Pi {
		diff = 2*math.Pi - diff
	}
	return diff <= facingTolerance
}

// Closest returns the unit nearest to p.
func Closest(units []Unit, p Point) (Unit, bool) {
	if len(units) == 0 {
		return Unit{}, false
	}
	best, bestD := units[0], units[0].Pos.DistSq(p)
	for _, u := range units[1:] {
		if d := u.Pos.DistSq(p); d < bestD {
			best, bestD = u, d
		}
	}
	return best, true
}

// UnitsCentroid returns the centroid of the units' positions.
func UnitsCentroid(units []Unit) Point {
	pts := make([]Point, len(units))
	for i, u := range units {
		pts[i] = u.Pos
	}
	return Centroid(pts)
}

// Tags extracts unit tags preserving order.
func Tags(units []Unit) []uint64 {
	out := make([]uint64, len(units))
	for i, u := range units {
		out[i] = u.Tag
	}
	return out
}

// OfType filters units to the given types.
func OfType(units []Unit, types ...UnitType) []Unit {
	var out []Unit
	for _, u := range units {
		for _, t := range types {
			if u.Type == t {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// UnitType is the game's unit type name, e.g. "WidowMine".
type UnitType string

const (
	SCV                UnitType = "SCV"
	MULE               UnitType = "MULE"
	Marine             UnitType = "Marine"
	Marauder           UnitType = "Marauder"
	Reaper             UnitType = "Reaper"
	Hellion            UnitType = "Hellion"
	WidowMine          UnitType = "WidowMine"
	WidowMineBurrowed  UnitType = "WidowMineBurrowed"
	SiegeTank          UnitType = "SiegeTank"
	SiegeTankSieged    UnitType = "SiegeTankSieged"
	Cyclone            UnitType = "Cyclone"
	Medivac            UnitType = "Medivac"
	VikingFighter      UnitType = "VikingFighter"
	Raven              UnitType = "Raven"
	CommandCenter      UnitType = "CommandCenter"
	OrbitalCommand     UnitType = "OrbitalCommand"
	PlanetaryFortress  UnitType = "PlanetaryFortress"
	SupplyDepot        UnitType = "SupplyDepot"
	SupplyDepotLowered UnitType = "SupplyDepotLowered"

	Drone    UnitType = "Drone"
	Probe    UnitType = "Probe"
	Zealot   UnitType = "Zealot"
	Zergling UnitType = "Zergling"
)

// IsTownhall reports whether t is a command center in any form.
func (t UnitType) IsTownhall() bool {
	switch t {
	case CommandCenter, OrbitalCommand, PlanetaryFortress:
		return true
	}
	return false
}

// Ability names match the bridge's ability identifiers.
type Ability string

const (
	AbilityMove         Ability = "MOVE"
	AbilityAttack       Ability = "ATTACK"
	AbilityStop         Ability = "STOP"
	AbilityGather       Ability = "HARVEST_GATHER"
	AbilityLoad         Ability = "LOAD"
	AbilityUnloadAllAt  Ability = "UNLOADALLAT"
	AbilityKD8Charge    Ability = "KD8CHARGE"
	AbilityMineAttack   Ability = "WIDOWMINEATTACK"
	AbilityBurrowDown   Ability = "BURROWDOWN_WIDOWMINE"
	AbilityBurrowUp     Ability = "BURROWUP_WIDOWMINE"
	AbilityAfterburners Ability = "EFFECT_MEDIVACIGNITEAFTERBURNERS"
	AbilitySiegeMode    Ability = "SIEGEMODE_SIEGEMODE"
	AbilityUnsiege      Ability = "UNSIEGE_UNSIEGE"
	AbilityCalldownMULE Ability = "CALLDOWNMULE_CALLDOWNMULE"
	AbilityLowerDepot   Ability = "MORPH_SUPPLYDEPOT_LOWER"
)
