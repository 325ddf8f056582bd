package roles

import (
	"fmt"
	"strings"
)

// Role is a mutually exclusive tactical state held by one unit.
type Role int

const (
	None Role = iota
	Attacking
	Defending
	Scouting
	Gathering
	Harassing
	DropShip
	DropUnitsToLoad
	DropUnitsAttacking
)

var roleNames = [...]string{
	None:               "none",
	Attacking:          "attacking",
	Defending:          "defending",
	Scouting:           "scouting",
	Gathering:          "gathering",
	Harassing:          "harassing",
	DropShip:           "drop_ship",
	DropUnitsToLoad:    "drop_units_to_load",
	DropUnitsAttacking: "drop_units_attacking",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole maps a config-style name ("defending", "DropShip") to a Role.
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, name := range roleNames {
		if norm == name || norm == strings.ReplaceAll(name, "_", "") {
			return Role(i), nil
		}
	}
	return None, fmt.Errorf("unknown role %q", s)
}
