package domain

import (
	"fmt"
	"slices"
)

// Item is one occupied slot of a container. Data is the bridge's opaque base64 item encoding.
type Item struct {
	Slot int    `json:"slot"`
	Data string `json:"data"`
}

// Location is a position in a named world.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// String renders the block position as world:x,y,z.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d,%d,%d", l.World, int(l.X), int(l.Y), int(l.Z))
}

// Snapshot captures the principal's state at session start so it can be restored afterwards.
type Snapshot struct {
	Inventory      []Item    `json:"inventory,omitempty"`
	Armor          []Item    `json:"armor,omitempty"`
	EnderChest     []Item    `json:"ender_chest,omitempty"`
	GameMode       string    `json:"game_mode,omitempty"`
	Location       *Location `json:"location,omitempty"`
	Health         float64   `json:"health"`
	FoodLevel      int       `json:"food_level"`
	Exp            float32   `json:"exp"`
	Level          int       `json:"level"`
	OriginalGroups []string  `json:"original_groups,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Inventory = slices.Clone(s.Inventory)
	out.Armor = slices.Clone(s.Armor)
	out.EnderChest = slices.Clone(s.EnderChest)
	out.OriginalGroups = slices.Clone(s.OriginalGroups)
	if s.Location != nil {
		loc := *s.Location
		out.Location = &loc
	}
	return out
}

// Baseline is the neutral state a principal is reset to when a session starts.
type Baseline struct {
	Health    float64 `json:"health"`
	FoodLevel int     `json:"food_level"`
	Exp       float32 `json:"exp"`
	Level     int     `json:"level"`
}

// DefaultBaseline clears items and experience and refills health and food.
func DefaultBaseline() Baseline {
	return Baseline{Health: 20, FoodLevel: 20}
}

// RestoreTarget is the state pushed back to the principal when a session ends.
type RestoreTarget struct {
	Snapshot Snapshot `json:"snapshot"`
	// SkipLocation is set when the saved world no longer exists.
	SkipLocation bool `json:"skip_location"`
}

// ClampHealth bounds the saved health to the principal's current maximum.
func ClampHealth(saved, max float64) float64 {
	if max > 0 && saved > max {
		return max
	}
	if saved < 0 {
		return 0
	}
	return saved
}
