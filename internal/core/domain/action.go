package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionKind names the category of a logged action.
type ActionKind string

const (
	ActionCommand    ActionKind = "command"
	ActionTeleport   ActionKind = "teleport"
	ActionGameMode   ActionKind = "gamemode"
	ActionBlockBreak ActionKind = "block_break"
	ActionBlockPlace ActionKind = "block_place"
	ActionInteract   ActionKind = "interact"
	ActionAttack     ActionKind = "attack"
)

// BlockPosition is an integer block coordinate in a named world.
type BlockPosition struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

func (p BlockPosition) String() string {
	world := p.World
	if world == "" {
		world = "null"
	}
	return fmt.Sprintf("%s:%d,%d,%d", world, p.X, p.Y, p.Z)
}

// ActionDetail is the closed set of action payloads. Each variant renders a single log line.
type ActionDetail interface {
	Kind() ActionKind
	Label() string
	Details() string
	sealed()
}

// ActionEvent is one notable thing a principal did while elevated.
type ActionEvent struct {
	PrincipalID uuid.UUID
	DisplayName string
	At          time.Time
	Detail      ActionDetail
}

// Line renders the event as "Label: details".
func (e ActionEvent) Line() string {
	if e.Detail == nil {
		return ""
	}
	return e.Detail.Label() + ": " + e.Detail.Details()
}

// CommandAction records a command the principal issued.
type CommandAction struct {
	Command string
}

func (CommandAction) Kind() ActionKind  { return ActionCommand }
func (CommandAction) Label() string     { return "Command" }
func (a CommandAction) Details() string { return a.Command }
func (CommandAction) sealed()           {}

// TeleportAction records a position change.
type TeleportAction struct {
	From BlockPosition
	To   BlockPosition
}

func (TeleportAction) Kind() ActionKind { return ActionTeleport }
func (TeleportAction) Label() string    { return "Teleport" }
func (a TeleportAction) Details() string {
	return a.From.String() + " -> " + a.To.String()
}
func (TeleportAction) sealed() {}

// GameModeAction records a game mode switch.
type GameModeAction struct {
	Mode string
}

func (GameModeAction) Kind() ActionKind  { return ActionGameMode }
func (GameModeAction) Label() string     { return "GameMode" }
func (a GameModeAction) Details() string { return strings.ToUpper(a.Mode) }
func (GameModeAction) sealed()           {}

// BlockChangeAction records a block broken or placed.
type BlockChangeAction struct {
	Block  string
	At     BlockPosition
	Placed bool
}

func (a BlockChangeAction) Kind() ActionKind {
	if a.Placed {
		return ActionBlockPlace
	}
	return ActionBlockBreak
}

func (a BlockChangeAction) Label() string {
	if a.Placed {
		return "BlockPlace"
	}
	return "BlockBreak"
}

func (a BlockChangeAction) Details() string { return a.Block + " at " + a.At.String() }
func (BlockChangeAction) sealed()           {}

// InteractAction records a block interaction.
type InteractAction struct {
	Action string
	Block  string
	At     BlockPosition
}

func (InteractAction) Kind() ActionKind { return ActionInteract }
func (InteractAction) Label() string    { return "Interact" }
func (a InteractAction) Details() string {
	return a.Action + " " + a.Block + " at " + a.At.String()
}
func (InteractAction) sealed() {}

// AttackAction records damage dealt to an entity.
type AttackAction struct {
	Entity string
	Damage float64
}

func (AttackAction) Kind() ActionKind { return ActionAttack }
func (AttackAction) Label() string    { return "Attack" }
func (a AttackAction) Details() string {
	return a.Entity + " (" + formatDamage(a.Damage) + " damage)"
}
func (AttackAction) sealed() {}

// formatDamage always keeps one fractional digit so 4 renders as 4.0.
func formatDamage(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
