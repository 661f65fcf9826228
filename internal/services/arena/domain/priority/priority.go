// Package priority orders actors within a turn.
//
// Actors compare by priority tier (descending), then effective speed
// (descending). Exact ties between the two players are broken by the low bit
// of the turn's random value: 0 favours player0, 1 favours player1. Within
// one player in doubles, slot 0 precedes slot 1 on a tie.
package priority

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

// Actor is one (player, slot) with its resolved tier and speed.
type Actor struct {
	Player int
	Slot   int
	Mon    int
	Tier   int
	Speed  int64
}

// Tier returns the priority tier of a decision made by player's mon.
func Tier(v battle.View, player, mon int, d battle.Decision) int {
	if d.IsSwitch() || d.IsNoOp() {
		return battle.SwitchPriority
	}
	slot := v.Slot(player, mon)
	if int(d.MoveIndex) >= len(slot.Moves) || slot.Moves[d.MoveIndex] == nil {
		return battle.DefaultPriority
	}
	return slot.Moves[d.MoveIndex].Priority(v, player)
}

// Speed returns base speed plus the unclamped accumulated speed delta.
func Speed(v battle.View, player, mon int) int64 {
	return v.StatValue(player, mon, battle.StatSpeed)
}

// NewActor resolves tier and speed for one actor.
func NewActor(v battle.View, player, slot int, d battle.Decision) Actor {
	mon := v.Active().Mon(player, slot)
	return Actor{
		Player: player,
		Slot:   slot,
		Mon:    mon,
		Tier:   Tier(v, player, mon, d),
		Speed:  Speed(v, player, mon),
	}
}

// First returns the player index that acts first between a and b.
func First(a, b Actor, rng uint64) int {
	if before(a, b, rng) {
		return a.Player
	}
	return b.Player
}

// Order sorts actors into acting order with an adjacent-swap sort. The input
// is expected in player0-slot0, player0-slot1, player1-slot0, player1-slot1
// order and is not modified.
func Order(actors []Actor, rng uint64) []Actor {
	out := append([]Actor(nil), actors...)
	for i := 0; i < len(out); i++ {
		for j := 0; j < len(out)-1-i; j++ {
			if before(out[j+1], out[j], rng) {
				out[j], out[j+1] = out[j+1], out[j]
			}
		}
	}
	return out
}

// before reports whether a strictly precedes b.
func before(a, b Actor, rng uint64) bool {
	if a.Tier != b.Tier {
		return a.Tier > b.Tier
	}
	if a.Speed != b.Speed {
		return a.Speed > b.Speed
	}
	if a.Player == b.Player {
		return a.Slot < b.Slot
	}
	favoured := int(rng & 1)
	return a.Player == favoured
}
