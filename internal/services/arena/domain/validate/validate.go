// Package validate holds the pure legality checks and the timeout resolver.
//
// Nothing in this package mutates battle state. The engine uses Default when
// a battle is configured without its own validator.
package validate

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

// NoClaim is passed as the claimed mon when no partner slot reserved one.
const NoClaim = -1

// Default is the built-in validator.
type Default struct{}

var _ battle.Validator = Default{}

// ValidatePlayerMove implements battle.Validator.
func (Default) ValidatePlayerMove(v battle.View, player, slot int, d battle.Decision, claimed int) bool {
	return PlayerMove(v, player, slot, d, claimed)
}

// ValidateSwitch implements battle.Validator.
func (Default) ValidateSwitch(v battle.View, player, slot, mon, claimed int) bool {
	return Switch(v, player, slot, mon, claimed)
}

// ValidateMoveSelection implements battle.Validator.
func (Default) ValidateMoveSelection(v battle.View, player, mon int, moveIndex uint8, extra uint16) bool {
	return MoveSelection(v, player, mon, moveIndex, extra)
}

// ValidateTimeout implements battle.Validator.
func (Default) ValidateTimeout(c battle.Clock) (int, bool) {
	return Timeout(c)
}

// PlayerMove checks a decision's basic shape for one (player, slot).
//
// On turn zero, or when the slot's active mon is knocked out, only a switch is
// accepted. A knocked-out slot with nothing left to switch to may pass.
func PlayerMove(v battle.View, player, slot int, d battle.Decision, claimed int) bool {
	if player < 0 || player > 1 || slot < 0 || slot >= v.Mode().Slots() {
		return false
	}
	if !d.IsSwitch() && !d.IsNoOp() && int(d.MoveIndex) >= battle.MovesPerMon {
		return false
	}
	mon := v.Active().Mon(player, slot)
	mustSwitch := v.Turn() == 0 || v.MonState(player, mon).KnockedOut
	if mustSwitch {
		if d.IsSwitch() {
			return Switch(v, player, slot, int(d.Extra), claimed)
		}
		return d.IsNoOp() && v.Turn() > 0 && !CanSwitch(v, player, slot, claimed)
	}
	switch {
	case d.IsNoOp():
		return true
	case d.IsSwitch():
		return Switch(v, player, slot, int(d.Extra), claimed)
	default:
		return MoveSelection(v, player, mon, d.MoveIndex, d.Extra)
	}
}

// Switch checks that mon may become the active mon of (player, slot).
//
// The target must exist, be conscious, differ from the mon already in the
// slot (after turn zero), differ from the partner slot's active mon in
// doubles, and differ from the mon the partner slot claimed this turn.
func Switch(v battle.View, player, slot, mon, claimed int) bool {
	if mon < 0 || mon >= v.TeamSize(player) {
		return false
	}
	if v.MonState(player, mon).KnockedOut {
		return false
	}
	if claimed != NoClaim && mon == claimed {
		return false
	}
	if v.Turn() == 0 {
		return true
	}
	active := v.Active()
	if mon == active.Mon(player, slot) {
		return false
	}
	if v.Mode() == battle.ModeDoubles && mon == active.Mon(player, 1-slot) {
		return false
	}
	return true
}

// CanSwitch reports whether any legal switch target exists for the slot.
func CanSwitch(v battle.View, player, slot, claimed int) bool {
	for mon := 0; mon < v.TeamSize(player); mon++ {
		if Switch(v, player, slot, mon, claimed) {
			return true
		}
	}
	return false
}

// MoveSelection checks stamina and any move-specific disable rule.
func MoveSelection(v battle.View, player, mon int, moveIndex uint8, extra uint16) bool {
	slot := v.Slot(player, mon)
	if int(moveIndex) >= len(slot.Moves) || slot.Moves[moveIndex] == nil {
		return false
	}
	move := slot.Moves[moveIndex]
	cost := int64(move.StaminaCost(v, player, mon))
	if v.StatValue(player, mon, battle.StatStamina) < cost {
		return false
	}
	if tc, ok := move.(battle.TargetChecker); ok && !tc.IsValidTarget(v, player, extra) {
		return false
	}
	return true
}
