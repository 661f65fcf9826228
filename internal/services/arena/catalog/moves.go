package catalog

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

type moveBase struct {
	name     string
	priority int
	stamina  int32
}

func (m moveBase) Name() string { return m.name }
func (m moveBase) Priority(battle.View, int) int { return m.priority }
func (m moveBase) StaminaCost(battle.View, int, int) int32 { return m.stamina }

// Strike deals power scaled by attack over defense, at least 1.
type Strike struct {
	moveBase
	Power int32
}

// Execute implements battle.Move.
func (m Strike) Execute(e battle.Engine, player, mon, target int, _ uint16, _ uint64) {
	e.DealDamage(1-player, target, damage(e, player, mon, target, m.Power))
}

func damage(v battle.View, player, mon, target int, power int32) int32 {
	atk := v.StatValue(player, mon, battle.StatAttack)
	def := v.StatValue(1-player, target, battle.StatDefense)
	if atk < 1 {
		atk = 1
	}
	if def < 1 {
		def = 1
	}
	dmg := int64(power) * atk / def
	if dmg < 1 {
		return 1
	}
	if dmg > 1<<30 {
		return 1 << 30
	}
	return int32(dmg)
}

// Recover restores spent stamina, never above the base value.
type Recover struct {
	moveBase
	Amount int32
}

// Execute implements battle.Move.
func (m Recover) Execute(e battle.Engine, player, mon, _ int, _ uint16, _ uint64) {
	spent := -e.MonState(player, mon).Delta(battle.StatStamina)
	if spent <= 0 {
		return
	}
	e.UpdateMonState(player, mon, battle.StatStamina, min(m.Amount, spent))
}

// Ignite deals damage and burns the target unless it is already burning.
type Ignite struct {
	moveBase
	Power int32
	Burn  uint64
}

// Execute implements battle.Move.
func (m Ignite) Execute(e battle.Engine, player, mon, target int, _ uint16, _ uint64) {
	opp := 1 - player
	if m.Power > 0 {
		e.DealDamage(opp, target, damage(e, player, mon, target, m.Power))
	}
	scope := battle.MonTarget(opp, target)
	for _, a := range e.Effects(scope) {
		if a.Effect.Name() == burnName {
			return
		}
	}
	e.AddEffect(scope, Burn{}, m.Burn)
}

// Withdraw forces the targeted opposing slot to switch to its first
// available bench mon.
type Withdraw struct {
	moveBase
}

// Execute implements battle.Move.
func (m Withdraw) Execute(e battle.Engine, player, _, _ int, extra uint16, _ uint64) {
	opp := 1 - player
	slot := targetSlot(e, extra)
	if bench, ok := benchMon(e, opp); ok {
		e.SwitchActiveMon(opp, slot, bench)
	}
}

// IsValidTarget implements battle.TargetChecker: the opponent must have a
// mon to bring in.
func (m Withdraw) IsValidTarget(v battle.View, player int, _ uint16) bool {
	_, ok := benchMon(v, 1-player)
	return ok
}

func targetSlot(v battle.View, extra uint16) int {
	if v.Mode() == battle.ModeDoubles {
		return int(extra & 1)
	}
	return 0
}

func benchMon(v battle.View, player int) (int, bool) {
	active := v.Active()
	for m := 0; m < v.TeamSize(player); m++ {
		if v.MonState(player, m).KnockedOut {
			continue
		}
		if m == active.Mon(player, 0) {
			continue
		}
		if v.Mode() == battle.ModeDoubles && m == active.Mon(player, 1) {
			continue
		}
		return m, true
	}
	return 0, false
}
