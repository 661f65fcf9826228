package catalog

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

const burnName = "burn"

// BurnData packs a burn's per-round damage (low word) and remaining rounds
// (high word).
func BurnData(damage int32, turns uint32) uint64 {
	return uint64(turns)<<32 | uint64(uint32(damage))
}

func burnParts(data uint64) (int32, uint32) {
	return int32(uint32(data)), uint32(data >> 32)
}

// Burn lowers attack while attached and deals damage at each round end until
// it runs out.
type Burn struct{}

func (Burn) Name() string { return burnName }

// Steps implements battle.Effect.
func (Burn) Steps() battle.StepBitmap {
	return battle.StepsOf(battle.StepOnApply, battle.StepRoundEnd, battle.StepOnRemove)
}

// ShouldApply implements battle.Effect.
func (Burn) ShouldApply(v battle.View, target battle.Target, _ uint64) bool {
	return !target.Global && !v.MonState(target.Player, target.Mon).KnockedOut
}

// Run implements battle.Effect.
func (Burn) Run(e battle.Engine, in battle.StepInput) (uint64, bool) {
	p, m := in.Target.Player, in.Target.Mon
	switch in.Step {
	case battle.StepOnApply:
		e.UpdateMonState(p, m, battle.StatAttack, -1)
	case battle.StepRoundEnd:
		dmg, turns := burnParts(in.Data)
		e.DealDamage(p, m, dmg)
		if turns <= 1 || e.MonState(p, m).KnockedOut {
			return BurnData(dmg, 0), true
		}
		return BurnData(dmg, turns-1), false
	case battle.StepOnRemove:
		e.UpdateMonState(p, m, battle.StatAttack, 1)
	}
	return in.Data, false
}

// StaminaRegen is a global effect. At round end every conscious active mon
// regains one spent stamina. Its data word counts resolved actions.
type StaminaRegen struct{}

func (StaminaRegen) Name() string { return "stamina_regen" }

// Steps implements battle.Effect.
func (StaminaRegen) Steps() battle.StepBitmap {
	return battle.StepsOf(battle.StepRoundEnd, battle.StepAfterMove)
}

// ShouldApply implements battle.Effect.
func (StaminaRegen) ShouldApply(_ battle.View, target battle.Target, _ uint64) bool {
	return target.Global
}

// Run implements battle.Effect.
func (StaminaRegen) Run(e battle.Engine, in battle.StepInput) (uint64, bool) {
	if in.Step == battle.StepAfterMove {
		return in.Data + 1, false
	}
	for p := 0; p < 2; p++ {
		for s := 0; s < e.Mode().Slots(); s++ {
			m := in.Active.Mon(p, s)
			st := e.MonState(p, m)
			if st.KnockedOut || st.Delta(battle.StatStamina) >= 0 {
				continue
			}
			e.UpdateMonState(p, m, battle.StatStamina, 1)
		}
	}
	return in.Data, false
}
