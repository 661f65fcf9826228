package catalog

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

var abilities = map[string]battle.Ability{
	"intimidate": Intimidate{},
}

// Intimidate lowers the attack of every conscious opposing active mon when
// its holder switches in.
type Intimidate struct{}

func (Intimidate) Name() string { return "intimidate" }

// OnSwitchIn implements battle.Ability.
func (Intimidate) OnSwitchIn(e battle.Engine, player, _ int) {
	opp := 1 - player
	active := e.Active()
	for s := 0; s < e.Mode().Slots(); s++ {
		m := active.Mon(opp, s)
		if e.MonState(opp, m).KnockedOut {
			continue
		}
		e.UpdateMonState(opp, m, battle.StatAttack, -1)
	}
}
