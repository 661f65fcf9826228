package engine

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/effect"
	"github.com/louisbranch/monarena/internal/services/arena/domain/packing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/priority"
	"github.com/louisbranch/monarena/internal/services/arena/domain/validate"
)

// executeDoubles resolves one doubles turn over the four (player, slot)
// actors.
func (c *call) executeDoubles() error {
	if c.st.ForcedSwitch != 0 {
		return c.forcedSwitchRound()
	}

	var d [2][battle.SlotsPerPlayer]battle.Decision
	for p := 0; p < 2; p++ {
		for s := 0; s < battle.SlotsPerPlayer; s++ {
			switch {
			case c.cfg.Submitted[p][s]:
				d[p][s] = c.cfg.Decisions[p][s]
			case c.required(p, s):
				return battleError(ErrActionMissing.Code, c.BattleID(), "player %d slot %d has not submitted an action", p, s)
			default:
				d[p][s] = battle.Decision{MoveIndex: battle.NoOpMoveIndex}
			}
		}
	}
	c.rng = c.cfg.Battle.RNG.Derive(c.firstSalt(0), c.firstSalt(1))

	actors := make([]priority.Actor, 0, 4)
	for p := 0; p < 2; p++ {
		for s := 0; s < battle.SlotsPerPlayer; s++ {
			actors = append(actors, priority.NewActor(c, p, s, d[p][s]))
		}
	}
	order := priority.Order(actors, c.rng)

	c.runGlobal(battle.StepRoundStart, effect.Aux{})
	for _, a := range order {
		c.runActive(a.Player, a.Slot, battle.StepRoundStart)
	}
	if c.gameOver() {
		return nil
	}

	claimed := [2][battle.SlotsPerPlayer]int{{validate.NoClaim, validate.NoClaim}, {validate.NoClaim, validate.NoClaim}}
	for _, a := range order {
		p, s := a.Player, a.Slot
		if c.Turn() > 0 && c.activeKnockedOut(p, s) {
			continue
		}
		dec := d[p][s]
		if c.act(p, s, dec, claimed[p][1-s]) && dec.IsSwitch() {
			claimed[p][s] = int(dec.Extra)
		}
		if c.gameOver() {
			return nil
		}
		c.runActive(p, s, battle.StepAfterMove)
		c.runGlobal(battle.StepAfterMove, effect.Aux{})
		if c.evaluateDoubles() {
			return nil
		}
	}

	if c.Turn() == 0 {
		c.fixLeads()
		for _, a := range order {
			c.fireAbility(a.Player, c.Active().Mon(a.Player, a.Slot))
		}
		if c.evaluateDoubles() {
			return nil
		}
	}

	c.runGlobal(battle.StepRoundEnd, effect.Aux{})
	if c.evaluateDoubles() {
		return nil
	}
	for _, a := range order {
		c.runActive(a.Player, a.Slot, battle.StepRoundEnd)
		if c.evaluateDoubles() {
			return nil
		}
	}

	c.finishDoubles()
	return nil
}

// forcedSwitchRound consumes only the switches of slots flagged for a forced
// switch. No round hooks fire.
func (c *call) forcedSwitchRound() error {
	mask := packing.SwitchMask(c.st.ForcedSwitch)
	for p := 0; p < 2; p++ {
		for s := 0; s < battle.SlotsPerPlayer; s++ {
			if mask.Has(p, s) && !c.cfg.Submitted[p][s] {
				return battleError(ErrActionMissing.Code, c.BattleID(), "player %d slot %d owes a switch", p, s)
			}
		}
	}
	for p := 0; p < 2; p++ {
		claimed := validate.NoClaim
		for s := 0; s < battle.SlotsPerPlayer; s++ {
			if !mask.Has(p, s) {
				continue
			}
			dec := c.cfg.Decisions[p][s]
			if !dec.IsSwitch() {
				c.emit(Event{Kind: EventRejected, Player: p, Slot: s, Mon: c.Active().Mon(p, s), Detail: "forced switch required"})
				continue
			}
			if c.act(p, s, dec, claimed) {
				claimed = int(dec.Extra)
			}
		}
	}
	if c.evaluateDoubles() {
		return nil
	}
	c.finishDoubles()
	return nil
}

// required reports whether (player, slot) must submit a decision this turn.
// A knocked-out slot with nothing to switch to may stay silent.
func (c *call) required(player, slot int) bool {
	if c.Turn() == 0 {
		return true
	}
	return !c.activeKnockedOut(player, slot) || validate.CanSwitch(c, player, slot, validate.NoClaim)
}

func (c *call) firstSalt(player int) [32]byte {
	for s := 0; s < battle.SlotsPerPlayer; s++ {
		if c.cfg.Submitted[player][s] {
			return c.cfg.Decisions[player][s].Salt
		}
	}
	return [32]byte{}
}

// evaluateDoubles checks for a winner and otherwise recomputes which slots
// owe a forced switch. A slot owes one when its mon is knocked out and a
// conscious bench mon exists that the partner slot has not already been
// allotted.
func (c *call) evaluateDoubles() bool {
	if c.gameOver() {
		return true
	}
	active := c.Active()
	var mask packing.SwitchMask
	for p := 0; p < 2; p++ {
		reserved := validate.NoClaim
		for s := 0; s < battle.SlotsPerPlayer; s++ {
			if !c.MonState(p, active.Mon(p, s)).KnockedOut {
				continue
			}
			for m := 0; m < c.TeamSize(p); m++ {
				if m == active.Mon(p, 0) || m == active.Mon(p, 1) || m == reserved || c.MonState(p, m).KnockedOut {
					continue
				}
				mask = mask.Set(p, s)
				reserved = m
				break
			}
		}
	}
	c.st.ForcedSwitch = uint8(mask)
	return false
}

// fixLeads separates two slots that ended turn zero on the same mon, which
// happens when one slot's lead was rejected.
func (c *call) fixLeads() {
	active := c.Active()
	for p := 0; p < 2; p++ {
		if active.Mon(p, 0) != active.Mon(p, 1) {
			continue
		}
		for m := 0; m < c.TeamSize(p); m++ {
			if m == active.Mon(p, 0) || c.MonState(p, m).KnockedOut {
				continue
			}
			word, err := packing.SetActive(c.Mode(), c.st.ActiveWord, p, 1, m)
			if err != nil {
				c.fail(battleError(ErrEffectStorage.Code, c.BattleID(), "fix leads: %v", err))
				return
			}
			c.st.ActiveWord = word
			c.emit(Event{Kind: EventSwitch, Player: p, Slot: 1, Mon: m, Detail: "lead"})
			break
		}
	}
}

func (c *call) finishDoubles() {
	mask := packing.SwitchMask(c.st.ForcedSwitch)
	c.finishTurn(battle.FlagFor(mask.Player(0), mask.Player(1)))
}
