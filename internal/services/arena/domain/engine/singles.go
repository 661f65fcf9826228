package engine

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/effect"
	"github.com/louisbranch/monarena/internal/services/arena/domain/priority"
	"github.com/louisbranch/monarena/internal/services/arena/domain/validate"
)

// executeSingles resolves one singles turn. It stops at the first checkpoint
// that records a winner.
func (c *call) executeSingles() error {
	if p, ok := c.st.Flag.Single(); ok {
		if !c.cfg.Submitted[p][0] {
			return battleError(ErrActionMissing.Code, c.BattleID(), "player %d has not submitted a switch", p)
		}
		c.act(p, 0, c.cfg.Decisions[p][0], validate.NoClaim)
		if !c.gameOver() {
			c.finishTurn(c.singlesFlag())
		}
		return nil
	}

	for p := 0; p < 2; p++ {
		if !c.cfg.Submitted[p][0] {
			return battleError(ErrActionMissing.Code, c.BattleID(), "player %d has not submitted an action", p)
		}
	}
	d := [2]battle.Decision{c.cfg.Decisions[0][0], c.cfg.Decisions[1][0]}
	c.rng = c.cfg.Battle.RNG.Derive(d[0].Salt, d[1].Salt)

	first := priority.First(
		priority.NewActor(c, 0, 0, d[0]),
		priority.NewActor(c, 1, 0, d[1]),
		c.rng,
	)
	second := 1 - first

	c.runGlobal(battle.StepRoundStart, effect.Aux{})
	c.runActive(first, 0, battle.StepRoundStart)
	c.runActive(second, 0, battle.StepRoundStart)
	if c.gameOver() {
		return nil
	}

	c.act(first, 0, d[first], validate.NoClaim)
	if c.gameOver() {
		return nil
	}
	c.runActive(first, 0, battle.StepAfterMove)
	c.runGlobal(battle.StepAfterMove, effect.Aux{})
	if c.gameOver() {
		return nil
	}

	// A knockout earlier this turn means the second actor owes a forced
	// switch instead of its chosen action.
	if !c.activeKnockedOut(second, 0) {
		c.act(second, 0, d[second], validate.NoClaim)
	}
	if c.Turn() == 0 {
		c.fireAbility(first, c.Active().Mon(first, 0))
		c.fireAbility(second, c.Active().Mon(second, 0))
	}
	if c.gameOver() {
		return nil
	}
	c.runActive(second, 0, battle.StepAfterMove)
	c.runGlobal(battle.StepAfterMove, effect.Aux{})
	if c.gameOver() {
		return nil
	}

	c.runGlobal(battle.StepRoundEnd, effect.Aux{})
	if c.gameOver() {
		return nil
	}
	c.runActive(first, 0, battle.StepRoundEnd)
	if c.gameOver() {
		return nil
	}
	c.runActive(second, 0, battle.StepRoundEnd)
	if c.gameOver() {
		return nil
	}

	c.finishTurn(c.singlesFlag())
	return nil
}

// singlesFlag names who acts next: a player whose active mon is knocked out
// owes a switch.
func (c *call) singlesFlag() battle.ActFlag {
	return battle.FlagFor(c.activeKnockedOut(0, 0), c.activeKnockedOut(1, 0))
}

func (c *call) activeKnockedOut(player, slot int) bool {
	return c.MonState(player, c.Active().Mon(player, slot)).KnockedOut
}
