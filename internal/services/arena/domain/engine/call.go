package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/effect"
	"github.com/louisbranch/monarena/internal/services/arena/domain/packing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/store"
	"github.com/louisbranch/monarena/internal/services/arena/domain/validate"
)

// call is the scratch context of one entry point. It implements battle.Engine
// for the plugins invoked during the call and is released when the call
// returns, early returns included.
type call struct {
	cfg       *store.Config
	st        *battle.Status
	validator battle.Validator
	disp      effect.Dispatcher

	rng     uint64
	step    battle.Step
	touched map[battle.Target]struct{}
	events  []Event
	err     error
	now     time.Time
	ended   bool
}

var _ battle.Engine = (*call)(nil)

func (c *call) release() {
	c.rng = 0
	c.step = 0
	c.touched = nil
	c.events = nil
	c.err = nil
	c.disp = effect.Dispatcher{}
	c.cfg = nil
	c.st = nil
}

func (c *call) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *call) touch(t battle.Target) {
	if c.touched != nil {
		c.touched[t] = struct{}{}
	}
}

func (c *call) emit(ev Event) {
	c.events = append(c.events, ev)
}

func (c *call) result() TurnResult {
	res := TurnResult{
		BattleID: c.cfg.Battle.ID,
		Turn:     c.st.Turn,
		Winner:   c.st.Winner,
		Flag:     c.st.Flag,
		Events:   append([]Event(nil), c.events...),
		Ready:    c.ready(),
	}
	for t := range c.touched {
		res.Touched = append(res.Touched, t)
	}
	sort.Slice(res.Touched, func(i, j int) bool {
		a, b := res.Touched[i], res.Touched[j]
		if a.Global != b.Global {
			return a.Global
		}
		if a.Player != b.Player {
			return a.Player < b.Player
		}
		return a.Mon < b.Mon
	})
	return res
}

// View

func (c *call) BattleID() string { return c.cfg.Battle.ID }
func (c *call) Mode() battle.GameMode { return c.cfg.Battle.Mode }
func (c *call) Turn() uint64 { return c.st.Turn }

func (c *call) Active() battle.Active {
	return packing.ActiveFromWord(c.cfg.Battle.Mode, c.st.ActiveWord)
}

func (c *call) TeamSize(player int) int {
	if player < 0 || player > 1 {
		return 0
	}
	return len(c.cfg.Teams[player])
}

func (c *call) Slot(player, mon int) battle.RosterSlot {
	if !c.valid(player, mon) {
		return battle.RosterSlot{}
	}
	return c.cfg.Teams[player][mon]
}

func (c *call) MonState(player, mon int) battle.CombatantState {
	if !c.valid(player, mon) {
		return battle.ClearedCombatant()
	}
	return c.cfg.States[player][mon]
}

func (c *call) StatValue(player, mon int, stat battle.Stat) int64 {
	return c.Slot(player, mon).Stats.Base(stat) + int64(c.MonState(player, mon).Delta(stat))
}

func (c *call) valid(player, mon int) bool {
	return player >= 0 && player <= 1 && mon >= 0 && mon < len(c.cfg.Teams[player])
}

// Engine

func (c *call) RNG() uint64 { return c.rng }

// UpdateMonState applies a delta, or sets a flag when stat is KnockedOut or
// SkipTurn (non-zero delta sets, zero clears). HP reaching zero or below
// knocks the mon out.
func (c *call) UpdateMonState(player, mon int, stat battle.Stat, delta int32) {
	if !c.valid(player, mon) {
		c.fail(battleError(apperrors.CodeEffectStorage, c.BattleID(), "update state of player %d mon %d: %v", player, mon, packing.ErrIndexOutOfRange))
		return
	}
	state := &c.cfg.States[player][mon]
	switch stat {
	case battle.StatKnockedOut:
		if delta == 0 && c.StatValue(player, mon, battle.StatHP) <= 0 {
			c.emit(Event{Kind: EventRejected, Player: player, Mon: mon, Detail: "revive at zero hp"})
			return
		}
		c.setKnockedOut(player, mon, delta != 0)
	case battle.StatSkipTurn:
		state.SkipTurn = delta != 0
	default:
		if int(stat) >= battle.NumDeltaStats {
			c.fail(battleError(apperrors.CodeEffectStorage, c.BattleID(), "unknown stat %d", stat))
			return
		}
		state.Deltas[stat] = addDelta(state.Delta(stat), delta)
		if stat == battle.StatHP && !state.KnockedOut && c.StatValue(player, mon, battle.StatHP) <= 0 {
			c.setKnockedOut(player, mon, true)
		}
	}
	c.emit(Event{Kind: EventStateChanged, Player: player, Mon: mon, Stat: stat.String(), Delta: delta})

	aux := effect.Aux{Stat: stat, Delta: delta}
	c.runGlobal(battle.StepOnUpdateMonState, aux)
	c.runMon(player, mon, battle.StepOnUpdateMonState, aux)
}

func (c *call) setKnockedOut(player, mon int, ko bool) {
	state := &c.cfg.States[player][mon]
	if state.KnockedOut == ko {
		return
	}
	state.KnockedOut = ko
	if ko {
		c.cfg.KO = c.cfg.KO.Set(player, mon)
		c.emit(Event{Kind: EventKnockedOut, Player: player, Mon: mon})
	} else {
		c.cfg.KO = c.cfg.KO.Clear(player, mon)
	}
}

// addDelta sums in 64 bits and clamps so the result never lands on the
// cleared sentinel.
func addDelta(cur, delta int32) int32 {
	sum := int64(cur) + int64(delta)
	if sum >= int64(battle.ClearedDelta) {
		return battle.ClearedDelta - 1
	}
	if sum < math.MinInt32 {
		return math.MinInt32
	}
	return int32(sum)
}

// DealDamage lowers HP and runs the target mon's after-damage effects.
func (c *call) DealDamage(player, mon int, amount int32) {
	if amount <= 0 {
		return
	}
	c.UpdateMonState(player, mon, battle.StatHP, -amount)
	if c.err != nil {
		return
	}
	c.runMon(player, mon, battle.StepAfterDamage, effect.Aux{Damage: amount})
}

func (c *call) AddEffect(target battle.Target, eff battle.Effect, data uint64) {
	if _, _, err := c.disp.Attach(c, target, eff, data); err != nil {
		c.fail(apperrors.Wrap(apperrors.CodeEffectStorage, fmt.Sprintf("attach %s", effectName(eff)), err))
	}
}

func (c *call) RemoveEffect(target battle.Target, index int) {
	c.disp.Remove(c, target, index)
}

func (c *call) Effects(target battle.Target) []battle.AttachedEffect {
	if !target.Global && !c.valid(target.Player, target.Mon) {
		return nil
	}
	return c.cfg.Effects(target).Live()
}

// SwitchActiveMon lets a plugin force a switch. The switch goes through the
// same validation and hooks as a chosen one.
func (c *call) SwitchActiveMon(player, slot, mon int) {
	if slot < 0 || slot >= c.Mode().Slots() || !c.validator.ValidateSwitch(c, player, slot, mon, validate.NoClaim) {
		c.emit(Event{Kind: EventRejected, Player: player, Slot: slot, Mon: mon, Detail: "forced switch"})
		return
	}
	c.switchIn(player, slot, mon)
}

func effectName(eff battle.Effect) string {
	if eff == nil {
		return "<nil>"
	}
	return eff.Name()
}

// dispatch helpers

func (c *call) runGlobal(step battle.Step, aux effect.Aux) {
	if c.err != nil {
		return
	}
	c.step = step
	c.disp.Run(c, battle.GlobalTarget(), step, aux)
}

func (c *call) runMon(player, mon int, step battle.Step, aux effect.Aux) {
	if c.err != nil || !c.valid(player, mon) {
		return
	}
	c.step = step
	c.disp.Run(c, battle.MonTarget(player, mon), step, aux)
}

// runActive runs step for the mon in (player, slot) unless it is knocked out.
func (c *call) runActive(player, slot int, step battle.Step) {
	mon := c.Active().Mon(player, slot)
	if c.MonState(player, mon).KnockedOut {
		return
	}
	c.runMon(player, mon, step, effect.Aux{})
}

// actions

// act validates and executes one decision. It reports whether the decision
// was accepted.
func (c *call) act(player, slot int, d battle.Decision, claimed int) bool {
	if c.err != nil {
		return false
	}
	mon := c.Active().Mon(player, slot)
	if !c.validator.ValidatePlayerMove(c, player, slot, d, claimed) {
		c.emit(Event{Kind: EventRejected, Player: player, Slot: slot, Mon: mon, Detail: fmt.Sprintf("move index %d", d.MoveIndex)})
		return false
	}
	switch {
	case d.IsNoOp():
		c.emit(Event{Kind: EventNoOp, Player: player, Slot: slot, Mon: mon})
	case d.IsSwitch():
		c.switchIn(player, slot, int(d.Extra))
	default:
		if c.MonState(player, mon).SkipTurn {
			c.UpdateMonState(player, mon, battle.StatSkipTurn, 0)
			c.emit(Event{Kind: EventSkipped, Player: player, Slot: slot, Mon: mon})
			return true
		}
		moves := c.Slot(player, mon).Moves
		if int(d.MoveIndex) >= len(moves) || moves[d.MoveIndex] == nil {
			c.emit(Event{Kind: EventRejected, Player: player, Slot: slot, Mon: mon, Detail: fmt.Sprintf("move index %d", d.MoveIndex)})
			return false
		}
		move := moves[d.MoveIndex]
		if cost := move.StaminaCost(c, player, mon); cost != 0 {
			c.UpdateMonState(player, mon, battle.StatStamina, -cost)
		}
		c.emit(Event{Kind: EventMove, Player: player, Slot: slot, Mon: mon, Move: move.Name()})
		if c.err == nil {
			move.Execute(c, player, mon, c.defender(player, d), d.Extra, c.rng)
		}
	}
	return true
}

// defender picks the opposing mon a move targets. In doubles the low bit of
// extra selects the slot, falling back to the other slot if that mon is
// knocked out.
func (c *call) defender(player int, d battle.Decision) int {
	opp := 1 - player
	active := c.Active()
	if c.Mode() != battle.ModeDoubles {
		return active.Mon(opp, 0)
	}
	slot := int(d.Extra & 1)
	mon := active.Mon(opp, slot)
	if c.MonState(opp, mon).KnockedOut {
		if other := active.Mon(opp, 1-slot); !c.MonState(opp, other).KnockedOut {
			return other
		}
	}
	return mon
}

// switchIn puts mon into (player, slot). After turn zero the outgoing mon's
// switch-out effects run (unless it is knocked out), then the incoming mon's
// switch-in effects and ability.
func (c *call) switchIn(player, slot, mon int) {
	out := c.Active().Mon(player, slot)
	live := c.Turn() > 0
	if live && !c.MonState(player, out).KnockedOut {
		c.runGlobal(battle.StepOnMonSwitchOut, effect.Aux{})
		c.runMon(player, out, battle.StepOnMonSwitchOut, effect.Aux{})
	}
	if c.err != nil {
		return
	}
	word, err := packing.SetActive(c.Mode(), c.st.ActiveWord, player, slot, mon)
	if err != nil {
		c.fail(apperrors.Wrap(apperrors.CodeEffectStorage, "set active mon", err))
		return
	}
	c.st.ActiveWord = word
	c.emit(Event{Kind: EventSwitch, Player: player, Slot: slot, Mon: mon})
	if !live {
		return
	}
	c.runGlobal(battle.StepOnMonSwitchIn, effect.Aux{})
	c.runMon(player, mon, battle.StepOnMonSwitchIn, effect.Aux{})
	c.fireAbility(player, mon)
}

func (c *call) fireAbility(player, mon int) {
	if c.err != nil || c.MonState(player, mon).KnockedOut {
		return
	}
	if ab := c.Slot(player, mon).Ability; ab != nil {
		ab.OnSwitchIn(c, player, mon)
	}
}

// outcome

// gameOver records a winner once a player has no conscious mon left. It
// reports whether the battle has a winner.
func (c *call) gameOver() bool {
	if c.err != nil {
		return true
	}
	if c.st.Winner != battle.WinnerNone {
		return true
	}
	for p := 0; p < 2; p++ {
		if c.cfg.KO.AllOut(p, len(c.cfg.Teams[p])) {
			c.st.Winner = battle.WinnerFor(1 - p)
			return true
		}
	}
	return false
}

// end runs the end-of-battle hooks exactly once.
func (c *call) end() error {
	if c.ended {
		return nil
	}
	if !c.now.After(c.cfg.Battle.StartedAt) {
		return battleError(apperrors.CodeZeroDurationBattle, c.BattleID(), "battle %s ended at its start instant", c.BattleID())
	}
	c.ended = true
	for _, h := range c.cfg.Battle.Hooks {
		h.OnBattleEnd(c, c.st.Winner)
	}
	c.emit(Event{Kind: EventBattleEnded, Player: c.st.Winner.Player(), Detail: c.st.Winner.String()})
	return c.err
}

// finishTurn closes a turn that did not end the battle.
func (c *call) finishTurn(flag battle.ActFlag) {
	c.st.Turn++
	c.st.PrevFlag = c.st.Flag
	c.st.Flag = flag
	c.cfg.ClearDecisions()
	c.cfg.Commit = store.Commitment{}
	c.st.LastTurnAt = c.now
}
