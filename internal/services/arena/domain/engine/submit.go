package engine

import (
	"encoding/binary"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/hashing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/packing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/validate"
)

// CommitHash is the commitment over a player's decisions for one turn: the
// Keccak-256 of each decision's move index, big-endian extra and salt, in
// slot order.
func CommitHash(decisions []battle.Decision) [32]byte {
	parts := make([][]byte, 0, len(decisions))
	for _, d := range decisions {
		buf := make([]byte, 0, 35)
		buf = append(buf, d.MoveIndex)
		buf = binary.BigEndian.AppendUint16(buf, d.Extra)
		buf = append(buf, d.Salt[:]...)
		parts = append(parts, buf)
	}
	return hashing.Keccak256(parts...)
}

// SubmitAction stores a decision on the trusted path, bypassing commitment.
// The decision itself is validated when the turn resolves.
func (e *Engine) SubmitAction(battleID string, player, slot int, d battle.Decision) (TurnResult, error) {
	return e.run(battleID, func(c *call) error {
		if err := c.checkSubmitter(player, slot); err != nil {
			return err
		}
		c.cfg.Decisions[player][slot] = d
		c.cfg.Submitted[player][slot] = true
		commit := &c.cfg.Commit
		if c.st.Flag == battle.ActBoth && player == validate.Committer(c.Turn()) && !commit.Committed {
			commit.Committed = true
			commit.CommittedAt = c.now
		}
		if !commit.Revealed[player] {
			commit.Revealed[player] = true
			commit.RevealedAt[player] = c.now
		}
		return nil
	})
}

// Commit records the committer's hash on a two-sided turn.
func (e *Engine) Commit(battleID string, player int, hash [32]byte) (TurnResult, error) {
	return e.run(battleID, func(c *call) error {
		if player < 0 || player > 1 {
			return battleError(apperrors.CodeIllegalAction, c.BattleID(), "unknown player %d", player)
		}
		if c.st.Flag != battle.ActBoth {
			return battleError(apperrors.CodeNotSubmissionTurn, c.BattleID(), "turn %d needs no commitment", c.Turn())
		}
		if committer := validate.Committer(c.Turn()); player != committer {
			return battleError(apperrors.CodeCommitOutOfOrder, c.BattleID(), "player %d commits on turn %d", committer, c.Turn())
		}
		if c.cfg.Commit.Committed {
			return battleError(apperrors.CodeCommitOutOfOrder, c.BattleID(), "turn %d already committed", c.Turn())
		}
		c.cfg.Commit.Hash = hash
		c.cfg.Commit.Committed = true
		c.cfg.Commit.CommittedAt = c.now
		return nil
	})
}

// Reveal stores a player's decisions, one per slot. On a two-sided turn the
// revealer goes first, after the commit, and the committer's decisions must
// match its commitment.
func (e *Engine) Reveal(battleID string, player int, decisions []battle.Decision) (TurnResult, error) {
	return e.run(battleID, func(c *call) error {
		if player < 0 || player > 1 {
			return battleError(apperrors.CodeIllegalAction, c.BattleID(), "unknown player %d", player)
		}
		if !c.st.Flag.Includes(player) {
			return battleError(apperrors.CodeNotSubmissionTurn, c.BattleID(), "player %d does not act on turn %d", player, c.Turn())
		}
		if len(decisions) != c.Mode().Slots() {
			return battleError(apperrors.CodeIllegalAction, c.BattleID(), "got %d decisions, want %d", len(decisions), c.Mode().Slots())
		}
		commit := &c.cfg.Commit
		if commit.Revealed[player] {
			return battleError(apperrors.CodeCommitOutOfOrder, c.BattleID(), "player %d already revealed", player)
		}
		if c.st.Flag == battle.ActBoth {
			committer := validate.Committer(c.Turn())
			if !commit.Committed {
				return battleError(apperrors.CodeCommitOutOfOrder, c.BattleID(), "reveal before commit on turn %d", c.Turn())
			}
			if player == committer {
				if !commit.Revealed[1-committer] {
					return battleError(apperrors.CodeCommitOutOfOrder, c.BattleID(), "committer reveals after player %d", 1-committer)
				}
				if CommitHash(decisions) != commit.Hash {
					return battleError(apperrors.CodeCommitMismatch, c.BattleID(), "decisions do not match commitment")
				}
			}
		}
		mask := packing.SwitchMask(c.st.ForcedSwitch)
		for s, d := range decisions {
			if c.st.ForcedSwitch != 0 && !mask.Has(player, s) {
				continue
			}
			c.cfg.Decisions[player][s] = d
			c.cfg.Submitted[player][s] = true
		}
		commit.Revealed[player] = true
		commit.RevealedAt[player] = c.now
		return nil
	})
}

// AdvanceTurn resolves the pending turn.
func (e *Engine) AdvanceTurn(battleID string) (TurnResult, error) {
	return e.run(battleID, func(c *call) error {
		if c.Mode() == battle.ModeDoubles {
			return c.executeDoubles()
		}
		return c.executeSingles()
	})
}

// ForceEnd asks the validator whether a party has run out its clock and, if
// so, records the other player as the winner.
func (e *Engine) ForceEnd(battleID string) (TurnResult, error) {
	return e.run(battleID, func(c *call) error {
		commit := c.cfg.Commit
		clock := battle.Clock{
			Flag:        c.st.Flag,
			Turn:        c.Turn(),
			Committer:   validate.Committer(c.Turn()),
			LastTurnAt:  c.st.LastTurnAt,
			Committed:   commit.Committed,
			CommittedAt: commit.CommittedAt,
			Revealed:    commit.Revealed,
			RevealedAt:  commit.RevealedAt,
			Duration:    e.timeout,
			Now:         c.now,
		}
		loser, ok := c.validator.ValidateTimeout(clock)
		if !ok {
			return nil
		}
		c.st.Winner = battle.WinnerFor(1 - loser)
		c.emit(Event{Kind: EventForfeit, Player: loser})
		return nil
	})
}

// checkSubmitter rejects a decision from a player or slot that does not act.
func (c *call) checkSubmitter(player, slot int) error {
	if player < 0 || player > 1 || slot < 0 || slot >= c.Mode().Slots() {
		return battleError(apperrors.CodeIllegalAction, c.BattleID(), "no actor at player %d slot %d", player, slot)
	}
	if !c.st.Flag.Includes(player) {
		return battleError(apperrors.CodeNotSubmissionTurn, c.BattleID(), "player %d does not act on turn %d", player, c.Turn())
	}
	if c.st.ForcedSwitch != 0 && !packing.SwitchMask(c.st.ForcedSwitch).Has(player, slot) {
		return battleError(apperrors.CodeNotSubmissionTurn, c.BattleID(), "player %d slot %d owes no switch", player, slot)
	}
	return nil
}

// Ready reports whether every decision the next turn needs is present.
func (e *Engine) Ready(battleID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, st, err := e.lookup(battleID)
	if err != nil {
		return false, err
	}
	c := e.newCall(cfg, st, e.now())
	defer c.release()
	return c.ready(), nil
}

func (c *call) ready() bool {
	if c.st.Winner != battle.WinnerNone {
		return false
	}
	if c.Mode() == battle.ModeDoubles {
		mask := packing.SwitchMask(c.st.ForcedSwitch)
		for p := 0; p < 2; p++ {
			for s := 0; s < battle.SlotsPerPlayer; s++ {
				need := c.required(p, s)
				if c.st.ForcedSwitch != 0 {
					need = mask.Has(p, s)
				}
				if need && !c.cfg.Submitted[p][s] {
					return false
				}
			}
		}
		return true
	}
	for p := 0; p < 2; p++ {
		if c.st.Flag.Includes(p) && !c.cfg.Submitted[p][0] {
			return false
		}
	}
	return true
}
