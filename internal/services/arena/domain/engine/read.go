package engine

import (
	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/packing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/store"
)

// lookup returns a live battle's slot and status. Callers hold e.mu.
func (e *Engine) lookup(id string) (*store.Config, *battle.Status, error) {
	cfg, err := e.store.Config(id)
	if err != nil {
		return nil, nil, battleError(apperrors.CodeNotFound, id, "battle %s not found", id)
	}
	st, ok := e.store.Status(id)
	if !ok {
		return nil, nil, battleError(apperrors.CodeBattleOver, id, "battle %s is over", id)
	}
	return cfg, st, nil
}

// readable returns a battle's slot and a copy of its status, finished
// battles included while their slot has not been reused.
func (e *Engine) readable(id string) (*store.Config, battle.Status, error) {
	cfg, err := e.store.Config(id)
	if err != nil {
		return nil, battle.Status{}, battleError(apperrors.CodeNotFound, id, "battle %s not found", id)
	}
	if st, ok := e.store.Status(id); ok {
		return cfg, *st, nil
	}
	if st, ok := e.store.Final(id); ok {
		return cfg, st, nil
	}
	return nil, battle.Status{}, battleError(apperrors.CodeNotFound, id, "battle %s not found", id)
}

// Battle returns a battle's identity.
func (e *Engine) Battle(id string) (battle.Battle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, err := e.readable(id)
	if err != nil {
		return battle.Battle{}, err
	}
	return cfg.Battle, nil
}

// Status returns a copy of a battle's status header. A finished battle keeps
// reporting its final status.
func (e *Engine) Status(id string) (battle.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, st, err := e.readable(id)
	return st, err
}

// ActiveMons returns the unpacked active-mon indices.
func (e *Engine) ActiveMons(id string) (battle.Active, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, st, err := e.readable(id)
	if err != nil {
		return battle.Active{}, err
	}
	return packing.ActiveFromWord(cfg.Battle.Mode, st.ActiveWord), nil
}

// MonState returns one combatant's state.
func (e *Engine) MonState(id string, player, mon int) (battle.CombatantState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, err := e.readable(id)
	if err != nil {
		return battle.CombatantState{}, err
	}
	if player < 0 || player > 1 || mon < 0 || mon >= len(cfg.States[player]) {
		return battle.CombatantState{}, battleError(apperrors.CodeNotFound, id, "no mon %d for player %d", mon, player)
	}
	return cfg.States[player][mon], nil
}

// Team returns a copy of a player's roster.
func (e *Engine) Team(id string, player int) ([]battle.RosterSlot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, err := e.readable(id)
	if err != nil {
		return nil, err
	}
	if player < 0 || player > 1 {
		return nil, battleError(apperrors.CodeNotFound, id, "no player %d", player)
	}
	return append([]battle.RosterSlot(nil), cfg.Teams[player]...), nil
}

// Effects returns the live attachments of a scope.
func (e *Engine) Effects(id string, target battle.Target) ([]battle.AttachedEffect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, err := e.readable(id)
	if err != nil {
		return nil, err
	}
	if !target.Global && (target.Player < 0 || target.Player > 1 || target.Mon < 0 || target.Mon >= len(cfg.Teams[target.Player])) {
		return nil, battleError(apperrors.CodeNotFound, id, "no mon %d for player %d", target.Mon, target.Player)
	}
	return cfg.Effects(target).Live(), nil
}

// Live returns the number of battles in progress.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Live()
}

// LiveBattles returns the ids of battles in progress.
func (e *Engine) LiveBattles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.LiveIDs()
}
