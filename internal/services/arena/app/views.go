package app

import (
	"context"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/validate"
	"github.com/louisbranch/monarena/internal/services/arena/storage"
)

// BattleView is a read-only snapshot of a battle for clients.
type BattleView struct {
	ID           string       `json:"id"`
	Players      [2]string    `json:"players"`
	Mode         string       `json:"mode"`
	Turn         uint64       `json:"turn"`
	Winner       string       `json:"winner"`
	Flag         string       `json:"flag"`
	Committer    int          `json:"committer"`
	ForcedSwitch uint8        `json:"forced_switch"`
	Active       [2][]int     `json:"active"`
	Teams        [2][]MonView `json:"teams"`
	Effects      []EffectView `json:"effects"`
}

// MonView is one combatant's roster entry and current state.
type MonView struct {
	Name       string           `json:"name"`
	Moves      []string         `json:"moves"`
	Ability    string           `json:"ability,omitempty"`
	Deltas     map[string]int32 `json:"deltas"`
	KnockedOut bool             `json:"knocked_out"`
	SkipTurn   bool             `json:"skip_turn"`
	Effects    []EffectView     `json:"effects,omitempty"`
}

// EffectView is one live effect attachment.
type EffectView struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Steps uint16 `json:"steps"`
	Data  uint64 `json:"data"`
}

// Battle returns a snapshot of a live or recently finished battle.
func (s *Service) Battle(battleID string) (BattleView, error) {
	b, err := s.engine.Battle(battleID)
	if err != nil {
		return BattleView{}, err
	}
	st, err := s.engine.Status(battleID)
	if err != nil {
		return BattleView{}, err
	}
	active, err := s.engine.ActiveMons(battleID)
	if err != nil {
		return BattleView{}, err
	}
	global, err := s.engine.Effects(battleID, battle.GlobalTarget())
	if err != nil {
		return BattleView{}, err
	}

	v := BattleView{
		ID:           b.ID,
		Players:      b.Players,
		Mode:         b.Mode.String(),
		Turn:         st.Turn,
		Winner:       st.Winner.String(),
		Flag:         st.Flag.String(),
		Committer:    validate.Committer(st.Turn),
		ForcedSwitch: st.ForcedSwitch,
		Effects:      effectViews(global),
	}
	for p := 0; p < 2; p++ {
		for slot := 0; slot < b.Mode.Slots(); slot++ {
			v.Active[p] = append(v.Active[p], active.Mon(p, slot))
		}
		team, err := s.engine.Team(battleID, p)
		if err != nil {
			return BattleView{}, err
		}
		for m, slot := range team {
			mv, err := s.mon(battleID, p, m, slot)
			if err != nil {
				return BattleView{}, err
			}
			v.Teams[p] = append(v.Teams[p], mv)
		}
	}
	return v, nil
}

// Mon returns one combatant's view.
func (s *Service) Mon(battleID string, player, mon int) (MonView, error) {
	team, err := s.engine.Team(battleID, player)
	if err != nil {
		return MonView{}, err
	}
	var slot battle.RosterSlot
	if mon >= 0 && mon < len(team) {
		slot = team[mon]
	}
	return s.mon(battleID, player, mon, slot)
}

func (s *Service) mon(battleID string, player, mon int, slot battle.RosterSlot) (MonView, error) {
	st, err := s.engine.MonState(battleID, player, mon)
	if err != nil {
		return MonView{}, err
	}
	effects, err := s.engine.Effects(battleID, battle.MonTarget(player, mon))
	if err != nil {
		return MonView{}, err
	}
	v := MonView{
		Name:       slot.Name,
		Deltas:     make(map[string]int32, battle.NumDeltaStats),
		KnockedOut: st.KnockedOut,
		SkipTurn:   st.SkipTurn,
		Effects:    effectViews(effects),
	}
	for _, m := range slot.Moves {
		if m != nil {
			v.Moves = append(v.Moves, m.Name())
		}
	}
	if slot.Ability != nil {
		v.Ability = slot.Ability.Name()
	}
	for stat := battle.Stat(0); int(stat) < battle.NumDeltaStats; stat++ {
		v.Deltas[stat.String()] = st.Delta(stat)
	}
	return v, nil
}

// Effects returns the live attachments of one scope.
func (s *Service) Effects(battleID string, target battle.Target) ([]EffectView, error) {
	effects, err := s.engine.Effects(battleID, target)
	if err != nil {
		return nil, err
	}
	return effectViews(effects), nil
}

func effectViews(effects []battle.AttachedEffect) []EffectView {
	out := make([]EffectView, 0, len(effects))
	for _, a := range effects {
		out = append(out, EffectView{Index: a.Index, Name: a.Effect.Name(), Steps: uint16(a.Steps), Data: a.Data})
	}
	return out
}

// Turns returns one page of a battle's stored turn log.
func (s *Service) Turns(ctx context.Context, battleID string, pageSize int, pageToken string) (storage.TurnPage, error) {
	if s.store == nil {
		return storage.TurnPage{}, nil
	}
	return s.store.ListTurns(ctx, battleID, pageSize, pageToken)
}

// Result returns a finished battle's stored outcome.
func (s *Service) Result(ctx context.Context, battleID string) (storage.ResultRecord, error) {
	if s.store == nil {
		return storage.ResultRecord{}, storage.ErrNotFound
	}
	return s.store.GetResult(ctx, battleID)
}

// Record returns a battle's stored identity, including battles whose engine
// slot has since been reused.
func (s *Service) Record(ctx context.Context, battleID string) (storage.BattleRecord, error) {
	if s.store == nil {
		return storage.BattleRecord{}, storage.ErrNotFound
	}
	return s.store.GetBattle(ctx, battleID)
}
