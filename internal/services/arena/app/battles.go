package app

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/platform/timeouts"
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/engine"
	"github.com/louisbranch/monarena/internal/services/arena/storage"
)

// StartRequest asks for a new battle between two players.
type StartRequest struct {
	Initiator   string
	Players     [2]string
	RosterIndex [2]int
	Mode        battle.GameMode
}

// StartBattle starts a battle and records it.
func (s *Service) StartBattle(ctx context.Context, req StartRequest) (b battle.Battle, err error) {
	ctx, span := s.span(ctx, "StartBattle", "",
		attribute.String("battle.mode", req.Mode.String()),
		attribute.String("battle.initiator", req.Initiator),
	)
	defer func() { endSpan(span, err) }()

	b, err = s.engine.StartBattle(engine.StartConfig{
		Initiator:   req.Initiator,
		Players:     req.Players,
		RosterIndex: req.RosterIndex,
		Mode:        req.Mode,
	})
	if err != nil {
		return battle.Battle{}, err
	}
	span.SetAttributes(attribute.String("battle.id", b.ID))

	unlock := s.lock(b.ID)
	defer unlock()
	if s.store != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Store)
		defer cancel()
		rec := storage.BattleRecord{
			ID:          b.ID,
			Players:     b.Players,
			RosterIndex: b.RosterIndex,
			Mode:        b.Mode.String(),
			StartedAt:   b.StartedAt,
		}
		if err := s.store.CreateBattle(sctx, rec); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			log.Printf("arena: record battle %s: %v", b.ID, err)
		}
	}
	st, err := s.engine.Status(b.ID)
	if err != nil {
		return battle.Battle{}, err
	}
	s.commitResult(ctx, ActionStart, -1, engine.TurnResult{BattleID: b.ID, Turn: st.Turn, Winner: st.Winner, Flag: st.Flag})
	log.Printf("arena: battle %s started: %s vs %s (%s)", b.ID, b.Players[0], b.Players[1], b.Mode)
	return b, nil
}

// Commit records the caller's commitment for the current turn.
func (s *Service) Commit(ctx context.Context, battleID, caller string, hash [32]byte) (res engine.TurnResult, err error) {
	ctx, span := s.span(ctx, "Commit", battleID)
	defer func() { endSpan(span, err) }()

	unlock := s.lock(battleID)
	defer unlock()
	player, err := s.seat(battleID, caller)
	if err != nil {
		return engine.TurnResult{}, err
	}
	res, err = s.engine.Commit(battleID, player, hash)
	if err != nil {
		return engine.TurnResult{}, err
	}
	s.commitResult(ctx, ActionCommit, player, res)
	return res, nil
}

// Reveal records the caller's decisions. Once every required decision is in,
// the turn is advanced and the advance result is returned.
func (s *Service) Reveal(ctx context.Context, battleID, caller string, decisions []battle.Decision) (res engine.TurnResult, err error) {
	ctx, span := s.span(ctx, "Reveal", battleID, attribute.Int("decisions", len(decisions)))
	defer func() { endSpan(span, err) }()

	unlock := s.lock(battleID)
	defer unlock()
	player, err := s.seat(battleID, caller)
	if err != nil {
		return engine.TurnResult{}, err
	}
	res, err = s.engine.Reveal(battleID, player, decisions)
	if err != nil {
		return engine.TurnResult{}, err
	}
	s.commitResult(ctx, ActionReveal, player, res)
	if !res.Ready {
		return res, nil
	}
	return s.advance(ctx, battleID)
}

// SubmitAction stores a decision on a player's behalf. Only the submission
// authority may call it.
func (s *Service) SubmitAction(ctx context.Context, battleID, caller string, player, slot int, d battle.Decision) (res engine.TurnResult, err error) {
	ctx, span := s.span(ctx, "SubmitAction", battleID,
		attribute.Int("player", player),
		attribute.Int("slot", slot),
		attribute.Int("move_index", int(d.MoveIndex)),
	)
	defer func() { endSpan(span, err) }()

	if err := s.requireAuthority(battleID, caller); err != nil {
		return engine.TurnResult{}, err
	}
	unlock := s.lock(battleID)
	defer unlock()
	res, err = s.engine.SubmitAction(battleID, player, slot, d)
	if err != nil {
		return engine.TurnResult{}, err
	}
	s.commitResult(ctx, ActionSubmit, player, res)
	return res, nil
}

// AdvanceTurn resolves the pending turn. Only the submission authority may
// call it; revealed turns advance on their own.
func (s *Service) AdvanceTurn(ctx context.Context, battleID, caller string) (res engine.TurnResult, err error) {
	ctx, span := s.span(ctx, "AdvanceTurn", battleID)
	defer func() { endSpan(span, err) }()

	if err := s.requireAuthority(battleID, caller); err != nil {
		return engine.TurnResult{}, err
	}
	unlock := s.lock(battleID)
	defer unlock()
	return s.advance(ctx, battleID)
}

func (s *Service) advance(ctx context.Context, battleID string) (engine.TurnResult, error) {
	res, err := s.engine.AdvanceTurn(battleID)
	if err != nil {
		return engine.TurnResult{}, err
	}
	s.commitResult(ctx, ActionAdvance, -1, res)
	if res.Winner != battle.WinnerNone {
		log.Printf("arena: battle %s won by %s on turn %d", battleID, res.Winner, res.Turn)
	}
	return res, nil
}

// SweepTimeout ends the battle if a party has run out its clock. Anyone may
// ask; the clock decides.
func (s *Service) SweepTimeout(ctx context.Context, battleID string) (res engine.TurnResult, err error) {
	ctx, span := s.span(ctx, "SweepTimeout", battleID)
	defer func() { endSpan(span, err) }()

	unlock := s.lock(battleID)
	defer unlock()
	res, err = s.engine.ForceEnd(battleID)
	if err != nil {
		return engine.TurnResult{}, err
	}
	if res.Winner == battle.WinnerNone {
		return res, nil
	}
	s.commitResult(ctx, ActionTimeout, 1-res.Winner.Player(), res)
	log.Printf("arena: battle %s forfeited, %s wins", battleID, res.Winner)
	return res, nil
}

// Sweep checks every live battle's clock and returns how many ended.
func (s *Service) Sweep(ctx context.Context) int {
	ended := 0
	for _, battleID := range s.engine.LiveBattles() {
		if ctx.Err() != nil {
			break
		}
		res, err := s.SweepTimeout(ctx, battleID)
		if err != nil {
			if code := apperrors.CodeOf(err); code != apperrors.CodeBattleOver && code != apperrors.CodeNotFound {
				log.Printf("arena: sweep %s: %v", battleID, err)
			}
			continue
		}
		if res.Winner != battle.WinnerNone {
			ended++
		}
	}
	return ended
}

// RunSweeper sweeps every interval until ctx is done. A zero or negative
// interval, or an engine without a turn timeout, returns at once.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.engine.TurnTimeout() <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// seat resolves caller's player index in a battle.
func (s *Service) seat(battleID, caller string) (int, error) {
	b, err := s.engine.Battle(battleID)
	if err != nil {
		return 0, err
	}
	return playerIndex(b, caller)
}
