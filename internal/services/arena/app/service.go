// Package app runs battles for the outer surfaces. It owns the engine, keeps
// one writer per battle, records every state-changing call in storage and
// fans turn updates out to spectators.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/platform/id"
	"github.com/louisbranch/monarena/internal/platform/otel"
	"github.com/louisbranch/monarena/internal/platform/timeouts"
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/engine"
	"github.com/louisbranch/monarena/internal/services/arena/storage"
)

// Action names a state-changing call in the turn log.
type Action string

const (
	ActionStart   Action = "start"
	ActionCommit  Action = "commit"
	ActionReveal  Action = "reveal"
	ActionSubmit  Action = "submit"
	ActionAdvance Action = "advance"
	ActionTimeout Action = "timeout"
)

// Service runs battles on behalf of authenticated callers.
type Service struct {
	engine *engine.Engine
	store  storage.Store
	hub    *Hub
	tracer trace.Tracer
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHub shares a spectator hub.
func WithHub(h *Hub) Option {
	return func(s *Service) { s.hub = h }
}

// New builds a service. store may be nil, in which case nothing is persisted.
func New(eng *engine.Engine, store storage.Store, opts ...Option) *Service {
	s := &Service{
		engine: eng,
		store:  store,
		tracer: otel.Tracer("github.com/louisbranch/monarena/arena"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	return s
}

// Hub returns the spectator hub.
func (s *Service) Hub() *Hub { return s.hub }

// Engine returns the underlying engine.
func (s *Service) Engine() *engine.Engine { return s.engine }

// lock serializes writers of one battle.
func (s *Service) lock(battleID string) func() {
	s.mu.Lock()
	l, ok := s.locks[battleID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[battleID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) forget(battleID string) {
	s.mu.Lock()
	delete(s.locks, battleID)
	s.mu.Unlock()
}

func (s *Service) span(ctx context.Context, name, battleID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("battle.id", battleID))
	return s.tracer.Start(ctx, "arena."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(apperrors.CodeOf(err)))
	}
	span.End()
}

// commitResult persists and publishes a call's result. Callers hold the
// battle lock.
func (s *Service) commitResult(ctx context.Context, action Action, player int, res engine.TurnResult) {
	events := res.Events
	if events == nil {
		events = []engine.Event{}
	}
	if s.store != nil {
		s.persist(ctx, action, player, res, events)
	}
	s.hub.Publish(Update{
		BattleID: res.BattleID,
		Action:   action,
		Player:   player,
		Turn:     res.Turn,
		Winner:   res.Winner.String(),
		Flag:     res.Flag.String(),
		Events:   events,
	})
	if res.Winner != battle.WinnerNone {
		s.hub.Close(res.BattleID)
		s.forget(res.BattleID)
	}
}

func (s *Service) persist(ctx context.Context, action Action, player int, res engine.TurnResult, events []engine.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Store)
	defer cancel()

	recID, err := id.NewID()
	if err != nil {
		log.Printf("arena: turn record id for %s: %v", res.BattleID, err)
		return
	}
	payload, err := json.Marshal(events)
	if err != nil {
		log.Printf("arena: encode events for %s: %v", res.BattleID, err)
		return
	}
	now := s.now().UTC()
	err = s.store.AppendTurn(ctx, storage.TurnRecord{
		ID:        recID,
		BattleID:  res.BattleID,
		Action:    string(action),
		Player:    player,
		Turn:      res.Turn,
		Flag:      res.Flag.String(),
		Winner:    res.Winner.String(),
		Events:    payload,
		CreatedAt: now,
	})
	if err != nil {
		log.Printf("arena: append turn for %s: %v", res.BattleID, err)
	}
	if res.Winner == battle.WinnerNone {
		return
	}
	reason := "knockout"
	if action == ActionTimeout {
		reason = "timeout"
	}
	err = s.store.SaveResult(ctx, storage.ResultRecord{
		BattleID: res.BattleID,
		Winner:   res.Winner.String(),
		Turns:    res.Turn,
		Reason:   reason,
		EndedAt:  now,
	})
	if err != nil {
		log.Printf("arena: save result for %s: %v", res.BattleID, err)
	}
}

// playerIndex resolves caller to a seat in the battle.
func playerIndex(b battle.Battle, caller string) (int, error) {
	for p, id := range b.Players {
		if id == caller {
			return p, nil
		}
	}
	return 0, apperrors.WithMetadata(apperrors.CodePermissionDenied,
		fmt.Sprintf("%s is not a player in battle %s", caller, b.ID),
		map[string]string{"BattleID": b.ID, "Caller": caller})
}

func (s *Service) requireAuthority(battleID, caller string) error {
	if a := s.engine.Authority(); a == "" || caller != a {
		return apperrors.WithMetadata(apperrors.CodePermissionDenied,
			fmt.Sprintf("%s is not the submission authority", caller),
			map[string]string{"BattleID": battleID, "Caller": caller})
	}
	return nil
}
