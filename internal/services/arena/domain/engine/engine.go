// Package engine advances battles one turn at a time.
//
// Every entry point runs inside a call: the battle's storage slot is
// snapshotted, a fresh call context carries the turn's scratch values (random
// value, current step, touched effect scopes, events), and the context is
// released when the entry point returns. A fatal error restores the snapshot
// so no partial mutation is ever visible. Illegal decisions are not fatal;
// they are skipped and reported as events.
//
// Engine serializes all calls. Callers that need per-battle ordering beyond a
// single call (persisting the turn log, for example) hold their own lock.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/hashing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/packing"
	"github.com/louisbranch/monarena/internal/services/arena/domain/store"
	"github.com/louisbranch/monarena/internal/services/arena/domain/validate"
)

// KeccakRNG derives turn randomness by hashing both secrets together.
type KeccakRNG struct{}

// Derive implements battle.RNG.
func (KeccakRNG) Derive(a, b [32]byte) uint64 {
	return hashing.Uint64(hashing.Keccak256(a[:], b[:]))
}

// Engine owns the storage pool and runs battle calls.
type Engine struct {
	mu sync.Mutex

	store     *store.Store
	rosters   battle.RosterSource
	validator battle.Validator
	rng       battle.RNG
	ruleset   battle.Ruleset
	hooks     []battle.Hooks
	authority string
	timeout   time.Duration
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator sets the default validator for battles that bring none.
func WithValidator(v battle.Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithRNG sets the default randomness source.
func WithRNG(r battle.RNG) Option {
	return func(e *Engine) { e.rng = r }
}

// WithRuleset sets the default ruleset.
func WithRuleset(r battle.Ruleset) Option {
	return func(e *Engine) { e.ruleset = r }
}

// WithHooks appends default lifecycle hooks.
func WithHooks(h ...battle.Hooks) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h...) }
}

// WithAuthority names the action-submission authority.
func WithAuthority(id string) Option {
	return func(e *Engine) { e.authority = id }
}

// WithTurnTimeout sets the duration the timeout resolver works from.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine resolving rosters through rosters.
func New(rosters battle.RosterSource, opts ...Option) *Engine {
	e := &Engine{
		store:     store.New(),
		rosters:   rosters,
		validator: validate.Default{},
		rng:       KeccakRNG{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authority returns the configured submission authority.
func (e *Engine) Authority() string { return e.authority }

// TurnTimeout returns the configured turn duration.
func (e *Engine) TurnTimeout() time.Duration { return e.timeout }

// StartConfig describes a battle to start. Nil collaborators fall back to the
// engine defaults.
type StartConfig struct {
	Initiator   string
	Players     [2]string
	RosterIndex [2]int
	Mode        battle.GameMode

	Validator battle.Validator
	RNG       battle.RNG
	Ruleset   battle.Ruleset
	Hooks     []battle.Hooks
}

// StartBattle validates cfg, claims the pair's storage slot and runs the
// battle-start hooks. Configuration errors are returned before any state is
// touched.
func (e *Engine) StartBattle(cfg StartConfig) (battle.Battle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	teams, err := e.checkStart(cfg)
	if err != nil {
		return battle.Battle{}, err
	}

	slot, err := e.store.Acquire(cfg.Players[0], cfg.Players[1])
	if err != nil {
		if errors.Is(err, store.ErrSlotBusy) {
			return battle.Battle{}, apperrors.WithMetadata(apperrors.CodeBattleInProgress,
				"players already have a battle in progress",
				map[string]string{"Player0": cfg.Players[0], "Player1": cfg.Players[1]})
		}
		return battle.Battle{}, apperrors.Wrap(apperrors.CodeInvalidConfig, "claim storage slot", err)
	}

	now := e.now()
	b := battle.Battle{
		ID:          slot.Battle.ID,
		Players:     cfg.Players,
		RosterIndex: cfg.RosterIndex,
		Mode:        cfg.Mode,
		StartedAt:   now,
		Validator:   cfg.Validator,
		RNG:         cfg.RNG,
		Ruleset:     cfg.Ruleset,
		Hooks:       append(append([]battle.Hooks(nil), e.hooks...), cfg.Hooks...),
		Authority:   e.authority,
	}
	if b.Validator == nil {
		b.Validator = e.validator
	}
	if b.RNG == nil {
		b.RNG = e.rng
	}
	if b.Ruleset == nil {
		b.Ruleset = e.ruleset
	}
	slot.Battle = b
	slot.SetTeams(teams)

	initial := battle.Active{}
	if cfg.Mode == battle.ModeDoubles {
		initial = battle.Active{{0, 1}, {0, 1}}
	}
	word, err := packing.WordFromActive(cfg.Mode, initial)
	if err != nil {
		e.store.Abandon(slot)
		return battle.Battle{}, apperrors.Wrap(apperrors.CodeInvalidConfig, "pack active mons", err)
	}
	st := &battle.Status{Flag: battle.ActBoth, PrevFlag: battle.ActBoth, ActiveWord: word, LastTurnAt: now}
	e.store.PutStatus(b.ID, st)

	c := e.newCall(slot, st, now)
	defer c.release()
	if b.Ruleset != nil {
		for _, spec := range b.Ruleset.GlobalEffects() {
			c.AddEffect(battle.GlobalTarget(), spec.Effect, spec.Data)
		}
	}
	for _, h := range b.Hooks {
		h.OnBattleStart(c)
	}
	if c.err != nil {
		e.store.Finish(b.ID)
		e.store.Abandon(slot)
		return battle.Battle{}, c.err
	}
	return b, nil
}

func (e *Engine) checkStart(cfg StartConfig) ([2][]battle.RosterSlot, error) {
	var teams [2][]battle.RosterSlot
	if cfg.Players[0] == "" || cfg.Players[1] == "" {
		return teams, apperrors.New(apperrors.CodeInvalidConfig, "both player ids are required")
	}
	if cfg.Players[0] == cfg.Players[1] {
		return teams, apperrors.New(apperrors.CodeInvalidConfig, "players must differ")
	}
	if cfg.Mode != battle.ModeSingles && cfg.Mode != battle.ModeDoubles {
		return teams, apperrors.New(apperrors.CodeInvalidConfig, fmt.Sprintf("unknown game mode %d", cfg.Mode))
	}
	if cfg.Initiator != cfg.Players[0] && cfg.Initiator != cfg.Players[1] &&
		(e.authority == "" || cfg.Initiator != e.authority) {
		return teams, apperrors.WithMetadata(apperrors.CodeUnauthorizedInitiator,
			"initiator is neither a player nor the authority",
			map[string]string{"Initiator": cfg.Initiator})
	}
	if e.rosters == nil {
		return teams, apperrors.New(apperrors.CodeInvalidConfig, "no roster source configured")
	}
	for p := 0; p < 2; p++ {
		slots, err := e.rosters.Roster(cfg.Players[p], cfg.RosterIndex[p])
		if err != nil {
			return teams, apperrors.Wrap(apperrors.CodeRosterInvalid,
				fmt.Sprintf("resolve roster %d for %s", cfg.RosterIndex[p], cfg.Players[p]), err)
		}
		if err := checkRoster(cfg.Mode, slots); err != nil {
			return teams, apperrors.WithMetadata(apperrors.CodeRosterInvalid, err.Error(),
				map[string]string{"Player": cfg.Players[p]})
		}
		teams[p] = slots
	}
	if len(teams[0]) != len(teams[1]) {
		return teams, apperrors.WithMetadata(apperrors.CodeRosterMismatch,
			fmt.Sprintf("roster sizes differ: %d vs %d", len(teams[0]), len(teams[1])),
			map[string]string{"Player0": cfg.Players[0], "Player1": cfg.Players[1]})
	}
	return teams, nil
}

func checkRoster(mode battle.GameMode, slots []battle.RosterSlot) error {
	switch {
	case len(slots) == 0:
		return errors.New("roster is empty")
	case len(slots) > battle.MaxTeamSize:
		return fmt.Errorf("roster has %d mons, max %d", len(slots), battle.MaxTeamSize)
	case mode == battle.ModeDoubles && len(slots) < battle.SlotsPerPlayer:
		return fmt.Errorf("doubles needs at least %d mons", battle.SlotsPerPlayer)
	}
	for i, s := range slots {
		if len(s.Moves) > battle.MovesPerMon {
			return fmt.Errorf("mon %d has %d moves, max %d", i, len(s.Moves), battle.MovesPerMon)
		}
	}
	return nil
}

// run executes fn inside a call on battle id and settles the outcome.
func (e *Engine) run(id string, fn func(c *call) error) (TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.store.Config(id)
	if err != nil {
		return TurnResult{}, battleError(apperrors.CodeNotFound, id, "battle %s not found", id)
	}
	st, ok := e.store.Status(id)
	if !ok {
		if _, done := e.store.Final(id); done {
			return TurnResult{}, battleError(apperrors.CodeBattleOver, id, "battle %s is over", id)
		}
		return TurnResult{}, battleError(apperrors.CodeNotFound, id, "battle %s not found", id)
	}
	if st.Winner != battle.WinnerNone {
		return TurnResult{}, battleError(apperrors.CodeBattleOver, id, "battle %s is over", id)
	}

	snap := cfg.Clone()
	prev := *st
	c := e.newCall(cfg, st, e.now())
	defer c.release()

	err = fn(c)
	if err == nil {
		err = c.err
	}
	if err == nil && st.Winner != battle.WinnerNone {
		err = c.end()
	}
	if err != nil {
		*cfg = *snap
		*st = prev
		return TurnResult{}, err
	}
	res := c.result()
	if st.Winner != battle.WinnerNone {
		e.store.Finish(id)
	}
	return res, nil
}

// newCall opens the scratch context for one entry point.
func (e *Engine) newCall(cfg *store.Config, st *battle.Status, now time.Time) *call {
	c := &call{
		cfg:     cfg,
		st:      st,
		now:     now,
		touched: make(map[battle.Target]struct{}),
	}
	c.validator = cfg.Battle.Validator
	if c.validator == nil {
		c.validator = e.validator
	}
	c.disp.Config = cfg
	c.disp.Touched = c.touch
	return c
}
