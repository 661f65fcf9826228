package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// testClock returns t and then moves it forward by step.
type testClock struct {
	t    time.Time
	step time.Duration
}

func (c *testClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type rosters map[string][]battle.RosterSlot

func (r rosters) Roster(player string, index int) ([]battle.RosterSlot, error) {
	slots, ok := r[player]
	if !ok || index != 0 {
		return nil, fmt.Errorf("no roster %d for %s", index, player)
	}
	return append([]battle.RosterSlot(nil), slots...), nil
}

type strike struct {
	amount int32
	prio   int
	cost   int32
}

func (m strike) Name() string { return fmt.Sprintf("strike%d", m.amount) }
func (m strike) Priority(battle.View, int) int { return m.prio }
func (m strike) StaminaCost(battle.View, int, int) int32 { return m.cost }
func (m strike) Execute(e battle.Engine, player, _, target int, _ uint16, _ uint64) {
	e.DealDamage(1-player, target, m.amount)
}

func hit(amount int32) strike { return strike{amount: amount, prio: battle.DefaultPriority} }

// ignite attaches dot to the target.
type ignite struct{ turns uint64 }

func (ignite) Name() string { return "ignite" }
func (ignite) Priority(battle.View, int) int { return battle.DefaultPriority }
func (ignite) StaminaCost(battle.View, int, int) int32 { return 1 }
func (m ignite) Execute(e battle.Engine, player, _, target int, _ uint16, _ uint64) {
	e.AddEffect(battle.MonTarget(1-player, target), dot{}, m.turns)
}

// dot deals 10 damage at round end for data rounds, then lowers attack by
// one when removed.
type dot struct{}

func (dot) Name() string { return "dot" }
func (dot) Steps() battle.StepBitmap {
	return battle.StepsOf(battle.StepRoundEnd, battle.StepOnRemove)
}
func (dot) ShouldApply(battle.View, battle.Target, uint64) bool { return true }
func (dot) Run(e battle.Engine, in battle.StepInput) (uint64, bool) {
	switch in.Step {
	case battle.StepRoundEnd:
		e.DealDamage(in.Target.Player, in.Target.Mon, 10)
		return in.Data - 1, in.Data <= 1
	case battle.StepOnRemove:
		e.UpdateMonState(in.Target.Player, in.Target.Mon, battle.StatAttack, -1)
	}
	return in.Data, false
}

// roundCounter counts round ends in its data word.
type roundCounter struct{}

func (roundCounter) Name() string { return "round_counter" }
func (roundCounter) Steps() battle.StepBitmap { return battle.StepsOf(battle.StepRoundEnd) }
func (roundCounter) ShouldApply(battle.View, battle.Target, uint64) bool { return true }
func (roundCounter) Run(_ battle.Engine, in battle.StepInput) (uint64, bool) {
	return in.Data + 1, false
}

type ruleset []battle.EffectSpec

func (r ruleset) GlobalEffects() []battle.EffectSpec { return r }

type countingAbility struct{ n *int }

func (a countingAbility) Name() string { return "counting" }
func (a countingAbility) OnSwitchIn(battle.Engine, int, int) { *a.n++ }

type recordingHooks struct {
	starts int
	ends   int
	winner battle.Winner
}

func (h *recordingHooks) OnBattleStart(battle.Engine) { h.starts++ }
func (h *recordingHooks) OnBattleEnd(_ battle.Engine, w battle.Winner) {
	h.ends++
	h.winner = w
}

func mon(hp, speed uint32, moves ...battle.Move) battle.RosterSlot {
	return battle.RosterSlot{
		Name:  "mon",
		Stats: battle.Stats{HP: hp, Stamina: 10, Speed: speed, Attack: 10, Defense: 10},
		Moves: moves,
	}
}

func salt(b byte) [32]byte {
	var s [32]byte
	s[31] = b
	return s
}

func lead(m uint16) battle.Decision {
	return battle.Decision{MoveIndex: battle.SwitchMoveIndex, Extra: m}
}

func use(i uint8, extra uint16) battle.Decision {
	return battle.Decision{MoveIndex: i, Extra: extra}
}

func pass() battle.Decision { return battle.Decision{MoveIndex: battle.NoOpMoveIndex} }

func newTestEngine(t *testing.T, r rosters, opts ...Option) (*Engine, *testClock) {
	t.Helper()
	clk := &testClock{t: t0, step: time.Second}
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return New(r, opts...), clk
}

func start(t *testing.T, e *Engine, mode battle.GameMode, hooks ...battle.Hooks) battle.Battle {
	t.Helper()
	b, err := e.StartBattle(StartConfig{
		Initiator: "alice",
		Players:   [2]string{"alice", "bob"},
		Mode:      mode,
		Hooks:     hooks,
	})
	if err != nil {
		t.Fatalf("start battle: %v", err)
	}
	return b
}

func submit(t *testing.T, e *Engine, id string, player, slot int, d battle.Decision) {
	t.Helper()
	if _, err := e.SubmitAction(id, player, slot, d); err != nil {
		t.Fatalf("submit player %d slot %d: %v", player, slot, err)
	}
}

func advance(t *testing.T, e *Engine, id string) TurnResult {
	t.Helper()
	res, err := e.AdvanceTurn(id)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return res
}

// playSingles submits one decision per player and advances.
func playSingles(t *testing.T, e *Engine, id string, d0, d1 battle.Decision) TurnResult {
	t.Helper()
	submit(t, e, id, 0, 0, d0)
	submit(t, e, id, 1, 0, d1)
	return advance(t, e, id)
}

func countEvents(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
