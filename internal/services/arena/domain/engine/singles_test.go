package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

func TestKnockoutEndsBattleImmediately(t *testing.T) {
	t.Parallel()

	hooks := &recordingHooks{}
	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(120))},
		"bob":   {mon(100, 10, hit(10))},
	}, WithRuleset(ruleset{{Effect: roundCounter{}}}))
	b := start(t, e, battle.ModeSingles, hooks)
	if hooks.starts != 1 {
		t.Fatalf("starts = %d, want 1", hooks.starts)
	}

	res := playSingles(t, e, b.ID, lead(0), lead(0))
	if res.Turn != 1 || res.Winner != battle.WinnerNone || res.Flag != battle.ActBoth {
		t.Fatalf("after leads: %+v", res)
	}

	res = playSingles(t, e, b.ID, use(0, 0), use(0, 0))
	if res.Winner != battle.WinnerPlayer0 {
		t.Fatalf("winner = %s, want %s", res.Winner, battle.WinnerPlayer0)
	}
	if res.Turn != 1 {
		t.Fatalf("turn = %d, want 1 (unchanged by the ending turn)", res.Turn)
	}
	if countEvents(res.Events, EventMove) != 1 {
		t.Fatalf("moves executed = %d, want 1", countEvents(res.Events, EventMove))
	}
	if hooks.ends != 1 || hooks.winner != battle.WinnerPlayer0 {
		t.Fatalf("end hooks = %d winner %s, want 1 %s", hooks.ends, hooks.winner, battle.WinnerPlayer0)
	}

	alice, err := e.MonState(b.ID, 0, 0)
	if err != nil {
		t.Fatalf("mon state: %v", err)
	}
	if alice.Touched(battle.StatHP) {
		t.Fatal("second action should have been skipped")
	}
	bob, _ := e.MonState(b.ID, 1, 0)
	if !bob.KnockedOut || bob.Delta(battle.StatHP) != -120 {
		t.Fatalf("bob = %+v, want knocked out with -120 hp", bob)
	}

	global, err := e.Effects(b.ID, battle.GlobalTarget())
	if err != nil {
		t.Fatalf("effects: %v", err)
	}
	if len(global) != 1 || global[0].Data != 1 {
		t.Fatalf("round counter = %+v, want one round end", global)
	}

	st, err := e.Status(b.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Winner != battle.WinnerPlayer0 || st.Turn != 1 {
		t.Fatalf("status = %+v", st)
	}
	if _, err := e.AdvanceTurn(b.ID); !errors.Is(err, ErrBattleOver) {
		t.Fatalf("advance after end: got %v, want %v", err, ErrBattleOver)
	}
	if _, err := e.SubmitAction(b.ID, 0, 0, pass()); !errors.Is(err, ErrBattleOver) {
		t.Fatalf("submit after end: got %v, want %v", err, ErrBattleOver)
	}
	if e.Live() != 0 {
		t.Fatalf("live battles = %d, want 0", e.Live())
	}
	if hooks.ends != 1 {
		t.Fatalf("end hooks = %d, want exactly 1", hooks.ends)
	}
}

func TestKnockoutAtExactlyZeroHP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		damage   int32
		wantKO   bool
		wantFlag battle.ActFlag
	}{
		{name: "exactly zero", damage: 100, wantKO: true, wantFlag: battle.ActPlayer1Only},
		{name: "one above zero", damage: 99, wantKO: false, wantFlag: battle.ActBoth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, rosters{
				"alice": {mon(100, 20, hit(tt.damage)), mon(100, 20, hit(1))},
				"bob":   {mon(100, 10, hit(1)), mon(100, 10, hit(1))},
			})
			b := start(t, e, battle.ModeSingles)
			playSingles(t, e, b.ID, lead(0), lead(0))
			res := playSingles(t, e, b.ID, use(0, 0), use(0, 0))

			state, _ := e.MonState(b.ID, 1, 0)
			if state.KnockedOut != tt.wantKO {
				t.Fatalf("knocked out = %v, want %v", state.KnockedOut, tt.wantKO)
			}
			if res.Flag != tt.wantFlag {
				t.Fatalf("flag = %s, want %s", res.Flag, tt.wantFlag)
			}
			if res.Winner != battle.WinnerNone {
				t.Fatalf("winner = %s, want none", res.Winner)
			}
		})
	}
}

func TestTieBrokenByDerivedRandomness(t *testing.T) {
	t.Parallel()

	play := func(s0, s1 [32]byte) int {
		e, _ := newTestEngine(t, rosters{
			"alice": {mon(100, 10, hit(1))},
			"bob":   {mon(100, 10, hit(1))},
		})
		b := start(t, e, battle.ModeSingles)
		playSingles(t, e, b.ID, lead(0), lead(0))
		d0, d1 := use(0, 0), use(0, 0)
		d0.Salt, d1.Salt = s0, s1
		res := playSingles(t, e, b.ID, d0, d1)
		for _, ev := range res.Events {
			if ev.Kind == EventMove {
				return ev.Player
			}
		}
		t.Fatal("no move executed")
		return -1
	}

	for i := byte(0); i < 8; i++ {
		s0, s1 := salt(i), salt(i+100)
		want := int(KeccakRNG{}.Derive(s0, s1) & 1)
		first := play(s0, s1)
		if first != want {
			t.Fatalf("salts %d: first = %d, want %d", i, first, want)
		}
		if again := play(s0, s1); again != first {
			t.Fatalf("salts %d: replay first = %d, want %d", i, again, first)
		}
	}
}

func TestTurnCounterAdvancesByOne(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(1))},
		"bob":   {mon(100, 10, hit(1))},
	})
	b := start(t, e, battle.ModeSingles)
	playSingles(t, e, b.ID, lead(0), lead(0))
	for want := uint64(2); want < 6; want++ {
		res := playSingles(t, e, b.ID, use(0, 0), pass())
		if res.Turn != want {
			t.Fatalf("turn = %d, want %d", res.Turn, want)
		}
	}
}

func TestReadAccessorsAreIdempotent(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(7))},
		"bob":   {mon(100, 10, hit(3))},
	})
	b := start(t, e, battle.ModeSingles)
	playSingles(t, e, b.ID, lead(0), lead(0))
	playSingles(t, e, b.ID, use(0, 0), use(0, 0))

	st1, _ := e.Status(b.ID)
	st2, _ := e.Status(b.ID)
	if st1 != st2 {
		t.Fatalf("status changed between reads: %+v vs %+v", st1, st2)
	}
	m1, _ := e.MonState(b.ID, 1, 0)
	m2, _ := e.MonState(b.ID, 1, 0)
	if m1 != m2 {
		t.Fatalf("mon state changed between reads: %+v vs %+v", m1, m2)
	}
	a1, _ := e.ActiveMons(b.ID)
	a2, _ := e.ActiveMons(b.ID)
	if a1 != a2 {
		t.Fatalf("active mons changed between reads")
	}
	if m1.Delta(battle.StatHP) != -7 {
		t.Fatalf("bob hp delta = %d, want -7", m1.Delta(battle.StatHP))
	}
}

func TestZeroDurationBattleRollsBack(t *testing.T) {
	t.Parallel()

	e, clk := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(120))},
		"bob":   {mon(100, 10, hit(10))},
	})
	clk.step = 0
	b := start(t, e, battle.ModeSingles)
	playSingles(t, e, b.ID, lead(0), lead(0))

	submit(t, e, b.ID, 0, 0, use(0, 0))
	submit(t, e, b.ID, 1, 0, use(0, 0))
	if _, err := e.AdvanceTurn(b.ID); !errors.Is(err, ErrZeroDuration) {
		t.Fatalf("advance: got %v, want %v", err, ErrZeroDuration)
	}

	st, err := e.Status(b.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Winner != battle.WinnerNone || st.Turn != 1 {
		t.Fatalf("status = %+v, want untouched turn 1 without winner", st)
	}
	bob, _ := e.MonState(b.ID, 1, 0)
	if bob.KnockedOut || bob.Touched(battle.StatHP) {
		t.Fatalf("bob = %+v, want untouched", bob)
	}
	if ready, _ := e.Ready(b.ID); !ready {
		t.Fatal("submitted decisions should survive the rollback")
	}

	clk.t = clk.t.Add(time.Second)
	res := advance(t, e, b.ID)
	if res.Winner != battle.WinnerPlayer0 {
		t.Fatalf("winner = %s, want %s", res.Winner, battle.WinnerPlayer0)
	}
}

func TestIllegalDecisionIsSkipped(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(5))},
		"bob":   {mon(100, 10, hit(5))},
	})
	b := start(t, e, battle.ModeSingles)
	playSingles(t, e, b.ID, lead(0), lead(0))

	res := playSingles(t, e, b.ID, use(3, 0), use(0, 0))
	if res.Turn != 2 {
		t.Fatalf("turn = %d, want 2", res.Turn)
	}
	if countEvents(res.Events, EventRejected) != 1 || countEvents(res.Events, EventMove) != 1 {
		t.Fatalf("events = %+v, want one rejection and one move", res.Events)
	}
	alice, _ := e.MonState(b.ID, 0, 0)
	if alice.Delta(battle.StatHP) != -5 {
		t.Fatalf("alice hp delta = %d, want -5", alice.Delta(battle.StatHP))
	}
}

func TestAdvanceRequiresDecisions(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(5))},
		"bob":   {mon(100, 10, hit(5))},
	})
	b := start(t, e, battle.ModeSingles)
	submit(t, e, b.ID, 0, 0, lead(0))
	if _, err := e.AdvanceTurn(b.ID); !errors.Is(err, ErrActionMissing) {
		t.Fatalf("advance: got %v, want %v", err, ErrActionMissing)
	}
	if _, err := e.AdvanceTurn("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("advance unknown: got %v, want %v", err, ErrNotFound)
	}
	if _, err := e.SubmitAction(b.ID, 0, 1, lead(0)); !errors.Is(err, ErrIllegalAction) {
		t.Fatalf("submit to slot 1 in singles: got %v, want %v", err, ErrIllegalAction)
	}
}

func TestForcedSwitchTurnSingles(t *testing.T) {
	t.Parallel()

	count := 0
	ability := countingAbility{n: &count}
	bench := mon(100, 10, hit(1))
	bench.Ability = ability
	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(100)), mon(100, 1, hit(1))},
		"bob":   {mon(100, 10, hit(1)), bench},
	})
	b := start(t, e, battle.ModeSingles)
	playSingles(t, e, b.ID, lead(0), lead(0))

	res := playSingles(t, e, b.ID, use(0, 0), use(0, 0))
	if res.Flag != battle.ActPlayer1Only || res.Turn != 2 {
		t.Fatalf("result = %+v, want player1-only switch on turn 2", res)
	}
	if countEvents(res.Events, EventMove) != 1 {
		t.Fatal("knocked out mon should not act")
	}
	if _, err := e.SubmitAction(b.ID, 0, 0, use(0, 0)); !errors.Is(err, ErrNotSubmissionTurn) {
		t.Fatalf("submit from player0: got %v, want %v", err, ErrNotSubmissionTurn)
	}

	submit(t, e, b.ID, 1, 0, lead(1))
	res = advance(t, e, b.ID)
	if res.Flag != battle.ActBoth || res.Turn != 3 {
		t.Fatalf("result = %+v, want both acting on turn 3", res)
	}
	active, _ := e.ActiveMons(b.ID)
	if active.Mon(1, 0) != 1 {
		t.Fatalf("bob active = %d, want 1", active.Mon(1, 0))
	}
	if count != 1 {
		t.Fatalf("ability fired %d times, want 1", count)
	}
}

// reviver tries to clear the knocked-out flag of player1's first mon at
// every round end.
type reviver struct{}

func (reviver) Name() string { return "reviver" }
func (reviver) Steps() battle.StepBitmap { return battle.StepsOf(battle.StepRoundEnd) }
func (reviver) ShouldApply(battle.View, battle.Target, uint64) bool { return true }
func (reviver) Run(e battle.Engine, in battle.StepInput) (uint64, bool) {
	e.UpdateMonState(1, 0, battle.StatKnockedOut, 0)
	return in.Data, false
}

func TestKnockedOutFlagCannotClearAtZeroHP(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, hit(100)), mon(100, 1, hit(1))},
		"bob":   {mon(100, 10, hit(1)), mon(100, 1, hit(1))},
	}, WithRuleset(ruleset{{Effect: reviver{}}}))
	b := start(t, e, battle.ModeSingles)
	playSingles(t, e, b.ID, lead(0), lead(0))

	res := playSingles(t, e, b.ID, use(0, 0), use(0, 0))
	state, err := e.MonState(b.ID, 1, 0)
	if err != nil {
		t.Fatalf("mon state: %v", err)
	}
	if !state.KnockedOut {
		t.Fatalf("bob mon0 knocked out = false with hp delta %d, want true", state.Delta(battle.StatHP))
	}
	if res.Flag != battle.ActPlayer1Only {
		t.Fatalf("flag = %s, want %s", res.Flag, battle.ActPlayer1Only)
	}
	rejected := false
	for _, ev := range res.Events {
		if ev.Kind == EventRejected && ev.Player == 1 && ev.Mon == 0 {
			rejected = true
		}
	}
	if !rejected {
		t.Fatalf("events = %+v, want the revive rejected", res.Events)
	}
}

func TestAbilitiesFireOnceAfterLeads(t *testing.T) {
	t.Parallel()

	count := 0
	m := mon(100, 10, hit(1))
	m.Ability = countingAbility{n: &count}
	e, _ := newTestEngine(t, rosters{"alice": {m}, "bob": {m}})
	b := start(t, e, battle.ModeSingles)

	playSingles(t, e, b.ID, lead(0), lead(0))
	if count != 2 {
		t.Fatalf("ability count after leads = %d, want 2", count)
	}
	playSingles(t, e, b.ID, use(0, 0), use(0, 0))
	if count != 2 {
		t.Fatalf("ability count after a move turn = %d, want 2", count)
	}
}

func TestEffectLifecycleThroughTurns(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, rosters{
		"alice": {mon(100, 20, ignite{turns: 2})},
		"bob":   {mon(100, 10, hit(1))},
	})
	b := start(t, e, battle.ModeSingles)
	playSingles(t, e, b.ID, lead(0), lead(0))

	res := playSingles(t, e, b.ID, use(0, 0), pass())
	target := battle.MonTarget(1, 0)
	found := false
	for _, tt := range res.Touched {
		if tt == target {
			found = true
		}
	}
	if !found {
		t.Fatalf("touched = %+v, want %+v", res.Touched, target)
	}
	live, _ := e.Effects(b.ID, target)
	if len(live) != 1 || live[0].Data != 1 {
		t.Fatalf("effects = %+v, want one with data 1", live)
	}
	alice, _ := e.MonState(b.ID, 0, 0)
	if alice.Delta(battle.StatStamina) != -1 {
		t.Fatalf("stamina delta = %d, want -1", alice.Delta(battle.StatStamina))
	}

	playSingles(t, e, b.ID, pass(), pass())
	live, _ = e.Effects(b.ID, target)
	if len(live) != 0 {
		t.Fatalf("effects = %+v, want none", live)
	}
	bob, _ := e.MonState(b.ID, 1, 0)
	if bob.Delta(battle.StatHP) != -20 || bob.Delta(battle.StatAttack) != -1 {
		t.Fatalf("bob = %+v, want -20 hp and -1 attack", bob)
	}
}
