package validate

import (
	"testing"
	"time"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

type costMove struct {
	cost    int32
	blocked bool
}

func (m costMove) Name() string { return "cost" }
func (m costMove) Priority(battle.View, int) int { return battle.DefaultPriority }
func (m costMove) StaminaCost(battle.View, int, int) int32 { return m.cost }
func (m costMove) Execute(battle.Engine, int, int, int, uint16, uint64) {}
func (m costMove) IsValidTarget(battle.View, int, uint16) bool { return !m.blocked }

type view struct {
	mode   battle.GameMode
	turn   uint64
	active battle.Active
	slots  [2][]battle.RosterSlot
	state  [2][]battle.CombatantState
}

func newView(mode battle.GameMode, turn uint64, teamSize int) *view {
	v := &view{mode: mode, turn: turn}
	for p := 0; p < 2; p++ {
		for i := 0; i < teamSize; i++ {
			v.slots[p] = append(v.slots[p], battle.RosterSlot{
				Stats: battle.Stats{HP: 100, Stamina: 5, Speed: 10},
				Moves: []battle.Move{costMove{cost: 2}, costMove{cost: 9}, costMove{cost: 1, blocked: true}},
			})
			v.state[p] = append(v.state[p], battle.ClearedCombatant())
		}
	}
	if mode == battle.ModeDoubles {
		v.active = battle.Active{{0, 1}, {0, 1}}
	}
	return v
}

func (v *view) BattleID() string { return "v" }
func (v *view) Mode() battle.GameMode { return v.mode }
func (v *view) Turn() uint64 { return v.turn }
func (v *view) Active() battle.Active { return v.active }
func (v *view) TeamSize(p int) int { return len(v.slots[p]) }
func (v *view) Slot(p, m int) battle.RosterSlot { return v.slots[p][m] }
func (v *view) MonState(p, m int) battle.CombatantState { return v.state[p][m] }
func (v *view) StatValue(p, m int, s battle.Stat) int64 {
	return v.slots[p][m].Stats.Base(s) + int64(v.state[p][m].Delta(s))
}

func move(i uint8) battle.Decision { return battle.Decision{MoveIndex: i} }

func switchTo(mon uint16) battle.Decision {
	return battle.Decision{MoveIndex: battle.SwitchMoveIndex, Extra: mon}
}

func noOp() battle.Decision { return battle.Decision{MoveIndex: battle.NoOpMoveIndex} }

func TestPlayerMoveSingles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		turn  uint64
		setup func(v *view)
		d     battle.Decision
		want  bool
	}{
		{name: "turn zero requires switch", turn: 0, d: move(0), want: false},
		{name: "turn zero accepts any lead", turn: 0, d: switchTo(0), want: true},
		{name: "turn zero rejects no-op", turn: 0, d: noOp(), want: false},
		{name: "affordable move", turn: 1, d: move(0), want: true},
		{name: "insufficient stamina", turn: 1, d: move(1), want: false},
		{name: "move disabled by target rule", turn: 1, d: move(2), want: false},
		{name: "index past moves", turn: 1, d: move(3), want: false},
		{name: "index past move slots", turn: 1, d: move(battle.MovesPerMon), want: false},
		{name: "no-op allowed", turn: 1, d: noOp(), want: true},
		{name: "switch to self rejected", turn: 1, d: switchTo(0), want: false},
		{name: "switch to bench", turn: 1, d: switchTo(2), want: true},
		{name: "switch out of range", turn: 1, d: switchTo(3), want: false},
		{
			name:  "stamina spent reduces budget",
			turn:  1,
			setup: func(v *view) { v.state[0][0].Deltas[battle.StatStamina] = -4 },
			d:     move(0),
			want:  false,
		},
		{
			name:  "knocked out active must switch",
			turn:  2,
			setup: func(v *view) { v.state[0][0].KnockedOut = true },
			d:     move(0),
			want:  false,
		},
		{
			name:  "knocked out active may switch",
			turn:  2,
			setup: func(v *view) { v.state[0][0].KnockedOut = true },
			d:     switchTo(1),
			want:  true,
		},
		{
			name:  "switch into knocked out mon rejected",
			turn:  2,
			setup: func(v *view) { v.state[0][1].KnockedOut = true },
			d:     switchTo(1),
			want:  false,
		},
		{
			name:  "knocked out with bench cannot pass",
			turn:  2,
			setup: func(v *view) { v.state[0][0].KnockedOut = true },
			d:     noOp(),
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newView(battle.ModeSingles, tt.turn, 3)
			if tt.setup != nil {
				tt.setup(v)
			}
			if got := PlayerMove(v, 0, 0, tt.d, NoClaim); got != tt.want {
				t.Fatalf("PlayerMove = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSwitchDoublesRejectsPartnerAndClaimedMon(t *testing.T) {
	t.Parallel()

	v := newView(battle.ModeDoubles, 3, 4)
	v.state[0][0].KnockedOut = true

	if Switch(v, 0, 0, 1, NoClaim) {
		t.Fatal("switch into partner slot's active mon should be rejected")
	}
	if !Switch(v, 0, 0, 2, NoClaim) {
		t.Fatal("switch into bench mon should be accepted")
	}
	if Switch(v, 0, 0, 2, 2) {
		t.Fatal("switch into mon claimed by partner slot should be rejected")
	}
	if !PlayerMove(v, 0, 0, switchTo(3), 2) {
		t.Fatal("switch into unclaimed bench mon should be accepted")
	}
}

func TestPlayerMoveDoublesTurnZeroLeads(t *testing.T) {
	t.Parallel()

	v := newView(battle.ModeDoubles, 0, 3)
	if !PlayerMove(v, 1, 1, switchTo(0), NoClaim) {
		t.Fatal("turn zero lead may be any mon")
	}
	if PlayerMove(v, 1, 1, switchTo(0), 0) {
		t.Fatal("turn zero leads must differ between slots")
	}
	if PlayerMove(v, 1, 2, switchTo(0), NoClaim) {
		t.Fatal("slot out of range should be rejected")
	}
}

func TestKnockedOutSlotWithoutBenchMayPass(t *testing.T) {
	t.Parallel()

	v := newView(battle.ModeDoubles, 4, 2)
	v.state[1][0].KnockedOut = true
	if !PlayerMove(v, 1, 0, noOp(), NoClaim) {
		t.Fatal("slot with nothing to switch to should be allowed to pass")
	}
	if PlayerMove(v, 1, 0, move(0), NoClaim) {
		t.Fatal("knocked out mon cannot use a move")
	}
}

func TestDefaultImplementsValidator(t *testing.T) {
	t.Parallel()

	var val battle.Validator = Default{}
	v := newView(battle.ModeSingles, 1, 2)
	if !val.ValidateMoveSelection(v, 0, 0, 0, 0) {
		t.Fatal("expected affordable move to validate")
	}
	if val.ValidateSwitch(v, 0, 0, 0, NoClaim) {
		t.Fatal("expected self switch to fail")
	}
}

func TestTimeoutSinglePlayerSwitch(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	d := time.Minute
	c := battle.Clock{Flag: battle.ActPlayer1Only, LastTurnAt: start, Duration: d}

	c.Now = start.Add(2*d - time.Nanosecond)
	if _, ok := Timeout(c); ok {
		t.Fatal("forfeit declared one tick early")
	}
	c.Now = start.Add(2 * d)
	p, ok := Timeout(c)
	if !ok || p != 1 {
		t.Fatalf("Timeout = %d, %v, want 1, true", p, ok)
	}
	c.Revealed[1] = true
	if _, ok := Timeout(c); ok {
		t.Fatal("player who acted should not forfeit")
	}
}

func TestTimeoutCommitRevealRound(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	d := 30 * time.Second

	tests := []struct {
		name   string
		clock  battle.Clock
		want   int
		wantOK bool
	}{
		{
			name:  "committer idle before double duration",
			clock: battle.Clock{Flag: battle.ActBoth, Committer: 0, LastTurnAt: start, Duration: d, Now: start.Add(2*d - time.Nanosecond)},
		},
		{
			name:   "committer idle past double duration",
			clock:  battle.Clock{Flag: battle.ActBoth, Committer: 0, LastTurnAt: start, Duration: d, Now: start.Add(2 * d)},
			want:   0,
			wantOK: true,
		},
		{
			name: "revealer one tick before deadline",
			clock: battle.Clock{
				Flag: battle.ActBoth, Committer: 1, LastTurnAt: start, Duration: d,
				Committed: true, CommittedAt: start.Add(10 * time.Second),
				Now: start.Add(10*time.Second + d - time.Nanosecond),
			},
		},
		{
			name: "revealer misses deadline after commit",
			clock: battle.Clock{
				Flag: battle.ActBoth, Committer: 1, LastTurnAt: start, Duration: d,
				Committed: true, CommittedAt: start.Add(10 * time.Second),
				Now: start.Add(10*time.Second + d),
			},
			want:   0,
			wantOK: true,
		},
		{
			name: "committer misses its reveal",
			clock: battle.Clock{
				Flag: battle.ActBoth, Committer: 0, LastTurnAt: start, Duration: d,
				Committed: true, CommittedAt: start,
				Revealed: [2]bool{false, true}, RevealedAt: [2]time.Time{{}, start.Add(5 * time.Second)},
				Now: start.Add(5*time.Second + d),
			},
			want:   0,
			wantOK: true,
		},
		{
			name: "everyone revealed",
			clock: battle.Clock{
				Flag: battle.ActBoth, Committer: 0, LastTurnAt: start, Duration: d,
				Committed: true, CommittedAt: start, Revealed: [2]bool{true, true},
				Now: start.Add(time.Hour),
			},
		},
		{
			name:  "no duration configured",
			clock: battle.Clock{Flag: battle.ActBoth, LastTurnAt: start, Now: start.Add(time.Hour)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Timeout(tt.clock)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Fatalf("Timeout = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCommitterAlternates(t *testing.T) {
	t.Parallel()

	if Committer(0) != 0 || Committer(1) != 1 || Committer(6) != 0 {
		t.Fatal("committer should alternate with the turn")
	}
}
