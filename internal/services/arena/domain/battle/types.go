package battle

import (
	"math"
	"time"
)

const (
	// MovesPerMon is the number of move plugins a roster slot may carry.
	MovesPerMon = 4
	// MaxTeamSize bounds roster length so indices fit the packed words.
	MaxTeamSize = 8
	// SlotsPerPlayer is the number of simultaneous positions in doubles.
	SlotsPerPlayer = 2

	// SwitchMoveIndex is the reserved move index for switching.
	SwitchMoveIndex uint8 = 125
	// NoOpMoveIndex is the reserved move index for passing a turn.
	NoOpMoveIndex uint8 = 126

	// SwitchPriority is the tier used by switches and no-ops.
	SwitchPriority = 6
	// DefaultPriority is the tier most moves report.
	DefaultPriority = 3

	// ClearedDelta marks a delta slot that was reset for a new battle and has
	// not been written since. It reads as zero.
	ClearedDelta int32 = math.MaxInt32 - 1
)

// GameMode selects the executor used for a battle.
type GameMode uint8

const (
	ModeSingles GameMode = iota
	ModeDoubles
)

func (m GameMode) String() string {
	switch m {
	case ModeSingles:
		return "singles"
	case ModeDoubles:
		return "doubles"
	default:
		return "unknown"
	}
}

// Slots returns the number of active positions per player.
func (m GameMode) Slots() int {
	if m == ModeDoubles {
		return SlotsPerPlayer
	}
	return 1
}

// Winner records the battle outcome. Exactly one value holds at a time.
type Winner uint8

const (
	WinnerNone Winner = iota
	WinnerPlayer0
	WinnerPlayer1
)

// WinnerFor returns the winner value for a player index.
func WinnerFor(player int) Winner {
	if player == 0 {
		return WinnerPlayer0
	}
	return WinnerPlayer1
}

// Player returns the winning player index, or -1 when there is no winner.
func (w Winner) Player() int {
	switch w {
	case WinnerPlayer0:
		return 0
	case WinnerPlayer1:
		return 1
	default:
		return -1
	}
}

func (w Winner) String() string {
	switch w {
	case WinnerPlayer0:
		return "player0"
	case WinnerPlayer1:
		return "player1"
	default:
		return "none"
	}
}

// ActFlag names who must act on the next turn.
type ActFlag uint8

const (
	ActPlayer0Only ActFlag = iota
	ActPlayer1Only
	ActBoth
)

// Single reports the only player that acts, if the flag names one.
func (f ActFlag) Single() (int, bool) {
	switch f {
	case ActPlayer0Only:
		return 0, true
	case ActPlayer1Only:
		return 1, true
	default:
		return 0, false
	}
}

// Includes reports whether player acts under the flag.
func (f ActFlag) Includes(player int) bool {
	if p, ok := f.Single(); ok {
		return p == player
	}
	return true
}

func (f ActFlag) String() string {
	switch f {
	case ActPlayer0Only:
		return "player0"
	case ActPlayer1Only:
		return "player1"
	default:
		return "both"
	}
}

// FlagFor builds the act flag from which players owe a forced switch.
func FlagFor(p0Switch, p1Switch bool) ActFlag {
	switch {
	case p0Switch && !p1Switch:
		return ActPlayer0Only
	case p1Switch && !p0Switch:
		return ActPlayer1Only
	default:
		return ActBoth
	}
}

// Type is an elemental tag.
type Type uint8

// Stat indexes a mutable combatant attribute.
type Stat uint8

const (
	StatHP Stat = iota
	StatStamina
	StatSpeed
	StatAttack
	StatDefense
	StatSpecialAttack
	StatSpecialDefense
	StatKnockedOut
	StatSkipTurn
)

// NumDeltaStats is the number of stats tracked as signed deltas.
const NumDeltaStats = 7

func (s Stat) String() string {
	switch s {
	case StatHP:
		return "hp"
	case StatStamina:
		return "stamina"
	case StatSpeed:
		return "speed"
	case StatAttack:
		return "attack"
	case StatDefense:
		return "defense"
	case StatSpecialAttack:
		return "special_attack"
	case StatSpecialDefense:
		return "special_defense"
	case StatKnockedOut:
		return "knocked_out"
	case StatSkipTurn:
		return "skip_turn"
	default:
		return "unknown"
	}
}

// Stats are the base attributes of a roster slot.
type Stats struct {
	HP             uint32
	Stamina        uint32
	Speed          uint32
	Attack         uint32
	Defense        uint32
	SpecialAttack  uint32
	SpecialDefense uint32
	Type1          Type
	Type2          Type
}

// Base returns the base value for a delta stat.
func (s Stats) Base(stat Stat) int64 {
	switch stat {
	case StatHP:
		return int64(s.HP)
	case StatStamina:
		return int64(s.Stamina)
	case StatSpeed:
		return int64(s.Speed)
	case StatAttack:
		return int64(s.Attack)
	case StatDefense:
		return int64(s.Defense)
	case StatSpecialAttack:
		return int64(s.SpecialAttack)
	case StatSpecialDefense:
		return int64(s.SpecialDefense)
	default:
		return 0
	}
}

// RosterSlot is one combatant as registered for a battle.
type RosterSlot struct {
	Name    string
	Stats   Stats
	Moves   []Move
	Ability Ability
}

// CombatantState holds the mutable deltas of one combatant.
type CombatantState struct {
	Deltas     [NumDeltaStats]int32
	KnockedOut bool
	SkipTurn   bool
}

// ClearedCombatant returns a state whose deltas are all the cleared sentinel.
func ClearedCombatant() CombatantState {
	var s CombatantState
	for i := range s.Deltas {
		s.Deltas[i] = ClearedDelta
	}
	return s
}

// Delta returns the accumulated delta for stat, reading the sentinel as zero.
func (c CombatantState) Delta(stat Stat) int32 {
	if int(stat) >= NumDeltaStats {
		return 0
	}
	d := c.Deltas[stat]
	if d == ClearedDelta {
		return 0
	}
	return d
}

// Touched reports whether stat was written since the slot was cleared.
func (c CombatantState) Touched(stat Stat) bool {
	return int(stat) < NumDeltaStats && c.Deltas[stat] != ClearedDelta
}

// Decision is one actor's chosen action for a turn.
type Decision struct {
	MoveIndex uint8
	// Extra carries the switch target for switches and a move-specific
	// argument otherwise. In doubles the low bit of a move's Extra selects the
	// opposing slot it targets.
	Extra uint16
	Salt  [32]byte
}

// IsSwitch reports whether the decision is a switch.
func (d Decision) IsSwitch() bool { return d.MoveIndex == SwitchMoveIndex }

// IsNoOp reports whether the decision passes the turn.
func (d Decision) IsNoOp() bool { return d.MoveIndex == NoOpMoveIndex }

// Active holds active-mon indices as [player][slot]. Singles uses slot 0.
type Active [2][SlotsPerPlayer]uint8

// Mon returns the active mon for player in slot.
func (a Active) Mon(player, slot int) int { return int(a[player][slot]) }

// Battle is the immutable identity of one battle and its collaborators.
type Battle struct {
	ID          string
	Players     [2]string
	RosterIndex [2]int
	Mode        GameMode
	StartedAt   time.Time

	Validator Validator
	RNG       RNG
	Ruleset   Ruleset
	Hooks     []Hooks
	// Authority is the caller allowed to submit decisions on any player's
	// behalf and to advance turns.
	Authority string
}

// Status is the mutable per-battle header.
type Status struct {
	Turn     uint64
	Winner   Winner
	Flag     ActFlag
	PrevFlag ActFlag
	// ActiveWord is the packed active-mon word (see package packing).
	ActiveWord uint16
	// ForcedSwitch is the doubles per-slot forced switch mask, bit player*2+slot.
	ForcedSwitch uint8
	LastTurnAt   time.Time
}
