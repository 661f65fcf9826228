package battle

import "time"

// Step is a lifecycle point at which attached effects may run.
type Step uint8

const (
	StepOnApply Step = iota
	StepRoundStart
	StepRoundEnd
	StepOnRemove
	StepOnMonSwitchIn
	StepOnMonSwitchOut
	StepAfterDamage
	StepAfterMove
	StepOnUpdateMonState
)

// NumSteps is the number of lifecycle steps.
const NumSteps = 9

func (s Step) String() string {
	switch s {
	case StepOnApply:
		return "OnApply"
	case StepRoundStart:
		return "RoundStart"
	case StepRoundEnd:
		return "RoundEnd"
	case StepOnRemove:
		return "OnRemove"
	case StepOnMonSwitchIn:
		return "OnMonSwitchIn"
	case StepOnMonSwitchOut:
		return "OnMonSwitchOut"
	case StepAfterDamage:
		return "AfterDamage"
	case StepAfterMove:
		return "AfterMove"
	case StepOnUpdateMonState:
		return "OnUpdateMonState"
	default:
		return "Unknown"
	}
}

// StepBitmap is the set of steps an effect participates in. Step s occupies
// bit 1<<(NumSteps-1-s), so the first step is the most significant bit.
type StepBitmap uint16

// StepsOf builds a bitmap from steps.
func StepsOf(steps ...Step) StepBitmap {
	var b StepBitmap
	for _, s := range steps {
		b |= StepBitmap(1) << (NumSteps - 1 - uint(s))
	}
	return b
}

// Has reports whether the bitmap includes step.
func (b StepBitmap) Has(step Step) bool {
	if step >= NumSteps {
		return false
	}
	return b&(StepBitmap(1)<<(NumSteps-1-uint(step))) != 0
}

// Target is the scope an effect is attached to: global, or one player's mon.
type Target struct {
	Global bool
	Player int
	Mon    int
}

// GlobalTarget returns the battle-wide scope.
func GlobalTarget() Target { return Target{Global: true} }

// MonTarget returns the scope of one combatant.
func MonTarget(player, mon int) Target { return Target{Player: player, Mon: mon} }

// StepInput is what an effect handler receives.
type StepInput struct {
	Step   Step
	Target Target
	// Index is the attachment's stable position within its scope.
	Index  int
	Data   uint64
	Active Active
	// Damage is set for StepAfterDamage.
	Damage int32
	// Stat and Delta are set for StepOnUpdateMonState.
	Stat  Stat
	Delta int32
}

// AttachedEffect is a read-only view of one live attachment.
type AttachedEffect struct {
	Index  int
	Effect Effect
	Steps  StepBitmap
	Data   uint64
}

// View is read-only access to battle state. Validators and cost or priority
// lookups only ever see a View.
type View interface {
	BattleID() string
	Mode() GameMode
	Turn() uint64
	Active() Active
	TeamSize(player int) int
	Slot(player, mon int) RosterSlot
	MonState(player, mon int) CombatantState
	// StatValue returns base plus accumulated delta.
	StatValue(player, mon int, stat Stat) int64
}

// Engine is the surface plugins use to act on a battle during a call.
type Engine interface {
	View
	RNG() uint64
	UpdateMonState(player, mon int, stat Stat, delta int32)
	DealDamage(player, mon int, amount int32)
	AddEffect(target Target, effect Effect, data uint64)
	RemoveEffect(target Target, index int)
	Effects(target Target) []AttachedEffect
	SwitchActiveMon(player, slot, mon int)
}

// Move is a leaf plugin selected by a decision's move index.
type Move interface {
	Name() string
	Priority(v View, player int) int
	StaminaCost(v View, player, mon int) int32
	Execute(e Engine, player, mon, targetMon int, extra uint16, rng uint64)
}

// TargetChecker is implemented by moves with a move-specific disable rule.
type TargetChecker interface {
	IsValidTarget(v View, player int, extra uint16) bool
}

// Ability is a roster slot's passive plugin.
type Ability interface {
	Name() string
	OnSwitchIn(e Engine, player, mon int)
}

// Effect is a stateful plugin attached to a scope.
type Effect interface {
	Name() string
	// Steps is read once at attach time and never again.
	Steps() StepBitmap
	ShouldApply(v View, target Target, data uint64) bool
	// Run handles one step and returns the new data word and whether the
	// attachment should be removed.
	Run(e Engine, in StepInput) (data uint64, remove bool)
}

// EffectSpec pairs an effect with its initial data.
type EffectSpec struct {
	Effect Effect
	Data   uint64
}

// Clock is the timing bookkeeping the timeout resolver works from.
type Clock struct {
	Flag      ActFlag
	Turn      uint64
	Committer int
	// LastTurnAt is when the previous turn completed (or the battle started).
	LastTurnAt  time.Time
	Committed   bool
	CommittedAt time.Time
	Revealed    [2]bool
	RevealedAt  [2]time.Time
	Duration    time.Duration
	Now         time.Time
}

// Validator checks legality and resolves timeouts. It must not mutate state.
type Validator interface {
	ValidatePlayerMove(v View, player, slot int, d Decision, claimed int) bool
	ValidateSwitch(v View, player, slot, mon, claimed int) bool
	ValidateMoveSelection(v View, player, mon int, moveIndex uint8, extra uint16) bool
	// ValidateTimeout returns the forfeiting player, if any.
	ValidateTimeout(c Clock) (int, bool)
}

// RNG derives the per-turn random value from both revealed secrets.
type RNG interface {
	Derive(a, b [32]byte) uint64
}

// RosterSource resolves a player's chosen roster index into slots.
type RosterSource interface {
	Roster(player string, index int) ([]RosterSlot, error)
}

// Ruleset supplies effects attached when a battle starts.
type Ruleset interface {
	GlobalEffects() []EffectSpec
}

// Hooks observe battle start and end.
type Hooks interface {
	OnBattleStart(e Engine)
	OnBattleEnd(e Engine, winner Winner)
}
