// Package effect runs attached effects at lifecycle steps.
//
// A sweep visits a scope's attachments by index in attachment order and skips
// tombstoned slots. Handlers may rewrite their data word, ask to be removed,
// or attach new effects to the scope being swept. New attachments land at the
// end of the list and are visited by the same sweep. The slot count is only
// re-read when the list's append counter moved, so sweeps that attach nothing
// read the count once.
//
// An OnUpdateMonState handler that itself updates mon state re-enters the
// dispatcher. Nothing here bounds that recursion; plugins must not loop.
package effect

import (
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/store"
)

// Aux is the step-specific payload passed to handlers.
type Aux struct {
	Damage int32
	Stat   battle.Stat
	Delta  int32
}

// Dispatcher runs effects stored in one battle's storage slot.
type Dispatcher struct {
	Config *store.Config
	// Touched is told about every scope whose list changed.
	Touched func(battle.Target)
}

func (d Dispatcher) touch(t battle.Target) {
	if d.Touched != nil {
		d.Touched(t)
	}
}

// Run sweeps target's attachments for step.
func (d Dispatcher) Run(e battle.Engine, target battle.Target, step battle.Step, aux Aux) {
	list := d.Config.Effects(target)
	n := list.Len()
	seen := list.Version()
	for i := 0; i < n; i++ {
		if a, ok := list.At(i); ok && !a.Dead && a.Steps.Has(step) {
			data, remove := a.Effect.Run(e, battle.StepInput{
				Step:   step,
				Target: target,
				Index:  i,
				Data:   a.Data,
				Active: e.Active(),
				Damage: aux.Damage,
				Stat:   aux.Stat,
				Delta:  aux.Delta,
			})
			d.settle(e, list, target, i, a.Data, data, remove)
		}
		if v := list.Version(); v != seen {
			n = list.Len()
			seen = v
		}
	}
}

// Attach adds effect to target if the effect agrees to apply, then runs its
// OnApply handler. It returns the slot index and whether it was attached.
func (d Dispatcher) Attach(e battle.Engine, target battle.Target, eff battle.Effect, data uint64) (int, bool, error) {
	if eff == nil || !eff.ShouldApply(e, target, data) {
		return -1, false, nil
	}
	steps := eff.Steps()
	idx, err := d.Config.AppendEffect(target, store.Attachment{Effect: eff, Steps: steps, Data: data})
	if err != nil {
		return -1, false, err
	}
	d.touch(target)
	if steps.Has(battle.StepOnApply) {
		next, remove := eff.Run(e, battle.StepInput{
			Step:   battle.StepOnApply,
			Target: target,
			Index:  idx,
			Data:   data,
			Active: e.Active(),
		})
		d.settle(e, d.Config.Effects(target), target, idx, data, next, remove)
	}
	return idx, true, nil
}

// Remove tombstones a live attachment and runs its OnRemove handler. It
// reports false when the slot was already dead.
func (d Dispatcher) Remove(e battle.Engine, target battle.Target, idx int) bool {
	list := d.Config.Effects(target)
	a, ok := list.At(idx)
	if !ok || a.Dead {
		return false
	}
	list.Tombstone(idx)
	d.touch(target)
	if a.Steps.Has(battle.StepOnRemove) {
		a.Effect.Run(e, battle.StepInput{
			Step:   battle.StepOnRemove,
			Target: target,
			Index:  idx,
			Data:   a.Data,
			Active: e.Active(),
		})
	}
	return true
}

func (d Dispatcher) settle(e battle.Engine, list *store.EffectList, target battle.Target, idx int, prev, next uint64, remove bool) {
	if next != prev && list.SetData(idx, next) {
		d.touch(target)
	}
	if remove {
		d.Remove(e, target, idx)
	}
}
