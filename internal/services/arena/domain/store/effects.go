package store

import "github.com/louisbranch/monarena/internal/services/arena/domain/battle"

// Attachment is one effect slot. Dead slots keep their position so indices
// held by an in-flight dispatch stay valid.
type Attachment struct {
	Effect battle.Effect
	Steps  battle.StepBitmap
	Data   uint64
	Dead   bool
}

// EffectList is an append-only arena of attachments for one scope.
type EffectList struct {
	slots []Attachment
	// version changes on every append so a sweep can tell when to re-read
	// the slot count.
	version uint64
}

// Len returns the number of allocated slots, dead ones included.
func (l *EffectList) Len() int { return len(l.slots) }

// Version returns the append counter.
func (l *EffectList) Version() uint64 { return l.version }

// At returns the slot at i.
func (l *EffectList) At(i int) (Attachment, bool) {
	if i < 0 || i >= len(l.slots) {
		return Attachment{}, false
	}
	return l.slots[i], true
}

func (l *EffectList) append(a Attachment) int {
	l.slots = append(l.slots, a)
	l.version++
	return len(l.slots) - 1
}

// SetData overwrites the data word of a live slot.
func (l *EffectList) SetData(i int, data uint64) bool {
	if i < 0 || i >= len(l.slots) || l.slots[i].Dead {
		return false
	}
	l.slots[i].Data = data
	return true
}

// Tombstone marks a live slot dead. It reports false if the slot was already
// dead or does not exist.
func (l *EffectList) Tombstone(i int) bool {
	if i < 0 || i >= len(l.slots) || l.slots[i].Dead {
		return false
	}
	l.slots[i].Dead = true
	return true
}

// Live returns the live attachments in attachment order.
func (l *EffectList) Live() []battle.AttachedEffect {
	out := make([]battle.AttachedEffect, 0, len(l.slots))
	for i, a := range l.slots {
		if a.Dead {
			continue
		}
		out = append(out, battle.AttachedEffect{Index: i, Effect: a.Effect, Steps: a.Steps, Data: a.Data})
	}
	return out
}

func (l *EffectList) reset() {
	clear(l.slots)
	l.slots = l.slots[:0]
	l.version = 0
}

func (l EffectList) clone() EffectList {
	if l.slots == nil {
		return EffectList{version: l.version}
	}
	slots := make([]Attachment, len(l.slots))
	copy(slots, l.slots)
	return EffectList{slots: slots, version: l.version}
}
