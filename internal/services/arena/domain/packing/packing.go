// Package packing encodes small per-battle tuples into fixed-width words.
//
// Layouts are explicit and bit-accurate so two independent implementations
// produce identical words:
//
//   - singles active word: player0 in bits 0-7, player1 in bits 8-15
//   - doubles active word: 4 bits per (player, slot), nibble player*2+slot
//   - effect counts: 8 bits per mon index, mon 0 in the low byte
//   - knockout bitmap: player0 mons in bits 0-7, player1 mons in bits 8-15
//   - forced switch mask: bit player*2+slot
package packing

import (
	"errors"
	"fmt"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

var (
	// ErrIndexOutOfRange indicates a value does not fit its packed field.
	ErrIndexOutOfRange = errors.New("packed index out of range")
	// ErrCountOverflow indicates an effect count would exceed its field.
	ErrCountOverflow = errors.New("effect count overflow")
)

const (
	singlesFieldMask = 0xFF
	doublesFieldMask = 0x0F
	// MaxDoublesIndex is the largest mon index a doubles nibble holds.
	MaxDoublesIndex = doublesFieldMask
	// MaxEffectCount is the largest per-mon effect count.
	MaxEffectCount = 0xFF
)

// SinglesActive is the active mon of each player in a singles battle.
type SinglesActive struct {
	Player0 uint8
	Player1 uint8
}

// Pack encodes the tuple into its word.
func (a SinglesActive) Pack() uint16 {
	return uint16(a.Player0) | uint16(a.Player1)<<8
}

// UnpackSingles decodes a singles active word.
func UnpackSingles(word uint16) SinglesActive {
	return SinglesActive{
		Player0: uint8(word & singlesFieldMask),
		Player1: uint8(word >> 8 & singlesFieldMask),
	}
}

// DoublesActive is the active mon of each (player, slot) in a doubles battle.
type DoublesActive struct {
	Player0Slot0 uint8
	Player0Slot1 uint8
	Player1Slot0 uint8
	Player1Slot1 uint8
}

// Pack encodes the tuple. Each index must fit in four bits.
func (a DoublesActive) Pack() (uint16, error) {
	fields := [4]uint8{a.Player0Slot0, a.Player0Slot1, a.Player1Slot0, a.Player1Slot1}
	var word uint16
	for i, v := range fields {
		if v > MaxDoublesIndex {
			return 0, fmt.Errorf("%w: nibble %d holds %d", ErrIndexOutOfRange, i, v)
		}
		word |= uint16(v) << (4 * i)
	}
	return word, nil
}

// UnpackDoubles decodes a doubles active word.
func UnpackDoubles(word uint16) DoublesActive {
	return DoublesActive{
		Player0Slot0: uint8(word & doublesFieldMask),
		Player0Slot1: uint8(word >> 4 & doublesFieldMask),
		Player1Slot0: uint8(word >> 8 & doublesFieldMask),
		Player1Slot1: uint8(word >> 12 & doublesFieldMask),
	}
}

// ActiveFromWord expands a packed word into [player][slot] indices.
func ActiveFromWord(mode battle.GameMode, word uint16) battle.Active {
	var a battle.Active
	if mode == battle.ModeDoubles {
		d := UnpackDoubles(word)
		a[0][0], a[0][1] = d.Player0Slot0, d.Player0Slot1
		a[1][0], a[1][1] = d.Player1Slot0, d.Player1Slot1
		return a
	}
	s := UnpackSingles(word)
	a[0][0], a[1][0] = s.Player0, s.Player1
	return a
}

// WordFromActive packs [player][slot] indices for mode.
func WordFromActive(mode battle.GameMode, a battle.Active) (uint16, error) {
	if mode == battle.ModeDoubles {
		return DoublesActive{
			Player0Slot0: a[0][0],
			Player0Slot1: a[0][1],
			Player1Slot0: a[1][0],
			Player1Slot1: a[1][1],
		}.Pack()
	}
	return SinglesActive{Player0: a[0][0], Player1: a[1][0]}.Pack(), nil
}

// SetActive returns word with one (player, slot) index replaced.
func SetActive(mode battle.GameMode, word uint16, player, slot, mon int) (uint16, error) {
	a := ActiveFromWord(mode, word)
	if mon < 0 || mon > singlesFieldMask {
		return word, fmt.Errorf("%w: mon %d", ErrIndexOutOfRange, mon)
	}
	a[player][slot] = uint8(mon)
	return WordFromActive(mode, a)
}

// EffectCounts is the number of allocated effect slots per mon index.
type EffectCounts [battle.MaxTeamSize]uint8

// Pack encodes the counts into one word.
func (c EffectCounts) Pack() uint64 {
	var word uint64
	for i, v := range c {
		word |= uint64(v) << (8 * i)
	}
	return word
}

// UnpackEffectCounts decodes an effect count word.
func UnpackEffectCounts(word uint64) EffectCounts {
	var c EffectCounts
	for i := range c {
		c[i] = uint8(word >> (8 * i))
	}
	return c
}

// EffectCount reads one mon's count from a packed word.
func EffectCount(word uint64, mon int) int {
	return int(uint8(word >> (8 * mon)))
}

// IncrementEffectCount adds one to a mon's count.
func IncrementEffectCount(word uint64, mon int) (uint64, error) {
	if mon < 0 || mon >= battle.MaxTeamSize {
		return word, fmt.Errorf("%w: mon %d", ErrIndexOutOfRange, mon)
	}
	n := EffectCount(word, mon)
	if n >= MaxEffectCount {
		return word, fmt.Errorf("%w: mon %d", ErrCountOverflow, mon)
	}
	word &^= uint64(0xFF) << (8 * mon)
	return word | uint64(n+1)<<(8*mon), nil
}

// KOBitmap marks knocked-out mons for both players.
type KOBitmap uint16

func koBit(player, mon int) KOBitmap {
	return KOBitmap(1) << (8*player + mon)
}

// Set marks a mon as knocked out.
func (b KOBitmap) Set(player, mon int) KOBitmap { return b | koBit(player, mon) }

// Clear unmarks a mon.
func (b KOBitmap) Clear(player, mon int) KOBitmap { return b &^ koBit(player, mon) }

// Has reports whether a mon is marked.
func (b KOBitmap) Has(player, mon int) bool { return b&koBit(player, mon) != 0 }

// Player returns one player's eight-bit knockout mask.
func (b KOBitmap) Player(player int) uint8 { return uint8(b >> (8 * player)) }

// AllOut reports whether every mon of a team of teamSize is marked.
func (b KOBitmap) AllOut(player, teamSize int) bool {
	if teamSize <= 0 {
		return false
	}
	full := uint8(1<<teamSize - 1)
	return b.Player(player)&full == full
}

// SwitchMask marks doubles slots that owe a forced switch.
type SwitchMask uint8

func switchBit(player, slot int) SwitchMask {
	return SwitchMask(1) << (player*battle.SlotsPerPlayer + slot)
}

// Set marks a slot.
func (m SwitchMask) Set(player, slot int) SwitchMask { return m | switchBit(player, slot) }

// Has reports whether a slot is marked.
func (m SwitchMask) Has(player, slot int) bool { return m&switchBit(player, slot) != 0 }

// Player reports whether either slot of player is marked.
func (m SwitchMask) Player(player int) bool {
	return m.Has(player, 0) || m.Has(player, 1)
}
