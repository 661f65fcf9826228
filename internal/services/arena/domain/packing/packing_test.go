package packing

import (
	"errors"
	"testing"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

func TestSinglesActiveRoundTrip(t *testing.T) {
	t.Parallel()

	for p0 := 0; p0 <= 0xFF; p0++ {
		for _, p1 := range []int{0, 1, 7, 0x80, 0xFF} {
			in := SinglesActive{Player0: uint8(p0), Player1: uint8(p1)}
			got := UnpackSingles(in.Pack())
			if got != in {
				t.Fatalf("round trip %+v = %+v", in, got)
			}
		}
	}
}

func TestDoublesActiveRoundTrip(t *testing.T) {
	t.Parallel()

	for v := 0; v <= MaxDoublesIndex; v++ {
		in := DoublesActive{
			Player0Slot0: uint8(v),
			Player0Slot1: uint8(MaxDoublesIndex - v),
			Player1Slot0: uint8((v + 3) % 16),
			Player1Slot1: uint8((v * 7) % 16),
		}
		word, err := in.Pack()
		if err != nil {
			t.Fatalf("pack %+v: %v", in, err)
		}
		if got := UnpackDoubles(word); got != in {
			t.Fatalf("round trip %+v = %+v", in, got)
		}
	}
}

func TestDoublesActivePackRejectsWideIndex(t *testing.T) {
	t.Parallel()

	_, err := DoublesActive{Player1Slot1: 16}.Pack()
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want %v", err, ErrIndexOutOfRange)
	}
}

func TestDoublesLayoutIsNibblePerSlot(t *testing.T) {
	t.Parallel()

	word, err := DoublesActive{Player0Slot0: 1, Player0Slot1: 2, Player1Slot0: 3, Player1Slot1: 4}.Pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if word != 0x4321 {
		t.Fatalf("word = %#04x, want 0x4321", word)
	}
}

func TestActiveWordHelpers(t *testing.T) {
	t.Parallel()

	word, err := SetActive(battle.ModeSingles, 0, 1, 0, 5)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	a := ActiveFromWord(battle.ModeSingles, word)
	if a.Mon(1, 0) != 5 || a.Mon(0, 0) != 0 {
		t.Fatalf("active = %v", a)
	}

	word, err = WordFromActive(battle.ModeDoubles, battle.Active{{0, 1}, {2, 3}})
	if err != nil {
		t.Fatalf("word from active: %v", err)
	}
	word, err = SetActive(battle.ModeDoubles, word, 0, 1, 4)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	a = ActiveFromWord(battle.ModeDoubles, word)
	if a != (battle.Active{{0, 4}, {2, 3}}) {
		t.Fatalf("active = %v", a)
	}
}

func TestEffectCountsRoundTrip(t *testing.T) {
	t.Parallel()

	in := EffectCounts{0, 1, 2, 3, 250, 0, 9, 255}
	if got := UnpackEffectCounts(in.Pack()); got != in {
		t.Fatalf("round trip %v = %v", in, got)
	}
}

func TestIncrementEffectCount(t *testing.T) {
	t.Parallel()

	var word uint64
	var err error
	for i := 0; i < 3; i++ {
		word, err = IncrementEffectCount(word, 2)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if EffectCount(word, 2) != 3 || EffectCount(word, 1) != 0 || EffectCount(word, 3) != 0 {
		t.Fatalf("counts = %v", UnpackEffectCounts(word))
	}

	full := EffectCounts{0, MaxEffectCount}.Pack()
	if _, err := IncrementEffectCount(full, 1); !errors.Is(err, ErrCountOverflow) {
		t.Fatalf("err = %v, want %v", err, ErrCountOverflow)
	}
	if _, err := IncrementEffectCount(0, battle.MaxTeamSize); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want %v", err, ErrIndexOutOfRange)
	}
}

func TestKOBitmap(t *testing.T) {
	t.Parallel()

	var b KOBitmap
	b = b.Set(0, 1).Set(1, 0).Set(1, 2)
	if !b.Has(0, 1) || b.Has(0, 0) || !b.Has(1, 2) {
		t.Fatalf("bitmap = %016b", b)
	}
	if b.Player(1) != 0b101 {
		t.Fatalf("player1 mask = %08b, want 101", b.Player(1))
	}
	if b.AllOut(1, 3) {
		t.Fatal("player1 should not be all out")
	}
	b = b.Set(1, 1)
	if !b.AllOut(1, 3) {
		t.Fatal("player1 should be all out")
	}
	if b = b.Clear(1, 1); b.AllOut(1, 3) {
		t.Fatal("clear did not unmark mon")
	}
}

func TestSwitchMask(t *testing.T) {
	t.Parallel()

	m := SwitchMask(0).Set(1, 1)
	if !m.Has(1, 1) || m.Has(1, 0) || m.Player(0) || !m.Player(1) {
		t.Fatalf("mask = %04b", m)
	}
	if m != 0b1000 {
		t.Fatalf("mask = %04b, want 1000", m)
	}
}
