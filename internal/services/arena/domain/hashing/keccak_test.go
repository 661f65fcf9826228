package hashing

import "testing"

func TestKeccak256EmptyInput(t *testing.T) {
	// Keccak-256 of the empty string, as used by ledger tooling.
	const want = "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got := Hex(Keccak256()); got != want {
		t.Fatalf("keccak256() = %s, want %s", got, want)
	}
}

func TestKeccak256ConcatenatesParts(t *testing.T) {
	a := Keccak256([]byte("mon"), []byte("arena"))
	b := Keccak256([]byte("monarena"))
	if a != b {
		t.Fatalf("split input hashed differently: %s vs %s", Hex(a), Hex(b))
	}
}

func TestUint64RoundTrip(t *testing.T) {
	var sum [32]byte
	copy(sum[:], PutUint64(0x0102030405060708))
	if got := Uint64(sum); got != 0x0102030405060708 {
		t.Fatalf("Uint64 = %#x", got)
	}
}
