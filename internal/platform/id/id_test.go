package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewIDShape(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		got, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if len(got) != 26 {
			t.Fatalf("len(%q) = %d, want 26", got, len(got))
		}
		if strings.Trim(got, "abcdefghijklmnopqrstuvwxyz234567") != "" {
			t.Fatalf("id %q has characters outside lowercase base32", got)
		}
		if _, dup := seen[got]; dup {
			t.Fatalf("duplicate id %q after %d draws", got, i)
		}
		seen[got] = struct{}{}
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	got, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	u, err := Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		t.Fatalf("uuid %s: version %d variant %s, want v4 RFC4122", u, u.Version(), u.Variant())
	}
	if upper, err := Parse(strings.ToUpper(got)); err != nil || upper != u {
		t.Fatalf("Parse(upper) = %s, %v, want %s", upper, err, u)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"not-base32!",
		"aaaaaaaa",
		strings.Repeat("a", 27),
	}
	for _, in := range tests {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", in)
		}
	}
}
