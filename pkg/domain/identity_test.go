package domain

import (
	"strings"
	"testing"
)

func TestNewNanoIDLengthAndAlphabet(t *testing.T) {
	seen := map[NanoID]bool{}
	for i := 0; i < 200; i++ {
		id := NewExecutionID()
		if len(id) != DefaultNanoIDLength {
			t.Fatalf("length = %d, want %d", len(id), DefaultNanoIDLength)
		}
		for _, c := range string(id) {
			if !strings.ContainsRune(nanoIDAlphabet, c) {
				t.Fatalf("id %q contains %q outside the alphabet", id, c)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q in 200 draws", id)
		}
		seen[id] = true
	}
}

func TestNewNanoIDDefaultsOnBadLength(t *testing.T) {
	if got := len(NewNanoID(0)); got != DefaultNanoIDLength {
		t.Errorf("length = %d, want default %d", got, DefaultNanoIDLength)
	}
	if got := len(NewNanoID(10)); got != 10 {
		t.Errorf("length = %d, want 10", got)
	}
}

func TestKindOf(t *testing.T) {
	err := NewNotFound("missing")
	kind, ok := KindOf(err)
	if !ok || kind != KindNotFound {
		t.Errorf("KindOf = %v, %v", kind, ok)
	}

	if _, ok := KindOf(nil); ok {
		t.Error("nil should have no kind")
	}
}
