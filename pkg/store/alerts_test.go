package store

import (
	"fmt"
	"testing"
)

func TestAlertBuffer_NewestFirst(t *testing.T) {
	b := NewAlertBuffer(MaxAlerts)

	b.Push(AlertEntry{ID: "a"})
	b.Push(AlertEntry{ID: "b"})
	b.Push(AlertEntry{ID: "c"})

	got := b.Slice()
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("slot %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestAlertBuffer_EvictsOldest(t *testing.T) {
	b := NewAlertBuffer(MaxAlerts)

	for i := 0; i <= 10; i++ {
		b.Push(AlertEntry{ID: fmt.Sprintf("a%d", i)})
	}

	got := b.Slice()
	if len(got) != MaxAlerts {
		t.Fatalf("expected %d entries, got %d", MaxAlerts, len(got))
	}
	for i := 0; i < MaxAlerts; i++ {
		want := fmt.Sprintf("a%d", 10-i)
		if got[i].ID != want {
			t.Errorf("slot %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestAlertBuffer_NeverExceedsCapacity(t *testing.T) {
	b := NewAlertBuffer(MaxAlerts)

	for i := 0; i < 1000; i++ {
		b.Push(AlertEntry{ID: fmt.Sprintf("a%d", i)})
		if b.Len() > MaxAlerts {
			t.Fatalf("buffer grew to %d after %d pushes", b.Len(), i+1)
		}
	}
	if b.Slice()[0].ID != "a999" || b.Slice()[MaxAlerts-1].ID != "a990" {
		t.Errorf("unexpected window %v", b.Slice())
	}
}

func TestAlertBuffer_SliceIsCopy(t *testing.T) {
	b := NewAlertBuffer(2)
	b.Push(AlertEntry{ID: "x"})

	s := b.Slice()
	s[0].ID = "mutated"

	if b.Slice()[0].ID != "x" {
		t.Error("expected buffer contents to be unaffected by slice mutation")
	}
}

func TestAlertBuffer_MinimumCapacity(t *testing.T) {
	b := NewAlertBuffer(0)
	if b.Cap() != 1 {
		t.Fatalf("expected capacity 1, got %d", b.Cap())
	}
	b.Push(AlertEntry{ID: "1"})
	b.Push(AlertEntry{ID: "2"})
	if got := b.Slice(); len(got) != 1 || got[0].ID != "2" {
		t.Errorf("unexpected contents %v", got)
	}
}
