package idgen

import "testing"

func TestUUID_Unique(t *testing.T) {
	gen := UUID{}
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := gen.New()
		if id == "" {
			t.Fatalf("generated empty ID")
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSequential(t *testing.T) {
	gen := NewSequential("evt_")

	if got := gen.New(); got != "evt_1" {
		t.Errorf("expected evt_1, got %s", got)
	}
	if got := gen.New(); got != "evt_2" {
		t.Errorf("expected evt_2, got %s", got)
	}
}
