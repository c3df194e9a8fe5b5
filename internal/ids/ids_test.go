package ids

import (
	"sort"
	"testing"
)

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewMonotonic(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("ids generated in sequence must sort in generation order")
	}
}
