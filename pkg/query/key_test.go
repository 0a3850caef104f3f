package query

import "testing"

func TestKey(t *testing.T) {
	k := NewKey(" accommodations ").With("category", "7")
	if k != "accommodations:category:7" {
		t.Fatalf("key = %q", k)
	}
	if k.Collection() != "accommodations" {
		t.Errorf("Collection() = %q", k.Collection())
	}
	if NewKey("stores").With("status", "") != "stores" {
		t.Error("empty value should not narrow the key")
	}
	if NewKey("categories").Item("3") != "categories:3" {
		t.Error("Item() did not append id")
	}

	tests := []struct {
		k, other Key
		want     bool
	}{
		{"accommodations", "accommodations", true},
		{"accommodations", "accommodations:category:7", true},
		{"accommodations:category:7", "accommodations", false},
		{"accommodations", "accommodations_archive", false},
		{"", "stores", false},
	}
	for _, tt := range tests {
		if got := tt.k.Covers(tt.other); got != tt.want {
			t.Errorf("%q.Covers(%q) = %v, want %v", tt.k, tt.other, got, tt.want)
		}
	}
}
