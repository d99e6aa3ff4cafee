package id

import "testing"

func TestNewFormat(t *testing.T) {
	got := New()
	if len(got) != Length {
		t.Fatalf("expected %d-character id, got %d (%q)", Length, len(got), got)
	}
	if !Valid(got) {
		t.Fatalf("generated id %q is not valid", got)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v := New()
		if seen[v] {
			t.Fatalf("duplicate id %q after %d draws", v, i)
		}
		seen[v] = true
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"abc123", true},
		{"with-dash_and_underscore", true},
		{"", false},
		{"has.dot", false},
		{"star*", false},
		{"space here", false},
		{"1234", false},
		{"1234a", true},
	}
	for _, c := range cases {
		if got := Valid(c.in); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
