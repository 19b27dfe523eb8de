package hid

import "testing"

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"1.2.3", true},
		{"10.20", true},
		{"", false},
		{"1.", false},
		{".1", false},
		{"1..2", false},
		{"0", false},
		{"1.0", false},
		{"1.02", false},
		{"a.b", false},
		{"1.-2", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsAncestorOf(t *testing.T) {
	tests := []struct {
		ancestor, descendant string
		want                 bool
	}{
		{"1", "1.2", true},
		{"1.2", "1.2.3", true},
		{"1.2", "1.20", false}, // prefix must be segment-aligned
		{"1.2", "1.2", false},  // not a strict ancestor of itself
		{"", "1.2", false},
		{"1.2", "", false},
	}
	for _, tt := range tests {
		if got := IsAncestorOf(tt.ancestor, tt.descendant); got != tt.want {
			t.Errorf("IsAncestorOf(%q, %q) = %v, want %v", tt.ancestor, tt.descendant, got, tt.want)
		}
	}
}

func TestInBranch(t *testing.T) {
	if !InBranch("1.2", "1.2") {
		t.Error("branch root must be inside its own branch")
	}
	if !InBranch("1.2", "1.2.5.1") {
		t.Error("deep descendant must be inside branch")
	}
	if InBranch("1.2", "1.21") {
		t.Error("sibling with shared string prefix must not match")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2", "1.10", -1}, // numeric, not lexicographic
		{"1.10", "1.2", 1},
		{"1.2", "1.2", 0},
		{"1", "1.1", -1}, // parent before child
		{"2", "1.9.9", 1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestChild(t *testing.T) {
	if got := Child("", 1); got != "1" {
		t.Errorf("Child root = %q", got)
	}
	if got := Child("1.2", 3); got != "1.2.3" {
		t.Errorf("Child = %q", got)
	}
}

func TestParse(t *testing.T) {
	segs, err := Parse("1.2.10")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segs) != 3 || segs[0] != 1 || segs[1] != 2 || segs[2] != 10 {
		t.Errorf("Parse = %v", segs)
	}
	if _, err := Parse("1..2"); err == nil {
		t.Error("Parse must reject malformed HID")
	}
}
