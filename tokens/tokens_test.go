package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{"привет", 2},
	}
	for _, tc := range cases {
		if got := Estimate(tc.in); got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestEstimate_NonDecreasing(t *testing.T) {
	var b strings.Builder
	prev := 0
	for i := 0; i < 50; i++ {
		b.WriteString("line of text\n")
		c := Estimate(b.String())
		if c < prev {
			t.Fatalf("cost went down from %d to %d at line %d", prev, c, i)
		}
		prev = c
	}
}

func TestForName_Estimate(t *testing.T) {
	cost, err := ForName("estimate")
	if err != nil {
		t.Fatalf("ForName: %v", err)
	}
	if got := cost("abcdefgh"); got != 2 {
		t.Errorf("cost = %d, want 2", got)
	}
}
