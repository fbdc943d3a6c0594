package domain

import "testing"

func TestSideValid(t *testing.T) {
	tests := []struct {
		side Side
		want bool
	}{
		{SideA, true},
		{SideB, true},
		{Side(""), false},
		{Side("3"), false},
	}
	for _, tt := range tests {
		if got := tt.side.Valid(); got != tt.want {
			t.Errorf("Side(%q).Valid() = %v, want %v", tt.side, got, tt.want)
		}
	}
}

func TestSideOpponent(t *testing.T) {
	if got := SideA.Opponent(); got != SideB {
		t.Errorf("SideA.Opponent() = %q, want %q", got, SideB)
	}
	if got := SideB.Opponent(); got != SideA {
		t.Errorf("SideB.Opponent() = %q, want %q", got, SideA)
	}
}
