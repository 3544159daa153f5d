package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(10, 64, 4096); got != 64 {
		t.Fatalf("low: %d", got)
	}
	if got := Clamp(9000, 4096, 64); got != 4096 {
		t.Fatalf("swapped bounds: %d", got)
	}
	if got := Clamp(0.5, 0.0, 1.0); got != 0.5 {
		t.Fatalf("inside: %v", got)
	}
}

func TestBetween(t *testing.T) {
	if !Between[uint8](7, 7, 12) || !Between[uint8](12, 12, 7) {
		t.Fatal("inclusive bounds rejected")
	}
	if Between(960.0105, 150.0, 960.0) {
		t.Fatal("above range accepted")
	}
	if Between[int8](-1, 0, 22) {
		t.Fatal("below range accepted")
	}
}
