package mathx

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct {
		v, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{0, 0, 0, 0},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Fatalf("Clamp(%d,%d,%d)=%d want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestScaleDiv_Truncates(t *testing.T) {
	if got := ScaleDiv[uint32](5, 1023, 16); got != 319 {
		t.Fatalf("got=%d want 319", got)
	}
	// 200*100 overflows uint8.
	if got := ScaleDiv[uint8](200, 100, 200); got != 100 {
		t.Fatalf("got=%d want 100", got)
	}
	if got := ScaleDiv[uint32](1, 1, 0); got != 0 {
		t.Fatalf("got=%d want 0", got)
	}
}
