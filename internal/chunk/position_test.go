package chunk

import "testing"

func TestPositionAt(t *testing.T) {
	cases := []struct {
		wx, wy, wz float64
		want       Position
	}{
		{0, 0, 0, Position{0, 0, 0}},
		{31.9, 31.9, 31.9, Position{0, 0, 0}},
		{32, 0, 0, Position{1, 0, 0}},
		{-0.1, 0, 0, Position{-1, 0, 0}},
		{-32.1, -1, 64, Position{-2, -1, 2}},
	}
	for _, c := range cases {
		got := PositionAt(c.wx, c.wy, c.wz)
		if got != c.want {
			t.Fatalf("PositionAt(%v,%v,%v) = %+v, want %+v", c.wx, c.wy, c.wz, got, c.want)
		}
	}
}

func TestDistance(t *testing.T) {
	a := Position{0, 0, 0}
	if d := Distance(a, Position{3, -1, 2}); d != 3 {
		t.Fatalf("expected distance 3, got %d", d)
	}
	if d := Distance(Position{-4, 0, 0}, Position{4, 0, 0}); d != 8 {
		t.Fatalf("expected distance 8, got %d", d)
	}
	if d := Distance(a, a); d != 0 {
		t.Fatalf("expected distance 0, got %d", d)
	}
}

func TestVoxelBase(t *testing.T) {
	x, y, z := (Position{1, -1, 2}).VoxelBase()
	if x != Width || y != -Width || z != 2*Width {
		t.Fatalf("unexpected base: %d,%d,%d", x, y, z)
	}
}
