package chunk

import "math"

// LgWidth is the log2 of a chunk's edge length in voxels.
const LgWidth = 5

// Width is the edge length of a chunk in voxels.
const Width = 1 << LgWidth

// Position identifies one chunk of the world. It is an immutable value
// and is used as a map key throughout the streaming code.
type Position struct {
	X, Y, Z int32
}

// PositionAt returns the chunk containing the given world-space point.
func PositionAt(wx, wy, wz float64) Position {
	return Position{
		X: int32(math.Floor(wx)) >> LgWidth,
		Y: int32(math.Floor(wy)) >> LgWidth,
		Z: int32(math.Floor(wz)) >> LgWidth,
	}
}

// VoxelBase returns the world coordinate of the chunk's minimal corner.
func (p Position) VoxelBase() (int32, int32, int32) {
	return p.X << LgWidth, p.Y << LgWidth, p.Z << LgWidth
}

// Add returns p offset by (dx, dy, dz) chunks.
func (p Position) Add(dx, dy, dz int32) Position {
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Distance is the chunk-space Chebyshev distance between two positions.
// Surroundings shells are cubes, so the max norm is the natural metric.
func Distance(a, b Position) int32 {
	d := absInt32(a.X - b.X)
	if dy := absInt32(a.Y - b.Y); dy > d {
		d = dy
	}
	if dz := absInt32(a.Z - b.Z); dz > d {
		d = dz
	}
	return d
}

func absInt32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
