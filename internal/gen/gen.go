// Package gen holds the deterministic voxel field the server samples chunk
// payloads from, and the client-side assembler that turns voxel samples
// into terrain blocks. Both are collaborators of the streaming core; the
// algorithms are deliberately plain.
package gen

import (
	"voxelstream.ai/internal/chunk"
)

// Material palette.
const (
	Air uint16 = iota
	Dirt
	Grass
	Sand
	Stone
)

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Field is a seeded heightmap terrain field.
type Field struct {
	Seed int64
}

// HeightAt is the terrain surface height at a world column. Two hashed
// grids, one coarse and one fine, bilinearly blended by nothing fancier
// than integer interpolation.
func (f Field) HeightAt(x, z int) int {
	coarse := int(Hash2(f.Seed, FloorDiv(x, 64), FloorDiv(z, 64)) % 48)
	fine := int(Hash2(f.Seed+1, FloorDiv(x, 8), FloorDiv(z, 8)) % 8)
	return coarse + fine
}

// MaterialAt is the voxel material at a world position.
func (f Field) MaterialAt(x, y, z int) uint16 {
	h := f.HeightAt(x, z)
	switch {
	case y > h:
		return Air
	case y == h:
		if h < 12 {
			return Sand
		}
		return Grass
	case y > h-4:
		return Dirt
	default:
		return Stone
	}
}

// ChunkVoxels samples one chunk of the field at the given granularity.
// The payload has (Width>>lg)^3 samples in x-major, then y, then z order.
func (f Field) ChunkVoxels(pos chunk.Position, lg int) []uint16 {
	side := chunk.Width >> lg
	stride := 1 << lg
	bx, by, bz := pos.VoxelBase()

	out := make([]uint16, side*side*side)
	i := 0
	for z := 0; z < side; z++ {
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				out[i] = f.MaterialAt(
					int(bx)+x*stride,
					int(by)+y*stride,
					int(bz)+z*stride,
				)
				i++
			}
		}
	}
	return out
}
