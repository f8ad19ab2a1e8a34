package terrain

import (
	"voxelstream.ai/internal/chunk"
)

// VoxelKey addresses one chunk's voxel samples at one granularity.
type VoxelKey struct {
	Pos          chunk.Position
	LgSampleSize int
}

// SideLen is the sampled grid edge length for this granularity.
func (k VoxelKey) SideLen() int {
	return chunk.Width >> k.LgSampleSize
}

// VolumeLen is the number of samples a payload for this key must carry.
func (k VoxelKey) VolumeLen() int {
	s := k.SideLen()
	return s * s * s
}

// VoxelStore is the client's local backing store of chunk voxel samples,
// filled from server chunk payloads. A missing entry is what turns a load
// into an outbound chunk request.
type VoxelStore struct {
	m map[VoxelKey][]uint16
}

func NewVoxelStore() *VoxelStore {
	return &VoxelStore{m: make(map[VoxelKey][]uint16)}
}

func (s *VoxelStore) Has(k VoxelKey) bool {
	_, ok := s.m[k]
	return ok
}

func (s *VoxelStore) Get(k VoxelKey) ([]uint16, bool) {
	v, ok := s.m[k]
	return v, ok
}

func (s *VoxelStore) Put(k VoxelKey, voxels []uint16) {
	s.m[k] = voxels
}

// SetVoxel writes one world-space voxel into every resident granularity of
// its chunk and returns the chunk position with whether anything changed.
func (s *VoxelStore) SetVoxel(wx, wy, wz int32, material uint16) (chunk.Position, bool) {
	pos := chunk.PositionAt(float64(wx), float64(wy), float64(wz))
	bx, by, bz := pos.VoxelBase()
	lx, ly, lz := int(wx-bx), int(wy-by), int(wz-bz)

	changed := false
	for lg := 0; lg < chunk.LgWidth; lg++ {
		k := VoxelKey{Pos: pos, LgSampleSize: lg}
		v, ok := s.m[k]
		if !ok {
			continue
		}
		side := k.SideLen()
		i := (lx >> lg) + (ly>>lg)*side + (lz>>lg)*side*side
		if v[i] != material {
			v[i] = material
			changed = true
		}
	}
	return pos, changed
}

func (s *VoxelStore) Len() int {
	return len(s.m)
}
