package terrain

import (
	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/physics"
	"voxelstream.ai/internal/stream/lod"
)

// GPUBuffers is the narrow contract to the renderer-side terrain storage.
type GPUBuffers interface {
	PushBlockData(l lod.LOD, pos chunk.Position, materials []int32)
	// Push returns false when capacity is exhausted; nothing is stored then.
	Push(vertices, normals []float32, ids []uint64) bool
	SwapRemove(id uint64)
	FreeBlockData(l lod.LOD, pos chunk.Position)
}

// Physics is the narrow contract to the collision-shape store.
type Physics interface {
	InsertTerrain(id uint64, bounds physics.AABB)
	RemoveTerrain(id uint64)
}

// Generator produces the content for one chunk at one LOD. The streamer
// treats the call as synchronous.
type Generator interface {
	Generate(pos chunk.Position, l lod.LOD) *Block
}

// Streamer applies LOD changes reported by the demand map: it unloads a
// chunk's previous representation and loads the new one, pushing data into
// the GPU-buffer and physics collaborators.
type Streamer struct {
	cache      *Cache
	inProgress *InProgress
	buffers    GPUBuffers
	physics    Physics
	gen        Generator
}

func NewStreamer(cache *Cache, inProgress *InProgress, buf GPUBuffers, phys Physics, gen Generator) *Streamer {
	return &Streamer{
		cache:      cache,
		inProgress: inProgress,
		buffers:    buf,
		physics:    phys,
		gen:        gen,
	}
}

// Cache exposes the block cache for read paths (voxel edits, tests).
func (s *Streamer) Cache() *Cache {
	return s.cache
}

// Apply transitions one chunk from loaded to desired. The unload always
// happens first, so a chunk moving between two concrete LODs is briefly
// absent rather than doubly resident. Returns false when the load half was
// rejected for capacity; the physics inserts made for that attempt are
// undone before returning, and the caller reverts the demand map.
func (s *Streamer) Apply(pos chunk.Position, loaded, desired lod.LOD) bool {
	entry := s.cache.entry(pos)
	defer s.cache.compact(pos)

	// Unload whatever's there.
	switch {
	case loaded == lod.None:
	case loaded == lod.Placeholder:
		s.inProgress.Remove(pos)
	default:
		// The slot can already be empty when a failed load was rolled
		// back; the retry then starts from a clean unload half.
		if block := entry[loaded]; block != nil {
			for _, id := range block.IDs {
				s.physics.RemoveTerrain(uint64(id))
				s.buffers.SwapRemove(uint64(id))
			}
			s.buffers.FreeBlockData(loaded, pos)
			entry[loaded] = nil
		}
	}

	// Load whatever we should be loading.
	switch {
	case desired == lod.None:
		return true
	case desired == lod.Placeholder:
		s.inProgress.Insert(pos)
		return true
	default:
		block := s.gen.Generate(pos, desired)
		for _, b := range block.Bounds {
			s.physics.InsertTerrain(uint64(b.ID), b.AABB)
		}
		if !block.Empty() {
			s.buffers.PushBlockData(desired, pos, block.Materials)
			if !s.buffers.Push(block.Vertices, block.Normals, entityIDs(block.IDs)) {
				// The attempt is atomic: undo its physics inserts before
				// reporting the rejection.
				for _, b := range block.Bounds {
					s.physics.RemoveTerrain(uint64(b.ID))
				}
				s.buffers.FreeBlockData(desired, pos)
				return false
			}
		}
		entry[desired] = block
		return true
	}
}

func entityIDs(ids []EntityID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}
