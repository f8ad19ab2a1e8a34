// Package terrain owns the loaded representation of chunks: generated
// blocks, the per-LOD block cache, the in-progress placeholder set, and
// the streamer that applies LOD changes against the GPU-buffer and
// physics collaborators.
package terrain

import (
	"voxelstream.ai/internal/physics"
)

// EntityID identifies one renderable/physical piece of a terrain block.
type EntityID uint64

// Bound pairs an entity with its collision volume.
type Bound struct {
	ID   EntityID
	AABB physics.AABB
}

// Block is the generated content for one chunk at one LOD. It is owned by
// the streaming code until its pieces are handed to the collaborators, and
// its backing storage is released on unload.
type Block struct {
	Vertices  []float32
	Normals   []float32
	Materials []int32
	IDs       []EntityID
	Bounds    []Bound
}

// Empty reports whether the block has no renderable pieces.
func (b *Block) Empty() bool {
	return len(b.IDs) == 0
}

// IDAllocator hands out entity ids. Blocks, placeholders and player meshes
// draw from the same sequence so ids never collide across subsystems.
type IDAllocator struct {
	next uint64
}

func (a *IDAllocator) Alloc() EntityID {
	a.next++
	return EntityID(a.next)
}
