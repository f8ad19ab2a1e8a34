// Package buffers models the GPU-side terrain storage the streamer pushes
// into. Capacity is a hard vertex budget: a rejected push is the signal
// that makes the streamer roll the LOD change back.
package buffers

import (
	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/stream/lod"
)

type blockKey struct {
	lod lod.LOD
	pos chunk.Position
}

// TerrainBuffers holds per-entity vertex spans plus per-(lod, chunk) block
// data (the material atlas in the real renderer). Mutated only from the
// update goroutine.
type TerrainBuffers struct {
	vertexCapacity int
	usedVertices   int

	spans     map[uint64]int
	blockData map[blockKey][]int32
}

func NewTerrainBuffers(vertexCapacity int) *TerrainBuffers {
	return &TerrainBuffers{
		vertexCapacity: vertexCapacity,
		spans:          make(map[uint64]int),
		blockData:      make(map[blockKey][]int32),
	}
}

// PushBlockData stores the block-level data for one chunk at one LOD.
func (b *TerrainBuffers) PushBlockData(l lod.LOD, pos chunk.Position, materials []int32) {
	b.blockData[blockKey{lod: l, pos: pos}] = materials
}

// Push appends vertex data for a set of terrain entities. vertices and
// normals are xyz triples; every id owns an equal share of them. Returns
// false when the vertex budget would be exceeded; nothing is stored then.
func (b *TerrainBuffers) Push(vertices, normals []float32, ids []uint64) bool {
	if len(ids) == 0 {
		return true
	}
	n := len(vertices) / 3
	if b.vertexCapacity > 0 && b.usedVertices+n > b.vertexCapacity {
		return false
	}
	per := n / len(ids)
	for _, id := range ids {
		b.spans[id] = per
	}
	b.usedVertices += n
	_ = normals
	return true
}

// SwapRemove frees the vertex span owned by id.
func (b *TerrainBuffers) SwapRemove(id uint64) {
	if n, ok := b.spans[id]; ok {
		b.usedVertices -= n
		delete(b.spans, id)
	}
}

// FreeBlockData releases the block-level data for one chunk at one LOD.
func (b *TerrainBuffers) FreeBlockData(l lod.LOD, pos chunk.Position) {
	delete(b.blockData, blockKey{lod: l, pos: pos})
}

// UsedVertices reports the resident vertex count.
func (b *TerrainBuffers) UsedVertices() int {
	return b.usedVertices
}

// Len reports the number of resident terrain entities.
func (b *TerrainBuffers) Len() int {
	return len(b.spans)
}
