package terrain

import (
	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/physics"
)

// InProgress tracks chunks whose load was requested but whose content has
// not arrived yet. Each pending chunk holds one minimal collision volume
// so moving entities do not fall through the gap. Mutated only from the
// update goroutine.
type InProgress struct {
	ids     *IDAllocator
	physics Physics
	chunks  map[chunk.Position]EntityID
}

func NewInProgress(ids *IDAllocator, phys Physics) *InProgress {
	return &InProgress{
		ids:     ids,
		physics: phys,
		chunks:  make(map[chunk.Position]EntityID),
	}
}

// Insert registers a placeholder volume for pos. Re-inserting an already
// pending chunk is a no-op.
func (p *InProgress) Insert(pos chunk.Position) {
	if _, ok := p.chunks[pos]; ok {
		return
	}
	id := p.ids.Alloc()
	p.chunks[pos] = id
	p.physics.InsertTerrain(uint64(id), placeholderBounds(pos))
}

// Remove deletes the placeholder volume for pos, if any.
func (p *InProgress) Remove(pos chunk.Position) {
	id, ok := p.chunks[pos]
	if !ok {
		return
	}
	delete(p.chunks, pos)
	p.physics.RemoveTerrain(uint64(id))
}

func (p *InProgress) Len() int {
	return len(p.chunks)
}

// placeholderBounds is the chunk's full cube: conservative, but pending
// chunks are short-lived.
func placeholderBounds(pos chunk.Position) physics.AABB {
	x, y, z := pos.VoxelBase()
	return physics.AABB{
		Min: [3]float64{float64(x), float64(y), float64(z)},
		Max: [3]float64{float64(x + chunk.Width), float64(y + chunk.Width), float64(z + chunk.Width)},
	}
}
