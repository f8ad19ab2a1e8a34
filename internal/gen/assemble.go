package gen

import (
	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/physics"
	"voxelstream.ai/internal/stream/lod"
	"voxelstream.ai/internal/stream/terrain"
)

// BlockAssembler builds terrain blocks from locally resident voxel
// samples. It implements the streamer's generation contract; the caller
// guarantees residency before asking (a missing chunk is a request, not a
// generation).
type BlockAssembler struct {
	IDs    *terrain.IDAllocator
	Voxels *terrain.VoxelStore
}

// Generate assembles the block for pos at l: one renderable piece per
// sampled column with any solid voxel, carrying the column's top-surface
// quad and a collision box over its solid run. An all-air chunk yields an
// empty block.
func (a *BlockAssembler) Generate(pos chunk.Position, l lod.LOD) *terrain.Block {
	key := terrain.VoxelKey{Pos: pos, LgSampleSize: l.LgSampleSize()}
	voxels, ok := a.Voxels.Get(key)
	if !ok {
		return &terrain.Block{}
	}

	side := key.SideLen()
	stride := 1 << key.LgSampleSize
	bx, by, bz := pos.VoxelBase()

	block := &terrain.Block{}
	for z := 0; z < side; z++ {
		for x := 0; x < side; x++ {
			top, bottom := -1, -1
			for y := side - 1; y >= 0; y-- {
				if voxels[x+y*side+z*side*side] == Air {
					continue
				}
				if top < 0 {
					top = y
				}
				bottom = y
			}
			if top < 0 {
				continue
			}

			id := a.IDs.Alloc()
			material := voxels[x+top*side+z*side*side]

			// World-space extents of the column's solid run.
			x0 := float64(int(bx) + x*stride)
			z0 := float64(int(bz) + z*stride)
			x1 := x0 + float64(stride)
			z1 := z0 + float64(stride)
			y0 := float64(int(by) + bottom*stride)
			y1 := float64(int(by) + (top+1)*stride)

			block.Vertices = append(block.Vertices,
				float32(x0), float32(y1), float32(z0),
				float32(x1), float32(y1), float32(z0),
				float32(x1), float32(y1), float32(z1),
				float32(x0), float32(y1), float32(z0),
				float32(x1), float32(y1), float32(z1),
				float32(x0), float32(y1), float32(z1),
			)
			for i := 0; i < 6; i++ {
				block.Normals = append(block.Normals, 0, 1, 0)
			}
			block.Materials = append(block.Materials, int32(material))
			block.IDs = append(block.IDs, id)
			block.Bounds = append(block.Bounds, terrain.Bound{
				ID: id,
				AABB: physics.AABB{
					Min: [3]float64{x0, y0, z0},
					Max: [3]float64{x1, y1, z1},
				},
			})
		}
	}
	return block
}
