package terrain

import (
	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/stream/lod"
)

// Cache holds the loaded blocks, one slot per concrete LOD per chunk.
type Cache struct {
	blocks map[chunk.Position]*[lod.NumLODs]*Block
}

func NewCache() *Cache {
	return &Cache{blocks: make(map[chunk.Position]*[lod.NumLODs]*Block)}
}

// entry returns the per-chunk slot array, creating it on first use. The
// streamer fetches it once per Apply and reuses it for both the unload and
// load halves.
func (c *Cache) entry(pos chunk.Position) *[lod.NumLODs]*Block {
	e := c.blocks[pos]
	if e == nil {
		e = new([lod.NumLODs]*Block)
		c.blocks[pos] = e
	}
	return e
}

// Put replaces the block loaded for pos at l. Used by the voxel-edit
// re-mesh path; the streamer writes through the entry it already holds.
func (c *Cache) Put(pos chunk.Position, l lod.LOD, b *Block) {
	c.entry(pos)[l] = b
}

// Get returns the block loaded for pos at l, or nil.
func (c *Cache) Get(pos chunk.Position, l lod.LOD) *Block {
	if !l.Concrete() {
		return nil
	}
	if e := c.blocks[pos]; e != nil {
		return e[l]
	}
	return nil
}

// compact drops the chunk's entry once every slot is empty. The streamer
// clears slots in place on the entry it already holds, so the map entry is
// only reclaimed here.
func (c *Cache) compact(pos chunk.Position) {
	e := c.blocks[pos]
	if e == nil {
		return
	}
	for _, b := range e {
		if b != nil {
			return
		}
	}
	delete(c.blocks, pos)
}

func (c *Cache) Len() int {
	return len(c.blocks)
}
