// Package world is the server's side of the terrain: a deterministic voxel
// field plus the edits clients have made on top of it, with a sqlite cache
// of encoded payloads in front of generation.
package world

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/encoding"
	"voxelstream.ai/internal/gen"
	"voxelstream.ai/internal/persistence/chunkdb"
	"voxelstream.ai/internal/persistence/snapshot"
)

type World struct {
	field gen.Field
	cache *chunkdb.Store // nil disables caching

	mu    sync.Mutex
	edits map[chunk.Position]map[[3]int32]uint16
}

func New(seed int64, cache *chunkdb.Store) *World {
	return &World{
		field: gen.Field{Seed: seed},
		cache: cache,
		edits: make(map[chunk.Position]map[[3]int32]uint16),
	}
}

// Seed returns the field seed handed to clients in the welcome.
func (w *World) Seed() int64 {
	return w.field.Seed
}

// ChunkPayload returns the encoded voxel payload for one chunk at one
// granularity. Cached rows already include any edits; an edit invalidates
// the chunk's rows before new payloads are generated.
func (w *World) ChunkPayload(pos chunk.Position, lg int) string {
	if w.cache != nil {
		if p, ok, err := w.cache.Get(pos.X, pos.Y, pos.Z, lg); err == nil && ok {
			return p
		}
	}

	voxels := w.field.ChunkVoxels(pos, lg)
	w.mu.Lock()
	for p, mat := range w.edits[pos] {
		bx, by, bz := pos.VoxelBase()
		side := chunk.Width >> lg
		lx := int(p[0]-bx) >> lg
		ly := int(p[1]-by) >> lg
		lz := int(p[2]-bz) >> lg
		voxels[lx+ly*side+lz*side*side] = mat
	}
	w.mu.Unlock()

	payload := encoding.EncodeVoxels(voxels)
	w.cache.Put(pos.X, pos.Y, pos.Z, lg, payload)
	return payload
}

// SpawnPosition puts new avatars just above the surface at the origin.
func (w *World) SpawnPosition() [3]float64 {
	return [3]float64{0, float64(w.field.HeightAt(0, 0) + 2), 0}
}

// ApplyEdit records one voxel edit and returns the chunk it landed in.
func (w *World) ApplyEdit(p [3]int32, material uint16) chunk.Position {
	pos := chunk.PositionAt(float64(p[0]), float64(p[1]), float64(p[2]))

	w.mu.Lock()
	m := w.edits[pos]
	if m == nil {
		m = make(map[[3]int32]uint16)
		w.edits[pos] = m
	}
	m[p] = material
	w.mu.Unlock()

	w.cache.Invalidate(pos.X, pos.Y, pos.Z)
	return pos
}

// ExportSnapshot captures the live edits, sorted for stable output.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	w.mu.Lock()
	var edits []snapshot.EditV1
	for _, m := range w.edits {
		for p, mat := range m {
			edits = append(edits, snapshot.EditV1{Pos: p, Material: mat})
		}
	}
	w.mu.Unlock()

	sort.Slice(edits, func(i, j int) bool {
		a, b := edits[i].Pos, edits[j].Pos
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	})
	return snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, SavedAt: time.Now().UTC().Format(time.RFC3339)},
		Seed:   w.field.Seed,
		Edits:  edits,
	}
}

// ImportSnapshot replays saved edits onto a fresh world. The seed must
// match; edits against a different field would land in the wrong terrain.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Seed != w.field.Seed {
		return fmt.Errorf("snapshot seed %d does not match world seed %d", snap.Seed, w.field.Seed)
	}
	for _, e := range snap.Edits {
		w.ApplyEdit(e.Pos, e.Material)
	}
	return nil
}

// EditCount reports the number of live edits, for the admin surface.
func (w *World) EditCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.edits {
		n += len(m)
	}
	return n
}
