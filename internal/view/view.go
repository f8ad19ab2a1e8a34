// Package view defines the updates the streaming core sends to the
// renderer, and a headless view model that applies them.
package view

import (
	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/stream/lod"
	"voxelstream.ai/internal/stream/terrain"
	"voxelstream.ai/internal/view/buffers"
)

// Update is one message from the streaming core to the view.
type Update interface{ isUpdate() }

// MoveCamera sets the camera location.
type MoveCamera struct {
	Position [3]float64
}

// UpdatePlayer replaces a player mesh.
type UpdatePlayer struct {
	ID       uint64
	Vertices []float32
}

// SetSun sets the time-of-day fraction.
type SetSun struct {
	Fraction float64
}

// AddBlock adds a terrain block to the view.
type AddBlock struct {
	Pos   chunk.Position
	LOD   lod.LOD
	Block *terrain.Block
}

// RemoveTerrain removes one terrain entity.
type RemoveTerrain struct {
	ID uint64
}

// Atomic applies a series of updates as one indivisible operation from the
// view's perspective.
type Atomic struct {
	Updates []Update
}

func (MoveCamera) isUpdate()    {}
func (UpdatePlayer) isUpdate()  {}
func (SetSun) isUpdate()        {}
func (AddBlock) isUpdate()      {}
func (RemoveTerrain) isUpdate() {}
func (Atomic) isUpdate()        {}

// Sink accepts view updates. The core only ever talks to this interface.
type Sink interface {
	Apply(Update)
}

// View is a headless stand-in for the renderer: camera, sun, player
// meshes, and the terrain buffers the streamer also writes through.
type View struct {
	Camera  [3]float64
	Sun     float64
	Players map[uint64][]float32
	Terrain *buffers.TerrainBuffers

	// RejectedBlocks counts AddBlock pushes the buffers turned away.
	RejectedBlocks int
}

func New(terrainBuffers *buffers.TerrainBuffers) *View {
	return &View{
		Players: make(map[uint64][]float32),
		Terrain: terrainBuffers,
	}
}

func (v *View) Apply(u Update) {
	switch up := u.(type) {
	case MoveCamera:
		v.Camera = up.Position
	case UpdatePlayer:
		v.Players[up.ID] = up.Vertices
	case SetSun:
		v.Sun = up.Fraction
	case AddBlock:
		v.Terrain.PushBlockData(up.LOD, up.Pos, up.Block.Materials)
		ids := make([]uint64, len(up.Block.IDs))
		for i, id := range up.Block.IDs {
			ids[i] = uint64(id)
		}
		if !v.Terrain.Push(up.Block.Vertices, up.Block.Normals, ids) {
			v.RejectedBlocks++
		}
	case RemoveTerrain:
		v.Terrain.SwapRemove(up.ID)
	case Atomic:
		for _, sub := range up.Updates {
			v.Apply(sub)
		}
	}
}
