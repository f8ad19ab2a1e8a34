// Package stream is the client-side streaming core: it drains server
// updates, walks the observer's surroundings to keep nearby terrain loaded
// at the right detail, and re-meshes chunks touched by voxel edits. All of
// that happens on one update goroutine; the collaborators it drives are
// plain interfaces.
package stream

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/gen"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/stream/lod"
	"voxelstream.ai/internal/stream/surroundings"
	"voxelstream.ai/internal/stream/terrain"
	"voxelstream.ai/internal/tuning"
	"voxelstream.ai/internal/view"
)

// OwnerSurroundings is the demand-map owner the surroundings walk files its
// LOD demands under. Other demanders (a physics proximity scan, say) would
// register their own ids.
const OwnerSurroundings lod.OwnerID = 1

// UpdateSource is the non-blocking inbound feed of decoded server messages.
type UpdateSource interface {
	// TryRecv returns the next pending update, or ok=false if none is
	// queued right now.
	TryRecv() (protocol.ServerUpdate, bool)
}

// UpdateSink carries outbound client messages toward the server.
type UpdateSink interface {
	Send(protocol.ClientUpdate)
}

// AudioCue names an ambience track.
type AudioCue string

const (
	CueAmbientDay   AudioCue = "ambient_day"
	CueAmbientNight AudioCue = "ambient_night"
)

// AudioSink receives ambience cues derived from world state.
type AudioSink interface {
	Play(cue AudioCue)
}

// Deps are the collaborators a client drives. Buffers and the view sink
// usually share the same terrain storage underneath; the streamer writes
// geometry through Buffers directly, everything else goes through View.
type Deps struct {
	Source  UpdateSource
	Out     UpdateSink
	View    view.Sink
	Audio   AudioSink
	Buffers terrain.GPUBuffers
	Physics terrain.Physics
}

// Client is the per-connection streaming state. Each shared resource has
// its own lock; the update loop holds at most one at a time.
type Client struct {
	id   uint64
	cfg  tuning.Tuning
	deps Deps
	now  func() time.Time

	quit atomic.Bool

	posMu       sync.Mutex
	observerPos [3]float64

	rngMu sync.Mutex
	rng   *rand.Rand

	// terrainMu guards the demand map, voxel store, block cache and the
	// dirty set together: every terrain mutation walks more than one of
	// them.
	terrainMu sync.Mutex
	lods      *lod.Map
	voxels    *terrain.VoxelStore
	streamer  *terrain.Streamer
	assemble  terrain.Generator
	enum      *surroundings.Enumerator
	dirty     map[chunk.Position]struct{}

	pendingMu sync.Mutex
	pending   map[terrain.VoxelKey]struct{}

	lastCue AudioCue

	Counters Counters
}

func New(id uint64, cfg tuning.Tuning, deps Deps) *Client {
	ids := &terrain.IDAllocator{}
	voxels := terrain.NewVoxelStore()
	assemble := &gen.BlockAssembler{IDs: ids, Voxels: voxels}
	inProgress := terrain.NewInProgress(ids, deps.Physics)
	return &Client{
		id:       id,
		cfg:      cfg,
		deps:     deps,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(cfg.Seed ^ int64(id))),
		lods:     lod.NewMap(),
		voxels:   voxels,
		streamer: terrain.NewStreamer(terrain.NewCache(), inProgress, deps.Buffers, deps.Physics, assemble),
		assemble: assemble,
		enum:     surroundings.NewEnumerator(cfg.LoadRadiusChunks, cfg.Thresholds()),
		dirty:    make(map[chunk.Position]struct{}),
		pending:  make(map[terrain.VoxelKey]struct{}),
	}
}

// Quit asks the update loop to stop after the current cycle.
func (c *Client) Quit() {
	c.quit.Store(true)
}

// ObserverPos returns the last authoritative avatar position.
func (c *Client) ObserverPos() [3]float64 {
	c.posMu.Lock()
	defer c.posMu.Unlock()
	return c.observerPos
}

// EditVoxel sends a world edit to the server. The edit only takes local
// effect when the server echoes it back in a VOXELS_UPDATED message.
func (c *Client) EditVoxel(wx, wy, wz int32, material uint16) {
	c.deps.Out.Send(&protocol.EditVoxelMsg{
		Type:            protocol.TypeEditVoxel,
		ProtocolVersion: protocol.Version,
		ClientID:        c.id,
		Position:        [3]int32{wx, wy, wz},
		Material:        material,
	})
}

// Outstanding is the number of chunk requests still in flight.
func (c *Client) Outstanding() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// requestChunk files an outbound request for key unless one is already in
// flight.
func (c *Client) requestChunk(key terrain.VoxelKey) {
	c.pendingMu.Lock()
	if _, ok := c.pending[key]; ok {
		c.pendingMu.Unlock()
		return
	}
	c.pending[key] = struct{}{}
	c.pendingMu.Unlock()

	c.Counters.RequestsSent.Add(1)
	c.deps.Out.Send(&protocol.RequestChunkMsg{
		Type:            protocol.TypeRequestChunk,
		ProtocolVersion: protocol.Version,
		TimeRequestedNs: c.now().UnixNano(),
		ClientID:        c.id,
		Position:        [3]int32{key.Pos.X, key.Pos.Y, key.Pos.Z},
		LgSampleSize:    key.LgSampleSize,
	})
}

// playerMesh builds a small avatar marker triangle. The jitter keeps
// overlapping avatars visually tellable apart across rebuilds.
func (c *Client) playerMesh(pos [3]float64) []float32 {
	c.rngMu.Lock()
	j := c.rng.Float64()*0.1 - 0.05
	c.rngMu.Unlock()

	x, y, z := float32(pos[0]+j), float32(pos[1]), float32(pos[2]+j)
	const h, w = 2.0, 0.5
	return []float32{
		x - w, y, z,
		x + w, y, z,
		x, y + h, z,
	}
}
