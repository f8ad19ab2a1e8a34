package stream

import (
	"context"
	"runtime"
	"time"

	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/encoding"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/stream/lod"
	"voxelstream.ai/internal/stream/surroundings"
	"voxelstream.ai/internal/stream/terrain"
	"voxelstream.ai/internal/view"
)

// phaseClock enforces one phase's wall-clock budget. The clock is only
// sampled every checkEvery iterations; a phase may therefore overrun by up
// to checkEvery-1 items, never unboundedly.
type phaseClock struct {
	now        func() time.Time
	deadline   time.Time
	checkEvery int
	n          int
}

func (c *Client) newPhaseClock() *phaseClock {
	return &phaseClock{
		now:        c.now,
		deadline:   c.now().Add(time.Duration(c.cfg.PhaseBudgetUs) * time.Microsecond),
		checkEvery: c.cfg.ClockCheckEvery,
	}
}

func (p *phaseClock) expired() bool {
	p.n++
	if p.n < p.checkEvery {
		return false
	}
	p.n = 0
	return !p.now().Before(p.deadline)
}

// Run drives update cycles until ctx is cancelled or Quit is called.
func (c *Client) Run(ctx context.Context) {
	for {
		if c.quit.Load() || ctx.Err() != nil {
			return
		}
		c.Cycle()
		runtime.Gosched()
	}
}

// Cycle runs one update cycle: drain server updates, recompute the
// surroundings, then re-mesh edited chunks. Each phase carries its own
// budget so no single one can starve the others.
func (c *Client) Cycle() {
	c.processServerUpdates()
	c.updateSurroundings()
	c.processVoxelUpdates()
}

func (c *Client) processServerUpdates() {
	clock := c.newPhaseClock()
	for {
		up, ok := c.deps.Source.TryRecv()
		if !ok {
			return
		}
		c.applyServerUpdate(up)
		if clock.expired() {
			return
		}
	}
}

func (c *Client) applyServerUpdate(up protocol.ServerUpdate) {
	switch m := up.(type) {
	case *protocol.PlayerMsg:
		c.posMu.Lock()
		c.observerPos = m.Position
		c.posMu.Unlock()
		c.deps.View.Apply(view.Atomic{Updates: []view.Update{
			view.MoveCamera{Position: m.Position},
			view.UpdatePlayer{ID: m.ID, Vertices: c.playerMesh(m.Position)},
		}})

	case *protocol.SunMsg:
		c.deps.View.Apply(view.SetSun{Fraction: m.Fraction})
		cue := CueAmbientDay
		if m.Fraction < 0.25 || m.Fraction >= 0.75 {
			cue = CueAmbientNight
		}
		if cue != c.lastCue {
			c.lastCue = cue
			c.deps.Audio.Play(cue)
		}

	case *protocol.ChunkMsg:
		key := terrain.VoxelKey{
			Pos:          chunk.Position{X: m.Position[0], Y: m.Position[1], Z: m.Position[2]},
			LgSampleSize: m.LgSampleSize,
		}
		c.pendingMu.Lock()
		delete(c.pending, key)
		c.pendingMu.Unlock()

		voxels, err := encoding.DecodeVoxels(m.Voxels, key.VolumeLen())
		if err != nil {
			c.Counters.DecodeFailures.Add(1)
			return
		}
		c.terrainMu.Lock()
		c.voxels.Put(key, voxels)
		c.terrainMu.Unlock()
		c.Counters.ChunksReceived.Add(1)

	case *protocol.VoxelsUpdatedMsg:
		c.terrainMu.Lock()
		for _, e := range m.Edits {
			pos, changed := c.voxels.SetVoxel(e.Position[0], e.Position[1], e.Position[2], e.Material)
			if changed {
				c.dirty[pos] = struct{}{}
			}
		}
		c.terrainMu.Unlock()
	}
}

// updateSurroundings walks chunks around the observer by ascending distance
// and reconciles each against its target LOD. The walk stops early when the
// phase budget runs out or when the in-flight request cap is reached; the
// next cycle resumes from a fresh scan, so close-by work is never starved
// by far-away work.
func (c *Client) updateSurroundings() {
	clock := c.newPhaseClock()
	p := c.ObserverPos()
	center := chunk.PositionAt(p[0], p[1], p[2])

	c.terrainMu.Lock()
	defer c.terrainMu.Unlock()

	scan := c.enum.Scan(center, c.lods)
	for {
		if c.Outstanding() >= c.cfg.MaxOutstandingRequests {
			c.Counters.BackpressureStalls.Add(1)
			return
		}
		u, ok := scan.Next()
		if !ok {
			return
		}
		switch u.Action {
		case surroundings.ActionLoad, surroundings.ActionDowngrade:
			target := c.enum.TargetLOD(chunk.Distance(center, u.Pos))
			c.loadChunk(u.Pos, target, u.Action)
		case surroundings.ActionUnload:
			c.unloadChunk(u.Pos)
		}
		if clock.expired() {
			return
		}
	}
}

// loadChunk moves one chunk toward target. A chunk whose voxel payload is
// not resident yet gets an outbound request plus a placeholder demand, so
// physics has a stand-in while the payload is in flight.
func (c *Client) loadChunk(pos chunk.Position, target lod.LOD, action surroundings.Action) {
	key := terrain.VoxelKey{Pos: pos, LgSampleSize: target.LgSampleSize()}
	if !c.voxels.Has(key) {
		if c.lods.Demand(pos, OwnerSurroundings) == lod.None {
			if _, change := c.lods.IncreaseLOD(pos, lod.Placeholder, OwnerSurroundings); change != nil {
				c.streamer.Apply(pos, change.Loaded, change.Desired)
				c.Counters.PlaceholdersHeld.Add(1)
			}
		}
		c.requestChunk(key)
		return
	}

	var prev lod.LOD
	var change *lod.Change
	if action == surroundings.ActionDowngrade {
		prev, change = c.lods.DecreaseLOD(pos, target, OwnerSurroundings)
	} else {
		prev, change = c.lods.IncreaseLOD(pos, target, OwnerSurroundings)
	}
	if change == nil {
		return
	}

	if c.streamer.Apply(pos, change.Loaded, change.Desired) {
		if action == surroundings.ActionDowngrade {
			c.Counters.ChunksDowngraded.Add(1)
		} else {
			c.Counters.ChunksLoaded.Add(1)
		}
		return
	}

	// The load was rejected for capacity. Replay the inverse mutation so
	// the demand map matches what is actually resident again.
	c.Counters.CapacityFailures.Add(1)
	if action == surroundings.ActionDowngrade {
		c.lods.IncreaseLOD(pos, prev, OwnerSurroundings)
	} else {
		c.lods.DecreaseLOD(pos, prev, OwnerSurroundings)
	}
}

func (c *Client) unloadChunk(pos chunk.Position) {
	if c.lods.Demand(pos, OwnerSurroundings) == lod.None {
		return
	}
	if _, change := c.lods.DecreaseLOD(pos, lod.None, OwnerSurroundings); change != nil {
		// A pure unload never fails.
		c.streamer.Apply(pos, change.Loaded, change.Desired)
		c.Counters.ChunksUnloaded.Add(1)
	}
}

func (c *Client) processVoxelUpdates() {
	clock := c.newPhaseClock()
	p := c.ObserverPos()
	center := chunk.PositionAt(p[0], p[1], p[2])

	c.terrainMu.Lock()
	defer c.terrainMu.Unlock()

	for pos := range c.dirty {
		delete(c.dirty, pos)
		c.remesh(pos, center)
		if clock.expired() {
			return
		}
	}
}

// remesh rebuilds one edited chunk's block at its current LOD and swaps it
// into the view atomically. Chunks that left the radius or hold no concrete
// detail are skipped; the surroundings walk owns their fate.
func (c *Client) remesh(pos, center chunk.Position) {
	loaded := c.lods.LoadedLOD(pos)
	if !loaded.Concrete() {
		return
	}
	if chunk.Distance(center, pos) > c.cfg.LoadRadiusChunks {
		return
	}

	old := c.streamer.Cache().Get(pos, loaded)
	fresh := c.assemble.Generate(pos, loaded)

	var ups []view.Update
	if old != nil {
		for _, b := range old.Bounds {
			c.deps.Physics.RemoveTerrain(uint64(b.ID))
		}
		for _, id := range old.IDs {
			ups = append(ups, view.RemoveTerrain{ID: uint64(id)})
		}
	}
	for _, b := range fresh.Bounds {
		c.deps.Physics.InsertTerrain(uint64(b.ID), b.AABB)
	}
	if !fresh.Empty() {
		ups = append(ups, view.AddBlock{Pos: pos, LOD: loaded, Block: fresh})
	}
	if len(ups) > 0 {
		c.deps.View.Apply(view.Atomic{Updates: ups})
	}

	c.streamer.Cache().Put(pos, loaded, fresh)
	c.Counters.EditsApplied.Add(1)
}
