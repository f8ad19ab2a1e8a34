package stream

import (
	"testing"
	"time"

	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/encoding"
	"voxelstream.ai/internal/gen"
	"voxelstream.ai/internal/physics"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/stream/lod"
	"voxelstream.ai/internal/stream/terrain"
	"voxelstream.ai/internal/tuning"
	"voxelstream.ai/internal/view"
	"voxelstream.ai/internal/view/buffers"
)

type queueSource struct {
	q []protocol.ServerUpdate
}

func (s *queueSource) TryRecv() (protocol.ServerUpdate, bool) {
	if len(s.q) == 0 {
		return nil, false
	}
	u := s.q[0]
	s.q = s.q[1:]
	return u, true
}

func (s *queueSource) push(u protocol.ServerUpdate) {
	s.q = append(s.q, u)
}

type recordOut struct {
	sent []protocol.ClientUpdate
}

func (o *recordOut) Send(u protocol.ClientUpdate) {
	o.sent = append(o.sent, u)
}

func (o *recordOut) requests() []*protocol.RequestChunkMsg {
	var out []*protocol.RequestChunkMsg
	for _, u := range o.sent {
		if m, ok := u.(*protocol.RequestChunkMsg); ok {
			out = append(out, m)
		}
	}
	return out
}

type recordAudio struct {
	cues []AudioCue
}

func (a *recordAudio) Play(c AudioCue) {
	a.cues = append(a.cues, c)
}

type harness struct {
	src   *queueSource
	out   *recordOut
	audio *recordAudio
	view  *view.View
	phys  *physics.Table
	c     *Client
}

func newHarness(t *testing.T, cfg tuning.Tuning) *harness {
	t.Helper()
	buf := buffers.NewTerrainBuffers(cfg.VertexBudget)
	h := &harness{
		src:   &queueSource{},
		out:   &recordOut{},
		audio: &recordAudio{},
		view:  view.New(buf),
		phys:  physics.NewTable(),
	}
	h.c = New(7, cfg, Deps{
		Source:  h.src,
		Out:     h.out,
		View:    h.view,
		Audio:   h.audio,
		Buffers: buf,
		Physics: h.phys,
	})
	return h
}

func testConfig(radius int32, maxRequests int) tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.LoadRadiusChunks = radius
	cfg.MaxOutstandingRequests = maxRequests
	// Generous budget so scans run to completion on slow machines; the
	// budget itself is covered by TestPhaseBudgetBoundsDrain.
	cfg.PhaseBudgetUs = 1_000_000
	return cfg
}

func uniformVoxels(key terrain.VoxelKey, material uint16) []uint16 {
	v := make([]uint16, key.VolumeLen())
	for i := range v {
		v[i] = material
	}
	return v
}

// fillRadius makes every chunk within radius of center resident at lg 0.
func fillRadius(c *Client, center chunk.Position, radius int32, material uint16) {
	for dz := -radius; dz <= radius; dz++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				key := terrain.VoxelKey{Pos: center.Add(dx, dy, dz)}
				c.voxels.Put(key, uniformVoxels(key, material))
			}
		}
	}
}

func TestMissingChunkRequestedWithBackpressure(t *testing.T) {
	h := newHarness(t, testConfig(2, 1))

	h.c.Cycle()

	if got := h.c.Outstanding(); got != 1 {
		t.Fatalf("outstanding = %d, want 1", got)
	}
	reqs := h.out.requests()
	if len(reqs) != 1 {
		t.Fatalf("requests sent = %d, want 1", len(reqs))
	}
	if reqs[0].Position != [3]int32{0, 0, 0} || reqs[0].LgSampleSize != 0 {
		t.Fatalf("first request should be the observer's chunk at finest detail, got %+v", reqs[0])
	}
	if got := h.c.Counters.PlaceholdersHeld.Load(); got != 1 {
		t.Fatalf("placeholders held = %d, want 1", got)
	}
	if got := h.phys.Len(); got != 1 {
		t.Fatalf("physics shapes = %d, want 1 placeholder cube", got)
	}

	// With the request still in flight the next cycle must not ask again.
	h.c.Cycle()
	if got := h.c.Counters.RequestsSent.Load(); got != 1 {
		t.Fatalf("requests after stalled cycle = %d, want 1", got)
	}
	if h.c.Counters.BackpressureStalls.Load() == 0 {
		t.Fatalf("expected a backpressure stall to be recorded")
	}

	// Answer the request; the chunk loads and the walk moves on.
	key := terrain.VoxelKey{}
	h.src.push(&protocol.ChunkMsg{
		Type:         protocol.TypeChunk,
		Position:     [3]int32{0, 0, 0},
		LgSampleSize: 0,
		Voxels:       encoding.EncodeVoxels(uniformVoxels(key, gen.Air)),
	})
	h.c.Cycle()

	if got := h.c.Counters.ChunksReceived.Load(); got != 1 {
		t.Fatalf("chunks received = %d, want 1", got)
	}
	if got := h.c.Counters.ChunksLoaded.Load(); got != 1 {
		t.Fatalf("chunks loaded = %d, want 1", got)
	}
	if got := h.c.lods.LoadedLOD(chunk.Position{}); got != lod.LOD(0) {
		t.Fatalf("observer chunk loaded at %v, want lod0", got)
	}
	if got := h.c.Counters.RequestsSent.Load(); got != 2 {
		t.Fatalf("requests after load = %d, want 2 (walk moved on)", got)
	}
}

func TestRequestDedupAcrossCycles(t *testing.T) {
	h := newHarness(t, testConfig(1, 2))

	h.c.Cycle()
	if got := h.c.Counters.RequestsSent.Load(); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}

	// Answer only the first request. The second stays pending, so the next
	// cycle must skip it and request one new chunk instead.
	first := h.out.requests()[0]
	key := terrain.VoxelKey{
		Pos:          chunk.Position{X: first.Position[0], Y: first.Position[1], Z: first.Position[2]},
		LgSampleSize: first.LgSampleSize,
	}
	h.src.push(&protocol.ChunkMsg{
		Type:         protocol.TypeChunk,
		Position:     first.Position,
		LgSampleSize: first.LgSampleSize,
		Voxels:       encoding.EncodeVoxels(uniformVoxels(key, gen.Air)),
	})
	h.c.Cycle()

	reqs := h.out.requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	seen := make(map[[3]int32]bool)
	for _, r := range reqs {
		if seen[r.Position] {
			t.Fatalf("chunk %v requested twice", r.Position)
		}
		seen[r.Position] = true
	}
	if got := h.c.Outstanding(); got != 2 {
		t.Fatalf("outstanding = %d, want 2", got)
	}
}

func TestPhaseBudgetBoundsDrain(t *testing.T) {
	h := newHarness(t, tuning.Defaults())

	// Fake clock advancing 600us per sample. With a 1000us budget and the
	// clock checked every 10 items, the drain stops after exactly 20.
	base := time.Unix(0, 0)
	calls := 0
	h.c.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 600 * time.Microsecond)
	}

	for i := 0; i < 50; i++ {
		h.src.push(&protocol.SunMsg{Type: protocol.TypeSun, Fraction: 0.5})
	}
	h.c.processServerUpdates()

	if got := len(h.src.q); got != 30 {
		t.Fatalf("drained %d updates, want 20 (30 left, got %d left)", 50-got, got)
	}
	if len(h.audio.cues) != 1 || h.audio.cues[0] != CueAmbientDay {
		t.Fatalf("ambience cues = %v, want one day cue", h.audio.cues)
	}
}

func TestCapacityFailureRollsBackDemand(t *testing.T) {
	cfg := testConfig(1, 1)
	cfg.VertexBudget = 5
	h := newHarness(t, cfg)

	center := chunk.Position{}
	key := terrain.VoxelKey{Pos: center}
	h.c.voxels.Put(key, uniformVoxels(key, gen.Stone))

	h.c.Cycle()

	if got := h.c.Counters.CapacityFailures.Load(); got != 1 {
		t.Fatalf("capacity failures = %d, want 1", got)
	}
	if got := h.c.lods.LoadedLOD(center); got != lod.None {
		t.Fatalf("demand not rolled back, chunk recorded at %v", got)
	}
	if got := h.view.Terrain.UsedVertices(); got != 0 {
		t.Fatalf("rejected load left %d vertices resident", got)
	}
	// The failed attempt must not leak collision shapes; the one shape left
	// is the placeholder for the neighbour the walk requested next.
	if got := h.phys.Len(); got != 1 {
		t.Fatalf("physics shapes = %d, want 1", got)
	}
}

func TestRetreatUnloadsAndRefills(t *testing.T) {
	h := newHarness(t, testConfig(1, 100))
	fillRadius(h.c, chunk.Position{}, 1, gen.Air)

	h.c.Cycle()
	if got := h.c.Counters.ChunksLoaded.Load(); got != 27 {
		t.Fatalf("chunks loaded = %d, want 27", got)
	}
	if got := h.c.Outstanding(); got != 0 {
		t.Fatalf("outstanding = %d, want 0", got)
	}

	h.src.push(&protocol.PlayerMsg{Type: protocol.TypePlayer, ID: 7, Position: [3]float64{1000, 0, 0}})
	h.c.Cycle()

	if h.view.Camera != [3]float64{1000, 0, 0} {
		t.Fatalf("camera = %v, want moved to the avatar", h.view.Camera)
	}
	if _, ok := h.view.Players[7]; !ok {
		t.Fatalf("avatar mesh missing from view")
	}
	if got := h.c.Counters.ChunksUnloaded.Load(); got != 27 {
		t.Fatalf("chunks unloaded = %d, want all 27 left behind", got)
	}
	if got := h.c.Outstanding(); got != 27 {
		t.Fatalf("outstanding = %d, want 27 requests around the new position", got)
	}
	if got := h.phys.Len(); got != 27 {
		t.Fatalf("physics shapes = %d, want 27 placeholders", got)
	}
}

func TestDowngradeWhenObserverMovesAway(t *testing.T) {
	cfg := testConfig(4, 10000)
	cfg.LODThresholds = []int32{1, 4, 6}
	h := newHarness(t, cfg)

	center := chunk.Position{}
	fine := terrain.VoxelKey{Pos: center, LgSampleSize: 0}
	coarse := terrain.VoxelKey{Pos: center, LgSampleSize: 1}
	h.c.voxels.Put(fine, uniformVoxels(fine, gen.Air))
	h.c.voxels.Put(coarse, uniformVoxels(coarse, gen.Air))

	h.c.Cycle()
	if got := h.c.lods.LoadedLOD(center); got != lod.LOD(0) {
		t.Fatalf("chunk loaded at %v, want lod0", got)
	}

	// Two chunks away the target drops to lod1.
	h.src.push(&protocol.PlayerMsg{Type: protocol.TypePlayer, ID: 7, Position: [3]float64{2 * chunk.Width, 0, 0}})
	h.c.Cycle()

	if got := h.c.Counters.ChunksDowngraded.Load(); got != 1 {
		t.Fatalf("downgrades = %d, want 1", got)
	}
	if got := h.c.lods.LoadedLOD(center); got != lod.LOD(1) {
		t.Fatalf("chunk now at %v, want lod1", got)
	}
}

func TestVoxelEditRemeshesChunk(t *testing.T) {
	h := newHarness(t, testConfig(1, 100))
	fillRadius(h.c, chunk.Position{}, 1, gen.Air)
	h.c.Cycle()

	h.src.push(&protocol.VoxelsUpdatedMsg{
		Type:  protocol.TypeVoxelsUpdated,
		Edits: []protocol.VoxelEdit{{Position: [3]int32{0, 0, 0}, Material: gen.Stone}},
	})
	h.c.Cycle()

	if got := h.c.Counters.EditsApplied.Load(); got != 1 {
		t.Fatalf("edits applied = %d, want 1", got)
	}
	if got := h.phys.Len(); got != 1 {
		t.Fatalf("physics shapes = %d, want the edited column's box", got)
	}
	if got := h.view.Terrain.UsedVertices(); got != 6 {
		t.Fatalf("resident vertices = %d, want 6 for one column quad", got)
	}

	// Editing the voxel back to air removes the column again.
	h.src.push(&protocol.VoxelsUpdatedMsg{
		Type:  protocol.TypeVoxelsUpdated,
		Edits: []protocol.VoxelEdit{{Position: [3]int32{0, 0, 0}, Material: gen.Air}},
	})
	h.c.Cycle()

	if got := h.phys.Len(); got != 0 {
		t.Fatalf("physics shapes = %d, want 0 after revert", got)
	}
	if got := h.view.Terrain.UsedVertices(); got != 0 {
		t.Fatalf("resident vertices = %d, want 0 after revert", got)
	}
}

func TestEditVoxelSendsRequest(t *testing.T) {
	h := newHarness(t, testConfig(1, 1))
	h.c.EditVoxel(3, 4, 5, gen.Stone)

	if len(h.out.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(h.out.sent))
	}
	m, ok := h.out.sent[0].(*protocol.EditVoxelMsg)
	if !ok {
		t.Fatalf("sent %T, want EditVoxelMsg", h.out.sent[0])
	}
	if m.Position != [3]int32{3, 4, 5} || m.Material != gen.Stone || m.ClientID != 7 {
		t.Fatalf("edit message = %+v", m)
	}
}
