// Package surroundings decides what terrain work the observer's position
// implies: a distance-ordered walk of nearby chunks classifying each as
// needing a load, a downgrade to coarser detail, or an unload.
package surroundings

import (
	"sort"

	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/stream/lod"
)

type Action int8

const (
	ActionLoad Action = iota
	ActionDowngrade
	ActionUnload
)

func (a Action) String() string {
	switch a {
	case ActionLoad:
		return "load"
	case ActionDowngrade:
		return "downgrade"
	case ActionUnload:
		return "unload"
	}
	return "unknown"
}

// Update pairs a chunk with the action it needs.
type Update struct {
	Pos    chunk.Position
	Action Action
}

// LoadedState is the enumerator's read-only window into residency. The
// enumerator holds no loading state of its own; all mutation is deferred
// to the demand map and streamer.
type LoadedState interface {
	// LoadedLOD returns the LOD pos is currently loaded at, lod.None if
	// absent.
	LoadedLOD(pos chunk.Position) lod.LOD
	// LoadedPositions returns every chunk currently loaded, in any order.
	LoadedPositions() []chunk.Position
}

// Enumerator classifies the observer's surroundings. The in-radius offset
// walk is precomputed once, sorted by ascending Chebyshev distance, and
// shared by every scan.
type Enumerator struct {
	maxRadius  int32
	thresholds [lod.NumLODs - 1]int32
	offsets    []chunk.Position
}

func NewEnumerator(maxRadius int32, thresholds [lod.NumLODs - 1]int32) *Enumerator {
	e := &Enumerator{
		maxRadius:  maxRadius,
		thresholds: thresholds,
	}
	for dz := -maxRadius; dz <= maxRadius; dz++ {
		for dy := -maxRadius; dy <= maxRadius; dy++ {
			for dx := -maxRadius; dx <= maxRadius; dx++ {
				e.offsets = append(e.offsets, chunk.Position{X: dx, Y: dy, Z: dz})
			}
		}
	}
	sort.SliceStable(e.offsets, func(i, j int) bool {
		var zero chunk.Position
		return chunk.Distance(zero, e.offsets[i]) < chunk.Distance(zero, e.offsets[j])
	})
	return e
}

// TargetLOD maps a chunk's distance from the observer to the detail tier
// it should be held at.
func (e *Enumerator) TargetLOD(distance int32) lod.LOD {
	return lod.OfDistance(distance, e.thresholds)
}

// Scan starts a fresh lazy walk around center. Each call reflects the
// latest observer position; a scan is never resumed across calls.
func (e *Enumerator) Scan(center chunk.Position, loaded LoadedState) *Scan {
	return &Scan{enum: e, center: center, loaded: loaded}
}

// Scan yields (chunk, action) pairs by ascending distance: first the
// in-radius chunks that need loading or coarsening, then the loaded chunks
// that have left the radius entirely.
type Scan struct {
	enum   *Enumerator
	center chunk.Position
	loaded LoadedState

	i         int
	unloads   []chunk.Position
	unloadsOK bool
	j         int
}

func (s *Scan) Next() (Update, bool) {
	for ; s.i < len(s.enum.offsets); s.i++ {
		off := s.enum.offsets[s.i]
		pos := s.center.Add(off.X, off.Y, off.Z)
		d := chunk.Distance(s.center, pos)
		target := s.enum.TargetLOD(d)
		cur := s.loaded.LoadedLOD(pos)
		switch {
		case cur == target:
			continue
		case cur != lod.None && cur.Finer(target):
			s.i++
			return Update{Pos: pos, Action: ActionDowngrade}, true
		default:
			s.i++
			return Update{Pos: pos, Action: ActionLoad}, true
		}
	}

	if !s.unloadsOK {
		for _, pos := range s.loaded.LoadedPositions() {
			if chunk.Distance(s.center, pos) > s.enum.maxRadius {
				s.unloads = append(s.unloads, pos)
			}
		}
		sort.Slice(s.unloads, func(i, j int) bool {
			return chunk.Distance(s.center, s.unloads[i]) < chunk.Distance(s.center, s.unloads[j])
		})
		s.unloadsOK = true
	}
	if s.j < len(s.unloads) {
		u := Update{Pos: s.unloads[s.j], Action: ActionUnload}
		s.j++
		return u, true
	}
	return Update{}, false
}
