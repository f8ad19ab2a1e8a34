package lod

import (
	"fmt"

	"voxelstream.ai/internal/chunk"
)

// Change is the delta the map reports when the aggregate LOD for a chunk
// moves: Loaded is what the chunk was recorded at before the mutation,
// Desired is what should now be loaded. Applying the change is the
// caller's job; the map itself never performs I/O.
type Change struct {
	Loaded  LOD
	Desired LOD
}

type entry struct {
	owners map[OwnerID]LOD
	loaded LOD
}

func (e *entry) aggregate() LOD {
	agg := None
	for _, l := range e.owners {
		if l.Finer(agg) {
			agg = l
		}
	}
	return agg
}

// Map tracks, per chunk, the LOD each owner demands plus the aggregate the
// chunk should be loaded at. The aggregate is always the finest LOD across
// all current owner demands; it is re-established after every mutation.
//
// The map is pure bookkeeping. If applying a reported Change fails, the
// caller reverts by replaying the inverse call with the returned previous
// owner demand: DecreaseLOD after a failed IncreaseLOD, IncreaseLOD after
// a failed DecreaseLOD (when the previous demand was not None).
type Map struct {
	entries map[chunk.Position]*entry
}

func NewMap() *Map {
	return &Map{entries: make(map[chunk.Position]*entry)}
}

// IncreaseLOD records that owner now wants at least target for pos. target
// must be finer than (or equal to) the owner's existing demand; violating
// that is a bug in the calling protocol and panics. The returned Change is
// nil when the aggregate did not move and no loading work is required.
func (m *Map) IncreaseLOD(pos chunk.Position, target LOD, owner OwnerID) (prev LOD, change *Change) {
	if !target.Valid() || target == None {
		panic(fmt.Sprintf("lod: increase to invalid LOD %d", target))
	}

	e := m.entries[pos]
	if e == nil {
		e = &entry{owners: make(map[OwnerID]LOD), loaded: None}
		m.entries[pos] = e
	}

	prev = None
	if cur, ok := e.owners[owner]; ok {
		prev = cur
		if target == cur {
			return prev, nil
		}
		if !target.Finer(cur) {
			panic(fmt.Sprintf("lod: owner %d increased %v from %v to coarser %v", owner, pos, cur, target))
		}
	}
	e.owners[owner] = target

	return prev, m.commit(pos, e)
}

// DecreaseLOD records that owner now wants at most target for pos; None
// withdraws the owner's demand entirely. The owner must have a demand
// registered, and target must be coarser than it.
func (m *Map) DecreaseLOD(pos chunk.Position, target LOD, owner OwnerID) (prev LOD, change *Change) {
	if !target.Valid() {
		panic(fmt.Sprintf("lod: decrease to invalid LOD %d", target))
	}

	e := m.entries[pos]
	if e == nil {
		panic(fmt.Sprintf("lod: owner %d decreased unknown chunk %v", owner, pos))
	}
	cur, ok := e.owners[owner]
	if !ok {
		panic(fmt.Sprintf("lod: owner %d decreased %v without a demand", owner, pos))
	}
	prev = cur
	if target == cur {
		return prev, nil
	}
	if target != None && !cur.Finer(target) {
		panic(fmt.Sprintf("lod: owner %d decreased %v from %v to finer %v", owner, pos, cur, target))
	}

	if target == None {
		delete(e.owners, owner)
	} else {
		e.owners[owner] = target
	}

	return prev, m.commit(pos, e)
}

// commit recomputes the aggregate, drops empty entries, and reports the
// delta if the aggregate moved.
func (m *Map) commit(pos chunk.Position, e *entry) *Change {
	agg := e.aggregate()
	if len(e.owners) == 0 {
		delete(m.entries, pos)
	}
	if agg == e.loaded {
		return nil
	}
	c := &Change{Loaded: e.loaded, Desired: agg}
	e.loaded = agg
	return c
}

// LoadedLOD returns the LOD pos is recorded as loaded at, or None.
func (m *Map) LoadedLOD(pos chunk.Position) LOD {
	if e := m.entries[pos]; e != nil {
		return e.loaded
	}
	return None
}

// Demand returns owner's current demand for pos, or None.
func (m *Map) Demand(pos chunk.Position, owner OwnerID) LOD {
	if e := m.entries[pos]; e != nil {
		if l, ok := e.owners[owner]; ok {
			return l
		}
	}
	return None
}

// Len is the number of chunks with at least one owner demand.
func (m *Map) Len() int {
	return len(m.entries)
}

// LoadedPositions returns every chunk with a live entry, in map order.
// Together with LoadedLOD it satisfies the surroundings enumerator's view
// of residency.
func (m *Map) LoadedPositions() []chunk.Position {
	out := make([]chunk.Position, 0, len(m.entries))
	for p := range m.entries {
		out = append(out, p)
	}
	return out
}
