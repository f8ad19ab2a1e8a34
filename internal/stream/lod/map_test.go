package lod

import (
	"reflect"
	"testing"

	"voxelstream.ai/internal/chunk"
)

const (
	ownerA OwnerID = 1
	ownerB OwnerID = 2
)

var origin = chunk.Position{}

// snapshot captures the full map state for exactness comparisons.
func snapshot(m *Map) map[chunk.Position]entry {
	out := make(map[chunk.Position]entry, len(m.entries))
	for p, e := range m.entries {
		owners := make(map[OwnerID]LOD, len(e.owners))
		for o, l := range e.owners {
			owners[o] = l
		}
		out[p] = entry{owners: owners, loaded: e.loaded}
	}
	return out
}

func checkAggregate(t *testing.T, m *Map, pos chunk.Position) {
	t.Helper()
	e := m.entries[pos]
	if e == nil {
		return
	}
	want := None
	for _, l := range e.owners {
		if l.Finer(want) {
			want = l
		}
	}
	if e.loaded != want {
		t.Fatalf("aggregate invariant broken: loaded=%v, finest demand=%v", e.loaded, want)
	}
}

func TestAggregateIsFinestDemand(t *testing.T) {
	m := NewMap()

	steps := []struct {
		increase bool
		target   LOD
		owner    OwnerID
	}{
		{true, 3, ownerA},
		{true, Placeholder, ownerB},
		{true, 1, ownerB},
		{true, 0, ownerA},
		{false, 2, ownerB},
		{false, None, ownerA},
		{false, None, ownerB},
	}
	for _, s := range steps {
		if s.increase {
			m.IncreaseLOD(origin, s.target, s.owner)
		} else {
			m.DecreaseLOD(origin, s.target, s.owner)
		}
		checkAggregate(t, m, origin)
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty map after all owners withdrew, got %d entries", m.Len())
	}
}

func TestIncreaseIdempotent(t *testing.T) {
	m := NewMap()
	_, change := m.IncreaseLOD(origin, 2, ownerA)
	if change == nil {
		t.Fatalf("first increase should produce a change")
	}
	prev, change := m.IncreaseLOD(origin, 2, ownerA)
	if change != nil {
		t.Fatalf("repeated increase produced a second delta: %+v", change)
	}
	if prev != 2 {
		t.Fatalf("expected prev=2, got %v", prev)
	}
}

func TestRollbackExactness(t *testing.T) {
	m := NewMap()
	m.IncreaseLOD(origin, 3, ownerB)

	before := snapshot(m)

	prev, change := m.IncreaseLOD(origin, 1, ownerA)
	if change == nil {
		t.Fatalf("expected a delta")
	}
	// Simulated apply failure: revert with the previous owner demand.
	if prev == None {
		m.DecreaseLOD(origin, None, ownerA)
	} else {
		m.DecreaseLOD(origin, prev, ownerA)
	}

	if !reflect.DeepEqual(before, snapshot(m)) {
		t.Fatalf("rollback did not restore state:\nbefore=%v\nafter=%v", before, snapshot(m))
	}
}

func TestRollbackExactnessAfterDecrease(t *testing.T) {
	m := NewMap()
	m.IncreaseLOD(origin, 1, ownerA)
	before := snapshot(m)

	prev, change := m.DecreaseLOD(origin, None, ownerA)
	if change == nil {
		t.Fatalf("expected a delta")
	}
	if prev != 1 {
		t.Fatalf("expected prev=1, got %v", prev)
	}
	m.IncreaseLOD(origin, prev, ownerA)

	if !reflect.DeepEqual(before, snapshot(m)) {
		t.Fatalf("rollback did not restore state:\nbefore=%v\nafter=%v", before, snapshot(m))
	}
}

// The two-owner scenario from the streaming design: demands interleave and
// the aggregate always tracks the finest requester.
func TestTwoOwnerScenario(t *testing.T) {
	m := NewMap()

	_, change := m.IncreaseLOD(origin, 2, ownerA)
	if change == nil || change.Loaded != None || change.Desired != 2 {
		t.Fatalf("A requests 2: got %+v", change)
	}

	_, change = m.IncreaseLOD(origin, 0, ownerB)
	if change == nil || change.Loaded != 2 || change.Desired != 0 {
		t.Fatalf("B requests 0: got %+v", change)
	}

	_, change = m.DecreaseLOD(origin, None, ownerB)
	if change == nil || change.Loaded != 0 || change.Desired != 2 {
		t.Fatalf("B withdraws: got %+v", change)
	}

	_, change = m.DecreaseLOD(origin, None, ownerA)
	if change == nil || change.Loaded != 2 || change.Desired != None {
		t.Fatalf("A withdraws: got %+v", change)
	}
	if m.Len() != 0 {
		t.Fatalf("entry should be removed once the last demand is withdrawn")
	}
}

func TestPlaceholderOrdering(t *testing.T) {
	m := NewMap()
	_, change := m.IncreaseLOD(origin, Placeholder, ownerA)
	if change == nil || change.Desired != Placeholder {
		t.Fatalf("placeholder demand should load a placeholder: %+v", change)
	}
	// A concrete index beats the placeholder.
	_, change = m.IncreaseLOD(origin, 3, ownerB)
	if change == nil || change.Loaded != Placeholder || change.Desired != 3 {
		t.Fatalf("concrete demand should supersede placeholder: %+v", change)
	}
	checkAggregate(t, m, origin)
}

func TestProtocolViolationsPanic(t *testing.T) {
	expectPanic := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	expectPanic("decrease without demand", func() {
		NewMap().DecreaseLOD(origin, None, ownerA)
	})
	expectPanic("increase to coarser", func() {
		m := NewMap()
		m.IncreaseLOD(origin, 1, ownerA)
		m.IncreaseLOD(origin, 3, ownerA)
	})
	expectPanic("decrease to finer", func() {
		m := NewMap()
		m.IncreaseLOD(origin, 2, ownerA)
		m.DecreaseLOD(origin, 1, ownerA)
	})
}
