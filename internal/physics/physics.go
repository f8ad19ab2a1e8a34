// Package physics holds the terrain collision shapes the streaming code
// registers. Shape insertion and removal is the whole contract; collision
// resolution itself happens elsewhere.
package physics

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min [3]float64
	Max [3]float64
}

// Table maps terrain entity ids to their collision bounds. It is mutated
// only from the update goroutine, so it carries no lock of its own.
type Table struct {
	shapes map[uint64]AABB
}

func NewTable() *Table {
	return &Table{shapes: make(map[uint64]AABB)}
}

func (t *Table) InsertTerrain(id uint64, bounds AABB) {
	t.shapes[id] = bounds
}

func (t *Table) RemoveTerrain(id uint64) {
	delete(t.shapes, id)
}

// Bounds returns the shape registered for id.
func (t *Table) Bounds(id uint64) (AABB, bool) {
	b, ok := t.shapes[id]
	return b, ok
}

func (t *Table) Len() int {
	return len(t.shapes)
}
