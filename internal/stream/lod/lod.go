package lod

import "fmt"

// LOD is a level of detail for one chunk. Concrete indices run 0..NumLODs-1
// with lower indices holding finer detail. Placeholder is a synthetic state
// coarser than every concrete index, used while a chunk's content is still
// pending. None means the chunk is unloaded.
type LOD int8

const (
	// NumLODs is the number of concrete detail tiers.
	NumLODs = 4

	None        LOD = -1
	Placeholder LOD = NumLODs
)

// OwnerID identifies an independent demander of terrain detail, e.g. the
// view surroundings scan vs. a physics proximity scan.
type OwnerID uint32

// Valid reports whether l is a value this package hands out.
func (l LOD) Valid() bool {
	return l == None || (l >= 0 && l <= Placeholder)
}

// Concrete reports whether l names an actual detail tier.
func (l LOD) Concrete() bool {
	return l >= 0 && l < NumLODs
}

// rank orders LODs by coarseness: concrete indices first, then Placeholder,
// then None. Smaller rank = finer.
func (l LOD) rank() int {
	if l == None {
		return int(Placeholder) + 1
	}
	return int(l)
}

// Finer reports whether l is strictly finer than other.
func (l LOD) Finer(other LOD) bool {
	return l.rank() < other.rank()
}

// LgSampleSize is the log2 of the voxel sampling interval at this LOD.
// Placeholder chunks carry no voxel data; they sample at the coarsest tier.
func (l LOD) LgSampleSize() int {
	if !l.Concrete() {
		return NumLODs - 1
	}
	return int(l)
}

func (l LOD) String() string {
	switch {
	case l == None:
		return "none"
	case l == Placeholder:
		return "placeholder"
	default:
		return fmt.Sprintf("lod%d", int(l))
	}
}

// OfDistance maps a chunk-space distance from the observer to the LOD the
// chunk should be loaded at. thresholds[i] is the largest distance still
// served at LOD i; beyond the last threshold the coarsest tier applies.
func OfDistance(distance int32, thresholds [NumLODs - 1]int32) LOD {
	for i, max := range thresholds {
		if distance <= max {
			return LOD(i)
		}
	}
	return NumLODs - 1
}
