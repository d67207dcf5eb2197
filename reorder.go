package ctm

import (
	"sort"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// reorderedMesh holds a mesh after index rotation, sorting, and vertex
// remapping (spec.md §4.4) — the shared preprocessing step for both MG1
// and MG2. permutation[newIndex] = oldIndex, mirroring the teacher's
// ResortVtVn, which performs the same "walk faces, assign dense indices in
// first-touch order, rebuild per-vertex arrays from the derived mapping"
// shape for a different purpose (splitting shared vertices per-face
// instead of canonicalizing for delta compression).
type reorderedMesh struct {
	indices     [][3]uint32 // rotated, sorted, remapped to dense new indices
	permutation []uint32    // new -> old vertex index
}

// reorderIndices runs the canonical rotation + lexicographic sort + vertex
// remap pipeline over the mesh's triangles. vertexCount is the mesh's full
// vertex count V; spec.md §4.4 step 3 requires the resulting permutation to
// have length V, so any vertex never touched by a triangle is appended at
// the end in its original order, after every referenced vertex.
func reorderIndices(indices [][3]uint32, vertexCount int) *reorderedMesh {
	rotated := make([][3]uint32, len(indices))
	for i, tri := range indices {
		rotated[i] = rotateTriangle(tri)
	}

	sort.SliceStable(rotated, func(i, j int) bool {
		if rotated[i][0] != rotated[j][0] {
			return rotated[i][0] < rotated[j][0]
		}
		return rotated[i][1] < rotated[j][1]
	})

	oldToNew := make(map[uint32]uint32)
	permutation := make([]uint32, 0, vertexCount)
	remapped := make([][3]uint32, len(rotated))
	for i, tri := range rotated {
		var nt [3]uint32
		for k, old := range tri {
			nidx, ok := oldToNew[old]
			if !ok {
				nidx = uint32(len(permutation))
				oldToNew[old] = nidx
				permutation = append(permutation, old)
			}
			nt[k] = nidx
		}
		remapped[i] = nt
	}

	for old := uint32(0); old < uint32(vertexCount); old++ {
		if _, ok := oldToNew[old]; !ok {
			oldToNew[old] = uint32(len(permutation))
			permutation = append(permutation, old)
		}
	}

	return &reorderedMesh{indices: remapped, permutation: permutation}
}

// rotateTriangle cyclically rotates tri so its smallest index comes first,
// preserving winding order (no flip), per spec.md §4.4 step 1.
func rotateTriangle(tri [3]uint32) [3]uint32 {
	min := 0
	for i := 1; i < 3; i++ {
		if tri[i] < tri[min] {
			min = i
		}
	}
	switch min {
	case 0:
		return tri
	case 1:
		return [3]uint32{tri[1], tri[2], tri[0]}
	default:
		return [3]uint32{tri[2], tri[0], tri[1]}
	}
}

// permuteVec3 reorders a per-vertex array by permutation (new -> old).
func permuteVec3(src []vec3.T, permutation []uint32) []vec3.T {
	if len(src) == 0 {
		return nil
	}
	out := make([]vec3.T, len(permutation))
	for newIdx, oldIdx := range permutation {
		out[newIdx] = src[oldIdx]
	}
	return out
}

func permuteVec2(src []vec2.T, permutation []uint32) []vec2.T {
	if len(src) == 0 {
		return nil
	}
	out := make([]vec2.T, len(permutation))
	for newIdx, oldIdx := range permutation {
		out[newIdx] = src[oldIdx]
	}
	return out
}

func permuteVec4(src [][4]float32, permutation []uint32) [][4]float32 {
	if len(src) == 0 {
		return nil
	}
	out := make([][4]float32, len(permutation))
	for newIdx, oldIdx := range permutation {
		out[newIdx] = src[oldIdx]
	}
	return out
}

// invertPermutation returns old -> new given new -> old.
func invertPermutation(permutation []uint32) []uint32 {
	inv := make([]uint32, len(permutation))
	for newIdx, oldIdx := range permutation {
		inv[oldIdx] = uint32(newIdx)
	}
	return inv
}

// deltaEncodeIndices implements spec.md §4.4's index delta scheme: the
// first index of triangle i stores first_i - first_{i-1} (first_{-1}=0,
// non-negative after sort); second/third store second_i-first_i and
// third_i-first_i, which may be negative.
func deltaEncodeIndices(indices [][3]uint32) []int32 {
	out := make([]int32, 0, len(indices)*3)
	var prevFirst int64
	for _, tri := range indices {
		first := int64(tri[0])
		out = append(out,
			int32(first-prevFirst),
			int32(int64(tri[1])-first),
			int32(int64(tri[2])-first),
		)
		prevFirst = first
	}
	return out
}

// deltaDecodeIndices inverts deltaEncodeIndices.
func deltaDecodeIndices(deltas []int32, triangleCount int) [][3]uint32 {
	out := make([][3]uint32, triangleCount)
	var prevFirst int64
	for i := 0; i < triangleCount; i++ {
		d0, d1, d2 := deltas[i*3], deltas[i*3+1], deltas[i*3+2]
		first := prevFirst + int64(d0)
		out[i] = [3]uint32{
			uint32(first),
			uint32(first + int64(d1)),
			uint32(first + int64(d2)),
		}
		prevFirst = first
	}
	return out
}
