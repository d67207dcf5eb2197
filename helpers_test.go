package ctm

import (
	"sort"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// tetrahedronMesh returns the four-vertex, four-triangle solid used
// throughout the test suite as the minimal non-degenerate mesh.
func tetrahedronMesh() *Mesh {
	vertices := []vec3.T{
		{0, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	indices := [][3]uint32{
		{0, 1, 2},
		{0, 1, 3},
		{1, 2, 3},
		{0, 2, 3},
	}
	return &Mesh{Vertices: vertices, Indices: indices}
}

func tetrahedronMeshWithNormals() *Mesh {
	m := tetrahedronMesh()
	m.Normals = smoothNormals(m.Vertices, m.Indices)
	return m
}

func tetrahedronMeshWithMaps() *Mesh {
	m := tetrahedronMeshWithNormals()
	m.TexMaps = []*TexMap{
		{
			Name: "uv0",
			Coords: []vec2.T{
				{0, 0}, {1, 0}, {0, 1}, {1, 1},
			},
		},
	}
	m.AttribMaps = []*AttribMap{
		{
			Name: "color0",
			Values: [][4]float32{
				{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}, {1, 1, 0, 1},
			},
		},
	}
	return m
}

// triangleSignatures returns each triangle's three vertex positions, sorted
// lexicographically within the triangle so the comparison below is
// independent of the vertex renumbering the index reorderer performs.
func triangleSignatures(m *Mesh) [][3]vec3.T {
	out := make([][3]vec3.T, len(m.Indices))
	for i, tri := range m.Indices {
		pts := [3]vec3.T{m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]}
		sort.Slice(pts[:], func(a, b int) bool {
			for axis := 0; axis < 3; axis++ {
				if pts[a][axis] != pts[b][axis] {
					return pts[a][axis] < pts[b][axis]
				}
			}
			return false
		})
		out[i] = pts
	}
	return out
}

func pointsWithinTolerance(a, b [3]vec3.T, tol float32) bool {
	for i := 0; i < 3; i++ {
		for axis := 0; axis < 3; axis++ {
			d := a[i][axis] - b[i][axis]
			if d < -tol || d > tol {
				return false
			}
		}
	}
	return true
}

// meshesEqualWithinTolerance reports whether a and b describe the same
// surface (same multiset of triangles by position, independent of vertex
// renumbering), each vertex allowed to differ by at most tol — MG2's lossy
// path never reproduces exact float32 values, RAW/MG1 use tol 0.
func meshesEqualWithinTolerance(a, b *Mesh, tol float32) bool {
	if a.VertexCount() != b.VertexCount() || a.TriangleCount() != b.TriangleCount() {
		return false
	}
	sigsA := triangleSignatures(a)
	sigsB := triangleSignatures(b)
	used := make([]bool, len(sigsB))
	for _, sa := range sigsA {
		found := false
		for j, sb := range sigsB {
			if used[j] {
				continue
			}
			if pointsWithinTolerance(sa, sb, tol) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
