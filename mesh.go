package ctm

import (
	"fmt"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// TexMap is one of up to eight 2-channel UV coordinate sets, grounded on
// the teacher's per-map struct shape (Texture, BaseMaterial): a name, an
// optional filename reference (never image data — texture image I/O is a
// stated non-goal), and a precision.
type TexMap struct {
	Name     string
	Filename string
	Coords   []vec2.T
	// Precision quantizes each coordinate component during MG2 encoding.
	// Defaults to defaultTexCoordPrecision when zero.
	Precision float32
}

// AttribMap is one of up to eight 4-channel generic per-vertex attribute
// sets (colors, weights, ...); OpenCTM never interprets the channel
// semantics, per spec.md §1's non-goal on color-space meaning.
type AttribMap struct {
	Name      string
	Values    [][4]float32
	Precision float32
}

// Mesh is the in-memory representation the codec reads from (encode) or
// populates (decode). Field shapes mirror the teacher's MeshNode
// (Vertices []vec3.T, Normals []vec3.T, TexCoords []vec2.T) generalized to
// OpenCTM's flat triangle-index model instead of MeshNode's FaceGroup
// indirection.
type Mesh struct {
	Vertices   []vec3.T
	Indices    [][3]uint32
	Normals    []vec3.T // optional, len == len(Vertices) if present
	TexMaps    []*TexMap
	AttribMaps []*AttribMap
	Comment    string
}

// VertexCount returns V.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// TriangleCount returns T.
func (m *Mesh) TriangleCount() int { return len(m.Indices) }

// HasNormals reports whether the mesh carries per-vertex normals.
func (m *Mesh) HasNormals() bool { return len(m.Normals) > 0 }

// PrimaryTexMap returns the first registered UV map, the "semantically
// significant" map per the glossary's primary-texture-map entry, or nil if
// none were registered.
func (m *Mesh) PrimaryTexMap() *TexMap {
	if len(m.TexMaps) == 0 {
		return nil
	}
	return m.TexMaps[0]
}

// TexMapByName performs the name lookup backing get_named_tex_map.
func (m *Mesh) TexMapByName(name string) (*TexMap, bool) {
	for _, t := range m.TexMaps {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// AttribMapByName performs the name lookup backing get_named_attrib_map.
func (m *Mesh) AttribMapByName(name string) (*AttribMap, bool) {
	for _, a := range m.AttribMaps {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of spec.md §3 before encode and
// after decode. Grounded on properties.go's style of bounds-checking with a
// hard cap and returning a classified error instead of panicking.
func (m *Mesh) Validate() error {
	v := len(m.Vertices)
	t := len(m.Indices)
	if v < 3 {
		return newError(ErrInvalidMesh, "mesh has %d vertices, need at least 3", v)
	}
	if t < 1 {
		return newError(ErrInvalidMesh, "mesh has %d triangles, need at least 1", t)
	}
	if v > (1<<31)-1 {
		return newError(ErrInvalidMesh, "vertex count %d exceeds 2^31-1", v)
	}
	if t*3 > (1<<31)-1 {
		return newError(ErrInvalidMesh, "triangle*3 count exceeds 2^31-1")
	}
	for i, tri := range m.Indices {
		for _, idx := range tri {
			if int(idx) >= v {
				return newError(ErrInvalidMesh, "triangle %d references vertex %d, have %d vertices", i, idx, v)
			}
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			return newError(ErrInvalidMesh, "triangle %d is degenerate: %v", i, tri)
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != v {
		return newError(ErrInvalidMesh, "normals length %d != vertex count %d", len(m.Normals), v)
	}
	if len(m.TexMaps) > maxTexMaps {
		return newError(ErrInvalidMesh, "too many tex maps: %d > %d", len(m.TexMaps), maxTexMaps)
	}
	if len(m.AttribMaps) > maxAttribMaps {
		return newError(ErrInvalidMesh, "too many attrib maps: %d > %d", len(m.AttribMaps), maxAttribMaps)
	}
	seenTex := map[string]bool{}
	for _, tm := range m.TexMaps {
		if len(tm.Coords) != v {
			return newError(ErrInvalidMesh, "tex map %q has %d coords, want %d", tm.Name, len(tm.Coords), v)
		}
		if tm.Precision < 0 {
			return newError(ErrInvalidMesh, "tex map %q has negative precision", tm.Name)
		}
		if len(tm.Name) > 256 {
			return newError(ErrInvalidMesh, "tex map name %q exceeds 256 bytes", tm.Name)
		}
		if seenTex[tm.Name] {
			return newError(ErrInvalidMesh, "duplicate tex map name %q", tm.Name)
		}
		seenTex[tm.Name] = true
	}
	seenAttr := map[string]bool{}
	for _, am := range m.AttribMaps {
		if len(am.Values) != v {
			return newError(ErrInvalidMesh, "attrib map %q has %d values, want %d", am.Name, len(am.Values), v)
		}
		if am.Precision < 0 {
			return newError(ErrInvalidMesh, "attrib map %q has negative precision", am.Name)
		}
		if seenAttr[am.Name] {
			return newError(ErrInvalidMesh, "duplicate attrib map name %q", am.Name)
		}
		seenAttr[am.Name] = true
	}
	return nil
}

// boundingBox computes the axis-aligned bounding box of the mesh's
// vertices, generalizing the teacher's MeshNode.GetBoundbox (there computed
// in float64 for a scene-graph bbox) to the float32 precision OpenCTM's
// MG2 header carries.
func boundingBox(vertices []vec3.T) (min, max vec3.T) {
	if len(vertices) == 0 {
		return
	}
	min, max = vertices[0], vertices[0]
	for _, v := range vertices[1:] {
		for axis := 0; axis < 3; axis++ {
			if v[axis] < min[axis] {
				min[axis] = v[axis]
			}
			if v[axis] > max[axis] {
				max[axis] = v[axis]
			}
		}
	}
	return
}

// meanEdgeLength averages the length of every unique triangle edge, used
// by SetVertexPrecisionRel.
func meanEdgeLength(vertices []vec3.T, indices [][3]uint32) float32 {
	type edge struct{ a, b uint32 }
	seen := make(map[edge]bool)
	var sum float64
	var count int
	addEdge := func(a, b uint32) {
		if a > b {
			a, b = b, a
		}
		e := edge{a, b}
		if seen[e] {
			return
		}
		seen[e] = true
		pa, pb := vertices[a], vertices[b]
		d := vec3.Sub(&pb, &pa)
		sum += float64(d.Length())
		count++
	}
	for _, tri := range indices {
		addEdge(tri[0], tri[1])
		addEdge(tri[1], tri[2])
		addEdge(tri[2], tri[0])
	}
	if count == 0 {
		return 0
	}
	return float32(sum / float64(count))
}

// smoothNormals computes, for every vertex, the area-weighted average of
// the face normals of its incident triangles from already-known positions.
// This is a straight generalization of the teacher's
// MeshNode.ReComputeNormal, reused unchanged in MG2 as the smooth normal
// predictor (spec.md §4.6): both the encoder and the decoder call this over
// the same decoded positions so the residual stays in sync without
// transmitting the predictor itself.
func smoothNormals(vertices []vec3.T, indices [][3]uint32) []vec3.T {
	normals := make([]vec3.T, len(vertices))
	for _, tri := range indices {
		p0, p1, p2 := vertices[tri[0]], vertices[tri[1]], vertices[tri[2]]
		e1 := vec3.Sub(&p2, &p1)
		e2 := vec3.Sub(&p0, &p1)
		cross := vec3.Cross(&e1, &e2)
		// The cross product's length is twice the triangle's area, so adding
		// it unnormalized weights each face normal by area.
		if cross.Length() == 0 {
			continue
		}
		normals[tri[0]].Add(&cross)
		normals[tri[1]].Add(&cross)
		normals[tri[2]].Add(&cross)
	}
	for i := range normals {
		if normals[i].Length() == 0 {
			normals[i] = vec3.T{0, 0, 1}
			continue
		}
		normals[i].Normalize()
	}
	return normals
}

func (m *Mesh) String() string {
	return fmt.Sprintf("Mesh{V=%d T=%d normals=%v texMaps=%d attribMaps=%d}",
		m.VertexCount(), m.TriangleCount(), m.HasNormals(), len(m.TexMaps), len(m.AttribMaps))
}
