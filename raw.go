package ctm

import (
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// encodeRAW writes the method-specific body for spec.md §4's RAW method:
// verbatim little-endian serialization, no reordering, no compression.
func encodeRAW(w *writer, m *Mesh) error {
	idx := flattenIndices(m.Indices)
	if err := w.writeU32Slice(idx); err != nil {
		return err
	}
	if err := writeVec3Slice(w, m.Vertices); err != nil {
		return err
	}
	if m.HasNormals() {
		if err := writeVec3Slice(w, m.Normals); err != nil {
			return err
		}
	}
	for _, tm := range m.TexMaps {
		if err := writeTexMapRaw(w, tm); err != nil {
			return err
		}
	}
	for _, am := range m.AttribMaps {
		if err := writeAttribMapRaw(w, am); err != nil {
			return err
		}
	}
	return nil
}

func decodeRAW(r *reader, h *containerHeader) (*Mesh, error) {
	m := &Mesh{Comment: h.comment}
	idx, err := r.readU32Slice(int(h.triangleCount) * 3)
	if err != nil {
		return nil, err
	}
	m.Indices = unflattenIndices(idx)

	m.Vertices, err = readVec3Slice(r, int(h.vertexCount))
	if err != nil {
		return nil, err
	}
	if h.flags&flagHasNormals != 0 {
		m.Normals, err = readVec3Slice(r, int(h.vertexCount))
		if err != nil {
			return nil, err
		}
	}
	for i := uint32(0); i < h.uvMapCount; i++ {
		tm, err := readTexMapRaw(r, int(h.vertexCount))
		if err != nil {
			return nil, err
		}
		m.TexMaps = append(m.TexMaps, tm)
	}
	for i := uint32(0); i < h.attribMapCount; i++ {
		am, err := readAttribMapRaw(r, int(h.vertexCount))
		if err != nil {
			return nil, err
		}
		m.AttribMaps = append(m.AttribMaps, am)
	}
	return m, nil
}

func flattenIndices(indices [][3]uint32) []uint32 {
	out := make([]uint32, 0, len(indices)*3)
	for _, tri := range indices {
		out = append(out, tri[0], tri[1], tri[2])
	}
	return out
}

func unflattenIndices(flat []uint32) [][3]uint32 {
	out := make([][3]uint32, len(flat)/3)
	for i := range out {
		out[i] = [3]uint32{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return out
}

func writeVec3Slice(w *writer, vs []vec3.T) error {
	flat := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		flat = append(flat, v[0], v[1], v[2])
	}
	return w.writeF32Slice(flat)
}

func readVec3Slice(r *reader, n int) ([]vec3.T, error) {
	flat, err := r.readF32Slice(n * 3)
	if err != nil {
		return nil, err
	}
	out := make([]vec3.T, n)
	for i := range out {
		out[i] = vec3.T{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return out, nil
}

func writeTexMapRaw(w *writer, tm *TexMap) error {
	if err := w.writeString(tm.Name); err != nil {
		return err
	}
	if err := w.writeString(tm.Filename); err != nil {
		return err
	}
	if err := w.writeF32(texCoordPrecisionOrDefault(tm)); err != nil {
		return err
	}
	flat := make([]float32, 0, len(tm.Coords)*2)
	for _, c := range tm.Coords {
		flat = append(flat, c[0], c[1])
	}
	return w.writeF32Slice(flat)
}

func readTexMapRaw(r *reader, n int) (*TexMap, error) {
	name, err := r.readString()
	if err != nil {
		return nil, err
	}
	filename, err := r.readString()
	if err != nil {
		return nil, err
	}
	precision, err := r.readF32()
	if err != nil {
		return nil, err
	}
	flat, err := r.readF32Slice(n * 2)
	if err != nil {
		return nil, err
	}
	coords := make([]vec2.T, n)
	for i := range coords {
		coords[i] = vec2.T{flat[i*2], flat[i*2+1]}
	}
	return &TexMap{Name: name, Filename: filename, Precision: precision, Coords: coords}, nil
}

func writeAttribMapRaw(w *writer, am *AttribMap) error {
	if err := w.writeString(am.Name); err != nil {
		return err
	}
	if err := w.writeF32(attribPrecisionOrDefault(am)); err != nil {
		return err
	}
	flat := make([]float32, 0, len(am.Values)*4)
	for _, v := range am.Values {
		flat = append(flat, v[0], v[1], v[2], v[3])
	}
	return w.writeF32Slice(flat)
}

func readAttribMapRaw(r *reader, n int) (*AttribMap, error) {
	name, err := r.readString()
	if err != nil {
		return nil, err
	}
	precision, err := r.readF32()
	if err != nil {
		return nil, err
	}
	flat, err := r.readF32Slice(n * 4)
	if err != nil {
		return nil, err
	}
	values := make([][4]float32, n)
	for i := range values {
		values[i] = [4]float32{flat[i*4], flat[i*4+1], flat[i*4+2], flat[i*4+3]}
	}
	return &AttribMap{Name: name, Precision: precision, Values: values}, nil
}

func texCoordPrecisionOrDefault(tm *TexMap) float32 {
	if tm.Precision > 0 {
		return tm.Precision
	}
	return defaultTexCoordPrecision
}

func attribPrecisionOrDefault(am *AttribMap) float32 {
	if am.Precision > 0 {
		return am.Precision
	}
	return defaultAttribPrecision
}
