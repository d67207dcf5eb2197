package ctm

import (
	"bytes"
	"math"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

var (
	tagINDX = [4]byte{'I', 'N', 'D', 'X'}
	tagVERT = [4]byte{'V', 'E', 'R', 'T'}
	tagNORM = [4]byte{'N', 'O', 'R', 'M'}
	tagTEXC = [4]byte{'T', 'E', 'X', 'C'}
	tagATTR = [4]byte{'A', 'T', 'T', 'R'}
	mg1Tag  = [4]byte{'M', 'G', '1', 0}
)

const mg1DefaultLevel = 1

// buildBytes runs fn against an in-memory writer and returns its bytes,
// used to assemble a chunk body before handing it to the LZMA stage.
func buildBytes(fn func(w *writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(newWriter(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeMG1 implements spec.md §4.5: the lossless geometry pipeline. Every
// per-vertex array is reordered by the shared index reorderer, transposed
// to a structure-of-arrays byte layout, and LZMA-packed.
func encodeMG1(w *writer, m *Mesh) error {
	reordered := reorderIndices(m.Indices, m.VertexCount())
	vertices := permuteVec3(m.Vertices, reordered.permutation)
	var normals []vec3.T
	if m.HasNormals() {
		normals = permuteVec3(m.Normals, reordered.permutation)
	}

	if err := w.writeTag(mg1Tag); err != nil {
		return err
	}
	if err := w.writeU32(uint32(m.VertexCount())); err != nil {
		return err
	}
	if err := w.writeU32(uint32(m.TriangleCount())); err != nil {
		return err
	}
	if err := w.writeU32(uint32(len(m.TexMaps))); err != nil {
		return err
	}
	if err := w.writeU32(uint32(len(m.AttribMaps))); err != nil {
		return err
	}
	var flags uint32
	if m.HasNormals() {
		flags |= flagHasNormals
	}
	if err := w.writeU32(flags); err != nil {
		return err
	}

	indexBody := columnMajorDeltaIndices(reordered.indices)
	if err := writeChunk(w, tagINDX, indexBody, mg1DefaultLevel); err != nil {
		return err
	}
	if err := writeChunk(w, tagVERT, columnMajorVec3(vertices), mg1DefaultLevel); err != nil {
		return err
	}
	if m.HasNormals() {
		if err := writeChunk(w, tagNORM, columnMajorVec3(normals), mg1DefaultLevel); err != nil {
			return err
		}
	}
	for _, tm := range m.TexMaps {
		coords := permuteVec2(tm.Coords, reordered.permutation)
		body, err := buildBytes(func(bw *writer) error {
			if err := bw.writeString(tm.Name); err != nil {
				return err
			}
			if err := bw.writeString(tm.Filename); err != nil {
				return err
			}
			if err := bw.writeF32(texCoordPrecisionOrDefault(tm)); err != nil {
				return err
			}
			return bw.writeF32Slice(columnMajorVec2(coords))
		})
		if err != nil {
			return err
		}
		if err := writeChunk(w, tagTEXC, body, mg1DefaultLevel); err != nil {
			return err
		}
	}
	for _, am := range m.AttribMaps {
		values := permuteVec4(am.Values, reordered.permutation)
		body, err := buildBytes(func(bw *writer) error {
			if err := bw.writeString(am.Name); err != nil {
				return err
			}
			if err := bw.writeF32(attribPrecisionOrDefault(am)); err != nil {
				return err
			}
			return bw.writeF32Slice(columnMajorVec4(values))
		})
		if err != nil {
			return err
		}
		if err := writeChunk(w, tagATTR, body, mg1DefaultLevel); err != nil {
			return err
		}
	}
	return nil
}

func decodeMG1(r *reader, h *containerHeader) (*Mesh, error) {
	tag, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if tag != mg1Tag {
		return nil, newError(ErrFormatError, "expected MG1 tag, got %q", tag)
	}
	// vertex/triangle/uv/attrib counts and flags are redundant with the
	// container header; read and cross-check them.
	vc, _ := r.readU32()
	tc, _ := r.readU32()
	uvc, _ := r.readU32()
	amc, _ := r.readU32()
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if vc != h.vertexCount || tc != h.triangleCount || uvc != h.uvMapCount || amc != h.attribMapCount || flags != h.flags {
		return nil, newError(ErrFormatError, "MG1 header disagrees with container header")
	}

	indexBody, err := readChunk(r, tagINDX)
	if err != nil {
		return nil, err
	}
	indices := decodeColumnMajorDeltaIndices(indexBody, int(h.triangleCount))

	vertBody, err := readChunk(r, tagVERT)
	if err != nil {
		return nil, err
	}
	vertices := decodeColumnMajorVec3(vertBody, int(h.vertexCount))

	m := &Mesh{Indices: indices, Vertices: vertices, Comment: h.comment}

	if flags&flagHasNormals != 0 {
		normBody, err := readChunk(r, tagNORM)
		if err != nil {
			return nil, err
		}
		m.Normals = decodeColumnMajorVec3(normBody, int(h.vertexCount))
	}

	for i := uint32(0); i < h.uvMapCount; i++ {
		body, err := readChunk(r, tagTEXC)
		if err != nil {
			return nil, err
		}
		tm, err := parseTexMapBody(body, int(h.vertexCount))
		if err != nil {
			return nil, err
		}
		m.TexMaps = append(m.TexMaps, tm)
	}
	for i := uint32(0); i < h.attribMapCount; i++ {
		body, err := readChunk(r, tagATTR)
		if err != nil {
			return nil, err
		}
		am, err := parseAttribMapBody(body, int(h.vertexCount))
		if err != nil {
			return nil, err
		}
		m.AttribMaps = append(m.AttribMaps, am)
	}
	return m, nil
}

func parseTexMapBody(body []byte, n int) (*TexMap, error) {
	r := newReader(bytes.NewReader(body))
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
	return &TexMap{Name: name, Filename: filename, Precision: precision, Coords: decodeColumnMajorVec2(flat, n)}, nil
}

func parseAttribMapBody(body []byte, n int) (*AttribMap, error) {
	r := newReader(bytes.NewReader(body))
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
	return &AttribMap{Name: name, Precision: precision, Values: decodeColumnMajorVec4(flat, n)}, nil
}

// columnMajorDeltaIndices delta-codes the (already reordered) index stream
// and lays the three columns out contiguously (all first-deltas, then all
// second-deltas, then all third-deltas) — the transposition spec.md §4.5
// calls load-bearing for LZMA's dictionary.
func columnMajorDeltaIndices(indices [][3]uint32) []byte {
	deltas := deltaEncodeIndices(indices)
	t := len(indices)
	col0 := make([]int32, t)
	col1 := make([]int32, t)
	col2 := make([]int32, t)
	for i := 0; i < t; i++ {
		col0[i], col1[i], col2[i] = deltas[i*3], deltas[i*3+1], deltas[i*3+2]
	}
	buf := make([]byte, 0, t*12)
	buf = appendI32Column(buf, col0)
	buf = appendI32Column(buf, col1)
	buf = appendI32Column(buf, col2)
	return buf
}

func decodeColumnMajorDeltaIndices(body []byte, t int) [][3]uint32 {
	col0 := readI32Column(body[0:4*t], t)
	col1 := readI32Column(body[4*t:8*t], t)
	col2 := readI32Column(body[8*t:12*t], t)
	deltas := make([]int32, t*3)
	for i := 0; i < t; i++ {
		deltas[i*3], deltas[i*3+1], deltas[i*3+2] = col0[i], col1[i], col2[i]
	}
	return deltaDecodeIndices(deltas, t)
}

func columnMajorVec3(vs []vec3.T) []byte {
	n := len(vs)
	xs := make([]float32, n)
	ys := make([]float32, n)
	zs := make([]float32, n)
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v[0], v[1], v[2]
	}
	buf := make([]byte, 0, n*12)
	buf = appendF32Column(buf, xs)
	buf = appendF32Column(buf, ys)
	buf = appendF32Column(buf, zs)
	return buf
}

func decodeColumnMajorVec3(body []byte, n int) []vec3.T {
	xs := readF32Column(body[0:4*n], n)
	ys := readF32Column(body[4*n:8*n], n)
	zs := readF32Column(body[8*n:12*n], n)
	out := make([]vec3.T, n)
	for i := range out {
		out[i] = vec3.T{xs[i], ys[i], zs[i]}
	}
	return out
}

func columnMajorVec2(vs []vec2.T) []float32 {
	n := len(vs)
	out := make([]float32, n*2)
	for i, v := range vs {
		out[i] = v[0]
		out[n+i] = v[1]
	}
	return out
}

func decodeColumnMajorVec2(flat []float32, n int) []vec2.T {
	out := make([]vec2.T, n)
	for i := range out {
		out[i] = vec2.T{flat[i], flat[n+i]}
	}
	return out
}

func columnMajorVec4(vs [][4]float32) []float32 {
	n := len(vs)
	out := make([]float32, n*4)
	for i, v := range vs {
		out[i] = v[0]
		out[n+i] = v[1]
		out[2*n+i] = v[2]
		out[3*n+i] = v[3]
	}
	return out
}

func decodeColumnMajorVec4(flat []float32, n int) [][4]float32 {
	out := make([][4]float32, n)
	for i := range out {
		out[i] = [4]float32{flat[i], flat[n+i], flat[2*n+i], flat[3*n+i]}
	}
	return out
}

func appendI32Column(buf []byte, col []int32) []byte {
	for _, v := range col {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return buf
}

func readI32Column(body []byte, n int) []int32 {
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		b := body[i*4 : i*4+4]
		out[i] = int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	}
	return out
}

func appendF32Column(buf []byte, col []float32) []byte {
	flat := make([]byte, 0, len(col)*4)
	for _, v := range col {
		bits := math.Float32bits(v)
		flat = append(flat, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return append(buf, flat...)
}

func readF32Column(body []byte, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		b := body[i*4 : i*4+4]
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
