package ctm

import (
	"bytes"
	"math"
	"sort"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

var mg2Tag = [4]byte{'M', 'G', '2', 0}

const mg2DefaultLevel = 9

// precisionSettings carries the Context's quantization knobs into the MG2
// encoder: absolute vertex precision (possibly derived by
// SetVertexPrecisionRel) and normal precision. Per-map precisions travel
// on the TexMap/AttribMap values themselves.
type precisionSettings struct {
	vertex float32
	normal float32
}

func (p precisionSettings) vertexOrDefault() float32 {
	if p.vertex > 0 {
		return p.vertex
	}
	return defaultVertexPrecision
}

func (p precisionSettings) normalOrDefault() float32 {
	if p.normal > 0 {
		return p.normal
	}
	return defaultNormalPrecision
}

// encodeMG2 implements spec.md §4.6: fixed-point geometry, normal spherical
// decomposition, and delta-coded UV/attribute streams.
func encodeMG2(w *writer, m *Mesh, prec precisionSettings) error {
	reordered := reorderIndices(m.Indices, m.VertexCount())
	vertices1 := permuteVec3(m.Vertices, reordered.permutation)
	var normals1 []vec3.T
	if m.HasNormals() {
		normals1 = permuteVec3(m.Normals, reordered.permutation)
	}
	texMaps1 := make([][]vec2.T, len(m.TexMaps))
	for i, tm := range m.TexMaps {
		texMaps1[i] = permuteVec2(tm.Coords, reordered.permutation)
	}
	attribMaps1 := make([][][4]float32, len(m.AttribMaps))
	for i, am := range m.AttribMaps {
		attribMaps1[i] = permuteVec4(am.Values, reordered.permutation)
	}

	vertexPrecision := prec.vertexOrDefault()
	normalPrecision := prec.normalOrDefault()

	min, max := boundingBox(vertices1)
	grid := newQuantGrid(min, max, vertexPrecision)

	qx1, qy1, qz1 := grid.quantizeAll(vertices1)
	cellID1 := grid.cellIDsOf(qx1, qy1, qz1)

	// Stage-2 vertex order: sort by (cellID, qy, qx), stable tie-break on
	// the stage-1 order spec.md §4.6 step 4 requires.
	order := make([]int, len(vertices1))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if cellID1[ia] != cellID1[ib] {
			return cellID1[ia] < cellID1[ib]
		}
		if qy1[ia] != qy1[ib] {
			return qy1[ia] < qy1[ib]
		}
		return qx1[ia] < qx1[ib]
	})
	p2 := make([]uint32, len(order)) // stage2 -> stage1
	for newIdx, oldIdx := range order {
		p2[newIdx] = uint32(oldIdx)
	}
	inv2 := invertPermutation(p2) // stage1 -> stage2

	indices2 := remapTriangles(reordered.indices, inv2)
	qx2 := permuteI32(qx1, p2)
	qy2 := permuteI32(qy1, p2)
	qz2 := permuteI32(qz1, p2)
	cellID2 := permuteU32(cellID1, p2)

	var normals2 []vec3.T
	if m.HasNormals() {
		normals2 = permuteVec3(normals1, p2)
	}
	texMaps2 := make([][]vec2.T, len(texMaps1))
	for i, coords := range texMaps1 {
		texMaps2[i] = permuteVec2(coords, p2)
	}
	attribMaps2 := make([][][4]float32, len(attribMaps1))
	for i, values := range attribMaps1 {
		attribMaps2[i] = permuteVec4(values, p2)
	}

	if err := writeMG2Header(w, m, grid, vertexPrecision, normalPrecision); err != nil {
		return err
	}

	if err := writeChunk(w, tagINDX, columnMajorDeltaIndices(indices2), mg2DefaultLevel); err != nil {
		return err
	}

	gridBody := buildGridBody(cellID2, qx2, qy2, qz2)
	if err := writeChunk(w, tag4("GIDX"), gridBody, mg2DefaultLevel); err != nil {
		return err
	}

	if m.HasNormals() {
		predictor := smoothNormals(reconstructPositions(grid, qx2, qy2, qz2), indices2)
		body := encodeNormalsSpherical(normals2, predictor, normalPrecision)
		if err := writeChunk(w, tagNORM, body, mg2DefaultLevel); err != nil {
			return err
		}
	}

	for i, tm := range m.TexMaps {
		body, err := buildBytes(func(bw *writer) error {
			if err := bw.writeString(tm.Name); err != nil {
				return err
			}
			if err := bw.writeString(tm.Filename); err != nil {
				return err
			}
			precision := texCoordPrecisionOrDefault(tm)
			if err := bw.writeF32(precision); err != nil {
				return err
			}
			return bw.writeRaw(encodeVec2Delta(texMaps2[i], precision))
		})
		if err != nil {
			return err
		}
		if err := writeChunk(w, tagTEXC, body, mg2DefaultLevel); err != nil {
			return err
		}
	}
	for i, am := range m.AttribMaps {
		body, err := buildBytes(func(bw *writer) error {
			if err := bw.writeString(am.Name); err != nil {
				return err
			}
			precision := attribPrecisionOrDefault(am)
			if err := bw.writeF32(precision); err != nil {
				return err
			}
			return bw.writeRaw(encodeVec4Delta(attribMaps2[i], precision))
		})
		if err != nil {
			return err
		}
		if err := writeChunk(w, tagATTR, body, mg2DefaultLevel); err != nil {
			return err
		}
	}
	return nil
}

func decodeMG2(r *reader, h *containerHeader) (*Mesh, error) {
	tag, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if tag != mg2Tag {
		return nil, newError(ErrFormatError, "expected MG2 tag, got %q", tag)
	}
	vc, _ := r.readU32()
	tc, _ := r.readU32()
	uvc, _ := r.readU32()
	amc, _ := r.readU32()
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if vc != h.vertexCount || tc != h.triangleCount || uvc != h.uvMapCount || amc != h.attribMapCount {
		return nil, newError(ErrFormatError, "MG2 header disagrees with container header")
	}
	vertexPrecision, err := r.readF32()
	if err != nil {
		return nil, err
	}
	normalPrecision, err := r.readF32()
	if err != nil {
		return nil, err
	}
	bboxMin, err := readVec3Raw(r)
	if err != nil {
		return nil, err
	}
	bboxMax, err := readVec3Raw(r)
	if err != nil {
		return nil, err
	}
	divx, err := r.readU32()
	if err != nil {
		return nil, err
	}
	divy, err := r.readU32()
	if err != nil {
		return nil, err
	}
	divz, err := r.readU32()
	if err != nil {
		return nil, err
	}
	grid := quantGrid{min: bboxMin, max: bboxMax, precision: vertexPrecision, divx: int(divx), divy: int(divy), divz: int(divz)}

	indexBody, err := readChunk(r, tagINDX)
	if err != nil {
		return nil, err
	}
	indices := decodeColumnMajorDeltaIndices(indexBody, int(h.triangleCount))

	gridBody, err := readChunk(r, tag4("GIDX"))
	if err != nil {
		return nil, err
	}
	_, qx, qy, qz := parseGridBody(gridBody, int(h.vertexCount))
	vertices := reconstructPositions(&grid, qx, qy, qz)

	m := &Mesh{Indices: indices, Vertices: vertices, Comment: h.comment}

	if flags&flagHasNormals != 0 {
		normBody, err := readChunk(r, tagNORM)
		if err != nil {
			return nil, err
		}
		predictor := smoothNormals(vertices, indices)
		m.Normals = decodeNormalsSpherical(normBody, predictor, normalPrecision)
	}

	for i := uint32(0); i < h.uvMapCount; i++ {
		body, err := readChunk(r, tagTEXC)
		if err != nil {
			return nil, err
		}
		tm, err := parseTexMapDeltaBody(body, int(h.vertexCount))
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
		am, err := parseAttribMapDeltaBody(body, int(h.vertexCount))
		if err != nil {
			return nil, err
		}
		m.AttribMaps = append(m.AttribMaps, am)
	}
	return m, nil
}

// quantGrid carries the bounding box, vertex precision, and per-axis
// division counts of spec.md §4.6's cell-grid quantization.
type quantGrid struct {
	min, max           vec3.T
	precision          float32
	divx, divy, divz   int
}

func newQuantGrid(min, max vec3.T, precision float32) *quantGrid {
	divOf := func(lo, hi float32) int {
		rangeQuanta := float64(hi-lo) / float64(precision)
		d := int(math.Ceil(rangeQuanta / 256.0))
		if d < 1 {
			d = 1
		}
		return d
	}
	return &quantGrid{
		min: min, max: max, precision: precision,
		divx: divOf(min[0], max[0]),
		divy: divOf(min[1], max[1]),
		divz: divOf(min[2], max[2]),
	}
}

func (g *quantGrid) quantizeAxis(v, lo float32) int32 {
	return int32(math.Round(float64(v-lo) / float64(g.precision)))
}

func (g *quantGrid) quantizeAll(vertices []vec3.T) (qx, qy, qz []int32) {
	n := len(vertices)
	qx = make([]int32, n)
	qy = make([]int32, n)
	qz = make([]int32, n)
	for i, v := range vertices {
		qx[i] = g.quantizeAxis(v[0], g.min[0])
		qy[i] = g.quantizeAxis(v[1], g.min[1])
		qz[i] = g.quantizeAxis(v[2], g.min[2])
	}
	return
}

func (g *quantGrid) cellIDsOf(qx, qy, qz []int32) []uint32 {
	out := make([]uint32, len(qx))
	for i := range qx {
		out[i] = g.cellID(qx[i], qy[i], qz[i])
	}
	return out
}

func (g *quantGrid) cellID(qx, qy, qz int32) uint32 {
	cx := clampCell(int(qx)/256, g.divx)
	cy := clampCell(int(qy)/256, g.divy)
	cz := clampCell(int(qz)/256, g.divz)
	return uint32((cz*g.divy+cy)*g.divx + cx)
}

func clampCell(c, div int) int {
	if c < 0 {
		return 0
	}
	if c >= div {
		return div - 1
	}
	return c
}

// reconstructPositions dequantizes (qx,qy,qz) back into float32 positions;
// both encoder (for the normal predictor, which must see what the decoder
// will see) and decoder call this.
func reconstructPositions(grid *quantGrid, qx, qy, qz []int32) []vec3.T {
	out := make([]vec3.T, len(qx))
	for i := range qx {
		out[i] = vec3.T{
			grid.min[0] + float32(qx[i])*grid.precision,
			grid.min[1] + float32(qy[i])*grid.precision,
			grid.min[2] + float32(qz[i])*grid.precision,
		}
	}
	return out
}

func writeMG2Header(w *writer, m *Mesh, grid *quantGrid, vertexPrecision, normalPrecision float32) error {
	if err := w.writeTag(mg2Tag); err != nil {
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
	if err := w.writeF32(vertexPrecision); err != nil {
		return err
	}
	if err := w.writeF32(normalPrecision); err != nil {
		return err
	}
	if err := writeVec3Raw(w, grid.min); err != nil {
		return err
	}
	if err := writeVec3Raw(w, grid.max); err != nil {
		return err
	}
	if err := w.writeU32(uint32(grid.divx)); err != nil {
		return err
	}
	if err := w.writeU32(uint32(grid.divy)); err != nil {
		return err
	}
	return w.writeU32(uint32(grid.divz))
}

func writeVec3Raw(w *writer, v vec3.T) error {
	return w.writeF32Slice([]float32{v[0], v[1], v[2]})
}

func readVec3Raw(r *reader) (vec3.T, error) {
	flat, err := r.readF32Slice(3)
	if err != nil {
		return vec3.T{}, err
	}
	return vec3.T{flat[0], flat[1], flat[2]}, nil
}

func buildGridBody(cellID []uint32, qx, qy, qz []int32) []byte {
	var buf bytes.Buffer
	w := newWriter(&buf)
	w.writeU32Slice(cellID)
	w.writeRaw(appendI32Column(nil, cellDeltas(cellID, qx)))
	w.writeRaw(appendI32Column(nil, cellDeltas(cellID, qy)))
	w.writeRaw(appendI32Column(nil, cellDeltas(cellID, qz)))
	return buf.Bytes()
}

func parseGridBody(body []byte, n int) (cellID []uint32, qx, qy, qz []int32) {
	cellID = make([]uint32, n)
	for i := 0; i < n; i++ {
		b := body[i*4 : i*4+4]
		cellID[i] = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	off := 4 * n
	dqx := readI32Column(body[off:off+4*n], n)
	off += 4 * n
	dqy := readI32Column(body[off:off+4*n], n)
	off += 4 * n
	dqz := readI32Column(body[off:off+4*n], n)
	qx = undeltaByCell(cellID, dqx)
	qy = undeltaByCell(cellID, dqy)
	qz = undeltaByCell(cellID, dqz)
	return
}

// cellDeltas delta-codes q against the previous vertex, resetting to an
// absolute value whenever the cell id changes (spec.md §4.6 step 5).
func cellDeltas(cellID []uint32, q []int32) []int32 {
	out := make([]int32, len(q))
	for i := range q {
		if i == 0 || cellID[i] != cellID[i-1] {
			out[i] = q[i]
		} else {
			out[i] = q[i] - q[i-1]
		}
	}
	return out
}

func undeltaByCell(cellID []uint32, d []int32) []int32 {
	out := make([]int32, len(d))
	for i := range d {
		if i == 0 || cellID[i] != cellID[i-1] {
			out[i] = d[i]
		} else {
			out[i] = out[i-1] + d[i]
		}
	}
	return out
}

func remapTriangles(indices [][3]uint32, remap []uint32) [][3]uint32 {
	out := make([][3]uint32, len(indices))
	for i, tri := range indices {
		out[i] = [3]uint32{remap[tri[0]], remap[tri[1]], remap[tri[2]]}
	}
	return out
}

func permuteI32(src []int32, permutation []uint32) []int32 {
	out := make([]int32, len(permutation))
	for newIdx, oldIdx := range permutation {
		out[newIdx] = src[oldIdx]
	}
	return out
}

func permuteU32(src []uint32, permutation []uint32) []uint32 {
	out := make([]uint32, len(permutation))
	for newIdx, oldIdx := range permutation {
		out[newIdx] = src[oldIdx]
	}
	return out
}

func tag4(s string) [4]byte {
	var t [4]byte
	copy(t[:], s)
	return t
}

// deltaColumn/undeltaColumn implement the plain previous-value delta coding
// spec.md §4.6 step 6 uses for the normal and UV/attribute streams, distinct
// from the per-cell-reset delta of cellDeltas: no reordering-derived
// boundary here, just one running previous value per column.
func deltaColumn(v []int32) []int32 {
	out := make([]int32, len(v))
	var prev int32
	for i, x := range v {
		out[i] = x - prev
		prev = x
	}
	return out
}

func undeltaColumn(d []int32) []int32 {
	out := make([]int32, len(d))
	var prev int32
	for i, x := range d {
		prev += x
		out[i] = prev
	}
	return out
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalFrame builds the local orthonormal frame (tangent, bitangent, z)
// used to express a normal relative to its smooth-normal predictor: z is
// the predictor direction, tangent is the world X axis crossed with z (the Y
// axis instead when |z.x| > 0.9), bitangent is z crossed with tangent. Encoder and decoder derive
// this from the same predictor, so it never needs to be transmitted.
func normalFrame(predictor vec3.T) (tangent, bitangent, zAxis vec3.T) {
	z := predictor
	if l := z.Length(); l > 0 {
		z.Scale(1 / l)
	} else {
		z = vec3.T{0, 0, 1}
	}
	axis := vec3.T{1, 0, 0}
	if math.Abs(float64(z[0])) > 0.9 {
		axis = vec3.T{0, 1, 0}
	}
	t := vec3.Cross(&axis, &z)
	if l := t.Length(); l > 0 {
		t.Scale(1 / l)
	} else {
		t = vec3.T{0, 1, 0}
	}
	b := vec3.Cross(&z, &t)
	return t, b, z
}

// encodeNormalsSpherical implements spec.md §4.6's normal decomposition:
// each normal is expressed in its predictor's local frame as
// (magnitude, phi, theta), quantized by normalPrecision, and the three
// component columns are previous-value delta coded before being handed to
// the LZMA stage.
func encodeNormalsSpherical(normals, predictor []vec3.T, normalPrecision float32) []byte {
	n := len(normals)
	qmag := make([]int32, n)
	qphi := make([]int32, n)
	qtheta := make([]int32, n)
	for i, nn := range normals {
		tangent, bitangent, zAxis := normalFrame(predictor[i])
		lx := float64(nn[0])*float64(tangent[0]) + float64(nn[1])*float64(tangent[1]) + float64(nn[2])*float64(tangent[2])
		ly := float64(nn[0])*float64(bitangent[0]) + float64(nn[1])*float64(bitangent[1]) + float64(nn[2])*float64(bitangent[2])
		lz := float64(nn[0])*float64(zAxis[0]) + float64(nn[1])*float64(zAxis[1]) + float64(nn[2])*float64(zAxis[2])
		magnitude := math.Sqrt(lx*lx + ly*ly + lz*lz)
		phi := math.Atan2(ly, lx)
		var theta float64
		if magnitude > 0 {
			theta = math.Acos(clampF64(lz/magnitude, -1, 1))
		}
		qmag[i] = int32(math.Round(magnitude / float64(normalPrecision)))
		qphi[i] = int32(math.Round(phi / float64(normalPrecision)))
		qtheta[i] = int32(math.Round(theta / float64(normalPrecision)))
	}
	buf := make([]byte, 0, n*12)
	buf = appendI32Column(buf, deltaColumn(qmag))
	buf = appendI32Column(buf, deltaColumn(qphi))
	buf = appendI32Column(buf, deltaColumn(qtheta))
	return buf
}

// decodeNormalsSpherical inverts encodeNormalsSpherical against the same
// predictor the decoder has already reconstructed from decoded positions.
func decodeNormalsSpherical(body []byte, predictor []vec3.T, normalPrecision float32) []vec3.T {
	n := len(predictor)
	qmag := undeltaColumn(readI32Column(body[0:4*n], n))
	qphi := undeltaColumn(readI32Column(body[4*n:8*n], n))
	qtheta := undeltaColumn(readI32Column(body[8*n:12*n], n))
	out := make([]vec3.T, n)
	for i := 0; i < n; i++ {
		magnitude := float64(qmag[i]) * float64(normalPrecision)
		phi := float64(qphi[i]) * float64(normalPrecision)
		theta := float64(qtheta[i]) * float64(normalPrecision)
		tangent, bitangent, zAxis := normalFrame(predictor[i])
		sinTheta := math.Sin(theta)
		lx := magnitude * sinTheta * math.Cos(phi)
		ly := magnitude * sinTheta * math.Sin(phi)
		lz := magnitude * math.Cos(theta)
		out[i] = vec3.T{
			float32(lx)*tangent[0] + float32(ly)*bitangent[0] + float32(lz)*zAxis[0],
			float32(lx)*tangent[1] + float32(ly)*bitangent[1] + float32(lz)*zAxis[1],
			float32(lx)*tangent[2] + float32(ly)*bitangent[2] + float32(lz)*zAxis[2],
		}
	}
	return out
}

// encodeVec2Delta quantizes and previous-value delta codes a UV column pair,
// the same treatment spec.md §4.6 step 6 gives every non-geometry stream.
func encodeVec2Delta(coords []vec2.T, precision float32) []byte {
	n := len(coords)
	qx := make([]int32, n)
	qy := make([]int32, n)
	for i, c := range coords {
		qx[i] = int32(math.Round(float64(c[0]) / float64(precision)))
		qy[i] = int32(math.Round(float64(c[1]) / float64(precision)))
	}
	buf := make([]byte, 0, n*8)
	buf = appendI32Column(buf, deltaColumn(qx))
	buf = appendI32Column(buf, deltaColumn(qy))
	return buf
}

func decodeVec2Delta(body []byte, n int, precision float32) []vec2.T {
	qx := undeltaColumn(readI32Column(body[0:4*n], n))
	qy := undeltaColumn(readI32Column(body[4*n:8*n], n))
	out := make([]vec2.T, n)
	for i := range out {
		out[i] = vec2.T{float32(qx[i]) * precision, float32(qy[i]) * precision}
	}
	return out
}

// encodeVec4Delta is encodeVec2Delta's 4-channel counterpart for attribute
// maps.
func encodeVec4Delta(values [][4]float32, precision float32) []byte {
	n := len(values)
	cols := [4][]int32{make([]int32, n), make([]int32, n), make([]int32, n), make([]int32, n)}
	for i, v := range values {
		for c := 0; c < 4; c++ {
			cols[c][i] = int32(math.Round(float64(v[c]) / float64(precision)))
		}
	}
	buf := make([]byte, 0, n*16)
	for c := 0; c < 4; c++ {
		buf = appendI32Column(buf, deltaColumn(cols[c]))
	}
	return buf
}

func decodeVec4Delta(body []byte, n int, precision float32) [][4]float32 {
	var cols [4][]int32
	for c := 0; c < 4; c++ {
		cols[c] = undeltaColumn(readI32Column(body[c*4*n:(c+1)*4*n], n))
	}
	out := make([][4]float32, n)
	for i := range out {
		out[i] = [4]float32{
			float32(cols[0][i]) * precision,
			float32(cols[1][i]) * precision,
			float32(cols[2][i]) * precision,
			float32(cols[3][i]) * precision,
		}
	}
	return out
}

// parseTexMapDeltaBody reads an MG2 TEXC chunk body: name, filename,
// precision, then the delta-coded coordinate columns.
func parseTexMapDeltaBody(body []byte, n int) (*TexMap, error) {
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
	rest, err := r.readBytes(n * 8)
	if err != nil {
		return nil, err
	}
	return &TexMap{Name: name, Filename: filename, Precision: precision, Coords: decodeVec2Delta(rest, n, precision)}, nil
}

// parseAttribMapDeltaBody is parseTexMapDeltaBody's 4-channel counterpart.
func parseAttribMapDeltaBody(body []byte, n int) (*AttribMap, error) {
	r := newReader(bytes.NewReader(body))
	name, err := r.readString()
	if err != nil {
		return nil, err
	}
	precision, err := r.readF32()
	if err != nil {
		return nil, err
	}
	rest, err := r.readBytes(n * 16)
	if err != nil {
		return nil, err
	}
	return &AttribMap{Name: name, Precision: precision, Values: decodeVec4Delta(rest, n, precision)}, nil
}
