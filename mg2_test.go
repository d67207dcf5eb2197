package ctm

import (
	"bytes"
	"math"
	"testing"

	"github.com/flywave/go3d/vec3"
)

func TestMG2EncodeDecodeRoundTripWithinTolerance(t *testing.T) {
	tests := []struct {
		name string
		mesh *Mesh
	}{
		{"PlainTetrahedron", tetrahedronMesh()},
		{"WithNormals", tetrahedronMeshWithNormals()},
		{"WithMaps", tetrahedronMeshWithMaps()},
	}

	prec := precisionSettings{vertex: defaultVertexPrecision, normal: defaultNormalPrecision}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := encode(newWriter(&buf), tt.mesh, MethodMG2, prec); err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			got, err := decode(newReader(bytes.NewReader(buf.Bytes())))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			// Bounded by one quantization step per axis, with slack for
			// rounding accumulated across the grid's min/precision math.
			tol := prec.vertex * 2
			if !meshesEqualWithinTolerance(tt.mesh, got, tol) {
				t.Errorf("MG2 round trip exceeds tolerance %v", tol)
			}
			if got.HasNormals() != tt.mesh.HasNormals() {
				t.Errorf("HasNormals() = %v, want %v", got.HasNormals(), tt.mesh.HasNormals())
			}
		})
	}
}

func TestMG2NormalsStayNearUnitLength(t *testing.T) {
	m := tetrahedronMeshWithNormals()
	prec := precisionSettings{vertex: defaultVertexPrecision, normal: defaultNormalPrecision}
	var buf bytes.Buffer
	if err := encode(newWriter(&buf), m, MethodMG2, prec); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decode(newReader(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for i, n := range got.Normals {
		l := n.Length()
		if l < 0.9 || l > 1.1 {
			t.Errorf("decoded normal[%d] length = %v, want ~1", i, l)
		}
	}
}

func TestQuantGridRoundTripsWithinPrecision(t *testing.T) {
	min := vec3.T{-1, -2, -3}
	max := vec3.T{1, 2, 3}
	precision := float32(1.0 / 1024)
	grid := newQuantGrid(min, max, precision)

	vertices := []vec3.T{{-1, -2, -3}, {0, 0, 0}, {1, 2, 3}, {0.1, -0.2, 0.3}}
	qx, qy, qz := grid.quantizeAll(vertices)
	got := reconstructPositions(grid, qx, qy, qz)

	for i, v := range vertices {
		for axis := 0; axis < 3; axis++ {
			d := float64(got[i][axis] - v[axis])
			if math.Abs(d) > float64(precision) {
				t.Errorf("vertex %d axis %d: reconstructed %v, original %v, diff %v exceeds precision %v",
					i, axis, got[i][axis], v[axis], d, precision)
			}
		}
	}
}

func TestQuantGridDivisionsAtLeastOne(t *testing.T) {
	grid := newQuantGrid(vec3.T{0, 0, 0}, vec3.T{0, 0, 0}, 1.0/1024)
	if grid.divx < 1 || grid.divy < 1 || grid.divz < 1 {
		t.Errorf("degenerate bounding box produced div < 1: %+v", grid)
	}
}

func TestCellDeltasResetAtBoundary(t *testing.T) {
	cellID := []uint32{0, 0, 1, 1, 1}
	q := []int32{10, 12, 100, 102, 99}
	deltas := cellDeltas(cellID, q)
	want := []int32{10, 2, 100, 2, -3}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta[%d] = %d, want %d", i, deltas[i], want[i])
		}
	}
	got := undeltaByCell(cellID, deltas)
	for i := range q {
		if got[i] != q[i] {
			t.Errorf("undelta[%d] = %d, want %d", i, got[i], q[i])
		}
	}
}

func TestNormalsSphericalRoundTrip(t *testing.T) {
	predictor := []vec3.T{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}}
	normals := []vec3.T{{0.1, 0.1, 0.98}, {0.97, 0.2, 0.05}, {0.0, 0.99, 0.1}}
	precision := float32(1.0 / 4096)

	body := encodeNormalsSpherical(normals, predictor, precision)
	got := decodeNormalsSpherical(body, predictor, precision)

	for i := range normals {
		for axis := 0; axis < 3; axis++ {
			d := float64(got[i][axis] - normals[i][axis])
			if math.Abs(d) > 0.01 {
				t.Errorf("normal %d axis %d: got %v, want ~%v", i, axis, got[i][axis], normals[i][axis])
			}
		}
	}
}

func TestEncodeVec2DeltaRoundTrip(t *testing.T) {
	coords := tetrahedronMeshWithMaps().TexMaps[0].Coords
	precision := float32(defaultTexCoordPrecision)
	body := encodeVec2Delta(coords, precision)
	got := decodeVec2Delta(body, len(coords), precision)
	for i := range coords {
		for axis := 0; axis < 2; axis++ {
			d := got[i][axis] - coords[i][axis]
			if d < -precision || d > precision {
				t.Errorf("coord %d axis %d: got %v, want ~%v", i, axis, got[i][axis], coords[i][axis])
			}
		}
	}
}

func TestEncodeVec4DeltaRoundTrip(t *testing.T) {
	values := tetrahedronMeshWithMaps().AttribMaps[0].Values
	precision := float32(defaultAttribPrecision)
	body := encodeVec4Delta(values, precision)
	got := decodeVec4Delta(body, len(values), precision)
	for i := range values {
		for c := 0; c < 4; c++ {
			d := got[i][c] - values[i][c]
			if d < -precision || d > precision {
				t.Errorf("value %d channel %d: got %v, want ~%v", i, c, got[i][c], values[i][c])
			}
		}
	}
}
