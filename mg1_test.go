package ctm

import (
	"bytes"
	"testing"
)

func TestMG1EncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		mesh *Mesh
	}{
		{"PlainTetrahedron", tetrahedronMesh()},
		{"WithNormals", tetrahedronMeshWithNormals()},
		{"WithMaps", tetrahedronMeshWithMaps()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := encode(newWriter(&buf), tt.mesh, MethodMG1, precisionSettings{}); err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			got, err := decode(newReader(bytes.NewReader(buf.Bytes())))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !meshesEqualWithinTolerance(tt.mesh, got, 0) {
				t.Error("MG1 round trip is not lossless")
			}
			if got.HasNormals() != tt.mesh.HasNormals() {
				t.Errorf("HasNormals() = %v, want %v", got.HasNormals(), tt.mesh.HasNormals())
			}
			if len(got.TexMaps) != len(tt.mesh.TexMaps) {
				t.Errorf("TexMaps count = %d, want %d", len(got.TexMaps), len(tt.mesh.TexMaps))
			}
			if len(got.AttribMaps) != len(tt.mesh.AttribMaps) {
				t.Errorf("AttribMaps count = %d, want %d", len(got.AttribMaps), len(tt.mesh.AttribMaps))
			}
		})
	}
}

func TestMG1IsDeterministic(t *testing.T) {
	m := tetrahedronMeshWithMaps()
	var buf1, buf2 bytes.Buffer
	if err := encode(newWriter(&buf1), m, MethodMG1, precisionSettings{}); err != nil {
		t.Fatalf("encode 1 failed: %v", err)
	}
	if err := encode(newWriter(&buf2), m, MethodMG1, precisionSettings{}); err != nil {
		t.Fatalf("encode 2 failed: %v", err)
	}
	if !bytes.Equal(buf1.Bytes(), buf2.Bytes()) {
		t.Error("encoding the same mesh twice produced different bytes")
	}
}

func TestColumnMajorVec3RoundTrip(t *testing.T) {
	m := tetrahedronMesh()
	body := columnMajorVec3(m.Vertices)
	got := decodeColumnMajorVec3(body, len(m.Vertices))
	for i := range m.Vertices {
		if got[i] != m.Vertices[i] {
			t.Errorf("vertex %d = %v, want %v", i, got[i], m.Vertices[i])
		}
	}
}

func TestColumnMajorDeltaIndicesRoundTrip(t *testing.T) {
	m := tetrahedronMesh()
	reordered := reorderIndices(m.Indices, m.VertexCount())
	body := columnMajorDeltaIndices(reordered.indices)
	got := decodeColumnMajorDeltaIndices(body, len(reordered.indices))
	for i := range reordered.indices {
		if got[i] != reordered.indices[i] {
			t.Errorf("triangle %d = %v, want %v", i, got[i], reordered.indices[i])
		}
	}
}
