package ctm

import (
	"bytes"
	"testing"

	"github.com/ulikunitz/xz/lzma"
)

func TestLZMACompressDecompressRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		level int
	}{
		{"Empty", []byte{}, mg1DefaultLevel},
		{"Small", []byte("triangle mesh payload"), mg1DefaultLevel},
		{"Repeating", bytes.Repeat([]byte{0, 1, 2, 3}, 512), mg2DefaultLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, payload, err := lzmaCompress(tt.data, tt.level)
			if err != nil {
				t.Fatalf("compress failed: %v", err)
			}
			got, err := lzmaDecompress(props, payload, uint32(len(tt.data)))
			if err != nil {
				t.Fatalf("decompress failed: %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Errorf("round trip mismatch: got %v, want %v", got, tt.data)
			}
		})
	}
}

func TestWriteReadChunkRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("abcxyz"), 100)
	var buf bytes.Buffer
	if err := writeChunk(newWriter(&buf), tagVERT, data, mg1DefaultLevel); err != nil {
		t.Fatalf("writeChunk failed: %v", err)
	}
	got, err := readChunk(newReader(bytes.NewReader(buf.Bytes())), tagVERT)
	if err != nil {
		t.Fatalf("readChunk failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("chunk round trip mismatch")
	}
}

func TestReadChunkRejectsWrongTag(t *testing.T) {
	var buf bytes.Buffer
	if err := writeChunk(newWriter(&buf), tagVERT, []byte("x"), mg1DefaultLevel); err != nil {
		t.Fatalf("writeChunk failed: %v", err)
	}
	_, err := readChunk(newReader(bytes.NewReader(buf.Bytes())), tagNORM)
	if err == nil {
		t.Fatal("expected tag mismatch error")
	}
	if errorCode(err) != ErrFormatError {
		t.Errorf("errorCode = %v, want ErrFormatError", errorCode(err))
	}
}

func TestDictCapForLevel(t *testing.T) {
	tests := []struct {
		name  string
		level int
	}{
		{"BelowRange", -5},
		{"Min", 0},
		{"Max", 9},
		{"AboveRange", 20},
	}
	const ceiling = 1 << 26
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dictCapForLevel(tt.level)
			if got < lzma.MinDictCap {
				t.Errorf("dictCapForLevel(%d) = %d, below MinDictCap %d", tt.level, got, lzma.MinDictCap)
			}
			if got > ceiling {
				t.Errorf("dictCapForLevel(%d) = %d, exceeds ceiling %d", tt.level, got, ceiling)
			}
		})
	}
	if dictCapForLevel(0) > dictCapForLevel(9) {
		t.Error("dictCapForLevel should be monotonically non-decreasing in level")
	}
}
