package ctm

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		fn   func(w *writer) error
		rd   func(r *reader) (interface{}, error)
		want interface{}
	}{
		{
			"U32",
			func(w *writer) error { return w.writeU32(0xdeadbeef) },
			func(r *reader) (interface{}, error) { return r.readU32() },
			uint32(0xdeadbeef),
		},
		{
			"I32Negative",
			func(w *writer) error { return w.writeI32(-42) },
			func(r *reader) (interface{}, error) { return r.readI32() },
			int32(-42),
		},
		{
			"F32",
			func(w *writer) error { return w.writeF32(3.25) },
			func(r *reader) (interface{}, error) { return r.readF32() },
			float32(3.25),
		},
		{
			"String",
			func(w *writer) error { return w.writeString("hello octm") },
			func(r *reader) (interface{}, error) { return r.readString() },
			"hello octm",
		},
		{
			"EmptyString",
			func(w *writer) error { return w.writeString("") },
			func(r *reader) (interface{}, error) { return r.readString() },
			"",
		},
		{
			"Tag",
			func(w *writer) error { return w.writeTag([4]byte{'O', 'C', 'T', 'M'}) },
			func(r *reader) (interface{}, error) { return r.readTag() },
			[4]byte{'O', 'C', 'T', 'M'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.fn(newWriter(&buf)); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			got, err := tt.rd(newReader(bytes.NewReader(buf.Bytes())))
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestF32SliceRoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 3.14159, -2048.5, 1.0 / 1024}
	var buf bytes.Buffer
	if err := newWriter(&buf).writeF32Slice(values); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := newReader(bytes.NewReader(buf.Bytes())).readF32Slice(len(values))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("value[%d] = %v, want %v", i, got[i], values[i])
		}
	}
}

func TestReadFullShortRead(t *testing.T) {
	r := newReader(bytes.NewReader([]byte{1, 2}))
	if _, err := r.readU32(); err == nil {
		t.Fatal("expected error on short read, got nil")
	} else if errorCode(err) != ErrFileError {
		t.Errorf("errorCode = %v, want ErrFileError", errorCode(err))
	}
}

func TestReadStringRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	newWriter(&buf).writeU32(1 << 29)
	_, err := newReader(bytes.NewReader(buf.Bytes())).readString()
	if err == nil {
		t.Fatal("expected error for oversized string length")
	}
	if errorCode(err) != ErrFormatError {
		t.Errorf("errorCode = %v, want ErrFormatError", errorCode(err))
	}
}
