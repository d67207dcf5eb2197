package ctm

import (
	"encoding/binary"
	"io"
	"math"
)

// reader and writer are thin sequential wrappers over the caller-supplied
// io.Reader/io.Writer, the Go realization of Design Notes §9's "sink/source
// capability" — io.Reader and io.Writer already are that capability, so no
// bespoke callback type is introduced. Grounded on io.go's
// toLittleByteOrder/readLittleByte helpers, generalized to a stateful
// stream instead of one-shot free functions.
type reader struct {
	r io.Reader
}

type writer struct {
	w io.Writer
}

func newReader(r io.Reader) *reader { return &reader{r: r} }
func newWriter(w io.Writer) *writer { return &writer{w: w} }

func (r *reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return wrapError(ErrFileError, errShortIO)
	}
	return nil
}

func (r *reader) readU32() (uint32, error) {
	var buf [4]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *reader) readU32Slice(n int) ([]uint32, error) {
	out := make([]uint32, n)
	buf := make([]byte, 4*n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out, nil
}

func (r *reader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

func (r *reader) readF32() (float32, error) {
	v, err := r.readU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) readF32Slice(n int) ([]float32, error) {
	out := make([]float32, n)
	buf := make([]byte, 4*n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

func (r *reader) readTag() ([4]byte, error) {
	var tag [4]byte
	err := r.readFull(tag[:])
	return tag, err
}

func (r *reader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	if n > (1 << 28) {
		return "", newError(ErrFormatError, "string length %d out of range", n)
	}
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (w *writer) writeRaw(buf []byte) error {
	if _, err := w.w.Write(buf); err != nil {
		return wrapError(ErrFileError, err)
	}
	return nil
}

func (w *writer) writeU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.writeRaw(buf[:])
}

func (w *writer) writeU32Slice(vs []uint32) error {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return w.writeRaw(buf)
}

func (w *writer) writeI32(v int32) error {
	return w.writeU32(uint32(v))
}

func (w *writer) writeF32(v float32) error {
	return w.writeU32(math.Float32bits(v))
}

func (w *writer) writeF32Slice(vs []float32) error {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return w.writeRaw(buf)
}

func (w *writer) writeTag(tag [4]byte) error {
	return w.writeRaw(tag[:])
}

func (w *writer) writeString(s string) error {
	if err := w.writeU32(uint32(len(s))); err != nil {
		return err
	}
	return w.writeRaw([]byte(s))
}
