package ctm

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// The LZMA stage is treated as an opaque collaborator per spec.md §4.2 and
// Design Notes §9: any implementation satisfying the chunk framing below is
// acceptable, but the 5-byte properties header layout must be preserved.
// Grounded on the pack's use of github.com/ulikunitz/xz/lzma
// (crazy-max-undock's lzip package wraps the same library's classic-stream
// header, whose first 5 bytes are the LZMA SDK properties byte + 4-byte
// little-endian dictionary size).
const lzmaHeaderSize = 13 // 1 props byte + 4 byte dict cap + 8 byte size

// lzmaProps is the 5-byte properties header carried verbatim in every MG1
// and MG2 chunk: byte 0 encodes (pb*5+lp)*9+lc, bytes 1..4 the dictionary
// capacity, little-endian.
type lzmaProps [5]byte

// dictCapForLevel maps a 0-9 compression level onto an LZMA dictionary
// capacity. The exact curve is not part of the wire contract (only the
// resulting props bytes are), so this follows the LZMA SDK's own rough
// doubling-per-level shape.
func dictCapForLevel(level int) int {
	if level < 0 {
		level = 0
	}
	if level > 9 {
		level = 9
	}
	cap := 1 << (16 + uint(level))
	if cap < lzma.MinDictCap {
		cap = lzma.MinDictCap
	}
	const max = 1 << 26 // 64 MiB ceiling, ample for mesh chunks
	if cap > max {
		cap = max
	}
	return cap
}

// lzmaCompress packs data into a self-delimited blob: uncompressed_size,
// packed_size, 5-byte props, payload. level follows spec.md's 0-9 scale
// (default 1 for MG1, 9 for MG2).
func lzmaCompress(data []byte, level int) (props lzmaProps, payload []byte, err error) {
	cfg := lzma.WriterConfig{
		Properties: &lzma.Properties{LC: 3, LP: 0, PB: 2},
		DictCap:    dictCapForLevel(level),
		Size:       int64(len(data)),
	}
	var buf bytes.Buffer
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return props, nil, wrapError(ErrLZMAError, err)
	}
	if _, err = w.Write(data); err != nil {
		return props, nil, wrapError(ErrLZMAError, err)
	}
	if err = w.Close(); err != nil {
		return props, nil, wrapError(ErrLZMAError, err)
	}
	raw := buf.Bytes()
	if len(raw) < lzmaHeaderSize {
		return props, nil, newError(ErrLZMAError, "lzma stream shorter than header")
	}
	copy(props[:], raw[:5])
	payload = raw[lzmaHeaderSize:]
	return props, payload, nil
}

// lzmaDecompress inverts lzmaCompress: given the 5-byte props header, the
// packed payload, and the expected uncompressed size, it reconstructs the
// classic LZMA stream header the underlying library expects and yields the
// decompressed bytes.
func lzmaDecompress(props lzmaProps, payload []byte, uncompressedSize uint32) ([]byte, error) {
	var stream bytes.Buffer
	stream.Write(props[:])
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(uncompressedSize))
	stream.Write(sizeBuf[:])
	stream.Write(payload)

	r, err := lzma.NewReader(&stream)
	if err != nil {
		return nil, wrapError(ErrLZMAError, err)
	}
	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, wrapError(ErrLZMAError, err)
	}
	return out, nil
}

// writeChunk emits a tagged, LZMA-packed byte run: tag, uncompressed
// length, packed length, 5-byte props, payload — the shared framing used by
// every MG1/MG2 body chunk (spec.md §4.5/§4.6).
func writeChunk(w *writer, tag [4]byte, data []byte, level int) error {
	props, payload, err := lzmaCompress(data, level)
	if err != nil {
		return err
	}
	if err := w.writeTag(tag); err != nil {
		return err
	}
	if err := w.writeU32(uint32(len(data))); err != nil {
		return err
	}
	if err := w.writeU32(uint32(len(payload))); err != nil {
		return err
	}
	if err := w.writeRaw(props[:]); err != nil {
		return err
	}
	return w.writeRaw(payload)
}

// readChunk reads a tagged LZMA-packed byte run and verifies the tag
// matches want.
func readChunk(r *reader, want [4]byte) ([]byte, error) {
	tag, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if tag != want {
		return nil, newError(ErrFormatError, "expected chunk tag %q, got %q", want, tag)
	}
	uncompressedSize, err := r.readU32()
	if err != nil {
		return nil, err
	}
	packedSize, err := r.readU32()
	if err != nil {
		return nil, err
	}
	var props lzmaProps
	if err := r.readFull(props[:]); err != nil {
		return nil, err
	}
	payload, err := r.readBytes(int(packedSize))
	if err != nil {
		return nil, err
	}
	return lzmaDecompress(props, payload, uncompressedSize)
}
