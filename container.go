package ctm

// containerHeader is the common file-level header of spec.md §4.7, shared
// by all three methods.
type containerHeader struct {
	method         Method
	vertexCount    uint32
	triangleCount  uint32
	uvMapCount     uint32
	attribMapCount uint32
	flags          uint32
	comment        string
}

var octmTag = [4]byte{'O', 'C', 'T', 'M'}

func writeContainerHeader(w *writer, m *Mesh, method Method) error {
	if err := w.writeTag(octmTag); err != nil {
		return err
	}
	if err := w.writeU32(fileVersion); err != nil {
		return err
	}
	if err := w.writeU32(uint32(method)); err != nil {
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
	return w.writeString(m.Comment)
}

func readContainerHeader(r *reader) (*containerHeader, error) {
	tag, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if tag != octmTag {
		return nil, newError(ErrFormatError, "bad magic %q, want %q", tag, octmTag)
	}
	version, err := r.readU32()
	if err != nil {
		return nil, wrapError(ErrFormatError, err)
	}
	if version != fileVersion {
		return nil, newError(ErrFormatError, "unsupported version %d", version)
	}
	methodRaw, err := r.readU32()
	if err != nil {
		return nil, err
	}
	method := Method(methodRaw)
	switch method {
	case MethodRaw, MethodMG1, MethodMG2:
	default:
		return nil, newError(ErrFormatError, "unknown method 0x%04x", methodRaw)
	}
	h := &containerHeader{method: method}
	if h.vertexCount, err = r.readU32(); err != nil {
		return nil, err
	}
	if h.triangleCount, err = r.readU32(); err != nil {
		return nil, err
	}
	if h.uvMapCount, err = r.readU32(); err != nil {
		return nil, err
	}
	if h.attribMapCount, err = r.readU32(); err != nil {
		return nil, err
	}
	if h.flags, err = r.readU32(); err != nil {
		return nil, err
	}
	if h.comment, err = r.readString(); err != nil {
		return nil, err
	}
	if h.vertexCount > (1<<31)-1 {
		return nil, newError(ErrFormatError, "vertex count %d exceeds 2^31-1", h.vertexCount)
	}
	if uint64(h.triangleCount)*3 > (1<<31)-1 {
		return nil, newError(ErrFormatError, "triangle count %d * 3 exceeds 2^31-1", h.triangleCount)
	}
	if h.uvMapCount > maxTexMaps {
		return nil, newError(ErrFormatError, "uv map count %d exceeds %d", h.uvMapCount, maxTexMaps)
	}
	if h.attribMapCount > maxAttribMaps {
		return nil, newError(ErrFormatError, "attrib map count %d exceeds %d", h.attribMapCount, maxAttribMaps)
	}
	return h, nil
}

// encode writes the full OCTM file for m under method, in the chunk order
// fixed by spec.md §4.5/§4.6 (no out-of-order chunk tolerance, per §5).
func encode(w *writer, m *Mesh, method Method, prec precisionSettings) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := writeContainerHeader(w, m, method); err != nil {
		return err
	}
	switch method {
	case MethodRaw:
		return encodeRAW(w, m)
	case MethodMG1:
		return encodeMG1(w, m)
	case MethodMG2:
		return encodeMG2(w, m, prec)
	default:
		return newError(ErrInternalError, "unhandled method %v", method)
	}
}

// decode reads a full OCTM file and reconstructs the Mesh it describes.
func decode(r *reader) (*Mesh, error) {
	h, err := readContainerHeader(r)
	if err != nil {
		return nil, err
	}
	var m *Mesh
	switch h.method {
	case MethodRaw:
		m, err = decodeRAW(r, h)
	case MethodMG1:
		m, err = decodeMG1(r, h)
	case MethodMG2:
		m, err = decodeMG2(r, h)
	default:
		return nil, newError(ErrInternalError, "unhandled method %v", h.method)
	}
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
