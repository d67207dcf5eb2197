package ctm

import (
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// Mode selects whether a Context is importing (reading a file into a Mesh)
// or exporting (writing a Mesh out), mirroring CTM_IMPORT/CTM_EXPORT in the
// original property-bag API.
type Mode int

const (
	// ModeImport is the zero value: a fresh Context starts ready to load.
	ModeImport Mode = iota
	ModeExport
)

// Context wraps a Mesh with the load/save workflow, latched error state, and
// precision/method knobs the original OpenCTM C API exposed through a single
// opaque handle and a property-bag of getters/setters. Here those become
// typed fields and methods instead, per spec.md §4.8's redesign: no untyped
// property IDs, no global error-code singleton.
type Context struct {
	mode Mode
	mesh *Mesh

	method Method

	vertexPrecision    float32
	vertexPrecisionRel float32 // if > 0, takes precedence and is resolved against meanEdgeLength at save time
	normalPrecision    float32

	lastError ErrorCode
}

// NewContext returns a fresh Context in ModeImport, matching the teacher's
// NewMesh-style zero-value constructor.
func NewContext() *Context {
	return &Context{method: MethodMG1}
}

// setError latches code (unless it is already set — the original API never
// overwrites a pending error until it is read) and returns an error value
// carrying the same code, for the convenience of callers that want both the
// latch and an immediate Go error return.
func (c *Context) setError(code ErrorCode, err error) error {
	if c.lastError == ErrNone {
		c.lastError = code
	}
	return wrapError(code, err)
}

// GetError returns and clears the latched error code, mirroring
// ctmGetError's read-then-reset semantics.
func (c *Context) GetError() ErrorCode {
	e := c.lastError
	c.lastError = ErrNone
	return e
}

// DefineMesh registers m as the Context's mesh and switches it into
// ModeExport, the typed replacement for ctmDefineMesh's raw pointer/count
// arguments.
func (c *Context) DefineMesh(m *Mesh) error {
	if err := m.Validate(); err != nil {
		return c.setError(ErrInvalidMesh, err)
	}
	c.mesh = m
	c.mode = ModeExport
	return nil
}

// Mesh returns the Context's current mesh, populated by DefineMesh (export)
// or by Load/LoadCustom (import). Returns nil if neither has run yet.
func (c *Context) Mesh() *Mesh { return c.mesh }

// VertexCount, TriangleCount, Comment are typed accessors over the current
// mesh, replacing ctmGetInteger(CTM_VERTEX_COUNT) / ctmGetString(CTM_FILE_COMMENT).
func (c *Context) VertexCount() int {
	if c.mesh == nil {
		return 0
	}
	return c.mesh.VertexCount()
}

func (c *Context) TriangleCount() int {
	if c.mesh == nil {
		return 0
	}
	return c.mesh.TriangleCount()
}

func (c *Context) Comment() string {
	if c.mesh == nil {
		return ""
	}
	return c.mesh.Comment
}

// Vertices, Indices, Normals, HasNormals, TexMapCount, AttribMapCount round
// out the typed-accessor surface spec.md §6's redesign calls for in place of
// ctmGetFloatArray/ctmGetIntegerArray.
func (c *Context) Vertices() []vec3.T {
	if c.mesh == nil {
		return nil
	}
	return c.mesh.Vertices
}

func (c *Context) Indices() [][3]uint32 {
	if c.mesh == nil {
		return nil
	}
	return c.mesh.Indices
}

func (c *Context) Normals() []vec3.T {
	if c.mesh == nil {
		return nil
	}
	return c.mesh.Normals
}

func (c *Context) HasNormals() bool {
	return c.mesh != nil && c.mesh.HasNormals()
}

func (c *Context) TexMapCount() int {
	if c.mesh == nil {
		return 0
	}
	return len(c.mesh.TexMaps)
}

func (c *Context) AttribMapCount() int {
	if c.mesh == nil {
		return 0
	}
	return len(c.mesh.AttribMaps)
}

// SetComment sets the file comment string that will be written on the next
// Save/SaveCustom, replacing ctmFileComment.
func (c *Context) SetComment(comment string) {
	if c.mesh != nil {
		c.mesh.Comment = comment
	}
}

// SetMethod selects the body encoding used by Save/SaveCustom, replacing
// ctmCompressionMethod.
func (c *Context) SetMethod(method Method) error {
	switch method {
	case MethodRaw, MethodMG1, MethodMG2:
		c.method = method
		return nil
	default:
		return c.setError(ErrInvalidArgument, newError(ErrInvalidArgument, "unknown method %v", method))
	}
}

// Method reports the currently selected compression method.
func (c *Context) Method() Method { return c.method }

// SetVertexPrecision sets the absolute vertex quantization step used by
// MG2, replacing ctmVertexPrecision.
func (c *Context) SetVertexPrecision(precision float32) error {
	if precision <= 0 {
		return c.setError(ErrInvalidArgument, newError(ErrInvalidArgument, "vertex precision must be positive, got %v", precision))
	}
	c.vertexPrecision = precision
	c.vertexPrecisionRel = 0
	return nil
}

// SetVertexPrecisionRel sets the vertex precision as a multiple of the
// mesh's mean edge length, replacing ctmVertexPrecisionRel; the absolute
// value is resolved lazily at Save time once the mesh geometry is known.
func (c *Context) SetVertexPrecisionRel(relative float32) error {
	if relative <= 0 {
		return c.setError(ErrInvalidArgument, newError(ErrInvalidArgument, "relative vertex precision must be positive, got %v", relative))
	}
	c.vertexPrecisionRel = relative
	c.vertexPrecision = 0
	return nil
}

// SetNormalPrecision sets the angular quantization step MG2 uses to encode
// normals, replacing ctmNormalPrecision.
func (c *Context) SetNormalPrecision(precision float32) error {
	if precision <= 0 {
		return c.setError(ErrInvalidArgument, newError(ErrInvalidArgument, "normal precision must be positive, got %v", precision))
	}
	c.normalPrecision = precision
	return nil
}

// resolvePrecision turns the Context's precision knobs into the absolute
// precisionSettings encodeMG2 consumes, resolving a pending relative vertex
// precision against the current mesh's mean edge length.
func (c *Context) resolvePrecision() precisionSettings {
	p := precisionSettings{vertex: c.vertexPrecision, normal: c.normalPrecision}
	if c.vertexPrecisionRel > 0 && c.mesh != nil {
		mean := meanEdgeLength(c.mesh.Vertices, c.mesh.Indices)
		p.vertex = mean * c.vertexPrecisionRel
	}
	return p
}

// AddTexMap registers a new UV map on the Context's mesh, replacing
// ctmAddTexMap's raw float-array arguments with the typed Coords slice.
func (c *Context) AddTexMap(name, filename string, coords []vec2.T) (*TexMap, error) {
	if c.mesh == nil {
		return nil, c.setError(ErrInvalidOperation, newError(ErrInvalidOperation, "no mesh defined"))
	}
	if len(c.mesh.TexMaps) >= maxTexMaps {
		return nil, c.setError(ErrInvalidOperation, newError(ErrInvalidOperation, "already have %d tex maps", maxTexMaps))
	}
	tm := &TexMap{Name: name, Filename: filename, Coords: coords}
	c.mesh.TexMaps = append(c.mesh.TexMaps, tm)
	return tm, nil
}

// AddAttribMap registers a new generic per-vertex attribute channel,
// replacing ctmAddAttribMap.
func (c *Context) AddAttribMap(name string, values [][4]float32) (*AttribMap, error) {
	if c.mesh == nil {
		return nil, c.setError(ErrInvalidOperation, newError(ErrInvalidOperation, "no mesh defined"))
	}
	if len(c.mesh.AttribMaps) >= maxAttribMaps {
		return nil, c.setError(ErrInvalidOperation, newError(ErrInvalidOperation, "already have %d attrib maps", maxAttribMaps))
	}
	am := &AttribMap{Name: name, Values: values}
	c.mesh.AttribMaps = append(c.mesh.AttribMaps, am)
	return am, nil
}

// GetTexMap looks up a UV map by name, replacing ctmGetNamedTexMap's
// returned integer handle with the TexMap itself.
func (c *Context) GetTexMap(name string) (*TexMap, bool) {
	if c.mesh == nil {
		return nil, false
	}
	return c.mesh.TexMapByName(name)
}

// GetAttribMap looks up an attribute map by name, replacing
// ctmGetNamedAttribMap.
func (c *Context) GetAttribMap(name string) (*AttribMap, bool) {
	if c.mesh == nil {
		return nil, false
	}
	return c.mesh.AttribMapByName(name)
}

