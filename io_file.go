package ctm

import (
	"io"
	"os"
)

// Load reads path into a new Mesh, switching the Context into ModeImport.
// Grounded on the teacher's MeshReadFrom, which opens the file itself rather
// than asking the caller to manage the handle.
func (c *Context) Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, c.setError(ErrFileError, err)
	}
	defer f.Close()
	return c.LoadCustom(f)
}

// LoadCustom decodes from an arbitrary io.Reader, the generalization of
// Load that spec.md's Design Notes §9 calls for in place of the original
// API's C function-pointer read callback.
func (c *Context) LoadCustom(r io.Reader) (*Mesh, error) {
	m, err := decode(newReader(r))
	if err != nil {
		return nil, c.setError(errorCode(err), err)
	}
	c.mesh = m
	c.mode = ModeImport
	return m, nil
}

// Save encodes the Context's current mesh (set by DefineMesh) to path under
// the currently selected Method, grounded on the teacher's MeshWriteTo.
func (c *Context) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return c.setError(ErrFileError, err)
	}
	defer f.Close()
	return c.SaveCustom(f)
}

// SaveCustom encodes to an arbitrary io.Writer, the generalization of Save
// replacing the original API's C function-pointer write callback. Saving is
// only valid from ModeExport (reached via DefineMesh); a Context still in
// ModeImport, even one holding a mesh loaded by LoadCustom, rejects Save as
// API misuse rather than silently re-encoding what it just read.
func (c *Context) SaveCustom(w io.Writer) error {
	if c.mesh == nil {
		return c.setError(ErrInvalidOperation, newError(ErrInvalidOperation, "no mesh defined"))
	}
	if c.mode != ModeExport {
		return c.setError(ErrInvalidOperation, newError(ErrInvalidOperation, "context is not in export mode"))
	}
	if err := encode(newWriter(w), c.mesh, c.method, c.resolvePrecision()); err != nil {
		return c.setError(errorCode(err), err)
	}
	return nil
}
