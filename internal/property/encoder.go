package property

import (
	"github.com/package-linker/internal/pkgfile"
)

// Encoder writes a tagged property stream. Names are registered with the
// package's name indexer so the stream can be stored as an export payload.
type Encoder struct {
	w     *pkgfile.Writer
	names *pkgfile.NameIndexer
}

// NewEncoder creates an encoder adding names to names.
func NewEncoder(names *pkgfile.NameIndexer) *Encoder {
	return &Encoder{w: pkgfile.NewWriter(), names: names}
}

func (e *Encoder) tag(name, typ string, structName string, value func(w *pkgfile.Writer)) *Encoder {
	e.w.WriteNameRef(e.names.Ref(name))
	e.w.WriteNameRef(e.names.Ref(typ))
	sizeAt := e.w.Len()
	e.w.WriteInt32(0)
	if typ == TypeStruct {
		e.w.WriteNameRef(e.names.Ref(structName))
	}
	start := e.w.Len()
	value(e.w)
	size := pkgfile.NewWriter()
	size.WriteInt32(int32(e.w.Len() - start))
	e.w.Patch(sizeAt, size.Bytes())
	return e
}

// Int writes an IntProperty.
func (e *Encoder) Int(name string, v int32) *Encoder {
	return e.tag(name, TypeInt, "", func(w *pkgfile.Writer) { w.WriteInt32(v) })
}

// Float writes a FloatProperty.
func (e *Encoder) Float(name string, v float32) *Encoder {
	return e.tag(name, TypeFloat, "", func(w *pkgfile.Writer) { w.WriteFloat32(v) })
}

// Bool writes a BoolProperty.
func (e *Encoder) Bool(name string, v bool) *Encoder {
	return e.tag(name, TypeBool, "", func(w *pkgfile.Writer) { w.WriteBool(v) })
}

// Str writes a StrProperty.
func (e *Encoder) Str(name, v string) *Encoder {
	return e.tag(name, TypeStr, "", func(w *pkgfile.Writer) { w.WriteString(v) })
}

// Name writes a NameProperty.
func (e *Encoder) Name(name, v string) *Encoder {
	return e.tag(name, TypeName, "", func(w *pkgfile.Writer) { w.WriteNameRef(e.names.Ref(v)) })
}

// Object writes an ObjectProperty referring to idx in the same package.
func (e *Encoder) Object(name string, idx pkgfile.PackageIndex) *Encoder {
	return e.tag(name, TypeObject, "", func(w *pkgfile.Writer) { w.WritePackageIndex(idx) })
}

// Struct writes a StructProperty whose fields are written by fill.
func (e *Encoder) Struct(name, structName string, fill func(*Encoder)) *Encoder {
	return e.tag(name, TypeStruct, structName, func(w *pkgfile.Writer) {
		inner := &Encoder{w: pkgfile.NewWriter(), names: e.names}
		fill(inner)
		w.WriteBytes(inner.Bytes())
	})
}

// Raw writes a property of an arbitrary type with an opaque value.
func (e *Encoder) Raw(name, typ string, value []byte) *Encoder {
	return e.tag(name, typ, "", func(w *pkgfile.Writer) { w.WriteBytes(value) })
}

// Bytes terminates the stream and returns it. The encoder must not be used
// afterwards.
func (e *Encoder) Bytes() []byte {
	e.w.WriteNameRef(e.names.Ref(noneName))
	return e.w.Bytes()
}
