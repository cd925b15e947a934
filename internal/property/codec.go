// Package property deserializes tagged property streams into objects.
//
// Every property is written as a tag followed by its value:
//
//	Name    name reference ("None" ends the stream)
//	Type    name reference (IntProperty, FloatProperty, ...)
//	Size    int32, byte length of the value
//	[StructName name reference, StructProperty only]
//	Value   Size bytes
//
// Unknown property types are skipped by size, so older loaders can read
// objects saved with newer property kinds.
package property

import (
	"github.com/package-linker/internal/object"
	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/utils"
)

// Property type names.
const (
	TypeInt    = "IntProperty"
	TypeFloat  = "FloatProperty"
	TypeBool   = "BoolProperty"
	TypeStr    = "StrProperty"
	TypeName   = "NameProperty"
	TypeObject = "ObjectProperty"
	TypeStruct = "StructProperty"
)

const noneName = "None"

// Reader is the archive view a codec reads from. Names and object
// references are resolved by the linker behind it.
type Reader interface {
	ReadName() (string, error)
	ReadInt32() (int32, error)
	ReadFloat32() (float32, error)
	ReadBool() (bool, error)
	ReadString() (string, error)
	ReadObject() (*object.Object, error)
	Skip(n int64) error
	Tell() int64
}

// Codec fills an object from its serialized bytes.
type Codec interface {
	Deserialize(obj *object.Object, r Reader) error
}

// StructValue is the value of a StructProperty.
type StructValue struct {
	Type   string
	Fields []object.Property
}

// Field returns the named field.
func (s StructValue) Field(name string) (any, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// TaggedCodec reads the tagged property format.
type TaggedCodec struct {
	// StructRedirect renames struct types saved under an old name.
	StructRedirect func(name string) (string, bool)
	Logger         utils.Logger
}

// NewTaggedCodec returns a codec with no struct redirects.
func NewTaggedCodec(logger utils.Logger) *TaggedCodec {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &TaggedCodec{Logger: logger}
}

// Deserialize reads properties until the None terminator and stores them
// on obj.
func (c *TaggedCodec) Deserialize(obj *object.Object, r Reader) error {
	return c.readStream(r, obj.PathName(), obj.SetProp)
}

func (c *TaggedCodec) readStream(r Reader, owner string, set func(string, any)) error {
	for {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		if name == noneName {
			return nil
		}
		typ, err := r.ReadName()
		if err != nil {
			return err
		}
		size, err := r.ReadInt32()
		if err != nil {
			return err
		}
		if size < 0 {
			return apperrors.Newf(apperrors.CodeFormat, "%s.%s: negative property size %d", owner, name, size)
		}

		var structName string
		if typ == TypeStruct {
			if structName, err = r.ReadName(); err != nil {
				return err
			}
			if c.StructRedirect != nil {
				if renamed, ok := c.StructRedirect(structName); ok {
					structName = renamed
				}
			}
		}

		start := r.Tell()
		value, known, err := c.readValue(r, typ, structName, owner+"."+name)
		if err != nil {
			return err
		}
		if !known {
			c.logger().Debug("%s.%s: skipping %d bytes of unknown %s", owner, name, size, typ)
			if err := r.Skip(int64(size)); err != nil {
				return err
			}
			continue
		}
		if got := r.Tell() - start; got != int64(size) {
			return apperrors.Newf(apperrors.CodeFormat, "%s.%s: %s read %d bytes, tag says %d",
				owner, name, typ, got, size)
		}
		set(name, value)
	}
}

func (c *TaggedCodec) readValue(r Reader, typ, structName, path string) (any, bool, error) {
	var (
		v   any
		err error
	)
	switch typ {
	case TypeInt:
		v, err = r.ReadInt32()
	case TypeFloat:
		v, err = r.ReadFloat32()
	case TypeBool:
		v, err = r.ReadBool()
	case TypeStr:
		v, err = r.ReadString()
	case TypeName:
		v, err = r.ReadName()
	case TypeObject:
		v, err = r.ReadObject()
	case TypeStruct:
		sv := StructValue{Type: structName}
		err = c.readStream(r, path, func(n string, fv any) {
			sv.Fields = append(sv.Fields, object.Property{Name: n, Value: fv})
		})
		v = sv
	default:
		return nil, false, nil
	}
	return v, true, err
}

func (c *TaggedCodec) logger() utils.Logger {
	if c.Logger == nil {
		return &utils.NullLogger{}
	}
	return c.Logger
}
