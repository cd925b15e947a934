package object

import (
	"strings"
)

// ClassFlags describe a class descriptor.
type ClassFlags uint32

const (
	ClassIntrinsic ClassFlags = 1 << iota
	ClassDeprecated
	ClassTransient
	ClassAbstract
	// ClassRegenerable classes rebuild themselves when their default object loads.
	ClassRegenerable
)

// SerializedClassFlags are the class flags a loaded class may carry in its
// ClassFlags property.
const SerializedClassFlags = ClassDeprecated | ClassTransient | ClassAbstract | ClassRegenerable

// Well-known property names.
const (
	RedirectorDestinationProperty = "DestinationObject"
	ClassFlagsProperty            = "ClassFlags"
)

// Constructor initializes a freshly allocated instance. Returning an error
// aborts construction.
type Constructor func(obj *Object) error

// Class describes the type of an object. Every class is backed by a class
// object registered in the Directory.
type Class struct {
	obj   *Object
	dir   *Directory
	Super *Class
	Flags ClassFlags

	construct     Constructor
	regenerate    func(cdo *Object) error
	defaultObject *Object
	bound         bool
}

// Name returns the class name.
func (c *Class) Name() string {
	if c == nil {
		return "None"
	}
	return c.obj.name
}

// PackageName returns the name of the package declaring the class.
func (c *Class) PackageName() string {
	return c.obj.Outermost().name
}

// Object returns the class object.
func (c *Class) Object() *Object { return c.obj }

// HasAnyFlags reports whether any of f is set.
func (c *Class) HasAnyFlags(f ClassFlags) bool { return c.Flags&f != 0 }

// IsChildOf reports whether c is other or derives from it.
func (c *Class) IsChildOf(other *Class) bool {
	if other == nil {
		return false
	}
	for cur := c; cur != nil; cur = cur.Super {
		if cur == other {
			return true
		}
	}
	return false
}

func (c *Class) isRedirector() bool {
	return c.dir != nil && c.IsChildOf(c.dir.RedirectorClass)
}

// Bind links a loaded class to the nearest native constructor and
// regeneration hook of its super chain.
func (c *Class) Bind() {
	c.bound = true
	for cur := c.Super; cur != nil; cur = cur.Super {
		if c.construct == nil && cur.construct != nil {
			c.construct = cur.construct
		}
		if c.regenerate == nil && cur.regenerate != nil {
			c.regenerate = cur.regenerate
		}
	}
}

// IsBound reports whether Bind ran, or the class is intrinsic.
func (c *Class) IsBound() bool { return c.bound }

// ApplySerializedFlags merges the ClassFlags property of a loaded class
// object into the descriptor.
func (c *Class) ApplySerializedFlags() {
	v, ok := c.obj.Prop(ClassFlagsProperty)
	if !ok {
		return
	}
	if n, ok := v.(int32); ok {
		c.Flags |= ClassFlags(uint32(n)) & SerializedClassFlags
	}
}

// DefaultObject returns the class default object, creating it on first use
// with the super class's default object as template.
func (c *Class) DefaultObject() (*Object, error) {
	if c.defaultObject != nil {
		return c.defaultObject, nil
	}
	var template *Object
	if c.Super != nil {
		t, err := c.Super.DefaultObject()
		if err != nil {
			return nil, err
		}
		template = t
	}
	cdo, err := c.dir.NewObject(c, c.obj.outer, DefaultObjectPrefix+c.Name(), FlagPublic|FlagClassDefaultObject, template)
	if err != nil {
		return nil, err
	}
	c.defaultObject = cdo
	return cdo, nil
}

// SetDefaultObject installs a default object loaded from a package.
func (c *Class) SetDefaultObject(obj *Object) { c.defaultObject = obj }

// Regenerate runs the regeneration hook of a regenerable class.
func (c *Class) Regenerate(cdo *Object) error {
	if c.regenerate == nil {
		return nil
	}
	return c.regenerate(cdo)
}

// IsDefaultObjectName reports whether name is a class default object name.
func IsDefaultObjectName(name string) bool {
	return len(name) >= len(DefaultObjectPrefix) && strings.EqualFold(name[:len(DefaultObjectPrefix)], DefaultObjectPrefix)
}
