// Package object is the minimal runtime object model the linker builds into:
// named objects with an outer chain, class descriptors, and a directory that
// finds resident objects by (outer, name).
package object

import (
	"strings"
)

// Flags are per-object state bits. The low persistent bits are stored in a
// package's export table; the rest only exist at runtime.
type Flags uint32

const (
	FlagPublic Flags = 1 << iota
	FlagStandalone
	FlagTransactional
	FlagClassDefaultObject
	FlagArchetypeObject
	FlagTransient
	FlagNeedLoad
	FlagNeedPostLoad
	FlagWasLoaded
)

// PersistentFlags is the subset of Flags kept in export entries.
const PersistentFlags = FlagPublic | FlagStandalone | FlagTransactional | FlagClassDefaultObject | FlagArchetypeObject

// LoadFlags marks an object created by a linker whose data is still pending.
const LoadFlags = FlagNeedLoad | FlagNeedPostLoad | FlagWasLoaded

// DefaultObjectPrefix prefixes the name of every class default object.
const DefaultObjectPrefix = "Default__"

// Loader is the linker that owns an object's serialized data.
type Loader interface {
	// Preload deserializes obj if it still needs loading.
	Preload(obj *Object) error
	// PackageName returns the name of the package the loader reads.
	PackageName() string
}

// Property is one deserialized property value. Value holds int32, float32,
// bool, string or *Object.
type Property struct {
	Name  string
	Value any
}

// PackageData is state carried by package objects.
type PackageData struct {
	Flags      uint32
	CompiledIn bool
	// FindExportsInMemoryFirst makes linkers reuse resident objects.
	FindExportsInMemoryFirst bool
	FullyLoaded              bool
}

// Object is a named node of the object graph.
type Object struct {
	name      string
	class     *Class
	outer     *Object
	flags     Flags
	archetype *Object
	props     []Property

	classInfo *Class
	super     *Object
	pkg       *PackageData

	loader       Loader
	loaderIndex  int
	oldClassName string
}

// Name returns the object's name.
func (o *Object) Name() string { return o.name }

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// Outer returns the object containing o, nil for packages.
func (o *Object) Outer() *Object { return o.outer }

// Outermost returns the package at the root of o's outer chain.
func (o *Object) Outermost() *Object {
	top := o
	for top.outer != nil {
		top = top.outer
	}
	return top
}

// PathName returns the dotted path from the package down to o.
func (o *Object) PathName() string {
	if o == nil {
		return "None"
	}
	var parts []string
	for cur := o; cur != nil; cur = cur.outer {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// FullName returns "ClassName Path".
func (o *Object) FullName() string {
	if o == nil {
		return "None"
	}
	return o.class.Name() + " " + o.PathName()
}

func (o *Object) String() string { return o.FullName() }

// Flags returns the current flags.
func (o *Object) Flags() Flags { return o.flags }

// HasAnyFlags reports whether any of f is set.
func (o *Object) HasAnyFlags(f Flags) bool { return o.flags&f != 0 }

// SetFlags sets f.
func (o *Object) SetFlags(f Flags) { o.flags |= f }

// ClearFlags clears f.
func (o *Object) ClearFlags(f Flags) { o.flags &^= f }

// Archetype returns the template the object was created from.
func (o *Object) Archetype() *Object { return o.archetype }

// IsA reports whether o's class is c or derives from it.
func (o *Object) IsA(c *Class) bool {
	return o != nil && o.class.IsChildOf(c)
}

// IsTemplate reports whether o or one of its outers is a class default
// object or an archetype.
func (o *Object) IsTemplate() bool {
	for cur := o; cur != nil; cur = cur.outer {
		if cur.HasAnyFlags(FlagClassDefaultObject | FlagArchetypeObject) {
			return true
		}
	}
	return false
}

// AsClass returns the class descriptor when o is a class object.
func (o *Object) AsClass() *Class {
	if o == nil {
		return nil
	}
	return o.classInfo
}

// SuperStruct returns the super struct of a struct or class object.
func (o *Object) SuperStruct() *Object { return o.super }

// SetSuperStruct links a struct or class object to its parent.
func (o *Object) SetSuperStruct(s *Object) {
	o.super = s
	if o.classInfo != nil && s != nil && s.classInfo != nil {
		o.classInfo.Super = s.classInfo
	}
}

// Package returns package state when o is a package.
func (o *Object) Package() *PackageData { return o.pkg }

// IsPackage reports whether o is a package object.
func (o *Object) IsPackage() bool { return o.pkg != nil }

// Loader returns the linker owning o and o's export index in it.
func (o *Object) Loader() (Loader, int) { return o.loader, o.loaderIndex }

// SetLoader associates o with export index of a linker.
func (o *Object) SetLoader(l Loader, index int) {
	o.loader = l
	o.loaderIndex = index
}

// ClearLoader detaches o from its linker.
func (o *Object) ClearLoader() {
	o.loader = nil
	o.loaderIndex = -1
}

// OldClassName is the class name o was saved with before a redirect.
func (o *Object) OldClassName() string { return o.oldClassName }

// SetOldClassName records the pre-redirect class name.
func (o *Object) SetOldClassName(name string) { o.oldClassName = name }

// Prop returns the named property value.
func (o *Object) Prop(name string) (any, bool) {
	for _, p := range o.props {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return nil, false
}

// SetProp sets or replaces the named property value.
func (o *Object) SetProp(name string, v any) {
	for i := range o.props {
		if strings.EqualFold(o.props[i].Name, name) {
			o.props[i].Value = v
			return
		}
	}
	o.props = append(o.props, Property{Name: name, Value: v})
}

// Props returns a copy of all property values in assignment order.
func (o *Object) Props() []Property {
	out := make([]Property, len(o.props))
	copy(out, o.props)
	return out
}

// IsRedirector reports whether o is an object redirector.
func (o *Object) IsRedirector() bool {
	return o != nil && o.class != nil && o.class.isRedirector()
}

// RedirectTarget returns the destination of a redirector, nil otherwise.
func (o *Object) RedirectTarget() *Object {
	if !o.IsRedirector() {
		return nil
	}
	v, ok := o.Prop(RedirectorDestinationProperty)
	if !ok {
		return nil
	}
	dest, _ := v.(*Object)
	return dest
}

func (o *Object) reset(flags Flags, template *Object) {
	o.flags = flags
	o.archetype = template
	o.props = nil
	if template != nil {
		o.props = template.Props()
	}
}
