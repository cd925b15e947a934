package object

import (
	"sort"
	"strings"
	"sync"

	apperrors "github.com/package-linker/pkg/errors"
)

// CoreUObjectPackage is the compiled-in package declaring the core classes.
const CoreUObjectPackage = "/Script/CoreUObject"

// Core class names.
const (
	ObjectClassName       = "Object"
	StructClassName       = "Struct"
	ClassClassName        = "Class"
	ScriptStructClassName = "ScriptStruct"
	FunctionClassName     = "Function"
	EnumClassName         = "Enum"
	PackageClassName      = "Package"
	RedirectorClassName   = "ObjectRedirector"
	MetaDataClassName     = "MetaData"
)

type dirKey struct {
	outer *Object
	name  string
}

// Directory finds resident objects by outer and name, creates packages and
// holds the intrinsic class set. It is safe for concurrent lookups.
type Directory struct {
	mu      sync.RWMutex
	objects map[dirKey]*Object

	ObjectClass       *Class
	StructClass       *Class
	ClassClass        *Class
	ScriptStructClass *Class
	FunctionClass     *Class
	EnumClass         *Class
	PackageClass      *Class
	RedirectorClass   *Class
	MetaDataClass     *Class
}

// NewDirectory creates a directory holding /Script/CoreUObject and its
// intrinsic classes.
func NewDirectory() *Directory {
	d := &Directory{objects: make(map[dirKey]*Object)}

	core := &Object{name: CoreUObjectPackage, flags: FlagPublic | FlagStandalone, loaderIndex: -1,
		pkg: &PackageData{CompiledIn: true}}
	d.register(core)

	intrinsic := func(name string, super *Class) *Class {
		c := &Class{dir: d, Super: super, Flags: ClassIntrinsic, bound: true}
		c.obj = &Object{name: name, outer: core, flags: FlagPublic | FlagStandalone | FlagTransient,
			classInfo: c, loaderIndex: -1}
		if super != nil {
			c.obj.super = super.obj
		}
		d.register(c.obj)
		return c
	}
	d.ObjectClass = intrinsic(ObjectClassName, nil)
	d.StructClass = intrinsic(StructClassName, d.ObjectClass)
	d.ClassClass = intrinsic(ClassClassName, d.StructClass)
	d.ScriptStructClass = intrinsic(ScriptStructClassName, d.StructClass)
	d.FunctionClass = intrinsic(FunctionClassName, d.StructClass)
	d.EnumClass = intrinsic(EnumClassName, d.ObjectClass)
	d.PackageClass = intrinsic(PackageClassName, d.ObjectClass)
	d.RedirectorClass = intrinsic(RedirectorClassName, d.ObjectClass)
	d.MetaDataClass = intrinsic(MetaDataClassName, d.ObjectClass)

	for _, c := range []*Class{d.ObjectClass, d.StructClass, d.ClassClass, d.ScriptStructClass,
		d.FunctionClass, d.EnumClass, d.PackageClass, d.RedirectorClass, d.MetaDataClass} {
		c.obj.class = d.ClassClass
	}
	core.class = d.PackageClass
	return d
}

func keyFor(outer *Object, name string) dirKey {
	return dirKey{outer: outer, name: strings.ToLower(name)}
}

func (d *Directory) register(o *Object) {
	d.objects[keyFor(o.outer, o.name)] = o
}

// Find returns the resident object named name inside outer. A nil outer
// searches top-level packages.
func (d *Directory) Find(outer *Object, name string) *Object {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.objects[keyFor(outer, name)]
}

// FindPackage returns the resident package named name.
func (d *Directory) FindPackage(name string) *Object {
	return d.Find(nil, name)
}

// FindPath resolves a dotted path "Package.Outer.Name".
func (d *Directory) FindPath(path string) *Object {
	parts := strings.Split(path, ".")
	cur := d.FindPackage(parts[0])
	for _, p := range parts[1:] {
		if cur == nil {
			return nil
		}
		cur = d.Find(cur, p)
	}
	return cur
}

// FindClass returns the class named name declared in package pkg.
func (d *Directory) FindClass(pkg, name string) *Class {
	p := d.FindPackage(pkg)
	if p == nil {
		return nil
	}
	return d.Find(p, name).AsClass()
}

// CreatePackage returns the package named name, creating it if needed.
func (d *Directory) CreatePackage(name string) *Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.objects[keyFor(nil, name)]; ok {
		return p
	}
	p := &Object{name: name, class: d.PackageClass, flags: FlagPublic, loaderIndex: -1, pkg: &PackageData{}}
	d.register(p)
	return p
}

// ClassSpec describes a compiled-in class to register.
type ClassSpec struct {
	// Package defaults to CoreUObjectPackage.
	Package     string
	Name        string
	Super       *Class
	Flags       ClassFlags
	Constructor Constructor
	Regenerate  func(cdo *Object) error
}

// RegisterClass adds an intrinsic class. Its package is created and
// flagged compiled-in when missing.
func (d *Directory) RegisterClass(spec ClassSpec) (*Class, error) {
	if spec.Name == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "class name is required")
	}
	pkgName := spec.Package
	if pkgName == "" {
		pkgName = CoreUObjectPackage
	}
	pkg := d.CreatePackage(pkgName)
	pkg.pkg.CompiledIn = true

	super := spec.Super
	if super == nil {
		super = d.ObjectClass
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.objects[keyFor(pkg, spec.Name)]; exists {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "class %s.%s already registered", pkgName, spec.Name)
	}
	c := &Class{
		dir:        d,
		Super:      super,
		Flags:      spec.Flags | ClassIntrinsic,
		construct:  spec.Constructor,
		regenerate: spec.Regenerate,
		bound:      true,
	}
	c.obj = &Object{name: spec.Name, class: d.ClassClass, outer: pkg, flags: FlagPublic | FlagStandalone | FlagTransient,
		classInfo: c, super: super.obj, loaderIndex: -1}
	d.register(c.obj)
	return c, nil
}

func (c *Class) constructor() Constructor {
	for cur := c; cur != nil; cur = cur.Super {
		if cur.construct != nil {
			return cur.construct
		}
	}
	return nil
}

// NewObject constructs an instance of class inside outer, copying the
// template's properties. A compatible object already at that path is
// reinitialized in place; an incompatible one is a ClassConstructionError.
func (d *Directory) NewObject(class *Class, outer *Object, name string, flags Flags, template *Object) (*Object, error) {
	if class == nil {
		return nil, apperrors.Newf(apperrors.CodeClassConstruction, "cannot construct %s without a class", name)
	}
	if class.HasAnyFlags(ClassAbstract) && flags&FlagClassDefaultObject == 0 {
		return nil, apperrors.Newf(apperrors.CodeClassConstruction, "class %s is abstract", class.Name())
	}

	existing := d.Find(outer, name)
	if existing != nil && !existing.class.IsChildOf(class) {
		return nil, apperrors.Newf(apperrors.CodeClassConstruction,
			"cannot create %s %s: an object of class %s exists at that path",
			class.Name(), name, existing.class.Name())
	}

	obj := existing
	if obj == nil {
		obj = &Object{name: name, class: class, outer: outer, loaderIndex: -1}
	}
	obj.reset(flags, template)
	if class.IsChildOf(d.ClassClass) && obj.classInfo == nil {
		obj.classInfo = &Class{obj: obj, dir: d}
	}
	if class.IsChildOf(d.PackageClass) && obj.pkg == nil {
		obj.pkg = &PackageData{}
	}

	if ctor := obj.class.constructor(); ctor != nil {
		if err := ctor(obj); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeClassConstruction,
				"constructor of "+class.Name()+" failed for "+name, err)
		}
	}

	if existing == nil {
		d.mu.Lock()
		d.register(obj)
		d.mu.Unlock()
	}
	return obj, nil
}

// Remove unregisters obj and everything inside it.
func (d *Directory) Remove(obj *Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, o := range d.objects {
		if o == obj || isInside(o, obj) {
			delete(d.objects, k)
		}
	}
}

func isInside(o, outer *Object) bool {
	for cur := o.outer; cur != nil; cur = cur.outer {
		if cur == outer {
			return true
		}
	}
	return false
}

// Children returns the objects directly inside outer, sorted by name.
func (d *Directory) Children(outer *Object) []*Object {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Object
	for k, o := range d.objects {
		if k.outer == outer {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Len returns the number of resident objects.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.objects)
}
