package linker

import (
	"fmt"
	"strings"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	apperrors "github.com/package-linker/pkg/errors"
)

// Names of the export holding package metadata, current and legacy.
const (
	packageMetaDataName = "PackageMetaData"
	legacyMetaDataName  = "MetaData"
)

func (l *Linker) filtered(exp *Export) bool {
	return (l.opts.Client && exp.NotForClient) || (l.opts.Server && exp.NotForServer)
}

func (l *Linker) failExport(i int, code, format string, args ...any) {
	exp := &l.exports[i]
	exp.LoadFailed = true
	sev := SeverityWarning
	if code != "" {
		sev = SeverityError
	}
	l.report(Diagnostic{Severity: sev, Code: code, Object: l.BuildPathName(pkgfile.Export(i)),
		Message: fmt.Sprintf(format, args...)})
}

// CreateExport returns the object of export i, creating it on first use.
// An export is instantiated at most once per session; failures yield nil
// and a diagnostic. The error is set only for failures that abort the load.
func (l *Linker) CreateExport(i int) (*object.Object, error) {
	exp := &l.exports[i]
	if exp.Object != nil || exp.LoadFailed || exp.ObjectName == pkgfile.NoneName {
		return exp.Object, nil
	}
	if l.filtered(exp) {
		return nil, nil
	}
	if exp.constructing {
		l.failExport(i, apperrors.CodeClassConstruction, "export is part of its own construction chain")
		return nil, nil
	}
	exp.constructing = true
	defer func() { l.exports[i].constructing = false }()

	dir := l.ld.dir

	// class
	var class *object.Class
	if exp.ClassIndex.IsNull() {
		class = dir.ClassClass
	} else {
		classObj, err := l.IndexToObject(exp.ClassIndex)
		if err != nil {
			return nil, err
		}
		if classObj.IsRedirector() {
			l.failExport(i, "", "class %s is a redirector", classObj.PathName())
			return nil, nil
		}
		class = classObj.AsClass()
	}
	exp = &l.exports[i]
	if class == nil || exp.LoadFailed {
		return nil, nil
	}

	// super
	var super *object.Object
	if !exp.SuperIndex.IsNull() {
		s, err := l.IndexToObject(exp.SuperIndex)
		if err != nil {
			return nil, err
		}
		exp = &l.exports[i]
		if s == nil {
			if !class.IsChildOf(dir.FunctionClass) {
				l.failExport(i, apperrors.CodeImportResolution, "failed to load super %s", l.BuildPathName(exp.SuperIndex))
				return nil, nil
			}
			l.warn(l.BuildPathName(pkgfile.Export(i)), "dropping missing super %s of function", l.BuildPathName(exp.SuperIndex))
		}
		super = s
	}

	flags := object.Flags(exp.ObjectFlags) & object.PersistentFlags
	isCDO := flags&object.FlagClassDefaultObject != 0

	if !class.HasAnyFlags(object.ClassIntrinsic) {
		if err := preloadObject(class.Object()); err != nil {
			return nil, err
		}
		class.ApplySerializedFlags()
	}
	if class.HasAnyFlags(object.ClassDeprecated) && !isCDO {
		l.warn(l.BuildPathName(pkgfile.Export(i)), "instance of deprecated class %s", class.Name())
	}
	if class.HasAnyFlags(object.ClassTransient) && !isCDO && flags&object.FlagArchetypeObject == 0 {
		l.warn(l.BuildPathName(pkgfile.Export(i)), "instance of transient class %s was saved", class.Name())
	}

	// outer
	exp = &l.exports[i]
	var outer *object.Object
	switch {
	case exp.ForcedExport && exp.OuterIndex.IsNull():
		outer = nil
	case exp.OuterIndex.IsNull():
		outer = l.root
	default:
		o, err := l.IndexToObject(exp.OuterIndex)
		if err != nil {
			return nil, err
		}
		if l.exports[i].LoadFailed {
			return nil, nil
		}
		if o == nil || o.IsRedirector() {
			l.failExport(i, "", "outer %s is missing or a redirector", l.BuildPathName(l.exports[i].OuterIndex))
			return nil, nil
		}
		outer = o
	}
	exp = &l.exports[i]
	if exp.Object != nil || exp.LoadFailed {
		// settled while resolving the outer chain
		return exp.Object, nil
	}

	// template
	var template *object.Object
	switch {
	case !exp.ArchetypeIndex.IsNull():
		t, err := l.IndexToObject(exp.ArchetypeIndex)
		if err != nil {
			return nil, err
		}
		template = t
	case isCDO:
		if class.Super != nil {
			t, err := class.Super.DefaultObject()
			if err != nil {
				l.failExport(i, apperrors.CodeClassConstruction, "%v", err)
				return nil, nil
			}
			template = t
		}
	default:
		t, err := class.DefaultObject()
		if err != nil {
			l.failExport(i, apperrors.CodeClassConstruction, "%v", err)
			return nil, nil
		}
		template = t
	}
	exp = &l.exports[i]
	if exp.Object != nil {
		return exp.Object, nil
	}

	obj := l.reuseResident(i, class, outer)
	if obj == nil {
		created, err := dir.NewObject(class, outer, exp.ObjectName, flags|object.LoadFlags, template)
		if err != nil {
			l.failExport(i, apperrors.CodeClassConstruction, "%v", err)
			return nil, nil
		}
		obj = created
	}
	exp = &l.exports[i]
	exp.Object = obj
	obj.SetLoader(l, i)
	if exp.OldClassName != "" {
		obj.SetOldClassName(exp.OldClassName)
	}
	l.ld.trackLoaded(obj)

	if isCDO {
		class.SetDefaultObject(obj)
		if class.HasAnyFlags(object.ClassRegenerable) {
			if err := l.Preload(obj); err != nil {
				return nil, err
			}
			if err := class.Regenerate(obj); err != nil {
				l.warn(obj.PathName(), "regenerating class %s: %v", class.Name(), err)
			}
		}
	}

	if super != nil && obj.IsA(dir.StructClass) {
		obj.SetSuperStruct(super)
	}
	if c := obj.AsClass(); c != nil {
		if err := l.Preload(obj); err != nil {
			return nil, err
		}
		c.ApplySerializedFlags()
		c.Bind()
	}
	return obj, nil
}

// reuseResident returns a resident object to bind export i to instead of
// constructing a new one, or nil.
func (l *Linker) reuseResident(i int, class *object.Class, outer *object.Object) *object.Object {
	exp := &l.exports[i]
	reuse := l.opts.Game || l.opts.Async || l.flags&LoadAsync != 0 || exp.ForcedExport ||
		l.opts.FindExportsInMemory || l.root.Package().FindExportsInMemoryFirst
	if !reuse {
		return nil
	}
	existing := l.ld.dir.Find(outer, exp.ObjectName)
	if existing == nil || existing.Class() != class {
		return nil
	}
	if owner, _ := existing.Loader(); owner == nil {
		// never populated by a linker
		existing.SetFlags(object.LoadFlags)
	} else if owner != object.Loader(l) {
		return nil
	}
	if outer != nil && outer.HasAnyFlags(object.FlagClassDefaultObject) {
		existing.SetFlags(object.LoadFlags)
	}
	return existing
}

// CreateExportAndPreload creates export i and preloads it when force is
// set or the object is a class, a template or a redirector.
func (l *Linker) CreateExportAndPreload(i int, force bool) (*object.Object, error) {
	obj, err := l.CreateExport(i)
	if err != nil || obj == nil {
		return obj, err
	}
	if force || obj.AsClass() != nil || obj.IsTemplate() || obj.IsRedirector() {
		if err := l.Preload(obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// LoadAllObjects creates every export, package metadata first, and marks
// the package fully loaded.
func (l *Linker) LoadAllObjects(force bool) error {
	if l.loadingAll {
		return nil
	}
	l.loadingAll = true
	defer func() { l.loadingAll = false }()

	meta := l.findTopLevelExport(packageMetaDataName)
	if meta < 0 {
		meta = l.findTopLevelExport(legacyMetaDataName)
	}
	if meta >= 0 {
		if _, err := l.CreateExportAndPreload(meta, force); err != nil {
			return err
		}
	}
	for i := range l.exports {
		if i == meta {
			continue
		}
		if _, err := l.CreateExportAndPreload(i, force); err != nil {
			return err
		}
	}
	l.root.Package().FullyLoaded = true
	return nil
}

func (l *Linker) findTopLevelExport(name string) int {
	for i := range l.exports {
		if l.exports[i].OuterIndex.IsNull() && strings.EqualFold(l.exports[i].ObjectName, name) {
			return i
		}
	}
	return -1
}

// Create finds the export named name of class inside outer and creates it.
// Unless LoadNoRedirects is set, a redirector of that name is followed when
// its destination is of the requested class.
func (l *Linker) Create(class *object.Class, name string, outer *object.Object, flags LoadFlags) (*object.Object, error) {
	outerIndex := -1
	if outer != nil && outer != outer.Outermost() {
		owner, idx := outer.Loader()
		if owner != object.Loader(l) {
			return nil, nil
		}
		outerIndex = idx
	}

	if i := l.FindExportIndex(class.Name(), class.PackageName(), name, outerIndex); i >= 0 {
		return l.CreateExport(i)
	}
	if flags&LoadNoRedirects != 0 {
		return nil, nil
	}

	ri := l.FindExportIndex(object.RedirectorClassName, object.CoreUObjectPackage, name, outerIndex)
	if ri < 0 {
		return nil, nil
	}
	redir, err := l.CreateExport(ri)
	if err != nil || redir == nil {
		return nil, err
	}
	if err := l.Preload(redir); err != nil {
		return nil, err
	}
	dest := redir.RedirectTarget()
	if dest == nil || !dest.IsA(class) {
		return nil, nil
	}
	l.ld.redirectorFollowed(l.pkgName, redir)
	return dest, nil
}

// FindExistingExport binds export i to a matching resident object without
// loading anything. Outers are matched first.
func (l *Linker) FindExistingExport(i int) *object.Object {
	exp := &l.exports[i]
	if exp.Object != nil || exp.LoadFailed {
		return exp.Object
	}

	var outer *object.Object
	switch {
	case exp.OuterIndex.IsNull():
		outer = l.root
	case exp.OuterIndex.IsExport():
		outer = l.FindExistingExport(exp.OuterIndex.ExportSlot())
	}
	if outer == nil {
		return nil
	}

	class := l.ld.dir.FindClass(l.exportClassPackage(i), l.exportClassName(i))
	if class == nil {
		return nil
	}
	obj := l.ld.dir.Find(outer, exp.ObjectName)
	if obj == nil || obj.Class() != class {
		return nil
	}
	if owner, _ := obj.Loader(); owner != nil && owner != object.Loader(l) {
		return nil
	}
	exp = &l.exports[i]
	exp.Object = obj
	obj.SetLoader(l, i)
	return obj
}

// DetachExport unbinds the object of export i from this linker.
func (l *Linker) DetachExport(i int) error {
	exp := &l.exports[i]
	if exp.Object == nil {
		return nil
	}
	owner, idx := exp.Object.Loader()
	if owner != object.Loader(l) || idx != i {
		return apperrors.Newf(apperrors.CodeInvalidInput, "%s is not bound to export %d of %s",
			exp.Object.PathName(), i, l.pkgName)
	}
	exp.Object.ClearLoader()
	exp.Object = nil
	return nil
}

// Detach unbinds every export, unregisters the linker and releases its
// source and tables.
func (l *Linker) Detach() {
	if l.detached {
		return
	}
	for i := range l.exports {
		if err := l.DetachExport(i); err != nil {
			l.logger.Warn("detach: %v", err)
		}
	}
	l.ld.registry.remove(l)
	l.ld.forget(l)
	l.release()
}
