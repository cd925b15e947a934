package linker

import (
	"fmt"
	"strings"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	apperrors "github.com/package-linker/pkg/errors"
)

func (imp *Import) resolved() bool {
	return imp.XObject != nil || (imp.SourceLinker != nil && imp.SourceIndex >= 0)
}

// VerifyImport resolves import i to a source linker and export slot, or
// to a resident object. Unresolvable imports leave one diagnostic; the
// returned error is set only when the crash-on-fail policy applies.
// Repeated calls give the same result.
func (l *Linker) VerifyImport(i int) error {
	imp := &l.imports[i]
	if imp.resolved() || imp.failed {
		return nil
	}
	if imp.ObjectName == pkgfile.NoneName || imp.ClassName == pkgfile.NoneName || imp.ClassPackage == pkgfile.NoneName {
		return nil
	}
	if imp.OuterIndex.IsNull() && !isPackageClass(imp.ClassName) {
		imp.failed = true
		l.report(Diagnostic{Severity: SeverityWarning, Code: apperrors.CodeImportResolution, Kind: KindBadOuter,
			Object: imp.ObjectName, Message: fmt.Sprintf("import of class %s has no outer", imp.ClassName)})
		return nil
	}

	reported, err := l.verifyImportInner(i)
	if err != nil {
		return err
	}
	imp = &l.imports[i]

	if !imp.resolved() && !reported && imp.SourceLinker != nil && !imp.OuterIndex.IsNull() &&
		!strings.EqualFold(imp.ClassName, object.RedirectorClassName) {
		if reported, err = l.followImportRedirector(i); err != nil {
			return err
		}
		imp = &l.imports[i]
	}

	if imp.resolved() {
		return nil
	}
	imp.failed = true
	if !reported {
		l.report(Diagnostic{Severity: SeverityError, Code: apperrors.CodeImportResolution, Kind: KindMissing,
			Object:  l.BuildPathName(pkgfile.Import(i)),
			Message: fmt.Sprintf("failed to resolve import of class %s.%s", imp.ClassPackage, imp.ClassName)})
	}
	if l.opts.CrashOnFail && !l.opts.Interactive {
		return apperrors.Newf(apperrors.CodeImportResolution, "%s: failed to resolve import %s",
			l.pkgName, l.BuildPathName(pkgfile.Import(i)))
	}
	return nil
}

// verifyImportInner does one resolution attempt. reported is set when a
// diagnostic for the import was already recorded.
func (l *Linker) verifyImportInner(i int) (reported bool, err error) {
	imp := &l.imports[i]

	if imp.OuterIndex.IsNull() {
		return false, l.verifyPackageImport(i)
	}

	if imp.OuterIndex.IsExport() {
		// Imports never live inside this package's own exports.
		return false, nil
	}
	outerSlot := imp.OuterIndex.ImportSlot()
	if err := l.VerifyImport(outerSlot); err != nil {
		return false, err
	}
	imp = &l.imports[i]
	outer := &l.imports[outerSlot]
	imp.SourceLinker = outer.SourceLinker

	if sl := imp.SourceLinker; sl != nil {
		outerIndex := -1
		if !outer.OuterIndex.IsNull() {
			if outer.SourceIndex < 0 {
				return false, nil
			}
			outerIndex = outer.SourceIndex
		}
		j := sl.findHashed(imp.ObjectName, imp.ClassName, imp.ClassPackage, outerIndex, false)
		if j < 0 {
			j = sl.findHashed(imp.ObjectName, imp.ClassName, imp.ClassPackage, outerIndex, true)
		}
		if j >= 0 {
			if sl.exports[j].ObjectFlags&uint32(object.FlagPublic) == 0 {
				return l.rejectPrivate(i), nil
			}
			imp.SourceIndex = j
			return false, nil
		}
	}

	// Not in a package file: the object may be compiled in.
	if obj := l.findIntrinsicImport(i); obj != nil {
		l.imports[i].XObject = obj
	}
	return false, nil
}

func (l *Linker) verifyPackageImport(i int) error {
	imp := &l.imports[i]
	name := imp.ObjectName

	nested := l.flags & nestedMask
	if l.gathering {
		nested |= LoadNoVerify
	}
	pkg, err := l.ld.loadNested(l.ctx, name, nested)
	if err != nil {
		if apperrors.IsNotFound(err) {
			l.logger.Debug("package %s not found: %v", name, err)
		} else {
			l.warn(name, "failed to load package: %v", err)
		}
		pkg = l.ld.dir.CreatePackage(name)
	}
	imp = &l.imports[i]
	imp.XObject = pkg
	imp.SourceLinker = l.ld.registry.Find(name)
	return nil
}

// rejectPrivate handles an import matching a non-public export. Any other
// reference to the import makes it unsafe to drop, which is an error;
// otherwise an interactive editor only warns.
func (l *Linker) rejectPrivate(i int) bool {
	imp := &l.imports[i]
	target := pkgfile.Import(i)
	referenced := false
	for j := range l.exports {
		exp := &l.exports[j]
		if exp.SuperIndex == target || exp.ClassIndex == target || exp.OuterIndex == target {
			referenced = true
			break
		}
	}
	if !referenced {
		for j := range l.imports {
			if j != i && l.imports[j].OuterIndex == target {
				referenced = true
				break
			}
		}
	}

	path := l.BuildPathName(target)
	imp.SourceIndex = -1
	imp.failed = true
	if !referenced && l.opts.interactiveEditor() {
		l.report(Diagnostic{Severity: SeverityWarning, Code: apperrors.CodeImportResolution, Kind: KindPrivate,
			Object: path + " [private]", Message: "reference to a private object"})
		return true
	}
	l.report(Diagnostic{Severity: SeverityError, Code: apperrors.CodeImportResolution, Kind: KindPrivate,
		Object: path, Message: "illegal reference to a private object"})
	return true
}

// findIntrinsicImport looks an import up among compiled-in objects.
func (l *Linker) findIntrinsicImport(i int) *object.Object {
	imp := &l.imports[i]
	dir := l.ld.dir
	class := dir.FindClass(imp.ClassPackage, imp.ClassName)
	if class == nil {
		return nil
	}
	var outer *object.Object
	if imp.OuterIndex.IsImport() {
		outer = l.imports[imp.OuterIndex.ImportSlot()].XObject
	}
	if outer == nil {
		return nil
	}
	obj := dir.Find(outer, imp.ObjectName)
	if obj == nil || !obj.IsA(class) {
		return nil
	}
	native := obj.HasAnyFlags(object.FlagPublic) && obj.HasAnyFlags(object.FlagTransient)
	if native || l.flags&LoadFindIfFail != 0 {
		return obj
	}
	return nil
}

// followImportRedirector retries an unresolved import as an object
// redirector of the same name and adopts the redirector's destination.
func (l *Linker) followImportRedirector(i int) (reported bool, err error) {
	imp := &l.imports[i]
	savedClass, savedPackage := imp.ClassName, imp.ClassPackage
	imp.ClassName = object.RedirectorClassName
	imp.ClassPackage = object.CoreUObjectPackage
	reported, err = l.verifyImportInner(i)
	imp = &l.imports[i]
	imp.ClassName, imp.ClassPackage = savedClass, savedPackage
	if err != nil || reported || imp.SourceIndex < 0 {
		imp.SourceIndex = -1
		imp.XObject = nil
		return reported, err
	}

	sl := imp.SourceLinker
	redir, err := sl.CreateExport(imp.SourceIndex)
	if err != nil {
		return false, err
	}
	imp = &l.imports[i]
	imp.SourceIndex = -1
	imp.XObject = nil
	if redir == nil {
		return false, nil
	}
	if err := sl.Preload(redir); err != nil {
		return false, err
	}

	dest := redir.RedirectTarget()
	path := l.BuildPathName(pkgfile.Import(i))
	switch {
	case dest == nil:
		return false, nil
	case dest.IsRedirector():
		l.report(Diagnostic{Severity: SeverityError, Code: apperrors.CodeImportResolution, Kind: KindCircularRedirect,
			Object: path, Message: "[circular redirection] redirector " + redir.PathName() + " points at another redirector"})
		return true, nil
	case !strings.EqualFold(dest.Class().Name(), savedClass) && !dest.HasAnyFlags(object.FlagClassDefaultObject):
		l.report(Diagnostic{Severity: SeverityError, Code: apperrors.CodeImportResolution, Kind: KindRedirectorMismatch,
			Object: path, Message: fmt.Sprintf("redirector %s leads to %s, expected class %s", redir.PathName(), dest.FullName(), savedClass)})
		return true, nil
	}

	if owner, idx := dest.Loader(); owner != nil {
		if dl, ok := owner.(*Linker); ok {
			imp.SourceLinker = dl
			imp.SourceIndex = idx
		}
	}
	imp.XObject = dest
	l.ld.redirectorFollowed(l.pkgName, redir)
	l.logger.Debug("import %s resolved through redirector %s", path, redir.PathName())
	return false, nil
}

// CreateImport returns the object import i refers to, resolving and
// creating it on first use.
func (l *Linker) CreateImport(i int) (*object.Object, error) {
	imp := &l.imports[i]
	if imp.XObject == nil && !imp.OuterIndex.IsNull() && l.opts.Game && !l.opts.Editor {
		imp.XObject = l.findImportInMemory(i)
	}
	if imp.XObject == nil {
		if err := l.VerifyImport(i); err != nil {
			return nil, err
		}
		imp = &l.imports[i]
		if imp.XObject == nil && imp.SourceLinker != nil && imp.SourceIndex >= 0 {
			obj, err := imp.SourceLinker.CreateExport(imp.SourceIndex)
			if err != nil {
				return nil, err
			}
			l.imports[i].XObject = obj
		}
	}
	obj := l.imports[i].XObject
	if l.opts.Editor && obj.IsRedirector() {
		if dest := obj.RedirectTarget(); dest != nil {
			return dest, nil
		}
	}
	return obj, nil
}

func (l *Linker) findImportInMemory(i int) *object.Object {
	imp := &l.imports[i]
	if imp.XObject != nil {
		return imp.XObject
	}
	var outer *object.Object
	if !imp.OuterIndex.IsNull() {
		if !imp.OuterIndex.IsImport() {
			return nil
		}
		if outer = l.findImportInMemory(imp.OuterIndex.ImportSlot()); outer == nil {
			return nil
		}
	}
	obj := l.ld.dir.Find(outer, imp.ObjectName)
	if obj == nil || !strings.EqualFold(obj.Class().Name(), imp.ClassName) {
		return nil
	}
	// objects still waiting for data go through the linker
	if obj.HasAnyFlags(object.FlagNeedLoad) {
		return nil
	}
	return obj
}

// IndexToObject maps a package index to an object, creating exports and
// imports as needed. Null maps to nil.
func (l *Linker) IndexToObject(idx pkgfile.PackageIndex) (*object.Object, error) {
	switch {
	case idx.IsExport():
		if idx.ExportSlot() >= len(l.exports) {
			return nil, apperrors.Newf(apperrors.CodeFormat, "%s out of range (%d exports)", idx, len(l.exports))
		}
		return l.CreateExport(idx.ExportSlot())
	case idx.IsImport():
		if idx.ImportSlot() >= len(l.imports) {
			return nil, apperrors.Newf(apperrors.CodeFormat, "%s out of range (%d imports)", idx, len(l.imports))
		}
		return l.CreateImport(idx.ImportSlot())
	default:
		return nil, nil
	}
}

// BuildPathName returns the dotted path of an import or export.
func (l *Linker) BuildPathName(idx pkgfile.PackageIndex) string {
	switch {
	case idx.IsImport():
		imp := &l.imports[idx.ImportSlot()]
		if imp.OuterIndex.IsNull() {
			return imp.ObjectName
		}
		return l.BuildPathName(imp.OuterIndex) + "." + imp.ObjectName
	case idx.IsExport():
		exp := &l.exports[idx.ExportSlot()]
		if exp.OuterIndex.IsNull() {
			return l.pkgName + "." + exp.ObjectName
		}
		return l.BuildPathName(exp.OuterIndex) + "." + exp.ObjectName
	default:
		return ""
	}
}
