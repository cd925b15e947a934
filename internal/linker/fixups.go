package linker

import (
	"strings"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/redirect"
)

func isTypeClass(className string) bool {
	return strings.EqualFold(className, object.ClassClassName) ||
		strings.EqualFold(className, object.ScriptStructClassName) ||
		strings.EqualFold(className, object.EnumClassName)
}

func isPackageClass(className string) bool {
	return strings.EqualFold(className, object.PackageClassName)
}

// fixupImportMap applies subobject and class redirects to the import
// table. Moving a type to another package may append a package import, in
// which case the scan restarts.
func (l *Linker) fixupImportMap() (Status, error) {
	for restart := true; restart; {
		restart = false
		for i := range l.imports {
			if l.fixupImport(i) {
				restart = true
				break
			}
		}
	}
	return StatusLoaded, nil
}

func (l *Linker) fixupImport(i int) (restart bool) {
	imp := &l.imports[i]

	if sub, ok := l.reg.Subobject(imp.ObjectName); ok && !imp.OuterIndex.IsNull() &&
		strings.EqualFold(imp.ClassName, sub.MatchClass) {
		l.logger.Debug("import %s: subobject renamed to %s", imp.ObjectName, sub.NewName)
		imp.ObjectName = sub.NewName
		return false
	}

	if isTypeClass(imp.ClassName) {
		target, ok := l.reg.Class(imp.ObjectName)
		if !ok || target == redirect.NoneName {
			return false
		}
		pkg, name := redirect.SplitClassPath(target)
		if pkg != "" && imp.OuterIndex.IsImport() {
			outer := &l.imports[imp.OuterIndex.ImportSlot()]
			if !strings.EqualFold(outer.ObjectName, pkg) {
				idx, added := l.findOrAddPackageImport(pkg)
				if idx >= 0 {
					// re-take the pointer, the table may have grown
					l.imports[i].OuterIndex = pkgfile.Import(idx)
					if added {
						return true
					}
				}
			}
		}
		imp = &l.imports[i]
		if !strings.EqualFold(imp.ObjectName, name) {
			l.logger.Debug("import %s %s renamed to %s", imp.ClassName, imp.ObjectName, name)
			imp.OldClassName = imp.ObjectName
			imp.ObjectName = name
		}
		return false
	}

	target, ok := l.reg.Class(imp.ClassName)
	if !ok || target == redirect.NoneName {
		return false
	}
	pkg, name := redirect.SplitClassPath(target)
	if pkg != "" {
		imp.ClassPackage = pkg
	}
	if strings.EqualFold(imp.ClassName, name) {
		return false
	}
	imp.OldClassName = imp.ClassName
	imp.ClassName = name
	if object.IsDefaultObjectName(imp.ObjectName) {
		imp.ObjectName = object.DefaultObjectPrefix + name
	}
	return false
}

// findOrAddPackageImport returns the package import named pkg, appending
// one when missing. Core packages are compiled in and never appended.
func (l *Linker) findOrAddPackageImport(pkg string) (idx int, added bool) {
	for j := range l.imports {
		imp := &l.imports[j]
		if imp.OuterIndex.IsNull() && isPackageClass(imp.ClassName) && strings.EqualFold(imp.ObjectName, pkg) {
			return j, false
		}
	}
	if strings.EqualFold(pkg, object.CoreUObjectPackage) {
		return -1, false
	}
	l.imports = append(l.imports, Import{
		ImportEntry: pkgfile.ImportEntry{
			ClassPackage: object.CoreUObjectPackage,
			ClassName:    object.PackageClassName,
			OuterIndex:   pkgfile.Null(),
			ObjectName:   pkg,
		},
		SourceIndex: -1,
	})
	return len(l.imports) - 1, true
}

// remapImports applies package-name and plugin redirects.
func (l *Linker) remapImports() (Status, error) {
	for i := range l.imports {
		imp := &l.imports[i]
		if n, ok := l.reg.GameName(imp.ClassPackage); ok {
			imp.ClassPackage = n
		}
		if !isPackageClass(imp.ClassName) {
			continue
		}
		if n, ok := l.reg.GameName(imp.ObjectName); ok {
			l.logger.Debug("import package %s redirected to %s", imp.ObjectName, n)
			imp.ObjectName = n
		}
		if n, ok := l.reg.PluginPath(imp.ObjectName); ok {
			l.logger.Debug("import package %s moved to %s", imp.ObjectName, n)
			imp.ObjectName = n
		}
	}
	return StatusLoaded, nil
}

// fixupExportMap applies subobject, instance-only and object-only
// redirects to the export table.
func (l *Linker) fixupExportMap() (Status, error) {
	for i := range l.exports {
		exp := &l.exports[i]
		className := l.exportClassName(i)

		if sub, ok := l.reg.Subobject(exp.ObjectName); ok && !exp.OuterIndex.IsNull() &&
			strings.EqualFold(className, sub.MatchClass) {
			if sub.NewName == redirect.NoneName {
				l.logger.Debug("export %s removed by subobject redirect", exp.ObjectName)
				exp.LoadFailed = true
			} else {
				exp.ObjectName = sub.NewName
			}
			continue
		}

		if object.IsDefaultObjectName(exp.ObjectName) {
			continue
		}
		if target, ok := l.reg.InstanceOnly(className); ok {
			l.redirectExportClass(i, className, target)
			continue
		}
		if target, ok := l.reg.ObjectOnly(l.pkgName + "." + exp.ObjectName); ok {
			l.redirectExportClass(i, className, target)
		}
	}
	return StatusLoaded, nil
}

func (l *Linker) redirectExportClass(i int, oldClass, target string) {
	exp := &l.exports[i]
	if target == redirect.NoneName {
		l.logger.Debug("export %s of class %s removed by redirect", exp.ObjectName, oldClass)
		exp.ClassIndex = pkgfile.Null()
		exp.OuterIndex = pkgfile.Null()
		exp.ObjectName = redirect.NoneName
		exp.OldClassName = oldClass
		return
	}
	pkg, name := redirect.SplitClassPath(target)
	if pkg == "" {
		pkg = l.exportClassPackage(i)
	}
	idx := l.createImportClassAndPackage(name, pkg)
	l.exports[i].ClassIndex = idx
	l.exports[i].OldClassName = oldClass
}

// FindImportClassAndPackage returns the class import named className
// declared in package pkg, or a null index.
func (l *Linker) FindImportClassAndPackage(className, pkg string) pkgfile.PackageIndex {
	for j := range l.imports {
		imp := &l.imports[j]
		if !strings.EqualFold(imp.ClassName, object.ClassClassName) || !strings.EqualFold(imp.ObjectName, className) {
			continue
		}
		if imp.OuterIndex.IsImport() && strings.EqualFold(l.imports[imp.OuterIndex.ImportSlot()].ObjectName, pkg) {
			return pkgfile.Import(j)
		}
	}
	return pkgfile.Null()
}

// createImportClassAndPackage returns an import of class className in pkg,
// adding the class and package imports when needed.
func (l *Linker) createImportClassAndPackage(className, pkg string) pkgfile.PackageIndex {
	if idx := l.FindImportClassAndPackage(className, pkg); !idx.IsNull() {
		return idx
	}
	pkgIdx := -1
	for j := range l.imports {
		imp := &l.imports[j]
		if imp.OuterIndex.IsNull() && isPackageClass(imp.ClassName) && strings.EqualFold(imp.ObjectName, pkg) {
			pkgIdx = j
			break
		}
	}
	if pkgIdx < 0 {
		l.imports = append(l.imports, Import{
			ImportEntry: pkgfile.ImportEntry{
				ClassPackage: object.CoreUObjectPackage,
				ClassName:    object.PackageClassName,
				OuterIndex:   pkgfile.Null(),
				ObjectName:   pkg,
			},
			SourceIndex: -1,
		})
		pkgIdx = len(l.imports) - 1
	}
	l.imports = append(l.imports, Import{
		ImportEntry: pkgfile.ImportEntry{
			ClassPackage: object.CoreUObjectPackage,
			ClassName:    object.ClassClassName,
			OuterIndex:   pkgfile.Import(pkgIdx),
			ObjectName:   className,
		},
		SourceIndex: -1,
	})
	return pkgfile.Import(len(l.imports) - 1)
}

// FindNewNameForClass returns the class a saved class name now maps to.
func (l *Linker) FindNewNameForClass(oldClass string, isInstance bool) (string, bool) {
	return l.reg.FindNewNameForClass(oldClass, isInstance)
}

// FindPreviousNamesForClass lists class names that redirect to current.
func (l *Linker) FindPreviousNamesForClass(current string, isInstance bool) []string {
	return l.reg.PreviousNamesForClass(current, isInstance)
}
