package linker

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
)

const hashBuckets = 256

func nameHash(s string) uint64 {
	return xxhash.Sum64String(strings.ToLower(s))
}

// shortPackageName strips the path of a long package name: /Game/Pkg -> Pkg.
func shortPackageName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func exportHash(objectName, className, classPackage string) int {
	h := nameHash(objectName) + 7*nameHash(className) + 31*nameHash(shortPackageName(classPackage))
	return int(h & (hashBuckets - 1))
}

func (l *Linker) hashExport(i int) {
	exp := &l.exports[i]
	bucket := exportHash(exp.ObjectName, l.exportClassName(i), l.exportClassPackage(i))
	exp.HashNext = l.hash[bucket]
	l.hash[bucket] = i
}

// exportClassName is the name of export i's class; a null class index
// means the export is itself a class.
func (l *Linker) exportClassName(i int) string {
	idx := l.exports[i].ClassIndex
	switch {
	case idx.IsImport():
		return l.imports[idx.ImportSlot()].ObjectName
	case idx.IsExport():
		return l.exports[idx.ExportSlot()].ObjectName
	default:
		return object.ClassClassName
	}
}

// exportClassPackage is the package declaring export i's class.
func (l *Linker) exportClassPackage(i int) string {
	idx := l.exports[i].ClassIndex
	switch {
	case idx.IsImport():
		outer := l.imports[idx.ImportSlot()].OuterIndex
		if outer.IsImport() {
			return l.imports[outer.ImportSlot()].ObjectName
		}
		return ""
	case idx.IsExport():
		return l.pkgName
	default:
		return object.CoreUObjectPackage
	}
}

func outerMatches(idx pkgfile.PackageIndex, outerIndex int) bool {
	if outerIndex < 0 {
		return idx.IsNull()
	}
	return idx.IsExport() && idx.ExportSlot() == outerIndex
}

// findHashed probes the hash chain for an export matching name, class and
// outer. With shortPackage the class packages compare by short name.
func (l *Linker) findHashed(objectName, className, classPackage string, outerIndex int, shortPackage bool) int {
	bucket := exportHash(objectName, className, classPackage)
	for j := l.hash[bucket]; j >= 0; j = l.exports[j].HashNext {
		exp := &l.exports[j]
		if !strings.EqualFold(exp.ObjectName, objectName) ||
			!strings.EqualFold(l.exportClassName(j), className) ||
			!outerMatches(exp.OuterIndex, outerIndex) {
			continue
		}
		pkg := l.exportClassPackage(j)
		if shortPackage {
			if strings.EqualFold(shortPackageName(pkg), shortPackageName(classPackage)) {
				return j
			}
		} else if strings.EqualFold(pkg, classPackage) {
			return j
		}
	}
	return -1
}

// FindExportIndex returns the export named objectName with the given class
// directly inside outerIndex (-1 for the package itself), or -1. An exact
// class match is preferred; otherwise any export whose class derives from
// the requested one is accepted.
func (l *Linker) FindExportIndex(className, classPackage, objectName string, outerIndex int) int {
	if j := l.findHashed(objectName, className, classPackage, outerIndex, false); j >= 0 {
		return j
	}

	want := l.ld.dir.FindClass(classPackage, className)
	if want == nil {
		return -1
	}
	for j := range l.exports {
		exp := &l.exports[j]
		if !strings.EqualFold(exp.ObjectName, objectName) || !outerMatches(exp.OuterIndex, outerIndex) {
			continue
		}
		classObj, err := l.IndexToObject(exp.ClassIndex)
		if err != nil {
			continue
		}
		var c *object.Class
		if exp.ClassIndex.IsNull() {
			c = l.ld.dir.ClassClass
		} else {
			c = classObj.AsClass()
		}
		if c != nil && c.IsChildOf(want) {
			return j
		}
	}
	return -1
}
