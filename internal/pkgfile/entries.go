package pkgfile

import (
	"strings"

	apperrors "github.com/package-linker/pkg/errors"
)

// Encoded entry sizes.
const (
	importEntrySize = 28
	exportEntrySize = 76
)

// Bounds are the table sizes package indices are checked against.
type Bounds struct {
	Imports int
	Exports int
}

// ImportEntry names an object that lives in another package.
type ImportEntry struct {
	ClassPackage string
	ClassName    string
	OuterIndex   PackageIndex
	ObjectName   string
}

// ReadImport decodes one import entry.
func ReadImport(r *Reader, names NameTable, b Bounds) (ImportEntry, error) {
	var imp ImportEntry
	refs := make([]NameRef, 3)
	var err error

	if refs[0], err = r.ReadNameRef(); err != nil {
		return imp, err
	}
	if refs[1], err = r.ReadNameRef(); err != nil {
		return imp, err
	}
	if imp.OuterIndex, err = r.ReadPackageIndex(); err != nil {
		return imp, err
	}
	if refs[2], err = r.ReadNameRef(); err != nil {
		return imp, err
	}
	if err := imp.OuterIndex.CheckBounds(b.Imports, b.Exports); err != nil {
		return imp, err
	}
	if imp.ClassPackage, err = names.Resolve(refs[0]); err != nil {
		return imp, err
	}
	if imp.ClassName, err = names.Resolve(refs[1]); err != nil {
		return imp, err
	}
	if imp.ObjectName, err = names.Resolve(refs[2]); err != nil {
		return imp, err
	}
	if imp.OuterIndex.IsNull() && !strings.EqualFold(imp.ClassName, "Package") {
		return imp, apperrors.Newf(apperrors.CodeFormat,
			"import %s of class %s has no outer; only packages may be top level", imp.ObjectName, imp.ClassName)
	}
	return imp, nil
}

// Write encodes the entry.
func (imp ImportEntry) Write(w *Writer, names *NameIndexer) {
	w.WriteNameRef(names.Ref(imp.ClassPackage))
	w.WriteNameRef(names.Ref(imp.ClassName))
	w.WritePackageIndex(imp.OuterIndex)
	w.WriteNameRef(names.Ref(imp.ObjectName))
}

// ExportEntry describes an object stored in this package.
type ExportEntry struct {
	ClassIndex     PackageIndex
	SuperIndex     PackageIndex
	OuterIndex     PackageIndex
	ObjectName     string
	ArchetypeIndex PackageIndex
	ObjectFlags    uint32
	SerialSize     int64
	SerialOffset   int64
	ForcedExport   bool
	NotForClient   bool
	NotForServer   bool
	PackageGUID    GUID
	PackageFlags   uint32
}

// ReadExport decodes one export entry.
func ReadExport(r *Reader, names NameTable, b Bounds) (ExportEntry, error) {
	var exp ExportEntry
	var err error

	for _, dst := range []*PackageIndex{&exp.ClassIndex, &exp.SuperIndex, &exp.OuterIndex} {
		if *dst, err = r.ReadPackageIndex(); err != nil {
			return exp, err
		}
	}
	ref, err := r.ReadNameRef()
	if err != nil {
		return exp, err
	}
	if exp.ArchetypeIndex, err = r.ReadPackageIndex(); err != nil {
		return exp, err
	}
	if exp.ObjectFlags, err = r.ReadUint32(); err != nil {
		return exp, err
	}
	if exp.SerialSize, err = r.ReadInt64(); err != nil {
		return exp, err
	}
	if exp.SerialOffset, err = r.ReadInt64(); err != nil {
		return exp, err
	}
	for _, dst := range []*bool{&exp.ForcedExport, &exp.NotForClient, &exp.NotForServer} {
		if *dst, err = r.ReadBool(); err != nil {
			return exp, err
		}
	}
	if exp.PackageGUID, err = r.ReadGUID(); err != nil {
		return exp, err
	}
	if exp.PackageFlags, err = r.ReadUint32(); err != nil {
		return exp, err
	}

	for _, idx := range []PackageIndex{exp.ClassIndex, exp.SuperIndex, exp.OuterIndex, exp.ArchetypeIndex} {
		if err := idx.CheckBounds(b.Imports, b.Exports); err != nil {
			return exp, err
		}
	}
	if exp.ObjectName, err = names.Resolve(ref); err != nil {
		return exp, err
	}
	if exp.SerialSize < 0 || exp.SerialOffset < 0 {
		return exp, apperrors.Newf(apperrors.CodeFormat, "export %s has negative serial range", exp.ObjectName)
	}
	return exp, nil
}

// Write encodes the entry.
func (exp ExportEntry) Write(w *Writer, names *NameIndexer) {
	w.WritePackageIndex(exp.ClassIndex)
	w.WritePackageIndex(exp.SuperIndex)
	w.WritePackageIndex(exp.OuterIndex)
	w.WriteNameRef(names.Ref(exp.ObjectName))
	w.WritePackageIndex(exp.ArchetypeIndex)
	w.WriteUint32(exp.ObjectFlags)
	w.WriteInt64(exp.SerialSize)
	w.WriteInt64(exp.SerialOffset)
	w.WriteBool(exp.ForcedExport)
	w.WriteBool(exp.NotForClient)
	w.WriteBool(exp.NotForServer)
	w.WriteGUID(exp.PackageGUID)
	w.WriteUint32(exp.PackageFlags)
}

// ReadDepends decodes the dependency list of one export.
func ReadDepends(r *Reader, b Bounds) ([]PackageIndex, error) {
	n, err := r.ReadCount("depends", 4)
	if err != nil {
		return nil, err
	}
	deps := make([]PackageIndex, n)
	for i := range deps {
		if deps[i], err = r.ReadPackageIndex(); err != nil {
			return nil, err
		}
		if err := deps[i].CheckBounds(b.Imports, b.Exports); err != nil {
			return nil, err
		}
	}
	return deps, nil
}

// WriteDepends encodes the dependency list of one export.
func WriteDepends(w *Writer, deps []PackageIndex) {
	w.WriteInt32(int32(len(deps)))
	for _, d := range deps {
		w.WritePackageIndex(d)
	}
}
