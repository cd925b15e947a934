package pkgfile

import (
	"fmt"

	apperrors "github.com/package-linker/pkg/errors"
)

type indexKind uint8

const (
	kindNull indexKind = iota
	kindImport
	kindExport
)

// PackageIndex refers to nothing, to an import slot or to an export slot.
// On disk it is a signed 32-bit value: 0 is null, -(i+1) is import i and
// i+1 is export i.
type PackageIndex struct {
	kind indexKind
	slot uint32
}

// Null returns the null index.
func Null() PackageIndex {
	return PackageIndex{}
}

// Import returns the index of import slot i.
func Import(i int) PackageIndex {
	return PackageIndex{kind: kindImport, slot: uint32(i)}
}

// Export returns the index of export slot i.
func Export(i int) PackageIndex {
	return PackageIndex{kind: kindExport, slot: uint32(i)}
}

// FromRaw decodes the on-disk representation.
func FromRaw(v int32) PackageIndex {
	switch {
	case v == 0:
		return Null()
	case v < 0:
		return PackageIndex{kind: kindImport, slot: uint32(-(int64(v) + 1))}
	default:
		return PackageIndex{kind: kindExport, slot: uint32(v - 1)}
	}
}

// Raw encodes the index for disk.
func (p PackageIndex) Raw() int32 {
	switch p.kind {
	case kindImport:
		return int32(-(int64(p.slot) + 1))
	case kindExport:
		return int32(p.slot + 1)
	default:
		return 0
	}
}

// IsNull reports whether p refers to nothing.
func (p PackageIndex) IsNull() bool { return p.kind == kindNull }

// IsImport reports whether p refers to an import.
func (p PackageIndex) IsImport() bool { return p.kind == kindImport }

// IsExport reports whether p refers to an export.
func (p PackageIndex) IsExport() bool { return p.kind == kindExport }

// ImportSlot returns the import slot; it panics for non-import indices.
func (p PackageIndex) ImportSlot() int {
	if p.kind != kindImport {
		panic(fmt.Sprintf("pkgfile: %s is not an import", p))
	}
	return int(p.slot)
}

// ExportSlot returns the export slot; it panics for non-export indices.
func (p PackageIndex) ExportSlot() int {
	if p.kind != kindExport {
		panic(fmt.Sprintf("pkgfile: %s is not an export", p))
	}
	return int(p.slot)
}

// String implements fmt.Stringer.
func (p PackageIndex) String() string {
	switch p.kind {
	case kindImport:
		return fmt.Sprintf("import(%d)", p.slot)
	case kindExport:
		return fmt.Sprintf("export(%d)", p.slot)
	default:
		return "null"
	}
}

// CheckBounds fails with a format error if p points outside the tables.
func (p PackageIndex) CheckBounds(numImports, numExports int) error {
	switch p.kind {
	case kindImport:
		if int64(p.slot) >= int64(numImports) {
			return apperrors.Newf(apperrors.CodeFormat, "%s out of range (%d imports)", p, numImports)
		}
	case kindExport:
		if int64(p.slot) >= int64(numExports) {
			return apperrors.Newf(apperrors.CodeFormat, "%s out of range (%d exports)", p, numExports)
		}
	}
	return nil
}
