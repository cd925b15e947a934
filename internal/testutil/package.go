package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/property"
	"github.com/package-linker/internal/storage"
	"github.com/package-linker/pkg/compression"
)

// PackageBuilder assembles package files for tests. Payloads written with
// Props share the package's name table.
type PackageBuilder struct {
	names *pkgfile.NameIndexer
	file  pkgfile.File
	opts  pkgfile.AssembleOptions
}

// NewPackageBuilder starts a cooked (editor-data-free) package at the
// latest file version.
func NewPackageBuilder() *PackageBuilder {
	b := &PackageBuilder{names: pkgfile.NewNameIndexer(nil)}
	b.file.Summary = pkgfile.Summary{
		FileVersion:  pkgfile.FileVersionLatest,
		PackageFlags: pkgfile.PkgFilterEditorOnly,
	}
	return b
}

// Editor keeps editor-only data, as packages saved by the editor do.
func (b *PackageBuilder) Editor() *PackageBuilder {
	b.file.Summary.PackageFlags &^= pkgfile.PkgFilterEditorOnly
	return b
}

// Flags adds package flags.
func (b *PackageBuilder) Flags(f uint32) *PackageBuilder {
	b.file.Summary.PackageFlags |= f
	return b
}

// Compress stores the body compressed with m.
func (b *PackageBuilder) Compress(m compression.Method, chunkSize int) *PackageBuilder {
	b.opts = pkgfile.AssembleOptions{Compression: m, ChunkSize: chunkSize}
	return b
}

// Summary gives direct access to the summary fields kept as given.
func (b *PackageBuilder) Summary() *pkgfile.Summary {
	return &b.file.Summary
}

// Import appends an import and returns its index.
func (b *PackageBuilder) Import(classPackage, className string, outer pkgfile.PackageIndex, name string) pkgfile.PackageIndex {
	b.file.Imports = append(b.file.Imports, pkgfile.ImportEntry{
		ClassPackage: classPackage,
		ClassName:    className,
		OuterIndex:   outer,
		ObjectName:   name,
	})
	return pkgfile.Import(len(b.file.Imports) - 1)
}

// PackageImport appends an import of a whole package.
func (b *PackageBuilder) PackageImport(name string) pkgfile.PackageIndex {
	return b.Import(object.CoreUObjectPackage, object.PackageClassName, pkgfile.Null(), name)
}

// ClassImport appends an import of a class declared in the package
// imported at pkg.
func (b *PackageBuilder) ClassImport(pkg pkgfile.PackageIndex, name string) pkgfile.PackageIndex {
	return b.Import(object.CoreUObjectPackage, object.ClassClassName, pkg, name)
}

// Export appends an export with the given payload. A nil payload is an
// empty property stream.
func (b *PackageBuilder) Export(e pkgfile.ExportEntry, payload []byte) pkgfile.PackageIndex {
	if payload == nil {
		payload = b.Props().Bytes()
	}
	b.file.Exports = append(b.file.Exports, e)
	b.file.Payloads = append(b.file.Payloads, payload)
	return pkgfile.Export(len(b.file.Exports) - 1)
}

// Depends sets the depends list of export i. Exports without one get an
// empty list.
func (b *PackageBuilder) Depends(export pkgfile.PackageIndex, deps ...pkgfile.PackageIndex) *PackageBuilder {
	for len(b.file.Depends) < len(b.file.Exports) {
		b.file.Depends = append(b.file.Depends, []pkgfile.PackageIndex{})
	}
	b.file.Depends[export.ExportSlot()] = deps
	return b
}

// Thumbnail adds a thumbnail for the object at objectPath.
func (b *PackageBuilder) Thumbnail(className, objectPath string, th pkgfile.Thumbnail) *PackageBuilder {
	b.file.Thumbnails = append(b.file.Thumbnails, pkgfile.ThumbnailData{
		ClassName: className, ObjectPath: objectPath, Thumbnail: th,
	})
	return b
}

// Props starts a property stream using the package's name table.
func (b *PackageBuilder) Props() *property.Encoder {
	return property.NewEncoder(b.names)
}

// Bytes assembles the package.
func (b *PackageBuilder) Bytes(t *testing.T) []byte {
	t.Helper()
	f := b.file
	f.Names = b.names.Table()
	if f.Depends != nil {
		for len(f.Depends) < len(f.Exports) {
			f.Depends = append(f.Depends, []pkgfile.PackageIndex{})
		}
	}
	data, err := pkgfile.Assemble(&f, b.opts)
	if err != nil {
		t.Fatalf("assemble package: %v", err)
	}
	return data
}

// Store writes the package into store under the key of packageName.
func (b *PackageBuilder) Store(t *testing.T, store storage.Storage, packageName string) []byte {
	t.Helper()
	data := b.Bytes(t)
	if err := store.Put(context.Background(), storage.KeyForPackage(packageName), bytes.NewReader(data)); err != nil {
		t.Fatalf("store package %s: %v", packageName, err)
	}
	return data
}

// LocalStore returns a local storage rooted in a temporary directory.
func LocalStore(t *testing.T) *storage.LocalStorage {
	t.Helper()
	s, err := storage.NewLocalStorage(TempDir(t))
	if err != nil {
		t.Fatalf("create local storage: %v", err)
	}
	return s
}
