package property

import (
	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
)

// Resolver maps a package index read from a payload to an object.
type Resolver func(idx pkgfile.PackageIndex) (*object.Object, error)

// ArchiveReader implements Reader over a package archive: names resolve
// through the package's name table and object references through resolve.
type ArchiveReader struct {
	r       *pkgfile.Reader
	names   pkgfile.NameTable
	resolve Resolver
	bounds  pkgfile.Bounds
}

// NewArchiveReader creates a Reader. Object references are checked against
// bounds before resolve is called.
func NewArchiveReader(r *pkgfile.Reader, names pkgfile.NameTable, bounds pkgfile.Bounds, resolve Resolver) *ArchiveReader {
	return &ArchiveReader{r: r, names: names, resolve: resolve, bounds: bounds}
}

func (a *ArchiveReader) ReadName() (string, error) {
	ref, err := a.r.ReadNameRef()
	if err != nil {
		return "", err
	}
	return a.names.Resolve(ref)
}

func (a *ArchiveReader) ReadInt32() (int32, error)     { return a.r.ReadInt32() }
func (a *ArchiveReader) ReadFloat32() (float32, error) { return a.r.ReadFloat32() }
func (a *ArchiveReader) ReadBool() (bool, error)       { return a.r.ReadBool() }
func (a *ArchiveReader) ReadString() (string, error)   { return a.r.ReadString() }

func (a *ArchiveReader) ReadObject() (*object.Object, error) {
	idx, err := a.r.ReadPackageIndex()
	if err != nil {
		return nil, err
	}
	if err := idx.CheckBounds(a.bounds.Imports, a.bounds.Exports); err != nil {
		return nil, err
	}
	if idx.IsNull() || a.resolve == nil {
		return nil, nil
	}
	return a.resolve(idx)
}

func (a *ArchiveReader) Skip(n int64) error {
	return a.r.Seek(a.r.Tell() + n)
}

func (a *ArchiveReader) Tell() int64 { return a.r.Tell() }
