package pkgfile

import (
	"fmt"

	apperrors "github.com/package-linker/pkg/errors"
)

// CompressedChunk maps a span of the logical (uncompressed) package onto
// the compressed bytes stored in the file.
type CompressedChunk struct {
	UncompressedOffset int32
	UncompressedSize   int32
	CompressedOffset   int32
	CompressedSize     int32
}

// Summary is the fixed header at offset zero.
type Summary struct {
	Tag                  uint32
	FileVersion          int32
	LicenseeVersion      int32
	CustomVersions       []CustomVersion
	TotalHeaderSize      int32
	FolderName           Text
	PackageFlags         uint32
	NameCount            int32
	NameOffset           int32
	ExportCount          int32
	ExportOffset         int32
	ImportCount          int32
	ImportOffset         int32
	DependsOffset        int32
	ThumbnailTableOffset int32
	GUID                 GUID
	CompressionFlags     uint32
	CompressedChunks     []CompressedChunk
}

// HasFlag reports whether every bit of flag is set.
func (s *Summary) HasFlag(flag uint32) bool {
	return s.PackageFlags&flag == flag
}

// ReadSummary decodes the summary at the current position. Only the tag is
// checked here; Validate applies the version policy.
func ReadSummary(r *Reader) (*Summary, error) {
	s := &Summary{}
	var err error

	if s.Tag, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if s.Tag == PackageTagSwapped {
		return nil, apperrors.New(apperrors.CodeFormat, "package has foreign byte order")
	}
	if s.Tag != PackageTag {
		return nil, apperrors.Newf(apperrors.CodeFormat, "bad package tag 0x%08x", s.Tag)
	}
	if s.FileVersion, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if s.LicenseeVersion, err = r.ReadInt32(); err != nil {
		return nil, err
	}

	n, err := r.ReadCount("custom version", 20)
	if err != nil {
		return nil, err
	}
	s.CustomVersions = make([]CustomVersion, n)
	for i := range s.CustomVersions {
		if s.CustomVersions[i].Key, err = r.ReadGUID(); err != nil {
			return nil, err
		}
		if s.CustomVersions[i].Version, err = r.ReadInt32(); err != nil {
			return nil, err
		}
	}

	if s.TotalHeaderSize, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if s.FolderName, err = r.ReadText(); err != nil {
		return nil, err
	}
	if s.PackageFlags, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	for _, dst := range []*int32{
		&s.NameCount, &s.NameOffset,
		&s.ExportCount, &s.ExportOffset,
		&s.ImportCount, &s.ImportOffset,
		&s.DependsOffset, &s.ThumbnailTableOffset,
	} {
		if *dst, err = r.ReadInt32(); err != nil {
			return nil, err
		}
	}
	if s.GUID, err = r.ReadGUID(); err != nil {
		return nil, err
	}
	if s.CompressionFlags, err = r.ReadUint32(); err != nil {
		return nil, err
	}

	n, err = r.ReadCount("compressed chunk", 16)
	if err != nil {
		return nil, err
	}
	s.CompressedChunks = make([]CompressedChunk, n)
	for i := range s.CompressedChunks {
		c := &s.CompressedChunks[i]
		for _, dst := range []*int32{&c.UncompressedOffset, &c.UncompressedSize, &c.CompressedOffset, &c.CompressedSize} {
			if *dst, err = r.ReadInt32(); err != nil {
				return nil, err
			}
		}
	}

	if err := s.checkLayout(r.Stream().TotalSize()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Summary) checkLayout(size int64) error {
	if s.TotalHeaderSize < 0 || (!s.HasFlag(PkgStoreCompressed) && int64(s.TotalHeaderSize) > size) {
		return apperrors.Newf(apperrors.CodeFormat, "header size %d outside package", s.TotalHeaderSize)
	}
	tables := []struct {
		name          string
		count, offset int32
	}{
		{"name", s.NameCount, s.NameOffset},
		{"import", s.ImportCount, s.ImportOffset},
		{"export", s.ExportCount, s.ExportOffset},
	}
	for _, t := range tables {
		if t.count < 0 {
			return apperrors.Newf(apperrors.CodeFormat, "negative %s count", t.name)
		}
		if t.count > 0 && (t.offset <= 0 || t.offset > s.TotalHeaderSize) {
			return apperrors.Newf(apperrors.CodeFormat, "%s table offset %d outside header", t.name, t.offset)
		}
	}
	return nil
}

// Write encodes the summary. Decoding then encoding yields identical bytes.
func (s *Summary) Write(w *Writer) {
	w.WriteUint32(s.Tag)
	w.WriteInt32(s.FileVersion)
	w.WriteInt32(s.LicenseeVersion)
	w.WriteInt32(int32(len(s.CustomVersions)))
	for _, cv := range s.CustomVersions {
		w.WriteGUID(cv.Key)
		w.WriteInt32(cv.Version)
	}
	w.WriteInt32(s.TotalHeaderSize)
	w.WriteText(s.FolderName)
	w.WriteUint32(s.PackageFlags)
	for _, v := range []int32{
		s.NameCount, s.NameOffset,
		s.ExportCount, s.ExportOffset,
		s.ImportCount, s.ImportOffset,
		s.DependsOffset, s.ThumbnailTableOffset,
	} {
		w.WriteInt32(v)
	}
	w.WriteGUID(s.GUID)
	w.WriteUint32(s.CompressionFlags)
	w.WriteInt32(int32(len(s.CompressedChunks)))
	for _, c := range s.CompressedChunks {
		w.WriteInt32(c.UncompressedOffset)
		w.WriteInt32(c.UncompressedSize)
		w.WriteInt32(c.CompressedOffset)
		w.WriteInt32(c.CompressedSize)
	}
}

// ValidationPolicy describes the loader the package must be compatible with.
type ValidationPolicy struct {
	// EditorData is true when the loader keeps editor-only data.
	EditorData     bool
	CustomVersions CustomVersionRegistry
}

// Validate applies version and flag checks. Unknown custom versions are
// reported as warnings, everything else as a version error.
func (s *Summary) Validate(p ValidationPolicy) (warnings []string, err error) {
	if s.FileVersion < FileVersionOldestLoadable {
		return nil, apperrors.Newf(apperrors.CodeVersion,
			"package file version %d is too old (oldest loadable %d)", s.FileVersion, FileVersionOldestLoadable)
	}
	if s.FileVersion > FileVersionLatest {
		return nil, apperrors.Newf(apperrors.CodeVersion,
			"package file version %d is newer than this build (%d)", s.FileVersion, FileVersionLatest)
	}
	if s.LicenseeVersion > LicenseeVersionLatest {
		return nil, apperrors.Newf(apperrors.CodeVersion,
			"package licensee version %d is newer than this build (%d)", s.LicenseeVersion, LicenseeVersionLatest)
	}

	for _, cv := range s.CustomVersions {
		known, ok := p.CustomVersions[cv.Key]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("package uses unknown custom version %s", cv.Key))
			continue
		}
		if cv.Version > known.Version {
			return warnings, apperrors.Newf(apperrors.CodeVersion,
				"custom version %s (%s) is %d, this build supports %d", known.Name, cv.Key, cv.Version, known.Version)
		}
	}

	filtered := s.HasFlag(PkgFilterEditorOnly)
	if !p.EditorData && !filtered {
		return warnings, apperrors.New(apperrors.CodeVersion, "package contains editor-only data this loader cannot read")
	}
	if p.EditorData && filtered {
		return warnings, apperrors.New(apperrors.CodeVersion, "package was saved without editor-only data")
	}
	return warnings, nil
}

// HasTrailingTag reports whether this file version ends with the tag.
func (s *Summary) HasTrailingTag() bool {
	return s.FileVersion >= FileVersionMagicPostTag
}

// VerifyTrailingTag checks the last four bytes of the logical package and
// restores the read position.
func VerifyTrailingTag(r *Reader, tag uint32) error {
	size := r.Stream().TotalSize()
	if size < 4 {
		return apperrors.New(apperrors.CodeFormat, "package too small for trailing tag")
	}
	pos := r.Tell()
	if err := r.Seek(size - 4); err != nil {
		return err
	}
	got, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := r.Seek(pos); err != nil {
		return err
	}
	if got != tag {
		return apperrors.Newf(apperrors.CodeFormat, "trailing tag 0x%08x does not match 0x%08x; package is truncated or corrupt", got, tag)
	}
	return nil
}
