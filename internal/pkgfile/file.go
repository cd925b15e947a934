package pkgfile

import (
	"github.com/package-linker/pkg/compression"
	apperrors "github.com/package-linker/pkg/errors"
)

// DefaultChunkSize is the uncompressed span covered by one compressed chunk.
const DefaultChunkSize = 128 * 1024

// File is a whole package held in memory: the tables plus every export's
// serialized bytes. It is what the encoder writes and Decode returns.
type File struct {
	Summary    Summary
	Names      NameTable
	Imports    []ImportEntry
	Exports    []ExportEntry
	Payloads   [][]byte
	Depends    [][]PackageIndex
	Thumbnails []ThumbnailData
}

// ThumbnailData pairs a thumbnail with the object it depicts.
type ThumbnailData struct {
	ClassName  string
	ObjectPath string
	Thumbnail
}

// AssembleOptions control encoding.
type AssembleOptions struct {
	Compression compression.Method
	ChunkSize   int
}

// Assemble encodes f. Counts, offsets, serial ranges and the compressed
// chunk map are computed; the remaining summary fields are kept as given.
func Assemble(f *File, opts AssembleOptions) ([]byte, error) {
	if len(f.Payloads) != 0 && len(f.Payloads) != len(f.Exports) {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "%d payloads for %d exports", len(f.Payloads), len(f.Exports))
	}
	if f.Depends != nil && len(f.Depends) != len(f.Exports) {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "%d depends lists for %d exports", len(f.Depends), len(f.Exports))
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	names := NewNameIndexer(f.Names)
	names.Ref(NoneName)
	for _, imp := range f.Imports {
		names.Ref(imp.ClassPackage)
		names.Ref(imp.ClassName)
		names.Ref(imp.ObjectName)
	}
	for _, exp := range f.Exports {
		names.Ref(exp.ObjectName)
	}

	s := f.Summary
	s.Tag = PackageTag
	s.NameCount = int32(len(names.Table()))
	s.ImportCount = int32(len(f.Imports))
	s.ExportCount = int32(len(f.Exports))
	s.CompressedChunks = nil
	if opts.Compression != compression.MethodNone {
		s.PackageFlags |= PkgStoreCompressed
		s.CompressionFlags = uint32(opts.Compression)
	} else {
		s.PackageFlags &^= PkgStoreCompressed
		s.CompressionFlags = 0
	}

	// Body length does not depend on where it starts.
	probe := layoutBody(f, &s, 0)
	if opts.Compression != compression.MethodNone {
		n := (len(probe.data) + chunkSize - 1) / chunkSize
		s.CompressedChunks = make([]CompressedChunk, n)
	}

	headerLen := len(encodeHeader(f, &s, names, nil))
	body := layoutBody(f, &s, int64(headerLen))
	s.TotalHeaderSize = int32(headerLen)
	s.DependsOffset = body.dependsOffset
	s.ThumbnailTableOffset = body.thumbnailTableOffset

	if opts.Compression == compression.MethodNone {
		header := encodeHeader(f, &s, names, body.serialOffsets)
		return append(header, body.data...), nil
	}

	c, err := compression.New(opts.Compression)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "unsupported compression", err)
	}
	defer compression.Close(c)

	var packed []byte
	next := int32(headerLen)
	for i := range s.CompressedChunks {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(body.data) {
			end = len(body.data)
		}
		out, err := c.Compress(body.data[start:end])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeIO, "compress chunk", err)
		}
		s.CompressedChunks[i] = CompressedChunk{
			UncompressedOffset: int32(headerLen + start),
			UncompressedSize:   int32(end - start),
			CompressedOffset:   next,
			CompressedSize:     int32(len(out)),
		}
		next += int32(len(out))
		packed = append(packed, out...)
	}

	header := encodeHeader(f, &s, names, body.serialOffsets)
	return append(header, packed...), nil
}

func encodeHeader(f *File, s *Summary, names *NameIndexer, serialOffsets []int64) []byte {
	// The first pass fixes the summary length; offsets are then known.
	for pass := 0; pass < 2; pass++ {
		w := NewWriter()
		s.Write(w)
		s.NameOffset = int32(w.Len())
		for _, n := range names.Table() {
			w.WriteText(n)
		}
		s.ImportOffset = int32(w.Len())
		for _, imp := range f.Imports {
			imp.Write(w, names)
		}
		s.ExportOffset = int32(w.Len())
		for i, exp := range f.Exports {
			if serialOffsets != nil {
				exp.SerialOffset = serialOffsets[i]
			}
			exp.SerialSize = int64(len(payload(f, i)))
			exp.Write(w, names)
		}
		if pass == 1 {
			return w.Bytes()
		}
	}
	return nil
}

func payload(f *File, i int) []byte {
	if len(f.Payloads) == 0 {
		return nil
	}
	return f.Payloads[i]
}

type bodyLayout struct {
	data                 []byte
	dependsOffset        int32
	thumbnailTableOffset int32
	serialOffsets        []int64
}

func layoutBody(f *File, s *Summary, base int64) bodyLayout {
	w := NewWriter()
	out := bodyLayout{serialOffsets: make([]int64, len(f.Exports))}

	if f.Depends != nil {
		out.dependsOffset = int32(base)
		for _, deps := range f.Depends {
			WriteDepends(w, deps)
		}
	}

	if len(f.Thumbnails) > 0 {
		entries := make([]ThumbnailEntry, len(f.Thumbnails))
		for i, t := range f.Thumbnails {
			entries[i] = ThumbnailEntry{
				ClassName:  t.ClassName,
				ObjectPath: t.ObjectPath,
				FileOffset: int32(base + int64(w.Len())),
			}
			t.Thumbnail.Write(w)
		}
		out.thumbnailTableOffset = int32(base + int64(w.Len()))
		WriteThumbnailTable(w, entries)
	}

	for i := range f.Exports {
		out.serialOffsets[i] = base + int64(w.Len())
		w.WriteBytes(payload(f, i))
	}

	if s.HasTrailingTag() {
		w.WriteUint32(PackageTag)
	}
	out.data = w.Bytes()
	return out
}

// Inflate returns the logical package image for a compressed package: the
// header as stored followed by every decompressed chunk.
func Inflate(r *Reader, s *Summary) ([]byte, error) {
	method, err := compression.MethodFromFlags(s.CompressionFlags)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFormat, "bad compression flags", err)
	}
	c, err := compression.New(method)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFormat, "unsupported compression", err)
	}
	defer compression.Close(c)

	pos := r.Tell()
	defer func() { _ = r.Seek(pos) }()

	if err := r.Seek(0); err != nil {
		return nil, err
	}
	image, err := r.ReadBytes(int(s.TotalHeaderSize))
	if err != nil {
		return nil, err
	}

	expect := s.TotalHeaderSize
	for i, ch := range s.CompressedChunks {
		if ch.UncompressedOffset != expect || ch.UncompressedSize < 0 || ch.CompressedSize < 0 {
			return nil, apperrors.Newf(apperrors.CodeFormat, "compressed chunk %d does not continue the package", i)
		}
		if err := r.Seek(int64(ch.CompressedOffset)); err != nil {
			return nil, err
		}
		raw, err := r.ReadBytes(int(ch.CompressedSize))
		if err != nil {
			return nil, err
		}
		out, err := c.Decompress(raw, int(ch.UncompressedSize))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeFormat, "corrupt compressed chunk", err)
		}
		image = append(image, out...)
		expect += ch.UncompressedSize
	}
	return image, nil
}

// Decode reads a complete package from memory without applying version
// policy. Compressed packages are inflated first.
func Decode(data []byte) (*File, error) {
	r := NewReader(NewByteStream(data))
	s, err := ReadSummary(r)
	if err != nil {
		return nil, err
	}
	if s.HasFlag(PkgStoreCompressed) {
		image, err := Inflate(r, s)
		if err != nil {
			return nil, err
		}
		r = NewReader(NewByteStream(image))
	}
	if s.HasTrailingTag() {
		if err := VerifyTrailingTag(r, s.Tag); err != nil {
			return nil, err
		}
	}

	f := &File{Summary: *s}
	b := Bounds{Imports: int(s.ImportCount), Exports: int(s.ExportCount)}

	if err := r.Seek(int64(s.NameOffset)); err != nil {
		return nil, err
	}
	if err := r.CheckCount("name", int64(s.NameCount), 4); err != nil {
		return nil, err
	}
	f.Names = make(NameTable, s.NameCount)
	for i := range f.Names {
		if f.Names[i], err = r.ReadText(); err != nil {
			return nil, err
		}
	}

	if err := r.Seek(int64(s.ImportOffset)); err != nil {
		return nil, err
	}
	if err := r.CheckCount("import", int64(s.ImportCount), importEntrySize); err != nil {
		return nil, err
	}
	f.Imports = make([]ImportEntry, s.ImportCount)
	for i := range f.Imports {
		if f.Imports[i], err = ReadImport(r, f.Names, b); err != nil {
			return nil, err
		}
	}

	if err := r.Seek(int64(s.ExportOffset)); err != nil {
		return nil, err
	}
	if err := r.CheckCount("export", int64(s.ExportCount), exportEntrySize); err != nil {
		return nil, err
	}
	f.Exports = make([]ExportEntry, s.ExportCount)
	for i := range f.Exports {
		if f.Exports[i], err = ReadExport(r, f.Names, b); err != nil {
			return nil, err
		}
	}

	if s.DependsOffset > 0 {
		if err := r.Seek(int64(s.DependsOffset)); err != nil {
			return nil, err
		}
		f.Depends = make([][]PackageIndex, s.ExportCount)
		for i := range f.Depends {
			if f.Depends[i], err = ReadDepends(r, b); err != nil {
				return nil, err
			}
		}
	}

	if s.ThumbnailTableOffset > 0 {
		if err := r.Seek(int64(s.ThumbnailTableOffset)); err != nil {
			return nil, err
		}
		entries, err := ReadThumbnailTable(r)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if err := r.Seek(int64(e.FileOffset)); err != nil {
				return nil, err
			}
			t, err := ReadThumbnail(r)
			if err != nil {
				return nil, err
			}
			f.Thumbnails = append(f.Thumbnails, ThumbnailData{ClassName: e.ClassName, ObjectPath: e.ObjectPath, Thumbnail: *t})
		}
	}

	f.Payloads = make([][]byte, len(f.Exports))
	for i, exp := range f.Exports {
		if err := r.Seek(exp.SerialOffset); err != nil {
			return nil, err
		}
		if f.Payloads[i], err = r.ReadBytes(int(exp.SerialSize)); err != nil {
			return nil, err
		}
	}
	return f, nil
}
