// Package pkgfile reads and writes the binary package container: the
// summary, the name, import, export, depends and thumbnail tables, and the
// compressed-chunk body.
package pkgfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"unicode/utf16"

	apperrors "github.com/package-linker/pkg/errors"
)

// Stream is the positioned byte stream the decoder reads from.
type Stream interface {
	io.Reader
	Seek(pos int64) error
	Tell() int64
	TotalSize() int64
}

// Reader decodes little-endian primitives from a Stream.
type Reader struct {
	s   Stream
	buf [8]byte
}

// NewReader creates a Reader over s.
func NewReader(s Stream) *Reader {
	return &Reader{s: s}
}

// Stream returns the underlying stream.
func (r *Reader) Stream() Stream {
	return r.s
}

// Tell returns the current position.
func (r *Reader) Tell() int64 {
	return r.s.Tell()
}

// Remaining returns the number of bytes between the position and the end.
func (r *Reader) Remaining() int64 {
	return r.s.TotalSize() - r.s.Tell()
}

// Seek moves to an absolute position; positions past the end are malformed.
func (r *Reader) Seek(pos int64) error {
	if pos < 0 || pos > r.s.TotalSize() {
		return apperrors.Newf(apperrors.CodeFormat, "offset %d outside package of %d bytes", pos, r.s.TotalSize())
	}
	if err := r.s.Seek(pos); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "seek failed", err)
	}
	return nil
}

func (r *Reader) fill(n int) error {
	if _, err := io.ReadFull(r.s, r.buf[:n]); err != nil {
		return ioError(err)
	}
	return nil
}

func ioError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apperrors.Wrap(apperrors.CodeIO, "unexpected end of package", err)
	}
	return apperrors.Wrap(apperrors.CodeIO, "read failed", err)
}

// ReadUint32 reads a uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.fill(4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

// ReadInt32 reads an int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads an int64.
func (r *Reader) ReadInt64() (int64, error) {
	if err := r.fill(8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(r.buf[:8])), nil
}

// ReadFloat32 reads an IEEE-754 float32.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadBool reads a 32-bit boolean; values other than 0 and 1 are malformed.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, apperrors.Newf(apperrors.CodeFormat, "invalid boolean value %d at offset %d", v, r.Tell()-4)
	}
}

// ReadGUID reads a 16-byte identifier.
func (r *Reader) ReadGUID() (GUID, error) {
	var g GUID
	if _, err := io.ReadFull(r.s, g[:]); err != nil {
		return g, ioError(err)
	}
	return g, nil
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || int64(n) > r.Remaining() {
		return nil, apperrors.Newf(apperrors.CodeFormat, "byte run of %d exceeds remaining %d", n, r.Remaining())
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.s, out); err != nil {
		return nil, ioError(err)
	}
	return out, nil
}

// ReadCount reads an element count and checks it is plausible for entries
// of at least minSize bytes each.
func (r *Reader) ReadCount(what string, minSize int) (int, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if err := r.CheckCount(what, int64(n), minSize); err != nil {
		return 0, err
	}
	return int(n), nil
}

// CheckCount validates an element count against the remaining bytes.
func (r *Reader) CheckCount(what string, n int64, minSize int) error {
	if n < 0 {
		return apperrors.Newf(apperrors.CodeFormat, "negative %s count %d", what, n)
	}
	if n*int64(minSize) > r.Remaining() {
		return apperrors.Newf(apperrors.CodeFormat, "%s count %d exceeds package size", what, n)
	}
	return nil
}

// ReadText reads a length-prefixed string. A positive length is a
// NUL-terminated Latin-1 run; a negative length is a NUL-terminated
// UTF-16LE run of -length code units.
func (r *Reader) ReadText() (Text, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return Text{}, err
	}
	switch {
	case n == 0:
		return Text{}, nil
	case n > 0:
		raw, err := r.ReadBytes(int(n))
		if err != nil {
			return Text{}, err
		}
		if raw[n-1] != 0 {
			return Text{}, apperrors.New(apperrors.CodeFormat, "narrow string missing terminator")
		}
		if n == 1 {
			return Text{Terminated: true}, nil
		}
		runes := make([]rune, n-1)
		for i, b := range raw[:n-1] {
			runes[i] = rune(b)
		}
		return Text{Value: string(runes)}, nil
	default:
		if n == math.MinInt32 {
			return Text{}, apperrors.New(apperrors.CodeFormat, "invalid wide string length")
		}
		units := int(-n)
		raw, err := r.ReadBytes(units * 2)
		if err != nil {
			return Text{}, err
		}
		codes := make([]uint16, units)
		for i := range codes {
			codes[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}
		if codes[units-1] != 0 {
			return Text{}, apperrors.New(apperrors.CodeFormat, "wide string missing terminator")
		}
		if !validUTF16(codes[:units-1]) {
			return Text{}, apperrors.New(apperrors.CodeFormat, "wide string contains unpaired surrogate")
		}
		return Text{Value: string(utf16.Decode(codes[:units-1])), Wide: true}, nil
	}
}

func validUTF16(codes []uint16) bool {
	for i := 0; i < len(codes); i++ {
		c := codes[i]
		switch {
		case c >= 0xD800 && c < 0xDC00:
			if i+1 >= len(codes) || codes[i+1] < 0xDC00 || codes[i+1] >= 0xE000 {
				return false
			}
			i++
		case c >= 0xDC00 && c < 0xE000:
			return false
		}
	}
	return true
}

// ReadString reads a Text and returns its value.
func (r *Reader) ReadString() (string, error) {
	t, err := r.ReadText()
	return t.Value, err
}

// ReadNameRef reads an (index, number) name reference.
func (r *Reader) ReadNameRef() (NameRef, error) {
	idx, err := r.ReadInt32()
	if err != nil {
		return NameRef{}, err
	}
	num, err := r.ReadInt32()
	if err != nil {
		return NameRef{}, err
	}
	return NameRef{Index: idx, Number: num}, nil
}

// ReadPackageIndex reads a raw package index.
func (r *Reader) ReadPackageIndex() (PackageIndex, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return Null(), err
	}
	return FromRaw(v), nil
}

// Writer encodes little-endian primitives into a buffer.
type Writer struct {
	buf bytes.Buffer
	tmp [8]byte
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteUint32 writes a uint32.
func (w *Writer) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.tmp[:4], v)
	w.buf.Write(w.tmp[:4])
}

// WriteInt32 writes an int32.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteInt64 writes an int64.
func (w *Writer) WriteInt64(v int64) {
	binary.LittleEndian.PutUint64(w.tmp[:8], uint64(v))
	w.buf.Write(w.tmp[:8])
}

// WriteFloat32 writes a float32.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteBool writes a 32-bit boolean.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint32(1)
	} else {
		w.WriteUint32(0)
	}
}

// WriteGUID writes a 16-byte identifier.
func (w *Writer) WriteGUID(g GUID) {
	w.buf.Write(g[:])
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// WriteText writes a string in the same encoding ReadText accepts. Narrow
// strings holding runes above U+00FF are promoted to wide.
func (w *Writer) WriteText(t Text) {
	if t.Value == "" && !t.Wide && !t.Terminated {
		w.WriteInt32(0)
		return
	}
	wide := t.Wide
	if !wide {
		for _, c := range t.Value {
			if c > 0xFF {
				wide = true
				break
			}
		}
	}
	if !wide {
		runes := []rune(t.Value)
		w.WriteInt32(int32(len(runes) + 1))
		for _, c := range runes {
			w.buf.WriteByte(byte(c))
		}
		w.buf.WriteByte(0)
		return
	}
	codes := utf16.Encode([]rune(t.Value))
	w.WriteInt32(-int32(len(codes) + 1))
	for _, c := range codes {
		binary.LittleEndian.PutUint16(w.tmp[:2], c)
		w.buf.Write(w.tmp[:2])
	}
	w.buf.Write([]byte{0, 0})
}

// WriteString writes a narrow-or-promoted string.
func (w *Writer) WriteString(s string) {
	w.WriteText(Text{Value: s})
}

// WriteNameRef writes an (index, number) name reference.
func (w *Writer) WriteNameRef(n NameRef) {
	w.WriteInt32(n.Index)
	w.WriteInt32(n.Number)
}

// WritePackageIndex writes a raw package index.
func (w *Writer) WritePackageIndex(i PackageIndex) {
	w.WriteInt32(i.Raw())
}

// Patch overwrites bytes at an absolute offset already written.
func (w *Writer) Patch(offset int, b []byte) {
	copy(w.buf.Bytes()[offset:], b)
}

// ByteStream is a Stream over an in-memory slice.
type ByteStream struct {
	data []byte
	pos  int64
}

// NewByteStream wraps data.
func NewByteStream(data []byte) *ByteStream {
	return &ByteStream{data: data}
}

// Read implements io.Reader.
func (b *ByteStream) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Seek moves to an absolute position.
func (b *ByteStream) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(b.data)) {
		return errors.New("seek out of range")
	}
	b.pos = pos
	return nil
}

// Tell returns the position.
func (b *ByteStream) Tell() int64 { return b.pos }

// TotalSize returns the data length.
func (b *ByteStream) TotalSize() int64 { return int64(len(b.data)) }

// Reset replaces the data and rewinds.
func (b *ByteStream) Reset(data []byte) {
	b.data = data
	b.pos = 0
}
