package source

import (
	"bufio"
	"errors"
	"io"
	"os"

	apperrors "github.com/package-linker/pkg/errors"
)

// File reads a package from disk through a buffered reader. Seeks within
// the buffered window reuse it.
type File struct {
	f    *os.File
	size int64
	br   *bufio.Reader
	pos  int64
}

const fileBufferSize = 64 * 1024

// OpenFile opens path.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "package file not found: %s", path)
		}
		return nil, apperrors.Wrap(apperrors.CodeIO, "failed to open package file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.Wrap(apperrors.CodeIO, "failed to stat package file", err)
	}
	return &File{f: f, size: info.Size(), br: bufio.NewReaderSize(f, fileBufferSize)}, nil
}

// Read implements io.Reader.
func (s *File) Read(p []byte) (int, error) {
	if s.f == nil {
		return 0, errors.New("source closed")
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}
	n, err := s.br.Read(p)
	s.pos += int64(n)
	return n, err
}

// Seek moves to an absolute position.
func (s *File) Seek(pos int64) error {
	if s.f == nil {
		return errors.New("source closed")
	}
	if pos < 0 || pos > s.size {
		return errors.New("seek out of range")
	}
	if pos >= s.pos && pos-s.pos <= int64(s.br.Buffered()) {
		if _, err := s.br.Discard(int(pos - s.pos)); err != nil {
			return err
		}
		s.pos = pos
		return nil
	}
	if _, err := s.f.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	s.br.Reset(s.f)
	s.pos = pos
	return nil
}

// Tell returns the position.
func (s *File) Tell() int64 { return s.pos }

// TotalSize returns the file size.
func (s *File) TotalSize() int64 { return s.size }

// Precache always succeeds; local reads are synchronous.
func (s *File) Precache(offset, size int64) bool { return true }

// Close closes the file.
func (s *File) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
