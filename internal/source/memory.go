package source

import "github.com/package-linker/internal/pkgfile"

// Memory is a source over a byte slice; every span is resident.
type Memory struct {
	*pkgfile.ByteStream
}

// NewMemory wraps data.
func NewMemory(data []byte) *Memory {
	return &Memory{ByteStream: pkgfile.NewByteStream(data)}
}

// Precache always succeeds.
func (m *Memory) Precache(offset, size int64) bool { return true }

// Close drops the data.
func (m *Memory) Close() error {
	m.Reset(nil)
	return nil
}
