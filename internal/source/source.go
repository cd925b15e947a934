// Package source provides the byte streams a load session reads packages
// from. Sources report whether a span is resident so that a time-budgeted
// session can yield instead of blocking on slow storage.
package source

import (
	"context"
	"io"

	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/storage"
	apperrors "github.com/package-linker/pkg/errors"
)

// ByteSource is a seekable package stream.
type ByteSource interface {
	pkgfile.Stream

	// Precache requests that [offset, offset+size) become resident and
	// reports whether it already is. It never blocks.
	Precache(offset, size int64) bool

	// Close releases the source.
	Close() error
}

// Open returns a source for key. Stores backed by local files are read
// synchronously from disk; anything else is downloaded, in the background
// when async is set.
func Open(ctx context.Context, store storage.Storage, key string, async bool) (ByteSource, error) {
	if lf, ok := store.(storage.LocalFiles); ok && !async {
		return OpenFile(lf.FilePath(key))
	}
	fetch := func(ctx context.Context) ([]byte, error) {
		rc, err := store.Open(ctx, key)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeIO, "failed to read "+store.Locate(key), err)
		}
		return data, nil
	}
	if async {
		return NewAsync(ctx, fetch), nil
	}
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	return NewMemory(data), nil
}
