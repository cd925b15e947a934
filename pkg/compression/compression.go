// Package compression implements the codecs a package body may be stored with.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Method is the codec identifier stored in a package summary's compression flags.
type Method uint32

const (
	MethodNone Method = 0x00
	MethodZlib Method = 0x01
	MethodGzip Method = 0x02
	MethodZstd Method = 0x04

	methodMask = MethodZlib | MethodGzip | MethodZstd
)

// MethodFromFlags extracts the codec from summary compression flags.
func MethodFromFlags(flags uint32) (Method, error) {
	m := Method(flags) & methodMask
	switch m {
	case MethodNone, MethodZlib, MethodGzip, MethodZstd:
		return m, nil
	default:
		return MethodNone, fmt.Errorf("ambiguous compression flags 0x%x", flags)
	}
}

// String returns the codec name.
func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodZlib:
		return "zlib"
	case MethodGzip:
		return "gzip"
	case MethodZstd:
		return "zstd"
	default:
		return fmt.Sprintf("method(0x%x)", uint32(m))
	}
}

// ParseMethod maps a codec name to a Method.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "", "none":
		return MethodNone, nil
	case "zlib":
		return MethodZlib, nil
	case "gzip":
		return MethodGzip, nil
	case "zstd":
		return MethodZstd, nil
	default:
		return MethodNone, fmt.Errorf("unknown compression method: %s", name)
	}
}

// Compressor compresses and decompresses whole blocks.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	// Decompress inflates data; sizeHint is the expected output length
	// (0 if unknown) and a mismatch is an error.
	Decompress(data []byte, sizeHint int) ([]byte, error)
	Method() Method
}

// New creates the compressor for a method.
func New(m Method) (Compressor, error) {
	switch m {
	case MethodNone:
		return noOp{}, nil
	case MethodZlib:
		return streamCompressor{method: MethodZlib}, nil
	case MethodGzip:
		return streamCompressor{method: MethodGzip}, nil
	case MethodZstd:
		return NewZstdCompressor()
	default:
		return nil, fmt.Errorf("unsupported compression method: %s", m)
	}
}

type noOp struct{}

func (noOp) Compress(data []byte) ([]byte, error) { return data, nil }

func (noOp) Decompress(data []byte, sizeHint int) ([]byte, error) {
	return checkSize(data, sizeHint)
}

func (noOp) Method() Method { return MethodNone }

// streamCompressor covers the zlib and gzip framings.
type streamCompressor struct {
	method Method
}

func (c streamCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	if c.method == MethodZlib {
		w = zlib.NewWriter(&buf)
	} else {
		w = gzip.NewWriter(&buf)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write %s data: %w", c.method, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s writer: %w", c.method, err)
	}
	return buf.Bytes(), nil
}

func (c streamCompressor) Decompress(data []byte, sizeHint int) ([]byte, error) {
	var r io.ReadCloser
	var err error
	if c.method == MethodZlib {
		r, err = zlib.NewReader(bytes.NewReader(data))
	} else {
		r, err = gzip.NewReader(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s reader: %w", c.method, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate %s data: %w", c.method, err)
	}
	return checkSize(out, sizeHint)
}

func (c streamCompressor) Method() Method { return c.method }

// ZstdCompressor reuses one encoder and decoder.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a zstd compressor at the default level.
func NewZstdCompressor() (*ZstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

// Compress compresses data using zstd.
func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress decompresses zstd data.
func (c *ZstdCompressor) Decompress(data []byte, sizeHint int) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, make([]byte, 0, sizeHint))
	if err != nil {
		return nil, fmt.Errorf("failed to inflate zstd data: %w", err)
	}
	return checkSize(out, sizeHint)
}

// Method returns MethodZstd.
func (c *ZstdCompressor) Method() Method { return MethodZstd }

// Close releases the encoder and decoder.
func (c *ZstdCompressor) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// Close closes a compressor if it holds resources.
func Close(c Compressor) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}

func checkSize(out []byte, sizeHint int) ([]byte, error) {
	if sizeHint > 0 && len(out) != sizeHint {
		return nil, fmt.Errorf("decompressed %d bytes, expected %d", len(out), sizeHint)
	}
	return out, nil
}
