// Package writer emits CLI reports (package summaries, dependency lists,
// load timings) as JSON, optionally gzip-compressed.
package writer

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/package-linker/pkg/errors"
)

// Writer encodes one report value.
type Writer[T any] interface {
	Write(data T, w io.Writer) error
}

// JSONWriter writes a report as one JSON document.
type JSONWriter[T any] struct {
	// Indent is empty for compact output.
	Indent string
}

// NewJSONWriter returns a compact writer.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter returns a writer indenting by two spaces.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

func (j *JSONWriter[T]) Write(data T, w io.Writer) error {
	enc := json.NewEncoder(w)
	if j.Indent != "" {
		enc.SetIndent("", j.Indent)
	}
	if err := enc.Encode(data); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "encode report", err)
	}
	return nil
}

// GzipWriter writes compact JSON through gzip.
type GzipWriter[T any] struct {
	Level int
}

// NewGzipWriter uses the default compression level.
func NewGzipWriter[T any]() *GzipWriter[T] {
	return &GzipWriter[T]{Level: gzip.DefaultCompression}
}

func (g *GzipWriter[T]) Write(data T, w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, g.Level)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "gzip level", err)
	}
	if err := NewJSONWriter[T]().Write(data, zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "flush gzip report", err)
	}
	return nil
}

// ForPath picks the writer for an output path: gzip for ".gz" files,
// otherwise JSON, indented when pretty is set.
func ForPath[T any](path string, pretty bool) Writer[T] {
	if strings.HasSuffix(path, ".gz") {
		return NewGzipWriter[T]()
	}
	if pretty {
		return NewPrettyJSONWriter[T]()
	}
	return NewJSONWriter[T]()
}

// WriteFile writes data to path with the writer ForPath chooses.
func WriteFile[T any](data T, path string, pretty bool) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create report file", err)
	}
	if err := ForPath[T](path, pretty).Write(data, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "close report file", err)
	}
	return nil
}
