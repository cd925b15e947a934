// Package storage locates package files in a content store: a local
// directory tree or a COS bucket.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/package-linker/pkg/config"
	apperrors "github.com/package-linker/pkg/errors"
)

// PackageExtension is appended to a package name to form its storage key.
const PackageExtension = ".pkg"

// Storage is a content store holding package files by key.
type Storage interface {
	// Open returns the content at key. A missing key yields a NotFound error.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores reader's content at key, replacing any previous content.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns every key under prefix that ends with PackageExtension.
	List(ctx context.Context, prefix string) ([]string, error)

	// Locate returns a human-readable location for key.
	Locate(key string) string
}

// LocalFiles is implemented by stores whose keys map to readable files.
type LocalFiles interface {
	FilePath(key string) string
}

// KeyForPackage maps a long package name such as /Game/Maps/Entry to its
// storage key Game/Maps/Entry.pkg.
func KeyForPackage(packageName string) string {
	return strings.TrimPrefix(packageName, "/") + PackageExtension
}

// PackageForKey is the inverse of KeyForPackage.
func PackageForKey(key string) string {
	return "/" + strings.TrimSuffix(strings.TrimPrefix(key, "/"), PackageExtension)
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage creates a Storage from configuration.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch StorageType(cfg.Type) {
	case StorageTypeCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return apperrors.New(apperrors.CodeConfigError, "storage config is nil")
	}

	switch StorageType(cfg.Type) {
	case "", StorageTypeLocal:
		if cfg.LocalPath == "" {
			return apperrors.New(apperrors.CodeConfigError, "local storage path is required")
		}
	case StorageTypeCOS:
		if cfg.Bucket == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS bucket is required")
		}
		if cfg.Region == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS credentials are required")
		}
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported storage type: %s", cfg.Type)
	}
	return nil
}
