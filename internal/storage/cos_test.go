package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-linker/pkg/config"
	apperrors "github.com/package-linker/pkg/errors"
)

func TestNewCOSStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     COSConfig
		wantErr string
	}{
		{"missing bucket", COSConfig{Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"missing region", COSConfig{Bucket: "b", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"missing credentials", COSConfig{Bucket: "b", Region: "ap-guangzhou"}, "credentials are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewCOSStorage(&tt.cfg)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
		})
	}
}

func TestCOSStorage_Locate(t *testing.T) {
	s, err := NewCOSStorage(&COSConfig{
		Bucket:    "content-1250000000",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"https://content-1250000000.cos.ap-guangzhou.myqcloud.com/Game/Maps/Entry.pkg",
		s.Locate(KeyForPackage("/Game/Maps/Entry")))
}

func TestNewStorage(t *testing.T) {
	t.Run("cos", func(t *testing.T) {
		s, err := NewStorage(&config.StorageConfig{
			Type: "cos", Bucket: "b", Region: "r", SecretID: "id", SecretKey: "key",
		})
		require.NoError(t, err)
		assert.IsType(t, &COSStorage{}, s)
	})

	t.Run("local", func(t *testing.T) {
		s, err := NewStorage(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewStorage(&config.StorageConfig{Type: "s3"})
		assert.Error(t, err)
	})

	t.Run("nil", func(t *testing.T) {
		assert.Error(t, ValidateConfig(nil))
	})
}

func TestPackageKeys(t *testing.T) {
	assert.Equal(t, "Game/Maps/Entry.pkg", KeyForPackage("/Game/Maps/Entry"))
	assert.Equal(t, "/Game/Maps/Entry", PackageForKey("Game/Maps/Entry.pkg"))
}
