package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-linker/pkg/config"
	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/model"
)

func TestParseDBType(t *testing.T) {
	tests := []struct {
		in      string
		want    DBType
		wantErr bool
	}{
		{in: "", want: DBTypeSQLite},
		{in: "sqlite3", want: DBTypeSQLite},
		{in: "postgresql", want: DBTypePostgres},
		{in: "postgres", want: DBTypePostgres},
		{in: "mysql", want: DBTypeMySQL},
		{in: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDBType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewGormDB_Unsupported(t *testing.T) {
	db, err := NewGormDB(config.DatabaseConfig{Type: "oracle"})
	assert.Nil(t, db)
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	repos, err := Open(ctx, config.DatabaseConfig{Type: "sqlite"})
	require.NoError(t, err)
	require.NotNil(t, repos)
	assert.NotNil(t, repos.Runs)
	assert.NotNil(t, repos.Dependencies)
	assert.NotNil(t, repos.Diagnostics)
	assert.NotNil(t, repos.DB())

	require.NoError(t, repos.HealthCheck(ctx))
	require.NoError(t, repos.Migrate(ctx), "migrating twice is harmless")
	assert.NoError(t, repos.Close())
}

func TestReports_ReadWhatGormWrote(t *testing.T) {
	ctx := context.Background()
	repos, err := Open(ctx, config.DatabaseConfig{Type: "sqlite"})
	require.NoError(t, err)
	defer repos.Close()

	require.NoError(t, repos.Dependencies.SaveDependencies(ctx, []model.Dependency{
		{SessionID: "s1", Package: "/Game/A", Export: "/Game/A.Top", Target: "/Game/Lib.Mid", TargetPackage: "/Game/Lib"},
		{SessionID: "s1", Package: "/Game/A", Export: "/Game/A.Top", Target: "/Game/A.Side", TargetPackage: "/Game/A"},
	}))
	require.NoError(t, repos.Diagnostics.SaveDiagnostics(ctx, []model.Diagnostic{
		{SessionID: "s1", Package: "/Game/A", Severity: model.SeverityError, Code: "IMPORT_RESOLUTION_ERROR", Message: "missing"},
		{SessionID: "s1", Package: "/Game/A", Severity: model.SeverityWarning, Message: "plain"},
	}))

	deps, diags := repos.Reports()
	dependents, err := deps.GetDependents(ctx, "/game/lib")
	require.NoError(t, err)
	require.Len(t, dependents, 1)
	assert.Equal(t, "/Game/A.Top", dependents[0].Export)

	counts, err := diags.CountByCode(ctx, "/Game/A")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"IMPORT_RESOLUTION_ERROR": 1}, counts)
}
