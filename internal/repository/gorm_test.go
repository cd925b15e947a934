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

func setupTestRepos(t *testing.T) *Repositories {
	repos, err := Open(context.Background(), config.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestGormRunRepository(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	t.Run("GetRun_NotFound", func(t *testing.T) {
		run, err := repos.Runs.GetRun(ctx, "missing")
		assert.Nil(t, run)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("SaveRun_InsertThenUpdate", func(t *testing.T) {
		run := model.NewLoadRun("session-1", "/Game/Props")
		run.Phase = "SummaryParsed"
		require.NoError(t, repos.Runs.SaveRun(ctx, run))
		assert.NotZero(t, run.ID)

		run.Status = model.RunStatusLoaded
		run.Phase = "Finalized"
		run.Exports = 3
		run.Timings = map[string]int64{"ExportMapLoaded": 4}
		require.NoError(t, repos.Runs.SaveRun(ctx, run))

		got, err := repos.Runs.GetRun(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusLoaded, got.Status)
		assert.Equal(t, "Finalized", got.Phase)
		assert.Equal(t, 3, got.Exports)
		assert.Equal(t, map[string]int64{"ExportMapLoaded": 4}, got.Timings)
	})

	t.Run("ListRuns_NewestFirst", func(t *testing.T) {
		require.NoError(t, repos.Runs.SaveRun(ctx, model.NewLoadRun("session-2", "/Game/Props")))
		require.NoError(t, repos.Runs.SaveRun(ctx, model.NewLoadRun("session-3", "/Game/Other")))

		runs, err := repos.Runs.ListRuns(ctx, "/game/props", 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "session-2", runs[0].SessionID)
		assert.Equal(t, "session-1", runs[1].SessionID)

		runs, err = repos.Runs.ListRuns(ctx, "/Game/Props", 1)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

func TestGormDependencyRepository(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	first := []model.Dependency{
		{SessionID: "s1", Package: "/Game/A", Export: "Top", Target: "/Game/Lib.Mid", TargetPackage: "/Game/Lib"},
		{SessionID: "s1", Package: "/Game/A", Export: "Top", Target: "/Game/A.Side", TargetPackage: "/Game/A"},
		{SessionID: "s1", Package: "/Game/B", Export: "Use", Target: "/Game/Lib.Base", TargetPackage: "/Game/Lib"},
	}
	require.NoError(t, repos.Dependencies.SaveDependencies(ctx, first))
	require.NoError(t, repos.Dependencies.SaveDependencies(ctx, nil))

	t.Run("GetDependencies", func(t *testing.T) {
		deps, err := repos.Dependencies.GetDependencies(ctx, "/Game/A")
		require.NoError(t, err)
		assert.Equal(t, first[:2], deps)
	})

	t.Run("GetDependents_ExcludesSelf", func(t *testing.T) {
		deps, err := repos.Dependencies.GetDependents(ctx, "/Game/Lib")
		require.NoError(t, err)
		assert.Len(t, deps, 2)

		deps, err = repos.Dependencies.GetDependents(ctx, "/Game/A")
		require.NoError(t, err)
		assert.Empty(t, deps)
	})

	t.Run("SaveDependencies_ReplacesPackage", func(t *testing.T) {
		second := []model.Dependency{
			{SessionID: "s2", Package: "/game/a", Export: "Top", Target: "/Game/Lib.Base", TargetPackage: "/Game/Lib"},
		}
		require.NoError(t, repos.Dependencies.SaveDependencies(ctx, second))

		deps, err := repos.Dependencies.GetDependencies(ctx, "/Game/A")
		require.NoError(t, err)
		assert.Equal(t, second, deps)

		deps, err = repos.Dependencies.GetDependencies(ctx, "/Game/B")
		require.NoError(t, err)
		assert.Len(t, deps, 1)
	})
}

func TestGormDiagnosticRepository(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	diags := []model.Diagnostic{
		{SessionID: "s1", Package: "/Game/A", Severity: model.SeverityError, Code: apperrors.CodeImportResolution,
			Kind: "missing", Object: "/Script/Engine.Vanished", Message: "failed to resolve import"},
		{SessionID: "s1", Package: "/Game/A", Severity: model.SeverityWarning, Code: apperrors.CodeImportResolution,
			Kind: "private", Object: "/Game/Lib.Secret [private]", Message: "reference to a private object"},
		{SessionID: "s1", Package: "/Game/A", Severity: model.SeverityWarning, Message: "instance of deprecated class"},
		{SessionID: "s2", Package: "/Game/B", Severity: model.SeverityError, Code: apperrors.CodeSizeMismatch},
	}
	require.NoError(t, repos.Diagnostics.SaveDiagnostics(ctx, diags))

	t.Run("GetDiagnosticsBySession", func(t *testing.T) {
		got, err := repos.Diagnostics.GetDiagnosticsBySession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, diags[:3], got)

		got, err = repos.Diagnostics.GetDiagnosticsBySession(ctx, "none")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("CountByCode", func(t *testing.T) {
		counts, err := repos.Diagnostics.CountByCode(ctx, "/game/a")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{apperrors.CodeImportResolution: 2}, counts)
	})
}
