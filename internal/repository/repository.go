// Package repository stores load runs, gathered dependencies and
// diagnostics in a SQL catalog.
package repository

import (
	"context"

	"github.com/package-linker/pkg/model"
)

// RunRepository stores one row per load session.
type RunRepository interface {
	// SaveRun inserts or replaces the run with run.SessionID.
	SaveRun(ctx context.Context, run *model.LoadRun) error

	// GetRun retrieves a run by session ID.
	GetRun(ctx context.Context, sessionID string) (*model.LoadRun, error)

	// ListRuns returns the latest runs of a package, newest first.
	ListRuns(ctx context.Context, pkg string, limit int) ([]*model.LoadRun, error)
}

// DependencyRepository stores gathered dependency edges.
type DependencyRepository interface {
	// SaveDependencies replaces the edges recorded for each package present
	// in deps.
	SaveDependencies(ctx context.Context, deps []model.Dependency) error

	// GetDependencies returns what the exports of pkg depend on.
	GetDependencies(ctx context.Context, pkg string) ([]model.Dependency, error)

	// GetDependents returns the edges pointing into pkg from other packages.
	GetDependents(ctx context.Context, pkg string) ([]model.Dependency, error)
}

// DiagnosticRepository stores load diagnostics.
type DiagnosticRepository interface {
	// SaveDiagnostics saves the diagnostics of one session.
	SaveDiagnostics(ctx context.Context, diags []model.Diagnostic) error

	// GetDiagnosticsBySession retrieves the diagnostics of a session.
	GetDiagnosticsBySession(ctx context.Context, sessionID string) ([]model.Diagnostic, error)

	// CountByCode counts the diagnostics of pkg per error code.
	CountByCode(ctx context.Context, pkg string) (map[string]int, error)
}
