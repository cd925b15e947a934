package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/package-linker/pkg/model"
)

// MockRunRepository is a mock implementation of the RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

// SaveRun mocks the SaveRun method.
func (m *MockRunRepository) SaveRun(ctx context.Context, run *model.LoadRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// GetRun mocks the GetRun method.
func (m *MockRunRepository) GetRun(ctx context.Context, sessionID string) (*model.LoadRun, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoadRun), args.Error(1)
}

// ListRuns mocks the ListRuns method.
func (m *MockRunRepository) ListRuns(ctx context.Context, pkg string, limit int) ([]*model.LoadRun, error) {
	args := m.Called(ctx, pkg, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LoadRun), args.Error(1)
}

// MockDependencyRepository is a mock implementation of the
// DependencyRepository interface.
type MockDependencyRepository struct {
	mock.Mock
}

// SaveDependencies mocks the SaveDependencies method.
func (m *MockDependencyRepository) SaveDependencies(ctx context.Context, deps []model.Dependency) error {
	args := m.Called(ctx, deps)
	return args.Error(0)
}

// GetDependencies mocks the GetDependencies method.
func (m *MockDependencyRepository) GetDependencies(ctx context.Context, pkg string) ([]model.Dependency, error) {
	args := m.Called(ctx, pkg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dependency), args.Error(1)
}

// GetDependents mocks the GetDependents method.
func (m *MockDependencyRepository) GetDependents(ctx context.Context, pkg string) ([]model.Dependency, error) {
	args := m.Called(ctx, pkg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dependency), args.Error(1)
}

// MockDiagnosticRepository is a mock implementation of the
// DiagnosticRepository interface.
type MockDiagnosticRepository struct {
	mock.Mock
}

// SaveDiagnostics mocks the SaveDiagnostics method.
func (m *MockDiagnosticRepository) SaveDiagnostics(ctx context.Context, diags []model.Diagnostic) error {
	args := m.Called(ctx, diags)
	return args.Error(0)
}

// GetDiagnosticsBySession mocks the GetDiagnosticsBySession method.
func (m *MockDiagnosticRepository) GetDiagnosticsBySession(ctx context.Context, sessionID string) ([]model.Diagnostic, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Diagnostic), args.Error(1)
}

// CountByCode mocks the CountByCode method.
func (m *MockDiagnosticRepository) CountByCode(ctx context.Context, pkg string) (map[string]int, error) {
	args := m.Called(ctx, pkg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}
