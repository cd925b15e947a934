package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/model"
)

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// SaveRun inserts the run, or updates the row of the same session.
func (r *GormRunRepository) SaveRun(ctx context.Context, run *model.LoadRun) error {
	rec, err := NewLoadRunRecord(run)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to encode run timings", err)
	}
	// the row is matched on session_id
	rec.ID = 0
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "phase", "names", "imports", "exports", "duration_ms", "timings", "error",
			}),
		}).
		Create(rec).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save run", err)
	}
	if run.ID == 0 {
		run.ID = rec.ID
	}
	return nil
}

// GetRun retrieves a run by session ID.
func (r *GormRunRepository) GetRun(ctx context.Context, sessionID string) (*model.LoadRun, error) {
	var rec LoadRunRecord

	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", sessionID)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get run", err)
	}

	return rec.ToModel(), nil
}

// ListRuns returns the latest runs of a package, newest first.
func (r *GormRunRepository) ListRuns(ctx context.Context, pkg string, limit int) ([]*model.LoadRun, error) {
	var recs []LoadRunRecord

	err := r.db.WithContext(ctx).
		Where("LOWER(package) = ?", strings.ToLower(pkg)).
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query runs", err)
	}

	runs := make([]*model.LoadRun, len(recs))
	for i := range recs {
		runs[i] = recs[i].ToModel()
	}
	return runs, nil
}

// GormDependencyRepository implements DependencyRepository using GORM.
type GormDependencyRepository struct {
	db *gorm.DB
}

// NewGormDependencyRepository creates a new GormDependencyRepository.
func NewGormDependencyRepository(db *gorm.DB) *GormDependencyRepository {
	return &GormDependencyRepository{db: db}
}

// SaveDependencies replaces the edges of every package present in deps.
func (r *GormDependencyRepository) SaveDependencies(ctx context.Context, deps []model.Dependency) error {
	if len(deps) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cleared := make(map[string]bool)
		recs := make([]DependencyRecord, 0, len(deps))
		for _, d := range deps {
			key := strings.ToLower(d.Package)
			if !cleared[key] {
				cleared[key] = true
				if err := tx.Where("LOWER(package) = ?", key).Delete(&DependencyRecord{}).Error; err != nil {
					return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to clear dependencies of "+d.Package, err)
				}
			}
			recs = append(recs, DependencyRecord{
				SessionID:     d.SessionID,
				Package:       d.Package,
				Export:        d.Export,
				Target:        d.Target,
				TargetPackage: d.TargetPackage,
			})
		}
		if err := tx.CreateInBatches(recs, 200).Error; err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to insert dependencies", err)
		}
		return nil
	})
}

// GetDependencies returns what the exports of pkg depend on.
func (r *GormDependencyRepository) GetDependencies(ctx context.Context, pkg string) ([]model.Dependency, error) {
	return r.find(ctx, "LOWER(package) = ?", strings.ToLower(pkg))
}

// GetDependents returns the edges pointing into pkg from other packages.
func (r *GormDependencyRepository) GetDependents(ctx context.Context, pkg string) ([]model.Dependency, error) {
	key := strings.ToLower(pkg)
	return r.find(ctx, "LOWER(target_package) = ? AND LOWER(package) <> ?", key, key)
}

func (r *GormDependencyRepository) find(ctx context.Context, query string, args ...interface{}) ([]model.Dependency, error) {
	var recs []DependencyRecord

	err := r.db.WithContext(ctx).Where(query, args...).Order("id").Find(&recs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query dependencies", err)
	}

	deps := make([]model.Dependency, len(recs))
	for i := range recs {
		deps[i] = recs[i].ToModel()
	}
	return deps, nil
}

// GormDiagnosticRepository implements DiagnosticRepository using GORM.
type GormDiagnosticRepository struct {
	db *gorm.DB
}

// NewGormDiagnosticRepository creates a new GormDiagnosticRepository.
func NewGormDiagnosticRepository(db *gorm.DB) *GormDiagnosticRepository {
	return &GormDiagnosticRepository{db: db}
}

// SaveDiagnostics saves the diagnostics of one session.
func (r *GormDiagnosticRepository) SaveDiagnostics(ctx context.Context, diags []model.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}

	recs := make([]DiagnosticRecord, len(diags))
	for i, d := range diags {
		recs[i] = DiagnosticRecord{
			SessionID: d.SessionID,
			Package:   d.Package,
			Severity:  d.Severity,
			Code:      d.Code,
			Kind:      d.Kind,
			Object:    d.Object,
			Message:   d.Message,
		}
	}
	if err := r.db.WithContext(ctx).CreateInBatches(recs, 200).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to insert diagnostics", err)
	}
	return nil
}

// GetDiagnosticsBySession retrieves the diagnostics of a session.
func (r *GormDiagnosticRepository) GetDiagnosticsBySession(ctx context.Context, sessionID string) ([]model.Diagnostic, error) {
	var recs []DiagnosticRecord

	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&recs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query diagnostics", err)
	}

	diags := make([]model.Diagnostic, len(recs))
	for i := range recs {
		diags[i] = recs[i].ToModel()
	}
	return diags, nil
}

// CountByCode counts the diagnostics of pkg per error code. Diagnostics
// without a code are not counted.
func (r *GormDiagnosticRepository) CountByCode(ctx context.Context, pkg string) (map[string]int, error) {
	var rows []struct {
		Code  string
		Total int
	}

	err := r.db.WithContext(ctx).
		Model(&DiagnosticRecord{}).
		Select("code, COUNT(*) AS total").
		Where("LOWER(package) = ? AND code <> ''", strings.ToLower(pkg)).
		Group("code").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to count diagnostics", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Code] = row.Total
	}
	return counts, nil
}
