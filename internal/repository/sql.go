package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/model"
)

// placeholders rewrites '?' markers for the database type.
type placeholders func(query string) string

func questionMarks(query string) string { return query }

// dollarMarks numbers markers the way PostgreSQL expects.
func dollarMarks(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholdersFor(dbType DBType) placeholders {
	if dbType == DBTypePostgres {
		return dollarMarks
	}
	return questionMarks
}

// SQLDiagnosticRepository implements DiagnosticRepository on database/sql
// for deployments sharing a connection pool with other tools.
type SQLDiagnosticRepository struct {
	db     *sql.DB
	rebind placeholders
}

// NewSQLDiagnosticRepository creates a new SQLDiagnosticRepository.
func NewSQLDiagnosticRepository(db *sql.DB, dbType DBType) *SQLDiagnosticRepository {
	return &SQLDiagnosticRepository{db: db, rebind: placeholdersFor(dbType)}
}

// SaveDiagnostics saves the diagnostics of one session in a transaction.
func (r *SQLDiagnosticRepository) SaveDiagnostics(ctx context.Context, diags []model.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.rebind(`
		INSERT INTO load_diagnostics (session_id, package, severity, code, kind, object, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to prepare statement", err)
	}
	defer stmt.Close()

	for _, d := range diags {
		if _, err := stmt.ExecContext(ctx, d.SessionID, d.Package, string(d.Severity), d.Code, d.Kind, d.Object, d.Message); err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to insert diagnostic", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to commit diagnostics", err)
	}
	return nil
}

// GetDiagnosticsBySession retrieves the diagnostics of a session.
func (r *SQLDiagnosticRepository) GetDiagnosticsBySession(ctx context.Context, sessionID string) ([]model.Diagnostic, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT session_id, package, severity, COALESCE(code, ''), COALESCE(kind, ''),
			   COALESCE(object, ''), COALESCE(message, '')
		FROM load_diagnostics
		WHERE session_id = ?
		ORDER BY id
	`), sessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query diagnostics", err)
	}
	defer rows.Close()

	var diags []model.Diagnostic
	for rows.Next() {
		var d model.Diagnostic
		var severity string
		if err := rows.Scan(&d.SessionID, &d.Package, &severity, &d.Code, &d.Kind, &d.Object, &d.Message); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan diagnostic", err)
		}
		d.Severity = model.Severity(severity)
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to read diagnostics", err)
	}
	return diags, nil
}

// CountByCode counts the diagnostics of pkg per error code.
func (r *SQLDiagnosticRepository) CountByCode(ctx context.Context, pkg string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT code, COUNT(*)
		FROM load_diagnostics
		WHERE LOWER(package) = ? AND code <> ''
		GROUP BY code
	`), strings.ToLower(pkg))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to count diagnostics", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan count", err)
		}
		counts[code] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to read counts", err)
	}
	return counts, nil
}

// SQLDependencyRepository implements DependencyRepository on database/sql.
type SQLDependencyRepository struct {
	db     *sql.DB
	rebind placeholders
}

// NewSQLDependencyRepository creates a new SQLDependencyRepository.
func NewSQLDependencyRepository(db *sql.DB, dbType DBType) *SQLDependencyRepository {
	return &SQLDependencyRepository{db: db, rebind: placeholdersFor(dbType)}
}

// SaveDependencies replaces the edges of every package present in deps.
func (r *SQLDependencyRepository) SaveDependencies(ctx context.Context, deps []model.Dependency) error {
	if len(deps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	cleared := make(map[string]bool)
	for _, d := range deps {
		key := strings.ToLower(d.Package)
		if !cleared[key] {
			cleared[key] = true
			if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM package_dependencies WHERE LOWER(package) = ?`), key); err != nil {
				return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to clear dependencies of "+d.Package, err)
			}
		}
		_, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO package_dependencies (session_id, package, export, target, target_package, created_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`), d.SessionID, d.Package, d.Export, d.Target, d.TargetPackage)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to insert dependency", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to commit dependencies", err)
	}
	return nil
}

// GetDependencies returns what the exports of pkg depend on.
func (r *SQLDependencyRepository) GetDependencies(ctx context.Context, pkg string) ([]model.Dependency, error) {
	return r.query(ctx, `WHERE LOWER(package) = ?`, strings.ToLower(pkg))
}

// GetDependents returns the edges pointing into pkg from other packages.
func (r *SQLDependencyRepository) GetDependents(ctx context.Context, pkg string) ([]model.Dependency, error) {
	key := strings.ToLower(pkg)
	return r.query(ctx, `WHERE LOWER(target_package) = ? AND LOWER(package) <> ?`, key, key)
}

func (r *SQLDependencyRepository) query(ctx context.Context, where string, args ...interface{}) ([]model.Dependency, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT session_id, package, export, target, target_package
		FROM package_dependencies
		`+where+`
		ORDER BY id
	`), args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query dependencies", err)
	}
	defer rows.Close()

	var deps []model.Dependency
	for rows.Next() {
		var d model.Dependency
		if err := rows.Scan(&d.SessionID, &d.Package, &d.Export, &d.Target, &d.TargetPackage); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan dependency", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to read dependencies", err)
	}
	return deps, nil
}
