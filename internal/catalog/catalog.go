// Package catalog turns finished load sessions into catalog records and
// stores them.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/package-linker/internal/linker"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/repository"
	"github.com/package-linker/pkg/model"
)

// Result is everything recorded for one package load.
type Result struct {
	Run          *model.LoadRun
	Dependencies []model.Dependency
	Diagnostics  []model.Diagnostic
}

// RunFromLinker describes the session l. elapsed is the caller's wall time
// for the whole load.
func RunFromLinker(l *linker.Linker, elapsed time.Duration) *model.LoadRun {
	run := model.NewLoadRun(l.SessionID(), l.PackageName())
	switch {
	case l.Err() != nil:
		run.Status = model.RunStatusFailed
		run.Error = l.Err().Error()
	case l.Phase() == linker.PhaseFinalized:
		run.Status = model.RunStatusLoaded
	default:
		run.Status = model.RunStatusTimedOut
	}
	run.Phase = l.Phase().String()
	run.Names = len(l.Names())
	run.Imports = l.NumImports()
	run.Exports = l.NumExports()
	run.DurationMs = elapsed.Milliseconds()
	for _, p := range l.PhaseDurations() {
		run.Timings[p.Name] = p.Duration.Milliseconds()
	}
	return run
}

// FailedRun describes a load that never produced a linker to inspect.
func FailedRun(pkg string, err error, elapsed time.Duration) *model.LoadRun {
	run := model.NewLoadRun(uuid.NewString(), pkg)
	run.Status = model.RunStatusFailed
	run.Error = err.Error()
	run.DurationMs = elapsed.Milliseconds()
	return run
}

// Diagnostics converts the diagnostics l collected.
func Diagnostics(l *linker.Linker) []model.Diagnostic {
	src := l.Diagnostics()
	out := make([]model.Diagnostic, len(src))
	for i, d := range src {
		sev := model.SeverityWarning
		if d.Severity == linker.SeverityError {
			sev = model.SeverityError
		}
		out[i] = model.Diagnostic{
			SessionID: l.SessionID(),
			Package:   d.Package,
			Severity:  sev,
			Code:      d.Code,
			Kind:      string(d.Kind),
			Object:    d.Object,
			Message:   d.Message,
		}
	}
	return out
}

// Dependencies gathers the dependency closure of every export of l. It is
// empty when the depends map was not read.
func Dependencies(l *linker.Linker, skipLoaded bool) []model.Dependency {
	var out []model.Dependency
	for i := 0; i < l.NumExports(); i++ {
		export := l.BuildPathName(pkgfile.Export(i))
		for _, ref := range l.GatherExportDependencies(i, skipLoaded) {
			out = append(out, model.Dependency{
				SessionID:     l.SessionID(),
				Package:       l.PackageName(),
				Export:        export,
				Target:        ref.ObjectPath(),
				TargetPackage: ref.Linker.PackageName(),
			})
		}
	}
	return out
}

// Recorder stores results in the catalog.
type Recorder struct {
	runs  repository.RunRepository
	deps  repository.DependencyRepository
	diags repository.DiagnosticRepository
}

// NewRecorder creates a Recorder over the given repositories.
func NewRecorder(runs repository.RunRepository, deps repository.DependencyRepository, diags repository.DiagnosticRepository) *Recorder {
	return &Recorder{runs: runs, deps: deps, diags: diags}
}

// ForRepositories records into an opened catalog.
func ForRepositories(repos *repository.Repositories) *Recorder {
	return NewRecorder(repos.Runs, repos.Dependencies, repos.Diagnostics)
}

// Record saves the run, then its dependencies and diagnostics.
func (r *Recorder) Record(ctx context.Context, res Result) error {
	if err := r.runs.SaveRun(ctx, res.Run); err != nil {
		return err
	}
	if len(res.Dependencies) > 0 {
		if err := r.deps.SaveDependencies(ctx, res.Dependencies); err != nil {
			return err
		}
	}
	if len(res.Diagnostics) > 0 {
		if err := r.diags.SaveDiagnostics(ctx, res.Diagnostics); err != nil {
			return err
		}
	}
	return nil
}
