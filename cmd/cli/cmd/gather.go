package cmd

import (
	"context"
	"time"

	"github.com/package-linker/internal/catalog"
	"github.com/package-linker/internal/linker"
	"github.com/package-linker/internal/storage"
)

// gatherDependencies runs one package's session to completion in a fresh
// loader and collects its dependency edges. Failures land in the report.
func (a *app) gatherDependencies(ctx context.Context, store storage.Storage, name string, skipLoaded bool) depsReport {
	r := depsReport{Package: name}
	start := time.Now()
	fail := func(err error) depsReport {
		a.logger.Warn("deps %s: %v", name, err)
		r.Error = err.Error()
		r.result = catalog.Result{Run: catalog.FailedRun(name, err, time.Since(start))}
		return r
	}

	opts, err := linker.OptionsFromConfig(a.cfg.Loader)
	if err != nil {
		return fail(err)
	}
	opts.Commandlet = true
	ld, err := a.newLoader(store, opts)
	if err != nil {
		return fail(err)
	}
	l, err := ld.NewSession(ctx, name, 0)
	if err != nil {
		return fail(err)
	}
	if err := ld.Complete(ctx, l); err != nil {
		return fail(err)
	}

	r.SessionID = l.SessionID()
	r.result = catalog.Result{
		Run:          catalog.RunFromLinker(l, time.Since(start)),
		Dependencies: catalog.Dependencies(l, skipLoaded),
		Diagnostics:  catalog.Diagnostics(l),
	}
	r.Dependencies = r.result.Dependencies
	r.Diagnostics = r.result.Diagnostics
	return r
}
