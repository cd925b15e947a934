package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/package-linker/internal/catalog"
	"github.com/package-linker/internal/linker"
	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/repository"
	"github.com/package-linker/pkg/model"
)

type loadReport struct {
	Run         *model.LoadRun          `json:"run"`
	Objects     int                     `json:"objects"`
	Diagnostics []model.Diagnostic      `json:"diagnostics,omitempty"`
	Summary     model.DiagnosticSummary `json:"summary"`
	Redirectors []string                `json:"redirectors,omitempty"`

	timings string
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		budget  time.Duration
		timings bool
		async   bool
		record  bool
	)
	cmd := &cobra.Command{
		Use:   "load <package...>",
		Short: "Load packages and every object in them",
		Long: `Load runs full package loads in one loader, so later packages see the
objects of earlier ones. Each session ticks with --budget until it
finalizes; imports of other packages are loaded on demand.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore()
			if err != nil {
				return err
			}
			opts, err := linker.OptionsFromConfig(a.cfg.Loader)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("budget") {
				opts.TimeLimit = budget
			}
			var flags linker.LoadFlags
			if async {
				flags |= linker.LoadAsync
			}

			followed := make(map[string][]string)
			ld, err := a.newLoader(store, opts, linker.WithListener(linker.ListenerFunc(
				func(pkg string, redir *object.Object) {
					followed[pkg] = append(followed[pkg], redir.PathName())
				})))
			if err != nil {
				return err
			}

			var rec *catalog.Recorder
			if record {
				repos, err := repository.Open(ctx, a.cfg.Database)
				if err != nil {
					return err
				}
				defer repos.Close()
				rec = catalog.ForRepositories(repos)
			}

			reports := make([]loadReport, 0, len(args))
			var firstErr error
			for _, name := range args {
				start := time.Now()
				root, loadErr := ld.LoadPackage(ctx, name, flags)
				elapsed := time.Since(start)

				var res catalog.Result
				r := loadReport{}
				l := ld.Registry().Find(name)
				switch {
				case l != nil:
					res.Run = catalog.RunFromLinker(l, elapsed)
					res.Diagnostics = catalog.Diagnostics(l)
					r.timings = l.Timer().Summary()
				case loadErr != nil:
					res.Run = catalog.FailedRun(name, loadErr, elapsed)
				default:
					// compiled in: nothing was read
					res.Run = model.NewLoadRun("", name)
					res.Run.Status = model.RunStatusLoaded
				}
				if loadErr != nil {
					res.Run.Status = model.RunStatusFailed
					res.Run.Error = loadErr.Error()
					if firstErr == nil {
						firstErr = loadErr
					}
				}
				if root != nil {
					r.Objects = len(ld.Directory().Children(root))
				}
				r.Run = res.Run
				r.Diagnostics = res.Diagnostics
				r.Summary = model.Summarize(res.Diagnostics)
				r.Redirectors = followed[name]
				reports = append(reports, r)

				if rec != nil && res.Run.SessionID != "" {
					if err := rec.Record(ctx, res); err != nil {
						return err
					}
				}
			}

			text := func(w io.Writer, rs []loadReport) { printLoadReports(w, rs, timings) }
			if err := emit(a, cmd, reports, text); err != nil {
				return err
			}
			return firstErr
		},
	}
	cmd.Flags().DurationVar(&budget, "budget", 0, "Time budget per tick (0 runs each session to completion)")
	cmd.Flags().BoolVar(&timings, "timings", false, "Print per-phase timings")
	cmd.Flags().BoolVar(&async, "async", false, "Read package bytes in the background")
	cmd.Flags().BoolVar(&record, "db", false, "Record the runs and diagnostics in the catalog")
	return cmd
}

func printLoadReports(w io.Writer, reports []loadReport, timings bool) {
	for _, r := range reports {
		run := r.Run
		if !run.Succeeded() {
			fmt.Fprintf(w, "%s: %s (%s)\n", run.Package, run.Status, run.Error)
			continue
		}
		fmt.Fprintf(w, "%s: %s in %v, %d exports, %d objects, %d errors, %d warnings [session %s]\n",
			run.Package, run.Status, run.Duration(), run.Exports, r.Objects,
			r.Summary.Errors, r.Summary.Warnings, run.SessionID)
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s %s: %s\n", d.Severity, d.Object, d.Message)
		}
		for _, p := range r.Redirectors {
			fmt.Fprintf(w, "  followed redirector %s\n", p)
		}
		if timings && r.timings != "" {
			fmt.Fprint(w, r.timings)
		}
	}
}
