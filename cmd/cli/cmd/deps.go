package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/package-linker/internal/catalog"
	"github.com/package-linker/internal/repository"
	"github.com/package-linker/pkg/model"
)

type depsReport struct {
	Package      string             `json:"package"`
	SessionID    string             `json:"session_id,omitempty"`
	Dependencies []model.Dependency `json:"dependencies"`
	Diagnostics  []model.Diagnostic `json:"diagnostics,omitempty"`
	Error        string             `json:"error,omitempty"`

	result catalog.Result
}

func newDepsCmd(a *app) *cobra.Command {
	var (
		all        bool
		jobs       int
		skipLoaded bool
		record     bool
	)
	cmd := &cobra.Command{
		Use:   "deps [package...]",
		Short: "Gather the export dependencies of packages",
		Long: `Deps reads the tables and depends map of each package, resolves its
imports across packages and lists, for every export, everything it
needs before it can be serialized. Packages are processed in parallel,
each with a loader of its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore()
			if err != nil {
				return err
			}
			names, err := packageArgs(ctx, store, args, all)
			if err != nil {
				return err
			}

			reports := make([]depsReport, len(names))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(jobs)
			for i, name := range names {
				g.Go(func() error {
					reports[i] = a.gatherDependencies(gctx, store, name, skipLoaded)
					return gctx.Err()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if record {
				repos, err := repository.Open(ctx, a.cfg.Database)
				if err != nil {
					return err
				}
				defer repos.Close()
				rec := catalog.ForRepositories(repos)
				for _, r := range reports {
					if err := rec.Record(ctx, r.result); err != nil {
						return err
					}
				}
				a.logger.Info("recorded %d runs in the %s catalog", len(reports), a.cfg.Database.Type)
			}

			return emit(a, cmd, reports, printDepsReports)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Gather for every package in the store")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Packages processed in parallel")
	cmd.Flags().BoolVar(&skipLoaded, "skip-loaded", false, "Leave out exports that are already loaded")
	cmd.Flags().BoolVar(&record, "db", false, "Record dependencies and diagnostics in the catalog")
	return cmd
}

func printDepsReports(w io.Writer, reports []depsReport) {
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: %s\n", r.Package, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s (%d dependencies)\n", r.Package, len(r.Dependencies))
		byTarget := model.GroupByTarget(r.Dependencies)
		targets := make([]string, 0, len(byTarget))
		for pkg := range byTarget {
			targets = append(targets, pkg)
		}
		sort.Strings(targets)
		for _, pkg := range targets {
			fmt.Fprintf(w, "  needs %s (%d)\n", pkg, len(byTarget[pkg]))
		}
		last := ""
		for _, d := range r.Dependencies {
			if d.Export != last {
				fmt.Fprintf(w, "  %s\n", d.Export)
				last = d.Export
			}
			fmt.Fprintf(w, "    -> %s\n", d.Target)
		}
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s %s: %s\n", d.Severity, d.Object, d.Message)
		}
	}
}
