package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/package-linker/internal/repository"
	"github.com/package-linker/pkg/model"
)

type catalogReport struct {
	Package    string             `json:"package"`
	Runs       []*model.LoadRun   `json:"runs"`
	Dependents []model.Dependency `json:"dependents"`
	Codes      map[string]int     `json:"codes"`
}

func newCatalogCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "catalog <package>",
		Short: "Show what the catalog recorded about a package",
		Long: `Catalog prints the latest recorded runs of a package, the packages whose
exports depend on it and its diagnostic counts by error code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repos, err := repository.Open(ctx, a.cfg.Database)
			if err != nil {
				return err
			}
			defer repos.Close()

			name := args[0]
			r := catalogReport{Package: name}
			if r.Runs, err = repos.Runs.ListRuns(ctx, name, limit); err != nil {
				return err
			}
			deps, diags := repos.Reports()
			if r.Dependents, err = deps.GetDependents(ctx, name); err != nil {
				return err
			}
			if r.Codes, err = diags.CountByCode(ctx, name); err != nil {
				return err
			}
			return emit(a, cmd, r, printCatalogReport)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Runs to show")
	return cmd
}

func printCatalogReport(w io.Writer, r catalogReport) {
	fmt.Fprintf(w, "%s\n  runs (%d):\n", r.Package, len(r.Runs))
	for _, run := range r.Runs {
		phase, ms := run.SlowestPhase()
		fmt.Fprintf(w, "    %s %s %v slowest=%s(%dms)\n", run.SessionID, run.Status, run.Duration(), phase, ms)
	}
	fmt.Fprintf(w, "  dependents (%d):\n", len(r.Dependents))
	for _, d := range r.Dependents {
		fmt.Fprintf(w, "    %s -> %s\n", d.Export, d.Target)
	}
	summary := model.DiagnosticSummary{ByCode: r.Codes}
	for _, c := range summary.Codes() {
		fmt.Fprintf(w, "  %s: %d\n", c, r.Codes[c])
	}
}
