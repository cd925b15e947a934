package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/pkg/compression"
	apperrors "github.com/package-linker/pkg/errors"
)

type importRow struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Class string `json:"class"`
}

type exportRow struct {
	Index      int    `json:"index"`
	Path       string `json:"path"`
	Class      string `json:"class"`
	SerialSize int64  `json:"serial_size"`
	Flags      uint32 `json:"flags"`
}

type packageReport struct {
	Package     string      `json:"package"`
	FileVersion int32       `json:"file_version"`
	Flags       uint32      `json:"flags"`
	Cooked      bool        `json:"cooked"`
	Compression string      `json:"compression"`
	Names       int         `json:"names"`
	Imports     []importRow `json:"imports"`
	Exports     []exportRow `json:"exports"`
	HasDepends  bool        `json:"has_depends"`
	Thumbnails  int         `json:"thumbnails"`
	Error       string      `json:"error,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		all  bool
		jobs int
	)
	cmd := &cobra.Command{
		Use:   "inspect [package...]",
		Short: "Print the summary and tables of packages",
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

			reports := make([]packageReport, len(names))
			g, ctx := errgroup.WithContext(ctx)
			g.SetLimit(jobs)
			for i, name := range names {
				g.Go(func() error {
					data, err := readPackage(ctx, store, name)
					if err == nil {
						reports[i], err = describePackage(name, data)
					}
					if err != nil {
						a.logger.Warn("inspect %s: %v", name, err)
						reports[i] = packageReport{Package: name, Error: err.Error()}
					}
					return ctx.Err()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if err := emit(a, cmd, reports, printPackageReports); err != nil {
				return err
			}
			failed := 0
			for _, r := range reports {
				if r.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return apperrors.Newf(apperrors.CodeFormat, "%d of %d packages could not be read", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Inspect every package in the store")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Packages read in parallel")
	return cmd
}

// describePackage decodes data without applying any load policy.
func describePackage(name string, data []byte) (packageReport, error) {
	f, err := pkgfile.Decode(data)
	if err != nil {
		return packageReport{}, err
	}
	method := compression.MethodNone
	if f.Summary.HasFlag(pkgfile.PkgStoreCompressed) {
		if method, err = compression.MethodFromFlags(f.Summary.CompressionFlags); err != nil {
			return packageReport{}, apperrors.Wrap(apperrors.CodeFormat, "compression flags", err)
		}
	}

	r := packageReport{
		Package:     name,
		FileVersion: f.Summary.FileVersion,
		Flags:       f.Summary.PackageFlags,
		Cooked:      f.Summary.HasFlag(pkgfile.PkgFilterEditorOnly),
		Compression: method.String(),
		Names:       len(f.Names),
		Imports:     make([]importRow, len(f.Imports)),
		Exports:     make([]exportRow, len(f.Exports)),
		HasDepends:  f.Depends != nil,
		Thumbnails:  len(f.Thumbnails),
	}
	for i, imp := range f.Imports {
		r.Imports[i] = importRow{
			Index: i,
			Path:  filePath(f, name, pkgfile.Import(i)),
			Class: imp.ClassPackage + "." + imp.ClassName,
		}
	}
	for i, exp := range f.Exports {
		class := "Class"
		if !exp.ClassIndex.IsNull() {
			class = filePath(f, name, exp.ClassIndex)
		}
		r.Exports[i] = exportRow{
			Index:      i,
			Path:       filePath(f, name, pkgfile.Export(i)),
			Class:      class,
			SerialSize: exp.SerialSize,
			Flags:      exp.ObjectFlags,
		}
	}
	return r, nil
}

// filePath builds the dotted path of a table entry of f. Indices are
// bounds-checked by Decode.
func filePath(f *pkgfile.File, pkgName string, idx pkgfile.PackageIndex) string {
	switch {
	case idx.IsImport():
		imp := f.Imports[idx.ImportSlot()]
		if imp.OuterIndex.IsNull() {
			return imp.ObjectName
		}
		return filePath(f, pkgName, imp.OuterIndex) + "." + imp.ObjectName
	case idx.IsExport():
		exp := f.Exports[idx.ExportSlot()]
		if exp.OuterIndex.IsNull() {
			return pkgName + "." + exp.ObjectName
		}
		return filePath(f, pkgName, exp.OuterIndex) + "." + exp.ObjectName
	}
	return ""
}

func printPackageReports(w io.Writer, reports []packageReport) {
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: %s\n", r.Package, r.Error)
			continue
		}
		kind := "editor"
		if r.Cooked {
			kind = "cooked"
		}
		fmt.Fprintf(w, "%s (version %d, %s, %s)\n", r.Package, r.FileVersion, kind, r.Compression)
		fmt.Fprintf(w, "  names: %d\n", r.Names)
		fmt.Fprintf(w, "  imports (%d):\n", len(r.Imports))
		for _, imp := range r.Imports {
			fmt.Fprintf(w, "    [%d] %s (%s)\n", imp.Index, imp.Path, imp.Class)
		}
		fmt.Fprintf(w, "  exports (%d):\n", len(r.Exports))
		for _, exp := range r.Exports {
			fmt.Fprintf(w, "    [%d] %s  %s  %d bytes\n", exp.Index, exp.Path, exp.Class, exp.SerialSize)
		}
		if r.Thumbnails > 0 {
			fmt.Fprintf(w, "  thumbnails: %d\n", r.Thumbnails)
		}
	}
}
