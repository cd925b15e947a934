package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/package-linker/internal/linker"
	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/redirect"
	"github.com/package-linker/internal/storage"
	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/writer"
)

func (a *app) openStore() (storage.Storage, error) {
	return storage.NewStorage(&a.cfg.Storage)
}

// newDirectory returns an object directory holding the configured
// compiled-in classes.
func (a *app) newDirectory() (*object.Directory, error) {
	dir := object.NewDirectory()
	for _, nc := range a.cfg.Loader.NativeClasses {
		pkg, name := redirect.SplitClassPath(nc.Path)
		spec := object.ClassSpec{Package: pkg, Name: name}
		if nc.Deprecated {
			spec.Flags |= object.ClassDeprecated
		}
		if nc.Super != "" {
			sp, sn := redirect.SplitClassPath(nc.Super)
			if spec.Super = dir.FindClass(sp, sn); spec.Super == nil {
				return nil, apperrors.Newf(apperrors.CodeConfigError, "native class %s: unknown super %s", nc.Path, nc.Super)
			}
		}
		if _, err := dir.RegisterClass(spec); err != nil {
			return nil, err
		}
	}
	return dir, nil
}

// newLoader builds a loader over store with its own object directory, so
// loaders built for different goroutines share nothing.
func (a *app) newLoader(store storage.Storage, opts linker.Options, extra ...linker.LoaderOption) (*linker.Loader, error) {
	dir, err := a.newDirectory()
	if err != nil {
		return nil, err
	}
	options := append([]linker.LoaderOption{
		linker.WithLogger(a.logger),
		linker.WithRedirects(redirect.StaticProvider(a.cfg.Redirects, a.logger)),
	}, extra...)
	return linker.NewLoader(dir, store, opts, options...), nil
}

// packageArgs returns the packages named on the command line, or every
// package in the store with all set.
func packageArgs(ctx context.Context, store storage.Storage, args []string, all bool) ([]string, error) {
	if !all {
		if len(args) == 0 {
			return nil, apperrors.New(apperrors.CodeInvalidInput, "no packages given (pass names or --all)")
		}
		return args, nil
	}
	keys, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = storage.PackageForKey(k)
	}
	return names, nil
}

func readPackage(ctx context.Context, store storage.Storage, name string) ([]byte, error) {
	rc, err := store.Open(ctx, storage.KeyForPackage(name))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "read "+name, err)
	}
	return data, nil
}

// emit writes a report: to --output when set, as JSON with --json,
// otherwise through text.
func emit[T any](a *app, cmd *cobra.Command, data T, text func(io.Writer, T)) error {
	if a.output != "" {
		if err := writer.WriteFile(data, a.output, true); err != nil {
			return err
		}
		a.logger.Info("report written to %s", a.output)
		return nil
	}
	if a.jsonOut {
		return writer.NewPrettyJSONWriter[T]().Write(data, cmd.OutOrStdout())
	}
	text(cmd.OutOrStdout(), data)
	return nil
}
