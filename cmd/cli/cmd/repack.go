package cmd

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/storage"
	"github.com/package-linker/pkg/compression"
)

type repackReport struct {
	Package     string `json:"package"`
	Target      string `json:"target"`
	Compression string `json:"compression"`
	SizeBefore  int    `json:"size_before"`
	SizeAfter   int    `json:"size_after"`
}

func newRepackCmd(a *app) *cobra.Command {
	var (
		method    string
		chunkSize int
		target    string
	)
	cmd := &cobra.Command{
		Use:   "repack <package>",
		Short: "Re-encode a package, changing how its body is compressed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := compression.ParseMethod(method)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			name := args[0]
			if target == "" {
				target = name
			}

			data, err := readPackage(ctx, store, name)
			if err != nil {
				return err
			}
			f, err := pkgfile.Decode(data)
			if err != nil {
				return err
			}
			out, err := pkgfile.Assemble(f, pkgfile.AssembleOptions{Compression: m, ChunkSize: chunkSize})
			if err != nil {
				return err
			}
			if err := store.Put(ctx, storage.KeyForPackage(target), bytes.NewReader(out)); err != nil {
				return err
			}
			a.logger.Debug("wrote %s", store.Locate(storage.KeyForPackage(target)))

			return emit(a, cmd, repackReport{
				Package:     name,
				Target:      target,
				Compression: m.String(),
				SizeBefore:  len(data),
				SizeAfter:   len(out),
			}, printRepackReport)
		},
	}
	cmd.Flags().StringVar(&method, "compression", "zstd", "Body compression: none, zlib, gzip or zstd")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", pkgfile.DefaultChunkSize, "Uncompressed bytes per compressed chunk")
	cmd.Flags().StringVar(&target, "to", "", "Package name to write (default: overwrite the source)")
	return cmd
}

func printRepackReport(w io.Writer, r repackReport) {
	fmt.Fprintf(w, "%s -> %s (%s): %d -> %d bytes\n", r.Package, r.Target, r.Compression, r.SizeBefore, r.SizeAfter)
}
