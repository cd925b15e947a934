package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/package-linker/pkg/config"
	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/telemetry"
	"github.com/package-linker/pkg/utils"
)

// app carries the global flags and what PersistentPreRunE builds from them.
type app struct {
	cfgFile    string
	contentDir string
	output     string
	verbose    bool
	editor     bool
	jsonOut    bool

	cfg      *config.Config
	logger   utils.Logger
	logFile  io.Closer
	shutdown telemetry.ShutdownFunc
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{logger: &utils.NullLogger{}}

	root := &cobra.Command{
		Use:   "pkglinker",
		Short: "Inspect and load cooked or editor packages",
		Long: `pkglinker reads package files from a content store (a local directory
or a COS bucket), resolves their imports across packages, instantiates
their exports and reports what it found.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "Config file (default ./pkglinker.yaml)")
	pf.StringVar(&a.contentDir, "content", "", "Local content directory, overrides storage settings")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&a.editor, "editor", false, "Load with the editor policy")
	pf.BoolVar(&a.jsonOut, "json", false, "Print reports as JSON")
	pf.StringVarP(&a.output, "output", "o", "", "Write the report to a file (.gz compresses)")

	root.AddCommand(
		newInspectCmd(a),
		newLoadCmd(a),
		newDepsCmd(a),
		newRepackCmd(a),
		newCatalogCmd(a),
		newVersionCmd(),
	)

	binName := BinName()
	root.Example = `  # Show the tables of two packages
  ` + binName + ` inspect /Game/Maps/Arena /Game/Props/Crate --content ./Content

  # Load a package with a 5ms tick budget and print phase timings
  ` + binName + ` load /Game/Maps/Arena --budget 5ms --timings

  # Gather export dependencies of every package and record them
  ` + binName + ` deps --all --db

  # Recompress a package body with zstd
  ` + binName + ` repack /Game/Maps/Arena --compression zstd`

	return root, a
}

// setup loads configuration and wires logging and tracing.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.contentDir != "" {
		cfg.Storage.Type = "local"
		cfg.Storage.LocalPath = a.contentDir
	}
	if a.editor {
		cfg.Loader.Editor = true
		cfg.Loader.Game = false
	}
	a.cfg = cfg

	level := utils.ParseLogLevel(cfg.Log.Level)
	if a.verbose {
		level = utils.LevelDebug
	}
	var out io.Writer = cmd.ErrOrStderr()
	if cfg.Log.OutputPath != "" {
		f, err := os.OpenFile(cfg.Log.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeConfigError, "open log file", err)
		}
		a.logFile = f
		out = f
	}
	a.logger = utils.NewLogger(cfg.Log.Format, level, out)
	utils.SetGlobalLogger(a.logger)

	shutdown, err := telemetry.Init(cmd.Context())
	if err != nil {
		a.logger.Warn("tracing disabled: %v", err)
	}
	a.shutdown = shutdown
	return nil
}

// close flushes tracing and logs.
func (a *app) close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown: %v", err)
		}
		cancel()
	}
	if z, ok := a.logger.(*utils.ZapLogger); ok {
		_ = z.Sync()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", apperrors.GetErrorCode(err), err)
		os.Exit(1)
	}
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
