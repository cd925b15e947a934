package linker

import (
	"time"

	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/pkg/config"
	apperrors "github.com/package-linker/pkg/errors"
)

// DefaultTimeCheckGranularity is how many budget checks a table phase
// makes between clock reads.
const DefaultTimeCheckGranularity = 100

// Options is the load policy shared by every session of a Loader.
type Options struct {
	// TimeLimit is the default budget LoadPackage ticks with; zero runs
	// each session to completion.
	TimeLimit            time.Duration
	TimeCheckGranularity int

	// Editor keeps editor-only data and enables the depends map,
	// thumbnails and resident export matching.
	Editor bool
	// Interactive is an editor session driven by a user rather than a tool.
	Interactive bool
	// Commandlet is a batch tool run; it reads depends maps.
	Commandlet bool
	// Game looks imports up in memory before verifying them and reuses
	// resident exports.
	Game bool

	VerifyTrailingTag   bool
	CrashOnFail         bool
	FindExportsInMemory bool
	Async               bool
	// Client and Server describe what the running process hosts; exports
	// flagged not-for-client or not-for-server are skipped accordingly.
	Client bool
	Server bool

	CustomVersions pkgfile.CustomVersionRegistry
}

// DefaultOptions returns the policy of a plain game process.
func DefaultOptions() Options {
	return Options{
		TimeCheckGranularity: DefaultTimeCheckGranularity,
		Game:                 true,
		VerifyTrailingTag:    true,
		Client:               true,
		Server:               true,
		CustomVersions:       pkgfile.CustomVersionRegistry{},
	}
}

// OptionsFromConfig converts the loader section of the configuration.
func OptionsFromConfig(cfg config.LoaderConfig) (Options, error) {
	opts := Options{
		TimeLimit:            cfg.TimeLimit(),
		TimeCheckGranularity: cfg.TimeCheckGranularity,
		Editor:               cfg.Editor,
		Interactive:          cfg.Interactive,
		Commandlet:           cfg.Commandlet,
		Game:                 cfg.Game,
		VerifyTrailingTag:    cfg.VerifyTrailingTag,
		CrashOnFail:          cfg.CrashOnFail,
		FindExportsInMemory:  cfg.FindExportsInMemory,
		Async:                cfg.Async,
		Client:               cfg.Client,
		Server:               cfg.Server,
		CustomVersions:       make(pkgfile.CustomVersionRegistry, len(cfg.CustomVersions)),
	}
	if opts.TimeCheckGranularity < 1 {
		opts.TimeCheckGranularity = DefaultTimeCheckGranularity
	}
	for i, cv := range cfg.CustomVersions {
		key, err := pkgfile.ParseGUID(cv.Key)
		if err != nil {
			return Options{}, apperrors.Wrap(apperrors.CodeConfigError,
				"loader.custom_versions["+cv.Name+"]: bad key", err)
		}
		if _, dup := opts.CustomVersions[key]; dup {
			return Options{}, apperrors.Newf(apperrors.CodeConfigError, "loader.custom_versions[%d]: duplicate key %s", i, cv.Key)
		}
		opts.CustomVersions[key] = pkgfile.CustomVersionInfo{Name: cv.Name, Version: int32(cv.Version)}
	}
	return opts, nil
}

func (o Options) readsDepends() bool {
	return o.Editor || o.Commandlet
}

func (o Options) interactiveEditor() bool {
	return o.Editor && o.Interactive
}
