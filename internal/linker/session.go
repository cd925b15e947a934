// Package linker turns package files into resident objects. A Linker is
// one load session over one package: a resumable, time-budgeted state
// machine that reads the tables, applies redirects, and afterwards
// resolves imports and creates exports on demand.
package linker

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/redirect"
	"github.com/package-linker/internal/source"
	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/utils"
)

const tracerName = "github.com/package-linker/internal/linker"

// summaryPrecacheSize is the span requested before the summary is parsed.
const summaryPrecacheSize = 32 * 1024

// Import is an import table entry plus its resolution state.
type Import struct {
	pkgfile.ImportEntry

	// SourceLinker is the linker of the package holding the object.
	SourceLinker *Linker
	// SourceIndex is the export slot in SourceLinker, -1 while unresolved.
	SourceIndex int
	XObject     *object.Object
	// OldClassName is the class name before a redirect rewrote it.
	OldClassName string

	failed bool
}

// Export is an export table entry plus its instantiation state.
type Export struct {
	pkgfile.ExportEntry

	// HashNext chains exports sharing a hash bucket, -1 at the end.
	HashNext int
	// Object is set once the export is created and stays until Detach.
	Object     *object.Object
	LoadFailed bool
	// OldClassName is the class the export was saved with before a
	// redirect rewrote it.
	OldClassName string

	constructing bool
}

// Linker is the load session of one package.
type Linker struct {
	ld      *Loader
	ctx     context.Context
	id      uuid.UUID
	pkgName string
	root    *object.Object
	flags   LoadFlags
	opts    Options
	logger  utils.Logger
	reg     *redirect.Registry

	src     source.ByteSource
	r       *pkgfile.Reader
	summary *pkgfile.Summary
	names   pkgfile.NameTable
	imports []Import
	exports []Export
	depends [][]pkgfile.PackageIndex
	hash    [hashBuckets]int
	thumbs  []pkgfile.ThumbnailEntry

	phase    Phase
	cursor   int
	tablePos int64
	err      error
	diags    []Diagnostic

	clock          utils.Clock
	tickStart      time.Time
	budget         time.Duration
	useTimeLimit   bool
	granularity    int
	checkCalls     int
	limitExceeded  bool
	waitingForData bool
	ticking        bool

	timer      *utils.Timer
	gathering  bool
	loadingAll bool
	detached   bool
}

func newLinker(ctx context.Context, ld *Loader, name string, root *object.Object, src source.ByteSource, flags LoadFlags) *Linker {
	reg, err := ld.redirects.Registry()
	l := &Linker{
		ld:          ld,
		ctx:         ctx,
		id:          uuid.New(),
		pkgName:     name,
		root:        root,
		flags:       flags,
		opts:        ld.opts,
		reg:         reg,
		src:         src,
		r:           pkgfile.NewReader(src),
		clock:       ld.clock,
		granularity: ld.opts.TimeCheckGranularity,
	}
	l.logger = ld.logger.WithField("package", name)
	l.timer = utils.NewTimer("load "+name, utils.WithLogger(l.logger))
	if l.granularity < 1 {
		l.granularity = DefaultTimeCheckGranularity
	}
	if err != nil {
		l.logger.Warn("redirect tables unavailable, loading without redirects: %v", err)
	}
	for i := range l.hash {
		l.hash[i] = -1
	}
	return l
}

// PackageName returns the name of the package being loaded.
func (l *Linker) PackageName() string { return l.pkgName }

// Root returns the package object the exports are created in.
func (l *Linker) Root() *object.Object { return l.root }

// SessionID identifies this load session in logs and the catalog.
func (l *Linker) SessionID() string { return l.id.String() }

// Phase returns the state the session has reached.
func (l *Linker) Phase() Phase { return l.phase }

// Err returns the error that failed the session.
func (l *Linker) Err() error { return l.err }

// Summary returns the parsed summary, nil before PhaseSummaryParsed.
func (l *Linker) Summary() *pkgfile.Summary { return l.summary }

// Names returns the name table.
func (l *Linker) Names() pkgfile.NameTable { return l.names }

// NumImports returns the import count.
func (l *Linker) NumImports() int { return len(l.imports) }

// NumExports returns the export count.
func (l *Linker) NumExports() int { return len(l.exports) }

// Import returns import slot i.
func (l *Linker) Import(i int) *Import { return &l.imports[i] }

// Export returns export slot i.
func (l *Linker) Export(i int) *Export { return &l.exports[i] }

// Depends returns the dependency list of export i; empty when the depends
// map was not loaded.
func (l *Linker) Depends(i int) []pkgfile.PackageIndex {
	if i < 0 || i >= len(l.depends) {
		return nil
	}
	return l.depends[i]
}

// PhaseDurations returns the time spent per phase.
func (l *Linker) PhaseDurations() []utils.Phase { return l.timer.GetPhases() }

// Timer returns the phase timer of the session.
func (l *Linker) Timer() *utils.Timer { return l.timer }

// Tick runs phases until the session is finalized, fails, or budget runs
// out. A zero budget means no limit. A session waiting for its source to
// become resident returns StatusTimedOut without blocking.
func (l *Linker) Tick(budget time.Duration) Status {
	return l.tick(budget, false)
}

// TickFull is Tick, but keeps polling a source that is not yet resident
// until the budget is spent.
func (l *Linker) TickFull(budget time.Duration) Status {
	return l.tick(budget, true)
}

func (l *Linker) tick(budget time.Duration, full bool) Status {
	if l.err != nil || l.detached {
		return StatusFailed
	}
	if l.phase == PhaseFinalized {
		return StatusLoaded
	}
	if l.ticking {
		l.fail(apperrors.Newf(apperrors.CodeImportResolution, "package %s is already being created", l.pkgName))
		return StatusFailed
	}
	l.ticking = true
	defer func() { l.ticking = false }()

	started := time.Now()
	startPhase := l.phase
	l.tickStart = l.clock.Now()
	l.budget = budget
	l.useTimeLimit = budget > 0
	l.checkCalls = 0
	l.limitExceeded = false

	status := l.runPhases()
	for full && l.useTimeLimit && status == StatusTimedOut && !l.isTimeLimitExceeded("full tick", 1) {
		runtime.Gosched()
		status = l.runPhases()
	}

	if l.phase != startPhase || status == StatusFailed {
		_, span := otel.Tracer(tracerName).Start(l.ctx, "linker.Tick",
			trace.WithTimestamp(started),
			trace.WithAttributes(
				attribute.String("package", l.pkgName),
				attribute.String("session", l.SessionID()),
				attribute.String("phase.from", startPhase.String()),
				attribute.String("phase.to", l.phase.String()),
				attribute.String("status", status.String()),
			))
		span.End()
	}
	return status
}

// isTimeLimitExceeded reads the clock every granularity calls and latches
// once the budget is spent.
func (l *Linker) isTimeLimitExceeded(task string, granularity int) bool {
	l.checkCalls++
	if !l.limitExceeded && l.useTimeLimit && l.checkCalls%granularity == 0 {
		elapsed := l.clock.Since(l.tickStart)
		if elapsed > l.budget {
			l.limitExceeded = true
			l.logger.Debug("%s: tick budget %v exceeded after %v", task, l.budget, elapsed)
		}
	}
	return l.limitExceeded
}

func (l *Linker) runPhases() Status {
	steps := [...]func() (Status, error){
		PhaseCreatingLoader:       l.parseSummary,
		PhaseSummaryParsed:        l.loadNameMap,
		PhaseNameMapLoaded:        l.loadImportMap,
		PhaseImportMapLoaded:      l.fixupImportMap,
		PhaseImportMapFixedUp:     l.loadExportMap,
		PhaseExportMapLoaded:      l.remapImports,
		PhaseImportsRemapped:      l.fixupExportMap,
		PhaseExportMapFixedUp:     l.loadDependsMap,
		PhaseDependsMapLoaded:     l.buildExportHash,
		PhaseExportHashBuilt:      l.findExistingExports,
		PhaseExistingExportsFound: l.finalize,
	}
	for l.phase < PhaseFinalized {
		next := l.phase + 1
		pt := l.timer.Start(next.String())
		l.waitingForData = false
		status, err := steps[l.phase]()
		pt.Stop()
		if err != nil {
			l.fail(err)
			return StatusFailed
		}
		if status != StatusLoaded {
			return status
		}
		l.phase = next
		l.cursor = 0
		if l.phase < PhaseFinalized && l.isTimeLimitExceeded(next.String(), 1) {
			return StatusTimedOut
		}
	}
	return StatusLoaded
}

func (l *Linker) fail(err error) {
	l.err = err
	l.report(Diagnostic{Severity: SeverityError, Code: apperrors.GetErrorCode(err), Message: err.Error()})
}

// waitFor reports whether a span is resident, marking the session as
// waiting when it is not.
func (l *Linker) waitFor(offset, size int64) bool {
	if l.src.Precache(offset, size) {
		return true
	}
	l.waitingForData = true
	return false
}

// Abandon drops a session that has not finalized: the source is closed
// and partial tables are released.
func (l *Linker) Abandon() error {
	if l.phase == PhaseFinalized {
		return apperrors.Newf(apperrors.CodeInvalidInput, "package %s is finalized; use Detach", l.pkgName)
	}
	l.release()
	if l.err == nil {
		l.err = apperrors.Newf(apperrors.CodeInvalidInput, "load of %s abandoned", l.pkgName)
	}
	l.ld.forget(l)
	return nil
}

func (l *Linker) release() {
	if l.src != nil {
		if err := l.src.Close(); err != nil {
			l.logger.Warn("closing source: %v", err)
		}
	}
	l.detached = true
	l.names = nil
	l.imports = nil
	l.exports = nil
	l.depends = nil
	l.thumbs = nil
}
