package linker

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/property"
	"github.com/package-linker/internal/redirect"
	"github.com/package-linker/internal/source"
	"github.com/package-linker/internal/storage"
	"github.com/package-linker/pkg/config"
	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/utils"
)

// DefaultPollInterval is how long a session waiting on a background
// download sleeps between ticks when the source cannot signal readiness.
const DefaultPollInterval = 5 * time.Millisecond

// Loader owns the object directory, the linker registry and the shared
// redirect tables, and drives load sessions to completion. A Loader is
// used from one goroutine at a time.
type Loader struct {
	dir       *object.Directory
	store     storage.Storage
	registry  *Registry
	redirects *redirect.Provider
	codec     property.Codec
	opts      Options
	logger    utils.Logger
	clock     utils.Clock
	listener  Listener
	poll      time.Duration

	depth   int
	loaded  []*object.Object
	pending map[string]*Linker
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = logger }
}

// WithClock sets the clock tick budgets are measured with.
func WithClock(clock utils.Clock) LoaderOption {
	return func(ld *Loader) { ld.clock = clock }
}

// WithListener registers a listener for loader notifications.
func WithListener(listener Listener) LoaderOption {
	return func(ld *Loader) { ld.listener = listener }
}

// WithCodec replaces the property codec.
func WithCodec(codec property.Codec) LoaderOption {
	return func(ld *Loader) { ld.codec = codec }
}

// WithRegistry shares a linker registry between loaders.
func WithRegistry(registry *Registry) LoaderOption {
	return func(ld *Loader) { ld.registry = registry }
}

// WithRedirects sets the redirect tables provider.
func WithRedirects(p *redirect.Provider) LoaderOption {
	return func(ld *Loader) { ld.redirects = p }
}

// WithPollInterval sets how often a session waiting for data is retried.
func WithPollInterval(d time.Duration) LoaderOption {
	return func(ld *Loader) { ld.poll = d }
}

// NewLoader creates a Loader reading packages from store into dir.
func NewLoader(dir *object.Directory, store storage.Storage, opts Options, options ...LoaderOption) *Loader {
	ld := &Loader{
		dir:     dir,
		store:   store,
		opts:    opts,
		poll:    DefaultPollInterval,
		pending: make(map[string]*Linker),
	}
	for _, o := range options {
		o(ld)
	}
	if ld.logger == nil {
		ld.logger = &utils.NullLogger{}
	}
	if ld.clock == nil {
		ld.clock = utils.NewRealClock()
	}
	if ld.registry == nil {
		ld.registry = NewRegistry()
	}
	if ld.redirects == nil {
		ld.redirects = redirect.StaticProvider(config.RedirectsConfig{}, ld.logger)
	}
	if ld.codec == nil {
		codec := property.NewTaggedCodec(ld.logger)
		codec.StructRedirect = func(name string) (string, bool) {
			reg, _ := ld.redirects.Registry()
			return reg.Struct(name)
		}
		ld.codec = codec
	}
	return ld
}

// Directory returns the object directory packages load into.
func (ld *Loader) Directory() *object.Directory { return ld.dir }

// Registry returns the registry of finalized linkers.
func (ld *Loader) Registry() *Registry { return ld.registry }

// Options returns the load policy.
func (ld *Loader) Options() Options { return ld.opts }

// NewSession opens the package from storage and starts a session for it.
// The session does nothing until ticked.
func (ld *Loader) NewSession(ctx context.Context, name string, flags LoadFlags) (*Linker, error) {
	if ld.store == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "no storage configured to load %s", name)
	}
	if err := ld.checkPending(name); err != nil {
		return nil, err
	}
	async := ld.opts.Async || flags&LoadAsync != 0
	src, err := source.Open(ctx, ld.store, storage.KeyForPackage(name), async)
	if err != nil {
		return nil, err
	}
	return ld.NewSessionFromSource(ctx, name, src, flags)
}

// NewSessionFromSource starts a session reading src. The session owns src
// and closes it when released.
func (ld *Loader) NewSessionFromSource(ctx context.Context, name string, src source.ByteSource, flags LoadFlags) (*Linker, error) {
	if err := ld.checkPending(name); err != nil {
		_ = src.Close()
		return nil, err
	}
	root := ld.dir.CreatePackage(name)
	l := newLinker(ctx, ld, name, root, src, flags)
	ld.pending[strings.ToLower(name)] = l
	l.logger.Debug("session %s started", l.SessionID())
	return l, nil
}

func (ld *Loader) checkPending(name string) error {
	if _, busy := ld.pending[strings.ToLower(name)]; busy {
		return apperrors.Newf(apperrors.CodeInvalidInput, "package %s is already being loaded", name)
	}
	return nil
}

// Complete ticks l until it finalizes or fails. Sessions waiting on a
// background download block until the data arrives or ctx ends. A failed
// session is released and its error returned.
func (ld *Loader) Complete(ctx context.Context, l *Linker) error {
	for {
		switch l.Tick(ld.opts.TimeLimit) {
		case StatusLoaded:
			return nil
		case StatusFailed:
			err := l.Err()
			if !l.detached {
				ld.forget(l)
				l.release()
			}
			return err
		}
		if !l.waitingForData {
			continue
		}
		if err := ld.waitForData(ctx, l); err != nil {
			_ = l.Abandon()
			return err
		}
	}
}

func (ld *Loader) waitForData(ctx context.Context, l *Linker) error {
	var ready <-chan struct{}
	if s, ok := l.src.(interface{ Done() <-chan struct{} }); ok {
		ready = s.Done()
	}
	t := time.NewTimer(ld.poll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.CodeIO, "waiting for "+l.pkgName, ctx.Err())
	case <-ready:
	case <-t.C:
	}
	return nil
}

// LoadPackage loads a package and every object in it. Packages that are
// compiled in or already fully loaded are returned as they are.
func (ld *Loader) LoadPackage(ctx context.Context, name string, flags LoadFlags) (*object.Object, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "loader.LoadPackage")
	span.SetAttributes(attribute.String("package", name))
	defer span.End()

	pkg, err := ld.loadPackage(ctx, name, flags)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return pkg, err
}

func (ld *Loader) loadPackage(ctx context.Context, name string, flags LoadFlags) (*object.Object, error) {
	if pkg := ld.dir.FindPackage(name); pkg != nil && pkg.IsPackage() &&
		(pkg.Package().CompiledIn || pkg.Package().FullyLoaded) {
		return pkg, nil
	}

	ld.BeginLoad()
	l, err := ld.linkerFor(ctx, name, flags)
	if err == nil {
		err = l.LoadAllObjects(false)
	}
	if endErr := ld.EndLoad(); err == nil {
		err = endErr
	}
	if err != nil {
		return nil, err
	}
	return l.root, nil
}

// linkerFor returns the finalized linker of name, creating and completing
// a session when there is none.
func (ld *Loader) linkerFor(ctx context.Context, name string, flags LoadFlags) (*Linker, error) {
	if l := ld.registry.Find(name); l != nil {
		return l, nil
	}
	l, ok := ld.pending[strings.ToLower(name)]
	if !ok {
		var err error
		if l, err = ld.NewSession(ctx, name, flags); err != nil {
			return nil, err
		}
	}
	if err := ld.Complete(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// loadNested makes the linker of an imported package available. Only the
// tables are loaded; exports are created on demand. A package already in
// the middle of its own session is returned as is.
func (ld *Loader) loadNested(ctx context.Context, name string, flags LoadFlags) (*object.Object, error) {
	if pkg := ld.dir.FindPackage(name); pkg != nil && pkg.IsPackage() && pkg.Package().CompiledIn {
		return pkg, nil
	}
	if l := ld.registry.Find(name); l != nil {
		return l.root, nil
	}
	if l, ok := ld.pending[strings.ToLower(name)]; ok && l.ticking {
		return l.root, nil
	}
	ld.logger.Debug("loading imported package %s", name)
	l, err := ld.linkerFor(ctx, name, flags)
	if err != nil {
		return nil, err
	}
	return l.root, nil
}

// BeginLoad opens a load scope. Objects created inside scopes are
// deserialized when the outermost scope ends.
func (ld *Loader) BeginLoad() { ld.depth++ }

// EndLoad closes a load scope. Closing the outermost one preloads every
// object created since the first BeginLoad and clears their post-load
// state. The first preload error is returned; the rest still load.
func (ld *Loader) EndLoad() error {
	if ld.depth > 0 {
		ld.depth--
	}
	if ld.depth > 0 {
		return nil
	}
	var first error
	// preloading may create more objects
	for i := 0; i < len(ld.loaded); i++ {
		if err := preloadObject(ld.loaded[i]); err != nil && first == nil {
			first = err
		}
	}
	for _, obj := range ld.loaded {
		obj.ClearFlags(object.FlagNeedPostLoad)
	}
	ld.loaded = ld.loaded[:0]
	return first
}

func (ld *Loader) trackLoaded(obj *object.Object) {
	ld.loaded = append(ld.loaded, obj)
}

func (ld *Loader) forget(l *Linker) {
	key := strings.ToLower(l.pkgName)
	if ld.pending[key] == l {
		delete(ld.pending, key)
	}
}

func (ld *Loader) redirectorFollowed(packageName string, redir *object.Object) {
	ld.logger.Debug("%s followed redirector %s", packageName, redir.PathName())
	if ld.listener != nil {
		ld.listener.RedirectorFollowed(packageName, redir)
	}
}
