package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/source"
	"github.com/package-linker/internal/storage"
	"github.com/package-linker/internal/testutil"
)

const enginePackage = "/Script/Engine"

const public = uint32(object.FlagPublic)

type testEnv struct {
	t      *testing.T
	dir    *object.Directory
	store  *storage.LocalStorage
	ld     *Loader
	actor  *object.Class
	legacy *object.Class
}

// newTestEnv builds a loader over a temporary local store with a compiled
// in /Script/Engine declaring Actor and the deprecated LegacyActor.
func newTestEnv(t *testing.T, opts Options, options ...LoaderOption) *testEnv {
	t.Helper()
	dir := object.NewDirectory()
	actor, err := dir.RegisterClass(object.ClassSpec{Package: enginePackage, Name: "Actor"})
	require.NoError(t, err)
	legacy, err := dir.RegisterClass(object.ClassSpec{Package: enginePackage, Name: "LegacyActor", Super: actor,
		Flags: object.ClassDeprecated})
	require.NoError(t, err)

	store := testutil.LocalStore(t)
	return &testEnv{
		t:      t,
		dir:    dir,
		store:  store,
		ld:     NewLoader(dir, store, opts, options...),
		actor:  actor,
		legacy: legacy,
	}
}

// engineClass adds the imports for a class of /Script/Engine.
func engineClass(b *testutil.PackageBuilder, name string) pkgfile.PackageIndex {
	return b.ClassImport(b.PackageImport(enginePackage), name)
}

// session starts a session over in-memory bytes without storing them.
func (e *testEnv) session(name string, data []byte, flags LoadFlags) *Linker {
	e.t.Helper()
	l, err := e.ld.NewSessionFromSource(context.Background(), name, source.NewMemory(data), flags)
	require.NoError(e.t, err)
	return l
}

func (e *testEnv) load(name string) *object.Object {
	e.t.Helper()
	pkg, err := e.ld.LoadPackage(context.Background(), name, 0)
	require.NoError(e.t, err)
	return pkg
}

func diagnosticsOfKind(l *Linker, kind ImportErrorKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.Diagnostics() {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// editorOptions is an interactive editor policy.
func editorOptions() Options {
	opts := DefaultOptions()
	opts.Game = false
	opts.Editor = true
	opts.Interactive = true
	return opts
}
