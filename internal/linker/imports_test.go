package linker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-linker/internal/mock"
	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/redirect"
	"github.com/package-linker/internal/storage"
	"github.com/package-linker/internal/testutil"
	"github.com/package-linker/pkg/config"
	apperrors "github.com/package-linker/pkg/errors"
)

func TestVerifyImport_ResolvesAcrossPackages(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	lib := testutil.NewPackageBuilder()
	lib.Export(pkgfile.ExportEntry{ClassIndex: engineClass(lib, "Actor"), ObjectName: "Shared", ObjectFlags: public},
		lib.Props().Int("Health", 5).Bytes())
	lib.Store(t, env.store, "/Game/Lib")

	b := testutil.NewPackageBuilder()
	libPkg := b.PackageImport("/Game/Lib")
	actor := engineClass(b, "Actor")
	shared := b.Import(enginePackage, "Actor", libPkg, "Shared")
	b.Export(pkgfile.ExportEntry{ClassIndex: actor, ObjectName: "User", ObjectFlags: public},
		b.Props().Object("Friend", shared).Bytes())
	b.Store(t, env.store, "/Game/A")

	env.load("/Game/A")
	a := env.ld.Registry().Find("/Game/A")
	libLinker := env.ld.Registry().Find("/Game/Lib")
	require.NotNil(t, a)
	require.NotNil(t, libLinker)

	imp := a.Import(shared.ImportSlot())
	assert.Same(t, libLinker, imp.SourceLinker)
	assert.Equal(t, 0, imp.SourceIndex)

	require.NoError(t, a.VerifyImport(shared.ImportSlot()))
	assert.Same(t, libLinker, a.Import(shared.ImportSlot()).SourceLinker)
	assert.Equal(t, 0, a.Import(shared.ImportSlot()).SourceIndex)

	user := env.dir.FindPath("/Game/A.User")
	require.NotNil(t, user)
	friend, ok := user.Prop("Friend")
	require.True(t, ok)
	sharedObj := env.dir.FindPath("/Game/Lib.Shared")
	require.NotNil(t, sharedObj)
	assert.Same(t, sharedObj, friend)
	health, _ := sharedObj.Prop("Health")
	assert.Equal(t, int32(5), health)
	assert.Empty(t, a.Diagnostics())
}

func TestVerifyImport_ShortClassPackageName(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	lib := testutil.NewPackageBuilder()
	libActor := engineClass(lib, "Actor")
	lib.Export(pkgfile.ExportEntry{ClassIndex: libActor, ObjectName: "Mid", ObjectFlags: public}, nil)
	lib.Store(t, env.store, "/Game/Lib")

	b := testutil.NewPackageBuilder()
	imported := b.Import("Engine", "Actor", b.PackageImport("/Game/Lib"), "Mid")
	b.Export(pkgfile.ExportEntry{ClassIndex: engineClass(b, "Actor"), ObjectName: "Top", ObjectFlags: public}, nil)
	l := env.session("/Game/A", b.Bytes(t), 0)
	require.Equal(t, StatusLoaded, l.Tick(0))

	imp := l.Import(imported.ImportSlot())
	assert.Same(t, env.ld.Registry().Find("/Game/Lib"), imp.SourceLinker)
	assert.Equal(t, 0, imp.SourceIndex)
	assert.Empty(t, l.Diagnostics())

	mid, err := l.CreateImport(imported.ImportSlot())
	require.NoError(t, err)
	require.NotNil(t, mid)
	assert.Equal(t, "/Game/Lib.Mid", mid.PathName())
}

func TestVerifyImport_NullOuterRejected(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	b := testutil.NewPackageBuilder()
	stray := b.Import(enginePackage, "Actor", pkgfile.Null(), "Stray")
	b.Export(pkgfile.ExportEntry{ClassIndex: engineClass(b, "Actor"), ObjectName: "Crate", ObjectFlags: public}, nil)

	l := env.session("/Game/Props", b.Bytes(t), 0)
	require.Equal(t, StatusLoaded, l.Tick(0))

	diags := diagnosticsOfKind(l, KindBadOuter)
	require.Len(t, diags, 1)
	assert.Equal(t, "Stray", diags[0].Object)
	assert.Equal(t, SeverityWarning, diags[0].Severity)

	require.NoError(t, l.VerifyImport(stray.ImportSlot()))
	assert.Len(t, diagnosticsOfKind(l, KindBadOuter), 1)
	assert.Nil(t, l.Import(stray.ImportSlot()).XObject)
}

func TestVerifyImport_PrivateObject(t *testing.T) {
	tests := []struct {
		name       string
		opts       func() Options
		referenced bool
		wantSev    Severity
		wantObject string
	}{
		{
			name:       "unreferenced in an interactive editor",
			opts:       editorOptions,
			wantSev:    SeverityWarning,
			wantObject: "/Game/Lib.Secret [private]",
		},
		{
			name:       "referenced in an interactive editor",
			opts:       editorOptions,
			referenced: true,
			wantSev:    SeverityError,
			wantObject: "/Game/Lib.Secret",
		},
		{
			name:       "unreferenced in a game",
			opts:       DefaultOptions,
			wantSev:    SeverityError,
			wantObject: "/Game/Lib.Secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts()
			env := newTestEnv(t, opts)

			lib := testutil.NewPackageBuilder()
			b := testutil.NewPackageBuilder()
			if opts.Editor {
				lib.Editor()
				b.Editor()
			}
			lib.Export(pkgfile.ExportEntry{ClassIndex: engineClass(lib, "Actor"), ObjectName: "Secret"}, nil)
			lib.Store(t, env.store, "/Game/Lib")

			libPkg := b.PackageImport("/Game/Lib")
			actor := engineClass(b, "Actor")
			secret := b.Import(enginePackage, "Actor", libPkg, "Secret")
			b.Export(pkgfile.ExportEntry{ClassIndex: actor, ObjectName: "Crate", ObjectFlags: public}, nil)
			if tt.referenced {
				b.Export(pkgfile.ExportEntry{ClassIndex: actor, OuterIndex: secret, ObjectName: "Child", ObjectFlags: public}, nil)
			}

			l := env.session("/Game/A", b.Bytes(t), 0)
			require.Equal(t, StatusLoaded, l.Tick(0))

			diags := diagnosticsOfKind(l, KindPrivate)
			require.Len(t, diags, 1)
			assert.Equal(t, tt.wantSev, diags[0].Severity)
			assert.Equal(t, tt.wantObject, diags[0].Object)
			assert.Equal(t, apperrors.CodeImportResolution, diags[0].Code)

			imp := l.Import(secret.ImportSlot())
			assert.Equal(t, -1, imp.SourceIndex)
			assert.Nil(t, imp.XObject)
			require.NoError(t, l.VerifyImport(secret.ImportSlot()))
			assert.Len(t, diagnosticsOfKind(l, KindPrivate), 1)
		})
	}
}

func TestVerifyImport_FollowsRedirectorInAnotherPackage(t *testing.T) {
	type follow struct {
		pkg, redirector string
	}
	var followed []follow
	env := newTestEnv(t, DefaultOptions(), WithListener(ListenerFunc(func(pkg string, redir *object.Object) {
		followed = append(followed, follow{pkg, redir.PathName()})
	})))

	dest := testutil.NewPackageBuilder()
	dest.Export(pkgfile.ExportEntry{ClassIndex: engineClass(dest, "Actor"), ObjectName: "Crate", ObjectFlags: public},
		dest.Props().Int("Health", 7).Bytes())
	dest.Store(t, env.store, "/Game/New")

	old := testutil.NewPackageBuilder()
	redirClass := old.ClassImport(old.PackageImport(object.CoreUObjectPackage), object.RedirectorClassName)
	moved := old.Import(enginePackage, "Actor", old.PackageImport("/Game/New"), "Crate")
	old.Export(pkgfile.ExportEntry{ClassIndex: redirClass, ObjectName: "Crate", ObjectFlags: public},
		old.Props().Object(object.RedirectorDestinationProperty, moved).Bytes())
	old.Store(t, env.store, "/Game/Old")

	b := testutil.NewPackageBuilder()
	oldPkg := b.PackageImport("/Game/Old")
	stale := b.Import(enginePackage, "Actor", oldPkg, "Crate")
	b.Export(pkgfile.ExportEntry{ClassIndex: engineClass(b, "Actor"), ObjectName: "Holder", ObjectFlags: public},
		b.Props().Object("Item", stale).Bytes())
	b.Store(t, env.store, "/Game/A")

	env.load("/Game/A")
	a := env.ld.Registry().Find("/Game/A")
	newLinker := env.ld.Registry().Find("/Game/New")
	require.NotNil(t, a)
	require.NotNil(t, newLinker)

	assert.Equal(t, []follow{{"/Game/A", "/Game/Old.Crate"}}, followed)
	assert.Empty(t, diagnosticsOfKind(a, KindMissing))

	imp := a.Import(stale.ImportSlot())
	assert.Same(t, newLinker, imp.SourceLinker)
	assert.Equal(t, 0, imp.SourceIndex)

	crate := env.dir.FindPath("/Game/New.Crate")
	require.NotNil(t, crate)
	holder := env.dir.FindPath("/Game/A.Holder")
	require.NotNil(t, holder)
	item, _ := holder.Prop("Item")
	assert.Same(t, crate, item)
	health, _ := crate.Prop("Health")
	assert.Equal(t, int32(7), health)
}

func TestFixupImportMap_ClassRedirect(t *testing.T) {
	cfg := config.RedirectsConfig{Classes: []config.ClassRedirectConfig{
		{OldClassName: "OldActor", NewClassName: "/Script/Engine.Actor"},
	}}
	env := newTestEnv(t, DefaultOptions(), WithRedirects(redirect.StaticProvider(cfg, nil)))

	b := testutil.NewPackageBuilder()
	oldActor := engineClass(b, "OldActor")
	current := engineClass(b, "Actor")
	b.Export(pkgfile.ExportEntry{ClassIndex: oldActor, ObjectName: "Crate", ObjectFlags: public}, nil)
	b.Store(t, env.store, "/Game/Props")

	env.load("/Game/Props")
	l := env.ld.Registry().Find("/Game/Props")
	require.NotNil(t, l)

	renamed := l.Import(oldActor.ImportSlot())
	assert.Equal(t, "Actor", renamed.ObjectName)
	assert.Equal(t, "OldActor", renamed.OldClassName)
	untouched := l.Import(current.ImportSlot())
	assert.Equal(t, "Actor", untouched.ObjectName)
	assert.Empty(t, untouched.OldClassName, "redirects are never applied in reverse")

	crate := env.dir.FindPath("/Game/Props.Crate")
	require.NotNil(t, crate)
	assert.Same(t, env.actor, crate.Class())

	newName, ok := l.FindNewNameForClass("OldActor", false)
	assert.True(t, ok)
	assert.Equal(t, "/Script/Engine.Actor", newName)
	assert.Equal(t, []string{"OldActor"}, l.FindPreviousNamesForClass("/Script/Engine.Actor", false))
	assert.Empty(t, diagnosticsOfKind(l, KindMissing))
}

func TestRedirects_SharedRuleReadOnce(t *testing.T) {
	reads := 0
	provider := redirect.NewProvider(func() (config.RedirectsConfig, error) {
		reads++
		return config.RedirectsConfig{Classes: []config.ClassRedirectConfig{
			{OldClassName: "OldActor", NewClassName: "/Script/Engine.Actor"},
		}}, nil
	}, nil)
	env := newTestEnv(t, DefaultOptions(), WithRedirects(provider))

	for _, name := range []string{"/Game/A", "/Game/B"} {
		b := testutil.NewPackageBuilder()
		oldActor := engineClass(b, "OldActor")
		b.Export(pkgfile.ExportEntry{ClassIndex: oldActor, ObjectName: "Crate", ObjectFlags: public}, nil)
		b.Store(t, env.store, name)
	}
	env.load("/Game/A")
	env.load("/Game/B")

	for _, name := range []string{"/Game/A", "/Game/B"} {
		crate := env.dir.FindPath(name + ".Crate")
		require.NotNil(t, crate, name)
		assert.Same(t, env.actor, crate.Class(), name)
		l := env.ld.Registry().Find(name)
		require.NotNil(t, l)
		assert.Empty(t, diagnosticsOfKind(l, KindMissing), name)
	}
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, provider.Loads())
}

func TestRedirects_UnavailableConfigStillLoads(t *testing.T) {
	provider := redirect.NewProvider(func() (config.RedirectsConfig, error) {
		return config.RedirectsConfig{}, errors.New("redirects file missing")
	}, nil)
	env := newTestEnv(t, DefaultOptions(), WithRedirects(provider))
	cratePackage().Store(t, env.store, "/Game/Props")

	env.load("/Game/Props")
	assert.NotNil(t, env.dir.FindPath("/Game/Props.Crate"))
}

func dependsFixture(t *testing.T, env *testEnv) (a *Linker, imported pkgfile.PackageIndex) {
	t.Helper()
	lib := testutil.NewPackageBuilder()
	libActor := engineClass(lib, "Actor")
	base := lib.Export(pkgfile.ExportEntry{ClassIndex: libActor, ObjectName: "Base", ObjectFlags: public}, nil)
	mid := lib.Export(pkgfile.ExportEntry{ClassIndex: libActor, ObjectName: "Mid", ObjectFlags: public}, nil)
	lib.Depends(mid, base)
	lib.Store(t, env.store, "/Game/Lib")

	b := testutil.NewPackageBuilder()
	libPkg := b.PackageImport("/Game/Lib")
	actor := engineClass(b, "Actor")
	imported = b.Import(enginePackage, "Actor", libPkg, "Mid")
	top := b.Export(pkgfile.ExportEntry{ClassIndex: actor, ObjectName: "Top", ObjectFlags: public}, nil)
	side := b.Export(pkgfile.ExportEntry{ClassIndex: actor, ObjectName: "Side", ObjectFlags: public}, nil)
	b.Depends(top, imported, side)

	a = env.session("/Game/A", b.Bytes(t), 0)
	require.Equal(t, StatusLoaded, a.Tick(0))
	return a, imported
}

func refPaths(refs []DependencyRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.ObjectPath()
	}
	return out
}

func TestGatherDependencies(t *testing.T) {
	opts := DefaultOptions()
	opts.Commandlet = true

	t.Run("export closure crosses packages", func(t *testing.T) {
		env := newTestEnv(t, opts)
		a, _ := dependsFixture(t, env)

		assert.ElementsMatch(t, []string{"/Game/Lib.Mid", "/Game/Lib.Base", "/Game/A.Side"},
			refPaths(a.GatherExportDependencies(0, false)))
		assert.Empty(t, a.GatherExportDependencies(1, false))
	})

	t.Run("import closure starts at the resolved export", func(t *testing.T) {
		env := newTestEnv(t, opts)
		a, imported := dependsFixture(t, env)

		refs := a.GatherImportDependencies(imported.ImportSlot(), false)
		require.NotEmpty(t, refs)
		assert.Equal(t, "/Game/Lib.Mid", refs[0].ObjectPath())
		assert.ElementsMatch(t, []string{"/Game/Lib.Mid", "/Game/Lib.Base"}, refPaths(refs))
	})

	t.Run("loaded exports are skipped", func(t *testing.T) {
		env := newTestEnv(t, opts)
		a, _ := dependsFixture(t, env)

		side, err := a.CreateExport(1)
		require.NoError(t, err)
		require.NotNil(t, side)
		assert.Len(t, a.GatherExportDependencies(0, true), 3, "created but not yet preloaded")

		require.NoError(t, a.Preload(side))
		assert.ElementsMatch(t, []string{"/Game/Lib.Mid", "/Game/Lib.Base"},
			refPaths(a.GatherExportDependencies(0, true)))
	})

	t.Run("no depends map outside editor and commandlet", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())
		a, _ := dependsFixture(t, env)
		assert.Nil(t, a.Depends(0))
		assert.Nil(t, a.GatherExportDependencies(0, false))
	})
}

func TestLoadThumbnail(t *testing.T) {
	th := pkgfile.Thumbnail{Width: 2, Height: 1, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}

	t.Run("editor", func(t *testing.T) {
		env := newTestEnv(t, editorOptions())
		data := cratePackage().Editor().Thumbnail("Actor", "Crate", th).Bytes(t)
		l := env.session("/Game/Props", data, 0)
		require.Equal(t, StatusLoaded, l.Tick(0))

		entries, err := l.Thumbnails()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Crate", entries[0].ObjectPath)

		got, err := l.LoadThumbnail("actor /Game/Props.crate")
		require.NoError(t, err)
		assert.Equal(t, th, *got)

		_, err = l.LoadThumbnail("Actor /Game/Props.Other")
		assert.True(t, apperrors.IsNotFound(err))
		_, err = l.LoadThumbnail("Crate")
		assert.Error(t, err)
	})

	t.Run("not kept outside the editor", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())
		data := cratePackage().Thumbnail("Actor", "Crate", th).Bytes(t)
		l := env.session("/Game/Props", data, 0)
		require.Equal(t, StatusLoaded, l.Tick(0))

		entries, err := l.Thumbnails()
		require.NoError(t, err)
		assert.Nil(t, entries)
		_, err = l.LoadThumbnail("Actor /Game/Props.Crate")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestLoadPackage_FromRemoteStorage(t *testing.T) {
	for _, async := range []bool{false, true} {
		name := "sync"
		if async {
			name = "async"
		}
		t.Run(name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Async = async
			env := newTestEnv(t, opts)

			store := &mock.MockStorage{}
			store.ExpectOpen(storage.KeyForPackage("/Game/Props"), cratePackage().Bytes(t)).Once()
			ld := NewLoader(env.dir, store, opts)

			pkg, err := ld.LoadPackage(context.Background(), "/Game/Props", 0)
			require.NoError(t, err)
			assert.True(t, pkg.Package().FullyLoaded)
			crate := env.dir.FindPath("/Game/Props.Crate")
			require.NotNil(t, crate)
			health, _ := crate.Prop("Health")
			assert.Equal(t, int32(10), health)
			store.AssertExpectations(t)
		})
	}
}

func TestLoadPackage_RemoteStorageError(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	store := &mock.MockStorage{}
	store.ExpectOpenError(storage.KeyForPackage("/Game/Props"),
		apperrors.Newf(apperrors.CodeNotFound, "no such object"))
	ld := NewLoader(env.dir, store, DefaultOptions())

	_, err := ld.LoadPackage(context.Background(), "/Game/Props", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Nil(t, ld.Registry().Find("/Game/Props"))
	store.AssertExpectations(t)
}
