package linker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-linker/internal/pkgfile"
	"github.com/package-linker/internal/source"
	"github.com/package-linker/internal/testutil"
	"github.com/package-linker/pkg/compression"
	apperrors "github.com/package-linker/pkg/errors"
	"github.com/package-linker/pkg/utils"
)

func cratePackage() *testutil.PackageBuilder {
	b := testutil.NewPackageBuilder()
	actor := engineClass(b, "Actor")
	b.Export(pkgfile.ExportEntry{ClassIndex: actor, ObjectName: "Crate", ObjectFlags: public},
		b.Props().Int("Health", 10).Str("Label", "fragile").Bytes())
	return b
}

func TestTick_ZeroBudgetRunsToCompletion(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	l := env.session("/Game/Props", cratePackage().Bytes(t), 0)

	assert.Equal(t, PhaseCreatingLoader, l.Phase())
	assert.Equal(t, StatusLoaded, l.Tick(0))
	assert.Equal(t, PhaseFinalized, l.Phase())
	assert.Same(t, l, env.ld.Registry().Find("/game/props"))
	assert.Equal(t, 1, l.NumExports())
	assert.NotEmpty(t, l.PhaseDurations())
	assert.Equal(t, StatusLoaded, l.Tick(0), "ticking a finalized session is a no-op")
}

func TestTick_ResumesAfterBudget(t *testing.T) {
	clock := utils.NewMockClock(time.Unix(0, 0))
	clock.SetStep(time.Millisecond)
	env := newTestEnv(t, DefaultOptions(), WithClock(clock))
	l := env.session("/Game/Props", cratePackage().Bytes(t), 0)

	status := l.Tick(3 * time.Millisecond)
	require.Equal(t, StatusTimedOut, status)
	assert.Greater(t, l.Phase(), PhaseCreatingLoader)
	assert.Less(t, l.Phase(), PhaseFinalized)
	assert.Nil(t, env.ld.Registry().Find("/Game/Props"), "only finalized sessions are registered")

	last := l.Phase()
	for i := 0; i < 20 && status != StatusLoaded; i++ {
		status = l.Tick(3 * time.Millisecond)
		require.NotEqual(t, StatusFailed, status)
		assert.GreaterOrEqual(t, l.Phase(), last)
		last = l.Phase()
	}
	assert.Equal(t, StatusLoaded, status)
	assert.Equal(t, PhaseFinalized, l.Phase())
}

func TestTick_TablePhasesYieldMidTable(t *testing.T) {
	clock := utils.NewMockClock(time.Unix(0, 0))
	clock.SetStep(time.Millisecond)
	opts := DefaultOptions()
	opts.TimeCheckGranularity = 10
	env := newTestEnv(t, opts, WithClock(clock))

	b := testutil.NewPackageBuilder()
	actor := engineClass(b, "Actor")
	const n = 250
	for i := 0; i < n; i++ {
		b.Export(pkgfile.ExportEntry{ClassIndex: actor, ObjectName: fmt.Sprintf("Item%03d", i), ObjectFlags: public}, nil)
	}
	l := env.session("/Game/Items", b.Bytes(t), LoadNoVerify)

	yieldedInExports := false
	status := StatusTimedOut
	for ticks := 0; status == StatusTimedOut && ticks < 100; ticks++ {
		status = l.Tick(20 * time.Millisecond)
		if status == StatusTimedOut && l.Phase() == PhaseImportMapFixedUp && l.cursor > 0 {
			yieldedInExports = true
		}
	}
	require.Equal(t, StatusLoaded, status)
	assert.True(t, yieldedInExports)
	require.Equal(t, n, l.NumExports())
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("Item%03d", i), l.Export(i).ObjectName)
	}
}

func TestTickFull_WaitsForAsyncSource(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	data := cratePackage().Bytes(t)

	release := make(chan struct{})
	src := source.NewAsync(context.Background(), func(ctx context.Context) ([]byte, error) {
		<-release
		return data, nil
	})
	l, err := env.ld.NewSessionFromSource(context.Background(), "/Game/Props", src, LoadAsync)
	require.NoError(t, err)

	assert.Equal(t, StatusTimedOut, l.Tick(0))
	assert.Equal(t, StatusTimedOut, l.TickFull(5*time.Millisecond))
	assert.Equal(t, PhaseCreatingLoader, l.Phase())

	close(release)
	<-src.Done()
	assert.Equal(t, StatusLoaded, l.Tick(0))
}

func TestTick_Failures(t *testing.T) {
	tests := []struct {
		name  string
		data  func(t *testing.T) []byte
		check func(t *testing.T, err error)
	}{
		{
			name: "too new",
			data: func(t *testing.T) []byte {
				b := cratePackage()
				b.Summary().FileVersion = pkgfile.FileVersionLatest + 1
				return b.Bytes(t)
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsVersionError(err)) },
		},
		{
			name:  "editor data in a cooked loader",
			data:  func(t *testing.T) []byte { return cratePackage().Editor().Bytes(t) },
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsVersionError(err)) },
		},
		{
			name: "truncated",
			data: func(t *testing.T) []byte {
				data := cratePackage().Bytes(t)
				return data[:len(data)-2]
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsFatal(err)) },
		},
		{
			name: "bad trailing tag",
			data: func(t *testing.T) []byte {
				data := cratePackage().Bytes(t)
				data[len(data)-1] ^= 0xFF
				return data
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsFormatError(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, DefaultOptions())
			l := env.session("/Game/Props", tt.data(t), 0)

			assert.Equal(t, StatusFailed, l.Tick(0))
			require.Error(t, l.Err())
			tt.check(t, l.Err())
			assert.Nil(t, env.ld.Registry().Find("/Game/Props"))
			assert.Equal(t, StatusFailed, l.Tick(0))
		})
	}
}

func TestTick_CompressedPackage(t *testing.T) {
	for _, m := range []compression.Method{compression.MethodZlib, compression.MethodZstd} {
		t.Run(m.String(), func(t *testing.T) {
			env := newTestEnv(t, DefaultOptions())
			cratePackage().Compress(m, 64).Store(t, env.store, "/Game/Props")

			env.load("/Game/Props")
			crate := env.dir.FindPath("/Game/Props.Crate")
			require.NotNil(t, crate)
			health, ok := crate.Prop("Health")
			require.True(t, ok)
			assert.Equal(t, int32(10), health)
		})
	}
}

func TestSession_DuplicateLinker(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	cratePackage().Store(t, env.store, "/Game/Props")
	env.load("/Game/Props")

	dup := env.session("/Game/Props", cratePackage().Bytes(t), 0)
	assert.Equal(t, StatusFailed, dup.Tick(0))
	assert.Equal(t, PhaseCreatingLoader, dup.Phase())
	assert.Contains(t, dup.Err().Error(), "already has a linker")
	assert.NotSame(t, dup, env.ld.Registry().Find("/Game/Props"))
}

func TestSession_PendingTwice(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	data := cratePackage().Bytes(t)
	env.session("/Game/Props", data, 0)

	_, err := env.ld.NewSessionFromSource(context.Background(), "/Game/Props", source.NewMemory(data), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already being loaded")
}

func TestSession_Abandon(t *testing.T) {
	clock := utils.NewMockClock(time.Unix(0, 0))
	clock.SetStep(time.Millisecond)
	env := newTestEnv(t, DefaultOptions(), WithClock(clock))
	data := cratePackage().Bytes(t)

	l := env.session("/Game/Props", data, 0)
	require.Equal(t, StatusTimedOut, l.Tick(2*time.Millisecond))
	require.NoError(t, l.Abandon())
	assert.Error(t, l.Err())
	assert.Equal(t, StatusFailed, l.Tick(0))
	assert.Nil(t, env.ld.Registry().Find("/Game/Props"))

	again := env.session("/Game/Props", data, 0)
	assert.Equal(t, StatusLoaded, again.Tick(0))
	assert.Error(t, again.Abandon(), "finalized sessions are detached, not abandoned")
}

func TestSession_IDsAreUnique(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	a := env.session("/Game/A", cratePackage().Bytes(t), 0)
	b := env.session("/Game/B", cratePackage().Bytes(t), 0)
	assert.NotEqual(t, a.SessionID(), b.SessionID())
	assert.Len(t, a.SessionID(), 36)
}
