package redirect

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-linker/pkg/config"
	"github.com/package-linker/pkg/utils"
)

func testConfig() config.RedirectsConfig {
	return config.RedirectsConfig{
		Classes: []config.ClassRedirectConfig{
			{OldClassName: "OldWidget", NewClassName: "NewWidget"},
			{OldClassName: "LegacyMesh", NewClassName: "/Script/Engine.StaticMesh"},
			{OldClassName: "Broken", NewClassName: "A.B.C"},
			{OldClassName: "OldLight", NewClassName: "PointLight", InstanceOnly: true},
			{OldClassName: "Anything", NewClassName: "Special", ObjectName: "/Game/Maps/Entry.Lamp"},
			{OldClassName: "Car", OldSubobjName: "Wheel0", NewSubobjName: "FrontWheel"},
			{OldClassName: "Car", OldSubobjName: "Spoiler"},
		},
		GameNames: []config.NameRedirectConfig{{OldName: "/Game/Old", NewName: "/Game/New"}},
		Structs:   []config.NameRedirectConfig{{OldName: "OldVec", NewName: "Vector"}},
		Plugins: []config.NameRedirectConfig{
			{OldName: "Foo", NewName: "Bar"},
			{OldName: "/Foo/Sub/", NewName: "Baz"},
		},
	}
}

func TestBuild_Lookups(t *testing.T) {
	buf := &bytes.Buffer{}
	r := Build(testConfig(), utils.NewDefaultLogger(utils.LevelDebug, buf))

	t.Run("class", func(t *testing.T) {
		v, ok := r.Class("oldwidget")
		require.True(t, ok)
		assert.Equal(t, "NewWidget", v)

		v, ok = r.Class("LegacyMesh")
		require.True(t, ok)
		pkg, name := SplitClassPath(v)
		assert.Equal(t, "/Script/Engine", pkg)
		assert.Equal(t, "StaticMesh", name)
	})

	t.Run("nested target rejected", func(t *testing.T) {
		_, ok := r.Class("Broken")
		assert.False(t, ok)
		assert.Contains(t, buf.String(), "[ERROR]")
		assert.Contains(t, buf.String(), "A.B.C")
	})

	t.Run("instance only", func(t *testing.T) {
		_, ok := r.Class("OldLight")
		assert.False(t, ok)
		v, ok := r.InstanceOnly("OldLight")
		require.True(t, ok)
		assert.Equal(t, "PointLight", v)
	})

	t.Run("object only", func(t *testing.T) {
		v, ok := r.ObjectOnly("/Game/Maps/Entry.Lamp")
		require.True(t, ok)
		assert.Equal(t, "Special", v)
		_, ok = r.Class("Anything")
		assert.False(t, ok)
	})

	t.Run("subobject", func(t *testing.T) {
		s, ok := r.Subobject("Wheel0")
		require.True(t, ok)
		assert.Equal(t, SubobjectRedirect{MatchClass: "Car", NewName: "FrontWheel"}, s)
		assert.Equal(t, NoneName, r.SubobjectName("Spoiler"))
		assert.Equal(t, "", r.SubobjectName("Door"))
	})

	t.Run("game and struct", func(t *testing.T) {
		v, ok := r.GameName("/Game/Old")
		require.True(t, ok)
		assert.Equal(t, "/Game/New", v)
		v, ok = r.Struct("OldVec")
		require.True(t, ok)
		assert.Equal(t, "Vector", v)
	})

	t.Run("plugin prefix", func(t *testing.T) {
		tests := []struct {
			in, want string
			ok       bool
		}{
			{"/Foo/Maps/A", "/Bar/Maps/A", true},
			{"/Foo/Sub/A", "/Baz/A", true},
			{"/Foobar/A", "/Foobar/A", false},
			{"/Game/A", "/Game/A", false},
		}
		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				got, ok := r.PluginPath(tt.in)
				assert.Equal(t, tt.ok, ok)
				assert.Equal(t, tt.want, got)
			})
		}
	})
}

func TestFindNewNameForClass(t *testing.T) {
	r := Build(testConfig(), nil)

	v, ok := r.FindNewNameForClass("OldWidget", false)
	assert.True(t, ok)
	assert.Equal(t, "NewWidget", v)

	_, ok = r.FindNewNameForClass("OldLight", false)
	assert.False(t, ok)

	v, ok = r.FindNewNameForClass("OldLight", true)
	assert.True(t, ok)
	assert.Equal(t, "PointLight", v)
}

func TestPreviousNamesForClass_NotApplied(t *testing.T) {
	r := Build(testConfig(), nil)

	assert.Equal(t, []string{"OldWidget"}, r.PreviousNamesForClass("NewWidget", false))
	assert.Empty(t, r.PreviousNamesForClass("PointLight", false))
	assert.Equal(t, []string{"OldLight"}, r.PreviousNamesForClass("PointLight", true))

	// No inverse redirect exists for the new name.
	_, ok := r.Class("NewWidget")
	assert.False(t, ok)
}

func TestProvider_LoadsOnce(t *testing.T) {
	calls := 0
	p := NewProvider(func() (config.RedirectsConfig, error) {
		calls++
		return testConfig(), nil
	}, nil)

	var wg sync.WaitGroup
	regs := make([]*Registry, 8)
	for i := range regs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			regs[i], _ = p.Registry()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, p.Loads())
	for _, r := range regs {
		assert.Same(t, regs[0], r)
	}
}

func TestProvider_SourceError(t *testing.T) {
	p := NewProvider(func() (config.RedirectsConfig, error) {
		return config.RedirectsConfig{}, errors.New("no config")
	}, nil)

	r, err := p.Registry()
	require.Error(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 0, r.Len())

	_, err = p.Registry()
	assert.Error(t, err)
	assert.Equal(t, 1, p.Loads())
}
