package object

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/package-linker/pkg/errors"
)

func TestNewDirectory_Intrinsics(t *testing.T) {
	d := NewDirectory()

	tests := []struct {
		name  string
		class *Class
		super *Class
	}{
		{ObjectClassName, d.ObjectClass, nil},
		{StructClassName, d.StructClass, d.ObjectClass},
		{ClassClassName, d.ClassClass, d.StructClass},
		{FunctionClassName, d.FunctionClass, d.StructClass},
		{PackageClassName, d.PackageClass, d.ObjectClass},
		{RedirectorClassName, d.RedirectorClass, d.ObjectClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := d.FindClass(CoreUObjectPackage, tt.name)
			require.NotNil(t, c)
			assert.Same(t, tt.class, c)
			assert.Same(t, tt.super, c.Super)
			assert.True(t, c.HasAnyFlags(ClassIntrinsic))
			assert.Same(t, d.ClassClass, c.Object().Class())
			assert.Equal(t, CoreUObjectPackage+"."+tt.name, c.Object().PathName())
		})
	}

	assert.True(t, d.FindPackage(CoreUObjectPackage).Package().CompiledIn)
	assert.True(t, d.ClassClass.IsChildOf(d.ObjectClass))
	assert.False(t, d.ObjectClass.IsChildOf(d.ClassClass))
}

func TestDirectory_FindIsCaseInsensitive(t *testing.T) {
	d := NewDirectory()
	pkg := d.CreatePackage("/Game/Maps/Entry")
	assert.Same(t, pkg, d.CreatePackage("/game/maps/entry"))

	obj, err := d.NewObject(d.ObjectClass, pkg, "Lamp", FlagPublic, nil)
	require.NoError(t, err)
	assert.Same(t, obj, d.Find(pkg, "LAMP"))
	assert.Same(t, obj, d.FindPath("/Game/Maps/Entry.Lamp"))
	assert.Nil(t, d.FindPath("/Game/Maps/Entry.Missing.Deeper"))
	assert.Equal(t, "Object /Game/Maps/Entry.Lamp", obj.FullName())
}

func TestDirectory_NewObject(t *testing.T) {
	d := NewDirectory()
	pkg := d.CreatePackage("/Game/A")

	light, err := d.RegisterClass(ClassSpec{Package: "/Script/Engine", Name: "Light"})
	require.NoError(t, err)
	point, err := d.RegisterClass(ClassSpec{Package: "/Script/Engine", Name: "PointLight", Super: light})
	require.NoError(t, err)

	t.Run("template properties copied", func(t *testing.T) {
		tmpl, err := d.NewObject(light, pkg, "Template", FlagArchetypeObject, nil)
		require.NoError(t, err)
		tmpl.SetProp("Intensity", float32(2))

		obj, err := d.NewObject(light, pkg, "Lamp", LoadFlags, tmpl)
		require.NoError(t, err)
		v, ok := obj.Prop("intensity")
		require.True(t, ok)
		assert.Equal(t, float32(2), v)
		assert.Same(t, tmpl, obj.Archetype())
		assert.True(t, obj.HasAnyFlags(FlagNeedLoad))
	})

	t.Run("compatible resident object reused", func(t *testing.T) {
		first, err := d.NewObject(point, pkg, "Bulb", 0, nil)
		require.NoError(t, err)
		second, err := d.NewObject(light, pkg, "Bulb", FlagPublic, nil)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Same(t, point, second.Class())
	})

	t.Run("incompatible resident object", func(t *testing.T) {
		_, err := d.NewObject(d.ObjectClass, pkg, "Plain", 0, nil)
		require.NoError(t, err)
		_, err = d.NewObject(light, pkg, "Plain", 0, nil)
		assert.True(t, apperrors.IsClassConstructionError(err))
	})

	t.Run("constructor failure", func(t *testing.T) {
		bad, err := d.RegisterClass(ClassSpec{Package: "/Script/Engine", Name: "Bad",
			Constructor: func(*Object) error { return errors.New("boom") }})
		require.NoError(t, err)
		_, err = d.NewObject(bad, pkg, "X", 0, nil)
		assert.True(t, apperrors.IsClassConstructionError(err))
		assert.Nil(t, d.Find(pkg, "X"))
	})

	t.Run("abstract", func(t *testing.T) {
		abstract, err := d.RegisterClass(ClassSpec{Package: "/Script/Engine", Name: "Shape", Flags: ClassAbstract})
		require.NoError(t, err)
		_, err = d.NewObject(abstract, pkg, "S", 0, nil)
		assert.True(t, apperrors.IsClassConstructionError(err))
		cdo, err := abstract.DefaultObject()
		require.NoError(t, err)
		assert.True(t, cdo.HasAnyFlags(FlagClassDefaultObject))
	})

	t.Run("duplicate class", func(t *testing.T) {
		_, err := d.RegisterClass(ClassSpec{Package: "/Script/Engine", Name: "Light"})
		assert.Error(t, err)
	})
}

func TestClass_LoadedClassObject(t *testing.T) {
	d := NewDirectory()
	pkg := d.CreatePackage("/Game/BP")
	calls := 0
	base, err := d.RegisterClass(ClassSpec{Name: "Actor",
		Constructor: func(o *Object) error { calls++; return nil }})
	require.NoError(t, err)

	obj, err := d.NewObject(d.ClassClass, pkg, "Door", LoadFlags, nil)
	require.NoError(t, err)
	door := obj.AsClass()
	require.NotNil(t, door)

	obj.SetSuperStruct(base.Object())
	assert.Same(t, base, door.Super)
	door.Bind()
	assert.True(t, door.IsBound())

	obj.SetProp(ClassFlagsProperty, int32(ClassDeprecated|ClassIntrinsic))
	door.ApplySerializedFlags()
	assert.True(t, door.HasAnyFlags(ClassDeprecated))
	assert.False(t, door.HasAnyFlags(ClassIntrinsic))

	inst, err := d.NewObject(door, pkg, "Door1", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, inst.IsA(base))
	assert.Equal(t, "/Game/BP", door.PackageName())

	cdo, err := door.DefaultObject()
	require.NoError(t, err)
	assert.Equal(t, "Default__Door", cdo.Name())
	assert.True(t, cdo.IsTemplate())
	same, _ := door.DefaultObject()
	assert.Same(t, cdo, same)
}

func TestObject_Redirector(t *testing.T) {
	d := NewDirectory()
	pkg := d.CreatePackage("/Game/A")
	target, err := d.NewObject(d.ObjectClass, pkg, "Target", FlagPublic, nil)
	require.NoError(t, err)
	redir, err := d.NewObject(d.RedirectorClass, pkg, "Old", FlagPublic, nil)
	require.NoError(t, err)

	assert.Nil(t, redir.RedirectTarget())
	redir.SetProp(RedirectorDestinationProperty, target)
	assert.True(t, redir.IsRedirector())
	assert.Same(t, target, redir.RedirectTarget())
	assert.Nil(t, target.RedirectTarget())
}

func TestDirectory_Remove(t *testing.T) {
	d := NewDirectory()
	pkg := d.CreatePackage("/Game/A")
	outer, _ := d.NewObject(d.ObjectClass, pkg, "Outer", 0, nil)
	_, _ = d.NewObject(d.ObjectClass, outer, "Inner", 0, nil)
	assert.Len(t, d.Children(pkg), 1)

	d.Remove(pkg)
	assert.Nil(t, d.FindPackage("/Game/A"))
	assert.Nil(t, d.Find(outer, "Inner"))
	assert.NotNil(t, d.FindPackage(CoreUObjectPackage))
}

func TestIsDefaultObjectName(t *testing.T) {
	assert.True(t, IsDefaultObjectName("Default__Door"))
	assert.True(t, IsDefaultObjectName("default__door"))
	assert.False(t, IsDefaultObjectName("Door"))
	assert.False(t, IsDefaultObjectName("Def"))
}
