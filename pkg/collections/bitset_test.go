package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitset_Basic(t *testing.T) {
	b := NewBitset(10)

	assert.False(t, b.Test(3))
	b.Set(3)
	b.Set(9)
	assert.True(t, b.Test(3))
	assert.Equal(t, 2, b.Count())

	b.Clear(3)
	assert.False(t, b.Test(3))
	assert.Equal(t, []int{9}, b.ToSlice())
}

func TestBitset_Grow(t *testing.T) {
	b := NewBitset(1)
	b.Set(1000)
	assert.True(t, b.Test(1000))
	assert.False(t, b.Test(999))
	assert.False(t, b.Test(5000))
}

func TestBitset_TestAndSet(t *testing.T) {
	b := NewBitset(0)
	assert.False(t, b.TestAndSet(70))
	assert.True(t, b.TestAndSet(70))
}

func TestBitset_IterateStops(t *testing.T) {
	b := NewBitset(200)
	for _, i := range []int{1, 64, 130} {
		b.Set(i)
	}

	var seen []int
	b.Iterate(func(i int) bool {
		seen = append(seen, i)
		return len(seen) < 2
	})
	assert.Equal(t, []int{1, 64}, seen)
}

func TestStack(t *testing.T) {
	s := NewStack[int](2)
	s.Push(1)
	s.Push(2)
	s.Push(3)
	assert.Equal(t, 3, s.Len())

	v, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	s.Pop()
	s.Pop()
	_, ok = s.Pop()
	assert.False(t, ok)
}
