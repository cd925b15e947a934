// Package collections provides small data structures used by the loader's
// graph walks.
package collections

import "math/bits"

// Bitset is a growable set of non-negative integers, one bit per element.
type Bitset struct {
	bits []uint64
}

// NewBitset creates a bitset sized for n elements.
func NewBitset(n int) *Bitset {
	if n <= 0 {
		n = 64
	}
	return &Bitset{bits: make([]uint64, (n+63)/64)}
}

// Set adds i, growing as needed.
func (b *Bitset) Set(i int) {
	w := i / 64
	if w >= len(b.bits) {
		grown := make([]uint64, w+1)
		copy(grown, b.bits)
		b.bits = grown
	}
	b.bits[w] |= 1 << (uint(i) % 64)
}

// Clear removes i.
func (b *Bitset) Clear(i int) {
	w := i / 64
	if w < len(b.bits) {
		b.bits[w] &^= 1 << (uint(i) % 64)
	}
}

// Test reports whether i is present.
func (b *Bitset) Test(i int) bool {
	w := i / 64
	return w < len(b.bits) && b.bits[w]&(1<<(uint(i)%64)) != 0
}

// TestAndSet adds i and reports whether it was already present.
func (b *Bitset) TestAndSet(i int) bool {
	if b.Test(i) {
		return true
	}
	b.Set(i)
	return false
}

// Count returns the number of elements.
func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.bits {
		n += bits.OnesCount64(w)
	}
	return n
}

// Iterate calls fn for each element in ascending order until fn returns false.
func (b *Bitset) Iterate(fn func(i int) bool) {
	for wordIdx, word := range b.bits {
		base := wordIdx * 64
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			if !fn(base + tz) {
				return
			}
			word &= word - 1
		}
	}
}

// ToSlice returns all elements in ascending order.
func (b *Bitset) ToSlice() []int {
	out := make([]int, 0, b.Count())
	b.Iterate(func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}
