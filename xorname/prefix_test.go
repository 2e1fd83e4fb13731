package xorname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyPrefixMatchesAll(t *testing.T) {
	p := NewPrefix(0, XorName{})
	assert.True(t, p.Matches(nameFromByte(0xFF)))
	assert.True(t, p.Matches(nameFromByte(0x00)))
}

func TestPushedIncrementsBitCount(t *testing.T) {
	p := NewPrefix(0, XorName{})
	p1 := p.Pushed(true)
	require.Equal(t, 1, p1.BitCount)
	assert.True(t, p1.Name.Bit(0))

	p2 := p1.Pushed(false)
	require.Equal(t, 2, p2.BitCount)
	assert.True(t, p2.Name.Bit(0))
	assert.False(t, p2.Name.Bit(1))
}

func TestSiblingFlipsLastBit(t *testing.T) {
	p := NewPrefix(2, nameFromByte(0x80)) // "10"
	sib := p.Sibling()
	assert.Equal(t, "11", sib.String())
	assert.Equal(t, 2, sib.BitCount)
}

func TestSiblingOfEmptyPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewPrefix(0, XorName{}).Sibling()
	})
}

func TestIsExtensionOf(t *testing.T) {
	root := NewPrefix(1, nameFromByte(0x80)) // "1"
	child := NewPrefix(2, nameFromByte(0x80)) // "10"
	assert.True(t, child.IsExtensionOf(root))
	assert.False(t, root.IsExtensionOf(child))
	assert.False(t, root.IsExtensionOf(root))
}

func TestIsCompatible(t *testing.T) {
	root := NewPrefix(1, nameFromByte(0x80))
	child := NewPrefix(2, nameFromByte(0x80))
	other := NewPrefix(2, nameFromByte(0x00))
	assert.True(t, root.IsCompatible(child))
	assert.True(t, child.IsCompatible(root))
	assert.False(t, other.IsCompatible(child))
}

func TestIsNeighbour(t *testing.T) {
	a := NewPrefix(2, nameFromByte(0x80)) // "10"
	b := NewPrefix(2, nameFromByte(0xC0)) // "11"
	assert.True(t, a.IsNeighbour(b))
	assert.True(t, b.IsNeighbour(a))

	c := NewPrefix(2, nameFromByte(0x00)) // "00" - differs from "10" in exactly one bit
	assert.True(t, a.IsNeighbour(c))
}

func TestRangeInclusive(t *testing.T) {
	p := NewPrefix(2, nameFromByte(0xC0)) // "11" -> 0xC0..0xFF
	lo, hi := p.RangeInclusive()
	assert.Equal(t, byte(0xC0), lo[0])
	assert.Equal(t, byte(0xFF), hi[0])
	for i := 1; i < Len; i++ {
		assert.Equal(t, byte(0), lo[i])
		assert.Equal(t, byte(0xFF), hi[i])
	}
}

func TestRelocationRangeMatchesSpecScenarioS5(t *testing.T) {
	// S5: destination 0xC0, target prefix "11" (bit_count=2). New identity
	// bit_count must be 2+3=5, so top 5 bits equal 0xC0's top 5 bits
	// (11000), landing the generator's range at [0xC0, 0xC7].
	const extraSplitCount = 3
	dest := nameFromByte(0xC0)
	base := NewPrefix(2, dest)
	extended := NewPrefix(base.BitCount+extraSplitCount, dest)
	require.Equal(t, 5, extended.BitCount)

	lo, hi := extended.RangeInclusive()
	assert.Equal(t, byte(0xC0), lo[0])
	assert.Equal(t, byte(0xC7), hi[0])
}

func TestPrefixString(t *testing.T) {
	p := NewPrefix(3, nameFromByte(0xA0)) // 1010_0000 -> "101"
	assert.Equal(t, "101", p.String())
}
