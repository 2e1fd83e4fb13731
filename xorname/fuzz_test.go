package xorname

import "testing"

// FuzzPrefixOpsNoPanic exercises the bit algebra with arbitrary bit counts
// and name bytes, matching the teacher's native fuzz-testing idiom
// (accountsigner/crypto_fuzz_test.go uses testing.F the same way). Every
// operation in §4.1 must be panic-free for any bitCount in [0, NameBits].
func FuzzPrefixOpsNoPanic(f *testing.F) {
	f.Add(0, byte(0x00))
	f.Add(1, byte(0x80))
	f.Add(256, byte(0xFF))
	f.Add(128, byte(0x55))

	f.Fuzz(func(t *testing.T, bitCount int, b byte) {
		if bitCount < 0 || bitCount > NameBits {
			return
		}
		name := nameFromByte(b)
		p := NewPrefix(bitCount, name)

		_ = p.Matches(name)
		_ = p.CommonPrefixLen(name)
		_ = p.IsCompatible(p)
		_, _ = p.RangeInclusive()

		if bitCount < NameBits {
			child := p.Pushed(true)
			if !child.IsExtensionOf(p) {
				t.Fatalf("pushed prefix must extend its parent: %v / %v", child, p)
			}
		}
		if bitCount > 0 {
			sib := p.Sibling()
			if sib.IsCompatible(p) {
				t.Fatalf("sibling must not be compatible with p: %v / %v", sib, p)
			}
			_ = p.Popped()
		}
	})
}
