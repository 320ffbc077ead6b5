package ecs

import "math/bits"

// Kind identifies a registered component type. Kinds index the bitmask and
// the store's column table.
type Kind uint8

// MaxKinds is the number of distinct kinds a Store can hold.
const MaxKinds = 256

// Mask is the set of kinds attached to one entity.
type Mask [4]uint64

func (m *Mask) Set(k Kind) {
	m[k>>6] |= uint64(1) << (k & 63)
}

func (m *Mask) Clear(k Kind) {
	m[k>>6] &^= uint64(1) << (k & 63)
}

func (m Mask) Has(k Kind) bool {
	return m[k>>6]&(uint64(1)<<(k&63)) != 0
}

// Without returns a copy with the given kinds cleared.
func (m Mask) Without(ks ...Kind) Mask {
	for _, k := range ks {
		m.Clear(k)
	}
	return m
}

func (m Mask) IsEmpty() bool {
	return m == Mask{}
}

// Kinds lists the set kinds in ascending order.
func (m Mask) Kinds() []Kind {
	var out []Kind
	for i, word := range m {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, Kind(i*64+b))
			word &^= uint64(1) << b
		}
	}
	return out
}
