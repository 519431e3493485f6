package symmem

import (
	"github.com/benbjohnson/immutable"
)

// hashable is implemented by map keys that hash themselves.
type hashable[T any] interface {
	Hash() uint32
	Equal(T) bool
}

type hashableHasher[T hashable[T]] struct{}

func (hashableHasher[T]) Hash(a T) uint32     { return a.Hash() }
func (hashableHasher[T]) Equal(a, b T) bool { return a.Equal(b) }

// newHashMap returns an empty persistent map keyed by a hashable type.
func newHashMap[K hashable[K], V any]() *immutable.Map[K, V] {
	return immutable.NewMap[K, V](hashableHasher[K]{})
}

// hashCombine combines multiple hash values with the boost algorithm.
func hashCombine(hs ...uint32) (seed uint32) {
	for _, v := range hs {
		seed = v + 0x9e3779b9 + (seed << 6) + (seed >> 2)
	}
	return seed
}

func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = 31*h + uint32(s[i])
	}
	return h
}

func hashInt64(v int64) uint32 {
	return uint32(v) ^ uint32(v>>32)
}
