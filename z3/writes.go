package z3

import (
	"github.com/symmem/symmem"
)

// write is a write of a collection that may affect a key. The value is
// stored at the key when includes holds.
type write struct {
	includes symmem.Expr
	value    symmem.Expr
}

// writesAt returns the writes of c that may affect key, oldest first.
// Values of ranged writes are reads of their source collections.
func writesAt[K any](c *symmem.Collection[K], key K) []write {
	var a []write
	for _, n := range c.Updates().Nodes() {
		includes := n.IncludesSymbolically(key)
		if symmem.IsConstantFalse(includes) {
			continue
		}
		a = append(a, write{includes: includes, value: n.Value(key)})
	}
	return a
}
