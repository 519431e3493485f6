// Package symmem implements a symbolic memory and state forking core for
// symbolic execution engines.
package symmem

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

var (
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverCanceled      = errors.New("Solver canceled")
	ErrSolverResourceLimit = errors.New("Solver resource limit")
	ErrSolverUnknown       = errors.New("Solver unknown error")
)

// Ownership is a token proving exclusive access to a mutable structure.
// Structures created under one token may be mutated in place by a holder of
// the same token and must be copied by anyone else.
type Ownership struct {
	_ byte
}

// NewOwnership returns a new, unique ownership token.
func NewOwnership() *Ownership {
	return &Ownership{}
}

// AddressCounter hands out concrete heap addresses. Allocated addresses are
// positive and increasing, static addresses are negative and decreasing.
// A counter is shared by every state of one exploration so that cloned
// states never receive the same address twice.
type AddressCounter struct {
	allocated int64
	static    int64
}

// NewAddressCounter returns a new counter.
func NewAddressCounter() *AddressCounter {
	return &AddressCounter{}
}

// FreshAllocated returns the next allocated address.
func (c *AddressCounter) FreshAllocated() int64 {
	return atomic.AddInt64(&c.allocated, 1)
}

// FreshStatic returns the next static address.
func (c *AddressCounter) FreshStatic() int64 {
	return atomic.AddInt64(&c.static, -1)
}

// serial numbers give collections a stable identity for ordering.
var serial uint64

func nextSerial() uint64 {
	return atomic.AddUint64(&serial, 1)
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
