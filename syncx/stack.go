package syncx

import (
	"github.com/dozm/di/v2/errorx"
)

const (
	DefaultMaxStackDepth = 512
	// hops to a fresh goroutine before giving up
	maxStackHops = 1024
)

// StackGuard bounds the recursion depth of one logical call chain.
// It is not safe for concurrent use; a chain runs synchronously even when it
// continues on another goroutine.
type StackGuard struct {
	maxDepth int
	depth    int
	hops     int
}

func NewStackGuard(maxDepth int) *StackGuard {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxStackDepth
	}
	return &StackGuard{maxDepth: maxDepth}
}

// TryEnterOnCurrentStack reports whether one more frame fits on the current stack.
// Every successful enter must be paired with Leave.
func (g *StackGuard) TryEnterOnCurrentStack() bool {
	if g.depth < g.maxDepth {
		g.depth++
		return true
	}
	return false
}

func (g *StackGuard) Leave() {
	g.depth--
}

func (g *StackGuard) Depth() int {
	return g.depth
}

type stackResult[T any] struct {
	value T
	err   error
	panic any
}

// RunOnEmptyStack runs fn on a new goroutine and blocks until it returns.
// A panic in fn is re-raised on the calling goroutine.
func RunOnEmptyStack[T any](g *StackGuard, fn func() (T, error)) (T, error) {
	if g.hops >= maxStackHops {
		var zero T
		return zero, &errorx.InsufficientStackError{Depth: g.maxDepth * maxStackHops}
	}

	saved := g.depth
	g.depth = 0
	g.hops++
	defer func() {
		g.depth = saved
		g.hops--
	}()

	done := make(chan stackResult[T], 1)
	go func() {
		var r stackResult[T]
		defer func() {
			if p := recover(); p != nil {
				r.panic = p
			}
			done <- r
		}()
		r.value, r.err = fn()
	}()

	r := <-done
	if r.panic != nil {
		panic(r.panic)
	}
	return r.value, r.err
}
