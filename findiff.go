// Package findiff provides a small forward-difference differentiation engine for Go.
//
// Design goals:
//   - Any single-argument numeric function is a Callable
//   - Differentiation wrappers are Callables too, so they compose
//   - Arbitrary derivative order by recursive wrapping
//   - Fixed step, forward difference, no hidden accuracy tricks
//
// Evaluating an order-N wrapper once costs 2^N evaluations of the base
// function, and truncation and rounding error compound with every layer.
package findiff

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Float is the set of numeric types the engine differentiates over.
type Float interface {
	constraints.Float
}

// ============================================================
// Callable
// ============================================================

// Callable is anything invocable with one number that returns one number.
// Repeated calls with the same input and the same internal state are
// expected to return the same output.
type Callable[T Float] interface {
	Call(x T) T
}

// Func adapts a plain function or closure to Callable.
type Func[T Float] func(x T) T

// Call implements Callable.
func (f Func[T]) Call(x T) T { return f(x) }

// Scaled is a stateful function object returning Alpha * F(x).
//
// A Scaled value handed to a wrapper is copied, so later changes to the
// caller's variable are not seen. A *Scaled is a live link: Alpha is read
// on every call.
type Scaled[T Float] struct {
	Alpha T
	F     Callable[T]
}

func (s Scaled[T]) Call(x T) T { return s.Alpha * s.F.Call(x) }

// Bind captures p by value. The returned callable always sees the value p
// had when Bind was called.
func Bind[T Float](fn func(p, x T) T, p T) Func[T] {
	return func(x T) T { return fn(p, x) }
}

// BindRef captures p by reference. *p is read on every call, so updates made
// after construction are observed. p stays reachable for as long as the
// returned callable is.
func BindRef[T Float](fn func(p, x T) T, p *T) Func[T] {
	if p == nil {
		panic("findiff: nil parameter reference")
	}
	return func(x T) T { return fn(*p, x) }
}

// Counting wraps a callable and counts how often it is invoked.
type Counting[T Float] struct {
	F Callable[T]
	n atomic.Int64
}

// Count returns a counting wrapper around f.
func Count[T Float](f Callable[T]) *Counting[T] { return &Counting[T]{F: f} }

func (c *Counting[T]) Call(x T) T {
	c.n.Add(1)
	return c.F.Call(x)
}

// Calls reports the number of invocations since construction or the last Reset.
func (c *Counting[T]) Calls() int64 { return c.n.Load() }
func (c *Counting[T]) Reset()       { c.n.Store(0) }

// ============================================================
// Finite difference
// ============================================================

// Diff returns the forward-difference slope (f(x+h) - f(x)) / h.
//
// f is evaluated exactly twice, at x+h and then at x. A zero h produces an
// infinite or NaN result rather than a panic.
func Diff[T Float](f Callable[T], x, h T) T {
	fxh := f.Call(x + h)
	fx := f.Call(x)
	return (fxh - fx) / h
}

// ============================================================
// First derivative
// ============================================================

// Derivative is the approximate first derivative of a callable for a fixed
// step. It is itself a Callable and may be wrapped again.
type Derivative[T Float] struct {
	f Callable[T]
	h T
}

func NewDerivative[T Float](f Callable[T], h T) *Derivative[T] {
	if f == nil {
		panic("findiff: nil callable")
	}
	return &Derivative[T]{f: f, h: h}
}

func (d *Derivative[T]) Call(x T) T { return Diff(d.f, x, d.h) }
func (d *Derivative[T]) Step() T    { return d.h }

// ============================================================
// N-th derivative
// ============================================================

const badOrder = "findiff: invalid derivative order"

// Nth is the approximate derivative of order N. It differentiates the
// order N-1 wrapper once more; at order 1 it differentiates the base
// callable and behaves exactly like Derivative.
type Nth[T Float] struct {
	Derivative[T]
	order int
}

// NewNth builds the chain of order nested wrappers around f. It panics if
// order is less than one.
func NewNth[T Float](order int, f Callable[T], h T) *Nth[T] {
	if order < 1 {
		panic(badOrder)
	}
	inner := f
	if order > 1 {
		inner = NewNth(order-1, f, h)
	}
	return &Nth[T]{Derivative: *NewDerivative(inner, h), order: order}
}

func (n *Nth[T]) Order() int { return n.order }

// Inner returns the callable one layer down: the order N-1 wrapper, or the
// base callable at order 1.
func (n *Nth[T]) Inner() Callable[T] { return n.f }

// Base walks the chain down to the callable that was differentiated.
func (n *Nth[T]) Base() Callable[T] {
	cur := n
	for cur.order > 1 {
		cur = cur.f.(*Nth[T])
	}
	return cur.f
}

// ============================================================
// Factory
// ============================================================

// Make returns the order-th derivative wrapper of f with step h.
func Make[T Float](order int, f Callable[T], h T) *Nth[T] { return NewNth(order, f, h) }

// MakeFunc is Make for a bare function.
func MakeFunc[T Float](order int, f func(T) T, h T) *Nth[T] { return NewNth[T](order, Func[T](f), h) }

// Second returns the second derivative wrapper of f.
func Second[T Float](f Callable[T], h T) *Nth[T] { return NewNth(2, f, h) }
