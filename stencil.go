package findiff

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/stat/combin"
)

// ForwardFormula returns the gonum finite difference formula that the
// order-th nested forward difference collapses to:
//
//	Δ^n f(x) / h^n = Σ_{k=0..n} (-1)^(n-k) C(n,k) f(x + k h) / h^n
//
// The nested chain and the formula agree up to floating point rounding.
func ForwardFormula(order int, h float64) fd.Formula {
	if order < 1 {
		panic(badOrder)
	}
	stencil := make([]fd.Point, order+1)
	for k := 0; k <= order; k++ {
		coeff := float64(combin.Binomial(order, k))
		if (order-k)%2 == 1 {
			coeff = -coeff
		}
		stencil[k] = fd.Point{Loc: float64(k), Coeff: coeff}
	}
	return fd.Formula{Stencil: stencil, Derivative: order, Step: h}
}

// Stencil evaluates the order-th forward derivative of f at x with
// order+1 calls to f instead of 2^order. h must be positive; gonum panics
// on a non-positive step.
func Stencil(order int, f func(float64) float64, x, h float64) float64 {
	return fd.Derivative(f, x, &fd.Settings{Formula: ForwardFormula(order, h)})
}

// Evaluations is the number of base evaluations one call of an order-th
// nested wrapper performs.
func Evaluations(order int) float64 {
	if order < 1 {
		return 0
	}
	return math.Ldexp(1, order)
}
