package findiff_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/njchilds90/findiff"
)

func sinCos(x float64) float64 { return math.Sin(x) + math.Cos(x) }

// sinCosObj mirrors sinCos as a function object with a fixed parameter.
type sinCosObj struct{ alpha float64 }

func (s sinCosObj) Call(x float64) float64 { return s.alpha * (math.Sin(x) + math.Cos(x)) }

// ============================================================
// Diff tests
// ============================================================

func TestDiff_PlainFunction(t *testing.T) {
	got := findiff.Diff[float64](findiff.Func[float64](sinCos), 1.0, 0.001)
	want := math.Cos(1) - math.Sin(1)
	if !scalar.EqualWithinAbs(got, want, 1e-3) {
		t.Errorf("want %v ± 1e-3, got %v", want, got)
	}
}

func TestDiff_EvaluationOrder(t *testing.T) {
	var seen []float64
	f := findiff.Func[float64](func(x float64) float64 {
		seen = append(seen, x)
		return x * x
	})
	findiff.Diff[float64](f, 2, 0.5)
	if len(seen) != 2 || seen[0] != 2.5 || seen[1] != 2 {
		t.Errorf("want evaluations at [2.5 2], got %v", seen)
	}
}

func TestDiff_MatchesGonumForward(t *testing.T) {
	for _, h := range []float64{1e-1, 1e-3, 1e-6} {
		got := findiff.Diff[float64](findiff.Func[float64](sinCos), 0.7, h)
		want := fd.Derivative(sinCos, 0.7, &fd.Settings{Formula: fd.Forward, Step: h})
		if !scalar.EqualWithinAbs(got, want, 1e-15) {
			t.Errorf("h=%g: want %v, got %v", h, want, got)
		}
	}
}

func TestDiff_ZeroStep(t *testing.T) {
	got := findiff.Diff[float64](findiff.Func[float64](sinCos), 1.0, 0)
	if !math.IsNaN(got) && !math.IsInf(got, 0) {
		t.Errorf("zero step should give a non-finite result, got %v", got)
	}
	lin := findiff.Func[float64](func(x float64) float64 { return 3 * x })
	if got := findiff.NewDerivative[float64](lin, 0).Call(1); !math.IsNaN(got) {
		t.Errorf("0/0 should be NaN, got %v", got)
	}
}

func TestDiff_Float32(t *testing.T) {
	f := findiff.Func[float32](func(x float32) float32 { return x * x })
	got := findiff.Diff[float32](f, 3, 0.01)
	if math.Abs(float64(got)-6.01) > 1e-3 {
		t.Errorf("want ~6.01, got %v", got)
	}
}

// ============================================================
// Derivative tests
// ============================================================

func TestDerivative_SinCos(t *testing.T) {
	d := findiff.NewDerivative[float64](findiff.Func[float64](sinCos), 0.001)
	got := d.Call(1.0)
	want := math.Cos(1) - math.Sin(1)
	if !scalar.EqualWithinAbs(got, want, 1e-3) {
		t.Errorf("want %v ± 1e-3, got %v", want, got)
	}
	if d.Step() != 0.001 {
		t.Errorf("step should stay 0.001, got %v", d.Step())
	}
}

func TestDerivative_FunctionObject(t *testing.T) {
	one := findiff.NewDerivative[float64](sinCosObj{alpha: 1}, 0.001).Call(1)
	two := findiff.NewDerivative[float64](sinCosObj{alpha: 2}, 0.001).Call(1)
	if !scalar.EqualWithinRel(two, 2*one, 1e-12) {
		t.Errorf("alpha=2 should double the slope: %v vs %v", two, one)
	}
}

func TestDerivative_NilCallablePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("nil callable should panic")
		}
	}()
	findiff.NewDerivative[float64](nil, 0.1)
}

// ============================================================
// Nth tests
// ============================================================

func TestNth_OrderOneMatchesDerivative(t *testing.T) {
	f := findiff.Func[float64](sinCos)
	for _, x := range []float64{-2, 0, 1, 3.5} {
		a := findiff.NewNth[float64](1, f, 0.001).Call(x)
		b := findiff.NewDerivative[float64](f, 0.001).Call(x)
		if a != b {
			t.Errorf("x=%v: order-1 Nth %v != Derivative %v", x, a, b)
		}
	}
}

func TestNth_SecondMatchesNestedDerivative(t *testing.T) {
	f := findiff.Func[float64](sinCos)
	h := 0.001
	direct := findiff.Second[float64](f, h).Call(1)
	nested := findiff.NewDerivative[float64](findiff.NewDerivative[float64](f, h), h).Call(1)
	if !scalar.EqualWithinAbs(direct, nested, 1e-12) {
		t.Errorf("direct %v != nested %v", direct, nested)
	}
	// f'' = -(sin + cos)
	if !scalar.EqualWithinAbs(direct, -sinCos(1), 1e-2) {
		t.Errorf("want ~%v, got %v", -sinCos(1), direct)
	}
}

func TestNth_EvaluationCount(t *testing.T) {
	for order := 1; order <= 6; order++ {
		c := findiff.Count[float64](findiff.Func[float64](sinCos))
		findiff.Make[float64](order, c, 0.01).Call(1)
		if c.Calls() != int64(findiff.Evaluations(order)) {
			t.Errorf("order %d: want %v evaluations, got %d", order, findiff.Evaluations(order), c.Calls())
		}
	}
	c := findiff.Count[float64](findiff.Func[float64](sinCos))
	findiff.Make[float64](3, c, 0.01).Call(1)
	if c.Calls() != 8 {
		t.Errorf("order 3 should evaluate the base 8 times, got %d", c.Calls())
	}
	c.Reset()
	if c.Calls() != 0 {
		t.Errorf("Reset should zero the counter")
	}
}

func TestNth_Structure(t *testing.T) {
	f := findiff.Func[float64](sinCos)
	c := findiff.Count[float64](f)
	n := findiff.Make[float64](4, c, 0.05)
	if n.Order() != 4 || n.Step() != 0.05 {
		t.Errorf("want order 4 step 0.05, got %d %v", n.Order(), n.Step())
	}
	depth := 1
	for cur := n; cur.Order() > 1; depth++ {
		inner, ok := cur.Inner().(*findiff.Nth[float64])
		if !ok {
			t.Fatalf("order %d inner should be *Nth, got %T", cur.Order(), cur.Inner())
		}
		if inner.Order() != cur.Order()-1 {
			t.Errorf("inner order should be %d, got %d", cur.Order()-1, inner.Order())
		}
		cur = inner
	}
	if depth != 4 {
		t.Errorf("nesting depth should equal the order, got %d", depth)
	}
	if n.Base() != findiff.Callable[float64](c) {
		t.Errorf("Base should return the wrapped callable")
	}
}

func TestNth_HigherOrders(t *testing.T) {
	// d^n/dx^n (sin + cos) cycles with period 4.
	cycle := []func(float64) float64{
		sinCos,
		func(x float64) float64 { return math.Cos(x) - math.Sin(x) },
		func(x float64) float64 { return -sinCos(x) },
		func(x float64) float64 { return math.Sin(x) - math.Cos(x) },
	}
	for order := 1; order <= 4; order++ {
		got := findiff.MakeFunc(order, sinCos, 1e-3).Call(0.5)
		want := cycle[order%4](0.5)
		if !scalar.EqualWithinAbs(got, want, 0.05) {
			t.Errorf("order %d: want ~%v, got %v", order, want, got)
		}
	}
}

func TestNth_ErrorCompounds(t *testing.T) {
	exact1 := math.Cos(1) - math.Sin(1)
	exact7 := math.Sin(1) - math.Cos(1)
	err1 := math.Abs(findiff.MakeFunc(1, sinCos, 1e-4).Call(1) - exact1)
	err7 := math.Abs(findiff.MakeFunc(7, sinCos, 1e-4).Call(1) - exact7)
	if !(err7 > err1) {
		t.Errorf("order 7 error %v should exceed order 1 error %v", err7, err1)
	}
}

func TestNth_InvalidOrderPanics(t *testing.T) {
	for _, order := range []int{0, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("order %d should panic", order)
				}
			}()
			findiff.Make[float64](order, findiff.Func[float64](sinCos), 0.1)
		}()
	}
}

func TestNth_Float32(t *testing.T) {
	cube := func(x float32) float32 { return x * x * x }
	got := findiff.MakeFunc(2, cube, 0.01).Call(1)
	// (x+2h)^3 - 2(x+h)^3 + x^3 over h^2 = 6x + 6h
	if math.Abs(float64(got)-6.06) > 0.05 {
		t.Errorf("want ~6.06, got %v", got)
	}
}

// ============================================================
// Capture tests
// ============================================================

func scaledSinCos(alpha, x float64) float64 { return alpha * (math.Sin(alpha*x) + math.Cos(x)) }

func TestBind_ByValueIgnoresUpdates(t *testing.T) {
	alpha := 2.0
	d := findiff.NewDerivative[float64](findiff.Bind(scaledSinCos, alpha), 0.001)
	before := d.Call(1)
	alpha = 2.5
	after := d.Call(1)
	if before != after {
		t.Errorf("by-value capture should not see updates: %v vs %v", before, after)
	}
}

func TestBindRef_ByReferenceSeesUpdates(t *testing.T) {
	alpha := 2.0
	d := findiff.NewDerivative[float64](findiff.BindRef(scaledSinCos, &alpha), 0.001)
	before := d.Call(1)
	alpha = 2.5
	after := d.Call(1)
	if before == after {
		t.Errorf("by-reference capture should see the update, both %v", before)
	}
	fresh := findiff.NewDerivative[float64](findiff.Bind(scaledSinCos, 2.5), 0.001).Call(1)
	if after != fresh {
		t.Errorf("want %v after update, got %v", fresh, after)
	}
}

func TestScaled_ValueVersusPointer(t *testing.T) {
	base := findiff.Func[float64](sinCos)
	s := findiff.Scaled[float64]{Alpha: 1, F: base}
	byValue := findiff.Make[float64](2, s, 0.001)
	byRef := findiff.Make[float64](2, &s, 0.001)
	v0, r0 := byValue.Call(1), byRef.Call(1)
	if v0 != r0 {
		t.Errorf("same alpha should agree: %v vs %v", v0, r0)
	}
	s.Alpha = 2
	if byValue.Call(1) != v0 {
		t.Errorf("value copy should keep alpha=1")
	}
	if !scalar.EqualWithinRel(byRef.Call(1), 2*r0, 1e-12) {
		t.Errorf("pointer should see alpha=2: %v vs %v", byRef.Call(1), 2*r0)
	}
}

func TestBindRef_NilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("nil reference should panic")
		}
	}()
	findiff.BindRef[float64](scaledSinCos, nil)
}
