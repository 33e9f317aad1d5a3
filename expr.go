package findiff

import (
	"encoding/json"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/spacemonkeygo/errors"
)

// ============================================================
// Expression trees
// ============================================================

// Expr is a numeric expression in one variable and any number of named
// parameters. Expressions are only ever evaluated, never differentiated
// symbolically; Lambdify turns one into a Callable.
type Expr interface {
	String() string
	compile(varName string, env Env) (func(float64) float64, error)
	collectSymbols(out map[string]struct{})
	toJSON() map[string]interface{}
}

// Env binds parameter names to caller-owned storage. A compiled expression
// reads the pointed-to value on every call.
type Env map[string]*float64

// Set binds name to fresh storage holding v and returns the storage.
func (e Env) Set(name string, v float64) *float64 {
	p := new(float64)
	*p = v
	e[name] = p
	return p
}

// Snapshot copies every bound value into new storage, so callables built
// from the copy no longer see updates made through the original.
func (e Env) Snapshot() Env {
	out := make(Env, len(e))
	for k, p := range e {
		if p != nil {
			out.Set(k, *p)
		}
	}
	return out
}

// ============================================================
// Num
// ============================================================

type Num struct{ val float64 }

func N(v float64) *Num { return &Num{val: v} }

func (n *Num) Value() float64 { return n.val }
func (n *Num) String() string { return strconv.FormatFloat(n.val, 'g', -1, 64) }
func (n *Num) compile(string, Env) (func(float64) float64, error) {
	v := n.val
	return func(float64) float64 { return v }, nil
}
func (n *Num) collectSymbols(map[string]struct{}) {}
func (n *Num) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "num", "value": n.String()}
}

// ============================================================
// Sym
// ============================================================

// Sym is either the differentiation variable or a parameter, depending on
// the variable name given to Lambdify.
type Sym struct{ name string }

func S(name string) *Sym { return &Sym{name: name} }

func (s *Sym) Name() string   { return s.name }
func (s *Sym) String() string { return s.name }
func (s *Sym) compile(varName string, env Env) (func(float64) float64, error) {
	if s.name == varName {
		return func(x float64) float64 { return x }, nil
	}
	p, ok := env[s.name]
	if !ok || p == nil {
		return nil, UnboundParamError.New("unbound parameter %q", s.name)
	}
	return func(float64) float64 { return *p }, nil
}
func (s *Sym) collectSymbols(out map[string]struct{}) { out[s.name] = struct{}{} }
func (s *Sym) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "sym", "name": s.name}
}

// ============================================================
// Add, Mul
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return &Add{terms: terms}
}

func (a *Add) Terms() []Expr { return a.terms }
func (a *Add) String() string {
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}
func (a *Add) compile(varName string, env Env) (func(float64) float64, error) {
	fs, err := compileAll(a.terms, varName, env)
	if err != nil {
		return nil, err
	}
	return func(x float64) float64 {
		sum := 0.0
		for _, f := range fs {
			sum += f(x)
		}
		return sum
	}, nil
}
func (a *Add) collectSymbols(out map[string]struct{}) {
	for _, t := range a.terms {
		t.collectSymbols(out)
	}
}
func (a *Add) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "add", "terms": listJSON(a.terms)}
}

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr {
	if len(factors) == 1 {
		return factors[0]
	}
	return &Mul{factors: factors}
}

// Neg is -1 * e.
func Neg(e Expr) Expr { return MulOf(N(-1), e) }

func (m *Mul) Factors() []Expr { return m.factors }
func (m *Mul) String() string {
	parts := make([]string, len(m.factors))
	for i, f := range m.factors {
		if _, ok := f.(*Add); ok {
			parts[i] = "(" + f.String() + ")"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "*")
}
func (m *Mul) compile(varName string, env Env) (func(float64) float64, error) {
	fs, err := compileAll(m.factors, varName, env)
	if err != nil {
		return nil, err
	}
	return func(x float64) float64 {
		prod := 1.0
		for _, f := range fs {
			prod *= f(x)
		}
		return prod
	}, nil
}
func (m *Mul) collectSymbols(out map[string]struct{}) {
	for _, f := range m.factors {
		f.collectSymbols(out)
	}
}
func (m *Mul) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "mul", "factors": listJSON(m.factors)}
}

func compileAll(es []Expr, varName string, env Env) ([]func(float64) float64, error) {
	fs := make([]func(float64) float64, len(es))
	for i, e := range es {
		f, err := e.compile(varName, env)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}
	return fs, nil
}

func listJSON(es []Expr) []interface{} {
	out := make([]interface{}, len(es))
	for i, e := range es {
		out[i] = e.toJSON()
	}
	return out
}

// ============================================================
// Pow
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr { return &Pow{base: base, exp: exp} }

func (p *Pow) Base() Expr    { return p.base }
func (p *Pow) ExpExpr() Expr { return p.exp }
func (p *Pow) String() string {
	b := p.base.String()
	switch p.base.(type) {
	case *Add, *Mul, *Pow:
		b = "(" + b + ")"
	}
	e := p.exp.String()
	switch p.exp.(type) {
	case *Add, *Mul, *Pow:
		e = "(" + e + ")"
	}
	return b + "^" + e
}
func (p *Pow) compile(varName string, env Env) (func(float64) float64, error) {
	b, err := p.base.compile(varName, env)
	if err != nil {
		return nil, err
	}
	e, err := p.exp.compile(varName, env)
	if err != nil {
		return nil, err
	}
	return func(x float64) float64 { return math.Pow(b(x), e(x)) }, nil
}
func (p *Pow) collectSymbols(out map[string]struct{}) {
	p.base.collectSymbols(out)
	p.exp.collectSymbols(out)
}
func (p *Pow) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "pow", "base": p.base.toJSON(), "exp": p.exp.toJSON()}
}

// ============================================================
// Fn — elementary function application
// ============================================================

var elementary = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"exp":  math.Exp,
	"ln":   math.Log,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
	"asin": math.Asin,
	"acos": math.Acos,
	"atan": math.Atan,
	"sinh": math.Sinh,
	"cosh": math.Cosh,
	"tanh": math.Tanh,
}

type Fn struct {
	name string
	arg  Expr
}

func fnOf(name string, arg Expr) *Fn { return &Fn{name: name, arg: arg} }

func SinOf(arg Expr) Expr  { return fnOf("sin", arg) }
func CosOf(arg Expr) Expr  { return fnOf("cos", arg) }
func TanOf(arg Expr) Expr  { return fnOf("tan", arg) }
func ExpOf(arg Expr) Expr  { return fnOf("exp", arg) }
func LnOf(arg Expr) Expr   { return fnOf("ln", arg) }
func SqrtOf(arg Expr) Expr { return fnOf("sqrt", arg) }
func AbsOf(arg Expr) Expr  { return fnOf("abs", arg) }
func SinhOf(arg Expr) Expr { return fnOf("sinh", arg) }
func CoshOf(arg Expr) Expr { return fnOf("cosh", arg) }
func TanhOf(arg Expr) Expr { return fnOf("tanh", arg) }

func (f *Fn) FuncName() string { return f.name }
func (f *Fn) Arg() Expr        { return f.arg }
func (f *Fn) String() string   { return f.name + "(" + f.arg.String() + ")" }
func (f *Fn) compile(varName string, env Env) (func(float64) float64, error) {
	op, ok := elementary[f.name]
	if !ok {
		return nil, ExprError.New("unknown function: %s", f.name)
	}
	arg, err := f.arg.compile(varName, env)
	if err != nil {
		return nil, err
	}
	return func(x float64) float64 { return op(arg(x)) }, nil
}
func (f *Fn) collectSymbols(out map[string]struct{}) { f.arg.collectSymbols(out) }
func (f *Fn) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "func", "name": f.name, "arg": f.arg.toJSON()}
}

// ============================================================
// Lambdify
// ============================================================

// Lambdify compiles e into a callable in varName. Every other symbol must be
// bound in env; its storage is read on each call, so pass env.Snapshot() to
// freeze the current parameter values instead.
func Lambdify(e Expr, varName string, env Env) (Func[float64], error) {
	f, err := e.compile(varName, env)
	if err != nil {
		return nil, err
	}
	return Func[float64](f), nil
}

// FreeSymbols returns the sorted names of all symbols in e.
func FreeSymbols(e Expr) []string {
	set := map[string]struct{}{}
	e.collectSymbols(set)
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Params returns the free symbols of e other than varName.
func Params(e Expr, varName string) []string {
	var out []string
	for _, s := range FreeSymbols(e) {
		if s != varName {
			out = append(out, s)
		}
	}
	return out
}

// ============================================================
// JSON Serialization
// ============================================================

func ToJSON(e Expr) (string, error) {
	b, err := json.Marshal(e.toJSON())
	return string(b), err
}

func FromJSON(data map[string]interface{}) (Expr, error) {
	if data == nil {
		return nil, ExprError.New("expression must be an object")
	}
	typAny, ok := data["type"]
	if !ok {
		return nil, ExprError.New("missing 'type' field")
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return nil, ExprError.New("field 'type' must be a non-empty string")
	}

	subObj := func(field string) (map[string]interface{}, error) {
		v, ok := data[field]
		if !ok {
			return nil, ExprError.New("%s: missing %q", typ, field)
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, ExprError.New("%s: %q must be an object", typ, field)
		}
		return m, nil
	}

	subExprs := func(field string) ([]Expr, error) {
		v, ok := data[field]
		if !ok {
			return nil, ExprError.New("%s: missing %q", typ, field)
		}
		raw, ok := v.([]interface{})
		if !ok {
			return nil, ExprError.New("%s: %q must be an array", typ, field)
		}
		if len(raw) == 0 {
			return nil, ExprError.New("%s: %q must not be empty", typ, field)
		}
		out := make([]Expr, len(raw))
		for i, it := range raw {
			m, ok := it.(map[string]interface{})
			if !ok {
				return nil, ExprError.New("%s: %q[%d] must be an object", typ, field, i)
			}
			e, err := FromJSON(m)
			if err != nil {
				return nil, ExprError.New("%s: %s[%d]: %s", typ, field, i, errors.GetMessage(err))
			}
			out[i] = e
		}
		return out, nil
	}

	subString := func(field string) (string, error) {
		v, ok := data[field]
		if !ok {
			return "", ExprError.New("%s: missing %q", typ, field)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", ExprError.New("%s: %q must be a non-empty string", typ, field)
		}
		return s, nil
	}

	switch typ {
	case "num":
		valAny, ok := data["value"]
		if !ok {
			return nil, ExprError.New("num: missing 'value'")
		}
		v, err := parseNumber(valAny)
		if err != nil {
			return nil, err
		}
		return N(v), nil

	case "sym":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		return S(name), nil

	case "add":
		terms, err := subExprs("terms")
		if err != nil {
			return nil, err
		}
		return AddOf(terms...), nil

	case "mul":
		factors, err := subExprs("factors")
		if err != nil {
			return nil, err
		}
		return MulOf(factors...), nil

	case "neg":
		argM, err := subObj("arg")
		if err != nil {
			return nil, err
		}
		arg, err := FromJSON(argM)
		if err != nil {
			return nil, ExprError.New("neg: arg: %s", errors.GetMessage(err))
		}
		return Neg(arg), nil

	case "pow":
		baseM, err := subObj("base")
		if err != nil {
			return nil, err
		}
		expM, err := subObj("exp")
		if err != nil {
			return nil, err
		}
		base, err := FromJSON(baseM)
		if err != nil {
			return nil, ExprError.New("pow: base: %s", errors.GetMessage(err))
		}
		exp, err := FromJSON(expM)
		if err != nil {
			return nil, ExprError.New("pow: exp: %s", errors.GetMessage(err))
		}
		return PowOf(base, exp), nil

	case "func":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		if _, ok := elementary[name]; !ok {
			return nil, ExprError.New("func: unknown function %q", name)
		}
		argM, err := subObj("arg")
		if err != nil {
			return nil, err
		}
		arg, err := FromJSON(argM)
		if err != nil {
			return nil, ExprError.New("func: arg: %s", errors.GetMessage(err))
		}
		return fnOf(name, arg), nil
	}
	return nil, ExprError.New("unknown expression type: %s", typ)
}

// ParseJSON decodes a JSON document holding a single expression object.
func ParseJSON(data []byte) (Expr, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ExprError.Wrap(err)
	}
	return FromJSON(m)
}

// parseNumber accepts a JSON number or a decimal/rational string such as
// "0.25" or "1/3".
func parseNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case string:
		if n == "" {
			return 0, ExprError.New("num: 'value' must be a non-empty string")
		}
		r := new(big.Rat)
		if _, ok := r.SetString(n); !ok {
			return 0, ExprError.New("invalid num value: %s", n)
		}
		f, _ := r.Float64()
		return f, nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return 0, ExprError.New("num: 'value' must be a number or string")
		}
		return f, nil
	}
}

// toFloat normalizes the numeric types produced by the JSON decoders in use.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
