package findiff

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/spacemonkeygo/errors"
)

// ============================================================
// Tool interface
// ============================================================

type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type ToolResponse struct {
	Result      interface{} `json:"result,omitempty"`
	String      string      `json:"string,omitempty"`
	Evaluations int64       `json:"evaluations,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// DefaultMaxOrder bounds the derivative order a tool call may ask for.
// Cost doubles with every order.
const DefaultMaxOrder = 20

// Toolbox answers tool calls. The zero value uses DefaultMaxOrder and
// requires every request to carry its own step.
type Toolbox struct {
	MaxOrder    int
	DefaultStep float64
}

func HandleToolCall(req ToolRequest) ToolResponse { return Toolbox{}.Handle(req) }

func (tb Toolbox) maxOrder() int {
	if tb.MaxOrder > 0 {
		return tb.MaxOrder
	}
	return DefaultMaxOrder
}

func (tb Toolbox) Handle(req ToolRequest) ToolResponse {
	p := toolParams(req.Params)

	switch req.Tool {
	case "evaluate":
		f, err := p.callable()
		if err != nil {
			return errResp(err)
		}
		at, err := p.float("at")
		if err != nil {
			return errResp(err)
		}
		return valueResp(f.Call(at), 1)

	case "diff":
		f, err := p.callable()
		if err != nil {
			return errResp(err)
		}
		at, err := p.float("at")
		if err != nil {
			return errResp(err)
		}
		h, err := p.step(tb.DefaultStep)
		if err != nil {
			return errResp(err)
		}
		c := Count[float64](f)
		return valueResp(Diff[float64](c, at, h), c.Calls())

	case "derivative":
		f, err := p.callable()
		if err != nil {
			return errResp(err)
		}
		at, err := p.float("at")
		if err != nil {
			return errResp(err)
		}
		h, err := p.step(tb.DefaultStep)
		if err != nil {
			return errResp(err)
		}
		order, err := p.order(tb.maxOrder())
		if err != nil {
			return errResp(err)
		}
		method, err := p.optString("method", "nested")
		if err != nil {
			return errResp(err)
		}
		c := Count[float64](f)
		switch method {
		case "nested":
			return valueResp(Make[float64](order, c, h).Call(at), c.Calls())
		case "stencil":
			if !(h > 0) {
				return errResp(ToolError.New("stencil method needs a positive step"))
			}
			return valueResp(Stencil(order, c.Call, at, h), c.Calls())
		}
		return errResp(ToolError.New("unknown method: %s", method))

	case "stencil":
		h, err := p.step(tb.DefaultStep)
		if err != nil {
			return errResp(err)
		}
		order, err := p.order(tb.maxOrder())
		if err != nil {
			return errResp(err)
		}
		formula := ForwardFormula(order, h)
		points := make([]map[string]float64, len(formula.Stencil))
		for i, pt := range formula.Stencil {
			points[i] = map[string]float64{"loc": pt.Loc, "coeff": pt.Coeff}
		}
		return ToolResponse{
			Result: map[string]interface{}{
				"order":   formula.Derivative,
				"step":    formula.Step,
				"stencil": points,
			},
			Evaluations: int64(len(points)),
		}

	case "tool_spec":
		return ToolResponse{String: ToolSpec()}
	}
	return errResp(ToolError.New("unknown tool: %s", req.Tool))
}

func errResp(err error) ToolResponse {
	return ToolResponse{Error: errors.GetMessage(err)}
}

// valueResp reports non-finite values through String only, since JSON
// cannot carry them.
func valueResp(v float64, evals int64) ToolResponse {
	switch {
	case math.IsNaN(v):
		return ToolResponse{String: "NaN", Evaluations: evals}
	case math.IsInf(v, 1):
		return ToolResponse{String: "+Inf", Evaluations: evals}
	case math.IsInf(v, -1):
		return ToolResponse{String: "-Inf", Evaluations: evals}
	}
	return ToolResponse{Result: v, String: strconv.FormatFloat(v, 'g', -1, 64), Evaluations: evals}
}

type toolParams map[string]interface{}

func (p toolParams) float(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, ToolError.New("missing param: %s", key)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, ToolError.New("param %s must be a number", key)
	}
	return f, nil
}

func (p toolParams) step(def float64) (float64, error) {
	if _, ok := p["step"]; !ok && def != 0 {
		return def, nil
	}
	return p.float("step")
}

func (p toolParams) order(max int) (int, error) {
	if _, ok := p["order"]; !ok {
		return 1, nil
	}
	f, err := p.float("order")
	if err != nil {
		return 0, err
	}
	n := int(f)
	if float64(n) != f || n < 1 {
		return 0, ToolError.New("param order must be a positive integer")
	}
	if n > max {
		return 0, ToolError.New("param order %d exceeds limit %d", n, max)
	}
	return n, nil
}

func (p toolParams) optString(key, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", ToolError.New("param %s must be a non-empty string", key)
	}
	return s, nil
}

func (p toolParams) env() (Env, error) {
	env := Env{}
	v, ok := p["params"]
	if !ok {
		return env, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, ToolError.New("param params must be an object")
	}
	for k, raw := range m {
		f, ok := toFloat(raw)
		if !ok {
			return nil, ToolError.New("params.%s must be a number", k)
		}
		env.Set(k, f)
	}
	return env, nil
}

// callable builds the function under differentiation from the expr, var
// and params request fields.
func (p toolParams) callable() (Func[float64], error) {
	v, ok := p["expr"]
	if !ok {
		return nil, ToolError.New("missing param: expr")
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, ToolError.New("invalid type for param expr")
	}
	e, err := FromJSON(m)
	if err != nil {
		return nil, err
	}
	varName, err := p.optString("var", "x")
	if err != nil {
		return nil, err
	}
	env, err := p.env()
	if err != nil {
		return nil, err
	}
	return Lambdify(e, varName, env)
}

// ============================================================
// Tool schema
// ============================================================

func ToolSpec() string {
	exprProps := map[string]string{"expr": "object", "var": "string", "params": "object", "at": "number"}
	with := func(extra map[string]string) map[string]string {
		out := map[string]string{}
		for k, v := range exprProps {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}
	tools := []map[string]interface{}{
		ts("evaluate", "Evaluate expr at a point", []string{"expr", "at"}, exprProps),
		ts("diff", "Forward difference (f(at+step)-f(at))/step", []string{"expr", "at", "step"},
			with(map[string]string{"step": "number"})),
		ts("derivative", "N-th forward derivative by nested differencing. method: nested|stencil", []string{"expr", "at", "step"},
			with(map[string]string{"step": "number", "order": "integer", "method": "string"})),
		ts("stencil", "Collapsed forward-difference stencil of a given order", []string{"step"},
			map[string]string{"step": "number", "order": "integer"}),
		ts("tool_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	spec := map[string]interface{}{"tools": tools}
	b, _ := json.MarshalIndent(spec, "", "  ")
	return string(b)
}

func ts(name, description string, required []string, props map[string]string) map[string]interface{} {
	properties := map[string]interface{}{}
	for k, typ := range props {
		properties[k] = map[string]interface{}{"type": typ}
	}
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"inputSchema": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
