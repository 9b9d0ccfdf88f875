package expr

import (
	"math"
	"strconv"

	"github.com/tendril-lang/tendril/internal/value"
)

// Env supplies variable bindings (and the current node under "_") for
// guard evaluation.
type Env struct {
	Bindings map[string]value.Value
	Current  value.Value
	HasCurrent bool
}

// FreeVars returns the set of variable names the expression references,
// excluding "_". The evaluator (§4.4, §4.5) uses this to know when a
// guard has become "closed" — when every name here has a binding.
func FreeVars(e *Expr) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name == "_" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	var walkRef func(r *Ref)
	walkRef = func(r *Ref) {
		if r == nil {
			return
		}
		add(r.Name)
	}
	var walkPrimary func(p *Primary)
	var walkExpr func(x *Expr)
	var walkAnd func(x *AndExpr)
	var walkCmp func(x *CmpExpr)
	var walkAdd func(x *AddExpr)
	var walkMul func(x *MulExpr)
	var walkUnary func(x *Unary)

	walkUnary = func(x *Unary) {
		if x == nil {
			return
		}
		walkPrimary(x.Primary)
	}
	walkMul = func(x *MulExpr) {
		if x == nil {
			return
		}
		walkUnary(x.Left)
		for _, r := range x.Rest {
			walkUnary(r.Right)
		}
	}
	walkAdd = func(x *AddExpr) {
		if x == nil {
			return
		}
		walkMul(x.Left)
		for _, r := range x.Rest {
			walkMul(r.Right)
		}
	}
	walkCmp = func(x *CmpExpr) {
		if x == nil {
			return
		}
		walkAdd(x.Left)
		walkAdd(x.Right)
	}
	walkAnd = func(x *AndExpr) {
		if x == nil {
			return
		}
		walkCmp(x.Left)
		for _, r := range x.Rest {
			walkCmp(r.Right)
		}
	}
	walkExpr = func(x *Expr) {
		if x == nil {
			return
		}
		walkAnd(x.Left)
		for _, r := range x.Rest {
			walkAnd(r.Right)
		}
	}
	walkPrimary = func(p *Primary) {
		if p == nil {
			return
		}
		if p.Len != nil {
			walkRef(p.Len.Arg)
		}
		if p.Current != nil {
			walkRef(p.Current)
		}
		if p.Paren != nil {
			walkExpr(p.Paren)
		}
	}

	walkExpr(e)
	return out
}

// Eval evaluates e against env. Per §4.4 a guard must never raise: any
// internal failure (unbound variable, type mismatch, missing property)
// yields value.Null() rather than an error, and the caller (the evaluator)
// treats a non-true/non-truthy result as "guard failed".
func Eval(e *Expr, env Env) value.Value {
	return evalExpr(e, env)
}

// Bool reports whether v is the guard-language's notion of true: the
// boolean value true. All other values (including truthy-looking ones)
// are false, matching "a guard returns a boolean".
func Bool(v value.Value) bool {
	return v.Kind() == value.KindBool && v.Bool()
}

func evalExpr(x *Expr, env Env) value.Value {
	if x == nil {
		return value.Null()
	}
	v := evalAnd(x.Left, env)
	if len(x.Rest) == 0 {
		return v
	}
	for _, r := range x.Rest {
		if Bool(v) {
			return value.Bool(true)
		}
		v = evalAnd(r.Right, env)
	}
	return value.Bool(Bool(v))
}

func evalAnd(x *AndExpr, env Env) value.Value {
	if x == nil {
		return value.Null()
	}
	v := evalCmp(x.Left, env)
	if len(x.Rest) == 0 {
		return v
	}
	for _, r := range x.Rest {
		if !Bool(v) {
			return value.Bool(false)
		}
		v = evalCmp(r.Right, env)
	}
	return value.Bool(Bool(v))
}

func evalCmp(x *CmpExpr, env Env) value.Value {
	if x == nil {
		return value.Null()
	}
	left := evalAdd(x.Left, env)
	if x.Right == nil {
		return left
	}
	right := evalAdd(x.Right, env)
	switch x.Op {
	case "==":
		return value.Bool(value.DeepEqual(left, right))
	case "!=":
		return value.Bool(!value.DeepEqual(left, right))
	case "<", "<=", ">", ">=":
		if left.Kind() != value.KindNumber || right.Kind() != value.KindNumber {
			return value.Bool(false)
		}
		a, b := left.Number(), right.Number()
		switch x.Op {
		case "<":
			return value.Bool(a < b)
		case "<=":
			return value.Bool(a <= b)
		case ">":
			return value.Bool(a > b)
		default:
			return value.Bool(a >= b)
		}
	}
	return value.Bool(false)
}

func evalAdd(x *AddExpr, env Env) value.Value {
	if x == nil {
		return value.Null()
	}
	v := evalMul(x.Left, env)
	for _, r := range x.Rest {
		rhs := evalMul(r.Right, env)
		v = applyAdd(r.Op, v, rhs)
	}
	return v
}

func applyAdd(op string, a, b value.Value) value.Value {
	if op == "+" {
		if a.Kind() == value.KindString || b.Kind() == value.KindString {
			return value.String(toDisplayString(a) + toDisplayString(b))
		}
		if a.Kind() == value.KindNumber && b.Kind() == value.KindNumber {
			return value.Number(a.Number() + b.Number())
		}
		return value.Null()
	}
	if a.Kind() != value.KindNumber || b.Kind() != value.KindNumber {
		return value.Null()
	}
	return value.Number(a.Number() - b.Number())
}

func evalMul(x *MulExpr, env Env) value.Value {
	if x == nil {
		return value.Null()
	}
	v := evalUnary(x.Left, env)
	for _, r := range x.Rest {
		rhs := evalUnary(r.Right, env)
		if v.Kind() != value.KindNumber || rhs.Kind() != value.KindNumber {
			v = value.Null()
			continue
		}
		if r.Op == "*" {
			v = value.Number(v.Number() * rhs.Number())
		} else {
			if rhs.Number() == 0 {
				v = value.Null()
			} else {
				v = value.Number(modFloat(v.Number(), rhs.Number()))
			}
		}
	}
	return v
}

// modFloat is the remainder with the sign of the dividend (JS `%`):
// -5 % 3 == -2, 5 % -3 == 2. math.Mod has exactly these semantics.
func modFloat(a, b float64) float64 {
	return math.Mod(a, b)
}

func evalUnary(x *Unary, env Env) value.Value {
	if x == nil {
		return value.Null()
	}
	v := evalPrimary(x.Primary, env)
	switch x.Sign {
	case "-":
		if v.Kind() == value.KindNumber {
			return value.Number(-v.Number())
		}
		return value.Null()
	case "!":
		return value.Bool(!Bool(v))
	default:
		return v
	}
}

func evalPrimary(p *Primary, env Env) value.Value {
	if p == nil {
		return value.Null()
	}
	switch {
	case p.Number != nil:
		return value.Number(*p.Number)
	case p.String != nil:
		return value.String(*p.String)
	case p.True:
		return value.Bool(true)
	case p.False:
		return value.Bool(false)
	case p.Len != nil:
		return value.Number(float64(lengthOf(resolveRef(p.Len.Arg, env))))
	case p.Current != nil:
		return resolveRef(p.Current, env)
	case p.Paren != nil:
		return evalExpr(p.Paren, env)
	}
	return value.Null()
}

func lengthOf(v value.Value) int { return v.Len() }

func resolveRef(r *Ref, env Env) value.Value {
	if r == nil {
		return value.Null()
	}
	var base value.Value
	if r.Name == "_" {
		if !env.HasCurrent {
			return value.Null()
		}
		base = env.Current
	} else {
		v, ok := env.Bindings[r.Name]
		if !ok {
			return value.Null()
		}
		base = v
	}
	for _, field := range r.Path {
		if base.Kind() != value.KindObject || base.Object() == nil {
			return value.Null()
		}
		next, ok := base.Object().Get(field)
		if !ok {
			return value.Null()
		}
		base = next
	}
	return base
}

func toDisplayString(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		return v.Str()
	case value.KindNumber:
		return strconv.FormatFloat(v.Number(), 'g', -1, 64)
	case value.KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case value.KindNull:
		return "null"
	default:
		return ""
	}
}
