package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// ErrRuleResult is returned when a rule evaluates to a non-numeric value.
var ErrRuleResult = errors.New("pricing: rule must evaluate to a number")

// Env is the variable set visible to pricing rules.
type Env struct {
	Subtotal  float64 `expr:"subtotal"`
	ItemCount int     `expr:"itemCount"`
	LineCount int     `expr:"lineCount"`
}

// Rules holds compiled shipping and tax expressions. Each rule returns an
// amount, e.g. `subtotal >= 150 ? 0 : 9.99`.
type Rules struct {
	shipping *exprvm.Program
	tax      *exprvm.Program
}

// CompileRules compiles the given expressions. Empty expressions are skipped and
// CompileRules returns nil when both are empty.
func CompileRules(shipping, tax string) (*Rules, error) {
	shipping = strings.TrimSpace(shipping)
	tax = strings.TrimSpace(tax)
	if shipping == "" && tax == "" {
		return nil, nil
	}
	r := &Rules{}
	var err error
	if shipping != "" {
		if r.shipping, err = compile(shipping); err != nil {
			return nil, fmt.Errorf("compile shipping rule: %w", err)
		}
	}
	if tax != "" {
		if r.tax, err = compile(tax); err != nil {
			return nil, fmt.Errorf("compile tax rule: %w", err)
		}
	}
	return r, nil
}

// Shipping evaluates the shipping rule. ok is false when no rule is configured.
func (r *Rules) Shipping(env Env) (amount Money, ok bool, err error) {
	if r == nil || r.shipping == nil {
		return decimal.Zero, false, nil
	}
	amount, err = run(r.shipping, env)
	return amount, err == nil, err
}

// Tax evaluates the tax rule. ok is false when no rule is configured.
func (r *Rules) Tax(env Env) (amount Money, ok bool, err error) {
	if r == nil || r.tax == nil {
		return decimal.Zero, false, nil
	}
	amount, err = run(r.tax, env)
	return amount, err == nil, err
}

func compile(expression string) (*exprvm.Program, error) {
	return exprlang.Compile(expression, exprlang.Env(Env{}))
}

func run(program *exprvm.Program, env Env) (Money, error) {
	out, err := exprlang.Run(program, env)
	if err != nil {
		return decimal.Zero, err
	}
	var amount Money
	switch v := out.(type) {
	case int:
		amount = decimal.NewFromInt(int64(v))
	case int64:
		amount = decimal.NewFromInt(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrRuleResult, v)
		}
		amount = decimal.NewFromFloat(v)
	default:
		return decimal.Zero, fmt.Errorf("%w: got %T", ErrRuleResult, out)
	}
	if amount.IsNegative() {
		return decimal.Zero, nil
	}
	return amount, nil
}
